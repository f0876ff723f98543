package domain

import (
	"strings"
	"time"
)

// Connection describes a tenant-owned Postgres database as returned to callers.
// It carries no password field in any form.
type Connection struct {
	ID           string    `json:"id"`
	OwnerID      string    `json:"owner_id"`
	Name         string    `json:"name"`
	Host         string    `json:"host"`
	Port         int       `json:"port"`
	Username     string    `json:"username"`
	DatabaseName string    `json:"database_name"`
	SSL          bool      `json:"ssl"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// ConnectionRecord is the stored form of a connection including the sealed password.
// It never leaves the storage, registry and processor layers.
type ConnectionRecord struct {
	Connection
	EncryptedPassword string `json:"-"`
}

// ConnectionParams are the fields needed to reach a tenant database.
// Password is plaintext and must only live for the duration of a single call.
type ConnectionParams struct {
	Host         string
	Port         int
	Username     string
	Password     string
	DatabaseName string
	SSL          bool
}

// Params combines the record's addressing fields with a transiently decrypted password.
func (r *ConnectionRecord) Params(password string) ConnectionParams {
	return ConnectionParams{
		Host:         r.Host,
		Port:         r.Port,
		Username:     r.Username,
		Password:     password,
		DatabaseName: r.DatabaseName,
		SSL:          r.SSL,
	}
}

// ConnectionInput is the payload for creating a connection.
type ConnectionInput struct {
	Name         string
	Host         string
	Port         int
	Username     string
	Password     string
	DatabaseName string
	SSL          bool
}

// Validate checks the required fields of a new connection.
func (in ConnectionInput) Validate() error {
	switch {
	case in.Host == "":
		return NewValidationError("host", "is required")
	case in.Port < 1 || in.Port > 65535:
		return NewValidationError("port", "must be between 1 and 65535")
	case in.Username == "":
		return NewValidationError("username", "is required")
	case in.Password == "":
		return NewValidationError("password", "is required")
	case in.DatabaseName == "":
		return NewValidationError("database_name", "is required")
	}
	return nil
}

// DisplayName is the caller's name for the connection, or host/database_name when none was given.
func (in ConnectionInput) DisplayName() string {
	if name := strings.TrimSpace(in.Name); name != "" {
		return name
	}
	return in.Host + "/" + in.DatabaseName
}

// Params returns the reachability parameters of the input.
func (in ConnectionInput) Params() ConnectionParams {
	return ConnectionParams{
		Host:         in.Host,
		Port:         in.Port,
		Username:     in.Username,
		Password:     in.Password,
		DatabaseName: in.DatabaseName,
		SSL:          in.SSL,
	}
}

// ConnectionPatch is a partial update; nil fields are left unchanged.
type ConnectionPatch struct {
	Name         *string
	Host         *string
	Port         *int
	Username     *string
	Password     *string
	DatabaseName *string
	SSL          *bool
}

// AffectsConnectivity reports whether the patch touches a field that changes how the database is reached.
func (p ConnectionPatch) AffectsConnectivity() bool {
	return p.Host != nil || p.Port != nil || p.Username != nil ||
		p.Password != nil || p.DatabaseName != nil || p.SSL != nil
}

// Validate rejects patches that would blank out required fields.
func (p ConnectionPatch) Validate() error {
	switch {
	case p.Name != nil && *p.Name == "":
		return NewValidationError("name", "must not be empty")
	case p.Host != nil && *p.Host == "":
		return NewValidationError("host", "must not be empty")
	case p.Port != nil && (*p.Port < 1 || *p.Port > 65535):
		return NewValidationError("port", "must be between 1 and 65535")
	case p.Username != nil && *p.Username == "":
		return NewValidationError("username", "must not be empty")
	case p.Password != nil && *p.Password == "":
		return NewValidationError("password", "must not be empty")
	case p.DatabaseName != nil && *p.DatabaseName == "":
		return NewValidationError("database_name", "must not be empty")
	}
	return nil
}

// Apply overlays the patch onto the record's addressing fields and returns the result.
func (p ConnectionPatch) Apply(c Connection) Connection {
	if p.Name != nil {
		c.Name = *p.Name
	}
	if p.Host != nil {
		c.Host = *p.Host
	}
	if p.Port != nil {
		c.Port = *p.Port
	}
	if p.Username != nil {
		c.Username = *p.Username
	}
	if p.DatabaseName != nil {
		c.DatabaseName = *p.DatabaseName
	}
	if p.SSL != nil {
		c.SSL = *p.SSL
	}
	return c
}
