package dto

import "github.com/ritikbhatt20/Helius-Dexer/internal/domain"

type ConnectionRequest struct {
	Name         string `json:"name"`
	Host         string `json:"host"`
	Port         int    `json:"port"`
	Username     string `json:"username"`
	Password     string `json:"password"`
	DatabaseName string `json:"database_name"`
	SSL          bool   `json:"ssl"`
}

func (r ConnectionRequest) Input() domain.ConnectionInput {
	return domain.ConnectionInput{
		Name:         r.Name,
		Host:         r.Host,
		Port:         r.Port,
		Username:     r.Username,
		Password:     r.Password,
		DatabaseName: r.DatabaseName,
		SSL:          r.SSL,
	}
}

// UpdateConnectionRequest leaves absent fields unchanged.
type UpdateConnectionRequest struct {
	Name         *string `json:"name"`
	Host         *string `json:"host"`
	Port         *int    `json:"port"`
	Username     *string `json:"username"`
	Password     *string `json:"password"`
	DatabaseName *string `json:"database_name"`
	SSL          *bool   `json:"ssl"`
}

func (r UpdateConnectionRequest) Patch() domain.ConnectionPatch {
	return domain.ConnectionPatch{
		Name:         r.Name,
		Host:         r.Host,
		Port:         r.Port,
		Username:     r.Username,
		Password:     r.Password,
		DatabaseName: r.DatabaseName,
		SSL:          r.SSL,
	}
}

type ListConnectionsResponse struct {
	Connections []domain.Connection `json:"connections"`
}

type TestConnectionResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}
