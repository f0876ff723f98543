package handler

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ritikbhatt20/Helius-Dexer/internal/api/dto"
)

// CreateConnection handles POST /api/v1/connections
// The descriptor is tested before it is stored; the response never carries the password.
func (h *ConnectionHandler) CreateConnection(c *gin.Context) {
	var req dto.ConnectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Debug("Invalid request body", slog.String("error", err.Error()))
		RespondError(c, http.StatusBadRequest, CodeValidation, "invalid request body")
		return
	}

	conn, err := h.connections.Create(c.Request.Context(), ownerID(c), req.Input())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	h.logger.Info("Connection created",
		slog.String("connection_id", conn.ID),
		slog.String("owner_id", conn.OwnerID),
	)
	c.JSON(http.StatusCreated, conn)
}

// TestConnection handles POST /api/v1/connections/test
// Nothing is persisted.
func (h *ConnectionHandler) TestConnection(c *gin.Context) {
	var req dto.ConnectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, CodeValidation, "invalid request body")
		return
	}

	if err := h.connections.Test(c.Request.Context(), req.Input()); err != nil {
		h.logger.Debug("Connection test failed", slog.String("error", err.Error()))
		c.JSON(http.StatusOK, dto.TestConnectionResponse{Success: false, Message: err.Error()})
		return
	}
	c.JSON(http.StatusOK, dto.TestConnectionResponse{Success: true})
}

// ListConnections handles GET /api/v1/connections
func (h *ConnectionHandler) ListConnections(c *gin.Context) {
	conns, err := h.connections.List(c.Request.Context(), ownerID(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, dto.ListConnectionsResponse{Connections: conns})
}

// GetConnection handles GET /api/v1/connections/:id
func (h *ConnectionHandler) GetConnection(c *gin.Context) {
	id, ok := validID(c, "id")
	if !ok {
		return
	}

	conn, err := h.connections.Get(c.Request.Context(), ownerID(c), id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, conn)
}

// UpdateConnection handles PUT /api/v1/connections/:id
// Changes to connectivity fields are tested before anything is written.
func (h *ConnectionHandler) UpdateConnection(c *gin.Context) {
	id, ok := validID(c, "id")
	if !ok {
		return
	}

	var req dto.UpdateConnectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, CodeValidation, "invalid request body")
		return
	}

	conn, err := h.connections.Update(c.Request.Context(), ownerID(c), id, req.Patch())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	h.logger.Info("Connection updated", slog.String("connection_id", id))
	c.JSON(http.StatusOK, conn)
}

// DeleteConnection handles DELETE /api/v1/connections/:id
func (h *ConnectionHandler) DeleteConnection(c *gin.Context) {
	id, ok := validID(c, "id")
	if !ok {
		return
	}

	if err := h.connections.Delete(c.Request.Context(), ownerID(c), id); err != nil {
		respondError(c, h.logger, err)
		return
	}

	h.logger.Info("Connection deleted", slog.String("connection_id", id))
	c.JSON(http.StatusOK, dto.DeletedResponse{ID: id, Deleted: true})
}
