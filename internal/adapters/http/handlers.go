package http

import (
	"errors"
	"net/http"

	"github.com/dkeye/Pairup/internal/app/orch"
	"github.com/dkeye/Pairup/internal/core"
	"github.com/dkeye/Pairup/internal/domain"
	"github.com/gin-gonic/gin"
)

type Handlers struct {
	Orch *orch.Orchestrator
}

type CreateRoomRequest struct {
	ID       string `json:"id"`
	Topic    string `json:"topic"`
	Language string `json:"language"`
	Level    string `json:"level"`
	Private  bool   `json:"private"`
}

func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handlers) ListRooms(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"rooms": h.Orch.ListRooms()})
}

func (h *Handlers) CreateRoom(c *gin.Context) {
	var req CreateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}
	info, err := h.Orch.CreateRoom(req.ID, domain.RoomMeta{
		Topic:    req.Topic,
		Language: req.Language,
		Level:    req.Level,
		Private:  req.Private,
	})
	if err != nil {
		c.JSON(statusOf(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, info)
}

func (h *Handlers) RoomDetails(c *gin.Context) {
	st, err := h.Orch.RoomDetails(domain.RoomID(c.Param("id")))
	if err != nil {
		c.JSON(statusOf(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, st)
}

func (h *Handlers) DeleteRoom(c *gin.Context) {
	if !h.Orch.DeleteRoom(domain.RoomID(c.Param("id"))) {
		c.JSON(http.StatusNotFound, gin.H{"error": core.ErrNotFound.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handlers) Stats(c *gin.Context) {
	c.JSON(http.StatusOK, h.Orch.Stats())
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrDuplicateRoom):
		return http.StatusConflict
	case errors.Is(err, domain.ErrRoomIDInvalid):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
