package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	queryapi "github.com/williammiras/dash/internal/api/query"
	sessionapi "github.com/williammiras/dash/internal/api/sessions"
	"github.com/williammiras/dash/internal/db"
	"github.com/williammiras/dash/internal/models"
	"github.com/williammiras/dash/pkg/logger"
)

type SessionHandler struct {
	Store db.HistoryStore
}

func (h *SessionHandler) GetSession(c *gin.Context) {
	id := c.Param("id")

	session, err := h.Store.GetSession(c.Request.Context(), id)
	if errors.Is(err, db.ErrSessionNotFound) {
		c.JSON(http.StatusNotFound, queryapi.ErrorResponse{Error: "Session not found"})
		return
	}
	if err != nil {
		logger.FromContext(c.Request.Context()).Error("Failed to retrieve session", "session", id, "error", err)
		c.JSON(http.StatusInternalServerError, queryapi.ErrorResponse{Error: "Failed to retrieve session", Message: ErrorMessage})
		return
	}

	turns := session.Turns
	if turns == nil {
		turns = []models.Turn{}
	}
	c.JSON(http.StatusOK, sessionapi.SessionResponse{SessionID: session.ID, Turns: turns})
}

func (h *SessionHandler) DeleteSession(c *gin.Context) {
	id := c.Param("id")

	err := h.Store.DeleteSession(c.Request.Context(), id)
	if errors.Is(err, db.ErrSessionNotFound) {
		c.JSON(http.StatusNotFound, queryapi.ErrorResponse{Error: "Session not found"})
		return
	}
	if err != nil {
		logger.FromContext(c.Request.Context()).Error("Failed to delete session", "session", id, "error", err)
		c.JSON(http.StatusInternalServerError, queryapi.ErrorResponse{Error: "Failed to delete session", Message: ErrorMessage})
		return
	}

	c.Status(http.StatusNoContent)
}
