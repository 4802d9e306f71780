package api

import "github.com/williammiras/dash/internal/models"

type SessionResponse struct {
	SessionID string        `json:"session_id"`
	Turns     []models.Turn `json:"turns"`
}
