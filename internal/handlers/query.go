package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	queryapi "github.com/williammiras/dash/internal/api/query"
	"github.com/williammiras/dash/internal/db"
	"github.com/williammiras/dash/internal/llm"
	"github.com/williammiras/dash/internal/metrics"
	"github.com/williammiras/dash/internal/models"
	"github.com/williammiras/dash/internal/parsing"
	"github.com/williammiras/dash/pkg/logger"
	"github.com/williammiras/dash/pkg/utils"
)

const (
	ErrorMessage   = "An error occurred while processing your request."
	NoQueryError   = "No query provided"
	SessionHeader  = "X-Session-ID"
	archiveTimeout = 30 * time.Second
)

// QueryEmbedder turns a query into the vector used by the recommendation archive.
type QueryEmbedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// QueryService answers dataset queries. It holds the behaviour shared by the
// HTTP and serverless handlers.
type QueryService struct {
	Agent  llm.Agent
	Parser *parsing.OutputParser

	// History is optional; without it every request starts from an empty conversation.
	History  db.HistoryStore
	MaxTurns int
	Model    string

	// Archive and Embedder are optional and only used together.
	Archive  db.Archive
	Embedder QueryEmbedder

	archiving sync.WaitGroup
}

// Reply is the status and JSON body to send back for one query.
type Reply struct {
	Status    int
	Body      any
	SessionID string
	Outcome   string
}

func (s *QueryService) Handle(ctx context.Context, req queryapi.QueryRequest) (reply Reply) {
	log := logger.FromContext(ctx)
	var sessionID string

	defer func() {
		if r := recover(); r != nil {
			log.Error("Recovered from panic while handling query", "panic", r, "stack", string(debug.Stack()))
			reply = failure(fmt.Errorf("panic: %v", r), metrics.OutcomePanic)
			reply.SessionID = sessionID
		}
		metrics.RecordRequest(reply.Outcome)
	}()

	query := strings.TrimSpace(req.Query)
	if query == "" {
		return Reply{
			Status:  http.StatusBadRequest,
			Body:    queryapi.ErrorResponse{Error: NoQueryError},
			Outcome: metrics.OutcomeBadRequest,
		}
	}

	var history []models.Turn
	if s.History != nil {
		sessionID = req.SessionID
		if sessionID == "" {
			sessionID = utils.NewSessionID()
		} else if !utils.IsValidSessionID(sessionID) {
			return Reply{
				Status:  http.StatusBadRequest,
				Body:    queryapi.ErrorResponse{Error: "Invalid session_id"},
				Outcome: metrics.OutcomeBadRequest,
			}
		}

		session, err := s.History.GetSession(ctx, sessionID)
		switch {
		case errors.Is(err, db.ErrSessionNotFound):
		case err != nil:
			reply = failure(fmt.Errorf("failed to load conversation history: %w", err), metrics.OutcomeUpstreamFailure)
			reply.SessionID = sessionID
			return reply
		default:
			history = session.Turns
		}
		log = log.With("session", sessionID)
	}

	start := time.Now()
	res, err := s.Agent.Invoke(ctx, query, history)
	if err == nil && res == nil {
		err = llm.ErrEmptyResponse
	}
	if err != nil {
		log.Error("Agent invocation failed", "error", err, "duration", time.Since(start))
		reply = failure(err, metrics.OutcomeUpstreamFailure)
		reply.SessionID = sessionID
		return reply
	}
	log.Debug("Agent answered", "duration", time.Since(start), "iterations", res.Iterations, "tools", res.ToolsUsed)

	answer, err := s.Parser.Parse(res.Output)
	if err != nil {
		log.Warn("Agent answer does not match the output schema", "error", err)
		raw := res.Output
		return Reply{
			Status:    http.StatusInternalServerError,
			Body:      queryapi.ErrorResponse{Error: err.Error(), Raw: &raw},
			SessionID: sessionID,
			Outcome:   metrics.OutcomeSchemaMismatch,
		}
	}

	if s.History != nil {
		if err := s.History.AppendTurns(ctx, sessionID, s.Model, s.MaxTurns, models.Exchange(query, res.Output)...); err != nil {
			log.Warn("Failed to save conversation history", "error", err)
		}
	}
	s.archive(ctx, query, *answer)

	return Reply{
		Status:    http.StatusOK,
		Body:      answer,
		SessionID: sessionID,
		Outcome:   metrics.OutcomeSuccess,
	}
}

// Wait blocks until background archiving has finished.
func (s *QueryService) Wait() {
	s.archiving.Wait()
}

func (s *QueryService) archive(ctx context.Context, query string, answer models.DataQuery) {
	if s.Archive == nil || s.Embedder == nil {
		return
	}
	log := logger.FromContext(ctx)

	s.archiving.Add(1)
	go func() {
		defer s.archiving.Done()
		defer func() {
			if r := recover(); r != nil {
				log.Error("Recovered from panic while archiving", "panic", r)
			}
		}()

		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), archiveTimeout)
		defer cancel()

		vec, err := s.Embedder.EmbedQuery(ctx, query)
		if err != nil {
			log.Warn("Failed to embed query for archive", "error", err)
			return
		}
		rec := models.Recommendation{Query: query, Result: answer, Vec: vec}
		if err := s.Archive.AddRecommendation(ctx, rec); err != nil {
			log.Warn("Failed to archive recommendation", "error", err)
		}
	}()
}

func failure(err error, outcome string) Reply {
	return Reply{
		Status:  http.StatusInternalServerError,
		Body:    queryapi.ErrorResponse{Error: err.Error(), Message: ErrorMessage},
		Outcome: outcome,
	}
}

type QueryHandler struct {
	Service *QueryService
	Timeout time.Duration
}

func (h *QueryHandler) Query(c *gin.Context) {
	var req queryapi.QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		// An unreadable body carries no query.
		req = queryapi.QueryRequest{}
	}
	if req.SessionID == "" {
		req.SessionID = c.GetHeader(SessionHeader)
	}

	ctx := c.Request.Context()
	if h.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.Timeout)
		defer cancel()
	}

	reply := h.Service.Handle(ctx, req)
	if reply.SessionID != "" {
		c.Header(SessionHeader, reply.SessionID)
	}
	c.JSON(reply.Status, reply.Body)
}
