package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	queryapi "github.com/williammiras/dash/internal/api/query"
	recapi "github.com/williammiras/dash/internal/api/recommendations"
	"github.com/williammiras/dash/internal/db"
	"github.com/williammiras/dash/pkg/logger"
)

const maxSimilarLimit = 20

// RecommendationHandler looks up earlier answers to queries similar to a new one.
type RecommendationHandler struct {
	Archive  db.Archive
	Embedder QueryEmbedder
	Limit    int
}

func (h *RecommendationHandler) Similar(c *gin.Context) {
	queryString := strings.TrimSpace(c.Query("query"))
	if queryString == "" {
		c.JSON(http.StatusBadRequest, queryapi.ErrorResponse{Error: NoQueryError})
		return
	}

	limit := h.Limit
	if limit <= 0 {
		limit = 5
	}
	if l := c.Query("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 {
			limit = min(n, maxSimilarLimit)
		}
	}

	ctx := c.Request.Context()
	log := logger.FromContext(ctx)

	queryVector, err := h.Embedder.EmbedQuery(ctx, queryString)
	if err != nil {
		log.Error("Could not generate query embedding", "error", err)
		c.JSON(http.StatusInternalServerError, queryapi.ErrorResponse{Error: "Could not generate query embedding", Message: ErrorMessage})
		return
	}

	recs, err := h.Archive.SearchRecommendations(ctx, queryVector, limit)
	if err != nil {
		log.Error("Failed to search recommendations", "error", err)
		c.JSON(http.StatusInternalServerError, queryapi.ErrorResponse{Error: "Failed to search recommendations", Message: ErrorMessage})
		return
	}

	response := recapi.SimilarResponse{
		Responses: []recapi.SimilarResponseContent{},
	}
	for _, rec := range recs {
		response.Responses = append(response.Responses, recapi.SimilarResponseContent{
			Query:  rec.Query,
			Result: rec.Result,
		})
	}

	c.JSON(http.StatusOK, response)
}
