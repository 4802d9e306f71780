package handlers

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"

	"github.com/aws/aws-lambda-go/events"
	queryapi "github.com/williammiras/dash/internal/api/query"
	"github.com/williammiras/dash/pkg/logger"
)

// LambdaHandler serves queries behind API Gateway. It keeps no state between invocations.
type LambdaHandler struct {
	Service *QueryService
}

func (h *LambdaHandler) Handle(ctx context.Context, event events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	log := logger.FromContext(ctx).With("request_id", event.RequestContext.RequestID)
	ctx = logger.ContextWithLogger(ctx, log)

	body := []byte(event.Body)
	if event.IsBase64Encoded {
		decoded, err := base64.StdEncoding.DecodeString(event.Body)
		if err != nil {
			log.Warn("Could not decode request body", "error", err)
		}
		body = decoded
	}

	var req queryapi.QueryRequest
	if err := json.Unmarshal(body, &req); err != nil {
		req = queryapi.QueryRequest{}
	}
	// Conversations are not carried across invocations.
	req.SessionID = ""

	reply := h.Service.Handle(ctx, req)

	payload, err := json.Marshal(reply.Body)
	if err != nil {
		log.Error("Failed to encode response", "error", err)
		reply.Status = http.StatusInternalServerError
		payload, _ = json.Marshal(queryapi.ErrorResponse{Error: err.Error(), Message: ErrorMessage})
	}

	return events.APIGatewayProxyResponse{
		StatusCode: reply.Status,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       string(payload),
	}, nil
}
