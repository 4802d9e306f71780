package main

import (
	"context"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/williammiras/dash/internal/app"
	"github.com/williammiras/dash/internal/config"
	"github.com/williammiras/dash/internal/handlers"
	"github.com/williammiras/dash/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	a, err := app.New(context.Background(), cfg, app.Options{Stateless: true, JSONLogs: true})
	if err != nil {
		logger.Error("Failed to initialise DASH", "error", err)
		os.Exit(1)
	}

	h := &handlers.LambdaHandler{Service: a.Service}
	lambda.Start(func(ctx context.Context, event events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
		resp, err := h.Handle(logger.ContextWithLogger(ctx, a.Logger), event)
		// Archiving must finish before the runtime freezes the sandbox.
		a.Service.Wait()
		return resp, err
	})
}
