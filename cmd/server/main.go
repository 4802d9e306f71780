package main

import (
	"context"
	"os"

	"github.com/williammiras/dash/internal/cli"
	"github.com/williammiras/dash/pkg/logger"
)

func main() {
	if err := cli.Serve(context.Background()); err != nil {
		logger.Error("DASH server failed", "error", err)
		os.Exit(1)
	}
}
