package main

import (
	"context"
	"os"

	"github.com/williammiras/dash/internal/cli"
	"github.com/williammiras/dash/pkg/logger"
)

func main() {
	if err := cli.NewRootCommand().ExecuteContext(context.Background()); err != nil {
		logger.Error("dash failed", "error", err)
		os.Exit(1)
	}
}
