// Package cli implements the dash command line.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/williammiras/dash/internal/app"
	"github.com/williammiras/dash/internal/config"
	"github.com/williammiras/dash/pkg/logger"
	"github.com/williammiras/dash/pkg/utils"
)

const envFile = ".env"

func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "dash",
		Short:         "DASH, the Data and Analysis Scout Hub",
		Long:          "DASH finds publicly available datasets for data science and machine learning projects.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(NewAskCommand(), NewServeCommand())
	return root
}

func NewServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return Serve(cmd.Context())
		},
	}
}

// LoadConfig reads .env when present and then the environment.
func LoadConfig() (*config.Config, error) {
	loaded, err := utils.LoadDotenv(envFile)
	if err != nil {
		return nil, fmt.Errorf("error loading .env file: %w", err)
	}
	if loaded {
		logger.Debug(".env file loaded successfully")
	} else {
		logger.Debug(".env file not found, proceeding with existing environment variables")
	}
	return config.Load()
}

// Serve runs the HTTP API until SIGINT or SIGTERM.
func Serve(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := LoadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, app.Options{})
	if err != nil {
		return err
	}
	serveErr := a.Serve(ctx)
	if err := a.Close(context.WithoutCancel(ctx)); err != nil {
		a.Logger.Warn("Failed to release resources", "error", err)
	}
	return serveErr
}
