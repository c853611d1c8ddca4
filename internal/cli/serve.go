package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/MrSnakeDoc/fogroute/internal/app"
	"github.com/MrSnakeDoc/fogroute/internal/config"
	"github.com/MrSnakeDoc/fogroute/internal/logger"
)

// NewServeCommand runs the HTTP service. Configuration comes from
// FOGROUTE_* environment variables.
func NewServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the route orchestration service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			log := logger.New(cfg.LogLevel, cfg.PrettyLog)
			defer func() { _ = log.Sync() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := app.New(ctx, cfg, log)
			if err != nil {
				return err
			}
			return a.Run(ctx)
		},
	}
}
