package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/mifdirfan/climatetrack/internal/ingestion"
	"github.com/mifdirfan/climatetrack/internal/logging"
	"github.com/mifdirfan/climatetrack/internal/server"
)

// NewServeCmd constructs `climatetrack serve`, which starts the HTTP API and
// ingests the configured sources in the background once the listener is up.
func NewServeCmd() *cobra.Command {
	var host string
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the chatbot HTTP API",
		Long: `Start the ClimateTrack HTTP server.

The chatbot route answers immediately; until background ingestion finishes,
document retrieval simply finds fewer passages. Progress is visible on
GET /api/index/stats.

Examples:
  climatetrack serve
  climatetrack serve --port 9090
  CT_JWT_SECRET=... MODEL_PROVIDER=openai climatetrack serve`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			e, err := buildEngine(ctx, log, prometheus.DefaultRegisterer, true)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			defer e.Close()

			runner := ingestion.NewRunner(e.pipeline, e.sources, log)

			if !cmd.Flags().Changed("host") {
				host = getEnvOrDefault("CT_HOST", host)
			}
			if !cmd.Flags().Changed("port") {
				port = getEnvInt("CT_PORT", port)
			}

			srv, err := server.New(e.service, &server.Config{
				Host:         host,
				Port:         port,
				Logger:       log,
				Pingers:      e.pingers,
				RateLimit:    getEnvFloat("CT_RATE_LIMIT", 0),
				RateBurst:    getEnvInt("CT_RATE_BURST", 0),
				APIKey:       os.Getenv("CT_API_KEY"),
				JWTSecret:    os.Getenv("CT_JWT_SECRET"),
				History:      e.history,
				HistoryDepth: getEnvInt("CT_HISTORY_DEPTH", 10),
				Index:        e.index,
				Ingestion:    runner,
				OnReady: func(ctx context.Context) {
					if runner.Start(ctx) {
						log.Info("ingestion started", slog.Int("sources", len(e.sources)))
					}
				},
			})
			if err != nil {
				return fmt.Errorf("serve: failed to create server: %w", err)
			}
			return srv.Start(ctx)
		},
	}

	cmd.Flags().StringVar(&host, "host", "127.0.0.1", "Host address to bind to (env CT_HOST)")
	cmd.Flags().IntVarP(&port, "port", "p", 8080, "TCP port to listen on (env CT_PORT)")
	return cmd
}
