package commands

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mifdirfan/climatetrack/internal/conversation"
	"github.com/mifdirfan/climatetrack/internal/logging"
	"github.com/mifdirfan/climatetrack/internal/records"
)

// locationFlags holds the optional --lat/--lon pair shared by ask and chat.
type locationFlags struct {
	lat, lon float64
}

func (f *locationFlags) register(cmd *cobra.Command) {
	cmd.Flags().Float64Var(&f.lat, "lat", 0, "Latitude of the asking user")
	cmd.Flags().Float64Var(&f.lon, "lon", 0, "Longitude of the asking user")
	cmd.MarkFlagsRequiredTogether("lat", "lon")
}

// point returns nil unless both flags were given.
func (f *locationFlags) point(cmd *cobra.Command) (*records.Point, error) {
	if !cmd.Flags().Changed("lat") {
		return nil, nil
	}
	p := &records.Point{Lat: f.lat, Lon: f.lon}
	if !p.Valid() {
		return nil, errors.New("--lat must be within [-90, 90] and --lon within [-180, 180]")
	}
	return p, nil
}

// NewAskCmd constructs `climatetrack ask`, which answers one question from
// the terminal.
func NewAskCmd() *cobra.Command {
	var loc locationFlags

	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask the chatbot one question",
		Long: `Ingest the configured sources, then answer a single question with the same
grounding the HTTP API uses.

Examples:
  climatetrack ask "how do I prepare an earthquake kit?"
  climatetrack ask --lat 37.5665 --lon 126.9780 "any alerts near me?"
  climatetrack ask "latest news on the typhoon"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			location, err := loc.point(cmd)
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}

			e, err := buildEngine(ctx, log, nil, false)
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}
			defer e.Close()

			report := e.pipeline.Run(ctx, e.sources)
			log.Info("ingestion complete", slog.Int("indexed", report.Indexed))

			res := e.service.Turn(ctx, strings.Join(args, " "), nil, &conversation.User{Location: location})
			log.Debug("turn finished",
				slog.String("intent", string(res.Intent)),
				slog.String("outcome", string(res.Outcome)),
			)
			fmt.Fprintln(cmd.OutOrStdout(), res.Reply)
			return nil
		},
	}

	loc.register(cmd)
	return cmd
}
