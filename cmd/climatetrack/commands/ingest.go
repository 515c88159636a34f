package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mifdirfan/climatetrack/internal/extract"
	"github.com/mifdirfan/climatetrack/internal/ingestion"
	"github.com/mifdirfan/climatetrack/internal/logging"
)

// NewIngestCmd constructs `climatetrack ingest`, which runs the ingestion
// pipeline in the foreground and prints its report.
func NewIngestCmd() *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "ingest [paths...]",
		Short: "Extract, chunk and embed the configured sources",
		Long: `Run the ingestion pipeline synchronously and print a JSON report.

Sources default to CT_PROSE_SOURCES and CT_TABULAR_SOURCES; paths given as
arguments replace them, with the kind inferred from the extension
(.pdf .txt .md are prose, .csv .tsv are tabular).

The index lives in memory, so this command is mostly useful to check
extraction and embedding before starting the server. With QDRANT_HOST set the
chunks are also mirrored to Qdrant.

Examples:
  climatetrack ingest
  climatetrack ingest docs/earthquake-guide.pdf data/fire_stations.csv
  climatetrack ingest --dry-run`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			if dryRun {
				return dryRunExtract(ctx, cmd, log, args)
			}

			st, err := buildIndex(log, nil, args)
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}
			defer st.close()

			log.Info("starting ingestion", slog.Int("sources", len(st.sources)))
			report := st.pipeline.Run(ctx, st.sources)

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Only extract sources and list what would be indexed; no embedding calls")
	return cmd
}

// dryRunExtract runs the extractors and prints one line per source.
func dryRunExtract(ctx context.Context, cmd *cobra.Command, log *slog.Logger, args []string) error {
	var sources []ingestion.Source
	if len(args) > 0 {
		for _, p := range args {
			src, err := ingestion.InferSource(p)
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}
			sources = append(sources, src)
		}
	} else {
		sources = ingestion.Sources(getEnvList("CT_PROSE_SOURCES"), getEnvList("CT_TABULAR_SOURCES"))
	}

	out := cmd.OutOrStdout()
	tabular := extract.Tabular{Logger: log}
	for _, src := range sources {
		switch src.Kind {
		case ingestion.KindProse:
			text, err := extract.Prose{}.Extract(ctx, src.Path)
			if err != nil {
				fmt.Fprintf(out, "%-8s %-40s error: %v\n", src.Kind, src.Path, err)
				continue
			}
			fmt.Fprintf(out, "%-8s %-40s %d characters\n", src.Kind, src.Path, len([]rune(text)))
		case ingestion.KindTabular:
			rows, err := tabular.Extract(ctx, src.Path)
			if err != nil {
				fmt.Fprintf(out, "%-8s %-40s error: %v\n", src.Kind, src.Path, err)
				continue
			}
			fmt.Fprintf(out, "%-8s %-40s %d rows\n", src.Kind, src.Path, len(rows))
		}
	}
	if len(sources) == 0 {
		fmt.Fprintln(cmd.ErrOrStderr(), "no sources configured")
	}
	return nil
}
