package commands

import (
	"fmt"
	"log/slog"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/mifdirfan/climatetrack/internal/conversation"
	"github.com/mifdirfan/climatetrack/internal/logging"
	"github.com/mifdirfan/climatetrack/internal/tui"
)

// NewChatCmd constructs `climatetrack chat`, an interactive terminal chat.
func NewChatCmd() *cobra.Command {
	var loc locationFlags

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat with the assistant in the terminal",
		Long: `Ingest the configured sources, then open an interactive chat. The
conversation history is kept for the session only.

Logs go to stderr; redirect them (2>chat.log) to keep the screen clean.

Examples:
  climatetrack chat
  climatetrack chat --lat 35.1796 --lon 129.0756`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			location, err := loc.point(cmd)
			if err != nil {
				return fmt.Errorf("chat: %w", err)
			}

			e, err := buildEngine(ctx, log, nil, false)
			if err != nil {
				return fmt.Errorf("chat: %w", err)
			}
			defer e.Close()

			fmt.Fprintf(os.Stderr, "Indexing %d sources...\n", len(e.sources))
			report := e.pipeline.Run(ctx, e.sources)
			log.Info("ingestion complete", slog.Int("indexed", report.Indexed))

			header := fmt.Sprintf("ClimateTrack chat  %s/%s  %d passages indexed",
				e.selection.Backend, e.selection.Model, e.index.Len())
			m := tui.New(ctx, e.service, &conversation.User{Location: location}, header)
			if _, err := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run(); err != nil {
				return fmt.Errorf("chat: %w", err)
			}
			return nil
		},
	}

	loc.register(cmd)
	return cmd
}
