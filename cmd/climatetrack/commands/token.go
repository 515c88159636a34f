package commands

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/mifdirfan/climatetrack/internal/server"
)

// NewTokenCmd constructs `climatetrack token`, which mints a bearer token
// for the chatbot API.
func NewTokenCmd() *cobra.Command {
	var user string
	var ttl time.Duration

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an HS256 bearer token signed with CT_JWT_SECRET",
		Long: `Print a JWT whose subject is the given username. The server accepts it as
"Authorization: Bearer <token>" and keys conversation history by the subject.

Examples:
  climatetrack token --user minji
  climatetrack token --user ops --ttl 720h`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			secret := os.Getenv("CT_JWT_SECRET")
			if secret == "" {
				return errors.New("token: CT_JWT_SECRET is not set")
			}
			tok, err := server.IssueToken([]byte(secret), user, ttl)
			if err != nil {
				return fmt.Errorf("token: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}

	cmd.Flags().StringVarP(&user, "user", "u", "", "Username to embed as the token subject")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "Token lifetime; 0 issues a token without expiry")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}
