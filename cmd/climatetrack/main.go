// Command climatetrack runs the ClimateTrack grounding engine: document
// ingestion, the chatbot HTTP API and terminal chat.
package main

import (
	"fmt"
	"os"

	"github.com/mifdirfan/climatetrack/cmd/climatetrack/commands"
)

func main() {
	if err := commands.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
