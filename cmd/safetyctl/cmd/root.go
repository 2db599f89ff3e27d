package cmd

import (
	"encoding/json"
	"io"

	"github.com/spf13/cobra"
)

// NewRootCmd builds the safetyctl command tree.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "safetyctl",
		Short: "Debug tool for the safety dispatch service",
		Long: `safetyctl checks what the dispatch service would do with an address or
location, and sends test emails through the configured relay.

Relay settings are read from the same environment variables (and .env file)
as the server.`,
		SilenceUsage: true,
	}
	root.AddCommand(newAnalyzeCmd(), newMapURLCmd(), newEmailTestCmd())
	return root
}

func Execute() error {
	return NewRootCmd().Execute()
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
