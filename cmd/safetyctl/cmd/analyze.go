package cmd

import (
	"github.com/spf13/cobra"

	"github.com/notifyhub/safety-dispatch/internal/emailaddr"
)

func newAnalyzeCmd() *cobra.Command {
	var overrides map[string]string
	c := &cobra.Command{
		Use:   "analyze-email ADDRESS...",
		Short: "Show how addresses are corrected and whether they are deliverable",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			corrector := emailaddr.NewCorrector(overrides)
			out := make([]emailaddr.Analysis, len(args))
			for i, a := range args {
				out[i] = corrector.Analyze(a)
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	}
	c.Flags().StringToStringVar(&overrides, "override", nil, "full-address override, e.g. old@x.io=new@x.io")
	return c
}
