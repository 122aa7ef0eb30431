package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newVersionCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long:  `Display the version, commit hash, and build date of chatscan.`,
		// Version must work even when the configuration is broken.
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "chatscan %s\n", opts.info.Version)
			fmt.Fprintf(out, "Commit: %s\n", opts.info.Commit)
			fmt.Fprintf(out, "Build Date: %s\n", opts.info.BuildDate)
		},
	}
}
