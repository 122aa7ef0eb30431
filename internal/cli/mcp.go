package cli

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/ironsheep/chatscan/internal/server"
)

func newMCPCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Run the MCP server on stdio",
		Long: `Serve the Model Context Protocol over stdin and stdout so MCP clients can
call chat_extract, chat_detect_regions and the other tools. Logs go to stderr.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := opts.newPipeline()
			if err != nil {
				return err
			}

			srv, err := server.New(p.extractor, server.Config{
				Detector:   opts.cfg.Detection,
				Preprocess: opts.cfg.ExtractOptions().Preprocess,
				Version:    opts.info.Version,
			})
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log.Debug().Str("version", opts.info.Version).Msg("MCP server starting")
			return srv.Serve(ctx, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
}
