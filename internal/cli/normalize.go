package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ironsheep/chatscan/internal/output"
	"github.com/ironsheep/chatscan/internal/script"
)

// normalizeResult is the JSON and YAML shape of the normalize command.
type normalizeResult struct {
	CleanText string `json:"clean_text" yaml:"clean_text"`
	Script    string `json:"script" yaml:"script"`
}

func newNormalizeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "normalize [text...]",
		Short: "Normalize OCR text",
		Long: `Fold Arabic presentation forms, map Arabic-Indic digits to ASCII and collapse
whitespace. Reads stdin when no text is given.

Examples:
  chatscan normalize "رابطہ ٠٣٠٠ ١٢٣٤٥٦٧"
  pbpaste | chatscan normalize -o json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.Join(args, " ")
			if len(args) == 0 {
				data, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("failed to read stdin: %w", err)
				}
				text = string(data)
			}

			clean := script.Normalize(text)
			result := normalizeResult{CleanText: clean, Script: script.Dominant(clean)}
			if opts.formatter.Format != output.FormatTable {
				return opts.formatter.Print(result)
			}
			opts.formatter.PrintInfo(result.CleanText)
			return nil
		},
	}
}
