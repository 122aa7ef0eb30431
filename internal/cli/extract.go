package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/ironsheep/chatscan/internal/cache"
	"github.com/ironsheep/chatscan/internal/extract"
	"github.com/ironsheep/chatscan/internal/forward"
	"github.com/ironsheep/chatscan/internal/output"
)

type extractFlags struct {
	languages []string
	report    bool
	forward   bool
}

// fileResult is the output for one input. Report replaces Result in
// --report mode. FailedRegions above zero marks the result as partial.
type fileResult struct {
	File          string          `json:"file" yaml:"file"`
	Result        *extract.Result `json:"result,omitempty" yaml:"result,omitempty"`
	Report        *extract.Report `json:"report,omitempty" yaml:"report,omitempty"`
	FailedRegions int             `json:"failed_regions" yaml:"failed_regions"`
}

func (r fileResult) result() *extract.Result {
	if r.Report != nil {
		return r.Report.Result
	}
	return r.Result
}

func newExtractCmd(opts *rootOptions) *cobra.Command {
	flags := &extractFlags{}

	cmd := &cobra.Command{
		Use:   "extract <image> [image...]",
		Short: "Extract text and fields from chat screenshots",
		Long: `Extract text from one or more chat screenshots. Use "-" to read an image
from stdin.

Examples:
  chatscan extract shot.png
  chatscan extract -o json --languages ur shot.png
  chatscan extract --forward a.png b.png`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExtract(cmd, opts, flags, args)
		},
	}

	cmd.Flags().StringSliceVarP(&flags.languages, "languages", "l", nil,
		"language hints for the OCR engine (default from config)")
	cmd.Flags().BoolVar(&flags.report, "report", false,
		"include regions, fragments and background in the output")
	cmd.Flags().BoolVar(&flags.forward, "forward", false,
		"post each result to forward.url")

	return cmd
}

func runExtract(cmd *cobra.Command, opts *rootOptions, flags *extractFlags, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	p, err := opts.newPipeline()
	if err != nil {
		return err
	}
	extractor := p.extractor
	if len(flags.languages) > 0 {
		if extractor, err = extractor.WithLanguages(flags.languages); err != nil {
			return err
		}
	}

	var forwarder *forward.Client
	if flags.forward {
		if !opts.cfg.Forward.Enabled() {
			return fmt.Errorf("--forward needs forward.url (or CHATSCAN_FORWARD_URL) to be set")
		}
		if forwarder, err = forward.NewClient(opts.cfg.Forward); err != nil {
			return err
		}
	}

	// The report carries intermediate state that is not worth caching.
	var results *cache.ResultCache
	if !flags.report {
		if results, err = cache.New(opts.cfg.Cache, p.metrics); err != nil {
			return err
		}
		defer results.Close()
	}

	outputs := make([]fileResult, 0, len(args))
	for _, arg := range args {
		data, err := readInput(cmd.InOrStdin(), arg)
		if err != nil {
			return err
		}

		out := fileResult{File: arg}
		if flags.report {
			if out.Report, err = extractor.AnalyzeBytes(ctx, data); err != nil {
				return fmt.Errorf("%s: %w", arg, err)
			}
			out.FailedRegions = out.Report.FailedRegions
		} else if out.Result, out.FailedRegions, err = extractCached(ctx, extractor, results, data); err != nil {
			return fmt.Errorf("%s: %w", arg, err)
		}
		if out.FailedRegions > 0 {
			log.Warn().Str("file", arg).Int("failed_regions", out.FailedRegions).Msg("Result is partial")
		}

		if forwarder != nil {
			requestID := uuid.NewString()
			if _, err := forwarder.Send(ctx, requestID, out.result()); err != nil {
				return fmt.Errorf("%s: forward: %w", arg, err)
			}
			log.Info().Str("file", arg).Str("request_id", requestID).Msg("Result forwarded")
		}
		outputs = append(outputs, out)
	}

	return printExtractions(opts.formatter, outputs)
}

// extractCached returns the result for data and how many of its regions
// failed. Partial results are not cached.
func extractCached(ctx context.Context, extractor *extract.Extractor, results *cache.ResultCache, data []byte) (*extract.Result, int, error) {
	var key string
	if results != nil {
		key = cache.Key(data, extractor.Fingerprint())
		if result, ok, err := results.Get(ctx, key); err != nil {
			log.Warn().Err(err).Msg("Result cache lookup failed")
		} else if ok {
			return result, 0, nil
		}
	}

	report, err := extractor.AnalyzeBytes(ctx, data)
	if err != nil {
		return nil, 0, err
	}
	if results != nil && report.FailedRegions == 0 {
		if err := results.Set(ctx, key, report.Result); err != nil {
			log.Warn().Err(err).Msg("Result cache store failed")
		}
	}
	return report.Result, report.FailedRegions, nil
}

// readInput reads a file, or stdin for "-".
func readInput(stdin io.Reader, path string) ([]byte, error) {
	if path == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("failed to read stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	return data, nil
}

func printExtractions(f *output.Formatter, outputs []fileResult) error {
	if f.Format != output.FormatTable {
		if len(outputs) == 1 {
			return f.Print(outputs[0])
		}
		return f.Print(outputs)
	}

	for i, out := range outputs {
		if len(outputs) > 1 {
			if i > 0 {
				f.PrintInfo("")
			}
			f.PrintInfo("==> " + out.File + " <==")
		}
		if out.Report != nil {
			f.PrintInfo(fmt.Sprintf("regions: %d  fallback: %t  script: %s  background: %s",
				len(out.Report.Regions), out.Report.Fallback, out.Report.Script, out.Report.Background.Hex))
		}
		if out.FailedRegions > 0 {
			f.PrintInfo(fmt.Sprintf("warning: %d regions failed, the result is partial", out.FailedRegions))
		}
		result := out.result()
		f.PrintInfo(result.CleanText)
		if err := f.PrintTable(fieldTable(result)); err != nil {
			return err
		}
	}
	return nil
}

// fieldTable lists every extracted value, one per row, fields in name order.
func fieldTable(result *extract.Result) output.TableData {
	names := make([]string, 0, len(result.ExtractedFields))
	for name := range result.ExtractedFields {
		names = append(names, name)
	}
	sort.Strings(names)

	data := output.TableData{Headers: []string{"FIELD", "VALUE"}}
	for _, name := range names {
		for _, value := range result.ExtractedFields[name] {
			data.Rows = append(data.Rows, []string{name, strings.TrimSpace(value)})
		}
	}
	return data
}
