package cli

import (
	"fmt"
	"image"
	"os"
	"strconv"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/ironsheep/chatscan/internal/detection"
	"github.com/ironsheep/chatscan/internal/imaging"
	"github.com/ironsheep/chatscan/internal/output"
)

type regionsFlags struct {
	annotate string
	color    string
}

// regionsResult is the JSON and YAML shape of the regions command.
type regionsResult struct {
	Regions    []detection.Region `json:"regions" yaml:"regions"`
	Count      int                `json:"count" yaml:"count"`
	Background imaging.Background `json:"background" yaml:"background"`
}

func newRegionsCmd(opts *rootOptions) *cobra.Command {
	flags := &regionsFlags{}

	cmd := &cobra.Command{
		Use:   "regions <image>",
		Short: "Show the message regions detected in a screenshot",
		Long: `Detect message regions without running OCR. Regions are listed in the order
their text would be concatenated. Use --annotate to write a copy of the image
with every region outlined and numbered.

Examples:
  chatscan regions shot.png
  chatscan regions --annotate boxes.png shot.png`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRegions(cmd, opts, flags, args[0])
		},
	}

	cmd.Flags().StringVar(&flags.annotate, "annotate", "",
		"write an annotated PNG to this path")
	cmd.Flags().StringVar(&flags.color, "color", imaging.DefaultOutlineColor,
		"outline color for --annotate as #RRGGBB")

	return cmd
}

func runRegions(cmd *cobra.Command, opts *rootOptions, flags *regionsFlags, path string) error {
	data, err := readInput(cmd.InOrStdin(), path)
	if err != nil {
		return err
	}
	img, err := imaging.DecodeBytes(data)
	if err != nil {
		return err
	}

	detector, err := detection.NewDetector(opts.cfg.Detection)
	if err != nil {
		return err
	}
	regions, err := detector.Detect(img)
	if err != nil {
		return err
	}
	if regions == nil {
		regions = []detection.Region{}
	}

	if flags.annotate != "" {
		boxes := make([]image.Rectangle, len(regions))
		for i, r := range regions {
			boxes[i] = r.Rect()
		}
		png, err := imaging.EncodePNG(imaging.Annotate(img, boxes, flags.color))
		if err != nil {
			return err
		}
		if err := os.WriteFile(flags.annotate, png, 0644); err != nil {
			return fmt.Errorf("failed to write annotated image: %w", err)
		}
		log.Info().Str("file", flags.annotate).Int("regions", len(regions)).Msg("Annotated image written")
	}

	result := regionsResult{
		Regions:    regions,
		Count:      len(regions),
		Background: imaging.EstimateBackground(img),
	}
	if opts.formatter.Format != output.FormatTable {
		return opts.formatter.Print(result)
	}

	table := output.TableData{Headers: []string{"#", "X", "Y", "WIDTH", "HEIGHT", "SCORE"}}
	for i, r := range regions {
		table.Rows = append(table.Rows, []string{
			strconv.Itoa(i + 1),
			strconv.Itoa(r.X),
			strconv.Itoa(r.Y),
			strconv.Itoa(r.Width),
			strconv.Itoa(r.Height),
			strconv.FormatFloat(r.Score, 'f', 2, 64),
		})
	}
	if err := opts.formatter.PrintTable(table); err != nil {
		return err
	}
	opts.formatter.PrintInfo(fmt.Sprintf("%d regions, background %s (dark: %t)",
		result.Count, result.Background.Hex, result.Background.Dark))
	return nil
}
