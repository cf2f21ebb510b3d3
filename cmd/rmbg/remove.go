package main

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/ironsheep/rmbg-local/internal/imaging"
	"github.com/ironsheep/rmbg-local/internal/pipeline"
	"github.com/ironsheep/rmbg-local/internal/registry"
)

// progressSteps is the resolution of the download bar.
const progressSteps = 1000

var (
	removeModel  string
	removeOutput string
	removeMatte  string
	removeCrop   bool
	removePad    int
	removeQuiet  bool
)

var removeCmd = &cobra.Command{
	Use:   "remove <image>",
	Short: "Remove the background of an image",
	Long: `Remove the background of an image and write the result.

The output defaults to removed-bg.png next to the input. The output extension
selects the format; formats without transparency (.jpg) need --matte.`,
	Args: cobra.ExactArgs(1),
	RunE: runRemove,
}

func init() {
	f := removeCmd.Flags()
	f.StringVarP(&removeModel, "model", "m", "", "model id (see 'rmbg models'; default from RMBG_DEFAULT_MODEL or u2netp)")
	f.StringVarP(&removeOutput, "output", "o", "", "output file (default removed-bg.png beside the input)")
	f.StringVar(&removeMatte, "matte", "", "flatten onto this colour, e.g. #ffffff")
	f.BoolVar(&removeCrop, "crop", false, "trim the result to the subject")
	f.IntVar(&removePad, "padding", 0, "pixels kept around the subject with --crop")
	f.BoolVarP(&removeQuiet, "quiet", "q", false, "no progress bar or summary")
	rootCmd.AddCommand(removeCmd)
}

func runRemove(cmd *cobra.Command, args []string) error {
	input := args[0]

	name := removeModel
	if name == "" {
		name = cfg.DefaultModel
	}
	id, err := registry.Parse(name)
	if err != nil {
		return err
	}

	out := removeOutput
	if out == "" {
		out = imaging.DefaultOutputPath(input)
	}
	if err := imaging.ValidateOutputName(out); err != nil {
		return err
	}
	if removeMatte == "" && !imaging.SupportsAlpha(out) {
		logger.Warn("output format has no alpha channel; transparency will be lost", "output", out)
	}

	p, sess, err := newPipeline()
	if err != nil {
		return err
	}
	defer closeSession(sess)

	var stderr io.Writer = os.Stderr
	if removeQuiet {
		stderr = io.Discard
	}
	bar := newDownloadBar(stderr, id)

	res, err := p.RemoveBackgroundFile(cmd.Context(), id, input, pipeline.Options{
		Progress:    bar.update,
		Matte:       removeMatte,
		Crop:        removeCrop,
		CropPadding: removePad,
	})
	bar.finish()
	if err != nil {
		return err
	}

	if err := res.Save(out); err != nil {
		return err
	}

	if !removeQuiet {
		printSummary(cmd.OutOrStdout(), res, out)
	}
	return nil
}

func printSummary(w io.Writer, res *pipeline.Result, out string) {
	fmt.Fprintf(w, "Done in %dms with %s\n", res.InferenceTime.Milliseconds(), res.Model.DisplayName)
	fmt.Fprintf(w, "  output:     %s (%dx%d)\n", out, res.Width, res.Height)
	if fg := res.Foreground; fg != nil && fg.Found {
		fmt.Fprintf(w, "  foreground: %.2f%% of pixels, bounds (%d,%d)-(%d,%d)\n",
			fg.CoveragePercent, fg.Bounds.X1, fg.Bounds.Y1, fg.Bounds.X2, fg.Bounds.Y2)
	} else {
		fmt.Fprintln(w, "  foreground: none found")
	}
	if res.Mask.SigmoidApplied {
		fmt.Fprintf(w, "  mask:       logits in [%.3f, %.3f], sigmoid applied\n", res.Mask.Min, res.Mask.Max)
	}
}

// downloadBar shows weight download progress. The bar is created on the
// first report, so cached or already loaded models print nothing.
type downloadBar struct {
	w   io.Writer
	id  registry.ModelType
	mu  sync.Mutex
	bar *progressbar.ProgressBar
}

func newDownloadBar(w io.Writer, id registry.ModelType) *downloadBar {
	return &downloadBar{w: w, id: id}
}

func (d *downloadBar) update(fraction float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.bar == nil {
		d.bar = progressbar.NewOptions(progressSteps,
			progressbar.OptionSetDescription(fmt.Sprintf("Downloading %s", d.id)),
			progressbar.OptionSetWriter(d.w),
			progressbar.OptionSetPredictTime(false),
			progressbar.OptionOnCompletion(func() { fmt.Fprintln(d.w) }),
		)
	}
	_ = d.bar.Set(int(fraction * progressSteps))
}

func (d *downloadBar) finish() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.bar != nil && !d.bar.IsFinished() {
		_ = d.bar.Finish()
	}
}
