package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/MrWong99/sitescope/internal/analyzer"
	"github.com/MrWong99/sitescope/internal/report"
	"github.com/MrWong99/sitescope/pkg/provider/stt"
)

type analyzeOptions struct {
	format     string
	id         string
	confidence float64
	photos     []string
}

func newAnalyzeCmd(root *rootOptions) *cobra.Command {
	opts := &analyzeOptions{}
	cmd := &cobra.Command{
		Use:   "analyze [file...]",
		Short: "Analyse narration files or standard input",
		Long: `Analyse one or more narration text files. With no file, or with "-",
the narration is read from standard input. Each file is reported under its
base name as the capture ID.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(cmd, root, opts, args)
		},
	}
	f := cmd.Flags()
	f.StringVarP(&opts.format, "format", "f", "text", "output format: json or text")
	f.StringVar(&opts.id, "id", "", "capture ID for narration read from standard input")
	f.Float64Var(&opts.confidence, "confidence", 0, "speech recognition confidence of dictated narration (0-1)")
	f.StringSliceVar(&opts.photos, "photo", nil, "site photo reference attached to every capture (repeatable)")
	return cmd
}

func runAnalyze(cmd *cobra.Command, root *rootOptions, opts *analyzeOptions, args []string) error {
	format, err := report.ParseFormat(opts.format)
	if err != nil {
		return err
	}
	if opts.confidence < 0 || opts.confidence > 1 {
		return fmt.Errorf("--confidence %v is outside [0, 1]", opts.confidence)
	}
	cfg, err := root.loadConfig()
	if err != nil {
		return err
	}
	a, err := analyzer.FromConfig(cfg)
	if err != nil {
		return err
	}

	if len(args) == 0 {
		args = []string{"-"}
	}
	captures := make([]analyzer.Capture, 0, len(args))
	for _, name := range args {
		c, err := readCapture(cmd.InOrStdin(), name, opts)
		if err != nil {
			return err
		}
		captures = append(captures, c)
	}

	items, err := a.AnalyzeBatch(cmd.Context(), captures)
	if err != nil {
		return err
	}
	var (
		results []*analyzer.Result
		errs    []error
	)
	for i, it := range items {
		if it.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", captures[i].ID, it.Err))
			continue
		}
		results = append(results, it.Result)
	}
	if len(results) > 0 {
		if err := report.Write(cmd.OutOrStdout(), format, results...); err != nil {
			return err
		}
	}
	return errors.Join(errs...)
}

// readCapture reads the narration named by name, where "-" is stdin.
func readCapture(stdin io.Reader, name string, opts *analyzeOptions) (analyzer.Capture, error) {
	c := analyzer.Capture{
		ID:         opts.id,
		Transcript: stt.Transcript{Confidence: opts.confidence},
		Photos:     opts.photos,
	}

	var (
		b   []byte
		err error
	)
	if name == "-" {
		b, err = io.ReadAll(stdin)
		if c.ID == "" {
			c.ID = "stdin"
		}
	} else {
		b, err = os.ReadFile(name)
		if c.ID == "" {
			c.ID = filepath.Base(name)
		}
	}
	if err != nil {
		return analyzer.Capture{}, fmt.Errorf("read narration: %w", err)
	}
	c.Transcript.Text = string(b)
	return c, nil
}
