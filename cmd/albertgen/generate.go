package main

import (
	"fmt"
	"iter"
	"os"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/gomlx/albertdata/config"
	"github.com/gomlx/albertdata/corpus"
	"github.com/gomlx/albertdata/pipeline"
	"github.com/gomlx/albertdata/tokenizers"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"k8s.io/klog/v2"
)

// flagKeys maps generate flags to the config keys they override.
var flagKeys = map[string]string{
	"tokenizer":  "tokenizer.type",
	"model":      "tokenizer.model_path",
	"repo":       "tokenizer.repo",
	"workers":    "pipeline.workers",
	"seed":       "pipeline.seed",
	"batch-size": "pipeline.batch_size",
	"format":     "output.format",
	"output-dir": "output.dir",
	"prefix":     "output.prefix",
	"max-len":    "example.max_len",
	"max-label":  "example.max_label",
}

func newGenerateCmd() *cobra.Command {
	generateCmd := &cobra.Command{
		Use:   "generate [FILE...]",
		Short: "Generate examples from text files, one example per line",
		Long: `Generate examples from text files, one example per line.

Without files, or with "-", lines are read from the standard input.
Configuration is read from --config, overridden by ALBERTDATA_* environment variables and then by flags.`,
		RunE: GenerateHandler,
	}
	generateCmd.Flags().StringP("config", "c", "", "Configuration file (YAML, JSON or TOML)")
	generateCmd.Flags().String("tokenizer", "", `Tokenizer type: "sentencepiece", "hf" or "wordpiece"`)
	generateCmd.Flags().String("model", "", "Local tokenizer model file")
	generateCmd.Flags().String("repo", "", "HuggingFace repository to download the tokenizer from")
	generateCmd.Flags().Int("workers", 0, "Number of parallel workers")
	generateCmd.Flags().Uint64("seed", 0, "Random seed: worker i uses seed+i")
	generateCmd.Flags().Int("batch-size", 0, "Examples per output shard")
	generateCmd.Flags().String("format", "", `Output format: "parquet" or "safetensors"`)
	generateCmd.Flags().StringP("output-dir", "o", "", "Output directory")
	generateCmd.Flags().String("prefix", "", "Output file name prefix")
	generateCmd.Flags().Int("max-len", 0, "Maximum number of tokens per example, excluding CLS")
	generateCmd.Flags().Int("max-label", 0, "Maximum number of masked positions per example")
	return generateCmd
}

// loadConfig builds the configuration from the --config file, the environment and the flags explicitly set.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	v := config.New()
	if err := bindFlags(cmd, v); err != nil {
		return nil, err
	}
	configPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}
	return config.Load(v, configPath)
}

func bindFlags(cmd *cobra.Command, v *viper.Viper) error {
	for name, key := range flagKeys {
		f := cmd.Flags().Lookup(name)
		if f == nil || !f.Changed {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return errors.Wrapf(err, "failed to bind flag --%s", name)
		}
	}
	return nil
}

// GenerateHandler runs the example generation pipeline over the input files.
func GenerateHandler(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	tok, err := tokenizers.New(cfg.TokenizerConfig(), cfg.Repo())
	if err != nil {
		return err
	}
	p, err := pipeline.New(tok, cfg.PipelineOptions())
	if err != nil {
		return err
	}
	sw, err := pipeline.NewShardWriter(cfg.Output.Dir, cfg.Output.Prefix, cfg.Output.Format)
	if err != nil {
		return err
	}
	sw.Metadata["seed"] = strconv.FormatUint(cfg.Pipeline.Seed, 10)
	sw.Metadata["workers"] = strconv.Itoa(cfg.Pipeline.Workers)
	sw.Metadata["vocab_size"] = strconv.Itoa(tok.VocabSize())

	klog.Infof("run %s: generating examples from %d input(s) with %d workers", sw.RunID, max(len(args), 1), cfg.Pipeline.Workers)
	start := time.Now()
	stats, err := p.Run(cmd.Context(), inputLines(args), sw)
	elapsed := time.Since(start)
	klog.Infof("run %s: %s in %s", sw.RunID, stats, elapsed)
	if err != nil {
		return errors.WithMessagef(err, "run %s stopped after %d shards", sw.RunID, len(sw.Paths))
	}
	fmt.Fprintln(cmd.OutOrStdout(), renderSummary(stats, sw, elapsed))
	return nil
}

// inputLines iterates over the lines of every file in paths, in order. An empty paths, or "-", reads from stdin.
func inputLines(paths []string) iter.Seq2[corpus.Line, error] {
	if len(paths) == 0 {
		paths = []string{"-"}
	}
	return func(yield func(corpus.Line, error) bool) {
		for _, path := range paths {
			if path == "-" {
				for line, err := range corpus.FromReader(os.Stdin) {
					if !yield(line, err) {
						return
					}
				}
				continue
			}
			f, err := corpus.Open(path)
			if err != nil {
				yield(corpus.Line{}, err)
				return
			}
			klog.V(1).Infof("reading %q (%d bytes)", path, f.Size())
			for line, err := range f.Lines() {
				if !yield(line, err) {
					_ = f.Close()
					return
				}
			}
			if err := f.Close(); err != nil {
				klog.Warningf("failed to close %q: %v", path, err)
			}
		}
	}
}

// renderSummary formats the result of a run for the terminal.
func renderSummary(stats pipeline.Stats, sw *pipeline.ShardWriter, elapsed time.Duration) string {
	rows := [][2]string{
		{"run id", sw.RunID},
		{"lines", strconv.Itoa(stats.Lines)},
		{"examples", strconv.Itoa(stats.Examples)},
		{"too short", strconv.Itoa(stats.TooShort)},
		{"masking failed", strconv.Itoa(stats.MaskingFailed)},
		{"encode failed", strconv.Itoa(stats.EncodeFailed)},
		{"shards", fmt.Sprintf("%d (%s)", len(sw.Paths), sw.Format)},
		{"output", sw.Dir},
		{"elapsed", elapsed.Round(time.Millisecond).String()},
	}
	return boxStyle.Render(lipgloss.JoinVertical(lipgloss.Left,
		titleStyle.Render("albertgen: done"),
		keyValues(rows),
	))
}
