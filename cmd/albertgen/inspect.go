package main

import (
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gomlx/albertdata/features"
	"github.com/gomlx/albertdata/features/parquetfile"
	"github.com/gomlx/albertdata/features/safetensors"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func newInspectCmd() *cobra.Command {
	inspectCmd := &cobra.Command{
		Use:   "inspect SHARD",
		Short: "Print the contents of a generated shard (.parquet or .safetensors)",
		Args:  cobra.ExactArgs(1),
		RunE:  InspectHandler,
	}
	inspectCmd.Flags().IntP("num", "n", 3, "Number of examples to print")
	return inspectCmd
}

// shardExample is the subset of an example printed by inspect.
type shardExample struct {
	OrderLabel      int64
	Tokens          []int64
	TargetPositions []int64
	TargetIDs       []int64
}

// InspectHandler prints the layout and first examples of a shard.
func InspectHandler(cmd *cobra.Command, args []string) error {
	num, err := cmd.Flags().GetInt("num")
	if err != nil {
		return err
	}
	shardPath := args[0]
	var (
		summary  [][2]string
		examples []shardExample
	)
	switch ext := filepath.Ext(shardPath); ext {
	case ".parquet":
		summary, examples, err = readParquetShard(shardPath, num)
	case ".safetensors":
		summary, examples, err = readSafetensorsShard(shardPath, num)
	default:
		return errors.Errorf("unknown shard extension %q, expected .parquet or .safetensors", ext)
	}
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, titleStyle.Render(filepath.Base(shardPath)))
	fmt.Fprintln(out, keyValues(summary))
	for ii, ex := range examples {
		printExample(out, ii, ex)
	}
	return nil
}

func readParquetShard(shardPath string, num int) ([][2]string, []shardExample, error) {
	rows, err := parquetfile.ReadFile(shardPath)
	if err != nil {
		return nil, nil, err
	}
	summary := [][2]string{{"format", "parquet"}, {"examples", fmt.Sprint(len(rows))}}
	var examples []shardExample
	for _, row := range rows[:min(num, len(rows))] {
		examples = append(examples, shardExample{
			OrderLabel:      row.OrderLabel,
			Tokens:          row.Tokens,
			TargetPositions: row.TargetPositions,
			TargetIDs:       row.TargetIDs,
		})
	}
	return summary, examples, nil
}

func readSafetensorsShard(shardPath string, num int) ([][2]string, []shardExample, error) {
	r, err := safetensors.Open(shardPath)
	if err != nil {
		return nil, nil, err
	}
	defer func() { _ = r.Close() }()

	summary := [][2]string{{"format", "safetensors"}}
	flat := make(map[string][]int64, len(features.Names))
	n := 0
	for _, name := range features.Names {
		t, err := r.ReadTensor(name)
		if err != nil {
			return nil, nil, errors.WithMessagef(err, "in shard %q", shardPath)
		}
		summary = append(summary, [2]string{name, t.Shape().String()})
		if flat[name], err = tensors.CopyFlatData[int64](t); err != nil {
			return nil, nil, errors.WithMessagef(err, "tensor %q of shard %q", name, shardPath)
		}
		if name == features.OrderLabel {
			n = t.Shape().Dim(0)
		}
	}
	keys := make([]string, 0, len(r.Header.Metadata))
	for key := range r.Header.Metadata {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		summary = append(summary, [2]string{key, r.Header.Metadata[key]})
	}

	if n == 0 {
		return summary, nil, nil
	}
	seqLen := len(flat[features.Tokens]) / n
	numLabels := len(flat[features.TargetIDs]) / n
	var examples []shardExample
	for ii := range min(num, n) {
		examples = append(examples, shardExample{
			OrderLabel:      flat[features.OrderLabel][ii],
			Tokens:          flat[features.Tokens][ii*seqLen : (ii+1)*seqLen],
			TargetPositions: flat[features.TargetPositions][ii*numLabels : (ii+1)*numLabels],
			TargetIDs:       flat[features.TargetIDs][ii*numLabels : (ii+1)*numLabels],
		})
	}
	return summary, examples, nil
}

func printExample(w io.Writer, index int, ex shardExample) {
	// Trailing padding isn't interesting.
	tokens := ex.Tokens
	for len(tokens) > 0 && tokens[len(tokens)-1] == 0 {
		tokens = tokens[:len(tokens)-1]
	}
	var targets []string
	for ii, pos := range ex.TargetPositions {
		if pos == 0 {
			break
		}
		targets = append(targets, fmt.Sprintf("%d:%d", pos, ex.TargetIDs[ii]))
	}
	fmt.Fprintf(w, "\n%s order_label=%d length=%d\n", titleStyle.Render(fmt.Sprintf("#%d", index)), ex.OrderLabel, len(tokens))
	fmt.Fprintf(w, "  tokens:  %v\n", tokens)
	fmt.Fprintf(w, "  targets: %s\n", strings.Join(targets, " "))
}
