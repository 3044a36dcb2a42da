package cli

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/ViaSnake/mcaselector/internal/model"
)

func printJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}

// progressPrinter reports finished containers on stderr
func progressPrinter(cmd *cobra.Command, total int) func(model.ContainerResult) {
	done := 0
	return func(res model.ContainerResult) {
		done++
		fmt.Fprintf(cmd.ErrOrStderr(), "\r[%d/%d] %s", done, total, filepath.Base(res.Path))
		if done == total {
			fmt.Fprintln(cmd.ErrOrStderr())
		}
	}
}

func printReport(cmd *cobra.Command, r *model.Report) {
	out := cmd.OutOrStdout()
	t := r.Totals
	mode := ""
	if r.DryRun {
		mode = " (dry run)"
	}

	fmt.Fprintf(out, "Batch %s finished in %s%s\n", r.BatchID, r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond), mode)
	fmt.Fprintf(out, "Containers: %s (done %s, failed %s, written %s)\n",
		humanize.Comma(int64(t.Containers)), humanize.Comma(int64(t.Done)),
		humanize.Comma(int64(t.Failed)), humanize.Comma(int64(t.Written)))
	fmt.Fprintf(out, "Chunks: %s scanned, %s selected, %s edited, %s errors\n",
		humanize.Comma(int64(t.Chunks)), humanize.Comma(int64(t.Selected)),
		humanize.Comma(int64(t.Edited)), humanize.Comma(int64(t.ChunkErrors)))
	fmt.Fprintf(out, "Peak resident containers: %d\n", r.PeakResident)

	for _, res := range r.Containers {
		if res.Status == model.JobStateFailed {
			fmt.Fprintf(out, "  FAILED %s: %s\n", res.Path, res.Error)
		}
		for _, ce := range res.ChunkErrors {
			fmt.Fprintf(out, "  chunk %d,%d of %s (DataVersion %d): %s\n",
				ce.Coord.X, ce.Coord.Z, filepath.Base(res.Path), ce.DataVersion, ce.Message)
		}
	}
}
