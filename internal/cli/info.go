package cli

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/ViaSnake/mcaselector/internal/field"
	"github.com/ViaSnake/mcaselector/internal/model"
	"github.com/ViaSnake/mcaselector/internal/storage/region"
	"github.com/ViaSnake/mcaselector/internal/version"
)

// chunkInfo is one row of the info command
type chunkInfo struct {
	X           int               `json:"x"`
	Z           int               `json:"z"`
	DataVersion int32             `json:"data_version"`
	Layout      string            `json:"layout,omitempty"`
	Compression string            `json:"compression"`
	Timestamp   time.Time         `json:"timestamp"`
	Fields      map[string]string `json:"fields"`
}

type regionInfo struct {
	Path    string      `json:"path"`
	RegionX int         `json:"region_x"`
	RegionZ int         `json:"region_z"`
	Size    int64       `json:"size"`
	Chunks  []chunkInfo `json:"chunks"`
}

func newInfoCommand(opts *options) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "info <file>",
		Short: "List the chunks of a region file",
		Long: `Lists every occupied chunk with its data version, schema layout and the
current value of each editable field.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.newApp(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			info, err := describeRegion(a.registry, args[0])
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(cmd, info)
			}
			printRegionInfo(cmd, info)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print as JSON")
	return cmd
}

func describeRegion(reg *version.Registry, path string) (*regionInfo, error) {
	st, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	c, err := region.Load(path)
	if err != nil {
		return nil, err
	}

	info := &regionInfo{Path: path, RegionX: c.RegionX, RegionZ: c.RegionZ, Size: st.Size()}
	for _, ch := range c.Chunks {
		if ch == nil {
			continue
		}
		row := chunkInfo{
			X:           ch.Coord.X,
			Z:           ch.Coord.Z,
			DataVersion: ch.DataVersion,
			Compression: compressionName(ch),
			Timestamp:   time.Unix(int64(ch.Timestamp), 0).UTC(),
			Fields:      make(map[string]string),
		}
		if a, err := reg.Resolve(ch.DataVersion); err == nil {
			row.Layout = a.Name()
		}
		for _, t := range field.Types() {
			f, _ := field.New(t)
			if v, ok := f.OldValueString(reg, ch); ok {
				row.Fields[t.String()] = v
			}
		}
		info.Chunks = append(info.Chunks, row)
	}
	return info, nil
}

func compressionName(ch *model.Chunk) string {
	ct := ch.Compression
	if ch.External {
		ct |= model.CompressionExternal
	}
	return ct.String()
}

func printRegionInfo(cmd *cobra.Command, info *regionInfo) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s: region %d,%d, %s, %d chunks\n",
		info.Path, info.RegionX, info.RegionZ, humanize.IBytes(uint64(info.Size)), len(info.Chunks))
	if len(info.Chunks) == 0 {
		return
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprint(w, "X\tZ\tDATA VERSION\tLAYOUT\tCOMPRESSION\tSAVED")
	for _, t := range field.Types() {
		fmt.Fprintf(w, "\t%s", t)
	}
	fmt.Fprintln(w)

	for _, row := range info.Chunks {
		layout := row.Layout
		if layout == "" {
			layout = "unknown"
		}
		fmt.Fprintf(w, "%d\t%d\t%d\t%s\t%s\t%s",
			row.X, row.Z, row.DataVersion, layout, row.Compression, humanize.Time(row.Timestamp))
		for _, t := range field.Types() {
			v, ok := row.Fields[t.String()]
			if !ok {
				v = "-"
			}
			fmt.Fprintf(w, "\t%s", v)
		}
		fmt.Fprintln(w)
	}
	_ = w.Flush()
}
