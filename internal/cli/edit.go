package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/ViaSnake/mcaselector/internal/field"
	"github.com/ViaSnake/mcaselector/internal/service"
	"github.com/ViaSnake/mcaselector/internal/validation"
)

func newEditCommand(opts *options) *cobra.Command {
	var (
		query   string
		changes []string
		forces  []string
		dryRun  bool
		asJSON  bool
	)

	cmd := &cobra.Command{
		Use:   "edit <path>...",
		Short: "Edit chunk fields in region files",
		Long: `Applies field edits to every chunk matching the filter. Paths may be region
files or directories holding them.

--change only rewrites fields a chunk already has. --force sets them even
where they are missing. Time fields accept ticks or durations such as 1d 2h.`,
		Example: `  mcaselector edit world/region --filter "InhabitedTime < 5m" --change LastUpdate=0
  mcaselector edit r.0.0.mca --force InhabitedTime=1d --dry-run`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v := validation.NewValidator()

			chain, err := v.BuildChain(query, nil)
			if err != nil {
				return err
			}
			var specs []validation.EditSpec
			for _, text := range changes {
				specs = append(specs, editSpec(text, field.ModeChange))
			}
			for _, text := range forces {
				specs = append(specs, editSpec(text, field.ModeForce))
			}
			edits, err := v.BuildEdits(specs)
			if err != nil {
				return err
			}
			if len(edits) == 0 {
				return cmd.Help()
			}
			paths, err := v.ExpandPaths(args)
			if err != nil {
				return err
			}

			a, err := opts.newApp(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			return a.runBatch(cmd, &service.BatchJob{
				Paths:  paths,
				Filter: chain,
				Edits:  edits,
				DryRun: dryRun || a.cfg.Pipeline.DryRun,
			}, asJSON)
		},
	}

	cmd.Flags().StringVarP(&query, "filter", "f", "", "filter query, e.g. \"yPos >= 0 AND InhabitedTime < 1h\"")
	cmd.Flags().StringArrayVar(&changes, "change", nil, "change an existing field, e.g. LastUpdate=0 (repeatable)")
	cmd.Flags().StringArrayVar(&forces, "force", nil, "set a field even where missing (repeatable)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "report what would change without writing")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the report as JSON")
	return cmd
}

// editSpec splits "Field=value" text. Text without a value fails parsing
// in the validator.
func editSpec(text string, mode field.Mode) validation.EditSpec {
	name, value, _ := strings.Cut(text, "=")
	return validation.EditSpec{Field: name, Value: value, Mode: mode}
}
