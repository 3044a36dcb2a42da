package cli

import (
	"github.com/spf13/cobra"

	"github.com/ViaSnake/mcaselector/internal/errors"
	"github.com/ViaSnake/mcaselector/internal/service"
	"github.com/ViaSnake/mcaselector/internal/validation"
)

func newSelectCommand(opts *options) *cobra.Command {
	var (
		query  string
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "select <path>...",
		Short: "Count chunks matching a filter",
		Long: `Evaluates the filter against every chunk and reports how many match.
Nothing is written.`,
		Example: `  mcaselector select world/region --filter "yPos < 0 OR Status != full"`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v := validation.NewValidator()

			chain, err := v.BuildChain(query, nil)
			if err != nil {
				return err
			}
			if len(chain) == 0 {
				return errors.FilterConfiguration("select needs a --filter", nil)
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
				DryRun: true,
			}, asJSON)
		},
	}

	cmd.Flags().StringVarP(&query, "filter", "f", "", "filter query")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the report as JSON")
	return cmd
}
