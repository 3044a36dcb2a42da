package cli

import (
	"github.com/spf13/cobra"

	"github.com/ViaSnake/mcaselector/internal/validation"
)

func newRunCommand(opts *options) *cobra.Command {
	var (
		dryRun bool
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "run <job.yaml>",
		Short: "Run a batch job file",
		Long: `Runs the paths, filters and edits described by a YAML job file:

  paths: [world/region]
  query: "InhabitedTime < 5m"
  edits:
    - {field: LastUpdate, value: "0", mode: change}
  dry_run: false`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jf, err := validation.LoadJobFile(args[0])
			if err != nil {
				return err
			}
			job, err := validation.NewValidator().ValidateJob(jf)
			if err != nil {
				return err
			}

			a, err := opts.newApp(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			job.DryRun = job.DryRun || dryRun || a.cfg.Pipeline.DryRun
			return a.runBatch(cmd, job, asJSON)
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "report what would change without writing")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the report as JSON")
	return cmd
}
