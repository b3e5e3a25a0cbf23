package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"erp_access/internal/seed"
)

func newSeedCmd(e *env) *cobra.Command {
	var (
		dir          string
		skipBaseline bool
	)
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Install the baseline and any manifests in --dir",
		Example: `  # Baseline plus the default administrator
  aclctl seed

  # Baseline plus a directory of module manifests
  aclctl seed --dir ./permissions`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if dir == "" {
				dir = e.cfg.SeedDir
			}
			ctx := cmd.Context()

			var (
				sum seed.Summary
				err error
			)
			if skipBaseline {
				if dir == "" {
					return fmt.Errorf("--no-baseline needs --dir")
				}
				manifests, lerr := seed.LoadDir(dir)
				if lerr != nil {
					return lerr
				}
				sum, err = seed.Apply(ctx, e.store, e.log, manifests...)
			} else {
				sum, err = seed.FirstSetup(ctx, e.store, e.log, dir)
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), sum.String())
			return nil
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "directory of *.yaml manifests")
	cmd.Flags().BoolVar(&skipBaseline, "no-baseline", false, "apply only the manifests in --dir")
	return cmd
}
