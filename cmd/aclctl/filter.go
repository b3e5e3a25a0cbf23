package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newFilterCmd(e *env) *cobra.Command {
	var (
		f     decisionFlags
		table string
	)
	cmd := &cobra.Command{
		Use:   "filter",
		Short: "Show the record filter compiled for a user, model and operation",
		Example: `  # Predicate and contributing rules
  aclctl filter --user sales@example.com --model crm.lead

  # The SELECT a listing would run against crm_leads
  aclctl filter --user sales@example.com --model crm.lead --table crm_leads`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			u, op, err := f.resolve(ctx, e)
			if err != nil {
				return err
			}
			compiled, err := e.engine.CompileFilter(ctx, u.ID, f.model, op)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, compiled.String())
			for _, p := range compiled.Problems {
				fmt.Fprintf(out, "  malformed: %v\n", p)
			}

			if table == "" {
				return nil
			}
			sql, err := e.engine.ExplainFilter(ctx, u.ID, f.model, op, e.db.WithContext(ctx).Table(table))
			if err != nil {
				return err
			}
			fmt.Fprintln(out, sql)
			return nil
		},
	}
	f.register(cmd)
	cmd.Flags().StringVar(&table, "table", "", "render the filtered SELECT against this table")
	return cmd
}
