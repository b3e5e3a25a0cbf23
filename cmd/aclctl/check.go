package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newCheckCmd(e *env) *cobra.Command {
	var f decisionFlags
	cmd := &cobra.Command{
		Use:     "check",
		Short:   "Report whether a user may perform an operation on a model",
		Example: `  aclctl check --user sales@example.com --model crm.lead --op write`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			u, op, err := f.resolve(ctx, e)
			if err != nil {
				return err
			}
			allowed, err := e.engine.CheckModelAccess(ctx, u.ID, f.model, op)
			if err != nil {
				return err
			}
			verdict := "denied"
			if allowed {
				verdict = "allowed"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s %s: %s\n", u.Email, op, f.model, verdict)
			return nil
		},
	}
	f.register(cmd)
	return cmd
}
