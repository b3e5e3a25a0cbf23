package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newGroupsCmd(e *env) *cobra.Command {
	var user, has string
	cmd := &cobra.Command{
		Use:   "groups",
		Short: "List a user's effective groups, implied ones included",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			u, err := e.lookupUser(ctx, user)
			if err != nil {
				return err
			}
			if has != "" {
				held, err := e.engine.HasGroup(ctx, u.ID, has)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s: %t\n", u.Email, has, held)
				return nil
			}

			groups, err := e.engine.EffectiveGroups(ctx, u.ID)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "IDENTIFIER\tNAME\tCATEGORY")
			for _, g := range groups {
				fmt.Fprintf(w, "%s\t%s\t%s\n", g.Identifier, g.Name, g.Category)
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&user, "user", "", "user id or email")
	cmd.Flags().StringVar(&has, "has", "", "only report whether the user holds this group")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}
