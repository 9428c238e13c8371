package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newCheckCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Verify that each configured provider is usable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			failed := false
			for _, f := range a.store.Registry().Factories() {
				p, err := a.store.GetByID(f.ID)
				if err == nil {
					err = p.Check(cmd.Context())
				}
				if err != nil {
					failed = true
					a.disp.Print(fmt.Sprintf("%-10s FAIL  %v\n", f.ID, err))
					continue
				}
				a.disp.Print(fmt.Sprintf("%-10s OK\n", f.ID))
			}
			if failed {
				return fmt.Errorf("one or more providers failed their check")
			}
			return nil
		},
	}
}
