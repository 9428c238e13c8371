package cmd

import (
	"github.com/spf13/cobra"

	"modm/pkg/display"
)

func newProvidersCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "providers",
		Short: "List registered provider factories and their parameters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			t := &display.Table{Header: []string{"PROVIDER", "PARAMETER", "DESCRIPTION"}}
			for _, f := range a.store.Registry().Factories() {
				if len(f.Parameters) == 0 {
					t.Rows = append(t.Rows, []string{f.ID, "-", "-"})
					continue
				}
				for _, p := range f.Parameters {
					desc := p.Description
					if p.Link != "" {
						desc += " (" + p.Link + ")"
					}
					t.Rows = append(t.Rows, []string{f.ID, p.ID, desc})
				}
			}
			display.RenderTable(a.disp, t)
			return nil
		},
	}
}
