package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"modm/pkg/display"
)

func newResolveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <spec>...",
		Short: "Resolve mod specifications without downloading anything",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			responses, err := a.store.ResolveMods(cmd.Context(), specs(args), flagUpdate, a.cache)
			if err != nil {
				return err
			}

			table := &display.Table{
				Header: []string{"NAME", "VERSION", "PINNED", "PROVIDER", "RESOLVED"},
			}
			// Keep input order; map iteration would shuffle it.
			for _, arg := range args {
				resp := responses[specs([]string{arg})[0]]
				if resp == nil {
					continue
				}
				table.Rows = append(table.Rows, []string{
					resp.Info.Name,
					resp.Info.Version,
					fmt.Sprintf("%t", resp.Resolution.Pinned),
					resp.Resolution.ProviderID,
					resp.Resolution.URL,
				})
			}
			display.RenderTable(a.disp, table)
			return nil
		},
	}
}
