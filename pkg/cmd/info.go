package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"modm/pkg/display"
)

func newInfoCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "info <spec>...",
		Short: "Show cached metadata for mods without touching the network",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			table := &display.Table{
				Header: []string{"SPEC", "NAME", "VERSION", "AUTHOR", "PINNED"},
			}
			for _, spec := range specs(args) {
				p, err := a.store.Get(spec.ID)
				if err != nil {
					return err
				}
				row := []string{spec.ID, "-", "-", "-", fmt.Sprintf("%t", p.IsPinned(spec, a.cache))}
				if info, ok := p.ModInfo(spec, a.cache); ok {
					row[1], row[3] = info.Name, info.Author
				}
				if version, ok := p.VersionName(spec, a.cache); ok {
					row[2] = version
				}
				table.Rows = append(table.Rows, row)
			}
			display.RenderTable(a.disp, table)
			return nil
		},
	}
}
