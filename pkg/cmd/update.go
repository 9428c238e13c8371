package cmd

import (
	"log/slog"

	"github.com/spf13/cobra"
)

func newUpdateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "update",
		Short: "Refresh all cached entries from their authoritative sources",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			// Instantiate every registered back-end so its cache section
			// gets refreshed; skip the ones that are not configured.
			for _, f := range a.store.Registry().Factories() {
				if _, err := a.store.GetByID(f.ID); err != nil {
					slog.Warn("skipping unconfigured provider", "factory", f.ID, "error", err)
				}
			}
			return a.store.UpdateAll(cmd.Context(), a.cache)
		},
	}
}
