package cmd

import (
	"sync"

	"github.com/spf13/cobra"

	"modm/pkg/display"
	"modm/pkg/provider"
)

func newFetchCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "fetch <spec>...",
		Short: "Resolve and download mods into the local blob store",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			responses, err := a.store.ResolveMods(ctx, specs(args), flagUpdate, a.cache)
			if err != nil {
				return err
			}
			resolutions := make([]provider.ModResolution, 0, len(responses))
			for _, resp := range responses {
				resolutions = append(resolutions, resp.Resolution)
			}

			events := make(chan provider.FetchEvent, display.WatchBuffer)
			var wg sync.WaitGroup
			wg.Add(1)
			go func() {
				defer wg.Done()
				display.Watch(a.disp, events)
			}()

			paths, err := a.store.FetchMods(ctx, resolutions, flagUpdate, a.cache, a.blobs, events)
			close(events)
			wg.Wait()
			if err != nil {
				return err
			}
			for _, path := range paths {
				a.disp.Print(path + "\n")
			}
			return nil
		},
	}
}
