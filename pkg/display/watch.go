package display

import (
	"fmt"

	"github.com/dustin/go-humanize"

	"modm/pkg/provider"
)

// WatchBuffer is the channel capacity Watch consumers should allocate.
// Producers never block on a full channel, they drop; a modest buffer
// keeps the progress display smooth without throttling anything.
const WatchBuffer = 64

// Watch drains fetch events into one display task per resolution and
// returns when the channel is closed. Closing is the producer side's
// job (after all fetches finish); abandoning the channel instead is
// also safe, the fetches just go quiet.
func Watch(d Display, events <-chan provider.FetchEvent) {
	tasks := make(map[string]Task)
	task := func(res provider.ModResolution) Task {
		t, ok := tasks[res.URL]
		if !ok {
			t = d.StartTask(res.URL)
			tasks[res.URL] = t
		}
		return t
	}

	for ev := range events {
		switch e := ev.(type) {
		case provider.FetchProgress:
			t := task(e.Res)
			if e.Size > 0 {
				percent := int(float64(e.Progress) / float64(e.Size) * 100)
				t.Progress(percent, fmt.Sprintf("%s / %s",
					humanize.Bytes(e.Progress), humanize.Bytes(e.Size)))
			} else {
				t.Progress(0, fmt.Sprintf("%s downloaded", humanize.Bytes(e.Progress)))
			}
		case provider.FetchComplete:
			t := task(e.Res)
			t.Done()
			delete(tasks, e.Res.URL)
		}
	}
	// Fetches that errored out never send Complete; close their tasks.
	for _, t := range tasks {
		t.Done()
	}
}
