package display

import (
	"fmt"
	"io"
	"os"
	"sync"
)

// consoleDisplay writes everything line-oriented to a single writer.
// Mutable
type consoleDisplay struct {
	mu      sync.Mutex
	out     io.Writer
	verbose bool
}

// NewConsole creates a Display that writes to standard error.
func NewConsole() Display {
	return &consoleDisplay{out: os.Stderr}
}

// NewWriterDisplay creates a Display that writes to the provided
// io.Writer.
func NewWriterDisplay(w io.Writer) Display {
	return &consoleDisplay{out: w}
}

func (d *consoleDisplay) StartTask(name string) Task {
	return &consoleTask{disp: d, name: name}
}

func (d *consoleDisplay) Log(msg string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.verbose {
		fmt.Fprintln(d.out, msg)
	}
}

func (d *consoleDisplay) Print(msg string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	fmt.Fprint(d.out, msg)
}

func (d *consoleDisplay) SetVerbose(v bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.verbose = v
}

func (d *consoleDisplay) Close() {}

// consoleTask prints a line whenever the reported percentage moves.
// Mutable
type consoleTask struct {
	disp        *consoleDisplay
	name        string
	lastPercent int
}

func (t *consoleTask) Log(msg string) {
	t.disp.Log(fmt.Sprintf("%s: %s", t.name, msg))
}

func (t *consoleTask) Progress(percent int, message string) {
	if percent == t.lastPercent {
		return
	}
	t.lastPercent = percent
	t.disp.Print(fmt.Sprintf("%s: %3d%% %s\n", t.name, percent, message))
}

func (t *consoleTask) Done() {
	t.disp.Print(fmt.Sprintf("%s: done\n", t.name))
}
