// Package display handles terminal output: direct messages, verbose
// logs, and per-download progress tasks fed from fetch progress
// channels.
package display

// Task represents a unit of work that can be monitored.
type Task interface {
	// Log adds a log message associated with this task.
	Log(msg string)
	// Progress updates the completion percentage (0-100) and status
	// message.
	Progress(percent int, message string)
	// Done marks the task as completed. The caller who created the
	// task is responsible for calling it.
	Done()
}

// Display handles the visualization of tasks and logs.
type Display interface {
	// StartTask creates and returns a new tracked Task.
	StartTask(name string) Task
	// Log adds a direct log message to the display.
	Log(msg string)
	// Print adds a primary output message (table, info) to the display.
	Print(msg string)
	// SetVerbose enables or disables verbose logging.
	SetVerbose(v bool)
	// Close ensures final output is rendered.
	Close()
}
