package host

import "log"

// LogNotifier writes toasts to the process log. The HTTP layer surfaces
// operation outcomes in responses, so the log is the panel-side record.
type LogNotifier struct{}

func (LogNotifier) Info(msg string)    { log.Printf("[toast] info: %s", msg) }
func (LogNotifier) Success(msg string) { log.Printf("[toast] success: %s", msg) }
func (LogNotifier) Warning(msg string) { log.Printf("[toast] warning: %s", msg) }
func (LogNotifier) Error(msg string)   { log.Printf("[toast] error: %s", msg) }
