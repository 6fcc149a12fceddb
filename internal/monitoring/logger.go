// Package monitoring carries the process-wide diagnostic logger shared
// by packages that also run embedded in quiet tools (the sweep runner,
// tests). It defaults to the standard logger.
package monitoring

import "log"

// Logf emits one diagnostic line. Replace it via SetLogger to redirect
// or silence a package without threading a logger through every call.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger swaps the diagnostic sink. A nil sink mutes logging.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}
