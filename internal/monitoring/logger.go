// Package monitoring routes the diagnostic messages of the mixer, the beam
// simulator and the HTTP layer through one replaceable printf-style sink.
package monitoring

import "log"

// LogFunc is a printf-style log sink.
type LogFunc func(format string, v ...any)

// Logf receives every diagnostic message. It writes through the standard
// logger until SetLogger installs something else.
var Logf LogFunc = log.Printf

// SetLogger installs f as the sink and returns the one it replaces, so callers
// can restore it. A nil f discards messages.
func SetLogger(f LogFunc) LogFunc {
	prev := Logf
	if f == nil {
		f = func(string, ...any) {}
	}
	Logf = f
	return prev
}
