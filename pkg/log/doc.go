// Package log provides named, leveled loggers for the aurorax client.
//
// Every component asks for its own logger once and keeps it:
//
//	l := log.ForService("search:conjunctions")
//	l.Infof("request %s submitted", id)
//	l.Debugf("poll #%d: data_uri=%v", n, uri) // only printed when debug is on
//
// Lines are rendered as `<date> <time> LEVEL [name] message`.
//
// Debug output is off by default. It can be enabled for the whole process
// (SetGlobalDebug, wired to the --debug CLI flag) or for a single logger
// name (EnableDebugFor), which is handy when only the transport or a single
// search domain needs to be inspected.
//
// Tests redirect output with SetOutput(&bytes.Buffer{}).
//
// The package name collides with the standard library log package. Alias one
// of them when both are needed.
package log
