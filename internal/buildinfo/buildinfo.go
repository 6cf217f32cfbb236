// Package buildinfo carries values stamped at link time, e.g.
//
//	go build -ldflags "-X routedesk/internal/buildinfo.Version=1.2.0"
package buildinfo

import "runtime"

var (
	Version = "dev"
	Commit  = ""
	BuiltAt = ""
)

func Info() map[string]string {
	return map[string]string{
		"service":   "routedesk",
		"version":   Version,
		"commit":    Commit,
		"builtAt":   BuiltAt,
		"goVersion": runtime.Version(),
	}
}
