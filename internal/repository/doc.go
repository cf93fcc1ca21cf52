// Package repository installs units from a directory of YAML manifests.
//
// Each unit lives in <dir>/<identifier>.yaml:
//
//	identifier: http-server
//	version: 1.2.0
//	startLevel: 3
//	requires: [config, logger]
//	provides: [http]
//	activator:
//	  start: [./bin/http-server, --port, "8080"]
//	  daemon: true
//
// Activator arguments, env values and dir are Go templates rendered at
// install time (see package template), so "{{ .Unit.Version }}" and sprig
// functions are available.
//
// Repository implements pipeline.Installer and ExecActivator runs the
// manifest's commands. Scanner watches the directory with fsnotify and
// reports debounced Added, Changed and Removed changes for hot deployment.
package repository
