// Package template renders the command lines and environment of unit
// activators.
//
// Values are Go text/template strings executed against a Context, with the
// sprig functions available:
//
//	activator:
//	  start: [./bin/server, "--name={{ .Unit.Identifier | lower }}"]
//	  env:
//	    DATA_DIR: "{{ .Repository }}/data/{{ .Unit.Identifier }}"
//	    VERSION: "{{ .Unit.Version | default \"dev\" }}"
//
// Referencing a missing .Env key fails the render instead of producing
// "<no value>".
package template
