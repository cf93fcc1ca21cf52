// Package api holds the types shared by the registry, the pipeline and their
// callers: service names, lifecycle states and modes, transitions and the
// structural errors the registry returns.
//
// # Service names
//
// A ServiceName is an ordered list of non-empty segments. Its canonical
// string form joins the segments with dots and quotes segments that contain a
// dot or a quote:
//
//	api.MustServiceName("tether", "bootstrap", "unit", "org.example.core", "active").String()
//	// tether.bootstrap.unit."org.example.core".active
//
// ServiceName values are comparable and usable as map keys.
//
// # Errors
//
// Registry errors are typed so callers can branch on them with the Is*
// helpers or errors.As:
//
//   - NotFoundError: the name is not registered
//   - DuplicateNameError: the name is already registered
//   - IllegalStateError: the operation needs a different state
//   - InvalidDefinitionError: the definition breaks a structural rule
//   - CycleError: the registration would close a dependency cycle
package api
