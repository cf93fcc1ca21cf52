package pipeline

import (
	"tether/internal/api"
)

const (
	markerInstalled = "installed"
	markerResolved  = "resolved"
	markerActive    = "active"
)

// names derives every service name of a pipeline from its root.
type names struct {
	root api.ServiceName
}

func (n names) phase(p Phase) api.ServiceName {
	return n.root.Append("phase", string(p))
}

func (n names) marker(m string) api.ServiceName {
	return n.root.Append("marker", m)
}

func (n names) unitInstalled(id string) api.ServiceName {
	return n.root.Append("unit", id, "installed")
}

func (n names) unitActive(id string) api.ServiceName {
	return n.root.Append("unit", id, "active")
}
