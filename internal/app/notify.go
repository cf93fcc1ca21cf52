package app

import (
	"fmt"

	"github.com/coreos/go-systemd/v22/daemon"

	"tether/internal/pipeline"
	"tether/pkg/logging"
)

// sdNotify forwards state to systemd when tether runs as a Type=notify unit.
// Without NOTIFY_SOCKET it does nothing.
var sdNotify = daemon.SdNotify

func notifySystemd(states ...string) {
	for _, state := range states {
		sent, err := sdNotify(false, state)
		if err != nil {
			logging.Warn("Bootstrap", "Failed to notify systemd: %v", err)
			return
		}
		if !sent {
			return
		}
		logging.Debug("Bootstrap", "Notified systemd: %s", state)
	}
}

// readyStatus summarises a report for systemctl status.
func readyStatus(r *pipeline.Report) string {
	if r == nil {
		return "STATUS=running"
	}
	return fmt.Sprintf("STATUS=%d units active, %d failed",
		r.Count(pipeline.UnitActive), len(r.Failures()))
}
