package linkpm

import (
	"github.com/LeoCommon/linkpm/pkg/log"
	"go.uber.org/zap"
)

// OnSuspendPrepare is called before the system suspends. The hub is forced
// off, unless a power up retry is pending, that one defers itself until resume.
func (m *Manager) OnSuspendPrepare() {
	m.post("suspend-prepare", func() {
		if m.suspendInProgress {
			return
		}
		m.suspendInProgress = true

		if !m.conf.HubPresent {
			return
		}

		// A queued retry defers itself until resume, anything else is forced off
		if m.state == HubResuming && m.hubWork != nil {
			log.Info("hub resuming, standby deferred to the pending hub work")
			return
		}

		// Best effort, the system has to suspend anyway
		if err := m.hubStandby(); err != nil {
			log.Warn("hub standby before suspend failed", zap.Error(err))
		}
	})
}

// OnPostResume is called once the system resumed
func (m *Manager) OnPostResume() {
	m.post("post-resume", func() {
		m.suspendInProgress = false
	})
}
