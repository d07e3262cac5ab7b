package linkpm

import (
	"context"

	"github.com/LeoCommon/linkpm/pkg/log"
	"go.uber.org/zap"
)

// OnHostWake is called when the modem asserts its host wakeup line.
// It may fire spuriously, the work is deferred to the queue.
func (m *Manager) OnHostWake() {
	m.post("host-wake", func() {
		if !m.conf.HubPresent {
			if m.transport != nil {
				m.transport.MakeResume()
			}
			return
		}

		if m.initLock {
			log.Debug("host wakeup ignored, hub init lock held")
			return
		}

		if m.state == HubActive {
			return
		}

		m.isConnected()
	})
}

// IsConnected reports whether the link can carry traffic. If the hub is not
// active yet the hub work is kicked.
func (m *Manager) IsConnected(ctx context.Context) bool {
	var connected bool
	err := m.call(ctx, "is-connected", func() error {
		connected = m.isConnected()
		return nil
	})
	if err != nil {
		return false
	}

	return connected
}

func (m *Manager) isConnected() bool {
	if m.conf.HubPresent {
		if m.initLock {
			return false
		}

		if m.state != HubActive {
			log.Debug("hub not active", zap.Stringer("state", m.state))
			m.scheduleHubWork(0)
			return false
		}
	}

	if !m.transportAttached() {
		log.Error("link transport not connected")
		return false
	}

	return true
}
