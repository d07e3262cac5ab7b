package linkpm

import (
	"context"
	"time"

	"github.com/LeoCommon/linkpm/pkg/log"
	"go.uber.org/zap"
)

// setState moves the hub machine along one of the enumerated edges
func (m *Manager) setState(to HubState) bool {
	from := m.state
	if !validTransition(from, to) {
		log.Error("refusing invalid hub transition", zap.Stringer("from", from), zap.Stringer("to", to))
		return false
	}

	if from == HubResuming && to != HubResuming {
		m.retryCount = 0
	}

	m.state = to
	if from != to {
		log.Debug("hub state changed", zap.Stringer("from", from), zap.Stringer("to", to))
		m.recorder.IncTransition(from.String(), to.String())
	}

	return true
}

// scheduleHubWork queues the hub work unless it is pending already
func (m *Manager) scheduleHubWork(delay time.Duration) {
	if m.hubWork != nil {
		return
	}

	t, err := m.queue.after("hub", delay, m.hubWorkTick)
	if err != nil {
		return
	}
	m.hubWork = t
}

func (m *Manager) cancelHubWork() {
	if m.hubWork == nil {
		return
	}

	m.queue.cancel(m.hubWork)
	m.hubWork = nil
}

// rescheduleHubWork replaces a pending hub work with one due after delay
func (m *Manager) rescheduleHubWork(delay time.Duration) {
	m.cancelHubWork()
	m.scheduleHubWork(delay)
}

func (m *Manager) setPortPower(on bool) error {
	ctx, cancel := context.WithTimeout(m.ctx, PortPowerTimeout)
	defer cancel()

	return m.portPower(ctx, on)
}

func (m *Manager) acquireRootHub() {
	if m.rootHub == nil || m.rootHubHeld {
		return
	}

	if err := m.rootHub.Acquire(); err != nil {
		log.Error("could not resume root hub", zap.Error(err))
		return
	}
	m.rootHubHeld = true
}

func (m *Manager) releaseRootHub() {
	if m.rootHub == nil || !m.rootHubHeld {
		return
	}

	if err := m.rootHub.Release(); err != nil {
		log.Error("could not release root hub", zap.Error(err))
	}
	m.rootHubHeld = false
}

func (m *Manager) acquireSuspendHold() {
	if m.suspendHeld {
		return
	}

	if err := m.blocker.Acquire(); err != nil {
		log.Warn("could not block system suspend", zap.Error(err))
		return
	}
	m.suspendHeld = true
}

func (m *Manager) releaseSuspendHold() {
	if !m.suspendHeld {
		return
	}

	if err := m.blocker.Release(); err != nil {
		log.Warn("could not release suspend block", zap.Error(err))
	}
	m.suspendHeld = false
}

// hubWorkTick is the delayed hub work, it advances the machine by one step
func (m *Manager) hubWorkTick() {
	m.hubWork = nil

	if m.state == HubActive {
		return
	}

	if m.portPower == nil {
		log.Error("hub power function not assigned")
		m.lastError = NewHardwareNotConfiguredError("port power")
		return
	}

	// The bus below us may be mid-transition, check again later
	if m.suspendInProgress {
		log.Info("system suspending, deferring hub work", zap.Stringer("state", m.state))
		m.scheduleHubWork(m.timing.SuspendDeferDelay)
		return
	}

	switch m.state {
	case HubOff:
		m.hubPowerUp()
	case HubResuming:
		m.hubResumingTick()
	case HubPreactive:
		m.hubSettleActive()
	}
}

func (m *Manager) hubPowerUp() {
	m.setState(HubResuming)
	log.Info("hub off->on")

	m.acquireRootHub()
	if err := m.setPortPower(true); err != nil {
		log.Error("hub on failed", zap.Error(err))
		m.recorder.IncPowerFailure("on")
		m.lastError = NewPowerTransitionFailedError(true, err)

		if err := m.setPortPower(false); err != nil {
			log.Error("hub off failed", zap.Error(err))
		}

		m.setState(HubOff)
		m.releaseRootHub()
		return
	}

	m.acquireSuspendHold()
	m.scheduleHubWork(m.timing.PowerUpDelay)
}

func (m *Manager) hubResumingTick() {
	m.retryCount++
	m.recorder.IncRetryTick()

	if m.retryCount > m.timing.MaxRetries {
		// Not an error, whoever waits for the hub times out on its own
		log.Warn("hub did not enumerate, giving up", zap.Int("retries", m.retryCount-1))
		m.recorder.IncAbandoned()
		m.setState(HubOff)
		m.releaseRootHub()
		m.releaseSuspendHold()
		return
	}

	log.Debug("hub resuming", zap.Int("retry", m.retryCount))
	m.scheduleHubWork(m.timing.RetryDelay)
}

func (m *Manager) hubSettleActive() {
	m.setState(HubActive)
	log.Info("hub active")

	m.lastError = nil
	m.releaseSuspendHold()
	m.completion.complete()
	m.releaseRootHub()
}

// hubStandby forces the hub off. A failing power request is logged, the hub
// is considered off regardless.
func (m *Manager) hubStandby() error {
	log.Info("wait hub standby")

	if m.portPower == nil {
		log.Error("hub power function not assigned")
		return NewHardwareNotConfiguredError("port power")
	}

	var result error
	if err := m.setPortPower(false); err != nil {
		log.Error("hub off failed", zap.Error(err))
		m.recorder.IncPowerFailure("off")
		result = NewPowerTransitionFailedError(false, err)
		m.lastError = result
	}

	m.cancelHubWork()
	m.setState(HubOff)
	m.releaseRootHub()
	m.releaseSuspendHold()

	return result
}

// OnHubEnumerated is the confirmation that the hub came up on the bus and the
// companion finished its handshake. It is the only way into preactive.
func (m *Manager) OnHubEnumerated() {
	m.post("hub-enumerated", func() {
		if !m.conf.HubPresent {
			return
		}

		if m.state != HubResuming {
			log.Debug("ignoring hub enumeration", zap.Stringer("state", m.state))
			return
		}

		m.setState(HubPreactive)
		m.handshakeDone = true
		m.rescheduleHubWork(0)
	})
}
