package linkpm

import (
	"context"

	"github.com/LeoCommon/linkpm/pkg/log"
	"go.uber.org/zap"
)

type callerKey struct{}

// WithCaller attaches the identity of a privileged caller for logging
func WithCaller(ctx context.Context, caller string) context.Context {
	return context.WithValue(ctx, callerKey{}, caller)
}

func CallerFromContext(ctx context.Context) string {
	if c, ok := ctx.Value(callerKey{}).(string); ok && c != "" {
		return c
	}
	return "unknown"
}

// SetLinkActive drives the link active line
func (m *Manager) SetLinkActive(ctx context.Context, active bool) {
	log.Info("link active requested", zap.Bool("active", active), zap.String("caller", CallerFromContext(ctx)))
	if err := m.lines.Set(m.conf.Lines.LinkActive, active); err != nil {
		log.Error("could not drive link active line", zap.Error(err))
	}
}

// GetHostWake returns true if the modem asserts host wakeup, the line is active low
func (m *Manager) GetHostWake(ctx context.Context) bool {
	level, err := m.lines.Get(m.conf.Lines.HostWake)
	if err != nil {
		log.Error("could not read host wakeup line", zap.Error(err))
		return false
	}

	return !level
}

// GetConnected returns whether the link transport is attached
func (m *Manager) GetConnected(ctx context.Context) bool {
	return m.transport != nil && m.transport.Attached()
}

// PortOn powers the hub port after the modem was (re)booted
func (m *Manager) PortOn(ctx context.Context) error {
	log.Info("hub port on requested", zap.String("caller", CallerFromContext(ctx)))

	return m.call(ctx, "port-on", func() error {
		// Host wakeups from the modem are handled again from here on
		m.initLock = false

		if m.rootHub != nil {
			if err := m.rootHub.Resume(); err != nil {
				log.Error("could not resume root hub", zap.Error(err))
			}
			if err := m.rootHub.ForbidAutosuspend(); err != nil {
				log.Error("could not forbid root hub autosuspend", zap.Error(err))
			}
		}

		if m.portPower == nil {
			return NewHardwareNotConfiguredError("port power")
		}

		if err := m.setPortPower(true); err != nil {
			log.Error("hub on failed", zap.Error(err))
			m.recorder.IncPowerFailure("on")
			m.lastError = NewPowerTransitionFailedError(true, err)
			return m.lastError
		}

		switch m.state {
		case HubOff:
			m.setState(HubResuming)
		case HubResuming:
		default:
			log.Warn("hub port powered while already up", zap.Stringer("state", m.state))
		}

		return nil
	})
}

// PortOff disconnects the link and powers the hub off before the modem is reset
func (m *Manager) PortOff(ctx context.Context) error {
	log.Info("hub port off requested", zap.String("caller", CallerFromContext(ctx)))

	return m.call(ctx, "port-off", func() error {
		if m.transportAttached() {
			if err := m.transport.ForceDisconnect(); err != nil {
				log.Error("force disconnect failed", zap.Error(err))
			} else {
				log.Info("force disconnect maybe modem reset")
			}
		}

		if err := m.hubStandby(); err != nil {
			log.Error("hub standby failed", zap.Error(err))
			return err
		}

		m.initLock = true
		m.handshakeDone = false
		return nil
	})
}

// BlockAutosuspend keeps the transport from ever suspending on its own
func (m *Manager) BlockAutosuspend(ctx context.Context) error {
	log.Info("blocked autosuspend", zap.String("caller", CallerFromContext(ctx)))

	return m.call(ctx, "block-autosuspend", func() error {
		m.blockAutosuspend = true

		if !m.transportAttached() {
			log.Error("block autosuspend failed")
			return NewNoTransportAttachedError()
		}

		return m.transport.ForbidAutosuspend()
	})
}

// EnableAutosuspend restores opportunistic transport suspend
func (m *Manager) EnableAutosuspend(ctx context.Context) error {
	log.Info("autosuspend enabled", zap.String("caller", CallerFromContext(ctx)))

	return m.call(ctx, "enable-autosuspend", func() error {
		m.blockAutosuspend = false

		if !m.transportAttached() {
			log.Error("enable autosuspend failed")
			return NewNoTransportAttachedError()
		}

		return m.transport.AllowAutosuspend(m.conf.AutosuspendDelay)
	})
}
