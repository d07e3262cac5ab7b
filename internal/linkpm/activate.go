package linkpm

import (
	"context"
	"errors"
	"time"

	"github.com/LeoCommon/linkpm/pkg/log"
	"go.uber.org/zap"
)

// Activate asks the hub to become active and blocks until it is or timeout
// passed. Cancelling ctx takes the timeout path, also while the request still
// waits behind other queue work. Safe for concurrent callers, but never call
// it from a queue task.
func (m *Manager) Activate(ctx context.Context, timeout time.Duration) (ActivationResult, error) {
	if !m.conf.HubPresent {
		return Activated, nil
	}

	start := time.Now()

	var done <-chan struct{}
	err := m.call(ctx, "activate", func() error {
		if m.state == HubActive {
			return nil
		}

		// The caller gave up before we got here, leave slave wake alone
		if err := ctx.Err(); err != nil {
			return err
		}

		done = m.completion.arm()
		if err := m.lines.Set(m.conf.Lines.SlaveWake, true); err != nil {
			log.Error("could not assert slave wakeup", zap.Error(err))
		}
		return nil
	})
	if errors.Is(err, ErrClosed) {
		return TimedOut, err
	}
	if err != nil {
		// The request may still be queued or may have just run, undo it in order
		m.post("activate-cancel", m.releaseSlaveWake)
		return m.activationTimedOut(start, timeout)
	}

	if done == nil {
		return Activated, nil
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-done:
		log.Debug("hub activation wait done", zap.Duration("took", time.Since(start)))
		if m.transport != nil {
			m.transport.MakeResume()
		}
		m.recorder.ObserveActivation(Activated.String(), time.Since(start))
		return Activated, nil
	case <-timer.C:
	case <-ctx.Done():
	}

	m.releaseSlaveWake()
	return m.activationTimedOut(start, timeout)
}

func (m *Manager) releaseSlaveWake() {
	if err := m.lines.Set(m.conf.Lines.SlaveWake, false); err != nil {
		log.Error("could not release slave wakeup", zap.Error(err))
	}
}

// activationTimedOut kicks the transport retry, slave wake is released by the caller
func (m *Manager) activationTimedOut(start time.Time, timeout time.Duration) (ActivationResult, error) {
	log.Error("hub on timeout - retry", zap.Duration("timeout", timeout))
	if m.transport != nil {
		m.transport.EnqueueRetry()
	}
	m.recorder.ObserveActivation(TimedOut.String(), time.Since(start))

	return TimedOut, NewActivationTimedOutError(timeout)
}
