package linkpm

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/LeoCommon/linkpm/pkg/log"
	"go.uber.org/zap"
)

const (
	// DefaultActivationTimeout is how long Activate waits for the hub by default
	DefaultActivationTimeout = 2000 * time.Millisecond

	// PortPowerTimeout bounds a single port power request
	PortPowerTimeout = 5 * time.Second
)

// Timing holds the delays of the hub retry ladder
type Timing struct {
	// PowerUpDelay is the first check after the port was powered
	PowerUpDelay time.Duration
	// RetryDelay is the poll interval while the hub enumerates
	RetryDelay time.Duration
	// SuspendDeferDelay is used while the system is suspending
	SuspendDeferDelay time.Duration
	// MaxRetries is the amount of resuming ticks before the hub is given up
	MaxRetries int
}

func DefaultTiming() Timing {
	return Timing{
		PowerUpDelay:      100 * time.Millisecond,
		RetryDelay:        200 * time.Millisecond,
		SuspendDeferDelay: 500 * time.Millisecond,
		MaxRetries:        50,
	}
}

// Lines names the signal lines used by the manager
type Lines struct {
	HostWake   LineID
	LinkActive LineID
	SlaveWake  LineID
}

// Config is the static platform configuration, immutable after New
type Config struct {
	HubPresent       bool
	Lines            Lines
	AutosuspendDelay time.Duration
	Timing           Timing
}

// Dependencies are the collaborators the manager drives. Only Lines is mandatory.
type Dependencies struct {
	Lines          SignalLines
	PortPower      PortPowerFunc
	RootHub        RootHub
	Transport      Transport
	SuspendBlocker SuspendBlocker
	PowerNotifier  PowerNotifier
	Recorder       Recorder
}

// Manager owns the power state of the hub between host and modem.
// All state below is only touched from the work queue goroutine.
type Manager struct {
	conf   Config
	timing Timing

	lines     SignalLines
	portPower PortPowerFunc
	rootHub   RootHub
	transport Transport
	blocker   SuspendBlocker
	notifier  PowerNotifier
	recorder  Recorder

	queue      *workQueue
	completion *completion

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once

	state             HubState
	retryCount        int
	initLock          bool
	handshakeDone     bool
	suspendInProgress bool
	blockAutosuspend  bool
	rootHubHeld       bool
	suspendHeld       bool
	lastError         error

	// The single delayed hub work item, nil if none is pending
	hubWork *task
}

func New(conf Config, deps Dependencies) (*Manager, error) {
	if deps.Lines == nil {
		return nil, NewHardwareNotConfiguredError("signal lines")
	}

	timing := conf.Timing
	if timing == (Timing{}) {
		timing = DefaultTiming()
	}

	m := &Manager{
		conf:       conf,
		timing:     timing,
		lines:      deps.Lines,
		portPower:  deps.PortPower,
		rootHub:    deps.RootHub,
		transport:  deps.Transport,
		blocker:    deps.SuspendBlocker,
		notifier:   deps.PowerNotifier,
		recorder:   deps.Recorder,
		completion: newCompletion(),
		state:      HubOff,
		// Wake events are ignored until the modem was powered on once
		initLock: true,
	}

	if m.blocker == nil {
		m.blocker = noopBlocker{}
	}
	if m.recorder == nil {
		m.recorder = noopRecorder{}
	}

	m.ctx, m.cancel = context.WithCancel(context.Background())
	m.queue = newWorkQueue()

	if m.notifier != nil {
		m.notifier.Register(m)
	}

	log.Info("link power manager initialized",
		zap.Bool("hub", conf.HubPresent),
		zap.String("hostwake", string(conf.Lines.HostWake)),
		zap.String("linkactive", string(conf.Lines.LinkActive)),
		zap.String("slavewake", string(conf.Lines.SlaveWake)))

	return m, nil
}

// Close unregisters from suspend notifications, cancels the pending hub work
// and stops the work queue. The root hub reference must not be held anymore.
func (m *Manager) Close() error {
	var err error
	m.closeOnce.Do(func() {
		if m.notifier != nil {
			m.notifier.Unregister(m)
		}

		err = m.call(context.Background(), "close", func() error {
			m.cancelHubWork()
			m.releaseSuspendHold()

			if m.rootHubHeld {
				log.Error("root hub reference still held on teardown, releasing")
				m.releaseRootHub()
				return errors.New("root hub reference leaked")
			}
			return nil
		})

		m.cancel()
		m.queue.close()
	})

	if errors.Is(err, ErrClosed) {
		return nil
	}
	return err
}

// call runs fn on the work queue and waits for its result
func (m *Manager) call(ctx context.Context, name string, fn func() error) error {
	result := make(chan error, 1)
	if err := m.queue.post(name, func() { result <- fn() }); err != nil {
		return err
	}

	select {
	case err := <-result:
		return err
	case <-m.queue.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// post runs fn on the work queue without waiting
func (m *Manager) post(name string, fn func()) {
	if err := m.queue.post(name, fn); err != nil {
		log.Debug("dropping event, manager closed", zap.String("event", name))
	}
}

// Status returns a snapshot of the current state
func (m *Manager) Status(ctx context.Context) (Status, error) {
	var s Status
	err := m.call(ctx, "status", func() error {
		s = Status{
			State:             m.state,
			HubPresent:        m.conf.HubPresent,
			RetryCount:        m.retryCount,
			InitLock:          m.initLock,
			HandshakeDone:     m.handshakeDone,
			SuspendInProgress: m.suspendInProgress,
			BlockAutosuspend:  m.blockAutosuspend,
			RootHubHeld:       m.rootHubHeld,
			Connected:         m.transportAttached(),
		}
		if m.lastError != nil {
			s.LastError = m.lastError.Error()
		}
		return nil
	})

	return s, err
}

func (m *Manager) transportAttached() bool {
	return m.transport != nil && m.transport.Attached()
}
