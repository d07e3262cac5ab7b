// Package logind hooks the link power manager into systemd-logind: suspend
// notifications through PrepareForSleep and inhibitor locks.
package logind

import (
	"context"
	"io"
	"os"
	"sync"
	"time"

	"github.com/LeoCommon/linkpm/internal/linkpm"
	"github.com/LeoCommon/linkpm/pkg/log"
	"github.com/godbus/dbus/v5"
	"go.uber.org/zap"
)

const (
	BusObjectLogindDest = "org.freedesktop.login1"
	BusObjectLogindPath = "/org/freedesktop/login1"

	BusManagerInterface   = BusObjectLogindDest + ".Manager"
	BusInterfaceInhibit   = BusManagerInterface + ".Inhibit"
	BusMemberPrepareSleep = "PrepareForSleep"
	BusSignalPrepareSleep = BusManagerInterface + "." + BusMemberPrepareSleep

	InhibitSleep = "sleep"
	ModeDelay    = "delay"
	ModeBlock    = "block"

	// BarrierTimeout bounds the wait for listeners before the delay lock is dropped
	BarrierTimeout = 4 * time.Second
)

type inhibitor interface {
	Inhibit(what, who, why, mode string) (io.Closer, error)
}

type busInhibitor struct {
	conn *dbus.Conn
}

// Inhibit takes a logind inhibitor lock, it is held until the returned file is closed
func (b busInhibitor) Inhibit(what, who, why, mode string) (io.Closer, error) {
	var fd dbus.UnixFD
	err := b.conn.Object(BusObjectLogindDest, BusObjectLogindPath).
		Call(BusInterfaceInhibit, 0, what, who, why, mode).
		Store(&fd)
	if err != nil {
		return nil, err
	}

	return os.NewFile(uintptr(fd), "logind-inhibitor"), nil
}

// Notifier forwards PrepareForSleep to the registered listeners. It holds a
// delay lock so the listeners get the chance to act before the system sleeps.
type Notifier struct {
	lock      sync.Mutex
	listeners []linkpm.PowerListener

	conn    *dbus.Conn
	inhibit inhibitor
	who     string
	delay   io.Closer
	signals chan *dbus.Signal

	// Barrier waits until the listeners finished their suspend work
	Barrier func(ctx context.Context) error
}

// Connect connects to the system bus and subscribes to suspend notifications
func Connect(who string) (*Notifier, error) {
	conn, err := dbus.ConnectSystemBus()
	if err != nil {
		log.Error("Failed to connect to system bus", zap.Error(err))
		return nil, err
	}

	n := newNotifier(busInhibitor{conn}, who)
	n.conn = conn

	err = conn.AddMatchSignal(
		dbus.WithMatchInterface(BusManagerInterface),
		dbus.WithMatchMember(BusMemberPrepareSleep),
	)
	if err != nil {
		conn.Close()
		return nil, err
	}

	conn.Signal(n.signals)
	n.takeDelay()

	log.Info("logind initialization complete")
	return n, nil
}

func newNotifier(inhibit inhibitor, who string) *Notifier {
	return &Notifier{
		inhibit: inhibit,
		who:     who,
		signals: make(chan *dbus.Signal, 10),
	}
}

func (n *Notifier) Register(l linkpm.PowerListener) {
	n.lock.Lock()
	defer n.lock.Unlock()

	n.listeners = append(n.listeners, l)
}

func (n *Notifier) Unregister(l linkpm.PowerListener) {
	n.lock.Lock()
	defer n.lock.Unlock()

	for i, v := range n.listeners {
		if v == l {
			n.listeners = append(n.listeners[:i], n.listeners[i+1:]...)
			return
		}
	}
}

func (n *Notifier) snapshot() []linkpm.PowerListener {
	n.lock.Lock()
	defer n.lock.Unlock()

	return append([]linkpm.PowerListener(nil), n.listeners...)
}

// Blocker returns a suspend blocker sharing the bus connection
func (n *Notifier) Blocker() *Blocker {
	return &Blocker{inhibit: n.inhibit, who: n.who}
}

func (n *Notifier) takeDelay() {
	n.lock.Lock()
	defer n.lock.Unlock()

	if n.delay != nil {
		return
	}

	lock, err := n.inhibit.Inhibit(InhibitSleep, n.who, "hub power off before suspend", ModeDelay)
	if err != nil {
		log.Warn("could not take delay inhibitor", zap.Error(err))
		return
	}
	n.delay = lock
}

func (n *Notifier) releaseDelay() {
	n.lock.Lock()
	defer n.lock.Unlock()

	if n.delay == nil {
		return
	}

	if err := n.delay.Close(); err != nil {
		log.Warn("could not release delay inhibitor", zap.Error(err))
	}
	n.delay = nil
}

// Run dispatches the signals until ctx is done
func (n *Notifier) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case signal, ok := <-n.signals:
			if !ok {
				log.Debug("signal channel terminated")
				return nil
			}
			n.handleSignal(ctx, signal)
		}
	}
}

func (n *Notifier) handleSignal(ctx context.Context, signal *dbus.Signal) {
	if signal.Name != BusSignalPrepareSleep {
		return
	}

	var start bool
	if err := dbus.Store(signal.Body, &start); err != nil {
		log.Error("malformed PrepareForSleep signal", zap.Error(err))
		return
	}

	listeners := n.snapshot()
	if !start {
		log.Info("system resumed")
		for _, l := range listeners {
			l.OnPostResume()
		}
		n.takeDelay()
		return
	}

	log.Info("system about to suspend")
	for _, l := range listeners {
		l.OnSuspendPrepare()
	}

	if n.Barrier != nil {
		bctx, cancel := context.WithTimeout(ctx, BarrierTimeout)
		if err := n.Barrier(bctx); err != nil {
			log.Warn("suspend preparation did not finish", zap.Error(err))
		}
		cancel()
	}

	n.releaseDelay()
}

// Close drops the subscriptions, the inhibitor and the bus connection
func (n *Notifier) Close() error {
	n.releaseDelay()

	if n.conn == nil {
		return nil
	}

	n.conn.RemoveSignal(n.signals)
	if err := n.conn.RemoveMatchSignal(
		dbus.WithMatchInterface(BusManagerInterface),
		dbus.WithMatchMember(BusMemberPrepareSleep),
	); err != nil {
		log.Warn("could not remove match signal", zap.Error(err))
	}

	return n.conn.Close()
}
