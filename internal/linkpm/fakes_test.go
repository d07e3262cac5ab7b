package linkpm

import (
	"context"
	"errors"
	"sync"
	"time"
)

const (
	lineHostWake   LineID = "hostwake"
	lineLinkActive LineID = "linkactive"
	lineSlaveWake  LineID = "slavewake"
)

type fakeLines struct {
	mu      sync.Mutex
	levels  map[LineID]bool
	history map[LineID][]bool
}

func newFakeLines() *fakeLines {
	return &fakeLines{
		levels:  map[LineID]bool{lineHostWake: true},
		history: make(map[LineID][]bool),
	}
}

func (f *fakeLines) Set(line LineID, high bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.levels[line] = high
	f.history[line] = append(f.history[line], high)
	return nil
}

func (f *fakeLines) Get(line LineID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.levels[line], nil
}

func (f *fakeLines) level(line LineID) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.levels[line]
}

func (f *fakeLines) sets(line LineID) []bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]bool(nil), f.history[line]...)
}

type fakePort struct {
	mu      sync.Mutex
	on      int
	off     int
	failOn  bool
	failOff bool
	// hold blocks power on requests until it is closed
	hold chan struct{}
}

func (f *fakePort) power(_ context.Context, on bool) error {
	f.mu.Lock()
	hold := f.hold
	f.mu.Unlock()
	if on && hold != nil {
		<-hold
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if on {
		f.on++
		if f.failOn {
			return errors.New("i2c write failed")
		}
		return nil
	}

	f.off++
	if f.failOff {
		return errors.New("i2c write failed")
	}
	return nil
}

func (f *fakePort) counts() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.on, f.off
}

type fakeRootHub struct {
	mu        sync.Mutex
	refs      int
	acquired  int
	resumes   int
	forbidden bool
}

func (f *fakeRootHub) Acquire() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refs++
	f.acquired++
	return nil
}

func (f *fakeRootHub) Release() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refs--
	return nil
}

func (f *fakeRootHub) Resume() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resumes++
	return nil
}

func (f *fakeRootHub) ForbidAutosuspend() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.forbidden = true
	return nil
}

func (f *fakeRootHub) AllowAutosuspend() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.forbidden = false
	return nil
}

func (f *fakeRootHub) references() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.refs
}

type fakeTransport struct {
	mu          sync.Mutex
	attached    bool
	disconnects int
	retries     int
	resumes     int
	forbidden   bool
	delay       time.Duration
}

func (f *fakeTransport) Attached() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.attached
}

func (f *fakeTransport) ForceDisconnect() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disconnects++
	f.attached = false
	return nil
}

func (f *fakeTransport) EnqueueRetry() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.retries++
}

func (f *fakeTransport) MakeResume() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resumes++
}

func (f *fakeTransport) ForbidAutosuspend() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.forbidden = true
	return nil
}

func (f *fakeTransport) AllowAutosuspend(delay time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.forbidden = false
	f.delay = delay
	return nil
}

func (f *fakeTransport) stats() (retries int, resumes int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.retries, f.resumes
}

type fakeRecorder struct {
	mu          sync.Mutex
	retryTicks  int
	abandoned   int
	transitions []string
}

func (f *fakeRecorder) IncTransition(from, to string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.transitions = append(f.transitions, from+"->"+to)
}

func (f *fakeRecorder) IncRetryTick() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.retryTicks++
}

func (f *fakeRecorder) IncAbandoned() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.abandoned++
}

func (f *fakeRecorder) IncPowerFailure(string)                  {}
func (f *fakeRecorder) ObserveActivation(string, time.Duration) {}

func (f *fakeRecorder) ticks() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.retryTicks, f.abandoned
}

type fakeNotifier struct {
	mu        sync.Mutex
	listeners []PowerListener
}

func (f *fakeNotifier) Register(l PowerListener) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listeners = append(f.listeners, l)
}

func (f *fakeNotifier) Unregister(l PowerListener) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, v := range f.listeners {
		if v == l {
			f.listeners = append(f.listeners[:i], f.listeners[i+1:]...)
			return
		}
	}
}

func (f *fakeNotifier) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.listeners)
}

type fixture struct {
	m         *Manager
	lines     *fakeLines
	port      *fakePort
	rootHub   *fakeRootHub
	transport *fakeTransport
	recorder  *fakeRecorder
	notifier  *fakeNotifier
}

func fastTiming() Timing {
	return Timing{
		PowerUpDelay:      time.Millisecond,
		RetryDelay:        time.Millisecond,
		SuspendDeferDelay: 5 * time.Millisecond,
		MaxRetries:        50,
	}
}

func newFixture(hub bool) *fixture {
	return newFixtureWithTiming(hub, fastTiming())
}

func newFixtureWithTiming(hub bool, timing Timing) *fixture {
	f := &fixture{
		lines:     newFakeLines(),
		port:      &fakePort{},
		rootHub:   &fakeRootHub{},
		transport: &fakeTransport{attached: true},
		recorder:  &fakeRecorder{},
		notifier:  &fakeNotifier{},
	}

	m, err := New(Config{
		HubPresent:       hub,
		Lines:            Lines{HostWake: lineHostWake, LinkActive: lineLinkActive, SlaveWake: lineSlaveWake},
		AutosuspendDelay: 2 * time.Second,
		Timing:           timing,
	}, Dependencies{
		Lines:         f.lines,
		PortPower:     f.port.power,
		RootHub:       f.rootHub,
		Transport:     f.transport,
		PowerNotifier: f.notifier,
		Recorder:      f.recorder,
	})
	if err != nil {
		panic(err)
	}

	f.m = m
	return f
}

func (f *fixture) state() HubState {
	s, err := f.m.Status(context.Background())
	if err != nil {
		return HubState(-1)
	}
	return s.State
}

func (f *fixture) status() Status {
	s, _ := f.m.Status(context.Background())
	return s
}
