package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/LeoCommon/linkpm/internal/linkpm"
	"github.com/LeoCommon/linkpm/internal/rpc"
	"github.com/LeoCommon/linkpm/pkg/log"
	"github.com/alecthomas/kong"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	log.InitNop()
	goleak.VerifyTestMain(m)
}

type fakeController struct {
	mu         sync.Mutex
	linkActive bool
	portOn     int
	portOff    int
	callers    []string
	timeout    time.Duration
}

func (f *fakeController) record(ctx context.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.callers = append(f.callers, linkpm.CallerFromContext(ctx))
}

func (f *fakeController) SetLinkActive(ctx context.Context, active bool) {
	f.record(ctx)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.linkActive = active
}

func (f *fakeController) GetHostWake(context.Context) bool  { return true }
func (f *fakeController) GetConnected(context.Context) bool { return false }
func (f *fakeController) IsConnected(context.Context) bool  { return true }

func (f *fakeController) PortOn(ctx context.Context) error {
	f.record(ctx)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.portOn++
	return nil
}

func (f *fakeController) PortOff(ctx context.Context) error {
	f.record(ctx)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.portOff++
	return nil
}

func (f *fakeController) BlockAutosuspend(context.Context) error {
	return linkpm.NewNoTransportAttachedError()
}

func (f *fakeController) EnableAutosuspend(context.Context) error { return nil }

func (f *fakeController) Activate(_ context.Context, timeout time.Duration) (linkpm.ActivationResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.timeout = timeout
	return linkpm.TimedOut, linkpm.NewActivationTimedOutError(timeout)
}

func (f *fakeController) Status(context.Context) (linkpm.Status, error) {
	return linkpm.Status{State: linkpm.HubPreactive, HubPresent: true, RetryCount: 7, LastError: "boom"}, nil
}

func startDaemon(t *testing.T, ctrl rpc.Controller) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "linkpm.sock")
	lis, err := rpc.Listen(path)
	require.NoError(t, err)

	srv := rpc.NewServer(ctrl, time.Second)
	done := make(chan struct{})
	go func() {
		defer close(done)
		assert.NoError(t, srv.Serve(lis))
	}()

	t.Cleanup(func() {
		srv.Stop()
		<-done
	})

	return path
}

// run parses args like the binary does and returns the printed output
func run(t *testing.T, socket string, args ...string) (string, error) {
	t.Helper()

	cli := CLI{}
	parser, err := newParser(&cli, kong.Exit(func(int) { t.Fatal("unexpected exit") }))
	require.NoError(t, err)

	ctx, err := parser.Parse(append([]string{"--socket", socket}, args...))
	require.NoError(t, err)

	out := &bytes.Buffer{}
	cli.out = out
	err = ctx.Run(&cli.Globals)
	return out.String(), err
}

func TestCommands(t *testing.T) {
	ctrl := &fakeController{}
	socket := startDaemon(t, ctrl)

	t.Run("link active", func(t *testing.T) {
		_, err := run(t, socket, "link-active", "true")
		require.NoError(t, err)

		ctrl.mu.Lock()
		defer ctrl.mu.Unlock()
		assert.True(t, ctrl.linkActive)
		require.NotEmpty(t, ctrl.callers)
		assert.True(t, strings.HasPrefix(ctrl.callers[0], "linkpmctl("))
		assert.Contains(t, ctrl.callers[0], "pid="+strconv.Itoa(os.Getpid()))
	})

	t.Run("queries", func(t *testing.T) {
		out, err := run(t, socket, "host-wake")
		require.NoError(t, err)
		assert.Equal(t, "true\n", out)

		out, err = run(t, socket, "connected")
		require.NoError(t, err)
		assert.Equal(t, "false\n", out)

		out, err = run(t, socket, "is-connected")
		require.NoError(t, err)
		assert.Equal(t, "true\n", out)
	})

	t.Run("port", func(t *testing.T) {
		_, err := run(t, socket, "port-on")
		require.NoError(t, err)
		_, err = run(t, socket, "port-off")
		require.NoError(t, err)

		ctrl.mu.Lock()
		defer ctrl.mu.Unlock()
		assert.Equal(t, 1, ctrl.portOn)
		assert.Equal(t, 1, ctrl.portOff)
	})

	t.Run("autosuspend", func(t *testing.T) {
		_, err := run(t, socket, "block-autosuspend")
		assert.Error(t, err)

		_, err = run(t, socket, "enable-autosuspend")
		assert.NoError(t, err)
	})

	t.Run("activate timeout", func(t *testing.T) {
		out, err := run(t, socket, "activate", "--wait", "250ms")
		require.NoError(t, err)
		assert.Equal(t, "timed_out\n", out)

		ctrl.mu.Lock()
		assert.Equal(t, 250*time.Millisecond, ctrl.timeout)
		ctrl.mu.Unlock()

		_, err = run(t, socket, "activate", "--wait", "0s")
		require.NoError(t, err)
		ctrl.mu.Lock()
		assert.Zero(t, ctrl.timeout)
		ctrl.mu.Unlock()

		// Without --wait the daemon picks its configured timeout
		_, err = run(t, socket, "activate")
		require.NoError(t, err)
		ctrl.mu.Lock()
		assert.Equal(t, time.Second, ctrl.timeout)
		ctrl.mu.Unlock()
	})

	t.Run("status", func(t *testing.T) {
		out, err := run(t, socket, "status")
		require.NoError(t, err)
		assert.Contains(t, out, "preactive")
		assert.Contains(t, out, "last error:          boom")

		out, err = run(t, socket, "status", "--json")
		require.NoError(t, err)

		var reply rpc.StatusReply
		require.NoError(t, json.Unmarshal([]byte(out), &reply))
		assert.Equal(t, 7, reply.RetryCount)
		assert.True(t, reply.HubPresent)
	})
}

func TestNoDaemon(t *testing.T) {
	_, err := run(t, filepath.Join(t.TempDir(), "missing.sock"), "--timeout", "200ms", "status")
	assert.Error(t, err)
}
