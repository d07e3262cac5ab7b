package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/LeoCommon/linkpm/internal/linkpm"
	"github.com/LeoCommon/linkpm/internal/rpc"
	"google.golang.org/grpc"
)

// Globals are shared by every command
type Globals struct {
	Socket  string        `short:"s" help:"Command socket of the daemon" default:"${socket}" type:"path"`
	Timeout time.Duration `help:"Deadline for a single command" default:"10s"`

	out      io.Writer          `kong:"-"`
	dialOpts []grpc.DialOption `kong:"-"`
}

func (g *Globals) client() (*rpc.Client, error) {
	caller := "linkpmctl(" + strconv.Itoa(os.Getpid()) + ")"
	return rpc.Dial(g.Socket, caller, g.dialOpts...)
}

func (g *Globals) writer() io.Writer {
	if g.out == nil {
		return os.Stdout
	}
	return g.out
}

// do runs fn with a connected client under the command deadline
func (g *Globals) do(extra time.Duration, fn func(ctx context.Context, c *rpc.Client) error) error {
	c, err := g.client()
	if err != nil {
		return fmt.Errorf("connect %s: %w", g.Socket, err)
	}
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), g.Timeout+extra)
	defer cancel()

	return fn(ctx, c)
}

func (g *Globals) printBool(v bool) {
	fmt.Fprintln(g.writer(), v)
}

type LinkActiveCmd struct {
	Active bool `arg:"" help:"Line level, true or false"`
}

func (cmd *LinkActiveCmd) Run(g *Globals) error {
	return g.do(0, func(ctx context.Context, c *rpc.Client) error {
		return c.SetLinkActive(ctx, cmd.Active)
	})
}

type HostWakeCmd struct{}

func (cmd *HostWakeCmd) Run(g *Globals) error {
	return g.do(0, func(ctx context.Context, c *rpc.Client) error {
		v, err := c.GetHostWake(ctx)
		if err != nil {
			return err
		}
		g.printBool(v)
		return nil
	})
}

type ConnectedCmd struct{}

func (cmd *ConnectedCmd) Run(g *Globals) error {
	return g.do(0, func(ctx context.Context, c *rpc.Client) error {
		v, err := c.GetConnected(ctx)
		if err != nil {
			return err
		}
		g.printBool(v)
		return nil
	})
}

type IsConnectedCmd struct{}

func (cmd *IsConnectedCmd) Run(g *Globals) error {
	return g.do(0, func(ctx context.Context, c *rpc.Client) error {
		v, err := c.IsConnected(ctx)
		if err != nil {
			return err
		}
		g.printBool(v)
		return nil
	})
}

type PortOnCmd struct{}

func (cmd *PortOnCmd) Run(g *Globals) error {
	return g.do(0, func(ctx context.Context, c *rpc.Client) error {
		return c.PortOn(ctx)
	})
}

type PortOffCmd struct{}

func (cmd *PortOffCmd) Run(g *Globals) error {
	return g.do(0, func(ctx context.Context, c *rpc.Client) error {
		return c.PortOff(ctx)
	})
}

type BlockAutosuspendCmd struct{}

func (cmd *BlockAutosuspendCmd) Run(g *Globals) error {
	return g.do(0, func(ctx context.Context, c *rpc.Client) error {
		return c.BlockAutosuspend(ctx)
	})
}

type EnableAutosuspendCmd struct{}

func (cmd *EnableAutosuspendCmd) Run(g *Globals) error {
	return g.do(0, func(ctx context.Context, c *rpc.Client) error {
		return c.EnableAutosuspend(ctx)
	})
}

type ActivateCmd struct {
	Wait *time.Duration `name:"wait" help:"Activation timeout, the daemon default if unset"`
}

func (cmd *ActivateCmd) Run(g *Globals) error {
	var extra time.Duration
	if cmd.Wait != nil {
		extra = *cmd.Wait
	}

	return g.do(extra, func(ctx context.Context, c *rpc.Client) error {
		var result linkpm.ActivationResult
		var err error
		if cmd.Wait != nil {
			result, err = c.Activate(ctx, *cmd.Wait)
		} else {
			result, err = c.ActivateDefault(ctx)
		}
		if err != nil {
			return err
		}

		fmt.Fprintln(g.writer(), result)
		return nil
	})
}

type StatusCmd struct {
	JSON bool `help:"Print the raw status as JSON"`
}

func (cmd *StatusCmd) Run(g *Globals) error {
	return g.do(0, func(ctx context.Context, c *rpc.Client) error {
		st, err := c.Status(ctx)
		if err != nil {
			return err
		}

		w := g.writer()
		if cmd.JSON {
			enc := json.NewEncoder(w)
			enc.SetIndent("", "  ")
			return enc.Encode(st)
		}

		fmt.Fprintf(w, "state:               %s\n", st.State)
		fmt.Fprintf(w, "hub present:         %t\n", st.HubPresent)
		fmt.Fprintf(w, "retries:             %d\n", st.RetryCount)
		fmt.Fprintf(w, "init lock:           %t\n", st.InitLock)
		fmt.Fprintf(w, "handshake done:      %t\n", st.HandshakeDone)
		fmt.Fprintf(w, "suspend in progress: %t\n", st.SuspendInProgress)
		fmt.Fprintf(w, "block autosuspend:   %t\n", st.BlockAutosuspend)
		fmt.Fprintf(w, "root hub held:       %t\n", st.RootHubHeld)
		fmt.Fprintf(w, "connected:           %t\n", st.Connected)
		if st.LastError != "" {
			fmt.Fprintf(w, "last error:          %s\n", st.LastError)
		}
		return nil
	})
}
