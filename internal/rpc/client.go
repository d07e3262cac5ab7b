package rpc

import (
	"context"
	"time"

	"github.com/LeoCommon/linkpm/internal/linkpm"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// Client talks to a running daemon
type Client struct {
	cc     *grpc.ClientConn
	caller string
}

// Dial connects lazily to the daemon socket at path, caller is logged by the daemon
func Dial(path, caller string, opts ...grpc.DialOption) (*Client, error) {
	return NewClient("unix://"+path, caller, opts...)
}

// NewClient connects to any grpc target
func NewClient(target, caller string, opts ...grpc.DialOption) (*Client, error) {
	opts = append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.ForceCodec(codec{})),
	}, opts...)

	cc, err := grpc.NewClient(target, opts...)
	if err != nil {
		return nil, err
	}

	return &Client{cc: cc, caller: caller}, nil
}

func (c *Client) Close() error {
	return c.cc.Close()
}

func (c *Client) invoke(ctx context.Context, method string, in, out any) error {
	if c.caller != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, CallerMetadataKey, c.caller)
	}

	return c.cc.Invoke(ctx, "/"+ServiceName+"/"+method, in, out)
}

func (c *Client) SetLinkActive(ctx context.Context, active bool) error {
	return c.invoke(ctx, "SetLinkActive", &SetLinkActiveRequest{Active: active}, &Empty{})
}

func (c *Client) boolCall(ctx context.Context, method string) (bool, error) {
	out := new(BoolReply)
	if err := c.invoke(ctx, method, &Empty{}, out); err != nil {
		return false, err
	}
	return out.Value, nil
}

func (c *Client) GetHostWake(ctx context.Context) (bool, error) {
	return c.boolCall(ctx, "GetHostWake")
}

func (c *Client) GetConnected(ctx context.Context) (bool, error) {
	return c.boolCall(ctx, "GetConnected")
}

func (c *Client) IsConnected(ctx context.Context) (bool, error) {
	return c.boolCall(ctx, "IsConnected")
}

func (c *Client) PortOn(ctx context.Context) error {
	return c.invoke(ctx, "PortOn", &Empty{}, &Empty{})
}

func (c *Client) PortOff(ctx context.Context) error {
	return c.invoke(ctx, "PortOff", &Empty{}, &Empty{})
}

func (c *Client) BlockAutosuspend(ctx context.Context) error {
	return c.invoke(ctx, "BlockAutosuspend", &Empty{}, &Empty{})
}

func (c *Client) EnableAutosuspend(ctx context.Context) error {
	return c.invoke(ctx, "EnableAutosuspend", &Empty{}, &Empty{})
}

// Activate blocks until the hub is active or timeout passed on the daemon, a
// daemon side timeout is reported as TimedOut without an error. An expired ctx
// is an error, the daemon may never have answered.
func (c *Client) Activate(ctx context.Context, timeout time.Duration) (linkpm.ActivationResult, error) {
	ms := timeout.Milliseconds()
	return c.activate(ctx, &ActivateRequest{TimeoutMs: &ms})
}

// ActivateDefault is Activate with the daemon's configured timeout
func (c *Client) ActivateDefault(ctx context.Context) (linkpm.ActivationResult, error) {
	return c.activate(ctx, &ActivateRequest{})
}

func (c *Client) activate(ctx context.Context, in *ActivateRequest) (linkpm.ActivationResult, error) {
	err := c.invoke(ctx, "Activate", in, new(ActivateReply))
	if status.Code(err) == codes.DeadlineExceeded && ctx.Err() == nil {
		return linkpm.TimedOut, nil
	}
	if err != nil {
		return linkpm.TimedOut, err
	}

	return linkpm.Activated, nil
}

func (c *Client) Status(ctx context.Context) (*StatusReply, error) {
	out := new(StatusReply)
	if err := c.invoke(ctx, "Status", &Empty{}, out); err != nil {
		return nil, err
	}
	return out, nil
}
