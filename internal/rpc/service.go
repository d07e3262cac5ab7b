// Package rpc exposes the link power manager commands over gRPC on a unix socket
package rpc

import (
	"context"
	"errors"
	"time"

	"github.com/LeoCommon/linkpm/internal/linkpm"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const ServiceName = "linkpm.v1.LinkPM"

// Controller is the command surface of the manager
type Controller interface {
	SetLinkActive(ctx context.Context, active bool)
	GetHostWake(ctx context.Context) bool
	GetConnected(ctx context.Context) bool
	IsConnected(ctx context.Context) bool
	PortOn(ctx context.Context) error
	PortOff(ctx context.Context) error
	BlockAutosuspend(ctx context.Context) error
	EnableAutosuspend(ctx context.Context) error
	Activate(ctx context.Context, timeout time.Duration) (linkpm.ActivationResult, error)
	Status(ctx context.Context) (linkpm.Status, error)
}

// toStatus maps manager errors onto grpc codes
func toStatus(err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, &linkpm.HardwareNotConfiguredError{}):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, &linkpm.PowerTransitionFailedError{}):
		return status.Error(codes.Unavailable, err.Error())
	case errors.Is(err, &linkpm.ActivationTimedOutError{}):
		return status.Error(codes.DeadlineExceeded, err.Error())
	case errors.Is(err, &linkpm.NoTransportAttachedError{}):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, linkpm.ErrClosed):
		return status.Error(codes.Unavailable, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	}

	return status.Error(codes.Internal, err.Error())
}

// linkPMServer is what the service descriptor dispatches to
type linkPMServer interface {
	status(ctx context.Context, in *Empty) (*StatusReply, error)
}

type service struct {
	ctrl              Controller
	activationTimeout time.Duration
}

func (s *service) setLinkActive(ctx context.Context, in *SetLinkActiveRequest) (*Empty, error) {
	s.ctrl.SetLinkActive(ctx, in.Active)
	return &Empty{}, nil
}

func (s *service) getHostWake(ctx context.Context, _ *Empty) (*BoolReply, error) {
	return &BoolReply{Value: s.ctrl.GetHostWake(ctx)}, nil
}

func (s *service) getConnected(ctx context.Context, _ *Empty) (*BoolReply, error) {
	return &BoolReply{Value: s.ctrl.GetConnected(ctx)}, nil
}

func (s *service) isConnected(ctx context.Context, _ *Empty) (*BoolReply, error) {
	return &BoolReply{Value: s.ctrl.IsConnected(ctx)}, nil
}

func (s *service) portOn(ctx context.Context, _ *Empty) (*Empty, error) {
	return &Empty{}, toStatus(s.ctrl.PortOn(ctx))
}

func (s *service) portOff(ctx context.Context, _ *Empty) (*Empty, error) {
	return &Empty{}, toStatus(s.ctrl.PortOff(ctx))
}

func (s *service) blockAutosuspend(ctx context.Context, _ *Empty) (*Empty, error) {
	return &Empty{}, toStatus(s.ctrl.BlockAutosuspend(ctx))
}

func (s *service) enableAutosuspend(ctx context.Context, _ *Empty) (*Empty, error) {
	return &Empty{}, toStatus(s.ctrl.EnableAutosuspend(ctx))
}

func (s *service) activate(ctx context.Context, in *ActivateRequest) (*ActivateReply, error) {
	timeout := s.activationTimeout
	if in.TimeoutMs != nil {
		if *in.TimeoutMs < 0 {
			return nil, status.Error(codes.InvalidArgument, "negative activation timeout")
		}
		timeout = time.Duration(*in.TimeoutMs) * time.Millisecond
	}

	res, err := s.ctrl.Activate(ctx, timeout)
	return &ActivateReply{Result: res.String()}, toStatus(err)
}

func (s *service) status(ctx context.Context, _ *Empty) (*StatusReply, error) {
	st, err := s.ctrl.Status(ctx)
	if err != nil {
		return nil, toStatus(err)
	}

	return &StatusReply{
		State:             st.State.String(),
		HubPresent:        st.HubPresent,
		RetryCount:        st.RetryCount,
		InitLock:          st.InitLock,
		HandshakeDone:     st.HandshakeDone,
		SuspendInProgress: st.SuspendInProgress,
		BlockAutosuspend:  st.BlockAutosuspend,
		RootHubHeld:       st.RootHubHeld,
		Connected:         st.Connected,
		LastError:         st.LastError,
	}, nil
}

// unary builds a method handler that decodes In and runs through the interceptor chain
func unary[In any, Out any](name string, fn func(*service, context.Context, *In) (*Out, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(In)
			if err := dec(in); err != nil {
				return nil, err
			}

			s := srv.(*service)
			if interceptor == nil {
				return fn(s, ctx, in)
			}

			info := &grpc.UnaryServerInfo{
				Server:     srv,
				FullMethod: "/" + ServiceName + "/" + name,
			}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return fn(s, ctx, req.(*In))
			})
		},
	}
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*linkPMServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("SetLinkActive", (*service).setLinkActive),
		unary("GetHostWake", (*service).getHostWake),
		unary("GetConnected", (*service).getConnected),
		unary("IsConnected", (*service).isConnected),
		unary("PortOn", (*service).portOn),
		unary("PortOff", (*service).portOff),
		unary("BlockAutosuspend", (*service).blockAutosuspend),
		unary("EnableAutosuspend", (*service).enableAutosuspend),
		unary("Activate", (*service).activate),
		unary("Status", (*service).status),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "linkpm.proto",
}
