package rpc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/LeoCommon/linkpm/internal/linkpm"
	"github.com/LeoCommon/linkpm/pkg/log"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// CallerMetadataKey names the calling process in the request metadata
const CallerMetadataKey = "x-linkpm-caller"

type Server struct {
	grpc *grpc.Server
}

func NewServer(ctrl Controller, activationTimeout time.Duration) *Server {
	if activationTimeout <= 0 {
		activationTimeout = linkpm.DefaultActivationTimeout
	}

	s := grpc.NewServer(
		grpc.Creds(peerCredentials{}),
		grpc.ForceServerCodec(codec{}),
		grpc.ChainUnaryInterceptor(callerInterceptor),
	)
	s.RegisterService(&serviceDesc, &service{ctrl: ctrl, activationTimeout: activationTimeout})

	return &Server{grpc: s}
}

// callerInterceptor moves the caller identity into the context and logs failed
// calls. The metadata name is self reported, the socket credentials are not.
func callerInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	name := "unknown"
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if v := md.Get(CallerMetadataKey); len(v) > 0 && v[0] != "" {
			name = v[0]
		}
	}

	cred, ok := peerFromContext(ctx)
	caller := callerIdentity(name, cred, ok)

	ctx = linkpm.WithCaller(ctx, caller)
	resp, err := handler(ctx, req)
	if err != nil {
		log.Debug("command failed",
			zap.String("method", info.FullMethod),
			zap.String("caller", caller),
			zap.Stringer("code", status.Code(err)),
			zap.Error(err))
	}

	return resp, err
}

// Listen creates the unix socket at path, a stale socket file is replaced
func Listen(path string) (net.Listener, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("remove stale socket: %w", err)
	}

	lis, err := net.Listen("unix", path)
	if err != nil {
		return nil, err
	}

	// Privileged callers only
	if err := os.Chmod(path, 0o660); err != nil {
		lis.Close()
		return nil, err
	}

	return lis, nil
}

// Serve blocks until Stop is called or lis fails
func (s *Server) Serve(lis net.Listener) error {
	log.Info("command surface listening", zap.String("addr", lis.Addr().String()))

	err := s.grpc.Serve(lis)
	if errors.Is(err, grpc.ErrServerStopped) {
		return nil
	}
	return err
}

// Stop waits for in flight commands, a blocked Activate delays this by at
// most its timeout
func (s *Server) Stop() {
	s.grpc.GracefulStop()
}
