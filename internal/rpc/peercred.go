package rpc

import (
	"context"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/peer"
)

// PeerInfo is the kernel's view of the process on the other end of the socket
type PeerInfo struct {
	credentials.CommonAuthInfo
	Pid  int32
	Uid  uint32
	Comm string
}

func (PeerInfo) AuthType() string {
	return "peercred"
}

// peerCredentials reads SO_PEERCRED during the handshake. The connection is
// not secured, it only learns who is talking.
type peerCredentials struct{}

func (peerCredentials) ClientHandshake(_ context.Context, _ string, conn net.Conn) (net.Conn, credentials.AuthInfo, error) {
	return conn, PeerInfo{CommonAuthInfo: credentials.CommonAuthInfo{SecurityLevel: credentials.NoSecurity}}, nil
}

func (peerCredentials) ServerHandshake(conn net.Conn) (net.Conn, credentials.AuthInfo, error) {
	info := PeerInfo{CommonAuthInfo: credentials.CommonAuthInfo{SecurityLevel: credentials.NoSecurity}}

	uc, ok := conn.(*net.UnixConn)
	if !ok {
		return conn, info, nil
	}

	raw, err := uc.SyscallConn()
	if err != nil {
		return nil, nil, err
	}

	var cred *unix.Ucred
	var credErr error
	if err := raw.Control(func(fd uintptr) {
		cred, credErr = unix.GetsockoptUcred(int(fd), unix.SOL_SOCKET, unix.SO_PEERCRED)
	}); err != nil {
		return nil, nil, err
	}
	if credErr != nil {
		return nil, nil, fmt.Errorf("SO_PEERCRED: %w", credErr)
	}

	info.Pid = cred.Pid
	info.Uid = cred.Uid
	info.Comm = processName(cred.Pid)

	return conn, info, nil
}

func (peerCredentials) Info() credentials.ProtocolInfo {
	return credentials.ProtocolInfo{SecurityProtocol: "peercred"}
}

func (c peerCredentials) Clone() credentials.TransportCredentials {
	return c
}

func (peerCredentials) OverrideServerName(string) error {
	return nil
}

func processName(pid int32) string {
	data, err := os.ReadFile("/proc/" + strconv.Itoa(int(pid)) + "/comm")
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

// peerFromContext returns the socket credentials of the caller, false for
// transports without them
func peerFromContext(ctx context.Context) (PeerInfo, bool) {
	p, ok := peer.FromContext(ctx)
	if !ok {
		return PeerInfo{}, false
	}

	info, ok := p.AuthInfo.(PeerInfo)
	if !ok || info.Pid == 0 {
		return PeerInfo{}, false
	}
	return info, true
}

// callerIdentity joins the self reported name with the kernel's view of the peer
func callerIdentity(name string, info PeerInfo, ok bool) string {
	if !ok {
		return name
	}
	return fmt.Sprintf("%s comm=%s pid=%d uid=%d", name, info.Comm, info.Pid, info.Uid)
}
