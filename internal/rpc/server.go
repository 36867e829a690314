// Package rpc exposes the synthetic order-book service over gRPC on a Unix
// domain socket.
package rpc

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"path/filepath"

	"google.golang.org/grpc"

	"github.com/caesar-terminal/synthbook/internal/synth"
)

// ErrSocketPathInUse is returned when the socket path holds something other
// than a socket.
var ErrSocketPathInUse = errors.New("socket path in use")

// ListenUnix listens on socketPath with owner-only permissions. A socket
// left over from an earlier run is replaced; any other file is an error.
// The listener unlinks the socket when closed.
func ListenUnix(socketPath string) (net.Listener, error) {
	if err := os.MkdirAll(filepath.Dir(socketPath), 0o700); err != nil {
		return nil, fmt.Errorf("rpc: socket dir: %w", err)
	}

	switch fi, err := os.Lstat(socketPath); {
	case err == nil && fi.Mode()&fs.ModeSocket == 0:
		return nil, fmt.Errorf("%w: %s is not a socket", ErrSocketPathInUse, socketPath)
	case err == nil:
		if err := os.Remove(socketPath); err != nil {
			return nil, fmt.Errorf("rpc: clear old socket: %w", err)
		}
	case !errors.Is(err, fs.ErrNotExist):
		return nil, fmt.Errorf("rpc: stat %s: %w", socketPath, err)
	}

	lis, err := net.Listen("unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("rpc: listen %s: %w", socketPath, err)
	}
	if err := os.Chmod(socketPath, 0o600); err != nil {
		lis.Close()
		return nil, fmt.Errorf("rpc: chmod %s: %w", socketPath, err)
	}
	return lis, nil
}

// NewGRPCServer returns a grpc.Server with the Synthetics service and the
// logging interceptor registered, for callers that bring their own
// listener.
func NewGRPCServer(svc *synth.Service) *grpc.Server {
	gs := grpc.NewServer(grpc.UnaryInterceptor(loggingInterceptor))
	RegisterSyntheticsServer(gs, NewHandler(svc))
	return gs
}

// Server serves Synthetics on a Unix socket.
type Server struct {
	gs  *grpc.Server
	lis net.Listener
}

// New binds socketPath and prepares a Server for svc.
func New(socketPath string, svc *synth.Service) (*Server, error) {
	lis, err := ListenUnix(socketPath)
	if err != nil {
		return nil, err
	}
	return &Server{gs: NewGRPCServer(svc), lis: lis}, nil
}

// Addr returns the socket path.
func (s *Server) Addr() string {
	return s.lis.Addr().String()
}

// Serve blocks until the server stops. Stopping through Shutdown is not an
// error.
func (s *Server) Serve() error {
	if err := s.gs.Serve(s.lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return fmt.Errorf("rpc: serve: %w", err)
	}
	return nil
}

// Shutdown lets in-flight builds finish until ctx is done, then closes the
// remaining connections and the listener.
func (s *Server) Shutdown(ctx context.Context) {
	drained := make(chan struct{})
	go func() {
		s.gs.GracefulStop()
		close(drained)
	}()

	select {
	case <-drained:
	case <-ctx.Done():
		s.gs.Stop()
		<-drained
	}
	s.lis.Close()
}
