package web

import (
	"fmt"
	"io"
	"net"
	"path/filepath"

	"tailscale.com/tsnet"

	"github.com/vinayprograms/researchdesk/internal/logging"
)

// listenTailnet joins the tailnet as hostname and listens on addr there.
// Node state lives under stateDir.
func listenTailnet(hostname, addr, stateDir string) (net.Listener, io.Closer, error) {
	logger := logging.New().WithComponent("web")
	srv := &tsnet.Server{
		Hostname: hostname,
		Logf: func(format string, args ...any) {
			logger.Debug(fmt.Sprintf(format, args...))
		},
	}
	if stateDir != "" {
		srv.Dir = filepath.Join(stateDir, "tsnet")
	}

	ln, err := srv.Listen("tcp", addr)
	if err != nil {
		srv.Close()
		return nil, nil, fmt.Errorf("tailnet listen %s: %w", addr, err)
	}
	logger.Info("joined tailnet", map[string]interface{}{"hostname": hostname, "addr": addr})
	return ln, srv, nil
}
