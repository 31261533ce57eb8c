// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: © 2015 LabStack LLC and Echo contributors
// SPDX-FileCopyrightText: © 2026 turtle.io contributors

package turtle

import (
	stdContext "context"
	"crypto/tls"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"
)

const banner = "turtle.io (v%s). Multi-tenant HTTP(S) server and reverse proxy."

// StartConfig configures the http.Server used to serve a Server instance.
type StartConfig struct {
	Address string

	HideBanner bool
	HidePort   bool

	CertFilesystem fs.FS
	TLSConfig      *tls.Config

	ListenerNetwork  string
	ListenerAddrFunc func(addr net.Addr)

	GracefulContext stdContext.Context
	GracefulTimeout time.Duration

	BeforeServeFunc func(s *http.Server) error
	OnShutdownError func(err error)
}

// Start starts an HTTP server.
func (sc StartConfig) Start(s *Server) error {
	return sc.start(s)
}

// StartTLS starts an HTTPS server. If certFile/keyFile is a string it is treated as a file
// path resolved against CertFilesystem; if []byte it is treated as the certificate/key
// content as-is.
func (sc StartConfig) StartTLS(s *Server, certFile, keyFile any) error {
	certFs := sc.CertFilesystem
	if certFs == nil {
		certFs = os.DirFS(".")
	}
	cert, err := filepathOrContent(certFile, certFs)
	if err != nil {
		return err
	}
	key, err := filepathOrContent(keyFile, certFs)
	if err != nil {
		return err
	}
	cer, err := tls.X509KeyPair(cert, key)
	if err != nil {
		return err
	}
	if sc.TLSConfig == nil {
		sc.TLSConfig = &tls.Config{
			MinVersion: tls.VersionTLS12,
			NextProtos: []string{"h2"},
		}
	}
	sc.TLSConfig.Certificates = []tls.Certificate{cer}
	return sc.start(s)
}

func (sc StartConfig) start(s *Server) error {
	logger := s.Logger
	server := http.Server{
		Handler:  s,
		ErrorLog: slog.NewLogLogger(logger.Handler(), slog.LevelError),
		// defaults for GoSec rule G112 (CWE-400): Slowloris without a ReadHeaderTimeout.
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	listenerNetwork := sc.ListenerNetwork
	if listenerNetwork == "" {
		listenerNetwork = "tcp"
	}
	var listener net.Listener
	var err error
	if sc.TLSConfig != nil {
		listener, err = tls.Listen(listenerNetwork, sc.Address, sc.TLSConfig)
	} else {
		listener, err = net.Listen(listenerNetwork, sc.Address)
	}
	if err != nil {
		return err
	}
	if sc.ListenerAddrFunc != nil {
		sc.ListenerAddrFunc(listener.Addr())
	}

	if sc.BeforeServeFunc != nil {
		if err := sc.BeforeServeFunc(&server); err != nil {
			return err
		}
	}
	if !sc.HideBanner {
		logger.Info(fmt.Sprintf(banner, Version), "vhosts", s.vhosts.Count())
	}
	if !sc.HidePort {
		logger.Info("http(s) server started", "address", listener.Addr())
	}

	if sc.GracefulContext != nil {
		ctx, cancel := stdContext.WithCancel(sc.GracefulContext)
		defer cancel()
		go gracefulShutdown(ctx, &sc, s, &server, logger)
	}
	return server.Serve(listener)
}

func filepathOrContent(fileOrContent any, certFilesystem fs.FS) (content []byte, err error) {
	switch v := fileOrContent.(type) {
	case string:
		return fs.ReadFile(certFilesystem, v)
	case []byte:
		return v, nil
	default:
		return nil, ErrInvalidCertOrKeyType
	}
}

// gracefulShutdown waits for the caller's cancellation signal, drains in-flight requests via
// http.Server.Shutdown, then releases the resources the request pipeline was allowed to touch
// while that drain was still in progress. Cache and Watch are closed here rather than from a
// method callable at any time, because closing either one out from under a live request racing
// the shutdown signal would hand that request a representation-cache miss or a stale watcher
// handle instead of an error it could retry against.
func gracefulShutdown(gracefulCtx stdContext.Context, sc *StartConfig, s *Server, server *http.Server, logger *slog.Logger) {
	<-gracefulCtx.Done()

	timeout := sc.GracefulTimeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := stdContext.WithTimeout(stdContext.Background(), timeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		if sc.OnShutdownError != nil {
			sc.OnShutdownError(err)
			return
		}
		logger.Error("failed to shut down server within given timeout", "error", err)
	}

	// The filesystem watcher runs its own goroutine independent of any single request. Cache
	// and Watch are closed when their implementations expose Close.
	if closer, ok := s.Cache.(interface{ Close() }); ok {
		closer.Close()
	}
	if closer, ok := s.Watch.(interface{ Close() error }); ok {
		_ = closer.Close()
	}
}
