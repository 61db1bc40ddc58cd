package daemon

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/omgd/omgd/internal/audit"
	"github.com/omgd/omgd/internal/config"
	"github.com/omgd/omgd/internal/protocol"
	"github.com/omgd/omgd/internal/status"
)

// SupervisorOptions configures Supervisor beyond its required Config and
// Dispatcher, mirroring the defaults-filled-at-construction style used
// throughout this codebase.
type SupervisorOptions struct {
	StatusPublishInterval time.Duration
	IndexRefreshInterval  time.Duration
	ShutdownTimeout       time.Duration
	Logger                zerolog.Logger
}

// Supervisor owns the Unix domain socket listener, the per-connection
// accept loop, and the background tickers that keep the index and status
// file fresh. Construct with NewSupervisor; Start does not block.
type Supervisor struct {
	cfg        config.Config
	dispatcher *Dispatcher
	auditLog   *audit.Logger
	opts       SupervisorOptions

	listener net.Listener
	wg       sync.WaitGroup
	quit     chan struct{}
	quitOnce sync.Once
}

// NewSupervisor constructs a Supervisor. It does not bind the socket or
// start any goroutine until Start is called.
func NewSupervisor(cfg config.Config, dispatcher *Dispatcher, auditLog *audit.Logger, opts SupervisorOptions) *Supervisor {
	if opts.StatusPublishInterval <= 0 {
		opts.StatusPublishInterval = 10 * time.Second
	}
	if opts.IndexRefreshInterval <= 0 {
		opts.IndexRefreshInterval = 5 * time.Minute
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = 5 * time.Second
	}
	return &Supervisor{
		cfg:        cfg,
		dispatcher: dispatcher,
		auditLog:   auditLog,
		opts:       opts,
		quit:       make(chan struct{}),
	}
}

// Start binds the configured Unix domain socket — replacing any stale
// socket file left by a prior run — and launches the accept loop and
// background tickers. It returns once the socket is bound and ready.
func (s *Supervisor) Start(ctx context.Context) error {
	if err := removeStaleSocket(s.cfg.SocketPath); err != nil {
		return fmt.Errorf("daemon: clear stale socket: %w", err)
	}

	ln, err := net.Listen("unix", s.cfg.SocketPath)
	if err != nil {
		return fmt.Errorf("daemon: listen on %s: %w", s.cfg.SocketPath, err)
	}
	if err := os.Chmod(s.cfg.SocketPath, 0o600); err != nil {
		ln.Close()
		return fmt.Errorf("daemon: chmod socket: %w", err)
	}
	s.listener = ln

	s.wg.Add(3)
	go s.acceptLoop(ctx)
	go s.statusPublishLoop(ctx)
	go s.indexRefreshLoop(ctx)

	s.opts.Logger.Info().Str("socket", s.cfg.SocketPath).Msg("daemon: listening")
	return nil
}

// Stop stops accepting new connections, waits up to ShutdownTimeout for
// in-flight connections and background tickers to exit, flushes the audit
// log, and unlinks the socket file.
func (s *Supervisor) Stop(ctx context.Context) error {
	s.quitOnce.Do(func() { close(s.quit) })

	if s.listener != nil {
		_ = s.listener.Close()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	deadline := s.opts.ShutdownTimeout
	select {
	case <-done:
	case <-time.After(deadline):
		s.opts.Logger.Warn().Msg("daemon: shutdown deadline exceeded, proceeding anyway")
	case <-ctx.Done():
	}

	if s.auditLog != nil {
		if err := s.auditLog.Close(); err != nil {
			s.opts.Logger.Warn().Err(err).Msg("daemon: audit log close failed")
		}
	}
	if err := os.Remove(s.cfg.SocketPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("daemon: unlink socket: %w", err)
	}
	return nil
}

func (s *Supervisor) acceptLoop(ctx context.Context) {
	defer s.wg.Done()
	var connWG sync.WaitGroup
	defer connWG.Wait()

	maxFrameSize := s.cfg.MaxFrameSize
	if maxFrameSize <= 0 {
		maxFrameSize = protocol.MaxFrameSize
	}
	maxConnections := s.cfg.MaxConnections
	if maxConnections <= 0 {
		maxConnections = config.DefaultMaxConnections
	}

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.quit:
				return
			default:
			}
			var netErr net.Error
			if errors.As(err, &netErr) && !netErr.Timeout() {
				return
			}
			s.opts.Logger.Warn().Err(err).Msg("daemon: accept error")
			continue
		}

		if active := s.dispatcher.deps.Metrics.Snapshot().ActiveConnections; active >= int64(maxConnections) {
			s.opts.Logger.Warn().Int64("active", active).Int("soft_limit", maxConnections).
				Msg("daemon: active connections exceed soft limit, serving anyway")
		}

		connWG.Add(1)
		s.dispatcher.deps.Metrics.IncActiveConnections()
		go func() {
			defer connWG.Done()
			defer s.dispatcher.deps.Metrics.DecActiveConnections()
			serveConn(ctx, conn, s.dispatcher, s.auditLog, s.opts.Logger, maxFrameSize,
				s.dispatcher.deps.Metrics.AddBytesReceived,
				s.dispatcher.deps.Metrics.AddBytesSent)
		}()
	}
}

func (s *Supervisor) statusPublishLoop(ctx context.Context) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.opts.StatusPublishInterval)
	defer ticker.Stop()

	s.publishStatus(ctx)
	for {
		select {
		case <-ticker.C:
			s.publishStatus(ctx)
		case <-s.quit:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (s *Supervisor) publishStatus(ctx context.Context) {
	snap, ok := s.dispatcher.LastStatus()
	if !ok {
		var err error
		snap, err = s.dispatcher.refreshStatus(ctx)
		if err != nil {
			s.opts.Logger.Warn().Err(err).Msg("daemon: status refresh failed")
			return
		}
	}
	record := status.Snapshot{
		TotalPackages:    uint32(snap.TotalPackages),
		ExplicitPackages: uint32(snap.ExplicitPackages),
		OrphanPackages:   uint32(snap.OrphanPackages),
		UpdatesAvailable: uint32(snap.UpdatesAvailable),
	}
	if err := status.Write(s.cfg.StatusPath, record); err != nil {
		s.opts.Logger.Warn().Err(err).Msg("daemon: status file write failed")
	}
}

func (s *Supervisor) indexRefreshLoop(ctx context.Context) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.opts.IndexRefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := s.dispatcher.RefreshIndex(ctx); err != nil {
				s.opts.Logger.Warn().Err(err).Msg("daemon: index refresh failed")
			}
		case <-s.quit:
			return
		case <-ctx.Done():
			return
		}
	}
}

// removeStaleSocket unlinks path if it already exists. A prior, unclean
// daemon exit can leave a socket file a new bind would otherwise reject
// with "address already in use".
func removeStaleSocket(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
