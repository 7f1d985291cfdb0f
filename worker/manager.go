package worker

import (
	"context"
	"net"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/shaban/audiohost/catalog"
	"github.com/shaban/audiohost/recents"
	"github.com/shaban/audiohost/wire"
)

// HandshakeParams is what an external session handshake hands the manager
// after accepting a connection: the handshake protocol itself stays an
// external collaborator (spec §1); this struct is just the seam.
type HandshakeParams struct {
	ChannelsIn      int
	ChannelsOut     int
	ChannelsSC      int
	Active          catalog.ActiveChannelMask
	SampleRate      float64
	BlockSize       int
	HostWantsDouble bool
}

// Handshaker performs whatever accept-time negotiation a real deployment
// needs (auth, capability exchange) and returns the session parameters a
// worker is built from.
type Handshaker interface {
	Handshake(conn net.Conn) (HandshakeParams, error)
}

// SessionManager accepts connections and runs one SessionWorker per
// connection in its own goroutine, restoring the process-level "who owns
// the goroutine per session" concern the single-session distillation elides
// (spec §1's "session setup" external collaborator covers only the
// handshake, not the process's many-sessions lifecycle).
type SessionManager struct {
	listener   net.Listener
	handshaker Handshaker
	catalog    catalog.Catalog
	recents    *recents.Registry
	metrics    Metrics
	group      *errgroup.Group
	ctx        context.Context
	cancel     context.CancelFunc
	log        *log.Logger
}

// NewSessionManager wires an already-listening listener to a handshaker and
// the shared catalog/recents/metrics collaborators.
func NewSessionManager(listener net.Listener, handshaker Handshaker, cat catalog.Catalog, reg *recents.Registry, metrics Metrics) *SessionManager {
	if metrics == nil {
		metrics = NopMetrics{}
	}
	ctx, cancel := context.WithCancel(context.Background())
	group, gctx := errgroup.WithContext(ctx)
	return &SessionManager{
		listener:   listener,
		handshaker: handshaker,
		catalog:    cat,
		recents:    reg,
		metrics:    metrics,
		group:      group,
		ctx:        gctx,
		cancel:     cancel,
		log:        log.With("component", "manager"),
	}
}

// Serve accepts connections until the listener closes or the manager is
// stopped, running each session in its own errgroup goroutine.
func (m *SessionManager) Serve() error {
	for {
		conn, err := m.listener.Accept()
		if err != nil {
			select {
			case <-m.ctx.Done():
				return m.group.Wait()
			default:
				return err
			}
		}
		m.group.Go(func() error {
			return m.runSession(conn)
		})
	}
}

func (m *SessionManager) runSession(conn net.Conn) error {
	sessionID := uuid.NewString()
	sessionLog := m.log.With("session", sessionID)

	params, err := m.handshaker.Handshake(conn)
	if err != nil {
		sessionLog.Warn("handshake failed", "err", err)
		return conn.Close()
	}

	w := New(Params{
		ID:              sessionID,
		Host:            hostOf(conn),
		Socket:          wire.NewTCPSocket(conn),
		Catalog:         m.catalog,
		Recents:         m.recents,
		Metrics:         m.metrics,
		ChannelsIn:      params.ChannelsIn,
		ChannelsOut:     params.ChannelsOut,
		ChannelsSC:      params.ChannelsSC,
		Active:          params.Active,
		SampleRate:      params.SampleRate,
		BlockSize:       params.BlockSize,
		HostWantsDouble: params.HostWantsDouble,
	})

	if err := w.Run(); err != nil {
		sessionLog.Info("session ended", "reason", err)
	}
	return nil
}

func hostOf(conn net.Conn) string {
	addr := conn.RemoteAddr()
	if addr == nil {
		return "unknown"
	}
	host, _, err := net.SplitHostPort(addr.String())
	if err != nil {
		return addr.String()
	}
	return host
}

// Stop closes the listener and waits for all in-flight sessions to finish.
func (m *SessionManager) Stop() error {
	m.cancel()
	err := m.listener.Close()
	if werr := m.group.Wait(); werr != nil && err == nil {
		err = werr
	}
	return err
}
