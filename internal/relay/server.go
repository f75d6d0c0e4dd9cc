package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/stashgrid/relay/internal/journal"
	"github.com/stashgrid/relay/internal/protocol"
	"github.com/stashgrid/relay/internal/registry"
)

type Config struct {
	Addr    string
	Logger  *slog.Logger
	Journal *journal.Journal

	// SendBufferSize caps how many envelopes may queue for one
	// connection before it is dropped as a slow consumer. Zero means
	// the default.
	SendBufferSize int
}

type inboundEnvelope struct {
	sess *session
	env  *protocol.Envelope
}

// Server is the rendezvous and relay service. All registry mutation and
// fan-out happens on the single run loop, so each inbound event is
// handled to completion before the next one is read.
type Server struct {
	config   Config
	logger   *slog.Logger
	registry *registry.Registry
	journal  *journal.Journal

	listener   net.Listener
	httpServer *http.Server
	upgrader   websocket.Upgrader

	sessions   map[string]*session
	sendBuf    int
	register   chan *session
	unregister chan *session
	inbound    chan inboundEnvelope

	done      chan struct{}
	closeOnce sync.Once
}

func NewServer(cfg Config) (*Server, error) {
	ln, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return nil, err
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		config:   cfg,
		logger:   logger,
		registry: registry.NewRegistry(),
		journal:  cfg.Journal,
		listener: ln,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		sessions:   make(map[string]*session),
		sendBuf:    cfg.SendBufferSize,
		register:   make(chan *session),
		unregister: make(chan *session),
		inbound:    make(chan inboundEnvelope, 64),
		done:       make(chan struct{}),
	}
	if s.sendBuf <= 0 {
		s.sendBuf = defaultSendBufferSize
	}
	s.httpServer = &http.Server{Handler: http.HandlerFunc(s.handleConnection)}

	return s, nil
}

func (s *Server) Addr() string {
	return s.listener.Addr().String()
}

func (s *Server) Shutdown() error {
	s.logger.Info("Shutting down relay server")
	s.closeOnce.Do(func() { close(s.done) })
	return s.httpServer.Close()
}

func (s *Server) Start(ctx context.Context) error {
	s.logger.Info("Relay server started", "addr", s.Addr())

	go s.run()
	go func() {
		select {
		case <-ctx.Done():
			_ = s.Shutdown()
		case <-s.done:
		}
	}()

	err := s.httpServer.Serve(s.listener)
	if errors.Is(err, http.ErrServerClosed) {
		return ctx.Err()
	}
	return err
}

// handleConnection upgrades websocket requests and answers plain HTTP
// probes with a liveness line.
func (s *Server) handleConnection(w http.ResponseWriter, r *http.Request) {
	if !websocket.IsWebSocketUpgrade(r) {
		fmt.Fprint(w, "relay server running")
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("Upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	sess := newSession(uuid.NewString(), conn, s)
	go sess.writePump()

	select {
	case s.register <- sess:
	case <-s.done:
		_ = conn.Close()
		return
	}

	sess.readPump()
}

// run is the event loop. It is the only goroutine that touches the
// sessions map or pushes to session send channels.
func (s *Server) run() {
	for {
		select {
		case <-s.done:
			for _, sess := range s.sessions {
				delete(s.sessions, sess.id)
				s.registry.Unregister(sess.id)
				close(sess.send)
			}
			return
		case sess := <-s.register:
			s.sessions[sess.id] = sess
			s.registry.Connect(sess.id)
			sess.push(protocol.MustWrap(&protocol.Welcome{SocketID: sess.id}))
			s.logger.Info("Client connected", "conn", sess.id)
		case sess := <-s.unregister:
			s.teardown(sess)
		case in := <-s.inbound:
			if _, ok := s.sessions[in.sess.id]; !ok {
				continue
			}
			s.handleEnvelope(in.sess, in.env)
		}
	}
}

// dropSession is called from session pumps; teardown itself must only
// run on the event loop.
func (s *Server) dropSession(sess *session) {
	select {
	case s.unregister <- sess:
	case <-s.done:
	}
}

func (s *Server) teardown(sess *session) {
	if _, ok := s.sessions[sess.id]; !ok {
		return
	}
	delete(s.sessions, sess.id)

	participant, _ := s.registry.Get(sess.id)
	wasProvider := s.registry.Unregister(sess.id)
	close(sess.send)
	// Unblocks a write pump stuck on a full socket, so eviction does not
	// wait for the peer to drain.
	_ = sess.conn.Close()

	s.logger.Info("Client disconnected",
		"conn", sess.id,
		"role", participant.Role.String(),
		"username", participant.Username,
	)

	if wasProvider {
		s.broadcastDirectory()
	}
}

func (s *Server) handleEnvelope(sess *session, env *protocol.Envelope) {
	msg, err := env.Unwrap()
	if err != nil {
		s.logger.Warn("Dropping undecodable message", "conn", sess.id, "error", err)
		return
	}

	switch m := msg.(type) {
	case *protocol.RegisterProvider:
		s.registry.RegisterProvider(sess.id, m.Username, m.WalletAddress)
		s.logger.Info("Provider registered",
			"username", m.Username,
			"conn", sess.id,
			"wallet", m.WalletAddress != "",
		)
		s.broadcastDirectory()
	case *protocol.RegisterUser:
		displacedProvider := s.registry.RegisterUser(sess.id, m.Username)
		s.logger.Info("User registered", "username", m.Username, "conn", sess.id)
		if displacedProvider {
			s.broadcastDirectory()
		}
	case *protocol.GetProviders:
		s.pushOrDrop(sess, s.directoryUpdate())
	case *protocol.SendFile:
		s.relayFile(sess, m)
	case *protocol.PaymentSent:
		s.forwardPayment(sess, m)
	default:
		s.logger.Warn("Unhandled event", "type", env.Type, "conn", sess.id)
	}
}

// relayFile executes one transfer: snapshot the directory, fan out to
// every provider but the sender, then ack the sender. The ack is sent
// unconditionally after the fan-out attempts; individual pushes that
// fail are logged and the recipient dropped, but the sender's count is
// not corrected.
func (s *Server) relayFile(sess *session, req *protocol.SendFile) {
	deliveries, ack, err := planFanOut(sess.id, req, s.registry.Providers(), time.Now())
	if err != nil {
		s.logger.Warn("Rejecting transfer", "sender", req.SenderUsername, "reason", err)
		s.pushOrDrop(sess, protocol.MustWrap(&protocol.UploadError{Message: err.Error()}))
		return
	}

	s.logger.Info("Relaying file",
		"sender", req.SenderUsername,
		"file", req.OriginalFileName,
		"size", req.FileSize,
		"recipients", len(deliveries),
	)

	for _, d := range deliveries {
		recipient, ok := s.sessions[d.ConnID]
		if !ok {
			s.logger.Warn("Recipient vanished mid fan-out", "conn", d.ConnID)
			continue
		}
		s.pushOrDrop(recipient, protocol.MustWrap(d.Msg))
	}

	s.pushOrDrop(sess, protocol.MustWrap(ack))

	if s.journal != nil {
		payouts := make([]journal.PayoutEntry, 0, len(deliveries))
		for _, d := range deliveries {
			payouts = append(payouts, journal.PayoutEntry{
				Username:       d.Username,
				RoutingAddress: d.RoutingAddress,
				Amount:         d.Msg.Payment,
				External:       d.External,
			})
		}
		name := req.OriginalFileName
		if name == "" {
			name = req.FileName
		}
		if err := s.journal.RecordTransfer(req.SenderUsername, name, req.FileSize, req.Cost, payouts); err != nil {
			s.logger.Error("Journal write failed", "error", err)
		}
	}
}

// forwardPayment relays a settlement notice to one provider. Unknown
// recipients are dropped silently; the payer gets no receipt either way.
func (s *Server) forwardPayment(sess *session, m *protocol.PaymentSent) {
	if m.RecipientSocketID == "" {
		return
	}
	recipient, ok := s.sessions[m.RecipientSocketID]
	if !ok {
		s.logger.Debug("Payment for unknown recipient", "from", sess.id, "to", m.RecipientSocketID)
		return
	}
	s.pushOrDrop(recipient, protocol.MustWrap(&protocol.PaymentReceived{Amount: m.Amount}))
}

// broadcastDirectory sends the current directory to every open
// connection, providers and plain users alike. It fires on every
// provider registration, even a no-op re-registration; the redundant
// broadcast is harmless and keeps the trigger rule simple.
func (s *Server) broadcastDirectory() {
	env := s.directoryUpdate()
	var slow []*session
	for _, sess := range s.sessions {
		if !sess.push(env) {
			slow = append(slow, sess)
		}
	}
	for _, sess := range slow {
		s.logger.Warn("Dropping slow consumer", "conn", sess.id)
		s.teardown(sess)
	}
}

func (s *Server) directoryUpdate() *protocol.Envelope {
	providers := s.registry.Providers()
	entries := make([]protocol.ProviderEntry, 0, len(providers))
	for _, p := range providers {
		entries = append(entries, protocol.ProviderEntry{
			Username:  p.Username,
			ID:        p.RoutingAddress,
			SocketID:  p.ConnID,
			HasWallet: p.HasWallet,
		})
	}
	return protocol.MustWrap(&protocol.ProviderListUpdate{Providers: entries})
}

// pushOrDrop enqueues an envelope and evicts the session if its write
// buffer is full. Sessions already torn down are skipped; their send
// channel is closed and must not be pushed to.
func (s *Server) pushOrDrop(sess *session, env *protocol.Envelope) {
	if _, ok := s.sessions[sess.id]; !ok {
		return
	}
	if sess.push(env) {
		return
	}
	s.logger.Warn("Dropping slow consumer", "conn", sess.id)
	s.teardown(sess)
}
