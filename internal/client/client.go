// Package client is the Go client for the relay server. It maintains
// one websocket session and routes inbound envelopes to registered
// handlers by event type.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/stashgrid/relay/internal/protocol"
)

const welcomeTimeout = 10 * time.Second

// Handler receives one decoded inbound envelope.
type Handler func(env *protocol.Envelope)

type Client struct {
	conn *websocket.Conn
	log  *logrus.Logger
	id   string

	writeMu sync.Mutex

	mu       sync.Mutex
	handlers map[protocol.EventType][]Handler

	done      chan struct{}
	closeOnce sync.Once
}

// Dial connects to a relay server and waits for the welcome envelope
// that carries this client's connection id. Register handlers with On
// before sending anything that can trigger a reply.
func Dial(ctx context.Context, serverURL string, log *logrus.Logger) (*Client, error) {
	if log == nil {
		log = logrus.New()
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, serverURL, nil)
	if err != nil {
		return nil, fmt.Errorf("dial relay: %w", err)
	}
	conn.SetReadLimit(protocol.MaxMessageSize)

	_ = conn.SetReadDeadline(time.Now().Add(welcomeTimeout))
	env, err := readEnvelope(conn)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("read welcome: %w", err)
	}
	if env.Type != protocol.EventWelcome {
		_ = conn.Close()
		return nil, fmt.Errorf("expected welcome, got %s", env.Type)
	}
	var welcome protocol.Welcome
	if err := env.Decode(&welcome); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("decode welcome: %w", err)
	}
	_ = conn.SetReadDeadline(time.Time{})

	c := &Client{
		conn:     conn,
		log:      log,
		id:       welcome.SocketID,
		handlers: make(map[protocol.EventType][]Handler),
		done:     make(chan struct{}),
	}
	go c.listen()

	log.Debugf("Connected to relay as %s", c.id)
	return c, nil
}

// ID is the server-assigned connection id.
func (c *Client) ID() string {
	return c.id
}

// Done is closed when the session ends, whether by Close or by the
// server going away.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		err = c.conn.Close()
	})
	return err
}

// On registers a handler for an event type. Handlers run on the read
// goroutine, one envelope at a time.
func (c *Client) On(event protocol.EventType, h Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[event] = append(c.handlers[event], h)
}

// OnProviderList registers a typed handler for directory updates.
func (c *Client) OnProviderList(fn func(protocol.ProviderListUpdate)) {
	c.On(protocol.EventProviderListUpdate, func(env *protocol.Envelope) {
		var update protocol.ProviderListUpdate
		if err := env.Decode(&update); err != nil {
			c.log.Warnf("Bad provider list payload: %v", err)
			return
		}
		fn(update)
	})
}

// OnFileReceived registers a typed handler for relayed transfers.
func (c *Client) OnFileReceived(fn func(protocol.FileReceived)) {
	c.On(protocol.EventFileReceived, func(env *protocol.Envelope) {
		var received protocol.FileReceived
		if err := env.Decode(&received); err != nil {
			c.log.Warnf("Bad file payload: %v", err)
			return
		}
		fn(received)
	})
}

// OnPaymentReceived registers a typed handler for settlement notices.
func (c *Client) OnPaymentReceived(fn func(protocol.PaymentReceived)) {
	c.On(protocol.EventPaymentReceived, func(env *protocol.Envelope) {
		var payment protocol.PaymentReceived
		if err := env.Decode(&payment); err != nil {
			c.log.Warnf("Bad payment payload: %v", err)
			return
		}
		fn(payment)
	})
}

// OnUploadResult registers a handler for the sender-side outcome of a
// transfer. Exactly one of success or failure is non-nil per call.
func (c *Client) OnUploadResult(fn func(*protocol.UploadSuccess, *protocol.UploadError)) {
	c.On(protocol.EventUploadSuccess, func(env *protocol.Envelope) {
		var ack protocol.UploadSuccess
		if err := env.Decode(&ack); err != nil {
			c.log.Warnf("Bad upload ack payload: %v", err)
			return
		}
		fn(&ack, nil)
	})
	c.On(protocol.EventUploadError, func(env *protocol.Envelope) {
		var uploadErr protocol.UploadError
		if err := env.Decode(&uploadErr); err != nil {
			c.log.Warnf("Bad upload error payload: %v", err)
			return
		}
		fn(nil, &uploadErr)
	})
}

// RegisterProvider joins the directory as a storage provider.
func (c *Client) RegisterProvider(username, walletAddress string) error {
	return c.send(&protocol.RegisterProvider{
		Username:      username,
		WalletAddress: walletAddress,
	})
}

// RegisterUser joins as a plain uploading client.
func (c *Client) RegisterUser(username string) error {
	return c.send(&protocol.RegisterUser{Username: username})
}

// RequestProviders asks for a unicast directory snapshot; the reply
// arrives through OnProviderList.
func (c *Client) RequestProviders() error {
	return c.send(&protocol.GetProviders{})
}

// SendFile initiates a relay transfer; the outcome arrives through
// OnUploadResult.
func (c *Client) SendFile(req *protocol.SendFile) error {
	return c.send(req)
}

// SendPayment notifies one provider of a settlement made on its behalf.
func (c *Client) SendPayment(recipientSocketID string, amount float64) error {
	return c.send(&protocol.PaymentSent{
		RecipientSocketID: recipientSocketID,
		Amount:            amount,
	})
}

func (c *Client) send(msg protocol.Message) error {
	env, err := protocol.Wrap(msg)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteJSON(env)
}

func (c *Client) listen() {
	defer func() {
		c.closeOnce.Do(func() { _ = c.conn.Close() })
		close(c.done)
	}()

	for {
		env, err := readEnvelope(c.conn)
		if err != nil {
			c.log.Debugf("Relay session ended: %v", err)
			return
		}
		c.dispatch(env)
	}
}

func (c *Client) dispatch(env *protocol.Envelope) {
	c.mu.Lock()
	handlers := append([]Handler(nil), c.handlers[env.Type]...)
	c.mu.Unlock()

	if len(handlers) == 0 {
		c.log.Debugf("No handler for %s", env.Type)
		return
	}
	for _, h := range handlers {
		h(env)
	}
}

func readEnvelope(conn *websocket.Conn) (*protocol.Envelope, error) {
	_, data, err := conn.ReadMessage()
	if err != nil {
		return nil, err
	}

	var env protocol.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("unmarshal envelope: %w", err)
	}
	return &env, nil
}
