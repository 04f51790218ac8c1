// Package eventbus wraps an embedded NATS server for in-process pub/sub:
// agent-mention events and meeting turn events flow through it instead of
// direct cross-package calls. SubjectApprovalResolved is declared here, but
// nothing publishes or subscribes to it.
package eventbus

import (
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
)

type Config struct {
	Port int
}

// Bus wraps an embedded NATS server and a single shared client connection.
type Bus struct {
	srv  *server.Server
	conn *nats.Conn

	mu      sync.RWMutex
	running bool
}

func New(cfg Config) (*Bus, error) {
	if cfg.Port <= 0 {
		cfg.Port = 4222
	}
	opts := &server.Options{
		Host:       "127.0.0.1",
		Port:       cfg.Port,
		NoSigs:     true,
		MaxPayload: 1024 * 1024,
	}
	ns, err := server.NewServer(opts)
	if err != nil {
		return nil, fmt.Errorf("create embedded event bus: %w", err)
	}
	return &Bus{srv: ns}, nil
}

func (b *Bus) Start() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.running {
		return nil
	}

	go b.srv.Start()
	if !b.srv.ReadyForConnections(10 * time.Second) {
		return fmt.Errorf("event bus not ready for connections")
	}

	conn, err := nats.Connect(b.srv.ClientURL())
	if err != nil {
		return fmt.Errorf("connect to embedded event bus: %w", err)
	}
	b.conn = conn
	b.running = true
	return nil
}

func (b *Bus) Shutdown() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.running {
		return
	}
	if b.conn != nil {
		b.conn.Close()
	}
	b.srv.Shutdown()
	b.srv.WaitForShutdown()
	b.running = false
}

// Publish sends payload on subject, fire-and-forget. Errors are non-fatal:
// a dropped notification never blocks the caller's primary action.
func (b *Bus) Publish(subject string, payload []byte) error {
	b.mu.RLock()
	conn := b.conn
	b.mu.RUnlock()
	if conn == nil {
		return fmt.Errorf("event bus not started")
	}
	return conn.Publish(subject, payload)
}

// Subscribe registers handler for every message on subject until the
// returned subscription is unsubscribed.
func (b *Bus) Subscribe(subject string, handler func(payload []byte)) (*nats.Subscription, error) {
	b.mu.RLock()
	conn := b.conn
	b.mu.RUnlock()
	if conn == nil {
		return nil, fmt.Errorf("event bus not started")
	}
	return conn.Subscribe(subject, func(msg *nats.Msg) {
		handler(msg.Data)
	})
}

// Subjects used across the engine's pub/sub traffic.
const (
	SubjectMention        = "loom.chat.mention"
	SubjectMeetingTurn     = "loom.meeting.turn"
	SubjectApprovalResolved = "loom.approval.resolved"
)
