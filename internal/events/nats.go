package events

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/Rajchodisetti/stock-insights/internal/adapters"
	"github.com/Rajchodisetti/stock-insights/internal/observ"
)

// Conn is the part of *nats.Conn the publisher uses
type Conn interface {
	Publish(subject string, data []byte) error
	Flush() error
	Close()
}

type Config struct {
	URL            string
	Subject        string
	ClientID       string
	ConnectTimeout time.Duration
	ReconnectWait  time.Duration
	MaxReconnects  int
}

// NATSPublisher fans recorded provider calls out to NATS core subjects
// (fire-and-forget). It implements adapters.CallObserver.
type NATSPublisher struct {
	subject string

	mu        sync.RWMutex
	conn      Conn
	connected bool
}

var _ adapters.CallObserver = (*NATSPublisher)(nil)

// NewNATSPublisher wraps an existing connection.
func NewNATSPublisher(conn Conn, subject string) *NATSPublisher {
	if subject == "" {
		subject = "stock.av.calls"
	}
	return &NATSPublisher{subject: subject, conn: conn, connected: conn != nil}
}

// Connect dials NATS and returns a publisher bound to the connection.
func Connect(cfg Config) (*NATSPublisher, error) {
	if cfg.ClientID == "" {
		cfg.ClientID = "stockcore"
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 5 * time.Second
	}
	if cfg.ReconnectWait <= 0 {
		cfg.ReconnectWait = 2 * time.Second
	}
	if cfg.MaxReconnects == 0 {
		cfg.MaxReconnects = 60
	}

	np := NewNATSPublisher(nil, cfg.Subject)
	opts := []nats.Option{
		nats.Name(cfg.ClientID),
		nats.Timeout(cfg.ConnectTimeout),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			kv := map[string]any{"client": cfg.ClientID}
			if err != nil {
				kv["error"] = err.Error()
			}
			observ.Warn("nats_disconnected", kv)
			np.setConnected(false)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			observ.Log("nats_reconnected", map[string]any{"url": nc.ConnectedUrl()})
			np.setConnected(true)
		}),
		nats.ClosedHandler(func(*nats.Conn) {
			np.setConnected(false)
		}),
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("nats connection failed: %w", err)
	}
	np.mu.Lock()
	np.conn = nc
	np.connected = true
	np.mu.Unlock()

	observ.Log("nats_connected", map[string]any{
		"url":     nc.ConnectedUrl(),
		"subject": np.subject,
	})
	return np, nil
}

// Subject returns the subject an event for function is published on.
func (np *NATSPublisher) Subject(function string) string {
	if function == "" {
		return np.subject
	}
	return np.subject + "." + strings.ToLower(function)
}

// ObserveCall publishes ev. Failures are logged and counted, never returned,
// so a broker outage cannot fail a provider call.
func (np *NATSPublisher) ObserveCall(ev adapters.CallEvent) {
	subject := np.Subject(ev.Function)
	data, err := json.Marshal(ev)
	if err != nil {
		np.fail(subject, err)
		return
	}

	np.mu.RLock()
	conn, connected := np.conn, np.connected
	np.mu.RUnlock()
	if conn == nil || !connected {
		np.fail(subject, fmt.Errorf("nats client not connected"))
		return
	}
	if err := conn.Publish(subject, data); err != nil {
		np.fail(subject, err)
		return
	}
	observ.IncCounter("av_events_published_total", nil)
}

func (np *NATSPublisher) fail(subject string, err error) {
	observ.IncCounter("av_events_publish_errors_total", nil)
	observ.Warn("nats_publish_failed", map[string]any{
		"subject": subject,
		"error":   err.Error(),
	})
}

func (np *NATSPublisher) IsConnected() bool {
	np.mu.RLock()
	defer np.mu.RUnlock()
	return np.connected
}

// Close flushes pending events and closes the connection.
func (np *NATSPublisher) Close() error {
	np.mu.Lock()
	defer np.mu.Unlock()
	if np.conn == nil {
		return nil
	}
	var err error
	if np.connected {
		err = np.conn.Flush()
	}
	np.conn.Close()
	np.conn = nil
	np.connected = false
	return err
}

func (np *NATSPublisher) setConnected(v bool) {
	np.mu.Lock()
	np.connected = v
	np.mu.Unlock()
}
