// Package nats implements a NATS fault-record transport.
//
// Records are published as JSON on <subject>.<error type>, so consumers can
// subscribe to all faults with <subject>.> or to a single class.
package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/pithecene-io/vpd/adapter"
	"github.com/pithecene-io/vpd/types"
)

// DefaultSubject is the default subject prefix.
const DefaultSubject = "vpd.pel"

// DefaultConnectTimeout is the default connection timeout.
const DefaultConnectTimeout = 5 * time.Second

// Config configures the NATS transport.
type Config struct {
	// URL is the NATS server URL (default: nats.DefaultURL).
	URL string
	// Subject is the subject prefix (default: vpd.pel).
	Subject string
	// ConnectTimeout bounds the initial connection (default 5s).
	ConnectTimeout time.Duration
	// RetryOnFailedConnect keeps trying in the background instead of
	// failing New when the server is unreachable.
	RetryOnFailedConnect bool
}

// Transport publishes fault records to NATS.
type Transport struct {
	conn    *nats.Conn
	subject string
}

// New connects to NATS and returns a transport.
func New(cfg Config) (*Transport, error) {
	if cfg.URL == "" {
		cfg.URL = nats.DefaultURL
	}
	if cfg.Subject == "" {
		cfg.Subject = DefaultSubject
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = DefaultConnectTimeout
	}

	conn, err := nats.Connect(cfg.URL,
		nats.Name("vpd-manager"),
		nats.Timeout(cfg.ConnectTimeout),
		nats.RetryOnFailedConnect(cfg.RetryOnFailedConnect),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	return &Transport{conn: conn, subject: cfg.Subject}, nil
}

// SubjectFor returns the subject a record is published on.
func SubjectFor(prefix string, record *types.FaultRecord) string {
	class := record.ErrorType
	if class == "" {
		class = types.UndefinedError.String()
	}
	return prefix + "." + strings.ReplaceAll(class, ".", "_")
}

// Create publishes the record and flushes so the server has seen it before
// returning.
func (t *Transport) Create(ctx context.Context, record *types.FaultRecord) error {
	body, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("nats: marshal record: %w", err)
	}
	if err := t.conn.Publish(SubjectFor(t.subject, record), body); err != nil {
		return fmt.Errorf("nats: publish: %w", err)
	}
	if err := t.conn.FlushWithContext(ctx); err != nil {
		return fmt.Errorf("nats: flush: %w", err)
	}
	return nil
}

// Close drains pending messages and closes the connection.
func (t *Transport) Close() error {
	if err := t.conn.Drain(); err != nil {
		t.conn.Close()
		return err
	}
	return nil
}

var _ adapter.Transport = (*Transport)(nil)
