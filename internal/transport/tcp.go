package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"
)

var (
	ErrConnectionFailed = errors.New("printer connection failed")
	ErrWriteFailed      = errors.New("printer write failed")
)

// Transport delivers rendered bytes to a physical printer. The wire protocol
// (ESC/POS etc.) is the caller's concern; the transport only moves bytes.
type Transport interface {
	Send(ctx context.Context, address string, port int, data []byte) error
	Probe(address string, port int) bool
}

// TCP sends raw bytes over a printer's TCP socket (port 9100 for thermal
// printers). Every dial and write carries a deadline; a stuck printer fails
// the job instead of blocking the caller.
type TCP struct {
	dialTimeout  time.Duration
	writeTimeout time.Duration
}

func NewTCP(dialTimeout, writeTimeout time.Duration) *TCP {
	if dialTimeout <= 0 {
		dialTimeout = 3 * time.Second
	}
	if writeTimeout <= 0 {
		writeTimeout = 5 * time.Second
	}
	return &TCP{dialTimeout: dialTimeout, writeTimeout: writeTimeout}
}

func (t *TCP) Send(ctx context.Context, address string, port int, data []byte) error {
	addr := fmt.Sprintf("%s:%d", address, port)

	dialer := net.Dialer{Timeout: t.dialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}
	defer conn.Close()

	deadline := time.Now().Add(t.writeTimeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}
	if err := conn.SetWriteDeadline(deadline); err != nil {
		return fmt.Errorf("%w: %v", ErrWriteFailed, err)
	}

	if _, err := conn.Write(data); err != nil {
		return fmt.Errorf("%w: %v", ErrWriteFailed, err)
	}

	return nil
}

// Probe reports whether the printer accepts TCP connections. Advisory only:
// a printer that fails the probe may still be attempted later.
func (t *TCP) Probe(address string, port int) bool {
	conn, err := net.DialTimeout("tcp", fmt.Sprintf("%s:%d", address, port), t.dialTimeout)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}
