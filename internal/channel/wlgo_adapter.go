package channel

import (
	"crypto/tls"
	"io"
	"sync"

	"github.com/weilun-shrimp/wlgows/client"
	"github.com/weilun-shrimp/wlgows/connection"
)

// WLGOAdapter implements MessageChannel on top of weilun-shrimp/wlgows,
// the same WebSocket client library used by the teacher's Charger.
type WLGOAdapter struct {
	tlsConfig *tls.Config

	mu   sync.RWMutex
	conn *connection.ClientConn
	open bool
}

// NewWLGOAdapter builds an adapter that dials with the given TLS config
// (nil for plain ws://).
func NewWLGOAdapter(tlsConfig *tls.Config) *WLGOAdapter {
	return &WLGOAdapter{tlsConfig: tlsConfig}
}

func (a *WLGOAdapter) Dial(url string) error {
	conn, err := client.Dial(url, a.tlsConfig)
	if err != nil {
		return err
	}
	if err := conn.HandShake(); err != nil {
		conn.Close()
		return err
	}

	a.mu.Lock()
	a.conn = conn
	a.open = true
	a.mu.Unlock()
	return nil
}

func (a *WLGOAdapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.open {
		return nil
	}
	a.open = false
	if a.conn != nil {
		a.conn.Close()
	}
	return nil
}

func (a *WLGOAdapter) IsOpen() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.open
}

func (a *WLGOAdapter) Send(frame []byte) error {
	a.mu.RLock()
	conn, open := a.conn, a.open
	a.mu.RUnlock()
	if !open || conn == nil {
		return ErrClosed
	}
	conn.SendText(frame)
	return nil
}

func (a *WLGOAdapter) Receive() ([]byte, error) {
	a.mu.RLock()
	conn, open := a.conn, a.open
	a.mu.RUnlock()
	if !open || conn == nil {
		return nil, ErrClosed
	}

	msg, err := conn.GetNextMsg()
	if err != nil {
		a.mu.Lock()
		a.open = false
		a.mu.Unlock()
		if err == io.EOF {
			return nil, ErrClosed
		}
		return nil, err
	}
	return []byte(msg.GetStr()), nil
}
