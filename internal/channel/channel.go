// Package channel abstracts the transport a station uses to exchange
// OCPP-J frames with a central system, so the engine never depends
// directly on a WebSocket client library (spec §4.2, §9 "transport is
// swappable behind an interface").
package channel

import (
	"crypto/tls"
	"fmt"
)

// MessageChannel is the transport seam the Engine sends/receives
// raw OCPP-J text frames through.
type MessageChannel interface {
	Dial(url string) error
	Close() error
	IsOpen() bool
	Send(frame []byte) error
	// Receive blocks until a frame arrives or the channel closes, at
	// which point it returns a non-nil error.
	Receive() ([]byte, error)
}

// ErrClosed is returned by Send/Receive once the channel has been
// closed, either locally or by the remote end.
var ErrClosed = fmt.Errorf("channel: closed")

// TLSConfigFunc produces the tls.Config used for wss:// dials, mirroring
// the teacher's config.GetTLSConfig seam.
type TLSConfigFunc func() (*tls.Config, error)
