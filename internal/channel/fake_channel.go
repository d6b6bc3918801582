package channel

import "sync"

// FakeChannel is an in-memory MessageChannel used by engine and station
// tests so they never need a real WebSocket server.
type FakeChannel struct {
	mu      sync.Mutex
	open    bool
	outbox  [][]byte
	inbox   chan []byte
	dialErr error
}

// NewFakeChannel builds a FakeChannel, initially closed.
func NewFakeChannel() *FakeChannel {
	return &FakeChannel{inbox: make(chan []byte, 64)}
}

func (f *FakeChannel) Dial(url string) error {
	if f.dialErr != nil {
		return f.dialErr
	}
	f.mu.Lock()
	f.open = true
	f.mu.Unlock()
	return nil
}

func (f *FakeChannel) SetDialError(err error) { f.dialErr = err }

func (f *FakeChannel) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.open {
		f.open = false
		close(f.inbox)
	}
	return nil
}

func (f *FakeChannel) IsOpen() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.open
}

func (f *FakeChannel) Send(frame []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.open {
		return ErrClosed
	}
	cp := make([]byte, len(frame))
	copy(cp, frame)
	f.outbox = append(f.outbox, cp)
	return nil
}

func (f *FakeChannel) Receive() ([]byte, error) {
	frame, ok := <-f.inbox
	if !ok {
		return nil, ErrClosed
	}
	return frame, nil
}

// Outbox returns every frame sent so far, for test assertions.
func (f *FakeChannel) Outbox() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]byte, len(f.outbox))
	copy(out, f.outbox)
	return out
}

// Push delivers a frame to Receive, simulating an inbound server message.
func (f *FakeChannel) Push(frame []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.open {
		f.inbox <- frame
	}
}
