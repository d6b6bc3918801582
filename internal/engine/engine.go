// Package engine implements the OCPP-J message engine: framed
// request/response/error exchange over a channel.MessageChannel, with a
// pending-request cache, outgoing buffer, and performance statistics
// (spec §4.3).
package engine

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ocppsim/charging-station-simulator/internal/channel"
)

// DefaultResponseTimeout is the time a CALL waits for its response
// before being rejected with GenericError (spec §4.3 step 3).
const DefaultResponseTimeout = 30 * time.Second

// DefaultFlushInterval is the period between outgoing-buffer flush
// attempts (spec §4.3 "Outgoing buffer").
const DefaultFlushInterval = 60 * time.Second

// Codec marshals/parses OCPP-J frames for one protocol version. v16 and
// v201 each provide an implementation backed by their message package.
type Codec interface {
	MarshalCall(messageID, action string, payload interface{}) ([]byte, error)
	MarshalCallResult(messageID string, payload interface{}) ([]byte, error)
	MarshalCallError(messageID string, errorCode, errorDescription string, errorDetails interface{}) ([]byte, error)
	ParseMessage(data []byte) (messageType int, messageID string, payload json.RawMessage, action string, err error)
}

// IncomingRequestService handles one inbound CALL and returns the
// response payload to marshal into a CALLRESULT, or an error (usually
// *OCPPError) to marshal into a CALLERROR (spec §4.3 receive path).
type IncomingRequestService interface {
	HandleCall(action string, payload json.RawMessage) (response interface{}, err error)
}

// cachedRequest is the Engine's bookkeeping for one in-flight CALL
// (spec §3 "CachedRequest").
type cachedRequest struct {
	action  string
	payload interface{}
	started time.Time
	result  chan callOutcome
}

type callOutcome struct {
	response json.RawMessage
	err      *OCPPError
}

// SendOptions controls buffering behavior for one outbound CALL
// (spec §4.3 step 1, "skipBufferingOnError").
type SendOptions struct {
	SkipBufferingOnError bool
}

// Engine is one station's OCPP-J message engine.
type Engine struct {
	codec   Codec
	ch      channel.MessageChannel
	handler IncomingRequestService
	logger  zerolog.Logger

	sendMu sync.Mutex // serializes CALL round trips (spec §5, §9 Open Question)

	mu      sync.Mutex
	pending map[string]*cachedRequest
	buffer  map[string][]byte // keyed by messageID, insertion order not required (spec: "a set")

	stats *Statistics

	responseTimeout time.Duration
	flushInterval   time.Duration
	flushStopCh     chan struct{}
	flushRunning    bool

	accepted bool // gates buffer flush (station-registered-accepted)
}

// New builds an Engine bound to the given channel and incoming-call
// handler. Call Run in a goroutine to start the receive loop.
func New(codec Codec, ch channel.MessageChannel, handler IncomingRequestService, logger zerolog.Logger) *Engine {
	return &Engine{
		codec:           codec,
		ch:              ch,
		handler:         handler,
		logger:          logger,
		pending:         make(map[string]*cachedRequest),
		buffer:          make(map[string][]byte),
		stats:           NewStatistics(),
		responseTimeout: DefaultResponseTimeout,
		flushInterval:   DefaultFlushInterval,
	}
}

// Stats exposes the Engine's performance statistics to the Statistics
// Exporter collaborator (spec §2 row M).
func (e *Engine) Stats() *Statistics { return e.stats }

// SetAccepted toggles the gate used by the outgoing-buffer flush loop
// (station transitioned to/from Accepted).
func (e *Engine) SetAccepted(accepted bool) {
	e.mu.Lock()
	e.accepted = accepted
	e.mu.Unlock()
}

// Run starts the blocking receive loop. It returns when Receive returns an
// error, e.g. because the channel closed; Stop does not end it.
func (e *Engine) Run() {
	for {
		frame, err := e.ch.Receive()
		if err != nil {
			e.logger.Info().Err(err).Msg("engine receive loop ending")
			e.failAllPending(NewOCPPError(GenericError, "channel closed"))
			return
		}
		e.handleFrame(frame)
	}
}

// Stop cancels the periodic buffer flush, if running.
func (e *Engine) Stop() {
	e.mu.Lock()
	if e.flushRunning {
		close(e.flushStopCh)
		e.flushRunning = false
	}
	e.mu.Unlock()
}

// StartFlushLoop begins the periodic outgoing-buffer flush timer
// (spec §4.3 "a periodic flush timer (default every 60s)").
func (e *Engine) StartFlushLoop() {
	e.mu.Lock()
	if e.flushRunning {
		e.mu.Unlock()
		return
	}
	e.flushStopCh = make(chan struct{})
	e.flushRunning = true
	stopCh := e.flushStopCh
	e.mu.Unlock()

	ticker := time.NewTicker(e.flushInterval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-stopCh:
				return
			case <-ticker.C:
				e.flushBuffer()
			}
		}
	}()
}

func (e *Engine) flushBuffer() {
	e.mu.Lock()
	if !e.ch.IsOpen() || !e.accepted || len(e.buffer) == 0 {
		e.mu.Unlock()
		return
	}
	frames := make(map[string][]byte, len(e.buffer))
	for id, f := range e.buffer {
		frames[id] = f
	}
	e.mu.Unlock()

	for id, frame := range frames {
		if err := e.ch.Send(frame); err != nil {
			continue
		}
		e.mu.Lock()
		delete(e.buffer, id)
		empty := len(e.buffer) == 0
		e.mu.Unlock()
		if empty {
			break
		}
	}

	e.mu.Lock()
	if len(e.buffer) == 0 && e.flushRunning {
		close(e.flushStopCh)
		e.flushRunning = false
	}
	e.mu.Unlock()
}

// SendCall transmits a CALL and blocks until its response, error, or
// timeout (spec §4.3 send path). It serializes outbound CALLs via
// sendMu so two callers can never interleave two in-flight CALLs on
// the same station (spec §5).
func (e *Engine) SendCall(action string, payload interface{}, opts SendOptions) (json.RawMessage, error) {
	e.sendMu.Lock()
	defer e.sendMu.Unlock()

	messageID := uuid.New().String()
	frame, err := e.codec.MarshalCall(messageID, action, payload)
	if err != nil {
		return nil, fmt.Errorf("engine: marshal call: %w", err)
	}

	if !e.ch.IsOpen() && !opts.SkipBufferingOnError {
		e.mu.Lock()
		e.buffer[messageID] = frame
		e.mu.Unlock()
		e.stats.recordFailure(action)
		return nil, NewOCPPError(GenericError, "channel not open, buffered for later delivery")
	}

	result := make(chan callOutcome, 1)
	started := time.Now()
	e.mu.Lock()
	e.pending[messageID] = &cachedRequest{action: action, payload: payload, started: started, result: result}
	e.mu.Unlock()

	if err := e.ch.Send(frame); err != nil {
		e.mu.Lock()
		delete(e.pending, messageID)
		if !opts.SkipBufferingOnError {
			e.buffer[messageID] = frame
		}
		e.mu.Unlock()
		e.stats.recordFailure(action)
		return nil, NewOCPPError(GenericError, "send failed: "+err.Error())
	}

	select {
	case outcome := <-result:
		e.stats.addRequestStatistic(action, time.Since(started), len(frame), outcome.err != nil)
		if outcome.err != nil {
			return nil, outcome.err
		}
		return outcome.response, nil
	case <-time.After(e.responseTimeout):
		e.mu.Lock()
		delete(e.pending, messageID)
		e.mu.Unlock()
		e.stats.recordFailure(action)
		return nil, NewOCPPError(GenericError, "timeout waiting for response to "+action)
	}
}

func (e *Engine) handleFrame(frame []byte) {
	messageType, messageID, payload, action, err := e.codec.ParseMessage(frame)
	if err != nil {
		e.logger.Warn().Err(err).Msg("dropping malformed frame")
		return
	}

	switch messageType {
	case 2: // CALL
		e.handleIncomingCall(messageID, action, payload)
	case 3: // CALLRESULT
		e.resolvePending(messageID, callOutcome{response: payload})
	case 4: // CALLERROR
		e.handleIncomingError(messageID, payload)
	default:
		e.logger.Warn().Int("messageType", messageType).Msg("unknown message type")
	}
}

func (e *Engine) handleIncomingCall(messageID, action string, payload json.RawMessage) {
	response, err := e.handler.HandleCall(action, payload)
	if err != nil {
		oe := AsOCPPError(err)
		frame, marshalErr := e.codec.MarshalCallError(messageID, string(oe.Code), oe.Description, oe.Details)
		if marshalErr != nil {
			e.logger.Error().Err(marshalErr).Msg("failed to marshal CALLERROR")
			return
		}
		if sendErr := e.ch.Send(frame); sendErr != nil {
			e.logger.Error().Err(sendErr).Str("action", action).Msg("failed to send CALLERROR")
		}
		return
	}

	frame, marshalErr := e.codec.MarshalCallResult(messageID, response)
	if marshalErr != nil {
		e.logger.Error().Err(marshalErr).Msg("failed to marshal CALLRESULT")
		return
	}
	if sendErr := e.ch.Send(frame); sendErr != nil {
		e.logger.Error().Err(sendErr).Str("action", action).Msg("failed to send CALLRESULT")
	}
}

func (e *Engine) handleIncomingError(messageID string, payload json.RawMessage) {
	var code string
	_ = json.Unmarshal(payload, &code)
	e.resolvePending(messageID, callOutcome{err: NewOCPPError(ErrorCode(code), "remote returned CALLERROR")})
}

func (e *Engine) resolvePending(messageID string, outcome callOutcome) {
	e.mu.Lock()
	cr, ok := e.pending[messageID]
	if ok {
		delete(e.pending, messageID)
	}
	e.mu.Unlock()

	if !ok {
		e.logger.Debug().Str("messageId", messageID).Msg("no pending request for message id")
		return
	}
	cr.result <- outcome
}

func (e *Engine) failAllPending(err *OCPPError) {
	e.mu.Lock()
	pending := e.pending
	e.pending = make(map[string]*cachedRequest)
	e.mu.Unlock()

	for _, cr := range pending {
		cr.result <- callOutcome{err: err}
	}
}
