package engine

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ocppsim/charging-station-simulator/internal/channel"
)

// jsonArrayCodec is a minimal Codec used only by these tests, mirroring
// the real v16/v201 wire shape without pulling in those packages.
type jsonArrayCodec struct{}

func (jsonArrayCodec) MarshalCall(id, action string, payload interface{}) ([]byte, error) {
	return json.Marshal([]interface{}{2, id, action, payload})
}
func (jsonArrayCodec) MarshalCallResult(id string, payload interface{}) ([]byte, error) {
	return json.Marshal([]interface{}{3, id, payload})
}
func (jsonArrayCodec) MarshalCallError(id, code, desc string, details interface{}) ([]byte, error) {
	return json.Marshal([]interface{}{4, id, code, desc, details})
}
func (jsonArrayCodec) ParseMessage(data []byte) (int, string, json.RawMessage, string, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return 0, "", nil, "", err
	}
	var mt int
	var id string
	json.Unmarshal(raw[0], &mt)
	json.Unmarshal(raw[1], &id)
	switch mt {
	case 2:
		var action string
		json.Unmarshal(raw[2], &action)
		return mt, id, raw[3], action, nil
	case 3:
		return mt, id, raw[2], "", nil
	case 4:
		return mt, id, raw[2], "", nil
	}
	return mt, id, nil, "", nil
}

type echoHandler struct{}

func (echoHandler) HandleCall(action string, payload json.RawMessage) (interface{}, error) {
	return map[string]string{"echo": action}, nil
}

func TestSendCallResolvesOnCallResult(t *testing.T) {
	ch := channel.NewFakeChannel()
	require.NoError(t, ch.Dial("ws://x"))
	e := New(jsonArrayCodec{}, ch, echoHandler{}, zerolog.Nop())
	go e.Run()

	go func() {
		time.Sleep(10 * time.Millisecond)
		frames := ch.Outbox()
		require.Len(t, frames, 1)
		var raw []json.RawMessage
		require.NoError(t, json.Unmarshal(frames[0], &raw))
		var id string
		require.NoError(t, json.Unmarshal(raw[1], &id))
		resp, _ := json.Marshal([]interface{}{3, id, map[string]string{"status": "Accepted"}})
		ch.Push(resp)
	}()

	payload, err := e.SendCall("Heartbeat", map[string]string{}, SendOptions{})
	require.NoError(t, err)
	assert.Contains(t, string(payload), "Accepted")
}

func TestSendCallTimesOut(t *testing.T) {
	ch := channel.NewFakeChannel()
	require.NoError(t, ch.Dial("ws://x"))
	e := New(jsonArrayCodec{}, ch, echoHandler{}, zerolog.Nop())
	e.responseTimeout = 20 * time.Millisecond
	go e.Run()

	_, err := e.SendCall("Heartbeat", map[string]string{}, SendOptions{})
	require.Error(t, err)
	oe, ok := err.(*OCPPError)
	require.True(t, ok)
	assert.Equal(t, GenericError, oe.Code)
}

func TestSendCallBuffersWhenChannelClosed(t *testing.T) {
	ch := channel.NewFakeChannel()
	e := New(jsonArrayCodec{}, ch, echoHandler{}, zerolog.Nop())

	_, err := e.SendCall("Heartbeat", map[string]string{}, SendOptions{})
	require.Error(t, err)
	assert.Equal(t, 1, len(e.buffer))
}

func TestFlushBufferSendsWhenAcceptedAndOpen(t *testing.T) {
	ch := channel.NewFakeChannel()
	e := New(jsonArrayCodec{}, ch, echoHandler{}, zerolog.Nop())
	e.buffer["msg-1"] = []byte(`[2,"msg-1","Heartbeat",{}]`)

	e.flushBuffer() // not open yet, nothing happens
	assert.Len(t, e.buffer, 1)

	require.NoError(t, ch.Dial("ws://x"))
	e.SetAccepted(true)
	e.flushBuffer()
	assert.Len(t, e.buffer, 0)
	assert.Len(t, ch.Outbox(), 1)
}

func TestHandleIncomingCallSendsCallResult(t *testing.T) {
	ch := channel.NewFakeChannel()
	require.NoError(t, ch.Dial("ws://x"))
	e := New(jsonArrayCodec{}, ch, echoHandler{}, zerolog.Nop())

	frame, _ := json.Marshal([]interface{}{2, "req-1", "Reset", map[string]string{}})
	e.handleFrame(frame)

	frames := ch.Outbox()
	require.Len(t, frames, 1)
	assert.Contains(t, string(frames[0]), `"echo":"Reset"`)
}

func TestStatisticsSnapshotAccumulatesMessageSize(t *testing.T) {
	s := NewStatistics()
	s.addRequestStatistic("Heartbeat", 5*time.Millisecond, 10, false)
	s.addRequestStatistic("Heartbeat", 15*time.Millisecond, 20, false)

	snap := s.Snapshot()
	stats, ok := snap["Heartbeat"]
	require.True(t, ok)
	assert.Equal(t, int64(30), stats.MessageSize)
	assert.Equal(t, 2, stats.Count)
	assert.Equal(t, 2, stats.ResponseCount)
	assert.Equal(t, 0, stats.ErrorCount)
	assert.InDelta(t, 10.0, stats.AvgMillis, 0.5)
}

func TestStatisticsSnapshotDistinguishesErrorsAndFailures(t *testing.T) {
	s := NewStatistics()
	s.addRequestStatistic("RemoteStartTransaction", 8*time.Millisecond, 40, false)
	s.addRequestStatistic("RemoteStartTransaction", 9*time.Millisecond, 40, true)
	s.recordFailure("RemoteStartTransaction")

	snap := s.Snapshot()
	stats, ok := snap["RemoteStartTransaction"]
	require.True(t, ok)
	assert.Equal(t, 3, stats.Count)
	assert.Equal(t, 1, stats.ResponseCount)
	assert.Equal(t, 2, stats.ErrorCount)
}

func TestStatisticsSnapshotIncludesActionsWithOnlyFailures(t *testing.T) {
	s := NewStatistics()
	s.recordFailure("BootNotification")

	snap := s.Snapshot()
	stats, ok := snap["BootNotification"]
	require.True(t, ok)
	assert.Equal(t, 1, stats.Count)
	assert.Equal(t, 0, stats.ResponseCount)
	assert.Equal(t, 1, stats.ErrorCount)
	assert.Equal(t, 0.0, stats.AvgMillis)
}
