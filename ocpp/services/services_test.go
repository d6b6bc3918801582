package services

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ocppsim/charging-station-simulator/internal/channel"
	"github.com/ocppsim/charging-station-simulator/internal/engine"
	"github.com/ocppsim/charging-station-simulator/internal/model"
)

func TestV16BootNotificationRoundTrip(t *testing.T) {
	ch := channel.NewFakeChannel()
	require.NoError(t, ch.Dial("ws://x"))
	e := engine.New(V16Codec{}, ch, &V16IncomingRequestService{}, zerolog.Nop())
	go e.Run()

	go func() {
		time.Sleep(10 * time.Millisecond)
		frames := ch.Outbox()
		require.Len(t, frames, 1)
		var raw []json.RawMessage
		require.NoError(t, json.Unmarshal(frames[0], &raw))
		var id string
		require.NoError(t, json.Unmarshal(raw[1], &id))
		resp, _ := json.Marshal([]interface{}{3, id, map[string]interface{}{"status": "Accepted", "currentTime": "2026-07-30T00:00:00Z", "interval": 30}})
		ch.Push(resp)
	}()

	svc := &V16RequestService{Engine: e}
	result, err := svc.BootNotification(&model.StationInfo{ChargePointVendor: "Acme", ChargePointModel: "Zapper"})
	require.NoError(t, err)
	assert.Equal(t, "Accepted", result.Status)
	assert.Equal(t, 30, result.Interval)
}
