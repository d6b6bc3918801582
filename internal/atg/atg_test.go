package atg

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ocppsim/charging-station-simulator/internal/model"
	"github.com/ocppsim/charging-station-simulator/ocpp/services"
)

type fakeRequestService struct {
	mu     sync.Mutex
	starts int
	stops  int
}

func (f *fakeRequestService) BootNotification(info *model.StationInfo) (services.BootResult, error) {
	return services.BootResult{}, nil
}
func (f *fakeRequestService) StatusNotification(connectorID int, status model.Status, errorCode string) error {
	return nil
}
func (f *fakeRequestService) StartTransaction(connectorID int, idTag string, meterStart, reservationID int) (services.StartTransactionResult, error) {
	f.mu.Lock()
	f.starts++
	f.mu.Unlock()
	return services.StartTransactionResult{TransactionID: 1, IdTagStatus: "Accepted"}, nil
}
func (f *fakeRequestService) StopTransaction(transactionID int, idTag string, meterStop int, reason string) error {
	f.mu.Lock()
	f.stops++
	f.mu.Unlock()
	return nil
}
func (f *fakeRequestService) MeterValues(connectorID, transactionID int, wattHours float64) error {
	return nil
}
func (f *fakeRequestService) Heartbeat() (string, error) { return "", nil }

func TestGeneratorStartRunsSessionToCompletion(t *testing.T) {
	fake := &fakeRequestService{}
	gen := New(Config{
		MinDuration: 20 * time.Millisecond, MaxDuration: 20 * time.Millisecond,
		MinEnergyWh: 100, MaxEnergyWh: 100, IdTag: "TAG",
		TickInterval: 5 * time.Millisecond,
	}, fake)

	gen.Start([]int{1})
	assert.True(t, gen.Started())

	require.Eventually(t, func() bool {
		fake.mu.Lock()
		defer fake.mu.Unlock()
		return fake.stops == 1
	}, time.Second, 5*time.Millisecond)

	fake.mu.Lock()
	assert.Equal(t, 1, fake.starts)
	fake.mu.Unlock()
	assert.False(t, gen.Started())
}

func TestGeneratorStopEndsSessionEarly(t *testing.T) {
	fake := &fakeRequestService{}
	gen := New(Config{
		MinDuration: time.Hour, MaxDuration: time.Hour,
		MinEnergyWh: 100, MaxEnergyWh: 100, IdTag: "TAG",
		TickInterval: 5 * time.Millisecond,
	}, fake)

	gen.Start([]int{1})
	require.Eventually(t, func() bool {
		fake.mu.Lock()
		defer fake.mu.Unlock()
		return fake.starts == 1
	}, time.Second, 5*time.Millisecond)

	gen.Stop(nil)
	require.Eventually(t, func() bool {
		fake.mu.Lock()
		defer fake.mu.Unlock()
		return fake.stops == 1
	}, time.Second, 5*time.Millisecond)
	assert.False(t, gen.Started())
}
