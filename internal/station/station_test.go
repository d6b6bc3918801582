package station

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ocppsim/charging-station-simulator/internal/configuration"
	"github.com/ocppsim/charging-station-simulator/internal/model"
	"github.com/ocppsim/charging-station-simulator/internal/reservation"
	"github.com/ocppsim/charging-station-simulator/ocpp/services"
)

// fakeRequestService is a network-free stand-in for services.RequestService,
// letting these tests exercise StationOps logic without a real channel.
type fakeRequestService struct {
	starts int
	stops  int
}

func (f *fakeRequestService) BootNotification(info *model.StationInfo) (services.BootResult, error) {
	return services.BootResult{Status: "Accepted"}, nil
}
func (f *fakeRequestService) StatusNotification(connectorID int, status model.Status, errorCode string) error {
	return nil
}
func (f *fakeRequestService) StartTransaction(connectorID int, idTag string, meterStart, reservationID int) (services.StartTransactionResult, error) {
	f.starts++
	return services.StartTransactionResult{TransactionID: 42, IdTagStatus: "Accepted"}, nil
}
func (f *fakeRequestService) StopTransaction(transactionID int, idTag string, meterStop int, reason string) error {
	f.stops++
	return nil
}
func (f *fakeRequestService) MeterValues(connectorID, transactionID int, wattHours float64) error {
	return nil
}
func (f *fakeRequestService) Heartbeat() (string, error) { return "", nil }

func newTestStation(t *testing.T, numConnectors int) (*Station, *fakeRequestService) {
	t.Helper()
	return newTestStationWithModel(t, model.NewConnectorModel(numConnectors))
}

func newTestStationWithModel(t *testing.T, sm *model.StationModel) (*Station, *fakeRequestService) {
	t.Helper()
	store := configuration.NewStore()
	configuration.SeedCoreDefaults(store)
	fake := &fakeRequestService{}

	st := &Station{
		info:         &model.StationInfo{StationID: "CS-TEST", MaximumPower: 22000},
		stationModel: sm,
		store:        store,
		request:      fake,
		logger:       zerolog.Nop(),
		state:        StateOperating,
		meterStopChs: make(map[int]chan struct{}),
		atgManaged:   make(map[int]bool),
	}
	st.reservations = reservation.New(sm, st)
	return st, fake
}

func TestRemoteStartTransactionAcceptsIdleConnector(t *testing.T) {
	st, fake := newTestStation(t, 2)

	status := st.RemoteStartTransaction(1, "TAG1", nil)
	assert.Equal(t, "Accepted", status)
	assert.Equal(t, 1, fake.starts)

	c, _ := st.stationModel.Connector(1)
	assert.True(t, c.TransactionStarted())
	assert.Equal(t, model.StatusCharging, c.Status)

	st.stopMeterLoop(1) // tear down the timer this started
}

func TestRemoteStartTransactionRejectsBusyConnector(t *testing.T) {
	st, _ := newTestStation(t, 1)
	c, _ := st.stationModel.Connector(1)
	c.StartTransaction(1, "OTHER", time.Now(), 0)

	status := st.RemoteStartTransaction(1, "TAG1", nil)
	assert.Equal(t, "Rejected", status)
}

func TestRemoteStartTransactionRejectsStationWideConnector(t *testing.T) {
	st, _ := newTestStation(t, 1)
	status := st.RemoteStartTransaction(0, "TAG1", nil)
	assert.Equal(t, "Rejected", status)
}

func TestRemoteStopTransactionStopsMatchingConnector(t *testing.T) {
	st, fake := newTestStation(t, 1)
	st.RemoteStartTransaction(1, "TAG1", nil)

	status := st.RemoteStopTransaction(42)
	assert.Equal(t, "Accepted", status)
	assert.Equal(t, 1, fake.stops)

	c, _ := st.stationModel.Connector(1)
	assert.False(t, c.TransactionStarted())
	assert.Equal(t, model.StatusAvailable, c.Status)
}

func TestReserveNowThenCancelReservation(t *testing.T) {
	st, _ := newTestStation(t, 1)

	status := st.ReserveNow(1, time.Now().Add(time.Hour), "TAG1", 7)
	assert.Equal(t, "Accepted", status)

	c, _ := st.stationModel.Connector(1)
	assert.Equal(t, model.StatusReserved, c.Status)
	require.NotNil(t, c.Reservation)

	status = st.CancelReservation(7)
	assert.Equal(t, "Accepted", status)

	c, _ = st.stationModel.Connector(1)
	assert.Equal(t, model.StatusAvailable, c.Status)
	assert.Nil(t, c.Reservation)
}

func TestChangeConfigurationRejectsUnknownKey(t *testing.T) {
	st, _ := newTestStation(t, 1)
	status := st.ChangeConfiguration("NoSuchKey", "5")
	assert.Equal(t, "NotSupported", status)

	st.store.Add(configuration.Key{Key: "HeartbeatInterval", Value: "60", Readonly: false}, true)
	status = st.ChangeConfiguration("HeartbeatInterval", "120")
	assert.Equal(t, "Accepted", status)

	k, ok := st.store.Get("HeartbeatInterval")
	require.True(t, ok)
	assert.Equal(t, "120", k.Value)
}

func TestGetCompositeScheduleRejectsWithNoProfiles(t *testing.T) {
	st, _ := newTestStation(t, 1)
	status, schedule := st.GetCompositeSchedule(1, 3600, "W")
	assert.Equal(t, "Rejected", status)
	assert.Nil(t, schedule)
}

func TestSetAndClearChargingProfile(t *testing.T) {
	st, _ := newTestStation(t, 1)
	profile := &model.ChargingProfile{
		ID:                  1,
		StackLevel:          1,
		ChargingProfileKind: model.ChargingProfileKindAbsolute,
		ChargingSchedule: model.ChargingSchedule{
			ChargingRateUnit:       model.ChargingRateUnitWatts,
			ChargingSchedulePeriod: []model.ChargingSchedulePeriod{{StartPeriod: 0, Limit: 5000}},
		},
	}

	status := st.SetChargingProfile(1, profile)
	assert.Equal(t, "Accepted", status)

	c, _ := st.stationModel.Connector(1)
	assert.Len(t, c.Profiles(), 1)

	status = st.ClearChargingProfile(1, 0, "", 0)
	assert.Equal(t, "Accepted", status)
	assert.Empty(t, c.Profiles())
}

func TestSetChargingProfileStationWideWorksInEvseMode(t *testing.T) {
	st, _ := newTestStationWithModel(t, model.NewEvseModel(2, 1))
	start := "2020-01-01T00:00:00Z"
	duration := 100 * 365 * 24 * 60 * 60 // a century, so "now" always falls inside the window
	profile := &model.ChargingProfile{
		ID:                  1,
		StackLevel:          1,
		ChargingProfileKind: model.ChargingProfileKindAbsolute,
		ChargingSchedule: model.ChargingSchedule{
			StartSchedule:          &start,
			Duration:               &duration,
			ChargingRateUnit:       model.ChargingRateUnitWatts,
			ChargingSchedulePeriod: []model.ChargingSchedulePeriod{{StartPeriod: 0, Limit: 5000}},
		},
	}

	status := st.SetChargingProfile(0, profile)
	assert.Equal(t, "Accepted", status)

	wide, ok := st.stationModel.Connector(0)
	require.True(t, ok)
	assert.Len(t, wide.Profiles(), 1)

	statusSchedule, schedule := st.GetCompositeSchedule(1, 3600, "W")
	assert.Equal(t, "Accepted", statusSchedule)
	require.NotNil(t, schedule)
	assert.Equal(t, 5000.0, schedule.ChargingSchedulePeriod[0].Limit)
}

func TestUnlockConnectorRejectsWhileCharging(t *testing.T) {
	st, _ := newTestStation(t, 1)
	st.RemoteStartTransaction(1, "TAG1", nil)

	status := st.UnlockConnector(1)
	assert.Equal(t, "NotSupported", status)

	st.RemoteStopTransaction(42)
	status = st.UnlockConnector(1)
	assert.Equal(t, "Unlocked", status)
}

func TestNotifyReservedAndAvailableUpdateConnectorStatus(t *testing.T) {
	st, _ := newTestStation(t, 1)

	st.NotifyReserved(1)
	c, _ := st.stationModel.Connector(1)
	assert.Equal(t, model.StatusReserved, c.Status)

	st.NotifyAvailable(1)
	c, _ = st.stationModel.Connector(1)
	assert.Equal(t, model.StatusAvailable, c.Status)
}

func TestBootConnectorStatusResolution(t *testing.T) {
	available := model.StatusAvailable
	unavailable := model.StatusUnavailable

	withBootStatus := model.NewConnector(1)
	withBootStatus.BootStatus = &unavailable
	assert.Equal(t, unavailable, bootConnectorStatus(withBootStatus))

	inoperative := model.NewConnector(2)
	inoperative.Availability = model.AvailabilityInoperative
	assert.Equal(t, model.StatusUnavailable, bootConnectorStatus(inoperative))

	plain := model.NewConnector(3)
	assert.Equal(t, available, bootConnectorStatus(plain))
}
