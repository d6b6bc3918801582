package reservation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ocppsim/charging-station-simulator/internal/model"
)

type recordingNotifier struct {
	reserved  []int
	available []int
}

func (n *recordingNotifier) NotifyReserved(connectorID int)  { n.reserved = append(n.reserved, connectorID) }
func (n *recordingNotifier) NotifyAvailable(connectorID int) { n.available = append(n.available, connectorID) }

func TestAddReservationNotifiesReserved(t *testing.T) {
	sm := model.NewConnectorModel(2)
	notifier := &recordingNotifier{}
	mgr := New(sm, notifier)

	ok := mgr.AddReservation(model.Reservation{ReservationID: 1, ConnectorID: 1, IdTag: "TAG", ExpiryDate: time.Now().Add(time.Hour)})
	require.True(t, ok)
	assert.Equal(t, []int{1}, notifier.reserved)

	c, _ := sm.Connector(1)
	require.NotNil(t, c.Reservation)
	assert.Equal(t, 1, c.Reservation.ReservationID)
}

func TestRemoveReservationReasonsControlNotification(t *testing.T) {
	sm := model.NewConnectorModel(2)
	notifier := &recordingNotifier{}
	mgr := New(sm, notifier)
	mgr.AddReservation(model.Reservation{ReservationID: 1, ConnectorID: 1, ExpiryDate: time.Now().Add(time.Hour)})

	ok := mgr.RemoveReservation(1, model.RemovalReasonTransactionStarted)
	require.True(t, ok)
	assert.Empty(t, notifier.available)

	mgr.AddReservation(model.Reservation{ReservationID: 2, ConnectorID: 1, ExpiryDate: time.Now().Add(time.Hour)})
	mgr.RemoveReservation(2, model.RemovalReasonCanceled)
	assert.Equal(t, []int{1}, notifier.available)
}

func TestIsConnectorReservableRequiresFreeConnectorAndUniqueIds(t *testing.T) {
	sm := model.NewConnectorModel(1)
	mgr := New(sm, &recordingNotifier{})

	assert.True(t, mgr.IsConnectorReservable(1, "TAG", 1))
	assert.False(t, mgr.IsConnectorReservable(1, "TAG", 0)) // connectorId must be > 0

	mgr.AddReservation(model.Reservation{ReservationID: 1, ConnectorID: 1, IdTag: "TAG", ExpiryDate: time.Now().Add(time.Hour)})
	assert.False(t, mgr.IsConnectorReservable(1, "TAG", 1))      // reservation id taken
	assert.False(t, mgr.IsConnectorReservable(2, "TAG", 1))      // idTag already reserved elsewhere
}

func TestSweepRemovesExpiredReservationsAndNotifiesAvailable(t *testing.T) {
	sm := model.NewConnectorModel(1)
	notifier := &recordingNotifier{}
	mgr := New(sm, notifier)
	mgr.AddReservation(model.Reservation{ReservationID: 1, ConnectorID: 1, ExpiryDate: time.Now().Add(-time.Second)})

	removed := mgr.Sweep(time.Now())
	assert.Equal(t, 1, removed)
	assert.Equal(t, []int{1}, notifier.available)

	c, _ := sm.Connector(1)
	assert.Nil(t, c.Reservation)
}
