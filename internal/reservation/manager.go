// Package reservation implements the Reservation Manager (spec §4.6):
// attaching reservations to connectors, clearing them with a reason
// taxonomy, reservability checks, and a periodic expiry sweep.
package reservation

import (
	"sync"
	"time"

	"github.com/ocppsim/charging-station-simulator/internal/model"
)

// Notifier is called whenever a reservation's removal should emit a
// StatusNotification, so the Manager never depends on the engine
// directly (spec §4.6 "send StatusNotification(...)").
type Notifier interface {
	NotifyReserved(connectorID int)
	NotifyAvailable(connectorID int)
}

// Manager owns reservation lifecycle for one station's connector model.
type Manager struct {
	mu           sync.Mutex
	stationModel *model.StationModel
	notifier     Notifier
}

// New builds a Manager bound to a station's connector/EVSE model.
func New(stationModel *model.StationModel, notifier Notifier) *Manager {
	return &Manager{stationModel: stationModel, notifier: notifier}
}

// AddReservation implements spec §4.6 addReservation.
func (m *Manager) AddReservation(r model.Reservation) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	connector, ok := m.stationModel.Connector(r.ConnectorID)
	if !ok {
		return false
	}

	if existing := m.findByID(r.ReservationID); existing != nil && existing != connector {
		m.clearLocked(existing, model.RemovalReasonReplaceExisting)
	} else if connector.Reservation != nil && connector.Reservation.ReservationID == r.ReservationID {
		m.clearLocked(connector, model.RemovalReasonReplaceExisting)
	}

	connector.Reservation = &r
	if r.ConnectorID != 0 {
		m.notifier.NotifyReserved(r.ConnectorID)
	}
	return true
}

// RemoveReservation implements spec §4.6 removeReservation.
func (m *Manager) RemoveReservation(reservationID int, reason model.RemovalReason) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	connector := m.findByReservationID(reservationID)
	if connector == nil {
		return false
	}
	m.clearLocked(connector, reason)
	return true
}

func (m *Manager) clearLocked(connector *model.Connector, reason model.RemovalReason) {
	connector.Reservation = nil
	if reason.NotifiesAvailable() && connector.ID != 0 {
		m.notifier.NotifyAvailable(connector.ID)
	}
}

// IsConnectorReservable implements spec §4.6 isConnectorReservable.
func (m *Manager) IsConnectorReservable(reservationID int, idTag string, connectorID int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if connectorID <= 0 {
		return false
	}
	if m.findByReservationID(reservationID) != nil {
		return false
	}
	if idTag != "" && m.findByIdTag(idTag) != nil {
		return false
	}
	return m.freeReservableConnectors() > 0
}

// Sweep implements spec §4.6's periodic expiry sweep: removes every
// reservation whose ExpiryDate has passed, reason EXPIRED.
func (m *Manager) Sweep(now time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for _, connector := range m.stationModel.AllConnectors() {
		if connector.Reservation != nil && connector.Reservation.Expired(now) {
			m.clearLocked(connector, model.RemovalReasonExpired)
			removed++
		}
	}
	return removed
}

func (m *Manager) findByID(reservationID int) *model.Connector {
	return m.findByReservationID(reservationID)
}

func (m *Manager) findByReservationID(reservationID int) *model.Connector {
	for _, c := range m.stationModel.AllConnectors() {
		if c.Reservation != nil && c.Reservation.ReservationID == reservationID {
			return c
		}
	}
	return nil
}

func (m *Manager) findByIdTag(idTag string) *model.Connector {
	for _, c := range m.stationModel.AllConnectors() {
		if c.Reservation != nil && c.Reservation.IdTag == idTag {
			return c
		}
	}
	return nil
}

func (m *Manager) freeReservableConnectors() int {
	n := 0
	for _, c := range m.stationModel.AllConnectors() {
		if c.ID == 0 {
			continue
		}
		if c.Reservation == nil && c.Status == model.StatusAvailable {
			n++
		}
	}
	return n
}
