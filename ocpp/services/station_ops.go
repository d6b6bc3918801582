package services

import (
	"time"

	"github.com/ocppsim/charging-station-simulator/internal/configuration"
	"github.com/ocppsim/charging-station-simulator/internal/model"
)

// StationOps is the set of operations an incoming CALL may trigger on a
// Station Runtime. Defined here rather than in internal/station so this
// package never imports station (station imports services instead).
type StationOps interface {
	RemoteStartTransaction(connectorID int, idTag string, profile *model.ChargingProfile) string
	RemoteStopTransaction(transactionID int) string
	SetChargingProfile(connectorID int, profile *model.ChargingProfile) string
	ClearChargingProfile(id, connectorID int, purpose string, stackLevel int) string
	GetCompositeSchedule(connectorID, duration int, unit string) (status string, schedule *model.ChargingSchedule)
	ReserveNow(connectorID int, expiry time.Time, idTag string, reservationID int) string
	CancelReservation(reservationID int) string
	ChangeConfiguration(key, value string) (status string)
	GetConfiguration(keys []string) (found []configuration.Key, unknown []string)
	Reset(kind string) string
	UnlockConnector(connectorID int) string
}
