package services

import "github.com/ocppsim/charging-station-simulator/internal/model"

// BootResult is the version-agnostic outcome of a BootNotification CALL.
type BootResult struct {
	Status      string
	CurrentTime string
	Interval    int
}

// StartTransactionResult is the version-agnostic outcome of starting a
// transaction (StartTransaction on 1.6, TransactionEvent/Started on 2.0.1).
type StartTransactionResult struct {
	TransactionID int
	IdTagStatus   string
}

// RequestService is the outbound half of the version-specific request/
// response services (spec §9 "polymorphic request/response services
// across OCPP versions"). A Station Runtime holds one per its negotiated
// OCPPVersion and never branches on version itself.
type RequestService interface {
	BootNotification(info *model.StationInfo) (BootResult, error)
	StatusNotification(connectorID int, status model.Status, errorCode string) error
	StartTransaction(connectorID int, idTag string, meterStart int, reservationID int) (StartTransactionResult, error)
	StopTransaction(transactionID int, idTag string, meterStop int, reason string) error
	MeterValues(connectorID, transactionID int, wattHours float64) error
	Heartbeat() (currentTime string, err error)
}
