package services

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/ocppsim/charging-station-simulator/internal/engine"
	"github.com/ocppsim/charging-station-simulator/internal/model"
	"github.com/ocppsim/charging-station-simulator/ocpp/v201"
)

// V201RequestService implements RequestService by sending OCPP 2.0.1
// CALLs through an *engine.Engine.
type V201RequestService struct {
	Engine *engine.Engine
	seqNo  int
}

func (s *V201RequestService) BootNotification(info *model.StationInfo) (BootResult, error) {
	req := v201.BootNotificationRequest{
		Reason: "PowerUp",
		ChargingStation: v201.ChargingStation{
			SerialNumber:    info.ChargePointSerialNumber,
			Model:           info.ChargePointModel,
			VendorName:      info.ChargePointVendor,
			FirmwareVersion: info.FirmwareVersion,
		},
	}
	raw, err := s.Engine.SendCall(v201.ActionBootNotification, req, engine.SendOptions{})
	if err != nil {
		return BootResult{}, err
	}
	var resp v201.BootNotificationResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return BootResult{}, fmt.Errorf("boot notification: decode response: %w", err)
	}
	return BootResult{Status: string(resp.Status), CurrentTime: resp.CurrentTime, Interval: resp.Interval}, nil
}

func (s *V201RequestService) StatusNotification(connectorID int, status model.Status, errorCode string) error {
	req := v201.StatusNotificationRequest{
		Timestamp:       time.Now().UTC().Format(time.RFC3339),
		ConnectorStatus: v201.ConnectorStatus(mapV201Status(status)),
		EvseId:          connectorID,
		ConnectorId:     1,
	}
	_, err := s.Engine.SendCall(v201.ActionStatusNotification, req, engine.SendOptions{})
	return err
}

func (s *V201RequestService) StartTransaction(connectorID int, idTag string, meterStart int, reservationID int) (StartTransactionResult, error) {
	s.seqNo++
	txnID := fmt.Sprintf("%d-%d", connectorID, time.Now().UnixNano()%100000)
	req := v201.TransactionEventRequest{
		EventType:     v201.TransactionEventStarted,
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		TriggerReason: v201.TriggerReasonCablePluggedIn,
		SeqNo:         s.seqNo,
		TransactionInfo: v201.Transaction{
			TransactionId: txnID,
			ChargingState: v201.ChargingStateCharging,
		},
		ReservationId: reservationID,
		Evse:          &v201.EVSE{Id: connectorID},
		IdToken:       &v201.IdToken{IdToken: idTag, Type: "ISO14443"},
	}
	raw, err := s.Engine.SendCall(v201.ActionTransactionEvent, req, engine.SendOptions{})
	if err != nil {
		return StartTransactionResult{}, err
	}
	var resp v201.TransactionEventResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return StartTransactionResult{}, fmt.Errorf("transaction event: decode response: %w", err)
	}
	numericID, _ := strconv.Atoi(txnID[len(txnID)-5:])
	status := "Accepted"
	if resp.IdTokenInfo != nil {
		status = resp.IdTokenInfo.Status
	}
	return StartTransactionResult{TransactionID: numericID, IdTagStatus: status}, nil
}

func (s *V201RequestService) StopTransaction(transactionID int, idTag string, meterStop int, reason string) error {
	s.seqNo++
	req := v201.TransactionEventRequest{
		EventType:     v201.TransactionEventEnded,
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		TriggerReason: v201.TriggerReasonEVDeparted,
		SeqNo:         s.seqNo,
		TransactionInfo: v201.Transaction{
			TransactionId: strconv.Itoa(transactionID),
			ChargingState: v201.ChargingStateIdle,
			StoppedReason: reason,
		},
	}
	_, err := s.Engine.SendCall(v201.ActionTransactionEvent, req, engine.SendOptions{})
	return err
}

func (s *V201RequestService) MeterValues(connectorID, transactionID int, wattHours float64) error {
	req := v201.MeterValuesRequest{
		EvseId: connectorID,
		MeterValue: []v201.MeterValue{{
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			SampledValue: []v201.SampledValue{{
				Value:     wattHours,
				Measurand: "Energy.Active.Import.Register",
				UnitOfMeasure: &v201.UnitOfMeasure{Unit: "Wh"},
			}},
		}},
	}
	_, err := s.Engine.SendCall(v201.ActionMeterValues, req, engine.SendOptions{})
	return err
}

func (s *V201RequestService) Heartbeat() (string, error) {
	raw, err := s.Engine.SendCall(v201.ActionHeartbeat, v201.HeartbeatRequest{}, engine.SendOptions{})
	if err != nil {
		return "", err
	}
	var resp v201.HeartbeatResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", fmt.Errorf("heartbeat: decode response: %w", err)
	}
	return resp.CurrentTime, nil
}

func mapV201Status(s model.Status) string {
	switch s {
	case model.StatusAvailable:
		return string(v201.ConnectorStatusAvailable)
	case model.StatusReserved:
		return string(v201.ConnectorStatusReserved)
	case model.StatusUnavailable:
		return string(v201.ConnectorStatusUnavailable)
	case model.StatusFaulted:
		return string(v201.ConnectorStatusFaulted)
	default:
		return string(v201.ConnectorStatusOccupied)
	}
}
