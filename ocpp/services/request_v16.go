package services

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/ocppsim/charging-station-simulator/internal/engine"
	"github.com/ocppsim/charging-station-simulator/internal/model"
	"github.com/ocppsim/charging-station-simulator/ocpp/v16"
)

// V16RequestService implements RequestService by sending OCPP 1.6 CALLs
// through an *engine.Engine.
type V16RequestService struct {
	Engine *engine.Engine
}

func (s *V16RequestService) BootNotification(info *model.StationInfo) (BootResult, error) {
	req := v16.BootNotificationRequest{
		ChargePointVendor:       info.ChargePointVendor,
		ChargePointModel:        info.ChargePointModel,
		ChargePointSerialNumber: info.ChargePointSerialNumber,
		ChargeBoxSerialNumber:   info.ChargeBoxSerialNumber,
		FirmwareVersion:         info.FirmwareVersion,
		MeterType:               info.MeterType,
		MeterSerialNumber:       info.MeterSerialNumber,
	}
	raw, err := s.Engine.SendCall(v16.ActionBootNotification, req, engine.SendOptions{})
	if err != nil {
		return BootResult{}, err
	}
	var resp v16.BootNotificationResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return BootResult{}, fmt.Errorf("boot notification: decode response: %w", err)
	}
	return BootResult{Status: string(resp.Status), CurrentTime: resp.CurrentTime, Interval: resp.Interval}, nil
}

func (s *V16RequestService) StatusNotification(connectorID int, status model.Status, errorCode string) error {
	req := v16.StatusNotificationRequest{
		ConnectorId: connectorID,
		ErrorCode:   errorCode,
		Status:      v16.ChargePointStatus(status),
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
	}
	_, err := s.Engine.SendCall(v16.ActionStatusNotification, req, engine.SendOptions{})
	return err
}

func (s *V16RequestService) StartTransaction(connectorID int, idTag string, meterStart int, reservationID int) (StartTransactionResult, error) {
	req := v16.StartTransactionRequest{
		ConnectorId:   connectorID,
		IdTag:         idTag,
		MeterStart:    meterStart,
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		ReservationId: reservationID,
	}
	raw, err := s.Engine.SendCall(v16.ActionStartTransaction, req, engine.SendOptions{})
	if err != nil {
		return StartTransactionResult{}, err
	}
	var resp v16.StartTransactionResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return StartTransactionResult{}, fmt.Errorf("start transaction: decode response: %w", err)
	}
	return StartTransactionResult{TransactionID: resp.TransactionId, IdTagStatus: resp.IdTagInfo.Status}, nil
}

func (s *V16RequestService) StopTransaction(transactionID int, idTag string, meterStop int, reason string) error {
	req := v16.StopTransactionRequest{
		IdTag:         idTag,
		MeterStop:     meterStop,
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		TransactionId: transactionID,
		Reason:        reason,
	}
	_, err := s.Engine.SendCall(v16.ActionStopTransaction, req, engine.SendOptions{})
	return err
}

func (s *V16RequestService) MeterValues(connectorID, transactionID int, wattHours float64) error {
	req := v16.MeterValuesRequest{
		ConnectorId:   connectorID,
		TransactionId: transactionID,
		MeterValue: []v16.MeterValueEntry{{
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			SampledValue: []v16.SampledValue{{
				Value:     strconv.FormatFloat(wattHours, 'f', 0, 64),
				Measurand: "Energy.Active.Import.Register",
				Unit:      "Wh",
			}},
		}},
	}
	_, err := s.Engine.SendCall(v16.ActionMeterValues, req, engine.SendOptions{})
	return err
}

func (s *V16RequestService) Heartbeat() (string, error) {
	raw, err := s.Engine.SendCall(v16.ActionHeartbeat, v16.HeartbeatRequest{}, engine.SendOptions{})
	if err != nil {
		return "", err
	}
	var resp v16.HeartbeatResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", fmt.Errorf("heartbeat: decode response: %w", err)
	}
	return resp.CurrentTime, nil
}
