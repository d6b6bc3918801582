package services

import (
	"encoding/json"
	"time"

	"github.com/ocppsim/charging-station-simulator/internal/engine"
	"github.com/ocppsim/charging-station-simulator/internal/model"
	"github.com/ocppsim/charging-station-simulator/ocpp/v16"
)

// V16IncomingRequestService dispatches inbound OCPP 1.6 CALLs to a
// StationOps implementation (spec §4.3 receive path, §9 "polymorphic
// request/response services").
type V16IncomingRequestService struct {
	Ops StationOps
}

func (s *V16IncomingRequestService) HandleCall(action string, payload json.RawMessage) (interface{}, error) {
	switch action {
	case v16.ActionRemoteStartTransaction:
		return s.remoteStartTransaction(payload)
	case v16.ActionRemoteStopTransaction:
		return s.remoteStopTransaction(payload)
	case v16.ActionSetChargingProfile:
		return s.setChargingProfile(payload)
	case v16.ActionClearChargingProfile:
		return s.clearChargingProfile(payload)
	case v16.ActionGetCompositeSchedule:
		return s.getCompositeSchedule(payload)
	case v16.ActionReserveNow:
		return s.reserveNow(payload)
	case v16.ActionCancelReservation:
		return s.cancelReservation(payload)
	case v16.ActionChangeConfiguration:
		return s.changeConfiguration(payload)
	case v16.ActionGetConfiguration:
		return s.getConfiguration(payload)
	default:
		return nil, engine.NewOCPPError(engine.NotImplemented, "unsupported action "+action)
	}
}

func (s *V16IncomingRequestService) remoteStartTransaction(payload json.RawMessage) (interface{}, error) {
	var req v16.RemoteStartTransactionRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, engine.NewOCPPError(engine.FormationViolation, err.Error())
	}
	profile := fromV16Profile(req.ChargingProfile)
	status := s.Ops.RemoteStartTransaction(req.ConnectorId, req.IdTag, profile)
	return v16.RemoteStartTransactionResponse{Status: status}, nil
}

func (s *V16IncomingRequestService) remoteStopTransaction(payload json.RawMessage) (interface{}, error) {
	var req v16.RemoteStopTransactionRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, engine.NewOCPPError(engine.FormationViolation, err.Error())
	}
	status := s.Ops.RemoteStopTransaction(req.TransactionId)
	return v16.RemoteStopTransactionResponse{Status: status}, nil
}

func (s *V16IncomingRequestService) setChargingProfile(payload json.RawMessage) (interface{}, error) {
	var req v16.SetChargingProfileRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, engine.NewOCPPError(engine.FormationViolation, err.Error())
	}
	profile := fromV16Profile(req.ChargingProfile)
	if profile == nil {
		return nil, engine.NewOCPPError(engine.PropertyConstraintViolation, "csChargingProfiles missing")
	}
	status := s.Ops.SetChargingProfile(req.ConnectorId, profile)
	return v16.SetChargingProfileResponse{Status: status}, nil
}

func (s *V16IncomingRequestService) clearChargingProfile(payload json.RawMessage) (interface{}, error) {
	var req v16.ClearChargingProfileRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, engine.NewOCPPError(engine.FormationViolation, err.Error())
	}
	status := s.Ops.ClearChargingProfile(req.Id, req.ConnectorId, req.ChargingProfilePurpose, req.StackLevel)
	return v16.ClearChargingProfileResponse{Status: status}, nil
}

func (s *V16IncomingRequestService) getCompositeSchedule(payload json.RawMessage) (interface{}, error) {
	var req v16.GetCompositeScheduleRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, engine.NewOCPPError(engine.FormationViolation, err.Error())
	}
	status, schedule := s.Ops.GetCompositeSchedule(req.ConnectorId, req.Duration, req.ChargingRateUnit)
	resp := v16.GetCompositeScheduleResponse{Status: status, ConnectorId: req.ConnectorId}
	if schedule != nil {
		resp.ChargingSchedule = toV16Schedule(schedule)
		resp.ScheduleStart = time.Now().UTC().Format(time.RFC3339)
	}
	return resp, nil
}

func (s *V16IncomingRequestService) reserveNow(payload json.RawMessage) (interface{}, error) {
	var req v16.ReserveNowRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, engine.NewOCPPError(engine.FormationViolation, err.Error())
	}
	expiry, err := time.Parse(time.RFC3339, req.ExpiryDate)
	if err != nil {
		return nil, engine.NewOCPPError(engine.PropertyConstraintViolation, "invalid expiryDate")
	}
	status := s.Ops.ReserveNow(req.ConnectorId, expiry, req.IdTag, req.ReservationId)
	return v16.ReserveNowResponse{Status: status}, nil
}

func (s *V16IncomingRequestService) cancelReservation(payload json.RawMessage) (interface{}, error) {
	var req v16.CancelReservationRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, engine.NewOCPPError(engine.FormationViolation, err.Error())
	}
	status := s.Ops.CancelReservation(req.ReservationId)
	return v16.CancelReservationResponse{Status: status}, nil
}

func (s *V16IncomingRequestService) changeConfiguration(payload json.RawMessage) (interface{}, error) {
	var req v16.ChangeConfigurationRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, engine.NewOCPPError(engine.FormationViolation, err.Error())
	}
	status := s.Ops.ChangeConfiguration(req.Key, req.Value)
	return v16.ChangeConfigurationResponse{Status: status}, nil
}

func (s *V16IncomingRequestService) getConfiguration(payload json.RawMessage) (interface{}, error) {
	var req v16.GetConfigurationRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, engine.NewOCPPError(engine.FormationViolation, err.Error())
	}
	found, unknown := s.Ops.GetConfiguration(req.Key)
	resp := v16.GetConfigurationResponse{UnknownKey: unknown}
	for _, k := range found {
		resp.ConfigurationKey = append(resp.ConfigurationKey, v16.ConfigurationKeyValue{
			Key: k.Key, Readonly: k.Readonly, Value: k.Value,
		})
	}
	return resp, nil
}

func fromV16Profile(p *v16.ChargingProfile) *model.ChargingProfile {
	if p == nil {
		return nil
	}
	out := &model.ChargingProfile{
		ID:                     p.ChargingProfileId,
		TransactionID:          p.TransactionId,
		StackLevel:             p.StackLevel,
		ChargingProfilePurpose: p.ChargingProfilePurpose,
		ChargingProfileKind:    model.ChargingProfileKind(p.ChargingProfileKind),
		RecurrencyKind:         model.RecurrencyKind(p.RecurrencyKind),
	}
	if p.ValidFrom != "" {
		out.ValidFrom = &p.ValidFrom
	}
	if p.ValidTo != "" {
		out.ValidTo = &p.ValidTo
	}
	if p.ChargingSchedule != nil {
		out.ChargingSchedule = *fromV16Schedule(p.ChargingSchedule)
	}
	return out
}

func fromV16Schedule(cs *v16.ChargingSchedule) *model.ChargingSchedule {
	out := &model.ChargingSchedule{
		ChargingRateUnit: model.ChargingRateUnit(cs.ChargingRateUnit),
		MinChargingRate:  cs.MinChargingRate,
	}
	if cs.Duration != 0 {
		d := cs.Duration
		out.Duration = &d
	}
	if cs.StartSchedule != "" {
		out.StartSchedule = &cs.StartSchedule
	}
	for _, p := range cs.ChargingSchedulePeriod {
		out.ChargingSchedulePeriod = append(out.ChargingSchedulePeriod, model.ChargingSchedulePeriod{
			StartPeriod:  p.StartPeriod,
			Limit:        p.Limit,
			NumberPhases: p.NumberPhases,
		})
	}
	return out
}

func toV16Schedule(cs *model.ChargingSchedule) *v16.ChargingSchedule {
	out := &v16.ChargingSchedule{
		ChargingRateUnit: string(cs.ChargingRateUnit),
		MinChargingRate:  cs.MinChargingRate,
	}
	if cs.Duration != nil {
		out.Duration = *cs.Duration
	}
	if cs.StartSchedule != nil {
		out.StartSchedule = *cs.StartSchedule
	}
	for _, p := range cs.ChargingSchedulePeriod {
		out.ChargingSchedulePeriod = append(out.ChargingSchedulePeriod, v16.ChargingSchedulePeriod{
			StartPeriod:  p.StartPeriod,
			Limit:        p.Limit,
			NumberPhases: p.NumberPhases,
		})
	}
	return out
}
