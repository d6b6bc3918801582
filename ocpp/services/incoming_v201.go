package services

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/ocppsim/charging-station-simulator/internal/engine"
	"github.com/ocppsim/charging-station-simulator/internal/model"
	"github.com/ocppsim/charging-station-simulator/ocpp/v201"
)

// V201IncomingRequestService dispatches inbound OCPP 2.0.1 CALLs to a
// StationOps implementation (spec §4.3 receive path, §9 "polymorphic
// request/response services").
type V201IncomingRequestService struct {
	Ops StationOps
}

func (s *V201IncomingRequestService) HandleCall(action string, payload json.RawMessage) (interface{}, error) {
	switch action {
	case v201.ActionRequestStartTransaction:
		return s.requestStartTransaction(payload)
	case v201.ActionRequestStopTransaction:
		return s.requestStopTransaction(payload)
	case v201.ActionSetChargingProfile:
		return s.setChargingProfile(payload)
	case v201.ActionClearChargingProfile:
		return s.clearChargingProfile(payload)
	case v201.ActionGetCompositeSchedule:
		return s.getCompositeSchedule(payload)
	case v201.ActionReserveNow:
		return s.reserveNow(payload)
	case v201.ActionCancelReservation:
		return s.cancelReservation(payload)
	default:
		return nil, engine.NewOCPPError(engine.NotImplemented, "unsupported action "+action)
	}
}

func (s *V201IncomingRequestService) requestStartTransaction(payload json.RawMessage) (interface{}, error) {
	var req v201.RequestStartTransactionRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, engine.NewOCPPError(engine.FormationViolation, err.Error())
	}
	profile := fromV201Profile(req.ChargingProfile)
	status := s.Ops.RemoteStartTransaction(req.EvseId, req.IdToken.IdToken, profile)
	return v201.RequestStartTransactionResponse{Status: status, TransactionId: strconv.Itoa(req.RemoteStartId)}, nil
}

func (s *V201IncomingRequestService) requestStopTransaction(payload json.RawMessage) (interface{}, error) {
	var req v201.RequestStopTransactionRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, engine.NewOCPPError(engine.FormationViolation, err.Error())
	}
	txnID, _ := strconv.Atoi(req.TransactionId)
	status := s.Ops.RemoteStopTransaction(txnID)
	return v201.RequestStopTransactionResponse{Status: status}, nil
}

func (s *V201IncomingRequestService) setChargingProfile(payload json.RawMessage) (interface{}, error) {
	var req v201.SetChargingProfileRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, engine.NewOCPPError(engine.FormationViolation, err.Error())
	}
	profile := fromV201Profile(&req.ChargingProfile)
	status := s.Ops.SetChargingProfile(req.EvseId, profile)
	return v201.SetChargingProfileResponse{Status: status}, nil
}

func (s *V201IncomingRequestService) clearChargingProfile(payload json.RawMessage) (interface{}, error) {
	var req v201.ClearChargingProfileRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, engine.NewOCPPError(engine.FormationViolation, err.Error())
	}
	var connectorID, stackLevel int
	var purpose string
	if req.ChargingProfileCriteria != nil {
		connectorID = req.ChargingProfileCriteria.EvseId
		stackLevel = req.ChargingProfileCriteria.StackLevel
		purpose = req.ChargingProfileCriteria.ChargingProfilePurpose
	}
	status := s.Ops.ClearChargingProfile(req.ChargingProfileId, connectorID, purpose, stackLevel)
	return v201.ClearChargingProfileResponse{Status: status}, nil
}

func (s *V201IncomingRequestService) getCompositeSchedule(payload json.RawMessage) (interface{}, error) {
	var req v201.GetCompositeScheduleRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, engine.NewOCPPError(engine.FormationViolation, err.Error())
	}
	status, schedule := s.Ops.GetCompositeSchedule(req.EvseId, req.Duration, req.ChargingRateUnit)
	resp := v201.GetCompositeScheduleResponse{Status: status}
	if schedule != nil {
		resp.Schedule = toV201Schedule(schedule)
	}
	return resp, nil
}

func (s *V201IncomingRequestService) reserveNow(payload json.RawMessage) (interface{}, error) {
	var req v201.ReserveNowRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, engine.NewOCPPError(engine.FormationViolation, err.Error())
	}
	expiry, err := time.Parse(time.RFC3339, req.ExpiryDateTime)
	if err != nil {
		return nil, engine.NewOCPPError(engine.PropertyConstraintViolation, "invalid expiryDateTime")
	}
	status := s.Ops.ReserveNow(req.EvseId, expiry, req.IdToken.IdToken, req.Id)
	return v201.ReserveNowResponse{Status: status}, nil
}

func (s *V201IncomingRequestService) cancelReservation(payload json.RawMessage) (interface{}, error) {
	var req v201.CancelReservationRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, engine.NewOCPPError(engine.FormationViolation, err.Error())
	}
	status := s.Ops.CancelReservation(req.ReservationId)
	return v201.CancelReservationResponse{Status: status}, nil
}

func fromV201Profile(p *v201.ChargingProfile) *model.ChargingProfile {
	if p == nil {
		return nil
	}
	txnID, _ := strconv.Atoi(p.TransactionId)
	out := &model.ChargingProfile{
		ID:                     p.Id,
		TransactionID:          txnID,
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
	if len(p.ChargingSchedule) > 0 {
		out.ChargingSchedule = *fromV201Schedule(&p.ChargingSchedule[0])
	}
	return out
}

func fromV201Schedule(cs *v201.ChargingSchedule) *model.ChargingSchedule {
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

func toV201Schedule(cs *model.ChargingSchedule) *v201.ChargingSchedule {
	out := &v201.ChargingSchedule{
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
		out.ChargingSchedulePeriod = append(out.ChargingSchedulePeriod, v201.ChargingSchedulePeriod{
			StartPeriod:  p.StartPeriod,
			Limit:        p.Limit,
			NumberPhases: p.NumberPhases,
		})
	}
	return out
}
