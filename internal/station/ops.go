package station

import (
	"strconv"
	"time"

	"github.com/ocppsim/charging-station-simulator/internal/configuration"
	"github.com/ocppsim/charging-station-simulator/internal/model"
	"github.com/ocppsim/charging-station-simulator/internal/smartcharging"
)

// RemoteStartTransaction implements services.StationOps (spec §4.4
// "RemoteStartTransaction"): starts a transaction on an idle, available
// connector.
func (s *Station) RemoteStartTransaction(connectorID int, idTag string, profile *model.ChargingProfile) string {
	c, ok := s.stationModel.Connector(connectorID)
	if !ok || connectorID == 0 {
		return "Rejected"
	}
	if c.TransactionStarted() || c.Status != model.StatusAvailable {
		return "Rejected"
	}

	result, err := s.request.StartTransaction(connectorID, idTag, 0, 0)
	if err != nil || result.IdTagStatus != "Accepted" {
		return "Rejected"
	}

	c.StartTransaction(result.TransactionID, idTag, time.Now(), 0)
	if profile != nil {
		c.SetChargingProfile(profile)
	}
	c.Status = model.StatusCharging
	_ = s.request.StatusNotification(connectorID, model.StatusCharging, "NoError")
	s.startMeterLoop(connectorID)
	return "Accepted"
}

// RemoteStopTransaction implements services.StationOps.
func (s *Station) RemoteStopTransaction(transactionID int) string {
	for _, c := range s.stationModel.AllConnectors() {
		if c.Transaction != nil && c.Transaction.ID == transactionID {
			s.stopTransactionOnConnector(c, "Remote")
			return "Accepted"
		}
	}
	return "Rejected"
}

// SetChargingProfile implements services.StationOps (spec §4.5).
func (s *Station) SetChargingProfile(connectorID int, profile *model.ChargingProfile) string {
	if profile == nil {
		return "Rejected"
	}
	profile.Normalize()

	if connectorID == 0 {
		wide, _ := s.stationModel.Connector(0)
		if wide != nil {
			wide.SetChargingProfile(profile)
			return "Accepted"
		}
		return "Rejected"
	}

	c, ok := s.stationModel.Connector(connectorID)
	if !ok {
		return "Rejected"
	}
	c.SetChargingProfile(profile)
	return "Accepted"
}

// ClearChargingProfile implements services.StationOps (spec §4.5).
func (s *Station) ClearChargingProfile(id, connectorID int, purpose string, stackLevel int) string {
	cleared := false
	for _, c := range s.stationModel.AllConnectors() {
		if connectorID != 0 && c.ID != connectorID {
			continue
		}
		for pid, p := range c.ChargingProfiles {
			if id != 0 && pid != id {
				continue
			}
			if purpose != "" && p.ChargingProfilePurpose != purpose {
				continue
			}
			if stackLevel != 0 && p.StackLevel != stackLevel {
				continue
			}
			delete(c.ChargingProfiles, pid)
			cleared = true
		}
	}
	if cleared {
		return "Accepted"
	}
	return "Unknown"
}

// GetCompositeSchedule implements services.StationOps via the stacked
// profile resolver (spec §4.5).
func (s *Station) GetCompositeSchedule(connectorID, duration int, unit string) (string, *model.ChargingSchedule) {
	c, ok := s.stationModel.Connector(connectorID)
	if !ok {
		return "Rejected", nil
	}
	wide, _ := s.stationModel.Connector(0)

	res := smartcharging.Resolve(time.Now(), c, wide, s.info, s.stationModel)
	if res.Unlimited {
		return "Rejected", nil
	}

	rateUnit := model.ChargingRateUnitWatts
	if unit == string(model.ChargingRateUnitAmperes) {
		rateUnit = model.ChargingRateUnitAmperes
	}
	return "Accepted", &model.ChargingSchedule{
		Duration:               &duration,
		ChargingRateUnit:       rateUnit,
		ChargingSchedulePeriod: []model.ChargingSchedulePeriod{{StartPeriod: 0, Limit: res.LimitW}},
	}
}

// ReserveNow implements services.StationOps (spec §4.6).
func (s *Station) ReserveNow(connectorID int, expiry time.Time, idTag string, reservationID int) string {
	if !s.reservations.IsConnectorReservable(reservationID, idTag, connectorID) {
		return "Rejected"
	}
	ok := s.reservations.AddReservation(model.Reservation{
		ReservationID: reservationID,
		ConnectorID:   connectorID,
		IdTag:         idTag,
		ExpiryDate:    expiry,
	})
	if !ok {
		return "Rejected"
	}
	return "Accepted"
}

// CancelReservation implements services.StationOps (spec §4.6).
func (s *Station) CancelReservation(reservationID int) string {
	if s.reservations.RemoveReservation(reservationID, model.RemovalReasonCanceled) {
		return "Accepted"
	}
	return "Rejected"
}

// ChangeConfiguration implements services.StationOps (spec §4.2).
func (s *Station) ChangeConfiguration(key, value string) string {
	k, ok := s.store.Get(key)
	if !ok {
		return "NotSupported"
	}
	if k.Readonly {
		return "Rejected"
	}
	rebootRequired, err := s.store.SetValue(key, value)
	if err != nil {
		return "Rejected"
	}
	if rebootRequired {
		return "RebootRequired"
	}
	return "Accepted"
}

// GetConfiguration implements services.StationOps (spec §4.2).
func (s *Station) GetConfiguration(keys []string) ([]configuration.Key, []string) {
	return s.store.GetConfiguration(keys)
}

// Reset implements services.StationOps (spec §4.4 `reset(reason)`):
// schedules the actual stop/restart asynchronously so the CALLRESULT
// can be delivered before the channel drops.
func (s *Station) Reset(kind string) string {
	go s.reboot(kind)
	return "Accepted"
}

// UnlockConnector implements services.StationOps.
func (s *Station) UnlockConnector(connectorID int) string {
	c, ok := s.stationModel.Connector(connectorID)
	if !ok || connectorID == 0 {
		return "NotSupported"
	}
	if c.TransactionStarted() {
		return "NotSupported"
	}
	c.Status = model.StatusAvailable
	_ = s.request.StatusNotification(connectorID, model.StatusAvailable, "NoError")
	return "Unlocked"
}

// NotifyReserved implements reservation.Notifier.
func (s *Station) NotifyReserved(connectorID int) {
	c, ok := s.stationModel.Connector(connectorID)
	if !ok {
		return
	}
	c.Status = model.StatusReserved
	_ = s.request.StatusNotification(connectorID, model.StatusReserved, "NoError")
}

// NotifyAvailable implements reservation.Notifier.
func (s *Station) NotifyAvailable(connectorID int) {
	c, ok := s.stationModel.Connector(connectorID)
	if !ok {
		return
	}
	if c.TransactionStarted() {
		return
	}
	c.Status = model.StatusAvailable
	_ = s.request.StatusNotification(connectorID, model.StatusAvailable, "NoError")
}

// startMeterLoop begins the per-connector MeterValues timer (spec §4.8),
// grounded on the teacher's meter.go P=I*V / energy-accumulation arithmetic.
// Connectors driven by the ATG are skipped: the generator reports its own
// MeterValues so the two timers never race on the same transaction.
func (s *Station) startMeterLoop(connectorID int) {
	s.mu.Lock()
	if s.atgManaged[connectorID] {
		s.mu.Unlock()
		return
	}
	if _, running := s.meterStopChs[connectorID]; running {
		s.mu.Unlock()
		return
	}
	stop := make(chan struct{})
	s.meterStopChs[connectorID] = stop
	s.mu.Unlock()

	interval := 60
	if k, ok := s.store.Get("MeterValueSampleInterval"); ok {
		if n, err := strconv.Atoi(k.Value); err == nil && n > 0 {
			interval = n
		}
	}

	go func() {
		ticker := time.NewTicker(time.Duration(interval) * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				s.reportMeterValues(connectorID, interval)
			}
		}
	}()
}

func (s *Station) reportMeterValues(connectorID, intervalSeconds int) {
	c, ok := s.stationModel.Connector(connectorID)
	if !ok || c.Transaction == nil {
		return
	}

	wide, _ := s.stationModel.Connector(0)
	res := smartcharging.Resolve(time.Now(), c, wide, s.info, s.stationModel)
	power := s.info.MaximumPower
	if !res.Unlimited && res.LimitW < power {
		power = res.LimitW
	}

	energyWh := int(power * float64(intervalSeconds) / 3600)
	c.Transaction.RunningRegister += energyWh

	if err := s.request.MeterValues(connectorID, c.Transaction.ID, float64(c.Transaction.RunningRegister)); err != nil {
		s.logger.Warn().Err(err).Int("connectorId", connectorID).Msg("meter values failed")
	}
}

func (s *Station) stopMeterLoop(connectorID int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if stop, ok := s.meterStopChs[connectorID]; ok {
		close(stop)
		delete(s.meterStopChs, connectorID)
	}
}
