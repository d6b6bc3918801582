package configuration

// SeedCoreDefaults populates a fresh Store with the OCPP 1.6 Core profile
// standard configuration keys a station needs at boot: heartbeat and
// meter sampling intervals, connection timeout, reset retries, and the
// smart-charging/feature-profile constants. A station seeds these once
// and then lets template/persisted values override them (spec §4.1
// step 3).
func SeedCoreDefaults(s *Store) {
	defaults := []Key{
		{Key: "HeartbeatInterval", Value: "86400", Readonly: false, Visible: true, Reboot: false},
		{Key: "ConnectionTimeOut", Value: "60", Readonly: false, Visible: true, Reboot: false},
		{Key: "ResetRetries", Value: "3", Readonly: false, Visible: true, Reboot: false},
		{Key: "MeterValueSampleInterval", Value: "60", Readonly: false, Visible: true, Reboot: false},
		{Key: "ClockAlignedDataInterval", Value: "900", Readonly: false, Visible: true, Reboot: false},
		{Key: "MeterValuesSampledData", Value: "Energy.Active.Import.Register,Power.Active.Import", Readonly: false, Visible: true, Reboot: false},
		{Key: "StopTxnSampledData", Value: "Energy.Active.Import.Register", Readonly: false, Visible: true, Reboot: false},
		{Key: "LocalAuthorizeOffline", Value: "true", Readonly: false, Visible: true, Reboot: false},
		{Key: "LocalPreAuthorize", Value: "false", Readonly: false, Visible: true, Reboot: false},
		{Key: "AuthorizeRemoteTxRequests", Value: "false", Readonly: false, Visible: true, Reboot: false},
		{Key: "ChargeProfileMaxStackLevel", Value: "10", Readonly: true, Visible: true, Reboot: false},
		{Key: "ChargingScheduleAllowedChargingRateUnit", Value: "Current,Power", Readonly: true, Visible: true, Reboot: false},
		{Key: "ChargingScheduleMaxPeriods", Value: "24", Readonly: true, Visible: true, Reboot: false},
		{Key: "MaxChargingProfilesInstalled", Value: "10", Readonly: true, Visible: true, Reboot: false},
		{Key: "WebSocketPingInterval", Value: "60", Readonly: false, Visible: true, Reboot: true},
		{Key: "GetConfigurationMaxKeys", Value: "100", Readonly: true, Visible: true, Reboot: false},
		{Key: "SupportedFeatureProfiles", Value: "Core,SmartCharging,RemoteTrigger,Reservation", Readonly: true, Visible: true, Reboot: false},
		{Key: "NumberOfConnectors", Value: "1", Readonly: true, Visible: true, Reboot: false},
		// Hidden vendor bookkeeping key: not returned by GetConfiguration.
		{Key: "_internalBootCount", Value: "0", Readonly: false, Visible: false, Reboot: false},
	}

	for _, k := range defaults {
		s.Add(k, false)
	}
}
