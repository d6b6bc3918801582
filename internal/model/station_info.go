package model

import "github.com/ocppsim/charging-station-simulator/internal/electric"

// OCPPVersion selects which version-specific request/response service
// implementation the Engine dispatches to (spec §4.3, §9 "polymorphic
// request/response services across OCPP versions").
type OCPPVersion string

const (
	OCPPVersion16  OCPPVersion = "1.6"
	OCPPVersion201 OCPPVersion = "2.0.1"
)

// StationInfo is the fully-reconciled template+configuration output
// (spec §4.1, §3 "Station" identity/state fields, §6 template file
// shape). It is the input StationInfo.
type StationInfo struct {
	HashID      string
	StationID   string
	TemplateFile string

	OCPPVersion OCPPVersion

	ChargePointVendor       string
	ChargePointModel        string
	ChargeBoxSerialNumber   string
	ChargePointSerialNumber string
	MeterSerialNumber       string
	MeterType               string
	FirmwareVersion         string
	FirmwareVersionPattern  string
	FirmwareStatus          string // e.g. "Installing", "Installed"

	CurrentOutType  electric.CurrentType
	VoltageOut      float64
	NumberOfPhases  int
	MaximumPower    float64 // Watts
	MaximumAmperage float64 // derived, Amperes

	NumberOfConnectors int
	NumberOfEvses      int
	RandomConnectors   bool
	UseConnectorID0    bool

	SupervisionURLs []string

	AutoRegister              bool
	RegistrationMaxRetries    int // -1 = infinite
	AutoReconnectMaxRetries   int // -1 = infinite
	ReconnectExponentialDelay bool
	ResetTime                 int // seconds
	ConnectionTimeout         int // seconds

	BeginEndMeterValues                              bool
	OcppStrictCompliance                             bool
	OutOfOrderEndMeterValues                         bool
	MeteringPerTransaction                            bool
	StationInfoPersistentConfiguration               bool
	OcppPersistentConfiguration                      bool
	AutomaticTransactionGeneratorPersistentConfiguration bool
	EnableStatistics                                 bool
	StopTransactionsOnStopped                         bool
	PowerSharedByConnectors                           bool
	RemoteAuthorization                               bool

	WSPingInterval int // seconds, 0 disables
}

// PowerDivider computes the denominator used to cap a connector's
// effective smart-charging limit (spec §4.5: "powerDivider =
// numberOfEvses (EVSE mode) else numberOfConnectors; if
// powerSharedByConnectors, divider = numberOfRunningTransactions").
func (si *StationInfo) PowerDivider(model *StationModel) int {
	if si.PowerSharedByConnectors {
		n := model.RunningTransactionCount()
		if n == 0 {
			return 1
		}
		return n
	}
	if model.UsesEvses() {
		n := model.NumberOfEvses()
		if n == 0 {
			return 1
		}
		return n
	}
	n := model.NumberOfConnectors()
	if n == 0 {
		return 1
	}
	return n
}
