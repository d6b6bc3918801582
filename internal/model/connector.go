package model

import "time"

// Availability is the operative/inoperative switch on a connector,
// independent of its OCPP status (spec §3).
type Availability string

const (
	AvailabilityOperative   Availability = "Operative"
	AvailabilityInoperative Availability = "Inoperative"
)

// Status is the OCPP connector status. Connector 0 (station-wide) only
// ever uses Available/Unavailable/Faulted in practice, but the type is
// shared.
type Status string

const (
	StatusAvailable     Status = "Available"
	StatusPreparing     Status = "Preparing"
	StatusCharging      Status = "Charging"
	StatusSuspendedEV   Status = "SuspendedEV"
	StatusSuspendedEVSE Status = "SuspendedEVSE"
	StatusFinishing     Status = "Finishing"
	StatusReserved      Status = "Reserved"
	StatusUnavailable   Status = "Unavailable"
	StatusFaulted       Status = "Faulted"
)

// Transaction holds the running state of an in-progress charging session.
type Transaction struct {
	ID               int
	IdTag            string
	StartDate        time.Time
	BeginMeterValue  int
	RunningRegister  int
}

// Connector is one physical or logical connection point. Connector id 0
// is reserved for the station as a whole (spec §3).
type Connector struct {
	ID                     int
	Availability           Availability
	Status                 Status
	BootStatus             *Status
	Transaction            *Transaction
	IdTagLocal             string
	IdTagAuth              string
	TransactionRemoteStart bool
	ChargingProfiles       map[int]*ChargingProfile
	Reservation            *Reservation
}

// NewConnector creates a Connector with the given id, defaulting to
// Operative/Available with no profiles.
func NewConnector(id int) *Connector {
	return &Connector{
		ID:               id,
		Availability:     AvailabilityOperative,
		Status:           StatusAvailable,
		ChargingProfiles: make(map[int]*ChargingProfile),
	}
}

// TransactionStarted reports whether a transaction is running. The
// invariant `transactionId != null <=> transactionStarted` (spec §3,
// §8 invariant 2) holds by construction: Transaction is non-nil iff a
// transaction is running.
func (c *Connector) TransactionStarted() bool {
	return c.Transaction != nil
}

// StartTransaction attaches a new running Transaction to the connector.
func (c *Connector) StartTransaction(id int, idTag string, start time.Time, beginMeterValue int) {
	c.Transaction = &Transaction{
		ID:              id,
		IdTag:           idTag,
		StartDate:       start,
		BeginMeterValue: beginMeterValue,
		RunningRegister: beginMeterValue,
	}
}

// StopTransaction clears the running transaction and returns it.
func (c *Connector) StopTransaction() *Transaction {
	t := c.Transaction
	c.Transaction = nil
	return t
}

// SetChargingProfile installs or replaces a profile by id.
func (c *Connector) SetChargingProfile(p *ChargingProfile) {
	c.ChargingProfiles[p.ID] = p
}

// Profiles returns the connector's profiles as a slice.
func (c *Connector) Profiles() []*ChargingProfile {
	out := make([]*ChargingProfile, 0, len(c.ChargingProfiles))
	for _, p := range c.ChargingProfiles {
		out = append(out, p)
	}
	return out
}
