package model

// ChargingProfileKind distinguishes the three profile shapes (spec §3).
type ChargingProfileKind string

const (
	ChargingProfileKindAbsolute  ChargingProfileKind = "Absolute"
	ChargingProfileKindRecurring ChargingProfileKind = "Recurring"
	ChargingProfileKindRelative  ChargingProfileKind = "Relative"
)

// RecurrencyKind is DAILY or WEEKLY periodicity for a recurring profile.
type RecurrencyKind string

const (
	RecurrencyKindDaily  RecurrencyKind = "Daily"
	RecurrencyKindWeekly RecurrencyKind = "Weekly"
)

// ChargingRateUnit is the unit a ChargingSchedule expresses its limits
// in: Watts or Amperes.
type ChargingRateUnit string

const (
	ChargingRateUnitWatts   ChargingRateUnit = "W"
	ChargingRateUnitAmperes ChargingRateUnit = "A"
)

// ChargingSchedulePeriod is one period within a ChargingSchedule (spec §3).
type ChargingSchedulePeriod struct {
	StartPeriod  int     `json:"startPeriod"` // seconds from schedule start
	Limit        float64 `json:"limit"`
	NumberPhases int     `json:"numberPhases,omitempty"`
}

// ChargingSchedule is the time-bounded set of periods a profile enforces.
type ChargingSchedule struct {
	StartSchedule          *string                  `json:"startSchedule,omitempty"` // RFC3339, nil = transaction start
	Duration                *int                     `json:"duration,omitempty"`      // seconds
	ChargingRateUnit        ChargingRateUnit         `json:"chargingRateUnit"`
	ChargingSchedulePeriod  []ChargingSchedulePeriod `json:"chargingSchedulePeriod"`
	MinChargingRate         float64                  `json:"minChargingRate,omitempty"`
}

// ChargingProfile is a stacked, time-bounded power/current schedule (spec §3).
type ChargingProfile struct {
	ID                     int                 `json:"chargingProfileId"`
	TransactionID          int                 `json:"transactionId,omitempty"`
	StackLevel             int                 `json:"stackLevel"`
	ChargingProfilePurpose string              `json:"chargingProfilePurpose,omitempty"` // ChargePointMaxProfile, TxDefaultProfile, TxProfile
	ValidFrom              *string             `json:"validFrom,omitempty"`              // RFC3339
	ValidTo                *string             `json:"validTo,omitempty"`                // RFC3339
	ChargingProfileKind    ChargingProfileKind `json:"chargingProfileKind"`
	RecurrencyKind         RecurrencyKind      `json:"recurrencyKind,omitempty"`
	ChargingSchedule       ChargingSchedule    `json:"chargingSchedule"`
}

// Normalize sorts ChargingSchedulePeriod ascending by StartPeriod. It
// reports whether the normalized schedule satisfies the invariant that
// the first period starts at 0 (spec §8 invariant 3).
func (p *ChargingProfile) Normalize() (validFirstPeriod bool) {
	periods := p.ChargingSchedule.ChargingSchedulePeriod
	for i := 1; i < len(periods); i++ {
		for j := i; j > 0 && periods[j-1].StartPeriod > periods[j].StartPeriod; j-- {
			periods[j-1], periods[j] = periods[j], periods[j-1]
		}
	}
	p.ChargingSchedule.ChargingSchedulePeriod = periods
	return len(periods) > 0 && periods[0].StartPeriod == 0
}
