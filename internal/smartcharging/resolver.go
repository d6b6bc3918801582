// Package smartcharging implements the stacked charging-profile limit
// resolver (spec §4.5): collects a connector's own and station-wide
// profiles, walks the stack in precedence order, and resolves the
// effective power limit in Watts.
package smartcharging

import (
	"sort"
	"time"

	"github.com/ocppsim/charging-station-simulator/internal/electric"
	"github.com/ocppsim/charging-station-simulator/internal/model"
)

// Resolution is the resolver's output: either a limit in Watts backed by
// the profile that produced it, or Unlimited==true if no profile applies.
type Resolution struct {
	Unlimited bool
	LimitW    float64
	Profile   *model.ChargingProfile
}

// Resolve implements spec §4.5 steps 1-6 for one connector.
func Resolve(now time.Time, connector *model.Connector, stationWide *model.Connector, info *model.StationInfo, stationModel *model.StationModel) Resolution {
	profiles := collect(connector, stationWide)
	for _, p := range profiles {
		limit, ok := resolveProfile(now, p, connector)
		if !ok {
			continue
		}
		watts := toWatts(limit, p.ChargingSchedule.ChargingRateUnit, info)
		capped := capLimit(watts, info, stationModel)
		return Resolution{LimitW: capped, Profile: p}
	}
	return Resolution{Unlimited: true}
}

// collect gathers connector-specific profiles ahead of station-wide
// ones, each group sorted descending by stackLevel (spec §4.5 steps 1-2).
func collect(connector *model.Connector, stationWide *model.Connector) []*model.ChargingProfile {
	own := connector.Profiles()
	sort.Slice(own, func(i, j int) bool { return own[i].StackLevel > own[j].StackLevel })

	var wide []*model.ChargingProfile
	if stationWide != nil && stationWide != connector {
		wide = stationWide.Profiles()
		sort.Slice(wide, func(i, j int) bool { return wide[i].StackLevel > wide[j].StackLevel })
	}

	return append(own, wide...)
}

// resolveProfile implements spec §4.5 step 3: translate RELATIVE/
// RECURRING schedules, validate the validity window, and locate the
// active period's limit.
func resolveProfile(now time.Time, p *model.ChargingProfile, connector *model.Connector) (float64, bool) {
	start, duration, ok := effectiveWindow(now, p, connector)
	if !ok {
		return 0, false
	}

	if p.ValidFrom != nil {
		if t, err := time.Parse(time.RFC3339, *p.ValidFrom); err == nil && now.Before(t) {
			return 0, false
		}
	}
	if p.ValidTo != nil {
		if t, err := time.Parse(time.RFC3339, *p.ValidTo); err == nil && now.After(t) {
			return 0, false
		}
	}

	end := start.Add(time.Duration(duration) * time.Second)
	if now.Before(start) || !now.Before(end) {
		return 0, false
	}

	periods := append([]model.ChargingSchedulePeriod(nil), p.ChargingSchedule.ChargingSchedulePeriod...)
	sort.Slice(periods, func(i, j int) bool { return periods[i].StartPeriod < periods[j].StartPeriod })
	if len(periods) == 0 || periods[0].StartPeriod != 0 {
		return 0, false
	}

	elapsed := int(now.Sub(start).Seconds())
	limit := periods[0].Limit
	for i, period := range periods {
		if period.StartPeriod > elapsed {
			break
		}
		next := -1
		if i+1 < len(periods) {
			next = periods[i+1].StartPeriod
		}
		if next == -1 || next > elapsed {
			limit = period.Limit
		}
	}
	return limit, true
}

// effectiveWindow computes the profile's actual [start, start+duration)
// window, applying RELATIVE/RECURRING translation (spec §4.5 steps 3a-b).
func effectiveWindow(now time.Time, p *model.ChargingProfile, connector *model.Connector) (time.Time, int, bool) {
	schedule := p.ChargingSchedule

	switch p.ChargingProfileKind {
	case model.ChargingProfileKindRelative:
		if !connector.TransactionStarted() {
			return time.Time{}, 0, false
		}
		return connector.Transaction.StartDate, durationOrDefault(schedule.Duration, 0), true

	case model.ChargingProfileKindRecurring:
		if p.RecurrencyKind == "" || schedule.StartSchedule == nil {
			return time.Time{}, 0, false
		}
		start, err := time.Parse(time.RFC3339, *schedule.StartSchedule)
		if err != nil {
			return time.Time{}, 0, false
		}
		period := recurrencyPeriod(p.RecurrencyKind)
		translated := translateForward(start, now, period)
		duration := durationOrDefault(schedule.Duration, int(period.Seconds()))
		if duration > int(period.Seconds()) {
			duration = int(period.Seconds())
		}
		return translated, duration, true

	default: // Absolute
		if schedule.StartSchedule == nil {
			return time.Time{}, 0, false
		}
		start, err := time.Parse(time.RFC3339, *schedule.StartSchedule)
		if err != nil {
			return time.Time{}, 0, false
		}
		return start, durationOrDefault(schedule.Duration, 0), true
	}
}

func durationOrDefault(d *int, def int) int {
	if d == nil {
		return def
	}
	return *d
}

func recurrencyPeriod(kind model.RecurrencyKind) time.Duration {
	if kind == model.RecurrencyKindWeekly {
		return 7 * 24 * time.Hour
	}
	return 24 * time.Hour
}

// translateForward moves start forward by whole periods until the
// interval [start, start+period) contains now (spec §4.5 step 3b).
func translateForward(start, now time.Time, period time.Duration) time.Time {
	if !now.After(start) {
		return start
	}
	elapsed := now.Sub(start)
	periods := int64(elapsed / period)
	return start.Add(time.Duration(periods) * period)
}

// toWatts implements spec §4.5 step 5.
func toWatts(limit float64, unit model.ChargingRateUnit, info *model.StationInfo) float64 {
	if unit == model.ChargingRateUnitWatts {
		return limit
	}
	return electric.PowerFromAmperage(limit, info.VoltageOut, info.NumberOfPhases, info.CurrentOutType)
}

// capLimit implements spec §4.5 step 6.
func capLimit(watts float64, info *model.StationInfo, stationModel *model.StationModel) float64 {
	divider := info.PowerDivider(stationModel)
	maxForConnector := info.MaximumPower / float64(divider)
	if watts > maxForConnector {
		return maxForConnector
	}
	return watts
}
