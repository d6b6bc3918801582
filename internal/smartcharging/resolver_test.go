package smartcharging

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ocppsim/charging-station-simulator/internal/electric"
	"github.com/ocppsim/charging-station-simulator/internal/model"
)

func str(s string) *string { return &s }
func num(n int) *int       { return &n }

func TestResolveStackedAbsoluteProfilesPicksHighestStackLevel(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	start := now.Add(-time.Hour).Format(time.RFC3339)

	connector := model.NewConnector(1)
	connector.SetChargingProfile(&model.ChargingProfile{
		ID: 1, StackLevel: 1, ChargingProfileKind: model.ChargingProfileKindAbsolute,
		ChargingSchedule: model.ChargingSchedule{
			StartSchedule: str(start), Duration: num(7200), ChargingRateUnit: model.ChargingRateUnitAmperes,
			ChargingSchedulePeriod: []model.ChargingSchedulePeriod{{StartPeriod: 0, Limit: 16}},
		},
	})
	connector.SetChargingProfile(&model.ChargingProfile{
		ID: 2, StackLevel: 2, ChargingProfileKind: model.ChargingProfileKindAbsolute,
		ChargingSchedule: model.ChargingSchedule{
			StartSchedule: str(start), Duration: num(7200), ChargingRateUnit: model.ChargingRateUnitAmperes,
			ChargingSchedulePeriod: []model.ChargingSchedulePeriod{{StartPeriod: 0, Limit: 10}},
		},
	})

	info := &model.StationInfo{VoltageOut: 230, NumberOfPhases: 3, CurrentOutType: electric.CurrentTypeAC, MaximumPower: 1000000}
	stationModel := model.NewConnectorModel(1)

	res := Resolve(now, connector, nil, info, stationModel)
	require.False(t, res.Unlimited)
	assert.InDelta(t, 6900.0, res.LimitW, 0.01) // S3: 10*230*3
}

func TestResolveRecurringWeeklyTranslatesStartSchedule(t *testing.T) {
	now := time.Date(2024, 1, 22, 12, 0, 0, 0, time.UTC)
	start := "2024-01-01T00:00:00Z"

	connector := model.NewConnector(1)
	connector.SetChargingProfile(&model.ChargingProfile{
		ID: 1, StackLevel: 1,
		ChargingProfileKind: model.ChargingProfileKindRecurring,
		RecurrencyKind:      model.RecurrencyKindWeekly,
		ChargingSchedule: model.ChargingSchedule{
			StartSchedule: str(start), Duration: num(86400), ChargingRateUnit: model.ChargingRateUnitWatts,
			ChargingSchedulePeriod: []model.ChargingSchedulePeriod{{StartPeriod: 0, Limit: 5000}},
		},
	})

	info := &model.StationInfo{VoltageOut: 230, NumberOfPhases: 3, CurrentOutType: electric.CurrentTypeAC, MaximumPower: 1000000}
	stationModel := model.NewConnectorModel(1)

	res := Resolve(now, connector, nil, info, stationModel)
	require.False(t, res.Unlimited)
	assert.InDelta(t, 5000.0, res.LimitW, 0.01)

	translated, duration, ok := effectiveWindow(now, connector.ChargingProfiles[1], connector)
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, 1, 22, 0, 0, 0, 0, time.UTC), translated)
	assert.Equal(t, 86400, duration)
}

func TestResolveRelativeProfileRequiresActiveTransaction(t *testing.T) {
	now := time.Now()
	connector := model.NewConnector(1)
	connector.SetChargingProfile(&model.ChargingProfile{
		ID: 1, StackLevel: 1, ChargingProfileKind: model.ChargingProfileKindRelative,
		ChargingSchedule: model.ChargingSchedule{
			Duration:               num(3600),
			ChargingRateUnit:       model.ChargingRateUnitWatts,
			ChargingSchedulePeriod: []model.ChargingSchedulePeriod{{StartPeriod: 0, Limit: 4000}},
		},
	})
	info := &model.StationInfo{VoltageOut: 230, NumberOfPhases: 3, MaximumPower: 1000000}
	stationModel := model.NewConnectorModel(1)

	res := Resolve(now, connector, nil, info, stationModel)
	assert.True(t, res.Unlimited)

	connector.StartTransaction(1, "TAG", now, 0)
	res = Resolve(now, connector, nil, info, stationModel)
	require.False(t, res.Unlimited)
	assert.InDelta(t, 4000.0, res.LimitW, 0.01)
}

func TestResolveCapsAtMaximumPowerDividedByConnectors(t *testing.T) {
	now := time.Now()
	connector := model.NewConnector(1)
	connector.SetChargingProfile(&model.ChargingProfile{
		ID: 1, StackLevel: 1, ChargingProfileKind: model.ChargingProfileKindAbsolute,
		ChargingSchedule: model.ChargingSchedule{
			StartSchedule: str(now.Add(-time.Minute).Format(time.RFC3339)), Duration: num(3600),
			ChargingRateUnit:       model.ChargingRateUnitWatts,
			ChargingSchedulePeriod: []model.ChargingSchedulePeriod{{StartPeriod: 0, Limit: 50000}},
		},
	})
	info := &model.StationInfo{VoltageOut: 230, NumberOfPhases: 3, MaximumPower: 20000}
	stationModel := model.NewConnectorModel(2) // 2 connectors -> divider 2, cap 10000W

	res := Resolve(now, connector, nil, info, stationModel)
	require.False(t, res.Unlimited)
	assert.InDelta(t, 10000.0, res.LimitW, 0.01)
}
