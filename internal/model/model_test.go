package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStationModelXORInvariant(t *testing.T) {
	both := &StationModel{Connectors: map[int]*Connector{0: NewConnector(0)}, Evses: map[int]*EVSE{1: NewEVSE(1)}}
	assert.Error(t, both.Validate())

	neither := &StationModel{}
	assert.Error(t, neither.Validate())

	ok := NewConnectorModel(2)
	assert.NoError(t, ok.Validate())
}

func TestConnectorTransactionInvariant(t *testing.T) {
	c := NewConnector(1)
	assert.False(t, c.TransactionStarted())

	c.StartTransaction(5, "TAG1", time.Now(), 100)
	assert.True(t, c.TransactionStarted())
	assert.Equal(t, 5, c.Transaction.ID)

	txn := c.StopTransaction()
	require.NotNil(t, txn)
	assert.False(t, c.TransactionStarted())
}

func TestChargingProfileNormalizeSortsAndChecksFirstPeriod(t *testing.T) {
	p := &ChargingProfile{
		ChargingSchedule: ChargingSchedule{
			ChargingSchedulePeriod: []ChargingSchedulePeriod{
				{StartPeriod: 600, Limit: 10},
				{StartPeriod: 0, Limit: 32},
				{StartPeriod: 300, Limit: 16},
			},
		},
	}
	ok := p.Normalize()
	assert.True(t, ok)
	periods := p.ChargingSchedule.ChargingSchedulePeriod
	assert.Equal(t, 0, periods[0].StartPeriod)
	assert.Equal(t, 300, periods[1].StartPeriod)
	assert.Equal(t, 600, periods[2].StartPeriod)
}

func TestChargingProfileNormalizeRejectsMissingZero(t *testing.T) {
	p := &ChargingProfile{
		ChargingSchedule: ChargingSchedule{
			ChargingSchedulePeriod: []ChargingSchedulePeriod{
				{StartPeriod: 100, Limit: 10},
			},
		},
	}
	ok := p.Normalize()
	assert.False(t, ok)
}

func TestPowerDividerEvseMode(t *testing.T) {
	m := NewEvseModel(3, 1)
	si := &StationInfo{}
	assert.Equal(t, 3, si.PowerDivider(m))
}

func TestPowerDividerSharedByConnectors(t *testing.T) {
	m := NewConnectorModel(3)
	c1, _ := m.Connector(1)
	c1.StartTransaction(1, "A", time.Now(), 0)
	si := &StationInfo{PowerSharedByConnectors: true}
	assert.Equal(t, 1, si.PowerDivider(m))
}
