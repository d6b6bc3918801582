package model

import "fmt"

// StationModel is the in-memory map of connectors and EVSEs for one
// station. Exactly one of Connectors or EVSEs is populated (spec §3, §8
// invariant 1) — never both, never neither.
type StationModel struct {
	Connectors map[int]*Connector
	Evses      map[int]*EVSE

	// stationWide is connector 0: the station-wide holder used for
	// StatusNotification(0, ...) and station-wide charging profiles. In
	// flat-connector mode it is the same *Connector as Connectors[0]; in
	// EVSE mode it is synthesized here since no EVSE owns connector 0.
	stationWide *Connector
}

// NewConnectorModel builds a StationModel in "flat connectors" mode:
// connector 0 (station-wide) plus n numbered connectors.
func NewConnectorModel(n int) *StationModel {
	m := &StationModel{Connectors: make(map[int]*Connector)}
	m.Connectors[0] = NewConnector(0)
	m.stationWide = m.Connectors[0]
	for i := 1; i <= n; i++ {
		m.Connectors[i] = NewConnector(i)
	}
	return m
}

// NewEvseModel builds a StationModel in "EVSE" mode: n EVSEs, each with
// connectorsPerEvse connectors numbered 1..connectorsPerEvse within the
// EVSE, plus a synthetic connector 0 for station-wide operations
// (StatusNotification, profiles) — EVSE mode has no EVSE that owns
// connector 0, so one is held directly on the StationModel instead.
func NewEvseModel(n, connectorsPerEvse int) *StationModel {
	m := &StationModel{Evses: make(map[int]*EVSE)}
	for i := 1; i <= n; i++ {
		evse := NewEVSE(i)
		for c := 1; c <= connectorsPerEvse; c++ {
			evse.Connectors[c] = NewConnector(c)
		}
		m.Evses[i] = evse
	}
	m.stationWide = NewConnector(0)
	return m
}

// Validate enforces the XOR invariant: exactly one of Connectors/Evses
// is non-empty (spec §4.1 "Error conditions", §8 invariant 1).
func (m *StationModel) Validate() error {
	hasConnectors := len(m.Connectors) > 0
	hasEvses := len(m.Evses) > 0
	if hasConnectors && hasEvses {
		return fmt.Errorf("station model: both Connectors and Evses are populated")
	}
	if !hasConnectors && !hasEvses {
		return fmt.Errorf("station model: neither Connectors nor Evses is populated")
	}
	return nil
}

// UsesEvses reports whether the station is in EVSE mode.
func (m *StationModel) UsesEvses() bool {
	return len(m.Evses) > 0
}

// NumberOfConnectors returns the count of chargeable connectors
// (excluding connector 0 in flat mode), used by the power divider
// (spec §4.5).
func (m *StationModel) NumberOfConnectors() int {
	if m.UsesEvses() {
		n := 0
		for _, e := range m.Evses {
			n += len(e.Connectors)
		}
		return n
	}
	n := 0
	for id := range m.Connectors {
		if id != 0 {
			n++
		}
	}
	return n
}

// NumberOfEvses returns the EVSE count (0 in flat-connector mode).
func (m *StationModel) NumberOfEvses() int {
	return len(m.Evses)
}

// Connector returns the connector with the given id, searching EVSEs in
// EVSE mode. Id 0 always resolves to the station-wide holder, in either
// mode (see stationWide).
func (m *StationModel) Connector(id int) (*Connector, bool) {
	if id == 0 {
		if m.stationWide == nil {
			return nil, false
		}
		return m.stationWide, true
	}
	if m.UsesEvses() {
		for _, e := range m.Evses {
			if c, ok := e.Connectors[id]; ok {
				return c, ok
			}
		}
		return nil, false
	}
	c, ok := m.Connectors[id]
	return c, ok
}

// AllConnectors returns every connector across both representations,
// including the station-wide connector 0 holder, for iteration (e.g. the
// reservation expiry sweep, boot StatusNotification sequence).
func (m *StationModel) AllConnectors() []*Connector {
	var out []*Connector
	if m.UsesEvses() {
		if m.stationWide != nil {
			out = append(out, m.stationWide)
		}
		for _, e := range m.Evses {
			for _, c := range e.Connectors {
				out = append(out, c)
			}
		}
		return out
	}
	for _, c := range m.Connectors {
		out = append(out, c)
	}
	return out
}

// RunningTransactionCount counts connectors with an active transaction —
// used for powerSharedByConnectors division (spec §4.5).
func (m *StationModel) RunningTransactionCount() int {
	n := 0
	for _, c := range m.AllConnectors() {
		if c.TransactionStarted() {
			n++
		}
	}
	return n
}
