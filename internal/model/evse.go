package model

// EVSE groups one or more Connectors behind a single physical unit
// (spec §3 — Electric Vehicle Supply Equipment).
type EVSE struct {
	ID           int
	Availability Availability
	Connectors   map[int]*Connector // ordered by id at iteration time via ConnectorIDs
}

// NewEVSE creates an EVSE with the given id and an empty connector set.
func NewEVSE(id int) *EVSE {
	return &EVSE{
		ID:           id,
		Availability: AvailabilityOperative,
		Connectors:   make(map[int]*Connector),
	}
}

// ConnectorIDs returns this EVSE's connector ids in ascending order.
func (e *EVSE) ConnectorIDs() []int {
	ids := make([]int, 0, len(e.Connectors))
	for id := range e.Connectors {
		ids = append(ids, id)
	}
	for i := 1; i < len(ids); i++ {
		for j := i; j > 0 && ids[j-1] > ids[j]; j-- {
			ids[j-1], ids[j] = ids[j], ids[j-1]
		}
	}
	return ids
}
