// Package atg implements the default Automatic Transaction Generator
// (spec §4.7): an external collaborator that drives Start/StopTransaction
// through a station's RequestService using randomized session length and
// energy draw, grounded on the teacher's simulated meter-consumption
// arithmetic (P = I * V, energy = power * interval / 3600).
package atg

import (
	"math/rand"
	"sync"
	"time"

	"github.com/ocppsim/charging-station-simulator/ocpp/services"
)

// Config bounds the uniform distributions the generator samples from.
type Config struct {
	MinDuration time.Duration
	MaxDuration time.Duration
	MinEnergyWh int
	MaxEnergyWh int
	IdTag       string

	// TickInterval is how often a running session reports MeterValues.
	// Defaults to 10s (spec §4.7) when zero.
	TickInterval time.Duration
}

// Generator is the default ATG implementation (spec §4.7 interface:
// start/stop/started).
type Generator struct {
	cfg     Config
	request services.RequestService
	rand    *rand.Rand

	mu        sync.Mutex
	started   bool
	sessions  map[int]chan struct{} // connectorID -> stop channel
}

// New builds a Generator bound to one station's RequestService.
func New(cfg Config, request services.RequestService) *Generator {
	return &Generator{
		cfg:      cfg,
		request:  request,
		rand:     rand.New(rand.NewSource(time.Now().UnixNano())),
		sessions: make(map[int]chan struct{}),
	}
}

// Started reports whether the generator is marked started: Start sets the
// flag, and it is cleared when Stop or the end of a completed session
// leaves no session running.
func (g *Generator) Started() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.started
}

// Start marks the generator started and begins a simulated transaction on
// each given connector that has no session running. An empty connectorIDs
// starts no session.
func (g *Generator) Start(connectorIDs []int) {
	g.mu.Lock()
	g.started = true
	for _, id := range connectorIDs {
		if _, running := g.sessions[id]; running {
			continue
		}
		stop := make(chan struct{})
		g.sessions[id] = stop
		go g.runSession(id, stop)
	}
	g.mu.Unlock()
}

// Stop ends simulated transactions on the given connectors (all running
// sessions if connectorIDs is empty).
func (g *Generator) Stop(connectorIDs []int) {
	g.mu.Lock()
	defer g.mu.Unlock()

	targets := connectorIDs
	if len(targets) == 0 {
		for id := range g.sessions {
			targets = append(targets, id)
		}
	}
	for _, id := range targets {
		if stop, ok := g.sessions[id]; ok {
			close(stop)
			delete(g.sessions, id)
		}
	}
	if len(g.sessions) == 0 {
		g.started = false
	}
}

func (g *Generator) runSession(connectorID int, stop chan struct{}) {
	duration := g.sampleDuration()
	energy := g.sampleEnergy()

	result, err := g.request.StartTransaction(connectorID, g.cfg.IdTag, 0, 0)
	if err != nil {
		g.mu.Lock()
		delete(g.sessions, connectorID)
		g.mu.Unlock()
		return
	}

	tick := g.cfg.TickInterval
	if tick <= 0 {
		tick = 10 * time.Second
	}
	elapsed := time.Duration(0)
	delivered := 0
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			g.request.StopTransaction(result.TransactionID, g.cfg.IdTag, delivered, "Local")
			return
		case <-ticker.C:
			elapsed += tick
			fraction := float64(elapsed) / float64(duration)
			if fraction > 1 {
				fraction = 1
			}
			delivered = int(float64(energy) * fraction)
			g.request.MeterValues(connectorID, result.TransactionID, float64(delivered))
			if elapsed >= duration {
				g.request.StopTransaction(result.TransactionID, g.cfg.IdTag, delivered, "EVDeparted")
				g.mu.Lock()
				delete(g.sessions, connectorID)
				if len(g.sessions) == 0 {
					g.started = false
				}
				g.mu.Unlock()
				return
			}
		}
	}
}

func (g *Generator) sampleDuration() time.Duration {
	if g.cfg.MaxDuration <= g.cfg.MinDuration {
		return g.cfg.MinDuration
	}
	span := g.cfg.MaxDuration - g.cfg.MinDuration
	return g.cfg.MinDuration + time.Duration(g.rand.Int63n(int64(span)))
}

func (g *Generator) sampleEnergy() int {
	if g.cfg.MaxEnergyWh <= g.cfg.MinEnergyWh {
		return g.cfg.MinEnergyWh
	}
	return g.cfg.MinEnergyWh + g.rand.Intn(g.cfg.MaxEnergyWh-g.cfg.MinEnergyWh)
}
