// Package pool bootstraps and owns a set of Station Runtimes loaded from
// a directory of templates (spec §9 "Bootstrap: load N templates, fan
// out lifecycle events to listeners").
package pool

import (
	"crypto/tls"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/ocppsim/charging-station-simulator/internal/atg"
	"github.com/ocppsim/charging-station-simulator/internal/cache"
	"github.com/ocppsim/charging-station-simulator/internal/station"
	"github.com/ocppsim/charging-station-simulator/internal/template"
)

// Pool owns every Station loaded from a template directory and forwards
// lifecycle events to any number of subscribers.
type Pool struct {
	mu       sync.Mutex
	stations []*station.Station
	byID     map[string]*station.Station
	failures []LoadFailure

	mu2       sync.Mutex
	listeners []station.Listener
}

// LoadFailure records one template file that was skipped during Load
// because it raised a template.FatalError (spec §7 "per-station failures
// never crash sibling stations", generalized to pool scope).
type LoadFailure struct {
	TemplatePath string
	Err          error
}

// Load globs templateDir for *.json templates, reconciling each against its
// <name>.config.json configuration file in configDir, and returns the
// resulting Pool.
// A template.FatalError for one template is logged and skipped rather than
// aborting the whole pool; any other error (e.g. failing to create
// configDir) is an infrastructure failure and aborts Load entirely.
func Load(templateDir, configDir string, caches *template.Caches, namedLock *cache.NamedLock, logger zerolog.Logger, tlsConfig *tls.Config, atgCfg *atg.Config) (*Pool, error) {
	matches, err := filepath.Glob(filepath.Join(templateDir, "*.json"))
	if err != nil {
		return nil, fmt.Errorf("pool: glob templates: %w", err)
	}
	sort.Strings(matches)

	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return nil, fmt.Errorf("pool: create config dir: %w", err)
	}

	p := &Pool{byID: make(map[string]*station.Station)}

	for i, templatePath := range matches {
		base := strings.TrimSuffix(filepath.Base(templatePath), filepath.Ext(templatePath))
		configPath := filepath.Join(configDir, base+".config.json")

		st, err := station.New(i, templatePath, configPath, caches, namedLock, logger, station.Config{
			TLSConfig: tlsConfig,
			ATG:       atgCfg,
		})
		if err != nil {
			var fatal *template.FatalError
			if errors.As(err, &fatal) {
				logger.Error().Err(err).Str("template", templatePath).Msg("skipping station: fatal template error")
				p.failures = append(p.failures, LoadFailure{TemplatePath: templatePath, Err: err})
				continue
			}
			return nil, fmt.Errorf("pool: reconcile %s: %w", templatePath, err)
		}

		st.Subscribe(p.dispatch)
		p.stations = append(p.stations, st)
		p.byID[st.Info().StationID] = st
	}

	return p, nil
}

// Failures returns every template skipped during Load because of a
// template.FatalError, in load order.
func (p *Pool) Failures() []LoadFailure {
	return append([]LoadFailure(nil), p.failures...)
}

// Subscribe registers a listener for every station's lifecycle events.
func (p *Pool) Subscribe(l station.Listener) {
	p.mu2.Lock()
	p.listeners = append(p.listeners, l)
	p.mu2.Unlock()
}

func (p *Pool) dispatch(event station.LifecycleEvent) {
	p.mu2.Lock()
	listeners := append([]station.Listener(nil), p.listeners...)
	p.mu2.Unlock()
	for _, l := range listeners {
		l(event)
	}
}

// All returns every station in the pool, in load order.
func (p *Pool) All() []*station.Station {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*station.Station(nil), p.stations...)
}

// Get looks up a station by its reconciled station id.
func (p *Pool) Get(stationID string) (*station.Station, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	st, ok := p.byID[stationID]
	return st, ok
}

// StartAll starts every station in the pool, collecting the first error
// but attempting every station regardless.
func (p *Pool) StartAll() error {
	var firstErr error
	for _, st := range p.All() {
		if err := st.Start(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// StopAll stops every station in the pool one after another; each Stop
// call blocks until that station reaches Stopped.
func (p *Pool) StopAll(reason string) {
	for _, st := range p.All() {
		_ = st.Stop(reason, true)
	}
}
