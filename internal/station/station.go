// Package station implements the Station Runtime (spec §4.4): the
// top-level lifecycle actor that owns one station's connector/EVSE
// model, configuration store, and message engine, and drives
// connect/register/operate/stop transitions.
package station

import (
	"crypto/tls"
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ocppsim/charging-station-simulator/internal/atg"
	"github.com/ocppsim/charging-station-simulator/internal/cache"
	"github.com/ocppsim/charging-station-simulator/internal/channel"
	"github.com/ocppsim/charging-station-simulator/internal/configuration"
	"github.com/ocppsim/charging-station-simulator/internal/engine"
	"github.com/ocppsim/charging-station-simulator/internal/model"
	"github.com/ocppsim/charging-station-simulator/internal/obslog"
	"github.com/ocppsim/charging-station-simulator/internal/reservation"
	"github.com/ocppsim/charging-station-simulator/internal/template"
	"github.com/ocppsim/charging-station-simulator/ocpp/services"
)

// State is a Station's lifecycle state (spec §4.4 state machine).
type State string

const (
	StateStopped     State = "Stopped"
	StateStarting    State = "Starting"
	StateConnecting  State = "Connecting"
	StateRegistering State = "Registering"
	StateAccepted    State = "Accepted"
	StatePending     State = "Pending"
	StateRejected    State = "Rejected"
	StateOperating   State = "Operating"
	StateStopping    State = "Stopping"
)

// LifecycleEvent is emitted on every state transition so an external
// observer (the CLI, a Pool) can react without polling.
type LifecycleEvent struct {
	StationID string
	State     State
	Detail    string
	At        time.Time
}

// Listener receives LifecycleEvents.
type Listener func(LifecycleEvent)

// Station is one simulated charging station actor.
type Station struct {
	Index int

	info         *model.StationInfo
	stationModel *model.StationModel
	store        *configuration.Store

	ch           channel.MessageChannel
	eng          *engine.Engine
	request      services.RequestService
	reservations *reservation.Manager
	atgGen       *atg.Generator

	caches       *template.Caches
	namedLock    *cache.NamedLock
	templatePath string
	configPath   string

	logger zerolog.Logger
	rng    *rand.Rand

	mu              sync.Mutex
	state           State
	retryCount      int
	stopCh          chan struct{}
	heartbeatStopCh chan struct{}
	meterStopChs    map[int]chan struct{}
	atgManaged      map[int]bool
	listeners       []Listener
}

// Config bundles what New needs beyond the reconciled template/config
// pair: transport TLS settings and an optional default ATG.
type Config struct {
	TLSConfig *tls.Config
	ATG       *atg.Config
}

// New reconciles the template+configuration pair at the given paths and
// builds a Station ready to Start (spec §4.1, §4.4).
func New(index int, templatePath, configPath string, caches *template.Caches, namedLock *cache.NamedLock, logger zerolog.Logger, cfg Config) (*Station, error) {
	info, sm, err := template.Reconcile(caches, index, templatePath, configPath)
	if err != nil {
		return nil, err
	}
	if err := sm.Validate(); err != nil {
		return nil, err
	}

	store := configuration.NewStore()
	configuration.SeedCoreDefaults(store)
	if persisted, err := template.LoadConfiguration(caches, configPath); err == nil && persisted != nil && len(persisted.ConfigurationKey) > 0 {
		keys := make([]configuration.Key, 0, len(persisted.ConfigurationKey))
		for _, k := range persisted.ConfigurationKey {
			keys = append(keys, configuration.Key{Key: k.Key, Value: k.Value, Readonly: k.Readonly, Visible: k.Visible, Reboot: k.Reboot})
		}
		store.LoadAll(keys)
	}
	store.Add(configuration.Key{Key: "NumberOfConnectors", Value: strconv.Itoa(sm.NumberOfConnectors()), Readonly: true, Visible: true}, true)

	st := &Station{
		Index:        index,
		info:         info,
		stationModel: sm,
		store:        store,
		caches:       caches,
		namedLock:    namedLock,
		templatePath: templatePath,
		configPath:   configPath,
		logger:       obslog.ForStation(logger, info.StationID),
		rng:          rand.New(rand.NewSource(time.Now().UnixNano())),
		state:        StateStopped,
		meterStopChs: make(map[int]chan struct{}),
		atgManaged:   make(map[int]bool),
	}

	ch := channel.NewWLGOAdapter(cfg.TLSConfig)
	st.ch = ch

	var codec engine.Codec
	var incoming engine.IncomingRequestService
	if info.OCPPVersion == model.OCPPVersion201 {
		codec = services.V201Codec{}
		incoming = &services.V201IncomingRequestService{Ops: st}
	} else {
		codec = services.V16Codec{}
		incoming = &services.V16IncomingRequestService{Ops: st}
	}
	st.eng = engine.New(codec, ch, incoming, st.logger)

	if info.OCPPVersion == model.OCPPVersion201 {
		st.request = &services.V201RequestService{Engine: st.eng}
	} else {
		st.request = &services.V16RequestService{Engine: st.eng}
	}

	st.reservations = reservation.New(sm, st)

	if cfg.ATG != nil {
		st.atgGen = atg.New(*cfg.ATG, st.request)
	}

	return st, nil
}

// Subscribe registers a listener for lifecycle events.
func (s *Station) Subscribe(l Listener) {
	s.mu.Lock()
	s.listeners = append(s.listeners, l)
	s.mu.Unlock()
}

// State returns the current lifecycle state.
func (s *Station) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Info returns the reconciled station identity/config (read-only use by
// callers such as the CLI).
func (s *Station) Info() *model.StationInfo { return s.info }

// Model returns the connector/EVSE model (read-only use by callers such
// as the CLI).
func (s *Station) Model() *model.StationModel { return s.stationModel }

// Engine exposes the message engine, e.g. for the Statistics collaborator.
func (s *Station) Engine() *engine.Engine { return s.eng }

// Stats implements metrics.StatsSource.
func (s *Station) Stats() *engine.Statistics { return s.eng.Stats() }

func (s *Station) setState(state State, detail string) {
	s.mu.Lock()
	s.state = state
	listeners := append([]Listener(nil), s.listeners...)
	s.mu.Unlock()

	event := LifecycleEvent{StationID: s.info.StationID, State: state, Detail: detail, At: time.Now()}
	s.logger.Info().Str("state", string(state)).Str("detail", detail).Msg("lifecycle transition")
	for _, l := range listeners {
		l(event)
	}
}

// Start begins the connect/register sequence (spec §4.4 `start()`).
func (s *Station) Start() error {
	s.mu.Lock()
	if s.state != StateStopped {
		st := s.state
		s.mu.Unlock()
		return fmt.Errorf("station: cannot start from state %s", st)
	}
	s.stopCh = make(chan struct{})
	s.mu.Unlock()

	s.setState(StateStarting, "")
	go s.runLifecycle()
	return nil
}

func (s *Station) primaryURL() string {
	if len(s.info.SupervisionURLs) == 0 {
		return ""
	}
	return s.info.SupervisionURLs[0]
}

func (s *Station) runLifecycle() {
	s.setState(StateConnecting, "")
	if err := s.ch.Dial(s.primaryURL()); err != nil {
		s.logger.Error().Err(err).Msg("dial failed")
		go s.reconnectLoop()
		return
	}
	go s.eng.Run()

	s.setState(StateRegistering, "")
	s.registrationLoop()
}

// registrationLoop implements spec §4.4's registration retry loop.
func (s *Station) registrationLoop() {
	retries := 0
	for {
		select {
		case <-s.stopCh:
			return
		default:
		}

		result, err := s.request.BootNotification(s.info)
		if err != nil {
			s.logger.Warn().Err(err).Msg("boot notification failed")
			if !s.waitOrStop(10 * time.Second) {
				return
			}
		} else {
			switch result.Status {
			case "Accepted":
				s.onAccepted()
				return
			case "Pending":
				s.setState(StatePending, "")
				if !s.waitOrStop(intervalOrDefault(result.Interval, 10)) {
					return
				}
			default:
				s.setState(StateRejected, "")
				if !s.waitOrStop(intervalOrDefault(result.Interval, 10)) {
					return
				}
			}
		}

		retries++
		if s.info.RegistrationMaxRetries >= 0 && retries > s.info.RegistrationMaxRetries {
			s.logger.Error().Int("retries", retries).Msg("registration retries exhausted")
			return
		}
	}
}

func intervalOrDefault(interval, def int) int {
	if interval <= 0 {
		return def
	}
	return interval
}

// waitOrStop sleeps for d, returning false early if Stop() fired.
func (s *Station) waitOrStop(d time.Duration) bool {
	select {
	case <-s.stopCh:
		return false
	case <-time.After(d):
		return true
	}
}

func (s *Station) onAccepted() {
	s.setState(StateOperating, "Accepted")
	s.eng.SetAccepted(true)
	s.eng.StartFlushLoop()

	interval := 86400
	if k, ok := s.store.Get("HeartbeatInterval"); ok {
		if n, err := strconv.Atoi(k.Value); err == nil && n > 0 {
			interval = n
		}
	}
	s.startHeartbeatLoop(interval)

	s.bootSequence()

	if s.atgGen != nil {
		var ids []int
		for _, c := range s.stationModel.AllConnectors() {
			if c.ID == 0 {
				continue
			}
			ids = append(ids, c.ID)
			s.mu.Lock()
			s.atgManaged[c.ID] = true
			s.mu.Unlock()
		}
		s.atgGen.Start(ids)
	}
}

// bootSequence sends StatusNotification for every connector using
// bootConnectorStatus resolution (spec §4.4 "Boot connector status
// resolution").
func (s *Station) bootSequence() {
	connectors := s.stationModel.AllConnectors()
	sort.Slice(connectors, func(i, j int) bool { return connectors[i].ID < connectors[j].ID })

	for _, c := range connectors {
		status := bootConnectorStatus(c)
		c.Status = status
		if err := s.request.StatusNotification(c.ID, status, "NoError"); err != nil {
			s.logger.Warn().Err(err).Int("connectorId", c.ID).Msg("boot StatusNotification failed")
		}
	}
}

func bootConnectorStatus(c *model.Connector) model.Status {
	if c.BootStatus != nil {
		return *c.BootStatus
	}
	if c.Availability == model.AvailabilityInoperative {
		return model.StatusUnavailable
	}
	return model.StatusAvailable
}

func (s *Station) startHeartbeatLoop(intervalSeconds int) {
	s.mu.Lock()
	s.heartbeatStopCh = make(chan struct{})
	stopCh := s.heartbeatStopCh
	s.mu.Unlock()

	go func() {
		ticker := time.NewTicker(time.Duration(intervalSeconds) * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-stopCh:
				return
			case <-ticker.C:
				if _, err := s.request.Heartbeat(); err != nil {
					s.logger.Warn().Err(err).Msg("heartbeat failed")
				}
			}
		}
	}()
}

func (s *Station) stopHeartbeatLoop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.heartbeatStopCh != nil {
		close(s.heartbeatStopCh)
		s.heartbeatStopCh = nil
	}
}

// reconnectLoop retries the dial after runLifecycle's dial has failed,
// bounded by AutoReconnectMaxRetries. Each wait is ConnectionTimeout
// seconds (30s when unset), or exponentialDelay when
// ReconnectExponentialDelay is set. A channel that closes after a
// successful dial does not start this loop.
func (s *Station) reconnectLoop() {
	s.mu.Lock()
	retryCount := s.retryCount
	s.mu.Unlock()

	for {
		select {
		case <-s.stopCh:
			return
		default:
		}

		if s.info.AutoReconnectMaxRetries >= 0 && retryCount > s.info.AutoReconnectMaxRetries {
			s.logger.Error().Msg("reconnect retries exhausted")
			return
		}

		delay := time.Duration(s.info.ConnectionTimeout) * time.Second
		if delay <= 0 {
			delay = 30 * time.Second
		}
		if s.info.ReconnectExponentialDelay {
			delay = exponentialDelay(retryCount)
		}
		if !s.waitOrStop(delay) {
			return
		}

		retryCount++
		s.mu.Lock()
		s.retryCount = retryCount
		s.mu.Unlock()

		s.setState(StateConnecting, fmt.Sprintf("reconnect attempt %d", retryCount))
		if err := s.ch.Dial(s.primaryURL()); err != nil {
			s.logger.Warn().Err(err).Int("attempt", retryCount).Msg("reconnect dial failed")
			continue
		}

		go s.eng.Run()
		s.setState(StateRegistering, "")
		s.registrationLoop()
		return
	}
}

func exponentialDelay(retryCount int) time.Duration {
	d := time.Duration(1<<uint(minInt(retryCount, 8))) * time.Second
	if d > 5*time.Minute {
		d = 5 * time.Minute
	}
	return d
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// Stop implements spec §4.4 `stop(reason, stopTransactions?)`.
func (s *Station) Stop(reason string, stopTransactions bool) error {
	s.mu.Lock()
	if s.state == StateStopped || s.state == StateStopping {
		s.mu.Unlock()
		return nil
	}
	s.state = StateStopping
	stopCh := s.stopCh
	s.mu.Unlock()
	s.setState(StateStopping, reason)

	close(stopCh)

	if s.atgGen != nil {
		s.atgGen.Stop(nil)
	}
	s.stopHeartbeatLoop()
	s.eng.Stop()

	if stopTransactions {
		for _, c := range s.stationModel.AllConnectors() {
			if c.TransactionStarted() {
				s.stopTransactionOnConnector(c, reason)
			}
		}
	}

	for _, c := range s.stationModel.AllConnectors() {
		if c.ID == 0 {
			continue
		}
		_ = s.request.StatusNotification(c.ID, model.StatusUnavailable, "NoError")
	}

	s.ch.Close()
	if err := s.persistConfiguration(); err != nil {
		s.logger.Warn().Err(err).Msg("failed to persist configuration on stop")
	}

	s.mu.Lock()
	s.state = StateStopped
	s.mu.Unlock()
	s.setState(StateStopped, reason)
	return nil
}

// reboot implements spec §4.4 `reset(reason)`: stop, sleep resetTime,
// reinitialize, start. Called asynchronously by the StationOps Reset
// method so the CALLRESULT can be sent before the channel drops.
func (s *Station) reboot(reason string) {
	if err := s.Stop(reason, true); err != nil {
		s.logger.Warn().Err(err).Msg("reset: stop failed")
		return
	}
	resetTime := time.Duration(s.info.ResetTime) * time.Second
	if resetTime > 0 {
		time.Sleep(resetTime)
	}
	if err := s.Start(); err != nil {
		s.logger.Warn().Err(err).Msg("reset: restart failed")
	}
}

func (s *Station) stopTransactionOnConnector(c *model.Connector, reason string) {
	txn := c.StopTransaction()
	if txn == nil {
		return
	}
	s.stopMeterLoop(c.ID)
	if err := s.request.StopTransaction(txn.ID, txn.IdTag, txn.RunningRegister, reason); err != nil {
		s.logger.Warn().Err(err).Int("connectorId", c.ID).Msg("stop transaction failed")
	}
	c.Status = model.StatusAvailable
}

// persistConfiguration writes the station's configuration.json, guarded
// by the process-wide "configuration" named lock (spec §5 "named
// exclusion key configuration").
func (s *Station) persistConfiguration() error {
	s.namedLock.Lock("configuration")
	defer s.namedLock.Unlock("configuration")

	hash, err := template.HashJSON(s.info)
	if err != nil {
		return err
	}

	doc := template.PersistedDoc{
		ConfigurationHash: hash,
		TemplateHash:      s.info.HashID,
		StationInfo:       s.info,
	}
	for _, k := range s.store.All() {
		doc.ConfigurationKey = append(doc.ConfigurationKey, template.ConfigKeyDoc{
			Key: k.Key, Value: k.Value, Readonly: k.Readonly, Visible: k.Visible, Reboot: k.Reboot,
		})
	}
	if s.stationModel.UsesEvses() {
		doc.EvsesStatus = make(map[string]string)
		for _, c := range s.stationModel.AllConnectors() {
			doc.EvsesStatus[strconv.Itoa(c.ID)] = string(c.Status)
		}
	} else {
		doc.ConnectorsStatus = make(map[string]string)
		for _, c := range s.stationModel.AllConnectors() {
			doc.ConnectorsStatus[strconv.Itoa(c.ID)] = string(c.Status)
		}
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.configPath, data, 0o644)
}
