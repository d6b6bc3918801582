// Command stationsim runs a pool of simulated OCPP charging stations
// loaded from a directory of templates, driven by an interactive command
// loop (grounded on the teacher's single-charger main.go loop, generalized
// to operate a named selection within a Pool).
package main

import (
	"bufio"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/ocppsim/charging-station-simulator/config"
	"github.com/ocppsim/charging-station-simulator/internal/atg"
	"github.com/ocppsim/charging-station-simulator/internal/cache"
	"github.com/ocppsim/charging-station-simulator/internal/metrics"
	"github.com/ocppsim/charging-station-simulator/internal/obslog"
	"github.com/ocppsim/charging-station-simulator/internal/pool"
	"github.com/ocppsim/charging-station-simulator/internal/station"
	"github.com/ocppsim/charging-station-simulator/internal/template"
)

func main() {
	configPath := flag.String("config", "stationsim.yaml", "Path to the simulator process configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := obslog.New(cfg.LogLevel)
	logger.Info().Str("templateDir", cfg.TemplateDir).Str("configDir", cfg.ConfigDir).Msg("starting station simulator")

	tlsConfig, err := cfg.GetTLSConfig()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build TLS config")
	}

	var atgCfg *atg.Config
	if cfg.ATG.Enabled {
		minD, maxD, tick := cfg.ATG.AtgDurationBounds()
		atgCfg = &atg.Config{
			MinDuration:  minD,
			MaxDuration:  maxD,
			MinEnergyWh:  cfg.ATG.MinEnergyWh,
			MaxEnergyWh:  cfg.ATG.MaxEnergyWh,
			IdTag:        cfg.ATG.IdTag,
			TickInterval: tick,
		}
	}

	caches := template.NewCaches(cfg.CacheCapacity)
	namedLock := cache.NewNamedLock()

	p, err := pool.Load(cfg.TemplateDir, cfg.ConfigDir, caches, namedLock, logger, tlsConfig, atgCfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load station pool")
	}

	exporter := metrics.NewExporter()
	for _, st := range p.All() {
		exporter.Register(st.Info().StationID, st)
	}

	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", exporter.Handler())
		go func() {
			if err := http.ListenAndServe(cfg.MetricsAddr, mux); err != nil {
				logger.Error().Err(err).Msg("metrics server stopped")
			}
		}()
		logger.Info().Str("addr", cfg.MetricsAddr).Msg("metrics listening")
	}

	p.Subscribe(func(e station.LifecycleEvent) {
		logger.Info().Str("station", e.StationID).Str("state", string(e.State)).Str("detail", e.Detail).Msg("lifecycle")
	})

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	repl := newREPL(p)
	go repl.run()

	fmt.Println("Station simulator ready. Type 'help' for commands.")
	<-sigCh
	fmt.Println("Shutting down...")
	p.StopAll("PowerOutage")
}

// repl is the interactive command loop, operating against one selected
// station at a time within the pool.
type repl struct {
	pool     *pool.Pool
	selected *station.Station
}

func newREPL(p *pool.Pool) *repl {
	r := &repl{pool: p}
	if stations := p.All(); len(stations) > 0 {
		r.selected = stations[0]
	}
	return r
}

func (r *repl) run() {
	reader := bufio.NewReader(os.Stdin)
	for {
		fmt.Print("> ")
		line, err := reader.ReadString('\n')
		if err != nil {
			return
		}
		parts := strings.Fields(strings.TrimSpace(line))
		if len(parts) == 0 {
			continue
		}
		r.dispatch(strings.ToLower(parts[0]), parts[1:])
	}
}

func (r *repl) dispatch(cmd string, args []string) {
	if cmd == "select" {
		r.cmdSelect(args)
		return
	}
	if cmd == "help" {
		printHelp()
		return
	}

	if r.selected == nil {
		fmt.Println("No station loaded. Check template_dir in your config.")
		return
	}

	switch cmd {
	case "connect":
		if err := r.selected.Start(); err != nil {
			fmt.Printf("Error: %v\n", err)
		}
	case "disconnect":
		if err := r.selected.Stop("Local", true); err != nil {
			fmt.Printf("Error: %v\n", err)
		}
	case "start":
		r.cmdStart(args)
	case "stop":
		r.cmdStop(args)
	case "reserve":
		r.cmdReserve(args)
	case "cancelreservation":
		r.cmdCancelReservation(args)
	case "status":
		fmt.Printf("State: %s\n", r.selected.State())
	case "info":
		r.cmdInfo()
	case "quit", "exit":
		fmt.Println("Use Ctrl+C to exit")
	default:
		fmt.Printf("Unknown command: %s. Type 'help' for available commands.\n", cmd)
	}
}

func (r *repl) cmdSelect(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: select <stationId>")
		return
	}
	st, ok := r.pool.Get(args[0])
	if !ok {
		fmt.Printf("Unknown station: %s\n", args[0])
		return
	}
	r.selected = st
	fmt.Printf("Selected station: %s\n", args[0])
}

func (r *repl) cmdStart(args []string) {
	if len(args) < 2 {
		fmt.Println("Usage: start <connectorId> <idTag>")
		return
	}
	connectorID, err := strconv.Atoi(args[0])
	if err != nil {
		fmt.Println("connectorId must be an integer")
		return
	}
	status := r.selected.RemoteStartTransaction(connectorID, args[1], nil)
	fmt.Printf("StartTransaction: %s\n", status)
}

func (r *repl) cmdStop(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: stop <transactionId>")
		return
	}
	transactionID, err := strconv.Atoi(args[0])
	if err != nil {
		fmt.Println("transactionId must be an integer")
		return
	}
	status := r.selected.RemoteStopTransaction(transactionID)
	fmt.Printf("StopTransaction: %s\n", status)
}

func (r *repl) cmdReserve(args []string) {
	if len(args) < 4 {
		fmt.Println("Usage: reserve <connectorId> <idTag> <reservationId> <minutes>")
		return
	}
	connectorID, err1 := strconv.Atoi(args[0])
	reservationID, err2 := strconv.Atoi(args[2])
	minutes, err3 := strconv.Atoi(args[3])
	if err1 != nil || err2 != nil || err3 != nil {
		fmt.Println("connectorId, reservationId and minutes must be integers")
		return
	}
	expiry := time.Now().Add(time.Duration(minutes) * time.Minute)
	status := r.selected.ReserveNow(connectorID, expiry, args[1], reservationID)
	fmt.Printf("ReserveNow: %s\n", status)
}

func (r *repl) cmdCancelReservation(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: cancelreservation <reservationId>")
		return
	}
	reservationID, err := strconv.Atoi(args[0])
	if err != nil {
		fmt.Println("reservationId must be an integer")
		return
	}
	status := r.selected.CancelReservation(reservationID)
	fmt.Printf("CancelReservation: %s\n", status)
}

func (r *repl) cmdInfo() {
	info := r.selected.Info()
	fmt.Printf("Station: %s (OCPP %s)\n", info.StationID, info.OCPPVersion)
	fmt.Printf("State: %s\n", r.selected.State())
	fmt.Printf("Vendor/Model: %s / %s\n", info.ChargePointVendor, info.ChargePointModel)
	for _, c := range r.selected.Model().AllConnectors() {
		fmt.Printf("  connector %d: %s\n", c.ID, c.Status)
	}
}

func printHelp() {
	fmt.Println("Available commands:")
	fmt.Println("  select <stationId>                          - choose the active station")
	fmt.Println("  connect                                      - start the selected station (connect/register)")
	fmt.Println("  disconnect                                   - stop the selected station")
	fmt.Println("  start <connectorId> <idTag>                  - RemoteStartTransaction")
	fmt.Println("  stop <transactionId>                         - RemoteStopTransaction")
	fmt.Println("  reserve <connectorId> <idTag> <resId> <mins> - ReserveNow")
	fmt.Println("  cancelreservation <reservationId>            - CancelReservation")
	fmt.Println("  status                                       - print the selected station's lifecycle state")
	fmt.Println("  info                                         - print selected station and connector status")
	fmt.Println("  quit/exit                                    - exit the simulator (use Ctrl+C)")
}
