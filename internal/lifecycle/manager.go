// Package lifecycle owns construction and sequenced startup/shutdown
// of every long-lived component: the event queue, mapping processor,
// output backend, hardware frontend, event handler and REST/websocket
// surface. Grounded on the shape of a construct-in-order /
// shut-down-in-reverse-order lifecycle manager, generalized from a
// fixed grpc+http+postgres server set to this bridge's
// frontend/backend/dispatcher set (spec §4.7).
package lifecycle

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sensei-project/sensei-bridged/internal/api/rest"
	apiws "github.com/sensei-project/sensei-bridged/internal/api/websocket"
	"github.com/sensei-project/sensei-bridged/internal/auth"
	"github.com/sensei-project/sensei-bridged/internal/config"
	"github.com/sensei-project/sensei-bridged/internal/eventhandler"
	"github.com/sensei-project/sensei-bridged/internal/hardware"
	"github.com/sensei-project/sensei-bridged/internal/hardware/gpiosocket"
	"github.com/sensei-project/sensei-bridged/internal/hardware/raspa"
	"github.com/sensei-project/sensei-bridged/internal/hardware/serial"
	"github.com/sensei-project/sensei-bridged/internal/mapping"
	"github.com/sensei-project/sensei-bridged/internal/output"
	"github.com/sensei-project/sensei-bridged/internal/queue"
	"github.com/sensei-project/sensei-bridged/internal/types"
)

var imuAxisByName = map[string]serial.ImuAxis{
	"yaw":   serial.ImuYaw,
	"pitch": serial.ImuPitch,
	"roll":  serial.ImuRoll,
}

const dispatchWaitPeriod = 200 * time.Millisecond

// Manager is the top-level owner of a running bridge process.
type Manager struct {
	configPath string
	cfgMu      sync.RWMutex
	cfg        *config.Config
	log        *zap.Logger

	eventQueue *queue.EventQueue
	processor  *mapping.Processor
	backend    output.Backend
	frontend   hardware.Frontend
	handler    *eventhandler.Handler
	hub        *apiws.Hub
	restServer *rest.Server

	startedAt time.Time
}

// New constructs every component from cfg but does not start any
// goroutine; call Start for that. Construction order: queue,
// processor, output backend, hardware frontend, event handler, REST
// server — each later component's constructor takes the earlier
// ones it depends on.
func New(configPath string, cfg *config.Config, log *zap.Logger) (*Manager, error) {
	m := &Manager{configPath: configPath, cfg: cfg, log: log.Named("lifecycle")}

	m.eventQueue = queue.NewEventQueue()
	m.processor = mapping.NewProcessor(cfg.MaxInputPins, log)

	m.hub = apiws.NewHub(log)

	backend, err := buildOutputBackend(cfg, m.hub, log)
	if err != nil {
		return nil, fmt.Errorf("build output backend: %w", err)
	}
	m.backend = backend

	frontend, err := buildFrontend(cfg, m.eventQueue, log)
	if err != nil {
		return nil, fmt.Errorf("build hardware frontend: %w", err)
	}
	m.frontend = frontend
	installPinTable(cfg, frontend)
	frontend.VerifyAcks(cfg.Transport.VerifyAcks)

	m.handler = eventhandler.New(m.eventQueue, m.processor, m.backend, m.frontend, log)
	m.handler.SetErrorSink(func(e types.Error) {
		m.hub.Broadcast(apiws.NewStatusMessage(map[string]any{
			"kind": e.KindValue.String(),
			"text": e.Text,
		}))
	})
	m.handler.SetReloadFunc(m.reloadCommands)

	credentials, err := buildCredentialStore(cfg)
	if err != nil {
		return nil, fmt.Errorf("build credential store: %w", err)
	}
	jwtHandler := auth.NewJWTHandler(cfg.Auth.JWTSecret(), cfg.Auth.TokenTTL)

	m.restServer = rest.NewServer(
		cfg.Server.HTTPPort, log, m.eventQueue, m.processor, m.frontend,
		m.hub, credentials, jwtHandler, m, m,
	)

	return m, nil
}

func buildOutputBackend(cfg *config.Config, hub *apiws.Hub, log *zap.Logger) (output.Backend, error) {
	var primary output.Backend
	switch cfg.Output.Kind {
	case "stdout":
		primary = output.NewStdoutBackend(log)
	case "osc", "":
		osc, err := output.NewOscBackend(cfg.Output.OscAddress, log)
		if err != nil {
			return nil, err
		}
		primary = osc
	default:
		return nil, fmt.Errorf("unknown output kind %q", cfg.Output.Kind)
	}

	if !cfg.Output.WebsocketFeed {
		return primary, nil
	}
	return output.NewMultiBackend(primary, output.NewWebsocketBackend(hub)), nil
}

func buildFrontend(cfg *config.Config, eventQueue *queue.EventQueue, log *zap.Logger) (hardware.Frontend, error) {
	switch cfg.Transport.Kind {
	case "serial":
		return serial.NewFrontend(cfg.Transport.SerialPort, eventQueue, log), nil
	case "raspa":
		network := cfg.Transport.Network
		if network == "" {
			network = "unix"
		}
		return raspa.NewFrontend(network, cfg.Transport.Address, eventQueue, log), nil
	case "gpio_socket":
		return gpiosocket.NewFrontend(cfg.Transport.SocketPath, eventQueue, log), nil
	default:
		return nil, fmt.Errorf("unknown transport kind %q", cfg.Transport.Kind)
	}
}

// installPinTable pushes every configured pin's hardware id into the
// frontend's forward table before the frontend starts receiving
// traffic, so its reader goroutine never sees an unresolvable pin id.
// Pins configured with an imu_axis additionally get that axis wired
// on frontends that support it (serial only, so far).
func installPinTable(cfg *config.Config, frontend hardware.Frontend) {
	type installer interface {
		InstallPinMapping(hwPinID uint16, logicalIndex int)
	}
	inst, ok := frontend.(installer)
	if !ok {
		return
	}
	for _, p := range cfg.Pins {
		inst.InstallPinMapping(p.HwPinID, p.Index)
	}

	type imuInstaller interface {
		InstallImuAxis(axis serial.ImuAxis, logicalIndex int)
	}
	if imuInst, ok := frontend.(imuInstaller); ok {
		for _, p := range cfg.Pins {
			if p.ImuAxis == "" {
				continue
			}
			if axis, ok := imuAxisByName[p.ImuAxis]; ok {
				imuInst.InstallImuAxis(axis, p.Index)
			}
		}
	}
}

func buildCredentialStore(cfg *config.Config) (*auth.CredentialStore, error) {
	creds := make([]auth.Credential, 0, len(cfg.Auth.Operators))
	for _, op := range cfg.Auth.Operators {
		creds = append(creds, auth.Credential{Username: op.Username, PasswordHash: op.PasswordHash, Role: op.Role})
	}
	return auth.NewCredentialStore(creds), nil
}

// Start launches every goroutine: the websocket hub, the hardware
// frontend's reader/writer pair, the event dispatcher, and the REST
// listener, in that order.
func (m *Manager) Start() {
	m.startedAt = time.Now()
	go m.hub.Run()
	m.frontend.Run()
	go m.handler.Run(dispatchWaitPeriod)
	m.replayInitialConfig()
	m.restServer.Start()
}

// replayInitialConfig pushes the loaded configuration's command
// stream onto the event queue so the mapping processor and hardware
// frontend reach their configured state through the same dispatch
// path every later command takes, rather than a constructor
// shortcut.
func (m *Manager) replayInitialConfig() {
	m.cfgMu.RLock()
	commands := m.cfg.ToCommands()
	m.cfgMu.RUnlock()
	for _, cmd := range commands {
		m.eventQueue.Push(cmd)
	}
}

// reloadCommands is the reload function wired into the event
// handler: it re-reads the configuration file from disk and returns
// its command stream (spec §4.2's "re-read the configuration source
// and replay it"), rather than replaying the cached m.cfg. It runs
// only on the dispatcher thread (RELOAD_CONFIG is handled there, spec
// §5), so updating m.cfg here never races the REST status handler's
// read of it; cfgMu still guards the field itself against that
// concurrent reader.
func (m *Manager) reloadCommands() []types.Command {
	cfg, err := config.Load(m.configPath)
	if err != nil {
		m.log.Error("reload_config: re-reading the config file failed, replaying the previous config instead", zap.Error(err))
		m.cfgMu.RLock()
		defer m.cfgMu.RUnlock()
		return m.cfg.ToCommands()
	}
	m.cfgMu.Lock()
	m.cfg = cfg
	m.cfgMu.Unlock()
	return cfg.ToCommands()
}

// ReloadConfig is the Reloader the REST handler calls on its own
// goroutine. It validates the configuration file is loadable, so a
// bad file is reported synchronously to the caller, then hands the
// actual reload off to the dispatcher thread as a RELOAD_CONFIG
// command rather than touching the processor or m.cfg itself (spec
// §5: the mapping processor is touched only by the dispatcher
// thread). reloadCommands performs the authoritative re-read once the
// command reaches it.
func (m *Manager) ReloadConfig() error {
	if _, err := config.Load(m.configPath); err != nil {
		return fmt.Errorf("reload config: %w", err)
	}
	m.eventQueue.Push(types.Command{Target: types.TargetInternal, Tag: types.ReloadConfig})
	return nil
}

// Shutdown stops the REST listener, then tears down the event
// handler (which itself stops the hardware frontend and releases the
// processor and backend), in the reverse order of Start.
func (m *Manager) Shutdown(ctx context.Context) error {
	if err := m.restServer.Shutdown(ctx); err != nil {
		m.log.Warn("rest server shutdown returned an error", zap.Error(err))
	}
	m.handler.Deinit()
	return nil
}

// Status reports a snapshot for the REST status endpoint.
func (m *Manager) Status() map[string]any {
	m.cfgMu.RLock()
	cfg := m.cfg
	m.cfgMu.RUnlock()
	return map[string]any{
		"uptime_seconds":     time.Since(m.startedAt).Seconds(),
		"frontend_kind":      cfg.Transport.Kind,
		"frontend_connected": m.frontend.Connected(),
		"output_kind":        cfg.Output.Kind,
	}
}
