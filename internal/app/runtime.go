package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/skobkin/midimon/internal/bus"
	"github.com/skobkin/midimon/internal/capture"
	"github.com/skobkin/midimon/internal/config"
	"github.com/skobkin/midimon/internal/devices"
	"github.com/skobkin/midimon/internal/logging"
	"github.com/skobkin/midimon/internal/midi"
	"github.com/skobkin/midimon/internal/notifications"
	"github.com/skobkin/midimon/internal/persistence"
	"github.com/skobkin/midimon/internal/transport"
)

// Options adjust the runtime before any component is wired. Zero values
// mean "use the configured behavior".
type Options struct {
	// ConfigFile overrides the default config file location.
	ConfigFile string
	// Transport overrides the configured capture backend.
	Transport config.TransportType
	// Record forces the recorder on even when the config disables it.
	Record bool
	// Silent disables desktop notifications regardless of config.
	Silent bool
}

type Runtime struct {
	Ctx    context.Context
	cancel context.CancelFunc

	Paths  Paths
	Config config.AppConfig

	LogManager *logging.Manager
	Bus        *bus.PubSubBus
	DB         *sql.DB

	MessageRepo     *persistence.MessageRepo
	DeviceEventRepo *persistence.DeviceEventRepo
	WriterQueue     *persistence.WriterQueue

	Transport transport.Transport
	Capture   *capture.Service
	Monitor   *devices.Reconciler

	Notifier *NotificationService
	Recorder *RecorderService
}

// Initialize wires every component and starts the passive bus consumers.
// Device monitoring and capture stay idle until the caller drives them
// through Monitor and Capture.
func Initialize(parent context.Context, opts Options) (*Runtime, error) {
	paths, err := ResolvePaths()
	if err != nil {
		return nil, err
	}
	configFile := paths.ConfigFile
	if opts.ConfigFile != "" {
		configFile = opts.ConfigFile
	}
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, err
	}
	if opts.Transport != "" {
		cfg.Transport.Kind = opts.Transport
	}
	if opts.Record {
		cfg.Recorder.Enabled = true
	}
	if opts.Silent {
		cfg.Notifications.Enabled = false
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(parent)
	rt := &Runtime{
		Ctx:    ctx,
		cancel: cancel,
		Paths:  paths,
		Config: cfg,
	}

	logMgr := logging.NewManager()
	if err := logMgr.Configure(cfg.Logging, paths.LogFile); err != nil {
		_ = logMgr.Close()
		cancel()
		return nil, fmt.Errorf("configure logging: %w", err)
	}
	rt.LogManager = logMgr
	slog.Info("starting midimon runtime", "version", BuildVersion(), "build_date", BuildDateYMD(), "transport", cfg.Transport.Kind)

	db, err := persistence.Open(ctx, rt.DatabasePath())
	if err != nil {
		_ = rt.Close()
		return nil, err
	}
	rt.DB = db
	rt.MessageRepo = persistence.NewMessageRepo(db)
	rt.DeviceEventRepo = persistence.NewDeviceEventRepo(db)

	writerQueue := persistence.NewWriterQueue(logMgr.Logger("persistence"), 512)
	writerQueue.Start(ctx)
	rt.WriterQueue = writerQueue

	b := bus.New(logMgr.Logger("bus"))
	rt.Bus = b

	tr, err := buildTransport(cfg.Transport)
	if err != nil {
		_ = rt.Close()
		return nil, err
	}
	rt.Transport = tr

	decoder := midi.NewDecoder()
	decoder.NoteOffOnZeroVelocity = cfg.Decoder.NoteOffOnZeroVelocity

	rt.Capture = capture.NewService(logMgr.Logger("capture"), b, tr, decoder)
	rt.Monitor = devices.NewReconciler(logMgr.Logger("devices"), tr, rt.Capture.ConnectedDeviceID)
	rt.bridgeEvents()

	rt.Notifier = NewNotificationService(b, rt.currentConfig, notifications.NewBeeepSender(logMgr.Logger("notifications")), logMgr.Logger("notifications"))
	rt.Notifier.Start(ctx)

	rt.Recorder = NewRecorderService(b, writerQueue, rt.MessageRepo, rt.DeviceEventRepo, logMgr.Logger("recorder"))
	if cfg.Recorder.Enabled {
		rt.Recorder.Start(ctx)
	}

	return rt, nil
}

// DatabasePath resolves the recorder database location, preferring the
// configured override.
func (r *Runtime) DatabasePath() string {
	if r.Config.Recorder.DatabasePath != "" {
		return r.Config.Recorder.DatabasePath
	}

	return r.Paths.DBFile
}

func (r *Runtime) currentConfig() config.AppConfig {
	return r.Config
}

func (r *Runtime) ClearDatabase() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := persistence.ClearDatabase(ctx, r.DB); err != nil {
		return err
	}
	slog.Info("recorded history cleared")

	return nil
}

func (r *Runtime) Close() error {
	if r.cancel != nil {
		r.cancel()
	}
	if r.Monitor != nil {
		r.Monitor.Dispose()
	}
	if r.Capture != nil {
		r.Capture.Close()
	}
	if r.Bus != nil {
		r.Bus.Close()
	}
	if r.DB != nil {
		_ = r.DB.Close()
	}
	if r.LogManager != nil {
		_ = r.LogManager.Close()
	}

	return nil
}

func buildTransport(cfg config.TransportConfig) (transport.Transport, error) {
	switch cfg.Kind {
	case config.TransportSerial:
		return transport.NewSerialTransport(cfg.SerialBaud), nil
	case config.TransportRTMIDI:
		return transport.NewRTMIDITransport(), nil
	default:
		return nil, fmt.Errorf("unknown transport: %s", cfg.Kind)
	}
}
