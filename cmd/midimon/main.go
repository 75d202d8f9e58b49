package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	gomidi "gitlab.com/gomidi/midi/v2"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv" // register system MIDI driver

	"github.com/skobkin/midimon/internal/app"
	"github.com/skobkin/midimon/internal/config"
	"github.com/skobkin/midimon/internal/devices"
	"github.com/skobkin/midimon/internal/miderr"
	"github.com/skobkin/midimon/internal/midi"
	"github.com/skobkin/midimon/internal/persistence"
)

func main() {
	if err := run(); err != nil {
		slog.Error("run midimon", "error", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "config file path (default: user config dir)")
	transportKind := flag.String("transport", "", "capture backend: rtmidi or serial (default: configured)")
	device := flag.String("device", "", "device to capture from: index, id or name substring (default: first available)")
	list := flag.Bool("list", false, "list detected devices and exit")
	record := flag.Bool("record", false, "record captured messages to sqlite")
	silent := flag.Bool("silent", false, "disable desktop notifications")
	history := flag.Int("history", 0, "print the N most recent recorded messages and exit")
	purge := flag.Bool("purge-history", false, "clear recorded history and exit")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("%s %s\n", app.Name, app.BuildVersionWithDate())
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := app.Initialize(ctx, app.Options{
		ConfigFile: strings.TrimSpace(*configPath),
		Transport:  config.TransportType(strings.TrimSpace(*transportKind)),
		Record:     *record,
		Silent:     *silent,
	})
	if err != nil {
		return err
	}
	defer func() { _ = rt.Close() }()
	defer gomidi.CloseDriver()

	logger := rt.LogManager.Logger("cli")

	switch {
	case *list:
		return runList(rt)
	case *purge:
		return rt.ClearDatabase()
	case *history > 0:
		return runHistory(ctx, rt, *history)
	}

	return runMonitor(ctx, rt, logger, strings.TrimSpace(*device))
}

func runList(rt *app.Runtime) error {
	detected := rt.Monitor.Refresh()
	if len(detected) == 0 {
		fmt.Println("no MIDI devices detected")
		return nil
	}

	for _, dev := range detected {
		marker := " "
		if dev.Connected {
			marker = "*"
		}
		fmt.Printf("%s %s\n", marker, dev.ID)
	}

	return nil
}

func runHistory(ctx context.Context, rt *app.Runtime, limit int) error {
	recs, err := rt.MessageRepo.ListRecent(ctx, limit)
	if err != nil {
		return err
	}
	events, err := rt.DeviceEventRepo.ListRecent(ctx, limit)
	if err != nil {
		return err
	}

	if len(recs) == 0 && len(events) == 0 {
		fmt.Println("no recorded history")
		return nil
	}

	for _, event := range events {
		fmt.Printf("%s device %s %s\n", event.At.Format("2006-01-02 15:04:05.000"), event.Kind, event.DeviceID)
	}
	for _, rec := range recs {
		fmt.Printf("%s %s\n", rec.At.Format("2006-01-02 15:04:05.000"), formatRecord(rec))
	}

	return nil
}

func runMonitor(ctx context.Context, rt *app.Runtime, logger *slog.Logger, deviceQuery string) error {
	if deviceQuery == "" && rt.Config.Transport.Kind == config.TransportSerial {
		deviceQuery = strings.TrimSpace(rt.Config.Transport.SerialPort)
	}

	// Printers register first so device lines appear before connection
	// lines produced by the auto-connect handlers below.
	rt.Monitor.Added.Subscribe(func(dev devices.Device) {
		fmt.Printf("+ device %s\n", dev.ID)
	})
	rt.Monitor.Removed.Subscribe(func(dev devices.Device) {
		fmt.Printf("- device %s\n", dev.ID)
	})
	rt.Monitor.Errors.Subscribe(func(err *miderr.Error) {
		logger.Warn("device enumeration error", "code", err.Code, "error", err.Message)
	})
	rt.Capture.Connected.Subscribe(func(dev devices.Device) {
		fmt.Printf("* capturing from %s\n", dev.ID)
	})
	rt.Capture.Disconnected.Subscribe(func(dev devices.Device) {
		fmt.Printf("* stopped capturing from %s\n", dev.ID)
	})
	rt.Capture.Errors.Subscribe(func(err *miderr.Error) {
		logger.Warn("capture error", "code", err.Code, "error", err.Message)
	})
	rt.Capture.Messages.Subscribe(func(msg midi.Message) {
		fmt.Printf("%s %s\n", midi.TimeOf(msg).Format("15:04:05.000"), msg)
	})

	// Capture follows device presence: the first matching device is
	// bound as soon as it shows up, and a vanished device releases the
	// capture session so a later arrival can take over.
	rt.Monitor.Added.Subscribe(func(dev devices.Device) {
		if rt.Capture.ConnectedDeviceID() != "" {
			return
		}
		if !matchesDevice(deviceQuery, dev) {
			return
		}
		if err := rt.Capture.Connect(ctx, dev.ID); err != nil {
			logger.Warn("connect device", "id", dev.ID, "error", err)
		}
	})
	rt.Monitor.Removed.Subscribe(func(dev devices.Device) {
		if dev.ID == rt.Capture.ConnectedDeviceID() {
			rt.Capture.Disconnect()
		}
	})

	logger.Info("monitoring MIDI devices",
		"transport", rt.Transport.Name(),
		"poll_interval", rt.Config.Monitor.PollInterval(),
		"recording", rt.Config.Recorder.Enabled,
	)
	rt.Monitor.Start(rt.Config.Monitor.PollInterval())

	<-ctx.Done()

	return nil
}

// matchesDevice resolves the -device query against one device. An empty
// query takes anything; a number selects by enumeration index; anything
// else must equal the id or appear in the name.
func matchesDevice(query string, dev devices.Device) bool {
	query = strings.TrimSpace(query)
	if query == "" {
		return true
	}
	if query == dev.ID {
		return true
	}
	if idx, err := strconv.Atoi(query); err == nil {
		return strings.HasPrefix(dev.ID, strconv.Itoa(idx)+":")
	}

	return strings.Contains(strings.ToLower(dev.Name), strings.ToLower(query))
}

func formatRecord(rec persistence.MessageRecord) string {
	var b strings.Builder
	b.WriteString(rec.Kind)
	fmt.Fprintf(&b, " ch=%d", rec.Channel)
	if rec.Note != nil {
		fmt.Fprintf(&b, " note=%d", *rec.Note)
	}
	if rec.Velocity != nil {
		fmt.Fprintf(&b, " vel=%d", *rec.Velocity)
	}
	if rec.Controller != nil {
		fmt.Fprintf(&b, " cc=%d", *rec.Controller)
	}
	if rec.Value != nil {
		fmt.Fprintf(&b, " val=%d", *rec.Value)
	}
	if rec.DeviceID != "" {
		fmt.Fprintf(&b, " device=%s", rec.DeviceID)
	}

	return b.String()
}
