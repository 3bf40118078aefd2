// oe-bridge — мост между Open Ephys GUI и локальной системой.
//
// Принимает бинарный поток событий (спайки, TTL) по ZeroMQ, оценивает
// смещение часов системы регистрации относительно локальных по
// периодическому sync-коду на цифровых линиях и публикует спайки с
// поправленными метками времени.
//
// Использование:
//
//	oe-bridge -config oe-bridge.yml
//	oe-bridge -host rig1.local -port 5557 -quiet
//
// Режим generate: мост сам генерирует sync-код и пишет его в блок
// цифровых выходов (sync_out.device). Режим external: эталонный код
// подаётся построчно на stdin (целое число на строку).
package main

import (
	"bufio"
	"flag"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/shiwa/oe-bridge/internal/bridge"
	"github.com/shiwa/oe-bridge/internal/clock"
	"github.com/shiwa/oe-bridge/internal/config"
	"github.com/shiwa/oe-bridge/internal/logger"
	"github.com/shiwa/oe-bridge/internal/oeproto"
	"github.com/shiwa/oe-bridge/internal/sink"
	"github.com/shiwa/oe-bridge/internal/syncengine"
	"github.com/shiwa/oe-bridge/internal/zmqsub"
)

func main() {
	configPath := flag.String("config", "", "путь к YAML конфигу (по умолчанию oe-bridge.yml)")
	host := flag.String("host", "", "hostname Open Ephys GUI (переопределяет config)")
	port := flag.Int("port", 0, "порт потока событий (переопределяет config)")
	quiet := flag.Bool("quiet", false, "меньше вывода")
	flag.Parse()

	logger.Quiet = *quiet

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if *host != "" {
		cfg.OpenEphys.Hostname = *host
	}
	if *port != 0 {
		cfg.OpenEphys.Port = *port
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config: %v", err)
	}

	channels, err := config.ParseSyncChannels(cfg.OpenEphys.SyncChannels,
		cfg.OpenEphys.SyncMode == config.ModeGenerate)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	interval := cfg.OpenEphys.Interval()

	var engine syncengine.Engine
	var external *syncengine.External
	var serialOut *sink.SerialLineWriter

	switch cfg.OpenEphys.SyncMode {
	case config.ModeGenerate:
		serialOut, err = sink.OpenSerial(cfg.SyncOut.Device, cfg.SyncOut.Baud)
		if err != nil {
			log.Fatalf("sync out: %v", err)
		}
		gen := syncengine.NewGenerate(channels, interval, serialOut)
		gen.OnOffset = logOffset
		engine = gen
	case config.ModeExternal:
		external = syncengine.NewExternal(channels)
		external.OnOffset = logOffset
		engine = external
	}

	var spikes sink.SpikeSink
	if cfg.Spikes.Enabled {
		spikes = sink.LogSpikes()
	}

	// Таймаут приёма — половина периода эмиссии: он держит отзывчивыми
	// эмиссию, watchdog и остановку
	socket := zmqsub.New(cfg.OpenEphys.Endpoint(), interval/2)
	if spikes != nil {
		if err := socket.Subscribe(oeproto.TagSpike); err != nil {
			log.Fatalf("subscribe: %v", err)
		}
	}
	if err := socket.Subscribe(engine.Tag()); err != nil {
		log.Fatalf("subscribe: %v", err)
	}

	b := bridge.New(socket, engine, spikes)
	if err := b.Start(); err != nil {
		log.Fatalf("%v", err)
	}
	logger.Info("подключено к %s (режим %s, каналы %v)",
		cfg.OpenEphys.Endpoint(), cfg.OpenEphys.SyncMode, cfg.OpenEphys.SyncChannels)

	if external != nil {
		go feedNotifications(external)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("получен сигнал %v, завершение...", sig)

	if err := b.Stop(); err != nil {
		logger.Error("%v", err)
	}
	if serialOut != nil {
		_ = serialOut.Close()
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		path = "oe-bridge.yml"
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return config.Default(), nil
		}
	}
	return config.Load(path)
}

func logOffset(offsetUS int64) {
	logger.Info("clock offset: %d мкс", offsetUS)
}

// feedNotifications читает эталонные значения sync-кода со stdin
// (по одному целому на строку) и передаёт их движку с локальным временем
// прочтения.
func feedNotifications(e *syncengine.External) {
	sc := bufio.NewScanner(os.Stdin)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		value, err := strconv.Atoi(line)
		if err != nil {
			logger.Error("эталон sync: %q не число", line)
			continue
		}
		e.NotifySync(value, clock.Micros())
	}
}
