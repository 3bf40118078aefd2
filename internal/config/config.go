// Package config — конфигурация oe-bridge (YAML + валидация).
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Режимы синхронизации часов.
const (
	// ModeGenerate — мост сам генерирует sync-код по расписанию, пишет его
	// в выход (цифровые линии), и сверяет эхо от системы регистрации.
	ModeGenerate = "generate"
	// ModeExternal — эталонное значение кода приходит извне (уведомлением),
	// мост только сверяет восстановленный по TTL событиям код.
	ModeExternal = "external"
)

// Config — конфигурация oe-bridge.
type Config struct {
	OpenEphys OpenEphysConfig `yaml:"open_ephys"`
	SyncOut   SyncOutConfig   `yaml:"sync_out"`
	Spikes    SpikesConfig    `yaml:"spikes"`
}

// OpenEphysConfig — подключение к Open Ephys GUI и параметры sync-протокола.
type OpenEphysConfig struct {
	Hostname     string `yaml:"hostname"`
	Port         int    `yaml:"port"`
	SyncMode     string `yaml:"sync_mode"`     // generate | external
	SyncChannels []int  `yaml:"sync_channels"` // номера линий 1..8
	SyncInterval string `yaml:"sync_interval"` // период эмиссии кода, например "1s"
}

// SyncOutConfig — устройство вывода sync-кода (режим generate):
// последовательный порт блока цифровых выходов.
type SyncOutConfig struct {
	Device string `yaml:"device"`
	Baud   int    `yaml:"baud"`
}

// SpikesConfig — публикация спайков.
type SpikesConfig struct {
	Enabled bool `yaml:"enabled"`
}

// Default возвращает конфиг по умолчанию.
func Default() *Config {
	return &Config{
		OpenEphys: OpenEphysConfig{
			Hostname:     "localhost",
			Port:         5556,
			SyncMode:     ModeGenerate,
			SyncInterval: "1s",
		},
		SyncOut: SyncOutConfig{
			Baud: 115200,
		},
		Spikes: SpikesConfig{Enabled: true},
	}
}

// Load читает конфиг из YAML и валидирует его.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	applyDefaults(&c)
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate проверяет конфиг целиком; ошибки конфигурации фатальны —
// мост с невалидным конфигом не создаётся.
func (c *Config) Validate() error {
	oe := &c.OpenEphys
	if oe.Hostname == "" {
		return fmt.Errorf("open_ephys.hostname обязателен")
	}
	if oe.Port <= 0 || oe.Port > 65535 {
		return fmt.Errorf("open_ephys.port: недопустимое значение %d", oe.Port)
	}
	switch oe.SyncMode {
	case ModeGenerate, ModeExternal:
	default:
		return fmt.Errorf("open_ephys.sync_mode: %q (ожидается %q или %q)",
			oe.SyncMode, ModeGenerate, ModeExternal)
	}
	if _, err := ParseSyncChannels(oe.SyncChannels, oe.SyncMode == ModeGenerate); err != nil {
		return err
	}
	if _, err := time.ParseDuration(oe.SyncInterval); err != nil {
		return fmt.Errorf("open_ephys.sync_interval: %w", err)
	}
	if oe.SyncMode == ModeGenerate && c.SyncOut.Device == "" {
		return fmt.Errorf("sync_out.device обязателен в режиме %s", ModeGenerate)
	}
	return nil
}

// ParseSyncChannels валидирует список sync-каналов (1-базные номера линий)
// и возвращает 0-базные индексы. Требования: непустой список, не более 8
// каналов, значения 1..8, без повторов; при strictAscending дополнительно —
// строго по возрастанию.
func ParseSyncChannels(nums []int, strictAscending bool) ([]uint8, error) {
	if len(nums) == 0 {
		return nil, fmt.Errorf("sync_channels: нужен хотя бы один канал")
	}
	if len(nums) > 8 {
		return nil, fmt.Errorf("sync_channels: больше 8 каналов (%d)", len(nums))
	}
	seen := [8]bool{}
	out := make([]uint8, 0, len(nums))
	prev := 0
	for _, n := range nums {
		if n < 1 || n > 8 {
			return nil, fmt.Errorf("sync_channels: недопустимый номер канала %d (ожидается 1..8)", n)
		}
		if seen[n-1] {
			return nil, fmt.Errorf("sync_channels: канал %d указан дважды", n)
		}
		seen[n-1] = true
		if strictAscending && n <= prev {
			return nil, fmt.Errorf("sync_channels: каналы должны идти строго по возрастанию (%d после %d)", n, prev)
		}
		prev = n
		out = append(out, uint8(n-1))
	}
	return out, nil
}

// Interval возвращает период эмиссии sync-кода.
func (c *OpenEphysConfig) Interval() time.Duration {
	d, err := time.ParseDuration(c.SyncInterval)
	if err != nil || d <= 0 {
		return time.Second
	}
	return d
}

// Endpoint возвращает адрес подключения к Open Ephys GUI.
func (c *OpenEphysConfig) Endpoint() string {
	return fmt.Sprintf("tcp://%s:%d", c.Hostname, c.Port)
}

func applyDefaults(c *Config) {
	d := Default()
	if c.OpenEphys.Hostname == "" {
		c.OpenEphys.Hostname = d.OpenEphys.Hostname
	}
	if c.OpenEphys.Port == 0 {
		c.OpenEphys.Port = d.OpenEphys.Port
	}
	if c.OpenEphys.SyncMode == "" {
		c.OpenEphys.SyncMode = d.OpenEphys.SyncMode
	}
	if c.OpenEphys.SyncInterval == "" {
		c.OpenEphys.SyncInterval = d.OpenEphys.SyncInterval
	}
	if c.SyncOut.Baud == 0 {
		c.SyncOut.Baud = d.SyncOut.Baud
	}
}
