package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestParseSyncChannels(t *testing.T) {
	tests := []struct {
		name   string
		in     []int
		strict bool
		want   []uint8
		ok     bool
	}{
		{"один канал", []int{1}, true, []uint8{0}, true},
		{"все восемь", []int{1, 2, 3, 4, 5, 6, 7, 8}, true, []uint8{0, 1, 2, 3, 4, 5, 6, 7}, true},
		{"не по порядку без strict", []int{3, 1}, false, []uint8{2, 0}, true},
		{"пустой список", nil, false, nil, false},
		{"ноль", []int{0, 1}, false, nil, false},
		{"больше 8", []int{9}, false, nil, false},
		{"повтор", []int{2, 2}, false, nil, false},
		{"не по возрастанию при strict", []int{3, 1}, true, nil, false},
		{"равные соседи при strict", []int{2, 2}, true, nil, false},
		{"девять каналов", []int{1, 2, 3, 4, 5, 6, 7, 8, 8}, false, nil, false},
	}
	for _, tt := range tests {
		got, err := ParseSyncChannels(tt.in, tt.strict)
		if tt.ok && err != nil {
			t.Errorf("%s: неожиданная ошибка %v", tt.name, err)
			continue
		}
		if !tt.ok {
			if err == nil {
				t.Errorf("%s: ожидали ошибку, получили %v", tt.name, got)
			}
			continue
		}
		if len(got) != len(tt.want) {
			t.Errorf("%s: %v, ожидали %v", tt.name, got, tt.want)
			continue
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("%s: %v, ожидали %v", tt.name, got, tt.want)
				break
			}
		}
	}
}

func TestValidate(t *testing.T) {
	c := Default()
	c.OpenEphys.SyncChannels = []int{1, 2, 3}
	c.SyncOut.Device = "/dev/ttyACM0"
	if err := c.Validate(); err != nil {
		t.Fatalf("валидный конфиг: %v", err)
	}

	bad := Default()
	bad.OpenEphys.SyncChannels = []int{1}
	bad.OpenEphys.SyncMode = "both"
	if err := bad.Validate(); err == nil {
		t.Error("ожидали ошибку на неизвестном sync_mode")
	}

	noDev := Default()
	noDev.OpenEphys.SyncChannels = []int{1}
	if err := noDev.Validate(); err == nil {
		t.Error("ожидали ошибку: режим generate без sync_out.device")
	}

	ext := Default()
	ext.OpenEphys.SyncMode = ModeExternal
	ext.OpenEphys.SyncChannels = []int{3, 1} // в external порядок не обязан быть возрастающим
	if err := ext.Validate(); err != nil {
		t.Errorf("external без устройства вывода должен быть валиден: %v", err)
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "oe-bridge.yml")
	data := []byte(`
open_ephys:
  hostname: rig1.local
  port: 5557
  sync_mode: external
  sync_channels: [1, 2, 3]
  sync_interval: 2s
spikes:
  enabled: true
`)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.OpenEphys.Endpoint() != "tcp://rig1.local:5557" {
		t.Errorf("Endpoint = %q", c.OpenEphys.Endpoint())
	}
	if c.OpenEphys.Interval() != 2*time.Second {
		t.Errorf("Interval = %v, ожидали 2s", c.OpenEphys.Interval())
	}
	if !c.Spikes.Enabled {
		t.Error("spikes.enabled потерян при загрузке")
	}
}

func TestInterval_Default(t *testing.T) {
	oe := OpenEphysConfig{SyncInterval: "мусор"}
	if oe.Interval() != time.Second {
		t.Errorf("Interval на мусоре = %v, ожидали 1s", oe.Interval())
	}
}
