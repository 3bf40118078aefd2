package sink

import (
	"bytes"
	"testing"
)

func TestLineWriter_WriteCode(t *testing.T) {
	var buf bytes.Buffer
	w := NewLineWriter(&buf)
	if err := w.WriteCode(0b101); err != nil {
		t.Fatalf("WriteCode: %v", err)
	}
	if err := w.WriteCode(0x1ff); err != nil { // старшие биты выше байта отбрасываются
		t.Fatalf("WriteCode: %v", err)
	}
	got := buf.Bytes()
	if len(got) != 2 || got[0] != 0b101 || got[1] != 0xff {
		t.Errorf("записано %v, ожидали [5 255]", got)
	}
}

func TestSpikeFunc(t *testing.T) {
	var got SpikeInfo
	s := SpikeFunc(func(info SpikeInfo) { got = info })
	s.Publish(SpikeInfo{LocalTimeMicros: 10, SortedID: 2})
	if got.LocalTimeMicros != 10 || got.SortedID != 2 {
		t.Errorf("SpikeFunc не передал значение: %+v", got)
	}
}
