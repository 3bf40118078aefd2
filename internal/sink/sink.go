// Package sink — выходы моста: приёмник спайков и запись sync-кода.
package sink

import "github.com/shiwa/oe-bridge/internal/logger"

// SpikeInfo — публикуемое значение по одному спайку: метка локальных часов
// (уже с поправкой offset) и четыре поля из записи spike detector'а.
type SpikeInfo struct {
	LocalTimeMicros int64
	OETimestamp     int64
	SortedID        uint16
	ElectrodeID     uint16
	Channel         uint16
}

// SpikeSink принимает раскодированные спайки. Publish вызывается строго
// последовательно из потока диспетчеризации.
type SpikeSink interface {
	Publish(SpikeInfo)
}

// SpikeFunc — адаптер функции к SpikeSink.
type SpikeFunc func(SpikeInfo)

// Publish вызывает f.
func (f SpikeFunc) Publish(info SpikeInfo) { f(info) }

// SyncWriter пишет очередной sync-код в выходное устройство
// (цифровые линии, которые система регистрации вернёт эхом).
type SyncWriter interface {
	WriteCode(code int) error
}

// SyncFunc — адаптер функции к SyncWriter.
type SyncFunc func(code int) error

// WriteCode вызывает f.
func (f SyncFunc) WriteCode(code int) error { return f(code) }

// LogSpikes возвращает SpikeSink, печатающий спайки через logger
// (выход по умолчанию для daemon).
func LogSpikes() SpikeSink {
	return SpikeFunc(func(info SpikeInfo) {
		logger.Info("spike: t=%dus oe_timestamp=%d sorted_id=%d electrode_id=%d channel=%d",
			info.LocalTimeMicros, info.OETimestamp, info.SortedID, info.ElectrodeID, info.Channel)
	})
}
