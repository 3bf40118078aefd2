package syncengine

import (
	"sync"

	"github.com/shiwa/oe-bridge/internal/clock"
	"github.com/shiwa/oe-bridge/internal/logger"
	"github.com/shiwa/oe-bridge/internal/oeproto"
)

// External — вариант, в котором эталонный sync-код ведёт внешняя сторона.
//
// NotifySync доставляет пары (значение, локальное время) при каждой смене
// наблюдаемого выхода; они записываются под блокировкой без проверки.
// TTL события обновляют слово состояний линий, по которому на каждом
// событии восстанавливается принятый код: бит i — состояние линии
// channels[i] (порядок списка, без реверса). Повторное событие с тем же
// восстановленным кодом — дубль, свидетельством не считается.
//
// Совпадение нового кода с эталоном даёт offset = lastSyncTime − eventTS;
// несовпадение логируется и поправку не трогает — внешний эталон догонит
// сам, сброс не нужен.
type External struct {
	channels []uint8

	// OnOffset, если задан, вызывается после каждого обновления поправки
	// (вне блокировки). Назначается до запуска моста.
	OnOffset func(offsetUS int64)

	now func() int64

	mu             sync.Mutex
	lineWord       uint64
	lastReceived   int
	lastSyncValue  int
	lastSyncTimeUS int64
	offsetUS       int64
	lastEvidenceUS int64
}

// NewExternal создаёт external-вариант. channels — валидированный список
// 0-базных индексов линий (порядок списка задаёт порядок битов кода).
func NewExternal(channels []uint8) *External {
	return &External{
		channels:      channels,
		now:           clock.Micros,
		lastReceived:  -1,
		lastSyncValue: -1, // ни одно восстановленное значение не совпадёт до первого уведомления
	}
}

// Tag — external-вариант потребляет одиночные TTL события.
func (e *External) Tag() uint8 { return oeproto.TagTTL }

// Tick — в external-варианте расписания нет.
func (e *External) Tick() {}

// NotifySync записывает эталонное значение кода и локальное время, с
// которого оно действует. Может вызываться из произвольного потока;
// после остановки моста вызов безопасен и просто обновляет состояние.
func (e *External) NotifySync(value int, timeUS int64) {
	e.mu.Lock()
	e.lastSyncValue = value
	e.lastSyncTimeUS = timeUS
	e.mu.Unlock()
}

// HandleTTL обрабатывает один переход линии.
func (e *External) HandleTTL(ev oeproto.TTL, eventTS float64) {
	nowUS := e.now()

	var cb func(int64)
	var off int64

	e.mu.Lock()
	bit := uint64(1) << ev.EventChannel
	if ev.EventID != 0 {
		e.lineWord |= bit
	} else {
		e.lineWord &^= bit
	}
	received := 0
	for i, ch := range e.channels {
		received |= int((e.lineWord>>ch)&1) << i
	}
	if received != e.lastReceived {
		e.lastReceived = received
		e.lastEvidenceUS = nowUS
		if received == e.lastSyncValue {
			e.offsetUS = e.lastSyncTimeUS - clock.SecondsToMicros(eventTS)
			off, cb = e.offsetUS, e.OnOffset
		} else {
			logger.Error("sync-коды не совпали: отправлен %d, получен %d",
				e.lastSyncValue, received)
		}
	}
	e.mu.Unlock()

	if cb != nil {
		cb(off)
	}
}

// OffsetMicros возвращает текущую поправку (мкс).
func (e *External) OffsetMicros() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.offsetUS
}

// LastEvidenceMicros возвращает локальное время последнего нового кода.
func (e *External) LastEvidenceMicros() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastEvidenceUS
}
