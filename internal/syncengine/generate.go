package syncengine

import (
	"sync"
	"time"

	"github.com/shiwa/oe-bridge/internal/clock"
	"github.com/shiwa/oe-bridge/internal/logger"
	"github.com/shiwa/oe-bridge/internal/oeproto"
	"github.com/shiwa/oe-bridge/internal/sink"
)

// Generate — вариант, в котором мост сам ведёт sync-код.
//
// По расписанию (interval) берётся следующий код (lastSyncValue+1 по модулю
// 2^k), биты реверсируются по числу каналов и байт уходит в writer —
// на цифровые линии, заведённые на TTL входы системы регистрации.
// lastSyncTime фиксируется после завершения записи: раньше этого момента
// удалённая сторона код увидеть не могла.
//
// Эхо собирается по битам из TTL событий: событие канала с позицией i
// в списке выставляет/сбрасывает бит (k−1−i) аккумулятора — сборка
// зеркальна эмиссии, реверс битов инволютивен, поэтому полный код
// восстанавливается в исходном виде. Код считается принятым целиком,
// когда приходит событие последнего канала списка.
//
// Совпадение с lastSyncValue даёт offset = lastSyncTime − eventTS;
// несовпадение логируется и сбрасывает рукопожатие в ноль.
type Generate struct {
	channels   []uint8
	intervalUS int64
	writer     sink.SyncWriter

	// OnOffset, если задан, вызывается после каждого обновления поправки
	// (вне блокировки). Назначается до запуска моста.
	OnOffset func(offsetUS int64)

	now func() int64

	mu             sync.Mutex
	lastSyncValue  int
	lastSyncTimeUS int64
	emitted        bool // с момента сброса был отправлен хотя бы один код
	accum          int
	offsetUS       int64
	lastEvidenceUS int64
	nextEmitUS     int64 // 0 — первая эмиссия сразу
}

// NewGenerate создаёт generate-вариант. channels — валидированный список
// 0-базных индексов линий (см. config.ParseSyncChannels со strict-порядком),
// writer — устройство вывода кода.
func NewGenerate(channels []uint8, interval time.Duration, writer sink.SyncWriter) *Generate {
	return &Generate{
		channels:   channels,
		intervalUS: interval.Microseconds(),
		writer:     writer,
		now:        clock.Micros,
	}
}

// Tag — generate-вариант потребляет TTL события со словом линий.
func (g *Generate) Tag() uint8 { return oeproto.TagTTLWord }

// Tick отправляет очередной sync-код, если подошло время эмиссии.
// Блокировка не держится на время записи в устройство.
func (g *Generate) Tick() {
	nowUS := g.now()

	g.mu.Lock()
	if nowUS < g.nextEmitUS {
		g.mu.Unlock()
		return
	}
	g.nextEmitUS = nowUS + g.intervalUS
	next := (g.lastSyncValue + 1) % (1 << len(g.channels))
	wire := reverseBits(next, len(g.channels))
	g.mu.Unlock()

	if err := g.writer.WriteCode(wire); err != nil {
		logger.Error("запись sync-кода: %v", err)
		return
	}
	sentAt := g.now()

	g.mu.Lock()
	g.lastSyncValue = next
	g.lastSyncTimeUS = sentAt
	g.emitted = true
	g.mu.Unlock()
}

// HandleTTL обрабатывает одно TTL событие эха.
// События каналов вне сконфигурированного списка игнорируются.
func (g *Generate) HandleTTL(ev oeproto.TTL, eventTS float64) {
	k := len(g.channels)
	pos := -1
	for i, ch := range g.channels {
		if ev.EventChannel == ch {
			pos = i
			break
		}
	}
	if pos < 0 {
		return
	}
	nowUS := g.now()

	var cb func(int64)
	var off int64

	g.mu.Lock()
	mask := 1 << (k - 1 - pos)
	if ev.EventID != 0 {
		g.accum |= mask
	} else {
		g.accum &^= mask
	}
	if pos == k-1 {
		// Пришло событие последнего канала — код собран целиком
		g.lastEvidenceUS = nowUS
		switch {
		case !g.emitted:
			// код ещё не отправлялся (старт или после сброса) — сверять не с чем
		case g.accum == g.lastSyncValue:
			g.offsetUS = g.lastSyncTimeUS - clock.SecondsToMicros(eventTS)
			off, cb = g.offsetUS, g.OnOffset
		default:
			logger.Error("sync-коды не совпали: отправлен %d, получен %d — рукопожатие заново",
				g.lastSyncValue, g.accum)
			g.lastSyncValue = 0
			g.lastSyncTimeUS = 0
			g.accum = 0
			g.emitted = false
		}
	}
	g.mu.Unlock()

	if cb != nil {
		cb(off)
	}
}

// OffsetMicros возвращает текущую поправку (мкс).
func (g *Generate) OffsetMicros() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.offsetUS
}

// LastEvidenceMicros возвращает локальное время последнего полного эха.
func (g *Generate) LastEvidenceMicros() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.lastEvidenceUS
}
