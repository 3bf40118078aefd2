// Package syncengine — оценка смещения часов Open Ephys относительно локальных.
//
// Система регистрации периодически видит на своих TTL входах многобитный
// sync-код. Сверка принятого кода с последним известным отправленным даёт
// пару (локальное время отправки, время приёма по часам регистрации), из
// которой считается аддитивная поправка offset = local − acquisition (мкс).
// Offset обновляется только при точном совпадении кодов — несовпадение
// никогда не трогает поправку молча.
//
// Два варианта протокола за общим интерфейсом:
//   - Generate: мост сам генерирует код по расписанию и собирает эхо
//     по битам из TTL событий (тег TagTTLWord);
//   - External: эталон приходит уведомлением извне, мост восстанавливает
//     код из состояний линий (тег TagTTL).
package syncengine

import "github.com/shiwa/oe-bridge/internal/oeproto"

// Engine — общий интерфейс двух вариантов оценки offset.
// HandleTTL вызывается только из потока диспетчеризации; Tick — из него же.
// OffsetMicros/LastEvidenceMicros безопасны из любого потока.
type Engine interface {
	// Tag возвращает тег TTL событий, которые потребляет вариант.
	Tag() uint8
	// Tick выполняет работу по расписанию (эмиссия очередного кода).
	Tick()
	// HandleTTL обрабатывает одно TTL событие; eventTS — метка времени
	// события в секундах по часам системы регистрации.
	HandleTTL(ev oeproto.TTL, eventTS float64)
	// OffsetMicros возвращает текущую поправку local − acquisition, мкс.
	OffsetMicros() int64
	// LastEvidenceMicros возвращает локальное время последнего полного
	// sync-свидетельства (0 — свидетельств ещё не было).
	LastEvidenceMicros() int64
}

// reverseBits переставляет k младших битов v в обратном порядке.
// Инволюция: reverseBits(reverseBits(v, k), k) == v.
func reverseBits(v, k int) int {
	out := 0
	for i := 0; i < k; i++ {
		if v&(1<<i) != 0 {
			out |= 1 << (k - 1 - i)
		}
	}
	return out
}
