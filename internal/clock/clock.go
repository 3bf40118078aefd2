// Package clock — локальные часы моста в микросекундах.
//
// Все времена внутри oe-bridge (lastSyncTime, offset, watchdog) считаются
// по одним и тем же локальным часам: монотонный отсчёт в микросекундах.
// Временные метки Open Ephys приходят в секундах (double) и переводятся
// через SecondsToMicros.
package clock

// SecondsToMicros переводит метку времени из секунд (double на проводе)
// в микросекунды локального представления.
func SecondsToMicros(seconds float64) int64 {
	return int64(seconds * 1e6)
}

// Micros возвращает локальное время в микросекундах (монотонный отсчёт).
// На Linux — CLOCK_MONOTONIC через clock_gettime, на остальных платформах —
// time.Since от старта процесса.
func Micros() int64 {
	return nowMicros()
}
