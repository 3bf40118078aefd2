//go:build linux

package clock

import "golang.org/x/sys/unix"

// nowMicros читает CLOCK_MONOTONIC через clock_gettime.
// Монотонные часы не подвержены скачкам системного времени (NTP step),
// поэтому offset, посчитанный по ним, не ломается при коррекции RTC.
func nowMicros() int64 {
	var ts unix.Timespec
	if err := unix.ClockGettime(unix.CLOCK_MONOTONIC, &ts); err != nil {
		return fallbackMicros()
	}
	return ts.Sec*1e6 + ts.Nsec/1e3
}
