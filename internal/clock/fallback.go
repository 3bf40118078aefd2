package clock

import "time"

var processStart = time.Now()

// fallbackMicros — монотонный отсчёт от старта процесса (time.Since
// использует монотонную компоненту time.Time).
func fallbackMicros() int64 {
	return time.Since(processStart).Microseconds()
}
