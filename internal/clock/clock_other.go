//go:build !linux

package clock

// nowMicros — на не-Linux используется time.Since от старта процесса.
func nowMicros() int64 {
	return fallbackMicros()
}
