package sink

import (
	"fmt"
	"io"

	"github.com/tarm/serial"
)

// LineWriter пишет sync-код как один байт состояния цифровых линий:
// бит i байта — состояние линии i. Такой байт понимает блок цифровых
// выходов, заведённый на TTL входы системы регистрации.
type LineWriter struct {
	w io.Writer
}

// NewLineWriter создаёт LineWriter поверх произвольного io.Writer.
func NewLineWriter(w io.Writer) *LineWriter {
	return &LineWriter{w: w}
}

// WriteCode пишет младший байт кода в устройство.
func (l *LineWriter) WriteCode(code int) error {
	_, err := l.w.Write([]byte{byte(code & 0xff)})
	return err
}

// SerialLineWriter — LineWriter поверх последовательного порта.
type SerialLineWriter struct {
	LineWriter
	port *serial.Port
}

// OpenSerial открывает последовательный порт блока цифровых выходов.
func OpenSerial(device string, baud int) (*SerialLineWriter, error) {
	if baud == 0 {
		baud = 115200
	}
	c := &serial.Config{Name: device, Baud: baud}
	port, err := serial.OpenPort(c)
	if err != nil {
		return nil, fmt.Errorf("sync out open %s: %w", device, err)
	}
	return &SerialLineWriter{
		LineWriter: LineWriter{w: port},
		port:       port,
	}, nil
}

// Close закрывает порт.
func (s *SerialLineWriter) Close() error {
	if s.port == nil {
		return nil
	}
	return s.port.Close()
}
