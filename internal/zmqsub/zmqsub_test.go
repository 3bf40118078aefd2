package zmqsub

import (
	"context"
	"encoding/binary"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/go-zeromq/zmq4"
)

func tsFrame(seconds float64) []byte {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], math.Float64bits(seconds))
	return buf[:]
}

func TestParseEnvelope(t *testing.T) {
	payload := []byte{1, 2, 3}
	env, err := parseEnvelope([][]byte{{4}, tsFrame(1.5), payload})
	if err != nil {
		t.Fatalf("parseEnvelope: %v", err)
	}
	if env.Type != 4 {
		t.Errorf("Type = %d, ожидали 4", env.Type)
	}
	if env.Timestamp != 1.5 {
		t.Errorf("Timestamp = %v, ожидали 1.5", env.Timestamp)
	}
	if len(env.Payload) != 3 || env.Payload[0] != 1 {
		t.Errorf("Payload = %v", env.Payload)
	}
}

func TestParseEnvelope_Malformed(t *testing.T) {
	tests := []struct {
		name   string
		frames [][]byte
	}{
		{"два фрейма", [][]byte{{4}, tsFrame(0)}},
		{"четыре фрейма", [][]byte{{4}, tsFrame(0), {}, {}}},
		{"тег из двух байт", [][]byte{{4, 4}, tsFrame(0), {}}},
		{"короткая метка времени", [][]byte{{4}, {1, 2, 3}, {}}},
	}
	for _, tt := range tests {
		if _, err := parseEnvelope(tt.frames); err == nil {
			t.Errorf("%s: ожидали ошибку", tt.name)
		}
	}
}

// startPub поднимает PUB на свободном порту loopback.
func startPub(t *testing.T) (zmq4.Socket, string) {
	t.Helper()
	pub := zmq4.NewPub(context.Background())
	if err := pub.Listen("tcp://127.0.0.1:0"); err != nil {
		t.Fatalf("pub listen: %v", err)
	}
	t.Cleanup(func() { pub.Close() })
	return pub, "tcp://" + pub.Addr().String()
}

// mustRoundTrip шлёт сообщение до тех пор, пока подписчик его не примет:
// подписка SUB доезжает до издателя не мгновенно.
func mustRoundTrip(t *testing.T, pub zmq4.Socket, s *Socket) {
	t.Helper()
	msg := zmq4.NewMsgFrom([]byte{4}, tsFrame(1.5), []byte{1, 2, 3})
	deadline := time.Now().Add(5 * time.Second)
	for {
		if err := pub.Send(msg); err != nil {
			t.Fatalf("pub send: %v", err)
		}
		env, err := s.Recv()
		if err == nil {
			if env.Type != 4 || env.Timestamp != 1.5 || len(env.Payload) != 3 {
				t.Fatalf("принятое сообщение искажено: %+v", env)
			}
			return
		}
		if !errors.Is(err, ErrTimeout) {
			t.Fatalf("Recv: %v", err)
		}
		if time.Now().After(deadline) {
			t.Fatal("сообщение не дошло до подписчика за 5с")
		}
	}
}

func TestRecv_TimeoutOnSilence(t *testing.T) {
	_, endpoint := startPub(t)
	s := New(endpoint, 100*time.Millisecond)
	if err := s.Subscribe(4); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	if err := s.Connect(); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer s.Close()

	// Издатель молчит: Recv обязан вернуть ErrTimeout за время порядка
	// таймаута, а не блокироваться до прихода сообщения
	start := time.Now()
	_, err := s.Recv()
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("Recv без трафика: %v, ожидали ErrTimeout", err)
	}
	if elapsed := time.Since(start); elapsed > 300*time.Millisecond {
		t.Errorf("Recv вернулся через %v при таймауте 100мс", elapsed)
	}
}

func TestRecv_RoundTrip(t *testing.T) {
	pub, endpoint := startPub(t)
	s := New(endpoint, 100*time.Millisecond)
	if err := s.Subscribe(4); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	if err := s.Connect(); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer s.Close()

	mustRoundTrip(t, pub, s)
}

func TestSocket_Reconnect(t *testing.T) {
	pub, endpoint := startPub(t)
	s := New(endpoint, 100*time.Millisecond)
	if err := s.Subscribe(4); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	if err := s.Connect(); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// Повторный Connect собирает сокет заново, приём снова работает
	if err := s.Connect(); err != nil {
		t.Fatalf("повторный Connect: %v", err)
	}
	defer s.Close()
	mustRoundTrip(t, pub, s)
}
