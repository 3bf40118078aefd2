// Package zmqsub — приём событий Open Ephys GUI по ZeroMQ SUB сокету.
//
// Одно логическое сообщение — три фрейма: тег (1 байт), метка времени
// события в секундах (double little-endian, 8 байт), payload записи.
// Сокет читает отдельный поток-читатель, складывающий сообщения в канал:
// zmq4 не ограничивает время чтения сокета дедлайном, поэтому таймаут
// реализуется ожиданием на канале. Recv возвращает ErrTimeout, когда за
// отведённое время ничего не пришло — ожидаемое состояние, не ошибка:
// так цикл диспетчеризации остаётся отзывчивым для эмиссии sync-кода,
// watchdog'а и отмены даже при полностью молчащем потоке.
package zmqsub

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/go-zeromq/zmq4"
)

// ErrTimeout — за отведённое время не пришло ни одного сообщения.
// Ожидаемое, тихое состояние: вызывающий цикл просто продолжает.
var ErrTimeout = errors.New("zmqsub: recv timeout")

// Envelope — одно принятое сообщение потока событий.
type Envelope struct {
	Type      uint8
	Timestamp float64 // секунды по часам системы регистрации
	Payload   []byte
}

// Socket — SUB сокет потока событий Open Ephys.
// Владение: Connect/Close — только при остановленном цикле
// диспетчеризации, Recv — только из него. Close останавливает читателя
// и рвёт соединение; последующий Connect собирает сокет заново, так что
// цикл запуск → остановка → запуск поддерживается.
type Socket struct {
	endpoint string
	timeout  time.Duration
	tags     []uint8

	sub    zmq4.Socket
	cancel context.CancelFunc
	msgs   chan recvResult
}

type recvResult struct {
	env Envelope
	err error
}

// New создаёт сокет для endpoint ("tcp://host:port") с таймаутом приёма.
// Таймаут выбирают как половину периода эмиссии sync-кода — он же
// ограничивает задержку остановки моста.
func New(endpoint string, timeout time.Duration) *Socket {
	return &Socket{endpoint: endpoint, timeout: timeout}
}

// Subscribe добавляет подписку на события с данным тегом (префиксный
// фильтр ZeroMQ по первому фрейму). Подписки применяются при Connect.
func (s *Socket) Subscribe(tag uint8) error {
	s.tags = append(s.tags, tag)
	return nil
}

// Connect собирает SUB сокет, применяет подписки, подключается к
// Open Ephys GUI и запускает поток-читатель.
func (s *Socket) Connect() error {
	ctx, cancel := context.WithCancel(context.Background())
	sub := zmq4.NewSub(ctx)
	for _, tag := range s.tags {
		if err := sub.SetOption(zmq4.OptionSubscribe, string([]byte{tag})); err != nil {
			cancel()
			return fmt.Errorf("subscribe tag %d: %w", tag, err)
		}
	}
	if err := sub.Dial(s.endpoint); err != nil {
		cancel()
		_ = sub.Close()
		return fmt.Errorf("connect %s: %w", s.endpoint, err)
	}
	s.sub = sub
	s.cancel = cancel
	s.msgs = make(chan recvResult, 16)
	go readLoop(ctx, sub, s.msgs)
	return nil
}

// readLoop принимает сообщения из сокета и складывает их в out.
// Завершается по отмене контекста (Close).
func readLoop(ctx context.Context, sub zmq4.Socket, out chan<- recvResult) {
	defer close(out)
	for {
		msg, err := sub.Recv()
		if ctx.Err() != nil {
			return
		}
		var res recvResult
		if err != nil {
			res.err = fmt.Errorf("zmq recv: %w", err)
		} else {
			res.env, res.err = parseEnvelope(msg.Frames)
		}
		select {
		case out <- res:
		case <-ctx.Done():
			return
		}
	}
}

// Recv отдаёт одно принятое сообщение. Возвращает ErrTimeout, если
// данных нет; прочие ошибки транспорта и протокола отдаёт вызывающему
// (тот логирует и продолжает цикл — транспортные сбои здесь считаются
// преходящими).
func (s *Socket) Recv() (Envelope, error) {
	select {
	case res, ok := <-s.msgs:
		if !ok {
			return Envelope{}, errors.New("zmqsub: сокет закрыт")
		}
		return res.env, res.err
	case <-time.After(s.timeout):
		return Envelope{}, ErrTimeout
	}
}

// Close останавливает читателя и закрывает сокет. Вызывается только
// после полной остановки цикла диспетчеризации.
func (s *Socket) Close() error {
	if s.cancel == nil {
		return nil
	}
	s.cancel()
	s.cancel = nil
	err := s.sub.Close()
	s.sub = nil
	return err
}

// parseEnvelope разбирает фреймы сообщения: тег, метка времени, payload.
func parseEnvelope(frames [][]byte) (Envelope, error) {
	if len(frames) != 3 {
		return Envelope{}, fmt.Errorf("сообщение из %d фреймов вместо 3", len(frames))
	}
	if len(frames[0]) != 1 {
		return Envelope{}, fmt.Errorf("фрейм тега: %d байт вместо 1", len(frames[0]))
	}
	if len(frames[1]) != 8 {
		return Envelope{}, fmt.Errorf("фрейм метки времени: %d байт вместо 8", len(frames[1]))
	}
	return Envelope{
		Type:      frames[0][0],
		Timestamp: math.Float64frombits(binary.LittleEndian.Uint64(frames[1])),
		Payload:   frames[2],
	}, nil
}
