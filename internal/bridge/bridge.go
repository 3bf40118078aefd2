// Package bridge — цикл диспетчеризации событий Open Ephys.
//
// Один долгоживущий поток принимает события с SUB сокета, раскодирует их
// и раздаёт: спайки — в приёмник спайков с поправкой часов, TTL — в
// sync-движок. Никакая одиночная ошибка приёма или разбора цикл не
// останавливает; завершение — только по Stop.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shiwa/oe-bridge/internal/clock"
	"github.com/shiwa/oe-bridge/internal/logger"
	"github.com/shiwa/oe-bridge/internal/oeproto"
	"github.com/shiwa/oe-bridge/internal/sink"
	"github.com/shiwa/oe-bridge/internal/syncengine"
	"github.com/shiwa/oe-bridge/internal/zmqsub"
)

// Окно watchdog'а: сколько тишины без sync-свидетельств терпим до
// диагностического сообщения.
const watchdogWindow = 5 * time.Second

// Receiver — источник событий для цикла (обычно *zmqsub.Socket).
// Recv возвращает zmqsub.ErrTimeout, когда данных нет.
type Receiver interface {
	Connect() error
	Recv() (zmqsub.Envelope, error)
	Close() error
}

// Bridge связывает приёмник, sync-движок и приёмник спайков.
// Start/Stop сериализуются собственной блокировкой, отдельной от
// блокировки состояния движка: подключение и закрытие сокета происходят
// только при остановленном цикле.
type Bridge struct {
	recv   Receiver
	engine syncengine.Engine
	spikes sink.SpikeSink // nil — спайки раскодируются и отбрасываются

	now func() int64

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// New создаёт мост. spikes может быть nil — тогда spike-события
// раскодируются, но наружу не публикуются.
func New(recv Receiver, engine syncengine.Engine, spikes sink.SpikeSink) *Bridge {
	return &Bridge{
		recv:   recv,
		engine: engine,
		spikes: spikes,
		now:    clock.Micros,
	}
}

// Start подключает сокет и запускает поток диспетчеризации.
// Повторный Start на работающем мосте — no-op.
func (b *Bridge) Start() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.running {
		return nil
	}
	if err := b.recv.Connect(); err != nil {
		return fmt.Errorf("bridge start: %w", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	b.cancel = cancel
	b.done = make(chan struct{})
	b.running = true
	go b.run(ctx)
	return nil
}

// Stop запрашивает остановку цикла, дожидается его полного выхода и
// только после этого закрывает сокет — приём в полёте не гоняется с
// закрытием транспорта. Задержка остановки ограничена таймаутом приёма.
func (b *Bridge) Stop() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.running {
		return nil
	}
	b.cancel()
	<-b.done
	b.running = false
	if err := b.recv.Close(); err != nil {
		return fmt.Errorf("bridge stop: %w", err)
	}
	return nil
}

// run — цикл диспетчеризации: эмиссия sync-кода по расписанию, проверка
// watchdog'а, один приём, раздача, точка отмены.
func (b *Bridge) run(ctx context.Context) {
	defer close(b.done)

	w := newWatchdog(b.now(), watchdogWindow.Microseconds())

	for {
		b.engine.Tick()

		w.observe(b.engine.LastEvidenceMicros())
		if silentUS, fired := w.check(b.now()); fired {
			logger.Error("нет clock sync от Open Ephys уже %.0f с", float64(silentUS)/1e6)
		}

		env, err := b.recv.Recv()
		switch {
		case err == nil:
			b.dispatch(env)
		case errors.Is(err, zmqsub.ErrTimeout):
			// данных нет — ожидаемо, продолжаем
		default:
			logger.Error("приём: %v", err)
		}

		select {
		case <-ctx.Done():
			return
		default:
		}
	}
}

// dispatch раздаёт одно принятое сообщение по тегу.
func (b *Bridge) dispatch(env zmqsub.Envelope) {
	switch env.Type {
	case oeproto.TagSpike:
		sp, err := oeproto.DecodeSpike(env.Payload)
		if err != nil {
			logger.Error("spike: %v", err)
			return
		}
		if b.spikes == nil {
			return
		}
		b.spikes.Publish(sink.SpikeInfo{
			LocalTimeMicros: clock.SecondsToMicros(env.Timestamp) + b.engine.OffsetMicros(),
			OETimestamp:     sp.Timestamp,
			SortedID:        sp.SortedID,
			ElectrodeID:     sp.ElectrodeID,
			Channel:         sp.Channel,
		})
	case b.engine.Tag():
		var ev oeproto.TTL
		var err error
		if env.Type == oeproto.TagTTLWord {
			ev, err = oeproto.DecodeTTLWord(env.Payload)
		} else {
			ev, err = oeproto.DecodeTTLLine(env.Payload)
		}
		if err != nil {
			logger.Error("ttl: %v", err)
			return
		}
		b.engine.HandleTTL(ev, env.Timestamp)
	default:
		logger.Error("событие с неожиданным типом (%d)", env.Type)
	}
}
