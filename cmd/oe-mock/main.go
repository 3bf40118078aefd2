// oe-mock — синтетический издатель потока событий Open Ephys для
// стендовых прогонов oe-bridge без живой системы регистрации.
//
// Публикует спайки с заданной частотой и TTL события sync-линий.
// Без -echo код линий циклический: такой поток подходит мосту в режиме
// external (эталонные значения подаются на его stdin). Мосту в режиме
// generate нужно эхо его собственного кода: -echo указывает устройство
// (вторую сторону pty от sync_out.device моста), каждый прочитанный байт
// которого транслируется в состояния линий. Метки времени идут по часам
// издателя (секунды от старта плюс -skew) — на мосте это видно как
// ненулевой clock offset.
//
// Использование:
//
//	oe-mock -listen 'tcp://*:5556' -channels 1,2,3 -mode line
//	oe-mock -listen 'tcp://*:5556' -channels 1,2,3 -mode word -echo /dev/pts/7
package main

import (
	"context"
	"encoding/binary"
	"flag"
	"io"
	"log"
	"math"
	"math/rand"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-zeromq/zmq4"

	"github.com/shiwa/oe-bridge/internal/config"
	"github.com/shiwa/oe-bridge/internal/oeproto"
)

func main() {
	listen := flag.String("listen", "tcp://*:5556", "endpoint публикации")
	channelList := flag.String("channels", "1,2,3", "sync-каналы через запятую (1..8)")
	mode := flag.String("mode", "word", "формат TTL событий: word (тег 7) или line (тег 3)")
	spikeRate := flag.Int("spike-rate", 10, "спайков в секунду")
	syncInterval := flag.Duration("sync-interval", time.Second, "период смены циклического sync-кода")
	echoDev := flag.String("echo", "", "устройство эха sync-кода (байт = состояния линий); без него код циклический")
	skew := flag.Float64("skew", 0, "сдвиг часов издателя в секундах")
	flag.Parse()

	channels, err := parseChannels(*channelList)
	if err != nil {
		log.Fatalf("channels: %v", err)
	}
	if *mode != "word" && *mode != "line" {
		log.Fatalf("mode: %q (ожидается word или line)", *mode)
	}

	var echoCh <-chan byte
	if *echoDev != "" {
		f, err := os.OpenFile(*echoDev, os.O_RDWR, 0)
		if err != nil {
			log.Fatalf("echo: %v", err)
		}
		defer f.Close()
		echoCh = readBytes(f)
	}

	pub := zmq4.NewPub(context.Background())
	if err := pub.Listen(*listen); err != nil {
		log.Fatalf("listen %s: %v", *listen, err)
	}
	defer pub.Close()
	log.Printf("oe-mock: публикация на %s (каналы %v, режим %s)", *listen, *channelList, *mode)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	start := time.Now()
	now := func() float64 { return time.Since(start).Seconds() + *skew }

	spikeTick := time.NewTicker(time.Second / time.Duration(max(1, *spikeRate)))
	defer spikeTick.Stop()
	var syncC <-chan time.Time
	if echoCh == nil {
		syncTick := time.NewTicker(*syncInterval)
		defer syncTick.Stop()
		syncC = syncTick.C
	}

	code := 0
	var word uint64
	for {
		select {
		case <-sigCh:
			return
		case <-spikeTick.C:
			sp := oeproto.Spike{
				Timestamp:   int64(now() * 30_000), // тики при 30 kHz
				SortedID:    uint16(rand.Intn(4)),
				ElectrodeID: uint16(rand.Intn(16)),
				Channel:     uint16(rand.Intn(64)),
				NChannels:   4,
				NSamples:    30,
			}
			send(pub, oeproto.TagSpike, now(), oeproto.EncodeSpike(sp))
		case <-syncC:
			code = (code + 1) % (1 << len(channels))
			// Бит i циклического кода — линия channels[i]
			publishLines(pub, *mode, now(), lineEvents(channels, &word, func(i int, _ uint8) uint8 {
				return uint8((code >> i) & 1)
			}))
		case states, ok := <-echoCh:
			if !ok {
				echoCh = nil
				continue
			}
			// Байт с провода: бит с номером линии — её состояние
			publishLines(pub, *mode, now(), lineEvents(channels, &word, func(_ int, ch uint8) uint8 {
				return (states >> ch) & 1
			}))
		}
	}
}

// lineEvents строит по одному TTL событию на каждую сконфигурированную
// линию, в порядке списка. state задаёт уровень линии (по позиции в
// списке и номеру линии); word аккумулирует слово состояний между вызовами.
func lineEvents(channels []uint8, word *uint64, state func(i int, ch uint8) uint8) []oeproto.TTL {
	evs := make([]oeproto.TTL, 0, len(channels))
	for i, ch := range channels {
		st := state(i, ch)
		bit := uint64(1) << ch
		if st != 0 {
			*word |= bit
		} else {
			*word &^= bit
		}
		evs = append(evs, oeproto.TTL{NodeID: 1, EventID: st, EventChannel: ch, Word: *word})
	}
	return evs
}

func publishLines(pub zmq4.Socket, mode string, ts float64, evs []oeproto.TTL) {
	for _, ev := range evs {
		if mode == "word" {
			send(pub, oeproto.TagTTLWord, ts, oeproto.EncodeTTLWord(ev))
		} else {
			send(pub, oeproto.TagTTL, ts, oeproto.EncodeTTLLine(ev))
		}
	}
}

func send(pub zmq4.Socket, tag uint8, ts float64, payload []byte) {
	var tsFrame [8]byte
	binary.LittleEndian.PutUint64(tsFrame[:], math.Float64bits(ts))
	msg := zmq4.NewMsgFrom([]byte{tag}, tsFrame[:], payload)
	if err := pub.Send(msg); err != nil {
		log.Printf("oe-mock: send: %v", err)
	}
}

// readBytes читает устройство эха побайтово в канал; на ошибке чтения
// канал закрывается и эхо замолкает.
func readBytes(r io.Reader) <-chan byte {
	ch := make(chan byte)
	go func() {
		defer close(ch)
		buf := make([]byte, 1)
		for {
			n, err := r.Read(buf)
			if err != nil {
				log.Printf("oe-mock: чтение эха: %v", err)
				return
			}
			if n == 1 {
				ch <- buf[0]
			}
		}
	}()
	return ch
}

func parseChannels(s string) ([]uint8, error) {
	var nums []int
	for _, part := range strings.Split(s, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, err
		}
		nums = append(nums, n)
	}
	return config.ParseSyncChannels(nums, false)
}
