// Package oeproto — бинарный формат событий Open Ephys GUI (ZeroMQ поток).
//
// Сообщение на проводе — три последовательных ZeroMQ фрейма:
//  1. тег типа события (1 байт)
//  2. метка времени события в секундах, IEEE-754 double little-endian (8 байт)
//  3. payload фиксированного размера, выбираемый по тегу
//
// Поля payload раскодируются явно по смещениям (little-endian), без
// наложения структур на сырую память — раскладка зафиксирована здесь,
// а не пакерами компилятора.
package oeproto

import (
	"encoding/binary"
	"fmt"
)

// Теги типов событий Open Ephys.
const (
	TagTTL     uint8 = 3 // одиночный переход TTL линии (3 байта)
	TagSpike   uint8 = 4 // spike detector (28 байт)
	TagTTLWord uint8 = 7 // TTL переход + полное слово линий (13 байт)
)

// Размеры payload по тегам.
const (
	TTLLineSize = 3
	SpikeSize   = 28
	TTLWordSize = 13
)

// Spike — одно обнаруженное событие спайка.
// Timestamp — тики часов системы регистрации; TimestampSoftware — информационное,
// дальше по конвейеру не используется. Source/NChannels/NSamples присутствуют
// на проводе, но наружу не отдаются.
type Spike struct {
	Timestamp         int64
	TimestampSoftware int64
	Source            uint16
	NChannels         uint16
	NSamples          uint16
	SortedID          uint16
	ElectrodeID       uint16
	Channel           uint16
}

// TTL — один переход цифровой линии.
// Для TagTTLWord заполнены все поля (Word — битовая маска всех 8 линий),
// для TagTTL — только NodeID, EventID (0/1 состояние линии) и EventChannel.
type TTL struct {
	NodeID       uint8
	EventID      uint8
	EventChannel uint8
	SavingFlag   uint8
	SourceNodeID uint8
	Word         uint64
}

// DecodeSpike раскодирует payload спайка (28 байт).
// Несовпадение длины — признак проблемы соединения или версии протокола,
// сообщение выбрасывается целиком.
func DecodeSpike(buf []byte) (Spike, error) {
	if len(buf) != SpikeSize {
		return Spike{}, fmt.Errorf("spike payload: %d байт вместо %d", len(buf), SpikeSize)
	}
	return Spike{
		Timestamp:         int64(binary.LittleEndian.Uint64(buf[0:8])),
		TimestampSoftware: int64(binary.LittleEndian.Uint64(buf[8:16])),
		Source:            binary.LittleEndian.Uint16(buf[16:18]),
		NChannels:         binary.LittleEndian.Uint16(buf[18:20]),
		NSamples:          binary.LittleEndian.Uint16(buf[20:22]),
		SortedID:          binary.LittleEndian.Uint16(buf[22:24]),
		ElectrodeID:       binary.LittleEndian.Uint16(buf[24:26]),
		Channel:           binary.LittleEndian.Uint16(buf[26:28]),
	}, nil
}

// DecodeTTLWord раскодирует payload TTL события со словом линий (13 байт).
func DecodeTTLWord(buf []byte) (TTL, error) {
	if len(buf) != TTLWordSize {
		return TTL{}, fmt.Errorf("ttl word payload: %d байт вместо %d", len(buf), TTLWordSize)
	}
	return TTL{
		NodeID:       buf[0],
		EventID:      buf[1],
		EventChannel: buf[2],
		SavingFlag:   buf[3],
		SourceNodeID: buf[4],
		Word:         binary.LittleEndian.Uint64(buf[5:13]),
	}, nil
}

// DecodeTTLLine раскодирует payload одиночного TTL события (3 байта).
func DecodeTTLLine(buf []byte) (TTL, error) {
	if len(buf) != TTLLineSize {
		return TTL{}, fmt.Errorf("ttl payload: %d байт вместо %d", len(buf), TTLLineSize)
	}
	return TTL{
		NodeID:       buf[0],
		EventID:      buf[1],
		EventChannel: buf[2],
	}, nil
}

// EncodeSpike собирает payload спайка (28 байт) — для тестов и oe-mock.
func EncodeSpike(s Spike) []byte {
	buf := make([]byte, 0, SpikeSize)
	buf = binary.LittleEndian.AppendUint64(buf, uint64(s.Timestamp))
	buf = binary.LittleEndian.AppendUint64(buf, uint64(s.TimestampSoftware))
	buf = binary.LittleEndian.AppendUint16(buf, s.Source)
	buf = binary.LittleEndian.AppendUint16(buf, s.NChannels)
	buf = binary.LittleEndian.AppendUint16(buf, s.NSamples)
	buf = binary.LittleEndian.AppendUint16(buf, s.SortedID)
	buf = binary.LittleEndian.AppendUint16(buf, s.ElectrodeID)
	buf = binary.LittleEndian.AppendUint16(buf, s.Channel)
	return buf
}

// EncodeTTLWord собирает payload TTL события со словом линий (13 байт).
func EncodeTTLWord(t TTL) []byte {
	buf := make([]byte, 0, TTLWordSize)
	buf = append(buf, t.NodeID, t.EventID, t.EventChannel, t.SavingFlag, t.SourceNodeID)
	buf = binary.LittleEndian.AppendUint64(buf, t.Word)
	return buf
}

// EncodeTTLLine собирает payload одиночного TTL события (3 байта).
func EncodeTTLLine(t TTL) []byte {
	return []byte{t.NodeID, t.EventID, t.EventChannel}
}
