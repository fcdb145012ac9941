package speech

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// 火山引擎语音 WebSocket 二进制协议：4 字节头 + 可选序号/事件 + 4 字节长度 + payload。
const protocolVersion uint8 = 0b0001

type MessageType uint8

const (
	FullClientRequest       MessageType = 0b0001
	AudioOnlyRequest        MessageType = 0b0010
	FullServerResponse      MessageType = 0b1001
	AudioOnlyServerResponse MessageType = 0b1011
	ErrorMessage            MessageType = 0b1111
)

type MessageFlags uint8

const (
	NoSequenceNumber       MessageFlags = 0b0000
	PositiveSequenceNumber MessageFlags = 0b0001
	LastPacketNoSequence   MessageFlags = 0b0010
	NegativeSequenceNumber MessageFlags = 0b0011
	WithEvent              MessageFlags = 0b0100

	sequenceMask MessageFlags = 0b0011
)

type EventType int32

const (
	EventTypeNone               EventType = 0
	EventTypeStartConnection    EventType = 1
	EventTypeFinishConnection   EventType = 2
	EventTypeConnectionStarted  EventType = 50
	EventTypeConnectionFailed   EventType = 51
	EventTypeConnectionFinished EventType = 52
	EventTypeSessionStarted     EventType = 150
	EventTypeSessionFinished    EventType = 152
	EventTypeSessionFailed      EventType = 153
)

type SerializationMethod uint8

const (
	NoSerialization   SerializationMethod = 0b0000
	JSONSerialization SerializationMethod = 0b0001
)

type CompressionMethod uint8

const (
	NoCompression   CompressionMethod = 0b0000
	GzipCompression CompressionMethod = 0b0001
)

// Header 消息头，每个字段占 4 bit（Reserved 占 8 bit）
type Header struct {
	Version       uint8
	Size          uint8 // 以 4 字节为单位
	Type          MessageType
	Flags         MessageFlags
	Serialization SerializationMethod
	Compression   CompressionMethod
	Reserved      uint8
}

// Message 一帧协议消息
type Message struct {
	Header    Header
	Sequence  int32
	Event     EventType
	SessionID string
	ConnectID string
	ErrorCode uint32
	Payload   []byte
}

func newHeader(t MessageType, flags MessageFlags, ser SerializationMethod, comp CompressionMethod) Header {
	return Header{Version: protocolVersion, Size: 1, Type: t, Flags: flags, Serialization: ser, Compression: comp}
}

func (h Header) bytes() []byte {
	return []byte{
		h.Version<<4 | h.Size,
		uint8(h.Type)<<4 | uint8(h.Flags),
		uint8(h.Serialization)<<4 | uint8(h.Compression),
		h.Reserved,
	}
}

func parseHeader(b []byte) (Header, error) {
	if len(b) < 4 {
		return Header{}, fmt.Errorf("header too short: %d bytes", len(b))
	}
	h := Header{
		Version:       b[0] >> 4,
		Size:          b[0] & 0x0F,
		Type:          MessageType(b[1] >> 4),
		Flags:         MessageFlags(b[1] & 0x0F),
		Serialization: SerializationMethod(b[2] >> 4),
		Compression:   CompressionMethod(b[2] & 0x0F),
		Reserved:      b[3],
	}
	if h.Version != protocolVersion {
		return Header{}, fmt.Errorf("unsupported protocol version: %d", h.Version)
	}
	return h, nil
}

func (m *Message) hasSequence() bool {
	f := m.Header.Flags & sequenceMask
	return f == PositiveSequenceNumber || f == NegativeSequenceNumber
}

func (m *Message) hasEvent() bool {
	return m.Header.Flags&WithEvent == WithEvent
}

// IsLastPacket 是否为最后一包
func (m *Message) IsLastPacket() bool {
	f := m.Header.Flags & sequenceMask
	return f == LastPacketNoSequence || f == NegativeSequenceNumber
}

// Encode 序列化消息
func (m *Message) Encode() []byte {
	var buf bytes.Buffer
	buf.Write(m.Header.bytes())

	if m.hasSequence() {
		writeUint32(&buf, uint32(m.Sequence))
	}
	if m.hasEvent() {
		writeUint32(&buf, uint32(m.Event))
		if carriesSessionID(m.Event) {
			writeString(&buf, m.SessionID)
		}
		if carriesConnectID(m.Event) {
			writeString(&buf, m.ConnectID)
		}
	}
	if m.Header.Type == ErrorMessage {
		writeUint32(&buf, m.ErrorCode)
	}
	writeUint32(&buf, uint32(len(m.Payload)))
	buf.Write(m.Payload)
	return buf.Bytes()
}

// DecodeMessage 解析一帧服务端消息
func DecodeMessage(data []byte) (*Message, error) {
	r := bytes.NewReader(data)

	head := make([]byte, 4)
	if _, err := io.ReadFull(r, head); err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	h, err := parseHeader(head)
	if err != nil {
		return nil, err
	}
	if extra := int(h.Size)*4 - 4; extra > 0 {
		if _, err := r.Seek(int64(extra), io.SeekCurrent); err != nil {
			return nil, fmt.Errorf("skip extended header: %w", err)
		}
	}

	m := &Message{Header: h}
	if m.hasSequence() {
		v, err := readUint32(r)
		if err != nil {
			return nil, fmt.Errorf("read sequence: %w", err)
		}
		m.Sequence = int32(v)
	}
	if m.hasEvent() {
		v, err := readUint32(r)
		if err != nil {
			return nil, fmt.Errorf("read event: %w", err)
		}
		m.Event = EventType(int32(v))
		if carriesSessionID(m.Event) {
			if m.SessionID, err = readString(r); err != nil {
				return nil, fmt.Errorf("read session id: %w", err)
			}
		}
		if carriesConnectID(m.Event) {
			if m.ConnectID, err = readString(r); err != nil {
				return nil, fmt.Errorf("read connect id: %w", err)
			}
		}
	}
	if h.Type == ErrorMessage {
		if m.ErrorCode, err = readUint32(r); err != nil {
			return nil, fmt.Errorf("read error code: %w", err)
		}
	}

	size, err := readUint32(r)
	if err != nil {
		return nil, fmt.Errorf("read payload size: %w", err)
	}
	if size > 0 {
		m.Payload = make([]byte, size)
		if _, err := io.ReadFull(r, m.Payload); err != nil {
			return nil, fmt.Errorf("read payload (%d bytes): %w", size, err)
		}
	}
	return m, nil
}

// fullClientRequest JSON 请求帧
func fullClientRequest(payload []byte, comp CompressionMethod) *Message {
	return &Message{
		Header:  newHeader(FullClientRequest, NoSequenceNumber, JSONSerialization, comp),
		Payload: payload,
	}
}

// audioOnlyRequest 音频帧；最后一包使用负序号
func audioOnlyRequest(audio []byte, seq int32, last bool, comp CompressionMethod) *Message {
	flags := PositiveSequenceNumber
	switch {
	case last && seq != 0:
		flags = NegativeSequenceNumber
		seq = -seq
	case last:
		flags = LastPacketNoSequence
	case seq <= 0:
		flags = NoSequenceNumber
	}
	return &Message{
		Header:   newHeader(AudioOnlyRequest, flags, NoSerialization, comp),
		Sequence: seq,
		Payload:  audio,
	}
}

func carriesSessionID(e EventType) bool {
	switch e {
	case EventTypeStartConnection, EventTypeFinishConnection,
		EventTypeConnectionStarted, EventTypeConnectionFailed, EventTypeConnectionFinished:
		return false
	}
	return true
}

func carriesConnectID(e EventType) bool {
	switch e {
	case EventTypeConnectionStarted, EventTypeConnectionFailed, EventTypeConnectionFinished:
		return true
	}
	return false
}

func writeUint32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}

func writeString(buf *bytes.Buffer, s string) {
	writeUint32(buf, uint32(len(s)))
	buf.WriteString(s)
}

func readUint32(r io.Reader) (uint32, error) {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b[:]), nil
}

func readString(r io.Reader) (string, error) {
	n, err := readUint32(r)
	if err != nil || n == 0 {
		return "", err
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", err
	}
	return string(b), nil
}
