package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Decode errors. Callers match them with errors.Is.
var (
	ErrTruncated           = errors.New("packet truncated")
	ErrUnknownSubtype      = errors.New("unknown packet subtype")
	ErrUnknownCommand      = errors.New("unknown command kind")
	ErrUnknownTransferMode = errors.New("unknown transfer mode")
)

// Encode serializes a packet into a newly allocated buffer in network order.
func Encode(pkt Packet) []byte {
	switch p := pkt.(type) {
	case *Data:
		buf := make([]byte, DataHeaderSize+len(p.Payload))
		buf[0] = byte(SubtypeData)
		buf[1] = byte(p.Mode)
		binary.BigEndian.PutUint32(buf[2:6], p.Length())
		binary.BigEndian.PutUint32(buf[6:10], uint32(p.Source))
		binary.BigEndian.PutUint32(buf[10:14], uint32(p.Dest))
		copy(buf[DataHeaderSize:], p.Payload)
		return buf

	case *Command:
		buf := make([]byte, CommandSize)
		buf[0] = byte(SubtypeCommand)
		buf[1] = byte(p.Mode)
		buf[2] = byte(p.Kind)
		binary.BigEndian.PutUint32(buf[3:7], uint32(p.Subject))
		return buf

	default:
		panic(fmt.Sprintf("protocol: cannot encode %T", pkt))
	}
}

// Decode deserializes a buffer into a *Data or *Command. The payload is
// copied, so the result never aliases data.
func Decode(data []byte) (Packet, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty buffer", ErrTruncated)
	}

	switch Subtype(data[0]) {
	case SubtypeData:
		return decodeData(data)
	case SubtypeCommand:
		return decodeCommand(data)
	default:
		return nil, fmt.Errorf("%w: 0x%02x", ErrUnknownSubtype, data[0])
	}
}

func decodeMode(b byte) (TransferMode, error) {
	mode := TransferMode(b)
	if !mode.Valid() {
		return 0, fmt.Errorf("%w: %d", ErrUnknownTransferMode, b)
	}
	return mode, nil
}

func decodeData(data []byte) (*Data, error) {
	if len(data) < DataHeaderSize {
		return nil, fmt.Errorf("%w: data header needs %d bytes, got %d", ErrTruncated, DataHeaderSize, len(data))
	}
	mode, err := decodeMode(data[1])
	if err != nil {
		return nil, err
	}

	// Compare in uint64 so a hostile length near 2^32 cannot wrap.
	length := binary.BigEndian.Uint32(data[2:6])
	available := len(data) - DataHeaderSize
	if uint64(length) > uint64(available) {
		return nil, fmt.Errorf("%w: declared length %d, %d bytes available", ErrTruncated, length, available)
	}

	d := &Data{
		Mode:    mode,
		Source:  int32(binary.BigEndian.Uint32(data[6:10])),
		Dest:    int32(binary.BigEndian.Uint32(data[10:14])),
		Payload: make([]byte, length),
	}
	copy(d.Payload, data[DataHeaderSize:DataHeaderSize+int(length)])
	return d, nil
}

func decodeCommand(data []byte) (*Command, error) {
	if len(data) < CommandSize {
		return nil, fmt.Errorf("%w: command needs %d bytes, got %d", ErrTruncated, CommandSize, len(data))
	}
	mode, err := decodeMode(data[1])
	if err != nil {
		return nil, err
	}

	kind := CommandKind(data[2])
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: 0x%02x", ErrUnknownCommand, data[2])
	}

	return &Command{
		Mode:    mode,
		Kind:    kind,
		Subject: int32(binary.BigEndian.Uint32(data[3:7])),
	}, nil
}
