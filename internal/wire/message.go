// Package wire defines the fixed binary record exchanged between the
// fault handler and the device-model process, matching spec.md §3/§6
// exactly: six little-endian 32-bit fields (the native order on the
// x86-64 hosts this package targets), 24 bytes total.
package wire

import (
	"encoding/binary"
	"errors"
)

// Command identifies the transaction kind.
type Command uint32

const (
	CmdRead  Command = 1
	CmdWrite Command = 2
)

func (c Command) String() string {
	switch c {
	case CmdRead:
		return "READ"
	case CmdWrite:
		return "WRITE"
	default:
		return "UNKNOWN"
	}
}

// Message is the Request/Response record from spec.md §3. The same layout
// is used for both directions: Result is always zero on a request and
// carries the model's status on a response.
type Message struct {
	DeviceID uint32
	Command  Command
	Address  uint32
	Data     uint32
	Length   uint32
	Result   int32
}

// Size is the wire length of a Message: six 32-bit fields.
const Size = 24

// ErrShortBuffer is returned by Unmarshal when given fewer than Size bytes.
var ErrShortBuffer = errors.New("wire: buffer shorter than message size")

// Marshal encodes m into a freshly allocated Size-byte buffer in
// little-endian byte order, mirroring the C struct layout the model
// process expects on an x86-64 host.
func Marshal(m Message) []byte {
	buf := make([]byte, Size)
	PutMessage(buf, m)
	return buf
}

// PutMessage encodes m into buf, which must be at least Size bytes.
func PutMessage(buf []byte, m Message) {
	binary.LittleEndian.PutUint32(buf[0:4], m.DeviceID)
	binary.LittleEndian.PutUint32(buf[4:8], uint32(m.Command))
	binary.LittleEndian.PutUint32(buf[8:12], m.Address)
	binary.LittleEndian.PutUint32(buf[12:16], m.Data)
	binary.LittleEndian.PutUint32(buf[16:20], m.Length)
	binary.LittleEndian.PutUint32(buf[20:24], uint32(m.Result))
}

// Unmarshal decodes a Message from buf.
func Unmarshal(buf []byte) (Message, error) {
	if len(buf) < Size {
		return Message{}, ErrShortBuffer
	}
	return Message{
		DeviceID: binary.LittleEndian.Uint32(buf[0:4]),
		Command:  Command(binary.LittleEndian.Uint32(buf[4:8])),
		Address:  binary.LittleEndian.Uint32(buf[8:12]),
		Data:     binary.LittleEndian.Uint32(buf[12:16]),
		Length:   binary.LittleEndian.Uint32(buf[16:20]),
		Result:   int32(binary.LittleEndian.Uint32(buf[20:24])),
	}, nil
}
