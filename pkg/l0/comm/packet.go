package comm

import (
	"bytes"
	"fmt"
	"io"
	"math"
)

// PacketType is the first byte of a frame payload.
type PacketType byte

// Packet types.
const (
	TypeConnect PacketType = iota
	TypeConsole
	TypeUSBOverrideStart
	TypeUSBOverrideEnd
	TypeSetDutyCycle
	TypeSetCurrent
	TypeGetData
)

var packetTypeNames = []string{
	"connect",
	"console",
	"usb-override-start",
	"usb-override-end",
	"set-duty-cycle",
	"set-current",
	"get-data",
}

func (t PacketType) String() string {
	if int(t) < len(packetTypeNames) {
		return packetTypeNames[t]
	}
	return fmt.Sprintf("unknown(%d)", byte(t))
}

// Scales of fixed point set-points.
const (
	DutyScale    = 10000
	CurrentScale = 1000
)

// Packet contains the information of a parsed packet.
type Packet struct {
	Type PacketType
	Body []byte
}

// DecodePacket splits a frame payload into type and body.
// Body shares memory with payload.
func DecodePacket(payload []byte) (*Packet, bool) {
	if len(payload) == 0 {
		return nil, false
	}
	return &Packet{Type: PacketType(payload[0]), Body: payload[1:]}, true
}

// Payload returns the frame payload without framing bytes.
func (p *Packet) Payload() []byte {
	b := make([]byte, len(p.Body)+1)
	b[0] = byte(p.Type)
	copy(b[1:], p.Body)
	return b
}

// Validate checks the packet survives framing intact.
func (p *Packet) Validate() error {
	if len(p.Body)+1 > MaxPayloadLen {
		return ErrPayloadTooLarge
	}
	if byte(p.Type) == FrameTerminator || bytes.IndexByte(p.Body, FrameTerminator) >= 0 {
		return ErrTerminatorInPayload
	}
	return nil
}

// Bytes returns encoded bytes for sending, including both markers.
func (p *Packet) Bytes() []byte {
	b := make([]byte, len(p.Body)+3)
	b[0], b[1] = FrameStart, byte(p.Type)
	copy(b[2:], p.Body)
	b[len(b)-1] = FrameTerminator
	return b
}

// WriteTo writes encoded bytes.
func (p *Packet) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(p.Bytes())
	return int64(n), err
}

// EncodeScaled encodes a set-point as a fixed point int16 body.
func EncodeScaled(v float64, scale float64) ([]byte, error) {
	fixed := math.Round(v * scale)
	if fixed > math.MaxInt16 || fixed < math.MinInt16 || math.IsNaN(fixed) {
		return nil, ErrOutOfRange
	}
	b := make([]byte, 2)
	NewEncoder(b).PutInt16(int16(fixed))
	return b, nil
}

// DecodeScaled decodes a fixed point int16 body. It returns false if
// body is too short.
func DecodeScaled(body []byte, scale float64) (float32, bool) {
	if len(body) < 2 {
		return 0, false
	}
	return float32(float64(NewDecoder(body).Int16()) / scale), true
}
