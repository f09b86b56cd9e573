package comm

import "fmt"

// TelemetrySize is the encoded size of Telemetry values.
const TelemetrySize = 6*4 + 2*2

// Telemetry is the body of a get-data reply.
type Telemetry struct {
	Voltage        float32
	Temperature    float32
	CurrentQ       float32
	CurrentD       float32
	ERPM           float32
	CommandCurrent float32
	State          uint16
	Fault          uint16
}

// MarshalBinary implements encoding.BinaryMarshaler.
func (t *Telemetry) MarshalBinary() ([]byte, error) {
	b := make([]byte, TelemetrySize)
	t.encode(NewEncoder(b))
	return b, nil
}

func (t *Telemetry) encode(e *Encoder) {
	e.PutFloat32(t.Voltage).
		PutFloat32(t.Temperature).
		PutFloat32(t.CurrentQ).
		PutFloat32(t.CurrentD).
		PutFloat32(t.ERPM).
		PutFloat32(t.CommandCurrent).
		PutUint16(t.State).
		PutUint16(t.Fault)
}

// ReplyPayload builds the get-data reply payload with the terminator
// appended, ready for EncodeFrame.
func (t *Telemetry) ReplyPayload() []byte {
	b := make([]byte, TelemetrySize+2)
	e := NewEncoder(b).PutByte(byte(TypeGetData))
	t.encode(e)
	e.PutByte(FrameTerminator)
	return b
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
// A trailing terminator is tolerated.
func (t *Telemetry) UnmarshalBinary(data []byte) error {
	if len(data) == TelemetrySize+1 && data[TelemetrySize] == FrameTerminator {
		data = data[:TelemetrySize]
	}
	if len(data) != TelemetrySize {
		return fmt.Errorf("invalid telemetry size %d", len(data))
	}
	d := NewDecoder(data)
	t.Voltage = d.Float32()
	t.Temperature = d.Float32()
	t.CurrentQ = d.Float32()
	t.CurrentD = d.Float32()
	t.ERPM = d.Float32()
	t.CommandCurrent = d.Float32()
	t.State = d.Uint16()
	t.Fault = d.Uint16()
	return nil
}
