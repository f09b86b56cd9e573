package comm

// Framing bytes.
const (
	FrameStart      byte = 'P'
	FrameTerminator byte = '\n'
)

// MaxPayloadLen is the capacity of the frame buffer.
const MaxPayloadLen = 2048

// FrameState indicates the state of frame assembly.
type FrameState int

const (
	// FrameIdle means waiting for a start marker.
	FrameIdle FrameState = iota
	// FrameReceiving means a start marker is seen and payload is being
	// accumulated until the terminator.
	FrameReceiving
)

// IsReceiving indicates if it's in the middle of a frame.
func (s FrameState) IsReceiving() bool {
	return s == FrameReceiving
}

// ParseResult indicates the result after one parsing step.
type ParseResult struct {
	State FrameState
	// Frame is the completed payload when the terminator is consumed.
	Frame []byte
}

// Parser assembles frames from bytes received.
// By default a start marker inside a frame is kept as payload, the same
// as the device firmware does; see RestartOnMarker.
// There is no timeout: a frame never terminated holds the parser in
// FrameReceiving until Reset.
type Parser struct {
	// RestartOnMarker makes a start marker received in the middle of a
	// frame discard the partial payload and start over, instead of
	// being accumulated as payload.
	RestartOnMarker bool

	state FrameState
	buf   [MaxPayloadLen]byte
	index int
}

// State gets the current frame state.
func (p *Parser) State() FrameState {
	return p.state
}

// Reset drops any partial frame.
func (p *Parser) Reset() {
	p.state, p.index = FrameIdle, 0
}

// Parse consumes one byte.
func (p *Parser) Parse(b byte) (pr ParseResult) {
	switch p.state {
	case FrameIdle:
		if b == FrameStart {
			p.state, p.index = FrameReceiving, 0
		}
	case FrameReceiving:
		switch {
		case b == FrameTerminator:
			pr.Frame = make([]byte, p.index)
			copy(pr.Frame, p.buf[:p.index])
			p.Reset()
		case b == FrameStart && p.RestartOnMarker:
			p.index = 0
		case p.index < len(p.buf):
			p.buf[p.index] = b
			p.index++
		}
	}
	pr.State = p.state
	return
}

// EncodeFrame prefixes the start marker to payload. The terminator is
// not appended, it's expected to be the last byte of payload.
func EncodeFrame(payload []byte) []byte {
	b := make([]byte, len(payload)+1)
	b[0] = FrameStart
	copy(b[1:], payload)
	return b
}
