package comm

import (
	"bytes"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func parseAll(p *Parser, in []byte) (frames [][]byte) {
	for _, b := range in {
		if pr := p.Parse(b); pr.Frame != nil {
			frames = append(frames, pr.Frame)
		}
	}
	return
}

func TestParser(t *testing.T) {
	testCases := []struct {
		name    string
		restart bool
		in      []byte
		frames  [][]byte
		state   FrameState
	}{
		{
			name:   "single frame",
			in:     []byte("P\x01ping\n"),
			frames: [][]byte{[]byte("\x01ping")},
		},
		{
			name:   "skip bytes before marker",
			in:     []byte("xyz\n\x00P\x06\n"),
			frames: [][]byte{{0x06}},
		},
		{
			name:   "back to back",
			in:     []byte("P\x02\nP\x03\n"),
			frames: [][]byte{{0x02}, {0x03}},
		},
		{
			name:   "empty frame",
			in:     []byte("P\n"),
			frames: [][]byte{{}},
		},
		{
			name:   "marker inside frame is payload",
			in:     []byte("P\x01ab P\x01cd\n"),
			frames: [][]byte{[]byte("\x01ab P\x01cd")},
		},
		{
			name:    "marker inside frame restarts",
			restart: true,
			in:      []byte("P\x01abP\x01cd\n"),
			frames:  [][]byte{[]byte("\x01cd")},
		},
		{
			name:  "unterminated",
			in:    []byte("P\x01abc"),
			state: FrameReceiving,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			parser := Parser{RestartOnMarker: tc.restart}
			require.Equal(t, tc.frames, parseAll(&parser, tc.in))
			require.Equal(t, tc.state, parser.State())
		})
	}
}

func TestParserStates(t *testing.T) {
	var parser Parser
	require.Equal(t, ParseResult{State: FrameIdle}, parser.Parse('x'))
	require.Equal(t, ParseResult{State: FrameReceiving}, parser.Parse('P'))
	require.Equal(t, ParseResult{State: FrameReceiving}, parser.Parse(1))
	require.Equal(t, ParseResult{State: FrameIdle, Frame: []byte{1}}, parser.Parse('\n'))
	require.False(t, FrameIdle.IsReceiving())
	require.True(t, FrameReceiving.IsReceiving())
}

func TestParserOverflow(t *testing.T) {
	var parser Parser
	payload := bytes.Repeat([]byte{0x55}, MaxPayloadLen+100)
	in := append([]byte{FrameStart}, payload...)
	in = append(in, FrameTerminator)
	frames := parseAll(&parser, in)
	require.Len(t, frames, 1)
	require.Equal(t, payload[:MaxPayloadLen], frames[0])
}

func TestParserReset(t *testing.T) {
	var parser Parser
	parseAll(&parser, []byte("P\x01abc"))
	parser.Reset()
	require.Equal(t, FrameIdle, parser.State())
	require.Equal(t, [][]byte{{2}}, parseAll(&parser, []byte("def\nP\x02\n")))
}

func TestParserFrameNotAliased(t *testing.T) {
	var parser Parser
	first := parseAll(&parser, []byte("P\x01a\n"))[0]
	parseAll(&parser, []byte("P\x02b\n"))
	require.Equal(t, []byte("\x01a"), first)
}

func TestFrameRoundTrip(t *testing.T) {
	rnd := rand.New(rand.NewSource(1))
	for n := 0; n < 200; n++ {
		payload := make([]byte, rnd.Intn(MaxPayloadLen-1))
		for i := range payload {
			for {
				payload[i] = byte(rnd.Intn(256))
				if payload[i] != FrameTerminator {
					break
				}
			}
		}
		var parser Parser
		frames := parseAll(&parser, append(EncodeFrame(payload), FrameTerminator))
		require.Len(t, frames, 1)
		require.Equal(t, payload, frames[0])
	}
}

func TestEncodeFrame(t *testing.T) {
	require.Equal(t, []byte("P\x01pong\n"), EncodeFrame([]byte("\x01pong\n")))
	require.Equal(t, []byte("P"), EncodeFrame(nil))
}
