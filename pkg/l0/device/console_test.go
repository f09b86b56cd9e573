package device

import (
	"bytes"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/motorlink/pkg/l0/comm"
)

type fakeMemory struct{}

func (fakeMemory) CoreFree() uint32                    { return 1024 }
func (fakeMemory) HeapStatus() (fragments, free uint32) { return 3, 4096 }

type fakeTasks []TaskInfo

func (t fakeTasks) Tasks() []TaskInfo { return t }

type consoleTestEnv struct {
	ctl     *fakeController
	session *Session
	out     bytes.Buffer
	console *Console
}

func newConsoleTestEnv() *consoleTestEnv {
	env := &consoleTestEnv{
		ctl:     &fakeController{},
		session: &Session{},
	}
	env.console = &Console{
		Session:    env.session,
		Controller: env.ctl,
		Out:        &env.out,
	}
	return env
}

func (e *consoleTestEnv) run(line string) string {
	e.out.Reset()
	e.console.Process(line)
	return e.out.String()
}

func TestConsoleCommands(t *testing.T) {
	testCases := []struct {
		name     string
		line     string
		override bool
		setup    func(*consoleTestEnv)
		expect   string
	}{
		{name: "empty", line: "", expect: "No command received\n\r\n"},
		{name: "only spaces", line: "   ", expect: "No command received\n\r\n"},
		{name: "ping", line: "ping", expect: "pong\n\r\n"},
		{name: "ping extra spaces", line: "  ping  extra ", expect: "pong\n\r\n"},
		{name: "case sensitive", line: "PING", expect: "PING: command not found\n\r\n"},
		{name: "unknown", line: "reboot now", expect: "reboot: command not found\n\r\n"},
		{name: "nul terminated", line: "ping\x00garbage", expect: "pong\n\r\n"},
		{
			name:   "voltage",
			line:   "voltage",
			setup:  func(e *consoleTestEnv) { e.ctl.telemetry.Voltage = 24.456 },
			expect: "Bus voltage: 24.46 volts\n\r\n",
		},
		{name: "override set", line: "usb_override_set", expect: "Enabling USB control\n\r\n"},
		{name: "override unset", line: "usb_override_unset", override: true, expect: "Disabling USB control\n\r\n"},
		{name: "current usage", line: "current_set", override: true, expect: "Usage: current_set [current]\n\r\n"},
		{name: "current too many args", line: "current_set 1 2", override: true, expect: "Usage: current_set [current]\n\r\n"},
		{name: "current not enabled", line: "current_set 1.5", expect: "USB control not enabled\n\r\n"},
		{name: "current", line: "current_set 1.5", override: true, expect: "Setting current to 1.50 amps\n\r\n"},
		{name: "current garbage", line: "current_set abc", override: true, expect: "Setting current to 0.00 amps\n\r\n"},
		{name: "current numeric prefix", line: "current_set -2.25A", override: true, expect: "Setting current to -2.25 amps\n\r\n"},
		{name: "current underscore", line: "current_set 1_5", override: true, expect: "Setting current to 1.00 amps\n\r\n"},
		{name: "current second point", line: "current_set 1.5.2", override: true, expect: "Setting current to 1.50 amps\n\r\n"},
		{name: "current hex", line: "current_set 0x10", override: true, expect: "Setting current to 16.00 amps\n\r\n"},
		{name: "stop", line: "stop", expect: "Stopping motor\n\r\n"},
		{
			name:   "zero failed",
			line:   "zero",
			expect: "Finding encoder zero...\nZeroing failed\n\r\n",
		},
		{
			name: "zero inverted",
			line: "zero",
			setup: func(e *consoleTestEnv) {
				e.ctl.zeroOK, e.ctl.zeroOffset, e.ctl.zeroInverted = true, 1.234, true
			},
			expect: "Finding encoder zero...\nFound zero: 1.23\nEncoder inverted\n\r\n",
		},
		{
			name: "zero not inverted",
			line: "zero",
			setup: func(e *consoleTestEnv) {
				e.ctl.zeroOK, e.ctl.zeroOffset = true, 0.5
			},
			expect: "Finding encoder zero...\nFound zero: 0.50\nEncoder not inverted\n\r\n",
		},
		{name: "mem unavailable", line: "mem", expect: "Memory statistics unavailable\n\r\n"},
		{
			name:  "mem",
			line:  "mem",
			setup: func(e *consoleTestEnv) { e.console.Memory = fakeMemory{} },
			expect: "core free memory : 1024 bytes\n" +
				"heap fragments   : 3\n" +
				"heap free total  : 4096 bytes\n\r\n",
		},
		{name: "threads unavailable", line: "threads", expect: "Task list unavailable\n\r\n"},
		{
			name: "threads",
			line: "threads",
			setup: func(e *consoleTestEnv) {
				e.console.Tasks = fakeTasks{
					{Addr: 0x20001000, Stack: 0x200010f0, Prio: 64, Refs: 0, State: "CURRENT", Name: "main", Time: 42},
				}
			},
			expect: "    addr    stack prio refs     state           name time    \n" +
				"-------------------------------------------------------------\n" +
				"20001000 200010f0   64    0   CURRENT           main 42\n\r\n",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			env := newConsoleTestEnv()
			env.session.SetOverride(tc.override)
			if tc.setup != nil {
				tc.setup(env)
			}
			require.Equal(t, tc.expect, env.run(tc.line))
		})
	}
}

func TestConsoleEffects(t *testing.T) {
	env := newConsoleTestEnv()

	env.run("current_set 1.5")
	require.Empty(t, env.ctl.currents)

	env.run("usb_override_set")
	require.True(t, env.session.Override())
	env.run("current_set 1.5")
	require.Equal(t, []float32{1.5}, env.ctl.currents)

	env.run("usb_override_unset")
	require.False(t, env.session.Override())

	env.run("stop")
	require.Equal(t, 1, env.ctl.disabled)

	env.run("zero")
	require.Equal(t, []float32{ZeroTimeout}, env.ctl.zeroTimeouts)
}

func TestSplitArgs(t *testing.T) {
	require.Empty(t, SplitArgs(""))
	require.Equal(t, []string{"a", "b"}, SplitArgs(" a  b "))
	require.Equal(t, []string{"a\tb"}, SplitArgs("a\tb"))
	long := strings.Repeat("x ", MaxConsoleArgs+10)
	require.Len(t, SplitArgs(long), MaxConsoleArgs)
}

func TestConsoleWriter(t *testing.T) {
	sender := &fakeSender{}
	w := &ConsoleWriter{Sender: sender}
	n, err := w.Write([]byte("pong\n"))
	require.NoError(t, err)
	require.Equal(t, 5, n)
	require.Equal(t, [][]byte{[]byte("\x01pong\n")}, sender.payloads)

	long := bytes.Repeat([]byte{'a'}, 300)
	n, err = w.Write(long)
	require.NoError(t, err)
	require.Equal(t, 300, n)
	require.Len(t, sender.payloads[1], MaxConsoleText+1)
	require.Equal(t, byte(comm.TypeConsole), sender.payloads[1][0])
}

func TestScanFloat(t *testing.T) {
	for _, c := range []struct {
		in  string
		out float32
	}{
		{"1.5", 1.5},
		{"1_5", 1},
		{"1.5.2", 1.5},
		{"-2.25A", -2.25},
		{"+.5", 0.5},
		{"5.", 5},
		{"1e2x", 100},
		{"1e", 1},
		{"1e+", 1},
		{"2E-1", 0.2},
		{"0x10", 16},
		{"0X1.8p1", 3},
		{"0xg", 0},
		{"-0x", 0},
		{"abc", 0},
		{".", 0},
		{"-", 0},
		{"", 0},
	} {
		require.Equal(t, c.out, scanFloat(c.in), c.in)
	}
	require.True(t, math.IsInf(float64(scanFloat("-Infinity")), -1))
	require.True(t, math.IsInf(float64(scanFloat("inf5")), 1))
	require.True(t, math.IsNaN(float64(scanFloat("nan"))))
	require.Equal(t, "1.5", floatPrefix("1.5.2"))
	require.Equal(t, "0x1f", floatPrefix("0x1fz"))
}
