package device

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/golang/glog"

	"github.com/robotalks/motorlink/pkg/l0/comm"
)

// MaxConsoleArgs is the maximum number of tokens in a command line.
const MaxConsoleArgs = 64

// MaxConsoleText is the maximum length of text in one console packet.
const MaxConsoleText = 253

// ZeroTimeout is passed to Controller.EncoderZero by the zero command.
const ZeroTimeout float32 = 10.0

// Console interprets text commands.
type Console struct {
	Session    *Session
	Controller Controller
	Memory     MemoryStats
	Tasks      TaskLister
	// Out receives formatted output, one Write per printed line.
	Out io.Writer
}

type consoleCmd struct {
	name string
	fn   func(c *Console, args []string)
}

var consoleCmds = []consoleCmd{
	{"ping", (*Console).ping},
	{"mem", (*Console).mem},
	{"threads", (*Console).threads},
	{"voltage", (*Console).voltage},
	{"usb_override_set", (*Console).overrideSet},
	{"usb_override_unset", (*Console).overrideUnset},
	{"current_set", (*Console).currentSet},
	{"stop", (*Console).stop},
	{"zero", (*Console).zero},
}

// SplitArgs tokenizes a command line on spaces. Consecutive spaces
// yield no empty tokens, text after a NUL byte is ignored and at most
// MaxConsoleArgs tokens are returned.
func SplitArgs(line string) []string {
	if i := strings.IndexByte(line, 0); i >= 0 {
		line = line[:i]
	}
	args := strings.FieldsFunc(line, func(r rune) bool { return r == ' ' })
	if len(args) > MaxConsoleArgs {
		args = args[:MaxConsoleArgs]
	}
	return args
}

// Process runs a command line.
func (c *Console) Process(line string) {
	args := SplitArgs(line)
	if len(args) == 0 {
		c.printf("No command received\n")
		c.printf("\r\n")
		return
	}
	glog.V(3).Infof("console: %q", args)
	for _, cmd := range consoleCmds {
		if cmd.name == args[0] {
			cmd.fn(c, args)
			c.printf("\r\n")
			return
		}
	}
	c.printf("%s: command not found\n", args[0])
	c.printf("\r\n")
}

func (c *Console) printf(format string, args ...interface{}) {
	if c.Out == nil {
		return
	}
	if _, err := fmt.Fprintf(c.Out, format, args...); err != nil {
		glog.Warningf("console output error: %v", err)
	}
}

func (c *Console) ping(args []string) {
	c.printf("pong\n")
}

func (c *Console) mem(args []string) {
	if c.Memory == nil {
		c.printf("Memory statistics unavailable\n")
		return
	}
	fragments, free := c.Memory.HeapStatus()
	c.printf("core free memory : %d bytes\n", c.Memory.CoreFree())
	c.printf("heap fragments   : %d\n", fragments)
	c.printf("heap free total  : %d bytes\n", free)
}

func (c *Console) threads(args []string) {
	if c.Tasks == nil {
		c.printf("Task list unavailable\n")
		return
	}
	c.printf("    addr    stack prio refs     state           name time    \n")
	c.printf("-------------------------------------------------------------\n")
	for _, task := range c.Tasks.Tasks() {
		c.printf("%.8x %.8x %4d %4d %9s %14s %d\n",
			task.Addr, task.Stack, task.Prio, task.Refs,
			task.State, task.Name, task.Time)
	}
}

func (c *Console) voltage(args []string) {
	c.printf("Bus voltage: %.2f volts\n", c.Controller.BusVoltage())
}

func (c *Console) overrideSet(args []string) {
	c.Session.SetOverride(true)
	c.printf("Enabling USB control\n")
}

func (c *Console) overrideUnset(args []string) {
	c.Session.SetOverride(false)
	c.printf("Disabling USB control\n")
}

func (c *Console) currentSet(args []string) {
	if len(args) != 2 {
		c.printf("Usage: current_set [current]\n")
		return
	}
	if !c.Session.Override() {
		c.printf("USB control not enabled\n")
		return
	}
	curr := scanFloat(args[1])
	c.printf("Setting current to %.2f amps\n", curr)
	c.Controller.SetCurrent(curr)
}

func (c *Console) stop(args []string) {
	c.printf("Stopping motor\n")
	c.Controller.Disable()
}

func (c *Console) zero(args []string) {
	c.printf("Finding encoder zero...\n")
	ok, offset, inverted := c.Controller.EncoderZero(ZeroTimeout)
	if !ok {
		c.printf("Zeroing failed\n")
		return
	}
	c.printf("Found zero: %.2f\n", offset)
	if inverted {
		c.printf("Encoder inverted\n")
	} else {
		c.printf("Encoder not inverted\n")
	}
}

// ConsoleWriter sends each Write as a console packet.
type ConsoleWriter struct {
	Sender Sender
}

// Write implements io.Writer. Text longer than MaxConsoleText is
// truncated.
func (w *ConsoleWriter) Write(p []byte) (int, error) {
	n := len(p)
	if n > MaxConsoleText {
		n = MaxConsoleText
	}
	payload := make([]byte, n+1)
	payload[0] = byte(comm.TypeConsole)
	copy(payload[1:], p[:n])
	if err := w.Sender.SendFrame(payload); err != nil {
		return 0, err
	}
	return len(p), nil
}

// scanFloat converts the longest leading part of s that C strtod accepts,
// ignoring the rest. It returns 0 when no prefix is a number.
func scanFloat(s string) float32 {
	prefix := floatPrefix(s)
	if prefix == "" {
		return 0
	}
	lower := strings.ToLower(prefix)
	if strings.Contains(lower, "0x") && !strings.Contains(lower, "p") {
		prefix += "p0"
	}
	// out of range values come back as signed infinity or zero, as strtod does.
	v, _ := strconv.ParseFloat(prefix, 32)
	return float32(v)
}

// floatPrefix returns the longest prefix of s matching
// [sign] (inf | infinity | nan | 0x hexmantissa [p exp] | mantissa [e exp]).
func floatPrefix(s string) string {
	i := 0
	if i < len(s) && (s[i] == '+' || s[i] == '-') {
		i++
	}
	rest := strings.ToLower(s[i:])
	for _, word := range []string{"infinity", "inf", "nan"} {
		if strings.HasPrefix(rest, word) {
			return s[:i+len(word)]
		}
	}
	if strings.HasPrefix(rest, "0x") {
		n := scanMantissa(s[i+2:], isHexDigit)
		if n == 0 {
			// "0x" alone reads as 0.
			return s[:i+1]
		}
		end := i + 2 + n
		return s[:end+scanExponent(s[end:], 'p')]
	}
	n := scanMantissa(s[i:], isDigit)
	if n == 0 {
		return ""
	}
	end := i + n
	return s[:end+scanExponent(s[end:], 'e')]
}

// scanMantissa returns the length of digits[.digits] at the start of s,
// or 0 if it holds no digit.
func scanMantissa(s string, digit func(byte) bool) int {
	i, digits := 0, 0
	for ; i < len(s) && digit(s[i]); i++ {
		digits++
	}
	if i < len(s) && s[i] == '.' {
		i++
		for ; i < len(s) && digit(s[i]); i++ {
			digits++
		}
	}
	if digits == 0 {
		return 0
	}
	return i
}

// scanExponent returns the length of an exponent at the start of s, or 0
// if the marker isn't followed by decimal digits.
func scanExponent(s string, mark byte) int {
	if len(s) == 0 || (s[0]|0x20) != mark {
		return 0
	}
	i := 1
	if i < len(s) && (s[i] == '+' || s[i] == '-') {
		i++
	}
	start := i
	for ; i < len(s) && isDigit(s[i]); i++ {
	}
	if i == start {
		return 0
	}
	return i
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }

func isHexDigit(b byte) bool {
	return isDigit(b) || (b|0x20) >= 'a' && (b|0x20) <= 'f'
}
