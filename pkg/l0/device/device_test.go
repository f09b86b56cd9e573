package device

import (
	"bytes"

	"github.com/robotalks/motorlink/pkg/l0/comm"
)

type fakeController struct {
	telemetry comm.Telemetry

	duties   []float32
	currents []float32
	disabled int

	zeroOK       bool
	zeroOffset   float32
	zeroInverted bool
	zeroTimeouts []float32
}

func (c *fakeController) BusVoltage() float32     { return c.telemetry.Voltage }
func (c *fakeController) Temperature() float32    { return c.telemetry.Temperature }
func (c *fakeController) CurrentQ() float32       { return c.telemetry.CurrentQ }
func (c *fakeController) CurrentD() float32       { return c.telemetry.CurrentD }
func (c *fakeController) ERPM() float32           { return c.telemetry.ERPM }
func (c *fakeController) CommandCurrent() float32 { return c.telemetry.CommandCurrent }
func (c *fakeController) State() uint16           { return c.telemetry.State }
func (c *fakeController) Fault() uint16           { return c.telemetry.Fault }

func (c *fakeController) SetDuty(duty float32)    { c.duties = append(c.duties, duty) }
func (c *fakeController) SetCurrent(amps float32) { c.currents = append(c.currents, amps) }
func (c *fakeController) Disable()                { c.disabled++ }

func (c *fakeController) EncoderZero(timeout float32) (bool, float32, bool) {
	c.zeroTimeouts = append(c.zeroTimeouts, timeout)
	return c.zeroOK, c.zeroOffset, c.zeroInverted
}

type fakeSender struct {
	payloads [][]byte
}

func (s *fakeSender) SendFrame(payload []byte) error {
	s.payloads = append(s.payloads, append([]byte(nil), payload...))
	return nil
}

// consoleText joins the text of console payloads.
func (s *fakeSender) consoleText() string {
	var buf bytes.Buffer
	for _, p := range s.payloads {
		if len(p) > 0 && p[0] == byte(comm.TypeConsole) {
			buf.Write(p[1:])
		}
	}
	return buf.String()
}
