package device

import "github.com/robotalks/motorlink/pkg/l0/comm"

// Controller is the motor control subsystem.
type Controller interface {
	BusVoltage() float32
	Temperature() float32
	CurrentQ() float32
	CurrentD() float32
	ERPM() float32
	CommandCurrent() float32
	State() uint16
	Fault() uint16

	SetDuty(duty float32)
	SetCurrent(amps float32)
	Disable()
	// EncoderZero runs the encoder zeroing procedure and blocks until it
	// completes or gives up after timeout (unit defined by the implementation).
	EncoderZero(timeout float32) (ok bool, offset float32, inverted bool)
}

// MemoryStats reports allocator statistics.
type MemoryStats interface {
	CoreFree() uint32
	HeapStatus() (fragments, free uint32)
}

// TaskInfo describes a registered task.
type TaskInfo struct {
	Addr  uint32
	Stack uint32
	Prio  uint32
	Refs  uint32
	State string
	Name  string
	Time  uint32
}

// TaskLister enumerates registered tasks.
type TaskLister interface {
	Tasks() []TaskInfo
}

// Sender transmits a frame payload, which ends with the terminator.
type Sender interface {
	SendFrame(payload []byte) error
}

// ReadTelemetry samples all telemetry values from ctl.
func ReadTelemetry(ctl Controller) *comm.Telemetry {
	return &comm.Telemetry{
		Voltage:        ctl.BusVoltage(),
		Temperature:    ctl.Temperature(),
		CurrentQ:       ctl.CurrentQ(),
		CurrentD:       ctl.CurrentD(),
		ERPM:           ctl.ERPM(),
		CommandCurrent: ctl.CommandCurrent(),
		State:          ctl.State(),
		Fault:          ctl.Fault(),
	}
}
