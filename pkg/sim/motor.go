package sim

import (
	"context"
	"flag"
	"math"
	"sync"
	"time"
)

// Controller states reported in telemetry.
const (
	StateIdle uint16 = iota
	StateDuty
	StateCurrent
	StateFault
)

// Fault codes reported in telemetry.
const (
	FaultNone uint16 = iota
	FaultOverTemp
)

// ZeroResult is the outcome of the simulated encoder zeroing.
type ZeroResult struct {
	Found    bool
	Offset   float64
	Inverted bool
}

// MotorConfig defines the parameters of the simulated motor.
type MotorConfig struct {
	BusVoltage  float64 // volts
	KV          float64 // ERPM per volt of back EMF
	Resistance  float64 // ohms, phase resistance
	MaxCurrent  float64 // amps, driver current limit
	Accel       float64 // ERPM/s per amp
	Friction    float64 // 1/s, speed decay
	AmbientTemp float64 // degrees C
	HeatRate    float64 // degrees C/s per amp^2
	CoolRate    float64 // 1/s
	MaxTemp     float64 // degrees C, over temperature fault threshold
	Interval    time.Duration
	Zero        ZeroResult
}

var defaultMotorConfig = MotorConfig{
	BusVoltage:  24,
	KV:          700,
	Resistance:  0.1,
	MaxCurrent:  30,
	Accel:       2000,
	Friction:    0.5,
	AmbientTemp: 25,
	HeatRate:    0.01,
	CoolRate:    0.05,
	MaxTemp:     90,
	Interval:    10 * time.Millisecond,
	Zero:        ZeroResult{Found: true, Offset: 1.57},
}

// SetupFlags sets command line flags.
func SetupFlags() {
	flag.Float64Var(&defaultMotorConfig.BusVoltage, "sim-vbus", defaultMotorConfig.BusVoltage, "Simulated bus voltage (V).")
	flag.Float64Var(&defaultMotorConfig.KV, "sim-kv", defaultMotorConfig.KV, "Simulated motor constant (ERPM/V).")
	flag.Float64Var(&defaultMotorConfig.MaxCurrent, "sim-max-current", defaultMotorConfig.MaxCurrent, "Simulated driver current limit (A).")
	flag.Float64Var(&defaultMotorConfig.MaxTemp, "sim-max-temp", defaultMotorConfig.MaxTemp, "Simulated over temperature threshold (C).")
	flag.BoolVar(&defaultMotorConfig.Zero.Found, "sim-zero-found", defaultMotorConfig.Zero.Found, "Whether simulated encoder zeroing succeeds.")
	flag.Float64Var(&defaultMotorConfig.Zero.Offset, "sim-zero-offset", defaultMotorConfig.Zero.Offset, "Simulated encoder zero offset.")
	flag.BoolVar(&defaultMotorConfig.Zero.Inverted, "sim-zero-inverted", defaultMotorConfig.Zero.Inverted, "Whether simulated encoder is inverted.")
}

// DefaultMotorConfig gets default config.
func DefaultMotorConfig() *MotorConfig {
	return &defaultMotorConfig
}

// NewMotorConfig creates the default configuration.
func NewMotorConfig() *MotorConfig {
	conf := defaultMotorConfig
	return &conf
}

// NewMotor creates the Motor.
func (c *MotorConfig) NewMotor() *Motor {
	return &Motor{Config: *c, temperature: c.AmbientTemp}
}

// Motor is a simulated motor controller.
type Motor struct {
	Config MotorConfig

	lock        sync.Mutex
	state       uint16
	fault       uint16
	duty        float64
	cmdCurrent  float64
	iq          float64
	id          float64
	erpm        float64
	temperature float64
}

// BusVoltage implements device.Controller.
func (m *Motor) BusVoltage() float32 {
	return float32(m.Config.BusVoltage)
}

// Temperature implements device.Controller.
func (m *Motor) Temperature() float32 {
	m.lock.Lock()
	defer m.lock.Unlock()
	return float32(m.temperature)
}

// CurrentQ implements device.Controller.
func (m *Motor) CurrentQ() float32 {
	m.lock.Lock()
	defer m.lock.Unlock()
	return float32(m.iq)
}

// CurrentD implements device.Controller.
func (m *Motor) CurrentD() float32 {
	m.lock.Lock()
	defer m.lock.Unlock()
	return float32(m.id)
}

// ERPM implements device.Controller.
func (m *Motor) ERPM() float32 {
	m.lock.Lock()
	defer m.lock.Unlock()
	return float32(m.erpm)
}

// CommandCurrent implements device.Controller.
func (m *Motor) CommandCurrent() float32 {
	m.lock.Lock()
	defer m.lock.Unlock()
	return float32(m.cmdCurrent)
}

// State implements device.Controller.
func (m *Motor) State() uint16 {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.state
}

// Fault implements device.Controller.
func (m *Motor) Fault() uint16 {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.fault
}

// SetDuty implements device.Controller.
func (m *Motor) SetDuty(duty float32) {
	m.lock.Lock()
	defer m.lock.Unlock()
	if m.state == StateFault {
		return
	}
	m.duty = math.Max(-1, math.Min(1, float64(duty)))
	m.cmdCurrent = 0
	m.state = StateDuty
}

// SetCurrent implements device.Controller.
func (m *Motor) SetCurrent(amps float32) {
	m.lock.Lock()
	defer m.lock.Unlock()
	if m.state == StateFault {
		return
	}
	m.cmdCurrent = m.limitCurrent(float64(amps))
	m.duty = 0
	m.state = StateCurrent
}

// Disable implements device.Controller. It also clears faults.
func (m *Motor) Disable() {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.disable()
	m.fault = FaultNone
}

func (m *Motor) disable() {
	m.state, m.duty, m.cmdCurrent, m.iq = StateIdle, 0, 0, 0
}

// EncoderZero implements device.Controller.
func (m *Motor) EncoderZero(timeout float32) (bool, float32, bool) {
	z := m.Config.Zero
	if !z.Found || timeout <= 0 {
		return false, 0, false
	}
	return true, float32(z.Offset), z.Inverted
}

func (m *Motor) limitCurrent(amps float64) float64 {
	if limit := m.Config.MaxCurrent; limit > 0 {
		return math.Max(-limit, math.Min(limit, amps))
	}
	return amps
}

// Step advances the simulation by dt.
func (m *Motor) Step(dt time.Duration) {
	secs := dt.Seconds()
	m.lock.Lock()
	defer m.lock.Unlock()
	switch m.state {
	case StateDuty:
		emf := m.erpm / m.Config.KV
		m.iq = m.limitCurrent((m.duty*m.Config.BusVoltage - emf) / m.Config.Resistance)
	case StateCurrent:
		m.iq = m.cmdCurrent
	default:
		m.iq = 0
	}
	m.erpm += (m.iq*m.Config.Accel - m.erpm*m.Config.Friction) * secs
	m.temperature += (m.iq*m.iq*m.Config.HeatRate - (m.temperature-m.Config.AmbientTemp)*m.Config.CoolRate) * secs
	if m.Config.MaxTemp > 0 && m.temperature > m.Config.MaxTemp && m.state != StateFault {
		m.disable()
		m.state, m.fault = StateFault, FaultOverTemp
	}
}

// Run implements Runnable.
func (m *Motor) Run(ctx context.Context) error {
	interval := m.Config.Interval
	if interval <= 0 {
		interval = defaultMotorConfig.Interval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			m.Step(interval)
		}
	}
}
