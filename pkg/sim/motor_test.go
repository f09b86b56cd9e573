package sim

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/motorlink/pkg/l0/device"
)

var _ device.Controller = &Motor{}

func TestMotorDuty(t *testing.T) {
	m := NewMotorConfig().NewMotor()
	require.Equal(t, StateIdle, m.State())
	m.SetDuty(2)
	require.Equal(t, StateDuty, m.State())
	for i := 0; i < 100; i++ {
		m.Step(10 * time.Millisecond)
	}
	require.True(t, m.ERPM() > 0)
	require.True(t, m.CurrentQ() > 0)
	require.Zero(t, m.CommandCurrent())

	m.SetDuty(-0.5)
	for i := 0; i < 1000; i++ {
		m.Step(10 * time.Millisecond)
	}
	require.True(t, m.ERPM() < 0)
}

func TestMotorCurrent(t *testing.T) {
	m := NewMotorConfig().NewMotor()
	m.SetCurrent(100)
	require.Equal(t, StateCurrent, m.State())
	require.Equal(t, float32(30), m.CommandCurrent())
	m.Step(10 * time.Millisecond)
	require.Equal(t, float32(30), m.CurrentQ())
	require.True(t, m.ERPM() > 0)
	require.Zero(t, m.CurrentD())

	m.Disable()
	require.Equal(t, StateIdle, m.State())
	require.Zero(t, m.CommandCurrent())
	require.Zero(t, m.CurrentQ())
}

func TestMotorOverTemp(t *testing.T) {
	conf := NewMotorConfig()
	conf.MaxTemp = 26
	conf.HeatRate = 1
	m := conf.NewMotor()
	m.SetCurrent(10)
	m.Step(100 * time.Millisecond)
	require.Equal(t, StateFault, m.State())
	require.Equal(t, FaultOverTemp, m.Fault())
	require.Zero(t, m.CommandCurrent())

	m.SetCurrent(5)
	require.Equal(t, StateFault, m.State())

	m.Disable()
	require.Equal(t, StateIdle, m.State())
	require.Equal(t, FaultNone, m.Fault())
}

func TestMotorEncoderZero(t *testing.T) {
	conf := NewMotorConfig()
	conf.Zero = ZeroResult{Found: true, Offset: 0.5, Inverted: true}
	ok, offset, inverted := conf.NewMotor().EncoderZero(10)
	require.True(t, ok)
	require.Equal(t, float32(0.5), offset)
	require.True(t, inverted)

	conf.Zero.Found = false
	ok, _, _ = conf.NewMotor().EncoderZero(10)
	require.False(t, ok)
}

func TestMotorRun(t *testing.T) {
	conf := NewMotorConfig()
	conf.Interval = time.Millisecond
	m := conf.NewMotor()
	m.SetCurrent(1)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	require.Equal(t, context.DeadlineExceeded, m.Run(ctx))
	require.True(t, m.ERPM() > 0)
}
