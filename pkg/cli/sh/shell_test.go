package sh

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/motorlink/pkg/l0/comm"
)

func TestFormatTelemetry(t *testing.T) {
	out := FormatTelemetry(&comm.Telemetry{
		Voltage:        24,
		Temperature:    30.5,
		CurrentQ:       1.5,
		CurrentD:       -0.25,
		ERPM:           3000,
		CommandCurrent: 1.5,
		State:          2,
	})
	require.Equal(t, "voltage         : 24.00 V\n"+
		"temperature     : 30.50 C\n"+
		"current q/d     : 1.50 / -0.25 A\n"+
		"erpm            : 3000\n"+
		"command current : 1.50 A\n"+
		"state/fault     : 2 / 0\n", out)
}
