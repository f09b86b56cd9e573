package motor

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseSwitch(t *testing.T) {
	for _, arg := range []string{"on", "ON", "1", "enable"} {
		en, err := ParseSwitch(arg)
		require.NoError(t, err)
		require.True(t, en)
	}
	for _, arg := range []string{"off", "0", "Disable"} {
		en, err := ParseSwitch(arg)
		require.NoError(t, err)
		require.False(t, en)
	}
	_, err := ParseSwitch("maybe")
	require.Error(t, err)
}
