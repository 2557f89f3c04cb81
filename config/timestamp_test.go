package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"0", 0},
		{"93.5", 93.5},
		{"1:33.5", 93.5},
		{"0:01:33.5", 93.5},
		{"2:00:00", 7200},
		{" 12 ", 12},
	}
	for _, tt := range tests {
		got, err := ParseTimestamp(tt.in)
		require.NoError(t, err, tt.in)
		require.InDelta(t, tt.want, got, 0.0001, tt.in)
	}
}

func TestParseTimestampErrors(t *testing.T) {
	for _, in := range []string{"", "abc", "-5", "1:2:3:4", "1:-2"} {
		_, err := ParseTimestamp(in)
		require.Error(t, err, in)
	}
}

func TestFormatTimestamp(t *testing.T) {
	require.Equal(t, "00:01:33.500", FormatTimestamp(93.5))
	require.Equal(t, "02:00:00.000", FormatTimestamp(7200))
}
