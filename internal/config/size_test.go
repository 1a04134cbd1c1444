package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSize(t *testing.T) {
	tests := []struct {
		in   string
		want int64
	}{
		{"", 0},
		{"0", 0},
		{"512", 512},
		{"100B", 100},
		{"800KB", 800_000},
		{"1MB", 1_000_000},
		{"1.5MB", 1_500_000},
		{"1GB", 1_000_000_000},
		{"512KiB", 512 * 1024},
		{"2MiB", 2 * 1024 * 1024},
		{" 10 kb ", 10_000},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseSize(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseSize_Invalid(t *testing.T) {
	for _, in := range []string{"lots", "-5", "-1MB", "MB", "1.2.3KB"} {
		_, err := ParseSize(in)
		assert.Error(t, err, in)
	}
}
