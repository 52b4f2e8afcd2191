package orchestrate

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_NormalizeNumber(t *testing.T) {
	cases := []struct {
		in    string
		want  string
		valid bool
	}{
		{"PROC-001", "PROC-001", true},
		{"proc-17", "PROC-17", true},
		{"  proc-2  ", "PROC-2", true},
		{"CASE-001", "", false},
		{"PROC-", "", false},
		{"PROC-1a", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, ok := NormalizeNumber(tc.in)
		assert.Equal(t, tc.valid, ok, "input %q", tc.in)
		assert.Equal(t, tc.want, got, "input %q", tc.in)
	}
}

func Test_nextNumber_DeterministicIncrement(t *testing.T) {
	assert.Equal(t, "PROC-002", nextNumber("PROC-001"))
	assert.Equal(t, "PROC-100", nextNumber("PROC-099"))
	assert.Equal(t, "PROC-1000", nextNumber("PROC-999"))
}

func Test_firstAvailable(t *testing.T) {
	t.Run("defaults to first in sequence", func(t *testing.T) {
		assert.Equal(t, "PROC-001", firstAvailable(nil))
	})

	t.Run("increments highest suffix", func(t *testing.T) {
		assert.Equal(t, "PROC-043", firstAvailable([]string{"PROC-001", "PROC-042", "PROC-007"}))
	})

	t.Run("ignores malformed numbers", func(t *testing.T) {
		assert.Equal(t, "PROC-003", firstAvailable([]string{"PROC-002", "garbage", "CASE-900"}))
	})
}
