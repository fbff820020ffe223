package common

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{0, "0.00 B"},
		{1023, "1023.00 B"},
		{1024, "1.00 KB"},
		{50 * 1024 * 1024, "50.00 MB"},
		{3 * 1024 * 1024 * 1024, "3.00 GB"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatBytes(tt.in))
		})
	}
}

func TestErrorKinds(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", Forbidden("nope"))
	assert.Equal(t, KindForbidden, KindOf(err))
	assert.True(t, IsKind(err, KindForbidden))
	assert.False(t, IsKind(err, KindNotFound))
	assert.Equal(t, KindInternal, KindOf(errors.New("plain")))
}

func TestInternalHidesCause(t *testing.T) {
	cause := errors.New("disk on fire")
	err := Internal("write failed", cause)
	assert.NotContains(t, err.Msg, "disk")
	assert.ErrorIs(t, err, cause)
}

func TestInvalidList(t *testing.T) {
	single := InvalidList([]string{"Title is required."})
	assert.Equal(t, "Title is required.", single.Msg)
	assert.Equal(t, []string{"Title is required."}, single.Messages())

	multi := InvalidList([]string{"a", "b"})
	assert.Equal(t, []string{"a", "b"}, multi.Messages())
	assert.Equal(t, KindInvalid, multi.Kind)
}
