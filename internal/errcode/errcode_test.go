package errcode

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_IsMatchesByCode(t *testing.T) {
	err := New(NoMemory, 3, "slot %d taken", 3)
	wrapped := fmt.Errorf("apply: %w", err)

	assert.True(t, errors.Is(wrapped, ErrNoMemory))
	assert.False(t, errors.Is(wrapped, ErrBadConfig))

	code, ok := CodeOf(wrapped)
	require.True(t, ok)
	assert.Equal(t, NoMemory, code)
	assert.Equal(t, "no memory: slot 3 taken", err.Error())
}

func TestCodeOf_Uncoded(t *testing.T) {
	_, ok := CodeOf(errors.New("plain"))
	assert.False(t, ok)
}

func TestCode_WireValues(t *testing.T) {
	// The values are shared with deployed masters.
	assert.Equal(t, Code(1), NoMemory)
	assert.Equal(t, Code(6), MalformedPacket)
	assert.Equal(t, Code(10), OutFifoFull)
	assert.Equal(t, Code(15), CacheStoreFailed)
	assert.Equal(t, "error 99", Code(99).String())
}
