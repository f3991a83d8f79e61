package mempool

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetFloat32Length(t *testing.T) {
	buf := GetFloat32(100)
	require.Len(t, buf, 100)
	assert.GreaterOrEqual(t, cap(buf), 100)
	PutFloat32(buf)
}

func TestGetFloat32LargeRoundsUp(t *testing.T) {
	buf := GetFloat32(1500)
	require.Len(t, buf, 1500)
	assert.GreaterOrEqual(t, cap(buf), 2048)
	PutFloat32(buf)
}

func TestPutNilIsSafe(t *testing.T) {
	PutFloat32(nil)
}

func TestReuseAcrossGetPut(t *testing.T) {
	buf := GetFloat32(64)
	for i := range buf {
		buf[i] = 1
	}
	PutFloat32(buf)

	// A pooled buffer may come back dirty; the contract is that callers
	// overwrite every element.
	again := GetFloat32(64)
	require.Len(t, again, 64)
	PutFloat32(again)
}

func TestSizeClass(t *testing.T) {
	assert.Equal(t, 1024, sizeClass(1))
	assert.Equal(t, 1024, sizeClass(1024))
	assert.Equal(t, 2048, sizeClass(1025))
	assert.Equal(t, 4096, sizeClass(4000))
}
