package blockio

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetBufferSizesToBucket(t *testing.T) {
	assert.Equal(t, size4k, cap(GetBuffer(100)))
	assert.Equal(t, size16k, cap(GetBuffer(size4k+1)))
	assert.Equal(t, size64k, cap(GetBuffer(size16k+1)))
	assert.Equal(t, size256k, cap(GetBuffer(size64k+1)))
}

func TestPutBufferRoundTrip(t *testing.T) {
	buf := GetBuffer(10)
	PutBuffer(buf)
	got := GetBuffer(10)
	assert.Equal(t, size4k, cap(got))
}
