package plugin

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLogBufferOrdering(t *testing.T) {
	b := NewLogBuffer(10)
	b.Log("a", "info", "first", nil)
	b.Log("a", "info", "second", nil)
	b.Log("b", "error", "third", nil)

	all := b.All()
	assert.Len(t, all, 3)
	assert.Equal(t, "third", all[0].Message)
	assert.Equal(t, "first", all[2].Message)

	onlyA := b.ByPlugin("a")
	assert.Len(t, onlyA, 2)
	assert.Equal(t, "second", onlyA[0].Message)
}

func TestLogBufferWraps(t *testing.T) {
	b := NewLogBuffer(3)
	for i := 0; i < 5; i++ {
		b.Log("p", "info", fmt.Sprintf("msg-%d", i), nil)
	}

	assert.Equal(t, 3, b.Count())
	all := b.All()
	assert.Equal(t, "msg-4", all[0].Message)
	assert.Equal(t, "msg-2", all[2].Message)
}

func TestLogBufferClear(t *testing.T) {
	b := NewLogBuffer(5)
	b.Log("p", "info", "x", nil)
	b.Clear()
	assert.Equal(t, 0, b.Count())
	assert.Empty(t, b.All())
}
