package ringbuf

import (
	"runtime"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPushPop(t *testing.T) {
	r := New[int](3)
	require.NoError(t, r.Push(1))
	require.NoError(t, r.Push(2))
	require.NoError(t, r.Push(3))
	assert.ErrorIs(t, r.Push(4), ErrFull)
	assert.Equal(t, 3, r.Len())

	v, ok := r.Peek()
	require.True(t, ok)
	assert.Equal(t, 1, v)

	for _, want := range []int{1, 2, 3} {
		v, ok := r.Pop()
		require.True(t, ok)
		assert.Equal(t, want, v)
	}
	_, ok = r.Pop()
	assert.False(t, ok)
	assert.True(t, r.IsEmpty())
}

func TestWrapAround(t *testing.T) {
	r := New[byte](2)
	for i := 0; i < 10; i++ {
		require.NoError(t, r.Push(byte(i)))
		v, ok := r.Pop()
		require.True(t, ok)
		assert.Equal(t, byte(i), v)
	}
}

func TestDrain(t *testing.T) {
	r := New[string](4)
	_ = r.Push("a")
	_ = r.Push("b")
	assert.Equal(t, 2, r.Drain())
	assert.True(t, r.IsEmpty())
	assert.Equal(t, 0, r.Drain())
}

func TestConcurrentProducerConsumer(t *testing.T) {
	const n = 10000
	r := New[int](8)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < n; {
			if r.Push(i) != nil {
				runtime.Gosched()
				continue
			}
			i++
		}
	}()
	got := make([]int, 0, n)
	for len(got) < n {
		v, ok := r.Pop()
		if !ok {
			runtime.Gosched()
			continue
		}
		got = append(got, v)
	}
	wg.Wait()
	for i, v := range got {
		if v != i {
			t.Fatalf("element %d out of order: %d", i, v)
		}
	}
}
