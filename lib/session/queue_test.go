package session

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueFIFOForSingleProducer(t *testing.T) {
	q := newTaskQueue()
	go q.run()

	const n = 1000
	var got []int
	for i := 0; i < n; i++ {
		i := i
		require.True(t, q.push(func() { got = append(got, i) }))
	}
	q.close()
	<-q.done

	require.Len(t, got, n)
	for i, v := range got {
		assert.Equal(t, i, v)
	}
}

func TestQueueConcurrentProducers(t *testing.T) {
	q := newTaskQueue()
	go q.run()

	const producers, perProducer = 8, 500
	var (
		count   int64
		running int32
		wg      sync.WaitGroup
	)
	wg.Add(producers)
	for p := 0; p < producers; p++ {
		go func() {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				q.push(func() {
					// tasks never overlap
					assert.Equal(t, int32(1), atomic.AddInt32(&running, 1))
					count++
					atomic.AddInt32(&running, -1)
				})
			}
		}()
	}
	wg.Wait()
	q.close()

	select {
	case <-q.done:
	case <-time.After(5 * time.Second):
		t.Fatal("queue did not drain")
	}
	assert.Equal(t, int64(producers*perProducer), count)
}

func TestQueueClosed(t *testing.T) {
	q := newTaskQueue()
	go q.run()

	q.close()
	assert.True(t, q.isClosed())
	assert.False(t, q.start(func() {}))
	assert.False(t, q.start(nil))
	<-q.done
	assert.False(t, q.push(func() {}), "a stopped loop accepts no tasks")
}

func TestQueueRunsUntilOperationsEnd(t *testing.T) {
	q := newTaskQueue()
	go q.run()

	var steps int
	var step func()
	step = func() {
		steps++
		if steps == 100 {
			q.end()
			return
		}
		assert.True(t, q.push(step))
	}
	require.True(t, q.start(step))
	q.close()

	select {
	case <-q.done:
	case <-time.After(5 * time.Second):
		t.Fatal("loop did not stop")
	}
	assert.Equal(t, 100, steps)
}

func TestQueueTasksMayPush(t *testing.T) {
	q := newTaskQueue()
	go q.run()

	done := make(chan int)
	var step func(i int)
	step = func(i int) {
		if i == 10000 {
			done <- i
			return
		}
		q.push(func() { step(i + 1) })
	}
	q.push(func() { step(0) })

	select {
	case n := <-done:
		assert.Equal(t, 10000, n)
	case <-time.After(5 * time.Second):
		t.Fatal("trampoline stalled")
	}
	q.close()
}
