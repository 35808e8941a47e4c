package pool

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolGetPut(t *testing.T) {
	p := New(func() []byte {
		return make([]byte, 8192)
	})

	buf := p.Get()
	require.Len(t, buf, 8192)

	buf[0] = 0xff
	p.Put(buf)

	// a pooled or a fresh buffer may come back; either way it has
	// the constructed size
	again := p.Get()
	assert.Len(t, again, 8192)
}

func TestPoolConcurrentAccess(t *testing.T) {
	p := New(func() []byte {
		return make([]byte, 1024)
	})

	var wg sync.WaitGroup
	const goroutines = 50
	const iterations = 200

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < iterations; j++ {
				buf := p.Get()
				assert.Len(t, buf, 1024)
				buf[0] = byte(j)
				p.Put(buf)
			}
		}()
	}

	wg.Wait()
}

func TestPoolPointerItems(t *testing.T) {
	type item struct {
		n int
	}
	p := New(func() *item { return &item{} })

	it := p.Get()
	require.NotNil(t, it)
	it.n = 42
	p.Put(it)
}
