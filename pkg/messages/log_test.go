package messages

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddSuppressesDuplicates(t *testing.T) {
	l := NewLog()
	l.Add("Error in visualise: boom")
	l.Add("Error in visualise: boom")
	l.Add("Saved config!")

	assert.Equal(t, []string{"Error in visualise: boom", "Saved config!"}, l.Drain())
}

func TestDrainClears(t *testing.T) {
	l := NewLog()
	l.Addf("Could not load extension %s: %v", "broken", "no factory")
	require.Equal(t, 1, l.Len())

	first := l.Drain()
	assert.Equal(t, []string{"Could not load extension broken: no factory"}, first)
	assert.Empty(t, l.Drain())

	// a drained message may be reported again
	l.Addf("Could not load extension %s: %v", "broken", "no factory")
	assert.Equal(t, 1, l.Len())
}

func TestPeekDoesNotClear(t *testing.T) {
	l := NewLog()
	l.Add("a")
	assert.Equal(t, []string{"a"}, l.Peek())
	assert.Equal(t, 1, l.Len())
}

func TestConcurrentAdd(t *testing.T) {
	l := NewLog()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.Add("same")
		}()
	}
	wg.Wait()
	assert.Equal(t, []string{"same"}, l.Drain())
}
