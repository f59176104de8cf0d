package tunnel

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beaconlink/beaconlink/internal/frame"
)

type noopSender struct{}

func (noopSender) Send(frame.Frame) error { return nil }

func TestRegistryInsertIfAbsent(t *testing.T) {
	r := NewRegistry()
	e1 := NewEntry("my-app", "t-1", noopSender{})

	require.NoError(t, r.InsertIfAbsent("my-app", e1))
	assert.Equal(t, e1, r.Get("my-app"))
	assert.Equal(t, 1, r.Len())

	e2 := NewEntry("my-app", "t-2", noopSender{})
	err := r.InsertIfAbsent("my-app", e2)
	assert.ErrorIs(t, err, ErrTaken)
	assert.Equal(t, e1, r.Get("my-app"), "second insert must not displace the first")
}

func TestRegistryGetMissing(t *testing.T) {
	r := NewRegistry()
	assert.Nil(t, r.Get("nope"))
}

func TestRegistryDeleteOnlyCurrentOwner(t *testing.T) {
	r := NewRegistry()
	e1 := NewEntry("my-app", "t-1", noopSender{})
	require.NoError(t, r.InsertIfAbsent("my-app", e1))

	// A stale reference to a displaced entry must not delete the current one.
	e2 := NewEntry("my-app", "t-2", noopSender{})
	r.Delete("my-app", e2)
	assert.Equal(t, e1, r.Get("my-app"))

	r.Delete("my-app", e1)
	assert.Nil(t, r.Get("my-app"))
	assert.Equal(t, 0, r.Len())
}

// TestRegistryUniquenessUnderConcurrentInsert drives spec.md §8's "registry
// uniqueness" property: many goroutines race to claim the same subdomain,
// and exactly one InsertIfAbsent call may succeed.
func TestRegistryUniquenessUnderConcurrentInsert(t *testing.T) {
	r := NewRegistry()
	const attempts = 64

	var wins atomic.Int32
	var wg sync.WaitGroup
	wg.Add(attempts)
	for i := 0; i < attempts; i++ {
		go func(i int) {
			defer wg.Done()
			e := NewEntry("my-app", fmt.Sprintf("t-%d", i), noopSender{})
			if err := r.InsertIfAbsent("my-app", e); err == nil {
				wins.Add(1)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
	assert.Equal(t, 1, r.Len())
	assert.NotNil(t, r.Get("my-app"))
}

// TestRegistryConcurrentInsertDeleteLeavesNoStaleOwner interleaves inserts,
// deletes, and gets across many subdomains and asserts that once every
// owner has deleted its own entry, no subdomain is left registered.
func TestRegistryConcurrentInsertDeleteLeavesNoStaleOwner(t *testing.T) {
	r := NewRegistry()
	const subdomains = 8
	const churn = 50

	var wg sync.WaitGroup
	for i := 0; i < subdomains; i++ {
		sub := fmt.Sprintf("app-%d", i)
		wg.Add(1)
		go func(sub string) {
			defer wg.Done()
			for j := 0; j < churn; j++ {
				e := NewEntry(sub, fmt.Sprintf("%s-t%d", sub, j), noopSender{})
				if err := r.InsertIfAbsent(sub, e); err == nil {
					_ = r.Get(sub)
					r.Delete(sub, e)
				}
			}
		}(sub)
	}
	wg.Wait()

	for i := 0; i < subdomains; i++ {
		assert.Nil(t, r.Get(fmt.Sprintf("app-%d", i)))
	}
	assert.Equal(t, 0, r.Len())
}
