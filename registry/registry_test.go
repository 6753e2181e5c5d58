package registry

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMapMutexNotReentrantAcrossGoroutines(t *testing.T) {
	mm := NewMapMutex()
	lockName := "testLock"

	mm.Lock(lockName)

	locked := make(chan bool)
	go func() {
		mm.Lock(lockName)
		locked <- true
	}()

	select {
	case <-locked:
		t.Error("Lock should not be re-entrant")
	default:
	}

	mm.Unlock(lockName)

	select {
	case <-locked:
	case <-time.After(time.Second):
		t.Error("Lock should be acquired after unlock")
	}

	mm.Unlock(lockName)
}

func TestMapMutexDistinctKeysDoNotBlock(t *testing.T) {
	mm := NewMapMutex()
	mm.Lock("a")
	done := make(chan bool, 1)
	go func() {
		mm.Lock("b")
		mm.Unlock("b")
		done <- true
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Error("distinct keys should not block each other")
	}
	mm.Unlock("a")
}

func TestMapMutexSharedKeyManyGoroutines(t *testing.T) {
	mm := NewMapMutex()
	const n = 200
	data := make([]int, n)

	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			mm.Lock("shared")
			data[i] = i
			mm.Unlock("shared")
		}(i)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		assert.Equal(t, i, data[i])
	}
}

type fakeMount struct {
	closed *bool
	err    error
}

func (f fakeMount) Close() error {
	*f.closed = true
	return f.err
}

func TestMountRegistryDismountAll(t *testing.T) {
	reg := NewMountRegistry()
	closedA, closedB := false, false
	reg.Register(`X:\a.vhdx`, fakeMount{closed: &closedA})
	reg.Register(`X:\b.vhdx`, fakeMount{closed: &closedB})
	assert.Equal(t, 2, reg.Len())

	reg.DismountAll()

	assert.True(t, closedA)
	assert.True(t, closedB)
	assert.Equal(t, 0, reg.Len())
}

func TestMountRegistryGetUnregister(t *testing.T) {
	reg := NewMountRegistry()
	closed := false
	reg.Register(`X:\a.vhdx`, fakeMount{closed: &closed})

	_, ok := reg.Get(`X:\a.vhdx`)
	assert.True(t, ok)

	reg.Unregister(`X:\a.vhdx`)
	_, ok = reg.Get(`X:\a.vhdx`)
	assert.False(t, ok)
}

func TestDiskPrepRegistrySerializesByDiskIndex(t *testing.T) {
	reg := NewDiskPrepRegistry()
	reg.Acquire(0)
	assert.True(t, reg.IsHeld(0))

	acquired := make(chan bool, 1)
	go func() {
		reg.Acquire(0)
		acquired <- true
		reg.Release(0)
	}()

	select {
	case <-acquired:
		t.Error("second Acquire for same disk index should block")
	case <-time.After(50 * time.Millisecond):
	}

	reg.Release(0)
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Error("second Acquire should proceed after Release")
	}
}

func TestDiskPrepRegistryDistinctDisksDoNotBlock(t *testing.T) {
	reg := NewDiskPrepRegistry()
	reg.Acquire(0)
	done := make(chan bool, 1)
	go func() {
		reg.Acquire(1)
		reg.Release(1)
		done <- true
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Error("distinct disk indices should not block each other")
	}
	reg.Release(0)
}
