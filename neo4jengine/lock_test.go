package neo4jengine

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestPhaseMutexSharesEachPhase(t *testing.T) {
	var m phaseMutex

	// Both readers hold the lock at once; neither would return otherwise.
	m.RLock()
	m.RLock()
	m.RUnlock()
	m.RUnlock()

	m.WLock()
	m.WLock()
	m.WUnlock()
	m.WUnlock()
}

func TestPhaseMutexExcludesTheOtherPhase(t *testing.T) {
	var m phaseMutex
	var inside atomic.Bool

	m.WLock()
	done := make(chan struct{})
	go func() {
		defer close(done)
		m.RLock()
		inside.Store(true)
		m.RUnlock()
	}()

	time.Sleep(20 * time.Millisecond)
	if inside.Load() {
		t.Fatal("reader entered while a writer held the lock")
	}
	m.WUnlock()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("reader did not enter after the writer released the lock")
	}
}

// Readers keep arriving while a writer waits; the writer must still get in.
func TestPhaseMutexDoesNotStarveWriters(t *testing.T) {
	var m phaseMutex
	stop := make(chan struct{})
	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				m.RLock()
				time.Sleep(time.Millisecond)
				m.RUnlock()
			}
		}()
	}

	acquired := make(chan struct{})
	go func() {
		m.WLock()
		close(acquired)
		m.WUnlock()
	}()

	select {
	case <-acquired:
	case <-time.After(5 * time.Second):
		t.Error("writer starved by a stream of readers")
	}
	close(stop)
	wg.Wait()
}

func TestPhaseMutexUnlockPanics(t *testing.T) {
	for name, unlock := range map[string]func(*phaseMutex){
		"RUnlock": (*phaseMutex).RUnlock,
		"WUnlock": (*phaseMutex).WUnlock,
	} {
		t.Run(name, func(t *testing.T) {
			var m phaseMutex
			defer func() {
				if recover() == nil {
					t.Errorf("%v of unlocked mutex did not panic", name)
				}
			}()
			unlock(&m)
		})
	}
}
