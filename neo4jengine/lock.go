package neo4jengine

import (
	"sync"
)

// A phaseMutex admits either readers or writers, never both at once. Any
// number of readers may hold it together, and so may any number of writers.
//
// Neo4j runs transactions at read-committed isolation: consecutive queries of a
// single read transaction may observe different commits. A resolution issues
// many queries, so it must not overlap a commit. Writers can still share the
// lock because Neo4j serialises conflicting writes by locking the nodes they
// touch.
//
// While one side holds the lock, a waiting member of the other side stops new
// members of the holding side from entering; the phases therefore alternate and
// neither side starves. The zero value is an unlocked mutex.
type phaseMutex struct {
	mu   sync.Mutex
	cond *sync.Cond

	readers, writers               int // Holders of each phase.
	waitingReaders, waitingWriters int
}

func (m *phaseMutex) init() {
	if m.cond == nil {
		m.cond = sync.NewCond(&m.mu)
	}
}

// RLock locks m for reading, blocking while writers hold it.
func (m *phaseMutex) RLock() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.init()
	for m.writers > 0 || (m.waitingWriters > 0 && m.readers > 0) {
		m.waitingReaders++
		m.cond.Wait()
		m.waitingReaders--
	}
	m.readers++
}

// RUnlock undoes a single RLock call.
func (m *phaseMutex) RUnlock() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.readers == 0 {
		panic("neo4jengine: RUnlock of phaseMutex not locked for reading")
	}
	m.readers--
	if m.readers == 0 {
		m.cond.Broadcast()
	}
}

// WLock locks m for writing, blocking while readers hold it.
func (m *phaseMutex) WLock() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.init()
	for m.readers > 0 || (m.waitingReaders > 0 && m.writers > 0) {
		m.waitingWriters++
		m.cond.Wait()
		m.waitingWriters--
	}
	m.writers++
}

// WUnlock undoes a single WLock call.
func (m *phaseMutex) WUnlock() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.writers == 0 {
		panic("neo4jengine: WUnlock of phaseMutex not locked for writing")
	}
	m.writers--
	if m.writers == 0 {
		m.cond.Broadcast()
	}
}
