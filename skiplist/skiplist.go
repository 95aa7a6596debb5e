// Package skiplist implements a lock-coupled concurrent ordered map keyed by
// uint64, following the lazy skip list design (Herlihy, Lev, Luchangco,
// Shavit): lookups are lock-free, and insert/erase take per-node locks only
// on the handful of predecessors they are about to rewrite.
package skiplist

import (
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
)

// MaxKey is reserved for the tail sentinel. Insert rejects it.
const MaxKey uint64 = math.MaxUint64

// DefaultMaxLevel is 19, giving 20 levels.
const DefaultMaxLevel = 19

// node is one element of the skip list. Every field a concurrent reader
// touches without holding a lock (forward, marked, fullyLinked) is atomic.
type node struct {
	sync.Mutex
	key         uint64
	value       []byte
	topLevel    int
	marked      atomic.Bool
	fullyLinked atomic.Bool
	forward     []atomic.Pointer[node]
}

func newNode(key uint64, value []byte, topLevel int) *node {
	n := &node{key: key, value: value, topLevel: topLevel}
	n.forward = make([]atomic.Pointer[node], topLevel+1)
	return n
}

// SkipList is a concurrent ordered map from uint64 to []byte.
type SkipList struct {
	maxLevel int
	head     *node
	tail     *node
	size     atomic.Int64
}

// New builds an empty skip list whose tallest node may participate in
// levels 0..maxLevel inclusive.
func New(maxLevel int) *SkipList {
	if maxLevel < 0 {
		maxLevel = 0
	}

	tail := newNode(MaxKey, nil, 0)
	tail.fullyLinked.Store(true)

	head := newNode(0, nil, maxLevel)
	for level := 0; level <= maxLevel; level++ {
		head.forward[level].Store(tail)
	}
	head.fullyLinked.Store(true)

	s := &SkipList{maxLevel: maxLevel, head: head, tail: tail}
	slog.Info("skiplist created", "maxLevel", maxLevel)
	return s
}

// find performs the lock-free descent shared by Insert, Erase and Contains.
// It returns, for every level from maxLevel down to 0, the last node with a
// smaller key (preds) and the first node with a key >= key (succs), plus the
// highest level at which a node with exactly this key was observed (-1 if
// none was).
//
// find makes no promise that preds/succs are still accurate by the time the
// caller inspects them: callers that intend to mutate must revalidate under
// lock.
func (s *SkipList) find(key uint64) (foundLevel int, preds, succs []*node) {
	foundLevel = -1
	preds = make([]*node, s.maxLevel+1)
	succs = make([]*node, s.maxLevel+1)

	pred := s.head
	for level := s.maxLevel; level >= 0; level-- {
		curr := pred.forward[level].Load()
		for curr.key < key {
			pred = curr
			curr = pred.forward[level].Load()
		}
		if foundLevel == -1 && curr.key == key {
			foundLevel = level
		}
		preds[level] = pred
		succs[level] = curr
	}
	return foundLevel, preds, succs
}

// lockDistinct locks preds[0..top] in ascending level order, skipping a
// predecessor that is identical (by pointer) to the one just locked. Because
// find descends top-down, repeated predecessors across adjacent levels are
// always contiguous, so a simple "differs from previous" check is enough to
// avoid double-locking or deadlocking against another goroutine doing the
// same walk in the same order.
func lockDistinct(preds []*node, top int) []*node {
	locked := make([]*node, 0, top+1)
	var prev *node
	for level := 0; level <= top; level++ {
		p := preds[level]
		if p != prev {
			p.Lock()
			locked = append(locked, p)
			prev = p
		}
	}
	return locked
}

func unlockAll(locked []*node) {
	for i := len(locked) - 1; i >= 0; i-- {
		locked[i].Unlock()
	}
}

// Insert adds key/value if key is not already present. It returns true iff
// the key was newly inserted; an existing live key is left untouched.
func (s *SkipList) Insert(key uint64, value []byte) bool {
	if key == MaxKey {
		slog.Warn("rejected insert of reserved max key", "key", key)
		return false
	}

	topLayer := randomLevel(s.maxLevel)
	slog.Debug("insert", "key", key, "topLayer", topLayer)

	for {
		foundLevel, preds, succs := s.find(key)
		if foundLevel != -1 {
			found := succs[foundLevel]
			if found.marked.Load() {
				// a concurrent erase is in flight for this key; re-descend
				// once it resolves rather than racing it.
				continue
			}
			for !found.fullyLinked.Load() {
				// another insert is still publishing this node's links.
			}
			return false
		}

		locked := lockDistinct(preds, topLayer)

		valid := true
		for level := 0; valid && level <= topLayer; level++ {
			pred, succ := preds[level], succs[level]
			valid = !pred.marked.Load() && !succ.marked.Load() && pred.forward[level].Load() == succ
		}
		if !valid {
			unlockAll(locked)
			continue
		}

		n := newNode(key, value, topLayer)
		for level := 0; level <= topLayer; level++ {
			n.forward[level].Store(succs[level])
		}
		for level := 0; level <= topLayer; level++ {
			preds[level].forward[level].Store(n)
		}
		n.fullyLinked.Store(true)
		unlockAll(locked)
		s.size.Add(1)
		return true
	}
}

// okToDelete reports whether node may be physically unlinked through level:
// it must be fully linked, not already marked, and level must be its own
// top level — otherwise a taller node that merely shares a level with the
// target could be mistaken for it.
func okToDelete(n *node, level int) bool {
	return n.fullyLinked.Load() && n.topLevel == level && !n.marked.Load()
}

// Erase removes key if it is present. It returns true iff a live node was
// removed.
func (s *SkipList) Erase(key uint64) bool {
	slog.Debug("erase", "key", key)
	if key == MaxKey {
		return false
	}

	var victim *node
	isMarked := false
	topLayer := -1

	for {
		foundLevel, preds, succs := s.find(key)

		if !isMarked {
			if foundLevel == -1 || !okToDelete(succs[foundLevel], foundLevel) {
				return false
			}
			victim = succs[foundLevel]
			topLayer = victim.topLevel
			victim.Lock()
			if victim.marked.Load() {
				victim.Unlock()
				return false
			}
			victim.marked.Store(true)
			isMarked = true
		}

		locked := lockDistinct(preds, topLayer)

		valid := true
		for level := 0; valid && level <= topLayer; level++ {
			valid = !preds[level].marked.Load() && preds[level].forward[level].Load() == victim
		}
		if !valid {
			unlockAll(locked)
			continue
		}

		for level := topLayer; level >= 0; level-- {
			preds[level].forward[level].Store(victim.forward[level].Load())
		}
		unlockAll(locked)
		victim.Unlock()
		s.size.Add(-1)
		return true
	}
}

// Contains reports whether key is currently a live member. It never blocks.
func (s *SkipList) Contains(key uint64) bool {
	if key == MaxKey {
		return false
	}
	foundLevel, _, succs := s.find(key)
	if foundLevel == -1 {
		return false
	}
	found := succs[foundLevel]
	return found.fullyLinked.Load() && !found.marked.Load()
}

// Value returns the byte string stored under key, if key is currently a
// live member. Like Contains, it never blocks: value is written once,
// before fullyLinked is published, and never mutated again, so the same
// acquire-load that makes Contains safe makes this safe too.
func (s *SkipList) Value(key uint64) ([]byte, bool) {
	if key == MaxKey {
		return nil, false
	}
	foundLevel, _, succs := s.find(key)
	if foundLevel == -1 {
		return nil, false
	}
	found := succs[foundLevel]
	if !found.fullyLinked.Load() || found.marked.Load() {
		return nil, false
	}
	return found.value, true
}

// Len returns the number of live keys. Under concurrent mutation this is a
// snapshot, not a linearizable count.
func (s *SkipList) Len() int {
	return int(s.size.Load())
}

// Traverse walks the bottom level from head to tail with no locking and
// returns the keys of every node observed live at the instant of the read.
// It is a debug aid, not a concurrent operation: a concurrent Insert/Erase
// may cause it to skip or repeat entries.
func (s *SkipList) Traverse() []uint64 {
	keys := make([]uint64, 0)
	for curr := s.head.forward[0].Load(); curr != s.tail; curr = curr.forward[0].Load() {
		if curr.fullyLinked.Load() && !curr.marked.Load() {
			keys = append(keys, curr.key)
		}
	}
	return keys
}
