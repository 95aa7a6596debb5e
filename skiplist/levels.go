package skiplist

import "math/rand/v2"

// randomLevel samples a node height in [0, maxLevel] with geometric
// distribution p=0.5: start at 0, keep climbing while a fair coin lands
// heads and the ceiling hasn't been hit.
//
// math/rand/v2's package-level generator is the right tool here: unlike
// math/rand's default source (one mutex-guarded global Source), it is
// designed for concurrent callers to draw from without contending on a
// shared lock or needing to carry their own seeded state per goroutine, so
// independent insertions sample independent heights without any extra
// plumbing on our part.
func randomLevel(maxLevel int) int {
	level := 0
	for level < maxLevel && rand.Float64() < 0.5 {
		level++
	}
	return level
}
