package alloc

import "slices"

// emptyBucket is the key of table slots that back no clusters.
const emptyBucket = 0

// freeMap is a multimap from span length to block indices.
// Indices within a bucket keep insertion order.
type freeMap map[int64][]int

func (m freeMap) add(length int64, index int) {
	m[length] = append(m[length], index)
}

func (m freeMap) remove(length int64, index int) bool {
	bucket := m[length]
	i := slices.Index(bucket, index)
	if i < 0 {
		return false
	}
	bucket = slices.Delete(bucket, i, i+1)
	if len(bucket) == 0 {
		delete(m, length)
		return true
	}
	m[length] = bucket
	return true
}

// first returns the oldest index in the bucket for length.
func (m freeMap) first(length int64) (int, bool) {
	bucket := m[length]
	if len(bucket) == 0 {
		return 0, false
	}
	return bucket[0], true
}

// bestFit returns the smallest non-empty bucket length >= want.
func (m freeMap) bestFit(want int64) (int64, bool) {
	best := int64(-1)
	for length, bucket := range m {
		if length == emptyBucket || len(bucket) == 0 || length < want {
			continue
		}
		if best < 0 || length < best {
			best = length
		}
	}
	return best, best >= 0
}
