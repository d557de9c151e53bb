package service

import (
	"hash/fnv"
	"sync"

	"github.com/roadcall/roadcall/internal/core/domain"
)

const lockShards = 64

// plateLocks stripes per-identity mutexes so operations on the same plate
// serialize without a store-wide lock.
type plateLocks struct {
	shards [lockShards]sync.Mutex
}

func (l *plateLocks) indexFor(p domain.Plate) uint32 {
	h := fnv.New32a()
	h.Write([]byte(p))
	return h.Sum32() % lockShards
}

func (l *plateLocks) forPlate(p domain.Plate) *sync.Mutex {
	return &l.shards[l.indexFor(p)]
}

// lockPair acquires both plates' shards in index order, so concurrent
// create calls for the same pair cannot deadlock.
func (l *plateLocks) lockPair(a, b domain.Plate) func() {
	ia, ib := l.indexFor(a), l.indexFor(b)
	if ia == ib {
		m := &l.shards[ia]
		m.Lock()
		return m.Unlock
	}
	if ia > ib {
		ia, ib = ib, ia
	}
	l.shards[ia].Lock()
	l.shards[ib].Lock()
	return func() {
		l.shards[ib].Unlock()
		l.shards[ia].Unlock()
	}
}
