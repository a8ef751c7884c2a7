// Package partitioner picks the partition a message is produced to.
package partitioner

import (
	"errors"
	"sync"

	"github.com/cespare/xxhash/v2"
	"go.uber.org/atomic"
)

var ErrNoPartitions = errors.New("topic has no partitions")

// Partitioner returns one of partitions for a message with key. A nil key
// means the message has no key.
type Partitioner interface {
	Partition(topic string, key []byte, partitions []int32) (int32, error)
}

// Hash maps key to a partition with xxhash64(key) modulo the number of
// partitions. The same key goes to the same partition for as long as the
// partitions of the topic don't change. Note that this is not the murmur2
// hash used by the Java client, so keyed messages are not colocated with
// messages produced by it.
func Hash(key []byte, partitions []int32) (int32, error) {
	if len(partitions) == 0 {
		return 0, ErrNoPartitions
	}
	return partitions[xxhash.Sum64(key)%uint64(len(partitions))], nil
}

// RoundRobin cycles through partitions of each topic, starting with the
// first one. Safe for concurrent use.
type RoundRobin struct {
	mu       sync.Mutex
	counters map[string]*atomic.Uint64
}

func (r *RoundRobin) counter(topic string) *atomic.Uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.counters == nil {
		r.counters = make(map[string]*atomic.Uint64)
	}
	c, ok := r.counters[topic]
	if !ok {
		c = atomic.NewUint64(0)
		r.counters[topic] = c
	}
	return c
}

// Partition ignores the key.
func (r *RoundRobin) Partition(topic string, _ []byte, partitions []int32) (int32, error) {
	if len(partitions) == 0 {
		return 0, ErrNoPartitions
	}
	n := r.counter(topic).Inc() - 1
	return partitions[n%uint64(len(partitions))], nil
}

// LoadBalanced hashes keyed messages (see Hash) and spreads messages with no
// key evenly over partitions (see RoundRobin). The zero value is ready to
// use.
type LoadBalanced struct {
	RoundRobin
}

func (p *LoadBalanced) Partition(topic string, key []byte, partitions []int32) (int32, error) {
	if key == nil {
		return p.RoundRobin.Partition(topic, nil, partitions)
	}
	return Hash(key, partitions)
}

var (
	_ Partitioner = &RoundRobin{}
	_ Partitioner = &LoadBalanced{}
)
