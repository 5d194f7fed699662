// Package recovery deduplicates concurrent slot reconstructions and tracks
// in-flight shard amplification jobs.
package recovery

import (
	"context"
	"sync"

	logging "github.com/ipfs/go-log/v2"

	"github.com/cantina-forks/dal-node/dal"
)

var log = logging.Logger("recovery")

// ReconstructFn recovers the full content of a slot from the shards
// currently available. It may fail when too few shards are stored or a
// shard proof does not verify.
type ReconstructFn func(ctx context.Context, id dal.SlotID) ([]byte, error)

// job is one in-flight reconstruction. done is closed exactly once, after
// which data/err are immutable.
type job struct {
	done chan struct{}
	data []byte
	err  error
}

// Coordinator guarantees at most one reconstruction runs per SlotID at any
// time, no matter how many callers request it concurrently. Completed
// results are not memoized: once a job's handle is removed, a later request
// for the same slot starts a fresh computation.
//
// Amplification tracking is a plain membership set with independent
// semantics; an amplification and a reconstruction for the same slot may
// run concurrently.
type Coordinator struct {
	mu         sync.Mutex
	jobs       map[dal.SlotID]*job
	amplifying map[dal.SlotID]struct{}
}

func NewCoordinator() *Coordinator {
	return &Coordinator{
		jobs:       make(map[dal.SlotID]*job),
		amplifying: make(map[dal.SlotID]struct{}),
	}
}

// ReconstructOrJoin runs fn for the given slot, or attaches to an already
// running reconstruction of the same slot. Every attached caller receives
// the identical result, success or failure.
//
// The computation is owned by the first caller's goroutine but is not
// cancelled when that caller's context expires: late joiners still await
// the shared outcome. A joiner whose own context expires gives up waiting
// and returns the context error, leaving the computation running.
func (c *Coordinator) ReconstructOrJoin(
	ctx context.Context,
	id dal.SlotID,
	fn ReconstructFn,
) ([]byte, error) {
	c.mu.Lock()
	if j, ok := c.jobs[id]; ok {
		c.mu.Unlock()
		return j.wait(ctx)
	}

	j := &job{done: make(chan struct{})}
	c.jobs[id] = j
	c.mu.Unlock()

	log.Debugw("starting reconstruction", "slot", id)
	j.data, j.err = fn(context.WithoutCancel(ctx), id)

	// remove the handle before releasing waiters so a caller woken here
	// and immediately retrying starts a fresh job
	c.mu.Lock()
	delete(c.jobs, id)
	c.mu.Unlock()
	close(j.done)

	return j.data, j.err
}

// Reconstructing reports whether a reconstruction is currently in flight
// for the given slot.
func (c *Coordinator) Reconstructing(id dal.SlotID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.jobs[id]
	return ok
}

// StartAmplification marks the slot as being amplified. It returns false
// if an amplification for the slot is already in flight, in which case the
// caller must not start another.
func (c *Coordinator) StartAmplification(id dal.SlotID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.amplifying[id]; ok {
		return false
	}
	c.amplifying[id] = struct{}{}
	return true
}

// FinishAmplification clears the amplification mark for the slot.
func (c *Coordinator) FinishAmplification(id dal.SlotID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.amplifying, id)
}

// Amplifying reports whether an amplification is in flight for the slot.
func (c *Coordinator) Amplifying(id dal.SlotID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.amplifying[id]
	return ok
}

func (j *job) wait(ctx context.Context) ([]byte, error) {
	select {
	case <-j.done:
		return j.data, j.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
