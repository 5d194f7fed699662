// Package coder implements the node's development slot coder: commitments
// are content hashes and shards are replicated splits of the padded slot.
// It stands in for the production erasure-coding and commitment scheme,
// which is an external collaborator, while keeping the coding contract
// observable: a threshold subset of shards reconstructs the slot.
package coder

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	"github.com/cantina-forks/dal-node/dal"
)

// ErrInsufficientShards is returned by Reconstruct when the provided
// shards do not cover every data segment of the slot.
var ErrInsufficientShards = fmt.Errorf("coder: insufficient shards")

// Coder derives commitments and shards for a fixed parameter set.
type Coder struct {
	params dal.Parameters
}

func New(params dal.Parameters) (*Coder, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if params.ShardCount%params.RedundancyFactor != 0 {
		return nil, fmt.Errorf("coder: shard count %d not divisible by redundancy %d",
			params.ShardCount, params.RedundancyFactor)
	}
	// segments must tile the slot exactly or shard payloads lose tail bytes
	segments := params.ShardCount / params.RedundancyFactor
	if params.SlotSize%segments != 0 {
		return nil, fmt.Errorf("coder: slot size %d not divisible by segment count %d",
			params.SlotSize, segments)
	}
	return &Coder{params: params}, nil
}

// segments is the number of distinct data segments per slot; each segment
// appears in RedundancyFactor shards.
func (c *Coder) segments() int {
	return c.params.ShardCount / c.params.RedundancyFactor
}

// Commit derives the slot's commitment and proof from its content.
func (c *Coder) Commit(data []byte) (dal.Commitment, []byte, error) {
	if len(data) > c.params.SlotSize {
		return nil, nil, fmt.Errorf("coder: slot content %d exceeds slot size %d",
			len(data), c.params.SlotSize)
	}
	sum := sha256.Sum256(c.pad(data))
	proof := make([]byte, 8+len(sum))
	binary.BigEndian.PutUint64(proof, uint64(len(data)))
	copy(proof[8:], sum[:])
	return sum[:], proof, nil
}

// Shards splits the padded slot into its shard set.
func (c *Coder) Shards(data []byte) ([]dal.Shard, error) {
	if len(data) > c.params.SlotSize {
		return nil, fmt.Errorf("coder: slot content %d exceeds slot size %d",
			len(data), c.params.SlotSize)
	}
	padded := c.pad(data)
	segments := c.segments()
	segSize := c.params.SlotSize / segments

	shards := make([]dal.Shard, c.params.ShardCount)
	for i := range shards {
		seg := i % segments
		payload := padded[seg*segSize : (seg+1)*segSize]
		sum := sha256.Sum256(payload)
		shards[i] = dal.Shard{Index: i, Payload: payload, Proof: sum[:]}
	}
	return shards, nil
}

// Reconstruct rebuilds the padded slot content from any subset of shards
// covering every segment.
func (c *Coder) Reconstruct(shards []dal.Shard) ([]byte, error) {
	segments := c.segments()
	segSize := c.params.SlotSize / segments

	found := make([][]byte, segments)
	covered := 0
	for _, shard := range shards {
		if shard.Index < 0 || shard.Index >= c.params.ShardCount {
			return nil, fmt.Errorf("coder: shard index %d out of range", shard.Index)
		}
		if len(shard.Payload) != segSize {
			return nil, fmt.Errorf("coder: shard %d payload size %d, want %d",
				shard.Index, len(shard.Payload), segSize)
		}
		seg := shard.Index % segments
		if found[seg] == nil {
			found[seg] = shard.Payload
			covered++
		}
	}
	if covered < segments {
		return nil, fmt.Errorf("%w: %d of %d segments covered", ErrInsufficientShards, covered, segments)
	}

	slot := make([]byte, 0, c.params.SlotSize)
	for _, payload := range found {
		slot = append(slot, payload...)
	}
	return slot, nil
}

func (c *Coder) pad(data []byte) []byte {
	padded := make([]byte, c.params.SlotSize)
	copy(padded, data)
	return padded
}
