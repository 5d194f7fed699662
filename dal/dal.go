// Package dal defines the core types shared across the data-availability
// node: slot and shard identities, commitments, per-level committees and
// the protocol-level parameters that govern slot geometry.
package dal

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"sort"
)

// SlotID identifies a single data blob published at a given level.
// It is comparable and used as a map key throughout the node.
type SlotID struct {
	Level int64 `json:"level"`
	Index uint8 `json:"index"`
}

func (id SlotID) String() string {
	return fmt.Sprintf("%d/%d", id.Level, id.Index)
}

// Commitment is an opaque cryptographic digest identifying a slot's content.
// The node treats it as a byte value with equality and a hex encoding; the
// scheme producing it lives behind the coder.
type Commitment []byte

func (c Commitment) String() string {
	return hex.EncodeToString(c)
}

func (c Commitment) Equal(other Commitment) bool {
	return bytes.Equal(c, other)
}

// CommitmentFromString decodes the hex form produced by Commitment.String.
func CommitmentFromString(s string) (Commitment, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("dal: decoding commitment: %w", err)
	}
	return Commitment(b), nil
}

// Shard is one erasure-coded fragment of a slot. A threshold subset of a
// slot's shards suffices to reconstruct the slot's full content.
type Shard struct {
	Index   int    `json:"index"`
	Payload []byte `json:"payload"`
	Proof   []byte `json:"proof"`
}

// ShardIndexes is the set of shard indices assigned to one participant,
// kept sorted ascending.
type ShardIndexes []int

// Contains reports whether idx is assigned.
func (si ShardIndexes) Contains(idx int) bool {
	i := sort.SearchInts(si, idx)
	return i < len(si) && si[i] == idx
}

// Committee maps a participant identity (public key hash) to the shard
// indices it is responsible for at a given level. A Committee is computed
// from finalized host-chain state and is immutable once fetched.
type Committee map[string]ShardIndexes

// Assignment returns the shard indices assigned to the given participant.
func (c Committee) Assignment(participant string) (ShardIndexes, bool) {
	si, ok := c[participant]
	return si, ok
}

// Parameters are the cryptographic and geometric constants of the DAL at a
// given protocol generation. Slots are zero-padded to SlotSize and split
// into SlotSize/PageSize pages.
type Parameters struct {
	SlotSize         int   `json:"slot_size"`
	PageSize         int   `json:"page_size"`
	ShardCount       int   `json:"number_of_shards"`
	RedundancyFactor int   `json:"redundancy_factor"`
	AttestationLag   int64 `json:"attestation_lag"`
}

// Validate checks internal consistency of the parameter set.
func (p Parameters) Validate() error {
	if p.SlotSize <= 0 || p.PageSize <= 0 {
		return fmt.Errorf("dal: non-positive slot/page size: %d/%d", p.SlotSize, p.PageSize)
	}
	if p.SlotSize%p.PageSize != 0 {
		return fmt.Errorf("dal: slot size %d not a multiple of page size %d", p.SlotSize, p.PageSize)
	}
	if p.ShardCount <= 0 {
		return fmt.Errorf("dal: non-positive shard count: %d", p.ShardCount)
	}
	if p.AttestationLag < 0 {
		return fmt.Errorf("dal: negative attestation lag: %d", p.AttestationLag)
	}
	return nil
}

// PageCount returns the number of pages a slot splits into.
func (p Parameters) PageCount() int {
	return p.SlotSize / p.PageSize
}

// HeaderStatus describes what the node knows about a slot header observed
// on the host chain.
type HeaderStatus string

const (
	// StatusWaitingAttestation marks a header published but not yet past
	// its attestation level.
	StatusWaitingAttestation HeaderStatus = "waiting_attestation"
	// StatusAttested marks a header attested by enough committee members.
	StatusAttested HeaderStatus = "attested"
	// StatusUnattested marks a header whose attestation level passed
	// without enough attestations.
	StatusUnattested HeaderStatus = "unattested"
)

// SlotHeader ties a commitment to the slot it was published for, together
// with its attestation status.
type SlotHeader struct {
	ID         SlotID       `json:"slot_id"`
	Commitment Commitment   `json:"commitment"`
	Status     HeaderStatus `json:"status"`
}
