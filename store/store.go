// Package store persists slots, shards, proofs and slot-header statuses in
// a key-value datastore, fronting reads with fixed-capacity LRU caches.
// The datastore is an opaque collaborator assumed durable and
// read-your-writes consistent; this package adds only keying, caching and
// the header notification fan-out.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/ipfs/go-datastore"
	logging "github.com/ipfs/go-log/v2"
	"golang.org/x/sync/errgroup"

	"github.com/cantina-forks/dal-node/dal"
	"github.com/cantina-forks/dal-node/dal/cache"
)

var log = logging.Logger("store")

// ErrNotFound is returned when the requested slot, shard or proof is not
// known to the node.
var ErrNotFound = errors.New("store: not found")

var (
	slotPrefix   = datastore.NewKey("/slots")
	shardPrefix  = datastore.NewKey("/shards")
	proofPrefix  = datastore.NewKey("/proofs")
	headerPrefix = datastore.NewKey("/headers")
)

// Parameters fix the cache capacities at construction time so tests can
// shrink them for deterministic eviction.
type Parameters struct {
	// SlotCacheSize bounds reconstructed slots kept in memory.
	SlotCacheSize int
	// ShardCacheSize bounds individual shards; the default covers roughly
	// five levels of five slots each at typical shard counts.
	ShardCacheSize int
	// ProofCacheSize bounds shard proofs; the default covers several
	// levels of a full slot-index range.
	ProofCacheSize int
}

// DefaultParameters returns the production cache capacities.
func DefaultParameters() Parameters {
	return Parameters{
		SlotCacheSize:  25,
		ShardCacheSize: 2048,
		ProofCacheSize: 1024,
	}
}

func (p Parameters) Validate() error {
	if p.SlotCacheSize <= 0 || p.ShardCacheSize <= 0 || p.ProofCacheSize <= 0 {
		return fmt.Errorf("store: non-positive cache capacity: %+v", p)
	}
	return nil
}

type shardKey struct {
	commitment string
	index      int
}

// Store is the node's shard/slot persistence layer.
type Store struct {
	ds datastore.Datastore

	slots  *cache.Cache[string, []byte]
	shards *cache.Cache[shardKey, dal.Shard]
	proofs *cache.Cache[string, []byte]

	// headerMu serializes the read-modify-write of per-block header lists
	headerMu  sync.Mutex
	headerSub *headerSub
}

func New(ds datastore.Datastore, params Parameters) (*Store, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	slots, err := cache.New[string, []byte]("slot", params.SlotCacheSize)
	if err != nil {
		return nil, err
	}
	shards, err := cache.New[shardKey, dal.Shard]("shard", params.ShardCacheSize)
	if err != nil {
		return nil, err
	}
	proofs, err := cache.New[string, []byte]("proof", params.ProofCacheSize)
	if err != nil {
		return nil, err
	}
	return &Store{
		ds:        ds,
		slots:     slots,
		shards:    shards,
		proofs:    proofs,
		headerSub: newHeaderSub(),
	}, nil
}

// Stop terminates all header subscriptions. Streaming readers observe a
// clean end of stream rather than an error.
func (s *Store) Stop(context.Context) error {
	s.headerSub.close()
	return nil
}

// PutSlot stores the full content of a slot under its commitment.
func (s *Store) PutSlot(ctx context.Context, commitment dal.Commitment, data []byte) error {
	if err := s.ds.Put(ctx, slotKey(commitment), data); err != nil {
		return fmt.Errorf("store: putting slot %s: %w", commitment, err)
	}
	s.slots.Put(commitment.String(), data)
	return nil
}

// GetSlot returns the full content of a slot, or ErrNotFound.
func (s *Store) GetSlot(ctx context.Context, commitment dal.Commitment) ([]byte, error) {
	if data, err := s.slots.Get(commitment.String()); err == nil {
		return data, nil
	}
	data, err := s.ds.Get(ctx, slotKey(commitment))
	if err != nil {
		return nil, wrapNotFound(err, "slot %s", commitment)
	}
	s.slots.Put(commitment.String(), data)
	return data, nil
}

// Pages splits a stored slot into its fixed-size pages, zero-padding the
// content up to the slot size.
func (s *Store) Pages(
	ctx context.Context,
	commitment dal.Commitment,
	params dal.Parameters,
) ([][]byte, error) {
	data, err := s.GetSlot(ctx, commitment)
	if err != nil {
		return nil, err
	}
	if len(data) < params.SlotSize {
		padded := make([]byte, params.SlotSize)
		copy(padded, data)
		data = padded
	}
	pages := make([][]byte, params.PageCount())
	for i := range pages {
		pages[i] = data[i*params.PageSize : (i+1)*params.PageSize]
	}
	return pages, nil
}

// PutShard stores one shard of the committed slot.
func (s *Store) PutShard(ctx context.Context, commitment dal.Commitment, shard dal.Shard) error {
	data, err := json.Marshal(shard)
	if err != nil {
		return fmt.Errorf("store: encoding shard %s/%d: %w", commitment, shard.Index, err)
	}
	if err := s.ds.Put(ctx, shardDSKey(commitment, shard.Index), data); err != nil {
		return fmt.Errorf("store: putting shard %s/%d: %w", commitment, shard.Index, err)
	}
	s.shards.Put(shardKey{commitment.String(), shard.Index}, shard)
	return nil
}

// GetShard returns one shard of the committed slot, or ErrNotFound.
func (s *Store) GetShard(ctx context.Context, commitment dal.Commitment, index int) (dal.Shard, error) {
	if shard, err := s.shards.Get(shardKey{commitment.String(), index}); err == nil {
		return shard, nil
	}
	data, err := s.ds.Get(ctx, shardDSKey(commitment, index))
	if err != nil {
		return dal.Shard{}, wrapNotFound(err, "shard %s/%d", commitment, index)
	}
	var shard dal.Shard
	if err := json.Unmarshal(data, &shard); err != nil {
		return dal.Shard{}, fmt.Errorf("store: decoding shard %s/%d: %w", commitment, index, err)
	}
	s.shards.Put(shardKey{commitment.String(), index}, shard)
	return shard, nil
}

// GetShards fetches the given shard indices concurrently. Any missing
// index fails the whole call.
func (s *Store) GetShards(
	ctx context.Context,
	commitment dal.Commitment,
	indices []int,
) ([]dal.Shard, error) {
	shards := make([]dal.Shard, len(indices))
	g, gctx := errgroup.WithContext(ctx)
	for i, idx := range indices {
		g.Go(func() error {
			shard, err := s.GetShard(gctx, commitment, idx)
			if err != nil {
				return err
			}
			shards[i] = shard
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return shards, nil
}

// PutProof stores the commitment proof of a slot.
func (s *Store) PutProof(ctx context.Context, commitment dal.Commitment, proof []byte) error {
	if err := s.ds.Put(ctx, proofKey(commitment), proof); err != nil {
		return fmt.Errorf("store: putting proof %s: %w", commitment, err)
	}
	s.proofs.Put(commitment.String(), proof)
	return nil
}

// GetProof returns the commitment proof of a slot, or ErrNotFound.
func (s *Store) GetProof(ctx context.Context, commitment dal.Commitment) ([]byte, error) {
	if proof, err := s.proofs.Get(commitment.String()); err == nil {
		return proof, nil
	}
	proof, err := s.ds.Get(ctx, proofKey(commitment))
	if err != nil {
		return nil, wrapNotFound(err, "proof %s", commitment)
	}
	s.proofs.Put(commitment.String(), proof)
	return proof, nil
}

// AddHeaderStatus records a slot header observed in the given block and
// notifies monitor subscribers.
func (s *Store) AddHeaderStatus(ctx context.Context, blockHash string, header dal.SlotHeader) error {
	s.headerMu.Lock()
	defer s.headerMu.Unlock()

	headers, err := s.HeaderStatuses(ctx, blockHash)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	headers = append(headers, header)
	data, err := json.Marshal(headers)
	if err != nil {
		return fmt.Errorf("store: encoding headers for block %s: %w", blockHash, err)
	}
	if err := s.ds.Put(ctx, headerKey(blockHash), data); err != nil {
		return fmt.Errorf("store: putting headers for block %s: %w", blockHash, err)
	}
	s.headerSub.publish(header)
	return nil
}

// HeaderStatuses returns every (commitment, status) pair known for the
// given block hash.
func (s *Store) HeaderStatuses(ctx context.Context, blockHash string) ([]dal.SlotHeader, error) {
	data, err := s.ds.Get(ctx, headerKey(blockHash))
	if err != nil {
		return nil, wrapNotFound(err, "headers for block %s", blockHash)
	}
	var headers []dal.SlotHeader
	if err := json.Unmarshal(data, &headers); err != nil {
		return nil, fmt.Errorf("store: decoding headers for block %s: %w", blockHash, err)
	}
	return headers, nil
}

// WatchHeaders subscribes to newly observed slot headers. The channel
// closes when the subscription is cancelled or the store stops.
func (s *Store) WatchHeaders() (<-chan dal.SlotHeader, func()) {
	return s.headerSub.subscribe()
}

// EnableMetrics turns on cache hit/miss/eviction metrics.
func (s *Store) EnableMetrics() error {
	if _, err := s.slots.EnableMetrics(); err != nil {
		return err
	}
	if _, err := s.proofs.EnableMetrics(); err != nil {
		return err
	}
	_, err := s.shards.EnableMetrics()
	return err
}

func slotKey(c dal.Commitment) datastore.Key {
	return slotPrefix.ChildString(c.String())
}

func shardDSKey(c dal.Commitment, index int) datastore.Key {
	return shardPrefix.ChildString(c.String()).ChildString(fmt.Sprintf("%d", index))
}

func proofKey(c dal.Commitment) datastore.Key {
	return proofPrefix.ChildString(c.String())
}

func headerKey(blockHash string) datastore.Key {
	return headerPrefix.ChildString(blockHash)
}

func wrapNotFound(err error, format string, args ...any) error {
	if errors.Is(err, datastore.ErrNotFound) {
		return fmt.Errorf("%w: "+format, append([]any{ErrNotFound}, args...)...)
	}
	return fmt.Errorf("store: getting "+format+": %w", append(args, err)...)
}
