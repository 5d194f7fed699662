// Package nodectx holds the root node state: a two-state lifecycle gating
// every read and write path of the DAL node. The node starts in Starting
// and transitions to Ready exactly once, when the chain crawler resolves
// the first protocol plugin.
package nodectx

import (
	"context"
	"errors"
	"sync/atomic"

	logging "github.com/ipfs/go-log/v2"

	"github.com/cantina-forks/dal-node/dal"
	"github.com/cantina-forks/dal-node/protocol"
)

var log = logging.Logger("nodectx")

// ErrNotReady is returned by GetReady while the node is still starting.
// RPC surfaces map it to a distinct "service starting" response.
var ErrNotReady = errors.New("nodectx: node is not ready")

// Context is the root object of the node. Its state cell is an atomic
// pointer to an immutable Ready value: nil while starting, set exactly once
// by SetReady.
type Context struct {
	ready   atomic.Pointer[Ready]
	readyCh chan struct{}
}

func New() *Context {
	return &Context{readyCh: make(chan struct{})}
}

// GetReady returns the ready context, or ErrNotReady while the node is
// starting. It never blocks; components that must wait use WaitReady.
func (c *Context) GetReady() (*Ready, error) {
	r := c.ready.Load()
	if r == nil {
		return nil, ErrNotReady
	}
	return r, nil
}

// WaitReady suspends the caller until the node becomes Ready or ctx
// expires. All waiters are released exactly once, in no particular order.
func (c *Context) WaitReady(ctx context.Context) (*Ready, error) {
	select {
	case <-c.readyCh:
		return c.ready.Load(), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// SetReady performs the one-shot Starting → Ready transition: it seeds the
// plugin registry window ending at currentLevel, installs the protocol
// parameters and releases all WaitReady callers.
//
// Calling SetReady on an already-ready Context is a coordination bug in
// the crawler and panics rather than continuing with undefined state.
func (c *Context) SetReady(
	ctx context.Context,
	resolver protocol.Resolver,
	plugin protocol.Plugin,
	params dal.Parameters,
	currentLevel int64,
) error {
	if c.ready.Load() != nil {
		panic("nodectx: SetReady called twice")
	}

	registry := protocol.NewRegistry(resolver)
	err := registry.InitialPlugins(ctx, currentLevel, plugin.AttestationLag())
	if err != nil {
		return err
	}

	ready, err := newReady(params, registry)
	if err != nil {
		return err
	}
	if !c.ready.CompareAndSwap(nil, ready) {
		panic("nodectx: SetReady called twice")
	}
	close(c.readyCh)

	log.Infow("node is ready",
		"proto", plugin.Name(), "level", currentLevel, "shards", params.ShardCount)
	return nil
}
