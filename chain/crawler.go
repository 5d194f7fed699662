package chain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/cantina-forks/dal-node/nodectx"
	"github.com/cantina-forks/dal-node/protocol"
)

// DefaultRetryDelay is how long the crawler waits before resubscribing to
// the block stream after a transport failure. Escalating backoff belongs
// to the transport layer, not here.
const DefaultRetryDelay = 5 * time.Second

// Crawler replays the host chain's finalized block stream in level order.
// While the node is Starting it resolves the first plugin and fires the
// one-shot readiness transition; once Ready it extends the plugin registry
// across protocol migrations.
type Crawler struct {
	client   Client
	resolver *Resolver
	node     *nodectx.Context

	retryDelay time.Duration
	clock      clock.Clock

	cancel context.CancelFunc
	done   chan struct{}
}

// Option configures a Crawler.
type Option func(*Crawler)

// WithRetryDelay overrides the stream resubscription delay.
func WithRetryDelay(d time.Duration) Option {
	return func(c *Crawler) { c.retryDelay = d }
}

// WithClock substitutes the wall clock, for tests.
func WithClock(clk clock.Clock) Option {
	return func(c *Crawler) { c.clock = clk }
}

func NewCrawler(client Client, node *nodectx.Context, opts ...Option) *Crawler {
	c := &Crawler{
		client:     client,
		resolver:   NewResolver(client),
		node:       node,
		retryDelay: DefaultRetryDelay,
		clock:      clock.New(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start launches the crawl loop.
func (c *Crawler) Start(context.Context) error {
	if c.cancel != nil {
		return fmt.Errorf("chain: crawler already started")
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.done = make(chan struct{})

	go c.run(ctx)
	return nil
}

// Stop terminates the crawl loop and waits for it to exit.
func (c *Crawler) Stop(ctx context.Context) error {
	if c.cancel == nil {
		return fmt.Errorf("chain: crawler not started")
	}
	c.cancel()
	select {
	case <-c.done:
		c.cancel = nil
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Crawler) run(ctx context.Context) {
	defer close(c.done)

	for {
		stream, err := c.client.BlockStream(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Errorw("subscribing to block stream", "err", err)
			if !c.sleep(ctx) {
				return
			}
			continue
		}

		c.consume(ctx, stream)
		if ctx.Err() != nil {
			return
		}
		log.Warnw("block stream interrupted, resubscribing", "delay", c.retryDelay)
		if !c.sleep(ctx) {
			return
		}
	}
}

// consume processes blocks until the stream closes or ctx expires.
func (c *Crawler) consume(ctx context.Context, stream <-chan BlockInfo) {
	for {
		select {
		case block, ok := <-stream:
			if !ok {
				return
			}
			if err := c.onBlock(ctx, block); err != nil {
				// transient: the next block retries resolution
				log.Errorw("processing block",
					"level", block.Level, "hash", block.Hash, "err", err)
			}
		case <-ctx.Done():
			return
		}
	}
}

func (c *Crawler) onBlock(ctx context.Context, block BlockInfo) error {
	ready, err := c.node.GetReady()
	if errors.Is(err, nodectx.ErrNotReady) {
		return c.tryReady(ctx, block)
	}
	return ready.Registry.MayAdd(ctx, block.Level, block.ProtoLevel)
}

// tryReady resolves the plugins for the head's current and next protocol
// generations and fires the readiness transition. Resolution of the next
// generation is best effort: it only pre-warms the chain's plugin lookup.
func (c *Crawler) tryReady(ctx context.Context, block BlockInfo) error {
	plugin, err := protocol.ResolvePluginForLevel(ctx, c.resolver, block.Level)
	if err != nil {
		return err
	}

	protos, err := c.client.ProtocolsAtHead(ctx)
	if err != nil {
		return err
	}
	if protos.Next != protos.Current {
		if _, err := c.resolver.PluginForProto(ctx, protos.Next); err != nil {
			log.Debugw("next protocol plugin not yet resolvable",
				"proto", protos.Next, "err", err)
		}
	}

	return c.node.SetReady(ctx, c.resolver, plugin, plugin.Parameters(), block.Level)
}

// sleep waits the retry delay. Returns false if ctx expired meanwhile.
func (c *Crawler) sleep(ctx context.Context) bool {
	timer := c.clock.Timer(c.retryDelay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
