package nodebuilder

import (
	"context"
	"fmt"

	"github.com/ipfs/go-datastore"
	"github.com/libp2p/go-libp2p"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/peer"
	ma "github.com/multiformats/go-multiaddr"
	"go.uber.org/fx"

	"github.com/cantina-forks/dal-node/api/gateway"
	"github.com/cantina-forks/dal-node/chain"
	"github.com/cantina-forks/dal-node/dal"
	"github.com/cantina-forks/dal-node/dal/coder"
	"github.com/cantina-forks/dal-node/gossip"
	"github.com/cantina-forks/dal-node/nodectx"
	"github.com/cantina-forks/dal-node/store"
)

// ConstructModule assembles every node component as an fx option tree.
func ConstructModule(cfg *Config, nodeStore Store) fx.Option {
	if err := cfg.Validate(); err != nil {
		return fx.Error(err)
	}

	return fx.Options(
		fx.Supply(cfg),
		fx.Provide(func(lc fx.Lifecycle) context.Context {
			return withLifecycle(context.Background(), lc)
		}),
		fx.Provide(nodectx.New),
		fx.Provide(nodeStore.Datastore),
		fx.Provide(newP2PHost(cfg)),
		fx.Provide(newGossipManager),
		fx.Provide(newChainClient(cfg)),
		fx.Provide(newCrawler(cfg)),
		fx.Provide(newStore(cfg)),
		fx.Provide(newCoder),
		fx.Provide(gateway.NewHandler),
		fx.Provide(newGatewayServer(cfg)),
		fx.Invoke(startCrawler),
		fx.Invoke(startGateway(cfg)),
	)
}

func newP2PHost(cfg *Config) func(fx.Lifecycle) (host.Host, error) {
	return func(lc fx.Lifecycle) (host.Host, error) {
		h, err := libp2p.New(libp2p.ListenAddrStrings(cfg.P2P.ListenAddresses...))
		if err != nil {
			return nil, fmt.Errorf("nodebuilder: creating libp2p host: %w", err)
		}
		lc.Append(fx.Hook{
			OnStart: func(ctx context.Context) error {
				bootstrap(ctx, h, cfg.P2P)
				return nil
			},
			OnStop: func(context.Context) error {
				return h.Close()
			},
		})
		return h, nil
	}
}

// bootstrap dials the configured bootstrap peers, best effort.
func bootstrap(ctx context.Context, h host.Host, cfg P2PConfig) {
	for _, addr := range cfg.BootstrapPeers {
		maddr, err := ma.NewMultiaddr(addr)
		if err != nil {
			log.Warnw("parsing bootstrap peer", "addr", addr, "err", err)
			continue
		}
		info, err := peer.AddrInfoFromP2pAddr(maddr)
		if err != nil {
			log.Warnw("parsing bootstrap peer", "addr", addr, "err", err)
			continue
		}
		dialCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
		if err := h.Connect(dialCtx, *info); err != nil {
			log.Warnw("connecting bootstrap peer", "addr", addr, "err", err)
		}
		cancel()
	}
}

func newGossipManager(ctx context.Context, h host.Host, lc fx.Lifecycle) (*gossip.Manager, error) {
	m, err := gossip.NewManager(ctx, h)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{OnStop: m.Stop})
	return m, nil
}

func newChainClient(cfg *Config) func() chain.Client {
	return func() chain.Client {
		return chain.NewHTTPClient(cfg.Chain.RPCAddress)
	}
}

func newCrawler(cfg *Config) func(chain.Client, *nodectx.Context) *chain.Crawler {
	return func(client chain.Client, node *nodectx.Context) *chain.Crawler {
		return chain.NewCrawler(client, node, chain.WithRetryDelay(cfg.Chain.RetryDelay))
	}
}

func newStore(cfg *Config) func(datastore.Batching, fx.Lifecycle) (*store.Store, error) {
	return func(ds datastore.Batching, lc fx.Lifecycle) (*store.Store, error) {
		s, err := store.New(ds, cfg.StoreParameters())
		if err != nil {
			return nil, err
		}
		lc.Append(fx.Hook{OnStop: s.Stop})
		return s, nil
	}
}

func newCoder(node *nodectx.Context) gateway.Coder {
	return &lazyCoder{node: node}
}

func newGatewayServer(cfg *Config) func() *gateway.Server {
	return func() *gateway.Server {
		return gateway.NewServer(cfg.Gateway.Address, cfg.Gateway.Port)
	}
}

func startCrawler(lc fx.Lifecycle, crawler *chain.Crawler) {
	lc.Append(fx.Hook{
		OnStart: crawler.Start,
		OnStop:  crawler.Stop,
	})
}

func startGateway(cfg *Config) func(fx.Lifecycle, *gateway.Server, *gateway.Handler) {
	return func(lc fx.Lifecycle, srv *gateway.Server, handler *gateway.Handler) {
		if !cfg.Gateway.Enabled {
			return
		}
		handler.RegisterEndpoints(srv)
		lc.Append(fx.Hook{
			OnStart: srv.Start,
			OnStop:  srv.Stop,
		})
	}
}

// withLifecycle cancels the returned context when the fx app stops.
func withLifecycle(ctx context.Context, lc fx.Lifecycle) context.Context {
	ctx, cancel := context.WithCancel(ctx)
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			cancel()
			return nil
		},
	})
	return ctx
}

// lazyCoder resolves coding parameters from the ready context at call
// time, so gateway posts before readiness fail with the not-ready
// response instead of coding with wrong geometry.
type lazyCoder struct {
	node *nodectx.Context
}

func (lc *lazyCoder) instance() (*coder.Coder, error) {
	ready, err := lc.node.GetReady()
	if err != nil {
		return nil, err
	}
	return coder.New(ready.Params)
}

func (lc *lazyCoder) Commit(data []byte) (dal.Commitment, []byte, error) {
	inst, err := lc.instance()
	if err != nil {
		return nil, nil, err
	}
	return inst.Commit(data)
}

func (lc *lazyCoder) Shards(data []byte) ([]dal.Shard, error) {
	inst, err := lc.instance()
	if err != nil {
		return nil, err
	}
	return inst.Shards(data)
}
