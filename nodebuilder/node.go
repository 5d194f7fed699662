package nodebuilder

import (
	"context"
	"errors"
	"fmt"
	"time"

	logging "github.com/ipfs/go-log/v2"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/peer"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap/zapcore"

	"github.com/cantina-forks/dal-node/api/gateway"
	"github.com/cantina-forks/dal-node/chain"
	"github.com/cantina-forks/dal-node/gossip"
	"github.com/cantina-forks/dal-node/nodectx"
	"github.com/cantina-forks/dal-node/store"
)

var (
	log   = logging.Logger("nodebuilder")
	fxLog = logging.Logger("fx")
)

// DefaultLifecycleTimeout bounds Start and Stop of the assembled node.
var DefaultLifecycleTimeout = time.Minute * 2

// Node keeps references to all node components in one place. Components
// are filled in by the DI container during assembly.
type Node struct {
	fx.In `ignore-unexported:"true"`

	Config  *Config
	NodeCtx *nodectx.Context

	GatewayServer *gateway.Server `optional:"true"`

	Host    host.Host
	Gossip  *gossip.Manager
	Chain   chain.Client
	Crawler *chain.Crawler
	Store   *store.Store

	// start and stop ref the internal fx.App lifecycle funcs
	start, stop lifecycleFunc
}

// New assembles a new Node over Store 'store' with its stored config.
func New(store Store, options ...fx.Option) (*Node, error) {
	cfg, err := store.Config()
	if err != nil {
		return nil, err
	}
	return NewWithConfig(store, cfg, options...)
}

// NewWithConfig assembles a new Node over Store 'store' and a custom config.
func NewWithConfig(store Store, cfg *Config, options ...fx.Option) (*Node, error) {
	opts := append([]fx.Option{ConstructModule(cfg, store)}, options...)
	return newNode(opts...)
}

// Start launches the Node and all its components.
func (n *Node) Start(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, DefaultLifecycleTimeout)
	defer cancel()

	err := n.start(ctx)
	if err != nil {
		log.Debugf("error starting node: %s", err)
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("node: failed to start within timeout(%s): %w", DefaultLifecycleTimeout, err)
		}
		return fmt.Errorf("node: failed to start: %w", err)
	}

	log.Info("started DAL node")
	addrs, err := peer.AddrInfoToP2pAddrs(host.InfoFromHost(n.Host))
	if err != nil {
		log.Errorw("retrieving multiaddress information", "err", err)
		return err
	}
	for _, addr := range addrs {
		log.Infof("p2p host listening on %s", addr)
	}
	return nil
}

// Run starts the Node and blocks on the given context until it is canceled.
// The Node is still running afterwards and should be stopped via Stop.
func (n *Node) Run(ctx context.Context) error {
	err := n.Start(ctx)
	if err != nil {
		return err
	}

	<-ctx.Done()
	return ctx.Err()
}

// Stop shuts down the Node and all its running components. Canceling 'ctx'
// aborts graceful shutdown and forces remaining components to close.
func (n *Node) Stop(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, DefaultLifecycleTimeout)
	defer cancel()

	err := n.stop(ctx)
	if err != nil {
		log.Debugf("error stopping node: %s", err)
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("node: failed to stop within timeout(%s): %w", DefaultLifecycleTimeout, err)
		}
		return fmt.Errorf("node: failed to stop: %w", err)
	}

	log.Debug("stopped node")
	return nil
}

func newNode(opts ...fx.Option) (*Node, error) {
	node := new(Node)
	app := fx.New(
		fx.WithLogger(func() fxevent.Logger {
			zl := &fxevent.ZapLogger{Logger: fxLog.Desugar()}
			zl.UseLogLevel(zapcore.DebugLevel)
			return zl
		}),
		fx.Populate(node),
		fx.Options(opts...),
	)
	if err := app.Err(); err != nil {
		return nil, err
	}

	node.start, node.stop = app.Start, app.Stop
	return node, nil
}

// lifecycleFunc defines a type for common lifecycle funcs.
type lifecycleFunc func(context.Context) error
