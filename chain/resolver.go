package chain

import (
	"context"
	"errors"
	"fmt"

	"github.com/cantina-forks/dal-node/dal"
	"github.com/cantina-forks/dal-node/protocol"
)

// ErrUnknownProtocol is returned by the client when the host chain does
// not know the requested protocol generation.
var ErrUnknownProtocol = errors.New("chain: unknown protocol")

// Resolver implements protocol.Resolver over a host-chain Client. Each
// resolved plugin delegates committee computation back to the chain.
type Resolver struct {
	client Client
}

func NewResolver(client Client) *Resolver {
	return &Resolver{client: client}
}

func (r *Resolver) PluginForProto(ctx context.Context, protoLevel int) (protocol.Plugin, error) {
	info, err := r.client.ProtocolInfo(ctx, protoLevel)
	if err != nil {
		if errors.Is(err, ErrUnknownProtocol) {
			return nil, fmt.Errorf("%w: %d", protocol.ErrNoPluginForProto, protoLevel)
		}
		return nil, err
	}
	if err := info.Parameters.Validate(); err != nil {
		return nil, err
	}
	return &plugin{info: info, client: r.client}, nil
}

func (r *Resolver) ProtoOfLevel(ctx context.Context, level int64) (int, error) {
	return r.client.ProtoOfLevel(ctx, level)
}

// plugin is the concrete protocol-behavior module for one generation. Its
// constants come from the chain-reported ProtocolInfo; its committee
// computation is a chain query.
type plugin struct {
	info   ProtocolInfo
	client Client
}

func (p *plugin) Name() string               { return p.info.Name }
func (p *plugin) ProtoLevel() int            { return p.info.ProtoLevel }
func (p *plugin) Parameters() dal.Parameters { return p.info.Parameters }
func (p *plugin) AttestationLag() int64      { return p.info.Parameters.AttestationLag }
func (p *plugin) SlotCount() int             { return p.info.NumberOfSlots }

func (p *plugin) Committee(ctx context.Context, level int64) (dal.Committee, error) {
	return p.client.CommitteeForLevel(ctx, level)
}
