package protocol

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cantina-forks/dal-node/dal"
)

type fakePlugin struct {
	name  string
	proto int
}

func (p *fakePlugin) Name() string               { return p.name }
func (p *fakePlugin) ProtoLevel() int            { return p.proto }
func (p *fakePlugin) Parameters() dal.Parameters { return dal.Parameters{} }
func (p *fakePlugin) AttestationLag() int64      { return 4 }
func (p *fakePlugin) SlotCount() int             { return 32 }
func (p *fakePlugin) Committee(context.Context, int64) (dal.Committee, error) {
	return dal.Committee{}, nil
}

// fakeResolver serves protocol generations from a level→proto table.
type fakeResolver struct {
	protoAt  func(level int64) int
	resolved int // PluginForProto call counter
}

func (r *fakeResolver) PluginForProto(_ context.Context, protoLevel int) (Plugin, error) {
	r.resolved++
	return &fakePlugin{name: fmt.Sprintf("proto_%03d", protoLevel), proto: protoLevel}, nil
}

func (r *fakeResolver) ProtoOfLevel(_ context.Context, level int64) (int, error) {
	return r.protoAt(level), nil
}

func TestRegistry_PluginForLevel(t *testing.T) {
	reg := NewRegistry(&fakeResolver{})
	reg.insert(entry{firstLevel: 1, plugin: &fakePlugin{proto: 1}})
	reg.insert(entry{firstLevel: 100, plugin: &fakePlugin{proto: 2}})

	_, err := reg.PluginForLevel(0)
	assert.ErrorIs(t, err, ErrNoPluginForLevel)

	for level, wantProto := range map[int64]int{1: 1, 50: 1, 99: 1, 100: 2, 1000: 2} {
		p, err := reg.PluginForLevel(level)
		require.NoError(t, err)
		assert.Equal(t, wantProto, p.ProtoLevel(), "level %d", level)
	}
}

func TestRegistry_MayAddIdempotent(t *testing.T) {
	r := &fakeResolver{protoAt: func(int64) int { return 1 }}
	reg := NewRegistry(r)

	require.NoError(t, reg.MayAdd(context.Background(), 10, 1))
	require.NoError(t, reg.MayAdd(context.Background(), 10, 1))
	require.NoError(t, reg.MayAdd(context.Background(), 11, 1))

	assert.Equal(t, 1, reg.Len())
	assert.Equal(t, 1, r.resolved)
}

func TestRegistry_MigrationBoundary(t *testing.T) {
	protoAt := func(level int64) int {
		if level >= 100 {
			return 2
		}
		return 1
	}
	reg := NewRegistry(&fakeResolver{protoAt: protoAt})

	// replay a block sequence crossing the migration
	for level := int64(95); level <= 105; level++ {
		require.NoError(t, reg.MayAdd(context.Background(), migrationStart(level, protoAt), protoAt(level)))
	}

	p99, err := reg.PluginForLevel(99)
	require.NoError(t, err)
	p100, err := reg.PluginForLevel(100)
	require.NoError(t, err)
	assert.Equal(t, 1, p99.ProtoLevel())
	assert.Equal(t, 2, p100.ProtoLevel())
}

// migrationStart mimics the crawler passing the first level of the current
// protocol generation.
func migrationStart(level int64, protoAt func(int64) int) int64 {
	first := level
	for first > 0 && protoAt(first-1) == protoAt(level) {
		first--
	}
	return first
}

func TestRegistry_InitialPluginsCoversWindow(t *testing.T) {
	protoAt := func(level int64) int {
		if level >= 100 {
			return 2
		}
		return 1
	}
	reg := NewRegistry(&fakeResolver{protoAt: protoAt})

	const currentLevel, lag = int64(101), int64(4)
	require.NoError(t, reg.InitialPlugins(context.Background(), currentLevel, lag))

	// two generations in the window, two entries
	assert.Equal(t, 2, reg.Len())
	for level := currentLevel - (lag + 2) + 1; level <= currentLevel; level++ {
		p, err := reg.PluginForLevel(level)
		require.NoError(t, err, "level %d", level)
		assert.Equal(t, protoAt(level), p.ProtoLevel(), "level %d", level)
	}
}

func TestResolvePluginForLevel(t *testing.T) {
	r := &fakeResolver{protoAt: func(int64) int { return 7 }}
	p, err := ResolvePluginForLevel(context.Background(), r, 42)
	require.NoError(t, err)
	assert.Equal(t, 7, p.ProtoLevel())
}
