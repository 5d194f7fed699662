package dal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommitmentRoundtrip(t *testing.T) {
	in := Commitment{0xde, 0xad, 0xbe, 0xef}

	out, err := CommitmentFromString(in.String())
	require.NoError(t, err)
	assert.True(t, in.Equal(out))

	_, err = CommitmentFromString("not-hex")
	assert.Error(t, err)
}

func TestShardIndexesContains(t *testing.T) {
	si := ShardIndexes{0, 3, 7, 12}

	assert.True(t, si.Contains(0))
	assert.True(t, si.Contains(7))
	assert.False(t, si.Contains(5))
	assert.False(t, si.Contains(13))
	assert.False(t, ShardIndexes(nil).Contains(0))
}

func TestCommitteeAssignment(t *testing.T) {
	c := Committee{"tz1alice": {0, 1}, "tz1bob": {2}}

	si, ok := c.Assignment("tz1alice")
	require.True(t, ok)
	assert.Equal(t, ShardIndexes{0, 1}, si)

	_, ok = c.Assignment("tz1carol")
	assert.False(t, ok)
}

func TestParametersValidate(t *testing.T) {
	valid := Parameters{
		SlotSize:         4096,
		PageSize:         128,
		ShardCount:       64,
		RedundancyFactor: 8,
		AttestationLag:   4,
	}
	require.NoError(t, valid.Validate())
	assert.Equal(t, 32, valid.PageCount())

	tests := []struct {
		name   string
		mangle func(*Parameters)
	}{
		{"zero slot size", func(p *Parameters) { p.SlotSize = 0 }},
		{"page size not dividing slot size", func(p *Parameters) { p.PageSize = 100 }},
		{"zero shard count", func(p *Parameters) { p.ShardCount = 0 }},
		{"negative attestation lag", func(p *Parameters) { p.AttestationLag = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := valid
			tt.mangle(&p)
			assert.Error(t, p.Validate())
		})
	}
}
