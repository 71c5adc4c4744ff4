package wire

import (
	"errors"
	"testing"

	"github.com/clelom/titan/internal/errcode"
	"github.com/clelom/titan/internal/packet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeader(t *testing.T) {
	t.Parallel()
	assert.Equal(t, byte(0x10), Header(TypeConfig))
	assert.Equal(t, byte(0x1B), Header(TypeCacheStore))
	assert.Equal(t, "cache_start", TypeCacheStart.String())
}

func TestCacheStart_HostLayout(t *testing.T) {
	t.Parallel()
	frame := []byte{0x1A, 2, 1, 0, 0, 5 << 4, 0}

	got, err := DecodeCacheStart(frame)
	require.NoError(t, err)

	assert.Equal(t, ConfigHeader{NumTasks: 2, NumConns: 1, ConfigID: 5}, got.Header)
	assert.Equal(t, frame[:6], EncodeCacheStart(got))
}

func TestErrorReport_Layout(t *testing.T) {
	t.Parallel()
	rep := errcode.Report{NodeID: 0x0102, ConfigID: 3, Source: 0xFF, Code: errcode.NoMemory}

	frame := EncodeError(rep)

	assert.Equal(t, []byte{0x18, 0x01, 0x02, 3, 0xFF, 1}, frame)
	got, err := DecodeError(frame)
	require.NoError(t, err)
	assert.Equal(t, rep, got)
}

func TestData_FullPacketFitsMTU(t *testing.T) {
	t.Parallel()
	p, err := packet.New(packet.Uint8, make([]byte, packet.Size))
	require.NoError(t, err)

	frame, err := EncodeData(Data{Port: 2, Packet: p})
	require.NoError(t, err)
	assert.Len(t, frame, MTU)

	got, err := DecodeData(frame)
	require.NoError(t, err)
	assert.Equal(t, uint8(2), got.Port)
	assert.Equal(t, p, got.Packet)
}

func TestForward(t *testing.T) {
	t.Parallel()
	inner := EncodeCfgStart(CfgStart{Master: 0, ConfigID: 4})
	m := Forward{Hops: 2, Visited: []uint16{1, 7}, Dest: 9, Inner: inner}

	frame, err := EncodeForward(m)
	require.NoError(t, err)
	assert.Len(t, frame, ForwardOverhead(2)+len(inner))

	got, err := DecodeForward(frame)
	require.NoError(t, err)
	assert.Equal(t, m, got)
	assert.True(t, got.Seen(7))
	assert.False(t, got.Seen(9))

	m.Inner = make([]byte, MTU)
	_, err = EncodeForward(m)
	assert.True(t, errors.Is(err, errcode.ErrOutboundBufferFull))
}

func TestDiscoverReply_CappedAtMTU(t *testing.T) {
	t.Parallel()
	kinds := make([]uint16, 40)
	for i := range kinds {
		kinds[i] = uint16(i)
	}

	frame := EncodeDiscoverReply(DiscoverReply{NodeID: 5, Kinds: kinds})
	assert.LessOrEqual(t, len(frame), MTU)

	got, err := DecodeDiscoverReply(frame)
	require.NoError(t, err)
	assert.Equal(t, kinds[:MaxDiscoverKinds], got.Kinds)
}

func TestDiscover_Scope(t *testing.T) {
	t.Parallel()
	got, err := DecodeDiscover(EncodeDiscover(Discover{Source: 0xABCD, Scope: ScopeEnvironment}))
	require.NoError(t, err)
	assert.Equal(t, Discover{Source: 0xABCD, Scope: ScopeEnvironment}, got)

	_, err = DecodeDiscover([]byte{0x14, 0, 0, 7})
	assert.Error(t, err)
}
