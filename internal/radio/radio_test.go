package radio

import (
	"context"
	"testing"

	"github.com/clelom/titan/internal/errcode"
	"github.com/clelom/titan/internal/testutil"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func attach(t *testing.T, m *Medium, id uint16) *Port {
	t.Helper()
	p, err := m.Attach(id)
	require.NoError(t, err)
	return p
}

func TestMedium_UnicastAndBroadcast(t *testing.T) {
	t.Parallel()
	// --- Arrange ---
	logger, _ := testutil.NewTestLogger()
	m := NewMedium(logger)
	a, b, c := attach(t, m, 1), attach(t, m, 2), attach(t, m, 3)
	ctx := context.Background()

	// --- Act ---
	payload := []byte{0x13, 0x01}
	require.NoError(t, a.Send(ctx, 2, payload))
	payload[1] = 0xEE
	require.NoError(t, b.Send(ctx, BroadcastAddr, []byte{0x14}))
	assert.ErrorIs(t, c.Send(ctx, 42, []byte{0x17}), ErrNoAck)

	// --- Assert ---
	got := <-b.Frames()
	if diff := cmp.Diff(Frame{Src: 1, Dst: 2, Payload: []byte{0x13, 0x01}}, got); diff != "" {
		t.Errorf("unicast frame mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, Frame{Src: 2, Dst: BroadcastAddr, Payload: []byte{0x14}}, <-a.Frames())
	assert.Equal(t, Frame{Src: 2, Dst: BroadcastAddr, Payload: []byte{0x14}}, <-c.Frames())
	assert.Empty(t, b.Frames())
	assert.Equal(t, []uint16{1, 2, 3}, m.Endpoints())
}

func TestMedium_FilterAndLimits(t *testing.T) {
	t.Parallel()
	logger, _ := testutil.NewTestLogger()
	m := NewMedium(logger)
	a, b := attach(t, m, 1), attach(t, m, 2)
	ctx := context.Background()
	m.SetFilter(func(f Frame, _ uint16) bool { return f.Payload[0] != 0xFF })

	assert.ErrorIs(t, a.Send(ctx, 2, []byte{0xFF}), ErrNoAck)
	require.NoError(t, a.Send(ctx, 2, []byte{0x01}))
	err := a.Send(ctx, 2, make([]byte, 40))

	assert.ErrorIs(t, err, errcode.ErrOutboundBufferFull)
	assert.Equal(t, []byte{0x01}, (<-b.Frames()).Payload)

	_, err = m.Attach(1)
	assert.Error(t, err)
	require.NoError(t, b.Close())
	_, open := <-b.Frames()
	assert.False(t, open)
	assert.ErrorIs(t, b.Send(ctx, 1, []byte{1}), ErrClosed)
	assert.ErrorIs(t, a.Send(ctx, 2, []byte{0x01}), ErrNoAck)
}

func TestFrameEvent_RoundTrip(t *testing.T) {
	t.Parallel()
	f := Frame{Src: 7, Dst: BroadcastAddr, Payload: []byte{0x14, 0, 7, 0}}
	ev := encodeFrameEvent(f)
	// JSON decoding on the receiving side turns numbers into float64.
	jsonShaped := map[string]any{"src": float64(7), "dst": float64(0xFFFF), "payload": ev["payload"]}

	got, err := decodeFrameEvent(jsonShaped)

	require.NoError(t, err)
	assert.Equal(t, f, got)
}

func TestFrameEvent_Rejects(t *testing.T) {
	t.Parallel()
	testCases := []struct {
		name string
		data []any
	}{
		{name: "no arguments", data: nil},
		{name: "not an object", data: []any{"frame"}},
		{name: "missing src", data: []any{map[string]any{"dst": float64(1), "payload": ""}}},
		{name: "fractional address", data: []any{map[string]any{"src": 1.5, "dst": float64(1), "payload": ""}}},
		{name: "bad payload", data: []any{map[string]any{"src": float64(1), "dst": float64(1), "payload": "%%"}}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := decodeFrameEvent(tc.data...)
			assert.Error(t, err)
		})
	}
}

func TestMedium_FilterPerReceiver(t *testing.T) {
	t.Parallel()
	logger, _ := testutil.NewTestLogger()
	m := NewMedium(logger)
	a, b, c := attach(t, m, 1), attach(t, m, 2), attach(t, m, 3)
	ctx := context.Background()
	// 1 and 3 are out of range of each other.
	m.SetFilter(func(f Frame, to uint16) bool { return !(f.Src == 1 && to == 3) && !(f.Src == 3 && to == 1) })

	require.NoError(t, a.Send(ctx, BroadcastAddr, []byte{0x14}))
	assert.ErrorIs(t, a.Send(ctx, 3, []byte{0x17}), ErrNoAck)
	require.NoError(t, c.Send(ctx, 2, []byte{0x17}))

	assert.Len(t, b.Frames(), 2)
	assert.Empty(t, c.Frames())
	assert.Empty(t, a.Frames())
}
