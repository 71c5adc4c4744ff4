package sensor

import (
	"testing"

	"github.com/clelom/titan/internal/errcode"
	"github.com/clelom/titan/internal/packet"
	"github.com/clelom/titan/internal/registry"
	"github.com/clelom/titan/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func kind(t *testing.T) registry.Kind {
	t.Helper()
	r := registry.New()
	(&Module{}).Register(r)
	k, ok := r.Kind(UID)
	require.True(t, ok)
	return *k
}

func TestSensor_ForwardsSamples(t *testing.T) {
	t.Parallel()
	ctx, _ := testutil.Context(t)
	task, err := testutil.NewTaskContext(ctx, kind(t), nil)
	require.NoError(t, err)
	var p packet.Packet
	require.NoError(t, p.PutInt16s(packet.Int16, []int16{-3, 4}))
	task.Feed(registry.PortExternal, p)

	require.NoError(t, kind(t).Run(task, registry.PortExternal))

	assert.Equal(t, uint8(0), task.Cfg.InPorts)
	assert.Equal(t, []testutil.Output{{Port: 0, Packet: p}}, task.Outputs)
}

func TestSensor_RejectsGraphInput(t *testing.T) {
	t.Parallel()
	ctx, _ := testutil.Context(t)
	task, err := testutil.NewTaskContext(ctx, kind(t), []byte{1})
	require.NoError(t, err)

	err = kind(t).Run(task, 0)

	assert.ErrorIs(t, err, errcode.ErrUnexpectedInput)
}

func TestSensor_IsSingletonEnvironmentKind(t *testing.T) {
	t.Parallel()
	k := kind(t)

	assert.True(t, k.Singleton)
	assert.Equal(t, registry.Environment, k.Category)
}
