package hcl

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/clelom/titan/internal/config"
	"github.com/hashicorp/hcl/v2"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	"github.com/zclconf/go-cty/cty/function"
	"github.com/zclconf/go-cty/cty/function/stdlib"
	"github.com/zclconf/go-cty/cty/gocty"
)

// evalContext evaluates config_data expressions. Node addresses are
// available as node.<name> and the master address as master.
type evalContext struct {
	hcl *hcl.EvalContext
}

func newEvalContext(m *config.Model) *evalContext {
	nodes := make(map[string]cty.Value, len(m.Nodes))
	for _, n := range m.Nodes {
		nodes[n.Name] = cty.NumberIntVal(int64(n.ID))
	}
	return &evalContext{hcl: &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"node":   cty.ObjectVal(nodes),
			"master": cty.NumberIntVal(int64(m.Master.ID)),
		},
		Functions: map[string]function.Function{
			"route":  routeFunc,
			"concat": stdlib.ConcatFunc,
		},
	}}
}

// routeFunc encodes a communicator route: route(dest, port) yields the
// bytes [destHi, destLo, port].
var routeFunc = function.New(&function.Spec{
	Params: []function.Parameter{
		{Name: "dest", Type: cty.Number},
		{Name: "port", Type: cty.Number},
	},
	Type: function.StaticReturnType(cty.List(cty.Number)),
	Impl: func(args []cty.Value, _ cty.Type) (cty.Value, error) {
		var dest, port int
		if err := gocty.FromCtyValue(args[0], &dest); err != nil {
			return cty.NilVal, fmt.Errorf("dest: %w", err)
		}
		if err := gocty.FromCtyValue(args[1], &port); err != nil {
			return cty.NilVal, fmt.Errorf("port: %w", err)
		}
		if dest < 0 || dest > 0xFFFF || port < 0 || port > 0xFF {
			return cty.NilVal, fmt.Errorf("route(%d, %d) out of range", dest, port)
		}
		return cty.ListVal([]cty.Value{
			cty.NumberIntVal(int64(dest >> 8)),
			cty.NumberIntVal(int64(dest & 0xFF)),
			cty.NumberIntVal(int64(port)),
		}), nil
	},
})

// configData evaluates expr into task config bytes. A null expression yields
// no data.
func (e *evalContext) configData(expr hcl.Expression) ([]byte, error) {
	if expr == nil {
		return nil, nil
	}
	val, diags := expr.Value(e.hcl)
	if diags.HasErrors() {
		return nil, diags
	}
	if val.IsNull() {
		return nil, nil
	}
	if val.Type() == cty.String {
		s := strings.TrimPrefix(strings.ReplaceAll(val.AsString(), " ", ""), "0x")
		b, err := hex.DecodeString(s)
		if err != nil {
			return nil, fmt.Errorf("config_data is not a hex string: %w", err)
		}
		return b, nil
	}

	list, err := convert.Convert(val, cty.List(cty.Number))
	if err != nil {
		return nil, fmt.Errorf("config_data must be a list of numbers or a hex string, got %s", val.Type().FriendlyName())
	}
	var ints []int
	if err := gocty.FromCtyValue(list, &ints); err != nil {
		return nil, fmt.Errorf("config_data: %w", err)
	}
	out := make([]byte, len(ints))
	for i, v := range ints {
		if v < 0 || v > 0xFF {
			return nil, fmt.Errorf("config_data[%d] = %d is not a byte", i, v)
		}
		out[i] = byte(v)
	}
	return out, nil
}
