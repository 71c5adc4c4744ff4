package node

import (
	"context"
	"errors"

	"github.com/clelom/titan/internal/errcode"
	"github.com/clelom/titan/internal/packet"
	"github.com/clelom/titan/internal/radio"
	"github.com/clelom/titan/internal/retry"
	"github.com/clelom/titan/internal/wire"
)

// raise turns err into an error report for configID. Errors without a code
// are reported as UnexpectedInput.
func (n *Node) raise(ctx context.Context, configID uint8, err error) {
	code, ok := errcode.CodeOf(err)
	if !ok {
		code = errcode.UnexpectedInput
	}
	source := errcode.SourceFramework
	var ce *errcode.Error
	if errors.As(err, &ce) {
		source = ce.Source
	}
	n.metrics.Error(n.id, code.String())
	n.Report(ctx, errcode.Report{NodeID: n.id, ConfigID: configID, Source: source, Code: code})
}

// Report implements errcode.Reporter. The report is logged and sent to the
// master with the data retry policy. Without a known master it is only
// logged.
func (n *Node) Report(ctx context.Context, rep errcode.Report) {
	n.logger.Warn("Error raised.", "config", rep.ConfigID, "source", rep.Source, "code", rep.Code)
	if !n.hasMaster {
		return
	}
	n.deliver(ctx, n.master, wire.TypeError, wire.EncodeError(rep))
}

// SendData implements executor.Sender for communicator tasks.
func (n *Node) SendData(ctx context.Context, dest uint16, port uint8, p packet.Packet) error {
	frame, err := wire.EncodeData(wire.Data{Port: port, Packet: p})
	if err != nil {
		return err
	}
	n.deliver(ctx, dest, wire.TypeData, frame)
	return nil
}

func (n *Node) sendSuccess(ctx context.Context, configID uint8) {
	n.logger.Info("Configuration successful.", "config", configID)
	if !n.hasMaster {
		return
	}
	n.deliver(ctx, n.master, wire.TypeCfgSuccess, wire.EncodeCfgSuccess(wire.CfgSuccess{ConfigID: configID, NodeID: n.id}))
}

// deliver sends a link-acknowledged frame with the data retry policy.
func (n *Node) deliver(ctx context.Context, dst uint16, t wire.MsgType, frame []byte) {
	n.seq++
	key := retry.Key{Dest: dst, Kind: uint8(t), ID: n.seq}
	n.tracker.Start(ctx, key, retry.DataPolicy(n.unit), func() error {
		return n.transmit(ctx, dst, t, frame)
	}, nil)
}

// transmit sends a frame once.
func (n *Node) transmit(ctx context.Context, dst uint16, t wire.MsgType, frame []byte) error {
	n.metrics.FrameSent(n.id, t.String())
	err := n.radio.Send(ctx, dst, frame)
	if err != nil && !errors.Is(err, radio.ErrNoAck) {
		n.logger.Warn("Frame send failed.", "dst", dst, "type", t, "error", err)
	}
	return err
}
