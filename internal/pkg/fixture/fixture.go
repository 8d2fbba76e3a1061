// Package fixture loads a YAML description of a packet sequence for feeding
// into the correlation core outside of a live capture pipeline - the corrcat
// CLI's only way of exercising the store, since packet capture itself is out
// of this module's scope. Grounded on internal/pkg/filtering/parser.go's
// read-file-then-yaml.Unmarshal shape.
package fixture

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sipcat/corrcore/internal/pkg/types"
)

// Event is one line of a fixture file: either a SIP message or an RTP/RTCP
// packet, expressed in the same address+payload terms as types.Packet.
type Event struct {
	Kind    string `yaml:"kind"` // "sip", "rtp", or "rtcp"
	Src     string `yaml:"src"`
	SrcPort uint16 `yaml:"src_port"`
	Dst     string `yaml:"dst"`
	DstPort uint16 `yaml:"dst_port"`
	Payload string `yaml:"payload"`

	CallID  string `yaml:"call_id,omitempty"`
	XCallID string `yaml:"x_call_id,omitempty"`
	From    string `yaml:"from,omitempty"`
	To      string `yaml:"to,omitempty"`
	CSeq    int    `yaml:"cseq,omitempty"`
	Method  string `yaml:"method,omitempty"`
	Status  int    `yaml:"status,omitempty"`
	Reason  string `yaml:"reason,omitempty"`

	Medias []MediaEvent `yaml:"sdp,omitempty"`

	PayloadType int `yaml:"payload_type,omitempty"`
}

// MediaEvent mirrors types.SDPMedia in fixture-file form.
type MediaEvent struct {
	Address  string `yaml:"address"`
	RTPPort  uint16 `yaml:"rtp_port"`
	RTCPPort uint16 `yaml:"rtcp_port,omitempty"`
}

var methodNames = map[string]types.ReqResp{
	"INVITE":    types.MethodInvite,
	"ACK":       types.MethodAck,
	"BYE":       types.MethodBye,
	"CANCEL":    types.MethodCancel,
	"OPTIONS":   types.MethodOptions,
	"REGISTER":  types.MethodRegister,
	"PRACK":     types.MethodPrack,
	"SUBSCRIBE": types.MethodSubscribe,
	"NOTIFY":    types.MethodNotify,
	"INFO":      types.MethodInfo,
	"MESSAGE":   types.MethodMessage,
	"UPDATE":    types.MethodUpdate,
	"REFER":     types.MethodRefer,
	"PUBLISH":   types.MethodPublish,
}

// Load reads a YAML fixture file and converts each event into a
// types.Packet, stamping timestamps in file order one millisecond apart so
// duration-based sorting has something to work with.
func Load(path string) ([]*types.Packet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("fixture: read %s: %w", path, err)
	}

	var events []Event
	if err := yaml.Unmarshal(data, &events); err != nil {
		return nil, fmt.Errorf("fixture: parse %s: %w", path, err)
	}

	base := time.Unix(0, 0).UTC()
	packets := make([]*types.Packet, 0, len(events))
	for i, ev := range events {
		pkt, err := ev.toPacket()
		if err != nil {
			return nil, fmt.Errorf("fixture: event %d: %w", i, err)
		}
		pkt.Timestamp = base.Add(time.Duration(i) * time.Millisecond)
		packets = append(packets, pkt)
	}
	return packets, nil
}

func (ev Event) toPacket() (*types.Packet, error) {
	pkt := &types.Packet{
		Src:     types.NewEndpoint(ev.Src, ev.SrcPort),
		Dst:     types.NewEndpoint(ev.Dst, ev.DstPort),
		Payload: []byte(ev.Payload),
	}

	switch ev.Kind {
	case "sip":
		reqresp, err := ev.reqResp()
		if err != nil {
			return nil, err
		}
		pkt.SIP = &types.SIPRecord{
			CallID:  ev.CallID,
			XCallID: ev.XCallID,
			From:    ev.From,
			To:      ev.To,
			CSeq:    ev.CSeq,
			ReqResp: reqresp,
			RespStr: ev.Reason,
		}
		if len(ev.Medias) > 0 {
			medias := make([]types.SDPMedia, len(ev.Medias))
			for i, m := range ev.Medias {
				medias[i] = types.SDPMedia{Address: m.Address, RTPPort: m.RTPPort, RTCPPort: m.RTCPPort}
			}
			pkt.SDP = &types.SDPRecord{Medias: medias}
		}
	case "rtp":
		pkt.RTP = &types.RTPRecord{PayloadType: ev.PayloadType}
	case "rtcp":
		pkt.RTCP = &types.RTCPRecord{}
	default:
		return nil, fmt.Errorf("unknown event kind %q", ev.Kind)
	}

	return pkt, nil
}

func (ev Event) reqResp() (types.ReqResp, error) {
	if ev.Status != 0 {
		return types.ReqResp(ev.Status), nil
	}
	rr, ok := methodNames[ev.Method]
	if !ok {
		return 0, fmt.Errorf("unknown SIP method %q", ev.Method)
	}
	return rr, nil
}
