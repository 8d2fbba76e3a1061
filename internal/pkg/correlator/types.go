// Package correlator is the call and media correlation core: it groups
// already-dissected SIP and RTP/RTCP packets by dialog, tracks the media
// streams those dialogs announce, and maintains a sorted, filterable,
// capacity-bounded store of the result.
//
// It is grounded on three teacher components, each generalized from a
// single hardcoded concern to the full spec:
//   - internal/pkg/voip/calltracker.go (CallTracker): the map+mutex shape
//     for Store's callids index and lifecycle.
//   - internal/pkg/voip/call_aggregator.go (CallAggregator): the
//     admission/state-machine shape for the SIP and RTP ingress paths.
//   - cmd/tui/components/callsview.go: the sort-then-store idiom for the
//     display-ordered call list.
package correlator

import "github.com/sipcat/corrcore/internal/pkg/types"

// CallState is the derived lifecycle state of a Call, computed from its
// message history.
type CallState int

const (
	CallStateCalling CallState = iota
	CallStateInCall
	CallStateCompleted
	CallStateCancelled
	CallStateRejected
	CallStateBusyLine
	CallStateDiverted
)

func (s CallState) String() string {
	switch s {
	case CallStateCalling:
		return "CALLING"
	case CallStateInCall:
		return "IN_CALL"
	case CallStateCompleted:
		return "COMPLETED"
	case CallStateCancelled:
		return "CANCELLED"
	case CallStateRejected:
		return "REJECTED"
	case CallStateBusyLine:
		return "BUSY_LINE"
	case CallStateDiverted:
		return "DIVERTED"
	default:
		return "UNKNOWN"
	}
}

// Active reports whether a call in this state is still in progress, i.e.
// whether it belongs in the Store's active index.
func (s CallState) Active() bool {
	return s == CallStateCalling || s == CallStateInCall
}

// StreamType distinguishes RTP media from RTCP control streams.
type StreamType int

const (
	StreamRTP StreamType = iota
	StreamRTCP
)

func (t StreamType) String() string {
	if t == StreamRTCP {
		return "RTCP"
	}
	return "RTP"
}

// Message is one SIP message observed within a Call's dialog.
type Message struct {
	CSeq      int
	From      string
	To        string
	ReqResp   types.ReqResp
	RespStr   string
	Call      *Call // non-owning back-reference
	Packet    *types.Packet
	RetransOf *Message // set when this message duplicates an earlier one
	Medias    []types.SDPMedia
}

// payloadHash is the tuple retransmission detection compares against
// earlier messages in the same call: (cseq, reqresp, from, to, payload).
type payloadHash [32]byte

// Stream is one RTP or RTCP media stream, grouped by 4-tuple within a Call.
type Stream struct {
	Media    *types.SDPMedia
	Type     StreamType
	Src      types.Endpoint // unbound (ZeroEndpoint) until the first observed packet
	Dst      types.Endpoint
	FmtCode  int
	Complete bool
	Msg      *Message
	Packets  uint64
	Bytes    uint64
}

// matches4Tuple reports whether s is the exact (src, dst, type) stream a
// caller is searching for. Used by reverse-stream exact-match lookups.
func (s *Stream) matches4Tuple(src, dst types.Endpoint, typ StreamType) bool {
	return s.Type == typ && s.Src == src && s.Dst == dst
}

// Call is one correlated SIP dialog, identified by Call-ID.
type Call struct {
	CallID   string
	XCallID  string
	Index    uint64
	State    CallState
	Locked   bool
	Messages []*Message
	Streams  []*Stream
	Children []*Call // non-owning back-references, linked via XCallID

	activePos int // index into Store.active, -1 when not active; internal bookkeeping
}

// MessageCount returns the number of messages recorded for the call.
func (c *Call) MessageCount() int {
	return len(c.Messages)
}

// IsInvite reports whether the call's first message is an INVITE - the
// gate on whether media correlation and state derivation apply.
func (c *Call) IsInvite() bool {
	return len(c.Messages) > 0 && c.Messages[0].ReqResp == types.MethodInvite
}

// FindStream returns the first stream matching dst whose own Src is either
// still unbound or already bound to src - the candidate's boundedness is
// what's tolerant, not the caller's src argument. This mirrors
// call_find_stream in the original storage.c, used by reverse-stream
// synthesis to recognize an already-registered-but-unbound placeholder
// stream as the reverse leg it's looking for.
func (c *Call) FindStream(src, dst types.Endpoint, typ StreamType) *Stream {
	for _, s := range c.Streams {
		if s.Type != typ || s.Dst != dst {
			continue
		}
		if s.Src == src || !s.Src.Bound() {
			return s
		}
	}
	return nil
}

// FindStreamExact returns the stream with exactly this (src, dst, type)
// 4-tuple, or nil.
func (c *Call) FindStreamExact(src, dst types.Endpoint, typ StreamType) *Stream {
	for _, s := range c.Streams {
		if s.matches4Tuple(src, dst, typ) {
			return s
		}
	}
	return nil
}

// StreamAt returns the first stream matching dst and type, regardless of
// its Src binding. registerStreamsLocked uses this - not FindStream - to
// test whether one of an SDP media descriptor's three announced streams
// already exists, since that check must match a stream whose Src has
// since been bound to some peer just as readily as one still unbound.
func (c *Call) StreamAt(dst types.Endpoint, typ StreamType) *Stream {
	for _, s := range c.Streams {
		if s.Type == typ && s.Dst == dst {
			return s
		}
	}
	return nil
}

// AddStream appends a stream to the call.
func (c *Call) AddStream(s *Stream) {
	c.Streams = append(c.Streams, s)
}

// AddChild registers child as an attended-transfer/consultative leg of c.
func (c *Call) AddChild(child *Call) {
	c.Children = append(c.Children, child)
}
