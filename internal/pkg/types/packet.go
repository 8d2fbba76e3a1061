// Package types holds the data shapes exchanged between the capture/
// dissection pipeline and the call/media correlation core. Everything here
// is a plain, already-parsed record: no packet parsing happens in this
// package.
package types

import (
	"fmt"
	"net"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

// Endpoint is an address+port pair. gopacket.Endpoint values compare equal
// with ==, so Endpoint does too, which is what stream matching relies on.
type Endpoint struct {
	Addr gopacket.Endpoint
	Port uint16
}

// NewEndpoint builds an Endpoint from a dotted IP string and a port.
func NewEndpoint(addr string, port uint16) Endpoint {
	return Endpoint{Addr: layers.NewIPEndpoint(net.ParseIP(addr)), Port: port}
}

// ZeroEndpoint is the sentinel for "no address bound yet" (an incomplete
// Stream's Src before its first observed packet).
var ZeroEndpoint = Endpoint{}

// Bound reports whether the endpoint carries a real address.
func (e Endpoint) Bound() bool {
	return e != ZeroEndpoint
}

func (e Endpoint) String() string {
	if !e.Bound() {
		return "<unbound>"
	}
	return fmt.Sprintf("%s:%d", e.Addr, e.Port)
}

// Packet is the opaque record delivered by the capture/dissection pipeline.
// The correlation core reads its address fields and whichever per-protocol
// record is populated; it never inspects raw bytes beyond the payload it
// hands to the match engine.
type Packet struct {
	Timestamp time.Time
	Src       Endpoint
	Dst       Endpoint
	Payload   []byte // raw application payload, e.g. the SIP message text

	SIP  *SIPRecord
	SDP  *SDPRecord
	RTP  *RTPRecord
	RTCP *RTCPRecord
}

// ReqResp identifies a SIP request method or response class. Requests use
// small positive codes (MethodInvite..MethodPublish); response status codes
// are 100 and above. The match.complete admission rule compares against
// MethodBoundary.
type ReqResp int

const (
	MethodInvite ReqResp = iota + 1
	MethodAck
	MethodBye
	MethodCancel
	MethodOptions
	MethodRegister
	MethodPrack
	MethodSubscribe
	MethodNotify
	MethodInfo
	MethodMessage
	MethodUpdate
	MethodRefer
	MethodPublish
)

// MethodBoundary marks the last dialog-initiating request method. A
// ReqResp above this value is either a response code or a request that
// cannot start a dialog (match.complete rejects those).
const MethodBoundary = MethodMessage

// IsResponse reports whether rr is carrying a SIP status code rather than
// a request method.
func (rr ReqResp) IsResponse() bool {
	return rr >= 100
}

func (rr ReqResp) String() string {
	switch rr {
	case MethodInvite:
		return "INVITE"
	case MethodAck:
		return "ACK"
	case MethodBye:
		return "BYE"
	case MethodCancel:
		return "CANCEL"
	case MethodOptions:
		return "OPTIONS"
	case MethodRegister:
		return "REGISTER"
	case MethodPrack:
		return "PRACK"
	case MethodSubscribe:
		return "SUBSCRIBE"
	case MethodNotify:
		return "NOTIFY"
	case MethodInfo:
		return "INFO"
	case MethodMessage:
		return "MESSAGE"
	case MethodUpdate:
		return "UPDATE"
	case MethodRefer:
		return "REFER"
	case MethodPublish:
		return "PUBLISH"
	default:
		if rr.IsResponse() {
			return fmt.Sprintf("%d", int(rr))
		}
		return "UNKNOWN"
	}
}

// SIPRecord carries the fields a dissector extracts from a SIP message.
type SIPRecord struct {
	CallID  string
	XCallID string
	From    string
	To      string
	CSeq    int
	ReqResp ReqResp
	RespStr string // reason phrase, populated when ReqResp.IsResponse()
}

// SDPMedia is one media descriptor from an SDP body ("m=" line plus its
// governing "c=" connection address).
type SDPMedia struct {
	Address  string // connection address for this media (c= line)
	RTPPort  uint16 // m= line port
	RTCPPort uint16 // 0 means "derive as RTPPort+1"
}

// SDPRecord carries the media descriptors parsed out of a SIP message body.
type SDPRecord struct {
	Medias []SDPMedia
}

// RTPRecord carries the fields a dissector extracts from an RTP packet.
type RTPRecord struct {
	PayloadType int
}

// RTCPRecord marks a packet as carrying RTCP; the correlation core doesn't
// need any RTCP-specific fields beyond "this is RTCP, not RTP".
type RTCPRecord struct{}
