package correlator

import (
	"time"

	"github.com/sipcat/corrcore/internal/pkg/config"
	"github.com/sipcat/corrcore/internal/pkg/types"
)

// newTestStore builds a Store with permissive defaults, overridden per test.
func newTestStore(capture config.CaptureOptions) *Store {
	s, err := Init(capture, config.MatchOptions{}, config.SortOptions{By: "call-index", Asc: true})
	if err != nil {
		panic(err)
	}
	return s
}

// sipPacket builds a minimal SIP-bearing packet for a request or response.
func sipPacket(callID string, cseq int, reqresp types.ReqResp, respStr string, payload string) *types.Packet {
	return &types.Packet{
		Timestamp: time.Now(),
		Src:       types.NewEndpoint("10.0.0.1", 5060),
		Dst:       types.NewEndpoint("10.0.0.2", 5060),
		Payload:   []byte(payload),
		SIP: &types.SIPRecord{
			CallID:  callID,
			From:    "alice@10.0.0.1",
			To:      "bob@10.0.0.2",
			CSeq:    cseq,
			ReqResp: reqresp,
			RespStr: respStr,
		},
	}
}

// invitePacketWithSDP builds an INVITE that announces one audio media.
func invitePacketWithSDP(callID, mediaAddr string, rtpPort uint16) *types.Packet {
	pkt := sipPacket(callID, 1, types.MethodInvite, "", "INVITE sip:bob@10.0.0.2 SIP/2.0")
	pkt.SDP = &types.SDPRecord{
		Medias: []types.SDPMedia{
			{Address: mediaAddr, RTPPort: rtpPort},
		},
	}
	return pkt
}

func rtpPacket(src, dst types.Endpoint, payloadType int, payload string) *types.Packet {
	return &types.Packet{
		Timestamp: time.Now(),
		Src:       src,
		Dst:       dst,
		Payload:   []byte(payload),
		RTP:       &types.RTPRecord{PayloadType: payloadType},
	}
}

func rtcpPacket(src, dst types.Endpoint) *types.Packet {
	return &types.Packet{
		Timestamp: time.Now(),
		Src:       src,
		Dst:       dst,
		Payload:   []byte{0x80, 0xc8},
		RTCP:      &types.RTCPRecord{},
	}
}
