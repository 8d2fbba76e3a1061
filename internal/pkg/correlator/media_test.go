package correlator

import (
	"testing"

	"github.com/sipcat/corrcore/internal/pkg/config"
	"github.com/sipcat/corrcore/internal/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterStreamsCreatesThreeStreamsPerMedia(t *testing.T) {
	s := newTestStore(config.CaptureOptions{RTPCapture: true})

	invite := invitePacketWithSDP("call-media", "192.168.1.10", 30000)
	s.OnSIPPacket(invite)

	call, ok := s.FindByCallID("call-media")
	require.True(t, ok)

	// plain RTP @ media address, RTCP @ rtpport+1, RTP @ signalling src (NAT healing).
	assert.Len(t, call.Streams, 3)

	plain := call.FindStreamExact(types.ZeroEndpoint, types.NewEndpoint("192.168.1.10", 30000), StreamRTP)
	require.NotNil(t, plain)

	rtcp := call.FindStreamExact(types.ZeroEndpoint, types.NewEndpoint("192.168.1.10", 30001), StreamRTCP)
	require.NotNil(t, rtcp)

	nat := call.FindStreamExact(types.ZeroEndpoint, types.NewEndpoint("10.0.0.1", 30000), StreamRTP)
	require.NotNil(t, nat)
}

func TestOnRTPPacketBindsIncompleteStream(t *testing.T) {
	s := newTestStore(config.CaptureOptions{RTPCapture: true})

	s.OnSIPPacket(invitePacketWithSDP("call-rtp", "192.168.1.10", 30000))

	src := types.NewEndpoint("192.168.1.20", 40000)
	dst := types.NewEndpoint("192.168.1.10", 30000)
	stream := s.OnRTPPacket(rtpPacket(src, dst, 0, "payload-one"))
	require.NotNil(t, stream)
	assert.True(t, stream.Complete)
	assert.Equal(t, src, stream.Src)
	assert.Equal(t, uint64(1), stream.Packets)

	// A second packet on the same 4-tuple/format must reuse the stream.
	stream2 := s.OnRTPPacket(rtpPacket(src, dst, 0, "payload-two"))
	require.NotNil(t, stream2)
	assert.Same(t, stream, stream2)
	assert.Equal(t, uint64(2), stream2.Packets)
}

func TestOnRTPPacketFormatChangeCreatesNewStream(t *testing.T) {
	s := newTestStore(config.CaptureOptions{RTPCapture: true})
	s.OnSIPPacket(invitePacketWithSDP("call-fmt", "192.168.1.10", 30000))

	src := types.NewEndpoint("192.168.1.20", 40000)
	dst := types.NewEndpoint("192.168.1.10", 30000)

	first := s.OnRTPPacket(rtpPacket(src, dst, 0, "pcmu-frame"))
	require.NotNil(t, first)

	second := s.OnRTPPacket(rtpPacket(src, dst, 8, "pcma-frame"))
	require.NotNil(t, second)
	assert.NotSame(t, first, second, "a format change must create a new stream rather than mutate the old one")
	assert.Equal(t, 8, second.FmtCode)
	assert.Equal(t, 0, first.FmtCode, "original stream's format must be left untouched")
}

func TestOnRTPPacketSynthesizesReverseStream(t *testing.T) {
	s := newTestStore(config.CaptureOptions{RTPCapture: true})
	s.OnSIPPacket(invitePacketWithSDP("call-reverse", "192.168.1.10", 30000))

	call, _ := s.FindByCallID("call-reverse")

	phoneSrc := types.NewEndpoint("192.168.1.20", 40000)
	mediaDst := types.NewEndpoint("192.168.1.10", 30000)
	s.OnRTPPacket(rtpPacket(phoneSrc, mediaDst, 0, "leg-a"))

	// The far end replies directly to the observed source rather than the
	// advertised media address - the call should now have a matching
	// reverse-direction stream even though it was never announced in SDP.
	reverse := call.FindStreamExact(mediaDst, phoneSrc, StreamRTP)
	require.NotNil(t, reverse)
	assert.True(t, reverse.Complete)
}

func TestOnRTPPacketReverseSynthesisReusesExistingPlaceholder(t *testing.T) {
	s := newTestStore(config.CaptureOptions{RTPCapture: true})

	// Alice's INVITE announces her own media address; this registers an
	// unbound placeholder stream whose Dst is exactly Alice's address.
	invite := invitePacketWithSDP("call-two-leg", "192.168.1.10", 30000)
	s.OnSIPPacket(invite)

	// Bob's 200 OK answers with his own media address, signalled from that
	// same address - this registers Bob's own unbound placeholder stream.
	okWithSDP := sipPacket("call-two-leg", 1, types.ReqResp(200), "200 OK", "SIP/2.0 200 OK")
	okWithSDP.Src = types.NewEndpoint("192.168.1.20", 5060)
	okWithSDP.SDP = &types.SDPRecord{Medias: []types.SDPMedia{
		{Address: "192.168.1.20", RTPPort: 40000},
	}}
	s.OnSIPPacket(okWithSDP)

	call, ok := s.FindByCallID("call-two-leg")
	require.True(t, ok)

	// Alice now sends RTP to Bob's announced address. Her own placeholder
	// stream (Dst == her address, still unbound) is the correct reverse
	// stream to reuse - it must not be duplicated.
	aliceSrc := types.NewEndpoint("192.168.1.10", 30000)
	bobDst := types.NewEndpoint("192.168.1.20", 40000)
	s.OnRTPPacket(rtpPacket(aliceSrc, bobDst, 0, "alice-to-bob"))

	var matchingDst int
	for _, stream := range call.Streams {
		if stream.Type == StreamRTP && stream.Dst == aliceSrc {
			matchingDst++
		}
	}
	assert.Equal(t, 1, matchingDst, "the pre-registered placeholder at Alice's address must be reused, not duplicated")
}

func TestOnRTPPacketIgnoredWhenRTPCaptureDisabled(t *testing.T) {
	s := newTestStore(config.CaptureOptions{RTPCapture: false})
	s.OnSIPPacket(invitePacketWithSDP("call-nortp", "192.168.1.10", 30000))

	src := types.NewEndpoint("192.168.1.20", 40000)
	dst := types.NewEndpoint("192.168.1.10", 30000)
	assert.Nil(t, s.OnRTPPacket(rtpPacket(src, dst, 0, "ignored")))
}

func TestOnRTCPPacketBindsStream(t *testing.T) {
	s := newTestStore(config.CaptureOptions{RTPCapture: true})
	s.OnSIPPacket(invitePacketWithSDP("call-rtcp", "192.168.1.10", 30000))

	src := types.NewEndpoint("192.168.1.20", 40001)
	dst := types.NewEndpoint("192.168.1.10", 30001)
	stream := s.OnRTCPPacket(rtcpPacket(src, dst))
	require.NotNil(t, stream)
	assert.Equal(t, StreamRTCP, stream.Type)
	assert.Equal(t, src, stream.Src)
}

func TestOnRTPPacketNoMatchingStreamReturnsNil(t *testing.T) {
	s := newTestStore(config.CaptureOptions{RTPCapture: true})
	s.OnSIPPacket(invitePacketWithSDP("call-unrelated", "192.168.1.10", 30000))

	src := types.NewEndpoint("203.0.113.5", 50000)
	dst := types.NewEndpoint("203.0.113.6", 50002)
	assert.Nil(t, s.OnRTPPacket(rtpPacket(src, dst, 0, "unrelated")))
}
