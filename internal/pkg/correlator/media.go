package correlator

import (
	"github.com/sipcat/corrcore/internal/pkg/logger"
	"github.com/sipcat/corrcore/internal/pkg/types"
)

// OnRTPPacket is the Media Correlator's entry point for observed RTP
// packets (spec.md §4.5). It implements stream resolution, format-change
// handling, and reverse-stream synthesis, grounded on
// storage_check_rtp_packet in the retrieved original source. Unlike the
// original's RTCP branch (which the spec's design notes call out as a bug:
// it reads the RTP protocol key and falls through to an out-of-scope
// `stream` local), RTP and RTCP are handled by two separate entry points
// here, each binding its own stream lookup.
func (s *Store) OnRTPPacket(pkt *types.Packet) *Stream {
	if pkt.RTP == nil {
		return nil
	}
	if !s.capture.RTPCapture {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	src, dst, format := pkt.Src, pkt.Dst, pkt.RTP.PayloadType

	call, stream := s.findByFormatLocked(src, dst, format)
	if stream == nil {
		return nil
	}

	if stream.Complete && stream.FmtCode != format {
		// Endpoint is multiplexing formats on one port: always use a new
		// format-specific stream for this packet (spec.md §9 corrects the
		// original, which rebinds `stream` here without first completing
		// the prior one - we never mutate the original stream at all).
		stream = &Stream{
			Media:   stream.Media,
			Type:    StreamRTP,
			Src:     src,
			Dst:     dst,
			FmtCode: format,
			Msg:     stream.Msg,
		}
		stream.Complete = true
		call.AddStream(stream)
	} else if !stream.Complete {
		stream.Src = src
		stream.FmtCode = format
		stream.Complete = true
		s.synthesizeReverseLocked(call, stream, format)
	}

	stream.Packets++
	stream.Bytes += uint64(len(pkt.Payload))
	return stream
}

// OnRTCPPacket is the Media Correlator's entry point for observed RTCP
// packets. The original conflates this with the RTP branch via a shared
// `stream` local and the wrong protocol key (spec.md §9); here it binds its
// own stream independently, searching for an RTCP stream by destination
// that isn't yet bound to a different source.
func (s *Store) OnRTCPPacket(pkt *types.Packet) *Stream {
	if pkt.RTCP == nil {
		return nil
	}
	if !s.capture.RTPCapture {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	src, dst := pkt.Src, pkt.Dst
	_, stream := s.findRTCPStreamLocked(src, dst)
	if stream == nil {
		return nil
	}

	stream.Src = src
	stream.Complete = true
	stream.Packets++
	stream.Bytes += uint64(len(pkt.Payload))
	return stream
}

// findByFormatLocked searches every retained call's streams for one whose
// Dst matches and whose Src is either already bound to src or not yet
// bound at all - spec.md §4.5 step 2's cross-call stream_find_by_format.
func (s *Store) findByFormatLocked(src, dst types.Endpoint, format int) (*Call, *Stream) {
	for _, call := range s.list {
		for _, stream := range call.Streams {
			if stream.Type != StreamRTP || stream.Dst != dst {
				continue
			}
			if stream.Src == src || !stream.Src.Bound() {
				return call, stream
			}
		}
	}
	return nil, nil
}

func (s *Store) findRTCPStreamLocked(src, dst types.Endpoint) (*Call, *Stream) {
	for _, call := range s.list {
		for _, stream := range call.Streams {
			if stream.Type != StreamRTCP || stream.Dst != dst {
				continue
			}
			if stream.Src == src || !stream.Src.Bound() {
				return call, stream
			}
		}
	}
	return nil, nil
}

// synthesizeReverseLocked heals the common SIP case where an endpoint
// ignores its peer's advertised RTP port and replies to the observed
// source, by ensuring a stream exists in the opposite direction (spec.md
// §4.5 step 4, §9 "reverse stream synthesis"). Grounded verbatim on the
// control flow of storage_check_rtp_packet's reverse-stream block.
func (s *Store) synthesizeReverseLocked(call *Call, stream *Stream, format int) {
	reverse := call.FindStream(stream.Dst, stream.Src, StreamRTP)
	if reverse == nil {
		reverse = &Stream{
			Media:    stream.Media,
			Type:     StreamRTP,
			Src:      stream.Dst,
			Dst:      stream.Src,
			FmtCode:  format,
			Complete: true,
			Msg:      stream.Msg,
		}
		call.AddStream(reverse)
		logger.Debug("synthesized reverse stream", "call_id", call.CallID, "src", reverse.Src, "dst", reverse.Dst)
		return
	}

	if reverse.Src.Bound() && reverse.Src != stream.Dst {
		if exact := call.FindStreamExact(stream.Dst, stream.Src, StreamRTP); exact == nil {
			newReverse := &Stream{
				Media:    stream.Media,
				Type:     StreamRTP,
				Src:      stream.Dst,
				Dst:      stream.Src,
				FmtCode:  format,
				Complete: true,
				Msg:      stream.Msg,
			}
			call.AddStream(newReverse)
			logger.Debug("synthesized shifted reverse stream", "call_id", call.CallID, "src", newReverse.Src, "dst", newReverse.Dst)
		}
	}
}

// registerStreamsLocked creates the SDP-announced streams for msg's media
// descriptors (spec.md §4.5's register_streams), grounded on
// storage_register_streams in the original and on
// internal/pkg/voip/rtp.go's extractAllRTPEndpoints (c=/m= line scanning),
// generalized from port-only extraction to a full SDPMedia list.
func (s *Store) registerStreamsLocked(call *Call, msg *Message) {
	if msg.Packet == nil || msg.Packet.SDP == nil {
		return
	}

	for i := range msg.Packet.SDP.Medias {
		media := msg.Packet.SDP.Medias[i]
		msg.Medias = append(msg.Medias, media)

		dst := types.NewEndpoint(media.Address, media.RTPPort)

		if call.StreamAt(dst, StreamRTP) == nil {
			stream := &Stream{Media: &media, Type: StreamRTP, Dst: dst, Msg: msg}
			call.AddStream(stream)
		}

		rtcpPort := media.RTCPPort
		if rtcpPort == 0 {
			rtcpPort = media.RTPPort + 1
		}
		rtcpDst := types.NewEndpoint(media.Address, rtcpPort)
		if call.StreamAt(rtcpDst, StreamRTCP) == nil {
			stream := &Stream{Media: &media, Type: StreamRTCP, Dst: rtcpDst, Msg: msg}
			call.AddStream(stream)
		}

		// Common NAT case: the endpoint may reply to the source address of
		// the signalling packet rather than its own SDP-announced address.
		natDst := types.Endpoint{Addr: msg.Packet.Src.Addr, Port: media.RTPPort}
		if call.StreamAt(natDst, StreamRTP) == nil {
			stream := &Stream{Media: &media, Type: StreamRTP, Dst: natDst, Msg: msg}
			call.AddStream(stream)
		}
	}
}
