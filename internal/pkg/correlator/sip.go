package correlator

import (
	"crypto/sha256"
	"fmt"

	"github.com/sipcat/corrcore/internal/pkg/config"
	"github.com/sipcat/corrcore/internal/pkg/logger"
	"github.com/sipcat/corrcore/internal/pkg/types"
)

// OnSIPPacket is the Message Correlator's entry point (spec.md §4.4). It
// runs the twelve-step admission algorithm grounded on storage_check_sip_packet
// in the retrieved original source, generalized from the GLib
// hash-table/GSequence pairing there to the Store's map+slice pair, and
// from a fixed CallState subset (as in call_aggregator.go's updateCallState)
// to the full seven-state enum the spec requires.
func (s *Store) OnSIPPacket(pkt *types.Packet) *Message {
	if pkt.SIP == nil {
		return nil
	}
	sip := pkt.SIP

	s.mu.Lock()
	defer s.mu.Unlock()

	msg := &Message{
		CSeq:    sip.CSeq,
		From:    sip.From,
		To:      sip.To,
		ReqResp: sip.ReqResp,
		RespStr: sip.RespStr,
	}

	call, exists := s.callids[sip.CallID]
	newCall := false

	if !exists {
		if !s.matcher.Check(pkt.Payload) {
			logger.Debug("SIP message rejected by match expression", "call_id", sip.CallID)
			return nil
		}
		if s.match.Invite && sip.ReqResp != types.MethodInvite {
			logger.Debug("SIP message rejected: not INVITE", "call_id", sip.CallID, "method", sip.ReqResp)
			return nil
		}
		if s.match.Complete && sip.ReqResp > types.MethodBoundary {
			logger.Debug("SIP message rejected: not dialog-initiating", "call_id", sip.CallID, "reqresp", sip.ReqResp)
			return nil
		}

		if s.capture.Limit > 0 && len(s.list) == s.capture.Limit {
			s.rotateLocked()
		}

		s.lastIdx++
		call = &Call{
			CallID:    sip.CallID,
			XCallID:   sip.XCallID,
			Index:     s.lastIdx,
			State:     CallStateCalling,
			activePos: -1,
		}
		s.callids[call.CallID] = call
		newCall = true
		logger.Info("new call", "call_id", call.CallID, "index", call.Index)
	}

	msg.Call = call
	msg.Packet = pkt

	if len(call.Messages) == 0 && call.XCallID != "" {
		if parent, ok := s.callids[call.XCallID]; ok {
			parent.AddChild(call)
		}
	}

	call.Messages = append(call.Messages, msg)
	s.markRetransmission(call, msg)
	s.applyStorageModeLocked(msg, pkt)

	if call.IsInvite() {
		s.registerStreamsLocked(call, msg)
		prevState := call.State
		call.State = deriveState(call)
		if call.State != prevState {
			logger.Info("call state changed", "call_id", call.CallID, "from", prevState, "to", call.State)
		}

		wasActive := call.activePos >= 0
		nowActive := call.State.Active()
		if nowActive && !wasActive {
			s.markActiveLocked(call)
		} else if !nowActive && wasActive {
			s.unmarkActiveLocked(call)
		}
	}

	if newCall {
		s.insertSorted(call)
	}

	s.changed = true
	return msg
}

// markRetransmission sets msg.RetransOf when an earlier message in the same
// call shares (cseq, reqresp, from, to, payload), grounded on
// call_correlator.go's generateCorrelationID hash-of-tuple idiom - here
// repurposed from dialog correlation to retransmission detection.
func (s *Store) markRetransmission(call *Call, msg *Message) {
	target := hashMessage(msg)
	for _, prior := range call.Messages[:len(call.Messages)-1] {
		if hashMessage(prior) == target {
			msg.RetransOf = prior
			return
		}
	}
}

// applyStorageModeLocked enforces capture.storage_mode (spec.md §6): in
// StorageModeHeadersOnly, a Message's payload is only needed transiently for
// retransmission hashing, so it's dropped from the retained Packet once that
// hash has been taken. pkt itself is left untouched - msg.Packet gets its own
// copy so capture.storage_mode never affects a Packet the caller still holds.
func (s *Store) applyStorageModeLocked(msg *Message, pkt *types.Packet) {
	if s.capture.StorageMode != config.StorageModeHeadersOnly || len(pkt.Payload) == 0 {
		return
	}
	stripped := *pkt
	stripped.Payload = nil
	msg.Packet = &stripped
}

func hashMessage(msg *Message) payloadHash {
	h := sha256.New()
	fmt.Fprintf(h, "%d|%d|%s|%s|", msg.CSeq, msg.ReqResp, msg.From, msg.To)
	if msg.Packet != nil {
		h.Write(msg.Packet.Payload)
	}
	var sum payloadHash
	copy(sum[:], h.Sum(nil))
	return sum
}

// deriveState recomputes a call's lifecycle state from its message
// history, generalizing call_aggregator.go's updateCallState (INVITE/ACK/
// BYE/CANCEL plus response-code ranges) to the full seven-state enum:
// Calling, InCall, Completed, Cancelled, Rejected, BusyLine, Diverted.
func deriveState(call *Call) CallState {
	state := CallStateCalling
	for _, msg := range call.Messages {
		switch msg.ReqResp {
		case types.MethodInvite:
			if state == CallStateCalling {
				state = CallStateCalling
			}
		case types.MethodAck:
			if state == CallStateCalling {
				state = CallStateInCall
			}
		case types.MethodBye:
			state = CallStateCompleted
		case types.MethodCancel:
			state = CallStateCancelled
		default:
			if msg.ReqResp.IsResponse() {
				state = deriveFromResponse(state, int(msg.ReqResp))
			}
		}
	}
	return state
}

func deriveFromResponse(current CallState, code int) CallState {
	switch {
	case code == 180 || code == 183:
		return CallStateCalling
	case code == 302:
		return CallStateDiverted
	case code == 486 || code == 600:
		return CallStateBusyLine
	case code >= 400:
		return CallStateRejected
	case code >= 200 && code < 300:
		if current == CallStateCalling {
			return CallStateInCall
		}
		return current
	default:
		return current
	}
}
