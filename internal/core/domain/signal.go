package domain

import "fmt"

type SignalKind string

const (
	SignalOffer        SignalKind = "offer"
	SignalAnswer       SignalKind = "answer"
	SignalIceCandidate SignalKind = "ice_candidate"
)

// SignalingMessage is one frame of the SDP-style handshake relayed between
// the two participants of a call. The payload is opaque to the core: an SDP
// blob for offer/answer, a serialized candidate for ice_candidate.
type SignalingMessage struct {
	CallID  CallID
	Kind    SignalKind
	Sender  CallRole
	Payload string
}

func NewSignalingMessage(callID CallID, kind SignalKind, sender CallRole, payload string) (SignalingMessage, error) {
	msg := SignalingMessage{CallID: callID, Kind: kind, Sender: sender, Payload: payload}
	if err := msg.Validate(); err != nil {
		return SignalingMessage{}, err
	}
	return msg, nil
}

func (m SignalingMessage) Validate() error {
	switch m.Kind {
	case SignalOffer, SignalAnswer, SignalIceCandidate:
	default:
		return fmt.Errorf("%w: unknown signal kind %q", ErrInvalidInput, m.Kind)
	}
	switch m.Sender {
	case RoleCaller, RoleReceiver:
	default:
		return fmt.Errorf("%w: unknown sender role %q", ErrInvalidInput, m.Sender)
	}
	return nil
}
