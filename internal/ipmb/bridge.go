package ipmb

import (
	"fmt"

	"github.com/tjst-t/go-ipmi/internal/codec"
	"github.com/tjst-t/go-ipmi/internal/msg"
)

// Route is one hop of a bridged path. Channel is the channel the bridge at
// ResponderAddress forwards the inner message onto.
type Route struct {
	RequesterAddress uint8
	ResponderAddress uint8
	Channel          uint8
}

// Target names the controller a request is for. With more than one route
// the request is bridged: the last route addresses the target itself and
// every earlier route adds one SendMessage envelope.
type Target struct {
	Address uint8
	Routing []Route
}

// NewTarget returns a directly addressed target.
func NewTarget(address uint8) Target {
	return Target{Address: address}
}

// Bridged reports whether requests to t are wrapped in SendMessage.
func (t Target) Bridged() bool { return len(t.Routing) > 1 }

func (t Target) String() string {
	if len(t.Routing) == 0 {
		return fmt.Sprintf("0x%02x", t.Address)
	}
	s := ""
	for i, r := range t.Routing {
		if i > 0 {
			s += fmt.Sprintf(" -ch%d-> ", t.Routing[i-1].Channel)
		}
		s += fmt.Sprintf("0x%02x", r.ResponderAddress)
	}
	return s
}

// Encode frames payload for target t. The returned header is the one the
// final response must match; for bridged targets its addresses come from
// the last route. Envelopes are built from the target back to the first hop.
func Encode(t Target, h RequestHeader, payload []byte) ([]byte, RequestHeader, error) {
	if len(t.Routing) == 0 {
		h.ResponderAddress = t.Address
		return EncodeRequest(h, payload), h, nil
	}

	last := t.Routing[len(t.Routing)-1]
	h.RequesterAddress = last.RequesterAddress
	h.ResponderAddress = last.ResponderAddress
	f := EncodeRequest(h, payload)

	for i := len(t.Routing) - 2; i >= 0; i-- {
		hop := t.Routing[i]
		env, err := codec.Encode(&msg.SendMessageReq{
			Channel:  hop.Channel,
			Tracking: msg.TrackingRequest,
			Data:     f,
		})
		if err != nil {
			return nil, RequestHeader{}, err
		}
		f = EncodeRequest(RequestHeader{
			ResponderAddress: hop.ResponderAddress,
			NetFn:            msg.NetFnApp,
			RequesterAddress: hop.RequesterAddress,
			Sequence:         h.Sequence,
			Command:          msg.CmdSendMessage,
		}, env)
	}
	return f, h, nil
}

// Unwrap strips SendMessage response envelopes from f. Each envelope's
// checksums and completion code are checked on the way in. An empty result
// means the bridge acknowledged the request and the forwarded response is
// still to come; a forwarded frame too short to be one is a
// *codec.DecodingError.
func Unwrap(f []byte) ([]byte, error) {
	for isSendMessageResponse(f) {
		if err := Verify(f); err != nil {
			return nil, err
		}
		if cc := codec.CompletionCode(f[6]); cc != codec.CompletionCodeOK {
			return nil, &codec.CompletionCodeError{Message: "SendMessageRsp", Code: cc}
		}
		f = f[7 : len(f)-1]
		switch {
		case len(f) == 0:
			return nil, nil
		case len(f) < minFrame:
			return nil, &codec.DecodingError{Message: "ipmb", Field: "forwarded_response", Err: fmt.Errorf("%w: frame of %d bytes", codec.ErrTruncated, len(f))}
		}
	}
	return f, nil
}

func isSendMessageResponse(f []byte) bool {
	return len(f) >= minFrame+1 && f[1]>>2 == msg.NetFnApp|0x01 && f[5] == msg.CmdSendMessage
}
