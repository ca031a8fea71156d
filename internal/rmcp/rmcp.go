// Package rmcp implements the RMCP transport header, ASF presence ping/pong
// and the IPMI v1.5 session wrapper carried inside RMCP datagrams.
package rmcp

import (
	"errors"
	"fmt"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

// Port is the RMCP primary port.
const Port = 623

// SequenceNoAck is the RMCP sequence number that tells the receiver not to
// send an RMCP acknowledgement. IPMI messages always use it.
const SequenceNoAck = 0xFF

const (
	asfEnterprise   uint32 = 4542
	asfPresencePing uint8  = 0x80
	asfPresencePong uint8  = 0x40
	pongSize        uint8  = 16
)

var (
	// ErrUnexpectedClass is returned when a datagram carries a different
	// RMCP class than the caller expected.
	ErrUnexpectedClass = errors.New("unexpected RMCP class")
	// ErrNotPresencePong is returned for ASF messages other than a pong.
	ErrNotPresencePong = errors.New("not an ASF presence pong")
	// ErrNotPresencePing is returned for ASF messages other than a ping.
	ErrNotPresencePing = errors.New("not an ASF presence ping")
)

var serializeOptions = gopacket.SerializeOptions{FixLengths: true}

func header(class layers.RMCPClass) *layers.RMCP {
	return &layers.RMCP{
		Version:  layers.RMCPVersion1,
		Sequence: SequenceNoAck,
		Class:    class,
	}
}

// Decode parses the RMCP header of a datagram.
func Decode(data []byte) (*layers.RMCP, error) {
	r := &layers.RMCP{}
	if err := r.DecodeFromBytes(data, gopacket.NilDecodeFeedback); err != nil {
		return nil, fmt.Errorf("decoding RMCP header: %w", err)
	}
	return r, nil
}

// EncodeIPMI wraps an IPMI session payload in an RMCP header.
func EncodeIPMI(payload []byte) ([]byte, error) {
	buf := gopacket.NewSerializeBuffer()
	if err := gopacket.SerializeLayers(buf, serializeOptions, header(layers.RMCPClassIPMI), gopacket.Payload(payload)); err != nil {
		return nil, fmt.Errorf("serializing RMCP message: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeIPMI returns the session payload of an IPMI class datagram.
func DecodeIPMI(data []byte) ([]byte, error) {
	r, err := Decode(data)
	if err != nil {
		return nil, err
	}
	if r.Class != layers.RMCPClassIPMI {
		return nil, fmt.Errorf("%w: 0x%02x", ErrUnexpectedClass, uint8(r.Class))
	}
	return r.Payload(), nil
}

func encodeASF(msgType, tag uint8, body gopacket.SerializableLayer, length uint8) ([]byte, error) {
	asf := &layers.ASF{
		ASFDataIdentifier: layers.ASFDataIdentifier{Enterprise: asfEnterprise, Type: msgType},
		Tag:               tag,
		Length:            length,
	}
	ls := []gopacket.SerializableLayer{header(layers.RMCPClassASF), asf}
	if body != nil {
		ls = append(ls, body)
	}
	buf := gopacket.NewSerializeBuffer()
	if err := gopacket.SerializeLayers(buf, serializeOptions, ls...); err != nil {
		return nil, fmt.Errorf("serializing ASF message: %w", err)
	}
	return buf.Bytes(), nil
}

func decodeASF(data []byte) (*layers.ASF, error) {
	r, err := Decode(data)
	if err != nil {
		return nil, err
	}
	if r.Class != layers.RMCPClassASF {
		return nil, fmt.Errorf("%w: 0x%02x", ErrUnexpectedClass, uint8(r.Class))
	}
	asf := &layers.ASF{}
	if err := asf.DecodeFromBytes(r.Payload(), gopacket.NilDecodeFeedback); err != nil {
		return nil, fmt.Errorf("decoding ASF header: %w", err)
	}
	return asf, nil
}

// EncodePing builds an ASF presence ping with the given message tag.
func EncodePing(tag uint8) ([]byte, error) {
	return encodeASF(asfPresencePing, tag, nil, 0)
}

// DecodePing returns the message tag of an ASF presence ping.
func DecodePing(data []byte) (uint8, error) {
	asf, err := decodeASF(data)
	if err != nil {
		return 0, err
	}
	if asf.Enterprise != asfEnterprise || asf.Type != asfPresencePing {
		return 0, ErrNotPresencePing
	}
	return asf.Tag, nil
}

// EncodePong builds the presence pong of an IPMI capable managed client.
func EncodePong(tag uint8) ([]byte, error) {
	return encodeASF(asfPresencePong, tag, &layers.ASFPresencePong{
		Enterprise: asfEnterprise,
		IPMI:       true,
		ASFv1:      true,
	}, pongSize)
}

// DecodePong parses an ASF presence pong.
func DecodePong(data []byte) (uint8, *layers.ASFPresencePong, error) {
	asf, err := decodeASF(data)
	if err != nil {
		return 0, nil, err
	}
	if asf.Type != asfPresencePong {
		return 0, nil, ErrNotPresencePong
	}
	pong := &layers.ASFPresencePong{}
	if err := pong.DecodeFromBytes(asf.Payload, gopacket.NilDecodeFeedback); err != nil {
		return 0, nil, fmt.Errorf("decoding presence pong: %w", err)
	}
	return asf.Tag, pong, nil
}
