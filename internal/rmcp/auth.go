package rmcp

import (
	"crypto/md5"
	"crypto/subtle"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/tjst-t/go-ipmi/internal/msg"
)

// ErrUnsupportedAuthType is returned for authentication types whose codes
// this package cannot compute (MD2, OEM and RMCP+).
var ErrUnsupportedAuthType = errors.New("unsupported authentication type")

// PasswordSize is the length of an IPMI v1.5 password.
const PasswordSize = 16

// PadPassword returns pw zero padded to PasswordSize bytes.
func PadPassword(pw string) ([]byte, error) {
	if len(pw) > PasswordSize {
		return nil, fmt.Errorf("password longer than %d bytes", PasswordSize)
	}
	out := make([]byte, PasswordSize)
	copy(out, pw)
	return out, nil
}

// AuthCode computes the session auth code of payload, which is the IPMB
// message carried in the session. password must already be padded.
func AuthCode(t msg.AuthType, password []byte, sessionID, sequence uint32, payload []byte) ([]byte, error) {
	switch t {
	case msg.AuthTypeNone:
		return nil, nil
	case msg.AuthTypeStraight:
		return append([]byte(nil), password...), nil
	case msg.AuthTypeMD5:
		var sid, seq [4]byte
		binary.LittleEndian.PutUint32(sid[:], sessionID)
		binary.LittleEndian.PutUint32(seq[:], sequence)
		h := md5.New()
		h.Write(password)
		h.Write(sid[:])
		h.Write(payload)
		h.Write(seq[:])
		h.Write(password)
		return h.Sum(nil), nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedAuthType, t)
}

// VerifyAuthCode checks the auth code of a received session header.
func VerifyAuthCode(h SessionHeader, password, payload []byte) error {
	want, err := AuthCode(h.AuthType, password, h.SessionID, h.Sequence, payload)
	if err != nil {
		return err
	}
	if subtle.ConstantTimeCompare(want, h.AuthCode) != 1 {
		return errors.New("auth code mismatch")
	}
	return nil
}
