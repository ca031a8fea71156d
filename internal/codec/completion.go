package codec

import (
	"errors"
	"fmt"
)

// CompletionCode is the status byte that leads every IPMI response.
type CompletionCode uint8

const (
	CompletionCodeOK                         CompletionCode = 0x00
	CompletionCodeNodeBusy                   CompletionCode = 0xC0
	CompletionCodeInvalidCommand             CompletionCode = 0xC1
	CompletionCodeInvalidForLUN              CompletionCode = 0xC2
	CompletionCodeTimeout                    CompletionCode = 0xC3
	CompletionCodeOutOfSpace                 CompletionCode = 0xC4
	CompletionCodeReservationCanceled        CompletionCode = 0xC5
	CompletionCodeRequestDataTruncated       CompletionCode = 0xC6
	CompletionCodeRequestDataLengthInvalid   CompletionCode = 0xC7
	CompletionCodeRequestDataLengthExceeded  CompletionCode = 0xC8
	CompletionCodeParameterOutOfRange        CompletionCode = 0xC9
	CompletionCodeCannotReturnRequestedBytes CompletionCode = 0xCA
	CompletionCodeRequestedDataNotPresent    CompletionCode = 0xCB
	CompletionCodeInvalidField               CompletionCode = 0xCC
	CompletionCodeIllegalCommand             CompletionCode = 0xCD
	CompletionCodeResponseNotProvided        CompletionCode = 0xCE
	CompletionCodeDuplicateRequest           CompletionCode = 0xCF
	CompletionCodeSDRInUpdateMode            CompletionCode = 0xD0
	CompletionCodeFirmwareUpdateMode         CompletionCode = 0xD1
	CompletionCodeInitializationInProgress   CompletionCode = 0xD2
	CompletionCodeDestinationUnavailable     CompletionCode = 0xD3
	CompletionCodeInsufficientPrivilege      CompletionCode = 0xD4
	CompletionCodeNotSupportedInState        CompletionCode = 0xD5
	CompletionCodeSubfunctionDisabled        CompletionCode = 0xD6
	CompletionCodeUnspecified                CompletionCode = 0xFF
)

var completionCodeNames = map[CompletionCode]string{
	CompletionCodeOK:                         "command completed normally",
	CompletionCodeNodeBusy:                   "node busy",
	CompletionCodeInvalidCommand:             "invalid command",
	CompletionCodeInvalidForLUN:              "command invalid for given LUN",
	CompletionCodeTimeout:                    "timeout while processing command",
	CompletionCodeOutOfSpace:                 "out of space",
	CompletionCodeReservationCanceled:        "reservation canceled or invalid",
	CompletionCodeRequestDataTruncated:       "request data truncated",
	CompletionCodeRequestDataLengthInvalid:   "request data length invalid",
	CompletionCodeRequestDataLengthExceeded:  "request data field length limit exceeded",
	CompletionCodeParameterOutOfRange:        "parameter out of range",
	CompletionCodeCannotReturnRequestedBytes: "cannot return number of requested data bytes",
	CompletionCodeRequestedDataNotPresent:    "requested sensor, data, or record not present",
	CompletionCodeInvalidField:               "invalid data field in request",
	CompletionCodeIllegalCommand:             "command illegal for specified sensor or record type",
	CompletionCodeResponseNotProvided:        "command response could not be provided",
	CompletionCodeDuplicateRequest:           "cannot execute duplicated request",
	CompletionCodeSDRInUpdateMode:            "SDR repository in update mode",
	CompletionCodeFirmwareUpdateMode:         "device in firmware update mode",
	CompletionCodeInitializationInProgress:   "BMC initialization in progress",
	CompletionCodeDestinationUnavailable:     "destination unavailable",
	CompletionCodeInsufficientPrivilege:      "insufficient privilege level",
	CompletionCodeNotSupportedInState:        "command not supported in present state",
	CompletionCodeSubfunctionDisabled:        "command sub-function disabled or unavailable",
	CompletionCodeUnspecified:                "unspecified error",
}

func (c CompletionCode) String() string {
	if name, ok := completionCodeNames[c]; ok {
		return name
	}
	switch {
	case c >= 0x01 && c <= 0x7E:
		return "OEM completion code"
	case c >= 0x80 && c <= 0xBE:
		return "command-specific completion code"
	}
	return "reserved completion code"
}

// CompletionCodeError is returned when a device answered with a non-zero
// completion code. The response itself was well formed.
type CompletionCodeError struct {
	Message string
	Code    CompletionCode
}

func (e *CompletionCodeError) Error() string {
	return fmt.Sprintf("%s: completion code 0x%02x (%s)", e.Message, uint8(e.Code), e.Code)
}

// Status carries the completion code of a response. Response types embed it
// and bind its field with Completion(&m.CompletionCode).
type Status struct {
	CompletionCode CompletionCode
}

// Code returns the decoded completion code.
func (s *Status) Code() CompletionCode { return s.CompletionCode }

// Response is a message that leads with a completion code.
type Response interface {
	Message
	Code() CompletionCode
}

// CheckCompletion returns a *CompletionCodeError if rsp carries a non-zero code.
func CheckCompletion(rsp Response) error {
	if cc := rsp.Code(); cc != CompletionCodeOK {
		return &CompletionCodeError{Message: rsp.Identity().Name, Code: cc}
	}
	return nil
}

// IsCompletionCode reports whether err carries the completion code cc.
func IsCompletionCode(err error, cc CompletionCode) bool {
	var ce *CompletionCodeError
	return errors.As(err, &ce) && ce.Code == cc
}
