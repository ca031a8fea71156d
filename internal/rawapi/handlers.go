package rawapi

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	uuid "github.com/satori/go.uuid"

	"github.com/tjst-t/go-ipmi/internal/codec"
	"github.com/tjst-t/go-ipmi/internal/ipmi"
	"github.com/tjst-t/go-ipmi/internal/msg"
	"github.com/tjst-t/go-ipmi/internal/transport"
)

func (s *Server) handleRaw(w http.ResponseWriter, r *http.Request) {
	var req RawRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "MalformedJSON", "invalid request body")
		return
	}
	raw, err := parseHex(req.Data)
	if err != nil || len(raw) == 0 {
		writeError(w, http.StatusBadRequest, "InvalidData", "data must be hex and start with a command byte")
		return
	}
	if req.NetFn > 0x3F || req.NetFn&0x01 != 0 || req.LUN > 3 {
		writeError(w, http.StatusBadRequest, "InvalidData", "netfn must be an even 6 bit value and lun at most 3")
		return
	}

	data, err := s.conn.Raw(r.Context(), req.LUN, req.NetFn, raw)
	if err == nil && len(data) == 0 {
		err = codec.ErrTruncated
	}
	if err != nil {
		writeBMCError(w, err)
		return
	}
	cc := codec.CompletionCode(data[0])
	writeJSON(w, RawResponse{
		CompletionCode: uint8(cc),
		Message:        cc.String(),
		Data:           hex.EncodeToString(data[1:]),
	})
}

func (s *Server) handleDevice(w http.ResponseWriter, r *http.Request) {
	d := s.conn.Device()
	id, err := d.ID(r.Context())
	if err != nil {
		writeBMCError(w, err)
		return
	}
	info := DeviceInfo{
		DeviceID:           id.DeviceID,
		DeviceRevision:     id.DeviceRevision,
		Firmware:           fmt.Sprintf("%d.%02x", id.FirmwareMajor, id.FirmwareMinor),
		IPMIVersion:        fmt.Sprintf("%d.%d", id.IPMIVersion&0x0F, id.IPMIVersion>>4),
		ManufacturerID:     id.ManufacturerID,
		ProductID:          id.ProductID,
		ProvidesDeviceSDRs: id.ProvidesDeviceSDRs,
	}
	// the GUID command is optional
	if guid, err := d.GUID(r.Context()); err == nil && guid != uuid.Nil {
		info.GUID = guid.String()
	}
	writeJSON(w, info)
}

var restorePolicies = map[uint8]string{
	msg.PowerRestoreAlwaysOff: "always-off",
	msg.PowerRestorePrevious:  "previous",
	msg.PowerRestoreAlwaysOn:  "always-on",
	msg.PowerRestoreUnknown:   "unknown",
}

func (s *Server) handleChassisStatus(w http.ResponseWriter, r *http.Request) {
	st, err := s.conn.Chassis().Status(r.Context())
	if err != nil {
		writeBMCError(w, err)
		return
	}
	writeJSON(w, ChassisStatus{
		PowerOn:       st.Power.PowerOn,
		PowerFault:    st.Power.PowerFault,
		Intrusion:     st.Misc.Intrusion,
		RestorePolicy: restorePolicies[st.Power.PowerRestorePolicy],
	})
}

func (s *Server) handleChassisControl(w http.ResponseWriter, r *http.Request) {
	var req ChassisRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "MalformedJSON", "invalid request body")
		return
	}
	op, ok := ipmi.ParseControl(req.Action)
	if !ok {
		writeError(w, http.StatusBadRequest, "InvalidAction", "invalid action: "+req.Action)
		return
	}
	if err := s.conn.Chassis().Control(r.Context(), op); err != nil {
		writeBMCError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// parseHex accepts "0601", "06 01" and "0x06 0x01".
func parseHex(s string) ([]byte, error) {
	var b strings.Builder
	for _, f := range strings.Fields(s) {
		f = strings.TrimPrefix(strings.TrimPrefix(f, "0x"), "0X")
		if len(f) == 1 {
			f = "0" + f
		}
		b.WriteString(f)
	}
	return hex.DecodeString(b.String())
}

// formatHex renders b as space separated bytes, the way ipmitool prints
// raw responses.
func formatHex(b []byte) string {
	parts := make([]string, len(b))
	for i, v := range b {
		parts[i] = fmt.Sprintf("%02x", v)
	}
	return strings.Join(parts, " ")
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, statusCode int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(APIError{
		Error: APIErrorBody{
			Code:    code,
			Message: message,
		},
	})
}

// writeBMCError maps a failed exchange to a status code.
func writeBMCError(w http.ResponseWriter, err error) {
	var (
		ce *codec.CompletionCodeError
		te *transport.TimeoutError
	)
	switch {
	case errors.As(err, &ce):
		writeError(w, http.StatusBadGateway, fmt.Sprintf("CompletionCode0x%02X", uint8(ce.Code)), err.Error())
	case errors.As(err, &te):
		writeError(w, http.StatusGatewayTimeout, "Timeout", err.Error())
	case errors.Is(err, transport.ErrBridgingUnsupported):
		writeError(w, http.StatusBadRequest, "BridgingUnsupported", err.Error())
	default:
		writeError(w, http.StatusBadGateway, "InternalError", err.Error())
	}
}
