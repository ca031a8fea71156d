package rawapi

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tjst-t/go-ipmi/internal/bmcsim"
	"github.com/tjst-t/go-ipmi/internal/ipmb"
	"github.com/tjst-t/go-ipmi/internal/ipmi"
	"github.com/tjst-t/go-ipmi/internal/transport"
)

// newTestServer serves an API backed by bmc over the VM protocol.
func newTestServer(t *testing.T, bmc *bmcsim.Controller, opts Options) *Server {
	t.Helper()
	client, server := net.Pipe()
	go bmcsim.NewVMServer(bmc).HandleConnection(server)

	topts := transport.Options{Timeout: 200 * time.Millisecond, Retries: 1, Backoff: time.Millisecond}
	if reg, ok := opts.Gatherer.(*prometheus.Registry); ok {
		topts.Metrics = transport.NewMetrics(reg)
	}
	v := transport.NewVM(client, topts)
	require.NoError(t, v.Handshake(context.Background()))
	conn := ipmi.New(v)
	t.Cleanup(func() { conn.Close() })
	return NewServer(conn, opts)
}

func do(t *testing.T, srv http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	return w
}

func TestRaw(t *testing.T) {
	bmc := bmcsim.NewController(ipmb.BMCAddress)
	bmc.Chassis = bmcsim.NewChassis(false)
	srv := newTestServer(t, bmc, Options{})

	t.Run("get device id", func(t *testing.T) {
		w := do(t, srv, "POST", "/v1/raw", `{"netfn": 6, "data": "01"}`)
		require.Equal(t, http.StatusOK, w.Code)
		var rsp RawResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rsp))
		assert.Equal(t, uint8(0), rsp.CompletionCode)
		assert.Equal(t, "command completed normally", rsp.Message)
		assert.True(t, strings.HasPrefix(rsp.Data, "2001"), rsp.Data)
	})

	t.Run("chassis control", func(t *testing.T) {
		w := do(t, srv, "POST", "/v1/raw", `{"netfn": 0, "data": "0x02 0x01"}`)
		require.Equal(t, http.StatusOK, w.Code)
		assert.True(t, bmc.Chassis.PowerOn())
	})

	t.Run("completion code is returned, not an error", func(t *testing.T) {
		w := do(t, srv, "POST", "/v1/raw", `{"netfn": 6, "data": "7f"}`)
		require.Equal(t, http.StatusOK, w.Code)
		var rsp RawResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rsp))
		assert.Equal(t, uint8(0xC1), rsp.CompletionCode)
		assert.Equal(t, "", rsp.Data)
	})

	t.Run("bad requests", func(t *testing.T) {
		for _, body := range []string{`{`, `{"netfn": 6, "data": ""}`, `{"netfn": 6, "data": "zz"}`, `{"netfn": 7, "data": "01"}`, `{"netfn": 6, "lun": 4, "data": "01"}`} {
			w := do(t, srv, "POST", "/v1/raw", body)
			assert.Equal(t, http.StatusBadRequest, w.Code, body)
		}
	})
}

func TestDevice(t *testing.T) {
	bmc := bmcsim.NewController(ipmb.BMCAddress)
	bmc.Device.ManufacturerID = 0x0A1B
	srv := newTestServer(t, bmc, Options{})

	w := do(t, srv, "GET", "/v1/device", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var info DeviceInfo
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &info))
	assert.Equal(t, uint8(0x20), info.DeviceID)
	assert.Equal(t, "2.00", info.Firmware)
	assert.Equal(t, "1.5", info.IPMIVersion)
	assert.Equal(t, uint32(0x0A1B), info.ManufacturerID)
	assert.Equal(t, bmcsim.DefaultGUID.String(), info.GUID)
}

func TestChassis(t *testing.T) {
	bmc := bmcsim.NewController(ipmb.BMCAddress)
	bmc.Chassis = bmcsim.NewChassis(false)
	srv := newTestServer(t, bmc, Options{})

	w := do(t, srv, "POST", "/v1/chassis", `{"action": "on"}`)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = do(t, srv, "GET", "/v1/chassis", "")
	require.Equal(t, http.StatusOK, w.Code)
	var st ChassisStatus
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &st))
	assert.True(t, st.PowerOn)
	assert.Equal(t, "previous", st.RestorePolicy)

	w = do(t, srv, "POST", "/v1/chassis", `{"action": "bounce"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestBMCErrors(t *testing.T) {
	// no chassis capability
	srv := newTestServer(t, bmcsim.NewController(ipmb.BMCAddress), Options{})

	w := do(t, srv, "GET", "/v1/chassis", "")
	assert.Equal(t, http.StatusBadGateway, w.Code)
	var e APIError
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &e))
	assert.Equal(t, "CompletionCode0xC1", e.Error.Code)
}

func TestBasicAuth(t *testing.T) {
	srv := newTestServer(t, bmcsim.NewController(ipmb.BMCAddress), Options{User: "admin", Pass: "password"})

	t.Run("valid credentials returns 200", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/v1/device", nil)
		req.SetBasicAuth("admin", "password")
		w := httptest.NewRecorder()
		srv.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("wrong password returns 401", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/v1/device", nil)
		req.SetBasicAuth("admin", "wrong")
		w := httptest.NewRecorder()
		srv.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, `Basic realm="IPMI"`, w.Header().Get("WWW-Authenticate"))
	})

	t.Run("no auth returns 401", func(t *testing.T) {
		w := do(t, srv, "GET", "/v1/device", "")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	srv := newTestServer(t, bmcsim.NewController(ipmb.BMCAddress), Options{Gatherer: reg})

	require.Equal(t, http.StatusOK, do(t, srv, "GET", "/v1/device", "").Code)

	w := do(t, srv, "GET", "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `ipmi_transport_requests_total{interface="vm",result="ok"} 2`)
}

func TestMetrics_Disabled(t *testing.T) {
	srv := newTestServer(t, bmcsim.NewController(ipmb.BMCAddress), Options{})
	assert.Equal(t, http.StatusNotFound, do(t, srv, "GET", "/metrics", "").Code)
}

func TestParseHex(t *testing.T) {
	tests := []struct {
		in   string
		want []byte
		err  bool
	}{
		{"0601", []byte{0x06, 0x01}, false},
		{"06 01", []byte{0x06, 0x01}, false},
		{"0x6 0x1 ff", []byte{0x06, 0x01, 0xFF}, false},
		{"", []byte{}, false},
		{"0g", nil, true},
		{"061", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseHex(tt.in)
			if tt.err {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
	assert.Equal(t, "00 20 ff", formatHex([]byte{0x00, 0x20, 0xFF}))
}
