package remote

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pithecene-io/vpd/api"
	"github.com/pithecene-io/vpd/fault"
	"github.com/pithecene-io/vpd/manager"
	"github.com/pithecene-io/vpd/types"
)

const fanInv = "/xyz/openbmc_project/inventory/system/chassis/motherboard/fan0"

type stubService struct {
	lastPath  types.Path
	lastWrite types.WriteParams
	err       error
}

func (s *stubService) UpdateKeyword(_ context.Context, path types.Path, params types.WriteParams) int {
	s.lastPath, s.lastWrite = path, params
	if s.err != nil {
		return -1
	}
	return len(params.Value)
}

func (s *stubService) ReadKeyword(_ context.Context, path types.Path, _ types.ReadParams) (types.BinaryVector, error) {
	s.lastPath = path
	return types.BinaryVector{0x00, 0x50}, s.err
}

func (s *stubService) CollectSingleFruVPD(_ context.Context, path types.Path) error {
	s.lastPath = path
	return s.err
}

func (s *stubService) DeleteSingleFruVPD(_ context.Context, path types.Path) error {
	s.lastPath = path
	return s.err
}

func (s *stubService) PerformVPDRecollection(context.Context) error { return s.err }

func (s *stubService) GetExpandedLocationCode(_ context.Context, path types.Path) (string, error) {
	s.lastPath = path
	return "U78DA.ND0.1234567-P0-A1", s.err
}

func (s *stubService) GetHwPath(_ context.Context, path types.Path) (string, error) {
	s.lastPath = path
	return "/sys/bus/i2c/drivers/at24/7-0051/eeprom", s.err
}

func (s *stubService) CollectionStatus(_ context.Context, path types.Path) (types.CollectionStatus, error) {
	s.lastPath = path
	return types.CollectionFailed, s.err
}

func (s *stubService) SystemCollectionComplete() bool { return true }

func (s *stubService) Frus(context.Context) ([]manager.FruStatus, error) {
	return []manager.FruStatus{{Path: fanInv, Status: types.CollectionCompleted}}, s.err
}

func newClient(t *testing.T, svc api.Service) *Client {
	t.Helper()
	srv, err := api.New(api.Config{Service: svc})
	if err != nil {
		t.Fatalf("api.New: %v", err)
	}
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	c, err := New(ts.URL, 0)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestClient_Keywords(t *testing.T) {
	svc := &stubService{}
	c := newClient(t, svc)

	n, err := c.UpdateKeyword(t.Context(), fanInv, types.IPZWrite("VINI", "SN", []byte("YL10")))
	if err != nil {
		t.Fatalf("UpdateKeyword: %v", err)
	}
	if n != 4 {
		t.Errorf("bytes written = %d, want 4", n)
	}
	if svc.lastWrite.Record != "VINI" || !bytes.Equal(svc.lastWrite.Value, []byte("YL10")) {
		t.Errorf("server saw %+v", svc.lastWrite)
	}

	val, err := c.ReadKeyword(t.Context(), fanInv, types.IPZRead("VINI", "SN"))
	if err != nil {
		t.Fatalf("ReadKeyword: %v", err)
	}
	if !bytes.Equal(val, []byte{0x00, 0x50}) {
		t.Errorf("value = %x", val)
	}
}

func TestClient_FruRoutes(t *testing.T) {
	svc := &stubService{}
	c := newClient(t, svc)
	ctx := t.Context()

	if resp, err := c.CollectFru(ctx, fanInv); err != nil || resp.Status != types.CollectionInProgress {
		t.Errorf("CollectFru = %+v, %v", resp, err)
	}
	if resp, err := c.DeleteFru(ctx, fanInv); err != nil || resp.Status != types.CollectionNotStarted {
		t.Errorf("DeleteFru = %+v, %v", resp, err)
	}
	if err := c.Recollect(ctx); err != nil {
		t.Errorf("Recollect: %v", err)
	}
	if resp, err := c.LocationCode(ctx, fanInv); err != nil || resp.LocationCode != "U78DA.ND0.1234567-P0-A1" {
		t.Errorf("LocationCode = %+v, %v", resp, err)
	}
	if resp, err := c.HwPath(ctx, fanInv); err != nil || resp.HwPath != "/sys/bus/i2c/drivers/at24/7-0051/eeprom" {
		t.Errorf("HwPath = %+v, %v", resp, err)
	}
	if resp, err := c.FruStatus(ctx, fanInv); err != nil || resp.Status != types.CollectionFailed {
		t.Errorf("FruStatus = %+v, %v", resp, err)
	}
	if svc.lastPath != fanInv {
		t.Errorf("query path = %q", svc.lastPath)
	}

	status, err := c.Status(ctx)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if !status.SystemCollectionComplete || len(status.Frus) != 1 {
		t.Errorf("Status = %+v", status)
	}
}

func TestClient_Errors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
	}{
		{"not found", fault.NotFound("hw-path", fanInv), http.StatusNotFound},
		{"in progress", fault.ErrCollectionInProgress, http.StatusConflict},
		{"not running", manager.ErrNotRunning, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newClient(t, &stubService{err: tt.err})
			_, err := c.HwPath(t.Context(), fanInv)

			var apiErr *APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("err = %v, want *APIError", err)
			}
			if apiErr.StatusCode != tt.wantCode {
				t.Errorf("status = %d, want %d", apiErr.StatusCode, tt.wantCode)
			}
			if apiErr.Message == "" || apiErr.ErrorType == "" {
				t.Errorf("error body not decoded: %+v", apiErr)
			}
			if IsNotFound(err) != (tt.wantCode == http.StatusNotFound) {
				t.Errorf("IsNotFound = %v", IsNotFound(err))
			}
		})
	}
}

func TestClient_UpdateFailure(t *testing.T) {
	c := newClient(t, &stubService{err: errors.New("eeprom gone")})
	_, err := c.UpdateKeyword(t.Context(), fanInv, types.KeywordWrite("PE", []byte{1}))

	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.ErrorType != types.WriteFailure.String() {
		t.Errorf("err = %v, want WriteFailure API error", err)
	}
}

func TestNew_Address(t *testing.T) {
	tests := []struct {
		addr     string
		wantBase string
		wantErr  bool
	}{
		{"127.0.0.1:8470", "http://127.0.0.1:8470", false},
		{"http://bmc:8470/", "http://bmc:8470", false},
		{"", "", true},
	}
	for _, tt := range tests {
		c, err := New(tt.addr, 0)
		if (err != nil) != tt.wantErr {
			t.Errorf("New(%q) err = %v", tt.addr, err)
			continue
		}
		if err == nil && c.base != tt.wantBase {
			t.Errorf("New(%q) base = %q, want %q", tt.addr, c.base, tt.wantBase)
		}
	}
}
