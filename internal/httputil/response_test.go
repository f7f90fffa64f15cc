package httputil

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/EduShopX/edushop/internal/app/storage"
	apperrors "github.com/EduShopX/edushop/internal/errors"
)

func TestWriteErrorMapsStorageSentinels(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{fmt.Errorf("book 3: %w", storage.ErrNotFound), http.StatusNotFound},
		{fmt.Errorf("user ali: %w", storage.ErrConflict), http.StatusConflict},
		{storage.ErrEmptyCart, http.StatusBadRequest},
		{apperrors.Forbidden(""), http.StatusForbidden},
		{fmt.Errorf("connection reset"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		WriteError(rec, tc.err)
		if rec.Code != tc.status {
			t.Fatalf("%v: status %d, want %d", tc.err, rec.Code, tc.status)
		}
	}
}

func TestInternalErrorsHideCause(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, fmt.Errorf("pq: password authentication failed"))

	var body ErrorBody
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if strings.Contains(body.Error, "password") || body.Code != "INTERNAL_ERROR" {
		t.Fatalf("unexpected body %+v", body)
	}
}

func TestDecodeJSONRejectsUnknownFields(t *testing.T) {
	var dst struct {
		Name string `json:"name"`
	}
	err := DecodeJSON(io.NopCloser(strings.NewReader(`{"name":"go","extra":1}`)), &dst)
	if apperrors.HTTPStatus(err) != http.StatusBadRequest {
		t.Fatalf("expected bad request, got %v", err)
	}
	if err := DecodeJSON(io.NopCloser(strings.NewReader(``)), &dst); err == nil {
		t.Fatalf("expected empty body error")
	}
}
