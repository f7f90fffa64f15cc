package httputil

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func TestNewClientDefaults(t *testing.T) {
	client := NewClient(ClientConfig{BaseURL: "http://localhost:8000/"})
	if client.baseURL != "http://localhost:8000" {
		t.Fatalf("baseURL = %q", client.baseURL)
	}
	if client.httpClient.Timeout != 10*time.Second {
		t.Fatalf("timeout = %v", client.httpClient.Timeout)
	}
	if client.maxRetries != 0 {
		t.Fatalf("maxRetries = %d", client.maxRetries)
	}
}

func TestClientSendsTokenAndJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer abc" {
			t.Errorf("Authorization = %q", got)
		}
		if got := r.Header.Get("Content-Type"); got != "application/json" {
			t.Errorf("Content-Type = %q", got)
		}
		var in map[string]string
		_ = json.NewDecoder(r.Body).Decode(&in)
		WriteJSON(w, http.StatusCreated, map[string]string{"echo": in["subject"]})
	}))
	defer server.Close()

	client := NewClient(ClientConfig{BaseURL: server.URL, Token: "abc"})
	resp, err := client.Post(context.Background(), "/api/management/email/send/", map[string]string{"subject": "hi"})
	if err != nil {
		t.Fatalf("Post() error = %v", err)
	}
	var out map[string]string
	if err := DecodeResponse(resp, &out); err != nil {
		t.Fatalf("DecodeResponse() error = %v", err)
	}
	if out["echo"] != "hi" {
		t.Fatalf("echo = %q", out["echo"])
	}
}

func TestClientRetriesUnavailable(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewClient(ClientConfig{BaseURL: server.URL, MaxRetries: 2})
	client.backoff = time.Millisecond
	resp, err := client.Get(context.Background(), "/")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if atomic.LoadInt32(&calls) != 3 {
		t.Fatalf("calls = %d, want 3", atomic.LoadInt32(&calls))
	}
}

func TestClientDoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		WriteDetail(w, http.StatusForbidden, "nope")
	}))
	defer server.Close()

	client := NewClient(ClientConfig{BaseURL: server.URL, MaxRetries: 3})
	resp, err := client.Get(context.Background(), "/")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	err = DecodeResponse(resp, nil)
	if err == nil || !strings.Contains(err.Error(), "403") || !strings.Contains(err.Error(), "nope") {
		t.Fatalf("DecodeResponse() error = %v", err)
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("calls = %d, want 1", atomic.LoadInt32(&calls))
	}
}

func TestHealth(t *testing.T) {
	var unhealthy int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/healthz" {
			t.Errorf("path = %q", r.URL.Path)
		}
		status := "ok"
		if atomic.LoadInt32(&unhealthy) == 1 {
			status = "unhealthy"
		}
		WriteJSON(w, http.StatusOK, map[string]interface{}{"status": status, "checks": map[string]string{"redis": "ok"}})
	}))
	defer server.Close()

	client := NewClient(ClientConfig{BaseURL: server.URL})
	checks, err := client.Health(context.Background())
	if err != nil {
		t.Fatalf("Health() error = %v", err)
	}
	if checks["redis"] != "ok" {
		t.Fatalf("checks = %v", checks)
	}

	atomic.StoreInt32(&unhealthy, 1)
	if _, err := client.Health(context.Background()); err == nil {
		t.Fatal("Health() expected error for unhealthy instance")
	}
}

func TestReadAllStrict(t *testing.T) {
	if _, err := ReadAllStrict(strings.NewReader("abcdef"), 3); err != ErrBodyTooLarge {
		t.Fatalf("ReadAllStrict() error = %v, want ErrBodyTooLarge", err)
	}
	data, truncated, err := ReadAllWithLimit(strings.NewReader("abc"), 3)
	if err != nil || truncated || string(data) != "abc" {
		t.Fatalf("ReadAllWithLimit() = %q, %v, %v", data, truncated, err)
	}
}
