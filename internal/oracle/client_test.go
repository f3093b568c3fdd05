package oracle

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func newTestClient(endpoint string, maxRetries int, sleeps *[]time.Duration) *Client {
	return NewClient(Config{
		Endpoint:   endpoint,
		APIKey:     "test-key",
		Model:      "test-model",
		MaxRetries: maxRetries,
		Sleep: func(d time.Duration) {
			if sleeps != nil {
				*sleeps = append(*sleeps, d)
			}
		},
	})
}

func okBody(text string) string {
	body, _ := json.Marshal(map[string]any{
		"content": []map[string]string{{"text": text}},
	})
	return string(body)
}

func TestCompleteSuccess(t *testing.T) {
	var gotAPIKey, gotVersion string
	var gotReq messageRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAPIKey = r.Header.Get("x-api-key")
		gotVersion = r.Header.Get("anthropic-version")
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Write([]byte(okBody("  DOCUMENT_TYPE: SCHEDULE  ")))
	}))
	defer server.Close()

	client := newTestClient(server.URL, 3, nil)

	got, err := client.Complete(context.Background(), "classify this")
	if err != nil {
		t.Fatalf("Complete() error: %v", err)
	}

	if got != "DOCUMENT_TYPE: SCHEDULE" {
		t.Errorf("Complete() = %q, want trimmed response text", got)
	}
	if gotAPIKey != "test-key" {
		t.Errorf("x-api-key = %q", gotAPIKey)
	}
	if gotVersion != apiVersion {
		t.Errorf("anthropic-version = %q", gotVersion)
	}
	if len(gotReq.Messages) != 1 || gotReq.Messages[0].Content != "classify this" {
		t.Errorf("request messages = %+v", gotReq.Messages)
	}
	if gotReq.Messages[0].Role != "user" {
		t.Errorf("role = %q", gotReq.Messages[0].Role)
	}
}

func TestCompleteOverloadedRetriesWithExponentialBackoff(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(529)
		w.Write([]byte(`{"error":{"message":"Overloaded"}}`))
	}))
	defer server.Close()

	var sleeps []time.Duration
	client := newTestClient(server.URL, 3, &sleeps)

	_, err := client.Complete(context.Background(), "prompt")
	if err == nil {
		t.Fatal("Complete() error = nil, want failure after exhausted retries")
	}

	var se *StatusError
	if !errors.As(err, &se) || se.Code != 529 {
		t.Fatalf("error %v does not wrap StatusError 529", err)
	}
	if se.Message != "Overloaded" {
		t.Errorf("Message = %q", se.Message)
	}

	if got := atomic.LoadInt32(&calls); got != 4 {
		t.Errorf("server hit %d times, want 4 (1 initial + 3 retries)", got)
	}

	want := []time.Duration{5 * time.Second, 10 * time.Second, 20 * time.Second}
	if len(sleeps) != len(want) {
		t.Fatalf("recorded sleeps %v, want %v", sleeps, want)
	}
	for i := range want {
		if sleeps[i] != want[i] {
			t.Errorf("sleeps[%d] = %v, want %v", i, sleeps[i], want[i])
		}
	}
}

func TestCompleteRateLimitedRetriesWithLinearBackoff(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	var sleeps []time.Duration
	client := newTestClient(server.URL, 2, &sleeps)

	_, err := client.Complete(context.Background(), "prompt")
	if err == nil {
		t.Fatal("Complete() error = nil")
	}

	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Errorf("server hit %d times, want 3", got)
	}

	want := []time.Duration{30 * time.Second, 40 * time.Second}
	if len(sleeps) != len(want) {
		t.Fatalf("recorded sleeps %v, want %v", sleeps, want)
	}
	for i := range want {
		if sleeps[i] != want[i] {
			t.Errorf("sleeps[%d] = %v, want %v", i, sleeps[i], want[i])
		}
	}
}

func TestCompleteClientErrorFailsFast(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"message":"invalid model"}}`))
	}))
	defer server.Close()

	var sleeps []time.Duration
	client := newTestClient(server.URL, 3, &sleeps)

	_, err := client.Complete(context.Background(), "prompt")
	if err == nil {
		t.Fatal("Complete() error = nil")
	}

	var se *StatusError
	if !errors.As(err, &se) || se.Code != http.StatusBadRequest {
		t.Fatalf("error %v does not wrap StatusError 400", err)
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("server hit %d times, want 1 (no retries on 400)", got)
	}
	if len(sleeps) != 0 {
		t.Errorf("recorded sleeps %v, want none", sleeps)
	}
}

func TestCompleteRecoversAfterTransientOverload(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) <= 2 {
			w.WriteHeader(529)
			return
		}
		w.Write([]byte(okBody("ok")))
	}))
	defer server.Close()

	var sleeps []time.Duration
	client := newTestClient(server.URL, 3, &sleeps)

	got, err := client.Complete(context.Background(), "prompt")
	if err != nil {
		t.Fatalf("Complete() error: %v", err)
	}
	if got != "ok" {
		t.Errorf("Complete() = %q", got)
	}
	if atomic.LoadInt32(&calls) != 3 {
		t.Errorf("server hit %d times, want 3", calls)
	}
}

func TestCompleteEmptyContent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"content":[]}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL, 0, nil)

	if _, err := client.Complete(context.Background(), "prompt"); err == nil {
		t.Fatal("Complete() error = nil, want failure on empty content")
	}
}

func TestStatusErrorMessage(t *testing.T) {
	withMessage := &StatusError{Code: 529, Message: "Overloaded"}
	if withMessage.Error() != "oracle returned HTTP 529: Overloaded" {
		t.Errorf("Error() = %q", withMessage.Error())
	}
	bare := &StatusError{Code: 503}
	if bare.Error() != "oracle returned HTTP 503" {
		t.Errorf("Error() = %q", bare.Error())
	}
}
