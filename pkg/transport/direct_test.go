package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/Borislavv/wordpress-cdn-cache-plugin/pkg/config"
	"github.com/Borislavv/wordpress-cdn-cache-plugin/pkg/secret"
)

const (
	testKeyHex = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"
	testIVHex  = "0f0e0d0c0b0a09080706050403020100"
)

func encrypt(t *testing.T, plain string) string {
	t.Helper()
	d, err := secret.NewDecrypter(testKeyHex, testIVHex)
	if err != nil {
		t.Fatalf("NewDecrypter: %v", err)
	}
	enc, err := d.Encrypt(plain)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	return enc
}

func directConfig(t *testing.T, apiURL string) *config.Config {
	t.Helper()
	return &config.Config{
		SiteURL:      "https://example.com",
		CFAPIURL:     apiURL,
		CFZoneIDEnc:  encrypt(t, "zone123"),
		CFEmailEnc:   encrypt(t, "admin@example.com"),
		CFAPIKeyEnc:  encrypt(t, "global-key"),
		SecretKeyHex: testKeyHex,
		SecretIVHex:  testIVHex,
	}
}

func TestDirectSendChunks(t *testing.T) {
	var calls atomic.Int32
	var mu sync.Mutex
	var bodies []map[string][]string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/zones/zone123/purge_cache" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if r.Header.Get("X-Auth-Email") != "admin@example.com" || r.Header.Get("X-Auth-Key") != "global-key" {
			t.Errorf("auth headers missing: %v", r.Header)
		}
		raw, _ := io.ReadAll(r.Body)
		var body map[string][]string
		if err := json.Unmarshal(raw, &body); err != nil {
			t.Errorf("bad body: %v", err)
		}
		mu.Lock()
		bodies = append(bodies, body)
		mu.Unlock()
		calls.Add(1)
		_, _ = w.Write([]byte(`{"success":true,"errors":[]}`))
	}))
	defer srv.Close()

	d, err := NewDirect(directConfig(t, srv.URL))
	if err != nil {
		t.Fatalf("NewDirect: %v", err)
	}
	defer func() { _ = d.Close() }()

	items := make([]string, 31)
	for i := range items {
		items[i] = fmt.Sprintf("https://example.com/p%d/", i)
	}
	if err = d.Send(context.Background(), items, ModeURL); err != nil {
		t.Fatalf("Send: %v", err)
	}

	if got := calls.Load(); got != 2 {
		t.Errorf("api calls = %d, want 2 for 31 items", got)
	}
	total := 0
	for _, b := range bodies {
		files, ok := b["files"]
		if !ok {
			t.Errorf("body without files key: %v", b)
		}
		if len(files) > 30 {
			t.Errorf("chunk of %d items exceeds limit", len(files))
		}
		total += len(files)
	}
	if total != 31 {
		t.Errorf("items dispatched = %d, want 31", total)
	}
}

func TestDirectSendChunkErrorIsNotFatal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	d, err := NewDirect(directConfig(t, srv.URL))
	if err != nil {
		t.Fatalf("NewDirect: %v", err)
	}
	defer func() { _ = d.Close() }()

	if err = d.Send(context.Background(), []string{"https://example.com/a/"}, ModeURL); err != nil {
		t.Errorf("Send must not fail on chunk-level api errors, got %v", err)
	}
}

func TestDirectSendWithoutCredentials(t *testing.T) {
	cfg := &config.Config{
		SiteURL:      "https://example.com",
		CFZoneIDEnc:  encrypt(t, "zone123"),
		SecretKeyHex: testKeyHex,
		SecretIVHex:  testIVHex,
	}
	d, err := NewDirect(cfg)
	if err != nil {
		t.Fatalf("NewDirect: %v", err)
	}
	defer func() { _ = d.Close() }()

	if err = d.Send(context.Background(), []string{"https://example.com/a/"}, ModeURL); !errors.Is(err, ErrNoCredentials) {
		t.Errorf("err = %v, want ErrNoCredentials", err)
	}
}

func TestDirectSendUndecryptableZone(t *testing.T) {
	cfg := directConfig(t, "http://unused")
	cfg.CFZoneIDEnc = "garbage-not-base64"
	d, err := NewDirect(cfg)
	if err != nil {
		t.Fatalf("NewDirect: %v", err)
	}
	defer func() { _ = d.Close() }()

	if err = d.Send(context.Background(), []string{"https://example.com/a/"}, ModeURL); !errors.Is(err, secret.ErrDecryptionFailed) {
		t.Errorf("err = %v, want ErrDecryptionFailed", err)
	}
}

func TestDirectPurgeEverything(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true,"errors":[]}`))
	}))
	defer srv.Close()

	cfg := directConfig(t, srv.URL)
	d, err := NewDirect(cfg)
	if err != nil {
		t.Fatalf("NewDirect: %v", err)
	}
	defer func() { _ = d.Close() }()

	if err = d.PurgeEverything(context.Background()); err != nil {
		t.Fatalf("PurgeEverything: %v", err)
	}
	if v, ok := gotBody["purge_everything"]; !ok || v != true {
		t.Errorf("body = %v, want purge_everything:true", gotBody)
	}

	// Prefix-capable accounts purge by hostname instead.
	cfg.CFSupportsPrefixPurge = true
	if err = d.PurgeEverything(context.Background()); err != nil {
		t.Fatalf("PurgeEverything (hosts): %v", err)
	}
	hosts, ok := gotBody["hosts"].([]any)
	if !ok || len(hosts) != 1 || hosts[0] != "example.com" {
		t.Errorf("body = %v, want hosts:[example.com]", gotBody)
	}
}

func TestDirectPurgeEverythingFoldsAPIErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"success":false,"errors":[{"message":"Invalid zone","code":7003}]}`))
	}))
	defer srv.Close()

	d, err := NewDirect(directConfig(t, srv.URL))
	if err != nil {
		t.Fatalf("NewDirect: %v", err)
	}
	defer func() { _ = d.Close() }()

	err = d.PurgeEverything(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	if want := "Invalid zone (err code: 7003)"; err.Error() != want {
		t.Errorf("err = %q, want %q", err.Error(), want)
	}
}

func TestChunks(t *testing.T) {
	cases := []struct {
		n    int
		want int
	}{
		{0, 0}, {1, 1}, {30, 1}, {31, 2}, {60, 2}, {61, 3},
	}
	for _, c := range cases {
		items := make([]string, c.n)
		if got := len(chunks(items)); got != c.want {
			t.Errorf("chunks of %d items = %d groups, want %d", c.n, got, c.want)
		}
	}
}
