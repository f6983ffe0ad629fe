// Copyright 2026 The Macaroni Authors
// SPDX-License-Identifier: Apache-2.0

package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/macaroni-sandbox/macaroni/lib/service"
	"github.com/macaroni-sandbox/macaroni/sandbox"
)

// echoRunner answers every command with its arguments on stdout.
type echoRunner struct{}

func (echoRunner) Run(ctx context.Context, request sandbox.RunRequest) (*sandbox.RunResult, error) {
	return &sandbox.RunResult{
		ExitCode: 0,
		Stdout:   []byte(strings.Join(request.Args, " ")),
		Stderr:   []byte("warn\xff"),
		Duration: 20 * time.Millisecond,
	}, nil
}

type testGateway struct {
	handler  http.Handler
	registry *prometheus.Registry
	manager  *sandbox.Manager
}

func newTestGateway(t *testing.T) *testGateway {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	manager, err := sandbox.NewManager(sandbox.Config{
		StateDir:    t.TempDir(),
		ShimLibrary: "/opt/macaroni/libmacaroni.so",
		Runner:      echoRunner{},
		Logger:      logger,
	})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	t.Cleanup(func() { manager.Close() })

	registry := prometheus.NewRegistry()
	handler, err := New(Config{
		Sandboxes:  service.NewSandboxService(manager, time.Now()),
		Gatherer:   registry,
		Registerer: registry,
		Logger:     logger,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return &testGateway{handler: handler, registry: registry, manager: manager}
}

func (g *testGateway) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	request := httptest.NewRequest(method, path, reader)
	if body != "" {
		request.Header.Set("Content-Type", "application/json")
	}
	recorder := httptest.NewRecorder()
	g.handler.ServeHTTP(recorder, request)
	return recorder
}

func decodeBody[T any](t *testing.T, recorder *httptest.ResponseRecorder) T {
	t.Helper()
	var value T
	if err := json.Unmarshal(recorder.Body.Bytes(), &value); err != nil {
		t.Fatalf("decoding %q: %v", recorder.Body.String(), err)
	}
	return value
}

func TestGatewayLifecycle(t *testing.T) {
	gateway := newTestGateway(t)

	created := gateway.do(t, http.MethodPost, "/v1/sandboxes",
		`{"mounts": [{"destination_path": "/foo", "host_path": "/Volumes/Stuff/foo"}]}`)
	if created.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body %s", created.Code, created.Body)
	}
	id := decodeBody[service.CreateResponse](t, created).ID
	if id == uuid.Nil {
		t.Fatal("create returned the nil id")
	}

	listed := gateway.do(t, http.MethodGet, "/v1/sandboxes", "")
	if listed.Code != http.StatusOK {
		t.Fatalf("list status = %d", listed.Code)
	}
	list := decodeBody[service.ListResponse](t, listed)
	if len(list.Sandboxes) != 1 || list.Sandboxes[0].ID != id {
		t.Fatalf("list = %+v", list)
	}
	if got := list.Sandboxes[0].Mounts; len(got) != 1 || got[0].HostPath != "/Volumes/Stuff/foo" {
		t.Errorf("listed mounts = %+v", got)
	}

	ran := gateway.do(t, http.MethodPost, "/v1/sandboxes/"+id.String()+"/run", `{"args": ["ls", "/foo"]}`)
	if ran.Code != http.StatusOK {
		t.Fatalf("run status = %d, body %s", ran.Code, ran.Body)
	}
	result := decodeBody[runResponse](t, ran)
	if result.Stdout != "ls /foo" || result.ExitCode != 0 || result.DurationMillis != 20 {
		t.Errorf("run result = %+v", result)
	}
	if result.Stderr != "warn\ufffd" {
		t.Errorf("stderr = %q, want invalid byte replaced", result.Stderr)
	}

	destroyed := gateway.do(t, http.MethodDelete, "/v1/sandboxes/"+id.String(), "")
	if destroyed.Code != http.StatusNoContent {
		t.Fatalf("destroy status = %d, body %s", destroyed.Code, destroyed.Body)
	}
	if gateway.manager.Len() != 0 {
		t.Errorf("manager still holds %d sandboxes", gateway.manager.Len())
	}
}

func TestGatewayNotFound(t *testing.T) {
	gateway := newTestGateway(t)
	unknown := uuid.NewString()

	for _, test := range []struct{ method, path, body string }{
		{http.MethodDelete, "/v1/sandboxes/" + unknown, ""},
		{http.MethodPost, "/v1/sandboxes/" + unknown + "/run", `{"args": ["true"]}`},
		{http.MethodGet, "/v2/nothing", ""},
	} {
		recorder := gateway.do(t, test.method, test.path, test.body)
		if recorder.Code != http.StatusNotFound {
			t.Errorf("%s %s = %d, want 404", test.method, test.path, recorder.Code)
			continue
		}
		if body := decodeBody[errorResponse](t, recorder); body.Code != service.CodeNotFound {
			t.Errorf("%s %s code = %q", test.method, test.path, body.Code)
		}
	}
}

func TestGatewayBadRequests(t *testing.T) {
	gateway := newTestGateway(t)
	id := uuid.NewString()

	tests := []struct {
		name, method, path, body string
		wantField                string
	}{
		{"malformed json", http.MethodPost, "/v1/sandboxes", `{"mounts":`, ""},
		{"relative destination", http.MethodPost, "/v1/sandboxes",
			`{"mounts": [{"destination_path": "foo", "host_path": "/h"}]}`, "mounts[0].destination_path"},
		{"missing host path", http.MethodPost, "/v1/sandboxes",
			`{"mounts": [{"destination_path": "/foo"}]}`, "mounts[0].host_path"},
		{"missing args", http.MethodPost, "/v1/sandboxes/" + id + "/run", `{}`, "args"},
		{"empty args", http.MethodPost, "/v1/sandboxes/" + id + "/run", `{"args": []}`, "args"},
		{"no body", http.MethodPost, "/v1/sandboxes/" + id + "/run", "", ""},
		{"malformed id", http.MethodDelete, "/v1/sandboxes/not-a-uuid", "", ""},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			recorder := gateway.do(t, test.method, test.path, test.body)
			if recorder.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400 (body %s)", recorder.Code, recorder.Body)
			}
			body := decodeBody[errorResponse](t, recorder)
			if body.Code != service.CodeInvalidArgument {
				t.Errorf("code = %q, want %q", body.Code, service.CodeInvalidArgument)
			}
			if test.wantField != "" {
				if _, ok := body.Details[test.wantField]; !ok {
					t.Errorf("details %v do not name %s", body.Details, test.wantField)
				}
			}
		})
	}
}

func TestGatewayCreateEmptyBody(t *testing.T) {
	gateway := newTestGateway(t)
	recorder := gateway.do(t, http.MethodPost, "/v1/sandboxes", "")
	if recorder.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201 (body %s)", recorder.Code, recorder.Body)
	}
}

func TestGatewayHealthAndMetrics(t *testing.T) {
	gateway := newTestGateway(t)

	health := gateway.do(t, http.MethodGet, "/health", "")
	if health.Code != http.StatusOK {
		t.Fatalf("health status = %d", health.Code)
	}
	body := decodeBody[map[string]any](t, health)
	if body["status"] != "healthy" || body["sandboxes"] != float64(0) {
		t.Errorf("health body = %v", body)
	}

	gateway.do(t, http.MethodGet, "/v1/sandboxes", "")
	metrics := gateway.do(t, http.MethodGet, "/metrics", "")
	if metrics.Code != http.StatusOK {
		t.Fatalf("metrics status = %d", metrics.Code)
	}
	if !strings.Contains(metrics.Body.String(), "macaroni_http_requests_total") {
		t.Errorf("metrics output lacks request counter:\n%s", metrics.Body)
	}

	count, err := testutil.GatherAndCount(gateway.registry, "macaroni_http_requests_total")
	if err != nil {
		t.Fatalf("GatherAndCount: %v", err)
	}
	// /health, /v1/sandboxes, and /metrics itself once it completes.
	if count < 2 {
		t.Errorf("request series = %d, want at least 2", count)
	}
}

func TestNewRequiresSandboxes(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Fatal("New without Sandboxes succeeded")
	}
}
