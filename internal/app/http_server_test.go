package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"

	healthcheck "github.com/vladislavdragonenkov/loja/internal/health"
)

func TestOpsHandler_Endpoints(t *testing.T) {
	healthHandler := healthcheck.NewHandler("test")
	srv := httptest.NewServer(newOpsHandler(healthHandler))
	defer srv.Close()

	tests := []struct {
		path     string
		wantBody string
	}{
		{path: "/metrics"},
		{path: "/healthz"},
		{path: "/livez", wantBody: "ok"},
		{path: "/readyz", wantBody: "ready"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			resp, err := http.Get(srv.URL + tt.path)
			if err != nil {
				t.Fatalf("failed to get %s: %v", tt.path, err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusOK {
				t.Errorf("%s returned status %d, expected 200", tt.path, resp.StatusCode)
			}
			body, _ := io.ReadAll(resp.Body)
			if len(body) == 0 {
				t.Errorf("%s should return non-empty response", tt.path)
			}
			if tt.wantBody != "" && string(body) != tt.wantBody {
				t.Errorf("expected %q from %s, got %q", tt.wantBody, tt.path, string(body))
			}
		})
	}
}

func TestOpsHandler_ReadinessFollowsStorage(t *testing.T) {
	healthHandler := healthcheck.NewHandler("test")
	healthHandler.RegisterChecker("storage", healthcheck.NewFuncChecker("storage", func(context.Context) error {
		return errors.New("connection refused")
	}))
	handler := newOpsHandler(healthHandler)

	for _, path := range []string{"/readyz", "/healthz"} {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		if w.Code != http.StatusServiceUnavailable {
			t.Errorf("%s: expected 503 when storage is down, got %d", path, w.Code)
		}
	}

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/livez", nil))
	if w.Code != http.StatusOK {
		t.Errorf("liveness must not depend on storage, got %d", w.Code)
	}
}

func TestShutdownHTTP_NilServer(_ *testing.T) {
	// Не должно паниковать
	shutdownHTTP(nil, log.WithField("test", "http-nil"))
}

func TestShutdownHTTP_WithServer(t *testing.T) {
	logger := log.WithField("test", "http-shutdown-func")

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/test", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("test"))
	})
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: time.Second}

	served := make(chan error, 1)
	go func() { served <- serveHTTP(srv, lis) }()

	url := fmt.Sprintf("http://%s/test", lis.Addr())
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("server should be running: %v", err)
	}
	resp.Body.Close()

	shutdownHTTP(srv, logger)

	select {
	case err := <-served:
		if err != nil {
			t.Fatalf("serveHTTP must treat shutdown as clean exit, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop after shutdownHTTP")
	}
}

func TestListenAll_ClosesOnFailure(t *testing.T) {
	busy, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer busy.Close()

	_, err = listenAll("127.0.0.1:0", busy.Addr().String())
	if err == nil {
		t.Fatal("expected error for busy address")
	}

	listeners, err := listenAll("127.0.0.1:0", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listenAll: %v", err)
	}
	for _, lis := range listeners {
		_ = lis.Close()
	}
	if len(listeners) != 2 {
		t.Fatalf("expected 2 listeners, got %d", len(listeners))
	}
}
