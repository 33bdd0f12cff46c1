package server

import (
	"context"
	"io"
	"net/http"
	"testing"
	"time"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})
}

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig(okHandler())

	if config.Address != DefaultAddress {
		t.Errorf("Expected address %s, got %s", DefaultAddress, config.Address)
	}
	if config.ReadTimeout != 15*time.Second {
		t.Errorf("Expected ReadTimeout 15s, got %v", config.ReadTimeout)
	}
	if config.WriteTimeout != 0 {
		t.Errorf("Expected no WriteTimeout for streaming, got %v", config.WriteTimeout)
	}
	if config.IdleTimeout != 60*time.Second {
		t.Errorf("Expected IdleTimeout 60s, got %v", config.IdleTimeout)
	}
}

func TestNewServer(t *testing.T) {
	if _, err := New(nil); err == nil {
		t.Error("Expected error for nil config")
	}
	if _, err := New(DefaultConfig(nil)); err == nil {
		t.Error("Expected error for nil handler")
	}

	srv, err := New(&Config{Handler: okHandler()})
	if err != nil {
		t.Fatalf("Failed to create server: %v", err)
	}
	if srv.Addr() != DefaultAddress {
		t.Errorf("Expected default address, got %s", srv.Addr())
	}
}

func TestServerStartAndShutdown(t *testing.T) {
	config := DefaultConfig(okHandler())
	config.Address = "127.0.0.1:0"

	srv, err := New(config)
	if err != nil {
		t.Fatalf("Failed to create server: %v", err)
	}
	if err := srv.Listen(); err != nil {
		t.Fatalf("Listen failed: %v", err)
	}

	errChan := make(chan error, 1)
	go func() { errChan <- srv.Start() }()

	resp, err := http.Get("http://" + srv.Addr() + "/")
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if string(body) != "OK" {
		t.Errorf("Expected body 'OK', got %s", body)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		t.Errorf("Shutdown failed: %v", err)
	}
	if err := <-errChan; err != nil {
		t.Errorf("Start returned %v after graceful shutdown", err)
	}
}
