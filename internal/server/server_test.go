package server_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"pantry/internal/api"
	"pantry/internal/server"
	"pantry/internal/testsupport"
)

func fakeCompletion(t *testing.T, content string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{"message": map[string]any{"content": content}}},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestServerServesInventoryAndRecipes(t *testing.T) {
	llm := fakeCompletion(t, "**Rice Bowl**\n1. Cook rice. 2. Serve.")
	cfg := testsupport.NewConfig(t, testsupport.WithLLMEndpoint(llm.URL))
	cfg.Metrics.Enabled = true

	srv, err := server.New(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = srv.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := srv.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	base := "http://" + srv.Addr()

	form := url.Values{"name": {"Rice"}, "price": {"2.50"}, "quantity": {"3"}}
	resp, err := http.Post(base+"/api/inventory", "application/x-www-form-urlencoded", strings.NewReader(form.Encode()))
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}

	resp, err = http.Post(base+"/api/recipe", "", nil)
	if err != nil {
		t.Fatalf("recipe: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var got api.RecipeResponse
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Title != "Rice Bowl" || len(got.Steps) != 2 || got.Steps[1] != "2. Serve." {
		t.Fatalf("unexpected recipe %+v", got)
	}

	metricsResp, err := http.Get(base + "/metrics")
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}
	metricsResp.Body.Close()
	if metricsResp.StatusCode != http.StatusOK {
		t.Fatalf("expected metrics endpoint, got %d", metricsResp.StatusCode)
	}
}

func TestSecondServerRefusedWhileLocked(t *testing.T) {
	cfg := testsupport.NewConfig(t)

	first, err := server.New(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("New first: %v", err)
	}
	t.Cleanup(func() { _ = first.Close() })
	if err := first.Start(context.Background()); err != nil {
		t.Fatalf("Start first: %v", err)
	}

	second, err := server.New(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("New second: %v", err)
	}
	t.Cleanup(func() { _ = second.Close() })
	if err := second.Start(context.Background()); err == nil {
		t.Fatal("expected second server to be refused")
	}

	first.Stop()
	if first.Running() {
		t.Fatal("expected first server stopped")
	}
	if err := second.Start(context.Background()); err != nil {
		t.Fatalf("expected lock to be free after Stop: %v", err)
	}
}

func TestStartTwiceFails(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	srv, err := server.New(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = srv.Close() })
	if err := srv.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := srv.Start(context.Background()); err == nil {
		t.Fatal("expected error when already running")
	}
}
