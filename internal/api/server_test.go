package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"pantry/internal/api"
	"pantry/internal/assets"
	"pantry/internal/pantry"
	"pantry/internal/recipe"
	"pantry/internal/records"
	"pantry/internal/services"
	"pantry/internal/testsupport"
)

type recipeStub struct {
	result  recipe.Result
	err     error
	started chan struct{}
	release chan struct{}
}

func (s *recipeStub) Generate(ctx context.Context, _ []pantry.Item) (recipe.Result, error) {
	if s.started != nil {
		close(s.started)
	}
	if s.release != nil {
		select {
		case <-s.release:
		case <-ctx.Done():
			return recipe.Result{}, ctx.Err()
		}
	}
	return s.result, s.err
}

type fixture struct {
	server  *httptest.Server
	store   *records.Store
	manager *pantry.Manager
	assets  *testsupport.AssetStore
}

func newFixture(t *testing.T, opts api.Options) fixture {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	assetStore := testsupport.NewAssetStore()
	manager := pantry.NewManager(store, assetStore)

	opts.Inventory = manager
	srv := api.New(opts)
	server := httptest.NewServer(srv.Handler())
	t.Cleanup(server.Close)
	return fixture{server: server, store: store, manager: manager, assets: assetStore}
}

func multipartBody(t *testing.T, fields map[string]string, image []byte) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			t.Fatalf("write field: %v", err)
		}
	}
	if image != nil {
		part, err := writer.CreateFormFile("image", "photo.jpg")
		if err != nil {
			t.Fatalf("create file part: %v", err)
		}
		_, _ = part.Write(image)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}
	return &buf, writer.FormDataContentType()
}

func do(t *testing.T, method, url string, body io.Reader, contentType string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, url, body)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var out T
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return out
}

func TestHealth(t *testing.T) {
	f := newFixture(t, api.Options{})
	resp := do(t, http.MethodGet, f.server.URL+"/api/health", nil, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if resp.Header.Get("X-Request-ID") == "" {
		t.Fatal("expected request id header")
	}
}

func TestAddListAndSearch(t *testing.T) {
	f := newFixture(t, api.Options{})

	body, ct := multipartBody(t, map[string]string{"name": "Green Apples", "price": "1.25", "quantity": "4"}, []byte("jpeg"))
	resp := do(t, http.MethodPost, f.server.URL+"/api/inventory", body, ct)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	created := decode[api.Item](t, resp)
	if created.ImageURL != "http://assets.test/images/Green Apples" || created.Price != "1.25" {
		t.Fatalf("unexpected created item %+v", created)
	}

	body, ct = multipartBody(t, map[string]string{"name": "Bread", "price": "3", "quantity": "1"}, nil)
	if resp := do(t, http.MethodPost, f.server.URL+"/api/inventory", body, ct); resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}

	list := decode[api.InventoryResponse](t, do(t, http.MethodGet, f.server.URL+"/api/inventory", nil, ""))
	if len(list.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(list.Items))
	}
	filtered := decode[api.InventoryResponse](t, do(t, http.MethodGet, f.server.URL+"/api/inventory?search=apple", nil, ""))
	if len(filtered.Items) != 1 || filtered.Items[0].Name != "Green Apples" {
		t.Fatalf("unexpected search result %+v", filtered.Items)
	}
}

func TestAddAcceptsURLEncodedForm(t *testing.T) {
	f := newFixture(t, api.Options{})
	body := strings.NewReader("name=Rice&price=2&quantity=1&image_url=https%3A%2F%2Fexample.com%2Frice.png")
	resp := do(t, http.MethodPost, f.server.URL+"/api/inventory", body, "application/x-www-form-urlencoded")
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	if item := decode[api.Item](t, resp); item.ImageURL != "https://example.com/rice.png" {
		t.Fatalf("unexpected image url %q", item.ImageURL)
	}
}

func TestAddBlankFieldIsNoContent(t *testing.T) {
	f := newFixture(t, api.Options{})
	body, ct := multipartBody(t, map[string]string{"name": "Rice", "price": "", "quantity": "1"}, []byte("jpeg"))
	resp := do(t, http.MethodPost, f.server.URL+"/api/inventory", body, ct)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.StatusCode)
	}
	if uploads, _ := f.assets.Calls(); len(uploads) != 0 {
		t.Fatalf("expected no upload, got %v", uploads)
	}
}

func TestAddMalformedPriceIsUnprocessable(t *testing.T) {
	f := newFixture(t, api.Options{})
	body, ct := multipartBody(t, map[string]string{"name": "Rice", "price": "lots", "quantity": "1"}, nil)
	resp := do(t, http.MethodPost, f.server.URL+"/api/inventory", body, ct)
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", resp.StatusCode)
	}
	if errResp := decode[api.ErrorResponse](t, resp); errResp.Kind != "validation" {
		t.Fatalf("unexpected error kind %q", errResp.Kind)
	}
}

func TestEditAndDelete(t *testing.T) {
	f := newFixture(t, api.Options{})
	added, err := f.manager.AddItem(context.Background(), pantry.Draft{Name: "Milk", Price: "1", Quantity: "1"}, []byte("old"))
	if err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	itemURL := f.server.URL + "/api/inventory/" + added.Item.ID

	body, ct := multipartBody(t, map[string]string{"name": "Oat Milk", "price": "2", "quantity": "2", "image_url": added.Item.ImageURL}, []byte("new"))
	resp := do(t, http.MethodPut, itemURL, body, ct)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	edited := decode[api.MutationResponse](t, resp)
	if edited.Item.Name != "Oat Milk" || !edited.Cleanup.Succeeded || edited.Cleanup.Key != "images/Milk" {
		t.Fatalf("unexpected edit response %+v", edited)
	}

	resp = do(t, http.MethodDelete, itemURL, nil, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if deleted := decode[api.MutationResponse](t, resp); deleted.Cleanup.Key != "images/Oat Milk" {
		t.Fatalf("unexpected delete cleanup %+v", deleted.Cleanup)
	}

	resp = do(t, http.MethodDelete, itemURL, nil, "")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 on second delete, got %d", resp.StatusCode)
	}
}

func TestEditMissingItemIsNotFound(t *testing.T) {
	f := newFixture(t, api.Options{})
	body, ct := multipartBody(t, map[string]string{"name": "X", "price": "1", "quantity": "1"}, nil)
	resp := do(t, http.MethodPut, f.server.URL+"/api/inventory/does-not-exist", body, ct)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestRecipeStatusCodes(t *testing.T) {
	tests := []struct {
		name   string
		stub   *recipeStub
		status int
	}{
		{
			name:   "ok",
			stub:   &recipeStub{result: recipe.Result{Title: "Soup", Steps: []string{"1. Boil"}}},
			status: http.StatusOK,
		},
		{
			name:   "parse failure",
			stub:   &recipeStub{err: recipe.ErrRecipeParse},
			status: http.StatusUnprocessableEntity,
		},
		{
			name:   "upstream failure",
			stub:   &recipeStub{err: services.Wrap(services.ErrUpstream, "llm", "complete", "http 503", errors.New("boom"))},
			status: http.StatusBadGateway,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t, api.Options{Recipes: tc.stub})
			resp := do(t, http.MethodPost, f.server.URL+"/api/recipe", nil, "")
			if resp.StatusCode != tc.status {
				t.Fatalf("expected %d, got %d", tc.status, resp.StatusCode)
			}
			if tc.status == http.StatusOK {
				got := decode[api.RecipeResponse](t, resp)
				if got.Title != "Soup" || got.Text != "Soup\n1. Boil" {
					t.Fatalf("unexpected recipe %+v", got)
				}
			}
		})
	}
}

func TestRecipeRejectsConcurrentGeneration(t *testing.T) {
	stub := &recipeStub{
		result:  recipe.Result{Title: "Stew"},
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	f := newFixture(t, api.Options{Recipes: stub})

	done := make(chan int, 1)
	go func() {
		resp, err := http.Post(f.server.URL+"/api/recipe", "", nil)
		if err != nil {
			done <- 0
			return
		}
		resp.Body.Close()
		done <- resp.StatusCode
	}()

	select {
	case <-stub.started:
	case <-time.After(5 * time.Second):
		t.Fatal("first generation never started")
	}
	resp := do(t, http.MethodPost, f.server.URL+"/api/recipe", nil, "")
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 while in flight, got %d", resp.StatusCode)
	}
	close(stub.release)
	if status := <-done; status != http.StatusOK {
		t.Fatalf("expected first request to succeed, got %d", status)
	}
}

func TestStreamDeliversSnapshots(t *testing.T) {
	f := newFixture(t, api.Options{})
	wsURL := "ws" + strings.TrimPrefix(f.server.URL, "http") + "/api/inventory/stream"

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var initial api.StreamMessage
	if err := conn.ReadJSON(&initial); err != nil {
		t.Fatalf("read initial snapshot: %v", err)
	}
	if initial.Type != "snapshot" || len(initial.Items) != 0 {
		t.Fatalf("unexpected initial message %+v", initial)
	}

	if _, err := f.manager.AddItem(context.Background(), pantry.Draft{Name: "Tea", Price: "4", Quantity: "1"}, nil); err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	var next api.StreamMessage
	if err := conn.ReadJSON(&next); err != nil {
		t.Fatalf("read snapshot: %v", err)
	}
	if len(next.Items) != 1 || next.Items[0].Name != "Tea" {
		t.Fatalf("unexpected snapshot %+v", next)
	}
}

func TestStreamClosesWhenStoreCloses(t *testing.T) {
	f := newFixture(t, api.Options{})
	wsURL := "ws" + strings.TrimPrefix(f.server.URL, "http") + "/api/inventory/stream"

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var initial api.StreamMessage
	if err := conn.ReadJSON(&initial); err != nil {
		t.Fatalf("read initial snapshot: %v", err)
	}
	if err := f.store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	_, _, err = conn.ReadMessage()
	if !websocket.IsCloseError(err, websocket.CloseGoingAway) {
		t.Fatalf("expected going-away close, got %v", err)
	}
}

func TestTokenRequired(t *testing.T) {
	f := newFixture(t, api.Options{Token: "secret"})

	if resp := do(t, http.MethodGet, f.server.URL+"/api/inventory", nil, ""); resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", resp.StatusCode)
	}
	req, _ := http.NewRequest(http.MethodGet, f.server.URL+"/api/inventory", nil)
	req.Header.Set("Authorization", "Bearer secret")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 with token, got %d", resp.StatusCode)
	}
	if resp := do(t, http.MethodGet, f.server.URL+"/api/health", nil, ""); resp.StatusCode != http.StatusOK {
		t.Fatalf("health should stay open, got %d", resp.StatusCode)
	}
}

func TestAssetsServePhotosButNotPrivateFiles(t *testing.T) {
	dir := t.TempDir()
	f := newFixture(t, api.Options{AssetsDir: dir})
	fileStore, err := assets.NewFileStore(dir, f.server.URL+"/assets", nil)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	ctx := context.Background()
	photos := map[string]string{".bashrc": "dot", "Tea": "png", "index.html": "html"}
	for name, body := range photos {
		url, err := fileStore.Upload(ctx, assets.ImageKey(name), []byte(body))
		if err != nil {
			t.Fatalf("Upload %q: %v", name, err)
		}
		resp := do(t, http.MethodGet, url, nil, "")
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("%q: expected 200 from %s, got %d", name, url, resp.StatusCode)
		}
		if data, _ := io.ReadAll(resp.Body); string(data) != body {
			t.Fatalf("%q: unexpected body %q", name, data)
		}
	}

	if err := os.WriteFile(filepath.Join(dir, "images", assets.TempFilePrefix+"123"), []byte("partial"), 0o644); err != nil {
		t.Fatal(err)
	}
	for _, private := range []string{"/assets/" + assets.LockFileName, "/assets/images/" + assets.TempFilePrefix + "123", "/assets/images/", "/assets/"} {
		if resp := do(t, http.MethodGet, f.server.URL+private, nil, ""); resp.StatusCode != http.StatusNotFound {
			t.Fatalf("expected %s hidden, got %d", private, resp.StatusCode)
		}
	}
}
