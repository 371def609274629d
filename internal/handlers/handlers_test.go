package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"image/color"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"random-photo-backend/internal/imageloader"
	"random-photo-backend/internal/media"
	"random-photo-backend/internal/models"
	"random-photo-backend/internal/services"

	"github.com/disintegration/imaging"
	"github.com/gorilla/websocket"
)

type stubFetcher struct {
	base string
}

func (f *stubFetcher) FetchRandomPhotos(_ context.Context, query string) ([]models.PhotoRecord, error) {
	name := "random"
	if query != "" {
		name = query
	}
	full := f.base + "/" + name + "/full"
	thumb := f.base + "/" + name + "/thumb"
	desc := name + " photo"
	return []models.PhotoRecord{{
		Width:        400,
		Height:       300,
		Description:  &desc,
		ThumbnailURL: &thumb,
		RegularURL:   &full,
		FullURL:      &full,
	}}, nil
}

type noWallpaper struct{}

func (noWallpaper) Supported() bool                   { return false }
func (noWallpaper) Allowed() bool                     { return false }
func (noWallpaper) Set(context.Context, []byte) error { return nil }

type testEnv struct {
	server   *httptest.Server
	sessions *services.SessionService
	store    *media.FSStore
	image    []byte
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, imaging.New(40, 30, color.NRGBA{G: 200, A: 255}), imaging.JPEG); err != nil {
		t.Fatalf("encode: %v", err)
	}
	image := buf.Bytes()

	imageServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		w.Write(image)
	}))
	t.Cleanup(imageServer.Close)

	store, err := media.NewFSStore(filepath.Join(t.TempDir(), "pictures"), true, false)
	if err != nil {
		t.Fatalf("NewFSStore: %v", err)
	}

	hub := services.NewWSHub()
	sessions := services.NewSessionService(context.Background(), services.ScreenDeps{
		Fetcher:   &stubFetcher{base: imageServer.URL},
		Images:    imageloader.New(16, time.Minute, 5*time.Second, 1<<20),
		Store:     store,
		Wallpaper: noWallpaper{},
		Notifier:  hub,
	}, "test-secret", time.Hour)

	server := httptest.NewServer(NewRouter(RouterDeps{
		Sessions:       sessions,
		Hub:            hub,
		Store:          store,
		ContainerWidth: 200,
	}))
	t.Cleanup(server.Close)

	return &testEnv{server: server, sessions: sessions, store: store, image: image}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body interface{}) *http.Response {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, e.server.URL+path, reader)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode: %v", err)
	}
}

func (e *testEnv) createSession(t *testing.T) (string, *services.Screen) {
	t.Helper()
	resp := e.do(t, http.MethodPost, "/api/v1/sessions", "", nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create session: status %d", resp.StatusCode)
	}

	var body struct {
		SessionID string `json:"session_id"`
		Token     string `json:"token"`
	}
	decode(t, resp, &body)

	screen, err := e.sessions.Get(body.SessionID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	screen.Wait()
	return body.Token, screen
}

func TestAPI_RequiresToken(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodGet, "/api/v1/photos", "", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}

	resp = env.do(t, http.MethodGet, "/api/v1/photos", "garbage", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}

func TestAPI_SearchGridAndSave(t *testing.T) {
	env := newTestEnv(t)
	token, screen := env.createSession(t)

	resp := env.do(t, http.MethodGet, "/api/v1/photos", token, nil)
	var state models.FetchState
	decode(t, resp, &state)
	if state.Kind != models.FetchLoaded || len(state.Photos) != 1 {
		t.Fatalf("unexpected initial state: %+v", state)
	}

	resp = env.do(t, http.MethodPost, "/api/v1/photos/search", token, SearchRequest{Query: "mountain"})
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("search: status %d", resp.StatusCode)
	}
	screen.Wait()

	resp = env.do(t, http.MethodGet, "/api/v1/grid?width=200", token, nil)
	var grid struct {
		Width int             `json:"width"`
		Cards []services.Card `json:"cards"`
	}
	decode(t, resp, &grid)
	if len(grid.Cards) != 1 || grid.Cards[0].Height != 150 {
		t.Fatalf("unexpected grid: %+v", grid)
	}
	if grid.Cards[0].Description == nil || *grid.Cards[0].Description != "mountain photo" {
		t.Fatalf("search did not replace the list: %+v", grid.Cards[0])
	}

	resp = env.do(t, http.MethodGet, "/api/v1/grid?width=abc", token, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad width: expected 400, got %d", resp.StatusCode)
	}

	resp = env.do(t, http.MethodPost, "/api/v1/saves", token, SaveRequest{Photo: &grid.Cards[0].Photo})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create save: status %d", resp.StatusCode)
	}
	var created struct {
		Save   models.SaveOperation `json:"save"`
		Prompt string               `json:"prompt"`
	}
	decode(t, resp, &created)
	if created.Save.State != models.SaveConfirming || created.Prompt == "" {
		t.Fatalf("unexpected save: %+v", created)
	}

	resp = env.do(t, http.MethodPost, "/api/v1/saves/"+created.Save.ID+"/confirm", token, nil)
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("confirm: status %d", resp.StatusCode)
	}
	screen.Wait()

	resp = env.do(t, http.MethodGet, "/api/v1/saves/"+created.Save.ID, token, nil)
	var op models.SaveOperation
	decode(t, resp, &op)
	if op.State != models.SaveDone || op.Image == nil {
		t.Fatalf("expected done save, got %+v", op)
	}

	resp = env.do(t, http.MethodGet, "/api/v1/images", token, nil)
	var list struct {
		Images []models.PersistedImage `json:"images"`
		Total  int                     `json:"total"`
	}
	decode(t, resp, &list)
	if list.Total != 1 || !strings.HasSuffix(list.Images[0].DisplayName, ".jpg") {
		t.Fatalf("unexpected images: %+v", list)
	}

	resp = env.do(t, http.MethodGet, "/api/v1/images/"+list.Images[0].ID, token, nil)
	data, _ := io.ReadAll(resp.Body)
	if !bytes.Equal(data, env.image) {
		t.Error("served image differs from the downloaded bytes")
	}

	resp = env.do(t, http.MethodGet, "/api/v1/images/"+list.Images[0].ID+"/link", token, nil)
	if resp.StatusCode != http.StatusNotImplemented {
		t.Errorf("fs store links: expected 501, got %d", resp.StatusCode)
	}

	resp = env.do(t, http.MethodPost, "/api/v1/saves/"+created.Save.ID+"/wallpaper", token, nil)
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("wallpaper not offered: expected 409, got %d", resp.StatusCode)
	}
}

func TestAPI_CancelAndUnknownSave(t *testing.T) {
	env := newTestEnv(t)
	token, screen := env.createSession(t)
	photo := screen.State().Photos[0]

	resp := env.do(t, http.MethodPost, "/api/v1/saves", token, SaveRequest{Photo: &photo})
	var created struct {
		Save models.SaveOperation `json:"save"`
	}
	decode(t, resp, &created)

	resp = env.do(t, http.MethodPost, "/api/v1/saves/"+created.Save.ID+"/cancel", token, nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("cancel: status %d", resp.StatusCode)
	}

	resp = env.do(t, http.MethodPost, "/api/v1/saves/"+created.Save.ID+"/confirm", token, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("confirm cancelled: expected 404, got %d", resp.StatusCode)
	}

	resp = env.do(t, http.MethodPost, "/api/v1/saves", token, map[string]string{})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("missing photo: expected 400, got %d", resp.StatusCode)
	}
}

func TestAPI_SaveRejectsPhotoOutsideList(t *testing.T) {
	env := newTestEnv(t)
	token, screen := env.createSession(t)

	photo := screen.State().Photos[0]
	internal := "http://169.254.169.254/latest/anything"
	photo.FullURL = &internal

	resp := env.do(t, http.MethodPost, "/api/v1/saves", token, SaveRequest{Photo: &photo})
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("foreign photo: expected 404, got %d", resp.StatusCode)
	}
	screen.Wait()

	list, err := env.store.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 0 {
		t.Errorf("expected empty store, got %+v", list)
	}
}

func TestAPI_DeleteSession(t *testing.T) {
	env := newTestEnv(t)
	token, _ := env.createSession(t)

	resp := env.do(t, http.MethodDelete, "/api/v1/sessions/current", token, nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete: status %d", resp.StatusCode)
	}

	resp = env.do(t, http.MethodGet, "/api/v1/photos", token, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("closed session: expected 404, got %d", resp.StatusCode)
	}
}

func TestAPI_Health(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodGet, "/health", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("health: status %d", resp.StatusCode)
	}

	resp = env.do(t, http.MethodGet, "/metrics", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("metrics: status %d", resp.StatusCode)
	}
}

func TestWebSocket_PushesFetchState(t *testing.T) {
	env := newTestEnv(t)
	token, _ := env.createSession(t)

	wsURL := "ws" + strings.TrimPrefix(env.server.URL, "http") + "/ws?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	read := func() services.WSMessage {
		t.Helper()
		conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		var msg services.WSMessage
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("ReadJSON: %v", err)
		}
		return msg
	}

	if msg := read(); msg.Type != services.MsgFetchState {
		t.Fatalf("expected initial fetch_state, got %s", msg.Type)
	}

	if err := conn.WriteJSON(map[string]string{"type": "search", "query": "forest"}); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}

	for i := 0; i < 10; i++ {
		msg := read()
		if msg.Type != services.MsgFetchState {
			continue
		}
		data, _ := json.Marshal(msg.Data)
		var state models.FetchState
		json.Unmarshal(data, &state)
		if state.Kind == models.FetchLoaded && state.Query == "forest" {
			return
		}
	}
	t.Fatal("loaded state for the search never arrived")
}

func TestWebSocket_RejectsBadToken(t *testing.T) {
	env := newTestEnv(t)

	wsURL := "ws" + strings.TrimPrefix(env.server.URL, "http") + "/ws?token=nope"
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err == nil {
		t.Fatal("expected dial to fail")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %v", resp)
	}
}
