package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"random-photo-backend/internal/models"
)

type stateRecorder struct {
	mu     sync.Mutex
	states []models.FetchState
}

func (r *stateRecorder) record(s models.FetchState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, s)
}

func (r *stateRecorder) kinds() []models.FetchKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.FetchKind, len(r.states))
	for i, s := range r.states {
		out[i] = s.Kind
	}
	return out
}

func TestPhotoListController_LoadsInOrder(t *testing.T) {
	a, b := photo(400, 300, "a"), photo(300, 400, "b")
	fetcher := &fakeFetcher{results: map[string][]models.PhotoRecord{
		"mountain": {a, b},
	}}
	scope := NewScope(context.Background())
	defer scope.Close()

	rec := &stateRecorder{}
	c := NewPhotoListController("s1", fetcher, scope, rec.record)

	if got := c.State(); got.Kind != models.FetchIdle || len(got.Photos) != 0 {
		t.Fatalf("unexpected initial state: %+v", got)
	}

	c.Load("mountain")
	scope.Wait()

	state := c.State()
	if state.Kind != models.FetchLoaded {
		t.Fatalf("expected loaded, got %s", state.Kind)
	}
	if len(state.Photos) != 2 || *state.Photos[0].Description != "a description" || *state.Photos[1].Description != "b description" {
		t.Fatalf("photos not in response order: %+v", state.Photos)
	}
	if c.Query() != "mountain" {
		t.Errorf("expected query mountain, got %q", c.Query())
	}

	kinds := rec.kinds()
	if len(kinds) != 2 || kinds[0] != models.FetchLoading || kinds[1] != models.FetchLoaded {
		t.Errorf("unexpected transitions: %v", kinds)
	}
}

func TestPhotoListController_EmptyResultIsLoaded(t *testing.T) {
	fetcher := &fakeFetcher{results: map[string][]models.PhotoRecord{}}
	scope := NewScope(context.Background())
	defer scope.Close()

	c := NewPhotoListController("s1", fetcher, scope, nil)
	c.Load("")
	scope.Wait()

	state := c.State()
	if state.Kind != models.FetchLoaded {
		t.Fatalf("empty result must be loaded, got %s", state.Kind)
	}
	if state.Photos == nil || len(state.Photos) != 0 {
		t.Errorf("expected empty non-nil list, got %#v", state.Photos)
	}
}

func TestPhotoListController_Failure(t *testing.T) {
	fetcher := &fakeFetcher{err: fmt.Errorf("GET /photos/random: %w", models.ErrNetwork)}
	scope := NewScope(context.Background())
	defer scope.Close()

	c := NewPhotoListController("s1", fetcher, scope, nil)
	c.Load("ocean")
	scope.Wait()

	state := c.State()
	if state.Kind != models.FetchFailed {
		t.Fatalf("expected failed, got %s", state.Kind)
	}
	if state.Reason != FailedReason {
		t.Errorf("unexpected reason %q", state.Reason)
	}
	if len(state.Photos) != 0 {
		t.Errorf("failed state must carry no photos: %+v", state.Photos)
	}
}

func TestPhotoListController_ReloadReplacesList(t *testing.T) {
	fetcher := &fakeFetcher{results: map[string][]models.PhotoRecord{
		"cats": {photo(1, 1, "c1"), photo(1, 1, "c2"), photo(1, 1, "c3")},
		"dogs": {photo(1, 1, "d1")},
	}}
	scope := NewScope(context.Background())
	defer scope.Close()

	c := NewPhotoListController("s1", fetcher, scope, nil)

	c.Load("cats")
	scope.Wait()
	if n := len(c.State().Photos); n != 3 {
		t.Fatalf("expected 3 photos, got %d", n)
	}

	c.Load("dogs")
	scope.Wait()
	state := c.State()
	if len(state.Photos) != 1 || *state.Photos[0].Description != "d1 description" {
		t.Fatalf("second load must replace the list: %+v", state.Photos)
	}
}

func TestPhotoListController_LastToCompleteWins(t *testing.T) {
	fetcher := &fakeFetcher{
		results: map[string][]models.PhotoRecord{
			"a": {photo(1, 1, "a1"), photo(1, 1, "a2")},
			"b": {photo(1, 1, "b1")},
		},
		gates: map[string]chan struct{}{
			"a": make(chan struct{}),
			"b": make(chan struct{}),
		},
	}
	scope := NewScope(context.Background())
	defer scope.Close()

	loaded := make(chan string, 4)
	c := NewPhotoListController("s1", fetcher, scope, func(s models.FetchState) {
		if s.Kind == models.FetchLoaded {
			loaded <- s.Query
		}
	})

	c.Load("a")
	c.Load("b")
	if c.Query() != "b" {
		t.Errorf("Query() = %q, want the last submitted query", c.Query())
	}

	close(fetcher.gates["b"])
	select {
	case q := <-loaded:
		if q != "b" {
			t.Fatalf("expected b to settle first, got %q", q)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("load b never finished")
	}

	close(fetcher.gates["a"])
	scope.Wait()

	state := c.State()
	if state.Kind != models.FetchLoaded || state.Query != "a" {
		t.Fatalf("expected a's list to win, got %+v", state)
	}
	if len(state.Photos) != 2 || *state.Photos[0].Description != "a1 description" {
		t.Errorf("unexpected photos: %+v", state.Photos)
	}
	if fetcher.cancelled != 0 {
		t.Errorf("overlapping loads must not be cancelled, cancelled=%d", fetcher.cancelled)
	}
	if len(fetcher.queries) != 2 {
		t.Errorf("expected both fetches to run, got %v", fetcher.queries)
	}
}

func TestPhotoListController_StateIsSnapshot(t *testing.T) {
	fetcher := &fakeFetcher{results: map[string][]models.PhotoRecord{"": {photo(1, 1, "a")}}}
	scope := NewScope(context.Background())
	defer scope.Close()

	c := NewPhotoListController("s1", fetcher, scope, nil)
	c.Load("")
	scope.Wait()

	s := c.State()
	s.Photos[0].Width = 999
	if c.State().Photos[0].Width == 999 {
		t.Fatal("State must return a copy")
	}
}

func TestPhotoListController_CloseCancelsLoad(t *testing.T) {
	fetcher := &fakeFetcher{
		results: map[string][]models.PhotoRecord{"slow": {photo(1, 1, "a")}},
		block:   make(chan struct{}),
	}
	scope := NewScope(context.Background())

	rec := &stateRecorder{}
	c := NewPhotoListController("s1", fetcher, scope, rec.record)
	c.Load("slow")

	scope.Close()

	if kinds := rec.kinds(); len(kinds) > 1 {
		t.Fatalf("no state after teardown expected, got %v", kinds)
	}
	if c.State().Kind == models.FetchLoaded || c.State().Kind == models.FetchFailed {
		t.Fatalf("cancelled load must not settle: %+v", c.State())
	}

	c.Load("slow")
	scope.Wait()
	if len(rec.kinds()) > 1 {
		t.Fatal("Load after Close must be a no-op")
	}
}

func TestScope_RecoversPanics(t *testing.T) {
	scope := NewScope(context.Background())
	defer scope.Close()

	var ran bool
	scope.Go(func(context.Context) { panic(errors.New("boom")) })
	scope.Go(func(context.Context) { ran = true })
	scope.Wait()

	if !ran {
		t.Fatal("second task did not run")
	}
}
