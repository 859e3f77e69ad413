package members

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"

	"steamwash-cloud/internal/sqldb"
)

var createdAt = time.Date(2026, 4, 2, 10, 0, 0, 0, time.UTC)

func openRepo(t *testing.T) *SQLRepository {
	t.Helper()
	ctx := context.Background()
	db, err := sqldb.Open(ctx, sqldb.SQLite, "file:"+t.Name()+"?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := db.Migrate(ctx, sqldb.Defaults{}, createdAt); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	repo, err := NewSQLRepository(db)
	if err != nil {
		t.Fatalf("new repo: %v", err)
	}
	return repo
}

func TestNewRequiresNameAndAddress(t *testing.T) {
	if _, err := New(" ", "Jl. Merdeka 1", createdAt); !errors.Is(err, ErrInvalidMember) {
		t.Fatalf("expected invalid member, got %v", err)
	}
	m, err := New("Ani", "Jl. Merdeka 1", createdAt)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if len(m.UUID) != 36 {
		t.Fatalf("expected uuid, got %q", m.UUID)
	}
}

func TestRepositoryLifecycle(t *testing.T) {
	repo := openRepo(t)
	ctx := context.Background()

	first, _ := New("Ani", "Jl. Merdeka 1", createdAt)
	second, _ := New("Budi", "Jl. Sudirman 5", createdAt)
	first, err := repo.Create(ctx, first)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	second, err = repo.Create(ctx, second)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if first.ID == 0 || second.ID <= first.ID {
		t.Fatalf("expected ascending ids, got %d and %d", first.ID, second.ID)
	}

	list, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 || list[0].ID != second.ID {
		t.Fatalf("expected newest first, got %+v", list)
	}

	updated, err := repo.Update(ctx, first.ID, "Ani S.", "Jl. Merdeka 2", createdAt.Add(time.Hour))
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Name != "Ani S." || updated.UUID != first.UUID || !updated.UpdatedAt.Equal(createdAt.Add(time.Hour)) {
		t.Fatalf("unexpected update: %+v", updated)
	}

	if err := repo.Delete(ctx, first.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := repo.Get(ctx, first.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
	if err := repo.Delete(ctx, first.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found on second delete, got %v", err)
	}
	if _, err := repo.Update(ctx, 999, "x", "y", createdAt); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found on update, got %v", err)
	}
}

func TestHandler(t *testing.T) {
	repo := openRepo(t)
	handler, err := NewHandler(repo, nil, nil)
	if err != nil {
		t.Fatalf("new handler: %v", err)
	}
	router := mux.NewRouter()
	handler.Register(router)

	send := func(method, path, body string) (int, map[string]any) {
		req := httptest.NewRequest(method, path, strings.NewReader(body))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		var out map[string]any
		if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
			t.Fatalf("decode %q: %v", rec.Body.String(), err)
		}
		return rec.Code, out
	}

	code, out := send(http.MethodPost, "/api/members", `{"name":"Ani","address":"Jl. Merdeka 1"}`)
	if code != http.StatusCreated || out["message"] != "Member created successfully" {
		t.Fatalf("unexpected create response: %d %v", code, out)
	}
	id := out["data"].(map[string]any)["id"].(float64)
	if id != 1 {
		t.Fatalf("expected id 1, got %v", id)
	}

	if code, _ := send(http.MethodPost, "/api/members", `{"name":"Ani"}`); code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing address, got %d", code)
	}
	if code, _ := send(http.MethodPost, "/api/members", `{"name":"Ani","adress":"Jl. Merdeka 1"}`); code != http.StatusBadRequest {
		t.Fatalf("expected 400 for misspelled key, got %d", code)
	}
	if code, _ := send(http.MethodGet, "/api/members/1", ""); code != http.StatusOK {
		t.Fatalf("expected 200 on get, got %d", code)
	}
	if code, _ := send(http.MethodGet, "/api/members/42", ""); code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", code)
	}
	if code, _ := send(http.MethodGet, "/api/members/abc", ""); code != http.StatusNotFound {
		t.Fatalf("expected 404 for non-numeric id, got %d", code)
	}
	code, out = send(http.MethodPut, "/api/members/1", `{"name":"Ani S.","address":"Jl. Merdeka 2"}`)
	if code != http.StatusOK || out["data"].(map[string]any)["name"] != "Ani S." {
		t.Fatalf("unexpected update response: %d %v", code, out)
	}
	code, out = send(http.MethodGet, "/api/members", "")
	if code != http.StatusOK || len(out["data"].([]any)) != 1 {
		t.Fatalf("unexpected list response: %d %v", code, out)
	}
	if code, _ := send(http.MethodDelete, "/api/members/1", ""); code != http.StatusOK {
		t.Fatalf("expected 200 on delete, got %d", code)
	}
	if code, _ := send(http.MethodDelete, "/api/members/1", ""); code != http.StatusNotFound {
		t.Fatalf("expected 404 on second delete, got %d", code)
	}
}
