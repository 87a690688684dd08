package store_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cx-go/internal/cx"
	"cx-go/internal/store"
	"cx-go/internal/testutil"
)

func newStore(t *testing.T) (*store.JSONStore, *testutil.StubClock, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "storage", "projects.json")
	clock := testutil.FixedClock()
	return store.New(path, clock, testutil.NewPrefixedIDGenerator("rules"), cx.NewNopLogger()), clock, path
}

func sampleProject(id string, now time.Time) *cx.Project {
	return &cx.Project{
		ID:             id,
		Name:           "Project " + id,
		CodebasePath:   "/src/" + id,
		ExportPath:     "/exports",
		ExportFileName: "out.md",
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func readRaw(t *testing.T, path string) map[string]json.RawMessage {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var top map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &top))
	return top
}

func TestJSONStore_Projects(t *testing.T) {
	ctx := context.Background()

	t.Run("creates default document on first use", func(t *testing.T) {
		t.Parallel()
		s, _, path := newStore(t)

		projects, err := s.ListProjects(ctx)
		require.NoError(t, err)
		assert.Empty(t, projects)

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, "{\n  \"projects\": [],\n  \"codebaseRules\": []\n}", string(data))
	})

	t.Run("put then get and list in insertion order", func(t *testing.T) {
		t.Parallel()
		s, clock, _ := newStore(t)

		require.NoError(t, s.PutProject(ctx, sampleProject("b", clock.Now())))
		require.NoError(t, s.PutProject(ctx, sampleProject("a", clock.Now())))

		got, err := s.GetProject(ctx, "a")
		require.NoError(t, err)
		assert.Equal(t, "Project a", got.Name)

		projects, err := s.ListProjects(ctx)
		require.NoError(t, err)
		require.Len(t, projects, 2)
		assert.Equal(t, "b", projects[0].ID)
		assert.Equal(t, "a", projects[1].ID)
	})

	t.Run("stores special characters unescaped", func(t *testing.T) {
		t.Parallel()
		s, clock, path := newStore(t)
		p := sampleProject("a", clock.Now())
		p.CodebasePath = "/src/a&b/<gen>"
		require.NoError(t, s.PutProject(ctx, p))

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Contains(t, string(data), `"codebasePath": "/src/a&b/<gen>"`)
		assert.NotContains(t, string(data), `\u0026`)
	})

	t.Run("put replaces existing id", func(t *testing.T) {
		t.Parallel()
		s, clock, _ := newStore(t)
		p := sampleProject("a", clock.Now())
		require.NoError(t, s.PutProject(ctx, p))

		p.Name = "Renamed"
		require.NoError(t, s.PutProject(ctx, p))

		projects, err := s.ListProjects(ctx)
		require.NoError(t, err)
		require.Len(t, projects, 1)
		assert.Equal(t, "Renamed", projects[0].Name)
	})

	t.Run("get missing project is not found", func(t *testing.T) {
		t.Parallel()
		s, _, _ := newStore(t)
		_, err := s.GetProject(ctx, "missing")
		assert.ErrorIs(t, err, cx.ErrNotFound)
	})

	t.Run("update keeps id and creation time", func(t *testing.T) {
		t.Parallel()
		s, clock, _ := newStore(t)
		require.NoError(t, s.PutProject(ctx, sampleProject("a", clock.Now())))
		created := clock.Now()
		clock.Advance(time.Hour)

		got, err := s.UpdateProject(ctx, "a", func(p *cx.Project) {
			p.ID = "hijack"
			p.CreatedAt = time.Time{}
			p.Name = "New"
			p.UpdatedAt = clock.Now()
		})
		require.NoError(t, err)
		assert.Equal(t, "a", got.ID)
		assert.True(t, got.CreatedAt.Equal(created))
		assert.Equal(t, "New", got.Name)

		reloaded, err := s.GetProject(ctx, "a")
		require.NoError(t, err)
		assert.Equal(t, "New", reloaded.Name)
		assert.True(t, reloaded.UpdatedAt.Equal(clock.Now()))
	})

	t.Run("update missing project is not found", func(t *testing.T) {
		t.Parallel()
		s, _, _ := newStore(t)
		_, err := s.UpdateProject(ctx, "missing", func(*cx.Project) {})
		assert.ErrorIs(t, err, cx.ErrNotFound)
	})

	t.Run("returned projects are copies", func(t *testing.T) {
		t.Parallel()
		s, clock, _ := newStore(t)
		require.NoError(t, s.PutProject(ctx, sampleProject("a", clock.Now())))

		got, err := s.GetProject(ctx, "a")
		require.NoError(t, err)
		got.Name = "mutated"

		again, err := s.GetProject(ctx, "a")
		require.NoError(t, err)
		assert.Equal(t, "Project a", again.Name)
	})
}

func TestJSONStore_DeleteCascades(t *testing.T) {
	ctx := context.Background()
	s, clock, path := newStore(t)

	require.NoError(t, s.PutProject(ctx, sampleProject("a", clock.Now())))
	require.NoError(t, s.PutProject(ctx, sampleProject("b", clock.Now())))
	_, err := s.UpsertRules(ctx, "a", cx.RulesInput{IgnoredFolders: []string{"vendor"}})
	require.NoError(t, err)
	_, err = s.UpsertRules(ctx, "b", cx.RulesInput{})
	require.NoError(t, err)

	deleted, err := s.DeleteProject(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "a", deleted.ID)

	rules, err := s.ListRules(ctx)
	require.NoError(t, err)
	for _, r := range rules {
		assert.NotEqual(t, "a", r.ProjectID)
	}
	assert.Len(t, rules, 1)

	// A fresh store on the same file sees the cascade.
	other := store.New(path, clock, testutil.NewStubIDGenerator(), cx.NewNopLogger())
	got, err := other.GetRules(ctx, "a")
	require.NoError(t, err)
	assert.Nil(t, got)

	_, err = s.DeleteProject(ctx, "a")
	assert.ErrorIs(t, err, cx.ErrNotFound)
}

func TestJSONStore_UpsertRules(t *testing.T) {
	ctx := context.Background()

	t.Run("requires existing project", func(t *testing.T) {
		t.Parallel()
		s, _, _ := newStore(t)
		_, err := s.UpsertRules(ctx, "missing", cx.RulesInput{})
		assert.ErrorIs(t, err, cx.ErrNotFound)
	})

	t.Run("creates then replaces preserving id and createdAt", func(t *testing.T) {
		t.Parallel()
		s, clock, _ := newStore(t)
		require.NoError(t, s.PutProject(ctx, sampleProject("p", clock.Now())))

		first, err := s.UpsertRules(ctx, "p", cx.RulesInput{
			RootFolder:     "/src/p/app",
			IgnoredFolders: []string{"node_modules"},
		})
		require.NoError(t, err)
		assert.Equal(t, "rules-1", first.ID)
		assert.Equal(t, []string{"node_modules"}, first.IgnoredFolders)
		assert.Equal(t, []string{}, first.IgnoredFiles)

		clock.Advance(time.Minute)
		second, err := s.UpsertRules(ctx, "p", cx.RulesInput{IgnoredFileTypes: []string{".log"}})
		require.NoError(t, err)
		assert.Equal(t, first.ID, second.ID)
		assert.True(t, second.CreatedAt.Equal(first.CreatedAt))
		assert.True(t, second.UpdatedAt.After(first.UpdatedAt))
		assert.Equal(t, "", second.RootFolder)
		assert.Equal(t, []string{}, second.IgnoredFolders)
		assert.Equal(t, []string{".log"}, second.IgnoredFileTypes)

		all, err := s.ListRules(ctx)
		require.NoError(t, err)
		assert.Len(t, all, 1)
	})

	t.Run("get rules without record returns nil", func(t *testing.T) {
		t.Parallel()
		s, _, _ := newStore(t)
		got, err := s.GetRules(ctx, "p")
		require.NoError(t, err)
		assert.Nil(t, got)
	})
}

func TestJSONStore_Repair(t *testing.T) {
	ctx := context.Background()

	write := func(t *testing.T, path, content string) {
		t.Helper()
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	}

	t.Run("adds missing collection and rewrites file", func(t *testing.T) {
		t.Parallel()
		s, _, path := newStore(t)
		write(t, path, `{"projects":[{"id":"a","name":"A","codebasePath":"/a","exportPath":"/e","exportFileName":"o.md","createdAt":"2025-01-01T00:00:00.000Z","updatedAt":"2025-01-01T00:00:00.000Z"}]}`)

		projects, err := s.ListProjects(ctx)
		require.NoError(t, err)
		require.Len(t, projects, 1)
		assert.Equal(t, "A", projects[0].Name)

		top := readRaw(t, path)
		assert.JSONEq(t, `[]`, string(top["codebaseRules"]))
	})

	t.Run("replaces non-array collection", func(t *testing.T) {
		t.Parallel()
		s, _, path := newStore(t)
		write(t, path, `{"projects":"oops","codebaseRules":[]}`)

		projects, err := s.ListProjects(ctx)
		require.NoError(t, err)
		assert.Empty(t, projects)
		assert.JSONEq(t, `[]`, string(readRaw(t, path)["projects"]))
	})

	t.Run("drops malformed records", func(t *testing.T) {
		t.Parallel()
		s, _, _ := newStore(t)
		write(t, s.Path(), `{"projects":[{"id":"a","name":"A"},{"name":"no id"},42],"codebaseRules":[{"id":"r","projectId":"a","ignoredFolders":null}]}`)

		projects, err := s.ListProjects(ctx)
		require.NoError(t, err)
		require.Len(t, projects, 1)
		assert.Equal(t, "a", projects[0].ID)

		rules, err := s.GetRules(ctx, "a")
		require.NoError(t, err)
		require.NotNil(t, rules)
		assert.Equal(t, []string{}, rules.IgnoredFolders)
	})

	t.Run("keeps project with date-only timestamp and its rules", func(t *testing.T) {
		t.Parallel()
		s, _, path := newStore(t)
		write(t, path, `{"projects":[{"id":"p1","name":"P","codebasePath":"/src","exportPath":"/out","exportFileName":"o.md","createdAt":"2025-01-02","updatedAt":"2025-01-03T10:00:00+02:00"}],"codebaseRules":[{"id":"r1","projectId":"p1","rootFolder":"","ignoredFolders":["dist"],"ignoredFiles":[],"ignoredFileTypes":[".log"],"createdAt":"2025-01-02","updatedAt":"2025-01-02"}]}`)

		projects, err := s.ListProjects(ctx)
		require.NoError(t, err)
		require.Len(t, projects, 1)
		assert.True(t, projects[0].CreatedAt.Equal(time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)), "CreatedAt = %v", projects[0].CreatedAt)
		assert.True(t, projects[0].UpdatedAt.Equal(time.Date(2025, 1, 3, 8, 0, 0, 0, time.UTC)), "UpdatedAt = %v", projects[0].UpdatedAt)

		rules, err := s.GetRules(ctx, "p1")
		require.NoError(t, err)
		require.NotNil(t, rules)
		assert.Equal(t, []string{"dist"}, rules.IgnoredFolders)

		var onDisk []map[string]any
		require.NoError(t, json.Unmarshal(readRaw(t, path)["projects"], &onDisk))
		require.Len(t, onDisk, 1)
		assert.Equal(t, "p1", onDisk[0]["id"])
	})

	t.Run("resets unusable fields instead of dropping the record", func(t *testing.T) {
		t.Parallel()
		logger := testutil.NewRecordingLogger()
		path := filepath.Join(t.TempDir(), "projects.json")
		s := store.New(path, testutil.FixedClock(), testutil.NewStubIDGenerator(), logger)
		write(t, path, `{"projects":[{"id":"p1","name":7,"codebasePath":"/src","exportPath":"/out","exportFileName":"o.md","createdAt":"yesterday","updatedAt":"2025-01-03T00:00:00.000Z"}],"codebaseRules":[{"id":"r1","projectId":"p1","ignoredFolders":"dist","ignoredFiles":["a",1],"ignoredFileTypes":[]}]}`)

		got, err := s.GetProject(ctx, "p1")
		require.NoError(t, err)
		assert.Equal(t, "", got.Name)
		assert.True(t, got.CreatedAt.IsZero())
		assert.Equal(t, "/src", got.CodebasePath)

		rules, err := s.GetRules(ctx, "p1")
		require.NoError(t, err)
		require.NotNil(t, rules)
		assert.Equal(t, []string{}, rules.IgnoredFolders)
		assert.Equal(t, []string{"a"}, rules.IgnoredFiles)
		assert.True(t, logger.Contains("reset unparseable createdAt"), "lines = %v", logger.Lines())
	})

	t.Run("drops rules whose project is gone", func(t *testing.T) {
		t.Parallel()
		s, _, path := newStore(t)
		write(t, path, `{"projects":[{"id":"a","name":"A","createdAt":"2025-01-01T00:00:00.000Z","updatedAt":"2025-01-01T00:00:00.000Z"},{"name":"no id"}],"codebaseRules":[{"id":"r1","projectId":"a"},{"id":"r2","projectId":"ghost"}]}`)

		_, err := s.ListProjects(ctx)
		require.NoError(t, err)

		all, err := s.ListRules(ctx)
		require.NoError(t, err)
		require.Len(t, all, 1)
		assert.Equal(t, "r1", all[0].ID)

		var onDisk []map[string]any
		require.NoError(t, json.Unmarshal(readRaw(t, path)["codebaseRules"], &onDisk))
		require.Len(t, onDisk, 1)
		assert.Equal(t, "a", onDisk[0]["projectId"])
	})

	t.Run("logs unknown fields before dropping them", func(t *testing.T) {
		t.Parallel()
		logger := testutil.NewRecordingLogger()
		path := filepath.Join(t.TempDir(), "projects.json")
		s := store.New(path, testutil.FixedClock(), testutil.NewStubIDGenerator(), logger)
		write(t, path, `{"projects":[{"id":"a","name":"A","color":"red","createdAt":"2025-01-01T00:00:00.000Z","updatedAt":"2025-01-01T00:00:00.000Z"}],"codebaseRules":[]}`)

		projects, err := s.ListProjects(ctx)
		require.NoError(t, err)
		require.Len(t, projects, 1)
		assert.True(t, logger.Contains("dropped unknown fields color"), "lines = %v", logger.Lines())

		var onDisk []map[string]any
		require.NoError(t, json.Unmarshal(readRaw(t, path)["projects"], &onDisk))
		assert.NotContains(t, onDisk[0], "color")
	})

	t.Run("quarantines unparseable file", func(t *testing.T) {
		t.Parallel()
		s, _, path := newStore(t)
		write(t, path, `{not json`)

		projects, err := s.ListProjects(ctx)
		require.NoError(t, err)
		assert.Empty(t, projects)

		quarantined, err := os.ReadFile(path + ".corrupt-2025-01-02_03-04-05")
		require.NoError(t, err)
		assert.Equal(t, `{not json`, string(quarantined))

		top := readRaw(t, path)
		assert.Contains(t, top, "projects")
		assert.Contains(t, top, "codebaseRules")
	})
}

func TestJSONStore_ConcurrentWriters(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "projects.json")
	clock := testutil.FixedClock()

	// Two store instances model two processes sharing the file.
	stores := []*store.JSONStore{
		store.New(path, clock, testutil.NewStubIDGenerator(), cx.NewNopLogger()),
		store.New(path, clock, testutil.NewStubIDGenerator(), cx.NewNopLogger()),
	}

	var wg sync.WaitGroup
	for i := range 40 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s := stores[i%2]
			p := sampleProject("p"+string(rune('A'+i%26))+string(rune('0'+i/26)), clock.Now())
			assert.NoError(t, s.PutProject(ctx, p))
		}()
	}
	wg.Wait()

	projects, err := stores[0].ListProjects(ctx)
	require.NoError(t, err)
	assert.Len(t, projects, 40)
}

func TestJSONStore_CanceledContext(t *testing.T) {
	s, _, _ := newStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.ListProjects(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
