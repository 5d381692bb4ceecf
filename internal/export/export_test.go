package export_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/require"

	"go-tistory-archive/internal/export"
	"go-tistory-archive/internal/model"
	"go-tistory-archive/internal/store"
)

func readManifest(t *testing.T, path string) model.Manifest {
	t.Helper()
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	var m model.Manifest
	require.NoError(t, json.Unmarshal(b, &m))
	return m
}

func TestToJSON_FromStore(t *testing.T) {
	dir := t.TempDir()
	s, err := store.OpenSQLite(filepath.Join(dir, "archive.db"))
	require.NoError(t, err)
	defer s.Close()
	ctx := context.Background()

	require.NoError(t, s.UpsertPost(ctx, model.Record{Entry: 7, Cursor: 7, Title: "a", Categories: []string{"uncategorized"}, Images: 3}))
	require.NoError(t, s.AddFailure(ctx, model.Failure{Cursor: 12, Kind: model.KindFetch, Reason: "404"}))

	out := filepath.Join(dir, "manifest.json")
	require.NoError(t, export.ToJSON(ctx, s, "example.tistory.com", out))

	m := readManifest(t, out)
	require.Equal(t, "example.tistory.com", m.Host)
	require.Equal(t, 12, m.Stats.LastEntry)
	require.Equal(t, 1, m.Stats.PostsTotal)
	require.Equal(t, 1, m.Stats.FailuresTotal)
	require.Equal(t, 3, m.Stats.ImagesTotal)
	require.Len(t, m.Posts, 1)
	require.Equal(t, []string{"uncategorized"}, m.Posts[0].Categories)
}

func TestToJSONData(t *testing.T) {
	out := filepath.Join(t.TempDir(), "manifest.json")
	date := time.Date(2020, 5, 1, 1, 30, 0, 0, time.UTC)
	posts := []model.Record{
		{Entry: 7, Cursor: 7, Title: "a", Categories: []string{"uncategorized"}, Date: date, Images: 1},
		{Entry: 9, Cursor: 9, Title: "b", Categories: []string{"개발", "Go"}, Date: date, Images: 2},
	}
	failures := []model.Failure{{Cursor: 8, Kind: model.KindExtract, Reason: "no title block"}}
	require.NoError(t, export.ToJSONData(context.Background(), "example.tistory.com", posts, failures, out))

	m := readManifest(t, out)
	want := model.Manifest{
		Host:     "example.tistory.com",
		Stats:    model.Stats{LastEntry: 9, PostsTotal: 2, FailuresTotal: 1, ImagesTotal: 3},
		Posts:    posts,
		Failures: failures,
	}
	if diff := cmp.Diff(want, m, cmpopts.IgnoreFields(model.Stats{}, "UpdatedAt")); diff != "" {
		t.Fatalf("manifest mismatch (-want +got):\n%s", diff)
	}
}

func TestToJSONData_EmptyListsAreArrays(t *testing.T) {
	out := filepath.Join(t.TempDir(), "manifest.json")
	require.NoError(t, export.ToJSONData(context.Background(), "h", nil, nil, out))
	b, err := os.ReadFile(out)
	require.NoError(t, err)
	require.Contains(t, string(b), `"posts": []`)
	require.Contains(t, string(b), `"failures": []`)
}
