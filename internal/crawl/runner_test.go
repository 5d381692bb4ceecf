package crawl_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"go-tistory-archive/internal/archive"
	"go-tistory-archive/internal/config"
	"go-tistory-archive/internal/crawl"
	"go-tistory-archive/internal/extract"
	"go-tistory-archive/internal/feeds"
	"go-tistory-archive/internal/fetch"
	"go-tistory-archive/internal/images"
	"go-tistory-archive/internal/model"
	"go-tistory-archive/internal/store"
)

func rss(last int) string {
	return fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"><channel><title>example</title><link>http://example.tistory.com/</link>
<item><title>latest</title><link>http://example.tistory.com/%d</link></item>
</channel></rss>`, last)
}

func page(entry int, title, category, body string) string {
	return fmt.Sprintf(`<!doctype html><html><body><article>
<div class="titleWrap"><h2><a href="/%d">%s</a></h2><span class="category">%s</span><span class="date">2020.05.01 10:30</span></div>
<div class="article">%s</div>
<div class="container_postbtn">Share</div>
</article></body></html>`, entry, title, category, body)
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 1, 1))))
	return buf.Bytes()
}

// blog 模拟一个 tistory 博客；pages 以路径为键，未登记的路径返回 404。
// pages 在服务启动前由 build 根据服务地址生成。
func blog(t *testing.T, last int, build func(base string) map[string]string) *httptest.Server {
	img := pngBytes(t)
	var pages map[string]string
	srv := httptest.NewUnstartedServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/rss":
			w.Header().Set("Content-Type", "application/rss+xml")
			_, _ = w.Write([]byte(rss(last)))
		case r.URL.Path == "/img/a":
			_, _ = w.Write(img)
		case pages[r.URL.Path] != "":
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			_, _ = w.Write([]byte(pages[r.URL.Path]))
		default:
			http.NotFound(w, r)
		}
	}))
	pages = build("http://" + srv.Listener.Addr().String())
	srv.Start()
	t.Cleanup(srv.Close)
	return srv
}

func static(pages map[string]string) func(string) map[string]string {
	return func(string) map[string]string { return pages }
}

func setup(t *testing.T, srv *httptest.Server, mutate func(*config.Config)) (*config.Config, string) {
	t.Helper()
	cfg := config.Default()
	cfg.ArchiveRoot = filepath.Join(t.TempDir(), "example.tistory.com")
	if mutate != nil {
		mutate(cfg)
	}
	require.NoError(t, cfg.Validate())
	return cfg, strings.TrimPrefix(srv.URL, "http://")
}

func TestRun_ExampleBlog(t *testing.T) {
	srv := blog(t, 12, func(base string) map[string]string {
		return map[string]string{
			"/7":  page(7, "Design: Notes", "분류없음", `<p>Hello <b>archive</b>.</p><p><img src="`+base+`/img/a"></p>`),
			"/8":  `<html><body><article><p>protected</p></article></body></html>`,
			"/9":  page(9, "Go tips", "개발/Go", `<p>Use <code>go vet</code>.</p>`),
			"/10": page(10, "Broken image", "분류없음", `<p><img src="`+base+`/img/missing"></p>`),
		}
	})

	cfg, host := setup(t, srv, nil)
	run := crawl.New(cfg, host, fetch.New(fetch.Options{}), nil, nil)
	require.NoError(t, run.Run(context.Background()))

	root := cfg.ArchiveRoot
	doc, err := os.ReadFile(filepath.Join(root, "uncategorized", "7", "index.md"))
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(string(doc), "---\n"+
		"title: \"Design: Notes\"\n"+
		"categories: [uncategorized]\n"+
		"slug: 7\n"+
		"date: 2020-05-01 10:30:00\n"+
		"---\n"), string(doc))
	require.Contains(t, string(doc), "Hello **archive**.")
	require.Contains(t, string(doc), "![img_1.png](img_1.png)")
	require.NotContains(t, string(doc), "Share")
	require.FileExists(t, filepath.Join(root, "uncategorized", "7", "img_1.png"))

	require.FileExists(t, filepath.Join(root, "개발", "Go", "9", "index.md"))

	// 缺少标题块的文章不建目录；图片失败的文章目录被删除
	require.NoDirExists(t, filepath.Join(root, "uncategorized", "8"))
	require.NoDirExists(t, filepath.Join(root, "uncategorized", "10"))

	st := run.Stats()
	require.Equal(t, 12, st.LastEntry)
	require.Equal(t, 2, st.PostsTotal)
	require.Equal(t, 10, st.FailuresTotal)
	require.Equal(t, 1, st.ImagesTotal)

	posts, failures := run.BufferData()
	require.Len(t, posts, 2)
	require.Equal(t, 7, posts[0].Cursor)
	require.Equal(t, 1, posts[0].Images)
	require.Equal(t, []string{"개발", "Go"}, posts[1].Categories)

	kinds := map[int]string{}
	for _, f := range failures {
		kinds[f.Cursor] = f.Kind
	}
	require.Len(t, kinds, 10)
	require.Equal(t, model.KindExtract, kinds[8])
	require.Equal(t, model.KindDownload, kinds[10])
	require.Equal(t, model.KindFetch, kinds[1])
	require.Equal(t, model.KindFetch, kinds[12])
}

func TestRun_EntrySource(t *testing.T) {
	srv := blog(t, 1, static(map[string]string{"/1": page(100, "moved", "분류없음", "<p>x</p>")}))

	t.Run("metadata", func(t *testing.T) {
		cfg, host := setup(t, srv, nil)
		run := crawl.New(cfg, host, fetch.New(fetch.Options{}), nil, nil)
		require.NoError(t, run.Run(context.Background()))
		require.DirExists(t, filepath.Join(cfg.ArchiveRoot, "uncategorized", "100"))

		posts, _ := run.BufferData()
		require.Len(t, posts, 1)
		require.Equal(t, 100, posts[0].Entry)
		require.Equal(t, 1, posts[0].Cursor)
	})

	t.Run("cursor", func(t *testing.T) {
		cfg, host := setup(t, srv, func(c *config.Config) { c.EntrySource = config.EntryFromCursor })
		run := crawl.New(cfg, host, fetch.New(fetch.Options{}), nil, nil)
		require.NoError(t, run.Run(context.Background()))

		doc, err := os.ReadFile(filepath.Join(cfg.ArchiveRoot, "uncategorized", "1", "index.md"))
		require.NoError(t, err)
		require.Contains(t, string(doc), "slug: 1\n")
	})
}

func TestRun_WithSQLiteRecorder(t *testing.T) {
	srv := blog(t, 2, static(map[string]string{"/2": page(2, "only", "분류없음", "<p>x</p>")}))
	cfg, host := setup(t, srv, nil)

	s, err := store.OpenSQLite(filepath.Join(t.TempDir(), "archive.db"))
	require.NoError(t, err)
	defer s.Close()

	run := crawl.New(cfg, host, fetch.New(fetch.Options{}), nil, s)
	require.NoError(t, run.Run(context.Background()))

	posts, failures := run.BufferData()
	require.Nil(t, posts)
	require.Nil(t, failures)

	ctx := context.Background()
	list, err := s.ListPosts(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, "only", list[0].Title)
	fails, err := s.ListFailures(ctx)
	require.NoError(t, err)
	require.Len(t, fails, 1)
	require.Equal(t, 1, fails[0].Cursor)
}

func TestRun_FeedErrorsAreFatal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<?xml version="1.0"?><rss version="2.0"><channel><title>empty</title></channel></rss>`))
	}))
	defer srv.Close()
	cfg, host := setup(t, srv, nil)

	err := crawl.New(cfg, host, fetch.New(fetch.Options{}), nil, nil).Run(context.Background())
	var fe *feeds.FeedFormatError
	require.True(t, errors.As(err, &fe), "got %v", err)
	require.NoDirExists(t, filepath.Join(cfg.ArchiveRoot, model.Uncategorized))
}

func TestRun_Canceled(t *testing.T) {
	srv := blog(t, 3, static(nil))
	cfg, host := setup(t, srv, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := crawl.New(cfg, host, fetch.New(fetch.Options{}), nil, nil).Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestClassify(t *testing.T) {
	cases := map[string]error{
		model.KindExtract:  fmt.Errorf("wrap: %w", &extract.ExtractionError{Reason: "x"}),
		model.KindDownload: &images.DownloadError{Ordinal: 1, Reason: "x"},
		model.KindPersist:  &archive.PersistenceError{Op: "write", Err: os.ErrPermission},
		model.KindFetch:    &fetch.StatusError{Code: http.StatusNotFound},
	}
	for want, err := range cases {
		require.Equal(t, want, crawl.Classify(err), "%v", err)
	}
}
