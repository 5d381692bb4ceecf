package images_test

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"

	"go-tistory-archive/internal/fetch"
	"go-tistory-archive/internal/images"
)

func encode(t *testing.T, format string) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	var err error
	switch format {
	case "png":
		err = png.Encode(&buf, img)
	case "jpeg":
		err = jpeg.Encode(&buf, img, nil)
	case "gif":
		err = gif.Encode(&buf, img, nil)
	}
	require.NoError(t, err)
	return buf.Bytes()
}

// imageServer 按路径返回不同内容；/png 等路径的 URL 不带扩展名，格式只能靠嗅探得出。
func imageServer(t *testing.T) (*httptest.Server, *[]string) {
	var hits []string
	mux := http.NewServeMux()
	for _, f := range []string{"png", "jpeg", "gif"} {
		body := encode(t, f)
		mux.HandleFunc("/"+f, func(w http.ResponseWriter, r *http.Request) {
			hits = append(hits, r.URL.Path)
			// 故意给出错误的类型声明
			w.Header().Set("Content-Type", "text/plain")
			_, _ = w.Write(body)
		})
	}
	mux.HandleFunc("/empty", func(w http.ResponseWriter, r *http.Request) {})
	mux.HandleFunc("/html", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<!doctype html><html><body>nope</body></html>"))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, &hits
}

func listDir(t *testing.T, dir string) []string {
	t.Helper()
	ents, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range ents {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names
}

func TestLocalize_OrdinalsAndSniffing(t *testing.T) {
	srv, hits := imageServer(t)
	dir := t.TempDir()
	content := "intro\n\n![](" + srv.URL + "/png)\n\ntext ![](" + srv.URL + "/jpeg) more\n\n![](" + srv.URL + "/gif)\n"

	loc := images.New(fetch.New(fetch.Options{}), nil)
	got, n, err := loc.Localize(context.Background(), content, dir)
	require.NoError(t, err)
	require.Equal(t, 3, n)
	require.Equal(t, "intro\n\n![img_1.png](img_1.png)\n\ntext ![img_2.jpg](img_2.jpg) more\n\n![img_3.gif](img_3.gif)\n", got)
	require.Equal(t, []string{"img_1.png", "img_2.jpg", "img_3.gif"}, listDir(t, dir))
	require.Equal(t, []string{"/png", "/jpeg", "/gif"}, *hits)
}

func TestLocalize_SameURLDownloadedPerOccurrence(t *testing.T) {
	srv, hits := imageServer(t)
	dir := t.TempDir()
	content := "![](" + srv.URL + "/png) ![](" + srv.URL + "/png)"

	got, n, err := images.New(fetch.New(fetch.Options{}), nil).Localize(context.Background(), content, dir)
	require.NoError(t, err)
	require.Equal(t, 2, n)
	require.Equal(t, "![img_1.png](img_1.png) ![img_2.png](img_2.png)", got)
	require.Len(t, *hits, 2)
}

func TestLocalize_NoMatches(t *testing.T) {
	dir := t.TempDir()
	content := "![caption](http://img.example/a.png) and ![](relative.png)"
	got, n, err := images.New(fetch.New(fetch.Options{}), nil).Localize(context.Background(), content, dir)
	require.NoError(t, err)
	require.Zero(t, n)
	require.Equal(t, content, got)
	require.Empty(t, listDir(t, dir))
}

func TestLocalize_Failures(t *testing.T) {
	srv, _ := imageServer(t)
	for _, path := range []string{"/missing", "/empty", "/html"} {
		dir := t.TempDir()
		content := "![](" + srv.URL + "/png) then ![](" + srv.URL + path + ")"
		_, n, err := images.New(fetch.New(fetch.Options{}), nil).Localize(context.Background(), content, dir)
		var de *images.DownloadError
		require.True(t, errors.As(err, &de), "%s: got %v", path, err)
		require.Equal(t, 2, de.Ordinal)
		require.Equal(t, 1, n)
		// 失败的临时文件已删除，之前成功的图片由调用方清理目录
		require.Equal(t, []string{"img_1.png"}, listDir(t, dir), path)
	}
}

func TestLocalize_CustomPattern(t *testing.T) {
	srv, _ := imageServer(t)
	dir := t.TempDir()
	re := regexp.MustCompile(`!\[\]\((http://127\.0\.0\.1:\d+/png)\)`)
	content := "![](" + srv.URL + "/png) ![](" + srv.URL + "/gif)"
	got, n, err := images.New(fetch.New(fetch.Options{}), re).Localize(context.Background(), content, dir)
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.Equal(t, "![img_1.png](img_1.png) ![]("+srv.URL+"/gif)", got)
	require.FileExists(t, filepath.Join(dir, "img_1.png"))
}

func TestLocalize_OptionalGroupLeavesMatchUntouched(t *testing.T) {
	srv, hits := imageServer(t)
	dir := t.TempDir()
	re := regexp.MustCompile(`!\[\]\((?:(http://127\.0\.0\.1:\d+/png)|https?://[^\s)]+)\)`)
	content := "![](" + srv.URL + "/gif) ![](" + srv.URL + "/png)"

	got, n, err := images.New(fetch.New(fetch.Options{}), re).Localize(context.Background(), content, dir)
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.Equal(t, "![]("+srv.URL+"/gif) ![img_1.png](img_1.png)", got)
	require.Equal(t, []string{"/png"}, *hits)
}
