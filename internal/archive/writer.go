// 包 archive 负责归档目录：
// - PrepareRoot：准备归档根目录（已存在时通过注入的 ConfirmFunc 询问是否删除）
// - Writer：按分类层级与 entry 创建文章目录，写入带 front matter 的文档
package archive

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"go-tistory-archive/internal/model"
)

// PersistenceError 表示目录创建或文件写入失败，只影响当前文章。
type PersistenceError struct {
	Path string
	Op   string
	Err  error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// DateLayout 为 front matter 中 date 的格式。
const DateLayout = "2006-01-02 15:04:05"

// Writer 把文章写入 <root>/<分类...>/<entry>/<docName>。
type Writer struct {
	root    string
	docName string
}

func NewWriter(root, docName string) *Writer {
	if docName == "" {
		docName = "index.md"
	}
	return &Writer{root: root, docName: docName}
}

// Dir 返回文章目录，仅由分类与 entry 决定。
func (w *Writer) Dir(categories []string, entry int) string {
	parts := make([]string, 0, len(categories)+2)
	parts = append(parts, w.root)
	for _, c := range categories {
		parts = append(parts, segment(c))
	}
	parts = append(parts, strconv.Itoa(entry))
	return filepath.Join(parts...)
}

// segment 让分类名只能作为单个目录名使用。
func segment(s string) string {
	s = strings.NewReplacer("/", "_", "\\", "_", "\x00", "").Replace(strings.TrimSpace(s))
	switch s {
	case "", ".", "..":
		return model.Uncategorized
	}
	return s
}

// Create 创建文章目录；目录已存在视为错误。
func (w *Writer) Create(dir string) error {
	if err := os.MkdirAll(filepath.Dir(dir), 0o755); err != nil {
		return &PersistenceError{Path: dir, Op: "mkdir", Err: err}
	}
	if err := os.Mkdir(dir, 0o755); err != nil {
		return &PersistenceError{Path: dir, Op: "mkdir", Err: err}
	}
	return nil
}

// Discard 删除被放弃文章的目录，不留下半成品。
func (w *Writer) Discard(dir string) error {
	if err := os.RemoveAll(dir); err != nil {
		return &PersistenceError{Path: dir, Op: "remove", Err: err}
	}
	return nil
}

// Write 写入 front matter 与正文（正文原样写入），返回文档路径。
func (w *Writer) Write(post model.Post, dir, body string) (string, error) {
	path := filepath.Join(dir, w.docName)
	doc := FrontMatter(post) + body
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		return "", &PersistenceError{Path: path, Op: "write", Err: err}
	}
	return path, nil
}

// FrontMatter 生成固定顺序的头部：title、categories、slug、date。
// 标题含冒号时加双引号。
func FrontMatter(post model.Post) string {
	var b strings.Builder
	b.WriteString("---\n")
	b.WriteString("title: " + quoteTitle(post.Title) + "\n")
	b.WriteString("categories: [" + strings.Join(post.Categories, ", ") + "]\n")
	b.WriteString("slug: " + strconv.Itoa(post.Entry) + "\n")
	b.WriteString("date: " + post.Date.Format(DateLayout) + "\n")
	b.WriteString("---\n")
	return b.String()
}

func quoteTitle(t string) string {
	if !strings.Contains(t, ":") {
		return t
	}
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`)
	return `"` + r.Replace(t) + `"`
}

// ConfirmFunc 询问是否可以删除已存在的路径，返回 true 表示继续。
type ConfirmFunc func(path string) (bool, error)

// PrepareRoot 创建归档根目录。根目录已存在时调用 confirm：
// 同意则删除后重建；不同意返回 false，且不做任何修改。
func PrepareRoot(root string, confirm ConfirmFunc) (bool, error) {
	_, err := os.Stat(root)
	if errors.Is(err, os.ErrNotExist) {
		if err := os.MkdirAll(root, 0o755); err != nil {
			return false, fmt.Errorf("create archive root %s: %w", root, err)
		}
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("stat archive root %s: %w", root, err)
	}
	if confirm == nil {
		return false, nil
	}
	ok, err := confirm(root)
	if err != nil {
		return false, fmt.Errorf("confirm %s: %w", root, err)
	}
	if !ok {
		return false, nil
	}
	if err := os.RemoveAll(root); err != nil {
		return false, fmt.Errorf("remove archive root %s: %w", root, err)
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return false, fmt.Errorf("create archive root %s: %w", root, err)
	}
	return true, nil
}
