// 包 images 负责正文图片本地化：
// - 按从左到右的顺序匹配空 alt 的远程图片 ![](url)
// - 逐个流式下载到文章目录，按文件内容嗅探真实格式并补上扩展名
// - 把引用改写为本地文件 ![img_N.ext](img_N.ext)
// 任一图片失败则整篇文章放弃（由调用方清理目录）。
package images

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"go-tistory-archive/internal/config"
	"go-tistory-archive/internal/logx"
)

// Downloader 为流式下载能力；*fetch.Client 满足该接口。
type Downloader interface {
	Download(ctx context.Context, url string, w io.Writer) (int64, error)
}

// DownloadError 表示第 Ordinal 张图片下载失败或内容无法识别为图片。
type DownloadError struct {
	Ordinal int
	URL     string
	Reason  string
	Err     error
}

func (e *DownloadError) Error() string {
	msg := fmt.Sprintf("image %d (%s): %s", e.Ordinal, e.URL, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *DownloadError) Unwrap() error { return e.Err }

// Localizer 在正文中查找远程图片并保存到本地。
type Localizer struct {
	dl      Downloader
	pattern *regexp.Regexp
}

// New 创建 Localizer；pattern 的第 1 个分组必须是图片 URL，为空时使用默认规则。
func New(dl Downloader, pattern *regexp.Regexp) *Localizer {
	if pattern == nil {
		pattern = regexp.MustCompile(config.DefaultImagePattern)
	}
	return &Localizer{dl: dl, pattern: pattern}
}

// rewrite 为替换过程中的累加器：已输出的文本、原文中已消费到的位置、下一个序号。
type rewrite struct {
	out  strings.Builder
	pos  int
	next int
}

// Localize 返回改写后的正文与保存的图片数量。序号在每次调用内从 1 开始。
func (l *Localizer) Localize(ctx context.Context, content, dir string) (string, int, error) {
	acc := &rewrite{next: 1}
	for _, m := range l.pattern.FindAllStringSubmatchIndex(content, -1) {
		// 第 1 组未参与匹配时没有 URL，保留原文
		if m[2] < 0 {
			continue
		}
		url := content[m[2]:m[3]]
		name, err := l.save(ctx, url, dir, acc.next)
		if err != nil {
			return "", acc.next - 1, err
		}
		acc.out.WriteString(content[acc.pos:m[0]])
		acc.out.WriteString(Ref(name))
		acc.pos = m[1]
		acc.next++
	}
	acc.out.WriteString(content[acc.pos:])
	return acc.out.String(), acc.next - 1, nil
}

// Ref 生成本地图片引用，文字与链接都是文件名。
func Ref(name string) string {
	return "![" + name + "](" + name + ")"
}

// save 下载第 n 张图片到 dir/img_n，嗅探格式后重命名为 img_n.<ext>。
func (l *Localizer) save(ctx context.Context, url, dir string, n int) (string, error) {
	tmp := filepath.Join(dir, fmt.Sprintf("img_%d", n))
	fail := func(reason string, err error) (string, error) {
		_ = os.Remove(tmp)
		return "", &DownloadError{Ordinal: n, URL: url, Reason: reason, Err: err}
	}

	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", &DownloadError{Ordinal: n, URL: url, Reason: "create file", Err: err}
	}
	size, err := l.dl.Download(ctx, url, f)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fail("download", err)
	}
	if size == 0 {
		return fail("empty body", nil)
	}

	mt, err := mimetype.DetectFile(tmp)
	if err != nil {
		return fail("sniff", err)
	}
	if !strings.HasPrefix(mt.String(), "image/") || mt.Extension() == "" {
		return fail("not an image: "+mt.String(), nil)
	}
	name := fmt.Sprintf("img_%d%s", n, mt.Extension())
	if err := os.Rename(tmp, filepath.Join(dir, name)); err != nil {
		return fail("rename", err)
	}
	logx.Debugf("图片已保存：%s", filepath.Join(dir, name))
	return name, nil
}
