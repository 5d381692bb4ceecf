// 包 feeds 负责确定抓取范围：
// - LastEntry：获取博客 RSS，取第一条 item 的链接末段作为最大 entry
// - ParseLastEntry：使用 gofeed 解析订阅内容（与网络无关，便于测试）
package feeds

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/mmcdole/gofeed"

	"go-tistory-archive/internal/fetch"
	"go-tistory-archive/internal/model"
)

// FeedFormatError 表示订阅缺少必要结构；没有上界就无法抓取，属于致命错误。
type FeedFormatError struct {
	Reason string
	Err    error
}

func (e *FeedFormatError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("feed format: %s: %v", e.Reason, e.Err)
	}
	return "feed format: " + e.Reason
}

func (e *FeedFormatError) Unwrap() error { return e.Err }

// LastEntry 获取 base+feedPath 的订阅并返回最大 entry，抓取范围为 1..N。
func LastEntry(ctx context.Context, cl *fetch.Client, base, feedPath string) (int, error) {
	feedURL := joinURL(base, feedPath)
	body, err := cl.GetText(ctx, feedURL)
	if err != nil {
		return 0, fmt.Errorf("GET feed %s: %w", feedURL, err)
	}
	return ParseLastEntry(strings.NewReader(body))
}

// ParseLastEntry 解析订阅并读取第一条 item 链接的末段整数。
func ParseLastEntry(r io.Reader) (int, error) {
	feed, err := gofeed.NewParser().Parse(r)
	if err != nil {
		return 0, &FeedFormatError{Reason: "unparsable feed", Err: err}
	}
	if len(feed.Items) == 0 || feed.Items[0] == nil {
		return 0, &FeedFormatError{Reason: "feed has no item"}
	}
	link := strings.TrimSpace(feed.Items[0].Link)
	if link == "" {
		return 0, &FeedFormatError{Reason: "first item has no link"}
	}
	n, err := model.EntryFromLink(link)
	if err != nil {
		return 0, &FeedFormatError{Reason: "bad item link " + link, Err: err}
	}
	return n, nil
}

// joinURL 将 feedPath 解析为相对 base 的绝对 URL。
func joinURL(base, ref string) string {
	bu, err := url.Parse(base)
	if err != nil {
		return base + ref
	}
	ru, err := url.Parse(ref)
	if err != nil {
		return base + ref
	}
	return bu.ResolveReference(ru).String()
}
