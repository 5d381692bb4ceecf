package model

import (
	"fmt"
	"net/url"
	"path"
	"strconv"
	"strings"
)

// EntryFromLink 读取链接路径的最后一段并解析为正整数 entry。
// http://x.tistory.com/12、/12、/12/ 均得到 12。
func EntryFromLink(link string) (int, error) {
	p := strings.TrimSpace(link)
	if u, err := url.Parse(p); err == nil {
		p = u.Path
	}
	seg := path.Base(strings.TrimRight(p, "/"))
	n, err := strconv.Atoi(seg)
	if err != nil {
		return 0, fmt.Errorf("trailing segment %q: %w", seg, err)
	}
	if n <= 0 {
		return 0, fmt.Errorf("trailing segment %q: not positive", seg)
	}
	return n, nil
}
