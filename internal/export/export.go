// 包 export 负责导出抓取清单：将台账或内存数据写为 manifest.json。
package export

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"go-tistory-archive/internal/model"
	"go-tistory-archive/internal/store"
)

// ToJSON 查询统计/归档记录/失败记录并写入 JSON 文件（带缩进格式）。
func ToJSON(ctx context.Context, s *store.SQLite, host, path string) error {
	posts, err := s.ListPosts(ctx)
	if err != nil {
		return fmt.Errorf("list posts: %w", err)
	}
	failures, err := s.ListFailures(ctx)
	if err != nil {
		return fmt.Errorf("list failures: %w", err)
	}
	stats, err := s.Stats(ctx)
	if err != nil {
		return fmt.Errorf("stats: %w", err)
	}
	return write(path, model.Manifest{Host: host, Stats: stats, Posts: posts, Failures: failures})
}

// ToJSONData 直接将内存中的记录写成 manifest.json，统计由数据计算。
func ToJSONData(ctx context.Context, host string, posts []model.Record, failures []model.Failure, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	st := model.Stats{
		PostsTotal:    len(posts),
		FailuresTotal: len(failures),
		UpdatedAt:     time.Now(),
	}
	for _, p := range posts {
		st.ImagesTotal += p.Images
		st.LastEntry = max(st.LastEntry, p.Cursor)
	}
	for _, f := range failures {
		st.LastEntry = max(st.LastEntry, f.Cursor)
	}
	return write(path, model.Manifest{Host: host, Stats: st, Posts: posts, Failures: failures})
}

func write(path string, m model.Manifest) error {
	// 空列表导出为 []
	if m.Posts == nil {
		m.Posts = []model.Record{}
	}
	if m.Failures == nil {
		m.Failures = []model.Failure{}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(m); err != nil {
		return fmt.Errorf("encode json to %s: %w", path, err)
	}
	return nil
}
