// 包 crawl 负责主流程编排：
// - 通过订阅确定抓取范围 1..N
// - 逐篇抓取、抽取、修复、本地化图片并写入归档
// - 单篇失败只记录并跳过，不影响后续文章
package crawl

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go-tistory-archive/internal/archive"
	"go-tistory-archive/internal/config"
	"go-tistory-archive/internal/extract"
	"go-tistory-archive/internal/feeds"
	"go-tistory-archive/internal/fetch"
	"go-tistory-archive/internal/images"
	"go-tistory-archive/internal/logx"
	"go-tistory-archive/internal/markup"
	"go-tistory-archive/internal/model"
	"go-tistory-archive/internal/rules"
)

// Recorder 记录每个游标的处理结果；*store.SQLite 与 *SimpleBuffer 都满足该接口。
type Recorder interface {
	UpsertPost(ctx context.Context, r model.Record) error
	AddFailure(ctx context.Context, f model.Failure) error
}

// Runner 抓取执行器，持有配置/HTTP 客户端/各处理阶段/记录器。
type Runner struct {
	cfg    *config.Config
	base   string
	fetch  *fetch.Client
	ext    *extract.Extractor
	images *images.Localizer
	writer *archive.Writer
	rec    Recorder
	// 极简模式：rec 为内存缓冲
	buf   *SimpleBuffer
	stats model.Stats
}

// New 创建 Runner。rec 为空时使用内存缓冲（极简模式），结果通过 BufferData 取回。
func New(cfg *config.Config, host string, cl *fetch.Client, rl *rules.Rules, rec Recorder) *Runner {
	pattern := regexp.MustCompile(config.DefaultImagePattern)
	if cfg.ImagePattern != "" {
		// Validate 已保证可编译
		pattern = regexp.MustCompile(cfg.ImagePattern)
	}
	r := &Runner{
		cfg:    cfg,
		base:   cfg.BaseURL(host),
		fetch:  cl,
		ext:    extract.New(rl.PostPage(cfg.RulesPreset), nil),
		images: images.New(cl, pattern),
		writer: archive.NewWriter(cfg.Root(host), cfg.DocName),
		rec:    rec,
	}
	if rec == nil {
		r.buf = NewSimpleBuffer()
		r.rec = r.buf
	}
	return r
}

// Run 执行一次完整抓取。只有确定抓取范围失败与 ctx 取消会返回错误。
func (r *Runner) Run(ctx context.Context) error {
	last, err := feeds.LastEntry(ctx, r.fetch, r.base, r.cfg.FeedPath)
	if err != nil {
		return fmt.Errorf("enumerate entries: %w", err)
	}
	r.stats = model.Stats{LastEntry: last}
	logx.Infof("抓取范围：%s/1 .. %s/%d", r.base, r.base, last)

	for cursor := 1; cursor <= last; cursor++ {
		rec, err := r.archivePost(ctx, cursor)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			r.fail(ctx, cursor, err)
			continue
		}
		r.stats.PostsTotal++
		r.stats.ImagesTotal += rec.Images
		if err := r.rec.UpsertPost(ctx, rec); err != nil {
			logx.Warnf("写入归档记录失败：游标=%d 错误=%v", cursor, err)
		}
		logx.Infof("[%d/%d] 已归档：%s（图片 %d）", cursor, last, rec.Path, rec.Images)
	}
	r.stats.UpdatedAt = time.Now()
	logx.Infof("抓取完成：文章=%d 失败=%d 图片=%d", r.stats.PostsTotal, r.stats.FailuresTotal, r.stats.ImagesTotal)
	return nil
}

// archivePost 处理单个游标：抓取→抽取→修复→建目录→图片→写文档。
// 建目录之后的任何失败都会删除该目录。
func (r *Runner) archivePost(ctx context.Context, cursor int) (model.Record, error) {
	pageURL := r.base + "/" + strconv.Itoa(cursor)
	html, err := r.fetch.GetText(ctx, pageURL)
	if err != nil {
		return model.Record{}, err
	}
	post, err := r.ext.Parse(strings.NewReader(html))
	if err != nil {
		return model.Record{}, err
	}
	post.Content = markup.Normalize(post.Content)

	entry := r.entryFor(cursor, post.Entry)
	dir := r.writer.Dir(post.Categories, entry)
	if err := r.writer.Create(dir); err != nil {
		return model.Record{}, err
	}
	body, n, err := r.images.Localize(ctx, post.Content, dir)
	if err != nil {
		r.discard(dir)
		return model.Record{}, err
	}
	doc := post
	doc.Entry = entry
	path, err := r.writer.Write(doc, dir, body)
	if err != nil {
		r.discard(dir)
		return model.Record{}, err
	}
	return model.Record{
		Entry:      post.Entry,
		Cursor:     cursor,
		Title:      post.Title,
		Categories: post.Categories,
		Date:       post.Date,
		Path:       path,
		Images:     n,
		ArchivedAt: time.Now(),
	}, nil
}

// entryFor 选择目录与 slug 使用的 entry；两者不一致时告警。
func (r *Runner) entryFor(cursor, parsed int) int {
	if parsed != cursor {
		logx.Warnf("entry 不一致：游标=%d 页面=%d 采用=%s", cursor, parsed, r.cfg.EntrySource)
	}
	if r.cfg.EntrySource == config.EntryFromCursor {
		return cursor
	}
	return parsed
}

func (r *Runner) discard(dir string) {
	if err := r.writer.Discard(dir); err != nil {
		logx.Warnf("清理目录失败：%v", err)
	}
}

// fail 记录失败的游标并继续。
func (r *Runner) fail(ctx context.Context, cursor int, err error) {
	kind := Classify(err)
	r.stats.FailuresTotal++
	if fetch.IsNotFound(err) {
		logx.Infof("跳过 %s/%d：文章不存在或非公开", r.base, cursor)
	} else {
		logx.Warnf("跳过 %s/%d：类型=%s 错误=%v", r.base, cursor, kind, err)
	}
	f := model.Failure{Cursor: cursor, Kind: kind, Reason: err.Error(), CreatedAt: time.Now()}
	if err := r.rec.AddFailure(ctx, f); err != nil {
		logx.Warnf("写入失败记录失败：游标=%d 错误=%v", cursor, err)
	}
}

// Classify 把单篇错误映射为失败类型；无法识别的错误归为抓取失败。
func Classify(err error) string {
	var (
		ee *extract.ExtractionError
		de *images.DownloadError
		pe *archive.PersistenceError
	)
	switch {
	case errors.As(err, &ee):
		return model.KindExtract
	case errors.As(err, &de):
		return model.KindDownload
	case errors.As(err, &pe):
		return model.KindPersist
	default:
		return model.KindFetch
	}
}

// Stats 返回最近一次 Run 的统计。
func (r *Runner) Stats() model.Stats { return r.stats }

// BufferData 返回极简模式下收集的内存数据（归档记录、失败记录）。
func (r *Runner) BufferData() ([]model.Record, []model.Failure) {
	if r == nil || r.buf == nil {
		return nil, nil
	}
	return r.buf.Snapshot()
}
