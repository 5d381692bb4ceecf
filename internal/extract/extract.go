// 包 extract 从单个文章页 HTML 中抽取结构化文章：
// - 定位正文容器与标题/元数据块（缺失即失败，不返回半成品）
// - 读取 entry/标题/分类/发布时间
// - 删除非正文块后交给 HTML→Markdown 转换器
package extract

import (
	"fmt"
	"io"
	"strings"
	"time"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/JohannesKaufmann/html-to-markdown/plugin"
	"github.com/PuerkitoBio/goquery"

	"go-tistory-archive/internal/model"
	"go-tistory-archive/internal/rules"
)

// ExtractionError 表示页面缺少必要结构（已删除/私密文章或非文章页），只影响当前文章。
type ExtractionError struct {
	Reason string
	Err    error
}

func (e *ExtractionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("extract: %s: %v", e.Reason, e.Err)
	}
	return "extract: " + e.Reason
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// Converter 为 HTML→Markdown 转换能力；*md.Converter 满足该接口。
type Converter interface {
	Convert(selec *goquery.Selection) string
}

// NewConverter 返回不折行、支持表格的 html-to-markdown 转换器。
// 缩进形式的代码（例如以空格缩进的段落）由 markup.FenceCode 统一改写为围栏。
func NewConverter() *md.Converter {
	conv := md.NewConverter("", true, nil)
	conv.Use(plugin.Table())
	return conv
}

// KST 为 tistory 页面上时间的时区。
var KST = time.FixedZone("KST", 9*60*60)

// Extractor 按皮肤规则抽取文章。
type Extractor struct {
	page *rules.PostPage
	conv Converter
	loc  *time.Location
}

// New 创建 Extractor；page 为空时使用内置规则，conv 为空时使用 NewConverter。
func New(page *rules.PostPage, conv Converter) *Extractor {
	if page == nil {
		page = rules.Builtin()
	}
	if conv == nil {
		conv = NewConverter()
	}
	return &Extractor{page: page, conv: conv, loc: KST}
}

// Parse 解析 HTML 并抽取文章。
func (e *Extractor) Parse(r io.Reader) (model.Post, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return model.Post{}, &ExtractionError{Reason: "parse html", Err: err}
	}
	return e.ParseDocument(doc)
}

// ParseDocument 在已解析的文档上抽取文章；文档中的非正文块会被删除。
func (e *Extractor) ParseDocument(doc *goquery.Document) (model.Post, error) {
	p := e.page
	article, ok := first(doc.Selection, p.Article)
	if !ok {
		return model.Post{}, &ExtractionError{Reason: "no article element " + p.Article}
	}
	info, ok := first(article, p.Info)
	if !ok {
		return model.Post{}, &ExtractionError{Reason: "no title block " + p.Info}
	}

	a, ok := first(info, p.Link)
	if !ok {
		return model.Post{}, &ExtractionError{Reason: "no entry link in title block"}
	}
	href, _ := a.Attr("href")
	entry, err := model.EntryFromLink(href)
	if err != nil {
		return model.Post{}, &ExtractionError{Reason: "entry link " + href, Err: err}
	}
	title := a.Text()

	cat, ok := first(info, p.Category)
	if !ok {
		return model.Post{}, &ExtractionError{Reason: "no category " + p.Category}
	}
	categories := Categories(cat.Text(), p.Uncategorized)

	dt, ok := first(info, p.Date)
	if !ok {
		return model.Post{}, &ExtractionError{Reason: "no date " + p.Date}
	}
	date, err := time.ParseInLocation(p.DateLayout, strings.TrimSpace(dt.Text()), e.loc)
	if err != nil {
		return model.Post{}, &ExtractionError{Reason: "date", Err: err}
	}

	for _, css := range p.Strip {
		article.Find(css).Remove()
	}
	return model.Post{
		Entry:      entry,
		Title:      title,
		Categories: categories,
		Date:       date,
		Content:    e.conv.Convert(article),
	}, nil
}

// Categories 把分类文本规范化为路径段：无分类占位符替换为 uncategorized，
// 按 / 切分并去掉每段首尾空白，空段丢弃；结果至少有一段。
func Categories(text, placeholder string) []string {
	if placeholder != "" {
		text = strings.ReplaceAll(text, placeholder, model.Uncategorized)
	}
	var out []string
	for _, seg := range strings.Split(text, "/") {
		if seg = strings.TrimSpace(seg); seg != "" {
			out = append(out, seg)
		}
	}
	if len(out) == 0 {
		return []string{model.Uncategorized}
	}
	return out
}

// first 返回 scope 内第一个匹配 css 的元素；不存在时 ok 为 false。
func first(scope *goquery.Selection, css string) (*goquery.Selection, bool) {
	if css == "" {
		return nil, false
	}
	sel := scope.Find(css).First()
	return sel, sel.Length() > 0
}
