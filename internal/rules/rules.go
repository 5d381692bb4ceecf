// 包 rules 负责加载并提供皮肤解析规则（rules.yaml），
// 以预设名（如 default/odyssey）组织 CSS 选择器，用于文章页解析。
package rules

import (
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Rules 表示全部规则集合：键为预设名，值为具体规则。
type Rules struct {
	Presets map[string]Preset `yaml:",inline"`
}

// Preset 为单个皮肤预设的解析规则集合。
type Preset struct {
	Post *PostPage `yaml:"post_page"`
}

// PostPage 描述文章页的选择器：
// - article：正文容器；info：标题/元数据块（均必须存在）
// - link/category/date：在 info 内查找
// - strip：转换前从 article 中移除的非正文块
type PostPage struct {
	Article       string   `yaml:"article"`
	Info          string   `yaml:"info"`
	Link          string   `yaml:"link"`
	Category      string   `yaml:"category"`
	Date          string   `yaml:"date"`
	DateLayout    string   `yaml:"date_layout"`
	Uncategorized string   `yaml:"uncategorized"`
	Strip         []string `yaml:"strip"`
}

// Builtin 返回 tistory 默认皮肤的规则。
func Builtin() *PostPage {
	return &PostPage{
		Article:       "article",
		Info:          "div.titleWrap",
		Link:          "a",
		Category:      "span.category",
		Date:          "span.date",
		DateLayout:    "2006.01.02 15:04",
		Uncategorized: "분류없음",
		Strip: []string{
			"div.titleWrap",
			"div.container_postbtn",
			"div.relatedWrap",
			"div.author",
		},
	}
}

// withDefaults 用内置规则补全预设中未填写的字段。
func (p *PostPage) withDefaults() *PostPage {
	b := Builtin()
	if p == nil {
		return b
	}
	out := *p
	if out.Article == "" {
		out.Article = b.Article
	}
	if out.Info == "" {
		out.Info = b.Info
	}
	if out.Link == "" {
		out.Link = b.Link
	}
	if out.Category == "" {
		out.Category = b.Category
	}
	if out.Date == "" {
		out.Date = b.Date
	}
	if out.DateLayout == "" {
		out.DateLayout = b.DateLayout
	}
	if out.Uncategorized == "" {
		out.Uncategorized = b.Uncategorized
	}
	if out.Strip == nil {
		out.Strip = b.Strip
	}
	return &out
}

func Load(path string) (*Rules, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open rules %s: %w", path, err)
	}
	defer f.Close()
	b, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read rules %s: %w", path, err)
	}
	var r Rules
	if err := yaml.Unmarshal(b, &r.Presets); err != nil {
		return nil, fmt.Errorf("unmarshal rules %s: %w", path, err)
	}
	return &r, nil
}

// GetPreset 按名称获取预设（不区分大小写），若为空或不存在则回退到 "default"。
func (r *Rules) GetPreset(name string) (Preset, bool) {
	if r == nil || len(r.Presets) == 0 {
		return Preset{}, false
	}
	if name == "" {
		name = "default"
	}
	if p, ok := r.Presets[name]; ok {
		return p, true
	}
	for k, v := range r.Presets {
		if strings.EqualFold(k, name) {
			return v, true
		}
	}
	for k, v := range r.Presets {
		if strings.EqualFold(k, "default") {
			return v, true
		}
	}
	return Preset{}, false
}

// PostPage 返回命名预设的文章页规则；没有规则文件或预设时使用内置规则。
func (r *Rules) PostPage(name string) *PostPage {
	p, ok := r.GetPreset(name)
	if !ok {
		return Builtin()
	}
	return p.Post.withDefaults()
}
