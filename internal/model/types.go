// 包 model 定义归档流程中的数据模型（文章/归档记录/失败记录/统计/清单）。
package model

import "time"

// Uncategorized 为无分类文章的目录名与分类名。
const Uncategorized = "uncategorized"

// Post 为单篇文章抽取结果，只在单次管线调用内存在。
// Content 为 Markdown 正文（图片本地化之前）。
type Post struct {
	Entry      int
	Title      string
	Categories []string
	Date       time.Time
	Content    string
}

// Record 为成功归档的一篇文章。
type Record struct {
	Entry      int       `json:"entry"`
	Cursor     int       `json:"cursor"`
	Title      string    `json:"title"`
	Categories []string  `json:"categories"`
	Date       time.Time `json:"date"`
	Path       string    `json:"path"`
	Images     int       `json:"images"`
	ArchivedAt time.Time `json:"archived_at"`
}

// 失败类型，与错误分类一一对应。
const (
	KindFetch    = "fetch"
	KindExtract  = "extract"
	KindDownload = "download"
	KindPersist  = "persist"
)

// Failure 为被放弃的一个游标（entry）。
type Failure struct {
	Cursor    int       `json:"cursor"`
	Kind      string    `json:"kind"`
	Reason    string    `json:"reason"`
	CreatedAt time.Time `json:"created_at"`
}

// Stats 为一次抓取的统计信息。
type Stats struct {
	LastEntry     int       `json:"last_entry"`
	PostsTotal    int       `json:"posts_total"`
	FailuresTotal int       `json:"failures_total"`
	ImagesTotal   int       `json:"images_total"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Manifest 为 manifest.json 顶层结构。
type Manifest struct {
	Host     string    `json:"host"`
	Stats    Stats     `json:"stats"`
	Posts    []Record  `json:"posts"`
	Failures []Failure `json:"failures"`
}
