// 包 logx 是对标准库 slog 的薄封装：
// - 支持级别/格式/语言/颜色配置，输出目标可注入（默认 stderr，不与归档输出混在一起）
// - pretty 格式带本地化等级标签（zh-CN/en/ko）
// - 通过 Debugf/Infof/Warnf/Errorf 暴露给抓取流程
package logx

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"
)

// Options 为日志初始化参数，字段与 settings.yaml 的 LOG_* 对应。
type Options struct {
	Level  string    // debug|info|warn|error|off
	Format string    // pretty|json|text
	Locale string    // zh-CN|en|ko
	Color  string    // auto|always|never
	Writer io.Writer // 为空时使用 os.Stderr
}

// Init 按 Options 初始化全局 slog 日志器。
func Init(opts Options) {
	w := opts.Writer
	if w == nil {
		w = os.Stderr
	}
	lv := parseLevel(opts.Level)
	hopts := &slog.HandlerOptions{Level: lv}
	var handler slog.Handler
	switch strings.ToLower(strings.TrimSpace(opts.Format)) {
	case "json":
		handler = slog.NewJSONHandler(w, hopts)
	case "text":
		handler = slog.NewTextHandler(w, hopts)
	default:
		handler = NewPrettyHandler(w, lv, opts.Locale, opts.Color)
	}
	slog.SetDefault(slog.New(handler))
}

// levelOff 高于任何实际等级，用于静默。
const levelOff slog.Level = 100

func parseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	case "none", "silent", "off":
		return levelOff
	default:
		return slog.LevelInfo
	}
}

func Debugf(format string, v ...any) { slog.Debug(fmt.Sprintf(format, v...)) }
func Infof(format string, v ...any)  { slog.Info(fmt.Sprintf(format, v...)) }
func Warnf(format string, v ...any)  { slog.Warn(fmt.Sprintf(format, v...)) }
func Errorf(format string, v ...any) { slog.Error(fmt.Sprintf(format, v...)) }

// PrettyHandler 为人读格式：时间 + 等级标签 + 消息 + 展平的 k=v 属性。
type PrettyHandler struct {
	w      io.Writer
	level  slog.Level
	labels map[slog.Level]string
	color  bool
	mu     *sync.Mutex
	attrs  []slog.Attr
	group  string
}

// NewPrettyHandler 创建 PrettyHandler；locale 为空时使用 zh-CN 标签。
func NewPrettyHandler(w io.Writer, lv slog.Level, locale, colorMode string) *PrettyHandler {
	if w == nil {
		w = os.Stderr
	}
	return &PrettyHandler{
		w:      w,
		level:  lv,
		labels: labelsFor(locale),
		color:  shouldColor(w, colorMode),
		mu:     &sync.Mutex{},
	}
}

func (h *PrettyHandler) Enabled(_ context.Context, l slog.Level) bool {
	return h.level < levelOff && l >= h.level
}

func (h *PrettyHandler) Handle(_ context.Context, r slog.Record) error {
	var buf bytes.Buffer
	ts := r.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	buf.WriteString(ts.Format("2006-01-02 15:04:05"))
	buf.WriteByte(' ')
	lbl, ok := h.labels[r.Level]
	if !ok {
		lbl = fmt.Sprintf("[L%d]", r.Level)
	}
	if h.color {
		lbl = colorize(lbl, r.Level)
	}
	buf.WriteString(lbl)
	buf.WriteByte(' ')
	buf.WriteString(r.Message)

	attrs := append([]slog.Attr(nil), h.attrs...)
	r.Attrs(func(a slog.Attr) bool {
		if h.group != "" {
			a.Key = h.group + "." + a.Key
		}
		attrs = append(attrs, a)
		return true
	})
	for _, a := range attrs {
		buf.WriteByte(' ')
		buf.WriteString(a.Key)
		buf.WriteByte('=')
		buf.WriteString(a.Value.String())
	}
	buf.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.w.Write(buf.Bytes())
	return err
}

func (h *PrettyHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	cp := *h
	cp.attrs = append(append([]slog.Attr(nil), h.attrs...), attrs...)
	return &cp
}

func (h *PrettyHandler) WithGroup(name string) slog.Handler {
	cp := *h
	if cp.group == "" {
		cp.group = name
	} else {
		cp.group += "." + name
	}
	return &cp
}

var localeLabels = map[string]map[slog.Level]string{
	"zh": {
		slog.LevelDebug: "[调试]",
		slog.LevelInfo:  "[信息]",
		slog.LevelWarn:  "[警告]",
		slog.LevelError: "[错误]",
	},
	"ko": {
		slog.LevelDebug: "[디버그]",
		slog.LevelInfo:  "[정보]",
		slog.LevelWarn:  "[경고]",
		slog.LevelError: "[오류]",
	},
	"en": {
		slog.LevelDebug: "[DEBUG]",
		slog.LevelInfo:  "[INFO]",
		slog.LevelWarn:  "[WARN]",
		slog.LevelError: "[ERROR]",
	},
}

// labelsFor 按语言前缀选择标签表（zh-CN -> zh，ko-KR -> ko），未知语言回退到英文。
func labelsFor(locale string) map[slog.Level]string {
	l := strings.ToLower(strings.TrimSpace(locale))
	if l == "" {
		l = "zh"
	}
	for prefix, labels := range localeLabels {
		if strings.HasPrefix(l, prefix) {
			return labels
		}
	}
	return localeLabels["en"]
}

// shouldColor 遵循 NO_COLOR 与 LOG_COLOR；auto 时仅对终端启用。
func shouldColor(w io.Writer, mode string) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "always":
		return true
	case "auto", "":
		if f, ok := w.(*os.File); ok {
			if fi, err := f.Stat(); err == nil {
				return fi.Mode()&os.ModeCharDevice != 0
			}
		}
	}
	return false
}

func colorize(s string, l slog.Level) string {
	code := "0"
	switch l {
	case slog.LevelDebug:
		code = "90"
	case slog.LevelInfo:
		code = "36"
	case slog.LevelWarn:
		code = "33"
	case slog.LevelError:
		code = "31"
	}
	return "\x1b[" + code + "m" + s + "\x1b[0m"
}
