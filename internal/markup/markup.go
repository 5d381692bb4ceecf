// 包 markup 对 HTML→Markdown 转换后的正文做两遍行级修复：
// - FenceCode：把缩进代码段改写为围栏代码块
// - RepairTables：把被折断的表格行重新拼接，并整理表格前后的空行
// 两遍都是显式的行状态机（正文/代码段/围栏/表格），与解析库无关。
// 顺序固定：表格修复依赖代码修复产生的围栏，以免把代码里的 | 当成表格。
package markup

import "strings"

// Normalize 依次执行代码块修复与表格修复。
func Normalize(text string) string {
	return RepairTables(FenceCode(text))
}

// fence 描述一个已打开的围栏（``` 或 ~~~）。
type fence struct {
	ch byte
	n  int
	ok bool
}

// parseFence 判断行是否为围栏标记：最多 3 个前导空格，随后至少 3 个 ` 或 ~。
func parseFence(line string) (f fence, info string) {
	i := 0
	for i < len(line) && i < 3 && line[i] == ' ' {
		i++
	}
	if i >= len(line) || (line[i] != '`' && line[i] != '~') {
		return fence{}, ""
	}
	ch := line[i]
	j := i
	for j < len(line) && line[j] == ch {
		j++
	}
	if j-i < 3 {
		return fence{}, ""
	}
	rest := line[j:]
	if ch == '`' && strings.ContainsRune(rest, '`') {
		return fence{}, ""
	}
	return fence{ch: ch, n: j - i, ok: true}, strings.TrimSpace(rest)
}

// closes 判断 line 是否关闭已打开的围栏 f。
func (f fence) closes(line string) bool {
	g, info := parseFence(line)
	return g.ok && g.ch == f.ch && g.n >= f.n && info == ""
}

func splitLines(text string) []string {
	return strings.Split(text, "\n")
}

func joinLines(lines []string) string {
	return strings.Join(lines, "\n")
}

func isBlank(line string) bool {
	return strings.TrimSpace(line) == ""
}
