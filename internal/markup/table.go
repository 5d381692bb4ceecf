package markup

import "strings"

// isRow 判断行是否属于表格：含有未转义 | 的行。只有 \| 的行是正文。
func isRow(line string) bool {
	return strings.Contains(strings.ReplaceAll(line, `\|`, ""), "|")
}

// isOpenRow 以 | 开头却没有以 | 结尾的行，可能被转换器折到了下一行。
func isOpenRow(line string) bool {
	t := strings.TrimSpace(line)
	return strings.HasPrefix(t, "|") && !strings.HasSuffix(t, "|")
}

// RepairTables 拼接折断的表格行，删除表格行之间的空行，
// 并保证表格之后的第一行正文前恰好有一个空行。围栏内的行不处理。
func RepairTables(text string) string {
	lines := splitLines(text)
	out := make([]string, 0, len(lines))
	var open fence
	inTable := false
	for i := 0; i < len(lines); i++ {
		line := lines[i]
		if open.ok {
			if open.closes(line) {
				open = fence{}
			}
			out = append(out, line)
			continue
		}
		if f, _ := parseFence(line); f.ok {
			if inTable {
				out = append(out, "")
				inTable = false
			}
			open = f
			out = append(out, line)
			continue
		}
		if isBlank(line) {
			if !inTable {
				out = append(out, line)
				continue
			}
			next := nextContent(lines, i+1)
			if next < len(lines) && isRow(lines[next]) && !isFenceLine(lines[next]) {
				i = next - 1
				continue
			}
			// 表格结束：只保留一个空行
			out = append(out, "")
			inTable = false
			if next == len(lines) {
				break
			}
			i = next - 1
			continue
		}
		if isRow(line) {
			row, last := joinRow(lines, i)
			out = append(out, row)
			i = last
			inTable = true
			continue
		}
		if inTable {
			out = append(out, "")
			inTable = false
		}
		out = append(out, line)
	}
	return joinLines(out)
}

// joinRow 从 lines[i] 开始读取一行表格；若该行未闭合，则向后拼接续行直到出现以 | 结尾的行。
// 找不到闭合行（或遇到新行/围栏）时原样返回 lines[i]。
func joinRow(lines []string, i int) (string, int) {
	if !isOpenRow(lines[i]) {
		return lines[i], i
	}
	parts := []string{strings.TrimRight(lines[i], " \t")}
	for j := i + 1; j < len(lines); j++ {
		t := strings.TrimSpace(lines[j])
		if t == "" {
			continue
		}
		if strings.HasPrefix(t, "|") || isFenceLine(lines[j]) {
			break
		}
		parts = append(parts, t)
		if strings.HasSuffix(t, "|") {
			return strings.Join(parts, " "), j
		}
	}
	return lines[i], i
}

// nextContent 返回从 i 起第一个非空行的下标，没有则返回 len(lines)。
func nextContent(lines []string, i int) int {
	for i < len(lines) && isBlank(lines[i]) {
		i++
	}
	return i
}

func isFenceLine(line string) bool {
	f, _ := parseFence(line)
	return f.ok
}
