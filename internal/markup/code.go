package markup

import "strings"

// isIndented 判断行是否以 4 个空格或制表符开头（缩进代码行）。
func isIndented(line string) bool {
	return strings.HasPrefix(line, "    ") || strings.HasPrefix(line, "\t")
}

// dedent 去掉恰好一个缩进单位。
func dedent(line string) string {
	if strings.HasPrefix(line, "    ") {
		return line[4:]
	}
	return strings.TrimPrefix(line, "\t")
}

// FenceCode 把每个连续缩进行的最大段包进围栏，并在段内去掉一级缩进；
// 围栏内侧紧邻的空行被吸收。已有围栏内的行原样保留，因此重复执行结果不变。
func FenceCode(text string) string {
	lines := splitLines(text)
	out := make([]string, 0, len(lines)+8)
	var open fence
	for i := 0; i < len(lines); {
		line := lines[i]
		if open.ok {
			if open.closes(line) {
				open = fence{}
			}
			out = append(out, line)
			i++
			continue
		}
		if f, _ := parseFence(line); f.ok {
			open = f
			out = append(out, line)
			i++
			continue
		}
		if !isIndented(line) {
			out = append(out, line)
			i++
			continue
		}
		j := runEnd(lines, i)
		out = append(out, fenceRun(lines[i:j])...)
		i = j
	}
	return joinLines(out)
}

// runEnd 返回从 i 开始的缩进段的结束下标；任何未缩进的行（包括空行）都会结束该段。
func runEnd(lines []string, i int) int {
	j := i
	for j < len(lines) && isIndented(lines[j]) {
		j++
	}
	return j
}

// fenceRun 处理一段缩进行；全是空白的段不构成代码，原样返回。
func fenceRun(run []string) []string {
	body := make([]string, 0, len(run))
	for _, l := range run {
		body = append(body, dedent(l))
	}
	for len(body) > 0 && isBlank(body[0]) {
		body = body[1:]
	}
	for len(body) > 0 && isBlank(body[len(body)-1]) {
		body = body[:len(body)-1]
	}
	if len(body) == 0 {
		return run
	}
	marker := strings.Repeat("`", fenceWidth(body))
	out := make([]string, 0, len(body)+2)
	out = append(out, marker)
	out = append(out, body...)
	return append(out, marker)
}

// fenceWidth 返回比代码内任何反引号围栏都长的标记长度（至少 3）。
func fenceWidth(body []string) int {
	w := 3
	for _, l := range body {
		if f, _ := parseFence(l); f.ok && f.ch == '`' && f.n >= w {
			w = f.n + 1
		}
	}
	return w
}
