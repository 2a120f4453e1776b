package compact

import (
	"strings"
)

// Compact 压缩 transcript Markdown：
//
//  1. 连续重复的字幕行（忽略大小写与空白差异）只保留第一条
//  2. 锚点（图片引用、标题、分隔线）之间的字幕行合并为一段
//  3. 相邻重复段落只保留第一段
//
// 锚点原位保留，且不打断“连续”判断。字幕段落不含锚点特征，合并后也不会变成锚点。输出元素之间空一行，以单个换行结尾。
// 对自身输出再次调用结果不变。
func Compact(src []byte) []byte {
	var (
		elems    []string
		para     []string
		lastLine string // 上一条保留的字幕行（归一化），跨锚点保持
		lastPara string // 上一个保留的段落（归一化），跨锚点保持
	)

	flush := func() {
		if len(para) == 0 {
			return
		}
		text := strings.Join(para, " ")
		para = para[:0]
		key := normalize(text)
		if key == lastPara {
			return
		}
		lastPara = key
		elems = append(elems, text)
	}

	for _, raw := range strings.Split(string(src), "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		if isAnchor(line) {
			flush()
			elems = append(elems, line)
			continue
		}

		line = collapse(line)
		key := normalize(line)
		if key == lastLine {
			continue
		}
		lastLine = key
		para = append(para, line)
	}
	flush()

	if len(elems) == 0 {
		return []byte{}
	}
	var b strings.Builder
	for i, e := range elems {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(e)
	}
	b.WriteString("\n")
	return []byte(b.String())
}

func isAnchor(line string) bool {
	if strings.HasPrefix(line, "![") || strings.HasPrefix(line, "#") {
		return true
	}
	return isRule(line)
}

// isRule 识别分隔线：只由 - * _ 与空白组成的非空行，长度不限。
//
// "-"、"--" 这类短行也算：它们合并成 "- - --" 后同样是分隔线。
func isRule(line string) bool {
	n := 0
	for _, r := range line {
		switch r {
		case ' ', '\t':
		case '-', '*', '_':
			n++
		default:
			return false
		}
	}
	return n > 0
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func normalize(s string) string {
	return strings.ToLower(collapse(s))
}
