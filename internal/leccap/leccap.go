package leccap

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/John-Robertt/lecnote/internal/domain"
)

// Parse 从 leccap 页面 HTML 中抽取字幕与幻灯片切换事件。
//
// 约束：
// - 只依赖输入 html（纯函数，无网络）
// - 站点结构不全时降级为部分/空结果，并在 Lecture.Warnings 中说明；不因单条坏数据失败
// - Captions 按时间稳定排序（重复时间戳保序，不去重）
// - Slides 按时间排序，同一时刻的多个缩略图合并为一个，Index 从 1 连续编号
func Parse(html []byte) (domain.Lecture, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return domain.Lecture{}, err
	}

	var lec domain.Lecture

	rows := doc.Find("div.transcript-row")
	dropped := 0
	rows.Each(func(_ int, row *goquery.Selection) {
		timeSel := row.Find("div.transcript-time").First()
		textSel := row.Find("div.transcript-text").First()
		if timeSel.Length() == 0 || textSel.Length() == 0 {
			dropped++
			return
		}
		at, ok := parseClock(timeSel.Text())
		if !ok {
			dropped++
			return
		}
		text := spacedText(textSel)
		if text == "" {
			dropped++
			return
		}
		lec.Captions = append(lec.Captions, domain.CaptionEvent{At: at, Text: text})
	})
	switch {
	case rows.Length() == 0:
		lec.Warnings = append(lec.Warnings, "页面中没有字幕标记（div.transcript-row）；请确认录播站点已开启 transcript 功能")
	case dropped > 0:
		lec.Warnings = append(lec.Warnings, fmt.Sprintf("丢弃了 %d 条无法解析的字幕行", dropped))
	}
	sort.SliceStable(lec.Captions, func(i, j int) bool { return lec.Captions[i].At < lec.Captions[j].At })

	thumbs := doc.Find("div.thumbnail[aria-label]")
	dropped = 0
	var slides []domain.SlideChange
	thumbs.Each(func(_ int, s *goquery.Selection) {
		label, _ := s.Attr("aria-label")
		at, ok := parseThumbLabel(label)
		if !ok {
			dropped++
			return
		}
		slides = append(slides, domain.SlideChange{At: at, ThumbURL: thumbURL(s)})
	})
	switch {
	case thumbs.Length() == 0:
		lec.Warnings = append(lec.Warnings, "页面中没有缩略图标记（div.thumbnail[aria-label]）；将不插入任何幻灯片")
	case dropped > 0:
		lec.Warnings = append(lec.Warnings, fmt.Sprintf("丢弃了 %d 个无法解析时间的缩略图", dropped))
	}
	lec.Slides = normalizeSlides(slides)

	return lec, nil
}

// Thin 过滤间隔小于 minGap 秒的幻灯片（总是保留第一张），并重新编号。
// minGap <= 0 表示不过滤。
func Thin(slides []domain.SlideChange, minGap float64) []domain.SlideChange {
	if minGap <= 0 || len(slides) == 0 {
		return slides
	}
	out := make([]domain.SlideChange, 0, len(slides))
	last := 0.0
	for i, s := range slides {
		if i > 0 && s.At-last < minGap {
			continue
		}
		out = append(out, s)
		last = s.At
	}
	return renumber(out)
}

func normalizeSlides(in []domain.SlideChange) []domain.SlideChange {
	if len(in) == 0 {
		return nil
	}
	sort.SliceStable(in, func(i, j int) bool { return in[i].At < in[j].At })

	out := make([]domain.SlideChange, 0, len(in))
	for _, s := range in {
		if n := len(out); n > 0 && out[n-1].At == s.At {
			if out[n-1].ThumbURL == "" {
				out[n-1].ThumbURL = s.ThumbURL
			}
			continue
		}
		out = append(out, s)
	}
	return renumber(out)
}

func renumber(slides []domain.SlideChange) []domain.SlideChange {
	for i := range slides {
		slides[i].Index = i + 1
	}
	return slides
}

func thumbURL(s *goquery.Selection) string {
	var u string
	s.ChildrenFiltered("div").EachWithBreak(func(_ int, c *goquery.Selection) bool {
		style, ok := c.Attr("style")
		if !ok {
			return true
		}
		u = bgURL(style)
		return u == ""
	})
	if strings.HasPrefix(u, "//") {
		u = "https:" + u
	}
	return u
}

// spacedText 以空格连接各文本节点（避免 <b>a</b>b 被拼成 "ab"），再做空白归一化。
func spacedText(s *goquery.Selection) string {
	var parts []string
	s.Contents().Each(func(_ int, c *goquery.Selection) {
		if goquery.NodeName(c) == "#text" {
			parts = append(parts, c.Text())
			return
		}
		parts = append(parts, spacedText(c))
	})
	return normSpace(strings.Join(parts, " "))
}

func normSpace(s string) string { return strings.Join(strings.Fields(s), " ") }
