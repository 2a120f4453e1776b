package transcript

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/John-Robertt/lecnote/internal/domain"
)

// Render 生成 output.md 内容：字幕逐行，幻灯片图片按时间插入。
//
// 规则：
// - 幻灯片图片插在最后一条时间戳 <= 该幻灯片时间的字幕之后；早于所有字幕的放在开头
// - 图片前后各一个空行；相邻字幕之间只有换行
// - 没有 Frame 的幻灯片（取帧失败）不出现
// - 图片路径相对 mdDir，统一用 / 分隔
// - 没有任何内容时返回空
func Render(captions []domain.CaptionEvent, slides []domain.SlideChange, frames []domain.Frame, mdDir string) []byte {
	byIndex := make(map[int]domain.Frame, len(frames))
	for _, f := range frames {
		byIndex[f.SlideIndex] = f
	}

	images := make([]domain.SlideChange, 0, len(frames))
	for _, s := range slides {
		if _, ok := byIndex[s.Index]; ok {
			images = append(images, s)
		}
	}
	sort.SliceStable(images, func(i, j int) bool { return images[i].At < images[j].At })

	var w writer
	next := 0
	for _, c := range captions {
		for next < len(images) && images[next].At < c.At {
			w.image(imageRef(images[next], byIndex[images[next].Index], mdDir))
			next++
		}
		w.caption(c.Text)
	}
	for ; next < len(images); next++ {
		w.image(imageRef(images[next], byIndex[images[next].Index], mdDir))
	}
	return w.bytes()
}

func imageRef(s domain.SlideChange, f domain.Frame, mdDir string) string {
	p := f.Path
	if mdDir != "" {
		if rel, err := filepath.Rel(mdDir, f.Path); err == nil {
			p = rel
		}
	}
	return fmt.Sprintf("![slide %d @ %s](%s)", s.Index, domain.FormatClock(s.At), filepath.ToSlash(p))
}

type writer struct {
	b         strings.Builder
	lastImage bool
}

func (w *writer) caption(text string) {
	w.sep(false)
	w.b.WriteString(text)
	w.lastImage = false
}

func (w *writer) image(ref string) {
	w.sep(true)
	w.b.WriteString(ref)
	w.lastImage = true
}

// sep 在元素之间写分隔：与图片相邻时空一行。
func (w *writer) sep(isImage bool) {
	if w.b.Len() == 0 {
		return
	}
	if isImage || w.lastImage {
		w.b.WriteString("\n\n")
		return
	}
	w.b.WriteString("\n")
}

func (w *writer) bytes() []byte {
	if w.b.Len() == 0 {
		return []byte{}
	}
	return []byte(w.b.String() + "\n")
}
