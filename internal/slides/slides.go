package slides

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/go-pdf/fpdf"

	"github.com/John-Robertt/lecnote/internal/domain"
	"github.com/John-Robertt/lecnote/internal/infra/imgx"
)

const (
	DefaultPageWidth  = 960.0
	DefaultPageHeight = 540.0
)

// Skipped 记录无法放入 PDF 的帧（文件不可读或不是可解码的图片）。
type Skipped struct {
	SlideIndex int
	Err        error
}

// Deck 是组装好的 slides.pdf。
type Deck struct {
	PDF     []byte
	Pages   int
	Skipped []Skipped
}

// Build 把帧按 SlideIndex 升序组装为 PDF，每帧一页，图片等比缩放居中。
//
// 没有可用帧时输出一张空白页，保证每次运行都有一个合法 PDF。
// 单帧失败只记录到 Skipped，不中断组装。
func Build(frames []domain.Frame, pageW, pageH float64) (Deck, error) {
	if pageW <= 0 || pageH <= 0 {
		return Deck{}, fmt.Errorf("页面尺寸无效：%vx%v", pageW, pageH)
	}

	ordered := append([]domain.Frame(nil), frames...)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].SlideIndex < ordered[j].SlideIndex })

	pdf := fpdf.NewCustom(&fpdf.InitType{
		UnitStr: "pt",
		Size:    fpdf.SizeType{Wd: pageW, Ht: pageH},
	})
	pdf.SetMargins(0, 0, 0)
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetCreator("lecnote", true)

	var deck Deck
	opts := fpdf.ImageOptions{ImageType: "JPG"}
	for _, f := range ordered {
		data, w, h, err := loadJPEG(f.Path)
		if err != nil {
			deck.Skipped = append(deck.Skipped, Skipped{SlideIndex: f.SlideIndex, Err: err})
			continue
		}

		name := fmt.Sprintf("slide-%04d", f.SlideIndex)
		pdf.RegisterImageOptionsReader(name, opts, bytes.NewReader(data))
		if pdf.Err() {
			return Deck{}, pdf.Error()
		}

		x, y, iw, ih := imgx.Fit(float64(w), float64(h), pageW, pageH)
		pdf.AddPage()
		pdf.ImageOptions(name, x, y, iw, ih, false, opts, 0, "")
	}
	if pdf.PageCount() == 0 {
		pdf.AddPage()
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return Deck{}, err
	}
	deck.PDF = buf.Bytes()
	deck.Pages = pdf.PageCount()
	return deck, nil
}

func loadJPEG(path string) ([]byte, int, int, error) {
	if path == "" {
		return nil, 0, 0, errors.New("帧路径为空")
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, 0, 0, err
	}
	return imgx.NormalizeJPEG(raw)
}
