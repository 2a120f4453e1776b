package imgx

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"math"
	"testing"
)

func TestNormalizeJPEG_TransparentPNGBecomesWhite(t *testing.T) {
	const (
		w = 64
		h = 36
	)
	// 左半透明、右半纯黑：透明部分应铺白。
	src := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := w / 2; x < w; x++ {
			src.Set(x, y, color.NRGBA{0, 0, 0, 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, src); err != nil {
		t.Fatalf("encode png 失败：%v", err)
	}

	out, gw, gh, err := NormalizeJPEG(buf.Bytes())
	if err != nil {
		t.Fatalf("NormalizeJPEG 失败：%v", err)
	}
	if gw != w || gh != h {
		t.Fatalf("尺寸不符合预期：got=%dx%d want=%dx%d", gw, gh, w, h)
	}

	got, err := jpeg.Decode(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("输出不是合法 JPEG：%v", err)
	}
	left := color.RGBAModel.Convert(got.At(w/4, h/2)).(color.RGBA)
	if left.R < 200 || left.G < 200 || left.B < 200 {
		t.Fatalf("透明区域应为白色，实际 %v", left)
	}
	right := color.RGBAModel.Convert(got.At(3*w/4, h/2)).(color.RGBA)
	if right.R > 60 || right.G > 60 || right.B > 60 {
		t.Fatalf("不透明区域应保持黑色，实际 %v", right)
	}
}

func TestNormalizeJPEG_Invalid(t *testing.T) {
	if _, _, _, err := NormalizeJPEG(nil); err == nil {
		t.Fatalf("期望空输入返回错误")
	}
	if _, _, _, err := NormalizeJPEG([]byte("not an image")); err == nil {
		t.Fatalf("期望非图片输入返回错误")
	}
}

func TestFit(t *testing.T) {
	cases := []struct {
		name                       string
		iw, ih, bw, bh             float64
		wantX, wantY, wantW, wantH float64
	}{
		{"same ratio", 1920, 1080, 960, 540, 0, 0, 960, 540},
		{"4:3 pillarbox", 1024, 768, 960, 540, 120, 0, 720, 540},
		{"tall letterbox", 100, 100, 960, 540, 210, 0, 540, 540},
		{"wide letterbox", 2000, 500, 960, 540, 0, 150, 960, 240},
	}
	for _, c := range cases {
		x, y, w, h := Fit(c.iw, c.ih, c.bw, c.bh)
		if !near(x, c.wantX) || !near(y, c.wantY) || !near(w, c.wantW) || !near(h, c.wantH) {
			t.Fatalf("%s: got=(%v,%v,%v,%v) want=(%v,%v,%v,%v)", c.name, x, y, w, h, c.wantX, c.wantY, c.wantW, c.wantH)
		}
	}

	if _, _, w, h := Fit(0, 10, 960, 540); w != 0 || h != 0 {
		t.Fatalf("无效尺寸应返回 0")
	}
}

func near(a, b float64) bool { return math.Abs(a-b) < 1e-9 }
