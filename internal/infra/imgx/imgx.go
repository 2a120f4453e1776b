package imgx

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	_ "image/png" // 注册 PNG 解码器（ffmpeg 默认输出 png，站点缩略图多为 jpeg）
)

// NormalizeJPEG 把一张 JPEG/PNG 帧规整为不透明 JPEG，并返回像素尺寸。
//
// 约束：
// - 透明区域铺白（PDF 里透明背景在不同阅读器上表现不一致）
// - 输出固定为 JPEG，供 PDF 组装统一按 JPG 嵌入
func NormalizeJPEG(src []byte) (out []byte, w, h int, err error) {
	if len(src) == 0 {
		return nil, 0, 0, errors.New("图片为空")
	}

	img, _, err := image.Decode(bytes.NewReader(src))
	if err != nil {
		return nil, 0, 0, err
	}

	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, 0, 0, errors.New("图片尺寸无效")
	}

	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Over)

	var buf bytes.Buffer
	// 幻灯片以文字为主，质量过低会糊字；92 在体积与清晰度之间比较均衡。
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: 92}); err != nil {
		return nil, 0, 0, err
	}
	return buf.Bytes(), b.Dx(), b.Dy(), nil
}

// Fit 计算把 imgW×imgH 等比放入 boxW×boxH 后的位置与尺寸（居中，留黑边/白边）。
func Fit(imgW, imgH, boxW, boxH float64) (x, y, w, h float64) {
	if imgW <= 0 || imgH <= 0 || boxW <= 0 || boxH <= 0 {
		return 0, 0, 0, 0
	}
	scale := boxW / imgW
	if s := boxH / imgH; s < scale {
		scale = s
	}
	w = imgW * scale
	h = imgH * scale
	return (boxW - w) / 2, (boxH - h) / 2, w, h
}
