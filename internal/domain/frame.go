package domain

import (
	"fmt"
	"math"
)

const (
	FrameStatusExtracted = "extracted"
	FrameStatusFailed    = "failed"
)

// Frame 是某个 SlideChange 对应的静态图片。Path 必须是 clean + absolute。
type Frame struct {
	SlideIndex int
	At         float64
	Path       string
}

// FrameResult 记录一个目标时间戳的结局：要么 extracted（Path 非空），要么 failed（带错误码）。
type FrameResult struct {
	SlideIndex int     `json:"slide_index"`
	At         float64 `json:"at"`
	Path       string  `json:"path"`

	Status    string `json:"status"`
	ErrorCode string `json:"error_code"`
	ErrorMsg  string `json:"error_msg"`
}

// FormatClock 把秒数格式化为 hh:mm:ss（向下取整到秒；负数按 0 处理）。
func FormatClock(sec float64) string {
	if sec < 0 || math.IsNaN(sec) {
		sec = 0
	}
	t := int(sec)
	h := t / 3600
	m := (t % 3600) / 60
	s := t % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}
