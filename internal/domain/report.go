package domain

import (
	"encoding/json"
	"sort"
	"time"
)

const (
	ErrCodeInputMissing          = "input_missing"
	ErrCodeParseIncomplete       = "parse_incomplete"
	ErrCodeFrameExtractionFailed = "frame_extraction_failed"
	ErrCodeFrameOutOfRange       = "frame_out_of_range"
	ErrCodeToolUnavailable       = "tool_unavailable"
	ErrCodeOutputWriteFailed     = "output_write_failed"
	ErrCodeConfigInvalid         = "config_invalid"
	ErrCodePublishFailed         = "publish_failed"
	ErrCodeCanceled              = "canceled"
)

// RunReport 是对外稳定输出（stdout JSON / 终端摘要）的结构。
type RunReport struct {
	Dir    string `json:"dir"`
	Source string `json:"source"` // "video" | "thumbnail"

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	// 致命错误时非空；此时 Outputs 可能为空（未写出任何产物）。
	ErrorCode string `json:"error_code"`
	ErrorMsg  string `json:"error_msg"`

	Summary  ReportSummary `json:"summary"`
	Frames   []FrameResult `json:"frames"`
	Warnings []string      `json:"warnings"`
	Outputs  []string      `json:"outputs"`
}

type ReportSummary struct {
	Captions  int `json:"captions"`
	Slides    int `json:"slides"`
	Extracted int `json:"extracted"`
	Failed    int `json:"failed"`
}

// Finalize 做三件事：
// 1) 时间统一为 UTC（确保 JSON 为 RFC3339 且后缀 Z）
// 2) frames 稳定排序：按 slide_index 升序
// 3) summary 中的帧统计由 frames 计算得出（captions/slides 由调用方填写）
func (r *RunReport) Finalize() {
	r.StartedAt = r.StartedAt.UTC()
	r.FinishedAt = r.FinishedAt.UTC()

	sort.SliceStable(r.Frames, func(i, j int) bool {
		return r.Frames[i].SlideIndex < r.Frames[j].SlideIndex
	})

	r.Summary.Extracted, r.Summary.Failed = 0, 0
	for _, f := range r.Frames {
		switch f.Status {
		case FrameStatusExtracted:
			r.Summary.Extracted++
		case FrameStatusFailed:
			r.Summary.Failed++
		}
	}

	// nil slice 会被编码成 null；对外统一输出 []。
	if r.Frames == nil {
		r.Frames = []FrameResult{}
	}
	if r.Warnings == nil {
		r.Warnings = []string{}
	}
	if r.Outputs == nil {
		r.Outputs = []string{}
	}
}

// MarshalJSON 仅用于集中约束输出的稳定性（避免未来不小心引入非确定字段）。
func (r RunReport) MarshalJSON() ([]byte, error) {
	type Alias RunReport
	return json.Marshal(Alias(r))
}
