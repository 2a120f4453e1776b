package domain

// CaptionEvent 是一条带时间戳的字幕。
//
// 不变量：同一 Lecture 内按 At 非递减；相同 At 保持页面出现顺序。
type CaptionEvent struct {
	At   float64 `json:"at"` // 秒
	Text string  `json:"text"`
}

// SlideChange 标记“画面切换到新幻灯片”的时刻（来自页面缩略图）。
//
// 不变量：Index 从 1 开始，随 At 严格递增。
type SlideChange struct {
	At    float64 `json:"at"`
	Index int     `json:"index"`

	// ThumbURL 是页面上该缩略图的背景图地址（可能为空）。
	ThumbURL string `json:"thumb_url,omitempty"`
}

// Lecture 是从 leccap 页面抽取出的全部事件。
type Lecture struct {
	Captions []CaptionEvent
	Slides   []SlideChange

	// Warnings 记录解析阶段的降级信息（缺标记/丢弃条目），不影响继续执行。
	Warnings []string
}
