package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/John-Robertt/lecnote/internal/config"
	"github.com/John-Robertt/lecnote/internal/domain"
)

func TestFormatFrameLine(t *testing.T) {
	ok := formatFrameLine(1, 3, domain.FrameResult{
		SlideIndex: 1, At: 65, Path: "/lec/assets/0001_00-01-05.png", Status: domain.FrameStatusExtracted,
	}, 1500*time.Millisecond)
	for _, want := range []string{"[1/3]", "OK", "slide=1", "00:01:05", "0001_00-01-05.png", "1.5s"} {
		if !strings.Contains(ok, want) {
			t.Fatalf("成功行缺少 %q：%q", want, ok)
		}
	}

	fail := formatFrameLine(2, 3, domain.FrameResult{
		SlideIndex: 2, At: 4000, Status: domain.FrameStatusFailed, ErrorCode: domain.ErrCodeFrameOutOfRange,
	}, 0)
	for _, want := range []string{"[2/3]", "FAIL", "slide=2", domain.ErrCodeFrameOutOfRange} {
		if !strings.Contains(fail, want) {
			t.Fatalf("失败行缺少 %q：%q", want, fail)
		}
	}
}

func TestProgressUI_Lines(t *testing.T) {
	var out, logs bytes.Buffer
	p := newProgressUI(&out, log.New(&logs))

	p.OnStart(config.EffectiveConfig{
		Dir:         "/lec",
		HTMLPath:    "/lec/leccap.html",
		OutputMD:    "/lec/output.md",
		OutputPDF:   "/lec/slides.pdf",
		AssetsDir:   "/lec/assets",
		FrameSource: config.SourceVideo,
		FFmpegPath:  "ffmpeg",
		PageWidth:   960,
		PageHeight:  540,
	})
	p.OnPhaseDone("parse", map[string]any{"captions": 12, "slides": 3, "thinned": 1}, time.Second)
	p.OnPhaseDone("assemble", map[string]any{"md_bytes": 2048, "pdf_pages": 3}, 0)
	p.OnWarning("parse_incomplete：丢弃了 1 条无法解析的字幕行")

	s := out.String()
	for _, want := range []string{"lecnote run", "html: leccap.html", "video: auto", "min_gap: off", "page: 960x540pt", "md: output.md", "解析: captions=12 slides=3 thinned=1", "取帧: total=3", "md=2.0KB pdf_pages=3"} {
		if !strings.Contains(s, want) {
			t.Fatalf("进度输出缺少 %q：\n%s", want, s)
		}
	}
	if !strings.Contains(logs.String(), "丢弃了 1 条") {
		t.Fatalf("告警应写入日志：%q", logs.String())
	}
	if strings.Contains(s, "丢弃了") {
		t.Fatalf("告警不应混入进度输出：%q", s)
	}
}

func TestFormatHelpers(t *testing.T) {
	if got := formatProxy(""); got != "off" {
		t.Fatalf("formatProxy 空值：%q", got)
	}
	if got := formatProxy("http://u:p@127.0.0.1:7890"); got != "on (http://127.0.0.1:7890, auth=on)" {
		t.Fatalf("formatProxy：%q", got)
	}
	if got := formatGap(60); got != "60s" {
		t.Fatalf("formatGap：%q", got)
	}
	if got := formatBytes(512); got != "512B" {
		t.Fatalf("formatBytes：%q", got)
	}
	if got := formatBytes(3 << 20); got != "3.0MB" {
		t.Fatalf("formatBytes：%q", got)
	}
	if got := relTo("/lec", "/other/x.md"); got != "/other/x.md" {
		t.Fatalf("relTo 目录外应保持绝对路径：%q", got)
	}
	if got := truncate("abcdefgh", 6); got != "abc..." {
		t.Fatalf("truncate：%q", got)
	}
	if got := intField(map[string]any{"n": int64(7)}, "n"); got != 7 {
		t.Fatalf("intField：%d", got)
	}
	if got := stringField(nil, "x"); got != "-" {
		t.Fatalf("stringField：%q", got)
	}
}
