package main

import (
	"fmt"
	"io"
	"net/url"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"

	"github.com/John-Robertt/lecnote/internal/app/run"
	"github.com/John-Robertt/lecnote/internal/config"
	"github.com/John-Robertt/lecnote/internal/domain"
)

var (
	_ run.Observer = (*progressUI)(nil)
	_ run.Observer = (*logObserver)(nil)
)

var (
	okStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#04B575"))
	failStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FF5F5F"))
	dimStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#626262"))
)

// progressUI 是交互终端下的进度输出。
//
// 所有过程信息写到 stderr（或 fallback 到 stdout），不污染 stdout 的 JSON 输出契约；
// 告警交给 logger（同样写 stderr）。
type progressUI struct {
	w      io.Writer
	logger *log.Logger

	mu sync.Mutex
}

func newProgressUI(w io.Writer, logger *log.Logger) *progressUI {
	return &progressUI{w: w, logger: logger}
}

func (p *progressUI) OnStart(eff config.EffectiveConfig) {
	p.mu.Lock()
	defer p.mu.Unlock()

	fmt.Fprintf(p.w, "[%s] lecnote run\n", time.Now().Format("15:04:05"))
	fmt.Fprintln(p.w, "配置（生效）:")
	fmt.Fprintf(p.w, "  dir: %s\n", eff.Dir)
	fmt.Fprintf(p.w, "  html: %s\n", relTo(eff.Dir, eff.HTMLPath))
	fmt.Fprintf(p.w, "  source: %s\n", eff.FrameSource)
	if eff.FrameSource == config.SourceVideo {
		video := "auto"
		if eff.VideoPath != "" {
			video = relTo(eff.Dir, eff.VideoPath)
		}
		fmt.Fprintf(p.w, "  video: %s\n", video)
		fmt.Fprintf(p.w, "  ffmpeg: %s (timeout=%s)\n", eff.FFmpegPath, eff.FrameTimeout)
	} else {
		fmt.Fprintf(p.w, "  proxy: %s\n", formatProxy(eff.ProxyURL))
	}
	fmt.Fprintf(p.w, "  min_gap: %s\n", formatGap(eff.ThumbMinGap))
	fmt.Fprintf(p.w, "  page: %gx%gpt\n", eff.PageWidth, eff.PageHeight)

	fmt.Fprintln(p.w, "输出:")
	fmt.Fprintf(p.w, "  md: %s\n", relTo(eff.Dir, eff.OutputMD))
	fmt.Fprintf(p.w, "  pdf: %s\n", relTo(eff.Dir, eff.OutputPDF))
	fmt.Fprintf(p.w, "  assets: %s\n", relTo(eff.Dir, eff.AssetsDir))
	if eff.Publish {
		fmt.Fprintf(p.w, "  publish: s3://%s/%s\n", eff.PublishConfig.Bucket, strings.Trim(eff.PublishConfig.Prefix, "/"))
	}
	fmt.Fprintln(p.w)
}

func (p *progressUI) OnPhaseDone(name string, fields map[string]any, dur time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch name {
	case "preflight":
		fmt.Fprintf(p.w, "预检: video=%s (%s)\n", stringField(fields, "video"), formatShortDuration(dur))
	case "parse":
		fmt.Fprintf(p.w, "解析: captions=%d slides=%d thinned=%d (%s)\n",
			intField(fields, "captions"), intField(fields, "slides"), intField(fields, "thinned"), formatShortDuration(dur),
		)
		if n := intField(fields, "slides"); n > 0 {
			fmt.Fprintf(p.w, "取帧: total=%d\n\n", n)
		}
	case "frames":
		fmt.Fprintf(p.w, "\n取帧完成: extracted=%d failed=%d (%s)\n",
			intField(fields, "extracted"), intField(fields, "failed"), formatShortDuration(dur),
		)
	case "assemble":
		fmt.Fprintf(p.w, "组装: md=%s pdf_pages=%d (%s)\n",
			formatBytes(intField(fields, "md_bytes")), intField(fields, "pdf_pages"), formatShortDuration(dur),
		)
	case "publish":
		fmt.Fprintf(p.w, "发布: bucket=%s objects=%d (%s)\n",
			stringField(fields, "bucket"), intField(fields, "objects"), formatShortDuration(dur),
		)
	default:
		// 兜底：未知阶段也不要静默（便于调试/演进）。
		fmt.Fprintf(p.w, "%s (%s)\n", name, formatShortDuration(dur))
	}
}

func (p *progressUI) OnFrameDone(idx, total int, res domain.FrameResult, dur time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	fmt.Fprintln(p.w, formatFrameLine(idx, total, res, dur))
}

func (p *progressUI) OnWarning(msg string) {
	p.logger.Warn(msg)
}

// logObserver 用于非交互环境：只把告警与阶段统计写进日志（stderr）。
type logObserver struct {
	logger *log.Logger
}

func (o *logObserver) OnStart(eff config.EffectiveConfig) {
	o.logger.Debug("开始", "dir", eff.Dir, "source", eff.FrameSource)
}

func (o *logObserver) OnPhaseDone(name string, fields map[string]any, dur time.Duration) {
	kv := make([]any, 0, 2*len(fields)+2)
	for _, k := range sortedKeys(fields) {
		kv = append(kv, k, fields[k])
	}
	kv = append(kv, "dur", formatShortDuration(dur))
	o.logger.Debug(name, kv...)
}

func (o *logObserver) OnFrameDone(idx, total int, res domain.FrameResult, dur time.Duration) {
	o.logger.Debug("frame", "idx", idx, "total", total, "slide", res.SlideIndex, "status", res.Status)
}

func (o *logObserver) OnWarning(msg string) {
	o.logger.Warn(msg)
}

func formatFrameLine(idx, total int, res domain.FrameResult, dur time.Duration) string {
	at := domain.FormatClock(res.At)
	if res.Status == domain.FrameStatusExtracted {
		return fmt.Sprintf("[%d/%d] %s slide=%d @ %s %s %s",
			idx, total, okStyle.Render("OK"), res.SlideIndex, at, filepath.Base(res.Path), dimStyle.Render("("+formatShortDuration(dur)+")"),
		)
	}
	return fmt.Sprintf("[%d/%d] %s slide=%d @ %s %s %s",
		idx, total, failStyle.Render("FAIL"), res.SlideIndex, at, res.ErrorCode, dimStyle.Render("("+formatShortDuration(dur)+")"),
	)
}

func relTo(base, p string) string {
	if p == "" {
		return ""
	}
	if rel, err := filepath.Rel(base, p); err == nil && !strings.HasPrefix(rel, "..") {
		return rel
	}
	return p
}

func formatGap(sec float64) string {
	if sec <= 0 {
		return "off"
	}
	return fmt.Sprintf("%gs", sec)
}

func formatProxy(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "off"
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "on (" + truncate(raw, 120) + ")"
	}
	auth := "off"
	if u.User != nil {
		auth = "on"
	}
	return fmt.Sprintf("on (%s://%s, auth=%s)", u.Scheme, u.Host, auth)
}

func formatBytes(n int) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1fMB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1fKB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%dB", n)
	}
}

func truncate(s string, max int) string {
	s = strings.TrimSpace(s)
	if max <= 0 || len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}

func formatShortDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}

func intField(fields map[string]any, key string) int {
	switch x := fields[key].(type) {
	case int:
		return x
	case int64:
		return int(x)
	case float64:
		return int(x)
	default:
		return 0
	}
}

func stringField(fields map[string]any, key string) string {
	s, _ := fields[key].(string)
	if s == "" {
		return "-"
	}
	return s
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
