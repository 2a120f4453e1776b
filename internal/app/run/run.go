package run

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/John-Robertt/lecnote/internal/config"
	"github.com/John-Robertt/lecnote/internal/domain"
	"github.com/John-Robertt/lecnote/internal/infra/fsx"
	"github.com/John-Robertt/lecnote/internal/infra/httpx"
	"github.com/John-Robertt/lecnote/internal/leccap"
	"github.com/John-Robertt/lecnote/internal/publish"
	"github.com/John-Robertt/lecnote/internal/sampler"
	"github.com/John-Robertt/lecnote/internal/scan"
	"github.com/John-Robertt/lecnote/internal/slides"
	"github.com/John-Robertt/lecnote/internal/thumb"
	"github.com/John-Robertt/lecnote/internal/transcript"
)

// Error 是运行阶段的致命错误（带 error_code）。
type Error struct {
	Code string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s：%v", e.Code, e.Err)
	}
	return e.Code
}

func (e *Error) Unwrap() error { return e.Err }

// Code 从 error 中提取 error_code；兼容 config.Error。不是结构化错误时返回空串。
func Code(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return config.Code(err)
}

func fail(code string, format string, args ...any) *Error {
	return &Error{Code: code, Err: fmt.Errorf(format, args...)}
}

// Deps 注入外部能力；nil 字段使用默认实现（真实 ffmpeg / ffprobe / HTTP / S3）。
type Deps struct {
	Extractor sampler.Extractor
	// Probe 返回视频时长（秒）。
	Probe func(video string) (float64, error)
	// HTTPClient 仅在 thumbnail 模式使用。
	HTTPClient *http.Client
	// Putter 仅在发布时使用。
	Putter publish.Putter
}

// availability 由能做前置检查的 Extractor 实现（sampler.FFmpeg）。
type availability interface {
	Available() error
}

// Execute 执行一次转换：预检 → 解析 → 取帧 → 写 output.md → 写 slides.pdf →（可选）发布。
//
// 约束：
// - 预检（HTML、视频、ffmpeg）全部通过之前，不触碰任何输出
// - 单帧失败降级为 FrameResult 失败记录，不中断
// - 致命错误通过 error 返回（*Error），同时写入 RunReport.ErrorCode/ErrorMsg
func Execute(ctx context.Context, eff config.EffectiveConfig, deps Deps, obs Observer) (domain.RunReport, error) {
	if obs == nil {
		obs = nopObserver{}
	}
	obs.OnStart(eff)

	rr := domain.RunReport{
		Dir:       eff.Dir,
		Source:    eff.FrameSource,
		StartedAt: time.Now().UTC(),
	}
	r := &runner{eff: eff, deps: deps, obs: obs, rr: &rr}

	err := r.execute(ctx)
	if err != nil {
		var e *Error
		if !errors.As(err, &e) {
			e = &Error{Code: domain.ErrCodeOutputWriteFailed, Err: err}
			err = e
		}
		rr.ErrorCode = e.Code
		rr.ErrorMsg = e.Error()
	}
	rr.FinishedAt = time.Now().UTC()
	rr.Finalize()
	return rr, err
}

type runner struct {
	eff  config.EffectiveConfig
	deps Deps
	obs  Observer
	rr   *domain.RunReport

	video string
}

func (r *runner) warn(msg string) {
	r.rr.Warnings = append(r.rr.Warnings, msg)
	r.obs.OnWarning(msg)
}

func (r *runner) execute(ctx context.Context) error {
	started := time.Now()
	if err := r.preflight(); err != nil {
		return err
	}
	r.obs.OnPhaseDone("preflight", map[string]any{
		"html":   r.eff.HTMLPath,
		"video":  r.video,
		"source": r.eff.FrameSource,
	}, time.Since(started))

	started = time.Now()
	lec, err := r.parse()
	if err != nil {
		return err
	}
	before := len(lec.Slides)
	lec.Slides = leccap.Thin(lec.Slides, r.eff.ThumbMinGap)
	r.rr.Summary.Captions = len(lec.Captions)
	r.rr.Summary.Slides = len(lec.Slides)
	r.obs.OnPhaseDone("parse", map[string]any{
		"captions": len(lec.Captions),
		"slides":   len(lec.Slides),
		"thinned":  before - len(lec.Slides),
	}, time.Since(started))

	if err := fsx.ResetDir(r.eff.AssetsDir); err != nil {
		return fail(domain.ErrCodeOutputWriteFailed, "重置资产目录失败：%v", err)
	}

	started = time.Now()
	frames, err := r.frames(ctx, lec.Slides)
	if err != nil {
		return err
	}
	r.obs.OnPhaseDone("frames", map[string]any{
		"extracted": len(frames),
		"failed":    len(lec.Slides) - len(frames),
	}, time.Since(started))

	started = time.Now()
	md := transcript.Render(lec.Captions, lec.Slides, frames, filepath.Dir(r.eff.OutputMD))
	if err := writeOutput(r.eff.OutputMD, md); err != nil {
		return fail(domain.ErrCodeOutputWriteFailed, "写入 %s 失败：%v", r.eff.OutputMD, err)
	}
	r.rr.Outputs = append(r.rr.Outputs, r.eff.OutputMD)

	deck, err := slides.Build(frames, r.eff.PageWidth, r.eff.PageHeight)
	if err != nil {
		return fail(domain.ErrCodeOutputWriteFailed, "生成 PDF 失败：%v", err)
	}
	for _, s := range deck.Skipped {
		r.warn(fmt.Sprintf("第 %d 张幻灯片无法放入 PDF：%v", s.SlideIndex, s.Err))
	}
	if err := writeOutput(r.eff.OutputPDF, deck.PDF); err != nil {
		return fail(domain.ErrCodeOutputWriteFailed, "写入 %s 失败：%v", r.eff.OutputPDF, err)
	}
	r.rr.Outputs = append(r.rr.Outputs, r.eff.OutputPDF)
	r.obs.OnPhaseDone("assemble", map[string]any{
		"md_bytes":  len(md),
		"pdf_pages": deck.Pages,
	}, time.Since(started))

	if !r.eff.Publish {
		return nil
	}
	started = time.Now()
	keys, err := r.publish(ctx, frames)
	if err != nil {
		return err
	}
	r.obs.OnPhaseDone("publish", map[string]any{
		"bucket":  r.eff.PublishConfig.Bucket,
		"objects": len(keys),
	}, time.Since(started))
	return nil
}

// preflight 检查输入与外部工具；任何失败都发生在写输出之前。
func (r *runner) preflight() error {
	if err := requireFile(r.eff.HTMLPath); err != nil {
		return fail(domain.ErrCodeInputMissing, "找不到页面文件 %s：%v", r.eff.HTMLPath, err)
	}

	switch r.eff.FrameSource {
	case config.SourceThumbnail:
		if r.deps.HTTPClient == nil {
			c, err := httpx.NewClient(r.eff.ProxyURL)
			if err != nil {
				return fail(domain.ErrCodeConfigInvalid, "proxy.url 无效：%v", err)
			}
			r.deps.HTTPClient = c
		}
		return nil
	default:
		video := r.eff.VideoPath
		if video == "" {
			v, err := scan.FindVideo(r.eff.Dir)
			if err != nil {
				return fail(domain.ErrCodeInputMissing, "找不到视频文件（%s）：%v", r.eff.Dir, err)
			}
			video = v
		} else if err := requireFile(video); err != nil {
			return fail(domain.ErrCodeInputMissing, "找不到视频文件 %s：%v", video, err)
		}
		r.video = video

		if r.deps.Extractor == nil {
			r.deps.Extractor = sampler.FFmpeg{Path: r.eff.FFmpegPath, Timeout: r.eff.FrameTimeout}
		}
		if a, ok := r.deps.Extractor.(availability); ok {
			if err := a.Available(); err != nil {
				return &Error{Code: domain.ErrCodeToolUnavailable, Err: err}
			}
		}
		if r.deps.Probe == nil {
			r.deps.Probe = func(v string) (float64, error) { return sampler.ProbeDuration(v, 0) }
		}
		return nil
	}
}

func (r *runner) parse() (domain.Lecture, error) {
	b, err := os.ReadFile(r.eff.HTMLPath)
	if err != nil {
		return domain.Lecture{}, fail(domain.ErrCodeInputMissing, "读取页面文件失败：%v", err)
	}
	lec, err := leccap.Parse(b)
	if err != nil {
		// 页面无法解析时按“标记缺失”降级：输出空文档，而不是中止。
		r.warn(fmt.Sprintf("%s：页面解析失败：%v", domain.ErrCodeParseIncomplete, err))
		return domain.Lecture{}, nil
	}
	for _, w := range lec.Warnings {
		r.warn(fmt.Sprintf("%s：%s", domain.ErrCodeParseIncomplete, w))
	}
	return lec, nil
}

func (r *runner) frames(ctx context.Context, ss []domain.SlideChange) ([]domain.Frame, error) {
	total := len(ss)
	idx := 0
	last := time.Now()
	onFrame := func(res domain.FrameResult) {
		idx++
		now := time.Now()
		r.obs.OnFrameDone(idx, total, res, now.Sub(last))
		last = now
		if res.Status == domain.FrameStatusFailed {
			r.warn(fmt.Sprintf("%s：第 %d 张幻灯片（%s）：%s", res.ErrorCode, res.SlideIndex, domain.FormatClock(res.At), res.ErrorMsg))
		}
	}

	var (
		frames  []domain.Frame
		results []domain.FrameResult
		err     error
	)
	if r.eff.FrameSource == config.SourceThumbnail {
		frames, results, err = thumb.Download(ctx, r.deps.HTTPClient, r.eff.ThumbBaseURL, r.eff.AssetsDir, ss, onFrame)
	} else {
		duration := 0.0
		if total > 0 {
			d, perr := r.deps.Probe(r.video)
			if perr != nil {
				r.warn(fmt.Sprintf("无法探测视频时长，跳过越界检查：%v", perr))
			} else {
				duration = d
			}
		}
		req := sampler.Request{
			Video:     r.video,
			AssetsDir: r.eff.AssetsDir,
			Format:    r.eff.FrameFormat,
			Duration:  duration,
		}
		frames, results, err = sampler.Sample(ctx, r.deps.Extractor, req, ss, onFrame)
	}
	r.rr.Frames = append(r.rr.Frames, results...)

	switch {
	case err == nil:
		return frames, nil
	case errors.Is(err, sampler.ErrToolUnavailable):
		return nil, &Error{Code: domain.ErrCodeToolUnavailable, Err: err}
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return nil, &Error{Code: domain.ErrCodeCanceled, Err: err}
	default:
		return nil, &Error{Code: domain.ErrCodeFrameExtractionFailed, Err: err}
	}
}

func (r *runner) publish(ctx context.Context, frames []domain.Frame) ([]string, error) {
	putter := r.deps.Putter
	if putter == nil {
		pc := r.eff.PublishConfig
		s3, err := publish.NewS3(ctx, publish.Config{Region: pc.Region, Profile: pc.Profile, UsePathStyle: pc.PathStyle})
		if err != nil {
			return nil, fail(domain.ErrCodePublishFailed, "初始化 S3 客户端失败：%v", err)
		}
		putter = s3
	}

	files := make([]string, 0, 2+len(frames))
	files = append(files, r.eff.OutputMD, r.eff.OutputPDF)
	for _, f := range frames {
		files = append(files, f.Path)
	}

	keys, err := publish.Publish(ctx, putter, r.eff.PublishConfig.Bucket, r.eff.PublishConfig.Prefix, r.eff.Dir, files)
	if err != nil {
		return keys, &Error{Code: domain.ErrCodePublishFailed, Err: err}
	}
	return keys, nil
}

func requireFile(path string) error {
	fi, err := os.Stat(path)
	if err != nil {
		return err
	}
	if !fi.Mode().IsRegular() {
		return errors.New("不是普通文件")
	}
	return nil
}

func writeOutput(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	return fsx.WriteFileAtomic(dir, filepath.Base(path), data)
}
