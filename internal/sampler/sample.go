package sampler

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/John-Robertt/lecnote/internal/domain"
)

// Extractor 截取视频某一时刻的静态帧。
//
// 实现需保证：成功返回时 out 已写出；二进制缺失时返回的错误满足 errors.Is(err, ErrToolUnavailable)。
type Extractor interface {
	ExtractFrame(ctx context.Context, video string, at float64, out string) error
}

// Request 描述一次取帧。
type Request struct {
	Video     string
	AssetsDir string
	// Format 为 "png" 或 "jpg"；空值按 png。
	Format string
	// Duration 为视频时长（秒）；<=0 表示未知，此时不做越界检查。
	Duration float64
}

// Sample 对每个 SlideChange 截取一帧。
//
// 每个目标时间戳恰好产生一个 FrameResult（成功或失败），onFrame 按处理顺序逐个回调。
// 只有工具不可用与 ctx 取消会作为致命错误返回，其余失败记录在结果里继续。
func Sample(ctx context.Context, ex Extractor, req Request, slides []domain.SlideChange, onFrame func(domain.FrameResult)) ([]domain.Frame, []domain.FrameResult, error) {
	if ex == nil {
		return nil, nil, errors.New("extractor 为空")
	}
	format := normalizeFormat(req.Format)

	frames := make([]domain.Frame, 0, len(slides))
	results := make([]domain.FrameResult, 0, len(slides))
	emit := func(r domain.FrameResult) {
		results = append(results, r)
		if onFrame != nil {
			onFrame(r)
		}
	}

	for _, s := range slides {
		if err := ctx.Err(); err != nil {
			return frames, results, err
		}

		r := domain.FrameResult{SlideIndex: s.Index, At: s.At}
		if s.At < 0 || (req.Duration > 0 && s.At > req.Duration) {
			r.Status = domain.FrameStatusFailed
			r.ErrorCode = domain.ErrCodeFrameOutOfRange
			r.ErrorMsg = fmt.Sprintf("时间戳 %s 超出视频时长 %s", domain.FormatClock(s.At), domain.FormatClock(req.Duration))
			emit(r)
			continue
		}

		out := filepath.Join(req.AssetsDir, FrameName(s.Index, s.At, format))
		err := ex.ExtractFrame(ctx, req.Video, s.At, out)
		if err != nil {
			if errors.Is(err, ErrToolUnavailable) {
				return frames, results, err
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				return frames, results, ctxErr
			}
		} else {
			err = checkOutput(out)
		}
		if err != nil {
			_ = os.Remove(out)
			r.Status = domain.FrameStatusFailed
			r.ErrorCode = domain.ErrCodeFrameExtractionFailed
			r.ErrorMsg = err.Error()
			emit(r)
			continue
		}

		r.Status = domain.FrameStatusExtracted
		r.Path = out
		frames = append(frames, domain.Frame{SlideIndex: s.Index, At: s.At, Path: out})
		emit(r)
	}
	return frames, results, nil
}

// FrameName 返回帧文件名：NNNN_hh-mm-ss.<ext>。
func FrameName(index int, at float64, format string) string {
	clock := strings.ReplaceAll(domain.FormatClock(at), ":", "-")
	return fmt.Sprintf("%04d_%s.%s", index, clock, normalizeFormat(format))
}

func normalizeFormat(f string) string {
	switch strings.ToLower(strings.TrimSpace(f)) {
	case "jpg", "jpeg":
		return "jpg"
	default:
		return "png"
	}
}

func checkOutput(path string) error {
	fi, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("未产出帧文件：%w", err)
	}
	if !fi.Mode().IsRegular() || fi.Size() == 0 {
		return errors.New("帧文件为空")
	}
	return nil
}
