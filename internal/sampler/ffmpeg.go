package sampler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	ffmpeg "github.com/u2takey/ffmpeg-go"
)

const (
	defaultFrameTimeout = 30 * time.Second
	defaultProbeTimeout = 15 * time.Second

	stderrTail = 512

	// 超时杀进程后，等待输出管道关闭的上限（子进程可能还持有 stderr）。
	waitDelay = 2 * time.Second
)

// ErrToolUnavailable 表示外部媒体工具无法调用（二进制不存在或不可执行）。
var ErrToolUnavailable = errors.New("ffmpeg 不可用")

// FFmpeg 通过外部 ffmpeg 二进制截取单帧。
type FFmpeg struct {
	// Path 为空时使用 PATH 中的 "ffmpeg"。
	Path string
	// Timeout 为单帧超时；<=0 使用默认值。
	Timeout time.Duration
}

func (f FFmpeg) bin() string {
	if p := strings.TrimSpace(f.Path); p != "" {
		return p
	}
	return "ffmpeg"
}

func (f FFmpeg) timeout() time.Duration {
	if f.Timeout > 0 {
		return f.Timeout
	}
	return defaultFrameTimeout
}

// Available 检查 ffmpeg 是否可调用。
func (f FFmpeg) Available() error {
	if _, err := exec.LookPath(f.bin()); err != nil {
		return fmt.Errorf("%w: %v", ErrToolUnavailable, err)
	}
	return nil
}

// Args 构造单帧截取参数（不含二进制名）。
//
// -ss 放在 -i 之前（输入端 seek）。
func (f FFmpeg) Args(video string, at float64, out string) []string {
	outKw := ffmpeg.KwArgs{"frames:v": "1"}
	switch strings.ToLower(filepath.Ext(out)) {
	case ".jpg", ".jpeg":
		outKw["q:v"] = "2"
	}
	return ffmpeg.Input(video, ffmpeg.KwArgs{"ss": fmt.Sprintf("%.3f", at)}).
		Output(out, outKw).
		OverWriteOutput().
		GetArgs()
}

// ExtractFrame 截取 video 在 at 秒处的一帧写入 out。
func (f FFmpeg) ExtractFrame(ctx context.Context, video string, at float64, out string) error {
	ctx, cancel := context.WithTimeout(ctx, f.timeout())
	defer cancel()

	cmd := exec.CommandContext(ctx, f.bin(), f.Args(video, at, out)...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	cmd.WaitDelay = waitDelay
	killProcessGroup(cmd)

	err := cmd.Run()
	if err == nil {
		return nil
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("ffmpeg 超时（%s）", f.timeout())
	}
	if isStartFailure(err) {
		return fmt.Errorf("%w: %v", ErrToolUnavailable, err)
	}
	if tail := tailString(stderr.Bytes(), stderrTail); tail != "" {
		return fmt.Errorf("ffmpeg 失败：%v：%s", err, tail)
	}
	return fmt.Errorf("ffmpeg 失败：%v", err)
}

// ProbeDuration 用 ffprobe 读取视频时长（秒）。
func ProbeDuration(video string, timeout time.Duration) (float64, error) {
	if timeout <= 0 {
		timeout = defaultProbeTimeout
	}
	raw, err := ffmpeg.ProbeWithTimeout(video, timeout, ffmpeg.KwArgs{})
	if err != nil {
		return 0, err
	}
	return parseProbeDuration([]byte(raw))
}

func parseProbeDuration(raw []byte) (float64, error) {
	var v struct {
		Format struct {
			Duration string `json:"duration"`
		} `json:"format"`
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return 0, fmt.Errorf("解析 ffprobe 输出失败：%w", err)
	}
	d, err := strconv.ParseFloat(strings.TrimSpace(v.Format.Duration), 64)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("ffprobe 未给出有效时长：%q", v.Format.Duration)
	}
	return d, nil
}

// isStartFailure 判断错误是否来自进程无法启动（而非 ffmpeg 非零退出）。
func isStartFailure(err error) bool {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return false
	}
	return errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrPermission)
}

func tailString(b []byte, n int) string {
	s := strings.TrimSpace(string(b))
	if len(s) <= n {
		return s
	}
	s = s[len(s)-n:]
	// 截断点可能落在多字节字符中间，丢掉到下一行开头。
	if i := strings.IndexByte(s, '\n'); i >= 0 && i < len(s)-1 {
		s = s[i+1:]
	}
	return s
}
