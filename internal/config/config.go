package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/John-Robertt/lecnote/internal/domain"
)

const (
	// FileName 是工作目录下的可选配置文件。
	FileName = "lecnote.json"
	// DotEnvName 是工作目录下的可选环境变量文件。
	DotEnvName = ".env"

	// ErrCodeInvalid 表示配置文件无法读取/解析，或字段不合法。
	ErrCodeInvalid = domain.ErrCodeConfigInvalid
)

const (
	DefaultHTML          = "leccap.html"
	DefaultOutputMD      = "output.md"
	DefaultOutputPDF     = "slides.pdf"
	DefaultAssetsDir     = "assets"
	DefaultCompactOutput = "output.compact.md"
	DefaultFrameSource   = SourceVideo
	DefaultFrameFormat   = "png"
	DefaultFFmpeg        = "ffmpeg"
	DefaultFrameTimeout  = 30 * time.Second
	DefaultPageWidth     = 960.0
	DefaultPageHeight    = 540.0
)

const (
	SourceVideo     = "video"
	SourceThumbnail = "thumbnail"
)

// 环境变量名（也可写在 <dir>/.env 中；进程环境优先）。
const (
	EnvHTML        = "LECNOTE_HTML"
	EnvVideo       = "LECNOTE_VIDEO"
	EnvFrameSource = "LECNOTE_FRAME_SOURCE"
	EnvFFmpeg      = "LECNOTE_FFMPEG"
	EnvProxyURL    = "LECNOTE_PROXY_URL"
	EnvThumbBase   = "LECNOTE_THUMB_BASE_URL"
	EnvS3Bucket    = "LECNOTE_S3_BUCKET"
	EnvS3Prefix    = "LECNOTE_S3_PREFIX"
)

// CLIArgs 是 run 子命令暴露的参数。字符串为空表示未指定；数值类参数保留“是否显式指定”，
// 这样 --min-gap=0 才能覆盖配置文件里的非零值。
type CLIArgs struct {
	Dir string

	HTML      string
	Video     string
	Source    string
	OutputMD  string
	OutputPDF string

	MinGap    float64
	MinGapSet bool

	Publish bool
}

// FileConfig 对应 lecnote.json 的解析结构。
type FileConfig struct {
	HTML            string         `json:"html"`
	Video           string         `json:"video"`
	OutputMD        string         `json:"output_md"`
	OutputPDF       string         `json:"output_pdf"`
	AssetsDir       string         `json:"assets_dir"`
	FrameSource     string         `json:"frame_source"`
	FrameFormat     string         `json:"frame_format"`
	ThumbMinGap     *float64       `json:"thumb_min_gap"`
	ThumbBaseURL    string         `json:"thumb_base_url"`
	FrameTimeoutSec *int           `json:"frame_timeout_sec"`
	FFmpeg          string         `json:"ffmpeg"`
	Page            *PageConfig    `json:"page"`
	Proxy           *ProxyConfig   `json:"proxy"`
	Publish         *PublishConfig `json:"publish"`
	CompactOutput   string         `json:"compact_output"`
}

type PageConfig struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

type ProxyConfig struct {
	URL string `json:"url"`
}

type PublishConfig struct {
	Bucket    string `json:"bucket"`
	Prefix    string `json:"prefix"`
	Region    string `json:"region"`
	Profile   string `json:"profile"`
	PathStyle bool   `json:"path_style"`
}

// EffectiveConfig 是合并并规范化后的最终配置；路径均为绝对路径。
type EffectiveConfig struct {
	Dir string

	HTMLPath string
	// VideoPath 为空表示未指定，由运行阶段在 Dir 中自动定位。
	VideoPath string

	OutputMD  string
	OutputPDF string
	AssetsDir string

	FrameSource  string
	FrameFormat  string
	ThumbMinGap  float64
	FrameTimeout time.Duration
	FFmpegPath   string

	PageWidth  float64
	PageHeight float64

	ProxyURL string
	// ThumbBaseURL 用于解析页面里相对路径的缩略图 URL；为空时这类缩略图下载失败。
	ThumbBaseURL string

	// Publish 为 true 时 PublishConfig.Bucket 一定非空。
	Publish       bool
	PublishConfig PublishConfig
}

// CompactArgs 是 compact 子命令暴露的参数。
type CompactArgs struct {
	File    string
	Output  string
	InPlace bool
}

// CompactConfig 是 compact 的最终输入/输出路径（绝对路径）。
type CompactConfig struct {
	Input  string
	Output string
}

// Error 是配置阶段的结构化错误（带 error_code）。
type Error struct {
	Code string
	Path string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Path != "" && e.Err != nil:
		return fmt.Sprintf("%s：配置文件 %q 无效：%v", e.Code, e.Path, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s：%v", e.Code, e.Err)
	case e.Path != "":
		return fmt.Sprintf("%s：配置文件 %q 无效", e.Code, e.Path)
	default:
		return e.Code
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Code 从 error 中提取 error_code；若不是 *Error 则返回空串。
func Code(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// LoadEffective 读取 <dir>/lecnote.json 与 <dir>/.env（均可选），与环境变量、CLI 参数合并为最终配置。
//
// 覆盖优先级（固定）：CLI > 环境变量（进程环境 > .env）> lecnote.json > 默认值。
// 相对路径一律相对 dir 解析；dir 为空时取 cwd。
func LoadEffective(cwd string, cli CLIArgs) (EffectiveConfig, error) {
	cwdAbs, err := filepath.Abs(cwd)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Err: err}
	}
	dir := cwdAbs
	if strings.TrimSpace(cli.Dir) != "" {
		dir = absCleanFrom(cwdAbs, cli.Dir)
	}

	cfgPath := filepath.Join(dir, FileName)
	fc, _, err := readFileConfig(cfgPath)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
	}

	env, err := newEnv(filepath.Join(dir, DotEnvName))
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: filepath.Join(dir, DotEnvName), Err: err}
	}

	eff, err := merge(dir, cli, fc, env)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
	}
	return eff, nil
}

func merge(dir string, cli CLIArgs, fc FileConfig, env envLookup) (EffectiveConfig, error) {
	eff := EffectiveConfig{
		Dir:          dir,
		HTMLPath:     absCleanFrom(dir, pick(cli.HTML, env.get(EnvHTML), fc.HTML, DefaultHTML)),
		OutputMD:     absCleanFrom(dir, pick(cli.OutputMD, fc.OutputMD, DefaultOutputMD)),
		OutputPDF:    absCleanFrom(dir, pick(cli.OutputPDF, fc.OutputPDF, DefaultOutputPDF)),
		AssetsDir:    absCleanFrom(dir, pick(fc.AssetsDir, DefaultAssetsDir)),
		FrameSource:  strings.ToLower(pick(cli.Source, env.get(EnvFrameSource), fc.FrameSource, DefaultFrameSource)),
		FrameFormat:  strings.ToLower(pick(fc.FrameFormat, DefaultFrameFormat)),
		FrameTimeout: DefaultFrameTimeout,
		FFmpegPath:   pick(env.get(EnvFFmpeg), fc.FFmpeg, DefaultFFmpeg),
		PageWidth:    DefaultPageWidth,
		PageHeight:   DefaultPageHeight,
	}
	if v := pick(cli.Video, env.get(EnvVideo), fc.Video); v != "" {
		eff.VideoPath = absCleanFrom(dir, v)
	}

	switch eff.FrameSource {
	case SourceVideo, SourceThumbnail:
	default:
		return EffectiveConfig{}, fmt.Errorf("frame_source 只能是 video 或 thumbnail，实际是 %q", eff.FrameSource)
	}
	switch eff.FrameFormat {
	case "png", "jpg":
	case "jpeg":
		eff.FrameFormat = "jpg"
	default:
		return EffectiveConfig{}, fmt.Errorf("frame_format 只能是 png 或 jpg，实际是 %q", eff.FrameFormat)
	}

	// thumb_min_gap：CLI > config > 默认 0（关闭）
	switch {
	case cli.MinGapSet:
		eff.ThumbMinGap = cli.MinGap
	case fc.ThumbMinGap != nil:
		eff.ThumbMinGap = *fc.ThumbMinGap
	}
	if eff.ThumbMinGap < 0 {
		return EffectiveConfig{}, fmt.Errorf("thumb_min_gap 不能为负：%v", eff.ThumbMinGap)
	}

	if fc.FrameTimeoutSec != nil {
		if *fc.FrameTimeoutSec <= 0 {
			return EffectiveConfig{}, fmt.Errorf("frame_timeout_sec 必须为正：%d", *fc.FrameTimeoutSec)
		}
		eff.FrameTimeout = time.Duration(*fc.FrameTimeoutSec) * time.Second
	}

	if fc.Page != nil {
		if fc.Page.Width != 0 {
			eff.PageWidth = fc.Page.Width
		}
		if fc.Page.Height != 0 {
			eff.PageHeight = fc.Page.Height
		}
	}
	if eff.PageWidth <= 0 || eff.PageHeight <= 0 {
		return EffectiveConfig{}, fmt.Errorf("page 尺寸必须为正：%vx%v", eff.PageWidth, eff.PageHeight)
	}

	proxyURL := env.get(EnvProxyURL)
	if proxyURL == "" && fc.Proxy != nil {
		proxyURL = strings.TrimSpace(fc.Proxy.URL)
	}
	if proxyURL != "" {
		u, err := url.Parse(proxyURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return EffectiveConfig{}, fmt.Errorf("proxy.url 无效：%q", proxyURL)
		}
	}
	eff.ProxyURL = proxyURL

	thumbBase := pick(env.get(EnvThumbBase), strings.TrimSpace(fc.ThumbBaseURL))
	if thumbBase != "" {
		u, err := url.Parse(thumbBase)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return EffectiveConfig{}, fmt.Errorf("thumb_base_url 无效：%q", thumbBase)
		}
	}
	eff.ThumbBaseURL = thumbBase

	var pc PublishConfig
	if fc.Publish != nil {
		pc = *fc.Publish
	}
	pc.Bucket = pick(env.get(EnvS3Bucket), pc.Bucket)
	pc.Prefix = pick(env.get(EnvS3Prefix), pc.Prefix)
	eff.PublishConfig = pc
	if cli.Publish {
		if strings.TrimSpace(pc.Bucket) == "" {
			return EffectiveConfig{}, fmt.Errorf("--publish 需要配置 publish.bucket 或 %s", EnvS3Bucket)
		}
		eff.Publish = true
	}

	return eff, nil
}

// LoadCompact 解析 compact 的输入与输出路径。
//
// - 输入：CLI file > <cwd>/lecnote.json 的 output_md > output.md
// - 输出：-o > --in-place（即输入本身）> compact_output > output.compact.md；相对路径相对输入所在目录
func LoadCompact(cwd string, args CompactArgs) (CompactConfig, error) {
	cwdAbs, err := filepath.Abs(cwd)
	if err != nil {
		return CompactConfig{}, &Error{Code: ErrCodeInvalid, Err: err}
	}
	if args.InPlace && strings.TrimSpace(args.Output) != "" {
		return CompactConfig{}, &Error{Code: ErrCodeInvalid, Err: errors.New("-o 与 --in-place 不能同时使用")}
	}

	cfgPath := filepath.Join(cwdAbs, FileName)
	fc, _, err := readFileConfig(cfgPath)
	if err != nil {
		return CompactConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
	}

	in := absCleanFrom(cwdAbs, pick(args.File, fc.OutputMD, DefaultOutputMD))
	if args.InPlace {
		return CompactConfig{Input: in, Output: in}, nil
	}
	if o := strings.TrimSpace(args.Output); o != "" {
		return CompactConfig{Input: in, Output: absCleanFrom(cwdAbs, o)}, nil
	}
	out := absCleanFrom(filepath.Dir(in), pick(fc.CompactOutput, DefaultCompactOutput))
	if out == in {
		return CompactConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: errors.New("compact_output 与输入相同；覆盖请用 --in-place")}
	}
	return CompactConfig{Input: in, Output: out}, nil
}

// pick 返回第一个非空（去空白后）的值。
func pick(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

// envLookup 先查进程环境，再查 .env 文件内容；.env 不会覆盖已存在的变量。
type envLookup struct {
	dotenv map[string]string
}

func newEnv(dotenvPath string) (envLookup, error) {
	m, err := godotenv.Read(dotenvPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return envLookup{}, nil
		}
		return envLookup{}, err
	}
	return envLookup{dotenv: m}, nil
}

func (e envLookup) get(key string) string {
	if v, ok := os.LookupEnv(key); ok {
		return strings.TrimSpace(v)
	}
	return strings.TrimSpace(e.dotenv[key])
}

// absCleanFrom 以 base 为基准，把 p 变为 clean + absolute。
func absCleanFrom(base, p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return ""
	}
	p = filepath.Clean(p)
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Clean(filepath.Join(base, p))
}

// readFileConfig 读取并解析 JSON 配置文件。
// 返回值 exists 表示该文件是否存在（不存在不算错误）。
func readFileConfig(path string) (fc FileConfig, exists bool, err error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, false, nil
		}
		return FileConfig{}, false, err
	}
	if err := json.Unmarshal(b, &fc); err != nil {
		return FileConfig{}, true, err
	}
	return fc, true, nil
}
