package thumb

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"path"
	"path/filepath"
	"strings"

	"github.com/John-Robertt/lecnote/internal/domain"
	"github.com/John-Robertt/lecnote/internal/infra/fsx"
	"github.com/John-Robertt/lecnote/internal/sampler"
)

// maxThumbBytes 限制单张缩略图大小，防止异常响应把内存吃满。
const maxThumbBytes = 20 << 20

// Download 把页面缩略图下载为帧，写入 assetsDir。
//
// 相对路径的缩略图 URL 以 baseURL 为基准解析；baseURL 为空时这类缩略图记为失败。
// 语义与 sampler.Sample 一致：每个 SlideChange 恰好一个 FrameResult；
// 单张失败记录后继续，只有 ctx 取消作为致命错误返回。
func Download(ctx context.Context, client *http.Client, baseURL, assetsDir string, slides []domain.SlideChange, onFrame func(domain.FrameResult)) ([]domain.Frame, []domain.FrameResult, error) {
	if client == nil {
		return nil, nil, errors.New("http client 为空")
	}
	var base *url.URL
	if b := strings.TrimSpace(baseURL); b != "" {
		u, err := url.Parse(b)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return nil, nil, fmt.Errorf("缩略图站点地址无效：%q", baseURL)
		}
		base = u
	}

	frames := make([]domain.Frame, 0, len(slides))
	results := make([]domain.FrameResult, 0, len(slides))

	for _, s := range slides {
		if err := ctx.Err(); err != nil {
			return frames, results, err
		}

		r := domain.FrameResult{SlideIndex: s.Index, At: s.At}
		p, err := fetchOne(ctx, client, base, assetsDir, s)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return frames, results, ctxErr
			}
			r.Status = domain.FrameStatusFailed
			r.ErrorCode = domain.ErrCodeFrameExtractionFailed
			r.ErrorMsg = err.Error()
		} else {
			r.Status = domain.FrameStatusExtracted
			r.Path = p
			frames = append(frames, domain.Frame{SlideIndex: s.Index, At: s.At, Path: p})
		}

		results = append(results, r)
		if onFrame != nil {
			onFrame(r)
		}
	}
	return frames, results, nil
}

func fetchOne(ctx context.Context, client *http.Client, base *url.URL, assetsDir string, s domain.SlideChange) (string, error) {
	u, err := resolveURL(base, s.ThumbURL)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", err
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("下载缩略图失败：HTTP %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxThumbBytes+1))
	if err != nil {
		return "", err
	}
	if len(body) == 0 {
		return "", errors.New("缩略图响应为空")
	}
	if len(body) > maxThumbBytes {
		return "", errors.New("缩略图过大")
	}

	format, err := imageFormat(resp.Header.Get("Content-Type"), req.URL.Path, body)
	if err != nil {
		return "", err
	}
	name := sampler.FrameName(s.Index, s.At, format)
	if err := fsx.WriteFileAtomic(assetsDir, name, body); err != nil {
		return "", err
	}
	return filepath.Join(assetsDir, name), nil
}

// resolveURL 返回可直接请求的绝对 http(s) URL。
func resolveURL(base *url.URL, raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", errors.New("缩略图缺少 URL")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("缩略图 URL 无效：%q", raw)
	}
	if !u.IsAbs() {
		if base == nil {
			return "", fmt.Errorf("缩略图 URL 是相对路径且未配置站点地址（thumb_base_url）：%q", raw)
		}
		u = base.ResolveReference(u)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("缩略图 URL 协议不受支持：%q", raw)
	}
	return u.String(), nil
}

// imageFormat 判断保存格式，只接受 png 与 jpg（PDF 组装只能解码这两种）。
//
// 顺序：响应内容嗅探 > Content-Type > URL 扩展名。
func imageFormat(contentType, urlPath string, body []byte) (string, error) {
	sniffed := http.DetectContentType(body)
	switch sniffed {
	case "image/png":
		return "png", nil
	case "image/jpeg":
		return "jpg", nil
	}
	if strings.HasPrefix(sniffed, "image/") {
		return "", fmt.Errorf("不支持的缩略图格式：%s", sniffed)
	}

	if mt, _, err := mime.ParseMediaType(contentType); err == nil {
		switch mt {
		case "image/png":
			return "png", nil
		case "image/jpeg", "image/jpg":
			return "jpg", nil
		}
		if strings.HasPrefix(mt, "image/") {
			return "", fmt.Errorf("不支持的缩略图格式：%s", mt)
		}
	}

	switch strings.ToLower(path.Ext(urlPath)) {
	case ".png":
		return "png", nil
	case ".jpg", ".jpeg":
		return "jpg", nil
	}
	return "", fmt.Errorf("无法识别缩略图格式（Content-Type=%q）", contentType)
}
