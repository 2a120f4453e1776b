package publish

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
)

type putCall struct {
	bucket, key, contentType, body string
}

type fakePutter struct {
	calls  []putCall
	failOn string
}

func (f *fakePutter) Put(ctx context.Context, bucket, key string, body io.Reader, contentType string) error {
	if key == f.failOn {
		return errors.New("access denied")
	}
	b, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	f.calls = append(f.calls, putCall{bucket: bucket, key: key, contentType: contentType, body: string(b)})
	return nil
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir 失败：%v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("写入失败：%v", err)
	}
}

func TestPublish_KeysAndContentTypes(t *testing.T) {
	dir := t.TempDir()
	md := filepath.Join(dir, "output.md")
	pdf := filepath.Join(dir, "slides.pdf")
	frame := filepath.Join(dir, "assets", "0001_00-00-00.png")
	writeFile(t, md, "hello\n")
	writeFile(t, pdf, "%PDF-1.3")
	writeFile(t, frame, "png")

	p := &fakePutter{}
	keys, err := Publish(context.Background(), p, "notes", "/eecs281/lec03/", dir, []string{md, pdf, frame})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}

	want := []putCall{
		{"notes", "eecs281/lec03/output.md", "text/markdown; charset=utf-8", "hello\n"},
		{"notes", "eecs281/lec03/slides.pdf", "application/pdf", "%PDF-1.3"},
		{"notes", "eecs281/lec03/assets/0001_00-00-00.png", "image/png", "png"},
	}
	if len(p.calls) != len(want) || len(keys) != len(want) {
		t.Fatalf("上传次数不符合预期：%+v", p.calls)
	}
	for i := range want {
		if p.calls[i] != want[i] {
			t.Fatalf("第 %d 次上传不符合预期：got=%+v want=%+v", i, p.calls[i], want[i])
		}
		if keys[i] != want[i].key {
			t.Fatalf("返回的 key 不符合预期：%q", keys[i])
		}
	}
}

func TestPublish_NoPrefix(t *testing.T) {
	dir := t.TempDir()
	md := filepath.Join(dir, "output.md")
	writeFile(t, md, "x")

	p := &fakePutter{}
	if _, err := Publish(context.Background(), p, "b", "", dir, []string{md}); err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if p.calls[0].key != "output.md" {
		t.Fatalf("无前缀时 key 应为相对路径：%q", p.calls[0].key)
	}
}

func TestPublish_StopsOnFirstFailure(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "output.md")
	b := filepath.Join(dir, "slides.pdf")
	writeFile(t, a, "a")
	writeFile(t, b, "b")

	p := &fakePutter{failOn: "output.md"}
	keys, err := Publish(context.Background(), p, "b", "", dir, []string{a, b})
	if err == nil {
		t.Fatalf("期望错误，但得到 nil")
	}
	if len(keys) != 0 || len(p.calls) != 0 {
		t.Fatalf("失败后不应继续上传：keys=%v calls=%v", keys, p.calls)
	}
}

func TestPublish_Validation(t *testing.T) {
	if _, err := Publish(context.Background(), nil, "b", "", "", nil); err == nil {
		t.Fatalf("putter 为空应报错")
	}
	if _, err := Publish(context.Background(), &fakePutter{}, " ", "", "", nil); err == nil {
		t.Fatalf("bucket 为空应报错")
	}
	dir := t.TempDir()
	outside := filepath.Join(filepath.Dir(dir), "elsewhere.md")
	if _, err := Publish(context.Background(), &fakePutter{}, "b", "", dir, []string{outside}); err == nil {
		t.Fatalf("工作目录之外的文件应报错")
	}
}

func TestContentType(t *testing.T) {
	cases := map[string]string{
		"a.MD":       "text/markdown; charset=utf-8",
		"b.pdf":      "application/pdf",
		"c.jpeg":     "image/jpeg",
		"d.unknownx": "application/octet-stream",
	}
	for in, want := range cases {
		if got := ContentType(in); got != want {
			t.Fatalf("ContentType(%q)=%q want=%q", in, got, want)
		}
	}
}
