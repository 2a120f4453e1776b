package scan

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestFindVideo_SortedFirst(t *testing.T) {
	dir := t.TempDir()

	touch(t, filepath.Join(dir, "lecture-b.mp4"))
	touch(t, filepath.Join(dir, "lecture-a.MKV"))
	touch(t, filepath.Join(dir, "leccap.html"))
	touch(t, filepath.Join(dir, ".partial.mp4"))

	got, err := FindVideo(dir)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	want := filepath.Join(dir, "lecture-a.MKV")
	if got != want {
		t.Fatalf("期望 %q，实际 %q", want, got)
	}
}

func TestFindVideo_IgnoresDirsAndSubdirs(t *testing.T) {
	dir := t.TempDir()

	// 目录名像视频：不应命中。
	if err := os.MkdirAll(filepath.Join(dir, "clip.mp4"), 0o755); err != nil {
		t.Fatalf("mkdir 失败：%v", err)
	}
	// 子目录里的视频：不递归。
	touch(t, filepath.Join(dir, "assets", "x.mp4"))

	_, err := FindVideo(dir)
	if !errors.Is(err, ErrNoVideo) {
		t.Fatalf("期望 ErrNoVideo，实际 %v", err)
	}
}

func TestFindVideo_DirMissing(t *testing.T) {
	_, err := FindVideo(filepath.Join(t.TempDir(), "nope"))
	if err == nil {
		t.Fatalf("期望错误，但得到 nil")
	}
	if errors.Is(err, ErrNoVideo) {
		t.Fatalf("目录不存在不应报告为 ErrNoVideo")
	}
}

func TestIsVideoExt(t *testing.T) {
	for _, ext := range []string{".mp4", ".mkv", ".mov", ".webm"} {
		if !isVideoExt(ext) {
			t.Fatalf("期望 %q 是视频扩展名", ext)
		}
	}
	for _, ext := range []string{".avi", ".html", ""} {
		if isVideoExt(ext) {
			t.Fatalf("不期望 %q 是视频扩展名", ext)
		}
	}
}

func touch(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir 失败：%v", err)
	}
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatalf("写入失败：%v", err)
	}
}
