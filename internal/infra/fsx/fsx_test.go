package fsx

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestWriteFileAtomic_ReplaceAndNoTempLeft(t *testing.T) {
	dir := t.TempDir()

	if err := WriteFileAtomic(dir, "output.md", []byte("old")); err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if err := WriteFileAtomic(dir, "output.md", []byte("new")); err != nil {
		t.Fatalf("不期望错误：%v", err)
	}

	b, err := os.ReadFile(filepath.Join(dir, "output.md"))
	if err != nil {
		t.Fatalf("读取文件失败：%v", err)
	}
	if string(b) != "new" {
		t.Fatalf("应覆盖旧内容，实际：%q", string(b))
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir 失败：%v", err)
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".output.md.tmp-") {
			t.Fatalf("临时文件未清理：%q", e.Name())
		}
	}
}

func TestWriteFileAtomic_RenameFail_KeepsOldContent(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "slides.pdf"), []byte("old"), 0o644); err != nil {
		t.Fatalf("写入失败：%v", err)
	}

	old := renameFunc
	renameFunc = func(oldpath, newpath string) error {
		return os.ErrPermission
	}
	defer func() { renameFunc = old }()

	if err := WriteFileAtomic(dir, "slides.pdf", []byte("new")); err == nil {
		t.Fatalf("期望失败，但得到 nil")
	}

	b, err := os.ReadFile(filepath.Join(dir, "slides.pdf"))
	if err != nil {
		t.Fatalf("读取文件失败：%v", err)
	}
	if string(b) != "old" {
		t.Fatalf("失败时不应改动旧文件，实际：%q", string(b))
	}
	entries, _ := os.ReadDir(dir)
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".slides.pdf.tmp-") {
			t.Fatalf("临时文件未清理：%q", e.Name())
		}
	}
}

func TestWriteFileAtomic_TargetIsDir(t *testing.T) {
	dir := t.TempDir()
	if err := os.Mkdir(filepath.Join(dir, "output.md"), 0o755); err != nil {
		t.Fatalf("创建目录失败：%v", err)
	}

	err := WriteFileAtomic(dir, "output.md", []byte("x"))
	if !IsPathTypeConflict(err) {
		t.Fatalf("期望 PathTypeConflictError，实际：%T %v", err, err)
	}
}

func TestResetDir(t *testing.T) {
	root := t.TempDir()
	assets := filepath.Join(root, "assets")

	// 不存在：创建。
	if err := ResetDir(assets); err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if fi, err := os.Stat(assets); err != nil || !fi.IsDir() {
		t.Fatalf("期望创建目录：%v", err)
	}

	// 已存在：清空文件，保留子目录。
	if err := os.WriteFile(filepath.Join(assets, "0001_00-00-00.png"), []byte("x"), 0o644); err != nil {
		t.Fatalf("写入失败：%v", err)
	}
	if err := os.Mkdir(filepath.Join(assets, "keep"), 0o755); err != nil {
		t.Fatalf("创建目录失败：%v", err)
	}
	if err := ResetDir(assets); err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	entries, _ := os.ReadDir(assets)
	if len(entries) != 1 || entries[0].Name() != "keep" {
		t.Fatalf("ResetDir 后应只剩子目录：%v", entries)
	}

	// 路径是文件：类型冲突。
	f := filepath.Join(root, "file")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatalf("写入失败：%v", err)
	}
	if err := ResetDir(f); !IsPathTypeConflict(err) {
		t.Fatalf("期望 PathTypeConflictError，实际：%v", err)
	}
}
