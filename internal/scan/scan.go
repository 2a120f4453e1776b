package scan

import (
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ErrNoVideo 表示目录下没有可用的视频文件。
var ErrNoVideo = errors.New("目录下没有视频文件")

// FindVideo 在 dir（不递归）中定位讲座视频。
//
// 规则：
// - 只看普通文件，扩展名大小写不敏感
// - 多个候选时按文件名排序取第一个（输出稳定，与文件系统返回顺序无关）
// - 以 "." 开头的隐藏文件跳过（下载器的临时文件常见此形态）
//
// 注意：只做 ReadDir + stat，不读文件内容。
func FindVideo(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}

	names := make([]string, 0, 4)
	for _, e := range entries {
		name := e.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}
		if !isVideoExt(strings.ToLower(filepath.Ext(name))) {
			continue
		}
		// DirEntry.Type 对符号链接不做跟随；这里用 Stat 确认最终是普通文件。
		fi, err := os.Stat(filepath.Join(dir, name))
		if err != nil || !fi.Mode().IsRegular() {
			continue
		}
		names = append(names, name)
	}
	if len(names) == 0 {
		return "", ErrNoVideo
	}

	sort.Strings(names)
	return filepath.Join(dir, names[0]), nil
}

func isVideoExt(ext string) bool {
	switch ext {
	case ".mp4", ".mkv", ".mov", ".webm":
		return true
	default:
		return false
	}
}
