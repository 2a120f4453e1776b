package leccap

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// parseClock 解析 "hh:mm:ss" 或 "mm:ss"（秒允许小数，例如 "00:05.2"）。
func parseClock(s string) (float64, bool) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 && len(parts) != 3 {
		return 0, false
	}

	sec, err := strconv.ParseFloat(strings.TrimSpace(parts[len(parts)-1]), 64)
	if err != nil || sec < 0 || math.IsNaN(sec) || math.IsInf(sec, 0) {
		return 0, false
	}

	total := sec
	mul := 60.0
	for i := len(parts) - 2; i >= 0; i-- {
		n, err := strconv.Atoi(strings.TrimSpace(parts[i]))
		if err != nil || n < 0 {
			return 0, false
		}
		total += float64(n) * mul
		mul *= 60
	}
	return total, true
}

var thumbRE = regexp.MustCompile(`(?i)^\s*thumbnail at\s*(?:(\d+)\s*hours?)?\s*(?:(\d+)\s*minutes?)?\s*(?:(\d+)\s*seconds?)?`)

// parseThumbLabel 解析缩略图 aria-label，例如 "Thumbnail at 1 hour 2 minutes 3 seconds"。
// 三段都缺失视为无法解析（避免把噪音 label 误判为 0 秒）。
func parseThumbLabel(label string) (float64, bool) {
	m := thumbRE.FindStringSubmatch(label)
	if m == nil {
		return 0, false
	}
	if m[1] == "" && m[2] == "" && m[3] == "" {
		return 0, false
	}
	h, _ := strconv.Atoi(orZero(m[1]))
	mi, _ := strconv.Atoi(orZero(m[2]))
	s, _ := strconv.Atoi(orZero(m[3]))
	return float64(h*3600 + mi*60 + s), true
}

func orZero(s string) string {
	if s == "" {
		return "0"
	}
	return s
}

var bgRE = regexp.MustCompile(`url\(\s*["']?(.*?)["']?\s*\)`)

func bgURL(style string) string {
	m := bgRE.FindStringSubmatch(style)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[1])
}
