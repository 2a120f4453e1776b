package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/John-Robertt/lecnote/internal/app/run"
	"github.com/John-Robertt/lecnote/internal/compact"
	"github.com/John-Robertt/lecnote/internal/config"
	"github.com/John-Robertt/lecnote/internal/domain"
	"github.com/John-Robertt/lecnote/internal/infra/fsx"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := execute(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// exitError 表示命令已自行输出了错误信息，只需按 code 退出。
type exitError struct {
	code int
}

func (e *exitError) Error() string { return fmt.Sprintf("exit %d", e.code) }

// cli 持有一次命令执行的输出端与日志。
type cli struct {
	stdout io.Writer
	stderr io.Writer
	logger *log.Logger

	verbose bool
}

// execute 解析参数并运行子命令，返回进程退出码：0 成功；1 致命错误；2 用法错误。
func execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	c := &cli{
		stdout: stdout,
		stderr: stderr,
		logger: log.NewWithOptions(stderr, log.Options{
			ReportTimestamp: true,
			TimeFormat:      "15:04:05",
			Level:           log.InfoLevel,
		}),
	}

	root := c.rootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	if err == nil {
		return 0
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	fmt.Fprintf(stderr, "参数错误：%v\n使用 \"lecnote --help\" 查看用法。\n", err)
	return 2
}

func (c *cli) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "lecnote",
		Short: "把录播页面与视频转换为字幕 Markdown 与幻灯片 PDF",
		Long: `lecnote 读取录播站点保存的页面（leccap.html）与下载的视频，
生成字幕与幻灯片截图交错的 output.md，以及每页一张幻灯片的 slides.pdf。`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if c.verbose {
				c.logger.SetLevel(log.DebugLevel)
			}
		},
	}
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "输出调试日志")
	root.AddCommand(c.runCmd(), c.compactCmd())
	return root
}

func (c *cli) runCmd() *cobra.Command {
	var (
		a      config.CLIArgs
		minGap float64
	)
	cmd := &cobra.Command{
		Use:   "run [dir]",
		Short: "生成 output.md 与 slides.pdf（默认在当前目录）",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				a.Dir = args[0]
			}
			if cmd.Flags().Changed("min-gap") {
				a.MinGap = minGap
				a.MinGapSet = true
			}
			return c.runLecture(cmd.Context(), a)
		},
	}
	f := cmd.Flags()
	f.StringVar(&a.HTML, "html", "", "页面文件（默认 leccap.html）")
	f.StringVar(&a.Video, "video", "", "视频文件（默认目录下按名称排序的第一个视频）")
	f.StringVar(&a.Source, "source", "", "帧来源：video|thumbnail")
	f.Float64Var(&minGap, "min-gap", 0, "相邻幻灯片最小间隔（秒），0 表示不过滤")
	f.StringVar(&a.OutputMD, "md", "", "Markdown 输出路径（默认 output.md）")
	f.StringVar(&a.OutputPDF, "pdf", "", "PDF 输出路径（默认 slides.pdf）")
	f.BoolVar(&a.Publish, "publish", false, "完成后上传产物到 S3（需配置 publish.bucket）")
	return cmd
}

func (c *cli) compactCmd() *cobra.Command {
	var a config.CompactArgs
	cmd := &cobra.Command{
		Use:   "compact [file]",
		Short: "压缩 Markdown：去掉重复字幕并合并为段落（默认 output.md）",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				a.File = args[0]
			}
			return c.compactFile(a)
		},
	}
	cmd.Flags().StringVarP(&a.Output, "output", "o", "", "输出路径（默认 output.compact.md）")
	cmd.Flags().BoolVar(&a.InPlace, "in-place", false, "覆盖输入文件")
	return cmd
}

func (c *cli) runLecture(ctx context.Context, a config.CLIArgs) error {
	cwd, err := os.Getwd()
	if err != nil {
		c.logger.Error("读取当前目录失败", "err", err)
		return &exitError{code: 1}
	}

	eff, err := config.LoadEffective(cwd, a)
	if err != nil {
		c.logger.Error("配置无效", "code", config.Code(err), "err", err)
		c.emitReport(reportForError(cwd, err))
		return &exitError{code: 1}
	}

	var obs run.Observer = &logObserver{logger: c.logger}
	if w, ok := c.progressWriter(); ok {
		obs = newProgressUI(w, c.logger)
	}

	rr, err := run.Execute(ctx, eff, run.Deps{}, obs)
	c.emitReport(rr)
	if err != nil {
		c.logger.Error("运行失败", "code", run.Code(err), "err", err)
		return &exitError{code: 1}
	}
	return nil
}

func (c *cli) compactFile(a config.CompactArgs) error {
	cwd, err := os.Getwd()
	if err != nil {
		c.logger.Error("读取当前目录失败", "err", err)
		return &exitError{code: 1}
	}
	cc, err := config.LoadCompact(cwd, a)
	if err != nil {
		c.logger.Error("参数无效", "code", config.Code(err), "err", err)
		return &exitError{code: 1}
	}

	src, err := os.ReadFile(cc.Input)
	if err != nil {
		c.logger.Error("读取输入失败", "code", domain.ErrCodeInputMissing, "file", cc.Input, "err", err)
		return &exitError{code: 1}
	}
	out := compact.Compact(src)
	if err := fsx.WriteFileAtomic(filepath.Dir(cc.Output), filepath.Base(cc.Output), out); err != nil {
		c.logger.Error("写入输出失败", "code", domain.ErrCodeOutputWriteFailed, "file", cc.Output, "err", err)
		return &exitError{code: 1}
	}

	c.logger.Info("压缩完成", "in", cc.Input, "out", cc.Output, "bytes_before", len(src), "bytes_after", len(out))
	if isTTY(c.stdout) {
		fmt.Fprintln(c.stdout, cc.Output)
	}
	return nil
}

// emitReport 输出 RunReport：stdout 是 TTY 时打印摘要；否则 stdout 只输出一个 JSON（日志/摘要走 stderr）。
func (c *cli) emitReport(rr domain.RunReport) {
	summary := fmt.Sprintf("完成：captions=%d slides=%d extracted=%d failed=%d",
		rr.Summary.Captions, rr.Summary.Slides, rr.Summary.Extracted, rr.Summary.Failed,
	)
	if rr.ErrorCode != "" {
		summary = fmt.Sprintf("失败：%s", rr.ErrorCode)
	}

	if isTTY(c.stdout) {
		fmt.Fprintln(c.stdout, summary)
		for _, o := range rr.Outputs {
			fmt.Fprintf(c.stdout, "  %s\n", o)
		}
		return
	}

	enc := json.NewEncoder(c.stdout)
	_ = enc.Encode(rr)
	fmt.Fprintln(c.stderr, summary)
}

func (c *cli) progressWriter() (io.Writer, bool) {
	// 进度输出只在交互终端启用；默认走 stderr（不污染 stdout JSON）。
	if isTTY(c.stderr) {
		return c.stderr, true
	}
	if isTTY(c.stdout) {
		return c.stdout, true
	}
	return nil, false
}

func reportForError(dir string, err error) domain.RunReport {
	now := time.Now().UTC()
	rr := domain.RunReport{
		Dir:        dir,
		StartedAt:  now,
		FinishedAt: now,
		ErrorCode:  run.Code(err),
		ErrorMsg:   err.Error(),
	}
	rr.Finalize()
	return rr
}

func isTTY(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}
