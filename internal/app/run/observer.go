package run

import (
	"time"

	"github.com/John-Robertt/lecnote/internal/config"
	"github.com/John-Robertt/lecnote/internal/domain"
)

// Observer 用于把“运行进度/阶段/逐帧结果”从核心执行流程中解耦出来。
//
// 约束：run 包只负责发事件，不做任何输出（避免污染 stdout 的 JSON 契约）。
type Observer interface {
	// OnStart 在 Execute 开始时调用。
	OnStart(eff config.EffectiveConfig)
	// OnPhaseDone 在阶段结束时调用（用于打印阶段统计与耗时）。
	OnPhaseDone(name string, fields map[string]any, dur time.Duration)
	// OnFrameDone 在每个目标时间戳处理完成时调用（成功或失败）。
	OnFrameDone(idx, total int, res domain.FrameResult, dur time.Duration)
	// OnWarning 在出现非致命告警时调用；同一条告警也会写入 RunReport.Warnings。
	OnWarning(msg string)
}

type nopObserver struct{}

func (nopObserver) OnStart(config.EffectiveConfig) {}
func (nopObserver) OnPhaseDone(string, map[string]any, time.Duration) {}
func (nopObserver) OnFrameDone(int, int, domain.FrameResult, time.Duration) {}
func (nopObserver) OnWarning(string) {}
