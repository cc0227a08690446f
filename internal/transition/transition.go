// Package transition 提供电源模式切换的频闪反馈动画。
// 动画独占键盘：走调度器的强制渲染路径并持有覆盖门控，
// 结束后通过恢复回调把控制权交还给正在运行的灯效。
package transition

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/earnest-s/LenovoLegionToolkit-sub000/internal/dispatch"
	"github.com/earnest-s/LenovoLegionToolkit-sub000/internal/frame"
	"github.com/earnest-s/LenovoLegionToolkit-sub000/internal/types"
)

const (
	// PulseCount 完整动画包含的脉冲数
	PulseCount = 3
	// pulseFade 单个脉冲从满亮度正弦缓出到零的时长
	pulseFade = 300 * time.Millisecond
	// pulseGap 脉冲之间的全黑间隔
	pulseGap = 100 * time.Millisecond
	// tickPeriod 动画帧节拍
	tickPeriod = 10 * time.Millisecond
)

// pulsePeriod 单个脉冲周期
const pulsePeriod = pulseFade + pulseGap

// TotalDuration 整段动画时长（不含收尾的全黑帧）
const TotalDuration = PulseCount * pulsePeriod

// PulseLevel 流逝时间对应的脉冲亮度，取值 [0,1]。
// 每个脉冲周期内：瞬时打满亮度，按正弦缓出衰减到零，再保持一段全黑间隔；
// 超出全部脉冲后恒为零。纯函数，亮度只由流逝时间决定。
func PulseLevel(elapsed time.Duration) float64 {
	if elapsed < 0 || elapsed >= TotalDuration {
		return 0
	}
	offset := elapsed % pulsePeriod
	if offset >= pulseFade {
		return 0
	}
	return math.Cos(float64(offset) / float64(pulseFade) * math.Pi / 2)
}

// Animator 电源模式切换动画器。同一时刻至多一段动画在途：
// 新动画先取消并等待前一段完全退出，再接管覆盖门控。
type Animator struct {
	dispatcher *dispatch.Dispatcher
	logger     types.Logger

	// resume 动画收尾后的交还回调（接回灯效控制器的恢复入口）
	resume func() error

	// playMu 串行化“停旧起新”序列，并发的 Play 依次排队
	playMu sync.Mutex

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewAnimator 创建动画器
func NewAnimator(d *dispatch.Dispatcher, resume func() error, logger types.Logger) *Animator {
	return &Animator{dispatcher: d, resume: resume, logger: logger}
}

// Play 播放一段电源模式切换动画。阻塞停掉任何在途动画后立即返回，
// 动画本体在后台运行，结束时强制渲染一帧全黑并触发恢复回调。
// 并发调用持有启动锁排队执行，不会留下无人接管的动画协程。
func (a *Animator) Play(color frame.RGBColor) {
	a.playMu.Lock()
	defer a.playMu.Unlock()

	a.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	a.mu.Lock()
	a.cancel = cancel
	a.done = done
	a.mu.Unlock()

	a.dispatcher.SetOverride(true)
	go a.run(ctx, color, done)
}

// Stop 取消在途动画并等待其完全退出。无动画时为幂等操作。
func (a *Animator) Stop() {
	a.mu.Lock()
	if a.done == nil {
		a.mu.Unlock()
		return
	}
	done := a.done
	cancel := a.cancel
	a.mu.Unlock()

	cancel()
	<-done
}

// IsPlaying 是否有动画在途
func (a *Animator) IsPlaying() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.done != nil
}

func (a *Animator) run(ctx context.Context, color frame.RGBColor, done chan struct{}) {
	interrupted := false
	defer func() {
		if r := recover(); r != nil {
			a.logError("切换动画发生Panic: %v", r)
		}
		// 收尾全黑帧保证不留残光
		if err := a.dispatcher.ForceRender(frame.Uniform(frame.Black)); err != nil {
			a.logError("切换动画收尾渲染失败: %v", err)
		}
		a.mu.Lock()
		if a.done == done {
			a.cancel = nil
			a.done = nil
		}
		a.mu.Unlock()
		close(done)
		// 被后继动画打断时门控归后继所有, 不在这里交还
		if !interrupted && a.resume != nil {
			if err := a.resume(); err != nil {
				a.logError("切换动画交还控制权失败: %v", err)
			}
		}
	}()

	began := time.Now()
	ticker := time.NewTicker(tickPeriod)
	defer ticker.Stop()

	for {
		elapsed := time.Since(began)
		if elapsed >= TotalDuration {
			return
		}
		f := frame.Uniform(color.Scale(PulseLevel(elapsed)))
		if err := a.dispatcher.ForceRender(f); err != nil {
			a.logError("切换动画渲染失败: %v", err)
			return
		}
		select {
		case <-ctx.Done():
			interrupted = true
			return
		case <-ticker.C:
		}
	}
}

func (a *Animator) logError(format string, v ...any) {
	if a.logger != nil {
		a.logger.Error(format, v...)
	}
}
