package effect

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/earnest-s/LenovoLegionToolkit-sub000/internal/dispatch"
	"github.com/earnest-s/LenovoLegionToolkit-sub000/internal/frame"
	"github.com/earnest-s/LenovoLegionToolkit-sub000/internal/types"
)

// ErrOwnershipConflict 其它控制软件正在占用灯控通道
var ErrOwnershipConflict = errors.New("其它控制软件正在占用灯控通道")

// State 控制器生命周期状态
type State int

const (
	StateIdle State = iota
	StateStarting
	StateRunning
	StateStopping
)

// SupportChecker 设备在位检查
type SupportChecker interface {
	IsSupported() bool
}

// OwnershipChecker 冲突软件检查：Enabled 为真时所有变更操作必须快速失败
type OwnershipChecker interface {
	Enabled() bool
}

// Controller 灯效生命周期控制器。
// 持有当前运行的灯效任务，强制同一时刻至多一个灯效；
// 向灯效算法暴露 SetColors/SetZone/TransitionColors 原语，
// 所有写入都经过帧调度器的门控渲染路径。
type Controller struct {
	dispatcher *dispatch.Dispatcher
	support    SupportChecker
	ownership  OwnershipChecker
	logger     types.Logger

	// restart 门控释放时无灯效在跑的冷恢复路径（由上层接回当前预设）
	restart func()

	// startMu 串行化整个“停旧起新”序列，并发的 StartEffect 依次排队
	startMu sync.Mutex

	mu      sync.Mutex
	state   State
	cancel  context.CancelFunc
	done    chan struct{}
	running Effect

	frameMu sync.Mutex
	current frame.ZoneFrame
}

// NewController 创建灯效生命周期控制器
func NewController(d *dispatch.Dispatcher, support SupportChecker, ownership OwnershipChecker, logger types.Logger) *Controller {
	return &Controller{
		dispatcher: d,
		support:    support,
		ownership:  ownership,
		logger:     logger,
	}
}

// SetRestartHandler 设置冷恢复回调
func (c *Controller) SetRestartHandler(fn func()) {
	c.restart = fn
}

// State 当前生命周期状态
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// IsRunning 是否有灯效在运行
func (c *Controller) IsRunning() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == StateRunning && c.done != nil
}

// StartEffect 启动灯效。先阻塞停掉任何在跑的灯效，再校验设备与占用状态，
// 下发一次静态模式命令，最后在全新的取消作用域里启动灯效循环。
// 整个序列持有启动锁，并发调用排队执行，任何时刻至多一个灯效在途。
func (c *Controller) StartEffect(e Effect) error {
	c.startMu.Lock()
	defer c.startMu.Unlock()

	c.StopEffect()

	if c.support != nil && !c.support.IsSupported() {
		return errors.New("背光设备不存在或不受支持")
	}
	if c.ownership != nil && c.ownership.Enabled() {
		return ErrOwnershipConflict
	}

	c.mu.Lock()
	c.state = StateStarting
	c.mu.Unlock()

	if err := c.dispatcher.SetStaticMode(); err != nil {
		c.mu.Lock()
		c.state = StateIdle
		c.mu.Unlock()
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	c.mu.Lock()
	c.cancel = cancel
	c.done = done
	c.running = e
	c.state = StateRunning
	c.mu.Unlock()

	go c.runLoop(ctx, e, done)

	c.logInfo("灯效已启动: %s", e.Name())
	return nil
}

// runLoop 灯效循环的宿主协程。灯效体抛出的异常在这里兜底，
// 取消是预期结果，不当作错误记录。
func (c *Controller) runLoop(ctx context.Context, e Effect, done chan struct{}) {
	defer func() {
		if r := recover(); r != nil {
			c.logError("灯效 %s 发生Panic: %v", e.Name(), r)
		}
		// 自然终止时收回状态；若是 StopEffect 在等，清理由它完成
		c.mu.Lock()
		if c.done == done && c.state == StateRunning {
			c.state = StateIdle
			c.cancel = nil
			c.done = nil
			c.running = nil
		}
		c.mu.Unlock()
		close(done)
	}()

	err := e.Run(ctx, c)
	switch {
	case err == nil:
	case errors.Is(err, context.Canceled):
		// 预期的取消信号，吞掉
	default:
		c.logError("灯效 %s 异常终止: %v", e.Name(), err)
	}
}

// StopEffect 停止当前灯效。发出取消信号并等待循环真正退出后才返回，
// 保证绝不会有两个灯效同时在途。已是空闲时为幂等操作。
func (c *Controller) StopEffect() {
	c.mu.Lock()
	if c.done == nil {
		c.mu.Unlock()
		return
	}
	done := c.done
	cancel := c.cancel
	c.state = StateStopping
	c.mu.Unlock()

	cancel()
	<-done

	c.mu.Lock()
	if c.done == done {
		c.state = StateIdle
		c.cancel = nil
		c.done = nil
		c.running = nil
	}
	c.mu.Unlock()
}

// CurrentFrame 最近一次计算出的帧（用于门控释放后的立即重放）
func (c *Controller) CurrentFrame() frame.ZoneFrame {
	c.frameMu.Lock()
	defer c.frameMu.Unlock()
	return c.current
}

// SetColors 更新当前颜色缓存并走调度器的门控渲染路径（覆盖期间被丢弃）
func (c *Controller) SetColors(f frame.ZoneFrame) error {
	c.frameMu.Lock()
	c.current = f
	c.frameMu.Unlock()
	return c.dispatcher.Render(f)
}

// SetZone 只改一个分区的颜色
func (c *Controller) SetZone(index int, col frame.RGBColor) error {
	if index < 0 || index >= frame.ZoneCount {
		return nil
	}
	c.frameMu.Lock()
	f := c.current
	c.frameMu.Unlock()
	f[index] = col
	return c.SetColors(f)
}

// TransitionColors 从最近渲染的颜色到 target 做逐通道线性插值，
// 总时长 steps×msPerStep 毫秒。进度由流逝的墙钟时间驱动而非固定的
// 迭代计数，调度抖动或进程被后台化都不影响动画速度。
// steps ≤ 0 退化为立即 SetColors。
func (c *Controller) TransitionColors(ctx context.Context, target frame.ZoneFrame, steps, msPerStep int) error {
	if steps <= 0 {
		return c.SetColors(target)
	}
	start := c.CurrentFrame()
	total := time.Duration(steps) * time.Duration(msPerStep) * time.Millisecond
	began := time.Now()

	for {
		elapsed := time.Since(began)
		if elapsed >= total {
			break
		}
		progress := float64(elapsed) / float64(total)
		if err := c.SetColors(start.Lerp(target, progress)); err != nil {
			return err
		}
		step := time.Duration(msPerStep) * time.Millisecond
		if step < time.Millisecond {
			step = time.Millisecond
		}
		if err := sleep(ctx, step); err != nil {
			return err
		}
	}
	// 最终发出的帧必须精确等于目标
	return c.SetColors(target)
}

// ResumeFromOverride 过渡动画结束后的恢复入口。
// 有灯效在跑：清除覆盖标志并强制渲染缓存帧，两者是同一个可观测单元，
// 不留任何一个无人驱动显示的帧间隔；
// 没有灯效在跑：清除覆盖标志后走冷恢复回调重新拉起预设。
func (c *Controller) ResumeFromOverride() error {
	if c.IsRunning() {
		return c.dispatcher.ClearOverrideAndRender(c.CurrentFrame())
	}
	c.dispatcher.SetOverride(false)
	if c.restart != nil {
		c.restart()
	}
	return nil
}

func (c *Controller) logInfo(format string, v ...any) {
	if c.logger != nil {
		c.logger.Info(format, v...)
	}
}

func (c *Controller) logError(format string, v ...any) {
	if c.logger != nil {
		c.logger.Error(format, v...)
	}
}
