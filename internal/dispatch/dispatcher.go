// Package dispatch 提供帧调度器：所有硬件写入的唯一串行化点
package dispatch

import (
	"sync"

	"github.com/earnest-s/LenovoLegionToolkit-sub000/internal/device"
	"github.com/earnest-s/LenovoLegionToolkit-sub000/internal/frame"
	"github.com/earnest-s/LenovoLegionToolkit-sub000/internal/types"
)

// RecordWriter 定义了调度器如何向设备网关下发状态记录的接口
type RecordWriter interface {
	Write(rec device.StateRecord) error
}

// Dispatcher 帧调度器。持有设备写互斥锁、覆盖标志和最近渲染帧的广播。
// 运行中的灯效与过渡动画之间的仲裁全部在这里完成：
// 覆盖标志置位期间，普通渲染路径的帧被静默丢弃（不排队、不缓冲）。
type Dispatcher struct {
	writer RecordWriter
	logger types.Logger

	// mu 串行化所有设备写入，覆盖标志和亮度也只在持锁时读写，
	// 保证字节级别不会交错，也保证 ClearOverrideAndRender 的原子性
	mu         sync.Mutex
	override   bool
	brightness byte

	subMu       sync.RWMutex
	subscribers []func(frame.ZoneFrame)
}

// NewDispatcher 创建帧调度器
func NewDispatcher(writer RecordWriter, logger types.Logger) *Dispatcher {
	return &Dispatcher{
		writer:     writer,
		logger:     logger,
		brightness: device.BrightnessHigh,
	}
}

// Subscribe 订阅每一个应当可见的渲染帧（用于前端展示等消费方）
func (d *Dispatcher) Subscribe(fn func(frame.ZoneFrame)) {
	d.subMu.Lock()
	d.subscribers = append(d.subscribers, fn)
	d.subMu.Unlock()
}

func (d *Dispatcher) publish(f frame.ZoneFrame) {
	d.subMu.RLock()
	subs := d.subscribers
	d.subMu.RUnlock()
	for _, fn := range subs {
		fn(f)
	}
}

// SetBrightness 设置统一应用于每次分区着色写入的亮度挡位
func (d *Dispatcher) SetBrightness(code byte) {
	d.mu.Lock()
	d.brightness = code
	d.mu.Unlock()
}

// Brightness 当前亮度挡位
func (d *Dispatcher) Brightness() byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.brightness
}

// SetOverride 置位/清除覆盖标志（过渡动画开始时置位）
func (d *Dispatcher) SetOverride(active bool) {
	d.mu.Lock()
	d.override = active
	d.mu.Unlock()
}

// OverrideActive 覆盖标志当前状态
func (d *Dispatcher) OverrideActive() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.override
}

// Render 经门控的渲染路径，仅供当前运行的灯效使用。
// 覆盖标志置位时帧被静默丢弃：既不写硬件，也不对外发布。
func (d *Dispatcher) Render(f frame.ZoneFrame) error {
	d.mu.Lock()
	if d.override {
		d.mu.Unlock()
		return nil
	}
	err := d.writeFrameLocked(f)
	d.mu.Unlock()

	if err != nil {
		return err
	}
	d.publish(f)
	return nil
}

// ForceRender 与 Render 相同的写入/发布路径，但无视覆盖标志。
// 仅供过渡动画和门控释放后的恢复路径使用。
func (d *Dispatcher) ForceRender(f frame.ZoneFrame) error {
	d.mu.Lock()
	err := d.writeFrameLocked(f)
	d.mu.Unlock()

	if err != nil {
		return err
	}
	d.publish(f)
	return nil
}

// ClearOverrideAndRender 清除覆盖标志并立即强制渲染给定帧，两者在同一临界区内完成。
// 恢复必须与门控释放原子：外设若有一个刷新间隔无人驱动就会回落到默认白光。
func (d *Dispatcher) ClearOverrideAndRender(f frame.ZoneFrame) error {
	d.mu.Lock()
	d.override = false
	err := d.writeFrameLocked(f)
	d.mu.Unlock()

	if err != nil {
		return err
	}
	d.publish(f)
	return nil
}

// RenderPreview 只发布不写硬件，用于固件自渲染动画的模拟展示
func (d *Dispatcher) RenderPreview(f frame.ZoneFrame) {
	d.publish(f)
}

// SendFirmwareCommand 原样写入一条状态记录（预设/关灯切换），不发布展示帧：
// 之后的视觉效果由固件自己渲染，引擎不合成展示帧
func (d *Dispatcher) SendFirmwareCommand(rec device.StateRecord) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.writer.Write(rec)
}

// SetStaticMode 写入一次性的“进入手动分区着色模式”命令。
// 灯效开始调用 Render 之前必须恰好调用一次，否则固件会忽略分区着色写入。
func (d *Dispatcher) SetStaticMode() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.writer.Write(device.StaticRecord(frame.ZoneFrame{}, d.brightness))
}

// writeFrameLocked 构造状态记录并写入（调用方必须持有 mu）
func (d *Dispatcher) writeFrameLocked(f frame.ZoneFrame) error {
	rec := device.StateRecord{
		Effect:     device.EffectCodeStatic,
		Speed:      1,
		Brightness: d.brightness,
		Zones:      f,
	}
	return d.writer.Write(rec)
}
