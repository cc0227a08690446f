// Package effect 提供灯效生命周期控制器和全部软件驱动灯效算法
package effect

import (
	"context"
	"fmt"
	"time"

	"github.com/earnest-s/LenovoLegionToolkit-sub000/internal/frame"
	"github.com/earnest-s/LenovoLegionToolkit-sub000/internal/types"
)

// Ops 灯效算法可用的全部硬件操作原语，由控制器实现。
// 算法只通过这组原语影响硬件，控制器和调度器对具体算法一无所知。
type Ops interface {
	SetColors(f frame.ZoneFrame) error
	SetZone(index int, c frame.RGBColor) error
	TransitionColors(ctx context.Context, target frame.ZoneFrame, steps, msPerStep int) error
	CurrentFrame() frame.ZoneFrame
}

// Effect 单个灯效算法。Run 是长期运行的动画循环：
// 维护单调的已流逝时间，按时间（而非迭代次数）计算下一帧，
// 每次迭代调用一次 Ops 原语，并以 ≈1ms 粒度响应取消。
type Effect interface {
	Name() string
	Run(ctx context.Context, ops Ops) error
}

// InputProvider 键盘输入信号源（外部协作方）
type InputProvider interface {
	TimeSinceLastKeypress() time.Duration
	LastKeyCode() uint32
	Keys() <-chan uint32
}

// ScreenProvider 屏幕取色信号源（外部协作方）
type ScreenProvider interface {
	ZoneColors() [frame.ZoneCount]frame.RGBColor
}

// SensorProvider 传感器信号源（外部协作方）
type SensorProvider interface {
	CPUTemperature() (float64, error)
}

// AudioSource 音频采样源（外部协作方）。
// 灯效退出时必须 Close，否则采集流和回调会一直挂着
type AudioSource interface {
	Samples() []float32
	SampleRate() float64
	Close() error
}

// Providers 响应式灯效依赖的外部信号源集合
type Providers struct {
	Input   InputProvider
	Screen  ScreenProvider
	Sensors SensorProvider
	// NewAudioSource 延迟初始化音频采集，失败时频谱灯效回退为怠速呼吸
	NewAudioSource func() (AudioSource, error)
	Logger         types.Logger
}

// New 按预设描述构造灯效实例（封闭的类型集合，以工厂分发）
func New(desc types.PresetDescriptor, p Providers) (Effect, error) {
	speed := desc.ClampSpeed()
	colors := descColors(desc)

	switch desc.Type {
	case types.EffectColorCycle:
		return newColorCycle(speed), nil
	case types.EffectColorAlternate:
		return newColorAlternate(colors, speed), nil
	case types.EffectStrobe:
		return newStrobe(speed), nil
	case types.EffectFlash:
		return newFlash(colors[0], speed), nil
	case types.EffectSwipeChange:
		return newSwipeChange(colors, speed), nil
	case types.EffectSwipeFill:
		return newSwipeFill(colors, speed), nil
	case types.EffectRipple:
		if p.Input == nil {
			return nil, fmt.Errorf("波纹灯效需要键盘输入信号源")
		}
		return newRipple(colors, speed, p.Input), nil
	case types.EffectFade:
		if p.Input == nil {
			return nil, fmt.Errorf("淡出灯效需要键盘输入信号源")
		}
		return newFade(colors, speed, p.Input), nil
	case types.EffectHeatLevel:
		if p.Sensors == nil {
			return nil, fmt.Errorf("温度灯效需要传感器信号源")
		}
		return newHeatLevel(speed, p.Sensors), nil
	case types.EffectAmbient:
		if p.Screen == nil {
			return nil, fmt.Errorf("氛围灯效需要屏幕取色信号源")
		}
		return newAmbient(p.Screen), nil
	case types.EffectSpectrumBars:
		return newSpectrum(spectrumBars, colors, p.NewAudioSource, p.Logger), nil
	case types.EffectSpectrumPulse:
		return newSpectrum(spectrumPulse, colors, p.NewAudioSource, p.Logger), nil
	case types.EffectHoliday:
		return newHoliday(colors), nil
	default:
		return nil, fmt.Errorf("未知的灯效类型: %s", desc.Type)
	}
}

// descColors 预设描述中的分区颜色转为帧颜色
func descColors(desc types.PresetDescriptor) frame.ZoneFrame {
	var out frame.ZoneFrame
	for i, c := range desc.Colors {
		out[i] = frame.RGBColor{R: byte(c.R), G: byte(c.G), B: byte(c.B)}
	}
	return out
}

// palette 取预设颜色中的非黑项作为调色板；全黑时退回默认三原色
func palette(colors frame.ZoneFrame) []frame.RGBColor {
	out := make([]frame.RGBColor, 0, frame.ZoneCount)
	for _, c := range colors {
		if c != frame.Black {
			out = append(out, c)
		}
	}
	if len(out) == 0 {
		out = []frame.RGBColor{{R: 255}, {G: 255}, {B: 255}}
	}
	return out
}

// sleep 可取消的延时。取消时返回 ctx.Err()，这是所有灯效循环的让出点。
func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
