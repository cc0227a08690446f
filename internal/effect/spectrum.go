package effect

import (
	"context"
	"math"
	"time"

	"github.com/earnest-s/LenovoLegionToolkit-sub000/internal/frame"
	"github.com/earnest-s/LenovoLegionToolkit-sub000/internal/types"
	"github.com/earnest-s/LenovoLegionToolkit-sub000/internal/visualizer"
)

// spectrumVariant 频谱灯效的两种时序/归一化变体
type spectrumVariant int

const (
	spectrumBars  spectrumVariant = iota // 柱状：对数归一化，响应快
	spectrumPulse                        // 脉冲：自动增益，响应慢而平滑
)

// spectrumTick 帧节拍，约 60Hz
const spectrumTick = 16 * time.Millisecond

// spectrum 频谱灯效：采集系统音频，FFT分四个频带，
// 各频带能量驱动对应分区的亮度。音频初始化失败时回退为怠速呼吸。
type spectrum struct {
	variant  spectrumVariant
	colors   frame.ZoneFrame
	newAudio func() (AudioSource, error)
	logger   types.Logger
}

func newSpectrum(variant spectrumVariant, colors frame.ZoneFrame, newAudio func() (AudioSource, error), logger types.Logger) *spectrum {
	return &spectrum{variant: variant, colors: colors, newAudio: newAudio, logger: logger}
}

func (e *spectrum) Name() string {
	if e.variant == spectrumPulse {
		return "频谱·脉冲"
	}
	return "频谱·柱状"
}

func (e *spectrum) params() visualizer.Params {
	if e.variant == spectrumPulse {
		return visualizer.PulseParams()
	}
	return visualizer.BarsParams()
}

func (e *spectrum) zoneColor(i int) frame.RGBColor {
	if e.colors[i] != frame.Black {
		return e.colors[i]
	}
	return frame.RGBColor{R: 255, G: 255, B: 255}
}

func (e *spectrum) Run(ctx context.Context, ops Ops) error {
	if e.newAudio == nil {
		return e.idleBreathing(ctx, ops)
	}
	audio, err := e.newAudio()
	if err != nil {
		if e.logger != nil {
			e.logger.Warn("音频采集初始化失败，频谱灯效回退为怠速呼吸: %v", err)
		}
		return e.idleBreathing(ctx, ops)
	}
	defer func() {
		if cerr := audio.Close(); cerr != nil && e.logger != nil {
			e.logger.Debug("关闭音频采集失败: %v", cerr)
		}
	}()

	pipeline := visualizer.NewPipeline(e.params(), audio.SampleRate())
	last := time.Now()
	for {
		if err := sleep(ctx, spectrumTick); err != nil {
			return err
		}
		now := time.Now()
		levels := pipeline.Step(audio.Samples(), now.Sub(last))
		last = now

		var f frame.ZoneFrame
		for i := range f {
			f[i] = e.zoneColor(i).Scale(levels[i])
		}
		if err := ops.SetColors(f); err != nil {
			return err
		}
	}
}

// idleBreathing 无音频时的兜底动画：整键盘缓慢呼吸
func (e *spectrum) idleBreathing(ctx context.Context, ops Ops) error {
	const period = 4 * time.Second
	began := time.Now()
	for {
		phase := float64(time.Since(began)%period) / float64(period)
		level := 0.15 + 0.35*0.5*(1-math.Cos(2*math.Pi*phase))
		var f frame.ZoneFrame
		for i := range f {
			f[i] = e.zoneColor(i).Scale(level)
		}
		if err := ops.SetColors(f); err != nil {
			return err
		}
		if err := sleep(ctx, spectrumTick); err != nil {
			return err
		}
	}
}
