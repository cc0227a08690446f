// Package visualizer 提供音频频谱到四分区亮度的信号处理管线：
// 加窗 → FFT → 分频段能量 → 归一化 → 攻击/衰减包络
package visualizer

import (
	"math"
	"time"

	"github.com/mjibson/go-dsp/fft"
)

// NormMode 归一化方式
type NormMode int

const (
	// NormLog 对数压缩 log10(1+k·x)
	NormLog NormMode = iota
	// NormAGC 自适应增益：对加权能量和做慢速EMA，用它归一化瞬时值
	NormAGC
)

// Band 单个频段的边界（Hz）
type Band struct {
	Low  float64
	High float64
}

// Params 管线参数。两套频谱灯效的参数各自独立，互不归并。
type Params struct {
	FFTSize int
	Bands   [4]Band
	Gains   [4]float64

	Mode     NormMode
	LogBoost float64 // NormLog: 压缩系数 k

	AGCWeights [4]float64    // NormAGC: 能量加权
	AGCTau     time.Duration // NormAGC: EMA 时间常数
	AGCMinRef  float64       // NormAGC: 参考值下限
	AGCMaxRef  float64       // NormAGC: 参考值上限

	AttackTau time.Duration
	DecayTau  time.Duration
	Floor     float64 // 包络下限，正常播放时分区不会完全熄灭
}

// BarsParams “频谱柱”变体参数
func BarsParams() Params {
	return Params{
		FFTSize: 2048,
		Bands: [4]Band{
			{Low: 20, High: 150},
			{Low: 150, High: 600},
			{Low: 600, High: 2500},
			{Low: 2500, High: 8000},
		},
		Gains:     [4]float64{1.0, 1.4, 1.8, 2.4},
		Mode:      NormLog,
		LogBoost:  9,
		AttackTau: 30 * time.Millisecond,
		DecayTau:  250 * time.Millisecond,
		Floor:     0.04,
	}
}

// PulseParams “频谱脉冲”变体参数（时序模型与柱状变体无关，保持独立）
func PulseParams() Params {
	return Params{
		FFTSize: 2048,
		Bands: [4]Band{
			{Low: 20, High: 250},
			{Low: 250, High: 2000},
			{Low: 2000, High: 6000},
			{Low: 6000, High: 12000},
		},
		Gains:      [4]float64{1.0, 1.2, 1.6, 2.0},
		Mode:       NormAGC,
		AGCWeights: [4]float64{2.0, 1.5, 1.0, 0.5},
		AGCTau:     2 * time.Second,
		AGCMinRef:  0.002,
		AGCMaxRef:  0.5,
		AttackTau:  45 * time.Millisecond,
		DecayTau:   400 * time.Millisecond,
		Floor:      0.03,
	}
}

// Pipeline 渲染期的频谱管线，持有预计算窗函数和包络状态
type Pipeline struct {
	params     Params
	sampleRate float64
	window     []float64
	workspace  []float64

	agcAvg float64
	levels [4]float64
}

// NewPipeline 创建频谱管线
func NewPipeline(p Params, sampleRate float64) *Pipeline {
	if p.FFTSize <= 0 {
		p.FFTSize = 2048
	}
	pl := &Pipeline{
		params:     p,
		sampleRate: sampleRate,
		window:     make([]float64, p.FFTSize),
		workspace:  make([]float64, p.FFTSize),
	}
	// Hann 窗 0.5×(1−cos(2π·i/(N−1)))
	n := float64(p.FFTSize - 1)
	for i := range pl.window {
		pl.window[i] = 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/n))
	}
	return pl
}

// Step 处理一帧：最近的采样 + 距上帧的时间 → 四个分区亮度 [0,1]
func (pl *Pipeline) Step(samples []float32, dt time.Duration) [4]float64 {
	spectrum := pl.transform(samples)
	energies := pl.BandEnergies(spectrum)
	targets := pl.normalize(energies, dt)
	return pl.envelope(targets, dt)
}

// transform 加窗并做FFT，返回完整频谱
func (pl *Pipeline) transform(samples []float32) []complex128 {
	n := pl.params.FFTSize
	for i := 0; i < n; i++ {
		if i < len(samples) {
			pl.workspace[i] = float64(samples[i]) * pl.window[i]
		} else {
			pl.workspace[i] = 0
		}
	}
	return fft.FFTReal(pl.workspace)
}

// BandEnergies 计算四个频段的平均幅值。
// 频率边界换算为 bin = freq/(sampleRate/N)，钳制到 [1, N/2−1]；
// 空频段（bin数为0）能量为0，不做除法。
func (pl *Pipeline) BandEnergies(spectrum []complex128) [4]float64 {
	var out [4]float64
	n := len(spectrum)
	if n == 0 {
		return out
	}
	binWidth := pl.sampleRate / float64(n)
	nyquist := n/2 - 1

	for i, band := range pl.params.Bands {
		lo := int(band.Low / binWidth)
		hi := int(band.High / binWidth)
		if lo < 1 {
			lo = 1
		}
		if hi > nyquist {
			hi = nyquist
		}
		if lo > hi {
			continue
		}
		sum := 0.0
		for b := lo; b <= hi; b++ {
			re, im := real(spectrum[b]), imag(spectrum[b])
			sum += math.Sqrt(re*re + im*im)
		}
		out[i] = sum / float64(hi-lo+1) / float64(n)
	}
	return out
}

// normalize 按配置的归一化方式把原始能量映射为 [0,1] 目标值
func (pl *Pipeline) normalize(energies [4]float64, dt time.Duration) [4]float64 {
	var out [4]float64
	switch pl.params.Mode {
	case NormAGC:
		sum := 0.0
		for i, e := range energies {
			sum += e * pl.params.AGCWeights[i]
		}
		coeff := emaCoeff(clampDelta(dt), pl.params.AGCTau)
		pl.agcAvg += (sum - pl.agcAvg) * coeff
		ref := pl.agcAvg
		if ref < pl.params.AGCMinRef {
			ref = pl.params.AGCMinRef
		}
		if ref > pl.params.AGCMaxRef {
			ref = pl.params.AGCMaxRef
		}
		for i, e := range energies {
			out[i] = clamp01(e * pl.params.Gains[i] / ref)
		}
	default:
		denom := math.Log10(1 + pl.params.LogBoost)
		for i, e := range energies {
			out[i] = clamp01(math.Log10(1+pl.params.LogBoost*pl.params.Gains[i]*e*40) / denom)
		}
	}
	return out
}

// envelope 非对称攻击/衰减包络，速率随帧间隔缩放，与帧率无关
func (pl *Pipeline) envelope(targets [4]float64, dt time.Duration) [4]float64 {
	d := clampDelta(dt)
	for i, target := range targets {
		tau := pl.params.DecayTau
		if target > pl.levels[i] {
			tau = pl.params.AttackTau
		}
		pl.levels[i] += (target - pl.levels[i]) * emaCoeff(d, tau)
		if pl.levels[i] < pl.params.Floor {
			pl.levels[i] = pl.params.Floor
		}
		if pl.levels[i] > 1 {
			pl.levels[i] = 1
		}
	}
	return pl.levels
}

// clampDelta 把帧间隔钳制到合理范围，避免调度停顿后包络跳变
func clampDelta(dt time.Duration) time.Duration {
	if dt < time.Millisecond {
		return time.Millisecond
	}
	if dt > 100*time.Millisecond {
		return 100 * time.Millisecond
	}
	return dt
}

// emaCoeff 指数趋近系数 1-e^(-dt/τ)
func emaCoeff(dt, tau time.Duration) float64 {
	if tau <= 0 {
		return 1
	}
	return 1 - math.Exp(-float64(dt)/float64(tau))
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
