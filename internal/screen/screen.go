// Package screen 提供屏幕取色功能：把主显示器按纵向均分为四条区域，
// 每条区域的平均颜色映射到键盘对应分区
package screen

import (
	"image"
	"sync"

	"github.com/kbinani/screenshot"

	"github.com/earnest-s/LenovoLegionToolkit-sub000/internal/frame"
	"github.com/earnest-s/LenovoLegionToolkit-sub000/internal/types"
)

// pixelGridSize 取样步长, 每 N×N 像素取一个点, 换精度换速度
const pixelGridSize = 5

// Sampler 屏幕取色器
type Sampler struct {
	logger  types.Logger
	display int

	mu   sync.Mutex
	last [frame.ZoneCount]frame.RGBColor
}

// NewSampler 创建主显示器的屏幕取色器
func NewSampler(logger types.Logger) *Sampler {
	return &Sampler{logger: logger}
}

// ZoneColors 截取主显示器并返回四条纵向区域的平均颜色。
// 截屏失败时返回上一次的取样结果，氛围灯效对单帧丢失不敏感。
func (s *Sampler) ZoneColors() [frame.ZoneCount]frame.RGBColor {
	bounds := screenshot.GetDisplayBounds(s.display)
	img, err := screenshot.CaptureRect(bounds)
	if err != nil {
		s.logDebug("截屏失败: %v", err)
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.last
	}

	colors := SliceColors(img)

	s.mu.Lock()
	s.last = colors
	s.mu.Unlock()
	return colors
}

// SliceColors 把图像纵向均分为四条, 计算每条的平均颜色
func SliceColors(img *image.RGBA) [frame.ZoneCount]frame.RGBColor {
	var out [frame.ZoneCount]frame.RGBColor
	bounds := img.Bounds()
	width := bounds.Dx()
	if width == 0 || bounds.Dy() == 0 {
		return out
	}
	sliceWidth := width / frame.ZoneCount
	if sliceWidth == 0 {
		sliceWidth = 1
	}
	for i := 0; i < frame.ZoneCount; i++ {
		x0 := bounds.Min.X + i*sliceWidth
		x1 := x0 + sliceWidth
		if i == frame.ZoneCount-1 {
			x1 = bounds.Max.X
		}
		out[i] = averageColor(img, x0, x1, bounds.Min.Y, bounds.Max.Y)
	}
	return out
}

// averageColor 网格取样求区域平均颜色
func averageColor(img *image.RGBA, x0, x1, y0, y1 int) frame.RGBColor {
	var sumR, sumG, sumB, total uint64
	for y := y0; y < y1; y += pixelGridSize {
		for x := x0; x < x1; x += pixelGridSize {
			r, g, b, _ := img.At(x, y).RGBA()
			sumR += uint64(r)
			sumG += uint64(g)
			sumB += uint64(b)
			total++
		}
	}
	if total == 0 {
		return frame.Black
	}
	return frame.RGBColor{
		R: byte(float64(sumR/total) / 0xFFFF * 0xFF),
		G: byte(float64(sumG/total) / 0xFFFF * 0xFF),
		B: byte(float64(sumB/total) / 0xFFFF * 0xFF),
	}
}

func (s *Sampler) logDebug(format string, v ...any) {
	if s.logger != nil {
		s.logger.Debug(format, v...)
	}
}
