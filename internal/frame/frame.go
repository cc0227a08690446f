// Package frame 定义四分区键盘背光的颜色帧值类型
package frame

import "math"

// ZoneCount 可独立寻址的分区数量（物理上从左到右）
const ZoneCount = 4

// RGBColor 单个RGB颜色，不可变值
type RGBColor struct {
	R, G, B byte
}

// Black 全黑
var Black = RGBColor{}

// Scale 按 [0,1] 系数缩放亮度
func (c RGBColor) Scale(factor float64) RGBColor {
	if factor < 0 {
		factor = 0
	}
	if factor > 1 {
		factor = 1
	}
	return RGBColor{
		R: byte(math.Round(float64(c.R) * factor)),
		G: byte(math.Round(float64(c.G) * factor)),
		B: byte(math.Round(float64(c.B) * factor)),
	}
}

// Lerp 按 progress∈[0,1] 在 c 与 target 之间逐通道线性插值
func (c RGBColor) Lerp(target RGBColor, progress float64) RGBColor {
	if progress <= 0 {
		return c
	}
	if progress >= 1 {
		return target
	}
	lerp := func(a, b byte) byte {
		v := math.Round(float64(a) + (float64(b)-float64(a))*progress)
		if v < 0 {
			v = 0
		}
		if v > 255 {
			v = 255
		}
		return byte(v)
	}
	return RGBColor{R: lerp(c.R, target.R), G: lerp(c.G, target.G), B: lerp(c.B, target.B)}
}

// Saturate 在HSV空间将饱和度拉满，保留色相和明度
func (c RGBColor) Saturate() RGBColor {
	r, g, b := float64(c.R)/255, float64(c.G)/255, float64(c.B)/255
	maxV := math.Max(r, math.Max(g, b))
	minV := math.Min(r, math.Min(g, b))
	if maxV == minV {
		// 灰色没有色相，保持原样
		return c
	}
	d := maxV - minV
	var h float64
	switch maxV {
	case r:
		h = math.Mod((g-b)/d, 6)
	case g:
		h = (b-r)/d + 2
	default:
		h = (r-g)/d + 4
	}
	h *= 60
	if h < 0 {
		h += 360
	}
	return FromHSV(h, 1, maxV)
}

// FromHSV 由 HSV 构造颜色，h∈[0,360) s,v∈[0,1]
func FromHSV(h, s, v float64) RGBColor {
	c := v * s
	x := c * (1 - math.Abs(math.Mod(h/60, 2)-1))
	m := v - c
	var r, g, b float64
	switch {
	case h < 60:
		r, g, b = c, x, 0
	case h < 120:
		r, g, b = x, c, 0
	case h < 180:
		r, g, b = 0, c, x
	case h < 240:
		r, g, b = 0, x, c
	case h < 300:
		r, g, b = x, 0, c
	default:
		r, g, b = c, 0, x
	}
	return RGBColor{
		R: byte(math.Round((r + m) * 255)),
		G: byte(math.Round((g + m) * 255)),
		B: byte(math.Round((b + m) * 255)),
	}
}

// ZoneFrame 恰好4个分区颜色，始终完整填充（没有部分帧）
type ZoneFrame [ZoneCount]RGBColor

// Uniform 构造四区同色帧
func Uniform(c RGBColor) ZoneFrame {
	return ZoneFrame{c, c, c, c}
}

// RotateRight 所有分区颜色向右挪一位（最右回绕到最左）
func (f ZoneFrame) RotateRight() ZoneFrame {
	return ZoneFrame{f[3], f[0], f[1], f[2]}
}

// RotateLeft 所有分区颜色向左挪一位
func (f ZoneFrame) RotateLeft() ZoneFrame {
	return ZoneFrame{f[1], f[2], f[3], f[0]}
}

// Scale 整帧按亮度系数缩放
func (f ZoneFrame) Scale(factor float64) ZoneFrame {
	var out ZoneFrame
	for i, c := range f {
		out[i] = c.Scale(factor)
	}
	return out
}

// Lerp 整帧逐分区线性插值
func (f ZoneFrame) Lerp(target ZoneFrame, progress float64) ZoneFrame {
	var out ZoneFrame
	for i, c := range f {
		out[i] = c.Lerp(target[i], progress)
	}
	return out
}

// Bytes 序列化为12字节扁平序列 [R1,G1,B1,...,R4,G4,B4]
func (f ZoneFrame) Bytes() [ZoneCount * 3]byte {
	var out [ZoneCount * 3]byte
	for i, c := range f {
		out[i*3], out[i*3+1], out[i*3+2] = c.R, c.G, c.B
	}
	return out
}

// FromBytes 由12字节扁平序列还原帧
func FromBytes(b [ZoneCount * 3]byte) ZoneFrame {
	var f ZoneFrame
	for i := 0; i < ZoneCount; i++ {
		f[i] = RGBColor{R: b[i*3], G: b[i*3+1], B: b[i*3+2]}
	}
	return f
}
