// Package device - 状态记录（feature report）的二进制布局
package device

import (
	"github.com/earnest-s/LenovoLegionToolkit-sub000/internal/frame"
)

// 固件灯效代码
const (
	EffectCodeOff    byte = 0
	EffectCodeStatic byte = 1
	EffectCodeBreath byte = 3
	EffectCodeWave   byte = 4
	EffectCodeSmooth byte = 6
)

// 亮度挡位代码（0/1/2）
const (
	BrightnessLow    byte = 0
	BrightnessMedium byte = 1
	BrightnessHigh   byte = 2
)

// feature report 布局常量
const (
	// ReportID 背光控制端点的报告ID
	ReportID byte = 0x07
	// ReportLength 含报告ID的完整报文长度
	ReportLength = 33

	headerByte0 byte = 0xCC
	headerByte1 byte = 0x16
)

// StateRecord 对应外设 feature report 的固定布局记录。
// 每次下发时重新构造，绝不原地修改。
type StateRecord struct {
	Effect     byte
	Speed      byte
	Brightness byte
	Zones      frame.ZoneFrame
	WaveLTR    bool
	WaveRTL    bool
}

// Report 序列化为完整 feature report：
// [报告ID, CC, 16, 灯效, 速度, 亮度, 4×3分区RGB, 波浪LTR, 波浪RTL, 填充, 保留...]
func (r StateRecord) Report() [ReportLength]byte {
	var buf [ReportLength]byte
	buf[0] = ReportID
	buf[1] = headerByte0
	buf[2] = headerByte1
	buf[3] = r.Effect
	buf[4] = r.Speed
	buf[5] = r.Brightness
	zones := r.Zones.Bytes()
	copy(buf[6:18], zones[:])
	if r.WaveLTR {
		buf[18] = 0x01
	}
	if r.WaveRTL {
		buf[19] = 0x01
	}
	// buf[20] 填充，其余字节保留为0
	return buf
}

// StaticRecord 构造“进入手动分区着色模式”的一次性命令记录
func StaticRecord(zones frame.ZoneFrame, brightness byte) StateRecord {
	return StateRecord{
		Effect:     EffectCodeStatic,
		Speed:      1,
		Brightness: brightness,
		Zones:      zones,
	}
}

// OffRecord 构造关灯命令记录
func OffRecord() StateRecord {
	return StateRecord{Effect: EffectCodeOff}
}
