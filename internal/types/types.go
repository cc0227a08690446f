// Package types 定义了键盘背光引擎中使用的所有共享类型
package types

// EffectType 灯效类型标签
type EffectType string

const (
	// 固件内置灯效（由键盘固件自行渲染）
	EffectOff    EffectType = "off"
	EffectStatic EffectType = "static"
	EffectBreath EffectType = "breath"
	EffectWave   EffectType = "wave"
	EffectSmooth EffectType = "smooth"

	// 软件驱动灯效（由本引擎逐帧渲染）
	EffectColorCycle     EffectType = "color_cycle"
	EffectColorAlternate EffectType = "color_alternate"
	EffectStrobe         EffectType = "strobe"
	EffectFlash          EffectType = "flash"
	EffectSwipeChange    EffectType = "swipe_change"
	EffectSwipeFill      EffectType = "swipe_fill"
	EffectRipple         EffectType = "ripple"
	EffectFade           EffectType = "fade"
	EffectHeatLevel      EffectType = "heat_level"
	EffectAmbient        EffectType = "ambient"
	EffectSpectrumBars   EffectType = "spectrum_bars"
	EffectSpectrumPulse  EffectType = "spectrum_pulse"
	EffectHoliday        EffectType = "holiday"
)

// IsFirmware 判断灯效是否由固件渲染（固件灯效不需要引擎的逐帧循环）
func (t EffectType) IsFirmware() bool {
	switch t {
	case EffectOff, EffectStatic, EffectBreath, EffectWave, EffectSmooth:
		return true
	}
	return false
}

// WaveDirection 波浪灯效方向
type WaveDirection string

const (
	WaveLTR WaveDirection = "ltr"
	WaveRTL WaveDirection = "rtl"
)

// ColorValue 预设中的单个颜色
type ColorValue struct {
	R int `json:"r"`
	G int `json:"g"`
	B int `json:"b"`
}

// PresetDescriptor 灯效预设描述：类型 + 分区颜色 + 速度(1-4) + 方向
type PresetDescriptor struct {
	Type      EffectType    `json:"type"`
	Colors    [4]ColorValue `json:"colors"`
	Speed     int           `json:"speed"`
	Direction WaveDirection `json:"direction,omitempty"`
}

// ClampSpeed 将速度限制在 1-4 挡
func (d PresetDescriptor) ClampSpeed() int {
	if d.Speed < 1 {
		return 1
	}
	if d.Speed > 4 {
		return 4
	}
	return d.Speed
}

// AppConfig 应用配置（持久化的预设仓库）
type AppConfig struct {
	SelectedPreset string                      `json:"selectedPreset"` // 当前预设名称
	Presets        map[string]PresetDescriptor `json:"presets"`        // 已知预设集合
	Brightness     int                         `json:"brightness"`     // 亮度挡位 0/1/2
	DebugMode      bool                        `json:"debugMode"`      // 调试模式
	ConfigPath     string                      `json:"configPath"`     // 配置文件路径
}

// Logger 日志记录器接口
type Logger interface {
	Info(format string, v ...any)
	Error(format string, v ...any)
	Warn(format string, v ...any)
	Debug(format string, v ...any)
	Close()
	CleanOldLogs()
	SetDebugMode(enabled bool)
	GetLogDir() string
}

// GetDefaultPresets 获取默认预设集合
func GetDefaultPresets() map[string]PresetDescriptor {
	white := ColorValue{R: 255, G: 255, B: 255}
	return map[string]PresetDescriptor{
		"默认静态": {
			Type:   EffectStatic,
			Colors: [4]ColorValue{white, white, white, white},
			Speed:  2,
		},
		"彩色循环": {
			Type:   EffectColorCycle,
			Colors: [4]ColorValue{white, white, white, white},
			Speed:  2,
		},
		"音乐律动": {
			Type: EffectSpectrumBars,
			Colors: [4]ColorValue{
				{R: 0, G: 0, B: 255}, {R: 0, G: 255, B: 0},
				{R: 255, G: 255, B: 0}, {R: 255, G: 0, B: 0},
			},
			Speed: 3,
		},
	}
}

// GetDefaultConfig 获取默认配置
func GetDefaultConfig() AppConfig {
	return AppConfig{
		SelectedPreset: "默认静态",
		Presets:        GetDefaultPresets(),
		Brightness:     2,
		DebugMode:      false,
	}
}
