package effect

import (
	"context"
	"time"

	"github.com/earnest-s/LenovoLegionToolkit-sub000/internal/frame"
)

// ZoneState 波纹状态机中单个分区的状态
type ZoneState int

const (
	ZoneOff    ZoneState = iota // 熄灭
	ZoneCenter                  // 波纹中心，下一步向两侧扩散
	ZoneLeft                    // 向左传播的波前
	ZoneRight                   // 向右传播的波前
)

// AdvanceZoneStates 推进波纹状态机一步：中心向两侧扩散成左右波前，
// 波前各自向边缘移动一格，越界即消失。
// 例如 [Off,Center,Off,Off] 推进后为 [Left,Off,Right,Off]。
func AdvanceZoneStates(states [frame.ZoneCount]ZoneState) [frame.ZoneCount]ZoneState {
	var next [frame.ZoneCount]ZoneState
	for i, s := range states {
		switch s {
		case ZoneCenter:
			if i-1 >= 0 {
				next[i-1] = ZoneLeft
			}
			if i+1 < frame.ZoneCount {
				next[i+1] = ZoneRight
			}
		case ZoneLeft:
			if i-1 >= 0 {
				next[i-1] = ZoneLeft
			}
		case ZoneRight:
			if i+1 < frame.ZoneCount {
				next[i+1] = ZoneRight
			}
		}
	}
	return next
}

// keyZone 虚拟键码映射到四个分区之一，未知键落在中部分区
func keyZone(code uint32) int {
	switch {
	case code >= 0x08 && code <= 0x2F: // 控制键、Tab、Esc 一侧
		return 0
	case code >= 0x30 && code <= 0x39: // 数字行
		return 1
	case code >= 0x41 && code <= 0x5A: // 字母区按左右对分
		if code <= 0x4D {
			return 1
		}
		return 2
	case code >= 0x60 && code <= 0x6F: // 小键盘
		return 3
	case code >= 0xBA: // OEM 符号键
		return 3
	default:
		return 1
	}
}

// ripple 波纹灯效：按键在对应分区激起波纹，向两侧扩散至边缘
type ripple struct {
	colors frame.ZoneFrame
	speed  int
	input  InputProvider
}

func newRipple(colors frame.ZoneFrame, speed int, input InputProvider) *ripple {
	return &ripple{colors: colors, speed: speed, input: input}
}

func (e *ripple) Name() string { return "波纹" }

func (e *ripple) zoneColor(i int) frame.RGBColor {
	if e.colors[i] != frame.Black {
		return e.colors[i]
	}
	return frame.RGBColor{R: 255, G: 255, B: 255}
}

func (e *ripple) Run(ctx context.Context, ops Ops) error {
	step := time.Duration(200/e.speed) * time.Millisecond
	ticker := time.NewTicker(step)
	defer ticker.Stop()

	var states [frame.ZoneCount]ZoneState
	if err := ops.SetColors(frame.Uniform(frame.Black)); err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case code := <-e.input.Keys():
			// 新按键直接落为中心，覆盖该分区已有的波前
			states[keyZone(code)] = ZoneCenter
		case <-ticker.C:
			states = AdvanceZoneStates(states)
		}
		var f frame.ZoneFrame
		for i, s := range states {
			if s != ZoneOff {
				f[i] = e.zoneColor(i)
			}
		}
		if err := ops.SetColors(f); err != nil {
			return err
		}
	}
}
