package effect

import (
	"context"
	"time"

	"github.com/earnest-s/LenovoLegionToolkit-sub000/internal/frame"
)

const heatPollPeriod = 200 * time.Millisecond

// heatLevel 温度灯效：按CPU温度在绿到红之间插值，整键盘同色。
// 传感器读取失败时保持上一帧颜色，等下一轮重试。
type heatLevel struct {
	speed   int
	sensors SensorProvider
}

func newHeatLevel(speed int, sensors SensorProvider) *heatLevel {
	return &heatLevel{speed: speed, sensors: sensors}
}

func (e *heatLevel) Name() string { return "温度" }

// heatFactor 温度换算为 [0,1] 的热度系数：20°C 以下为冷，82.5°C 起饱和
func heatFactor(temp float64) float64 {
	f := (temp - 20) / 100 * 1.6
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}

func (e *heatLevel) Run(ctx context.Context, ops Ops) error {
	cold := frame.RGBColor{G: 255}
	hot := frame.RGBColor{R: 255}
	for {
		temp, err := e.sensors.CPUTemperature()
		if err == nil {
			target := frame.Uniform(cold.Lerp(hot, heatFactor(temp)))
			if err := ops.TransitionColors(ctx, target, 5, 1); err != nil {
				return err
			}
		}
		if err := sleep(ctx, heatPollPeriod); err != nil {
			return err
		}
	}
}
