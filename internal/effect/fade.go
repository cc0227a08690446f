package effect

import (
	"context"
	"time"

	"github.com/earnest-s/LenovoLegionToolkit-sub000/internal/frame"
)

const (
	fadeSteps       = 230
	fadeStepPeriod  = 3 * time.Millisecond
	fadePollPeriod  = 10 * time.Millisecond
	fadeBaseTimeout = 20 * time.Second
)

// fade 淡出灯效：静态显示预设颜色，键盘空闲超过阈值后缓慢淡出到黑，
// 任意按键立即恢复满亮度
type fade struct {
	colors frame.ZoneFrame
	speed  int
	input  InputProvider
}

func newFade(colors frame.ZoneFrame, speed int, input InputProvider) *fade {
	return &fade{colors: colors, speed: speed, input: input}
}

func (e *fade) Name() string { return "淡出" }

func (e *fade) threshold() time.Duration {
	return fadeBaseTimeout / time.Duration(e.speed)
}

func (e *fade) Run(ctx context.Context, ops Ops) error {
	threshold := e.threshold()
	if err := ops.SetColors(e.colors); err != nil {
		return err
	}
	for {
		if e.input.TimeSinceLastKeypress() < threshold {
			if err := ops.SetColors(e.colors); err != nil {
				return err
			}
			if err := sleep(ctx, fadePollPeriod); err != nil {
				return err
			}
			continue
		}
		if err := e.fadeOut(ctx, ops, threshold); err != nil {
			return err
		}
		// 保持全黑直到下一次按键
		for e.input.TimeSinceLastKeypress() >= threshold {
			if err := sleep(ctx, fadePollPeriod); err != nil {
				return err
			}
		}
	}
}

// fadeOut 分步淡出到黑，途中出现按键则立即恢复并中止
func (e *fade) fadeOut(ctx context.Context, ops Ops, threshold time.Duration) error {
	for step := 1; step <= fadeSteps; step++ {
		if e.input.TimeSinceLastKeypress() < threshold {
			return ops.SetColors(e.colors)
		}
		progress := float64(step) / float64(fadeSteps)
		if err := ops.SetColors(e.colors.Lerp(frame.Uniform(frame.Black), progress)); err != nil {
			return err
		}
		if err := sleep(ctx, fadeStepPeriod); err != nil {
			return err
		}
	}
	return nil
}
