package effect

import (
	"context"
	"time"
)

// ambientPeriod 屏幕取样间隔，上限约 30Hz
const ambientPeriod = 33 * time.Millisecond

// ambient 氛围灯效：屏幕四个纵向区域的平均颜色映射到对应分区，
// 饱和度拉满避免大片灰白
type ambient struct {
	screen ScreenProvider
}

func newAmbient(screen ScreenProvider) *ambient {
	return &ambient{screen: screen}
}

func (e *ambient) Name() string { return "氛围" }

func (e *ambient) Run(ctx context.Context, ops Ops) error {
	for {
		f := e.screen.ZoneColors()
		for i := range f {
			f[i] = f[i].Saturate()
		}
		if err := ops.SetColors(f); err != nil {
			return err
		}
		if err := sleep(ctx, ambientPeriod); err != nil {
			return err
		}
	}
}
