package effect

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/earnest-s/LenovoLegionToolkit-sub000/internal/frame"
)

// cyclePalette 彩色循环的固定调色板
var cyclePalette = []frame.RGBColor{
	{R: 255},
	{R: 255, G: 127},
	{R: 255, G: 255},
	{G: 255},
	{G: 255, B: 255},
	{B: 255},
	{R: 127, B: 255},
	{R: 255, B: 255},
}

// colorCycle 彩色循环：固定间隔整键盘切换调色板中的下一个颜色
type colorCycle struct {
	speed int
}

func newColorCycle(speed int) *colorCycle { return &colorCycle{speed: speed} }

func (e *colorCycle) Name() string { return "彩色循环" }

func (e *colorCycle) Run(ctx context.Context, ops Ops) error {
	interval := time.Duration(1000/e.speed) * time.Millisecond
	began := time.Now()
	for {
		// 颜色索引由流逝时间决定，而不是数迭代次数
		idx := int(time.Since(began)/interval) % len(cyclePalette)
		if err := ops.SetColors(frame.Uniform(cyclePalette[idx])); err != nil {
			return err
		}
		if err := sleep(ctx, time.Millisecond); err != nil {
			return err
		}
	}
}

// colorAlternate 交替灯效：奇偶分区两组颜色，按固定间隔互换
type colorAlternate struct {
	colors frame.ZoneFrame
	speed  int
}

func newColorAlternate(colors frame.ZoneFrame, speed int) *colorAlternate {
	return &colorAlternate{colors: colors, speed: speed}
}

func (e *colorAlternate) Name() string { return "交替" }

func (e *colorAlternate) Run(ctx context.Context, ops Ops) error {
	interval := time.Duration(2000/(e.speed*2)) * time.Millisecond
	began := time.Now()
	for {
		phase := int(time.Since(began)/interval) % 2
		var f frame.ZoneFrame
		for i := range f {
			if i%2 == phase {
				f[i] = e.colors[i]
			} else {
				f[i] = frame.Black
			}
		}
		if err := ops.SetColors(f); err != nil {
			return err
		}
		if err := sleep(ctx, time.Millisecond); err != nil {
			return err
		}
	}
}

// strobe 随机频闪：固定间隔随机挑调色板颜色，避免与上一次重复
type strobe struct {
	speed int
	rng   *rand.Rand
}

func newStrobe(speed int) *strobe {
	return &strobe{speed: speed, rng: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

func (e *strobe) Name() string { return "频闪" }

func (e *strobe) Run(ctx context.Context, ops Ops) error {
	interval := time.Duration(500/e.speed) * time.Millisecond
	last := -1
	for {
		idx := e.rng.Intn(len(cyclePalette))
		if idx == last {
			idx = (idx + 1) % len(cyclePalette)
		}
		last = idx
		if err := ops.SetColors(frame.Uniform(cyclePalette[idx])); err != nil {
			return err
		}
		if err := sleep(ctx, interval); err != nil {
			return err
		}
	}
}

// flash 定周期闪光：与随机频闪时序模型无关的另一种频闪变体，保持独立
type flash struct {
	color frame.RGBColor
	speed int
}

func newFlash(color frame.RGBColor, speed int) *flash {
	if color == frame.Black {
		color = frame.RGBColor{R: 255, G: 255, B: 255}
	}
	return &flash{color: color, speed: speed}
}

func (e *flash) Name() string { return "闪光" }

func (e *flash) Run(ctx context.Context, ops Ops) error {
	const onDuration = 60 * time.Millisecond
	period := time.Duration(800/e.speed) * time.Millisecond
	began := time.Now()
	for {
		offset := time.Since(began) % period
		f := frame.Uniform(frame.Black)
		if offset < onDuration {
			f = frame.Uniform(e.color)
		}
		if err := ops.SetColors(f); err != nil {
			return err
		}
		if err := sleep(ctx, time.Millisecond); err != nil {
			return err
		}
	}
}

// swipeChange 扫动（换色模式）：四分区颜色元组每次过渡调用向右转一位，
// 形成连续右移的视觉效果
type swipeChange struct {
	colors frame.ZoneFrame
	speed  int
}

func newSwipeChange(colors frame.ZoneFrame, speed int) *swipeChange {
	return &swipeChange{colors: colors, speed: speed}
}

func (e *swipeChange) Name() string { return "扫动·换色" }

func (e *swipeChange) Run(ctx context.Context, ops Ops) error {
	current := e.colors
	if err := ops.SetColors(current); err != nil {
		return err
	}
	steps := 150 / e.speed
	for {
		current = current.RotateRight()
		if err := ops.TransitionColors(ctx, current, steps, 10); err != nil {
			return err
		}
	}
}

// swipeFill 扫动（填充模式）：跨迭代持久的12字节颜色缓冲，
// 从左到右依次用调色板的每个颜色覆写分区，颜色之间清一遍黑
type swipeFill struct {
	colors frame.ZoneFrame
	speed  int
}

func newSwipeFill(colors frame.ZoneFrame, speed int) *swipeFill {
	return &swipeFill{colors: colors, speed: speed}
}

func (e *swipeFill) Name() string { return "扫动·填充" }

func (e *swipeFill) Run(ctx context.Context, ops Ops) error {
	pal := palette(e.colors)
	steps := 150 / e.speed
	var buffer frame.ZoneFrame // 持久缓冲，逐分区覆写
	for {
		for _, col := range pal {
			fills := []frame.RGBColor{col, frame.Black}
			for _, fill := range fills {
				for zone := 0; zone < frame.ZoneCount; zone++ {
					buffer[zone] = fill
					if err := ops.TransitionColors(ctx, buffer, steps, 1); err != nil {
						return err
					}
				}
			}
		}
	}
}

// holidayPhase 节日灯效的单个子阶段
type holidayPhase struct {
	duration time.Duration
	render   func(local time.Duration, pal []frame.RGBColor, rng *rand.Rand) frame.ZoneFrame
}

// holiday 节日灯效：四个子阶段按同一时钟测量时长，循环播放
type holiday struct {
	colors frame.ZoneFrame
	rng    *rand.Rand
}

func newHoliday(colors frame.ZoneFrame) *holiday {
	return &holiday{colors: colors, rng: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

func (e *holiday) Name() string { return "节日" }

func (e *holiday) phases() []holidayPhase {
	return []holidayPhase{
		{ // 依次点亮
			duration: 3 * time.Second,
			render: func(local time.Duration, pal []frame.RGBColor, _ *rand.Rand) frame.ZoneFrame {
				lit := int(float64(local) / float64(3*time.Second) * float64(frame.ZoneCount+1))
				var f frame.ZoneFrame
				for i := 0; i < frame.ZoneCount; i++ {
					if i < lit {
						f[i] = pal[i%len(pal)]
					}
				}
				return f
			},
		},
		{ // 闪烁
			duration: 4 * time.Second,
			render: func(local time.Duration, pal []frame.RGBColor, rng *rand.Rand) frame.ZoneFrame {
				tick := int(local / (250 * time.Millisecond))
				var f frame.ZoneFrame
				for i := 0; i < frame.ZoneCount; i++ {
					if (tick+i)%2 == 0 {
						f[i] = pal[(i+tick)%len(pal)]
					}
				}
				return f
			},
		},
		{ // 整体呼吸
			duration: 3 * time.Second,
			render: func(local time.Duration, pal []frame.RGBColor, _ *rand.Rand) frame.ZoneFrame {
				level := 0.5 * (1 - math.Cos(2*math.Pi*float64(local)/float64(1500*time.Millisecond)))
				var f frame.ZoneFrame
				for i := 0; i < frame.ZoneCount; i++ {
					f[i] = pal[i%len(pal)].Scale(level)
				}
				return f
			},
		},
		{ // 淡出
			duration: 2 * time.Second,
			render: func(local time.Duration, pal []frame.RGBColor, _ *rand.Rand) frame.ZoneFrame {
				level := 1 - float64(local)/float64(2*time.Second)
				var f frame.ZoneFrame
				for i := 0; i < frame.ZoneCount; i++ {
					f[i] = pal[i%len(pal)].Scale(level)
				}
				return f
			},
		},
	}
}

func (e *holiday) Run(ctx context.Context, ops Ops) error {
	pal := palette(e.colors)
	phases := e.phases()
	var cycle time.Duration
	for _, p := range phases {
		cycle += p.duration
	}
	began := time.Now()
	for {
		local := time.Since(began) % cycle
		var f frame.ZoneFrame
		for _, p := range phases {
			if local < p.duration {
				f = p.render(local, pal, e.rng)
				break
			}
			local -= p.duration
		}
		if err := ops.SetColors(f); err != nil {
			return err
		}
		if err := sleep(ctx, time.Millisecond); err != nil {
			return err
		}
	}
}
