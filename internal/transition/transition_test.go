package transition

import (
	"math"
	"sync"
	"testing"
	"time"

	"github.com/earnest-s/LenovoLegionToolkit-sub000/internal/device"
	"github.com/earnest-s/LenovoLegionToolkit-sub000/internal/dispatch"
	"github.com/earnest-s/LenovoLegionToolkit-sub000/internal/frame"
)

type captureWriter struct {
	mu      sync.Mutex
	records []device.StateRecord
}

func (w *captureWriter) Write(rec device.StateRecord) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.records = append(w.records, rec)
	return nil
}

func (w *captureWriter) snapshot() []device.StateRecord {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]device.StateRecord, len(w.records))
	copy(out, w.records)
	return out
}

func TestPulseLevelAttackIsInstant(t *testing.T) {
	if got := PulseLevel(0); got != 1 {
		t.Fatalf("PulseLevel(0) = %v, 期望脉冲起点即满亮度", got)
	}
	// 每个脉冲周期的起点都打满亮度
	if got := PulseLevel(pulsePeriod); got != 1 {
		t.Fatalf("PulseLevel(第二脉冲起点) = %v, 期望 1", got)
	}
}

func TestPulseLevelSineEasedFade(t *testing.T) {
	// 衰减段中点应为 cos(π/4)
	got := PulseLevel(pulseFade / 2)
	want := math.Cos(math.Pi / 4)
	if math.Abs(got-want) > 1e-9 {
		t.Fatalf("衰减中点亮度 = %v, 期望 %v", got, want)
	}
	// 单调递减
	prev := 1.0
	for offset := time.Duration(0); offset < pulseFade; offset += 10 * time.Millisecond {
		level := PulseLevel(offset)
		if level > prev {
			t.Fatalf("偏移 %v 处亮度回升: %v > %v", offset, level, prev)
		}
		prev = level
	}
}

func TestPulseLevelDarkGapAndTail(t *testing.T) {
	if got := PulseLevel(pulseFade + pulseGap/2); got != 0 {
		t.Fatalf("脉冲间隔内亮度 = %v, 期望 0", got)
	}
	if got := PulseLevel(TotalDuration); got != 0 {
		t.Fatalf("动画结束后亮度 = %v, 期望 0", got)
	}
	if got := PulseLevel(-time.Second); got != 0 {
		t.Fatalf("负流逝时间亮度 = %v, 期望 0", got)
	}
}

func TestPlayEndsWithBlackAndResumes(t *testing.T) {
	w := &captureWriter{}
	d := dispatch.NewDispatcher(w, nil)

	resumed := make(chan struct{})
	a := NewAnimator(d, func() error {
		close(resumed)
		return nil
	}, nil)

	a.Play(frame.RGBColor{R: 255})

	select {
	case <-resumed:
	case <-time.After(TotalDuration + time.Second):
		t.Fatal("动画结束后未触发恢复回调")
	}

	records := w.snapshot()
	if len(records) == 0 {
		t.Fatal("动画没有产生任何硬件写入")
	}
	last := records[len(records)-1]
	for _, b := range last.Zones.Bytes() {
		if b != 0 {
			t.Fatalf("末帧不是全黑: %v", last.Zones)
		}
	}
	if a.IsPlaying() {
		t.Fatal("动画结束后仍报告在途")
	}
}

func TestPlayCancelsPredecessor(t *testing.T) {
	w := &captureWriter{}
	d := dispatch.NewDispatcher(w, nil)

	var mu sync.Mutex
	resumeCount := 0
	a := NewAnimator(d, func() error {
		mu.Lock()
		resumeCount++
		mu.Unlock()
		return nil
	}, nil)

	a.Play(frame.RGBColor{R: 255})
	time.Sleep(50 * time.Millisecond)
	a.Play(frame.RGBColor{B: 255})

	time.Sleep(TotalDuration + 200*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	// 被打断的前驱不交还控制权, 只有后继动画触发一次恢复
	if resumeCount != 1 {
		t.Fatalf("恢复回调触发 %d 次, 期望 1 次", resumeCount)
	}
}

func TestStopIdempotentWhenIdle(t *testing.T) {
	a := NewAnimator(dispatch.NewDispatcher(&captureWriter{}, nil), nil, nil)
	a.Stop()
	a.Stop()
	if a.IsPlaying() {
		t.Fatal("空闲动画器不应报告在途")
	}
}

func TestOverrideHeldDuringPlayback(t *testing.T) {
	w := &captureWriter{}
	d := dispatch.NewDispatcher(w, nil)
	a := NewAnimator(d, func() error { return d.ClearOverrideAndRender(frame.ZoneFrame{}) }, nil)

	a.Play(frame.RGBColor{G: 255})
	time.Sleep(50 * time.Millisecond)
	if !d.OverrideActive() {
		t.Fatal("动画播放期间覆盖门控应保持生效")
	}
	a.Stop()
}

func TestPlayConcurrentCallersLeaveNoOrphanAnimation(t *testing.T) {
	w := &captureWriter{}
	d := dispatch.NewDispatcher(w, nil)
	a := NewAnimator(d, func() error { return nil }, nil)

	release := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-release
			a.Play(frame.RGBColor{R: 255})
		}()
	}
	close(release)
	wg.Wait()
	a.Stop()

	if a.IsPlaying() {
		t.Fatal("Stop 后仍有动画在途")
	}
	// 若存在未被接管的动画协程, 停止后写入量还会继续增长
	time.Sleep(30 * time.Millisecond)
	before := len(w.snapshot())
	time.Sleep(60 * time.Millisecond)
	if after := len(w.snapshot()); after != before {
		t.Fatalf("停止后仍有渲染写入: %d -> %d", before, after)
	}
}
