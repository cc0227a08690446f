package effect

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/earnest-s/LenovoLegionToolkit-sub000/internal/device"
	"github.com/earnest-s/LenovoLegionToolkit-sub000/internal/dispatch"
	"github.com/earnest-s/LenovoLegionToolkit-sub000/internal/frame"
)

type nopWriter struct {
	mu      sync.Mutex
	records []device.StateRecord
}

func (w *nopWriter) Write(rec device.StateRecord) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.records = append(w.records, rec)
	return nil
}

type stubSupport struct{ supported bool }

func (s *stubSupport) IsSupported() bool { return s.supported }

type stubOwnership struct{ enabled bool }

func (s *stubOwnership) Enabled() bool { return s.enabled }

// blockEffect 可控的灯效桩：记录自己的在途状态，直到取消才退出
type blockEffect struct {
	started chan struct{}
	active  atomic.Int32
	maxSeen atomic.Int32
}

func newBlockEffect() *blockEffect {
	return &blockEffect{started: make(chan struct{})}
}

func (e *blockEffect) Name() string { return "桩" }

func (e *blockEffect) Run(ctx context.Context, ops Ops) error {
	n := e.active.Add(1)
	if n > e.maxSeen.Load() {
		e.maxSeen.Store(n)
	}
	defer e.active.Add(-1)
	close(e.started)
	<-ctx.Done()
	return ctx.Err()
}

func newTestController() (*Controller, *nopWriter) {
	w := &nopWriter{}
	d := dispatch.NewDispatcher(w, nil)
	c := NewController(d, &stubSupport{supported: true}, &stubOwnership{}, nil)
	return c, w
}

func TestStartEffectStopsPredecessorFirst(t *testing.T) {
	c, _ := newTestController()

	shared := &struct {
		mu      sync.Mutex
		active  int
		maxSeen int
	}{}
	mkEffect := func() Effect {
		started := make(chan struct{})
		return &funcEffect{started: started, run: func(ctx context.Context, ops Ops) error {
			shared.mu.Lock()
			shared.active++
			if shared.active > shared.maxSeen {
				shared.maxSeen = shared.active
			}
			shared.mu.Unlock()
			close(started)
			<-ctx.Done()
			shared.mu.Lock()
			shared.active--
			shared.mu.Unlock()
			return ctx.Err()
		}}
	}

	for i := 0; i < 5; i++ {
		e := mkEffect()
		if err := c.StartEffect(e); err != nil {
			t.Fatalf("第 %d 次启动失败: %v", i, err)
		}
		<-e.(*funcEffect).started
	}
	c.StopEffect()

	shared.mu.Lock()
	defer shared.mu.Unlock()
	if shared.maxSeen > 1 {
		t.Fatalf("同时在途的灯效数 = %d, 期望至多 1", shared.maxSeen)
	}
	if shared.active != 0 {
		t.Fatalf("停止后仍有 %d 个灯效在途", shared.active)
	}
}

// funcEffect 包一层函数方便逐个构造
type funcEffect struct {
	started chan struct{}
	run     func(ctx context.Context, ops Ops) error
}

func (e *funcEffect) Name() string                           { return "函数桩" }
func (e *funcEffect) Run(ctx context.Context, ops Ops) error { return e.run(ctx, ops) }

func TestStopEffectWaitsForLoopExit(t *testing.T) {
	c, _ := newTestController()
	e := newBlockEffect()
	if err := c.StartEffect(e); err != nil {
		t.Fatalf("启动失败: %v", err)
	}
	<-e.started

	c.StopEffect()
	if got := e.active.Load(); got != 0 {
		t.Fatalf("StopEffect 返回后灯效仍在途: active=%d", got)
	}
	if c.IsRunning() {
		t.Fatal("StopEffect 返回后控制器仍报告运行中")
	}
}

func TestStopEffectIdempotent(t *testing.T) {
	c, _ := newTestController()
	c.StopEffect()
	c.StopEffect()
	if c.State() != StateIdle {
		t.Fatalf("空闲时 StopEffect 后状态 = %v", c.State())
	}
}

func TestStartEffectOwnershipConflict(t *testing.T) {
	w := &nopWriter{}
	d := dispatch.NewDispatcher(w, nil)
	c := NewController(d, &stubSupport{supported: true}, &stubOwnership{enabled: true}, nil)

	err := c.StartEffect(newBlockEffect())
	if !errors.Is(err, ErrOwnershipConflict) {
		t.Fatalf("err = %v, 期望 ErrOwnershipConflict", err)
	}
	if len(w.records) != 0 {
		t.Fatalf("冲突时不应有任何硬件写入, 实际 %d 次", len(w.records))
	}
}

func TestStartEffectUnsupportedDevice(t *testing.T) {
	c := NewController(dispatch.NewDispatcher(&nopWriter{}, nil), &stubSupport{supported: false}, nil, nil)
	if err := c.StartEffect(newBlockEffect()); err == nil {
		t.Fatal("设备不在位时 StartEffect 应返回错误")
	}
}

func TestTransitionColorsLandsExactlyOnTarget(t *testing.T) {
	c, _ := newTestController()
	target := frame.Uniform(frame.RGBColor{R: 200, G: 100, B: 50})

	if err := c.TransitionColors(context.Background(), target, 4, 1); err != nil {
		t.Fatalf("过渡失败: %v", err)
	}
	if got := c.CurrentFrame(); got != target {
		t.Fatalf("过渡终帧 = %v, 期望精确等于 %v", got, target)
	}
}

func TestTransitionColorsZeroStepsImmediate(t *testing.T) {
	c, _ := newTestController()
	target := frame.Uniform(frame.RGBColor{B: 255})
	began := time.Now()
	if err := c.TransitionColors(context.Background(), target, 0, 100); err != nil {
		t.Fatalf("过渡失败: %v", err)
	}
	if time.Since(began) > 50*time.Millisecond {
		t.Fatal("steps=0 应立即完成")
	}
	if c.CurrentFrame() != target {
		t.Fatal("steps=0 应直接落到目标帧")
	}
}

func TestTransitionColorsCancellation(t *testing.T) {
	c, _ := newTestController()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := c.TransitionColors(ctx, frame.Uniform(frame.RGBColor{R: 255}), 1000, 10)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, 期望 context.Canceled", err)
	}
}

func TestSetZoneOnlyTouchesOneZone(t *testing.T) {
	c, _ := newTestController()
	base := frame.ZoneFrame{{R: 10}, {R: 20}, {R: 30}, {R: 40}}
	if err := c.SetColors(base); err != nil {
		t.Fatalf("SetColors 失败: %v", err)
	}
	if err := c.SetZone(2, frame.RGBColor{G: 255}); err != nil {
		t.Fatalf("SetZone 失败: %v", err)
	}
	got := c.CurrentFrame()
	want := base
	want[2] = frame.RGBColor{G: 255}
	if got != want {
		t.Fatalf("SetZone 后帧 = %v, 期望 %v", got, want)
	}
}

func TestResumeFromOverrideWhileRunning(t *testing.T) {
	c, w := newTestController()
	e := newBlockEffect()
	if err := c.StartEffect(e); err != nil {
		t.Fatalf("启动失败: %v", err)
	}
	<-e.started

	cached := frame.Uniform(frame.RGBColor{R: 120})
	if err := c.SetColors(cached); err != nil {
		t.Fatalf("SetColors 失败: %v", err)
	}

	c.dispatcher.SetOverride(true)
	before := func() int {
		w.mu.Lock()
		defer w.mu.Unlock()
		return len(w.records)
	}()

	if err := c.ResumeFromOverride(); err != nil {
		t.Fatalf("恢复失败: %v", err)
	}
	if c.dispatcher.OverrideActive() {
		t.Fatal("恢复后覆盖标志仍为真")
	}
	w.mu.Lock()
	after := len(w.records)
	w.mu.Unlock()
	if after != before+1 {
		t.Fatalf("恢复应恰好写入一帧, 实际写入 %d 帧", after-before)
	}
	c.StopEffect()
}

func TestResumeFromOverrideColdPath(t *testing.T) {
	c, _ := newTestController()
	restarted := false
	c.SetRestartHandler(func() { restarted = true })

	c.dispatcher.SetOverride(true)
	if err := c.ResumeFromOverride(); err != nil {
		t.Fatalf("恢复失败: %v", err)
	}
	if c.dispatcher.OverrideActive() {
		t.Fatal("冷恢复后覆盖标志仍为真")
	}
	if !restarted {
		t.Fatal("无灯效在跑时恢复应触发冷恢复回调")
	}
}

func TestRunLoopSwallowsCancellation(t *testing.T) {
	var logged []string
	logger := &recordingLogger{sink: &logged}
	c := NewController(dispatch.NewDispatcher(&nopWriter{}, nil), nil, nil, logger)

	e := newBlockEffect()
	if err := c.StartEffect(e); err != nil {
		t.Fatalf("启动失败: %v", err)
	}
	<-e.started
	c.StopEffect()

	for _, line := range logged {
		if line == "error" {
			t.Fatal("取消不应被记录为错误")
		}
	}
}

type recordingLogger struct {
	mu   sync.Mutex
	sink *[]string
}

func (l *recordingLogger) Info(format string, v ...any)  { l.append("info") }
func (l *recordingLogger) Error(format string, v ...any) { l.append("error") }
func (l *recordingLogger) Warn(format string, v ...any)  { l.append("warn") }
func (l *recordingLogger) Debug(format string, v ...any) { l.append("debug") }

func (l *recordingLogger) Close()                    {}
func (l *recordingLogger) CleanOldLogs()             {}
func (l *recordingLogger) SetDebugMode(enabled bool) {}
func (l *recordingLogger) GetLogDir() string         { return "" }

func (l *recordingLogger) append(level string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	*l.sink = append(*l.sink, level)
}

// failAfterWriter 前几次写入成功,之后永久失败的设备写入桩
type failAfterWriter struct {
	mu     sync.Mutex
	writes int
	failAt int
}

func (w *failAfterWriter) SendFeatureReport(b []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.writes++
	if w.writes >= w.failAt {
		return 0, errors.New("设备已拔出")
	}
	return len(b), nil
}

func TestWriteFailureDisconnectCallbackDoesNotBlockEffectLoop(t *testing.T) {
	gw := device.NewGatewayWithWriter(&failAfterWriter{failAt: 3}, nil)
	d := dispatch.NewDispatcher(gw, nil)
	c := NewController(d, gw, nil, nil)
	// 断开回调在灯效自己的渲染调用栈上触发时,停止请求不能锁死
	gw.SetOnDisconnect(func() { c.StopEffect() })

	err := c.StartEffect(&funcEffect{run: func(ctx context.Context, ops Ops) error {
		for {
			if err := ops.SetColors(frame.Uniform(frame.RGBColor{R: 255})); err != nil {
				return err
			}
			if err := sleep(ctx, time.Millisecond); err != nil {
				return err
			}
		}
	}})
	if err != nil {
		t.Fatalf("启动失败: %v", err)
	}

	stopped := make(chan struct{})
	go func() {
		c.StopEffect()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("写失败断开后 StopEffect 未能返回")
	}
}

func TestStartEffectConcurrentCallersKeepSingleFlight(t *testing.T) {
	c, _ := newTestController()

	var active, maxSeen atomic.Int32
	mkEffect := func() Effect {
		return &funcEffect{run: func(ctx context.Context, ops Ops) error {
			n := active.Add(1)
			defer active.Add(-1)
			for {
				cur := maxSeen.Load()
				if n <= cur || maxSeen.CompareAndSwap(cur, n) {
					break
				}
			}
			<-ctx.Done()
			return ctx.Err()
		}}
	}

	for iter := 0; iter < 50; iter++ {
		release := make(chan struct{})
		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-release
				_ = c.StartEffect(mkEffect())
			}()
		}
		close(release)
		wg.Wait()
	}
	c.StopEffect()

	if got := maxSeen.Load(); got > 1 {
		t.Fatalf("同时在途的灯效数 = %d, 期望至多 1", got)
	}
	if got := active.Load(); got != 0 {
		t.Fatalf("停止后仍有 %d 个灯效在途", got)
	}
}
