package dispatch

import (
	"sync"
	"testing"

	"github.com/earnest-s/LenovoLegionToolkit-sub000/internal/device"
	"github.com/earnest-s/LenovoLegionToolkit-sub000/internal/frame"
)

// fakeWriter 记录所有写入的状态记录
type fakeWriter struct {
	mu      sync.Mutex
	records []device.StateRecord
	err     error
}

func (w *fakeWriter) Write(rec device.StateRecord) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.records = append(w.records, rec)
	return nil
}

func (w *fakeWriter) count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.records)
}

func (w *fakeWriter) last() device.StateRecord {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.records[len(w.records)-1]
}

func redFrame() frame.ZoneFrame {
	return frame.Uniform(frame.RGBColor{R: 255})
}

func TestRenderWritesAndPublishes(t *testing.T) {
	w := &fakeWriter{}
	d := NewDispatcher(w, nil)
	var published []frame.ZoneFrame
	d.Subscribe(func(f frame.ZoneFrame) { published = append(published, f) })

	if err := d.Render(redFrame()); err != nil {
		t.Fatalf("Render: %v", err)
	}
	if w.count() != 1 {
		t.Fatalf("hardware writes = %d, want 1", w.count())
	}
	if len(published) != 1 || published[0] != redFrame() {
		t.Fatalf("published = %v, want one red frame", published)
	}
	rec := w.last()
	if rec.Effect != device.EffectCodeStatic {
		t.Fatalf("effect code = %d, want static", rec.Effect)
	}
}

func TestGateDropsRenderButNotForce(t *testing.T) {
	w := &fakeWriter{}
	d := NewDispatcher(w, nil)
	publishes := 0
	d.Subscribe(func(frame.ZoneFrame) { publishes++ })

	d.SetOverride(true)

	for i := 0; i < 10; i++ {
		if err := d.Render(redFrame()); err != nil {
			t.Fatalf("gated Render should not fail: %v", err)
		}
	}
	if w.count() != 0 || publishes != 0 {
		t.Fatalf("gated renders produced %d writes, %d publishes; want 0, 0", w.count(), publishes)
	}

	if err := d.ForceRender(redFrame()); err != nil {
		t.Fatalf("ForceRender: %v", err)
	}
	if w.count() != 1 || publishes != 1 {
		t.Fatalf("ForceRender with gate: %d writes, %d publishes; want 1, 1", w.count(), publishes)
	}
}

func TestClearOverrideAndRenderIsAtomic(t *testing.T) {
	w := &fakeWriter{}
	d := NewDispatcher(w, nil)
	d.SetOverride(true)

	if err := d.ClearOverrideAndRender(redFrame()); err != nil {
		t.Fatalf("ClearOverrideAndRender: %v", err)
	}
	if d.OverrideActive() {
		t.Fatal("override still active after resume")
	}
	if w.count() != 1 {
		t.Fatalf("resume writes = %d, want 1", w.count())
	}
	// 恢复后的普通渲染路径必须立即可用
	if err := d.Render(redFrame()); err != nil {
		t.Fatalf("Render after resume: %v", err)
	}
	if w.count() != 2 {
		t.Fatalf("writes after resume = %d, want 2", w.count())
	}
}

func TestRenderPreviewDoesNotTouchHardware(t *testing.T) {
	w := &fakeWriter{}
	d := NewDispatcher(w, nil)
	publishes := 0
	d.Subscribe(func(frame.ZoneFrame) { publishes++ })

	d.RenderPreview(redFrame())
	if w.count() != 0 {
		t.Fatalf("preview caused %d hardware writes", w.count())
	}
	if publishes != 1 {
		t.Fatalf("preview publishes = %d, want 1", publishes)
	}
}

func TestSendFirmwareCommandSkipsPublish(t *testing.T) {
	w := &fakeWriter{}
	d := NewDispatcher(w, nil)
	publishes := 0
	d.Subscribe(func(frame.ZoneFrame) { publishes++ })

	if err := d.SendFirmwareCommand(device.OffRecord()); err != nil {
		t.Fatalf("SendFirmwareCommand: %v", err)
	}
	if w.count() != 1 || publishes != 0 {
		t.Fatalf("firmware command: %d writes, %d publishes; want 1, 0", w.count(), publishes)
	}
}

func TestBrightnessAppliedToEveryWrite(t *testing.T) {
	w := &fakeWriter{}
	d := NewDispatcher(w, nil)
	d.SetBrightness(device.BrightnessLow)

	if err := d.Render(redFrame()); err != nil {
		t.Fatalf("Render: %v", err)
	}
	if rec := w.last(); rec.Brightness != device.BrightnessLow {
		t.Fatalf("brightness = %d, want %d", rec.Brightness, device.BrightnessLow)
	}
}

func TestRenderSurfacesDeviceError(t *testing.T) {
	w := &fakeWriter{err: device.ErrUnsupported}
	d := NewDispatcher(w, nil)
	publishes := 0
	d.Subscribe(func(frame.ZoneFrame) { publishes++ })

	if err := d.Render(redFrame()); err == nil {
		t.Fatal("expected device error to surface")
	}
	if publishes != 0 {
		t.Fatal("failed write must not publish")
	}
}
