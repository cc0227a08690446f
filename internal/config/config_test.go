package config

import (
	"path/filepath"
	"testing"

	"github.com/earnest-s/LenovoLegionToolkit-sub000/internal/types"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("USERPROFILE", home)
	return NewManager(filepath.Join(home, "install"), nil)
}

func TestLoadFallsBackToDefaults(t *testing.T) {
	m := newTestManager(t)
	cfg := m.Load()

	if cfg.SelectedPreset == "" {
		t.Fatal("默认配置应带有选中预设")
	}
	if _, ok := cfg.Presets[cfg.SelectedPreset]; !ok {
		t.Fatalf("选中预设 %q 不在预设集合中", cfg.SelectedPreset)
	}
}

func TestSaveThenLoadRoundTrip(t *testing.T) {
	m := newTestManager(t)
	m.Load()

	desc := types.PresetDescriptor{
		Type:   types.EffectRipple,
		Colors: [4]types.ColorValue{{R: 255}, {G: 255}, {B: 255}, {R: 128, G: 128}},
		Speed:  3,
	}
	if err := m.SetPreset("波纹测试", desc); err != nil {
		t.Fatalf("写入预设失败: %v", err)
	}
	if _, err := m.SelectPreset("波纹测试"); err != nil {
		t.Fatalf("切换预设失败: %v", err)
	}

	// 新管理器重新加载, 验证落盘内容
	reloaded := NewManager(m.installDir, nil)
	cfg := reloaded.Load()
	if cfg.SelectedPreset != "波纹测试" {
		t.Fatalf("重载后选中预设 = %q", cfg.SelectedPreset)
	}
	got, ok := cfg.Presets["波纹测试"]
	if !ok {
		t.Fatal("重载后预设丢失")
	}
	if got.Type != desc.Type || got.Speed != desc.Speed || got.Colors != desc.Colors {
		t.Fatalf("重载后预设 = %+v, 期望 %+v", got, desc)
	}
}

func TestSelectPresetUnknownName(t *testing.T) {
	m := newTestManager(t)
	m.Load()
	if _, err := m.SelectPreset("不存在的预设"); err == nil {
		t.Fatal("切换到未知预设应返回错误")
	}
}

func TestSetPresetRejectsEmptyName(t *testing.T) {
	m := newTestManager(t)
	m.Load()
	if err := m.SetPreset("", types.PresetDescriptor{}); err == nil {
		t.Fatal("空名称预设应被拒绝")
	}
}

func TestSetBrightnessRange(t *testing.T) {
	m := newTestManager(t)
	m.Load()
	if err := m.SetBrightness(2); err != nil {
		t.Fatalf("合法亮度被拒绝: %v", err)
	}
	if err := m.SetBrightness(3); err == nil {
		t.Fatal("超出挡位的亮度应被拒绝")
	}
	if err := m.SetBrightness(-1); err == nil {
		t.Fatal("负亮度应被拒绝")
	}
}

func TestListPresetsReturnsCopy(t *testing.T) {
	m := newTestManager(t)
	m.Load()

	list := m.ListPresets()
	before := len(list)
	delete(list, m.Get().SelectedPreset)

	if len(m.ListPresets()) != before {
		t.Fatal("枚举结果应是副本, 修改不应影响内部状态")
	}
}
