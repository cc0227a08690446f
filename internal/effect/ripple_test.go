package effect

import (
	"testing"

	"github.com/earnest-s/LenovoLegionToolkit-sub000/internal/frame"
)

func TestAdvanceZoneStatesCenterSplits(t *testing.T) {
	states := [frame.ZoneCount]ZoneState{ZoneOff, ZoneCenter, ZoneOff, ZoneOff}
	got := AdvanceZoneStates(states)
	want := [frame.ZoneCount]ZoneState{ZoneLeft, ZoneOff, ZoneRight, ZoneOff}
	if got != want {
		t.Fatalf("推进一步 = %v, 期望 %v", got, want)
	}
}

func TestAdvanceZoneStatesWavefrontDiesAtEdge(t *testing.T) {
	states := [frame.ZoneCount]ZoneState{ZoneLeft, ZoneOff, ZoneRight, ZoneOff}
	got := AdvanceZoneStates(states)
	// 左波前越过左边缘消失, 右波前继续向右
	want := [frame.ZoneCount]ZoneState{ZoneOff, ZoneOff, ZoneOff, ZoneRight}
	if got != want {
		t.Fatalf("推进一步 = %v, 期望 %v", got, want)
	}

	got = AdvanceZoneStates(got)
	if got != ([frame.ZoneCount]ZoneState{}) {
		t.Fatalf("全部波前越界后应全灭, 实际 %v", got)
	}
}

func TestAdvanceZoneStatesCenterAtEdge(t *testing.T) {
	states := [frame.ZoneCount]ZoneState{ZoneCenter, ZoneOff, ZoneOff, ZoneOff}
	got := AdvanceZoneStates(states)
	// 左侧无处扩散, 只产生右波前
	want := [frame.ZoneCount]ZoneState{ZoneOff, ZoneRight, ZoneOff, ZoneOff}
	if got != want {
		t.Fatalf("推进一步 = %v, 期望 %v", got, want)
	}
}

func TestAdvanceZoneStatesTwoCenters(t *testing.T) {
	states := [frame.ZoneCount]ZoneState{ZoneCenter, ZoneOff, ZoneOff, ZoneCenter}
	got := AdvanceZoneStates(states)
	want := [frame.ZoneCount]ZoneState{ZoneOff, ZoneRight, ZoneLeft, ZoneOff}
	if got != want {
		t.Fatalf("推进一步 = %v, 期望 %v", got, want)
	}
}

func TestKeyZoneMapping(t *testing.T) {
	cases := []struct {
		code uint32
		zone int
	}{
		{0x1B, 0}, // Esc
		{0x09, 0}, // Tab
		{0x31, 1}, // '1'
		{0x41, 1}, // 'A'
		{0x5A, 2}, // 'Z'
		{0x60, 3}, // 小键盘0
		{0xBA, 3}, // OEM ';'
		{0xFF, 3},
		{0x00, 1}, // 未知键落在中部
	}
	for _, tc := range cases {
		if got := keyZone(tc.code); got != tc.zone {
			t.Errorf("keyZone(0x%02X) = %d, 期望 %d", tc.code, got, tc.zone)
		}
	}
}
