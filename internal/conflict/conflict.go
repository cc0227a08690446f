// Package conflict 检测其它灯控软件是否正在占用键盘背光通道。
// 厂商套件与本引擎同时驱写同一个HID端点会产生撕裂帧，
// 检测到占用时所有灯效变更操作快速失败。
package conflict

import (
	"strings"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v4/process"

	"github.com/earnest-s/LenovoLegionToolkit-sub000/internal/types"
)

// conflictProcessNames 已知会抢占灯控通道的进程名（小写）
var conflictProcessNames = []string{
	"lenovovantage",
	"legionzonelite",
	"legionzone",
	"ledkeyboard",
}

// scanInterval 进程扫描间隔, 扫描全量进程表不便宜
const scanInterval = 5 * time.Second

// Checker 冲突软件检测器，带时限缓存的进程表扫描
type Checker struct {
	logger types.Logger

	mu       sync.Mutex
	enabled  bool
	lastScan time.Time
	lastHit  string
}

// NewChecker 创建冲突检测器
func NewChecker(logger types.Logger) *Checker {
	return &Checker{logger: logger}
}

// Enabled 是否有冲突软件在运行
func (c *Checker) Enabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if time.Since(c.lastScan) < scanInterval {
		return c.enabled
	}
	c.lastScan = time.Now()

	hit := scan()
	if hit != "" && c.lastHit != hit {
		c.logWarn("检测到冲突灯控软件: %s", hit)
	}
	c.enabled = hit != ""
	c.lastHit = hit
	return c.enabled
}

// ConflictingProcess 最近一次扫描命中的进程名（无冲突时为空）
func (c *Checker) ConflictingProcess() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastHit
}

func scan() string {
	procs, err := process.Processes()
	if err != nil {
		return ""
	}
	for _, p := range procs {
		name, err := p.Name()
		if err != nil {
			continue
		}
		lower := strings.ToLower(strings.TrimSuffix(name, ".exe"))
		for _, known := range conflictProcessNames {
			if strings.Contains(lower, known) {
				return name
			}
		}
	}
	return ""
}

func (c *Checker) logWarn(format string, v ...any) {
	if c.logger != nil {
		c.logger.Warn(format, v...)
	}
}
