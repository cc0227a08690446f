// Package temperature 提供CPU温度读取功能
package temperature

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v4/sensors"

	"github.com/earnest-s/LenovoLegionToolkit-sub000/internal/types"
)

// ErrNoSensor 找不到可用的CPU温度传感器
var ErrNoSensor = errors.New("找不到可用的CPU温度传感器")

// cpuSensorKeys 按优先级匹配的CPU温度传感器名
var cpuSensorKeys = []string{
	"coretemp",
	"k10temp",
	"zenpower",
	"cpu_thermal",
	"acpitz",
	"cpu",
}

// Reader 温度读取器。带短缓存，避免高频灯效把传感器接口打穿。
type Reader struct {
	logger types.Logger

	mu       sync.Mutex
	lastTemp float64
	lastRead time.Time
	cacheTTL time.Duration
}

// NewReader 创建新的温度读取器
func NewReader(logger types.Logger) *Reader {
	return &Reader{
		logger:   logger,
		cacheTTL: 150 * time.Millisecond,
	}
}

// CPUTemperature 读取当前CPU温度（摄氏度）。
// 多个核心传感器取最大值；读数超出 (0,150) 视为无效。
func (r *Reader) CPUTemperature() (float64, error) {
	r.mu.Lock()
	if !r.lastRead.IsZero() && time.Since(r.lastRead) < r.cacheTTL {
		temp := r.lastTemp
		r.mu.Unlock()
		return temp, nil
	}
	r.mu.Unlock()

	readings, err := sensors.SensorsTemperatures()
	if err != nil && len(readings) == 0 {
		return 0, err
	}

	max := 0.0
	for _, key := range cpuSensorKeys {
		for _, t := range readings {
			if !strings.Contains(strings.ToLower(t.SensorKey), key) {
				continue
			}
			if t.Temperature > 0 && t.Temperature < 150 && t.Temperature > max {
				max = t.Temperature
			}
		}
		if max > 0 {
			break
		}
	}
	if max == 0 {
		r.logDebug("温度传感器列表中没有可识别的CPU读数, 共 %d 条", len(readings))
		return 0, ErrNoSensor
	}

	r.mu.Lock()
	r.lastTemp = max
	r.lastRead = time.Now()
	r.mu.Unlock()
	return max, nil
}

func (r *Reader) logDebug(format string, v ...any) {
	if r.logger != nil {
		r.logger.Debug(format, v...)
	}
}
