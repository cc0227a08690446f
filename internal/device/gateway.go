// Package device 提供背光外设的 HID 通信功能
package device

import (
	"errors"
	"fmt"
	"sync"

	"github.com/earnest-s/LenovoLegionToolkit-sub000/internal/types"
	"github.com/sstallion/go-hid"
)

const (
	// VendorID 灯控芯片厂商ID（ITE）
	VendorID = 0x048D
)

// ProductIDs 支持的产品ID列表，按优先级尝试
var ProductIDs = []uint16{0xC955, 0xC965, 0xC975}

// ErrUnsupported 设备不存在或已断开
var ErrUnsupported = errors.New("背光设备不存在或不受支持")

// FeatureWriter 定义了网关如何向下层硬件写入 feature report 的接口
type FeatureWriter interface {
	SendFeatureReport(b []byte) (int, error)
}

// Gateway 背光外设网关：打开外设并序列化状态记录到唯一的出站 feature report
type Gateway struct {
	device    *hid.Device
	writer    FeatureWriter
	connected bool
	productID uint16
	mutex     sync.RWMutex
	logger    types.Logger

	onDisconnect func()
}

// NewGateway 创建新的设备网关
func NewGateway(logger types.Logger) *Gateway {
	return &Gateway{logger: logger}
}

// NewGatewayWithWriter 用外部提供的写入器创建网关（测试用）
func NewGatewayWithWriter(w FeatureWriter, logger types.Logger) *Gateway {
	return &Gateway{writer: w, connected: true, logger: logger}
}

// SetOnDisconnect 设置断开回调
func (g *Gateway) SetOnDisconnect(fn func()) {
	g.onDisconnect = fn
}

// Init 初始化 HID 库
func (g *Gateway) Init() error {
	return hid.Init()
}

// Exit 清理 HID 库
func (g *Gateway) Exit() error {
	return hid.Exit()
}

// Connect 连接背光外设
func (g *Gateway) Connect() (bool, map[string]string) {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	if g.connected {
		return true, nil
	}

	var device *hid.Device
	var err error
	var connectedProductID uint16
	for _, productID := range ProductIDs {
		g.logInfo("正在连接背光设备 - 厂商ID: 0x%04X, 产品ID: 0x%04X", VendorID, productID)
		device, err = hid.OpenFirst(VendorID, productID)
		if err == nil {
			connectedProductID = productID
			break
		}
		g.logDebug("产品ID 0x%04X 连接失败: %v", productID, err)
	}

	if err != nil || device == nil {
		g.logError("所有背光设备连接尝试都失败")
		return false, nil
	}

	g.device = device
	g.writer = device
	g.connected = true
	g.productID = connectedProductID

	deviceInfo, infoErr := device.GetDeviceInfo()
	var info map[string]string
	if infoErr == nil {
		g.logInfo("背光设备连接成功: %s %s", deviceInfo.MfrStr, deviceInfo.ProductStr)
		info = map[string]string{
			"manufacturer": deviceInfo.MfrStr,
			"product":      deviceInfo.ProductStr,
			"serial":       deviceInfo.SerialNbr,
			"productId":    fmt.Sprintf("0x%04X", connectedProductID),
		}
	} else {
		g.logWarn("背光设备连接成功,但获取设备信息失败: %v", infoErr)
		info = map[string]string{
			"manufacturer": "Unknown",
			"product":      "Unknown",
			"productId":    fmt.Sprintf("0x%04X", connectedProductID),
		}
	}

	return true, info
}

// Disconnect 断开设备连接
func (g *Gateway) Disconnect() {
	g.mutex.Lock()
	wasConnected := g.connected
	if g.device != nil {
		g.device.Close()
		g.device = nil
	}
	g.writer = nil
	g.connected = false
	g.mutex.Unlock()

	if wasConnected {
		g.logInfo("背光设备连接已断开")
		g.notifyDisconnect()
	}
}

// IsSupported 检查设备是否在位
func (g *Gateway) IsSupported() bool {
	g.mutex.RLock()
	defer g.mutex.RUnlock()
	return g.connected && g.writer != nil
}

// Write 将一条状态记录写入外设的 feature report。
// 写失败视为设备已不可用，触发断开处理，调用方收到 ErrUnsupported。
func (g *Gateway) Write(rec StateRecord) error {
	g.mutex.RLock()
	writer := g.writer
	connected := g.connected
	g.mutex.RUnlock()

	if !connected || writer == nil {
		return ErrUnsupported
	}

	report := rec.Report()
	if _, err := writer.SendFeatureReport(report[:]); err != nil {
		g.logError("写入 feature report 失败: %v", err)
		g.handleWriteFailure()
		return fmt.Errorf("写入 feature report 失败: %w", err)
	}
	return nil
}

// handleWriteFailure 写失败后标记设备不可用并触发断开回调
func (g *Gateway) handleWriteFailure() {
	g.mutex.Lock()
	wasConnected := g.connected
	if g.device != nil {
		func() {
			defer func() {
				if r := recover(); r != nil {
					g.logError("关闭设备时发生错误: %v", r)
				}
			}()
			g.device.Close()
		}()
		g.device = nil
	}
	g.writer = nil
	g.connected = false
	g.mutex.Unlock()

	if wasConnected {
		g.notifyDisconnect()
	}
}

// notifyDisconnect 在独立协程里触发断开回调。
// 写失败可能发生在灯效循环自己的渲染调用里，回调若同步执行并在其中
// 等待该循环退出就会自锁，所以这里绝不在写入方的调用栈上执行回调。
func (g *Gateway) notifyDisconnect() {
	fn := g.onDisconnect
	if fn == nil {
		return
	}
	go func() {
		defer func() {
			if r := recover(); r != nil {
				g.logError("断开回调发生Panic: %v", r)
			}
		}()
		fn()
	}()
}

// 日志辅助方法
func (g *Gateway) logInfo(format string, v ...any) {
	if g.logger != nil {
		g.logger.Info(format, v...)
	}
}

func (g *Gateway) logError(format string, v ...any) {
	if g.logger != nil {
		g.logger.Error(format, v...)
	}
}

func (g *Gateway) logWarn(format string, v ...any) {
	if g.logger != nil {
		g.logger.Warn(format, v...)
	}
}

func (g *Gateway) logDebug(format string, v ...any) {
	if g.logger != nil {
		g.logger.Debug(format, v...)
	}
}
