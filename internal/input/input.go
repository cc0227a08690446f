// Package input 提供全局键盘输入监听。
// 通过 WH_KEYBOARD_LL 低级键盘钩子采集按键时刻和键码，
// 供波纹、淡出等输入响应灯效消费。
package input

import (
	"fmt"
	"runtime"
	"sync"
	"time"
	"unsafe"

	"golang.org/x/sys/windows"

	"github.com/earnest-s/LenovoLegionToolkit-sub000/internal/types"
)

const (
	whKeyboardLL = 13
	wmKeyDown    = 0x0100
	wmSysKeyDown = 0x0104
	wmQuit       = 0x0012
)

var (
	user32                  = windows.NewLazySystemDLL("user32.dll")
	procSetWindowsHookEx    = user32.NewProc("SetWindowsHookExW")
	procUnhookWindowsHookEx = user32.NewProc("UnhookWindowsHookEx")
	procCallNextHookEx      = user32.NewProc("CallNextHookEx")
	procGetMessage          = user32.NewProc("GetMessageW")
	procPostThreadMessage   = user32.NewProc("PostThreadMessageW")
)

// kbdllHookStruct WH_KEYBOARD_LL 回调携带的按键信息
type kbdllHookStruct struct {
	VkCode      uint32
	ScanCode    uint32
	Flags       uint32
	Time        uint32
	DwExtraInfo uintptr
}

type msg struct {
	Hwnd    uintptr
	Message uint32
	WParam  uintptr
	LParam  uintptr
	Time    uint32
	Pt      struct{ X, Y int32 }
}

// Hook 全局键盘钩子。钩子回调运行在专属的消息循环协程上，
// 对外只暴露最近按键时刻、键码和一个有界的按键事件通道。
type Hook struct {
	logger types.Logger

	mu         sync.Mutex
	hookHandle uintptr
	threadID   uint32
	running    bool

	stateMu   sync.RWMutex
	lastPress time.Time
	lastCode  uint32

	keyCh chan uint32
	done  chan struct{}
}

// NewHook 创建键盘钩子（未安装）
func NewHook(logger types.Logger) *Hook {
	return &Hook{
		logger:    logger,
		lastPress: time.Now(),
		keyCh:     make(chan uint32, 64),
	}
}

// Start 安装钩子并启动消息循环。
// 锁定到单一OS线程：WH_KEYBOARD_LL 要求安装线程持续跑消息泵。
func (h *Hook) Start() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.running {
		return nil
	}

	installed := make(chan error, 1)
	done := make(chan struct{})
	h.done = done

	go h.messageLoop(installed, done)

	if err := <-installed; err != nil {
		return err
	}
	h.running = true
	h.logInfo("键盘钩子已安装")
	return nil
}

func (h *Hook) messageLoop(installed chan<- error, done chan struct{}) {
	defer close(done)
	// 回调和消息泵必须在同一个OS线程上
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	callback := windows.NewCallback(func(nCode int, wParam uintptr, lParam uintptr) uintptr {
		if nCode >= 0 && (wParam == wmKeyDown || wParam == wmSysKeyDown) {
			info := (*kbdllHookStruct)(unsafe.Pointer(lParam))
			h.record(info.VkCode)
		}
		ret, _, _ := procCallNextHookEx.Call(0, uintptr(nCode), wParam, lParam)
		return ret
	})

	hookHandle, _, err := procSetWindowsHookEx.Call(whKeyboardLL, callback, 0, 0)
	if hookHandle == 0 {
		installed <- fmt.Errorf("安装键盘钩子失败: %v", err)
		return
	}

	h.mu.Lock()
	h.hookHandle = hookHandle
	h.threadID = windows.GetCurrentThreadId()
	h.mu.Unlock()
	installed <- nil

	var m msg
	for {
		ret, _, _ := procGetMessage.Call(uintptr(unsafe.Pointer(&m)), 0, 0, 0)
		// GetMessage 返回 0 表示收到 WM_QUIT, -1 表示出错
		if ret == 0 || int32(ret) == -1 {
			break
		}
	}

	procUnhookWindowsHookEx.Call(hookHandle)
}

// record 钩子回调里的最小工作量：记时刻、记键码、非阻塞投递事件
func (h *Hook) record(code uint32) {
	h.stateMu.Lock()
	h.lastPress = time.Now()
	h.lastCode = code
	h.stateMu.Unlock()

	select {
	case h.keyCh <- code:
	default:
		// 消费方跟不上就丢事件, 钩子回调绝不能阻塞
	}
}

// Stop 卸载钩子并退出消息循环
func (h *Hook) Stop() {
	h.mu.Lock()
	if !h.running {
		h.mu.Unlock()
		return
	}
	threadID := h.threadID
	done := h.done
	h.running = false
	h.mu.Unlock()

	procPostThreadMessage.Call(uintptr(threadID), wmQuit, 0, 0)
	<-done
	h.logInfo("键盘钩子已卸载")
}

// TimeSinceLastKeypress 距最近一次按键的时长
func (h *Hook) TimeSinceLastKeypress() time.Duration {
	h.stateMu.RLock()
	defer h.stateMu.RUnlock()
	return time.Since(h.lastPress)
}

// LastKeyCode 最近一次按键的虚拟键码
func (h *Hook) LastKeyCode() uint32 {
	h.stateMu.RLock()
	defer h.stateMu.RUnlock()
	return h.lastCode
}

// Keys 按键事件通道（有界, 溢出丢弃）
func (h *Hook) Keys() <-chan uint32 {
	return h.keyCh
}

func (h *Hook) logInfo(format string, v ...any) {
	if h.logger != nil {
		h.logger.Info(format, v...)
	}
}
