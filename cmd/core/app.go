package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/earnest-s/LenovoLegionToolkit-sub000/internal/audio"
	"github.com/earnest-s/LenovoLegionToolkit-sub000/internal/config"
	"github.com/earnest-s/LenovoLegionToolkit-sub000/internal/conflict"
	"github.com/earnest-s/LenovoLegionToolkit-sub000/internal/device"
	"github.com/earnest-s/LenovoLegionToolkit-sub000/internal/dispatch"
	"github.com/earnest-s/LenovoLegionToolkit-sub000/internal/effect"
	"github.com/earnest-s/LenovoLegionToolkit-sub000/internal/frame"
	"github.com/earnest-s/LenovoLegionToolkit-sub000/internal/input"
	"github.com/earnest-s/LenovoLegionToolkit-sub000/internal/ipc"
	"github.com/earnest-s/LenovoLegionToolkit-sub000/internal/logger"
	"github.com/earnest-s/LenovoLegionToolkit-sub000/internal/screen"
	"github.com/earnest-s/LenovoLegionToolkit-sub000/internal/temperature"
	"github.com/earnest-s/LenovoLegionToolkit-sub000/internal/transition"
	"github.com/earnest-s/LenovoLegionToolkit-sub000/internal/types"
	"github.com/earnest-s/LenovoLegionToolkit-sub000/internal/version"
)

// powerModeColors 电源模式切换动画的反馈颜色
var powerModeColors = map[string]frame.RGBColor{
	"quiet":       {B: 255},
	"balanced":    {R: 255, G: 255, B: 255},
	"performance": {R: 255},
}

// frameBroadcastInterval 帧事件对外广播的最小间隔
const frameBroadcastInterval = 33 * time.Millisecond

// CoreApp 核心应用：把设备网关、帧调度器、灯效控制器、
// 切换动画器和各信号源装配成一个常驻服务
type CoreApp struct {
	gateway       *device.Gateway
	dispatcher    *dispatch.Dispatcher
	controller    *effect.Controller
	animator      *transition.Animator
	configManager *config.Manager
	conflictCheck *conflict.Checker
	tempReader    *temperature.Reader
	screenSampler *screen.Sampler
	keyboardHook  *input.Hook
	logger        *logger.CustomLogger
	ipcServer     *ipc.Server

	mutex             sync.RWMutex
	isConnected       bool
	currentEffectName string
	lastFrameEvent    time.Time
	debugMode         bool
}

// NewCoreApp 创建核心应用实例
func NewCoreApp(debugMode bool) *CoreApp {
	installDir := config.GetInstallDir()
	customLogger, err := logger.NewCustomLogger(debugMode, installDir)
	if err != nil {
		panic(fmt.Sprintf("初始化日志系统失败: %v", err))
	}
	customLogger.Info("核心服务启动")
	customLogger.Info("安装目录: %s", installDir)
	customLogger.CleanOldLogs()

	gateway := device.NewGateway(customLogger)
	dispatcher := dispatch.NewDispatcher(gateway, customLogger)
	conflictCheck := conflict.NewChecker(customLogger)
	controller := effect.NewController(dispatcher, gateway, conflictCheck, customLogger)

	app := &CoreApp{
		gateway:       gateway,
		dispatcher:    dispatcher,
		controller:    controller,
		configManager: config.NewManager(installDir, customLogger),
		conflictCheck: conflictCheck,
		tempReader:    temperature.NewReader(customLogger),
		screenSampler: screen.NewSampler(customLogger),
		keyboardHook:  input.NewHook(customLogger),
		logger:        customLogger,
		debugMode:     debugMode,
	}

	app.animator = transition.NewAnimator(dispatcher, controller.ResumeFromOverride, customLogger)
	controller.SetRestartHandler(app.restartSelectedPreset)
	gateway.SetOnDisconnect(app.onDeviceDisconnect)

	return app
}

// Start 启动核心服务
func (a *CoreApp) Start() error {
	a.logInfo("=== Legion 背光核心服务启动 ===")
	a.logInfo("版本: %s", version.Get())

	cfg := a.configManager.Load()
	if cfg.DebugMode {
		a.debugMode = true
		a.logger.SetDebugMode(true)
	}
	a.dispatcher.SetBrightness(byte(cfg.Brightness))

	if err := a.gateway.Init(); err != nil {
		a.logError("初始化HID库失败: %v", err)
		return err
	}

	if err := a.keyboardHook.Start(); err != nil {
		// 键盘钩子失败只影响输入响应灯效, 不拦启动
		a.logWarn("安装键盘钩子失败: %v", err)
	}

	a.logInfo("启动 IPC 服务器")
	a.ipcServer = ipc.NewServer(a.handleIPCRequest, a.logger)
	if err := a.ipcServer.Start(); err != nil {
		a.logError("启动 IPC 服务器失败: %v", err)
		return err
	}

	// 帧广播节流转发给 IPC 客户端
	a.dispatcher.Subscribe(a.onFramePublished)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				a.logError("延迟连接设备时发生Panic: %v", r)
			}
		}()
		time.Sleep(1 * time.Second)
		if a.ConnectDevice() {
			a.restartSelectedPreset()
		}
	}()

	return nil
}

// Stop 停止核心服务
func (a *CoreApp) Stop() {
	a.logInfo("核心服务正在停止...")
	a.animator.Stop()
	a.controller.StopEffect()
	if err := a.dispatcher.SendFirmwareCommand(device.OffRecord()); err != nil {
		a.logDebug("退出前关灯失败: %v", err)
	}
	a.keyboardHook.Stop()
	a.gateway.Disconnect()
	if err := a.gateway.Exit(); err != nil {
		a.logDebug("释放HID库失败: %v", err)
	}
	audio.Terminate()
	if a.ipcServer != nil {
		a.ipcServer.Stop()
	}
	a.logInfo("核心服务已停止")
	a.logger.Close()
}

// ConnectDevice 连接背光设备
func (a *CoreApp) ConnectDevice() bool {
	success, deviceInfo := a.gateway.Connect()
	a.mutex.Lock()
	a.isConnected = success
	a.mutex.Unlock()

	if success {
		if deviceInfo != nil && a.ipcServer != nil {
			a.ipcServer.BroadcastEvent(ipc.EventDeviceConnected, deviceInfo)
		}
	} else if a.ipcServer != nil {
		a.ipcServer.BroadcastEvent(ipc.EventDeviceError, "连接失败")
	}
	return success
}

// onDeviceDisconnect 设备断开回调：通知客户端并进入重连退避
func (a *CoreApp) onDeviceDisconnect() {
	a.mutex.Lock()
	wasConnected := a.isConnected
	a.isConnected = false
	a.mutex.Unlock()

	if wasConnected {
		a.logInfo("设备连接意外断开，将尝试自动重连")
	}
	if a.ipcServer != nil {
		a.ipcServer.BroadcastEvent(ipc.EventDeviceDisconnected, nil)
	}

	a.controller.StopEffect()
	go a.scheduleReconnect()
}

// scheduleReconnect 重连退避：2s/5s/10s/30s 四次
func (a *CoreApp) scheduleReconnect() {
	defer func() {
		if r := recover(); r != nil {
			a.logError("自动重连时发生Panic: %v", r)
		}
	}()

	retryDelays := []time.Duration{2 * time.Second, 5 * time.Second, 10 * time.Second, 30 * time.Second}
	for i, delay := range retryDelays {
		a.mutex.RLock()
		connected := a.isConnected
		a.mutex.RUnlock()
		if connected {
			return
		}

		a.logInfo("等待 %v 后尝试第 %d 次重连...", delay, i+1)
		time.Sleep(delay)

		if a.ConnectDevice() {
			a.logInfo("设备重连成功，重新应用当前预设")
			a.restartSelectedPreset()
			return
		}
		a.logError("第 %d 次重连失败", i+1)
	}
}

// restartSelectedPreset 重新应用当前选中的预设（冷恢复与重连共用）
func (a *CoreApp) restartSelectedPreset() {
	name, desc, err := a.configManager.SelectedPreset()
	if err != nil {
		a.logError("读取当前预设失败: %v", err)
		return
	}
	if err := a.applyPreset(name, desc); err != nil {
		a.logError("应用预设 %s 失败: %v", name, err)
	}
}

// applyPreset 应用灯效预设。
// 固件灯效：停掉软件灯效后下发固件命令，并合成预览帧；
// 软件灯效：构造灯效实例并交给控制器启动。
func (a *CoreApp) applyPreset(name string, desc types.PresetDescriptor) error {
	a.logInfo("应用预设: %s (类型 %s)", name, desc.Type)

	if desc.Type.IsFirmware() {
		a.controller.StopEffect()
		rec := a.firmwareRecord(desc)
		if err := a.dispatcher.SendFirmwareCommand(rec); err != nil {
			return err
		}
		// 固件自行渲染, 合成一帧预览给外部消费方
		a.dispatcher.RenderPreview(rec.Zones)
		a.setCurrentEffectName(string(desc.Type))
		return nil
	}

	e, err := effect.New(desc, a.providers())
	if err != nil {
		return err
	}
	if err := a.controller.StartEffect(e); err != nil {
		return err
	}
	a.setCurrentEffectName(e.Name())
	return nil
}

// firmwareRecord 预设描述转固件命令记录
func (a *CoreApp) firmwareRecord(desc types.PresetDescriptor) device.StateRecord {
	var zones frame.ZoneFrame
	for i, c := range desc.Colors {
		zones[i] = frame.RGBColor{R: byte(c.R), G: byte(c.G), B: byte(c.B)}
	}

	rec := device.StateRecord{
		Speed:      byte(desc.ClampSpeed()),
		Brightness: a.dispatcher.Brightness(),
		Zones:      zones,
	}
	switch desc.Type {
	case types.EffectOff:
		return device.OffRecord()
	case types.EffectStatic:
		rec.Effect = device.EffectCodeStatic
	case types.EffectBreath:
		rec.Effect = device.EffectCodeBreath
	case types.EffectWave:
		rec.Effect = device.EffectCodeWave
		rec.WaveLTR = desc.Direction != types.WaveRTL
		rec.WaveRTL = desc.Direction == types.WaveRTL
	case types.EffectSmooth:
		rec.Effect = device.EffectCodeSmooth
	}
	return rec
}

// providers 装配响应式灯效的信号源集合
func (a *CoreApp) providers() effect.Providers {
	return effect.Providers{
		Input:   a.keyboardHook,
		Screen:  a.screenSampler,
		Sensors: a.tempReader,
		NewAudioSource: func() (effect.AudioSource, error) {
			if err := audio.Initialize(); err != nil {
				return nil, err
			}
			capture, err := audio.NewCapture(audio.DefaultRingSize)
			if err != nil {
				return nil, err
			}
			return capture, nil
		},
		Logger: a.logger,
	}
}

// onFramePublished 调度器帧广播的节流转发
func (a *CoreApp) onFramePublished(f frame.ZoneFrame) {
	a.mutex.Lock()
	if time.Since(a.lastFrameEvent) < frameBroadcastInterval {
		a.mutex.Unlock()
		return
	}
	a.lastFrameEvent = time.Now()
	a.mutex.Unlock()

	if a.ipcServer != nil && a.ipcServer.HasClients() {
		a.ipcServer.BroadcastEvent(ipc.EventFrameUpdate, f.Bytes())
	}
}

// onPowerModeChanged 电源模式切换通知：播放频闪反馈动画
func (a *CoreApp) onPowerModeChanged(mode string) error {
	color, ok := powerModeColors[strings.ToLower(mode)]
	if !ok {
		return fmt.Errorf("未知的电源模式: %s", mode)
	}
	a.logInfo("电源模式切换: %s", mode)
	a.animator.Play(color)
	return nil
}

func (a *CoreApp) setCurrentEffectName(name string) {
	a.mutex.Lock()
	a.currentEffectName = name
	a.mutex.Unlock()
}

// handleIPCRequest IPC 请求路由
func (a *CoreApp) handleIPCRequest(req ipc.Request) ipc.Response {
	defer func() {
		if r := recover(); r != nil {
			a.logError("处理 IPC 请求时发生 Panic: %v", r)
		}
	}()

	switch req.Type {
	case ipc.ReqGetStatus:
		return a.dataResponse(a.status())
	case ipc.ReqGetConfig:
		return a.dataResponse(a.configManager.Get())
	case ipc.ReqGetPreset:
		name, desc, err := a.configManager.SelectedPreset()
		if err != nil {
			return a.errorResponse(err.Error())
		}
		return a.dataResponse(ipc.SetPresetParams{Name: name, Preset: desc})
	case ipc.ReqSelectPreset:
		var params ipc.SelectPresetParams
		if err := json.Unmarshal(req.Data, &params); err != nil {
			return a.errorResponse("解析参数失败: " + err.Error())
		}
		desc, err := a.configManager.SelectPreset(params.Name)
		if err != nil {
			return a.errorResponse(err.Error())
		}
		if err := a.applyPreset(params.Name, desc); err != nil {
			return a.errorResponse(err.Error())
		}
		a.broadcastPresetChanged(params.Name)
		return a.successResponse(true)
	case ipc.ReqSetPreset:
		var params ipc.SetPresetParams
		if err := json.Unmarshal(req.Data, &params); err != nil {
			return a.errorResponse("解析参数失败: " + err.Error())
		}
		if err := a.configManager.SetPreset(params.Name, params.Preset); err != nil {
			return a.errorResponse(err.Error())
		}
		// 改的是当前预设就立即生效
		if current, _, err := a.configManager.SelectedPreset(); err == nil && current == params.Name {
			if err := a.applyPreset(params.Name, params.Preset); err != nil {
				return a.errorResponse(err.Error())
			}
		}
		a.broadcastPresetChanged(params.Name)
		return a.successResponse(true)
	case ipc.ReqListPresets:
		return a.dataResponse(a.configManager.ListPresets())
	case ipc.ReqSetBrightness:
		var params ipc.SetIntParams
		if err := json.Unmarshal(req.Data, &params); err != nil {
			return a.errorResponse("解析参数失败: " + err.Error())
		}
		if err := a.configManager.SetBrightness(params.Value); err != nil {
			return a.errorResponse(err.Error())
		}
		a.dispatcher.SetBrightness(byte(params.Value))
		// 亮度编进每条记录, 重新应用预设让固件灯效立即生效
		a.restartSelectedPreset()
		return a.successResponse(true)
	case ipc.ReqSetOff:
		a.controller.StopEffect()
		if err := a.dispatcher.SendFirmwareCommand(device.OffRecord()); err != nil {
			return a.errorResponse(err.Error())
		}
		a.setCurrentEffectName(string(types.EffectOff))
		return a.successResponse(true)
	case ipc.ReqNotifyPowerModeChanged:
		var params ipc.PowerModeParams
		if err := json.Unmarshal(req.Data, &params); err != nil {
			return a.errorResponse("解析参数失败: " + err.Error())
		}
		if err := a.onPowerModeChanged(params.Mode); err != nil {
			return a.errorResponse(err.Error())
		}
		return a.successResponse(true)
	case ipc.ReqSetDebugMode:
		var params ipc.SetBoolParams
		if err := json.Unmarshal(req.Data, &params); err != nil {
			return a.errorResponse("解析参数失败: " + err.Error())
		}
		a.SetDebugMode(params.Enabled)
		return a.successResponse(true)
	case ipc.ReqGetVersion:
		return a.dataResponse(version.Get())
	case ipc.ReqPing:
		return a.dataResponse("pong")
	default:
		return a.errorResponse(fmt.Sprintf("未知的请求类型: %s", req.Type))
	}
}

// status 汇总当前运行状态
func (a *CoreApp) status() ipc.StatusData {
	a.mutex.RLock()
	connected := a.isConnected
	effectName := a.currentEffectName
	a.mutex.RUnlock()

	selected := a.configManager.Get().SelectedPreset

	return ipc.StatusData{
		DeviceConnected: connected,
		EffectRunning:   a.controller.IsRunning(),
		EffectName:      effectName,
		SelectedPreset:  selected,
		Conflict:        a.conflictCheck.ConflictingProcess(),
		Version:         version.Get(),
	}
}

// SetDebugMode 切换调试模式并落盘
func (a *CoreApp) SetDebugMode(enabled bool) {
	a.mutex.Lock()
	a.debugMode = enabled
	a.mutex.Unlock()

	a.logger.SetDebugMode(enabled)
	cfg := a.configManager.Get()
	cfg.DebugMode = enabled
	if err := a.configManager.Update(cfg); err != nil {
		a.logError("保存调试模式配置失败: %v", err)
	}
	a.logInfo("调试模式: %v", enabled)
}

func (a *CoreApp) broadcastPresetChanged(name string) {
	if a.ipcServer != nil {
		a.ipcServer.BroadcastEvent(ipc.EventPresetChanged, name)
	}
}

func (a *CoreApp) successResponse(success bool) ipc.Response {
	data, _ := json.Marshal(success)
	return ipc.Response{Success: true, Data: data}
}

func (a *CoreApp) errorResponse(errMsg string) ipc.Response {
	return ipc.Response{Success: false, Error: errMsg}
}

func (a *CoreApp) dataResponse(data any) ipc.Response {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return a.errorResponse("序列化数据失败: " + err.Error())
	}
	return ipc.Response{Success: true, Data: dataBytes}
}

// 日志辅助方法
func (a *CoreApp) logInfo(format string, v ...any) {
	if a.logger != nil {
		a.logger.Info(format, v...)
	}
}

func (a *CoreApp) logError(format string, v ...any) {
	if a.logger != nil {
		a.logger.Error(format, v...)
	}
}

func (a *CoreApp) logWarn(format string, v ...any) {
	if a.logger != nil {
		a.logger.Warn(format, v...)
	}
}

func (a *CoreApp) logDebug(format string, v ...any) {
	if a.logger != nil {
		a.logger.Debug(format, v...)
	}
}
