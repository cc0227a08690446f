// Package config 提供配置和灯效预设的持久化管理
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/earnest-s/LenovoLegionToolkit-sub000/internal/types"
)

// Manager 配置管理器。对外提供读取当前预设、切换预设、枚举预设三类操作。
type Manager struct {
	mu         sync.RWMutex
	config     types.AppConfig
	installDir string
	logger     types.Logger
}

// NewManager 创建新的配置管理器
func NewManager(installDir string, logger types.Logger) *Manager {
	return &Manager{
		installDir: installDir,
		logger:     logger,
	}
}

// Load 加载配置
func (m *Manager) Load() types.AppConfig {
	m.mu.Lock()
	defer m.mu.Unlock()

	// 优先尝试从默认目录加载配置
	defaultConfigDir := m.defaultConfigDir()
	defaultConfigPath := filepath.Join(defaultConfigDir, "config.json")

	installConfigPath := filepath.Join(m.installDir, "config", "config.json")

	m.logInfo("尝试从默认目录加载配置: %s", defaultConfigPath)

	if m.tryLoadFromPath(defaultConfigPath) {
		m.config.ConfigPath = defaultConfigPath
		m.logInfo("从默认目录加载配置成功: %s", defaultConfigPath)
		return m.config
	}

	m.logInfo("从默认目录加载配置失败，尝试从安装目录加载: %s", installConfigPath)

	if m.tryLoadFromPath(installConfigPath) {
		m.config.ConfigPath = installConfigPath
		m.logInfo("从安装目录加载配置成功: %s", installConfigPath)
		return m.config
	}

	m.logError("所有配置目录加载失败，使用默认配置")

	m.config = types.GetDefaultConfig()
	m.config.ConfigPath = defaultConfigPath
	if err := m.saveLocked(); err != nil {
		m.logError("保存默认配置失败: %v", err)
	}

	return m.config
}

// tryLoadFromPath 尝试从指定路径加载配置
func (m *Manager) tryLoadFromPath(configPath string) bool {
	if _, err := os.Stat(configPath); err != nil {
		m.logDebug("配置文件不存在: %s", configPath)
		return false
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		m.logError("读取配置文件失败 %s: %v", configPath, err)
		return false
	}

	var config types.AppConfig
	if err := json.Unmarshal(data, &config); err != nil {
		m.logError("解析配置文件失败 %s: %v", configPath, err)
		return false
	}

	// 旧版本或手工编辑的配置可能缺少预设集合
	if config.Presets == nil {
		config.Presets = types.GetDefaultPresets()
	}
	if _, ok := config.Presets[config.SelectedPreset]; !ok {
		config.SelectedPreset = types.GetDefaultConfig().SelectedPreset
	}

	m.config = config
	return true
}

// Save 保存配置
func (m *Manager) Save() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveLocked()
}

func (m *Manager) saveLocked() error {
	// 首先尝试保存到默认目录
	defaultConfigDir := m.defaultConfigDir()
	defaultConfigPath := filepath.Join(defaultConfigDir, "config.json")

	m.logDebug("尝试保存配置到默认目录: %s", defaultConfigPath)

	if err := os.MkdirAll(defaultConfigDir, 0755); err != nil {
		m.logError("创建默认配置目录失败: %v", err)
	} else {
		data, err := json.MarshalIndent(m.config, "", "  ")
		if err != nil {
			m.logError("序列化配置失败: %v", err)
		} else {
			if err := os.WriteFile(defaultConfigPath, data, 0644); err != nil {
				m.logError("保存配置到默认目录失败: %v", err)
			} else {
				m.config.ConfigPath = defaultConfigPath
				m.logInfo("配置保存到默认目录成功: %s", defaultConfigPath)
				return nil
			}
		}
	}

	installConfigDir := filepath.Join(m.installDir, "config")
	installConfigPath := filepath.Join(installConfigDir, "config.json")

	m.logInfo("保存到默认目录失败，尝试保存到安装目录: %s", installConfigPath)

	if err := os.MkdirAll(installConfigDir, 0755); err != nil {
		m.logError("创建安装配置目录失败: %v", err)
		return err
	}

	data, err := json.MarshalIndent(m.config, "", "  ")
	if err != nil {
		m.logError("序列化配置失败: %v", err)
		return err
	}

	if err := os.WriteFile(installConfigPath, data, 0644); err != nil {
		m.logError("保存配置到安装目录失败: %v", err)
		return err
	}

	m.config.ConfigPath = installConfigPath
	m.logInfo("配置保存到安装目录成功: %s", installConfigPath)
	return nil
}

// defaultConfigDir 获取默认配置目录
func (m *Manager) defaultConfigDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		m.logError("获取用户主目录失败: %v", err)
		return filepath.Join(m.installDir, "config")
	}
	return filepath.Join(homeDir, ".legion-backlight")
}

// Get 获取当前配置
func (m *Manager) Get() types.AppConfig {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config
}

// Set 设置配置（不落盘）
func (m *Manager) Set(config types.AppConfig) {
	m.mu.Lock()
	m.config = config
	m.mu.Unlock()
}

// Update 更新配置并保存
func (m *Manager) Update(config types.AppConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.config = config
	return m.saveLocked()
}

// SelectedPreset 当前选中的预设
func (m *Manager) SelectedPreset() (string, types.PresetDescriptor, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	desc, ok := m.config.Presets[m.config.SelectedPreset]
	if !ok {
		return "", types.PresetDescriptor{}, fmt.Errorf("预设不存在: %s", m.config.SelectedPreset)
	}
	return m.config.SelectedPreset, desc, nil
}

// SelectPreset 切换当前预设并保存
func (m *Manager) SelectPreset(name string) (types.PresetDescriptor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	desc, ok := m.config.Presets[name]
	if !ok {
		return types.PresetDescriptor{}, fmt.Errorf("预设不存在: %s", name)
	}
	m.config.SelectedPreset = name
	if err := m.saveLocked(); err != nil {
		return desc, err
	}
	return desc, nil
}

// SetPreset 写入（新增或覆盖）一个预设并保存
func (m *Manager) SetPreset(name string, desc types.PresetDescriptor) error {
	if name == "" {
		return fmt.Errorf("预设名称不能为空")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.config.Presets == nil {
		m.config.Presets = make(map[string]types.PresetDescriptor)
	}
	m.config.Presets[name] = desc
	return m.saveLocked()
}

// ListPresets 枚举全部已知预设
func (m *Manager) ListPresets() map[string]types.PresetDescriptor {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]types.PresetDescriptor, len(m.config.Presets))
	for name, desc := range m.config.Presets {
		out[name] = desc
	}
	return out
}

// SetBrightness 更新亮度挡位并保存
func (m *Manager) SetBrightness(level int) error {
	if level < 0 || level > 2 {
		return fmt.Errorf("亮度挡位超出范围: %d", level)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.config.Brightness = level
	return m.saveLocked()
}

// 日志辅助方法
func (m *Manager) logInfo(format string, v ...any) {
	if m.logger != nil {
		m.logger.Info(format, v...)
	}
}

func (m *Manager) logError(format string, v ...any) {
	if m.logger != nil {
		m.logger.Error(format, v...)
	}
}

func (m *Manager) logDebug(format string, v ...any) {
	if m.logger != nil {
		m.logger.Debug(format, v...)
	}
}

// GetInstallDir 获取安装目录
func GetInstallDir() string {
	exePath, err := os.Executable()
	if err != nil {
		return "."
	}
	return filepath.Dir(exePath)
}
