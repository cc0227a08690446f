// Package audio 提供系统音频采集，回调写入固定大小的环形缓冲
package audio

import (
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"
)

var (
	initOnce sync.Once
	termOnce sync.Once
	initErr  error
)

// Initialize 包装 portaudio.Initialize，多次调用安全
func Initialize() error {
	initOnce.Do(func() {
		initErr = portaudio.Initialize()
	})
	return initErr
}

// Terminate 包装 portaudio.Terminate，与 Initialize 配对
func Terminate() {
	if initErr != nil {
		return
	}
	termOnce.Do(func() {
		_ = portaudio.Terminate()
	})
}

// DefaultRingSize 环形缓冲大小 = FFT 长度
const DefaultRingSize = 2048

// Capture 音频采集器。采集回调在自己的线程上把采样写入环形缓冲，
// 与渲染循环的节奏完全无关，缓冲使用独立的锁保护。
type Capture struct {
	stream     *portaudio.Stream
	sampleRate float64
	channels   int

	mu     sync.Mutex
	buffer []float32
	index  int
}

// NewCapture 打开默认输入设备并启动采集流。
// ringSize 必须是2的幂（FFT 长度），<=0 时使用 DefaultRingSize。
func NewCapture(ringSize int) (*Capture, error) {
	if ringSize <= 0 {
		ringSize = DefaultRingSize
	}

	device, err := portaudio.DefaultInputDevice()
	if err != nil || device == nil || device.MaxInputChannels <= 0 {
		return nil, fmt.Errorf("没有可用的音频输入设备: %v", err)
	}

	channels := device.MaxInputChannels
	if channels > 2 {
		channels = 2
	}

	c := &Capture{
		sampleRate: device.DefaultSampleRate,
		channels:   channels,
		buffer:     make([]float32, ringSize),
	}

	stream, err := portaudio.OpenStream(portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   device,
			Channels: channels,
			Latency:  device.DefaultLowInputLatency,
		},
		SampleRate:      c.sampleRate,
		FramesPerBuffer: portaudio.FramesPerBufferUnspecified,
	}, c.process)
	if err != nil {
		return nil, fmt.Errorf("打开音频流失败: %w", err)
	}
	c.stream = stream

	if err := stream.Start(); err != nil {
		_ = stream.Close()
		return nil, fmt.Errorf("启动音频流失败: %w", err)
	}

	return c, nil
}

// SampleRate 采集流采样率
func (c *Capture) SampleRate() float64 {
	return c.sampleRate
}

// Close 停止并关闭采集流
func (c *Capture) Close() error {
	if c.stream == nil {
		return nil
	}
	_ = c.stream.Stop()
	return c.stream.Close()
}

// process 采集回调：多声道取平均折叠成单声道后写入环形缓冲
func (c *Capture) process(in []float32) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.channels > 1 {
		for i := 0; i+c.channels <= len(in); i += c.channels {
			sum := float32(0)
			for ch := 0; ch < c.channels; ch++ {
				sum += in[i+ch]
			}
			c.push(sum / float32(c.channels))
		}
		return
	}
	for _, s := range in {
		c.push(s)
	}
}

// push 写入单个采样（调用方必须持有 mu）
func (c *Capture) push(s float32) {
	c.buffer[c.index] = s
	c.index++
	if c.index == len(c.buffer) {
		c.index = 0
	}
}

// Samples 按时间顺序拷贝出最近的全部采样
func (c *Capture) Samples() []float32 {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]float32, len(c.buffer))
	copy(out, c.buffer[c.index:])
	copy(out[len(c.buffer)-c.index:], c.buffer[:c.index])
	return out
}
