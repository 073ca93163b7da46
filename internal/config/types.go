package config

import (
	"fmt"
	"time"
)

// Duration 由 durationDecodeHook 解码，兼容纯秒数与 Go Duration 字符串。
type Duration time.Duration

// DurationValue 返回真实的 time.Duration，便于调用方计算。
func (d Duration) DurationValue() time.Duration {
	return time.Duration(d)
}

// GlobalConfig 描述全局运行时行为，所有挂载点共享同一份参数。
type GlobalConfig struct {
	ListenPort    int      `mapstructure:"ListenPort"`
	LogLevel      string   `mapstructure:"LogLevel"`
	LogFormat     string   `mapstructure:"LogFormat"`
	LogFilePath   string   `mapstructure:"LogFilePath"`
	LogMaxSize    int      `mapstructure:"LogMaxSize"`
	LogMaxBackups int      `mapstructure:"LogMaxBackups"`
	LogCompress   bool     `mapstructure:"LogCompress"`
	NoCache       bool     `mapstructure:"NoCache"`
	StrictStatus  bool     `mapstructure:"StrictStatus"`
	StreamTimeout Duration `mapstructure:"StreamTimeout"`
}

// MountConfig 将 URL 前缀映射到本地目录。
type MountConfig struct {
	Name   string `mapstructure:"Name"`
	Prefix string `mapstructure:"Prefix"`
	Root   string `mapstructure:"Root"`
}

// MediaTypeConfig 覆盖或补充扩展名 → MIME 类型表。
type MediaTypeConfig struct {
	Extension string `mapstructure:"Extension"`
	Type      string `mapstructure:"Type"`
}

// TransformConfig 把内置转换器（按 Kind 命名）挂到某个扩展名上。
type TransformConfig struct {
	Extension string `mapstructure:"Extension"`
	Kind      string `mapstructure:"Kind"`
}

// Config 是 TOML 文件映射的整体结构。
type Config struct {
	Global     GlobalConfig      `mapstructure:",squash"`
	Mounts     []MountConfig     `mapstructure:"Mount"`
	MediaTypes []MediaTypeConfig `mapstructure:"MediaType"`
	Transforms []TransformConfig `mapstructure:"Transform"`
}

// CacheMode 输出 `cached` 或 `no-cache`，供日志字段使用。
func (g GlobalConfig) CacheMode() string {
	if g.NoCache {
		return "no-cache"
	}
	return "cached"
}

// MountSummary 返回所有挂载点的摘要，例如 videos:/videos。
func MountSummary(mounts []MountConfig) []string {
	if len(mounts) == 0 {
		return nil
	}
	result := make([]string, len(mounts))
	for i, mount := range mounts {
		result[i] = fmt.Sprintf("%s:%s", mount.Name, mount.Prefix)
	}
	return result
}
