package config

import (
	"fmt"
	"path"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// Load 读取并解析 TOML 配置文件，同时注入默认值与校验逻辑。
func Load(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = "config.toml"
	}

	v := viper.New()
	v.SetConfigFile(configPath)
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("读取配置失败: %w", err)
	}

	if err := rejectMediaTypeTable(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(durationDecodeHook())); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	applyGlobalDefaults(&cfg.Global)
	for i := range cfg.Mounts {
		applyMountDefaults(&cfg.Mounts[i])
	}
	for i := range cfg.MediaTypes {
		cfg.MediaTypes[i].Extension = normalizeExtension(cfg.MediaTypes[i].Extension)
		cfg.MediaTypes[i].Type = strings.TrimSpace(cfg.MediaTypes[i].Type)
	}
	for i := range cfg.Transforms {
		cfg.Transforms[i].Extension = normalizeExtension(cfg.Transforms[i].Extension)
		cfg.Transforms[i].Kind = strings.ToLower(strings.TrimSpace(cfg.Transforms[i].Kind))
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	for i := range cfg.Mounts {
		absRoot, err := filepath.Abs(cfg.Mounts[i].Root)
		if err != nil {
			return nil, fmt.Errorf("无法解析挂载目录: %w", err)
		}
		cfg.Mounts[i].Root = absRoot
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ListenPort", 5000)
	v.SetDefault("LogLevel", "info")
	v.SetDefault("LogFormat", "json")
	v.SetDefault("LogFilePath", "")
	v.SetDefault("LogMaxSize", 100)
	v.SetDefault("LogMaxBackups", 10)
	v.SetDefault("LogCompress", true)
	v.SetDefault("NoCache", false)
	v.SetDefault("StrictStatus", false)
	v.SetDefault("StreamTimeout", "0s")
}

func applyGlobalDefaults(g *GlobalConfig) {
	if g.ListenPort == 0 {
		g.ListenPort = 5000
	}
	if strings.TrimSpace(g.LogLevel) == "" {
		g.LogLevel = "info"
	}
	g.LogFormat = strings.ToLower(strings.TrimSpace(g.LogFormat))
	if g.LogFormat == "" {
		g.LogFormat = "json"
	}
}

func applyMountDefaults(m *MountConfig) {
	m.Name = strings.TrimSpace(m.Name)
	m.Root = strings.TrimSpace(m.Root)
	m.Prefix = normalizePrefix(m.Prefix)
	if m.Name == "" && m.Prefix != "" {
		m.Name = strings.Trim(m.Prefix, "/")
	}
}

// normalizePrefix 统一为以 / 开头、不以 / 结尾的 URL 前缀；根前缀保持 "/"。
func normalizePrefix(prefix string) string {
	trimmed := strings.TrimSpace(prefix)
	if trimmed == "" {
		return ""
	}
	return path.Clean("/" + trimmed)
}

func normalizeExtension(ext string) string {
	return strings.ToLower(strings.TrimSpace(ext))
}

func durationDecodeHook() mapstructure.DecodeHookFunc {
	targetType := reflect.TypeOf(Duration(0))

	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != targetType {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			if v == "" {
				return Duration(0), nil
			}
			if parsed, err := time.ParseDuration(v); err == nil {
				return Duration(parsed), nil
			}
			if seconds, err := strconv.ParseFloat(v, 64); err == nil {
				return Duration(time.Duration(seconds * float64(time.Second))), nil
			}
			return nil, fmt.Errorf("无法解析 Duration 字段: %s", v)
		case int:
			return Duration(time.Duration(v) * time.Second), nil
		case int64:
			return Duration(time.Duration(v) * time.Second), nil
		case float64:
			return Duration(time.Duration(v * float64(time.Second))), nil
		case time.Duration:
			return Duration(v), nil
		case Duration:
			return v, nil
		default:
			return nil, fmt.Errorf("不支持的 Duration 类型: %T", v)
		}
	}
}

// rejectMediaTypeTable 拒绝 [MediaType] 键值表写法：扩展名中的 "." 会被 viper 当作键分隔符。
func rejectMediaTypeTable(v *viper.Viper) error {
	for _, key := range []string{"MediaType", "Transform", "Mount"} {
		raw := v.Get(key)
		if raw == nil {
			continue
		}
		if _, ok := raw.([]interface{}); ok {
			continue
		}
		if _, ok := raw.([]map[string]interface{}); ok {
			continue
		}
		return newFieldError(key, fmt.Sprintf("必须使用 [[%s]] 数组表写法", key))
	}
	return nil
}
