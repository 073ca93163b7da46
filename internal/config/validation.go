package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/pipestream/pipestream/internal/transform"
)

const diagnosticsPrefix = "/-"

// Validate 针对语义级别做进一步校验，防止非法配置启动服务。
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("配置为空")
	}

	g := c.Global
	if g.ListenPort <= 0 || g.ListenPort > 65535 {
		return newFieldError("Global.ListenPort", "必须在 1-65535")
	}
	switch g.LogFormat {
	case "", "json", "text":
	default:
		return newFieldError("Global.LogFormat", "仅支持 json/text")
	}
	if g.StreamTimeout.DurationValue() < 0 {
		return newFieldError("Global.StreamTimeout", "不能为负数")
	}

	if len(c.Mounts) == 0 {
		return errors.New("至少需要配置一个 Mount")
	}

	seenNames := map[string]struct{}{}
	seenPrefixes := map[string]struct{}{}
	for i := range c.Mounts {
		mount := &c.Mounts[i]
		if mount.Name == "" {
			return newFieldError("Mount[].Name", "不能为空")
		}
		if _, exists := seenNames[mount.Name]; exists {
			return newFieldError(mountField(mount.Name, "Name"), "重复")
		}
		seenNames[mount.Name] = struct{}{}

		if err := validatePrefix(mount.Prefix); err != nil {
			return fmt.Errorf("%s: %w", mountField(mount.Name, "Prefix"), err)
		}
		if _, exists := seenPrefixes[mount.Prefix]; exists {
			return newFieldError(mountField(mount.Name, "Prefix"), "重复")
		}
		seenPrefixes[mount.Prefix] = struct{}{}

		if mount.Root == "" {
			return newFieldError(mountField(mount.Name, "Root"), "不能为空")
		}
	}

	for i, mt := range c.MediaTypes {
		field := fmt.Sprintf("MediaType[%d]", i)
		if err := validateExtension(mt.Extension); err != nil {
			return fmt.Errorf("%s.Extension: %w", field, err)
		}
		if mt.Type == "" {
			return newFieldError(field+".Type", "不能为空")
		}
	}

	for i, tr := range c.Transforms {
		field := fmt.Sprintf("Transform[%d]", i)
		if err := validateExtension(tr.Extension); err != nil {
			return fmt.Errorf("%s.Extension: %w", field, err)
		}
		if tr.Kind == "" {
			return newFieldError(field+".Kind", "不能为空")
		}
		if _, ok := transform.LookupKind(tr.Kind); !ok {
			return newFieldError(field+".Kind", fmt.Sprintf("未注册转换器: %s (可选: %s)", tr.Kind, strings.Join(transform.Kinds(), "|")))
		}
	}

	return nil
}

func validatePrefix(prefix string) error {
	if prefix == "" {
		return errors.New("Prefix 不能为空")
	}
	if !strings.HasPrefix(prefix, "/") {
		return errors.New("Prefix 必须以 / 开头")
	}
	if prefix == diagnosticsPrefix || strings.HasPrefix(prefix, diagnosticsPrefix+"/") {
		return errors.New("Prefix 不能占用诊断路径 /-/")
	}
	if strings.Contains(prefix, " ") {
		return errors.New("Prefix 不允许包含空格")
	}
	return nil
}

func validateExtension(ext string) error {
	if ext == "" {
		return errors.New("扩展名不能为空")
	}
	if !strings.HasPrefix(ext, ".") || len(ext) == 1 {
		return errors.New("扩展名必须以 . 开头")
	}
	if strings.ContainsAny(ext, "/ ") {
		return errors.New("扩展名不允许包含 / 或空格")
	}
	return nil
}
