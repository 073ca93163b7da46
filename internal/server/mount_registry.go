package server

import (
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/spf13/afero"

	"github.com/pipestream/pipestream/internal/cache"
	"github.com/pipestream/pipestream/internal/config"
)

// MountRoute 将挂载配置与派生对象（沙箱文件系统、尺寸缓存）聚合在一起，
// 供路由与流式层直接复用。
type MountRoute struct {
	// Config 是 config.toml 中声明的挂载字段副本。
	Config config.MountConfig
	// Prefix 为规范化后的 URL 前缀，根挂载为 "/"。
	Prefix string
	// Fs 以 Root 为根，请求路径无法逃逸出该目录。
	Fs afero.Fs
	// Sizes 缓存该挂载下文件的字节数。
	Sizes *cache.SizeCache
}

// MountRegistry 按最长前缀把请求路径映射到 MountRoute。
type MountRegistry struct {
	routes  map[string]*MountRoute
	ordered []*MountRoute
	byLen   []*MountRoute
}

// NewMountRegistry 根据配置构建前缀映射。base 通常为 afero.NewOsFs()，测试中可替换为内存文件系统。
func NewMountRegistry(cfg *config.Config, base afero.Fs) (*MountRegistry, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	if base == nil {
		return nil, errors.New("base filesystem is nil")
	}

	registry := &MountRegistry{
		routes: make(map[string]*MountRoute, len(cfg.Mounts)),
	}

	for _, mount := range cfg.Mounts {
		prefix := normalizePrefix(mount.Prefix)
		if prefix == "" {
			return nil, fmt.Errorf("invalid prefix for mount %s", mount.Name)
		}
		if _, exists := registry.routes[prefix]; exists {
			return nil, fmt.Errorf("duplicate prefix mapping detected for %s", prefix)
		}

		fsys := afero.NewBasePathFs(base, mount.Root)
		route := &MountRoute{
			Config: mount,
			Prefix: prefix,
			Fs:     fsys,
			Sizes:  cache.NewSizeCache(fsys, !cfg.Global.NoCache),
		}
		registry.routes[prefix] = route
		registry.ordered = append(registry.ordered, route)
	}

	registry.byLen = append([]*MountRoute(nil), registry.ordered...)
	sort.SliceStable(registry.byLen, func(i, j int) bool {
		return len(registry.byLen[i].Prefix) > len(registry.byLen[j].Prefix)
	})

	return registry, nil
}

// Lookup 返回匹配 requestPath 的挂载点以及相对于挂载根目录的路径（始终以 / 开头）。
func (r *MountRegistry) Lookup(requestPath string) (*MountRoute, string, bool) {
	if r == nil {
		return nil, "", false
	}

	cleaned := path.Clean("/" + requestPath)
	for _, route := range r.byLen {
		rest, ok := trimMountPrefix(cleaned, route.Prefix)
		if !ok {
			continue
		}
		return route, path.Clean("/" + rest), true
	}
	return nil, "", false
}

// List 返回按配置顺序排列的挂载点，用于诊断输出。
func (r *MountRegistry) List() []MountRoute {
	if r == nil || len(r.ordered) == 0 {
		return nil
	}

	result := make([]MountRoute, len(r.ordered))
	for i, route := range r.ordered {
		result[i] = *route
	}
	return result
}

// Routes 返回按配置顺序排列的挂载点指针，调用方不应修改其内容。
func (r *MountRegistry) Routes() []*MountRoute {
	if r == nil {
		return nil
	}
	return append([]*MountRoute(nil), r.ordered...)
}

func trimMountPrefix(p, prefix string) (string, bool) {
	if prefix == "/" {
		return p, true
	}
	if p == prefix {
		return "", true
	}
	if strings.HasPrefix(p, prefix+"/") {
		return p[len(prefix):], true
	}
	return "", false
}

func normalizePrefix(prefix string) string {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return ""
	}
	return path.Clean("/" + prefix)
}
