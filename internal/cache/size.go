package cache

import (
	"errors"
	"fmt"
	"io/fs"
	"sync"
	"sync/atomic"

	"github.com/spf13/afero"
)

// ErrNotFound 表示路径不存在（或是目录），由调用方转换为 "not found" 响应。
var ErrNotFound = errors.New("file not found")

// SizeCache 以路径为键缓存文件字节数，整个进程生命周期内不过期。
type SizeCache struct {
	fs       afero.Fs
	disabled atomic.Bool
	entries  sync.Map // path → int64

	observe atomic.Pointer[func(hit bool)]
}

// NewSizeCache 基于给定文件系统构建尺寸缓存；enabled=false 等价于开发模式的 noCache。
func NewSizeCache(fsys afero.Fs, enabled bool) *SizeCache {
	c := &SizeCache{fs: fsys}
	c.disabled.Store(!enabled)
	return c
}

// Observe 注册命中/未命中回调，供指标统计使用。
func (c *SizeCache) Observe(fn func(hit bool)) {
	if fn == nil {
		c.observe.Store(nil)
		return
	}
	c.observe.Store(&fn)
}

// SetEnabled 切换缓存开关。重新开启时不会清理已有的旧条目。
func (c *SizeCache) SetEnabled(enabled bool) {
	c.disabled.Store(!enabled)
}

// Enabled 返回当前是否信任缓存条目。
func (c *SizeCache) Enabled() bool {
	return !c.disabled.Load()
}

// Lookup 返回 path 的字节数。空路径返回 0；文件不存在返回 ErrNotFound。
func (c *SizeCache) Lookup(path string) (int64, error) {
	if path == "" {
		return 0, nil
	}

	enabled := c.Enabled()
	if enabled {
		if value, ok := c.entries.Load(path); ok {
			c.report(true)
			return value.(int64), nil
		}
	}
	c.report(false)

	info, err := c.fs.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, ErrNotFound
		}
		return 0, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return 0, ErrNotFound
	}

	size := info.Size()
	if enabled {
		c.entries.Store(path, size)
	}
	return size, nil
}

// Len 返回已缓存的条目数，仅用于诊断输出。
func (c *SizeCache) Len() int {
	n := 0
	c.entries.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

func (c *SizeCache) report(hit bool) {
	if fn := c.observe.Load(); fn != nil {
		(*fn)(hit)
	}
}
