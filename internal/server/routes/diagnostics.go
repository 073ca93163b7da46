package routes

import (
	"sort"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"

	"github.com/pipestream/pipestream/internal/mediatype"
	"github.com/pipestream/pipestream/internal/metrics"
	"github.com/pipestream/pipestream/internal/server"
	"github.com/pipestream/pipestream/internal/transform"
)

// Diagnostics 汇总诊断接口需要读取的运行时对象，任一字段为空时跳过对应路由。
type Diagnostics struct {
	Mounts     *server.MountRegistry
	Types      *mediatype.Table
	Transforms *transform.Registry
	Metrics    *metrics.Recorder
}

// RegisterDiagnosticsRoutes 暴露 /-/ 下的只读诊断接口，供运维查询挂载点、类型表与转换器。
func RegisterDiagnosticsRoutes(app *fiber.App, d Diagnostics) {
	if app == nil {
		return
	}

	if d.Transforms != nil {
		app.Get("/-/transforms", func(c fiber.Ctx) error {
			return c.JSON(fiber.Map{
				"transforms": encodeTransforms(d.Transforms.Snapshot()),
				"kinds":      transform.Kinds(),
			})
		})
	}

	if d.Types != nil {
		app.Get("/-/media-types", func(c fiber.Ctx) error {
			return c.JSON(fiber.Map{
				"media_types": d.Types.Snapshot(),
			})
		})
	}

	if d.Mounts != nil {
		app.Get("/-/mounts", func(c fiber.Ctx) error {
			return c.JSON(fiber.Map{
				"mounts": encodeMounts(d.Mounts.List()),
			})
		})
	}

	if d.Metrics != nil {
		app.Get("/-/metrics", adaptor.HTTPHandler(d.Metrics.Handler()))
	}
}

type transformPayload struct {
	Extension string `json:"extension"`
	Handlers  int    `json:"handlers"`
}

type mountPayload struct {
	Name        string `json:"name"`
	Prefix      string `json:"prefix"`
	Root        string `json:"root"`
	CacheMode   string `json:"cache_mode"`
	CachedSizes int    `json:"cached_sizes"`
}

func encodeTransforms(snapshot map[string]int) []transformPayload {
	if len(snapshot) == 0 {
		return []transformPayload{}
	}
	result := make([]transformPayload, 0, len(snapshot))
	for ext, count := range snapshot {
		result = append(result, transformPayload{Extension: ext, Handlers: count})
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Extension < result[j].Extension
	})
	return result
}

func encodeMounts(routes []server.MountRoute) []mountPayload {
	if len(routes) == 0 {
		return []mountPayload{}
	}
	result := make([]mountPayload, 0, len(routes))
	for _, route := range routes {
		item := mountPayload{
			Name:      route.Config.Name,
			Prefix:    route.Prefix,
			Root:      route.Config.Root,
			CacheMode: "no-cache",
		}
		if route.Sizes != nil {
			if route.Sizes.Enabled() {
				item.CacheMode = "cached"
			}
			item.CachedSizes = route.Sizes.Len()
		}
		result = append(result, item)
	}
	return result
}
