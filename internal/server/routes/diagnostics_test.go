package routes

import (
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/pipestream/pipestream/internal/config"
	"github.com/pipestream/pipestream/internal/mediatype"
	"github.com/pipestream/pipestream/internal/metrics"
	"github.com/pipestream/pipestream/internal/server"
	"github.com/pipestream/pipestream/internal/transform"
)

func TestEncodeTransformsSortsByExtension(t *testing.T) {
	encoded := encodeTransforms(map[string]int{".vtt": 1, ".srt": 2})
	if len(encoded) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(encoded))
	}
	if encoded[0].Extension != ".srt" || encoded[0].Handlers != 2 {
		t.Fatalf("unexpected first entry: %+v", encoded[0])
	}
	if encoded[1].Extension != ".vtt" {
		t.Fatalf("unexpected second entry: %+v", encoded[1])
	}
	if got := encodeTransforms(nil); got == nil || len(got) != 0 {
		t.Fatalf("expected empty slice for empty registry")
	}
}

func TestDiagnosticsRoutes(t *testing.T) {
	app, registry := newDiagnosticsApp(t)
	registry.Register(".srt", transform.Func(func(_ context.Context, job *transform.Job) error {
		return nil
	}))

	cases := []struct {
		path     string
		contains string
	}{
		{"/-/transforms", `"extension":".srt"`},
		{"/-/media-types", `".mp4":"video/mp4"`},
		{"/-/mounts", `"prefix":"/videos"`},
		{"/-/metrics", "pipestream_streams_in_flight"},
	}
	for _, tc := range cases {
		resp, err := app.Test(httptest.NewRequest("GET", "http://localhost"+tc.path, nil))
		if err != nil {
			t.Fatalf("%s: app.Test failed: %v", tc.path, err)
		}
		if resp.StatusCode != fiber.StatusOK {
			t.Fatalf("%s: expected 200, got %d", tc.path, resp.StatusCode)
		}
		body, _ := io.ReadAll(resp.Body)
		if !strings.Contains(string(body), tc.contains) {
			t.Fatalf("%s: expected %s in %s", tc.path, tc.contains, string(body))
		}
	}
}

func TestMountsPayloadReportsCacheMode(t *testing.T) {
	app, _ := newDiagnosticsApp(t)

	resp, err := app.Test(httptest.NewRequest("GET", "http://localhost/-/mounts", nil))
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	var payload struct {
		Mounts []mountPayload `json:"mounts"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(payload.Mounts) != 1 {
		t.Fatalf("expected one mount, got %d", len(payload.Mounts))
	}
	if payload.Mounts[0].Name != "videos" || payload.Mounts[0].CacheMode != "cached" {
		t.Fatalf("unexpected mount payload: %+v", payload.Mounts[0])
	}
}

func newDiagnosticsApp(t *testing.T) (*fiber.App, *transform.Registry) {
	t.Helper()

	cfg := &config.Config{
		Global: config.GlobalConfig{ListenPort: 5000},
		Mounts: []config.MountConfig{{Name: "videos", Prefix: "/videos", Root: "/srv/videos"}},
	}
	mounts, err := server.NewMountRegistry(cfg, afero.NewMemMapFs())
	if err != nil {
		t.Fatalf("registry: %v", err)
	}

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	app, err := server.NewApp(server.AppOptions{
		Logger:   logger,
		Registry: mounts,
		Stream: server.StreamHandlerFunc(func(c fiber.Ctx, _ *server.MountRoute) error {
			return c.SendStatus(fiber.StatusNoContent)
		}),
		ListenPort: 5000,
	})
	if err != nil {
		t.Fatalf("app: %v", err)
	}

	registry := transform.NewRegistry()
	recorder := metrics.New()
	recorder.StreamOpened()
	RegisterDiagnosticsRoutes(app, Diagnostics{
		Mounts:     mounts,
		Types:      mediatype.Default(),
		Transforms: registry,
		Metrics:    recorder,
	})
	return app, registry
}
