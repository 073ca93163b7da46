package main

import (
	"bytes"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v3"
	"github.com/spf13/afero"

	"github.com/pipestream/pipestream/internal/config"
	"github.com/pipestream/pipestream/internal/logging"
)

func TestParseCLIFlagsPriority(t *testing.T) {
	t.Setenv("PIPESTREAM_CONFIG", "/tmp/env.toml")

	opts, err := parseCLIFlags([]string{})
	if err != nil {
		t.Fatalf("解析失败: %v", err)
	}
	if opts.configPath != "/tmp/env.toml" {
		t.Fatalf("应优先使用环境变量，得到 %s", opts.configPath)
	}

	opts, err = parseCLIFlags([]string{"--config", "/tmp/flag.toml", "--check-config"})
	if err != nil {
		t.Fatalf("解析失败: %v", err)
	}
	if opts.configPath != "/tmp/flag.toml" || !opts.checkOnly {
		t.Fatalf("flag 应高于环境变量，得到 %+v", opts)
	}

	if _, err := parseCLIFlags([]string{"--unknown"}); err == nil {
		t.Fatalf("未知参数应返回错误")
	}
}

func TestRunCheckConfigSuccess(t *testing.T) {
	useBufferWriters(t)
	code := run(cliOptions{configPath: configFixture(t, "valid.toml"), checkOnly: true})
	if code != 0 {
		t.Fatalf("期望退出码 0，得到 %d (stderr=%s)", code, stdErrBuffer().String())
	}
}

func TestRunCheckConfigFailure(t *testing.T) {
	useBufferWriters(t)
	code := run(cliOptions{configPath: configFixture(t, "missing.toml"), checkOnly: true})
	if code == 0 {
		t.Fatalf("无效配置应返回非零退出码")
	}
	if !strings.Contains(stdErrBuffer().String(), "加载配置失败") {
		t.Fatalf("stderr 应包含失败原因，得到 %s", stdErrBuffer().String())
	}
}

func TestRunVersionOutput(t *testing.T) {
	useBufferWriters(t)
	code := run(cliOptions{showVersion: true})
	if code != 0 {
		t.Fatalf("version 模式应成功退出，得到 %d", code)
	}
	if !strings.Contains(stdOut.(*bytes.Buffer).String(), "pipestream") {
		t.Fatalf("version 输出应包含 pipestream 标识")
	}
}

func TestBuildAppServesConfiguredMounts(t *testing.T) {
	base := afero.NewMemMapFs()
	_ = afero.WriteFile(base, "/srv/subs/intro.srt", []byte("1\n00:00:00,500 --> 00:00:01,000\nHi\n"), 0o644)
	_ = afero.WriteFile(base, "/srv/subs/intro.notes", []byte("notes"), 0o644)

	cfg := &config.Config{
		Global: config.GlobalConfig{ListenPort: 5000, StrictStatus: true},
		Mounts: []config.MountConfig{{Name: "subs", Prefix: "/subs", Root: "/srv/subs"}},
		MediaTypes: []config.MediaTypeConfig{
			{Extension: ".notes", Type: "text/plain"},
		},
		Transforms: []config.TransformConfig{
			{Extension: ".srt", Kind: "srt-vtt"},
		},
	}

	app, err := buildApp(cfg, logging.NewDiscardLogger(), base)
	if err != nil {
		t.Fatalf("buildApp 失败: %v", err)
	}

	cases := []struct {
		target string
		status int
		body   string
	}{
		{"/subs/intro.srt", fiber.StatusOK, "WEBVTT\n\n1\n00:00:00.500 --> 00:00:01.000\nHi\n"},
		{"/subs/intro.notes", fiber.StatusOK, "notes"},
		{"/subs/missing.srt", fiber.StatusNotFound, "/missing.srt not found"},
	}
	for _, tc := range cases {
		resp, err := app.Test(httptest.NewRequest("GET", "http://localhost"+tc.target, nil))
		if err != nil {
			t.Fatalf("%s: app.Test 失败: %v", tc.target, err)
		}
		body, _ := io.ReadAll(resp.Body)
		if resp.StatusCode != tc.status || string(body) != tc.body {
			t.Fatalf("%s: 得到 %d %q", tc.target, resp.StatusCode, string(body))
		}
	}

	resp, err := app.Test(httptest.NewRequest("GET", "http://localhost/subs/intro.srt", nil))
	if err != nil {
		t.Fatalf("字幕请求失败: %v", err)
	}
	if got := resp.Header.Get("Content-Type"); got != "text/vtt" {
		t.Fatalf("转换后的字幕应为 text/vtt，得到 %s", got)
	}

	resp, err = app.Test(httptest.NewRequest("GET", "http://localhost/-/transforms", nil))
	if err != nil {
		t.Fatalf("诊断接口请求失败: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), `".srt"`) {
		t.Fatalf("诊断接口应列出 .srt 转换器，得到 %s", string(body))
	}
}

func TestBuildAppRejectsUnknownKind(t *testing.T) {
	cfg := &config.Config{
		Global:     config.GlobalConfig{ListenPort: 5000},
		Mounts:     []config.MountConfig{{Name: "subs", Prefix: "/subs", Root: "/srv/subs"}},
		Transforms: []config.TransformConfig{{Extension: ".srt", Kind: "nope"}},
	}
	if _, err := buildApp(cfg, logging.NewDiscardLogger(), afero.NewMemMapFs()); err == nil {
		t.Fatalf("未注册的转换器应返回错误")
	}
}
