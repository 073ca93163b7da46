package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/pipestream/pipestream/internal/config"
	"github.com/pipestream/pipestream/internal/logging"
	"github.com/pipestream/pipestream/internal/mediatype"
	"github.com/pipestream/pipestream/internal/metrics"
	"github.com/pipestream/pipestream/internal/server"
	"github.com/pipestream/pipestream/internal/server/routes"
	"github.com/pipestream/pipestream/internal/stream"
	"github.com/pipestream/pipestream/internal/transform"
	_ "github.com/pipestream/pipestream/internal/transform/subtitle"
	"github.com/pipestream/pipestream/internal/version"
)

// cliOptions 汇总 CLI 标志解析后的结果，便于在测试中注入。
type cliOptions struct {
	configPath  string
	checkOnly   bool
	showVersion bool
}

var (
	stdOut io.Writer = os.Stdout
	stdErr io.Writer = os.Stderr
)

func main() {
	opts, err := parseCLIFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintln(stdErr, err.Error())
		os.Exit(2)
	}
	os.Exit(run(opts))
}

// run 根据解析到的 CLI 选项执行业务流程，并返回退出码，方便测试。
func run(opts cliOptions) int {
	if opts.showVersion {
		printVersion()
		return 0
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		fmt.Fprintf(stdErr, "加载配置失败: %v\n", err)
		return 1
	}

	logger, err := logging.InitLogger(cfg.Global)
	if err != nil {
		fmt.Fprintf(stdErr, "初始化日志失败: %v\n", err)
		return 1
	}

	if opts.checkOnly {
		fields := logging.BaseFields("check_config", opts.configPath)
		fields["mounts"] = config.MountSummary(cfg.Mounts)
		fields["transforms"] = len(cfg.Transforms)
		fields["result"] = "ok"
		logger.WithFields(fields).Info("配置校验通过")
		return 0
	}

	// 启动顺序：配置 → 类型表/转换器 → MountRegistry → Fiber server，
	// 所有挂载点共享同一份类型表、转换器注册表与指标。
	app, err := buildApp(cfg, logger, afero.NewOsFs())
	if err != nil {
		fmt.Fprintf(stdErr, "构建服务失败: %v\n", err)
		return 1
	}

	fields := logging.BaseFields("startup", opts.configPath)
	fields["mounts"] = config.MountSummary(cfg.Mounts)
	fields["listen_port"] = cfg.Global.ListenPort
	fields["cache_mode"] = cfg.Global.CacheMode()
	fields["version"] = version.Full()
	logger.WithFields(fields).Info("配置加载完成")

	if err := startHTTPServer(app, cfg.Global.ListenPort, logger); err != nil {
		fmt.Fprintf(stdErr, "HTTP 服务启动失败: %v\n", err)
		return 1
	}
	return 0
}

// parseCLIFlags 解析 CLI 参数，并结合环境变量计算最终的配置路径。
func parseCLIFlags(args []string) (cliOptions, error) {
	fs := flag.NewFlagSet("pipestream", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var (
		configFlag string
		checkOnly  bool
		showVer    bool
	)

	fs.StringVar(&configFlag, "config", "", "配置文件路径（默认 ./config.toml，可被 PIPESTREAM_CONFIG 覆盖）")
	fs.BoolVar(&checkOnly, "check-config", false, "仅校验配置后退出")
	fs.BoolVar(&showVer, "version", false, "显示版本信息")

	if err := fs.Parse(args); err != nil {
		return cliOptions{}, fmt.Errorf("解析参数失败: %w", err)
	}

	path := os.Getenv("PIPESTREAM_CONFIG")
	if configFlag != "" {
		path = configFlag
	}
	if path == "" {
		path = "config.toml"
	}

	return cliOptions{
		configPath:  path,
		checkOnly:   checkOnly,
		showVersion: showVer,
	}, nil
}

// buildApp 组装 Fiber 应用；base 为各挂载点的底层文件系统。
func buildApp(cfg *config.Config, logger *logrus.Logger, base afero.Fs) (*fiber.App, error) {
	types := mediatype.Default()
	for _, mt := range cfg.MediaTypes {
		types.Set(mt.Extension, mt.Type)
	}

	transforms := transform.NewRegistry()
	for _, tr := range cfg.Transforms {
		factory, ok := transform.LookupKind(tr.Kind)
		if !ok {
			return nil, fmt.Errorf("unknown transform kind %q for %s", tr.Kind, tr.Extension)
		}
		transforms.Register(tr.Extension, factory())
	}

	mounts, err := server.NewMountRegistry(cfg, base)
	if err != nil {
		return nil, fmt.Errorf("构建挂载注册表失败: %w", err)
	}

	recorder := metrics.New()
	handler, err := stream.NewHandler(mounts, stream.Options{
		Types:         types,
		Transforms:    transforms,
		Logger:        logger,
		Metrics:       recorder,
		StrictStatus:  cfg.Global.StrictStatus,
		StreamTimeout: cfg.Global.StreamTimeout.DurationValue(),
	})
	if err != nil {
		return nil, err
	}

	app, err := server.NewApp(server.AppOptions{
		Logger:     logger,
		Registry:   mounts,
		Stream:     handler,
		ListenPort: cfg.Global.ListenPort,
	})
	if err != nil {
		return nil, err
	}
	routes.RegisterDiagnosticsRoutes(app, routes.Diagnostics{
		Mounts:     mounts,
		Types:      types,
		Transforms: transforms,
		Metrics:    recorder,
	})
	return app, nil
}

func startHTTPServer(app *fiber.App, port int, logger *logrus.Logger) error {
	logger.WithFields(logrus.Fields{
		"action": "listen",
		"port":   port,
	}).Info("Fiber 服务启动")

	return app.Listen(fmt.Sprintf(":%d", port))
}
