// gateway 图书目录API转发网关
//
// 启动流程：
//  1. 加载.env和配置（CONFIG_PATH指定YAML文件，GATEWAY_前缀环境变量覆盖）
//  2. 初始化日志、指标、追踪
//  3. Wire组装依赖
//  4. 启动HTTP服务，收到SIGINT/SIGTERM后优雅关闭
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/xiebiao/librarydesk/internal/infrastructure/config"
	"github.com/xiebiao/librarydesk/pkg/logger"
	"github.com/xiebiao/librarydesk/pkg/metrics"
	"github.com/xiebiao/librarydesk/pkg/tracing"
)

func main() {
	// 步骤1: 加载配置
	// .env不存在时忽略
	_ = godotenv.Load()

	cfg, err := config.LoadGateway(os.Getenv("CONFIG_PATH"))
	if err != nil {
		log.Fatalf("❌ 加载配置失败: %v", err)
	}

	fmt.Printf("✓ 配置加载成功\n")
	fmt.Printf("  - 服务端口: %d\n", cfg.Server.HTTPPort)
	fmt.Printf("  - 运行模式: %s\n", cfg.Server.Mode)
	fmt.Printf("  - 上游服务: %s\n", cfg.Upstream.BaseURL)

	// 步骤2: 日志、指标、追踪
	logg, err := logger.Setup(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
	if err != nil {
		log.Fatalf("❌ 初始化日志失败: %v", err)
	}

	if cfg.Metrics.Enabled {
		metrics.InitMetrics()
	}

	if cfg.Tracing.Enabled {
		shutdown, err := tracing.InitTracer(tracing.Config{
			ServiceName: cfg.Server.Name,
			Endpoint:    cfg.Tracing.Endpoint,
			Insecure:    cfg.Tracing.Insecure,
			SampleRatio: cfg.Tracing.SampleRatio,
		})
		if err != nil {
			log.Fatalf("❌ 初始化追踪失败: %v", err)
		}
		defer func() {
			if err := shutdown(context.Background()); err != nil {
				logg.Warn("关闭追踪失败", "error", err)
			}
		}()
		fmt.Printf("✓ 追踪已启用: %s\n", cfg.Tracing.Endpoint)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 步骤3: 依赖注入
	engine, cleanup, err := InitializeGateway(ctx, cfg, logg)
	if err != nil {
		log.Fatalf("❌ 初始化网关失败: %v", err)
	}
	defer cleanup()

	// 步骤4: 启动服务
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler:      engine,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	fmt.Printf("\n🚀 网关启动成功！\n")
	fmt.Printf("   访问地址: http://localhost%s\n", srv.Addr)
	fmt.Printf("   健康检查: http://localhost%s/health\n", srv.Addr)
	fmt.Printf("   图书接口: http://localhost%s/api/books\n", srv.Addr)
	fmt.Printf("   借阅接口: http://localhost%s/api/borrow\n", srv.Addr)
	if cfg.Metrics.Enabled {
		fmt.Printf("   指标: http://localhost%s%s\n", srv.Addr, cfg.Metrics.Path)
	}
	fmt.Printf("\n按Ctrl+C停止服务\n\n")

	select {
	case err := <-errCh:
		logg.Error("❌ 服务异常退出", "error", err)
	case <-ctx.Done():
		logg.Info("📴 收到关闭信号，开始优雅关闭...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logg.Error("优雅关闭失败", "error", err)
	}
	logg.Info("✅ 网关已安全关闭", slog.String("name", cfg.Server.Name))
}
