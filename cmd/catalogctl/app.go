package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"golang.org/x/term"

	appbook "github.com/xiebiao/librarydesk/internal/application/book"
	appborrow "github.com/xiebiao/librarydesk/internal/application/borrow"
	"github.com/xiebiao/librarydesk/internal/client"
	"github.com/xiebiao/librarydesk/internal/infrastructure/config"
	"github.com/xiebiao/librarydesk/internal/infrastructure/upstream"
	"github.com/xiebiao/librarydesk/pkg/logger"
	"github.com/xiebiao/librarydesk/pkg/tracing"
)

// app 命令共享的依赖
type app struct {
	cfg    *config.ClientConfig
	log    *slog.Logger
	client *client.Client
	out    io.Writer
	format string // table | json

	listBooks   *appbook.ListBooksUseCase
	getBook     *appbook.GetBookUseCase
	createBook  *appbook.CreateBookUseCase
	updateBook  *appbook.UpdateBookUseCase
	deleteBook  *appbook.DeleteBookUseCase
	importBooks *appbook.ImportBooksUseCase
	borrowBook  *appborrow.BorrowBookUseCase
	summary     *appborrow.SummaryUseCase

	shutdown []func(context.Context) error
}

// load 读取配置并创建客户端；测试中client已注入时跳过
func (a *app) load(configPath, output string) error {
	if a.out == nil {
		a.out = os.Stdout
	}
	a.format = resolveFormat(output, a.out)

	if a.client != nil {
		a.wire()
		return nil
	}

	_ = godotenv.Load()

	cfg, err := config.LoadClient(configPath)
	if err != nil {
		return err
	}
	a.cfg = cfg

	log, err := logger.New(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
	if err != nil {
		return err
	}
	a.log = log

	if cfg.Tracing.Enabled {
		shutdown, err := tracing.InitTracer(tracing.Config{
			ServiceName: "catalogctl",
			Endpoint:    cfg.Tracing.Endpoint,
			Insecure:    cfg.Tracing.Insecure,
			SampleRatio: cfg.Tracing.SampleRatio,
		})
		if err != nil {
			return err
		}
		a.shutdown = append(a.shutdown, shutdown)
	}

	c, err := client.New(client.Options{
		BaseURL:            cfg.BaseURL(),
		Timeout:            cfg.Timeout,
		KeepUnusedFor:      cfg.KeepUnused,
		RefetchConcurrency: cfg.Concurrency,
		Breaker:            upstream.NewBreaker("catalog", cfg.Breaker, client.BreakerSuccessful, log),
		Logger:             log,
	})
	if err != nil {
		return err
	}
	a.client = c
	a.wire()

	log.Debug("客户端已创建", "env", cfg.Env, "base_url", cfg.BaseURL())
	return nil
}

func (a *app) wire() {
	if a.log == nil {
		a.log = slog.New(slog.DiscardHandler)
	}
	books := a.client.Books()
	borrows := a.client.Borrows()

	a.listBooks = appbook.NewListBooksUseCase(books)
	a.getBook = appbook.NewGetBookUseCase(books)
	a.createBook = appbook.NewCreateBookUseCase(books)
	a.updateBook = appbook.NewUpdateBookUseCase(books)
	a.deleteBook = appbook.NewDeleteBookUseCase(books)
	a.importBooks = appbook.NewImportBooksUseCase(books, a.log)
	a.borrowBook = appborrow.NewBorrowBookUseCase(books, borrows)
	a.summary = appborrow.NewSummaryUseCase(borrows)
}

func (a *app) close() {
	if a.client != nil {
		a.client.Close()
	}
	for _, fn := range a.shutdown {
		if err := fn(context.Background()); err != nil {
			a.log.Warn("关闭追踪失败", "error", err)
		}
	}
}

// resolveFormat auto时终端输出表格，管道/文件输出JSON
func resolveFormat(output string, w io.Writer) string {
	switch output {
	case "table", "json":
		return output
	}
	if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		return "table"
	}
	return "json"
}

func (a *app) printf(format string, args ...any) {
	fmt.Fprintf(a.out, format, args...)
}
