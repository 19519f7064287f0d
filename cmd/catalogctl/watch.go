package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	appbook "github.com/xiebiao/librarydesk/internal/application/book"
	"github.com/xiebiao/librarydesk/internal/client"
	"github.com/xiebiao/librarydesk/internal/store"
	"github.com/xiebiao/librarydesk/pkg/mq"
)

func newWatchCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "持续订阅并在变化时重新输出",
	}
	cmd.AddCommand(newWatchBooksCmd(a))
	return cmd
}

func newWatchBooksCmd(a *app) *cobra.Command {
	args := client.ListBooksArgs{
		SortBy: appbook.DefaultSortBy,
		Sort:   appbook.DefaultSort,
		Limit:  appbook.DefaultLimit,
		Page:   appbook.DefaultPage,
	}
	var events bool

	cmd := &cobra.Command{
		Use:   "books",
		Short: "订阅图书列表，直到Ctrl+C",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			if a.cfg != nil && (events || a.cfg.Events.Enabled) {
				consumer, err := mq.NewConsumer(a.cfg.Events.URL, a.cfg.Events.Exchange, "", []string{"catalog.#"}, a.log)
				if err != nil {
					return err
				}
				defer consumer.Close()
				go func() {
					if err := consumer.Consume(ctx, invalidateFromEvent(a.client, a.log)); err != nil {
						a.log.Error("❌ 事件消费失败", "error", err)
					}
				}()
			}

			return a.watchBooks(ctx, args)
		},
	}
	f := cmd.Flags()
	f.StringVar(&args.Filter, "filter", "", "按分类过滤")
	f.StringVar(&args.SortBy, "sort-by", args.SortBy, "排序字段")
	f.StringVar(&args.Sort, "sort", args.Sort, "asc | desc")
	f.IntVar(&args.Limit, "limit", args.Limit, "每页数量")
	f.IntVar(&args.Page, "page", args.Page, "页码")
	f.BoolVar(&events, "events", false, "订阅网关的变更事件（RabbitMQ）")
	return cmd
}

// watchBooks 订阅列表查询，镜像每次变化都重新输出，直到ctx取消
func (a *app) watchBooks(ctx context.Context, args client.ListBooksArgs) error {
	mirror := store.NewMirror()
	defer mirror.Attach(a.client)()

	changed := make(chan struct{}, 1)
	defer mirror.Subscribe(func() {
		select {
		case changed <- struct{}{}:
		default:
		}
	})()

	sub := a.client.ListBooks.Watch(args, nil)
	defer sub.Unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-changed:
			if err := a.renderMirror(mirror); err != nil {
				return err
			}
		}
	}
}

func (a *app) renderMirror(m *store.Mirror) error {
	state := m.BookState()
	if state.Loading {
		return nil
	}

	if a.format == "table" {
		// 清屏
		a.printf("\033[H\033[2J")
	}
	if state.Err != "" {
		a.printf("⚠️  %s\n", state.Err)
	}
	return a.renderBooks(&appbook.ListBooksResponse{Books: state.Books, Pagination: state.Pagination})
}

// invalidateFromEvent 按事件中的标签让本地缓存失效
// 无法识别的标签跳过，不重新入队
func invalidateFromEvent(c *client.Client, log *slog.Logger) mq.Handler {
	return func(_ context.Context, e mq.ChangeEvent) error {
		tags := make([]client.Tag, 0, len(e.Tags))
		for _, s := range e.Tags {
			tag, err := client.ParseTag(s)
			if err != nil {
				log.Warn("跳过未知标签", "tag", s, "operation", e.Operation)
				continue
			}
			tags = append(tags, tag)
		}
		if len(tags) > 0 {
			log.Debug(fmt.Sprintf("📨 %s 失效本地缓存", e.Operation), "tags", e.Tags)
			c.Invalidate(tags...)
		}
		return nil
	}
}
