// catalogctl 图书目录命令行客户端
//
// 所有读操作经过数据访问层的缓存，写操作成功后按标签让相关缓存失效。
// 配置：CONFIG_PATH或--config指定YAML文件，CATALOG_前缀环境变量覆盖，支持.env。
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func newRootCmd(a *app) *cobra.Command {
	var configPath, output string

	root := &cobra.Command{
		Use:           "catalogctl",
		Short:         "图书目录命令行客户端",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.load(configPath, output)
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			a.close()
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", os.Getenv("CONFIG_PATH"), "配置文件路径")
	root.PersistentFlags().StringVarP(&output, "output", "o", "auto", "输出格式：auto | table | json")

	root.AddCommand(newBooksCmd(a), newBorrowCmd(a), newWatchCmd(a))
	return root
}

func run(ctx context.Context, a *app, args []string, stderr io.Writer) int {
	root := newRootCmd(a)
	root.SetArgs(args)
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(stderr, "❌ %s\n", describeError(err))
		return 1
	}
	return 0
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, &app{}, os.Args[1:], os.Stderr)
	stop()
	os.Exit(code)
}
