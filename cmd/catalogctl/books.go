package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	appbook "github.com/xiebiao/librarydesk/internal/application/book"
)

func newBooksCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "books",
		Short: "图书目录",
	}
	cmd.AddCommand(
		newBooksListCmd(a),
		newBooksGetCmd(a),
		newBooksCreateCmd(a),
		newBooksUpdateCmd(a),
		newBooksDeleteCmd(a),
		newBooksImportCmd(a),
	)
	return cmd
}

func newBooksListCmd(a *app) *cobra.Command {
	var req appbook.ListBooksRequest
	cmd := &cobra.Command{
		Use:   "list",
		Short: "列出图书",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			resp, err := a.listBooks.Execute(cmd.Context(), req)
			if err != nil {
				return err
			}
			return a.renderBooks(resp)
		},
	}
	f := cmd.Flags()
	f.StringVar(&req.Filter, "filter", "", "按分类过滤（FICTION、SCIENCE…，all表示全部）")
	f.StringVar(&req.SortBy, "sort-by", appbook.DefaultSortBy, "排序字段")
	f.StringVar(&req.Sort, "sort", appbook.DefaultSort, "asc | desc")
	f.IntVar(&req.Limit, "limit", appbook.DefaultLimit, "每页数量")
	f.IntVar(&req.Page, "page", appbook.DefaultPage, "页码")
	return cmd
}

func newBooksGetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get ID",
		Short: "查看图书",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := a.getBook.Execute(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return a.renderBook(b)
		},
	}
}

func newBooksCreateCmd(a *app) *cobra.Command {
	var req appbook.CreateBookRequest
	var unavailable bool
	cmd := &cobra.Command{
		Use:   "create",
		Short: "新增图书",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if unavailable {
				available := false
				req.Available = &available
			}
			b, err := a.createBook.Execute(cmd.Context(), req)
			if err != nil {
				return err
			}
			return a.renderBook(b)
		},
	}
	f := cmd.Flags()
	f.StringVar(&req.Title, "title", "", "书名")
	f.StringVar(&req.Author, "author", "", "作者")
	f.StringVar(&req.Genre, "genre", "", "分类")
	f.StringVar(&req.ISBN, "isbn", "", "ISBN（10或13位数字）")
	f.StringVar(&req.Description, "description", "", "简介")
	f.IntVar(&req.Copies, "copies", 1, "馆藏数量")
	f.BoolVar(&unavailable, "unavailable", false, "创建为不可借")
	return cmd
}

func newBooksUpdateCmd(a *app) *cobra.Command {
	var (
		title, author, genre, isbn, description string
		copies                                  int
		available                               bool
	)
	cmd := &cobra.Command{
		Use:   "update ID",
		Short: "编辑图书（只发送指定的字段）",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := appbook.UpdateBookRequest{ID: args[0]}
			f := cmd.Flags()
			if f.Changed("title") {
				req.Title = &title
			}
			if f.Changed("author") {
				req.Author = &author
			}
			if f.Changed("genre") {
				req.Genre = &genre
			}
			if f.Changed("isbn") {
				req.ISBN = &isbn
			}
			if f.Changed("description") {
				req.Description = &description
			}
			if f.Changed("copies") {
				req.Copies = &copies
			}
			if f.Changed("available") {
				req.Available = &available
			}

			b, err := a.updateBook.Execute(cmd.Context(), req)
			if err != nil {
				return err
			}
			return a.renderBook(b)
		},
	}
	f := cmd.Flags()
	f.StringVar(&title, "title", "", "书名")
	f.StringVar(&author, "author", "", "作者")
	f.StringVar(&genre, "genre", "", "分类")
	f.StringVar(&isbn, "isbn", "", "ISBN")
	f.StringVar(&description, "description", "", "简介")
	f.IntVar(&copies, "copies", 0, "馆藏数量")
	f.BoolVar(&available, "available", true, "是否可借")
	return cmd
}

func newBooksDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID",
		Short: "删除图书",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.deleteBook.Execute(cmd.Context(), args[0]); err != nil {
				return err
			}
			if a.format == "json" {
				return writeJSON(a.out, map[string]any{"deleted": args[0]})
			}
			a.printf("🗑️  deleted %s\n", args[0])
			return nil
		},
	}
}

func newBooksImportCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "import FILE",
		Short: "从JSON数组批量新增图书，任一条失败则全部撤销",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			var reqs []appbook.CreateBookRequest
			if err := json.Unmarshal(raw, &reqs); err != nil {
				return fmt.Errorf("parse %s: %w", args[0], err)
			}

			books, err := a.importBooks.Execute(cmd.Context(), reqs)
			if err != nil {
				return err
			}
			return a.renderBooks(&appbook.ListBooksResponse{Books: books})
		},
	}
}
