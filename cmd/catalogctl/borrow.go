package main

import (
	"github.com/spf13/cobra"

	appborrow "github.com/xiebiao/librarydesk/internal/application/borrow"
)

func newBorrowCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "borrow",
		Short: "借阅",
	}
	cmd.AddCommand(newBorrowCreateCmd(a), newBorrowSummaryCmd(a))
	return cmd
}

func newBorrowCreateCmd(a *app) *cobra.Command {
	var req appborrow.BorrowBookRequest
	cmd := &cobra.Command{
		Use:   "create BOOK_ID",
		Short: "借书",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.BookID = args[0]
			b, err := a.borrowBook.Execute(cmd.Context(), req)
			if err != nil {
				return err
			}
			return a.renderBorrow(b)
		},
	}
	cmd.Flags().IntVar(&req.Quantity, "quantity", 1, "借阅数量")
	cmd.Flags().StringVar(&req.DueDate, "due", "", "归还日期 YYYY-MM-DD（默认30天后）")
	return cmd
}

func newBorrowSummaryCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "summary",
		Short: "借阅汇总",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			resp, err := a.summary.Execute(cmd.Context())
			if err != nil {
				return err
			}
			return a.renderSummary(resp)
		},
	}
}
