package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"text/tabwriter"

	appbook "github.com/xiebiao/librarydesk/internal/application/book"
	appborrow "github.com/xiebiao/librarydesk/internal/application/borrow"
	"github.com/xiebiao/librarydesk/internal/domain/book"
	"github.com/xiebiao/librarydesk/internal/domain/borrow"
	apperrors "github.com/xiebiao/librarydesk/pkg/errors"
)

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func table(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func (a *app) renderBooks(resp *appbook.ListBooksResponse) error {
	if a.format == "json" {
		return writeJSON(a.out, resp)
	}

	tw := table(a.out)
	fmt.Fprintln(tw, "ID\tTITLE\tAUTHOR\tGENRE\tISBN\tCOPIES\tAVAILABLE")
	for _, b := range resp.Books {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d\t%s\n", b.ID, b.Title, b.Author, b.Genre, b.ISBN, b.Copies, yesNo(b.Available))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if p := resp.Pagination; p != nil {
		a.printf("\npage %d/%d, %d books\n", p.CurrentPage, p.TotalPages, p.TotalBooks)
	}
	return nil
}

func (a *app) renderBook(b *book.Book) error {
	if a.format == "json" {
		return writeJSON(a.out, b)
	}

	tw := table(a.out)
	fmt.Fprintf(tw, "ID:\t%s\n", b.ID)
	fmt.Fprintf(tw, "Title:\t%s\n", b.Title)
	fmt.Fprintf(tw, "Author:\t%s\n", b.Author)
	fmt.Fprintf(tw, "Genre:\t%s\n", b.Genre)
	fmt.Fprintf(tw, "ISBN:\t%s\n", b.ISBN)
	fmt.Fprintf(tw, "Copies:\t%d\n", b.Copies)
	fmt.Fprintf(tw, "Available:\t%s\n", yesNo(b.Available))
	if b.Description != "" {
		fmt.Fprintf(tw, "Description:\t%s\n", b.Description)
	}
	return tw.Flush()
}

func (a *app) renderBorrow(b *borrow.Borrow) error {
	if a.format == "json" {
		return writeJSON(a.out, b)
	}
	a.printf("✅ borrowed %d of %s, due %s (record %s)\n", b.Quantity, b.Book, b.DueDate, b.ID)
	return nil
}

func (a *app) renderSummary(resp *appborrow.SummaryResponse) error {
	if a.format == "json" {
		return writeJSON(a.out, resp)
	}

	tw := table(a.out)
	fmt.Fprintln(tw, "TITLE\tISBN\tBORROWED")
	for _, s := range resp.Items {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", s.Book.Title, s.Book.ISBN, strconv.Itoa(s.TotalQuantity))
	}
	fmt.Fprintf(tw, "\t\t%d total\n", resp.TotalQuantity)
	return tw.Flush()
}

// describeError 把字段错误逐行展开，其它错误只取提示信息
func describeError(err error) string {
	var ie *appbook.ImportError
	if errors.As(err, &ie) {
		return fmt.Sprintf("book #%d: %s", ie.Index+1, describeError(ie.Err))
	}

	var fe apperrors.FieldErrors
	if errors.As(err, &fe) {
		fields := make([]string, 0, len(fe))
		for f := range fe {
			fields = append(fields, f)
		}
		sort.Strings(fields)

		msg := "validation failed:"
		for _, f := range fields {
			msg += fmt.Sprintf("\n  %s: %s", f, fe[f])
		}
		return msg
	}
	return apperrors.Message(err)
}
