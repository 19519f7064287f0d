package store

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiebiao/librarydesk/internal/catalogtest"
	"github.com/xiebiao/librarydesk/internal/client"
	"github.com/xiebiao/librarydesk/internal/domain/book"
	"github.com/xiebiao/librarydesk/internal/domain/borrow"
	apperrors "github.com/xiebiao/librarydesk/pkg/errors"
)

func setup(t *testing.T) (*catalogtest.Server, *client.Client, *Mirror) {
	t.Helper()

	srv := catalogtest.NewServer()
	t.Cleanup(srv.Close)

	c, err := client.New(client.Options{BaseURL: srv.URL, Logger: slog.New(slog.DiscardHandler)})
	require.NoError(t, err)
	t.Cleanup(c.Close)

	m := NewMirror()
	t.Cleanup(m.Attach(c))
	return srv, c, m
}

// TestMirror_Books 图书切片跟随缓存结果
func TestMirror_Books(t *testing.T) {
	srv, c, m := setup(t)
	ctx := context.Background()
	first := srv.Seed(catalogtest.Book{Title: "Cosmos", Author: "Sagan", Genre: "SCIENCE", ISBN: "1000000001", Copies: 2})

	var changes atomic.Int32
	unsubscribe := m.Subscribe(func() { changes.Add(1) })
	defer unsubscribe()

	t.Run("列表结果", func(t *testing.T) {
		_, err := c.ListBooks.Fetch(ctx, client.ListBooksArgs{})
		require.NoError(t, err)

		assert.Len(t, m.Books(), 1)
		require.NotNil(t, m.Pagination())
		assert.Equal(t, 1, m.Pagination().TotalBooks)
		assert.False(t, m.Loading())
		assert.Empty(t, m.Err())
		assert.Positive(t, changes.Load())
	})

	t.Run("创建插入到最前面", func(t *testing.T) {
		created, err := c.CreateBook.Do(ctx, book.CreateData{Title: "Dune", Author: "Herbert", Genre: book.GenreFiction, ISBN: "9780441013593", Copies: 3})
		require.NoError(t, err)

		list := m.Books()
		require.Len(t, list, 2)
		assert.Equal(t, created.ID, list[0].ID)
	})

	t.Run("单本结果设为选中", func(t *testing.T) {
		_, err := c.GetBook.Fetch(ctx, first)
		require.NoError(t, err)
		require.NotNil(t, m.SelectedBook())
		assert.Equal(t, "Cosmos", m.SelectedBook().Title)
	})

	t.Run("更新替换列表项和选中项", func(t *testing.T) {
		title := "Cosmos (2nd)"
		_, err := c.UpdateBook.Do(ctx, client.UpdateBookArgs{ID: first, Data: book.UpdateData{Title: &title}})
		require.NoError(t, err)

		assert.Equal(t, title, m.SelectedBook().Title)
		var found bool
		for _, b := range m.Books() {
			if b.ID == first {
				found = true
				assert.Equal(t, title, b.Title)
			}
		}
		assert.True(t, found)
	})

	t.Run("删除移除列表项并取消选中", func(t *testing.T) {
		_, err := c.DeleteBook.Do(ctx, first)
		require.NoError(t, err)

		for _, b := range m.Books() {
			assert.NotEqual(t, first, b.ID)
		}
		assert.Nil(t, m.SelectedBook())
	})

	t.Run("失败写入错误信息", func(t *testing.T) {
		_, err := c.GetBook.Fetch(ctx, "missing")
		require.Error(t, err)
		assert.Equal(t, "Book not found", m.Err())
		assert.False(t, m.Loading())
	})
}

// TestMirror_Borrows 借阅切片跟随缓存结果
func TestMirror_Borrows(t *testing.T) {
	srv, c, m := setup(t)
	ctx := context.Background()
	id := srv.Seed(catalogtest.Book{Title: "Dune", Author: "Herbert", Genre: "FICTION", ISBN: "9780441013593", Copies: 1})

	sub := c.GetBorrowSummary.Watch(client.NoArgs{}, nil)
	defer sub.Unsubscribe()
	c.Wait()
	assert.Empty(t, m.BorrowSummary())

	due := borrow.NewDate(time.Now().AddDate(0, 0, 7))
	created, err := c.BorrowBook.Do(ctx, client.BorrowArgs{Book: id, Quantity: 1, DueDate: due})
	require.NoError(t, err)
	c.Wait()

	require.Len(t, m.Borrows(), 1)
	assert.Equal(t, created.ID, m.Borrows()[0].ID)
	require.Len(t, m.BorrowSummary(), 1)
	assert.Equal(t, 1, m.BorrowSummary()[0].TotalQuantity)

	_, err = c.BorrowBook.Do(ctx, client.BorrowArgs{Book: id, Quantity: 1, DueDate: due})
	require.True(t, apperrors.IsKind(err, apperrors.KindInsufficientStock))
	assert.Equal(t, "Not enough copies available", m.BorrowState().Err)
	assert.Empty(t, m.BookState().Err)

	m.Reset()
	assert.Empty(t, m.Borrows())
	assert.Empty(t, m.BorrowSummary())
	assert.Empty(t, m.Err())
}

// TestMirror_OnlyCacheResults 非结果事件不改变状态
func TestMirror_OnlyCacheResults(t *testing.T) {
	m := NewMirror()

	m.OnMutation(client.MutationEvent{Operation: client.OpCreateBook, Phase: client.PhaseStarted})
	m.OnQuery(client.QueryEvent{Operation: client.OpListBooks, Phase: client.PhaseInvalidated})
	m.OnQuery(client.QueryEvent{Operation: client.OpListBooks, Phase: client.PhaseEvicted})
	assert.Empty(t, m.Books())
	assert.False(t, m.Loading())

	m.OnQuery(client.QueryEvent{Operation: client.OpListBooks, Phase: client.PhaseStarted})
	assert.True(t, m.Loading())

	m.OnQuery(client.QueryEvent{Operation: client.OpListBooks, Phase: client.PhaseRejected, Err: errors.New("offline")})
	assert.False(t, m.Loading())
	assert.Equal(t, "offline", m.Err())
}
