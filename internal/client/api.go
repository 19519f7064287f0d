package client

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/xiebiao/librarydesk/internal/domain/book"
	"github.com/xiebiao/librarydesk/internal/domain/borrow"
)

// 远端操作名（缓存键前缀、指标标签、span名）
const (
	OpListBooks        = "listBooks"
	OpGetBook          = "getBook"
	OpCreateBook       = "createBook"
	OpUpdateBook       = "updateBook"
	OpDeleteBook       = "deleteBook"
	OpBorrowBook       = "borrowBook"
	OpGetBorrowSummary = "getBorrowSummary"
)

type (
	Book           = book.Book
	BookPage       = book.Page
	ListBooksArgs  = book.ListParams
	CreateBookArgs = book.CreateData
	Borrow         = borrow.Borrow
	BorrowArgs     = borrow.Request
	BorrowSummary  = borrow.Summary
)

// NoArgs 无参数查询/无返回数据的变更
type NoArgs struct{}

// UpdateBookArgs 更新图书参数
type UpdateBookArgs struct {
	ID   string
	Data book.UpdateData
}

func (c *Client) registerEndpoints() {
	c.ListBooks = &Query[ListBooksArgs, BookPage]{
		c:         c,
		name:      OpListBooks,
		normalize: ListBooksArgs.Normalize,
		provides: func(ListBooksArgs) []Tag {
			return []Tag{TypeTag(TagBook)}
		},
		request: func(p ListBooksArgs) request {
			return request{method: http.MethodGet, path: "/api/books", query: listQuery(p)}
		},
		decode: func(status int, body []byte) (BookPage, error) {
			env, err := decodeEnvelope[[]Book](status, body)
			if err != nil {
				return BookPage{}, err
			}
			return BookPage{Books: env.Data, Pagination: env.Pagination}, nil
		},
	}

	c.GetBook = &Query[string, Book]{
		c:    c,
		name: OpGetBook,
		provides: func(id string) []Tag {
			return []Tag{IDTag(TagBook, id)}
		},
		request: func(id string) request {
			return request{method: http.MethodGet, path: bookPath(id)}
		},
		decode: decodeData[Book],
	}

	c.GetBorrowSummary = &Query[NoArgs, []BorrowSummary]{
		c:    c,
		name: OpGetBorrowSummary,
		provides: func(NoArgs) []Tag {
			return []Tag{TypeTag(TagBorrow)}
		},
		request: func(NoArgs) request {
			return request{method: http.MethodGet, path: "/api/borrow"}
		},
		decode: decodeData[[]BorrowSummary],
	}

	c.CreateBook = &Mutation[CreateBookArgs, Book]{
		c:    c,
		name: OpCreateBook,
		invalidates: func(CreateBookArgs) []Tag {
			return []Tag{TypeTag(TagBook)}
		},
		request: func(d CreateBookArgs) request {
			return request{method: http.MethodPost, path: "/api/books", body: d}
		},
		decode: decodeData[Book],
	}

	c.UpdateBook = &Mutation[UpdateBookArgs, Book]{
		c:    c,
		name: OpUpdateBook,
		invalidates: func(a UpdateBookArgs) []Tag {
			return []Tag{IDTag(TagBook, a.ID), TypeTag(TagBook)}
		},
		request: func(a UpdateBookArgs) request {
			return request{method: http.MethodPut, path: bookPath(a.ID), body: a.Data}
		},
		decode: decodeData[Book],
	}

	c.DeleteBook = &Mutation[string, NoArgs]{
		c:    c,
		name: OpDeleteBook,
		invalidates: func(string) []Tag {
			return []Tag{TypeTag(TagBook)}
		},
		request: func(id string) request {
			return request{method: http.MethodDelete, path: bookPath(id)}
		},
		decode: func(status int, body []byte) (NoArgs, error) {
			_, err := decodeEnvelope[any](status, body)
			return NoArgs{}, err
		},
	}

	c.BorrowBook = &Mutation[BorrowArgs, Borrow]{
		c:    c,
		name: OpBorrowBook,
		invalidates: func(BorrowArgs) []Tag {
			return []Tag{TypeTag(TagBorrow), TypeTag(TagBook)}
		},
		request: func(r BorrowArgs) request {
			return request{method: http.MethodPost, path: "/api/borrow", body: r}
		},
		decode: decodeData[Borrow],
	}
}

func decodeData[T any](status int, body []byte) (T, error) {
	env, err := decodeEnvelope[T](status, body)
	if err != nil {
		var zero T
		return zero, err
	}
	return env.Data, nil
}

func bookPath(id string) string {
	return "/api/books/" + url.PathEscape(id)
}

// listQuery 规范化后的参数转查询串，零值不发送
func listQuery(p ListBooksArgs) url.Values {
	q := url.Values{}
	if p.Filter != "" {
		q.Set("filter", p.Filter)
	}
	if p.SortBy != "" {
		q.Set("sortBy", p.SortBy)
	}
	if p.Sort != "" {
		q.Set("sort", p.Sort)
	}
	if p.Limit > 0 {
		q.Set("limit", strconv.Itoa(p.Limit))
	}
	if p.Page > 0 {
		q.Set("page", strconv.Itoa(p.Page))
	}
	return q
}

// Books 以book.Repository的形式使用客户端
func (c *Client) Books() book.Repository {
	return bookRepository{c}
}

// Borrows 以borrow.Repository的形式使用客户端
func (c *Client) Borrows() borrow.Repository {
	return borrowRepository{c}
}

type bookRepository struct{ c *Client }

func (r bookRepository) List(ctx context.Context, params book.ListParams) (*book.Page, error) {
	page, err := r.c.ListBooks.Fetch(ctx, params)
	if err != nil {
		return nil, err
	}
	return &page, nil
}

func (r bookRepository) Get(ctx context.Context, id string) (*book.Book, error) {
	b, err := r.c.GetBook.Fetch(ctx, id)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (r bookRepository) Create(ctx context.Context, data book.CreateData) (*book.Book, error) {
	b, err := r.c.CreateBook.Do(ctx, data)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (r bookRepository) Update(ctx context.Context, id string, data book.UpdateData) (*book.Book, error) {
	b, err := r.c.UpdateBook.Do(ctx, UpdateBookArgs{ID: id, Data: data})
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (r bookRepository) Delete(ctx context.Context, id string) error {
	_, err := r.c.DeleteBook.Do(ctx, id)
	return err
}

type borrowRepository struct{ c *Client }

func (r borrowRepository) Borrow(ctx context.Context, req borrow.Request) (*borrow.Borrow, error) {
	b, err := r.c.BorrowBook.Do(ctx, req)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (r borrowRepository) Summary(ctx context.Context) ([]borrow.Summary, error) {
	return r.c.GetBorrowSummary.Fetch(ctx, NoArgs{})
}
