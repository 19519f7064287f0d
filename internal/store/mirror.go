// Package store 本地状态镜像
//
// Mirror是图书、借阅两个状态切片的唯一写入方：它作为client.Observer挂到数据访问层上，
// 只根据缓存层的查询/变更结果派发动作。界面层通过选择器读取，通过Subscribe获得变化通知。
package store

import (
	"sync"

	"github.com/xiebiao/librarydesk/internal/client"
	"github.com/xiebiao/librarydesk/internal/domain/book"
	"github.com/xiebiao/librarydesk/internal/domain/borrow"
	"github.com/xiebiao/librarydesk/internal/store/books"
	"github.com/xiebiao/librarydesk/internal/store/borrows"
	apperrors "github.com/xiebiao/librarydesk/pkg/errors"
)

// Mirror 状态镜像，可并发使用
type Mirror struct {
	mu      sync.RWMutex
	books   books.State
	borrows borrows.State

	lmu       sync.Mutex
	listeners map[uint64]func()
	nextID    uint64
}

var _ client.Observer = (*Mirror)(nil)

// NewMirror 创建空镜像
func NewMirror() *Mirror {
	return &Mirror{
		books:     books.State{Books: []book.Book{}},
		borrows:   borrows.State{Borrows: []borrow.Borrow{}, Summary: []borrow.Summary{}},
		listeners: make(map[uint64]func()),
	}
}

// Attach 挂到客户端上，返回解除函数
func (m *Mirror) Attach(c *client.Client) (detach func()) {
	return c.AddObserver(m)
}

// Subscribe 状态变化时调用fn（在派发动作的goroutine中同步执行）
func (m *Mirror) Subscribe(fn func()) (unsubscribe func()) {
	m.lmu.Lock()
	m.nextID++
	id := m.nextID
	m.listeners[id] = fn
	m.lmu.Unlock()

	return func() {
		m.lmu.Lock()
		delete(m.listeners, id)
		m.lmu.Unlock()
	}
}

// OnQuery 查询事件 → 切片动作
func (m *Mirror) OnQuery(e client.QueryEvent) {
	var bookActs []books.Action
	var borrowActs []borrows.Action

	switch e.Operation {
	case client.OpListBooks:
		switch e.Phase {
		case client.PhaseStarted:
			bookActs = append(bookActs, books.SetLoading{Loading: true})
		case client.PhaseFulfilled:
			page, _ := e.Data.(client.BookPage)
			bookActs = append(bookActs,
				books.SetBooks{Books: page.Books},
				books.SetPagination{Pagination: page.Pagination},
				books.SetError{},
				books.SetLoading{},
			)
		case client.PhaseRejected:
			bookActs = append(bookActs, books.SetError{Err: apperrors.Message(e.Err)}, books.SetLoading{})
		}

	case client.OpGetBook:
		switch e.Phase {
		case client.PhaseStarted:
			bookActs = append(bookActs, books.SetLoading{Loading: true})
		case client.PhaseFulfilled:
			b, _ := e.Data.(client.Book)
			bookActs = append(bookActs,
				books.SetSelectedBook{Book: &b},
				books.UpdateBook{Book: b},
				books.SetError{},
				books.SetLoading{},
			)
		case client.PhaseRejected:
			if id, ok := e.Args.(string); ok && apperrors.IsKind(e.Err, apperrors.KindNotFound) && m.selectedID() == id {
				bookActs = append(bookActs, books.SetSelectedBook{})
			}
			bookActs = append(bookActs, books.SetError{Err: apperrors.Message(e.Err)}, books.SetLoading{})
		}

	case client.OpGetBorrowSummary:
		switch e.Phase {
		case client.PhaseStarted:
			borrowActs = append(borrowActs, borrows.SetLoading{Loading: true})
		case client.PhaseFulfilled:
			summary, _ := e.Data.([]client.BorrowSummary)
			borrowActs = append(borrowActs,
				borrows.SetBorrowSummary{Summary: summary},
				borrows.SetError{},
				borrows.SetLoading{},
			)
		case client.PhaseRejected:
			borrowActs = append(borrowActs, borrows.SetError{Err: apperrors.Message(e.Err)}, borrows.SetLoading{})
		}
	}

	m.dispatch(bookActs, borrowActs)
}

// OnMutation 变更结果 → 切片动作
func (m *Mirror) OnMutation(e client.MutationEvent) {
	var bookActs []books.Action
	var borrowActs []borrows.Action

	if e.Phase == client.PhaseRejected {
		msg := apperrors.Message(e.Err)
		if e.Operation == client.OpBorrowBook {
			borrowActs = append(borrowActs, borrows.SetError{Err: msg})
		} else {
			bookActs = append(bookActs, books.SetError{Err: msg})
		}
		m.dispatch(bookActs, borrowActs)
		return
	}
	if e.Phase != client.PhaseFulfilled {
		return
	}

	switch e.Operation {
	case client.OpCreateBook:
		if b, ok := e.Data.(client.Book); ok {
			bookActs = append(bookActs, books.AddBook{Book: b})
		}
	case client.OpUpdateBook:
		if b, ok := e.Data.(client.Book); ok {
			bookActs = append(bookActs, books.UpdateBook{Book: b})
			if m.selectedID() == b.ID {
				bookActs = append(bookActs, books.SetSelectedBook{Book: &b})
			}
		}
	case client.OpDeleteBook:
		if id, ok := e.Args.(string); ok {
			bookActs = append(bookActs, books.RemoveBook{ID: id})
			if m.selectedID() == id {
				bookActs = append(bookActs, books.SetSelectedBook{})
			}
		}
	case client.OpBorrowBook:
		if b, ok := e.Data.(client.Borrow); ok {
			borrowActs = append(borrowActs, borrows.AddBorrow{Borrow: b})
		}
	}

	m.dispatch(bookActs, borrowActs)
}

// Reset 清空两个切片
func (m *Mirror) Reset() {
	m.dispatch(
		[]books.Action{books.ClearBooks{}, books.SetSelectedBook{}, books.SetError{}, books.SetLoading{}},
		[]borrows.Action{borrows.ClearBorrows{}, borrows.SetError{}, borrows.SetLoading{}},
	)
}

func (m *Mirror) dispatch(bookActs []books.Action, borrowActs []borrows.Action) {
	if len(bookActs) == 0 && len(borrowActs) == 0 {
		return
	}

	m.mu.Lock()
	for _, a := range bookActs {
		m.books = books.Reduce(m.books, a)
	}
	for _, a := range borrowActs {
		m.borrows = borrows.Reduce(m.borrows, a)
	}
	m.mu.Unlock()

	m.lmu.Lock()
	fns := make([]func(), 0, len(m.listeners))
	for _, fn := range m.listeners {
		fns = append(fns, fn)
	}
	m.lmu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

func (m *Mirror) selectedID() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.books.Selected == nil {
		return ""
	}
	return m.books.Selected.ID
}

// BookState 图书切片快照
func (m *Mirror) BookState() books.State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.books
}

// BorrowState 借阅切片快照
func (m *Mirror) BorrowState() borrows.State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.borrows
}

// Books 最近一次列表结果（副本）
func (m *Mirror) Books() []book.Book {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]book.Book(nil), m.books.Books...)
}

// SelectedBook 当前选中的图书，没有时为nil
func (m *Mirror) SelectedBook() *book.Book {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.books.Selected == nil {
		return nil
	}
	b := *m.books.Selected
	return &b
}

func (m *Mirror) Pagination() *book.Pagination {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.books.Pagination == nil {
		return nil
	}
	p := *m.books.Pagination
	return &p
}

func (m *Mirror) Borrows() []borrow.Borrow {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]borrow.Borrow(nil), m.borrows.Borrows...)
}

func (m *Mirror) BorrowSummary() []borrow.Summary {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]borrow.Summary(nil), m.borrows.Summary...)
}

// Loading 任一切片在加载中
func (m *Mirror) Loading() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.books.Loading || m.borrows.Loading
}

// Err 第一个非空的错误信息
func (m *Mirror) Err() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.books.Err != "" {
		return m.books.Err
	}
	return m.borrows.Err
}
