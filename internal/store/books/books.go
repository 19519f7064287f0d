// Package books 图书状态切片
//
// Reduce是纯函数：不做I/O，不修改传入的State，返回新的State。
package books

import (
	"github.com/xiebiao/librarydesk/internal/domain/book"
)

// State 图书切片状态
type State struct {
	Books      []book.Book
	Loading    bool
	Err        string // 空表示没有错误
	Selected   *book.Book
	Pagination *book.Pagination
}

// Action 图书切片的动作
type Action interface {
	isBookAction()
}

// SetLoading 设置加载标记
type SetLoading struct{ Loading bool }

// SetError 设置错误信息，空字符串清除错误
type SetError struct{ Err string }

// SetBooks 整体替换列表
type SetBooks struct{ Books []book.Book }

// AddBook 插入到列表最前面
type AddBook struct{ Book book.Book }

// UpdateBook 按ID替换，列表中没有该ID时不变
type UpdateBook struct{ Book book.Book }

// RemoveBook 按ID移除
type RemoveBook struct{ ID string }

// SetSelectedBook 设置当前选中的图书，nil表示取消选中
type SetSelectedBook struct{ Book *book.Book }

// SetPagination 设置分页信息
type SetPagination struct{ Pagination *book.Pagination }

// ClearBooks 清空列表和分页
type ClearBooks struct{}

func (SetLoading) isBookAction()      {}
func (SetError) isBookAction()        {}
func (SetBooks) isBookAction()        {}
func (AddBook) isBookAction()         {}
func (UpdateBook) isBookAction()      {}
func (RemoveBook) isBookAction()      {}
func (SetSelectedBook) isBookAction() {}
func (SetPagination) isBookAction()   {}
func (ClearBooks) isBookAction()      {}

// Reduce 应用一个动作
func Reduce(s State, a Action) State {
	switch a := a.(type) {
	case SetLoading:
		s.Loading = a.Loading
	case SetError:
		s.Err = a.Err
	case SetBooks:
		s.Books = append([]book.Book(nil), a.Books...)
	case AddBook:
		next := make([]book.Book, 0, len(s.Books)+1)
		next = append(next, a.Book)
		s.Books = append(next, s.Books...)
	case UpdateBook:
		for i := range s.Books {
			if s.Books[i].ID == a.Book.ID {
				next := append([]book.Book(nil), s.Books...)
				next[i] = a.Book
				s.Books = next
				break
			}
		}
	case RemoveBook:
		next := make([]book.Book, 0, len(s.Books))
		for _, b := range s.Books {
			if b.ID != a.ID {
				next = append(next, b)
			}
		}
		s.Books = next
	case SetSelectedBook:
		s.Selected = clonePtr(a.Book)
	case SetPagination:
		s.Pagination = clonePtr(a.Pagination)
	case ClearBooks:
		s.Books = []book.Book{}
		s.Pagination = nil
	}
	return s
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
