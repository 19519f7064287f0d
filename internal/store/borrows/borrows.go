// Package borrows 借阅状态切片
package borrows

import (
	"github.com/xiebiao/librarydesk/internal/domain/borrow"
)

// State 借阅切片状态
type State struct {
	Borrows []borrow.Borrow
	Summary []borrow.Summary
	Loading bool
	Err     string
}

// Action 借阅切片的动作
type Action interface {
	isBorrowAction()
}

type (
	SetLoading       struct{ Loading bool }
	SetError         struct{ Err string }
	SetBorrows       struct{ Borrows []borrow.Borrow }
	SetBorrowSummary struct{ Summary []borrow.Summary }
	AddBorrow        struct{ Borrow borrow.Borrow } // 插入到最前面
	ClearBorrows     struct{}
)

func (SetLoading) isBorrowAction()       {}
func (SetError) isBorrowAction()         {}
func (SetBorrows) isBorrowAction()       {}
func (SetBorrowSummary) isBorrowAction() {}
func (AddBorrow) isBorrowAction()        {}
func (ClearBorrows) isBorrowAction()     {}

// Reduce 应用一个动作，不修改传入的State
func Reduce(s State, a Action) State {
	switch a := a.(type) {
	case SetLoading:
		s.Loading = a.Loading
	case SetError:
		s.Err = a.Err
	case SetBorrows:
		s.Borrows = append([]borrow.Borrow(nil), a.Borrows...)
	case SetBorrowSummary:
		s.Summary = append([]borrow.Summary(nil), a.Summary...)
	case AddBorrow:
		next := make([]borrow.Borrow, 0, len(s.Borrows)+1)
		next = append(next, a.Borrow)
		s.Borrows = append(next, s.Borrows...)
	case ClearBorrows:
		s.Borrows = []borrow.Borrow{}
		s.Summary = []borrow.Summary{}
	}
	return s
}
