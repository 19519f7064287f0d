package borrows

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/xiebiao/librarydesk/internal/domain/borrow"
)

func TestReduce(t *testing.T) {
	t.Run("AddBorrow插入到最前面", func(t *testing.T) {
		s := State{Borrows: []borrow.Borrow{{ID: "1"}}}
		next := Reduce(s, AddBorrow{Borrow: borrow.Borrow{ID: "2"}})
		assert.Equal(t, "2", next.Borrows[0].ID)
		assert.Len(t, next.Borrows, 2)
		assert.Len(t, s.Borrows, 1, "原状态不应该被修改")
	})

	t.Run("设置列表和汇总", func(t *testing.T) {
		summary := []borrow.Summary{{Book: borrow.SummaryBook{Title: "Dune", ISBN: "9780441013593"}, TotalQuantity: 2}}
		s := Reduce(State{}, SetBorrowSummary{Summary: summary})
		s = Reduce(s, SetBorrows{Borrows: []borrow.Borrow{{ID: "1"}}})
		summary[0].TotalQuantity = 99

		assert.Equal(t, 2, s.Summary[0].TotalQuantity)
		assert.Len(t, s.Borrows, 1)
	})

	t.Run("加载和错误", func(t *testing.T) {
		s := Reduce(State{}, SetLoading{Loading: true})
		s = Reduce(s, SetError{Err: "Not enough copies available"})
		assert.True(t, s.Loading)
		assert.Equal(t, "Not enough copies available", s.Err)
	})

	t.Run("ClearBorrows", func(t *testing.T) {
		s := State{
			Borrows: []borrow.Borrow{{ID: "1"}},
			Summary: []borrow.Summary{{TotalQuantity: 1}},
		}
		next := Reduce(s, ClearBorrows{})
		assert.Empty(t, next.Borrows)
		assert.Empty(t, next.Summary)
		assert.Len(t, s.Borrows, 1)
	})
}
