package books

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/xiebiao/librarydesk/internal/domain/book"
)

func sample(ids ...string) []book.Book {
	out := make([]book.Book, len(ids))
	for i, id := range ids {
		out[i] = book.Book{ID: id, Title: "t" + id}
	}
	return out
}

// TestReduce 测试图书切片的各个动作
func TestReduce(t *testing.T) {
	t.Run("SetBooks复制传入的列表", func(t *testing.T) {
		in := sample("1", "2")
		s := Reduce(State{}, SetBooks{Books: in})
		in[0].Title = "changed"
		assert.Equal(t, "t1", s.Books[0].Title)
	})

	t.Run("AddBook插入到最前面", func(t *testing.T) {
		s := State{Books: sample("1", "2")}
		next := Reduce(s, AddBook{Book: book.Book{ID: "3"}})
		assert.Equal(t, []string{"3", "1", "2"}, ids(next.Books))
		assert.Equal(t, []string{"1", "2"}, ids(s.Books), "原状态不应该被修改")
	})

	t.Run("UpdateBook按ID替换", func(t *testing.T) {
		s := State{Books: sample("1", "2")}
		next := Reduce(s, UpdateBook{Book: book.Book{ID: "2", Title: "new"}})
		assert.Equal(t, "new", next.Books[1].Title)
		assert.Equal(t, "t2", s.Books[1].Title, "原状态不应该被修改")
	})

	t.Run("UpdateBook找不到ID时不变", func(t *testing.T) {
		s := State{Books: sample("1")}
		next := Reduce(s, UpdateBook{Book: book.Book{ID: "9"}})
		assert.Equal(t, s.Books, next.Books)
	})

	t.Run("RemoveBook按ID移除", func(t *testing.T) {
		s := State{Books: sample("1", "2", "3")}
		next := Reduce(s, RemoveBook{ID: "2"})
		assert.Equal(t, []string{"1", "3"}, ids(next.Books))
		assert.Len(t, s.Books, 3)
	})

	t.Run("选中和分页", func(t *testing.T) {
		b := &book.Book{ID: "1"}
		p := &book.Pagination{CurrentPage: 2, TotalPages: 3, TotalBooks: 25, Limit: 10}
		s := Reduce(State{}, SetSelectedBook{Book: b})
		s = Reduce(s, SetPagination{Pagination: p})
		b.ID = "changed"
		assert.Equal(t, "1", s.Selected.ID)
		assert.Equal(t, 25, s.Pagination.TotalBooks)

		s = Reduce(s, SetSelectedBook{})
		assert.Nil(t, s.Selected)
	})

	t.Run("加载和错误", func(t *testing.T) {
		s := Reduce(State{}, SetLoading{Loading: true})
		s = Reduce(s, SetError{Err: "boom"})
		assert.True(t, s.Loading)
		assert.Equal(t, "boom", s.Err)

		s = Reduce(s, SetError{})
		assert.Empty(t, s.Err)
	})

	t.Run("ClearBooks清空列表和分页", func(t *testing.T) {
		s := State{Books: sample("1"), Pagination: &book.Pagination{Limit: 10}, Selected: &book.Book{ID: "1"}}
		next := Reduce(s, ClearBooks{})
		assert.Empty(t, next.Books)
		assert.NotNil(t, next.Books)
		assert.Nil(t, next.Pagination)
		assert.NotNil(t, next.Selected, "选中的图书保留")
	})
}

func ids(list []book.Book) []string {
	out := make([]string, len(list))
	for i, b := range list {
		out[i] = b.ID
	}
	return out
}
