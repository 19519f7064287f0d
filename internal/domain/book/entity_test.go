package book

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/xiebiao/librarydesk/pkg/errors"
)

// TestBook_UnmarshalJSON 测试主键字段兼容
func TestBook_UnmarshalJSON(t *testing.T) {
	t.Run("使用_id", func(t *testing.T) {
		var b Book
		require.NoError(t, json.Unmarshal([]byte(`{"_id":"abc","title":"Dune","genre":"FANTASY","copies":3,"available":true,"createdAt":"2024-01-02T03:04:05.000Z"}`), &b))
		assert.Equal(t, "abc", b.ID)
		assert.Equal(t, GenreFantasy, b.Genre)
		assert.Equal(t, 2024, b.CreatedAt.Year())
		assert.Nil(t, b.AvailableCopies)
	})

	t.Run("只有id", func(t *testing.T) {
		var b Book
		require.NoError(t, json.Unmarshal([]byte(`{"id":"xyz","title":"Dune","availableCopies":2}`), &b))
		assert.Equal(t, "xyz", b.ID)
		require.NotNil(t, b.AvailableCopies)
		assert.Equal(t, 2, *b.AvailableCopies)
	})

	t.Run("两者都有时_id优先", func(t *testing.T) {
		var b Book
		require.NoError(t, json.Unmarshal([]byte(`{"_id":"primary","id":"secondary"}`), &b))
		assert.Equal(t, "primary", b.ID)
	})
}

// TestBook_CanBorrow 测试可借阅判断
func TestBook_CanBorrow(t *testing.T) {
	assert.True(t, (&Book{Available: true, Copies: 1}).CanBorrow())
	assert.False(t, (&Book{Available: false, Copies: 5}).CanBorrow())
	assert.False(t, (&Book{Available: true, Copies: 0}).CanBorrow())
}

// TestParseGenre 测试分类解析
func TestParseGenre(t *testing.T) {
	g, err := ParseGenre("non-fiction")
	require.NoError(t, err)
	assert.Equal(t, GenreNonFiction, g)

	g, err = ParseGenre(" science ")
	require.NoError(t, err)
	assert.Equal(t, GenreScience, g)

	_, err = ParseGenre("poetry")
	assert.Error(t, err)
}

// TestListParams_Normalize 测试参数规范化
func TestListParams_Normalize(t *testing.T) {
	p := ListParams{Filter: "all", SortBy: "title", Sort: "DESC", Limit: 10, Page: 1}.Normalize()
	assert.Equal(t, ListParams{SortBy: "title", Sort: "desc", Limit: 10, Page: 1}, p)

	p = ListParams{Filter: "SCIENCE", Limit: -1}.Normalize()
	assert.Equal(t, "SCIENCE", p.Filter)
	assert.Zero(t, p.Limit)
}

// TestUpdateData_Marshal 只发送设置过的字段
func TestUpdateData_Marshal(t *testing.T) {
	copies := 0
	title := "New Title"
	body, err := json.Marshal(UpdateData{Title: &title, Copies: &copies})
	require.NoError(t, err)
	assert.JSONEq(t, `{"title":"New Title","copies":0}`, string(body), "copies为0也要发送")

	assert.True(t, UpdateData{}.Empty())
	assert.False(t, UpdateData{Copies: &copies}.Empty())
}

// TestValidateCreate 测试创建校验
func TestValidateCreate(t *testing.T) {
	valid := CreateData{Title: "Dune", Author: "Frank Herbert", Genre: GenreFantasy, ISBN: "978-0441013593", Copies: 3}

	tests := []struct {
		name   string
		mutate func(*CreateData)
		field  string
		msg    string
	}{
		{"标题为空", func(d *CreateData) { d.Title = "   " }, "title", MsgTitleRequired},
		{"作者为空", func(d *CreateData) { d.Author = "" }, "author", MsgAuthorRequired},
		{"ISBN为空", func(d *CreateData) { d.ISBN = "" }, "isbn", MsgISBNRequired},
		{"ISBN太短", func(d *CreateData) { d.ISBN = "12345" }, "isbn", MsgISBNFormat},
		{"ISBN包含字母", func(d *CreateData) { d.ISBN = "97804410135X3" }, "isbn", MsgISBNFormat},
		{"副本为负数", func(d *CreateData) { d.Copies = -1 }, "copies", MsgCopiesNegative},
		{"分类非法", func(d *CreateData) { d.Genre = "POETRY" }, "genre", MsgGenreInvalid},
	}

	require.NoError(t, ValidateCreate(valid))

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := valid
			tt.mutate(&d)

			err := ValidateCreate(d)
			var fe apperrors.FieldErrors
			require.ErrorAs(t, err, &fe)
			assert.Equal(t, tt.msg, fe[tt.field])
			assert.Len(t, fe, 1)
		})
	}
}

// TestValidateUpdate 测试部分更新校验
func TestValidateUpdate(t *testing.T) {
	require.NoError(t, ValidateUpdate(UpdateData{}), "未设置的字段不校验")

	empty := ""
	badISBN := "abc"
	negative := -2
	err := ValidateUpdate(UpdateData{Title: &empty, ISBN: &badISBN, Copies: &negative})

	var fe apperrors.FieldErrors
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, apperrors.FieldErrors{
		"title":  MsgTitleRequired,
		"isbn":   MsgISBNFormat,
		"copies": MsgCopiesNegative,
	}, fe)
}
