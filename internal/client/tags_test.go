package client

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestMatches 测试标签匹配规则
func TestMatches(t *testing.T) {
	list := []Tag{TypeTag(TagBook)}
	single := []Tag{IDTag(TagBook, "42")}
	summary := []Tag{TypeTag(TagBorrow)}

	tests := []struct {
		name       string
		invalidate Tag
		provided   []Tag
		want       bool
	}{
		{"类型标签命中列表", TypeTag(TagBook), list, true},
		{"类型标签命中单本", TypeTag(TagBook), single, true},
		{"ID标签命中同一本", IDTag(TagBook, "42"), single, true},
		{"ID标签不命中其它ID", IDTag(TagBook, "7"), single, false},
		{"ID标签不命中列表", IDTag(TagBook, "42"), list, false},
		{"不同类型不命中", TypeTag(TagBorrow), list, false},
		{"借阅标签命中汇总", TypeTag(TagBorrow), summary, true},
		{"条目没有标签", TypeTag(TagBook), nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Matches(tt.invalidate, tt.provided))
		})
	}
}

// TestTag_String 测试标签的字符串形式
func TestTag_String(t *testing.T) {
	assert.Equal(t, "Book", TypeTag(TagBook).String())
	assert.Equal(t, "Book:42", IDTag(TagBook, "42").String())
	assert.Equal(t, []string{"Borrow", "Book"}, TagStrings([]Tag{TypeTag(TagBorrow), TypeTag(TagBook)}))

	t.Run("解析", func(t *testing.T) {
		tag, err := ParseTag("Book:42")
		require.NoError(t, err)
		assert.Equal(t, IDTag(TagBook, "42"), tag)

		tag, err = ParseTag("Borrow")
		require.NoError(t, err)
		assert.Equal(t, TypeTag(TagBorrow), tag)

		_, err = ParseTag("User:1")
		assert.Error(t, err)
	})
}
