package client

import (
	"fmt"
	"strings"
)

// TagType 缓存标签的实体类型
type TagType string

const (
	TagBook   TagType = "Book"
	TagBorrow TagType = "Borrow"
)

// Tag 缓存标签，ID为空表示整个类型
type Tag struct {
	Type TagType
	ID   string
}

// TypeTag 类型标签
func TypeTag(t TagType) Tag {
	return Tag{Type: t}
}

// IDTag 单个实体的标签
func IDTag(t TagType, id string) Tag {
	return Tag{Type: t, ID: id}
}

// String "Book" 或 "Book:42"
func (t Tag) String() string {
	if t.ID == "" {
		return string(t.Type)
	}
	return string(t.Type) + ":" + t.ID
}

// ParseTag 解析String()的输出
func ParseTag(s string) (Tag, error) {
	typ, id, _ := strings.Cut(s, ":")
	switch TagType(typ) {
	case TagBook, TagBorrow:
		return Tag{Type: TagType(typ), ID: id}, nil
	default:
		return Tag{}, fmt.Errorf("unknown tag type %q", typ)
	}
}

// TagStrings 转成字符串列表（事件、日志）
func TagStrings(tags []Tag) []string {
	out := make([]string, len(tags))
	for i, t := range tags {
		out[i] = t.String()
	}
	return out
}

// Matches 失效标签是否命中某个缓存条目提供的标签
//
//   - 类型标签（Book）命中该类型的所有条目，包括带ID的条目
//   - ID标签（Book:42）只命中提供了同一ID标签的条目
func Matches(invalidate Tag, provided []Tag) bool {
	for _, p := range provided {
		if p.Type != invalidate.Type {
			continue
		}
		if invalidate.ID == "" || invalidate.ID == p.ID {
			return true
		}
	}
	return false
}

func matchesAny(invalidate, provided []Tag) bool {
	for _, t := range invalidate {
		if Matches(t, provided) {
			return true
		}
	}
	return false
}
