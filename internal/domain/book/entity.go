package book

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Genre 图书分类
type Genre string

const (
	GenreFiction    Genre = "FICTION"
	GenreNonFiction Genre = "NON_FICTION"
	GenreScience    Genre = "SCIENCE"
	GenreHistory    Genre = "HISTORY"
	GenreBiography  Genre = "BIOGRAPHY"
	GenreFantasy    Genre = "FANTASY"
)

// Genres 所有分类（展示顺序）
var Genres = []Genre{GenreFiction, GenreNonFiction, GenreScience, GenreHistory, GenreBiography, GenreFantasy}

// Valid 是否为已知分类
func (g Genre) Valid() bool {
	for _, known := range Genres {
		if g == known {
			return true
		}
	}
	return false
}

// ParseGenre 解析分类，忽略大小写，"non-fiction"等同于NON_FICTION
func ParseGenre(s string) (Genre, error) {
	g := Genre(strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(s), "-", "_")))
	if !g.Valid() {
		return "", fmt.Errorf("unknown genre %q", s)
	}
	return g, nil
}

// Book 图书（远端目录服务的记录）
// 说明:
// 1. 远端返回的主键是_id，部分接口同时返回id，两者任取其一
// 2. AvailableCopies只有部分接口返回，缺失时为nil
type Book struct {
	ID              string    `json:"_id"`
	Title           string    `json:"title"`
	Author          string    `json:"author"`
	Genre           Genre     `json:"genre"`
	ISBN            string    `json:"isbn"`
	Description     string    `json:"description,omitempty"`
	Copies          int       `json:"copies"`
	Available       bool      `json:"available"`
	AvailableCopies *int      `json:"availableCopies,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// UnmarshalJSON 兼容_id和id两种主键字段
func (b *Book) UnmarshalJSON(data []byte) error {
	type alias Book
	aux := struct {
		*alias
		AltID string `json:"id"`
	}{alias: (*alias)(b)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if b.ID == "" {
		b.ID = aux.AltID
	}
	return nil
}

// CanBorrow 是否可以借阅
func (b *Book) CanBorrow() bool {
	return b.Available && b.Copies > 0
}

// CreateData 创建图书请求
type CreateData struct {
	Title       string `json:"title"`
	Author      string `json:"author"`
	Genre       Genre  `json:"genre"`
	ISBN        string `json:"isbn"`
	Description string `json:"description,omitempty"`
	Copies      int    `json:"copies"`
	Available   *bool  `json:"available,omitempty"`
}

// UpdateData 部分更新请求，nil字段不发送
type UpdateData struct {
	Title       *string `json:"title,omitempty"`
	Author      *string `json:"author,omitempty"`
	Genre       *Genre  `json:"genre,omitempty"`
	ISBN        *string `json:"isbn,omitempty"`
	Description *string `json:"description,omitempty"`
	Copies      *int    `json:"copies,omitempty"`
	Available   *bool   `json:"available,omitempty"`
}

// Empty 没有任何字段需要更新
func (u UpdateData) Empty() bool {
	return u == UpdateData{}
}

// Pagination 列表分页信息（远端返回）
type Pagination struct {
	CurrentPage int `json:"currentPage"`
	TotalPages  int `json:"totalPages"`
	TotalBooks  int `json:"totalBooks"`
	Limit       int `json:"limit"`
}

// ListParams 列表查询参数
// 零值字段不会出现在查询串中；Filter为"all"等同于不过滤
type ListParams struct {
	Filter string `json:"filter,omitempty"`
	SortBy string `json:"sortBy,omitempty"`
	Sort   string `json:"sort,omitempty"` // asc | desc
	Limit  int    `json:"limit,omitempty"`
	Page   int    `json:"page,omitempty"`
}

// Normalize 规范化参数，使等价的查询得到相同的缓存键
func (p ListParams) Normalize() ListParams {
	p.Filter = strings.TrimSpace(p.Filter)
	if strings.EqualFold(p.Filter, "all") {
		p.Filter = ""
	}
	p.SortBy = strings.TrimSpace(p.SortBy)
	p.Sort = strings.ToLower(strings.TrimSpace(p.Sort))
	if p.Limit < 0 {
		p.Limit = 0
	}
	if p.Page < 0 {
		p.Page = 0
	}
	return p
}
