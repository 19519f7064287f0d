package book

import (
	"context"
	"strings"

	"github.com/xiebiao/librarydesk/internal/domain/book"
	apperrors "github.com/xiebiao/librarydesk/pkg/errors"
)

// 列表默认参数（与图书列表页一致）
const (
	DefaultSortBy = "createdAt"
	DefaultSort   = "desc"
	DefaultLimit  = 50
	DefaultPage   = 1
)

// ListBooksUseCase 图书列表查询用例
// 说明:
// 1. 补齐默认的排序和分页参数
// 2. 分类过滤只接受已知分类或"all"
// 3. 查询经过数据访问层的缓存，相同参数不会重复请求
type ListBooksUseCase struct {
	books book.Repository
}

// NewListBooksUseCase 创建列表查询用例
func NewListBooksUseCase(books book.Repository) *ListBooksUseCase {
	return &ListBooksUseCase{books: books}
}

// ListBooksRequest 列表查询请求DTO
type ListBooksRequest struct {
	Filter string // 分类，空或"all"表示全部
	SortBy string // createdAt | title | author | copies
	Sort   string // asc | desc
	Limit  int
	Page   int
}

// ListBooksResponse 列表查询响应DTO
type ListBooksResponse struct {
	Books      []book.Book      `json:"books"`
	Pagination *book.Pagination `json:"pagination,omitempty"`
}

// Execute 执行列表查询用例
func (uc *ListBooksUseCase) Execute(ctx context.Context, req ListBooksRequest) (*ListBooksResponse, error) {
	// 1. 参数默认值
	params := book.ListParams{
		SortBy: req.SortBy,
		Sort:   strings.ToLower(req.Sort),
		Limit:  req.Limit,
		Page:   req.Page,
	}
	if params.SortBy == "" {
		params.SortBy = DefaultSortBy
	}
	if params.Sort == "" {
		params.Sort = DefaultSort
	}
	if params.Limit < 1 {
		params.Limit = DefaultLimit
	}
	if params.Page < 1 {
		params.Page = DefaultPage
	}

	// 2. 分类过滤
	fe := apperrors.FieldErrors{}
	if f := strings.TrimSpace(req.Filter); f != "" && !strings.EqualFold(f, "all") {
		g, err := book.ParseGenre(f)
		if err != nil {
			fe.Add("filter", book.MsgGenreInvalid)
		}
		params.Filter = string(g)
	}
	if params.Sort != "asc" && params.Sort != "desc" {
		fe.Add("sort", `Sort must be "asc" or "desc"`)
	}
	if err := fe.Err(); err != nil {
		return nil, err
	}

	// 3. 查询
	page, err := uc.books.List(ctx, params)
	if err != nil {
		return nil, err
	}

	books := page.Books
	if books == nil {
		books = []book.Book{}
	}
	return &ListBooksResponse{Books: books, Pagination: page.Pagination}, nil
}
