package book

import (
	"context"
	"strings"

	"github.com/xiebiao/librarydesk/internal/domain/book"
)

// CreateBookUseCase 新增图书用例
// 说明:
// 1. 本地校验不通过时直接返回字段错误，不发请求
// 2. ISBN重复由远端裁决，映射为isbn字段错误
type CreateBookUseCase struct {
	books book.Repository
}

// NewCreateBookUseCase 创建新增图书用例
func NewCreateBookUseCase(books book.Repository) *CreateBookUseCase {
	return &CreateBookUseCase{books: books}
}

// CreateBookRequest 新增图书请求DTO
type CreateBookRequest struct {
	Title       string
	Author      string
	Genre       string // 不区分大小写，如 fiction、non-fiction
	ISBN        string
	Description string
	Copies      int
	Available   *bool // 默认true
}

// Execute 执行新增图书用例
func (uc *CreateBookUseCase) Execute(ctx context.Context, req CreateBookRequest) (*book.Book, error) {
	// 1. 构造并校验
	data, err := req.data()
	if err != nil {
		return nil, err
	}

	// 2. 调用远端
	created, err := uc.books.Create(ctx, data)
	if err != nil {
		return nil, remoteFieldError(err)
	}
	return created, nil
}

// data 去掉首尾空格、补齐默认值并做本地校验
func (req CreateBookRequest) data() (book.CreateData, error) {
	genre, _ := book.ParseGenre(req.Genre)
	data := book.CreateData{
		Title:       strings.TrimSpace(req.Title),
		Author:      strings.TrimSpace(req.Author),
		Genre:       genre,
		ISBN:        strings.TrimSpace(req.ISBN),
		Description: strings.TrimSpace(req.Description),
		Copies:      req.Copies,
		Available:   req.Available,
	}
	if data.Available == nil {
		available := true
		data.Available = &available
	}
	if err := book.ValidateCreate(data); err != nil {
		return book.CreateData{}, err
	}
	return data, nil
}
