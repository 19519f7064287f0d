package book

import (
	"context"
	"strings"

	"github.com/xiebiao/librarydesk/internal/domain/book"
)

// GetBookUseCase 图书详情
type GetBookUseCase struct {
	books book.Repository
}

func NewGetBookUseCase(books book.Repository) *GetBookUseCase {
	return &GetBookUseCase{books: books}
}

// Execute 按ID读取图书
func (uc *GetBookUseCase) Execute(ctx context.Context, id string) (*book.Book, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, book.ErrMissingID
	}
	return uc.books.Get(ctx, id)
}
