package book

import (
	"context"
	"strings"

	"github.com/xiebiao/librarydesk/internal/domain/book"
)

// DeleteBookUseCase 删除图书用例
type DeleteBookUseCase struct {
	books book.Repository
}

func NewDeleteBookUseCase(books book.Repository) *DeleteBookUseCase {
	return &DeleteBookUseCase{books: books}
}

// Execute 删除成功后列表和详情缓存由数据访问层失效
func (uc *DeleteBookUseCase) Execute(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return book.ErrMissingID
	}
	return uc.books.Delete(ctx, id)
}
