package book

import (
	"context"
	"strings"

	"github.com/xiebiao/librarydesk/internal/domain/book"
	apperrors "github.com/xiebiao/librarydesk/pkg/errors"
)

// UpdateBookUseCase 编辑图书用例，只发送修改过的字段
type UpdateBookUseCase struct {
	books book.Repository
}

// NewUpdateBookUseCase 创建编辑图书用例
func NewUpdateBookUseCase(books book.Repository) *UpdateBookUseCase {
	return &UpdateBookUseCase{books: books}
}

// UpdateBookRequest 编辑图书请求DTO，nil字段保持不变
type UpdateBookRequest struct {
	ID          string
	Title       *string
	Author      *string
	Genre       *string
	ISBN        *string
	Description *string
	Copies      *int
	Available   *bool
}

// Execute 执行编辑图书用例
func (uc *UpdateBookUseCase) Execute(ctx context.Context, req UpdateBookRequest) (*book.Book, error) {
	id := strings.TrimSpace(req.ID)
	if id == "" {
		return nil, book.ErrMissingID
	}

	data := book.UpdateData{
		Title:       trimmed(req.Title),
		Author:      trimmed(req.Author),
		ISBN:        trimmed(req.ISBN),
		Description: trimmed(req.Description),
		Copies:      req.Copies,
		Available:   req.Available,
	}
	if req.Genre != nil {
		g, err := book.ParseGenre(*req.Genre)
		if err != nil {
			fe := apperrors.FieldErrors{}
			fe.Add("genre", book.MsgGenreInvalid)
			return nil, fe
		}
		data.Genre = &g
	}
	if data.Empty() {
		return nil, book.ErrNothingToUpdate
	}
	if err := book.ValidateUpdate(data); err != nil {
		return nil, err
	}

	updated, err := uc.books.Update(ctx, id, data)
	if err != nil {
		return nil, remoteFieldError(err)
	}
	return updated, nil
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	return &v
}
