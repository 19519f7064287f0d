package borrow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/xiebiao/librarydesk/internal/domain/book"
	"github.com/xiebiao/librarydesk/internal/domain/borrow"
	apperrors "github.com/xiebiao/librarydesk/pkg/errors"
)

// BorrowBookUseCase 借阅用例
// 流程:
// 1. 通过缓存的图书查询拿到当前副本数
// 2. 本地校验（数量、归还日期、是否可借），不通过则不发借阅请求
// 3. 发送借阅请求；副本数最终以远端为准，两个并发借阅只有一个成功
type BorrowBookUseCase struct {
	books   book.Repository
	borrows borrow.Repository
	now     func() time.Time
}

// NewBorrowBookUseCase 创建借阅用例
func NewBorrowBookUseCase(books book.Repository, borrows borrow.Repository) *BorrowBookUseCase {
	return &BorrowBookUseCase{
		books:   books,
		borrows: borrows,
		now:     time.Now,
	}
}

// BorrowBookRequest 借阅请求DTO
type BorrowBookRequest struct {
	BookID   string
	Quantity int
	DueDate  string // YYYY-MM-DD，空表示默认30天后
}

// Execute 执行借阅用例
func (uc *BorrowBookUseCase) Execute(ctx context.Context, req BorrowBookRequest) (*borrow.Borrow, error) {
	bookID := strings.TrimSpace(req.BookID)
	if bookID == "" {
		return nil, book.ErrMissingID
	}

	today := uc.now()

	// 1. 归还日期
	due := borrow.DefaultDueDate(today)
	if s := strings.TrimSpace(req.DueDate); s != "" {
		d, err := borrow.ParseDate(s)
		if err != nil {
			fe := apperrors.FieldErrors{}
			fe.Add("dueDate", "Due date must be a date in YYYY-MM-DD format")
			return nil, fe
		}
		due = d
	}

	// 2. 读取图书（缓存命中时不发请求）
	b, err := uc.books.Get(ctx, bookID)
	if err != nil {
		return nil, fmt.Errorf("load book %s: %w", bookID, err)
	}

	// 3. 本地校验
	r := borrow.Request{Book: bookID, Quantity: req.Quantity, DueDate: due}
	if err := borrow.Validate(r, b, today); err != nil {
		return nil, err
	}

	// 4. 借阅
	created, err := uc.borrows.Borrow(ctx, r)
	if err != nil {
		if apperrors.IsKind(err, apperrors.KindInsufficientStock) {
			fe := apperrors.FieldErrors{}
			fe.Add("quantity", borrow.MsgNotEnoughCopies)
			return nil, fe
		}
		return nil, err
	}
	return created, nil
}

// IsUnavailable 图书当前不可借
func IsUnavailable(err error) bool {
	return errors.Is(err, borrow.ErrBookUnavailable)
}
