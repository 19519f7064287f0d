package book

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/xiebiao/librarydesk/internal/domain/book"
	apperrors "github.com/xiebiao/librarydesk/pkg/errors"
	"github.com/xiebiao/librarydesk/pkg/saga"
)

// ImportBooksUseCase 批量新增图书用例
// 说明:
// 1. 先对所有条目做本地校验（含文件内ISBN重复），任一失败不发请求
// 2. 逐条创建；某条被远端拒绝时删除本次已创建的图书
type ImportBooksUseCase struct {
	books   book.Repository
	timeout time.Duration
	logger  *slog.Logger
}

// NewImportBooksUseCase 创建批量新增用例
func NewImportBooksUseCase(books book.Repository, logger *slog.Logger) *ImportBooksUseCase {
	return &ImportBooksUseCase{books: books, timeout: 2 * time.Minute, logger: logger}
}

// ImportError 第Index条（从0开始）导入失败
type ImportError struct {
	Index int
	Err   error
}

func (e *ImportError) Error() string {
	return fmt.Sprintf("book #%d: %v", e.Index+1, e.Err)
}

func (e *ImportError) Unwrap() error {
	return e.Err
}

// Execute 执行批量新增，返回创建的图书（与输入顺序一致）
func (uc *ImportBooksUseCase) Execute(ctx context.Context, reqs []CreateBookRequest) ([]book.Book, error) {
	// 1. 本地校验
	items := make([]book.CreateData, len(reqs))
	seen := make(map[string]int, len(reqs))
	for i, req := range reqs {
		data, err := req.data()
		if err != nil {
			return nil, &ImportError{Index: i, Err: err}
		}
		if _, dup := seen[data.ISBN]; dup {
			fe := apperrors.FieldErrors{}
			fe.Add("isbn", book.MsgISBNDuplicate)
			return nil, &ImportError{Index: i, Err: fe}
		}
		seen[data.ISBN] = i
		items[i] = data
	}

	// 2. 逐条创建，失败时补偿
	created := make([]book.Book, len(items))
	tx := saga.New(uc.timeout, uc.logger)
	for i, data := range items {
		tx.AddStep(data.ISBN,
			func(ctx context.Context) error {
				b, err := uc.books.Create(ctx, data)
				if err != nil {
					return remoteFieldError(err)
				}
				created[i] = *b
				return nil
			},
			func(ctx context.Context) error {
				return uc.books.Delete(ctx, created[i].ID)
			},
		)
	}

	if err := tx.Execute(ctx); err != nil {
		var se *saga.StepError
		if errors.As(err, &se) {
			if se.Compensation != nil {
				uc.logger.ErrorContext(ctx, "批量导入回滚不完整", "error", se.Compensation)
			}
			return nil, &ImportError{Index: se.Index, Err: err}
		}
		return nil, err
	}

	uc.logger.InfoContext(ctx, "✅ 批量导入完成", "count", len(created))
	return created, nil
}
