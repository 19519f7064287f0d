package borrow

import (
	"errors"
	"fmt"
	"time"

	"github.com/xiebiao/librarydesk/internal/domain/book"
	apperrors "github.com/xiebiao/librarydesk/pkg/errors"
)

const (
	MsgQuantityMin     = "Quantity must be at least 1"
	MsgDueDateRequired = "Due date is required"
	MsgDueDateFuture   = "Due date must be in the future"
	MsgNotEnoughCopies = "Not enough copies available"
	msgQuantityMaxTmpl = "Cannot borrow more than %d copies"
)

// ErrBookUnavailable 图书不可借（未上架或没有副本）
var ErrBookUnavailable = errors.New("book is not available for borrowing")

// MsgQuantityMax 超过副本数的提示
func MsgQuantityMax(copies int) string {
	return fmt.Sprintf(msgQuantityMaxTmpl, copies)
}

// Validate 校验借阅请求
//
// 图书不可借时返回ErrBookUnavailable；字段错误返回apperrors.FieldErrors。
// today只取日历日期，归还日期必须严格晚于今天。
func Validate(req Request, b *book.Book, today time.Time) error {
	if b != nil && !b.CanBorrow() {
		return ErrBookUnavailable
	}

	fe := apperrors.FieldErrors{}

	if req.Quantity < 1 {
		fe.Add("quantity", MsgQuantityMin)
	} else if b != nil && req.Quantity > b.Copies {
		fe.Add("quantity", MsgQuantityMax(b.Copies))
	}

	switch {
	case req.DueDate.IsZero():
		fe.Add("dueDate", MsgDueDateRequired)
	case !req.DueDate.After(NewDate(today)):
		fe.Add("dueDate", MsgDueDateFuture)
	}

	return fe.Err()
}
