package book

import (
	"github.com/xiebiao/librarydesk/internal/domain/book"
	apperrors "github.com/xiebiao/librarydesk/pkg/errors"
)

// remoteFieldError 远端拒绝映射为表单字段错误，其它失败原样返回
func remoteFieldError(err error) error {
	if apperrors.IsKind(err, apperrors.KindDuplicateKey) {
		fe := apperrors.FieldErrors{}
		fe.Add("isbn", book.MsgISBNDuplicate)
		return fe
	}
	return err
}
