package book

import (
	"errors"
)

// 图书领域错误定义
var (
	// ErrMissingID 图书ID为空
	ErrMissingID = errors.New("book id is required")

	// ErrNothingToUpdate 更新请求没有任何字段
	ErrNothingToUpdate = errors.New("nothing to update")
)
