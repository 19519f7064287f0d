package borrow

import (
	"context"
)

// Repository 借阅仓储接口，由数据访问层实现
type Repository interface {
	// Borrow 创建借阅，成功后借阅汇总和所有图书查询失效
	Borrow(ctx context.Context, req Request) (*Borrow, error)

	// Summary 按图书汇总的借阅数量
	Summary(ctx context.Context) ([]Summary, error)
}
