package book

import (
	"context"
)

// Repository 图书仓储接口(依赖倒置原则)
// 设计说明:
// 1. 由domain层定义接口,数据访问层(internal/client)实现
// 2. 实现方负责缓存、请求去重和失效，应用层只关心业务规则
// 3. 返回的错误为*apperrors.Failure，用Kind区分失败类型
type Repository interface {
	// List 查询图书列表，参数会被规范化后作为缓存键
	List(ctx context.Context, params ListParams) (*Page, error)

	// Get 根据ID查询图书
	Get(ctx context.Context, id string) (*Book, error)

	// Create 创建图书，成功后所有图书查询失效
	Create(ctx context.Context, data CreateData) (*Book, error)

	// Update 部分更新，成功后该图书和所有列表查询失效
	Update(ctx context.Context, id string, data UpdateData) (*Book, error)

	// Delete 删除图书
	Delete(ctx context.Context, id string) error
}

// Page 一页图书
type Page struct {
	Books      []Book
	Pagination *Pagination // 远端未返回时为nil
}
