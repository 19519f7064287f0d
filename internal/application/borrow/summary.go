package borrow

import (
	"context"

	"github.com/xiebiao/librarydesk/internal/domain/borrow"
)

// SummaryUseCase 借阅汇总
type SummaryUseCase struct {
	borrows borrow.Repository
}

func NewSummaryUseCase(borrows borrow.Repository) *SummaryUseCase {
	return &SummaryUseCase{borrows: borrows}
}

// SummaryResponse 汇总响应DTO
type SummaryResponse struct {
	Items         []borrow.Summary `json:"items"`
	TotalQuantity int              `json:"totalQuantity"` // 所有图书借出数量之和
}

// Execute 读取汇总并计算总数
func (uc *SummaryUseCase) Execute(ctx context.Context) (*SummaryResponse, error) {
	items, err := uc.borrows.Summary(ctx)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []borrow.Summary{}
	}

	resp := &SummaryResponse{Items: items}
	for _, it := range items {
		resp.TotalQuantity += it.TotalQuantity
	}
	return resp, nil
}
