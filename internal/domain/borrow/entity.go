package borrow

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// DateLayout 借阅请求中dueDate的格式
const DateLayout = "2006-01-02"

// Date 日历日期（不含时间）
// 序列化为YYYY-MM-DD；反序列化同时接受YYYY-MM-DD和RFC3339
type Date struct {
	time.Time
}

// NewDate 取t所在的日历日期
func NewDate(t time.Time) Date {
	y, m, d := t.Date()
	return Date{time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

// ParseDate 解析YYYY-MM-DD
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q, want YYYY-MM-DD", s)
	}
	return Date{t}, nil
}

// String YYYY-MM-DD，零值为空字符串
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

// After d是否晚于other（按日历日期比较）
func (d Date) After(other Date) bool {
	return NewDate(d.Time).Time.After(NewDate(other.Time).Time)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*d = Date{}
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		*d = Date{}
		return nil
	}

	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		*d = NewDate(t)
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Borrow 借阅记录
type Borrow struct {
	ID        string    `json:"_id"`
	Book      string    `json:"book"` // 图书ID
	Quantity  int       `json:"quantity"`
	DueDate   Date      `json:"dueDate"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Request 借阅请求
type Request struct {
	Book     string `json:"book"`
	Quantity int    `json:"quantity"`
	DueDate  Date   `json:"dueDate"`
}

// SummaryBook 借阅汇总中的图书信息
type SummaryBook struct {
	Title string `json:"title"`
	ISBN  string `json:"isbn"`
}

// Summary 按图书汇总的借阅数量（只读）
type Summary struct {
	Book          SummaryBook `json:"book"`
	TotalQuantity int         `json:"totalQuantity"`
}

// DefaultDueDate 默认归还日期：今天起30天
func DefaultDueDate(today time.Time) Date {
	return NewDate(today.AddDate(0, 0, 30))
}
