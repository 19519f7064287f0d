// Package saga 多步操作的补偿执行
//
// 步骤按添加顺序执行；某一步失败时，按逆序对已完成的步骤执行补偿。
// 远端目录服务没有批量接口，批量导入等操作用它保证"要么全部生效，要么全部撤销"。
package saga

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Step Saga中的一个步骤，Compensate可以为nil
type Step struct {
	Name       string
	Action     func(ctx context.Context) error
	Compensate func(ctx context.Context) error
}

// StepError 某一步执行失败
type StepError struct {
	Index int
	Name  string
	Err   error
	// Compensation 补偿过程中出现的错误，nil表示已全部撤销
	Compensation error
}

func (e *StepError) Error() string {
	msg := fmt.Sprintf("step %d (%s) failed: %v", e.Index, e.Name, e.Err)
	if e.Compensation != nil {
		msg += fmt.Sprintf("; compensation incomplete: %v", e.Compensation)
	}
	return msg
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// Saga 补偿事务，不可重复执行
type Saga struct {
	steps   []Step
	timeout time.Duration
	logger  *slog.Logger
}

// New 创建Saga，timeout<=0表示不限时
func New(timeout time.Duration, logger *slog.Logger) *Saga {
	if logger == nil {
		logger = slog.Default()
	}
	return &Saga{timeout: timeout, logger: logger}
}

// AddStep 追加步骤
func (s *Saga) AddStep(name string, action, compensate func(ctx context.Context) error) {
	s.steps = append(s.steps, Step{Name: name, Action: action, Compensate: compensate})
}

// Len 步骤数
func (s *Saga) Len() int {
	return len(s.steps)
}

// Execute 依次执行所有步骤
//
// 失败（包括超时、ctx取消）时返回*StepError。补偿使用独立的ctx，
// 调用方取消不会中断补偿。
func (s *Saga) Execute(ctx context.Context) error {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	for i, step := range s.steps {
		err := ctx.Err()
		if err == nil && step.Action != nil {
			err = step.Action(ctx)
		}
		if err != nil {
			s.logger.Warn("saga步骤失败，开始补偿", "step", step.Name, "index", i, "error", err)
			return &StepError{
				Index:        i,
				Name:         step.Name,
				Err:          err,
				Compensation: s.compensate(context.WithoutCancel(ctx), i),
			}
		}
	}
	return nil
}

// compensate 逆序补偿前done个步骤，单个补偿失败不影响其余补偿
func (s *Saga) compensate(ctx context.Context, done int) error {
	var errs []error
	for i := done - 1; i >= 0; i-- {
		step := s.steps[i]
		if step.Compensate == nil {
			continue
		}
		if err := step.Compensate(ctx); err != nil {
			s.logger.Error("⚠️ 补偿失败", "step", step.Name, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", step.Name, err))
		}
	}
	return errors.Join(errs...)
}
