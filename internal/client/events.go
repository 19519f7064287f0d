package client

// Phase 请求阶段
type Phase string

const (
	PhaseStarted     Phase = "started"
	PhaseFulfilled   Phase = "fulfilled"
	PhaseRejected    Phase = "rejected"
	PhaseInvalidated Phase = "invalidated" // 仅QueryEvent：条目被标记为过期
	PhaseEvicted     Phase = "evicted"     // 仅QueryEvent：条目被移出缓存
)

// QueryEvent 查询条目的状态变化
type QueryEvent struct {
	Operation string
	Key       string
	Args      any
	Phase     Phase
	Data      any   // PhaseFulfilled时为查询结果
	Err       error // PhaseRejected时为*apperrors.Failure
	Tags      []Tag
	Refetch   bool // 由失效触发的后台重新请求
}

// MutationEvent 变更请求的状态变化
type MutationEvent struct {
	Operation   string
	Args        any
	Phase       Phase
	Data        any
	Err         error
	Invalidated []Tag // PhaseFulfilled时为本次失效的标签
}

// Observer 接收数据访问层事件
//
// 回调在缓存更新之后同步执行，不能阻塞，也不能在回调中发起查询。
type Observer interface {
	OnQuery(QueryEvent)
	OnMutation(MutationEvent)
}

// ObserverFuncs 用函数实现Observer，nil字段忽略
type ObserverFuncs struct {
	Query    func(QueryEvent)
	Mutation func(MutationEvent)
}

func (o ObserverFuncs) OnQuery(e QueryEvent) {
	if o.Query != nil {
		o.Query(e)
	}
}

func (o ObserverFuncs) OnMutation(e MutationEvent) {
	if o.Mutation != nil {
		o.Mutation(e)
	}
}
