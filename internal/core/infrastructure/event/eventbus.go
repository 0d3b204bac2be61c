// 基于asaskevich/EventBus的进程内事件总线

package event

import (
	"context"
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"

	evbus "github.com/asaskevich/EventBus"
)

// Publisher 只需发布能力的使用方依赖该接口
type Publisher interface {
	Publish(eventType EventType, args ...interface{})
}

// Subscriber 订阅能力
type Subscriber interface {
	Subscribe(eventType EventType, handler interface{}) (*Subscription, error)
	SubscribeAsync(eventType EventType, handler interface{}, transactional bool) error
}

// EventBus 是对asaskevich/EventBus的薄封装
//
// 增加运行状态与发布计数；停止后 Publish 静默丢弃。
// 底层总线按函数代码地址识别回调，同一方法在不同实例上的方法值无法区分，
// 所以同步订阅由本层按句柄分发，每个主题只向底层注册一个分发函数。
type EventBus struct {
	bus     evbus.Bus
	running atomic.Bool

	published atomic.Uint64
	dropped   atomic.Uint64

	// 分发函数注册，总线回调期间不会取该锁
	dispatchMu  sync.Mutex
	dispatching map[EventType]bool

	mu      sync.Mutex
	nextID  uint64
	handles map[EventType][]*Subscription
	async   map[EventType]int
}

// Subscription 同步订阅句柄
type Subscription struct {
	eb    *EventBus
	topic EventType
	id    uint64
	fn    reflect.Value
}

// Unsubscribe 只注销本次订阅，可重复调用
func (s *Subscription) Unsubscribe() {
	s.eb.mu.Lock()
	defer s.eb.mu.Unlock()
	subs := s.eb.handles[s.topic]
	for i, other := range subs {
		if other.id == s.id {
			s.eb.handles[s.topic] = append(subs[:i:i], subs[i+1:]...)
			return
		}
	}
}

func (s *Subscription) call(args []interface{}) {
	t := s.fn.Type()
	in := make([]reflect.Value, len(args))
	for i, a := range args {
		if a == nil {
			in[i] = reflect.Zero(t.In(i))
		} else {
			in[i] = reflect.ValueOf(a)
		}
	}
	s.fn.Call(in)
}

// Stats 事件统计
type Stats struct {
	Published uint64 `json:"published"`
	Dropped   uint64 `json:"dropped"`
}

// New 创建事件总线，创建后即可发布
func New() *EventBus {
	eb := &EventBus{
		bus:         evbus.New(),
		dispatching: make(map[EventType]bool),
		handles:     make(map[EventType][]*Subscription),
		async:       make(map[EventType]int),
	}
	eb.running.Store(true)
	return eb
}

// Subscribe 同步订阅，返回的句柄用于注销
func (eb *EventBus) Subscribe(eventType EventType, handler interface{}) (*Subscription, error) {
	fn := reflect.ValueOf(handler)
	if fn.Kind() != reflect.Func {
		return nil, fmt.Errorf("%s is not of type reflect.Func", fn.Kind())
	}

	eb.dispatchMu.Lock()
	if !eb.dispatching[eventType] {
		if err := eb.bus.Subscribe(string(eventType), eb.dispatcher(eventType)); err != nil {
			eb.dispatchMu.Unlock()
			return nil, err
		}
		eb.dispatching[eventType] = true
	}
	eb.dispatchMu.Unlock()

	eb.mu.Lock()
	defer eb.mu.Unlock()
	eb.nextID++
	sub := &Subscription{eb: eb, topic: eventType, id: eb.nextID, fn: fn}
	eb.handles[eventType] = append(eb.handles[eventType], sub)
	return sub, nil
}

// dispatcher 依次调用该主题当前的同步订阅
func (eb *EventBus) dispatcher(eventType EventType) func(args ...interface{}) {
	return func(args ...interface{}) {
		eb.mu.Lock()
		subs := append([]*Subscription(nil), eb.handles[eventType]...)
		eb.mu.Unlock()
		for _, sub := range subs {
			sub.call(args)
		}
	}
}

// SubscribeAsync 异步订阅；transactional 为 true 时同一订阅者串行处理
func (eb *EventBus) SubscribeAsync(eventType EventType, handler interface{}, transactional bool) error {
	if err := eb.bus.SubscribeAsync(string(eventType), handler, transactional); err != nil {
		return err
	}
	eb.mu.Lock()
	eb.async[eventType]++
	eb.mu.Unlock()
	return nil
}

// UnsubscribeAsync 取消异步订阅
//
// 按函数识别回调，同一方法的不同实例会互相影响，需要区分实例时使用同步订阅。
func (eb *EventBus) UnsubscribeAsync(eventType EventType, handler interface{}) error {
	eb.mu.Lock()
	n := eb.async[eventType]
	eb.mu.Unlock()
	if n == 0 {
		return fmt.Errorf("topic %s has no async handlers", eventType)
	}

	// 底层总线发布时持有自身锁再进入 dispatcher 取 mu，这里不能反过来
	if err := eb.bus.Unsubscribe(string(eventType), handler); err != nil {
		return err
	}
	eb.mu.Lock()
	if eb.async[eventType] > 0 {
		eb.async[eventType]--
	}
	eb.mu.Unlock()
	return nil
}

// Publish 发布事件
func (eb *EventBus) Publish(eventType EventType, args ...interface{}) {
	if !eb.running.Load() {
		eb.dropped.Add(1)
		return
	}
	eb.published.Add(1)
	eb.bus.Publish(string(eventType), args...)
}

// HasCallback 检查是否有回调
func (eb *EventBus) HasCallback(eventType EventType) bool {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	return len(eb.handles[eventType]) > 0 || eb.async[eventType] > 0
}

// WaitAsync 等待异步处理完成
func (eb *EventBus) WaitAsync() {
	eb.bus.WaitAsync()
}

// Stop 停止发布并等待异步处理完成
func (eb *EventBus) Stop(ctx context.Context) error {
	if !eb.running.CompareAndSwap(true, false) {
		return fmt.Errorf("event bus not running")
	}

	done := make(chan struct{})
	go func() {
		eb.bus.WaitAsync()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// IsRunning 检查事件总线是否运行中
func (eb *EventBus) IsRunning() bool {
	return eb.running.Load()
}

// Stats 返回统计
func (eb *EventBus) Stats() Stats {
	return Stats{
		Published: eb.published.Load(),
		Dropped:   eb.dropped.Load(),
	}
}

var (
	_ Publisher  = (*EventBus)(nil)
	_ Subscriber = (*EventBus)(nil)
)
