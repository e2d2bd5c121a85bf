package report

import (
	"sync"
	"sync/atomic"
)

// Async 通过有界缓冲异步投递事件。缓冲满时子订单事件被丢弃并计数，汇总事件等待入队。
type Async struct {
	next   Reporter
	ch     chan Event
	done   chan struct{}
	onDrop func()

	mu      sync.RWMutex
	closed  bool
	dropped atomic.Int64
}

// NewAsync 启动投递协程。onDrop 可为空。
func NewAsync(next Reporter, size int, onDrop func()) *Async {
	if size <= 0 {
		size = 1
	}
	a := &Async{
		next:   next,
		ch:     make(chan Event, size),
		done:   make(chan struct{}),
		onDrop: onDrop,
	}
	go a.run()
	return a
}

func (a *Async) run() {
	defer close(a.done)
	for e := range a.ch {
		a.next.Report(e)
	}
}

// Report 对子订单事件不阻塞；汇总事件每次执行只有一条，阻塞直到入队。
func (a *Async) Report(e Event) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.closed {
		a.drop()
		return
	}
	if e.Kind == EventSummary {
		a.ch <- e
		return
	}
	select {
	case a.ch <- e:
	default:
		a.drop()
	}
}

func (a *Async) drop() {
	a.dropped.Add(1)
	if a.onDrop != nil {
		a.onDrop()
	}
}

// Dropped 返回被丢弃的事件数。
func (a *Async) Dropped() int64 {
	return a.dropped.Load()
}

// Close 停止接收并等待已缓冲事件投递完毕，可重复调用。
func (a *Async) Close() {
	a.mu.Lock()
	if !a.closed {
		a.closed = true
		close(a.ch)
	}
	a.mu.Unlock()
	<-a.done
}
