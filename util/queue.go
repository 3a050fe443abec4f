package util

import (
	"sync"

	"github.com/eapache/queue"
)

//Queue 并发安全的FIFO，底层是 eapache/queue 的环形缓冲
type Queue struct {
	inner  *queue.Queue
	locker sync.Mutex
}

func NewQueue() *Queue {
	return &Queue{
		inner: queue.New(),
	}
}

//Push 加
func (q *Queue) Push(item interface{}) int {
	q.locker.Lock()
	defer q.locker.Unlock()
	q.inner.Add(item)

	return q.inner.Length()
}

//Pop 弹，队列为空时返回nil
func (q *Queue) Pop() interface{} {
	q.locker.Lock()
	defer q.locker.Unlock()
	if q.inner.Length() <= 0 {
		return nil
	}

	return q.inner.Remove()
}

//Len 获取长度
func (q *Queue) Len() int {
	q.locker.Lock()
	defer q.locker.Unlock()
	return q.inner.Length()
}
