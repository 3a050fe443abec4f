package dispatcher

import (
	"runtime"
	"sync/atomic"
)

//Spawner 启动一个worker，返回error时不能执行fn
type Spawner func(id int, fn func()) error

//DefaultSpawner 每个worker独占一个系统线程
func DefaultSpawner(id int, fn func()) error {
	go func() {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
		fn()
	}()
	return nil
}

//LimitSpawner 最多成功启动max个worker，之后都返回 ErrSpawnLimit
func LimitSpawner(max int, next Spawner) Spawner {
	var spawned atomic.Int64
	return func(id int, fn func()) error {
		if spawned.Add(1) > int64(max) {
			return ErrSpawnLimit
		}
		return next(id, fn)
	}
}
