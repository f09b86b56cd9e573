package sim

import (
	"context"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/robotalks/motorlink/pkg/framework"
	"github.com/robotalks/motorlink/pkg/l0/device"
)

// Task states.
const (
	TaskReady    = "READY"
	TaskRunning  = "CURRENT"
	TaskStopped  = "STOPPED"
	taskAddrBase = 0x20001000
	taskAddrStep = 0x100
)

// RuntimeMemory reports Go runtime memory statistics.
type RuntimeMemory struct{}

func clampUint32(v uint64) uint32 {
	if v > uint64(^uint32(0)) {
		return ^uint32(0)
	}
	return uint32(v)
}

// CoreFree implements device.MemoryStats.
func (RuntimeMemory) CoreFree() uint32 {
	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)
	return clampUint32(stats.Sys - stats.HeapSys)
}

// HeapStatus implements device.MemoryStats.
func (RuntimeMemory) HeapStatus() (uint32, uint32) {
	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)
	return clampUint32(stats.HeapObjects), clampUint32(stats.HeapIdle)
}

type task struct {
	info    device.TaskInfo
	started time.Time
	elapsed time.Duration
}

// TaskRegistry tracks Runnables as tasks.
type TaskRegistry struct {
	lock  sync.Mutex
	tasks []*task
}

// Register adds a task and returns the Runnable to run it.
func (r *TaskRegistry) Register(name string, prio uint32, runnable framework.Runnable) framework.Runnable {
	r.lock.Lock()
	defer r.lock.Unlock()
	t := &task{info: device.TaskInfo{
		Addr:  taskAddrBase + uint32(len(r.tasks))*taskAddrStep,
		Stack: 0xf0,
		Prio:  prio,
		State: TaskReady,
		Name:  name,
	}}
	r.tasks = append(r.tasks, t)
	return framework.NamedRun(name, framework.RunFunc(func(ctx context.Context) error {
		r.setState(t, TaskRunning)
		defer r.setState(t, TaskStopped)
		return runnable.Run(ctx)
	}))
}

func (r *TaskRegistry) setState(t *task, state string) {
	r.lock.Lock()
	defer r.lock.Unlock()
	now := time.Now()
	switch state {
	case TaskRunning:
		t.started = now
		t.info.Refs++
	case TaskStopped:
		t.elapsed += now.Sub(t.started)
		t.info.Refs--
	}
	t.info.State = state
}

// Tasks implements device.TaskLister.
func (r *TaskRegistry) Tasks() []device.TaskInfo {
	r.lock.Lock()
	defer r.lock.Unlock()
	now := time.Now()
	infos := make([]device.TaskInfo, 0, len(r.tasks))
	for _, t := range r.tasks {
		info := t.info
		elapsed := t.elapsed
		if info.State == TaskRunning {
			elapsed += now.Sub(t.started)
		}
		info.Time = uint32(elapsed / time.Millisecond)
		infos = append(infos, info)
	}
	sort.SliceStable(infos, func(i, j int) bool {
		return infos[i].Prio > infos[j].Prio
	})
	return infos
}
