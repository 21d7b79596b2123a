package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"k8s.io/klog/v2"
)

// -----------------------------
// Job 定义
// -----------------------------
type Job struct {
	ID         int    // 批内序号
	Name       string // 日志用，一般为文档 code
	EnqueuedAt time.Time
	MaxRetries int
	Backoff    time.Duration
	Timeout    time.Duration
}

// -----------------------------
// TaskExecutor 接口
// -----------------------------
type TaskExecutor interface {
	ExecuteTask(ctx context.Context, job *Job) error
}

// -----------------------------
// Orchestrator
// 有界协程池，只承载无数据库副作用的 IO 密集任务（文档转换）
// -----------------------------
type Orchestrator struct {
	pool     *ants.Pool
	executor TaskExecutor

	ctx      context.Context
	cancel   context.CancelFunc
	stopOnce sync.Once
}

// -----------------------------
// 错误定义
// -----------------------------
var (
	ErrOrchestratorStopped = errors.New("orchestrator is stopped")
	ErrTaskPanic           = errors.New("task panicked")
)

// NewJob
// 说明：创建任务，失败后重试一次，超时默认 10 分钟
func NewJob(id int, name string) *Job {
	return &Job{
		ID:         id,
		Name:       name,
		EnqueuedAt: time.Now(),
		MaxRetries: 1,
		Backoff:    time.Second,
		Timeout:    10 * time.Minute,
	}
}

// -----------------------------
// 构造函数
// -----------------------------
func NewOrchestrator(maxWorkers int, executor TaskExecutor) (*Orchestrator, error) {
	if maxWorkers <= 0 {
		maxWorkers = 1
	}
	ctx, cancel := context.WithCancel(context.Background())

	pool, err := ants.NewPool(maxWorkers,
		ants.WithNonblocking(false),
		ants.WithMaxBlockingTasks(0),
		ants.WithExpiryDuration(5*time.Minute),
	)
	if err != nil {
		cancel()
		klog.Errorf("ants pool initialization failed: %v", err)
		return nil, err
	}

	return &Orchestrator{
		pool:     pool,
		executor: executor,
		ctx:      ctx,
		cancel:   cancel,
	}, nil
}

// -----------------------------
// 停止
// -----------------------------
func (o *Orchestrator) Stop() {
	o.stopOnce.Do(func() {
		klog.V(6).Infof("Orchestrator stopping...")
		o.cancel()

		runningTasks := o.pool.Running()
		if runningTasks > 0 {
			klog.V(6).Infof("Waiting for %d running tasks to complete", runningTasks)
		}
		timeout := time.Minute
		if err := o.pool.ReleaseTimeout(timeout); err != nil {
			klog.Warningf("Timeout after %v: some running tasks may be forced to stop", timeout)
		}
		klog.V(6).Infof("Orchestrator stopped completely")
	})
}

// RunBatch
// 说明：把一批任务提交到协程池并等待全部结束
// 返回：与 jobs 一一对应的错误切片，nil 表示成功
func (o *Orchestrator) RunBatch(ctx context.Context, jobs []*Job) []error {
	errs := make([]error, len(jobs))

	select {
	case <-o.ctx.Done():
		for i := range errs {
			errs[i] = ErrOrchestratorStopped
		}
		return errs
	default:
	}

	var wg sync.WaitGroup
	for i, job := range jobs {
		if err := ctx.Err(); err != nil {
			errs[i] = err
			continue
		}
		wg.Add(1)
		if err := o.pool.Submit(func() {
			defer wg.Done()
			errs[i] = o.executeJob(ctx, job)
		}); err != nil {
			wg.Done()
			klog.Errorf("提交任务到协程池失败: job=%s, err=%v", job.Name, err)
			errs[i] = fmt.Errorf("submit job %s: %w", job.Name, err)
		}
	}
	wg.Wait()
	return errs
}

// executeJob 统一控制超时、重试与 panic
func (o *Orchestrator) executeJob(parent context.Context, job *Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			klog.Errorf("Task panic recovered: job=%s, err=%v", job.Name, r)
			err = fmt.Errorf("%w: %v", ErrTaskPanic, r)
		}
	}()

	timeout := job.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()
	stop := context.AfterFunc(o.ctx, cancel)
	defer stop()

	// MaxRetries 为失败后的重试次数
	attempts := job.MaxRetries + 1
	if attempts < 1 {
		attempts = 1
	}
	for i := 0; i < attempts; i++ {
		err = o.executor.ExecuteTask(ctx, job)
		if err == nil {
			klog.V(6).Infof("Task completed: job=%s, wait=%v", job.Name, time.Since(job.EnqueuedAt))
			return nil
		}
		if i == attempts-1 {
			break
		}

		backoff := job.Backoff << i
		klog.Warningf("任务重试失败: job=%s, retry=%d/%d, err=%v, backoff=%v",
			job.Name, i+1, attempts, err, backoff)

		select {
		case <-ctx.Done():
			klog.Warningf("任务被取消或超时: job=%s", job.Name)
			return ctx.Err()
		case <-time.After(backoff):
		}
	}
	return err
}
