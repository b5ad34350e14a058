package lease

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

// TestAcquireRelease 获取和释放租约
func TestAcquireRelease(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cycle.lease")

	l, err := Acquire(path, time.Minute)
	if err != nil {
		t.Fatalf("获取租约失败: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("租约文件应该存在: %v", err)
	}

	if err := l.Release(); err != nil {
		t.Fatalf("释放租约失败: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("释放后租约文件应该被删除")
	}
}

// TestAcquireHeldLease 未过期的租约拒绝第二个持有者
func TestAcquireHeldLease(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cycle.lease")

	l, err := Acquire(path, time.Minute)
	if err != nil {
		t.Fatalf("首次获取租约失败: %v", err)
	}
	defer l.Release()

	if _, err := Acquire(path, time.Minute); !errors.Is(err, ErrHeld) {
		t.Errorf("重复获取应该返回 ErrHeld，实际 %v", err)
	}
}

// TestAcquireConcurrent 同窗并发获取恰好一个赢家，其余收到 ErrHeld
func TestAcquireConcurrent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cycle.lease")

	const n = 8
	var wg sync.WaitGroup
	leases := make([]*Lease, n)
	results := make([]error, n)
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			leases[i], results[i] = Acquire(path, time.Minute)
		}(i)
	}
	wg.Wait()

	won := 0
	for i := 0; i < n; i++ {
		switch {
		case results[i] == nil:
			won++
			defer leases[i].Release()
		case !errors.Is(results[i], ErrHeld):
			t.Errorf("未拿到租约的一方应该收到 ErrHeld，实际 %v", results[i])
		}
	}
	if won != 1 {
		t.Errorf("应该恰好一个获取者拿到租约，实际 %d 个", won)
	}
}

// TestAcquireStaleLease 过期租约（持有者崩溃）被接管
func TestAcquireStaleLease(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cycle.lease")

	// 模拟崩溃进程留下的过期租约
	stale, err := Acquire(path, -time.Minute)
	if err != nil {
		t.Fatalf("写入过期租约失败: %v", err)
	}
	_ = stale // 不释放，模拟持有者崩溃

	l, err := Acquire(path, time.Minute)
	if err != nil {
		t.Fatalf("过期租约应该可以被接管: %v", err)
	}
	defer l.Release()
}

// TestAcquireCorruptLease 损坏的租约文件不阻塞获取
func TestAcquireCorruptLease(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cycle.lease")
	if err := os.WriteFile(path, []byte("not json"), 0o644); err != nil {
		t.Fatalf("写入损坏租约失败: %v", err)
	}

	l, err := Acquire(path, time.Minute)
	if err != nil {
		t.Fatalf("损坏的租约文件应该被覆盖: %v", err)
	}
	defer l.Release()
}

// TestReleaseNil nil 租约释放不报错
func TestReleaseNil(t *testing.T) {
	var l *Lease
	if err := l.Release(); err != nil {
		t.Errorf("nil 租约释放不应该报错: %v", err)
	}
}
