package lease

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/racebot/gorace/pkg/logger"
)

// ErrHeld 表示租约被另一个进程持有
var ErrHeld = fmt.Errorf("lease is held by another process")

// Lease 基于文件的巡检周期互斥租约：
// 防止定时任务重叠执行（上一周期还没跑完，下一周期又启动）。
type Lease struct {
	path string
}

type leaseBody struct {
	PID        int       `json:"pid"`
	AcquiredAt time.Time `json:"acquired_at"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// Acquire 尝试获取租约。已有租约未过期时返回 ErrHeld；
// 过期租约（持有者崩溃未释放）会被接管。
//
// 租约文件必须独占创建：先读后写会让同窗启动的两个进程都以为自己拿到了锁。
// 这里把租约体写进临时文件，再用硬链接原子落位（链接失败即文件已存在），
// 租约文件出现的瞬间就带完整内容，并发方读不到半截文件
func Acquire(path string, ttl time.Duration) (*Lease, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	body := leaseBody{
		PID:        os.Getpid(),
		AcquiredAt: time.Now(),
		ExpiresAt:  time.Now().Add(ttl),
	}
	data, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	tf, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return nil, err
	}
	tmp := tf.Name()
	defer os.Remove(tmp)
	if _, err := tf.Write(data); err != nil {
		tf.Close()
		return nil, err
	}
	if err := tf.Close(); err != nil {
		return nil, err
	}

	// 最多两次：第一次独占创建失败且确认旧租约过期/损坏时，清掉旧文件再试一次。
	// 并发接管只会有一个赢家，输家第二次创建会撞上赢家的新租约
	for attempt := 0; attempt < 2; attempt++ {
		err := os.Link(tmp, path)
		if err == nil {
			return &Lease{path: path}, nil
		}
		if !os.IsExist(err) {
			return nil, err
		}

		if data, rerr := os.ReadFile(path); rerr == nil {
			var held leaseBody
			if jerr := json.Unmarshal(data, &held); jerr == nil && time.Now().Before(held.ExpiresAt) {
				return nil, fmt.Errorf("%w (pid=%d, expires=%s)", ErrHeld, held.PID, held.ExpiresAt.Format(time.RFC3339))
			}
			logger.Warnf("⚠️ 发现过期或损坏的租约，接管")
		}
		if rerr := os.Remove(path); rerr != nil && !os.IsNotExist(rerr) {
			return nil, rerr
		}
	}
	return nil, ErrHeld
}

// Release 释放租约
func (l *Lease) Release() error {
	if l == nil {
		return nil
	}
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
