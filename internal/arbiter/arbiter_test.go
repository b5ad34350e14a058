package arbiter

import (
	"testing"

	"github.com/racebot/gorace/internal/domain"
)

func testCaps() map[domain.Zone]int {
	return map[domain.Zone]int{
		domain.ZoneChargingStation: 5,
		domain.ZoneRepairBay:       4,
	}
}

func occupySnap(id int64, zone domain.Zone, condition int) domain.BotSnapshot {
	return domain.BotSnapshot{ID: domain.BotID(id), Battery: 50, Condition: condition, Zone: zone, IsActive: true}
}

func cohortAll(name string) func(domain.BotID) string {
	return func(domain.BotID) string { return name }
}

// TestTryReserveCapacity 容量上限与无限制区域
func TestTryReserveCapacity(t *testing.T) {
	a := New(testCaps())

	for i := 0; i < 4; i++ {
		if !a.TryReserve(domain.ZoneRepairBay) {
			t.Fatalf("第 %d 次预留维修间应该成功", i+1)
		}
	}
	if a.TryReserve(domain.ZoneRepairBay) {
		t.Error("维修间满员后预留应该失败")
	}
	if a.Used(domain.ZoneRepairBay) != 4 {
		t.Errorf("维修间已用名额应该为 4，实际 %d", a.Used(domain.ZoneRepairBay))
	}

	// 无容量限制的区域恒成功
	for i := 0; i < 100; i++ {
		if !a.TryReserve(domain.ZoneScrapyard) {
			t.Fatal("拾荒区无容量限制，预留不应该失败")
		}
	}
}

// TestObserveSeedsCounters 观测占用初始化计数器
func TestObserveSeedsCounters(t *testing.T) {
	a := New(testCaps())
	a.Observe([]domain.BotSnapshot{
		occupySnap(1, domain.ZoneChargingStation, 90),
		occupySnap(2, domain.ZoneChargingStation, 80),
		occupySnap(3, domain.ZoneRepairBay, 40),
		occupySnap(4, domain.ZoneScrapyard, 95), // 无限制区域不计数
		occupySnap(5, domain.ZoneNone, 95),
	}, cohortAll("alpha"))

	if a.Used(domain.ZoneChargingStation) != 2 {
		t.Errorf("充电站已用名额应该为 2，实际 %d", a.Used(domain.ZoneChargingStation))
	}
	if a.Used(domain.ZoneRepairBay) != 1 {
		t.Errorf("维修间已用名额应该为 1，实际 %d", a.Used(domain.ZoneRepairBay))
	}
	if a.Used(domain.ZoneScrapyard) != 0 {
		t.Errorf("拾荒区不应该计数，实际 %d", a.Used(domain.ZoneScrapyard))
	}

	// 再次观测必须重置而不是累加
	a.Observe([]domain.BotSnapshot{
		occupySnap(1, domain.ZoneChargingStation, 90),
	}, cohortAll("alpha"))
	if a.Used(domain.ZoneChargingStation) != 1 {
		t.Errorf("重新观测后充电站已用名额应该为 1，实际 %d", a.Used(domain.ZoneChargingStation))
	}
}

// TestReleaseRemovesOccupant 释放名额并移除占用者记录
func TestReleaseRemovesOccupant(t *testing.T) {
	a := New(testCaps())
	a.Observe([]domain.BotSnapshot{
		occupySnap(1, domain.ZoneRepairBay, 95),
		occupySnap(2, domain.ZoneRepairBay, 95),
		occupySnap(3, domain.ZoneRepairBay, 95),
		occupySnap(4, domain.ZoneRepairBay, 95),
	}, cohortAll("alpha"))

	a.Release(domain.ZoneRepairBay, 2)
	if a.Used(domain.ZoneRepairBay) != 3 {
		t.Errorf("释放后已用名额应该为 3，实际 %d", a.Used(domain.ZoneRepairBay))
	}
	if !a.TryReserve(domain.ZoneRepairBay) {
		t.Error("释放出的名额应该可以被重新预留")
	}

	// 被释放的占用者不能再成为驱逐候选
	if !a.ReserveWithPreempt(domain.ZoneRepairBay, "beta") {
		t.Fatal("抢占预留应该成功")
	}
	for _, id := range a.Evicted() {
		if id == 2 {
			t.Error("已释放的机器人 #2 不应该被驱逐")
		}
	}
}

// TestPreemptEvictsExactlyOne 每次抢占恰好驱逐一个占用者
func TestPreemptEvictsExactlyOne(t *testing.T) {
	a := New(testCaps())

	// 5 个 alpha 机器人占满维修间之外还溢出容量的场景：4 个在位，容量 4
	a.Observe([]domain.BotSnapshot{
		occupySnap(1, domain.ZoneRepairBay, 60),
		occupySnap(2, domain.ZoneRepairBay, 85),
		occupySnap(3, domain.ZoneRepairBay, 85),
		occupySnap(4, domain.ZoneRepairBay, 40),
	}, cohortAll("alpha"))

	if !a.ReserveWithPreempt(domain.ZoneRepairBay, "beta") {
		t.Fatal("优先车队抢占应该成功")
	}
	evicted := a.Evicted()
	if len(evicted) != 1 {
		t.Fatalf("应该恰好驱逐 1 个机器人，实际 %d 个: %v", len(evicted), evicted)
	}
	// 驱逐耐久最高者，同耐久取编号更大的：#2 和 #3 都是 85%，驱逐 #3
	if evicted[0] != 3 {
		t.Errorf("应该驱逐耐久最高且编号更大的 #3，实际驱逐 #%d", evicted[0])
	}

	// 第二次抢占再驱逐一个，总数等于缺口数
	if !a.ReserveWithPreempt(domain.ZoneRepairBay, "beta") {
		t.Fatal("第二次抢占应该成功")
	}
	evicted = a.Evicted()
	if len(evicted) != 2 {
		t.Fatalf("两次抢占应该共驱逐 2 个机器人，实际 %d 个: %v", len(evicted), evicted)
	}
	if evicted[0] != 2 || evicted[1] != 3 {
		t.Errorf("驱逐名单应该为 [2 3]，实际 %v", evicted)
	}
}

// TestPreemptNeverEvictsRequestingCohort 绝不驱逐请求方车队的机器人
func TestPreemptNeverEvictsRequestingCohort(t *testing.T) {
	a := New(testCaps())
	cohorts := map[domain.BotID]string{1: "alpha", 2: "alpha", 3: "beta", 4: "alpha"}
	a.Observe([]domain.BotSnapshot{
		occupySnap(1, domain.ZoneRepairBay, 90),
		occupySnap(2, domain.ZoneRepairBay, 95),
		occupySnap(3, domain.ZoneRepairBay, 99),
		occupySnap(4, domain.ZoneRepairBay, 80),
	}, func(id domain.BotID) string { return cohorts[id] })

	// beta 耐久最高（99%）但请求方是 beta，必须驱逐 alpha 中耐久最高的 #2
	if !a.ReserveWithPreempt(domain.ZoneRepairBay, "beta") {
		t.Fatal("抢占应该成功")
	}
	evicted := a.Evicted()
	if len(evicted) != 1 || evicted[0] != 2 {
		t.Fatalf("应该驱逐 alpha 的 #2，实际 %v", evicted)
	}

	// 占用者全是请求方车队时无人可驱逐
	b := New(testCaps())
	b.Observe([]domain.BotSnapshot{
		occupySnap(1, domain.ZoneRepairBay, 90),
		occupySnap(2, domain.ZoneRepairBay, 95),
		occupySnap(3, domain.ZoneRepairBay, 99),
		occupySnap(4, domain.ZoneRepairBay, 80),
	}, cohortAll("alpha"))
	if b.ReserveWithPreempt(domain.ZoneRepairBay, "alpha") {
		t.Error("占用者全是本队时抢占应该失败")
	}
	if len(b.Evicted()) != 0 {
		t.Errorf("抢占失败不应该产生驱逐，实际 %v", b.Evicted())
	}
}

// TestReleaseAfterEvictionKeepsCounter 被驱逐者的名额已转移，它再释放不减计数
//
// 驱逐挑的是耐久最高的占用者，它在本队遍历里多半会走"修完离开"分支并调用
// Release；如果这次 Release 还减计数，维修间会凭空多出一个名额被超额放人
func TestReleaseAfterEvictionKeepsCounter(t *testing.T) {
	a := New(testCaps())
	cohorts := map[domain.BotID]string{1: "beta", 2: "beta", 3: "beta", 4: "beta"}
	a.Observe([]domain.BotSnapshot{
		occupySnap(1, domain.ZoneRepairBay, 50),
		occupySnap(2, domain.ZoneRepairBay, 60),
		occupySnap(3, domain.ZoneRepairBay, 70),
		occupySnap(4, domain.ZoneRepairBay, 100),
	}, func(id domain.BotID) string { return cohorts[id] })

	// alpha 抢占，驱逐耐久最高的 #4，名额转移，used 不变
	if !a.ReserveWithPreempt(domain.ZoneRepairBay, "alpha") {
		t.Fatal("抢占应该成功")
	}
	if got := a.Evicted(); len(got) != 1 || got[0] != 4 {
		t.Fatalf("应该驱逐 #4，实际 %v", got)
	}
	if a.Used(domain.ZoneRepairBay) != 4 {
		t.Fatalf("抢占后已用名额应该保持 4，实际 %d", a.Used(domain.ZoneRepairBay))
	}

	// #4 已不在占用者名单，它的 Release 必须是空操作
	a.Release(domain.ZoneRepairBay, 4)
	if a.Used(domain.ZoneRepairBay) != 4 {
		t.Errorf("被驱逐者释放后已用名额应该保持 4，实际 %d", a.Used(domain.ZoneRepairBay))
	}
	if a.TryReserve(domain.ZoneRepairBay) {
		t.Error("维修间仍满员，预留不应该成功")
	}

	// 真正在位的 #1 释放仍然放出名额
	a.Release(domain.ZoneRepairBay, 1)
	if a.Used(domain.ZoneRepairBay) != 3 {
		t.Errorf("在位占用者释放后已用名额应该为 3，实际 %d", a.Used(domain.ZoneRepairBay))
	}
}

// TestPreemptWithFreeSlot 有空位时抢占退化为普通预留
func TestPreemptWithFreeSlot(t *testing.T) {
	a := New(testCaps())
	a.Observe([]domain.BotSnapshot{
		occupySnap(1, domain.ZoneRepairBay, 90),
	}, cohortAll("alpha"))

	if !a.ReserveWithPreempt(domain.ZoneRepairBay, "beta") {
		t.Fatal("有空位时抢占预留应该成功")
	}
	if len(a.Evicted()) != 0 {
		t.Errorf("有空位时不应该驱逐任何机器人，实际 %v", a.Evicted())
	}
	if a.Used(domain.ZoneRepairBay) != 2 {
		t.Errorf("已用名额应该为 2，实际 %d", a.Used(domain.ZoneRepairBay))
	}
}
