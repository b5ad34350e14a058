package rpc

import (
	"errors"
	"fmt"
	"strings"
)

// GameError 远端返回的游戏层错误（isError=true）
type GameError struct {
	Op      string
	Message string
}

func (e *GameError) Error() string {
	return fmt.Sprintf("game error on %s: %s", e.Op, e.Message)
}

// 远端错误文案是面向人的自由文本，这里按子串归类
// 网关版本之间大小写/措辞略有出入，统一转小写匹配

// IsNoActiveMission 机器人没有进行中的任务
// stop_activity 返回该错误时语义上等价于成功（已处于空闲）
func IsNoActiveMission(err error) bool {
	return containsAny(err, "no active mission", "not on a mission", "nothing to stop")
}

// IsAlreadyOnMission 机器人已在执行任务
// start_activity 返回该错误时视为成功，吸收与远端状态的竞态
func IsAlreadyOnMission(err error) bool {
	return containsAny(err, "already on a mission", "already active", "mission in progress")
}

// IsBusinessRejection 业务规则拒绝（已知可接受的限制，不重试）
// 例如同一赛事重复报名
func IsBusinessRejection(err error) bool {
	return containsAny(err,
		"already entered",
		"already registered",
		"registration closed",
		"insufficient funds",
	)
}

// IsGameError 是否为远端游戏层错误（相对网络/传输错误）
func IsGameError(err error) bool {
	var ge *GameError
	return errors.As(err, &ge)
}

func containsAny(err error, subs ...string) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, s := range subs {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}
