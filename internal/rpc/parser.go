package rpc

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/racebot/gorace/internal/domain"
)

// StatusParser 状态载荷解析器
//
// 老版网关把机器人状态拼成给人看的自由文本，新版返回结构化 JSON，
// 两种格式各有一个适配器，优先走 JSON，文本解析只作为回退
type StatusParser interface {
	Parse(bot domain.BotID, payload []byte) (*domain.BotSnapshot, error)
}

// JSONStatusParser 结构化 JSON 状态解析（首选路径）
type JSONStatusParser struct{}

func (JSONStatusParser) Parse(bot domain.BotID, payload []byte) (*domain.BotSnapshot, error) {
	var p statusPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, fmt.Errorf("解析状态JSON失败: %w", err)
	}
	s := &domain.BotSnapshot{
		ID:        bot,
		Name:      p.Name,
		Battery:   p.Battery,
		Condition: p.Condition,
		Zone:      domain.Zone(p.Zone),
		IsActive:  p.IsActive,
		FetchedAt: time.Now().UTC(),
	}
	if !s.IsValid() {
		return nil, fmt.Errorf("状态载荷字段越界: battery=%d condition=%d", p.Battery, p.Condition)
	}
	return s, nil
}

// TextStatusParser 自由文本状态解析（老版网关回退路径）
//
// 老版返回形如：
//   "Racer #9102 (Rusty): Battery 64%, Condition 87%, scavenging in Scrapyard"
//   "Racer #9102 (Rusty): Battery 100%, Condition 95%, idle"
type TextStatusParser struct{}

var (
	batteryRe   = regexp.MustCompile(`(?i)battery[:\s]+(\d{1,3})\s*%`)
	conditionRe = regexp.MustCompile(`(?i)condition[:\s]+(\d{1,3})\s*%`)
	// \b 防止匹配到 "scavenging" 里的 in
	zoneRe      = regexp.MustCompile(`(?i)\b(?:in|at|zone[:\s]*)\s+([A-Za-z][A-Za-z ]*[A-Za-z])\s*$`)
	nameRe      = regexp.MustCompile(`\(([^)]+)\)`)
)

func (TextStatusParser) Parse(bot domain.BotID, payload []byte) (*domain.BotSnapshot, error) {
	// 文本载荷可能被 JSON 字符串包一层
	text := string(payload)
	var unquoted string
	if err := json.Unmarshal(payload, &unquoted); err == nil {
		text = unquoted
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("空状态文本")
	}

	s := &domain.BotSnapshot{ID: bot, FetchedAt: time.Now().UTC()}

	m := batteryRe.FindStringSubmatch(text)
	if m == nil {
		return nil, fmt.Errorf("状态文本缺少电量: %q", text)
	}
	s.Battery, _ = strconv.Atoi(m[1])

	m = conditionRe.FindStringSubmatch(text)
	if m == nil {
		return nil, fmt.Errorf("状态文本缺少耐久: %q", text)
	}
	s.Condition, _ = strconv.Atoi(m[1])

	if m = nameRe.FindStringSubmatch(text); m != nil {
		s.Name = m[1]
	}

	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "idle"):
		s.Zone = domain.ZoneNone
		s.IsActive = false
	default:
		if m = zoneRe.FindStringSubmatch(text); m != nil {
			s.Zone = normalizeZone(m[1])
			s.IsActive = s.Zone != domain.ZoneNone
		}
	}

	if !s.IsValid() {
		return nil, fmt.Errorf("状态文本字段越界: %q", text)
	}
	return s, nil
}

// normalizeZone 把文本里的区域叫法归一到规范区域名
func normalizeZone(raw string) domain.Zone {
	switch strings.ToLower(strings.ReplaceAll(raw, " ", "")) {
	case "chargingstation", "charging":
		return domain.ZoneChargingStation
	case "repairbay", "repair":
		return domain.ZoneRepairBay
	case "scrapyard":
		return domain.ZoneScrapyard
	case "", "idle", "none":
		return domain.ZoneNone
	default:
		// 未知拾荒区保留原名（去空格）
		return domain.Zone(strings.ReplaceAll(raw, " ", ""))
	}
}
