package rpc

import (
	"context"
	"fmt"
	"sync"

	"github.com/racebot/gorace/internal/domain"
)

// MockClient is a mock game RPC client for testing
type MockClient struct {
	mu sync.Mutex

	// Response data
	Statuses      map[domain.BotID]*domain.BotSnapshot
	Races         []RaceEvent
	Registrations []Registration

	// Call tracking
	Calls   map[string]int
	CallLog []string // 按顺序记录 "op:botId"，用于断言 stop/start 次序

	// Error injection
	ErrorOnNext map[string]error
	// FailBots: 对指定机器人的所有写操作持续报错（配合重试测试）
	FailBots map[domain.BotID]error
}

// NewMockClient creates a new mock client
func NewMockClient() *MockClient {
	return &MockClient{
		Statuses:    make(map[domain.BotID]*domain.BotSnapshot),
		Calls:       make(map[string]int),
		ErrorOnNext: make(map[string]error),
		FailBots:    make(map[domain.BotID]error),
	}
}

func (m *MockClient) track(op string, bot domain.BotID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls[op]++
	switch op {
	case OpGetStatus, OpListUpcomingRaces, OpGetMyRegistrations:
		// 读操作不进 CallLog，日志只用于断言写操作次序
	default:
		m.CallLog = append(m.CallLog, fmt.Sprintf("%s:%d", op, bot))
	}
	if err, ok := m.ErrorOnNext[op]; ok {
		delete(m.ErrorOnNext, op)
		return err
	}
	if bot != 0 {
		if err, ok := m.FailBots[bot]; ok {
			return err
		}
	}
	return nil
}

// CallsOf returns the recorded call log filtered by bot
func (m *MockClient) CallsOf(bot domain.BotID) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	suffix := fmt.Sprintf(":%d", bot)
	for _, c := range m.CallLog {
		if len(c) >= len(suffix) && c[len(c)-len(suffix):] == suffix {
			out = append(out, c)
		}
	}
	return out
}

func (m *MockClient) GetStatus(ctx context.Context, bot domain.BotID) (*domain.BotSnapshot, error) {
	if err := m.track(OpGetStatus, bot); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.Statuses[bot]
	if !ok {
		return nil, fmt.Errorf("unknown bot %d", bot)
	}
	cp := *s
	return &cp, nil
}

func (m *MockClient) StopActivity(ctx context.Context, bot domain.BotID) error {
	return m.track(OpStopActivity, bot)
}

func (m *MockClient) StartActivity(ctx context.Context, bot domain.BotID, zone domain.Zone) error {
	if err := m.track(OpStartActivity, bot); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.Statuses[bot]; ok {
		s.Zone = zone
		s.IsActive = true
	}
	return nil
}

func (m *MockClient) PaidRecharge(ctx context.Context, bot domain.BotID) error {
	if err := m.track(OpPaidRecharge, bot); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.Statuses[bot]; ok {
		s.Battery = 100
	}
	return nil
}

func (m *MockClient) PaidRepair(ctx context.Context, bot domain.BotID) error {
	if err := m.track(OpPaidRepair, bot); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.Statuses[bot]; ok {
		s.Condition = 100
	}
	return nil
}

func (m *MockClient) ListUpcomingRaces(ctx context.Context) ([]RaceEvent, error) {
	if err := m.track(OpListUpcomingRaces, 0); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]RaceEvent(nil), m.Races...), nil
}

func (m *MockClient) GetMyRegistrations(ctx context.Context) ([]Registration, error) {
	if err := m.track(OpGetMyRegistrations, 0); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Registration(nil), m.Registrations...), nil
}

func (m *MockClient) RegisterForRace(ctx context.Context, eventID string, bot domain.BotID) error {
	if err := m.track(OpRegisterForRace, bot); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Registrations = append(m.Registrations, Registration{EventID: eventID, BotID: bot})
	return nil
}

var _ API = (*MockClient)(nil)
