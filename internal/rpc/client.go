package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/racebot/gorace/internal/domain"
	"github.com/racebot/gorace/pkg/cache"
	"github.com/racebot/gorace/pkg/ratelimit"
)

var log = logrus.WithField("component", "rpc")

// 赛程很少变动，短缓存避免每个周期对 list_upcoming_races 反复打接口
const raceScheduleTTL = 3 * time.Minute

// ClientOptions 客户端可调参数
type ClientOptions struct {
	Timeout    time.Duration // 单次调用超时（超时按可重试失败处理）
	RetryCount int           // 传输层重试次数
}

// Client 游戏 RPC 客户端（resty + 钱包签名认证 + 按操作限流）
type Client struct {
	http    *resty.Client
	signer  *Signer
	limiter *ratelimit.Manager

	// 状态解析：优先结构化 JSON，失败回退老版文本解析
	parser   StatusParser
	fallback StatusParser

	raceCache *cache.InMemoryCache[string, []RaceEvent]
}

// NewClient 创建客户端
func NewClient(endpoint string, signer *Signer, opts ClientOptions) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.RetryCount <= 0 {
		opts.RetryCount = 3
	}

	// resty 自动读取 HTTP_PROXY/HTTPS_PROXY 环境变量
	httpClient := resty.New().
		SetBaseURL(endpoint).
		SetTimeout(opts.Timeout).
		SetRetryCount(opts.RetryCount).
		SetRetryWaitTime(1 * time.Second).
		SetRetryMaxWaitTime(10 * time.Second).
		SetRetryAfter(func(client *resty.Client, resp *resty.Response) (time.Duration, error) {
			// 429 限流时尊重 Retry-After 头
			if resp.StatusCode() == 429 {
				if ra := resp.Header().Get("Retry-After"); ra != "" {
					if d, err := time.ParseDuration(ra + "s"); err == nil {
						return d, nil
					}
				}
				return 10 * time.Second, nil
			}
			return 0, nil
		})

	return &Client{
		http:      httpClient,
		signer:    signer,
		limiter:   ratelimit.NewManager(),
		parser:    JSONStatusParser{},
		fallback:  TextStatusParser{},
		raceCache: cache.NewInMemoryCache[string, []RaceEvent](raceScheduleTTL),
	}
}

type invokeBody struct {
	Op   string         `json:"op"`
	Args map[string]any `json:"args,omitempty"`
}

// Invoke 单一 RPC 原语：执行命名操作并返回统一结果包
func (c *Client) Invoke(ctx context.Context, op string, args map[string]any) (*Result, error) {
	if err := c.limiter.Wait(ctx, op); err != nil {
		return nil, errors.Wrapf(err, "限流等待被取消: %s", op)
	}

	req := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		SetBody(invokeBody{Op: op, Args: args})

	if c.signer != nil {
		headers, err := c.signer.Headers(op)
		if err != nil {
			return nil, errors.Wrap(err, "构建认证头失败")
		}
		req.SetHeaders(headers)
	}

	var result Result
	req.SetResult(&result)

	resp, err := req.Post("/rpc")
	if err != nil {
		return nil, errors.Wrapf(err, "调用 %s 失败", op)
	}
	if resp.StatusCode() >= 400 {
		return nil, errors.Errorf("调用 %s 返回 HTTP %d: %s", op, resp.StatusCode(), resp.String())
	}
	if result.IsError {
		return nil, &GameError{Op: op, Message: result.Error}
	}
	return &result, nil
}

// GetStatus 拉取机器人状态快照
func (c *Client) GetStatus(ctx context.Context, bot domain.BotID) (*domain.BotSnapshot, error) {
	res, err := c.Invoke(ctx, OpGetStatus, map[string]any{"botId": bot})
	if err != nil {
		return nil, err
	}
	s, perr := c.parser.Parse(bot, res.Payload)
	if perr == nil {
		return s, nil
	}
	// 老版网关返回自由文本，回退正则解析
	s, ferr := c.fallback.Parse(bot, res.Payload)
	if ferr == nil {
		log.Debugf("机器人 #%d 状态走文本回退解析", bot)
		return s, nil
	}
	return nil, fmt.Errorf("状态载荷无法解析: json=%v text=%v", perr, ferr)
}

// StopActivity 停止当前任务（"无进行中任务" 视为成功）
func (c *Client) StopActivity(ctx context.Context, bot domain.BotID) error {
	_, err := c.Invoke(ctx, OpStopActivity, map[string]any{"botId": bot})
	return err
}

// StartActivity 在指定区域开始任务（"已在任务中" 视为成功由调用方判断）
func (c *Client) StartActivity(ctx context.Context, bot domain.BotID, zone domain.Zone) error {
	_, err := c.Invoke(ctx, OpStartActivity, map[string]any{"botId": bot, "zone": string(zone)})
	return err
}

// PaidRecharge 付费充满电量（链下成本，成功即沉没）
func (c *Client) PaidRecharge(ctx context.Context, bot domain.BotID) error {
	_, err := c.Invoke(ctx, OpPaidRecharge, map[string]any{"botId": bot})
	return err
}

// PaidRepair 付费修满耐久
func (c *Client) PaidRepair(ctx context.Context, bot domain.BotID) error {
	_, err := c.Invoke(ctx, OpPaidRepair, map[string]any{"botId": bot})
	return err
}

// ListUpcomingRaces 拉取即将开始的比赛（短 TTL 缓存）
func (c *Client) ListUpcomingRaces(ctx context.Context) ([]RaceEvent, error) {
	if races, ok := c.raceCache.Get("upcoming"); ok {
		return races, nil
	}
	res, err := c.Invoke(ctx, OpListUpcomingRaces, nil)
	if err != nil {
		return nil, err
	}
	var races []RaceEvent
	if err := json.Unmarshal(res.Payload, &races); err != nil {
		return nil, errors.Wrap(err, "解析赛程失败")
	}
	c.raceCache.Set("upcoming", races, raceScheduleTTL)
	return races, nil
}

// GetMyRegistrations 拉取当前已报名记录
func (c *Client) GetMyRegistrations(ctx context.Context) ([]Registration, error) {
	res, err := c.Invoke(ctx, OpGetMyRegistrations, nil)
	if err != nil {
		return nil, err
	}
	var regs []Registration
	if err := json.Unmarshal(res.Payload, &regs); err != nil {
		return nil, errors.Wrap(err, "解析报名记录失败")
	}
	return regs, nil
}

// RegisterForRace 报名比赛
func (c *Client) RegisterForRace(ctx context.Context, eventID string, bot domain.BotID) error {
	_, err := c.Invoke(ctx, OpRegisterForRace, map[string]any{"eventId": eventID, "botId": bot})
	return err
}

var _ API = (*Client)(nil)
