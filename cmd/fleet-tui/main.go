package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"sort"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/go-resty/resty/v2"
	gorillaWS "github.com/gorilla/websocket"

	"github.com/racebot/gorace/internal/domain"
)

const reportLogDepth = 8 // 底部周期报告日志保留条数

var (
	// 样式定义
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("62")).
			Padding(0, 1)

	okStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("2")) // 绿色

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("3")) // 黄色

	badStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("1")) // 红色

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	borderStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("238"))
)

// statusResponse 控制面 /api/fleet/status 的返回
type statusResponse struct {
	Bots  []domain.BotSnapshot `json:"bots"`
	Zones map[domain.Zone]int  `json:"zones"`
}

// model 是应用程序的状态
type model struct {
	baseURL string
	http    *resty.Client

	bots  []domain.BotSnapshot
	zones map[domain.Zone]int

	reportCh   chan *domain.CycleReport
	reportLog  []string
	lastReport *domain.CycleReport

	connected bool
	fetchedAt time.Time
	err       error
}

type tickMsg time.Time

type statusMsg statusResponse

type reportMsg *domain.CycleReport

func initialModel(baseURL string) model {
	return model{
		baseURL:  baseURL,
		http:     resty.New().SetBaseURL(baseURL).SetTimeout(5 * time.Second),
		zones:    make(map[domain.Zone]int),
		reportCh: make(chan *domain.CycleReport, 8),
	}
}

func (m model) Init() tea.Cmd {
	go listenReports(m.baseURL, m.reportCh)
	return tea.Batch(
		fetchStatusCmd(m.http),
		waitReportCmd(m.reportCh),
		tickCmd(),
	)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "r":
			return m, fetchStatusCmd(m.http)
		}

	case tickMsg:
		return m, tea.Batch(tickCmd(), fetchStatusCmd(m.http))

	case statusMsg:
		m.bots = msg.Bots
		m.zones = msg.Zones
		m.connected = true
		m.fetchedAt = time.Now()
		m.err = nil
		sort.Slice(m.bots, func(i, j int) bool { return m.bots[i].ID < m.bots[j].ID })
		return m, nil

	case reportMsg:
		m.lastReport = msg
		line := fmt.Sprintf("%s 周期 %s: 成功=%d 失败=%d 跳过=%d 成本=%s",
			time.Now().Format("15:04:05"), short(msg.ID), msg.BotsOK, msg.BotsFailed, msg.BotsSkipped, msg.PaidCost.String())
		m.reportLog = append(m.reportLog, line)
		if len(m.reportLog) > reportLogDepth {
			m.reportLog = m.reportLog[len(m.reportLog)-reportLogDepth:]
		}
		return m, waitReportCmd(m.reportCh)

	case error:
		m.err = msg
		return m, nil
	}

	return m, nil
}

func (m model) View() string {
	var s strings.Builder

	status := "已连接"
	if !m.connected {
		status = "正在连接..."
	}
	if m.err != nil {
		status = fmt.Sprintf("错误: %v", m.err)
	}
	s.WriteString(headerStyle.Render(fmt.Sprintf("🏁 车队状态 | %s | %s", m.baseURL, status)))
	s.WriteString("\n\n")

	s.WriteString(renderBots(m.bots))
	s.WriteString("\n")

	// 区域占用
	var zoneParts []string
	for _, z := range []domain.Zone{domain.ZoneChargingStation, domain.ZoneRepairBay, domain.ZoneScrapyard} {
		zoneParts = append(zoneParts, fmt.Sprintf("%s: %d", z, m.zones[z]))
	}
	s.WriteString(dimStyle.Render("区域占用  " + strings.Join(zoneParts, "  |  ")))
	s.WriteString("\n\n")

	if len(m.reportLog) > 0 {
		s.WriteString(borderStyle.Render(strings.Join(m.reportLog, "\n")))
		s.WriteString("\n\n")
	}

	if !m.fetchedAt.IsZero() {
		s.WriteString(dimStyle.Render(fmt.Sprintf("更新于 %s 前  ", time.Since(m.fetchedAt).Round(time.Second))))
	}
	s.WriteString("按 q 退出，r 手动刷新")
	return s.String()
}

func renderBots(bots []domain.BotSnapshot) string {
	var s strings.Builder
	s.WriteString(fmt.Sprintf("  %-8s %-14s %-8s %-8s %-16s %s\n", "ID", "名称", "电量", "状况", "区域", "任务"))
	if len(bots) == 0 {
		s.WriteString(dimStyle.Render("  （暂无数据）\n"))
		return borderStyle.Render(s.String())
	}
	for _, b := range bots {
		active := "空闲"
		if b.IsActive {
			active = "执行中"
		}
		zone := string(b.Zone)
		if b.Zone == domain.ZoneNone {
			zone = "--"
		}
		s.WriteString(fmt.Sprintf("  %-8d %-14s %-8s %-8s %-16s %s\n",
			b.ID, b.Name, gauge(b.Battery), gauge(b.Condition), zone, active))
	}
	return borderStyle.Render(s.String())
}

// gauge 按数值上色：>=80 绿，>=40 黄，否则红
func gauge(v int) string {
	text := fmt.Sprintf("%d%%", v)
	switch {
	case v >= 80:
		return okStyle.Render(text)
	case v >= 40:
		return warnStyle.Render(text)
	default:
		return badStyle.Render(text)
	}
}

func short(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// Commands

func tickCmd() tea.Cmd {
	return tea.Tick(2*time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func fetchStatusCmd(client *resty.Client) tea.Cmd {
	return func() tea.Msg {
		resp, err := client.R().Get("/api/fleet/status")
		if err != nil {
			return fmt.Errorf("获取车队状态失败: %w", err)
		}
		if resp.StatusCode() != 200 {
			return fmt.Errorf("控制面返回 %d", resp.StatusCode())
		}
		var out statusResponse
		if err := json.Unmarshal(resp.Body(), &out); err != nil {
			return fmt.Errorf("解析车队状态失败: %w", err)
		}
		return statusMsg(out)
	}
}

func waitReportCmd(ch <-chan *domain.CycleReport) tea.Cmd {
	return func() tea.Msg {
		r, ok := <-ch
		if !ok {
			return nil
		}
		return reportMsg(r)
	}
}

// listenReports 订阅控制面 WebSocket，把周期报告推给 UI。
// 断线后退避重连，TUI 本身不受影响。
func listenReports(baseURL string, ch chan<- *domain.CycleReport) {
	wsURL := strings.Replace(baseURL, "http", "ws", 1) + "/ws"
	for {
		conn, _, err := gorillaWS.DefaultDialer.Dial(wsURL, nil)
		if err != nil {
			time.Sleep(5 * time.Second)
			continue
		}
		for {
			var report domain.CycleReport
			if err := conn.ReadJSON(&report); err != nil {
				break
			}
			select {
			case ch <- &report:
			default:
			}
		}
		_ = conn.Close()
		time.Sleep(time.Second)
	}
}

func main() {
	addr := flag.String("addr", envOr("FLEET_ADDR", "http://127.0.0.1:8787"), "fleetd 控制面地址")
	flag.Parse()

	if len(os.Getenv("DEBUG")) > 0 {
		f, err := tea.LogToFile("debug.log", "debug")
		if err != nil {
			log.Fatal(err)
		}
		defer f.Close()
	}

	p := tea.NewProgram(initialModel(*addr), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		log.Fatalf("运行程序失败: %v", err)
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
