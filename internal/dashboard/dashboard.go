package dashboard

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	ui "github.com/gizak/termui/v3"
	"github.com/gizak/termui/v3/widgets"

	"github.com/torosent/paysim/internal/metrics"
	"github.com/torosent/paysim/internal/runner"
)

// RunConfig holds the run parameters shown in the header.
type RunConfig struct {
	RunID       string
	TargetURL   string
	Mode        string
	Total       int
	Concurrency int
	Rate        int           // dispatch cap per second (0 = unlimited)
	Timeout     time.Duration // per-request deadline
	Seed        int64
	ConfigFile  string
}

// Dashboard renders a live terminal UI for a simulation run. It consumes
// scheduler events as a runner.Observer.
type Dashboard struct {
	ctx          context.Context
	cancel       context.CancelFunc
	shutdownFunc func()
	wg           sync.WaitGroup
	mu           sync.Mutex

	agg       *metrics.Aggregator
	state     runner.State
	cycles    int
	lastBatch int
	nextDelay time.Duration

	// Widgets
	grid           *ui.Grid
	latencySparkle *widgets.SparklineGroup
	latencyPara    *widgets.Paragraph
	progressGauge  *widgets.Gauge
	statusList     *widgets.List
	amountList     *widgets.List
	summaryPara    *widgets.Paragraph
	metricsPara    *widgets.Paragraph
	cyclePara      *widgets.Paragraph
	latencyHistory []float64
	startTime      time.Time
	runConfig      RunConfig
}

// New initializes the terminal and creates a Dashboard.
func New(cfg RunConfig, shutdownFunc func()) (*Dashboard, error) {
	if err := ui.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize termui: %w", err)
	}

	d := newDashboard(cfg, shutdownFunc)
	d.setupGrid()
	return d, nil
}

func newDashboard(cfg RunConfig, shutdownFunc func()) *Dashboard {
	ctx, cancel := context.WithCancel(context.Background())
	d := &Dashboard{
		ctx:            ctx,
		cancel:         cancel,
		shutdownFunc:   shutdownFunc,
		agg:            metrics.NewAggregator(),
		latencyHistory: make([]float64, 0, 100),
		startTime:      time.Now(),
		runConfig:      cfg,
	}
	d.initWidgets()
	return d
}

// initWidgets initializes all dashboard widgets.
func (d *Dashboard) initWidgets() {
	sparkline := widgets.NewSparkline()
	sparkline.Title = "Duration (ms)"
	sparkline.LineColor = ui.ColorGreen
	sparkline.Data = []float64{0}

	d.latencySparkle = widgets.NewSparklineGroup(sparkline)
	d.latencySparkle.Title = "Response Times"
	d.latencySparkle.BorderStyle.Fg = ui.ColorCyan

	d.latencyPara = widgets.NewParagraph()
	d.latencyPara.Title = "Duration Stats"
	d.latencyPara.Text = "Avg: 0ms\nMin: 0ms\nMax: 0ms\nP95: 0ms"
	d.latencyPara.BorderStyle.Fg = ui.ColorCyan

	d.progressGauge = widgets.NewGauge()
	d.progressGauge.Title = "Payments Dispatched"
	d.progressGauge.Percent = 0
	d.progressGauge.BarColor = ui.ColorBlue
	d.progressGauge.BorderStyle.Fg = ui.ColorCyan
	d.progressGauge.LabelStyle = ui.NewStyle(ui.ColorWhite)

	d.statusList = widgets.NewList()
	d.statusList.Title = "Status Buckets"
	d.statusList.Rows = []string{"Awaiting data"}
	d.statusList.TextStyle = ui.NewStyle(ui.ColorYellow)
	d.statusList.BorderStyle.Fg = ui.ColorCyan

	d.amountList = widgets.NewList()
	d.amountList.Title = "Settled by Currency"
	d.amountList.Rows = []string{"Awaiting data"}
	d.amountList.TextStyle = ui.NewStyle(ui.ColorCyan)
	d.amountList.BorderStyle.Fg = ui.ColorCyan

	d.summaryPara = widgets.NewParagraph()
	d.summaryPara.Title = "Payment Simulation"
	d.summaryPara.Text = "Initializing..."
	d.summaryPara.BorderStyle.Fg = ui.ColorCyan

	d.metricsPara = widgets.NewParagraph()
	d.metricsPara.Title = "Statistics"
	d.metricsPara.Text = "Waiting for data..."
	d.metricsPara.BorderStyle.Fg = ui.ColorCyan

	d.cyclePara = widgets.NewParagraph()
	d.cyclePara.Title = "Scheduler"
	d.cyclePara.Text = "State: idle"
	d.cyclePara.TextStyle = ui.NewStyle(ui.ColorGreen)
	d.cyclePara.BorderStyle.Fg = ui.ColorCyan
}

// setupGrid configures the layout grid.
func (d *Dashboard) setupGrid() {
	termWidth, termHeight := ui.TerminalDimensions()

	d.grid = ui.NewGrid()
	d.grid.SetRect(0, 0, termWidth, termHeight)

	d.grid.Set(
		ui.NewRow(0.14,
			ui.NewCol(1.0, d.summaryPara),
		),
		ui.NewRow(0.18,
			ui.NewCol(0.5, d.progressGauge),
			ui.NewCol(0.5, d.cyclePara),
		),
		ui.NewRow(0.26,
			ui.NewCol(0.65, d.latencySparkle),
			ui.NewCol(0.35, d.latencyPara),
		),
		ui.NewRow(0.42,
			ui.NewCol(0.4, d.metricsPara),
			ui.NewCol(0.3, d.amountList),
			ui.NewCol(0.3, d.statusList),
		),
	)
}

// Observe records scheduler events for the next refresh.
func (d *Dashboard) Observe(e runner.Event) {
	d.mu.Lock()
	defer d.mu.Unlock()

	switch e.Kind {
	case runner.EventStateChanged:
		d.state = e.State
	case runner.EventCycleStarted:
		d.cycles = e.Cycle
		d.lastBatch = e.Size
	case runner.EventCycleFinished:
		d.nextDelay = e.Delay
	case runner.EventOutcome:
		d.agg.Record(e.Outcome)
	}
}

// Start begins the dashboard update loop.
func (d *Dashboard) Start() {
	d.wg.Add(1)
	go d.run()
}

// Stop stops the dashboard and restores the terminal.
func (d *Dashboard) Stop() {
	d.cancel()
	d.wg.Wait()
	ui.Close()
	// Give terminal time to restore
	time.Sleep(100 * time.Millisecond)
}

// run is the main dashboard update loop.
func (d *Dashboard) run() {
	defer d.wg.Done()

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	uiEvents := ui.PollEvents()

	d.render()

	for {
		select {
		case <-d.ctx.Done():
			for len(uiEvents) > 0 {
				<-uiEvents
			}
			return
		case e := <-uiEvents:
			select {
			case <-d.ctx.Done():
				return
			default:
			}

			switch e.ID {
			case "q", "<C-c>":
				if d.shutdownFunc != nil {
					d.shutdownFunc()
				}
				// Stop() cancels the context once the scheduler has drained.
			case "<Resize>":
				payload := e.Payload.(ui.Resize)
				d.grid.SetRect(0, 0, payload.Width, payload.Height)
				ui.Clear()
				d.render()
			}
		case <-ticker.C:
			d.update()
			d.render()
		}
	}
}

// update refreshes all widget data from the recorded outcomes.
func (d *Dashboard) update() {
	d.mu.Lock()
	defer d.mu.Unlock()

	elapsed := time.Since(d.startTime)
	report := d.agg.Report(elapsed)

	if s := report.Durations; s != nil {
		d.latencyHistory = append(d.latencyHistory, s.Avg*1000)
		if len(d.latencyHistory) > 100 {
			d.latencyHistory = d.latencyHistory[1:]
		}
		d.latencySparkle.Sparklines[0].Data = d.latencyHistory
		d.latencySparkle.Title = fmt.Sprintf(
			"Response Times | Avg: %.0fms | Min: %.0fms | Max: %.0fms",
			s.Avg*1000, s.Min*1000, s.Max*1000,
		)
		d.latencyPara.Text = fmt.Sprintf(
			"Avg: %.0fms\nMin: %.0fms\nMax: %.0fms\nP95: %.0fms\nP50/P90/P99: %.0f / %.0f / %.0f ms",
			s.Avg*1000, s.Min*1000, s.Max*1000, s.P95*1000, s.P50*1000, s.P90*1000, s.P99*1000,
		)
	}

	d.progressGauge.Percent = progressPercent(report.TotalRequests, d.runConfig.Total)
	d.progressGauge.Label = fmt.Sprintf("%d / %d", report.TotalRequests, d.runConfig.Total)

	d.summaryPara.Text = fmt.Sprintf(
		"Target: %s\n%s\nElapsed: %s | Success Rate: %.1f%%",
		d.runConfig.TargetURL,
		d.formatRunParams(),
		elapsed.Round(time.Second),
		report.SuccessRate*100,
	)

	d.metricsPara.Text = fmt.Sprintf(
		"Total Requests:  %d\nSuccessful:      %d\nRejected:        %d\nTimeouts:        %d\nErrors:          %d\nThroughput:      %.2f req/s\nTotal Amount:    %.2f",
		report.TotalRequests,
		report.SuccessCount,
		report.FailedCount,
		report.TimeoutCount,
		report.ErrorCount,
		report.ThroughputPerSecond,
		report.TotalAmount,
	)

	d.cyclePara.Text = d.formatScheduler()
	d.statusList.Rows = formatStatusListRows(report.StatusBuckets)
	d.amountList.Rows = formatAmountRows(report.AmountByCurrency)
}

// render draws all widgets to the screen.
func (d *Dashboard) render() {
	d.mu.Lock()
	defer d.mu.Unlock()

	ui.Render(d.grid)
}

func (d *Dashboard) formatScheduler() string {
	lines := []string{
		fmt.Sprintf("State: %s", d.state),
		fmt.Sprintf("Cycle: %d | Last batch: %d", d.cycles, d.lastBatch),
	}
	if d.nextDelay > 0 {
		lines = append(lines, fmt.Sprintf("Delay: %s", d.nextDelay.Round(time.Millisecond)))
	}
	return strings.Join(lines, "\n")
}

func progressPercent(done int64, total int) int {
	if total <= 0 {
		return 0
	}
	p := int(done * 100 / int64(total))
	if p > 100 {
		p = 100
	}
	return p
}

func formatStatusListRows(rows []metrics.StatusBucket) []string {
	if len(rows) == 0 {
		return []string{"[Awaiting data](fg:green)"}
	}
	maxRows := len(rows)
	if maxRows > 10 {
		maxRows = 10
	}
	formatted := make([]string, 0, maxRows)
	for _, row := range rows[:maxRows] {
		color := "red"
		if row.Status == metrics.StatusSuccess {
			color = "green"
		}
		label := strings.ToUpper(string(row.Status))
		if row.Code != 0 {
			label = fmt.Sprintf("%s %d", label, row.Code)
		}
		formatted = append(formatted, fmt.Sprintf("[%s](fg:%s) %d", label, color, row.Count))
	}
	return formatted
}

func formatAmountRows(amounts map[string]float64) []string {
	if len(amounts) == 0 {
		return []string{"[Nothing settled yet](fg:yellow)"}
	}
	currencies := make([]string, 0, len(amounts))
	for c := range amounts {
		currencies = append(currencies, c)
	}
	sort.Slice(currencies, func(i, j int) bool {
		if amounts[currencies[i]] == amounts[currencies[j]] {
			return currencies[i] < currencies[j]
		}
		return amounts[currencies[i]] > amounts[currencies[j]]
	})
	rows := make([]string, 0, len(currencies))
	for _, c := range currencies {
		rows = append(rows, fmt.Sprintf("[%s](fg:cyan) %12.2f", c, amounts[c]))
	}
	return rows
}

// formatRunParams formats the run configuration for the header.
func (d *Dashboard) formatRunParams() string {
	var parts []string

	if d.runConfig.RunID != "" {
		parts = append(parts, fmt.Sprintf("Run: %s", d.runConfig.RunID))
	}
	if d.runConfig.Mode != "" {
		parts = append(parts, fmt.Sprintf("Mode: %s", d.runConfig.Mode))
	}
	if d.runConfig.Concurrency > 0 {
		parts = append(parts, fmt.Sprintf("Max Concurrent: %d", d.runConfig.Concurrency))
	}
	if d.runConfig.Rate > 0 {
		parts = append(parts, fmt.Sprintf("Rate: %d/s", d.runConfig.Rate))
	}
	if d.runConfig.Timeout > 0 {
		parts = append(parts, fmt.Sprintf("Timeout: %s", d.runConfig.Timeout))
	}
	parts = append(parts, fmt.Sprintf("Seed: %d", d.runConfig.Seed))
	if d.runConfig.ConfigFile != "" {
		parts = append(parts, fmt.Sprintf("Config: %s", d.runConfig.ConfigFile))
	}

	return strings.Join(parts, " | ")
}
