package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/shopspring/decimal"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"github.com/vladislavdragonenkov/loja/internal/domain"
	"github.com/vladislavdragonenkov/loja/internal/dto"
)

const (
	apiPrefix      = "/api/v1"
	scenarioMethod = "scenario"
)

type loadMode string

const (
	modeCreate     loadMode = "create"
	modeCreateRead loadMode = "create-read"
	modeCreateShip loadMode = "create-ship"
)

type config struct {
	baseURL     string
	total       int
	duration    time.Duration
	concurrency int
	timeout     time.Duration
	mode        loadMode
	quantity    int
	price       decimal.Decimal
	outputPath  string
}

type latencySummary struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
	Avg float64 `json:"avg"`
	P50 float64 `json:"p50"`
	P95 float64 `json:"p95"`
	P99 float64 `json:"p99"`
}

type methodReport struct {
	Calls     int64            `json:"calls"`
	Success   int64            `json:"success"`
	Failed    int64            `json:"failed"`
	ErrorRate float64          `json:"error_rate"`
	Codes     map[string]int64 `json:"codes"`
	LatencyMs latencySummary   `json:"latency_ms"`
}

type report struct {
	StartedAt         time.Time               `json:"started_at"`
	DurationSeconds   float64                 `json:"duration_seconds"`
	TotalScenarios    int64                   `json:"total_scenarios"`
	SuccessScenarios  int64                   `json:"success_scenarios"`
	FailedScenarios   int64                   `json:"failed_scenarios"`
	ErrorRate         float64                 `json:"error_rate"`
	RPS               float64                 `json:"rps"`
	ScenarioLatencyMs latencySummary          `json:"scenario_latency_ms"`
	Methods           map[string]methodReport `json:"methods"`
}

type methodStats struct {
	calls     int64
	success   int64
	failed    int64
	codes     map[string]int64
	latencies []float64
}

type collector struct {
	mu      sync.Mutex
	methods map[string]*methodStats
}

func newCollector() *collector {
	return &collector{methods: make(map[string]*methodStats)}
}

// record учитывает вызов. status 0 означает сетевую ошибку.
func (c *collector) record(method string, latency time.Duration, status int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats, ok := c.methods[method]
	if !ok {
		stats = &methodStats{codes: make(map[string]int64)}
		c.methods[method] = stats
	}

	stats.calls++
	if status >= 200 && status < 300 {
		stats.success++
	} else {
		stats.failed++
	}
	code := "transport_error"
	if status > 0 {
		code = strconv.Itoa(status)
	}
	stats.codes[code]++
	stats.latencies = append(stats.latencies, float64(latency.Microseconds())/1000.0)
}

func (c *collector) buildReport(startedAt time.Time, duration time.Duration) report {
	c.mu.Lock()
	defer c.mu.Unlock()

	result := report{
		StartedAt:       startedAt.UTC(),
		DurationSeconds: duration.Seconds(),
		Methods:         make(map[string]methodReport, len(c.methods)),
	}

	if scenario := c.methods[scenarioMethod]; scenario != nil {
		result.TotalScenarios = scenario.calls
		result.SuccessScenarios = scenario.success
		result.FailedScenarios = scenario.failed
		result.ErrorRate = ratio(scenario.failed, scenario.calls)
		result.ScenarioLatencyMs = buildLatencySummary(scenario.latencies)
	}
	if duration > 0 {
		result.RPS = float64(result.TotalScenarios) / duration.Seconds()
	}

	for name, stats := range c.methods {
		codes := make(map[string]int64, len(stats.codes))
		for code, count := range stats.codes {
			codes[code] = count
		}
		result.Methods[name] = methodReport{
			Calls:     stats.calls,
			Success:   stats.success,
			Failed:    stats.failed,
			ErrorRate: ratio(stats.failed, stats.calls),
			Codes:     codes,
			LatencyMs: buildLatencySummary(stats.latencies),
		}
	}

	return result
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp(os.Stdout).RunContext(ctx, os.Args); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// newApp описывает CLI нагрузочного теста HTTP API заказов.
func newApp(out io.Writer) *cli.App {
	return &cli.App{
		Name:           "loadtest",
		Usage:          "generate order load against the loja HTTP API",
		Writer:         out,
		ErrWriter:      out,
		ExitErrHandler: func(*cli.Context, error) {},
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "addr", Value: "http://localhost:8080", Usage: "base URL of the HTTP API", EnvVars: []string{"LOJA_LOADTEST_ADDR"}},
			&cli.IntFlag{Name: "total", Value: 400, Usage: "scenarios to run; with --duration acts as an upper bound (0 = unbounded)"},
			&cli.DurationFlag{Name: "duration", Usage: "optional time-based run duration (e.g. 10m)"},
			&cli.IntFlag{Name: "concurrency", Value: 40, Usage: "number of concurrent workers"},
			&cli.DurationFlag{Name: "timeout", Value: 5 * time.Second, Usage: "per-request timeout"},
			&cli.StringFlag{Name: "mode", Value: string(modeCreate), Usage: "create | create-read | create-ship"},
			&cli.IntFlag{Name: "quantity", Value: 1, Usage: "items quantity per order"},
			&cli.StringFlag{Name: "price", Value: "10.00", Usage: "price of the load-test product"},
			&cli.StringFlag{Name: "output", Usage: "optional JSON report output file path"},
		},
		Action: func(c *cli.Context) error {
			cfg, err := configFromContext(c)
			if err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}
			result, err := run(c.Context, cfg, &http.Client{Timeout: cfg.timeout})
			if err != nil {
				return err
			}

			printReport(out, result, cfg)
			if cfg.outputPath != "" {
				if err := writeJSONReport(cfg.outputPath, result); err != nil {
					return fmt.Errorf("write report: %w", err)
				}
			}
			if result.FailedScenarios > 0 {
				return fmt.Errorf("%d of %d scenarios failed", result.FailedScenarios, result.TotalScenarios)
			}
			return nil
		},
	}
}

func configFromContext(c *cli.Context) (config, error) {
	cfg := config{
		baseURL:     strings.TrimRight(strings.TrimSpace(c.String("addr")), "/"),
		total:       c.Int("total"),
		duration:    c.Duration("duration"),
		concurrency: c.Int("concurrency"),
		timeout:     c.Duration("timeout"),
		quantity:    c.Int("quantity"),
		outputPath:  c.String("output"),
	}

	var errs []error
	mode, err := parseMode(c.String("mode"))
	if err != nil {
		errs = append(errs, err)
	}
	cfg.mode = mode

	price, err := decimal.NewFromString(strings.TrimSpace(c.String("price")))
	if err != nil {
		errs = append(errs, fmt.Errorf("price: %w", err))
	} else if price.IsNegative() {
		errs = append(errs, errors.New("price must be >= 0"))
	}
	cfg.price = price

	if cfg.baseURL == "" {
		errs = append(errs, errors.New("addr is required"))
	}
	if cfg.duration < 0 {
		errs = append(errs, errors.New("duration must be >= 0"))
	}
	if cfg.total < 0 || (cfg.duration == 0 && cfg.total == 0) {
		errs = append(errs, errors.New("total must be > 0 when duration is not set"))
	}
	if cfg.concurrency <= 0 {
		errs = append(errs, errors.New("concurrency must be > 0"))
	}
	if cfg.timeout <= 0 {
		errs = append(errs, errors.New("timeout must be > 0"))
	}
	if cfg.quantity <= 0 || cfg.quantity > math.MaxInt32 {
		errs = append(errs, errors.New("quantity must be > 0"))
	}

	return cfg, errors.Join(errs...)
}

func parseMode(value string) (loadMode, error) {
	switch mode := loadMode(strings.TrimSpace(value)); mode {
	case modeCreate, modeCreateRead, modeCreateShip:
		return mode, nil
	default:
		return "", fmt.Errorf("unsupported mode: %s", value)
	}
}

// fixture — справочные данные, на которые ссылаются создаваемые заказы.
type fixture struct {
	clientID  int64
	sellerID  int64
	productID int64
}

type apiClient struct {
	http    *http.Client
	baseURL string
	col     *collector
}

func run(ctx context.Context, cfg config, httpClient *http.Client) (report, error) {
	api := &apiClient{http: httpClient, baseURL: cfg.baseURL, col: newCollector()}

	fx, err := api.prepare(ctx, cfg)
	if err != nil {
		return report{}, fmt.Errorf("prepare fixture: %w", err)
	}
	// Подготовка не входит в отчёт.
	api.col = newCollector()

	startedAt := time.Now()
	jobs := make(chan int, cfg.concurrency*2)

	g, gctx := errgroup.WithContext(ctx)
	for range cfg.concurrency {
		g.Go(func() error {
			for range jobs {
				api.runScenario(gctx, cfg, fx)
			}
			return nil
		})
	}
	dispatchJobs(gctx, jobs, cfg)
	_ = g.Wait()

	return api.col.buildReport(startedAt, time.Since(startedAt)), nil
}

func dispatchJobs(ctx context.Context, jobs chan<- int, cfg config) {
	defer close(jobs)

	var deadline <-chan time.Time
	if cfg.duration > 0 {
		timer := time.NewTimer(cfg.duration)
		defer timer.Stop()
		deadline = timer.C
	}

	for i := 0; cfg.total == 0 || i < cfg.total; i++ {
		select {
		case <-ctx.Done():
			return
		case <-deadline:
			return
		case jobs <- i:
		}
	}
}

// prepare создаёт клиента, продавца, категорию и товар для нагрузочного прогона.
func (a *apiClient) prepare(ctx context.Context, cfg config) (fixture, error) {
	tag := strconv.FormatInt(time.Now().UnixNano(), 36)
	newClient := func(role string) dto.Client {
		return dto.Client{
			Name:      "loadtest " + role + " " + tag,
			CPF:       role[:1] + tag[max(0, len(tag)-10):],
			BirthDate: time.Date(1990, time.January, 1, 0, 0, 0, 0, time.UTC),
			Phone:     "+550000000000",
		}
	}

	var fx fixture
	var buyer, seller dto.Client
	if _, err := a.do(ctx, "CreateClient", http.MethodPost, "/clients", newClient("buyer"), &buyer); err != nil {
		return fx, err
	}
	if _, err := a.do(ctx, "CreateClient", http.MethodPost, "/clients", newClient("seller"), &seller); err != nil {
		return fx, err
	}

	var category dto.Category
	if _, err := a.do(ctx, "CreateCategory", http.MethodPost, "/categories", dto.Category{Name: "loadtest " + tag}, &category); err != nil {
		return fx, err
	}

	var product dto.Product
	newProduct := dto.Product{Name: "loadtest product " + tag, Price: cfg.price, Stock: math.MaxInt32, CategoryID: category.ID}
	if _, err := a.do(ctx, "CreateProduct", http.MethodPost, "/products", newProduct, &product); err != nil {
		return fx, err
	}

	fx.clientID, fx.sellerID, fx.productID = buyer.ID, seller.ID, product.ID
	return fx, nil
}

func (a *apiClient) runScenario(ctx context.Context, cfg config, fx fixture) {
	started := time.Now()
	status := http.StatusOK
	defer func() { a.col.record(scenarioMethod, time.Since(started), status) }()

	order := dto.Order{
		ClientID: fx.clientID,
		SellerID: fx.sellerID,
		Items: []dto.OrderItem{{
			ProductID: fx.productID,
			Quantity:  int32(cfg.quantity),
			UnitPrice: cfg.price,
		}},
	}

	var created dto.Order
	code, err := a.do(ctx, "CreateOrder", http.MethodPost, "/orders", order, &created)
	if err != nil {
		status = failedStatus(code)
		return
	}
	orderPath := "/orders/" + strconv.FormatInt(created.ID, 10)

	switch cfg.mode {
	case modeCreateRead:
		if code, err = a.do(ctx, "GetOrderWithProducts", http.MethodGet, orderPath+"/products", nil, nil); err != nil {
			status = failedStatus(code)
		}
	case modeCreateShip:
		for _, next := range []domain.OrderStatus{domain.OrderStatusPaid, domain.OrderStatusShipped} {
			if code, err = a.do(ctx, "UpdateOrderStatus", http.MethodPatch, orderPath+"/status", dto.StatusUpdate{Status: string(next)}, nil); err != nil {
				status = failedStatus(code)
				return
			}
		}
	}
}

// failedStatus не даёт засчитать как успех 2xx-ответ, который не удалось разобрать.
func failedStatus(code int) int {
	if code >= 200 && code < 300 {
		return 0
	}
	return code
}

// do выполняет запрос и учитывает его в collector под именем method.
// Возвращает HTTP-статус (0 при сетевой ошибке).
func (a *apiClient) do(ctx context.Context, method, httpMethod, path string, body, out any) (int, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("encode %s request: %w", method, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, httpMethod, a.baseURL+apiPrefix+path, reader)
	if err != nil {
		return 0, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	started := time.Now()
	resp, err := a.http.Do(req)
	if err != nil {
		a.col.record(method, time.Since(started), 0)
		return 0, err
	}
	defer func() { _ = resp.Body.Close() }()

	raw, readErr := io.ReadAll(resp.Body)
	a.col.record(method, time.Since(started), resp.StatusCode)
	if readErr != nil {
		return resp.StatusCode, readErr
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp.StatusCode, fmt.Errorf("%s %s: status %d: %s", httpMethod, path, resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return resp.StatusCode, fmt.Errorf("decode %s response: %w", method, err)
		}
	}
	return resp.StatusCode, nil
}

func writeJSONReport(path string, result report) error {
	cleanPath := filepath.Clean(path)
	if cleanPath == "." || cleanPath == string(filepath.Separator) {
		return errors.New("output path must point to a file")
	}
	if cleanPath == ".." || strings.HasPrefix(cleanPath, ".."+string(filepath.Separator)) {
		return fmt.Errorf("output path must be inside current directory: %s", path)
	}

	// #nosec G304 -- путь задаётся явно через CLI.
	file, err := os.Create(cleanPath)
	if err != nil {
		return err
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	return encoder.Encode(result)
}

func printReport(out io.Writer, result report, cfg config) {
	_, _ = fmt.Fprintln(out, "Load test summary")
	_, _ = fmt.Fprintf(out, "mode=%s run=%s total=%d success=%d failed=%d error_rate=%.4f\n",
		cfg.mode, runTarget(cfg), result.TotalScenarios, result.SuccessScenarios, result.FailedScenarios, result.ErrorRate)
	_, _ = fmt.Fprintf(out, "duration=%.2fs rps=%.2f\n", result.DurationSeconds, result.RPS)
	_, _ = fmt.Fprintf(out, "scenario latency ms: min=%.2f avg=%.2f p50=%.2f p95=%.2f p99=%.2f max=%.2f\n",
		result.ScenarioLatencyMs.Min,
		result.ScenarioLatencyMs.Avg,
		result.ScenarioLatencyMs.P50,
		result.ScenarioLatencyMs.P95,
		result.ScenarioLatencyMs.P99,
		result.ScenarioLatencyMs.Max,
	)

	names := make([]string, 0, len(result.Methods))
	for name := range result.Methods {
		if name != scenarioMethod {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	for _, name := range names {
		stats := result.Methods[name]
		_, _ = fmt.Fprintf(out, "%s: calls=%d success=%d failed=%d error_rate=%.4f p95=%.2fms\n",
			name, stats.Calls, stats.Success, stats.Failed, stats.ErrorRate, stats.LatencyMs.P95)
	}
}

func runTarget(cfg config) string {
	if cfg.duration <= 0 {
		return fmt.Sprintf("count:%d", cfg.total)
	}
	if cfg.total > 0 {
		return fmt.Sprintf("duration:%s,max-total:%d", cfg.duration, cfg.total)
	}
	return fmt.Sprintf("duration:%s", cfg.duration)
}

func buildLatencySummary(values []float64) latencySummary {
	if len(values) == 0 {
		return latencySummary{}
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	var sum float64
	for _, value := range sorted {
		sum += value
	}

	return latencySummary{
		Min: sorted[0],
		Max: sorted[len(sorted)-1],
		Avg: sum / float64(len(sorted)),
		P50: percentile(sorted, 50),
		P95: percentile(sorted, 95),
		P99: percentile(sorted, 99),
	}
}

func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if len(sorted) == 1 {
		return sorted[0]
	}

	rank := (p / 100.0) * float64(len(sorted)-1)
	lower := int(math.Floor(rank))
	upper := int(math.Ceil(rank))
	if lower == upper {
		return sorted[lower]
	}

	weight := rank - float64(lower)
	return sorted[lower] + (sorted[upper]-sorted[lower])*weight
}

func ratio(failed, total int64) float64 {
	if total <= 0 {
		return 0
	}
	return float64(failed) / float64(total)
}
