package queryexec

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/WessleyAI/knowcore/engine/domain"
	"github.com/WessleyAI/knowcore/engine/graphstore"
	"github.com/WessleyAI/knowcore/engine/querygen"
	"github.com/WessleyAI/knowcore/pkg/metrics"
)

// Config is the executor's static configuration, loaded once at startup
// (spec §6 "query_execution").
type Config struct {
	DefaultTimeout       float64
	MaxTimeout           float64
	DefaultLimit         int
	MaxLimit             int
	ReadOnlyMode         bool
	DefaultFormat        Format
	EnableExplain        bool
	SlowQueryThresholdMS int64
}

// DefaultConfig mirrors DefaultOptions plus the executor-wide caps.
func DefaultConfig() Config {
	return Config{
		DefaultTimeout:       10,
		MaxTimeout:           60,
		DefaultLimit:         100,
		MaxLimit:             1000,
		ReadOnlyMode:         true,
		DefaultFormat:        FormatTable,
		EnableExplain:        true,
		SlowQueryThresholdMS: 2000,
	}
}

// Executor runs validated queries against a graph store provider.
type Executor struct {
	store   graphstore.Provider
	cfg     Config
	logger  *slog.Logger
	metrics *metrics.Registry

	execHist      *metrics.Histogram
	slowQueries   *metrics.Counter
	executedTotal *metrics.Counter
}

// New creates an Executor. A nil logger defaults to slog.Default(); a nil
// registry disables metrics recording.
func New(store graphstore.Provider, cfg Config, logger *slog.Logger, reg *metrics.Registry) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Executor{store: store, cfg: cfg, logger: logger, metrics: reg}
	if reg != nil {
		e.execHist = reg.Histogram("queryexec_duration_seconds", "Graph query execution time", nil)
		e.slowQueries = reg.Counter("queryexec_slow_queries_total", "Queries exceeding the slow-query threshold")
		e.executedTotal = reg.Counter("queryexec_executed_total", "Total queries executed")
	}
	return e
}

// Execute runs query under the given options (spec §4.4 "Execute").
func (e *Executor) Execute(ctx context.Context, query string, params map[string]any, opts Options) (*Result, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("queryexec: query must not be empty")
	}

	readOnly := opts.ReadOnly || e.cfg.ReadOnlyMode
	if readOnly {
		v := querygen.Validate(query, querygen.ValidateOptions{AllowWrite: false, MaxComplexity: math.MaxInt32})
		if !v.IsReadOnly {
			return nil, &ReadOnlyViolation{Clauses: writeClauseNamesIn(query)}
		}
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = e.cfg.DefaultLimit
	}
	if e.cfg.MaxLimit > 0 && limit > e.cfg.MaxLimit {
		limit = e.cfg.MaxLimit
	}
	execQuery := querygen.Sanitize(query, limit)

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = e.cfg.DefaultTimeout
	}
	if e.cfg.MaxTimeout > 0 && timeout > e.cfg.MaxTimeout {
		timeout = e.cfg.MaxTimeout
	}

	format := opts.Format
	if format == "" {
		format = e.cfg.DefaultFormat
	}

	execCtx, cancel := context.WithTimeout(ctx, time.Duration(timeout*float64(time.Second)))
	defer cancel()

	start := time.Now()
	rows, err := e.store.Query(execCtx, execQuery, params)
	elapsed := time.Since(start)

	if e.execHist != nil {
		e.execHist.Observe(elapsed.Seconds())
	}
	if e.executedTotal != nil {
		e.executedTotal.Inc()
	}

	elapsedMS := elapsed.Milliseconds()
	if e.cfg.SlowQueryThresholdMS > 0 && elapsedMS >= e.cfg.SlowQueryThresholdMS {
		if e.slowQueries != nil {
			e.slowQueries.Inc()
		}
		e.logger.Warn("slow query", "elapsed_ms", elapsedMS, "query", execQuery)
	}

	if err != nil {
		if execCtx.Err() == context.DeadlineExceeded {
			return nil, &QueryTimeout{TimeoutSeconds: timeout}
		}
		return nil, &QueryExecutionError{Query: execQuery, Cause: err}
	}

	// graphstore.Row already arrives as a decoded property map regardless
	// of format; table/graph/json only affect what the caller does with
	// Data, so all three share the same conversion here.
	data := rowsToMaps(rows)
	return &Result{
		Success: true,
		Data:    data,
		Stats:   Stats{ExecutionTimeMS: elapsedMS, RowsReturned: len(data)},
		Metadata: ResultMetadata{
			Timeout: timeout,
			Format:  format,
		},
	}, nil
}

var finalReturnRe = regexp.MustCompile(`(?is)\breturn\b.*$`)

// ExecuteCount wraps query's body, replacing the final return clause with
// "return count(*) as total" inside the same match set, and returns the
// integer (spec §4.4 "Execute count").
func (e *Executor) ExecuteCount(ctx context.Context, query string, params map[string]any, opts Options) (int, error) {
	countQuery := finalReturnRe.ReplaceAllString(query, "RETURN count(*) AS total")
	opts.Format = FormatJSON
	result, err := e.Execute(ctx, countQuery, params, opts)
	if err != nil {
		return 0, err
	}
	if len(result.Data) == 0 {
		return 0, nil
	}
	return toInt(result.Data[0]["total"]), nil
}

// ExecutePaginated runs a count first, then the base query with
// skip/limit for the requested page (spec §4.4 "Execute paginated").
func (e *Executor) ExecutePaginated(ctx context.Context, query string, params map[string]any, page, perPage int, opts Options) (*PaginatedResult, error) {
	page = domain.CoercePage(page)
	if perPage < 1 {
		perPage = e.cfg.DefaultLimit
	}
	perPage, _ = domain.ClampLimit(perPage, e.cfg.MaxLimit)

	total, err := e.ExecuteCount(ctx, query, params, opts)
	if err != nil {
		return nil, err
	}

	pagedQuery := strings.TrimSpace(query) + fmt.Sprintf(" SKIP %d LIMIT %d", (page-1)*perPage, perPage)
	pagedOpts := opts
	pagedOpts.Limit = perPage

	result, err := e.Execute(ctx, pagedQuery, params, pagedOpts)
	if err != nil {
		return nil, err
	}

	lastPage := 1
	if perPage > 0 {
		lastPage = int(math.Ceil(float64(total) / float64(perPage)))
		if lastPage < 1 {
			lastPage = 1
		}
	}

	return &PaginatedResult{
		Result: *result,
		Pagination: Pagination{
			CurrentPage: page,
			PerPage:     perPage,
			Total:       total,
			LastPage:    lastPage,
		},
	}, nil
}

// Explain prefixes query with the store's explain keyword and returns the
// plan verbatim. Disabled if EnableExplain is false.
func (e *Executor) Explain(ctx context.Context, query string, params map[string]any) ([]map[string]any, error) {
	if !e.cfg.EnableExplain {
		return nil, fmt.Errorf("queryexec: explain is disabled")
	}
	rows, err := e.store.Query(ctx, "EXPLAIN "+query, params)
	if err != nil {
		return nil, &QueryExecutionError{Query: query, Cause: err}
	}
	return rowsToMaps(rows), nil
}

// Test runs Explain and reports whether it succeeded.
func (e *Executor) Test(ctx context.Context, query string) bool {
	_, err := e.Explain(ctx, query, nil)
	return err == nil
}

func writeClauseNamesIn(query string) []string {
	// Validate doesn't expose clause names structured, only as a prefixed
	// error string, so parse it back out.
	v := querygen.Validate(query, querygen.ValidateOptions{AllowWrite: false, MaxComplexity: math.MaxInt32})
	for _, errMsg := range v.Errors {
		const prefix = "query contains write clause(s): "
		if strings.HasPrefix(errMsg, prefix) {
			return strings.Split(strings.TrimPrefix(errMsg, prefix), ", ")
		}
	}
	return nil
}

func rowsToMaps(rows []graphstore.Row) []map[string]any {
	out := make([]map[string]any, len(rows))
	for i, r := range rows {
		out[i] = map[string]any(r)
	}
	return out
}

func toInt(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	default:
		return 0
	}
}
