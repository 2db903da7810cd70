package statement

import (
	"fmt"
	"reflect"
	"strconv"

	libinjection "github.com/corazawaf/libinjection-go"
	"go.uber.org/zap"

	"github.com/ekaya-inc/sqlbind/pkg/apperrors"
	"github.com/ekaya-inc/sqlbind/pkg/cache"
	"github.com/ekaya-inc/sqlbind/pkg/logging"
)

// DefaultProcessorCacheSize bounds the processing-plan cache.
const DefaultProcessorCacheSize = 1000

// ParameterProcessingResult is the immutable output of Process: the
// execution-ready SQL and parameters, the resulting profile, and (when it
// differs) a separately normalized SQL variant suitable for AST parsing.
type ParameterProcessingResult struct {
	SQL      string
	ParseSQL string // empty when identical to SQL
	Params   any
	Profile  *ParameterProfile
	Style    ParameterStyle
	Embedded bool
}

// parseVariant returns the SQL the AST parser should see.
func (r *ParameterProcessingResult) parseVariant() string {
	if r.ParseSQL != "" {
		return r.ParseSQL
	}
	return r.SQL
}

// processingPlan is the value-independent part of a processing run: the
// rewritten SQL texts and the occurrence list needed to reshape parameter
// values into execution form. Only plans are cached; the per-call phases
// (wrapping, coercion, reshaping, transforms) always run against the fresh
// values, so one caller's parameters never leak into another caller's result.
type processingPlan struct {
	execSQL    string
	parseSQL   string
	parseInfos []ParameterInfo
	converted  bool
	style      ParameterStyle
}

// Processor orchestrates type wrapping, driver-specific type coercion, the
// two placeholder conversion phases, output transforms, and the optional
// injection scan. It owns a bounded cache of processing plans keyed on
// (sql, config, dialect).
type Processor struct {
	tokenizer *Tokenizer
	cache     *cache.Cache[string, *processingPlan]
	logger    *zap.Logger
}

// NewProcessor builds a processor around tok. Pass a nil logger to disable
// logging. When registry is non-nil the plan cache is registered under
// cache.NameProcessor.
func NewProcessor(tok *Tokenizer, registry *cache.Registry, maxEntries int, logger *zap.Logger) *Processor {
	if maxEntries <= 0 {
		maxEntries = DefaultProcessorCacheSize
	}
	c := cache.MustNew[string, *processingPlan](maxEntries)
	if registry != nil {
		registry.Register(cache.NameProcessor, c)
	}
	return &Processor{tokenizer: tok, cache: c, logger: logger}
}

// Process runs the full pipeline. It never validates alignment on its own;
// callers invoke ValidateAlignment over the returned profile when they want
// the correctness gate, so a processor can also be used purely for
// transformation.
func (p *Processor) Process(sql string, params any, cfg *ParameterStyleConfig, dialect string, isBatch bool) (*ParameterProcessingResult, error) {
	params = normalizeContainer(params)
	infos := p.tokenizer.Extract(sql)

	// Static embedding serializes the values into the SQL text itself, so
	// its results are computed per call and never shared through the plan
	// cache.
	if cfg.NeedsStaticScriptCompilation && len(infos) > 0 && !isBatch && !isEmptyParams(params) {
		return p.embed(sql, params, infos)
	}

	key := processorKey(sql, cfg, dialect)
	plan, ok := p.cache.Get(key)
	if !ok {
		var err error
		plan, err = buildPlan(sql, infos, cfg)
		if err != nil {
			return nil, err
		}
		p.cache.Put(key, plan)
	}

	result, err := p.apply(plan, params, cfg, isBatch)
	if err != nil {
		return nil, err
	}
	if p.logger != nil {
		p.logger.Debug("processed statement",
			zap.String("sql", logging.SanitizeSQL(result.SQL)),
			zap.String("style", string(result.Style)),
			zap.Bool("batch", isBatch),
			zap.String("dialect", dialect),
		)
	}
	return result, nil
}

// buildPlan performs the value-independent work: phase-1 parse normalization
// and, when the execution layer rejects the written styles, the phase-2 SQL
// rewrite to the execution style.
func buildPlan(sql string, infos []ParameterInfo, cfg *ParameterStyleConfig) (*processingPlan, error) {
	parseSQL, parseInfos := NormalizeForParse(sql, infos, cfg)
	plan := &processingPlan{
		execSQL:    sql,
		parseSQL:   parseSQL,
		parseInfos: parseInfos,
		style:      resolvedStyle(infos, cfg),
	}
	if !executionAcceptable(infos, cfg) {
		target := cfg.DefaultExecutionStyle
		converted, _, err := ConvertPlaceholders(parseSQL, nil, parseInfos, target, false)
		if err != nil {
			return nil, err
		}
		plan.execSQL = converted
		plan.converted = true
		plan.style = target
	}
	return plan, nil
}

// apply runs the value-dependent phases of the pipeline against a plan.
func (p *Processor) apply(plan *processingPlan, params any, cfg *ParameterStyleConfig, isBatch bool) (*ParameterProcessingResult, error) {
	params = wrapParams(params, isBatch)

	params, err := coerceParams(params, cfg, isBatch)
	if err != nil {
		return nil, err
	}

	if cfg.CheckInjection {
		if err := scanForInjection(params); err != nil {
			return nil, err
		}
	}

	execParams := params
	if plan.converted && !(isBatch && cfg.PreserveOriginalForBatch) {
		execParams = reshapeParams(params, plan.parseInfos, cfg.DefaultExecutionStyle, isBatch)
	}

	execSQL := plan.execSQL
	for _, transform := range cfg.OutputTransforms {
		execSQL, execParams = transform(execSQL, execParams)
	}

	finalInfos := p.tokenizer.Extract(execSQL)
	result := &ParameterProcessingResult{
		SQL:     execSQL,
		Params:  execParams,
		Profile: NewParameterProfile(finalInfos),
		Style:   plan.style,
	}
	if plan.parseSQL != execSQL {
		result.ParseSQL = plan.parseSQL
	}
	return result, nil
}

func (p *Processor) embed(sql string, params any, infos []ParameterInfo) (*ParameterProcessingResult, error) {
	embedded, err := EmbedStatic(sql, params, infos)
	if err != nil {
		return nil, err
	}
	finalInfos := p.tokenizer.Extract(embedded)
	return &ParameterProcessingResult{
		SQL:      embedded,
		Profile:  NewParameterProfile(finalInfos),
		Style:    StyleStatic,
		Embedded: true,
	}, nil
}

// resolvedStyle reports the style the SQL executes with when no conversion is
// needed.
func resolvedStyle(infos []ParameterInfo, cfg *ParameterStyleConfig) ParameterStyle {
	if len(infos) == 0 {
		return cfg.DefaultStyle
	}
	return infos[0].Style
}

// executionAcceptable reports whether the execution layer accepts the SQL
// as written: all detected styles supported, and no mixing unless allowed.
func executionAcceptable(infos []ParameterInfo, cfg *ParameterStyleConfig) bool {
	if len(infos) == 0 {
		return true
	}
	first := infos[0].Style
	for _, info := range infos {
		if !cfg.SupportsExecution(info.Style) {
			return false
		}
		if info.Style != first && !cfg.AllowMixedStyles {
			return false
		}
	}
	return true
}

// wrapParams applies TypedParameter boxing across the container, per inner
// row for batch payloads.
func wrapParams(params any, isBatch bool) any {
	if isBatch {
		rows, ok := params.([]any)
		if !ok {
			return wrapAmbiguous(params, "")
		}
		out := make([]any, len(rows))
		for i, row := range rows {
			out[i] = wrapAmbiguous(row, "")
		}
		return out
	}
	return wrapAmbiguous(params, "")
}

// coerceParams applies the config's kind-keyed coercions, recursing into
// lists and maps and through TypedParameter boxes. A failing coercion is
// propagated, never swallowed.
func coerceParams(params any, cfg *ParameterStyleConfig, isBatch bool) (any, error) {
	if len(cfg.TypeCoercions) == 0 {
		return params, nil
	}
	if isBatch {
		rows, ok := params.([]any)
		if !ok {
			return coerceValue(params, cfg)
		}
		out := make([]any, len(rows))
		for i, row := range rows {
			coerced, err := coerceValue(row, cfg)
			if err != nil {
				return nil, fmt.Errorf("batch element %d: %w", i, err)
			}
			out[i] = coerced
		}
		return out, nil
	}
	return coerceValue(params, cfg)
}

func coerceValue(value any, cfg *ParameterStyleConfig) (any, error) {
	switch v := value.(type) {
	case []any:
		out := make([]any, len(v))
		for i, elem := range v {
			coerced, err := coerceValue(elem, cfg)
			if err != nil {
				return nil, err
			}
			out[i] = coerced
		}
		return out, nil
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, elem := range v {
			coerced, err := coerceValue(elem, cfg)
			if err != nil {
				return nil, fmt.Errorf("parameter '%s': %w", k, err)
			}
			out[k] = coerced
		}
		return out, nil
	}

	kind := KindOf(value)
	fn, ok := cfg.TypeCoercions[kind]
	if !ok {
		return value, nil
	}
	coerced, err := fn(unwrapScalar(value))
	if err != nil {
		return nil, fmt.Errorf("%w: %s value: %v", apperrors.ErrCoercionFailed, kind, err)
	}
	return coerced, nil
}

// unwrapScalar strips a TypedParameter box without touching containers.
func unwrapScalar(value any) any {
	switch v := value.(type) {
	case TypedParameter:
		return v.Value
	case *TypedParameter:
		return v.Value
	}
	return value
}

// scanForInjection runs libinjection over every string parameter value. Only
// strings are scanned; other kinds cannot carry injection payloads.
func scanForInjection(params any) error {
	return walkStrings(params, "", func(name, s string) error {
		isSQLi, fingerprint := libinjection.IsSQLi(s)
		if isSQLi {
			return &apperrors.InjectionError{ParamName: name, Fingerprint: string(fingerprint)}
		}
		return nil
	})
}

func walkStrings(value any, name string, fn func(name, s string) error) error {
	switch v := value.(type) {
	case string:
		return fn(name, v)
	case TypedParameter:
		return walkStrings(v.Value, v.Name, fn)
	case *TypedParameter:
		return walkStrings(v.Value, v.Name, fn)
	case []any:
		for i, elem := range v {
			label := name
			if label == "" {
				label = strconv.Itoa(i)
			}
			if err := walkStrings(elem, label, fn); err != nil {
				return err
			}
		}
	case map[string]any:
		for k, elem := range v {
			if err := walkStrings(elem, k, fn); err != nil {
				return err
			}
		}
	}
	return nil
}

// DetectExecuteMany reports whether params is a homogeneous batch: an outer
// sequence of at least two rows that are all sequences or all maps. A
// single-row list is deliberately not auto-treated as a batch.
func DetectExecuteMany(params any) bool {
	rows, ok := normalizeContainer(params).([]any)
	if !ok || len(rows) < 2 {
		return false
	}
	seqRows, mapRows := 0, 0
	firstLen := -1
	for _, row := range rows {
		switch r := row.(type) {
		case []any:
			if firstLen == -1 {
				firstLen = len(r)
			} else if len(r) != firstLen {
				return false
			}
			seqRows++
		case map[string]any:
			mapRows++
		default:
			return false
		}
	}
	return seqRows == len(rows) || mapRows == len(rows)
}

// normalizeContainer converts arbitrary slices and string-keyed maps into the
// canonical []any / map[string]any container shapes, recursively. []byte is a
// scalar (a byte string), never a container.
func normalizeContainer(value any) any {
	switch value.(type) {
	case nil, []byte, string, TypedParameter, *TypedParameter:
		return value
	case []any:
		v := value.([]any)
		out := make([]any, len(v))
		for i, elem := range v {
			out[i] = normalizeContainer(elem)
		}
		return out
	case map[string]any:
		v := value.(map[string]any)
		out := make(map[string]any, len(v))
		for k, elem := range v {
			out[k] = normalizeContainer(elem)
		}
		return out
	}

	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		out := make([]any, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			out[i] = normalizeContainer(rv.Index(i).Interface())
		}
		return out
	case reflect.Map:
		if rv.Type().Key().Kind() == reflect.String {
			out := make(map[string]any, rv.Len())
			iter := rv.MapRange()
			for iter.Next() {
				out[iter.Key().String()] = normalizeContainer(iter.Value().Interface())
			}
			return out
		}
	}
	return value
}

func isEmptyParams(params any) bool {
	switch v := params.(type) {
	case nil:
		return true
	case []any:
		return len(v) == 0
	case map[string]any:
		return len(v) == 0
	}
	return false
}

// processorKey composes the plan cache key: exact SQL text, the config hash,
// and the dialect. Parameter values never participate because cached plans
// are value-independent.
func processorKey(sql string, cfg *ParameterStyleConfig, dialect string) string {
	b := acquireBuilder()
	defer releaseBuilder(b)
	b.WriteString(sql)
	b.WriteByte(0)
	b.WriteString(strconv.FormatUint(cfg.Hash(), 16))
	b.WriteByte(0)
	b.WriteString(dialect)
	return b.String()
}
