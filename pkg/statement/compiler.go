package statement

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/xwb1989/sqlparser"
	"go.uber.org/zap"

	"github.com/ekaya-inc/sqlbind/pkg/apperrors"
	"github.com/ekaya-inc/sqlbind/pkg/cache"
	"github.com/ekaya-inc/sqlbind/pkg/logging"
)

// DefaultCompilerCacheSize bounds the compiled-statement cache.
const DefaultCompilerCacheSize = 1000

// PayloadKind classifies the shape of an execution-ready parameter payload.
type PayloadKind int

const (
	PayloadNone PayloadKind = iota
	PayloadScalar
	PayloadSequence
	PayloadMap
	PayloadBatchOfSequences
	PayloadBatchOfMaps
)

// ParamPayload is the parameter container handed to a driver adapter.
type ParamPayload struct {
	Kind  PayloadKind
	Value any
}

func newParamPayload(value any, isBatch bool) ParamPayload {
	switch v := value.(type) {
	case nil:
		return ParamPayload{Kind: PayloadNone}
	case []any:
		if !isBatch {
			return ParamPayload{Kind: PayloadSequence, Value: v}
		}
		for _, row := range v {
			if _, ok := row.(map[string]any); ok {
				return ParamPayload{Kind: PayloadBatchOfMaps, Value: v}
			}
			break
		}
		return ParamPayload{Kind: PayloadBatchOfSequences, Value: v}
	case map[string]any:
		return ParamPayload{Kind: PayloadMap, Value: v}
	}
	return ParamPayload{Kind: PayloadScalar, Value: value}
}

// CompiledStatement is the immutable result of compilation: final SQL text,
// an execution-ready payload, the detected operation kind, and the resolved
// parameter style. Safe to share across goroutines; nothing mutates it after
// construction.
type CompiledStatement struct {
	SQL            string
	Parameters     ParamPayload
	OperationKind  OperationKind
	ParameterStyle ParameterStyle
	IsBatch        bool
	Hash           string
}

// CompilerOptions configures a Compiler.
type CompilerOptions struct {
	Config  *ParameterStyleConfig
	Dialect string
	// CacheSize bounds the compilation cache; 0 means DefaultCompilerCacheSize.
	CacheSize int
	// MaxSQLLength rejects oversized SQL before any scanning; 0 disables.
	MaxSQLLength int
	// DisableParsing skips the AST parse entirely; classification falls back
	// to the string-prefix heuristic.
	DisableParsing bool
	// DisableTransforms suppresses the config's output transforms.
	DisableTransforms bool
	Logger            *zap.Logger
	Registry          *cache.Registry
	// CacheName overrides the registry name for the compilation cache;
	// empty means cache.NameCompiler. Useful when one registry tracks a
	// compiler per dialect.
	CacheName string
}

// Compiler turns (sql, params) into immutable CompiledStatements, parsing the
// SQL at most once per cache miss.
type Compiler struct {
	processor         *Processor
	cfg               *ParameterStyleConfig
	dialect           string
	maxSQLLength      int
	parsingDisabled   bool
	transformsEnabled bool
	cache             *cache.Cache[string, *CompiledStatement]
	logger            *zap.Logger
}

// NewCompiler builds a compiler over proc.
func NewCompiler(proc *Processor, opts CompilerOptions) *Compiler {
	size := opts.CacheSize
	if size <= 0 {
		size = DefaultCompilerCacheSize
	}
	c := cache.MustNew[string, *CompiledStatement](size)
	if opts.Registry != nil {
		name := opts.CacheName
		if name == "" {
			name = cache.NameCompiler
		}
		opts.Registry.Register(name, c)
	}
	cfg := opts.Config
	if opts.DisableTransforms && len(cfg.OutputTransforms) > 0 {
		stripped := *cfg
		stripped.OutputTransforms = nil
		cfg = &stripped
	}
	return &Compiler{
		processor:         proc,
		cfg:               cfg,
		dialect:           opts.Dialect,
		maxSQLLength:      opts.MaxSQLLength,
		parsingDisabled:   opts.DisableParsing,
		transformsEnabled: !opts.DisableTransforms,
		cache:             c,
		logger:            opts.Logger,
	}
}

// Compile processes sql and params into an immutable CompiledStatement.
// Repeated compilation of identical inputs is a cache hit.
func (c *Compiler) Compile(sql string, params any) (*CompiledStatement, error) {
	if c.maxSQLLength > 0 && len(sql) > c.maxSQLLength {
		return nil, fmt.Errorf("%w: %d bytes (limit %d)", apperrors.ErrSQLTooLong, len(sql), c.maxSQLLength)
	}

	key := c.cacheKey(sql, params)
	if cached, ok := c.cache.Get(key); ok {
		return cached, nil
	}

	isBatch := DetectExecuteMany(params)
	result, err := c.processor.Process(sql, params, c.cfg, c.dialect, isBatch)
	if err != nil {
		return nil, err
	}

	kind := c.classify(result)

	compiled := &CompiledStatement{
		SQL:            result.SQL,
		Parameters:     newParamPayload(result.Params, isBatch),
		OperationKind:  kind,
		ParameterStyle: result.Style,
		IsBatch:        isBatch,
		Hash:           statementHash(result.SQL, result.Params),
	}
	if c.logger != nil {
		c.logger.Debug("compiled statement",
			zap.String("sql", logging.SanitizeSQL(compiled.SQL)),
			zap.String("operation", string(kind)),
			zap.String("params", logging.RedactParameters(result.Params)),
		)
	}
	c.cache.Put(key, compiled)
	return compiled, nil
}

// classify determines the operation kind: script detection first, then one
// AST parse, then the string-prefix heuristic. A failed parse never raises;
// it only downgrades classification to the heuristic.
func (c *Compiler) classify(result *ParameterProcessingResult) OperationKind {
	if countStatements(result.SQL) > 1 {
		return OpScript
	}
	if !c.parsingDisabled {
		if kind, ok := classifyAST(result.parseVariant()); ok {
			return kind
		}
	}
	return classifyPrefix(result.SQL)
}

func classifyAST(sql string) (OperationKind, bool) {
	stmt, err := sqlparser.Parse(sql)
	if err != nil {
		return OpUnknown, false
	}
	switch stmt.(type) {
	case *sqlparser.Select, *sqlparser.Union:
		return OpSelect, true
	case *sqlparser.Insert:
		return OpInsert, true
	case *sqlparser.Update:
		return OpUpdate, true
	case *sqlparser.Delete:
		return OpDelete, true
	case *sqlparser.DDL:
		return OpDDL, true
	}
	return OpUnknown, false
}

// classifyPrefix is the case-insensitive first-keyword heuristic used when
// AST parsing is disabled or fails.
func classifyPrefix(sql string) OperationKind {
	word := firstKeyword(sql)
	switch word {
	case "SELECT", "WITH", "SHOW", "VALUES", "TABLE":
		return OpSelect
	case "INSERT", "REPLACE":
		return OpInsert
	case "UPDATE":
		return OpUpdate
	case "DELETE":
		return OpDelete
	case "CREATE", "DROP", "ALTER", "TRUNCATE", "COMMENT", "RENAME":
		return OpDDL
	case "COPY":
		if strings.Contains(strings.ToUpper(sql), " TO ") {
			return OpCopyTo
		}
		return OpCopyFrom
	case "EXECUTE", "EXEC", "CALL":
		return OpExecute
	}
	return OpUnknown
}

// firstKeyword returns the first SQL word, skipping leading whitespace and
// comments.
func firstKeyword(sql string) string {
	i, n := 0, len(sql)
	for i < n {
		switch {
		case sql[i] == ' ' || sql[i] == '\t' || sql[i] == '\n' || sql[i] == '\r':
			i++
		case sql[i] == '-' && i+1 < n && sql[i+1] == '-':
			i = consumeLineComment(sql, i+2)
		case sql[i] == '/' && i+1 < n && sql[i+1] == '*':
			i = consumeBlockComment(sql, i+2)
		default:
			j := i
			for j < n && (isIdentChar(sql[j])) {
				j++
			}
			return strings.ToUpper(sql[i:j])
		}
	}
	return ""
}

// countStatements counts semicolon-separated statements outside string and
// comment literals, ignoring a trailing semicolon. More than one statement
// classifies the SQL as a script.
func countStatements(sql string) int {
	sql = strings.TrimRight(sql, " \t\n\r")
	sql = strings.TrimSuffix(sql, ";")
	if strings.TrimSpace(sql) == "" {
		return 0
	}

	count := 1
	i, n := 0, len(sql)
	for i < n {
		switch sql[i] {
		case '\'':
			i = consumeSingleQuoted(sql, i)
		case '"':
			i = consumeUntil(sql, i+1, '"')
		case '`':
			i = consumeUntil(sql, i+1, '`')
		case '-':
			if i+1 < n && sql[i+1] == '-' {
				i = consumeLineComment(sql, i+2)
			} else {
				i++
			}
		case '/':
			if i+1 < n && sql[i+1] == '*' {
				i = consumeBlockComment(sql, i+2)
			} else {
				i++
			}
		case '$':
			if i+1 < n && sql[i+1] == '$' {
				i = consumeDollarQuoted(sql, i, "$$")
			} else {
				i++
			}
		case ';':
			count++
			i++
		default:
			i++
		}
	}
	return count
}

// cacheKey digests the compilation identity: SQL text, a value-level
// parameter rendering, the execution style, dialect, and feature flags.
func (c *Compiler) cacheKey(sql string, params any) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s\x00%#v\x00%s\x00%s\x00%x\x00%t\x00%t",
		sql, params, c.cfg.DefaultExecutionStyle, c.dialect, c.cfg.Hash(),
		!c.parsingDisabled, c.transformsEnabled)
	return hex.EncodeToString(h.Sum(nil))
}

// statementHash is the precomputed identity carried on CompiledStatement.
func statementHash(sql string, params any) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s\x00%#v", sql, params)
	return hex.EncodeToString(h.Sum(nil))[:16]
}
