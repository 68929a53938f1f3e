// Package runtime hosts the TypeScript grammar table and the Risor scripting
// layer used for user-supplied symbol filters.
package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/risor-io/risor"
	"github.com/risor-io/risor/object"

	"github.com/jward/tscache/internal/store"
)

// Filter is a Risor expression evaluated once per symbol. The symbol is
// exposed as the global "symbol" (a map with name, fqn, kind, scope,
// filepath, start_line, end_line, flags, deps, generics) and the result's
// truthiness decides the match.
type Filter struct {
	source string
	logger *slog.Logger
}

// FilterOption configures a Filter.
type FilterOption func(*Filter)

// WithFilterLogger routes the script's log.info/warn/error calls to logger.
func WithFilterLogger(logger *slog.Logger) FilterOption {
	return func(f *Filter) {
		f.logger = logger
	}
}

// NewFilter validates source by evaluating it against an empty symbol.
func NewFilter(ctx context.Context, source string, opts ...FilterOption) (*Filter, error) {
	source = strings.TrimSpace(source)
	if source == "" {
		return nil, fmt.Errorf("runtime: empty filter")
	}
	f := &Filter{source: source, logger: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt(f)
	}
	if _, err := f.Match(ctx, &store.SymbolRecord{}); err != nil {
		return nil, err
	}
	return f, nil
}

// Source returns the filter expression.
func (f *Filter) Source() string {
	return f.source
}

// Match evaluates the filter for one record.
func (f *Filter) Match(ctx context.Context, rec *store.SymbolRecord) (bool, error) {
	result, err := risor.Eval(ctx, f.source,
		risor.WithGlobal("symbol", symbolToMap(rec)),
		risor.WithGlobal("has", hasFn),
		risor.WithGlobal("log", mustProxy(&logObject{logger: f.logger})),
	)
	if err != nil {
		return false, fmt.Errorf("runtime: filter %q: %w", f.source, err)
	}
	if result == nil {
		return false, nil
	}
	return result.IsTruthy(), nil
}

// Select returns the records the filter matches, in input order.
func (f *Filter) Select(ctx context.Context, recs []*store.SymbolRecord) ([]*store.SymbolRecord, error) {
	var out []*store.SymbolRecord
	for _, rec := range recs {
		ok, err := f.Match(ctx, rec)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, rec)
		}
	}
	return out, nil
}

func symbolToMap(rec *store.SymbolRecord) *object.Map {
	generics := make([]object.Object, len(rec.Generics))
	for i, g := range rec.Generics {
		generics[i] = object.NewString(g.Name)
	}
	return object.NewMap(map[string]object.Object{
		"name":       object.NewString(rec.Name),
		"fqn":        object.NewString(rec.FQN),
		"kind":       object.NewString(string(rec.Kind)),
		"scope":      object.NewString(string(rec.Scope)),
		"filepath":   object.NewString(rec.Filepath),
		"start_line": object.NewInt(int64(rec.StartLine)),
		"end_line":   object.NewInt(int64(rec.EndLine)),
		"flags":      stringList(rec.Flags),
		"deps":       stringList(rec.Deps),
		"generics":   object.NewList(generics),
	})
}

func stringList(vals []string) *object.List {
	items := make([]object.Object, len(vals))
	for i, v := range vals {
		items[i] = object.NewString(v)
	}
	return object.NewList(items)
}

// hasFn is the "has" builtin.
//
// has(list, value) → bool
var hasFn = object.NewBuiltin("has", func(ctx context.Context, args ...object.Object) object.Object {
	if len(args) != 2 {
		return object.NewArgsError("has", 2, len(args))
	}
	list, ok := args[0].(*object.List)
	if !ok {
		return object.Errorf("has: expected list, got %s", args[0].Type())
	}
	want, ok := args[1].(*object.String)
	if !ok {
		return object.Errorf("has: value must be a string, got %s", args[1].Type())
	}
	for _, item := range list.Value() {
		if s, ok := item.(*object.String); ok && s.Value() == want.Value() {
			return object.True
		}
	}
	return object.False
})

// logObject provides log.info/warn/error methods for filter scripts.
type logObject struct {
	logger *slog.Logger
}

func (l *logObject) Info(msg string) {
	l.logger.Info(msg, "source", "filter")
}

func (l *logObject) Warn(msg string) {
	l.logger.Warn(msg, "source", "filter")
}

func (l *logObject) Error(msg string) {
	l.logger.Error(msg, "source", "filter")
}

func mustProxy(v any) object.Object {
	p, err := object.NewProxy(v)
	if err != nil {
		panic(fmt.Sprintf("runtime: proxy error: %v", err))
	}
	return p
}
