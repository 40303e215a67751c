/*
query.go - Uniform list retrieval over any collection

PURPOSE:
  One generic search/filter/sort/paginate pass consumed by every
  "list X" operation. Pure: no mutation, same output for the same
  inputs and store contents.

CONTRACT:
  - Text search: case-insensitive substring match against a caller-given
    field list; empty q matches everything.
  - Filters: tagged-variant expressions (Eq, Ne, Gte, Lte, In). Empty or
    nil filter values are ignored, never "match nothing".
  - Sort: stable; strings in collation order, numbers/dates numerically;
    desc reverses the asc comparison.
  - Pagination: slice [(page-1)*pageSize, page*pageSize) of the
    filtered+sorted result; Total is the pre-pagination count.

  Fields are addressed by their JSON tag (the external field-name
  contract), resolved by reflection and cached per type.
*/
package ledger

import (
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// =============================================================================
// PARAMETERS
// =============================================================================

type SortDir string

const (
	SortAsc  SortDir = "asc"
	SortDesc SortDir = "desc"
)

type FilterOp string

const (
	OpEq  FilterOp = "eq"
	OpNe  FilterOp = "ne"
	OpGte FilterOp = "gte"
	OpLte FilterOp = "lte"
	OpIn  FilterOp = "in"
)

// Filter is one predicate against a field. A nil/empty Value makes the
// filter a no-op.
type Filter struct {
	Field string
	Op    FilterOp
	Value any
}

// ListParams tunes one list retrieval.
type ListParams struct {
	Page     int
	PageSize int
	SortBy   string
	SortDir  SortDir
	Q        string
	Filters  []Filter
}

func (p ListParams) withDefaults() ListParams {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PageSize < 1 {
		p.PageSize = 10
	}
	if p.SortBy == "" {
		p.SortBy = "createdAt"
	}
	if p.SortDir != SortAsc {
		p.SortDir = SortDesc
	}
	return p
}

// Paginated is the uniform list result.
type Paginated[T any] struct {
	Rows     []T `json:"rows"`
	Total    int `json:"total"`
	Page     int `json:"page"`
	PageSize int `json:"pageSize"`
}

// =============================================================================
// LIST
// =============================================================================

// List filters, sorts and paginates items. searchFields are the JSON tags
// eligible for the q substring match.
func List[T any](items []T, params ListParams, searchFields ...string) Paginated[T] {
	p := params.withDefaults()

	filtered := make([]T, 0, len(items))
	for _, item := range items {
		if matchesQuery(item, p.Q, searchFields) && matchesFilters(item, p.Filters) {
			filtered = append(filtered, item)
		}
	}

	sort.SliceStable(filtered, func(i, j int) bool {
		a, aok := fieldByTag(filtered[i], p.SortBy)
		b, bok := fieldByTag(filtered[j], p.SortBy)
		if !aok || !bok {
			return false
		}
		cmp, ok := compareValues(a, b)
		if !ok {
			return false
		}
		if p.SortDir == SortDesc {
			return cmp > 0
		}
		return cmp < 0
	})

	total := len(filtered)
	start := (p.Page - 1) * p.PageSize
	if start > total {
		start = total
	}
	end := start + p.PageSize
	if end > total {
		end = total
	}

	rows := make([]T, end-start)
	copy(rows, filtered[start:end])

	return Paginated[T]{Rows: rows, Total: total, Page: p.Page, PageSize: p.PageSize}
}

func matchesQuery[T any](item T, q string, searchFields []string) bool {
	if q == "" || len(searchFields) == 0 {
		return true
	}
	needle := strings.ToLower(q)
	for _, field := range searchFields {
		v, ok := fieldByTag(item, field)
		if !ok {
			continue
		}
		if strings.Contains(strings.ToLower(fmt.Sprint(v)), needle) {
			return true
		}
	}
	return false
}

func matchesFilters[T any](item T, filters []Filter) bool {
	for _, f := range filters {
		if !matchesFilter(item, f) {
			return false
		}
	}
	return true
}

func matchesFilter[T any](item T, f Filter) bool {
	if isEmptyFilterValue(f.Value) {
		return true
	}
	fieldVal, ok := fieldByTag(item, f.Field)
	if !ok {
		// Unknown field: treat the filter as a no-op rather than
		// silently emptying the result.
		return true
	}

	if f.Op == OpIn {
		rv := reflect.ValueOf(f.Value)
		if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
			cmp, ok := compareValues(fieldVal, f.Value)
			return ok && cmp == 0
		}
		for i := 0; i < rv.Len(); i++ {
			if cmp, ok := compareValues(fieldVal, rv.Index(i).Interface()); ok && cmp == 0 {
				return true
			}
		}
		return false
	}

	cmp, ok := compareValues(fieldVal, f.Value)
	if !ok {
		return false
	}
	switch f.Op {
	case OpNe:
		return cmp != 0
	case OpGte:
		return cmp >= 0
	case OpLte:
		return cmp <= 0
	default: // OpEq
		return cmp == 0
	}
}

func isEmptyFilterValue(v any) bool {
	if v == nil {
		return true
	}
	switch x := v.(type) {
	case string:
		return x == ""
	}
	rv := reflect.ValueOf(v)
	if (rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array) && rv.Len() == 0 {
		return true
	}
	return false
}

// =============================================================================
// FIELD RESOLUTION - JSON tag -> struct field, cached per type
// =============================================================================

var fieldIndexCache sync.Map // reflect.Type -> map[string]int

func fieldByTag(item any, tag string) (any, bool) {
	rv := reflect.ValueOf(item)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil, false
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return nil, false
	}

	idx, ok := fieldIndex(rv.Type())[tag]
	if !ok {
		return nil, false
	}
	return rv.Field(idx).Interface(), true
}

func fieldIndex(t reflect.Type) map[string]int {
	if cached, ok := fieldIndexCache.Load(t); ok {
		return cached.(map[string]int)
	}
	index := make(map[string]int, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "" {
			name = f.Name
		}
		if name == "-" {
			continue
		}
		index[name] = i
	}
	fieldIndexCache.Store(t, index)
	return index
}

// =============================================================================
// VALUE COMPARISON
// =============================================================================

// compareValues orders two field/filter values. String filter values are
// coerced toward the field's type, since HTTP query parameters always
// arrive as strings.
func compareValues(a, b any) (int, bool) {
	an := normalizeValue(a)
	bn := normalizeValue(b)

	switch x := an.(type) {
	case decimal.Decimal:
		switch y := bn.(type) {
		case decimal.Decimal:
			return x.Cmp(y), true
		case float64:
			return x.Cmp(decimal.NewFromFloat(y)), true
		case string:
			if d, err := decimal.NewFromString(y); err == nil {
				return x.Cmp(d), true
			}
		}
	case time.Time:
		switch y := bn.(type) {
		case time.Time:
			return x.Compare(y), true
		case string:
			if t, err := time.Parse(time.RFC3339, y); err == nil {
				return x.Compare(t), true
			}
			if t, err := time.Parse("2006-01-02", y); err == nil {
				return x.Compare(t), true
			}
		}
	case float64:
		switch y := bn.(type) {
		case float64:
			return compareFloats(x, y), true
		case decimal.Decimal:
			return decimal.NewFromFloat(x).Cmp(y), true
		case string:
			if f, err := strconv.ParseFloat(y, 64); err == nil {
				return compareFloats(x, f), true
			}
		}
	case bool:
		switch y := bn.(type) {
		case bool:
			return compareBools(x, y), true
		case string:
			if p, err := strconv.ParseBool(y); err == nil {
				return compareBools(x, p), true
			}
		}
	case string:
		switch y := bn.(type) {
		case string:
			return compareStrings(x, y), true
		case float64:
			if f, err := strconv.ParseFloat(x, 64); err == nil {
				return compareFloats(f, y), true
			}
		case decimal.Decimal:
			if d, err := decimal.NewFromString(x); err == nil {
				return d.Cmp(y), true
			}
		}
	}
	return 0, false
}

// Collation ordering keeps accented names next to their base letter
// instead of after "z". The collator carries iterator state across
// calls, hence the lock.
var (
	collatorMu sync.Mutex
	collator   = collate.New(language.Und)
)

func compareStrings(a, b string) int {
	collatorMu.Lock()
	defer collatorMu.Unlock()
	return collator.CompareString(a, b)
}

func compareFloats(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func compareBools(a, b bool) int {
	switch {
	case a == b:
		return 0
	case !a:
		return -1
	default:
		return 1
	}
}

// normalizeValue reduces the many concrete field types to the handful of
// comparable shapes above. Nil time pointers normalize to the zero time
// so unreturned rentals sort together.
func normalizeValue(v any) any {
	switch x := v.(type) {
	case nil:
		return nil
	case decimal.Decimal:
		return x
	case *decimal.Decimal:
		if x == nil {
			return decimal.Zero
		}
		return *x
	case time.Time:
		return x
	case *time.Time:
		if x == nil {
			return time.Time{}
		}
		return *x
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.String:
		return rv.String()
	case reflect.Bool:
		return rv.Bool()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint())
	case reflect.Float32, reflect.Float64:
		return rv.Float()
	}
	return v
}
