package store

import (
	"fmt"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// expression collects the clauses and placeholders of a DynamoDB expression.
type expression struct {
	clauses []string
	names   map[string]string
	values  map[string]types.AttributeValue
}

func newExpression() *expression {
	return &expression{
		names:  make(map[string]string),
		values: make(map[string]types.AttributeValue),
	}
}

// path registers a placeholder per segment of a dotted path and returns the
// document path, e.g. "#e0_0.#e0_1".
func (e *expression) path(tag, dotted string) string {
	segs := strings.Split(dotted, ".")
	refs := make([]string, len(segs))
	for i, seg := range segs {
		ref := fmt.Sprintf("#%s_%d", tag, i)
		e.names[ref] = seg
		refs[i] = ref
	}
	return joinStrings(refs, ".")
}

// value registers a value placeholder.
func (e *expression) value(ref string, v any) error {
	av, err := attributevalue.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", ref, err)
	}
	e.values[ref] = av
	return nil
}

// equalsExpression builds "path = :value" clauses for equality constraints.
func equalsExpression(equals map[string]any) (*expression, error) {
	e := newExpression()
	for i, path := range sortedKeys(equals) {
		tag := fmt.Sprintf("e%d", i)
		ref := ":" + tag
		if err := e.value(ref, equals[path]); err != nil {
			return nil, err
		}
		e.clauses = append(e.clauses, fmt.Sprintf("%s = %s", e.path(tag, path), ref))
	}
	return e, nil
}

// setExpression builds the SET clauses of an update from a planned patch.
func setExpression(plan map[string]any) (*expression, error) {
	e := newExpression()
	for i, path := range sortedKeys(plan) {
		tag := fmt.Sprintf("u%d", i)
		ref := ":" + tag
		if err := e.value(ref, plan[path]); err != nil {
			return nil, err
		}
		e.clauses = append(e.clauses, fmt.Sprintf("%s = %s", e.path(tag, path), ref))
	}
	return e, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// uidNames returns expression attribute names for the uid key.
func uidNames() map[string]string {
	return map[string]string{"#uid": FieldUID}
}

// mergeExprNames merges multiple expression attribute name maps.
func mergeExprNames(maps ...map[string]string) map[string]string {
	result := make(map[string]string)
	for _, m := range maps {
		for k, v := range m {
			result[k] = v
		}
	}
	return result
}

// mergeExprValues merges multiple expression attribute value maps.
func mergeExprValues(maps ...map[string]types.AttributeValue) map[string]types.AttributeValue {
	result := make(map[string]types.AttributeValue)
	for _, m := range maps {
		for k, v := range m {
			result[k] = v
		}
	}
	return result
}

// nonEmptyValues returns nil for an empty map; DynamoDB rejects empty
// placeholder maps.
func nonEmptyValues(m map[string]types.AttributeValue) map[string]types.AttributeValue {
	if len(m) == 0 {
		return nil
	}
	return m
}

// joinStrings joins strings with a separator.
func joinStrings(strs []string, sep string) string {
	if len(strs) == 0 {
		return ""
	}
	result := strs[0]
	for _, s := range strs[1:] {
		result += sep + s
	}
	return result
}
