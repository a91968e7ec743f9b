package schema

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/google/cel-go/cel"

	"github.com/teranos/factgate/errors"
	"github.com/teranos/factgate/mention"
)

// Wildcard in a domain or range list matches any label.
const Wildcard = "*"

var trlPredicates = map[string]bool{
	"STARTS_AT_TRL": true,
	"ENDS_AT_TRL":   true,
	"AT_TRL":        true,
}

// MissingMergeKeys lists the merge-key fields that are absent, null or empty
// on e. Unknown types have no declared keys and yield nil.
func (s *Schema) MissingMergeKeys(e *mention.Linked) []string {
	rule, ok := s.Entity(e.Type)
	if !ok {
		return nil
	}
	var missing []string
	for _, f := range rule.Key {
		if v, ok := e.Key[f]; !ok || v == nil || v == "" {
			missing = append(missing, f)
		}
	}
	return missing
}

// KeysPresent reports whether every required field is in key or props and
// every merge-key field is in key. Unknown types fail.
func (s *Schema) KeysPresent(e *mention.Linked) bool {
	rule, ok := s.Entity(e.Type)
	if !ok {
		return false
	}
	for _, f := range rule.Required {
		_, inKey := e.Key[f]
		_, inProps := e.Props[f]
		if !inKey && !inProps {
			return false
		}
	}
	for _, f := range rule.Key {
		if _, ok := e.Key[f]; !ok {
			return false
		}
	}
	return true
}

// ConstraintsOK evaluates the value range and expression constraints of
// e's type. Unknown types fail.
func (s *Schema) ConstraintsOK(e *mention.Linked) bool {
	rule, ok := s.Entity(e.Type)
	if !ok {
		return false
	}
	if rule.ValueRange != nil {
		v, ok := toFloat(e.Key["value"])
		if !ok || v < rule.ValueRange[0] || v > rule.ValueRange[1] {
			return false
		}
	}
	if rule.prg != nil {
		return evalBool(rule.prg, map[string]any{
			"key":    plain(e.Key),
			"props":  plain(e.Props),
			"labels": nonNil(e.Labels),
			"etype":  e.Type,
		})
	}
	return true
}

// Allows reports whether the subject and object labels satisfy the domain
// and range. An empty list or one containing "*" matches anything;
// otherwise any overlap is enough.
func (r *RelationRule) Allows(subjLabels, objLabels []string) bool {
	return labelsSatisfy(subjLabels, r.Domain) && labelsSatisfy(objLabels, r.Range)
}

func labelsSatisfy(labels, allowed []string) bool {
	if len(allowed) == 0 {
		return true
	}
	set := make(map[string]bool, len(allowed))
	for _, a := range allowed {
		if a == Wildcard {
			return true
		}
		set[a] = true
	}
	for _, l := range labels {
		if set[l] {
			return true
		}
	}
	return false
}

// IsTRL reports whether e is a technology readiness level entity.
func IsTRL(e *mention.Linked) bool {
	if strings.HasSuffix(e.Type, "TRL") {
		return true
	}
	for _, l := range e.Labels {
		if l == "TRL" {
			return true
		}
	}
	return false
}

// PredicateConstraintsOK runs the predicate-specific checks for a relation
// group between subj and obj. props are the group's sample properties.
func (s *Schema) PredicateConstraintsOK(rule *RelationRule, subj, obj *mention.Linked, props map[string]any) bool {
	checkObj := trlPredicates[rule.Predicate] && IsTRL(obj)
	if rule.CheckObjectConstraints != nil {
		checkObj = *rule.CheckObjectConstraints
	}
	if checkObj && !s.ConstraintsOK(obj) {
		return false
	}
	if rule.CheckSubjectConstraints && !s.ConstraintsOK(subj) {
		return false
	}
	if rule.prg != nil {
		return evalBool(rule.prg, map[string]any{
			"subj":      entityVars(subj),
			"obj":       entityVars(obj),
			"props":     plain(props),
			"predicate": rule.Predicate,
		})
	}
	return true
}

func entityVars(e *mention.Linked) map[string]any {
	return map[string]any{
		"canonical_id": e.CanonicalID,
		"type":         e.Type,
		"labels":       toAnyList(e.Labels),
		"key":          plain(e.Key),
		"props":        plain(e.Props),
	}
}

func compileEntityExpr(expr string) (cel.Program, error) {
	env, err := cel.NewEnv(
		cel.Variable("key", cel.MapType(cel.StringType, cel.DynType)),
		cel.Variable("props", cel.MapType(cel.StringType, cel.DynType)),
		cel.Variable("labels", cel.ListType(cel.StringType)),
		cel.Variable("etype", cel.StringType),
		cel.CrossTypeNumericComparisons(true),
	)
	if err != nil {
		return nil, errors.Wrap(err, "entity constraint environment")
	}
	return compile(env, expr)
}

func compileRelationExpr(expr string) (cel.Program, error) {
	env, err := cel.NewEnv(
		cel.Variable("subj", cel.MapType(cel.StringType, cel.DynType)),
		cel.Variable("obj", cel.MapType(cel.StringType, cel.DynType)),
		cel.Variable("props", cel.MapType(cel.StringType, cel.DynType)),
		cel.Variable("predicate", cel.StringType),
		cel.CrossTypeNumericComparisons(true),
	)
	if err != nil {
		return nil, errors.Wrap(err, "relation constraint environment")
	}
	return compile(env, expr)
}

func compile(env *cel.Env, expr string) (cel.Program, error) {
	ast, iss := env.Compile(expr)
	if iss != nil && iss.Err() != nil {
		return nil, iss.Err()
	}
	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, errors.Newf("constraint %q must evaluate to bool, got %s", expr, ast.OutputType())
	}
	return env.Program(ast)
}

// evalBool treats evaluation errors (a missing key, a type mismatch) as a
// failed constraint.
func evalBool(prg cel.Program, vars map[string]any) bool {
	out, _, err := prg.Eval(vars)
	if err != nil {
		return false
	}
	b, ok := out.Value().(bool)
	return ok && b
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case json.Number:
		f, err := x.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// plain converts decoded JSON into values the CEL adapter understands.
func plain(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = plainValue(v)
	}
	return out
}

func plainValue(v any) any {
	switch x := v.(type) {
	case json.Number:
		if f, err := x.Float64(); err == nil {
			return f
		}
		return x.String()
	case int:
		return float64(x)
	case map[string]any:
		return plain(x)
	case []any:
		out := make([]any, len(x))
		for i := range x {
			out[i] = plainValue(x[i])
		}
		return out
	default:
		return v
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func toAnyList(s []string) []any {
	out := make([]any, len(s))
	for i, v := range s {
		out[i] = v
	}
	return out
}
