package rules

import (
	"strconv"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/wize-works/helpNINJA-sub004/models"
)

// Decode converts a stored rule node into the evaluator's node type.
// The wire form is a single flat shape for both leaves and groups; the
// discriminator is applied exactly once here (a node with a type is a
// leaf, anything else is a group) so evaluation itself never inspects
// field presence.
func Decode(doc models.RuleNodeDoc) Node {
	if doc.Type != "" {
		return Condition{
			Type:     doc.Type,
			Operator: doc.Operator,
			Value:    doc.Value,
			Field:    doc.Field,
		}
	}

	children := make([]Node, 0, len(doc.Conditions))
	for _, child := range doc.Conditions {
		children = append(children, Decode(child))
	}
	return Predicate{
		Operator: BoolOp(doc.Operator),
		Children: children,
	}
}

// Value coercion helpers. Rule values arrive from two decoders with
// different ideas about numbers and arrays: encoding/json produces
// float64 and []interface{}, the bson decoder produces int32/int64 and
// primitive.A. Both are accepted here so a rule behaves identically
// whether it came in over the API or out of the database.

func asFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func asString(v interface{}) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

func asStringSlice(v interface{}) ([]string, bool) {
	var raw []interface{}
	switch list := v.(type) {
	case []string:
		return list, true
	case []interface{}:
		raw = list
	case primitive.A:
		raw = list
	default:
		return nil, false
	}

	out := make([]string, 0, len(raw))
	for _, item := range raw {
		s, ok := item.(string)
		if !ok {
			return nil, false
		}
		out = append(out, s)
	}
	return out, true
}

// asHourRange accepts a two-element [low, high) pair of hours.
func asHourRange(v interface{}) (int, int, bool) {
	var raw []interface{}
	switch list := v.(type) {
	case []interface{}:
		raw = list
	case primitive.A:
		raw = list
	case []int:
		if len(list) != 2 {
			return 0, 0, false
		}
		return list[0], list[1], true
	default:
		return 0, 0, false
	}

	if len(raw) != 2 {
		return 0, 0, false
	}
	lo, okLo := asFloat(raw[0])
	hi, okHi := asFloat(raw[1])
	if !okLo || !okHi {
		return 0, 0, false
	}
	return int(lo), int(hi), true
}
