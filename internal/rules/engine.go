package rules

import (
	"fmt"
	"strings"
	"time"
)

// Node is one node of a rule's condition tree: either a leaf Condition
// or a Predicate grouping children under and/or. Evaluation dispatches
// on the concrete type, so a new node kind cannot be added without
// teaching the evaluator about it.
type Node interface {
	isNode()
}

type BoolOp string

const (
	OpAnd BoolOp = "and"
	OpOr  BoolOp = "or"
)

// Condition tests one dimension of the evaluation context.
type Condition struct {
	Type     string
	Operator string
	Value    interface{}
	Field    string
}

func (Condition) isNode() {}

// Predicate combines child nodes under a boolean operator. An empty
// predicate never matches.
type Predicate struct {
	Operator BoolOp
	Children []Node
}

func (Predicate) isNode() {}

// Context is the runtime input for one evaluation. Time is carried in
// Timestamp rather than read from the clock so evaluation stays a pure
// function of its inputs.
type Context struct {
	Message            string
	Confidence         float64
	Keywords           []string
	UserEmail          string
	Timestamp          time.Time
	SiteID             string
	SessionDuration    int // seconds
	IsOffHours         *bool
	ConversationLength int
	Custom             map[string]string
}

// Step is one trace entry. Every node actually evaluated produces a
// step; branches skipped by short-circuiting are omitted, never
// fabricated.
type Step struct {
	Description string
	Matched     bool
}

type Result struct {
	Matched bool
	Trace   []Step
}

// Evaluate runs the condition tree against the context. It never
// returns an error: malformed or unknown conditions resolve to false
// with an explanatory trace entry, so one bad leaf in an
// operator-authored rule cannot take down the whole evaluation.
func Evaluate(node Node, ctx Context) Result {
	if ctx.ConversationLength <= 0 {
		ctx.ConversationLength = 1
	}

	var trace []Step
	matched := evalNode(node, ctx, &trace)
	return Result{Matched: matched, Trace: trace}
}

func evalNode(node Node, ctx Context, trace *[]Step) bool {
	switch n := node.(type) {
	case Condition:
		matched, desc := evalCondition(n, ctx)
		*trace = append(*trace, Step{Description: desc, Matched: matched})
		return matched

	case Predicate:
		return evalPredicate(n, ctx, trace)

	default:
		*trace = append(*trace, Step{Description: "unsupported rule node", Matched: false})
		return false
	}
}

func evalPredicate(p Predicate, ctx Context, trace *[]Step) bool {
	if len(p.Children) == 0 {
		*trace = append(*trace, Step{
			Description: fmt.Sprintf("empty %s group never matches", opName(p.Operator)),
			Matched:     false,
		})
		return false
	}

	switch p.Operator {
	case OpAnd:
		for _, child := range p.Children {
			if !evalNode(child, ctx, trace) {
				*trace = append(*trace, Step{
					Description: "and group: a condition did not match",
					Matched:     false,
				})
				return false
			}
		}
		*trace = append(*trace, Step{
			Description: fmt.Sprintf("and group: all %d conditions matched", len(p.Children)),
			Matched:     true,
		})
		return true

	case OpOr:
		for _, child := range p.Children {
			if evalNode(child, ctx, trace) {
				*trace = append(*trace, Step{
					Description: "or group: a condition matched",
					Matched:     true,
				})
				return true
			}
		}
		*trace = append(*trace, Step{
			Description: fmt.Sprintf("or group: none of %d conditions matched", len(p.Children)),
			Matched:     false,
		})
		return false

	default:
		*trace = append(*trace, Step{
			Description: fmt.Sprintf("unsupported group operator %q", string(p.Operator)),
			Matched:     false,
		})
		return false
	}
}

func opName(op BoolOp) string {
	if op == "" {
		return "condition"
	}
	return string(op)
}

func evalCondition(c Condition, ctx Context) (bool, string) {
	switch c.Type {
	case "confidence":
		return evalConfidence(c, ctx)
	case "keyword":
		return evalKeyword(c, ctx)
	case "email_domain":
		return evalEmailDomain(c, ctx)
	case "time":
		return evalTime(c, ctx)
	case "session_duration":
		return evalNumeric(c, "session duration", float64(ctx.SessionDuration), false)
	case "conversation_length":
		return evalNumeric(c, "conversation length", float64(ctx.ConversationLength), true)
	case "site":
		return evalSite(c, ctx)
	case "custom":
		return evalCustom(c, ctx)
	default:
		return false, fmt.Sprintf("unsupported condition type %q", c.Type)
	}
}

func evalConfidence(c Condition, ctx Context) (bool, string) {
	want, ok := asFloat(c.Value)
	if !ok {
		return false, fmt.Sprintf("confidence: non-numeric value %v", c.Value)
	}

	got := ctx.Confidence
	switch c.Operator {
	case "lt":
		return got < want, fmt.Sprintf("confidence (%.2f) < %.2f", got, want)
	case "lte":
		return got <= want, fmt.Sprintf("confidence (%.2f) <= %.2f", got, want)
	case "gt":
		return got > want, fmt.Sprintf("confidence (%.2f) > %.2f", got, want)
	case "gte":
		return got >= want, fmt.Sprintf("confidence (%.2f) >= %.2f", got, want)
	case "eq":
		return got == want, fmt.Sprintf("confidence (%.2f) == %.2f", got, want)
	default:
		return false, fmt.Sprintf("unsupported operator %q for confidence", c.Operator)
	}
}

func evalKeyword(c Condition, ctx Context) (bool, string) {
	message := strings.ToLower(ctx.Message)

	present := func(word string) bool {
		word = strings.ToLower(strings.TrimSpace(word))
		if word == "" {
			return false
		}
		if strings.Contains(message, word) {
			return true
		}
		for _, k := range ctx.Keywords {
			if strings.ToLower(k) == word {
				return true
			}
		}
		return false
	}

	switch c.Operator {
	case "contains":
		word, ok := asString(c.Value)
		if !ok {
			return false, fmt.Sprintf("keyword: non-string value %v", c.Value)
		}
		return present(word), fmt.Sprintf("message contains %q", word)

	case "not_contains":
		word, ok := asString(c.Value)
		if !ok {
			return false, fmt.Sprintf("keyword: non-string value %v", c.Value)
		}
		return !present(word), fmt.Sprintf("message does not contain %q", word)

	case "in":
		words, ok := asStringSlice(c.Value)
		if !ok {
			return false, fmt.Sprintf("keyword: value %v is not a list", c.Value)
		}
		for _, w := range words {
			if present(w) {
				return true, fmt.Sprintf("message contains one of %v (%q)", words, w)
			}
		}
		return false, fmt.Sprintf("message contains none of %v", words)

	default:
		return false, fmt.Sprintf("unsupported operator %q for keyword", c.Operator)
	}
}

func evalEmailDomain(c Condition, ctx Context) (bool, string) {
	at := strings.LastIndex(ctx.UserEmail, "@")
	if at < 0 || at == len(ctx.UserEmail)-1 {
		return false, "email domain: no user email in context"
	}
	domain := strings.ToLower(ctx.UserEmail[at+1:])

	switch c.Operator {
	case "eq":
		want, ok := asString(c.Value)
		if !ok {
			return false, fmt.Sprintf("email domain: non-string value %v", c.Value)
		}
		want = strings.ToLower(want)
		return domain == want, fmt.Sprintf("email domain (%s) == %s", domain, want)

	case "contains":
		want, ok := asString(c.Value)
		if !ok {
			return false, fmt.Sprintf("email domain: non-string value %v", c.Value)
		}
		want = strings.ToLower(want)
		return strings.Contains(domain, want), fmt.Sprintf("email domain (%s) contains %s", domain, want)

	case "in":
		domains, ok := asStringSlice(c.Value)
		if !ok {
			return false, fmt.Sprintf("email domain: value %v is not a list", c.Value)
		}
		for _, d := range domains {
			if domain == strings.ToLower(d) {
				return true, fmt.Sprintf("email domain (%s) in %v", domain, domains)
			}
		}
		return false, fmt.Sprintf("email domain (%s) not in %v", domain, domains)

	default:
		return false, fmt.Sprintf("unsupported operator %q for email_domain", c.Operator)
	}
}

// Business hours default to 9-17 in the timestamp's location when the
// context does not carry an explicit off-hours flag.
func evalTime(c Condition, ctx Context) (bool, string) {
	hour := ctx.Timestamp.Hour()

	businessHours := hour >= 9 && hour < 17
	if ctx.IsOffHours != nil {
		businessHours = !*ctx.IsOffHours
	}

	switch c.Operator {
	case "eq":
		want, ok := asString(c.Value)
		if !ok {
			return false, fmt.Sprintf("time: non-string value %v", c.Value)
		}
		switch want {
		case "business_hours":
			return businessHours, fmt.Sprintf("time (hour %d) is business hours", hour)
		case "off_hours":
			return !businessHours, fmt.Sprintf("time (hour %d) is off hours", hour)
		default:
			return false, fmt.Sprintf("unsupported time value %q", want)
		}

	case "between":
		lo, hi, ok := asHourRange(c.Value)
		if !ok {
			return false, fmt.Sprintf("time: value %v is not an [low, high) hour pair", c.Value)
		}
		return hour >= lo && hour < hi, fmt.Sprintf("hour (%d) in [%d, %d)", hour, lo, hi)

	case "lt":
		want, ok := asFloat(c.Value)
		if !ok {
			return false, fmt.Sprintf("time: non-numeric value %v", c.Value)
		}
		return float64(hour) < want, fmt.Sprintf("hour (%d) < %.0f", hour, want)

	case "gt":
		want, ok := asFloat(c.Value)
		if !ok {
			return false, fmt.Sprintf("time: non-numeric value %v", c.Value)
		}
		return float64(hour) > want, fmt.Sprintf("hour (%d) > %.0f", hour, want)

	default:
		return false, fmt.Sprintf("unsupported operator %q for time", c.Operator)
	}
}

func evalNumeric(c Condition, name string, got float64, allowEq bool) (bool, string) {
	want, ok := asFloat(c.Value)
	if !ok {
		return false, fmt.Sprintf("%s: non-numeric value %v", name, c.Value)
	}

	switch c.Operator {
	case "lt":
		return got < want, fmt.Sprintf("%s (%.0f) < %.0f", name, got, want)
	case "lte":
		return got <= want, fmt.Sprintf("%s (%.0f) <= %.0f", name, got, want)
	case "gt":
		return got > want, fmt.Sprintf("%s (%.0f) > %.0f", name, got, want)
	case "gte":
		return got >= want, fmt.Sprintf("%s (%.0f) >= %.0f", name, got, want)
	case "eq":
		if allowEq {
			return got == want, fmt.Sprintf("%s (%.0f) == %.0f", name, got, want)
		}
	}
	return false, fmt.Sprintf("unsupported operator %q for %s", c.Operator, name)
}

func evalSite(c Condition, ctx Context) (bool, string) {
	switch c.Operator {
	case "eq":
		want, ok := asString(c.Value)
		if !ok {
			return false, fmt.Sprintf("site: non-string value %v", c.Value)
		}
		return ctx.SiteID == want, fmt.Sprintf("site (%s) == %s", ctx.SiteID, want)

	case "in":
		sites, ok := asStringSlice(c.Value)
		if !ok {
			return false, fmt.Sprintf("site: value %v is not a list", c.Value)
		}
		for _, s := range sites {
			if ctx.SiteID == s {
				return true, fmt.Sprintf("site (%s) in %v", ctx.SiteID, sites)
			}
		}
		return false, fmt.Sprintf("site (%s) not in %v", ctx.SiteID, sites)

	default:
		return false, fmt.Sprintf("unsupported operator %q for site", c.Operator)
	}
}

func evalCustom(c Condition, ctx Context) (bool, string) {
	if c.Field == "" {
		return false, "custom: missing field name"
	}
	got, exists := ctx.Custom[c.Field]
	if !exists {
		return false, fmt.Sprintf("custom field %q not present", c.Field)
	}

	switch c.Operator {
	case "eq":
		want, ok := asString(c.Value)
		if !ok {
			return false, fmt.Sprintf("custom: non-string value %v", c.Value)
		}
		return got == want, fmt.Sprintf("custom %q (%s) == %s", c.Field, got, want)

	case "contains":
		want, ok := asString(c.Value)
		if !ok {
			return false, fmt.Sprintf("custom: non-string value %v", c.Value)
		}
		return strings.Contains(strings.ToLower(got), strings.ToLower(want)),
			fmt.Sprintf("custom %q (%s) contains %s", c.Field, got, want)

	case "in":
		values, ok := asStringSlice(c.Value)
		if !ok {
			return false, fmt.Sprintf("custom: value %v is not a list", c.Value)
		}
		for _, v := range values {
			if got == v {
				return true, fmt.Sprintf("custom %q (%s) in %v", c.Field, got, values)
			}
		}
		return false, fmt.Sprintf("custom %q (%s) not in %v", c.Field, got, values)

	default:
		return false, fmt.Sprintf("unsupported operator %q for custom", c.Operator)
	}
}
