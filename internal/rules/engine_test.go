package rules

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/wize-works/helpNINJA-sub004/models"
)

func TestEmptyPredicateFailsClosed(t *testing.T) {
	result := Evaluate(Predicate{Operator: OpAnd}, Context{})
	if result.Matched {
		t.Fatalf("empty and group must not match")
	}

	result = Evaluate(Predicate{Operator: OpOr}, Context{})
	if result.Matched {
		t.Fatalf("empty or group must not match")
	}
	if len(result.Trace) == 0 {
		t.Fatalf("expected a trace entry for the empty group")
	}
}

func TestConfidenceComparison(t *testing.T) {
	node := Condition{Type: "confidence", Operator: "lt", Value: 0.55}
	result := Evaluate(node, Context{Confidence: 0.42})

	if !result.Matched {
		t.Fatalf("expected 0.42 < 0.55 to match")
	}
	if len(result.Trace) != 1 {
		t.Fatalf("expected one trace entry, got %d", len(result.Trace))
	}
	desc := result.Trace[0].Description
	if !strings.Contains(desc, "0.42") || !strings.Contains(desc, "0.55") {
		t.Fatalf("trace should carry both operands, got %q", desc)
	}
}

func TestConfidenceOperators(t *testing.T) {
	ctx := Context{Confidence: 0.5}

	cases := []struct {
		op    string
		value float64
		want  bool
	}{
		{"lt", 0.6, true},
		{"lt", 0.5, false},
		{"lte", 0.5, true},
		{"gt", 0.4, true},
		{"gt", 0.5, false},
		{"gte", 0.5, true},
		{"eq", 0.5, true},
		{"eq", 0.51, false},
	}

	for _, tc := range cases {
		result := Evaluate(Condition{Type: "confidence", Operator: tc.op, Value: tc.value}, ctx)
		assert.Equal(t, tc.want, result.Matched, "confidence %s %v", tc.op, tc.value)
	}
}

func TestNestedOrWithInnerAnd(t *testing.T) {
	node := Predicate{
		Operator: OpOr,
		Children: []Node{
			Condition{Type: "confidence", Operator: "lt", Value: 0.3},
			Predicate{
				Operator: OpAnd,
				Children: []Node{
					Condition{Type: "keyword", Operator: "contains", Value: "refund"},
					Condition{Type: "email_domain", Operator: "eq", Value: "bigcorp.com"},
				},
			},
		},
	}

	ctx := Context{
		Confidence: 0.9,
		Message:    "I want a refund",
		UserEmail:  "a@bigcorp.com",
	}

	result := Evaluate(node, ctx)
	if !result.Matched {
		t.Fatalf("expected the inner and group to satisfy the or, trace: %+v", result.Trace)
	}
}

func TestShortCircuitOmitsUnreachedBranches(t *testing.T) {
	node := Predicate{
		Operator: OpOr,
		Children: []Node{
			Condition{Type: "keyword", Operator: "contains", Value: "refund"},
			Condition{Type: "keyword", Operator: "contains", Value: "cancel"},
		},
	}

	result := Evaluate(node, Context{Message: "please refund me"})
	if !result.Matched {
		t.Fatalf("expected first branch to match")
	}
	for _, step := range result.Trace {
		if strings.Contains(step.Description, "cancel") {
			t.Fatalf("short-circuited branch must not appear in trace: %+v", result.Trace)
		}
	}
}

func TestKeywordOperators(t *testing.T) {
	ctx := Context{
		Message:  "My Invoice is WRONG",
		Keywords: []string{"billing"},
	}

	cases := []struct {
		name  string
		op    string
		value interface{}
		want  bool
	}{
		{"substring of message", "contains", "invoice", true},
		{"extracted keyword", "contains", "billing", true},
		{"absent word", "contains", "refund", false},
		{"not_contains absent", "not_contains", "refund", true},
		{"not_contains present", "not_contains", "invoice", false},
		{"in with one hit", "in", []interface{}{"refund", "wrong"}, true},
		{"in with no hits", "in", []interface{}{"refund", "cancel"}, false},
		{"in with bad value", "in", 7, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			result := Evaluate(Condition{Type: "keyword", Operator: tc.op, Value: tc.value}, ctx)
			assert.Equal(t, tc.want, result.Matched)
		})
	}
}

func TestEmailDomain(t *testing.T) {
	ctx := Context{UserEmail: "jordan@Sales.BigCorp.com"}

	cases := []struct {
		op    string
		value interface{}
		want  bool
	}{
		{"eq", "sales.bigcorp.com", true},
		{"eq", "bigcorp.com", false},
		{"contains", "bigcorp", true},
		{"in", []interface{}{"other.com", "sales.bigcorp.com"}, true},
		{"in", []interface{}{"other.com"}, false},
	}

	for _, tc := range cases {
		result := Evaluate(Condition{Type: "email_domain", Operator: tc.op, Value: tc.value}, ctx)
		assert.Equal(t, tc.want, result.Matched, "email_domain %s %v", tc.op, tc.value)
	}

	// No email in context: every operator resolves false.
	result := Evaluate(Condition{Type: "email_domain", Operator: "eq", Value: "bigcorp.com"}, Context{})
	if result.Matched {
		t.Fatalf("missing email must not match")
	}
}

func TestTimeConditions(t *testing.T) {
	at := func(hour int) Context {
		return Context{Timestamp: time.Date(2026, 3, 10, hour, 30, 0, 0, time.UTC)}
	}

	cases := []struct {
		name  string
		op    string
		value interface{}
		hour  int
		want  bool
	}{
		{"business hours mid-day", "eq", "business_hours", 11, true},
		{"business hours at 17", "eq", "business_hours", 17, false},
		{"off hours at night", "eq", "off_hours", 23, true},
		{"between inclusive low", "between", []interface{}{9.0, 17.0}, 9, true},
		{"between exclusive high", "between", []interface{}{9.0, 17.0}, 17, false},
		{"lt", "lt", 12.0, 8, true},
		{"gt", "gt", 18.0, 23, true},
		{"bad between pair", "between", []interface{}{9.0}, 10, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			result := Evaluate(Condition{Type: "time", Operator: tc.op, Value: tc.value}, at(tc.hour))
			assert.Equal(t, tc.want, result.Matched)
		})
	}
}

func TestExplicitOffHoursFlagWins(t *testing.T) {
	off := true
	ctx := Context{
		Timestamp:  time.Date(2026, 3, 10, 11, 0, 0, 0, time.UTC), // would be business hours
		IsOffHours: &off,
	}

	result := Evaluate(Condition{Type: "time", Operator: "eq", Value: "off_hours"}, ctx)
	if !result.Matched {
		t.Fatalf("explicit off-hours flag should override the hour window")
	}
}

func TestSessionAndConversationDefaults(t *testing.T) {
	// sessionDuration defaults to 0, conversationLength defaults to 1.
	ctx := Context{}

	result := Evaluate(Condition{Type: "session_duration", Operator: "lt", Value: 60}, ctx)
	assert.True(t, result.Matched, "default session duration is 0")

	result = Evaluate(Condition{Type: "conversation_length", Operator: "eq", Value: 1}, ctx)
	assert.True(t, result.Matched, "default conversation length is 1")

	result = Evaluate(Condition{Type: "conversation_length", Operator: "gte", Value: 5},
		Context{ConversationLength: 7})
	assert.True(t, result.Matched)
}

func TestSiteCondition(t *testing.T) {
	ctx := Context{SiteID: "site-a"}

	result := Evaluate(Condition{Type: "site", Operator: "eq", Value: "site-a"}, ctx)
	assert.True(t, result.Matched)

	result = Evaluate(Condition{Type: "site", Operator: "in", Value: []interface{}{"site-b", "site-a"}}, ctx)
	assert.True(t, result.Matched)

	result = Evaluate(Condition{Type: "site", Operator: "eq", Value: "site-b"}, ctx)
	assert.False(t, result.Matched)
}

func TestMalformedConditionsDegradeGracefully(t *testing.T) {
	ctx := Context{Message: "help", Confidence: 0.5}

	cases := []Condition{
		{Type: "sentiment", Operator: "lt", Value: 0.2},       // unknown type
		{Type: "confidence", Operator: "near", Value: 0.5},    // unknown operator
		{Type: "confidence", Operator: "lt", Value: "cheese"}, // non-numeric value
		{Type: "keyword", Operator: "contains", Value: 12},    // non-string value
	}

	for _, c := range cases {
		result := Evaluate(c, ctx)
		if result.Matched {
			t.Fatalf("malformed condition %+v must resolve false", c)
		}
		if len(result.Trace) != 1 || result.Trace[0].Description == "" {
			t.Fatalf("malformed condition %+v must leave an explanatory trace", c)
		}
	}

	// One malformed leaf must not poison its siblings under an or.
	node := Predicate{
		Operator: OpOr,
		Children: []Node{
			Condition{Type: "sentiment", Operator: "lt", Value: 0.2},
			Condition{Type: "keyword", Operator: "contains", Value: "help"},
		},
	}
	result := Evaluate(node, ctx)
	if !result.Matched {
		t.Fatalf("healthy sibling should still match, trace: %+v", result.Trace)
	}
}

func TestDecodeWireForm(t *testing.T) {
	doc := models.RuleNodeDoc{
		Operator: "or",
		Conditions: []models.RuleNodeDoc{
			{Type: "confidence", Operator: "lt", Value: 0.3},
			{
				Operator: "and",
				Conditions: []models.RuleNodeDoc{
					{Type: "keyword", Operator: "contains", Value: "refund"},
					{Type: "email_domain", Operator: "eq", Value: "bigcorp.com"},
				},
			},
		},
	}

	node := Decode(doc)
	pred, ok := node.(Predicate)
	if !ok {
		t.Fatalf("expected a predicate, got %T", node)
	}
	if pred.Operator != OpOr || len(pred.Children) != 2 {
		t.Fatalf("unexpected decode: %+v", pred)
	}
	if _, ok := pred.Children[0].(Condition); !ok {
		t.Fatalf("first child should be a leaf condition")
	}
	inner, ok := pred.Children[1].(Predicate)
	if !ok || inner.Operator != OpAnd || len(inner.Children) != 2 {
		t.Fatalf("second child should be the nested and group")
	}

	result := Evaluate(node, Context{
		Confidence: 0.9,
		Message:    "I want a refund",
		UserEmail:  "a@bigcorp.com",
	})
	if !result.Matched {
		t.Fatalf("decoded tree should evaluate like the hand-built one")
	}
}

func TestEvaluationIsPure(t *testing.T) {
	node := Predicate{
		Operator: OpAnd,
		Children: []Node{
			Condition{Type: "confidence", Operator: "lt", Value: 0.55},
			Condition{Type: "keyword", Operator: "contains", Value: "refund"},
		},
	}
	ctx := Context{Confidence: 0.42, Message: "refund please"}

	first := Evaluate(node, ctx)
	second := Evaluate(node, ctx)

	assert.Equal(t, first.Matched, second.Matched)
	assert.Equal(t, first.Trace, second.Trace)
}
