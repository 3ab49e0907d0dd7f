package aliasing

import (
	dbtypes "github.com/coursetrak/coursetrak-backend/pkg/db/types"
)

// piiCategories maps field names whose values identify a person to the alias
// category used for their tokens.
var piiCategories = map[string]string{
	"learner_name":      "Learner",
	"learner_names":     "Learner",
	"first_name":        "Learner",
	"last_name":         "Learner",
	"full_name":         "Learner",
	"class_facilitator": "Facilitator",
	"facilitator":       "Facilitator",
	"class_coach":       "Coach",
	"class_assessor":    "Assessor",
	"email":             "Contact",
	"learner_email":     "Contact",
	"phone":             "Contact",
	"learner_phone":     "Contact",
}

// ObfuscateRow replaces PII field values in the row with alias tokens,
// extending the context with any aliases minted along the way. Nested maps
// and string lists are walked; non-PII fields pass through untouched.
func ObfuscateRow(ctx Context, row map[string]any) (map[string]any, Context) {
	if row == nil {
		return nil, ctx
	}

	out := make(map[string]any, len(row))
	for field, value := range row {
		out[field], ctx = obfuscateValue(ctx, field, value)
	}
	return out, ctx
}

// ObfuscateDiff applies the same substitution to both sides of every change.
func ObfuscateDiff(ctx Context, diff dbtypes.Diff) (dbtypes.Diff, Context) {
	if diff == nil {
		return nil, ctx
	}

	out := make(dbtypes.Diff, len(diff))
	for field, change := range diff {
		var oldVal, newVal any
		oldVal, ctx = obfuscateValue(ctx, field, change.Old)
		newVal, ctx = obfuscateValue(ctx, field, change.New)
		out[field] = dbtypes.FieldChange{Old: oldVal, New: newVal}
	}
	return out, ctx
}

func obfuscateValue(ctx Context, field string, value any) (any, Context) {
	category, pii := piiCategories[field]

	switch v := value.(type) {
	case nil:
		return nil, ctx
	case string:
		if !pii || v == "" {
			return v, ctx
		}
		var token string
		token, ctx = ctx.WithAlias(category, v)
		return token, ctx
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i], ctx = obfuscateValue(ctx, field, item)
		}
		return out, ctx
	case []string:
		out := make([]any, len(v))
		for i, item := range v {
			out[i], ctx = obfuscateValue(ctx, field, item)
		}
		return out, ctx
	case map[string]any:
		var out map[string]any
		out, ctx = ObfuscateRow(ctx, v)
		return out, ctx
	default:
		// Numbers, booleans and timestamps are not treated as PII.
		return value, ctx
	}
}
