// Package verify cross-checks a structured parser's extracted ordinance
// rows against the source text they were pulled from: for every numeric
// or textual value a row carries, it asks whether the source actually
// supports that value, falling back to a deterministic substring check
// when no LLM caller is configured.
package verify

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/NREL/elm-sub000/internal/validate"
)

// SupportPrompt asks whether sourceText supports one extracted field
// value, returning a boolean verdict plus a short explanation.
const SupportPrompt = "You are a legal scholar checking whether a piece " +
	"of extracted data is actually supported by the ordinance text it " +
	"was drawn from. Return your answer in JSON format (not markdown). " +
	"Your JSON file must include exactly two keys. The first key is " +
	"'explanation', a short string justifying your answer. The second " +
	"key is '{key}', a boolean set to true if the source text supports " +
	"the claim '{claim}' and false otherwise."

// FieldCheck records the support verdict for one field of one row.
type FieldCheck struct {
	Feature    string
	Field      string
	Value      any
	Supported  bool
	Confidence string // "high", "medium", or "low"
}

// Result bundles every field check run against a set of rows.
type Result struct {
	Checks  []FieldCheck
	Summary string
}

// Validator runs SupportPrompt against an LLM when Caller is set, and
// otherwise falls back to a deterministic text-presence check.
type Validator struct {
	Caller validate.StructuredCaller
}

// Validate checks every non-"feature" field of every row against
// sourceText. A row whose only key is "feature" (the structured
// parser's placeholder for "nothing found") is skipped; there is
// nothing to support.
func (v *Validator) Validate(ctx context.Context, rows []map[string]any, sourceText string) (Result, error) {
	var checks []FieldCheck
	for _, row := range rows {
		feature, _ := row["feature"].(string)
		keys := sortedFieldKeys(row)
		for _, field := range keys {
			if field == "feature" {
				continue
			}
			value := row[field]
			if value == nil {
				continue
			}
			check, err := v.checkField(ctx, feature, field, value, sourceText)
			if err != nil {
				return Result{}, fmt.Errorf("verify: field %q of %q: %w", field, feature, err)
			}
			checks = append(checks, check)
		}
	}
	return Result{Checks: checks, Summary: summarize(checks)}, nil
}

func (v *Validator) checkField(ctx context.Context, feature, field string, value any, sourceText string) (FieldCheck, error) {
	if v.Caller == nil {
		supported := deterministicSupport(value, sourceText)
		confidence := "low"
		if supported {
			confidence = "medium"
		}
		return FieldCheck{Feature: feature, Field: field, Value: value, Supported: supported, Confidence: confidence}, nil
	}

	claim := fmt.Sprintf("%s.%s = %v", feature, field, value)
	sys := strings.ReplaceAll(SupportPrompt, "{claim}", claim)
	validator := validate.NewValidator(v.Caller, sys, func(props map[string]any) bool {
		b, _ := props["supported"].(bool)
		return b
	})
	ok, err := validator.Check(ctx, sourceText, map[string]string{"key": "supported"})
	if err != nil {
		return FieldCheck{}, err
	}
	confidence := "low"
	if ok {
		confidence = "high"
	}
	return FieldCheck{Feature: feature, Field: field, Value: value, Supported: ok, Confidence: confidence}, nil
}

// deterministicSupport reports whether value's string or numeric form
// literally appears in sourceText, case-insensitively for strings.
func deterministicSupport(value any, sourceText string) bool {
	lower := strings.ToLower(sourceText)
	switch v := value.(type) {
	case string:
		return v != "" && strings.Contains(lower, strings.ToLower(v))
	case float64:
		return strings.Contains(sourceText, formatNumber(v))
	case bool:
		return true // a bare boolean flag has no literal text form to search for
	default:
		return false
	}
}

func formatNumber(v float64) string {
	if v == float64(int64(v)) {
		return strconv.FormatInt(int64(v), 10)
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func sortedFieldKeys(row map[string]any) []string {
	keys := make([]string, 0, len(row))
	for k := range row {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func summarize(checks []FieldCheck) string {
	if len(checks) == 0 {
		return "no extracted fields to verify"
	}
	supported := 0
	for _, c := range checks {
		if c.Supported {
			supported++
		}
	}
	return fmt.Sprintf("%d/%d extracted fields supported by source text", supported, len(checks))
}
