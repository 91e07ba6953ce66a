package audit

import (
	"math"

	json "github.com/goccy/go-json"

	"github.com/hargabyte/bundlescope/internal/bundle"
)

// ValidateResult converts an external rule result into an AuditResult. The
// result must carry a string id, a string title and a numeric weight.
func ValidateResult(ruleID string, raw map[string]any) (bundle.AuditResult, error) {
	invalid := func(reason string) (bundle.AuditResult, error) {
		return bundle.AuditResult{}, &ValidationError{RuleID: ruleID, Reason: reason}
	}
	if raw == nil {
		return invalid("empty result")
	}

	id, ok := raw["id"].(string)
	if !ok || id == "" {
		return invalid("missing string id")
	}
	title, ok := raw["title"].(string)
	if !ok || title == "" {
		return invalid("missing string title")
	}
	weight, ok := number(raw["weight"])
	if !ok || weight < 0 {
		return invalid("missing numeric weight")
	}

	res := bundle.AuditResult{ID: id, Title: title, Weight: weight}
	res.Description, _ = raw["description"].(string)
	res.Link, _ = raw["link"].(string)

	if v, present := raw["numericScore"]; present && v != nil {
		ns, ok := number(v)
		if !ok {
			return invalid("numericScore is not a number")
		}
		ns = clamp01(ns)
		res.NumericScore = &ns
	}

	switch level := bundle.Level(stringValue(raw["score"])); level {
	case bundle.LevelBad, bundle.LevelWarn, bundle.LevelNotice, bundle.LevelGood:
		res.Score = level
	case "":
		if res.NumericScore != nil {
			res.Score = bundle.LevelFor(*res.NumericScore)
		} else {
			res.Score = bundle.LevelNotice
		}
	default:
		return invalid("unknown score level " + string(level))
	}

	if d, present := raw["detail"]; present && d != nil {
		data, err := json.Marshal(d)
		if err != nil {
			return invalid("detail is not serializable")
		}
		var detail bundle.Detail
		if err := json.Unmarshal(data, &detail); err != nil {
			return invalid("detail has the wrong shape")
		}
		res.Detail = &detail
	}
	return res, nil
}

func number(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func stringValue(v any) string {
	s, _ := v.(string)
	return s
}
