package maf

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Kind identifies how a raw MAF parameter string was interpreted.
type Kind int

const (
	KindString Kind = iota
	KindBool
	KindNumber
	KindJSON
	KindTimeOfDay
)

// TypedValue is the reconstituted form of a raw "{name, value}" MAF
// parameter (§4.1, §9 "dynamic parameter typing"). Constraints consume
// typed fields through the getters on SiteConfig, never the raw string.
type TypedValue struct {
	Kind   Kind
	Raw    string
	Bool   bool
	Number float64
	JSON   json.RawMessage
	Time   TimeOfDay
}

// TimeOfDay is an hour:minute pair parsed from a colon-separated "_period"
// parameter value.
type TimeOfDay struct {
	Hour   int
	Minute int
}

var (
	boolSuffixes = []string{"_enabled", "_flag"}
	numberSuffixes = []string{
		"_minutes", "_hours", "_kwh", "_penalty", "_weight",
		"_threshold", "_count", "_margin",
	}
)

// InferAndParse reconstitutes a raw string parameter value into a TypedValue
// using the name-suffix rules of §4.1.
func InferAndParse(name, value string) TypedValue {
	trimmed := strings.TrimSpace(value)

	switch {
	case hasAnySuffix(name, boolSuffixes):
		b, err := strconv.ParseBool(trimmed)
		if err != nil {
			b = trimmed == "1" || strings.EqualFold(trimmed, "yes")
		}
		return TypedValue{Kind: KindBool, Raw: value, Bool: b}

	case hasAnySuffix(name, numberSuffixes):
		n, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			n = 0
		}
		return TypedValue{Kind: KindNumber, Raw: value, Number: n}

	case strings.HasPrefix(trimmed, "[") || strings.HasPrefix(trimmed, "{"):
		return TypedValue{Kind: KindJSON, Raw: value, JSON: json.RawMessage(trimmed)}

	case strings.HasSuffix(name, "_period") && strings.Contains(trimmed, ":"):
		if tod, ok := parseTimeOfDay(trimmed); ok {
			return TypedValue{Kind: KindTimeOfDay, Raw: value, Time: tod}
		}
		return TypedValue{Kind: KindString, Raw: value}

	default:
		return TypedValue{Kind: KindString, Raw: value}
	}
}

func hasAnySuffix(name string, suffixes []string) bool {
	for _, s := range suffixes {
		if strings.HasSuffix(name, s) {
			return true
		}
	}
	return false
}

func parseTimeOfDay(v string) (TimeOfDay, bool) {
	parts := strings.SplitN(v, ":", 2)
	if len(parts) != 2 {
		return TimeOfDay{}, false
	}
	h, err1 := strconv.Atoi(strings.TrimSpace(parts[0]))
	m, err2 := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err1 != nil || err2 != nil || h < 0 || h > 23 || m < 0 || m > 59 {
		return TimeOfDay{}, false
	}
	return TimeOfDay{Hour: h, Minute: m}, true
}

// On returns a time.Time at this time-of-day on the same date as ref, in
// ref's location.
func (t TimeOfDay) On(ref time.Time) time.Time {
	return time.Date(ref.Year(), ref.Month(), ref.Day(), t.Hour, t.Minute, 0, 0, ref.Location())
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}
