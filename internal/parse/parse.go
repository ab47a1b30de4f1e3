// Package parse repairs free-text model output into a JSON object and reads
// typed fields from it.
package parse

import (
	"regexp"
	"strings"

	"github.com/tidwall/gjson"
)

var (
	fencePattern         = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)```")
	trailingCommaPattern = regexp.MustCompile(`,\s*([}\]])`)
)

// Object is a parsed JSON object from model output.
type Object struct {
	raw gjson.Result
}

// Extract finds the first JSON object in text. Code fences are unwrapped and
// trailing commas dropped. ok is false when nothing parseable is found.
func Extract(text string) (Object, bool) {
	candidates := []string{}
	for _, m := range fencePattern.FindAllStringSubmatch(text, -1) {
		candidates = append(candidates, m[1])
	}
	candidates = append(candidates, text)

	for _, c := range candidates {
		block, found := balancedObject(c)
		if !found {
			continue
		}
		if gjson.Valid(block) {
			return Object{raw: gjson.Parse(block)}, true
		}
		repaired := trailingCommaPattern.ReplaceAllString(block, "$1")
		if gjson.Valid(repaired) {
			return Object{raw: gjson.Parse(repaired)}, true
		}
	}
	return Object{}, false
}

// balancedObject returns the first {...} span with balanced braces, skipping
// braces inside string literals.
func balancedObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		ch := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}

// Float returns the number at path (gjson syntax).
func (o Object) Float(path string) (float64, bool) {
	r := o.raw.Get(path)
	switch r.Type {
	case gjson.Number:
		return r.Float(), true
	case gjson.String:
		if f := gjson.Parse(strings.TrimSpace(r.Str)); f.Type == gjson.Number {
			return f.Float(), true
		}
	}
	return 0, false
}

// String returns the string at path.
func (o Object) String(path string) (string, bool) {
	r := o.raw.Get(path)
	if !r.Exists() || r.Type == gjson.Null {
		return "", false
	}
	return r.String(), true
}

// Bool returns the boolean at path.
func (o Object) Bool(path string) (bool, bool) {
	r := o.raw.Get(path)
	switch r.Type {
	case gjson.True:
		return true, true
	case gjson.False:
		return false, true
	}
	return false, false
}

// Strings returns the string elements of the array at path.
func (o Object) Strings(path string) []string {
	r := o.raw.Get(path)
	if !r.IsArray() {
		return nil
	}
	var out []string
	for _, item := range r.Array() {
		if s := strings.TrimSpace(item.String()); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Raw returns the repaired JSON text.
func (o Object) Raw() string {
	return o.raw.Raw
}

// Clamp limits v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
