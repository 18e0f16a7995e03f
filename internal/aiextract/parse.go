package aiextract

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/tidwall/gjson"

	"github.com/sells-group/brand-research/internal/model"
	"github.com/sells-group/brand-research/internal/normalize"
)

var (
	fenceRe     = regexp.MustCompile("(?s)```[a-zA-Z]*\\s*(.*?)```")
	listSplitRe = regexp.MustCompile(`[\n;,]+`)
)

// aliases are accepted in addition to each field's camelCase and snake_case
// names.
var aliases = map[normalize.Field][]string{
	normalize.FieldUniqueValueProp:    {"uniqueValueProposition", "valueProposition"},
	normalize.FieldBrandTone:          {"brandVoice", "tone"},
	normalize.FieldKeyServices:        {"services", "products"},
	normalize.FieldSEOKeywords:        {"keywords"},
	normalize.FieldAudiencePainPoints: {"painPoints"},
}

// objectKeys are tried in order when a list element is an object.
var objectKeys = []string{"name", "title", "value", "keyword", "text", "description"}

// Parse decodes an LLM answer into a profile. Reasoning blocks and markdown
// fences are stripped, then the text is parsed directly or, failing that,
// from its first balanced JSON object or array. Each field is coerced on its
// own, so a malformed field never discards the others.
//
// ok is false when no JSON object could be recovered; the returned profile
// is then the defaults-filled empty profile.
func Parse(raw string, defaults model.ProfileDefaults) (model.ExtractedProfile, bool) {
	obj, ok := locateObject(raw)
	if !ok {
		return model.NewExtractedProfile().WithDefaults(defaults), false
	}
	return decode(obj).WithDefaults(defaults), true
}

func locateObject(raw string) (gjson.Result, bool) {
	text := strings.TrimSpace(normalize.StripThinking(raw))
	if m := fenceRe.FindStringSubmatch(text); m != nil {
		text = strings.TrimSpace(m[1])
	}

	var doc gjson.Result
	switch {
	case gjson.Valid(text):
		doc = gjson.Parse(text)
	default:
		cand, found := firstBalanced(text)
		if !found {
			return gjson.Result{}, false
		}
		doc = gjson.Parse(cand)
	}

	if doc.IsArray() {
		var first gjson.Result
		doc.ForEach(func(_, v gjson.Result) bool {
			if v.IsObject() {
				first = v
				return false
			}
			return true
		})
		doc = first
	}
	if !doc.IsObject() {
		return gjson.Result{}, false
	}
	return unwrap(doc), true
}

// unwrap descends into {"profile": {...}} style envelopes: an object with a
// single key, no known field, and an object value.
func unwrap(obj gjson.Result) gjson.Result {
	for depth := 0; depth < 3; depth++ {
		m := obj.Map()
		if len(m) != 1 {
			return obj
		}
		for k, v := range m {
			if keyField(k) != "" || !v.IsObject() {
				return obj
			}
			obj = v
		}
	}
	return obj
}

// firstBalanced returns the first substring of s that starts at '{' or '['
// and is valid JSON once its brackets balance. String literals and escapes
// are respected.
func firstBalanced(s string) (string, bool) {
	for start := 0; start < len(s); start++ {
		if s[start] != '{' && s[start] != '[' {
			continue
		}
		if end := matchClose(s, start); end > 0 {
			if cand := s[start : end+1]; gjson.Valid(cand) {
				return cand, true
			}
		}
	}
	return "", false
}

func matchClose(s string, start int) int {
	var stack []byte
	inString, escaped := false, false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			stack = append(stack, '}')
		case '[':
			stack = append(stack, ']')
		case '}', ']':
			if len(stack) == 0 || stack[len(stack)-1] != c {
				return -1
			}
			stack = stack[:len(stack)-1]
			if len(stack) == 0 {
				return i
			}
		}
	}
	return -1
}

func decode(obj gjson.Result) model.ExtractedProfile {
	get := func(f normalize.Field) gjson.Result {
		for _, k := range keysFor(f) {
			if r := obj.Get(gjsonEscape(k)); r.Exists() && r.Type != gjson.Null {
				return r
			}
		}
		return gjson.Result{}
	}
	scalar := func(f normalize.Field) string { return toScalar(get(f)) }
	list := func(f normalize.Field) []string { return toList(get(f)) }

	p := model.ExtractedProfile{
		Industry:        scalar(normalize.FieldIndustry),
		BusinessType:    scalar(normalize.FieldBusinessType),
		CompanySize:     scalar(normalize.FieldCompanySize),
		TargetAudience:  scalar(normalize.FieldTargetAudience),
		UniqueValueProp: scalar(normalize.FieldUniqueValueProp),
		BrandTone:       scalar(normalize.FieldBrandTone),
		MarketPosition:  scalar(normalize.FieldMarketPosition),

		KeyServices:        list(normalize.FieldKeyServices),
		Competitors:        list(normalize.FieldCompetitors),
		SEOKeywords:        list(normalize.FieldSEOKeywords),
		MarketTrends:       list(normalize.FieldMarketTrends),
		Opportunities:      list(normalize.FieldOpportunities),
		Challenges:         list(normalize.FieldChallenges),
		AudiencePainPoints: list(normalize.FieldAudiencePainPoints),
		AudienceGoals:      list(normalize.FieldAudienceGoals),
		ContentGoals:       list(normalize.FieldContentGoals),
		RecentNews:         list(normalize.FieldRecentNews),

		Citations: toList(obj.Get("citations")),
		Sections:  toSections(obj.Get("sections")),
	}
	return p
}

func keysFor(f normalize.Field) []string {
	name := string(f)
	keys := []string{name, snake(name)}
	for _, a := range aliases[f] {
		keys = append(keys, a, snake(a))
	}
	return keys
}

// keyField maps a JSON key back to a known field, or "".
func keyField(key string) normalize.Field {
	for _, f := range append(append([]normalize.Field{}, normalize.ScalarFields...), normalize.ListFields...) {
		for _, k := range keysFor(f) {
			if k == key {
				return f
			}
		}
	}
	return ""
}

func snake(s string) string {
	var b strings.Builder
	for i, r := range s {
		if unicode.IsUpper(r) {
			if i > 0 && !unicode.IsUpper(rune(s[i-1])) {
				b.WriteByte('_')
			}
			r = unicode.ToLower(r)
		}
		b.WriteRune(r)
	}
	return b.String()
}

func gjsonEscape(key string) string {
	var b strings.Builder
	for _, r := range key {
		switch r {
		case '.', '*', '?', '|', '#', '@', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

func toScalar(r gjson.Result) string {
	switch {
	case !r.Exists():
		return ""
	case r.Type == gjson.String:
		return strings.TrimSpace(r.Str)
	case r.Type == gjson.Number, r.Type == gjson.True, r.Type == gjson.False:
		return r.Raw
	case r.IsArray():
		return strings.Join(toList(r), ", ")
	case r.IsObject():
		return objectText(r)
	}
	return ""
}

func toList(r gjson.Result) []string {
	out := []string{}
	switch {
	case !r.Exists():
	case r.IsArray():
		r.ForEach(func(_, v gjson.Result) bool {
			switch {
			case v.IsObject():
				out = append(out, objectText(v))
			case v.IsArray():
			default:
				out = append(out, toScalar(v))
			}
			return true
		})
	case r.Type == gjson.String:
		for _, part := range listSplitRe.Split(r.Str, -1) {
			out = append(out, strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(part), "-*•")))
		}
	case r.Type == gjson.Number, r.Type == gjson.True, r.Type == gjson.False:
		out = append(out, r.Raw)
	case r.IsObject():
		out = append(out, objectText(r))
	}
	return out
}

func objectText(r gjson.Result) string {
	for _, k := range objectKeys {
		if v := r.Get(k); v.Type == gjson.String || v.Type == gjson.Number {
			if s := strings.TrimSpace(v.String()); s != "" {
				return s
			}
		}
	}
	return ""
}

func toSections(r gjson.Result) map[string]string {
	out := map[string]string{}
	if !r.IsObject() {
		return out
	}
	r.ForEach(func(k, v gjson.Result) bool {
		if s := toScalar(v); s != "" {
			out[strings.TrimSpace(k.String())] = s
		}
		return true
	})
	return out
}
