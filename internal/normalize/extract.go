package normalize

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/sells-group/brand-research/internal/model"
)

// Sentence length bounds, in runes.
const (
	fieldSentenceMin = 20
	fieldSentenceMax = 200
	listSentenceMin  = 10
	listSentenceMax  = 150
)

var (
	headingRe     = regexp.MustCompile(`(?m)^##[ \t]+(.+)$`)
	closingHashRe = regexp.MustCompile(`[ \t]+#+[ \t]*$`)
	bulletRe      = regexp.MustCompile(`(?m)^[ \t]*[-*•][ \t]+(.+)$`)
)

// inlineCapture takes text up to a period that ends a sentence. Periods
// inside tokens ("U.S", "3.5") or followed by a lowercase word ("Inc. and")
// do not stop it.
const inlineCapture = `((?:[^.\n]|\.\S|\.[ \t]+\p{Ll})+)`

// section is one depth-2 heading block of cleaned text.
type section struct {
	Title string
	Body  string
}

// parseSections splits cleaned text into heading blocks in document order.
// Text before the first heading belongs to no section.
func parseSections(text string) []section {
	locs := headingRe.FindAllStringSubmatchIndex(text, -1)
	out := make([]section, 0, len(locs))
	for i, loc := range locs {
		end := len(text)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		out = append(out, section{
			Title: strings.TrimSpace(closingHashRe.ReplaceAllString(text[loc[2]:loc[3]], "")),
			Body:  strings.TrimSpace(text[loc[1]:end]),
		})
	}
	return out
}

// matcher locates one candidate label as a section title or inline mention.
type matcher struct {
	lower  string
	inline *regexp.Regexp
}

func newMatchers(labels []string) []matcher {
	out := make([]matcher, 0, len(labels))
	for _, l := range labels {
		l = strings.TrimSpace(l)
		if l == "" {
			continue
		}
		prefix := ""
		if r, _ := utf8.DecodeRuneInString(l); unicode.IsLetter(r) || unicode.IsDigit(r) {
			prefix = `\b`
		}
		out = append(out, matcher{
			lower:  strings.ToLower(l),
			inline: regexp.MustCompile(`(?i:` + prefix + regexp.QuoteMeta(l) + `)[:\s]+` + inlineCapture),
		})
	}
	return out
}

// find returns the first section titled exactly the label, else the first
// section whose title contains it.
func (m matcher) find(sections []section) (section, bool) {
	for _, s := range sections {
		if strings.ToLower(s.Title) == m.lower {
			return s, true
		}
	}
	for _, s := range sections {
		if strings.Contains(strings.ToLower(s.Title), m.lower) {
			return s, true
		}
	}
	return section{}, false
}

// sentences returns the sentences of text whose trimmed rune length lies in
// [lo, hi], in document order. A sentence begins with an uppercase letter
// that does not continue a word, ends at a terminator accepted by
// sentenceEnd and never crosses a line break.
func sentences(text string, lo, hi int) []string {
	var (
		out  []string
		prev rune
	)
	for i := 0; i < len(text); {
		r, size := utf8.DecodeRuneInString(text[i:])
		if !unicode.IsUpper(r) || isWordRune(prev) {
			prev = r
			i += size
			continue
		}
		end, ok := scanSentence(text, i)
		if ok {
			s := strings.TrimSpace(text[i:end])
			if n := utf8.RuneCountInString(s); n >= lo && n <= hi {
				out = append(out, s)
			}
		}
		prev, _ = utf8.DecodeLastRuneInString(text[:end])
		i = end
	}
	return out
}

// scanSentence returns the offset just past the terminator of the sentence
// starting at start. ok is false when a line break or the end of text comes
// first, in which case end is that position.
func scanSentence(text string, start int) (end int, ok bool) {
	for j := start; j < len(text); j++ {
		switch text[j] {
		case '\n':
			return j, false
		case '.', '!', '?':
			if sentenceEnd(text, j) {
				return j + 1, true
			}
		}
	}
	return len(text), false
}

// sentenceEnd reports whether the terminator at text[i] closes a sentence:
// it must be followed by the end of text, a line break, or whitespace and a
// rune that is not lowercase.
func sentenceEnd(text string, i int) bool {
	rest := text[i+1:]
	if rest == "" || rest[0] == '\n' {
		return true
	}
	if rest[0] != ' ' && rest[0] != '\t' {
		return false
	}
	rest = strings.TrimLeft(rest, " \t")
	if rest == "" {
		return true
	}
	next, _ := utf8.DecodeRuneInString(rest)
	return !unicode.IsLower(next)
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

func extractField(text string, sections []section, ms []matcher) string {
	for _, m := range ms {
		s, ok := m.find(sections)
		if !ok {
			continue
		}
		if found := sentences(s.Body, fieldSentenceMin, fieldSentenceMax); len(found) > 0 {
			return found[0]
		}
	}
	for _, m := range ms {
		if sub := m.inline.FindStringSubmatch(text); sub != nil {
			if v := inlineValue(sub[1]); v != "" {
				return v
			}
		}
	}
	return ""
}

func extractArray(text string, sections []section, ms []matcher) []string {
	var items []string
	matched := false
	for _, m := range ms {
		s, ok := m.find(sections)
		if !ok {
			continue
		}
		matched = true
		items = append(items, listItems(s.Body)...)
	}
	if !matched {
		for _, m := range ms {
			for _, sub := range m.inline.FindAllStringSubmatch(text, -1) {
				items = append(items, inlineValue(sub[1]))
			}
		}
	}
	return model.DedupeCap(items, model.MaxListItems)
}

// inlineValue trims an inline capture, including a bullet marker left over
// when the label ended a line.
func inlineValue(s string) string {
	return strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(s), "-*•"))
}

// listItems returns the bullet entries of body, or its medium-length
// sentences when body has no bullets.
func listItems(body string) []string {
	bullets := bulletRe.FindAllStringSubmatch(body, -1)
	if len(bullets) == 0 {
		return sentences(body, listSentenceMin, listSentenceMax)
	}
	out := make([]string, 0, len(bullets))
	for _, b := range bullets {
		out = append(out, strings.TrimSpace(b[1]))
	}
	return out
}

func sectionMap(sections []section) map[string]string {
	out := make(map[string]string, len(sections))
	for _, s := range sections {
		out[s.Title] = s.Body
	}
	return out
}

// ExtractField returns the best single value for the concept named by
// labels: the first 20-200 rune sentence of the first section whose heading
// contains a label, else the text following the first inline "Label:"
// mention up to the next period. It returns "" when nothing matches.
func ExtractField(text string, labels []string) string {
	cleaned := Clean(text)
	return extractField(cleaned, parseSections(cleaned), newMatchers(labels))
}

// ExtractArray collects list entries for the concept named by labels from
// every matching section (bullets, or 10-150 rune sentences when a section
// has no bullets). When no section matches any label, all inline "Label:"
// mentions are collected instead. The result is de-duplicated, keeps
// first-seen order, holds at most model.MaxListItems entries and is never nil.
func ExtractArray(text string, labels []string) []string {
	cleaned := Clean(text)
	return extractArray(cleaned, parseSections(cleaned), newMatchers(labels))
}

// ExtractSections maps every "## " heading to its body. A later heading with
// the same title replaces an earlier one.
func ExtractSections(text string) map[string]string {
	return sectionMap(parseSections(Clean(text)))
}

// Normalizer extracts ExtractedProfiles using a fixed label table. It is
// immutable after New and safe for concurrent use.
type Normalizer struct {
	matchers map[Field][]matcher
}

// New builds a Normalizer for labels. A nil table selects DefaultLabels.
func New(labels Labels) *Normalizer {
	if labels == nil {
		labels = DefaultLabels()
	}
	n := &Normalizer{matchers: make(map[Field][]matcher, len(labels))}
	for f, ls := range labels {
		n.matchers[f] = newMatchers(ls)
	}
	return n
}

// Extract derives a profile from a raw report. Scalars that cannot be found
// are left empty for the caller to default; lists, citations and sections
// are always allocated.
func (n *Normalizer) Extract(text string) model.ExtractedProfile {
	cleaned := Clean(text)
	secs := parseSections(cleaned)

	field := func(f Field) string { return extractField(cleaned, secs, n.matchers[f]) }
	list := func(f Field) []string { return extractArray(cleaned, secs, n.matchers[f]) }

	p := model.ExtractedProfile{
		Industry:        field(FieldIndustry),
		BusinessType:    field(FieldBusinessType),
		CompanySize:     field(FieldCompanySize),
		TargetAudience:  field(FieldTargetAudience),
		UniqueValueProp: field(FieldUniqueValueProp),
		BrandTone:       field(FieldBrandTone),
		MarketPosition:  field(FieldMarketPosition),

		KeyServices:        list(FieldKeyServices),
		Competitors:        list(FieldCompetitors),
		SEOKeywords:        list(FieldSEOKeywords),
		MarketTrends:       list(FieldMarketTrends),
		Opportunities:      list(FieldOpportunities),
		Challenges:         list(FieldChallenges),
		AudiencePainPoints: list(FieldAudiencePainPoints),
		AudienceGoals:      list(FieldAudienceGoals),
		ContentGoals:       list(FieldContentGoals),
		RecentNews:         list(FieldRecentNews),

		Citations: ExtractCitations(text),
		Sections:  sectionMap(secs),
	}
	return p.Normalized()
}

var defaultNormalizer = New(nil)

// Extract runs the default-label Normalizer over text.
func Extract(text string) model.ExtractedProfile {
	return defaultNormalizer.Extract(text)
}
