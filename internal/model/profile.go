package model

import (
	"strings"
)

// MaxListItems caps every list field of an ExtractedProfile.
const MaxListItems = 8

// ExtractionMode selects how a research report is turned into a profile.
type ExtractionMode string

const (
	ExtractionModeRegex ExtractionMode = "regex" // pattern-based normalizer only
	ExtractionModeAI    ExtractionMode = "ai"    // LLM emits JSON directly
	ExtractionModeAuto  ExtractionMode = "auto"  // AI first, normalizer on provider failure
)

// Valid reports whether m is a known extraction mode.
func (m ExtractionMode) Valid() bool {
	switch m {
	case ExtractionModeRegex, ExtractionModeAI, ExtractionModeAuto:
		return true
	default:
		return false
	}
}

// ParseExtractionMode maps user input to an ExtractionMode. Empty input
// selects regex.
func ParseExtractionMode(s string) (ExtractionMode, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return ExtractionModeRegex, true
	}
	m := ExtractionMode(s)
	return m, m.Valid()
}

// ExtractedProfile is the fixed-shape business-intelligence record derived
// from a free-text research report.
type ExtractedProfile struct {
	Industry        string `json:"industry"`
	BusinessType    string `json:"businessType"`
	CompanySize     string `json:"companySize"`
	TargetAudience  string `json:"targetAudience"`
	UniqueValueProp string `json:"uniqueValueProp"`
	BrandTone       string `json:"brandTone"`
	MarketPosition  string `json:"marketPosition"`

	KeyServices        []string `json:"keyServices"`
	Competitors        []string `json:"competitors"`
	SEOKeywords        []string `json:"seoKeywords"`
	MarketTrends       []string `json:"marketTrends"`
	Opportunities      []string `json:"opportunities"`
	Challenges         []string `json:"challenges"`
	AudiencePainPoints []string `json:"audiencePainPoints"`
	AudienceGoals      []string `json:"audienceGoals"`
	ContentGoals       []string `json:"contentGoals"`
	RecentNews         []string `json:"recentNews"`

	Citations []string          `json:"citations"`
	Sections  map[string]string `json:"sections"`
}

// ProfileDefaults holds the fallback constants substituted for empty scalar
// fields. Values come from configuration; DefaultProfileDefaults is only the
// built-in starting point.
type ProfileDefaults struct {
	Industry        string `yaml:"industry" mapstructure:"industry"`
	BusinessType    string `yaml:"business_type" mapstructure:"business_type"`
	CompanySize     string `yaml:"company_size" mapstructure:"company_size"`
	TargetAudience  string `yaml:"target_audience" mapstructure:"target_audience"`
	UniqueValueProp string `yaml:"unique_value_prop" mapstructure:"unique_value_prop"`
	BrandTone       string `yaml:"brand_tone" mapstructure:"brand_tone"`
	MarketPosition  string `yaml:"market_position" mapstructure:"market_position"`
}

// DefaultProfileDefaults returns the built-in scalar fallbacks.
func DefaultProfileDefaults() ProfileDefaults {
	return ProfileDefaults{
		Industry:        "Technology",
		BusinessType:    "B2B",
		CompanySize:     "Small to Medium Business",
		TargetAudience:  "Business decision makers",
		UniqueValueProp: "Quality solutions tailored to client needs",
		BrandTone:       "Professional",
		MarketPosition:  "Established provider",
	}
}

// NewExtractedProfile returns a profile with every list and map allocated.
func NewExtractedProfile() ExtractedProfile {
	var p ExtractedProfile
	return p.Normalized()
}

// Normalized returns a copy with nil lists and maps replaced by empty ones,
// list entries trimmed, de-duplicated and capped at MaxListItems.
func (p ExtractedProfile) Normalized() ExtractedProfile {
	for _, l := range p.lists() {
		*l = DedupeCap(*l, MaxListItems)
	}
	p.Citations = DedupeCap(p.Citations, -1)

	sections := make(map[string]string, len(p.Sections))
	for k, v := range p.Sections {
		sections[k] = v
	}
	p.Sections = sections
	return p
}

// WithDefaults returns a normalized copy whose empty scalar fields are filled
// from d.
func (p ExtractedProfile) WithDefaults(d ProfileDefaults) ExtractedProfile {
	p = p.Normalized()
	fill := func(dst *string, def string) {
		if strings.TrimSpace(*dst) == "" {
			*dst = def
		}
	}
	fill(&p.Industry, d.Industry)
	fill(&p.BusinessType, d.BusinessType)
	fill(&p.CompanySize, d.CompanySize)
	fill(&p.TargetAudience, d.TargetAudience)
	fill(&p.UniqueValueProp, d.UniqueValueProp)
	fill(&p.BrandTone, d.BrandTone)
	fill(&p.MarketPosition, d.MarketPosition)
	return p
}

// IsEmpty reports whether no scalar or list field carries a value.
func (p ExtractedProfile) IsEmpty() bool {
	for _, s := range []string{p.Industry, p.BusinessType, p.CompanySize, p.TargetAudience, p.UniqueValueProp, p.BrandTone, p.MarketPosition} {
		if s != "" {
			return false
		}
	}
	for _, l := range p.lists() {
		if len(*l) > 0 {
			return false
		}
	}
	return true
}

func (p *ExtractedProfile) lists() []*[]string {
	return []*[]string{
		&p.KeyServices, &p.Competitors, &p.SEOKeywords, &p.MarketTrends,
		&p.Opportunities, &p.Challenges, &p.AudiencePainPoints,
		&p.AudienceGoals, &p.ContentGoals, &p.RecentNews,
	}
}

// DedupeCap trims each entry, drops empties and exact duplicates (first
// occurrence wins) and truncates to limit. A negative limit disables the cap.
// The result is never nil.
func DedupeCap(items []string, limit int) []string {
	out := make([]string, 0, len(items))
	seen := make(map[string]struct{}, len(items))
	for _, it := range items {
		it = strings.TrimSpace(it)
		if it == "" {
			continue
		}
		if _, ok := seen[it]; ok {
			continue
		}
		if limit >= 0 && len(out) >= limit {
			break
		}
		seen[it] = struct{}{}
		out = append(out, it)
	}
	return out
}
