package normalize

import (
	"os"
	"sort"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Field names one ExtractedProfile field. Values match the profile's JSON keys.
type Field string

// Scalar fields.
const (
	FieldIndustry        Field = "industry"
	FieldBusinessType    Field = "businessType"
	FieldCompanySize     Field = "companySize"
	FieldTargetAudience  Field = "targetAudience"
	FieldUniqueValueProp Field = "uniqueValueProp"
	FieldBrandTone       Field = "brandTone"
	FieldMarketPosition  Field = "marketPosition"
)

// List fields.
const (
	FieldKeyServices        Field = "keyServices"
	FieldCompetitors        Field = "competitors"
	FieldSEOKeywords        Field = "seoKeywords"
	FieldMarketTrends       Field = "marketTrends"
	FieldOpportunities      Field = "opportunities"
	FieldChallenges         Field = "challenges"
	FieldAudiencePainPoints Field = "audiencePainPoints"
	FieldAudienceGoals      Field = "audienceGoals"
	FieldContentGoals       Field = "contentGoals"
	FieldRecentNews         Field = "recentNews"
)

// ScalarFields lists the single-value fields in profile order.
var ScalarFields = []Field{
	FieldIndustry, FieldBusinessType, FieldCompanySize, FieldTargetAudience,
	FieldUniqueValueProp, FieldBrandTone, FieldMarketPosition,
}

// ListFields lists the multi-value fields in profile order.
var ListFields = []Field{
	FieldKeyServices, FieldCompetitors, FieldSEOKeywords, FieldMarketTrends,
	FieldOpportunities, FieldChallenges, FieldAudiencePainPoints,
	FieldAudienceGoals, FieldContentGoals, FieldRecentNews,
}

// Known reports whether f is one of the profile fields.
func (f Field) Known() bool {
	for _, k := range ScalarFields {
		if k == f {
			return true
		}
	}
	for _, k := range ListFields {
		if k == f {
			return true
		}
	}
	return false
}

// Labels maps each field to its ordered candidate labels (synonyms used to
// find the field's section heading or inline "Label: value" mention).
type Labels map[Field][]string

// DefaultLabels returns the built-in field to label table.
func DefaultLabels() Labels {
	return Labels{
		FieldIndustry:        {"Industry", "Sector", "Market Category"},
		FieldBusinessType:    {"Business Type", "Business Model", "Company Type"},
		FieldCompanySize:     {"Company Size", "Team Size", "Employees", "Size"},
		FieldTargetAudience:  {"Target Audience", "Ideal Customer", "Customer Segmentation", "Target Market"},
		FieldUniqueValueProp: {"Unique Value Proposition", "Value Proposition", "Differentiators", "Unique Selling Point"},
		FieldBrandTone:       {"Brand Tone", "Brand Voice", "Tone of Voice", "Communication Style"},
		FieldMarketPosition:  {"Market Position", "Competitive Position", "Positioning"},

		FieldKeyServices:        {"Key Services", "Products and Services", "Services", "Offerings", "Products"},
		FieldCompetitors:        {"Competitors", "Main Competitors", "Competitive Landscape", "Competition"},
		FieldSEOKeywords:        {"SEO Keywords", "Keywords", "Search Terms"},
		FieldMarketTrends:       {"Market Trends", "Industry Trends", "Trends"},
		FieldOpportunities:      {"Opportunities", "Growth Opportunities"},
		FieldChallenges:         {"Challenges", "Threats", "Risks"},
		FieldAudiencePainPoints: {"Pain Points", "Customer Pain Points", "Audience Challenges"},
		FieldAudienceGoals:      {"Audience Goals", "Customer Goals", "Customer Needs"},
		FieldContentGoals:       {"Content Goals", "Content Strategy", "Marketing Goals"},
		FieldRecentNews:         {"Recent News", "Recent Developments", "News"},
	}
}

// Merge returns a copy of l with every field present in overrides replaced.
func (l Labels) Merge(overrides Labels) Labels {
	out := make(Labels, len(l))
	for f, labels := range l {
		out[f] = append([]string(nil), labels...)
	}
	for f, labels := range overrides {
		out[f] = append([]string(nil), labels...)
	}
	return out
}

// Validate rejects unknown field names and fields with no labels.
func (l Labels) Validate() error {
	fields := make([]string, 0, len(l))
	for f := range l {
		fields = append(fields, string(f))
	}
	sort.Strings(fields)
	for _, name := range fields {
		f := Field(name)
		if !f.Known() {
			return eris.Errorf("normalize: unknown field %q", name)
		}
		if len(l[f]) == 0 {
			return eris.Errorf("normalize: field %q has no labels", name)
		}
	}
	return nil
}

// LoadLabels reads a YAML label table and overlays it on DefaultLabels.
//
//	competitors:
//	  - Competitors
//	  - Rival Brands
func LoadLabels(path string) (Labels, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "normalize: read labels %s", path)
	}
	return ParseLabels(data)
}

// ParseLabels decodes a YAML label table and overlays it on DefaultLabels.
func ParseLabels(data []byte) (Labels, error) {
	var overrides Labels
	if err := yaml.Unmarshal(data, &overrides); err != nil {
		return nil, eris.Wrap(err, "normalize: parse labels")
	}
	if err := overrides.Validate(); err != nil {
		return nil, err
	}
	return DefaultLabels().Merge(overrides), nil
}
