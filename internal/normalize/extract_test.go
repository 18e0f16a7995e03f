package normalize

import (
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/brand-research/internal/model"
)

const sampleReport = `# Acme Analytics Research Report

## Industry Overview
Acme Analytics operates in the marketing analytics software industry [1]. Growth is steady.

## Target Audience
- Marketing directors at mid-size B2B companies
- Agency founders
- Marketing directors at mid-size B2B companies

### Competitors
- HubSpot [2]
- Semrush
- Similarweb

## Brand Voice
The brand voice is confident, data-driven and approachable.

## Recent News
Acme raised a Series B round in March. The company opened a London office last quarter.
`

func TestExtractArray_HeadingPrecedence(t *testing.T) {
	t.Parallel()

	text := "Intro line.\n\n## Target Audience\n- SMB owners\n- Agency founders\n\n## Other\n- Not this"
	got := ExtractArray(text, []string{"Target Audience"})
	assert.Equal(t, []string{"SMB owners", "Agency founders"}, got)
}

func TestExtractField_FallbackWithoutHeadings(t *testing.T) {
	t.Parallel()

	got := ExtractField("Our target audience: busy professionals and small teams.", []string{"target audience"})
	require.NotEmpty(t, got)
	assert.Contains(t, got, "busy professionals and small teams")
}

func TestExtractCitations(t *testing.T) {
	t.Parallel()

	got := ExtractCitations("LinkedIn usage is rising [1]. Competitors include Acme [2][3]. Again [1].")
	assert.Equal(t, []string{"[1]", "[2]", "[3]"}, got)
}

func TestExtractCitations_IgnoresThinkBlocks(t *testing.T) {
	t.Parallel()

	got := ExtractCitations("<think>see [9]</think>Fact [4].")
	assert.Equal(t, []string{"[4]"}, got)
}

func TestExtractCitations_None(t *testing.T) {
	t.Parallel()

	got := ExtractCitations("no markers here")
	require.NotNil(t, got)
	assert.Empty(t, got)
}

func TestThinkBlockStripping(t *testing.T) {
	t.Parallel()

	text := "<think>internal notes</think>## Industry\nFintech is booming."
	assert.NotContains(t, Clean(text), "internal notes")

	got := ExtractField(text, []string{"Industry"})
	assert.Contains(t, strings.ToLower(got), "fintech")
	assert.NotContains(t, got, "internal notes")
}

func TestExtractSections_LaterHeadingWins(t *testing.T) {
	t.Parallel()

	text := "## Industry\nFirst body.\n\n## Audience\nPeople.\n\n## Industry\nSecond body."
	got := ExtractSections(text)
	assert.Equal(t, "Second body.", got["Industry"])
	assert.Equal(t, "People.", got["Audience"])
	assert.Len(t, got, 2)
}

func TestExtractSections_DeepHeadingsAndClosingHashes(t *testing.T) {
	t.Parallel()

	got := ExtractSections("#### Key Services ##\n- Audits\n### C#\nDotnet work.")
	assert.Equal(t, "- Audits", got["Key Services"])
	assert.Equal(t, "Dotnet work.", got["C#"])
}

func TestExtractField_SectionSentence(t *testing.T) {
	t.Parallel()

	text := "## Brand Voice\nshort.\nThe brand voice is confident, data-driven and approachable. It is warm."
	got := ExtractField(text, []string{"Brand Tone", "Brand Voice"})
	assert.Equal(t, "The brand voice is confident, data-driven and approachable.", got)
}

func TestExtractField_LabelOrderWins(t *testing.T) {
	t.Parallel()

	text := "## Sector\nThe sector is enterprise healthcare software.\n\n## Industry\nThe industry is logistics and freight tech."
	got := ExtractField(text, []string{"Industry", "Sector"})
	assert.Equal(t, "The industry is logistics and freight tech.", got)
}

func TestExtractField_InlineStripsMarkdown(t *testing.T) {
	t.Parallel()

	got := ExtractField("**Industry:** Fintech infrastructure. More text.", []string{"Industry"})
	assert.Equal(t, "Fintech infrastructure", got)
}

func TestExtractField_NoMatch(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "", ExtractField("Nothing relevant here.", []string{"Industry"}))
	assert.Equal(t, "", ExtractField("", []string{"Industry"}))
	assert.Equal(t, "", ExtractField("Industry: x.", nil))
}

func TestExtractField_WordBoundary(t *testing.T) {
	t.Parallel()

	got := ExtractField("Subindustry: wrong. Industry: right answer.", []string{"Industry"})
	assert.Equal(t, "right answer", got)
}

func TestExtractField_SentenceStartsAtWordBoundary(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		text string
		want string
	}{
		{
			name: "camel_case_lead_word",
			text: "## Industry\niPhone accessories are a growing consumer segment.",
			want: "iPhone accessories are a growing consumer segment",
		},
		{
			name: "later_sentence_used",
			text: "## Industry\neCommerce is big. The company sells payroll software to restaurants.",
			want: "The company sells payroll software to restaurants.",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := ExtractField(tt.text, []string{"Industry"})
			assert.Equal(t, tt.want, got)
			assert.NotEqual(t, "Phone accessories are a growing consumer segment.", got)
		})
	}
}

func TestExtractField_Abbreviations(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		text string
		want string
	}{
		{"section_sentence", "## Industry\nThe U.S. fintech market keeps growing fast.", "The U.S. fintech market keeps growing fast."},
		{"decimal", "## Brand Voice\nThe brand voice shifted in version 2.5 toward humor.", "The brand voice shifted in version 2.5 toward humor."},
		{"inline", "Industry: U.S. fintech infrastructure. Other text.", "U.S. fintech infrastructure"},
		{"inline_lowercase_continuation", "Industry: Acme Inc. and partners in payments. Next.", "Acme Inc. and partners in payments"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, ExtractField(tt.text, []string{"Industry", "Brand Voice"}))
		})
	}
}

func TestExtractField_ExactHeadingBeforeSubstring(t *testing.T) {
	t.Parallel()

	text := "### Industry Trends\nVideo is eating the marketing world quickly.\n\n### Industry\nThe company sells payroll software to restaurants."
	assert.Equal(t, "The company sells payroll software to restaurants.", ExtractField(text, []string{"Industry"}))

	// Without an exact title the first containing heading still matches.
	text = "## Industry Overview\nThe company sells payroll software to restaurants."
	assert.Equal(t, "The company sells payroll software to restaurants.", ExtractField(text, []string{"Industry"}))
}

func TestExtractArray_SentencesSkipMidWordCapitals(t *testing.T) {
	t.Parallel()

	text := "## Market Trends\neCommerce keeps growing every quarter. Video content keeps growing."
	got := ExtractArray(text, []string{"Market Trends"})
	assert.Equal(t, []string{"Video content keeps growing."}, got)
}

func TestExtractArray_SentencesWhenNoBullets(t *testing.T) {
	t.Parallel()

	text := "## Market Trends\nVideo content keeps growing. AI. Short-form posts outperform long-form ones."
	got := ExtractArray(text, []string{"Market Trends"})
	assert.Equal(t, []string{"Video content keeps growing.", "Short-form posts outperform long-form ones."}, got)
}

func TestExtractArray_MergesLabelsAndDedupes(t *testing.T) {
	t.Parallel()

	text := "## Competitors\n- Acme\n- Globex\n\n## Competitive Landscape\n- Globex\n- Initech\n- acme"
	got := ExtractArray(text, []string{"Competitors", "Competitive Landscape"})
	assert.Equal(t, []string{"Acme", "Globex", "Initech", "acme"}, got)
}

func TestExtractArray_GlobalInlineFallback(t *testing.T) {
	t.Parallel()

	text := "Competitors: Acme Corp. Later on, competitors: Globex. Competitors: Acme Corp."
	got := ExtractArray(text, []string{"Competitors"})
	assert.Equal(t, []string{"Acme Corp", "Globex"}, got)
}

func TestExtractArray_SectionMatchSuppressesInline(t *testing.T) {
	t.Parallel()

	text := "Competitors: Inline Co.\n\n## Competitors\n- Section Co"
	got := ExtractArray(text, []string{"Competitors"})
	assert.Equal(t, []string{"Section Co"}, got)
}

func TestExtractArray_Cap(t *testing.T) {
	t.Parallel()

	var b strings.Builder
	b.WriteString("## SEO Keywords\n")
	for i := 0; i < 15; i++ {
		fmt.Fprintf(&b, "- keyword %d\n", i)
	}
	got := ExtractArray(b.String(), []string{"SEO Keywords"})
	require.Len(t, got, model.MaxListItems)
	assert.Equal(t, "keyword 0", got[0])
	assert.Equal(t, "keyword 7", got[7])
}

func TestExtractArray_BulletStyles(t *testing.T) {
	t.Parallel()

	text := "## Key Services\n- Audits\n* Strategy\n• Training\n  - Workshops\n---\n**Bold line**"
	got := ExtractArray(text, []string{"Key Services"})
	assert.Equal(t, []string{"Audits", "Strategy", "Training", "Workshops"}, got)
}

func TestExtractArray_NeverNil(t *testing.T) {
	t.Parallel()

	got := ExtractArray("", []string{"Competitors"})
	require.NotNil(t, got)
	assert.Empty(t, got)
}

func TestNormalizerExtract_SampleReport(t *testing.T) {
	t.Parallel()

	p := Extract(sampleReport)

	assert.Contains(t, p.Industry, "marketing analytics software")
	assert.Equal(t, "Marketing directors at mid-size B2B companies", p.TargetAudience)
	assert.Equal(t, "The brand voice is confident, data-driven and approachable.", p.BrandTone)
	assert.Equal(t, []string{"HubSpot", "Semrush", "Similarweb"}, p.Competitors)
	assert.Equal(t, []string{
		"Acme raised a Series B round in March.",
		"The company opened a London office last quarter.",
	}, p.RecentNews)
	assert.Equal(t, []string{"[1]", "[2]"}, p.Citations)
	assert.Contains(t, p.Sections, "Competitors")
	assert.Contains(t, p.Sections, "Industry Overview")
	assert.NotContains(t, p.Sections["Competitors"], "[2]")
}

func TestNormalizerExtract_CustomLabels(t *testing.T) {
	t.Parallel()

	labels := DefaultLabels().Merge(Labels{FieldCompetitors: {"Rival Brands"}})
	n := New(labels)

	p := n.Extract("## Rival Brands\n- Contoso\n\n## Competitors\n- Ignored")
	assert.Equal(t, []string{"Contoso"}, p.Competitors)
}

func TestNormalizerExtract_Totality(t *testing.T) {
	t.Parallel()

	inputs := []string{
		"",
		"   \n\t  \n",
		"plain prose without any headings or labels at all",
		"<think>never closed",
		"</think>",
		"##\n###\n[1]]]][[2]",
		"## \n- \n* \n",
		strings.Repeat("## Competitors\n- Acme\n", 50),
	}

	for i, in := range inputs {
		t.Run(fmt.Sprintf("input_%d", i), func(t *testing.T) {
			t.Parallel()
			p := Extract(in)
			assertWellFormed(t, p)
		})
	}
}

func TestNormalizerExtract_EmptyInput(t *testing.T) {
	t.Parallel()

	for _, in := range []string{"", "   ", "\n\n\t"} {
		p := Extract(in)
		assert.True(t, p.IsEmpty())
		assert.Equal(t, "", p.Industry)
		assert.Equal(t, "", p.MarketPosition)
		assert.Empty(t, p.Citations)
		assert.Empty(t, p.Sections)
	}
}

func TestNormalizerExtract_NoHeadingsUsesInline(t *testing.T) {
	t.Parallel()

	text := "Industry: Commercial cleaning. Target audience: property managers in Ohio. " +
		"Competitors: Jani-King. Competitors: Coverall. SEO keywords: office cleaning Columbus."
	p := Extract(text)

	assert.Equal(t, "Commercial cleaning", p.Industry)
	assert.Equal(t, "property managers in Ohio", p.TargetAudience)
	assert.Equal(t, []string{"Jani-King", "Coverall"}, p.Competitors)
	assert.Equal(t, []string{"office cleaning Columbus"}, p.SEOKeywords)
	assert.Empty(t, p.Sections)
}

func TestNormalizerExtract_Deterministic(t *testing.T) {
	t.Parallel()

	inputs := []string{sampleReport, "", "Competitors: A. Competitors: B.", "## Industry\nFintech is booming."}
	for _, in := range inputs {
		first := Extract(in)
		second := Extract(in)
		assert.Equal(t, first, second)
	}
}

func TestNormalizerExtract_Concurrent(t *testing.T) {
	t.Parallel()

	want := Extract(sampleReport)
	var wg sync.WaitGroup
	results := make([]model.ExtractedProfile, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = Extract(sampleReport)
		}(i)
	}
	wg.Wait()
	for _, got := range results {
		assert.Equal(t, want, got)
	}
}

func assertWellFormed(t *testing.T, p model.ExtractedProfile) {
	t.Helper()

	lists := map[string][]string{
		"keyServices":        p.KeyServices,
		"competitors":        p.Competitors,
		"seoKeywords":        p.SEOKeywords,
		"marketTrends":       p.MarketTrends,
		"opportunities":      p.Opportunities,
		"challenges":         p.Challenges,
		"audiencePainPoints": p.AudiencePainPoints,
		"audienceGoals":      p.AudienceGoals,
		"contentGoals":       p.ContentGoals,
		"recentNews":         p.RecentNews,
	}
	for name, l := range lists {
		require.NotNil(t, l, name)
		assert.LessOrEqual(t, len(l), model.MaxListItems, name)
		seen := map[string]bool{}
		for _, item := range l {
			assert.False(t, seen[item], "%s has duplicate %q", name, item)
			seen[item] = true
		}
	}
	assert.NotNil(t, p.Citations)
	assert.NotNil(t, p.Sections)
}
