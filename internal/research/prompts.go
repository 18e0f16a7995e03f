package research

import (
	"fmt"
	"strings"
)

// Query is one research question. Section becomes the report heading the
// answer is filed under.
type Query struct {
	Section string `yaml:"section" mapstructure:"section"`
	Prompt  string `yaml:"prompt" mapstructure:"prompt"`
}

const systemPrompt = `You are a brand strategist researching a company for a content marketing team.
Answer with factual, current information and cite sources with [n] markers.
Use the exact markdown headings requested. Under list headings use "- " bullets, one item per line.
Do not add an introduction or a closing summary.`

// DefaultQueries returns the research questions asked for every company.
// Their headings line up with the normalizer's default label table.
func DefaultQueries() []Query {
	return []Query{
		{
			Section: "Company Overview",
			Prompt: `Describe {company} ({website}).
Use these headings: ## Industry, ## Business Type, ## Company Size, ## Unique Value Proposition, ## Key Services.`,
		},
		{
			Section: "Audience",
			Prompt: `Who buys from {company} ({website})?
Use these headings: ## Target Audience, ## Audience Pain Points, ## Audience Goals.`,
		},
		{
			Section: "Market",
			Prompt: `Analyze the market {company} ({website}) competes in.
Use these headings: ## Competitors, ## Market Position, ## Market Trends, ## Opportunities, ## Challenges, ## Recent News.`,
		},
		{
			Section: "Brand",
			Prompt: `Describe how {company} ({website}) presents itself online.
Use these headings: ## Brand Tone, ## SEO Keywords, ## Content Goals.`,
		},
	}
}

// renderPrompt fills the {company} and {website} placeholders and appends
// the site excerpt when one was read.
func renderPrompt(q Query, company, website, site string) string {
	if website == "" {
		website = "website unknown"
	}
	r := strings.NewReplacer("{company}", company, "{website}", website)
	prompt := r.Replace(q.Prompt)
	if site != "" {
		prompt += fmt.Sprintf("\n\nExcerpt from the company's own website:\n\"\"\"\n%s\n\"\"\"", site)
	}
	return prompt
}
