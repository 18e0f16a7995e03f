package content

import (
	"fmt"
	"strings"

	"github.com/sells-group/brand-research/internal/model"
)

const systemPrompt = `You write social media content for a brand's marketing team.
Write in the brand's voice, speak to its audience and never invent facts, prices or statistics.
Return only the drafts, separated by a line containing exactly ---.
Do not number the drafts or add commentary before or after them.`

// platformGuides describes the format expected for each platform.
var platformGuides = map[model.Platform]string{
	model.PlatformTwitter:   "X/Twitter post. At most 280 characters including hashtags. One idea, one or two hashtags.",
	model.PlatformLinkedIn:  "LinkedIn post. A strong first line, two or three short paragraphs, a question or call to action at the end, three hashtags at most.",
	model.PlatformFacebook:  "Facebook post. Conversational, under 120 words, one call to action.",
	model.PlatformInstagram: "Instagram caption. A hook in the first line, short lines, up to five hashtags at the end.",
	model.PlatformBlog:      "Blog post outline: a title line followed by an introduction paragraph and four to six bullet-point section headings.",
}

// buildPrompt renders the user message for one generation call.
func buildPrompt(rec *model.ProfileRecord, req Request) string {
	p := rec.Profile
	var b strings.Builder

	fmt.Fprintf(&b, "Write %d distinct drafts for %s.\n\n", req.Count, rec.CompanyName)
	fmt.Fprintf(&b, "Format: %s\n", platformGuides[req.Platform])
	if req.Topic != "" {
		fmt.Fprintf(&b, "Topic: %s\n", req.Topic)
	}

	tone := req.Tone
	if tone == "" {
		tone = p.BrandTone
	}

	b.WriteString("\nBrand profile:\n")
	writeField(&b, "Industry", p.Industry)
	writeField(&b, "Business type", p.BusinessType)
	writeField(&b, "Target audience", p.TargetAudience)
	writeField(&b, "Value proposition", p.UniqueValueProp)
	writeField(&b, "Tone", tone)
	writeField(&b, "Market position", p.MarketPosition)
	writeList(&b, "Key services", p.KeyServices)
	writeList(&b, "Audience pain points", p.AudiencePainPoints)
	writeList(&b, "Audience goals", p.AudienceGoals)
	writeList(&b, "Content goals", p.ContentGoals)
	writeList(&b, "SEO keywords", p.SEOKeywords)
	writeList(&b, "Recent news", p.RecentNews)

	return strings.TrimSpace(b.String())
}

func writeField(b *strings.Builder, label, value string) {
	if value = strings.TrimSpace(value); value != "" {
		fmt.Fprintf(b, "- %s: %s\n", label, value)
	}
}

func writeList(b *strings.Builder, label string, items []string) {
	if len(items) > 0 {
		fmt.Fprintf(b, "- %s: %s\n", label, strings.Join(items, "; "))
	}
}
