// Package content drafts platform-specific social posts from a researched
// brand profile.
package content

import (
	"context"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/brand-research/internal/llm"
	"github.com/sells-group/brand-research/internal/model"
	"github.com/sells-group/brand-research/internal/normalize"
)

var (
	// ErrInvalidRequest is returned for an unknown platform or empty profile.
	ErrInvalidRequest = eris.New("content: invalid request")
	// ErrNotConfigured is returned when no generation provider is set.
	ErrNotConfigured = eris.New("content: no generation provider configured")
)

// PlatformLimits caps draft length in runes. Zero means unlimited.
var PlatformLimits = map[model.Platform]int{
	model.PlatformTwitter:   280,
	model.PlatformLinkedIn:  3000,
	model.PlatformInstagram: 2200,
	model.PlatformFacebook:  5000,
	model.PlatformBlog:      0,
}

const (
	defaultCount = 3
	maxCount     = 10
)

var (
	separatorRe  = regexp.MustCompile(`(?m)^[ \t]*-{3,}[ \t]*$`)
	draftLabelRe = regexp.MustCompile(`(?i)^(?:\*\*)?(?:post|draft|option|tweet)\s*#?\d+(?:\*\*)?\s*[:.)\-](?:\*\*)?\s*`)
)

// Config tunes draft generation.
type Config struct {
	Model       string
	MaxTokens   int
	Temperature float64
}

// Request selects what to write.
type Request struct {
	Platform model.Platform `json:"platform"`
	Topic    string         `json:"topic,omitempty"`
	Count    int            `json:"count,omitempty"`
	Tone     string         `json:"tone,omitempty"`
}

// Generator writes drafts with an LLM.
type Generator struct {
	gen llm.Generator
	cfg Config
}

// New creates a Generator. A nil gen yields a Generator that always returns
// ErrNotConfigured.
func New(gen llm.Generator, cfg Config) *Generator {
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 2000
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = 0.7
	}
	return &Generator{gen: gen, cfg: cfg}
}

// Generate returns up to req.Count draft posts for rec. The posts are not
// persisted and carry no ID.
func (g *Generator) Generate(ctx context.Context, rec *model.ProfileRecord, req Request) ([]model.Post, error) {
	if g.gen == nil {
		return nil, ErrNotConfigured
	}
	if rec == nil || strings.TrimSpace(rec.ID) == "" {
		return nil, eris.Wrap(ErrInvalidRequest, "profile is required")
	}
	if !req.Platform.Valid() {
		return nil, eris.Wrapf(ErrInvalidRequest, "unknown platform %q", req.Platform)
	}
	switch {
	case req.Count <= 0:
		req.Count = defaultCount
	case req.Count > maxCount:
		req.Count = maxCount
	}
	req.Topic = strings.TrimSpace(req.Topic)

	resp, err := g.gen.Generate(ctx, llm.Request{
		Model: g.cfg.Model,
		Messages: []llm.Message{
			llm.System(systemPrompt),
			llm.User(buildPrompt(rec, req)),
		},
		MaxTokens:   g.cfg.MaxTokens,
		Temperature: llm.Temperature(g.cfg.Temperature),
	})
	if err != nil {
		return nil, eris.Wrap(err, "content: generate")
	}

	drafts := SplitDrafts(resp.Text)
	if len(drafts) == 0 {
		return nil, eris.Wrap(llm.ErrEmptyResponse, "content: no drafts")
	}
	if len(drafts) > req.Count {
		drafts = drafts[:req.Count]
	}

	limit := PlatformLimits[req.Platform]
	posts := make([]model.Post, 0, len(drafts))
	for _, d := range drafts {
		if limit > 0 && utf8.RuneCountInString(d) > limit {
			zap.L().Debug("content: truncating draft",
				zap.String("platform", string(req.Platform)),
				zap.Int("runes", utf8.RuneCountInString(d)),
				zap.Int("limit", limit),
			)
			d = Truncate(d, limit)
		}
		posts = append(posts, model.Post{
			ProfileID: rec.ID,
			Platform:  req.Platform,
			Topic:     req.Topic,
			Content:   d,
			Status:    model.PostStatusDraft,
		})
	}
	return posts, nil
}

// SplitDrafts splits a model answer into drafts on "---" lines, dropping
// reasoning blocks, "Post 1:" style labels and empty drafts.
func SplitDrafts(text string) []string {
	text = strings.TrimSpace(normalize.StripThinking(text))
	if text == "" {
		return nil
	}
	var out []string
	for _, part := range separatorRe.Split(text, -1) {
		part = strings.TrimSpace(draftLabelRe.ReplaceAllString(strings.TrimSpace(part), ""))
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Truncate shortens s to at most limit runes, cutting at a word boundary
// and ending with an ellipsis.
func Truncate(s string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	r := []rune(s)[:limit-1]
	cut := len(r)
	for i := len(r) - 1; i > 0; i-- {
		if unicode.IsSpace(r[i]) {
			cut = i
			break
		}
	}
	return strings.TrimRightFunc(string(r[:cut]), func(c rune) bool {
		return unicode.IsSpace(c) || unicode.IsPunct(c)
	}) + "…"
}
