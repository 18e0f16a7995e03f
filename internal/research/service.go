// Package research runs the web-grounded research queries for a company,
// turns the combined report into an ExtractedProfile and persists the result.
package research

import (
	"context"
	"errors"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/brand-research/internal/aiextract"
	"github.com/sells-group/brand-research/internal/cost"
	"github.com/sells-group/brand-research/internal/llm"
	"github.com/sells-group/brand-research/internal/model"
	"github.com/sells-group/brand-research/internal/normalize"
	"github.com/sells-group/brand-research/internal/store"
	"github.com/sells-group/brand-research/pkg/jina"
)

var (
	// ErrInvalidRequest is returned when a request is missing required fields.
	ErrInvalidRequest = eris.New("research: invalid request")
	// ErrAIUnavailable is returned for ai mode when no extractor is configured.
	ErrAIUnavailable = eris.New("research: ai extraction not configured")
)

// Config tunes a research run.
type Config struct {
	Model          string
	MaxTokens      int
	Temperature    float64
	MaxReportChars int
	MaxSiteChars   int
	Concurrency    int
	Queries        []Query
	Defaults       model.ProfileDefaults
}

// DefaultConfig returns the research settings used when none are configured.
func DefaultConfig() Config {
	return Config{
		MaxTokens:      1200,
		Temperature:    0.2,
		MaxReportChars: 6000,
		MaxSiteChars:   4000,
		Concurrency:    4,
		Queries:        DefaultQueries(),
		Defaults:       model.DefaultProfileDefaults(),
	}
}

// Deps are the collaborators of a Service. Reader, Extractor and Store are
// optional.
type Deps struct {
	Research   llm.Generator
	Normalizer *normalize.Normalizer
	Extractor  *aiextract.Extractor
	Reader     jina.Client
	Store      store.Store
	Costs      *cost.Calculator
}

// Request identifies the company to research.
type Request struct {
	ProfileID   string               `json:"profile_id"`
	CompanyName string               `json:"company_name"`
	Website     string               `json:"website,omitempty"`
	Mode        model.ExtractionMode `json:"mode,omitempty"`
}

// Service orchestrates research runs. It is safe for concurrent use.
type Service struct {
	deps Deps
	cfg  Config
}

// New creates a Service. Zero settings fall back to DefaultConfig.
func New(deps Deps, cfg Config) *Service {
	def := DefaultConfig()
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = def.MaxTokens
	}
	if cfg.MaxReportChars <= 0 {
		cfg.MaxReportChars = def.MaxReportChars
	}
	if cfg.MaxSiteChars <= 0 {
		cfg.MaxSiteChars = def.MaxSiteChars
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = def.Concurrency
	}
	if len(cfg.Queries) == 0 {
		cfg.Queries = def.Queries
	}
	if deps.Normalizer == nil {
		deps.Normalizer = normalize.New(nil)
	}
	if deps.Costs == nil {
		deps.Costs = cost.NewCalculator(cost.DefaultRates())
	}
	return &Service{deps: deps, cfg: cfg}
}

// Run researches one company and returns the persisted record.
func (s *Service) Run(ctx context.Context, req Request) (*model.ProfileRecord, error) {
	req.ProfileID = strings.TrimSpace(req.ProfileID)
	req.CompanyName = strings.TrimSpace(req.CompanyName)
	if req.ProfileID == "" || req.CompanyName == "" {
		return nil, eris.Wrap(ErrInvalidRequest, "profile id and company name are required")
	}
	mode, ok := model.ParseExtractionMode(string(req.Mode))
	if !ok {
		return nil, eris.Wrapf(ErrInvalidRequest, "unknown mode %q", req.Mode)
	}

	log := zap.L().With(zap.String("profile_id", req.ProfileID), zap.String("company", req.CompanyName))
	log.Info("research: starting", zap.String("mode", string(mode)))

	var (
		usage     model.TokenUsage
		totalCost float64
	)

	site, siteCost := s.readSite(ctx, req.Website, log)
	totalCost += siteCost

	answers, err := s.ask(ctx, req, site)
	if err != nil {
		return nil, err
	}

	sources := newSourceList()
	parts := make([]string, 0, len(answers))
	for i, resp := range answers {
		text := sources.renumber(strings.TrimSpace(resp.Text), resp.Citations)
		parts = append(parts, "## "+s.cfg.Queries[i].Section+"\n"+text)
		usage.Add(model.TokenUsage{
			InputTokens:  resp.Usage.InputTokens,
			OutputTokens: resp.Usage.OutputTokens,
			Queries:      1,
		})
		totalCost += s.deps.Costs.Response(resp)
	}
	report := truncateRunes(strings.Join(parts, "\n\n"), s.cfg.MaxReportChars)

	ext, err := s.extract(ctx, report, mode)
	if err != nil {
		return nil, err
	}
	usage.Add(ext.usage)
	totalCost += ext.cost

	rec := &model.ProfileRecord{
		ID:          req.ProfileID,
		CompanyName: req.CompanyName,
		Website:     req.Website,
		Mode:        ext.mode,
		Profile:     ext.profile,
		Report:      report,
		Sources:     sources.urls,
		Usage:       usage,
		Cost:        totalCost,
	}

	if s.deps.Store != nil {
		if err := s.deps.Store.SaveProfile(ctx, rec); err != nil {
			return nil, eris.Wrap(err, "research: save profile")
		}
	}

	log.Info("research: complete",
		zap.String("mode", string(ext.mode)),
		zap.Int("report_chars", utf8.RuneCountInString(report)),
		zap.Int("sources", len(rec.Sources)),
		zap.Float64("cost_usd", totalCost),
	)
	return rec, nil
}

var citationMarkerRe = regexp.MustCompile(`\[(\d+)\]`)

// sourceList merges citation URLs across answers in first-seen order.
type sourceList struct {
	urls  []string
	index map[string]int
}

func newSourceList() *sourceList {
	return &sourceList{urls: make([]string, 0), index: make(map[string]int)}
}

// add returns the 1-based position of url, appending it when new. Blank
// urls get 0.
func (l *sourceList) add(url string) int {
	url = strings.TrimSpace(url)
	if url == "" {
		return 0
	}
	if i, ok := l.index[url]; ok {
		return i
	}
	l.urls = append(l.urls, url)
	l.index[url] = len(l.urls)
	return len(l.urls)
}

// renumber registers an answer's citations and rewrites its [n] markers,
// which count from 1 per answer, to positions in the merged list. Markers
// with no matching citation are dropped. Text of an answer without
// citations is returned as is.
func (l *sourceList) renumber(text string, citations []string) string {
	if len(citations) == 0 {
		return text
	}
	pos := make([]int, len(citations))
	for i, c := range citations {
		pos[i] = l.add(c)
	}
	return citationMarkerRe.ReplaceAllStringFunc(text, func(m string) string {
		n, err := strconv.Atoi(m[1 : len(m)-1])
		if err != nil || n < 1 || n > len(pos) || pos[n-1] == 0 {
			return ""
		}
		return "[" + strconv.Itoa(pos[n-1]) + "]"
	})
}

// ExtractText turns an existing report into a profile without researching
// or persisting anything.
func (s *Service) ExtractText(ctx context.Context, text string, mode model.ExtractionMode) (model.ExtractedProfile, error) {
	m, ok := model.ParseExtractionMode(string(mode))
	if !ok {
		return model.ExtractedProfile{}, eris.Wrapf(ErrInvalidRequest, "unknown mode %q", mode)
	}
	ext, err := s.extract(ctx, text, m)
	if err != nil {
		return model.ExtractedProfile{}, err
	}
	return ext.profile, nil
}

func (s *Service) readSite(ctx context.Context, website string, log *zap.Logger) (string, float64) {
	if s.deps.Reader == nil || strings.TrimSpace(website) == "" {
		return "", 0
	}
	resp, err := s.deps.Reader.Read(ctx, website)
	if err != nil {
		log.Warn("research: website read failed, continuing without it",
			zap.String("website", website), zap.Error(err))
		return "", 0
	}
	content := normalize.Clean(resp.Data.Content)
	return truncateRunes(content, s.cfg.MaxSiteChars), s.deps.Costs.Jina(resp.Data.Usage.Tokens)
}

// ask runs every query in parallel. Answers are returned in query order.
func (s *Service) ask(ctx context.Context, req Request, site string) ([]*llm.Response, error) {
	answers := make([]*llm.Response, len(s.cfg.Queries))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Concurrency)
	for i, q := range s.cfg.Queries {
		g.Go(func() error {
			resp, err := s.deps.Research.Generate(gCtx, llm.Request{
				Model: s.cfg.Model,
				Messages: []llm.Message{
					llm.System(systemPrompt),
					llm.User(renderPrompt(q, req.CompanyName, req.Website, site)),
				},
				MaxTokens:   s.cfg.MaxTokens,
				Temperature: llm.Temperature(s.cfg.Temperature),
			})
			if err != nil {
				return eris.Wrapf(err, "research: query %q", q.Section)
			}
			answers[i] = resp
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return answers, nil
}

type extraction struct {
	profile model.ExtractedProfile
	mode    model.ExtractionMode
	usage   model.TokenUsage
	cost    float64
}

func (s *Service) extract(ctx context.Context, text string, mode model.ExtractionMode) (*extraction, error) {
	if mode == model.ExtractionModeRegex || (mode == model.ExtractionModeAuto && s.deps.Extractor == nil) {
		return s.extractRegex(text), nil
	}
	if s.deps.Extractor == nil {
		return nil, ErrAIUnavailable
	}

	res, err := s.deps.Extractor.Extract(ctx, text)
	if err != nil {
		if mode == model.ExtractionModeAI || ctx.Err() != nil || errors.Is(err, context.Canceled) {
			return nil, eris.Wrap(err, "research: ai extraction")
		}
		zap.L().Warn("research: ai extraction failed, falling back to regex", zap.Error(err))
		return s.extractRegex(text), nil
	}

	p := res.Profile
	if len(p.Citations) == 0 {
		p.Citations = normalize.ExtractCitations(text)
	}
	if len(p.Sections) == 0 {
		p.Sections = normalize.ExtractSections(text)
	}
	var calls int
	if res.Provider != "" {
		calls = 1
	}
	return &extraction{
		profile: p.WithDefaults(s.cfg.Defaults),
		mode:    model.ExtractionModeAI,
		usage:   model.TokenUsage{InputTokens: res.Usage.InputTokens, OutputTokens: res.Usage.OutputTokens, Queries: calls},
		cost:    s.deps.Costs.Tokens(res.Model, res.Usage.InputTokens, res.Usage.OutputTokens),
	}, nil
}

func (s *Service) extractRegex(text string) *extraction {
	return &extraction{
		profile: s.deps.Normalizer.Extract(text).WithDefaults(s.cfg.Defaults),
		mode:    model.ExtractionModeRegex,
	}
}

func truncateRunes(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
