package model

import "time"

// ProfileRecord is the persisted outcome of researching one client brand.
// ID is supplied by the caller (team or profile id) and is the upsert key.
type ProfileRecord struct {
	ID          string           `json:"id"`
	CompanyName string           `json:"company_name"`
	Website     string           `json:"website,omitempty"`
	Mode        ExtractionMode   `json:"mode"`
	Profile     ExtractedProfile `json:"profile"`
	Report      string           `json:"report,omitempty"`
	Sources     []string         `json:"sources,omitempty"` // provider citation URLs
	Usage       TokenUsage       `json:"usage"`
	Cost        float64          `json:"cost"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

// TokenUsage tracks token consumption across the LLM calls of a run.
type TokenUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	Queries      int `json:"queries"`
}

// Add accumulates other into u.
func (u *TokenUsage) Add(other TokenUsage) {
	u.InputTokens += other.InputTokens
	u.OutputTokens += other.OutputTokens
	u.Queries += other.Queries
}

// Platform is a publishing destination.
type Platform string

const (
	PlatformLinkedIn  Platform = "linkedin"
	PlatformTwitter   Platform = "twitter"
	PlatformFacebook  Platform = "facebook"
	PlatformInstagram Platform = "instagram"
	PlatformBlog      Platform = "blog"
)

// Valid reports whether p is a supported platform.
func (p Platform) Valid() bool {
	switch p {
	case PlatformLinkedIn, PlatformTwitter, PlatformFacebook, PlatformInstagram, PlatformBlog:
		return true
	default:
		return false
	}
}

// PostStatus is the lifecycle state of a post.
type PostStatus string

const (
	PostStatusDraft      PostStatus = "draft"
	PostStatusScheduled  PostStatus = "scheduled"
	PostStatusPublishing PostStatus = "publishing"
	PostStatusPublished  PostStatus = "published"
	PostStatusFailed     PostStatus = "failed"
)

// Post is a generated piece of content and its publishing state.
type Post struct {
	ID          string     `json:"id"`
	ProfileID   string     `json:"profile_id"`
	Platform    Platform   `json:"platform"`
	Topic       string     `json:"topic,omitempty"`
	Content     string     `json:"content"`
	Status      PostStatus `json:"status"`
	ScheduledAt *time.Time `json:"scheduled_at,omitempty"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
	ExternalID  string     `json:"external_id,omitempty"`
	Error       string     `json:"error,omitempty"`
	Attempts    int        `json:"attempts"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}
