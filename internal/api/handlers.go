package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/sells-group/brand-research/internal/content"
	"github.com/sells-group/brand-research/internal/model"
	"github.com/sells-group/brand-research/internal/research"
	"github.com/sells-group/brand-research/internal/store"
)

type extractRequest struct {
	Text string `json:"text"`
	Mode string `json:"mode,omitempty"`
}

type researchRequest struct {
	CompanyName string `json:"company_name"`
	Website     string `json:"website,omitempty"`
	Mode        string `json:"mode,omitempty"`
}

type scheduleRequest struct {
	ScheduledAt *time.Time `json:"scheduled_at"`
}

type contentResponse struct {
	Posts []model.Post `json:"posts"`
}

type listResponse[T any] struct {
	Items  []T `json:"items"`
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	defer r.Body.Close() //nolint:errcheck
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		httpError(w, http.StatusBadRequest, "invalid request body: %v", err)
		return false
	}
	return true
}

func parseMode(w http.ResponseWriter, raw string, def model.ExtractionMode) (model.ExtractionMode, bool) {
	if strings.TrimSpace(raw) == "" {
		return def, true
	}
	m, ok := model.ParseExtractionMode(raw)
	if !ok {
		httpError(w, http.StatusBadRequest, "unknown mode %q: want regex, ai or auto", raw)
	}
	return m, ok
}

// pageParams reads limit and offset. Invalid values fall back to zero and the
// store applies its default page size.
func pageParams(r *http.Request) (limit, offset int) {
	limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ = strconv.Atoi(r.URL.Query().Get("offset"))
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func handleHealth(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body := map[string]any{"status": "ok"}
		code := http.StatusOK

		if deps.Store != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
			defer cancel()
			if err := deps.Store.Ping(ctx); err != nil {
				body["status"] = "degraded"
				body["store"] = err.Error()
				code = http.StatusServiceUnavailable
			}
		}
		if deps.Breakers != nil {
			states := make(map[string]string)
			for name, st := range deps.Breakers.States() {
				states[name] = st.String()
			}
			body["breakers"] = states
		}
		writeJSON(w, code, body)
	}
}

func handleExtract(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req extractRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if strings.TrimSpace(req.Text) == "" {
			httpError(w, http.StatusBadRequest, "text is required")
			return
		}
		mode, ok := parseMode(w, req.Mode, deps.DefaultMode)
		if !ok {
			return
		}

		profile, err := deps.Research.ExtractText(r.Context(), req.Text, mode)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, profile)
	}
}

func handleResearch(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req researchRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if strings.TrimSpace(req.CompanyName) == "" {
			httpError(w, http.StatusBadRequest, "company_name is required")
			return
		}
		mode, ok := parseMode(w, req.Mode, deps.DefaultMode)
		if !ok {
			return
		}

		rec, err := deps.Research.Run(r.Context(), research.Request{
			ProfileID:   chi.URLParam(r, "id"),
			CompanyName: req.CompanyName,
			Website:     req.Website,
			Mode:        mode,
		})
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, rec)
	}
}

func handleListProfiles(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, offset := pageParams(r)
		recs, err := deps.Store.ListProfiles(r.Context(), limit, offset)
		if err != nil {
			writeError(w, r, err)
			return
		}
		if recs == nil {
			recs = []model.ProfileRecord{}
		}
		writeJSON(w, http.StatusOK, listResponse[model.ProfileRecord]{Items: recs, Limit: limit, Offset: offset})
	}
}

func handleGetProfile(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec, err := deps.Store.GetProfile(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, rec)
	}
}

func handleContent(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req content.Request
		if !decodeBody(w, r, &req) {
			return
		}

		rec, err := deps.Store.GetProfile(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		posts, err := deps.Content.Generate(r.Context(), rec, req)
		if err != nil {
			writeError(w, r, err)
			return
		}
		if err := deps.Store.CreatePosts(r.Context(), posts); err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, contentResponse{Posts: posts})
	}
}

func handleListPosts(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		limit, offset := pageParams(r)
		filter := store.PostFilter{
			ProfileID: q.Get("profile_id"),
			Status:    model.PostStatus(q.Get("status")),
			Limit:     limit,
			Offset:    offset,
		}
		posts, err := deps.Store.ListPosts(r.Context(), filter)
		if err != nil {
			writeError(w, r, err)
			return
		}
		if posts == nil {
			posts = []model.Post{}
		}
		writeJSON(w, http.StatusOK, listResponse[model.Post]{Items: posts, Limit: limit, Offset: offset})
	}
}

func handleGetPost(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		post, err := deps.Store.GetPost(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, post)
	}
}

func handleSchedule(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req scheduleRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if req.ScheduledAt == nil || req.ScheduledAt.IsZero() {
			httpError(w, http.StatusBadRequest, "scheduled_at is required")
			return
		}

		post, err := deps.Store.SchedulePost(r.Context(), chi.URLParam(r, "id"), req.ScheduledAt.UTC())
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, post)
	}
}
