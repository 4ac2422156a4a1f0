package proxy

import (
	"encoding/json"
	"net/http"
	"regexp"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
)

type entryView struct {
	Key       string    `json:"key"`
	Status    int       `json:"status"`
	Size      int       `json:"size"`
	StoredAt  time.Time `json:"stored_at"`
	ExpiresAt time.Time `json:"expires_at"`
	Expired   bool      `json:"expired"`
}

// adminRouter serves requests addressed to the proxy itself
func (s *Server) adminRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/cache/size", s.handleCacheSize)
	r.Get("/cache/entries", s.handleListEntries)
	r.Delete("/cache", s.handleClearCache)
	r.Delete("/cache/entries", s.handleInvalidate)

	return r
}

func (s *Server) handleCacheSize(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]int{"size": s.cache.Size()})
}

func (s *Server) handleListEntries(w http.ResponseWriter, _ *http.Request) {
	now := time.Now()
	entries := s.cache.Entries()
	views := make([]entryView, 0, len(entries))
	for key, e := range entries {
		views = append(views, entryView{
			Key:       key,
			Status:    e.Status,
			Size:      len(e.Data),
			StoredAt:  e.Timestamp,
			ExpiresAt: e.ExpiresAt(),
			Expired:   e.Expired(now),
		})
	}
	sort.Slice(views, func(i, j int) bool { return views[i].Key < views[j].Key })
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleClearCache(w http.ResponseWriter, _ *http.Request) {
	s.cache.Clear()
	logrus.Infof("Cache cleared")
	w.WriteHeader(http.StatusNoContent)
}

// handleInvalidate removes entries by exact key, by substring (match) or by
// regular expression (regexp)
func (s *Server) handleInvalidate(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var removed int
	switch {
	case q.Has("key"):
		before := s.cache.Size()
		s.cache.Delete(q.Get("key"))
		removed = before - s.cache.Size()
	case q.Has("match"):
		removed = s.cache.InvalidateByURL(q.Get("match"))
	case q.Has("regexp"):
		re, err := regexp.Compile(q.Get("regexp"))
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		removed = s.cache.InvalidateByRegexp(re)
	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "one of key, match or regexp is required"})
		return
	}

	logrus.Infof("Invalidated %d cache entries", removed)
	writeJSON(w, http.StatusOK, map[string]int{"removed": removed})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logrus.Errorf("Failed to write admin response: %v", err)
	}
}
