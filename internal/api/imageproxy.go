package api

import (
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
)

// imageFetchTimeout bounds a single upstream image fetch.
const imageFetchTimeout = 20 * time.Second

// imageClient is shared by all proxy requests; redirects are followed
// because the media host serves through a CDN.
var imageClient = &http.Client{Timeout: imageFetchTimeout}

// handleImageProxy relays zone imagery from the cloud's media host.
//
// Zone records reference images on a host that HTTPS-only dashboards
// cannot always load directly (mixed-content rules). The bridge fetches
// on the consumer's behalf and serves the bytes from its own origin.
func (s *Server) handleImageProxy(w http.ResponseWriter, r *http.Request) {
	path := chi.URLParam(r, "*")
	if path == "" || strings.Contains(path, "..") {
		writeBadRequest(w, "invalid image path")
		return
	}

	target := strings.TrimSuffix(s.imgCfg.BaseURL, "/") + "/" + path
	if raw := r.URL.RawQuery; raw != "" {
		target += "?" + raw
	}

	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, target, nil)
	if err != nil {
		writeBadRequest(w, "invalid image path")
		return
	}

	resp, err := imageClient.Do(req)
	if err != nil {
		s.logger.Warn("image fetch failed", "target", target, "error", err)
		writeError(w, http.StatusBadGateway, ErrCodeUpstream, "image fetch failed")
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		writeError(w, resp.StatusCode, ErrCodeUpstream, "media host returned "+resp.Status)
		return
	}

	if ct := resp.Header.Get("Content-Type"); ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	if cl := resp.Header.Get("Content-Length"); cl != "" {
		w.Header().Set("Content-Length", cl)
	}
	// Imagery changes rarely; let consumers cache for a day.
	w.Header().Set("Cache-Control", "public, max-age=86400")

	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, resp.Body); err != nil {
		s.logger.Debug("image relay interrupted", "target", target, "error", err)
	}
}
