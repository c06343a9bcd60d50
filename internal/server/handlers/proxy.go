package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/charybdis/charybdis/internal/core"
	apperrors "github.com/charybdis/charybdis/internal/errors"
)

// APIClient is the subset of the Hi-Rez client the proxy routes need.
type APIClient interface {
	Ping(ctx context.Context) (string, error)
	CallMethod(ctx context.Context, method string, args ...string) (json.RawMessage, error)
	Session() (core.Session, bool)
	BaseURL() string
}

// Proxy exposes the Hi-Rez client over HTTP. Credentials stay server side.
type Proxy struct {
	Client APIClient
}

// PingResponse wraps the upstream ping text.
type PingResponse struct {
	Message string `json:"message"`
}

// SessionResponse describes the cached session without leaking the token.
type SessionResponse struct {
	Active    bool       `json:"active"`
	SessionID string     `json:"session_id,omitempty"`
	BaseURL   string     `json:"base_url"`
	CreatedAt *time.Time `json:"created_at,omitempty"`
	Age       string     `json:"age,omitempty"`
}

// Ping handles GET /v1/ping.
func (p Proxy) Ping(w http.ResponseWriter, r *http.Request) {
	text, err := p.Client.Ping(r.Context())
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, PingResponse{Message: text})
}

// CallMethod handles GET /v1/methods/{method}/*. Each trailing path segment
// becomes one positional argument.
func (p Proxy) CallMethod(w http.ResponseWriter, r *http.Request) {
	method := strings.TrimSpace(chi.URLParam(r, "method"))
	if method == "" {
		respondWithError(w, r, apperrors.NewInvalidInputError("method is required"))
		return
	}

	args, err := splitArgs(methodArgsPath(r))
	if err != nil {
		respondWithError(w, r, apperrors.WrapInvalidInput(r.Context(), err, "invalid method argument"))
		return
	}

	body, err := p.Client.CallMethod(r.Context(), method, args...)
	if err != nil {
		respondWithError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

// Session handles GET /v1/session.
func (p Proxy) Session(w http.ResponseWriter, r *http.Request) {
	resp := SessionResponse{BaseURL: p.Client.BaseURL()}
	if session, ok := p.Client.Session(); ok {
		created := session.CreatedAt
		resp.Active = true
		resp.SessionID = MaskSessionID(session.ID)
		resp.CreatedAt = &created
		resp.Age = session.Age(time.Now()).Truncate(time.Second).String()
	}
	writeJSON(w, http.StatusOK, resp)
}

// MaskSessionID keeps the first and last four characters of id.
func MaskSessionID(id string) string {
	if len(id) <= 8 {
		return strings.Repeat("*", len(id))
	}
	return id[:4] + strings.Repeat("*", len(id)-8) + id[len(id)-4:]
}

// methodArgsPath returns the still-escaped path after /methods/{method}/.
// The routed path is already unescaped, so an argument holding a literal %
// or / can only be recovered from the escaped form.
func methodArgsPath(r *http.Request) string {
	const marker = "/methods/"
	path := r.URL.EscapedPath()
	i := strings.Index(path, marker)
	if i < 0 {
		return ""
	}
	rest := path[i+len(marker):]
	j := strings.IndexByte(rest, '/')
	if j < 0 {
		return ""
	}
	return rest[j+1:]
}

// splitArgs unescapes each segment of an escaped path exactly once.
func splitArgs(raw string) ([]string, error) {
	raw = strings.Trim(raw, "/")
	if raw == "" {
		return nil, nil
	}
	parts := strings.Split(raw, "/")
	args := make([]string, 0, len(parts))
	for _, part := range parts {
		arg, err := url.PathUnescape(part)
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
	}
	return args, nil
}

func respondWithError(w http.ResponseWriter, r *http.Request, err error) {
	apperrors.RespondWithError(w, r, err)
}
