// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 avatar-switch Contributors

// Package vrchattest provides an in-process fake of the VRChat API for tests.
package vrchattest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/oklog/ulid/v2"

	"github.com/vrcswitch/avatar-switch/internal/vrchat"
)

// Operation names counted by Server.Calls.
const (
	OpLogin        = "login"
	OpCurrentUser  = "current_user"
	OpVerify       = "verify"
	OpFavorites    = "favorites"
	OpSelectAvatar = "select_avatar"
	OpLogout       = "logout"
)

// Server is a fake VRChat API backed by httptest.Server.
type Server struct {
	*httptest.Server

	mu sync.Mutex

	username     string
	password     string
	secondFactor []string
	codes        map[string]string
	favorites    []vrchat.Avatar
	unavailable  map[string]bool

	token         string
	verified      bool
	currentAvatar string
	calls         map[string]int
	failures      map[string][]int
	userAgents    []string
}

// Option configures a Server.
type Option func(*Server)

// WithSecondFactor requires a second factor after password login. codes maps
// a method path segment ("totp", "otp", "emailotp") to its valid code.
func WithSecondFactor(methods []string, codes map[string]string) Option {
	return func(s *Server) {
		s.secondFactor = methods
		for k, v := range codes {
			s.codes[strings.ToLower(k)] = v
		}
	}
}

// WithFavorites sets the favorited avatars.
func WithFavorites(avatars ...vrchat.Avatar) Option {
	return func(s *Server) {
		s.favorites = append(s.favorites, avatars...)
	}
}

// WithUnavailable makes selecting the given avatar ids return 404.
func WithUnavailable(ids ...string) Option {
	return func(s *Server) {
		for _, id := range ids {
			s.unavailable[id] = true
		}
	}
}

// NewServer starts a fake API that accepts username/password. Close it when
// done.
func NewServer(username, password string, opts ...Option) *Server {
	s := &Server{
		username:    username,
		password:    password,
		codes:       map[string]string{},
		unavailable: map[string]bool{},
		calls:       map[string]int{},
		failures:    map[string][]int{},
	}
	for _, opt := range opts {
		opt(s)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/1/auth/user", s.handleAuthUser)
	mux.HandleFunc("POST /api/1/auth/twofactorauth/{method}/verify", s.handleVerify)
	mux.HandleFunc("GET /api/1/avatars/favorites", s.handleFavorites)
	mux.HandleFunc("PUT /api/1/avatars/{id}/select", s.handleSelect)
	mux.HandleFunc("PUT /api/1/logout", s.handleLogout)
	s.Server = httptest.NewServer(mux)
	return s
}

// BaseURL returns the API root to configure the client with.
func (s *Server) BaseURL() string {
	return s.URL + "/api/1"
}

// Calls returns how many requests reached the given operation.
func (s *Server) Calls(op string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[op]
}

// CurrentAvatar returns the id of the last selected avatar.
func (s *Server) CurrentAvatar() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentAvatar
}

// UserAgents returns every User-Agent header received.
func (s *Server) UserAgents() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.userAgents...)
}

// ExpireSession invalidates the issued session token server-side.
func (s *Server) ExpireSession() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	s.verified = false
}

// SessionToken returns the currently valid auth cookie value.
func (s *Server) SessionToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

// FailNext makes the next len(statuses) requests to op answer with the
// given statuses, in order.
func (s *Server) FailNext(op string, statuses ...int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[op] = append(s.failures[op], statuses...)
}

// begin records a call and reports an injected failure status, if any.
// Callers hold s.mu.
func (s *Server) begin(w http.ResponseWriter, r *http.Request, op string) bool {
	s.calls[op]++
	s.userAgents = append(s.userAgents, r.UserAgent())
	if queued := s.failures[op]; len(queued) > 0 {
		s.failures[op] = queued[1:]
		writeJSON(w, queued[0], map[string]any{"error": map[string]any{"message": "injected failure", "status_code": queued[0]}})
		return true
	}
	return false
}

func (s *Server) authenticated(r *http.Request) bool {
	cookie, err := r.Cookie(vrchat.AuthCookie)
	return err == nil && s.token != "" && cookie.Value == s.token
}

func (s *Server) handleAuthUser(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rawUser, rawPass, ok := r.BasicAuth(); ok {
		if s.begin(w, r, OpLogin) {
			return
		}
		user, _ := url.QueryUnescape(rawUser)
		pass, _ := url.QueryUnescape(rawPass)
		if user != s.username || pass != s.password {
			writeError(w, http.StatusUnauthorized, "Invalid Username/Email or Password")
			return
		}
		s.token = "authcookie_" + ulid.Make().String()
		s.verified = len(s.secondFactor) == 0
		http.SetCookie(w, &http.Cookie{Name: vrchat.AuthCookie, Value: s.token, Path: "/", MaxAge: 7 * 24 * 3600, HttpOnly: true})
		s.writeUserOrChallenge(w)
		return
	}

	if s.begin(w, r, OpCurrentUser) {
		return
	}
	if !s.authenticated(r) {
		writeError(w, http.StatusUnauthorized, "Missing Credentials")
		return
	}
	s.writeUserOrChallenge(w)
}

func (s *Server) writeUserOrChallenge(w http.ResponseWriter) {
	if !s.verified {
		writeJSON(w, http.StatusOK, map[string]any{"requiresTwoFactorAuth": s.secondFactor})
		return
	}
	writeJSON(w, http.StatusOK, s.user())
}

func (s *Server) user() vrchat.User {
	return vrchat.User{
		ID:            "usr_00000000-0000-0000-0000-000000000001",
		Username:      strings.ToLower(s.username),
		DisplayName:   s.username,
		CurrentAvatar: s.currentAvatar,
	}
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.begin(w, r, OpVerify) {
		return
	}
	if !s.authenticated(r) {
		writeError(w, http.StatusUnauthorized, "Missing Credentials")
		return
	}
	var body struct {
		Code string `json:"code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "malformed body")
		return
	}
	want, ok := s.codes[strings.ToLower(r.PathValue("method"))]
	if !ok || body.Code != want {
		writeJSON(w, http.StatusBadRequest, map[string]any{"verified": false})
		return
	}
	s.verified = true
	http.SetCookie(w, &http.Cookie{Name: "twoFactorAuth", Value: "tfa_" + ulid.Make().String(), Path: "/", MaxAge: 30 * 24 * 3600})
	writeJSON(w, http.StatusOK, map[string]any{"verified": true})
}

func (s *Server) handleFavorites(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.begin(w, r, OpFavorites) {
		return
	}
	if !s.authenticated(r) || !s.verified {
		writeError(w, http.StatusUnauthorized, "Missing Credentials")
		return
	}
	n, err := strconv.Atoi(r.URL.Query().Get("n"))
	if err != nil || n <= 0 {
		n = 60
	}
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	if offset > len(s.favorites) {
		offset = len(s.favorites)
	}
	end := min(offset+n, len(s.favorites))
	page := s.favorites[offset:end]
	if page == nil {
		page = []vrchat.Avatar{}
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.begin(w, r, OpSelectAvatar) {
		return
	}
	if !s.authenticated(r) || !s.verified {
		writeError(w, http.StatusUnauthorized, "Missing Credentials")
		return
	}
	id := r.PathValue("id")
	if s.unavailable[id] {
		writeError(w, http.StatusNotFound, "Avatar "+id+" not found")
		return
	}
	s.currentAvatar = id
	writeJSON(w, http.StatusOK, s.user())
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.begin(w, r, OpLogout) {
		return
	}
	if !s.authenticated(r) {
		writeError(w, http.StatusUnauthorized, "Missing Credentials")
		return
	}
	s.token = ""
	s.verified = false
	http.SetCookie(w, &http.Cookie{Name: vrchat.AuthCookie, Value: "", Path: "/", MaxAge: -1})
	writeJSON(w, http.StatusOK, map[string]any{"success": map[string]any{"message": "Ok!", "status_code": 200}})
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": map[string]any{"message": message, "status_code": status}})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
