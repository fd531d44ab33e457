// Package apitest runs an in-memory implementation of the avitolog REST
// contract for tests. It is not a backend: nothing is persisted and there is no
// scraping; ingested listings get a title derived from their URL.
package apitest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/avitolog/avitolog/pkg/domain"
)

// Prefix is the path prefix the fake serves under.
const Prefix = "/api"

type account struct {
	user domain.User
	hash []byte
}

// Server is a running fake.
type Server struct {
	*httptest.Server

	mu       sync.Mutex
	nextID   int
	accounts map[string]*account // by email
	tokens   map[string]domain.ID
	listings []*domain.Listing
	comments []*domain.Comment

	omitOwnerFlag bool
	meFailures    int
	meFailStatus  int
	omitLoginUser bool
}

// TB is the part of testing.TB the fake needs.
type TB interface {
	Helper()
	Cleanup(func())
}

// New starts a fake and stops it when the test ends.
func New(t TB) *Server {
	t.Helper()
	s := &Server{
		accounts:     make(map[string]*account),
		tokens:       make(map[string]domain.ID),
		meFailStatus: http.StatusInternalServerError,
	}
	s.Server = httptest.NewServer(s.routes())
	t.Cleanup(s.Close)
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Route(Prefix, func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", s.handleRegister)
			r.Post("/login", s.handleLogin)
			r.Get("/me", s.handleMe)
		})
		r.Route("/listings", func(r chi.Router) {
			r.Get("/", s.handleListListings)
			r.Post("/ingest", s.handleIngest)
			r.Get("/{id}", s.handleGetListing)
			r.Get("/{id}/comments", s.handleListComments)
			r.Post("/{id}/comments", s.handleCreateComment)
		})
		r.Patch("/comments/{id}", s.handleUpdateComment)
		r.Delete("/comments/{id}", s.handleDeleteComment)
	})
	return r
}

// -- seeding helpers --

// AddUser creates an account and returns a valid token for it.
func (s *Server) AddUser(email, password, name string) (domain.User, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc := s.createAccountLocked(email, password, name)
	return acc.user, s.issueTokenLocked(acc.user.ID)
}

// SeedListing inserts a listing directly.
func (s *Server) SeedListing(rawURL, title string, views int) domain.Listing {
	s.mu.Lock()
	defer s.mu.Unlock()
	l := &domain.Listing{
		ID:        s.newIDLocked(),
		URL:       rawURL,
		Title:     title,
		ViewCount: views,
		CreatedAt: domain.NewTimestamp(time.Now().UTC()),
	}
	s.listings = append(s.listings, l)
	return *l
}

// SeedComment inserts a comment by the account with authorEmail.
func (s *Server) SeedComment(listingID domain.ID, authorEmail, content string) domain.Comment {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc := s.accounts[authorEmail]
	c := &domain.Comment{
		ID:        s.newIDLocked(),
		ListingID: listingID,
		Content:   content,
		CreatedAt: domain.NewTimestamp(time.Now().UTC()),
		UpdatedAt: domain.NewTimestamp(time.Now().UTC()),
	}
	if acc != nil {
		c.Author = domain.Author{ID: acc.user.ID, Email: acc.user.Email, Name: acc.user.Name}
	}
	s.comments = append(s.comments, c)
	return *c
}

// OmitOwnerFlag drops is_owner from comment payloads so clients must derive
// ownership themselves.
func (s *Server) OmitOwnerFlag(omit bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.omitOwnerFlag = omit
}

// OmitLoginUser leaves "user" out of login and register responses.
func (s *Server) OmitLoginUser(omit bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.omitLoginUser = omit
}

// FailMe makes the next n profile fetches fail with status.
func (s *Server) FailMe(n, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.meFailures = n
	s.meFailStatus = status
}

// RevokeAll invalidates every issued token.
func (s *Server) RevokeAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens = make(map[string]domain.ID)
}

// Comments returns the stored comments of a listing.
func (s *Server) Comments(listingID domain.ID) []domain.Comment {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Comment
	for _, c := range s.comments {
		if c.ListingID == listingID {
			out = append(out, *c)
		}
	}
	return out
}

func (s *Server) newIDLocked() domain.ID {
	s.nextID++
	return domain.ID(strconv.Itoa(s.nextID))
}

func (s *Server) createAccountLocked(email, password, name string) *account {
	hash, _ := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost) //nolint:errcheck // only fails for >72 byte passwords
	acc := &account{
		user: domain.User{ID: s.newIDLocked(), Email: email, Name: name, CreatedAt: domain.NewTimestamp(time.Now().UTC())},
		hash: hash,
	}
	s.accounts[email] = acc
	return acc
}

func (s *Server) issueTokenLocked(id domain.ID) string {
	tok := uuid.NewString()
	s.tokens[tok] = id
	return tok
}

// -- helpers --

// utcStamp matches an encoded UTC datetime up to its trailing Z.
var utcStamp = regexp.MustCompile(`"(\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}(?:\.\d+)?)Z"`)

// writeJSON encodes v with datetimes in the backend's naive UTC layout.
func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(utcStamp.ReplaceAll(body, []byte(`"$1"`))) //nolint:errcheck
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

// currentUserLocked resolves the bearer token; nil when missing or unknown.
func (s *Server) currentUserLocked(r *http.Request) *domain.User {
	tok, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok {
		return nil
	}
	id, ok := s.tokens[tok]
	if !ok {
		return nil
	}
	for _, acc := range s.accounts {
		if acc.user.ID == id {
			u := acc.user
			return &u
		}
	}
	return nil
}

func (s *Server) findListingLocked(id string) *domain.Listing {
	for _, l := range s.listings {
		if l.ID.String() == id {
			return l
		}
	}
	return nil
}

func (s *Server) findCommentLocked(id string) (int, *domain.Comment) {
	for i, c := range s.comments {
		if c.ID.String() == id {
			return i, c
		}
	}
	return -1, nil
}

func (s *Server) commentViewLocked(c *domain.Comment, viewer *domain.User) domain.Comment {
	out := *c
	if !s.omitOwnerFlag {
		owner := viewer != nil && viewer.ID == c.Author.ID
		out.IsOwner = &owner
	}
	return out
}

// -- auth --

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

func (s *Server) authResponse(u domain.User, tok string) map[string]any {
	resp := map[string]any{"token": tok}
	if !s.omitLoginUser {
		resp["user"] = u
	}
	return resp
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var in credentials
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil || in.Email == "" || in.Password == "" {
		writeDetail(w, http.StatusBadRequest, "Email and password are required")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.accounts[in.Email]; exists {
		writeDetail(w, http.StatusBadRequest, "Email already registered")
		return
	}
	acc := s.createAccountLocked(in.Email, in.Password, in.Name)
	writeJSON(w, http.StatusCreated, s.authResponse(acc.user, s.issueTokenLocked(acc.user.ID)))
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var in credentials
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeDetail(w, http.StatusBadRequest, "Invalid payload")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	acc := s.accounts[in.Email]
	if acc == nil || bcrypt.CompareHashAndPassword(acc.hash, []byte(in.Password)) != nil {
		writeDetail(w, http.StatusUnauthorized, "Invalid email or password")
		return
	}
	writeJSON(w, http.StatusOK, s.authResponse(acc.user, s.issueTokenLocked(acc.user.ID)))
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.meFailures > 0 {
		s.meFailures--
		writeDetail(w, s.meFailStatus, "profile unavailable")
		return
	}
	u := s.currentUserLocked(r)
	if u == nil {
		writeDetail(w, http.StatusUnauthorized, "Not authenticated")
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// -- listings --

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	var in struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeDetail(w, http.StatusBadRequest, "Invalid payload")
		return
	}
	raw := strings.TrimSpace(in.URL)
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		writeDetail(w, http.StatusBadRequest, "Unable to parse listing title from the provided URL")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, l := range s.listings {
		if l.URL == raw {
			writeJSON(w, http.StatusOK, map[string]any{"listing": l})
			return
		}
	}
	title := strings.Trim(u.Path, "/")
	if title == "" {
		title = u.Host
	}
	l := &domain.Listing{ID: s.newIDLocked(), URL: raw, Title: title, CreatedAt: domain.NewTimestamp(time.Now().UTC())}
	s.listings = append(s.listings, l)
	writeJSON(w, http.StatusOK, map[string]any{"listing": l})
}

func (s *Server) handleListListings(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if srt := q.Get("sort"); srt != "" && srt != "views" {
		writeDetail(w, http.StatusUnprocessableEntity, "unsupported sort")
		return
	}
	limit := 10
	if l := q.Get("limit"); l != "" {
		n, err := strconv.Atoi(l)
		if err != nil || n < 1 || n > 100 {
			writeDetail(w, http.StatusUnprocessableEntity, "limit must be between 1 and 100")
			return
		}
		limit = n
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	items := make([]domain.Listing, 0, len(s.listings))
	for _, l := range s.listings {
		items = append(items, *l)
	}
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].ViewCount != items[j].ViewCount {
			return items[i].ViewCount > items[j].ViewCount
		}
		a, _ := strconv.Atoi(items[i].ID.String()) //nolint:errcheck // ids are generated numerically
		b, _ := strconv.Atoi(items[j].ID.String()) //nolint:errcheck
		return a > b
	})
	total := len(items)
	if len(items) > limit {
		items = items[:limit]
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "total": total})
}

func (s *Server) handleGetListing(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l := s.findListingLocked(chi.URLParam(r, "id"))
	if l == nil {
		writeDetail(w, http.StatusNotFound, "Listing not found")
		return
	}
	l.ViewCount++
	writeJSON(w, http.StatusOK, map[string]any{"listing": l})
}

// -- comments --

func (s *Server) handleListComments(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l := s.findListingLocked(chi.URLParam(r, "id"))
	if l == nil {
		writeDetail(w, http.StatusNotFound, "Listing not found")
		return
	}
	viewer := s.currentUserLocked(r)
	items := []domain.Comment{}
	for _, c := range s.comments {
		if c.ListingID == l.ID {
			items = append(items, s.commentViewLocked(c, viewer))
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func decodeContent(w http.ResponseWriter, r *http.Request) (string, bool) {
	var in struct {
		Content string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeDetail(w, http.StatusBadRequest, "Invalid payload")
		return "", false
	}
	if n := len([]rune(in.Content)); n < 1 || n > 5000 {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"detail": []map[string]any{{"loc": []string{"body", "content"}, "msg": "content must be 1..5000 characters"}},
		})
		return "", false
	}
	return in.Content, true
}

func (s *Server) handleCreateComment(w http.ResponseWriter, r *http.Request) {
	content, ok := decodeContent(w, r)
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.currentUserLocked(r)
	if u == nil {
		writeDetail(w, http.StatusUnauthorized, "Not authenticated")
		return
	}
	l := s.findListingLocked(chi.URLParam(r, "id"))
	if l == nil {
		writeDetail(w, http.StatusNotFound, "Listing not found")
		return
	}
	now := domain.NewTimestamp(time.Now().UTC())
	c := &domain.Comment{
		ID:        s.newIDLocked(),
		ListingID: l.ID,
		Content:   content,
		Author:    domain.Author{ID: u.ID, Email: u.Email, Name: u.Name},
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.comments = append(s.comments, c)
	writeJSON(w, http.StatusCreated, s.commentViewLocked(c, u))
}

func (s *Server) handleUpdateComment(w http.ResponseWriter, r *http.Request) {
	content, ok := decodeContent(w, r)
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.currentUserLocked(r)
	if u == nil {
		writeDetail(w, http.StatusUnauthorized, "Not authenticated")
		return
	}
	_, c := s.findCommentLocked(chi.URLParam(r, "id"))
	if c == nil {
		writeDetail(w, http.StatusNotFound, "Comment not found")
		return
	}
	if c.Author.ID != u.ID {
		writeDetail(w, http.StatusForbidden, "Not allowed")
		return
	}
	c.Content = content
	c.UpdatedAt = domain.NewTimestamp(time.Now().UTC())
	writeJSON(w, http.StatusOK, s.commentViewLocked(c, u))
}

func (s *Server) handleDeleteComment(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.currentUserLocked(r)
	if u == nil {
		writeDetail(w, http.StatusUnauthorized, "Not authenticated")
		return
	}
	i, c := s.findCommentLocked(chi.URLParam(r, "id"))
	if c == nil {
		writeDetail(w, http.StatusNotFound, "Comment not found")
		return
	}
	if c.Author.ID != u.ID {
		writeDetail(w, http.StatusForbidden, "Not allowed")
		return
	}
	s.comments = append(s.comments[:i], s.comments[i+1:]...)
	w.WriteHeader(http.StatusNoContent)
}
