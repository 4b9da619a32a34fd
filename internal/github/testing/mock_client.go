package testing

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync"
	"time"

	gh "github.com/google/go-github/v66/github"
	"github.com/gorilla/mux"
)

// CreateCall records a POST /repos/{owner}/{repo}/issues/{number}/comments.
type CreateCall struct {
	Owner  string
	Repo   string
	Number int
	Body   string
}

// EditCall records a PATCH /repos/{owner}/{repo}/issues/comments/{id}.
type EditCall struct {
	Owner     string
	Repo      string
	CommentID int64
	Body      string
}

// Server is an in-memory stand-in for the GitHub issue comment and App endpoints:
//   - GET   /repos/{owner}/{repo}/issues/{number}/comments
//   - POST  /repos/{owner}/{repo}/issues/{number}/comments
//   - PATCH /repos/{owner}/{repo}/issues/comments/{id}
//   - GET   /repos/{owner}/{repo}/installation
//   - POST  /app/installations/{id}/access_tokens
//
// Callers seed Comments and may force failures with ListStatus/WriteStatus.
type Server struct {
	*httptest.Server

	mu sync.Mutex

	// Comments is returned, in order, by the list endpoint.
	Comments []*gh.IssueComment
	// ListStatus and WriteStatus, when non-zero, are returned instead of a success.
	ListStatus  int
	WriteStatus int

	ListCalls    int
	CreateCalls  []CreateCall
	EditCalls    []EditCall
	TokenCalls   int
	AuthHeaders  []string
	nextID       int64
	installation int64
}

// NewServer starts a fake GitHub API. Call Close when done.
func NewServer() *Server {
	s := &Server{nextID: 1000, installation: 77}

	r := mux.NewRouter()
	r.Use(s.recordAuth)
	r.HandleFunc("/repos/{owner}/{repo}/issues/{number:[0-9]+}/comments", s.listComments).Methods(http.MethodGet)
	r.HandleFunc("/repos/{owner}/{repo}/issues/{number:[0-9]+}/comments", s.createComment).Methods(http.MethodPost)
	r.HandleFunc("/repos/{owner}/{repo}/issues/comments/{id:[0-9]+}", s.editComment).Methods(http.MethodPatch)
	r.HandleFunc("/repos/{owner}/{repo}/installation", s.installationFor).Methods(http.MethodGet)
	r.HandleFunc("/app/installations/{id:[0-9]+}/access_tokens", s.accessToken).Methods(http.MethodPost)

	s.Server = httptest.NewServer(r)
	return s
}

// Client returns an unauthenticated go-github client pointed at the server.
func (s *Server) Client() *gh.Client {
	client := gh.NewClient(s.Server.Client())
	base, _ := url.Parse(s.URL + "/")
	client.BaseURL = base
	client.UploadURL = base
	return client
}

// Seed appends a comment authored by a user of the given type ("Bot" or "User").
func (s *Server) Seed(id int64, userType, body string, createdAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Comments = append(s.Comments, &gh.IssueComment{
		ID:        gh.Int64(id),
		Body:      gh.String(body),
		User:      &gh.User{Login: gh.String("someone"), Type: gh.String(userType)},
		CreatedAt: &gh.Timestamp{Time: createdAt},
	})
}

// Writes returns the total number of create and edit calls.
func (s *Server) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.CreateCalls) + len(s.EditCalls)
}

func (s *Server) recordAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.AuthHeaders = append(s.AuthHeaders, r.Header.Get("Authorization"))
		s.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) listComments(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ListCalls++
	if s.ListStatus != 0 {
		writeError(w, s.ListStatus)
		return
	}
	comments := s.Comments
	if comments == nil {
		comments = []*gh.IssueComment{}
	}
	writeJSON(w, http.StatusOK, comments)
}

func (s *Server) createComment(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	number, _ := strconv.Atoi(vars["number"])

	var req gh.IssueComment
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.CreateCalls = append(s.CreateCalls, CreateCall{Owner: vars["owner"], Repo: vars["repo"], Number: number, Body: req.GetBody()})
	if s.WriteStatus != 0 {
		writeError(w, s.WriteStatus)
		return
	}

	s.nextID++
	created := &gh.IssueComment{
		ID:        gh.Int64(s.nextID),
		Body:      req.Body,
		User:      &gh.User{Login: gh.String("github-actions[bot]"), Type: gh.String("Bot")},
		HTMLURL:   gh.String(fmt.Sprintf("https://github.com/%s/%s/pull/%d#issuecomment-%d", vars["owner"], vars["repo"], number, s.nextID)),
		CreatedAt: &gh.Timestamp{Time: time.Now()},
	}
	s.Comments = append(s.Comments, created)
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) editComment(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id, _ := strconv.ParseInt(vars["id"], 10, 64)

	var req gh.IssueComment
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.EditCalls = append(s.EditCalls, EditCall{Owner: vars["owner"], Repo: vars["repo"], CommentID: id, Body: req.GetBody()})
	if s.WriteStatus != 0 {
		writeError(w, s.WriteStatus)
		return
	}

	for _, c := range s.Comments {
		if c.GetID() == id {
			c.Body = req.Body
			c.HTMLURL = gh.String(fmt.Sprintf("https://github.com/%s/%s/issues#issuecomment-%d", vars["owner"], vars["repo"], id))
			writeJSON(w, http.StatusOK, c)
			return
		}
	}
	writeError(w, http.StatusNotFound)
}

func (s *Server) installationFor(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"id": s.installation})
}

func (s *Server) accessToken(w http.ResponseWriter, r *http.Request) {
	if mux.Vars(r)["id"] != strconv.FormatInt(s.installation, 10) {
		writeError(w, http.StatusNotFound)
		return
	}
	s.mu.Lock()
	s.TokenCalls++
	s.mu.Unlock()
	writeJSON(w, http.StatusCreated, map[string]any{
		"token":      "ghs_installation",
		"expires_at": time.Now().Add(time.Hour).UTC().Format(time.RFC3339),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int) {
	writeJSON(w, status, map[string]string{"message": http.StatusText(status)})
}
