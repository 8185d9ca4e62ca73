// Package chi exposes the HTTP API: scoped search, post CRUD, cluster
// catalog and health.
package chi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/kailas-cloud/postmesh/internal/domain"
	domcluster "github.com/kailas-cloud/postmesh/internal/domain/cluster"
	dompost "github.com/kailas-cloud/postmesh/internal/domain/post"
	"github.com/kailas-cloud/postmesh/internal/domain/search/fused"
	clusteruc "github.com/kailas-cloud/postmesh/internal/usecase/cluster"
	healthuc "github.com/kailas-cloud/postmesh/internal/usecase/health"
	postuc "github.com/kailas-cloud/postmesh/internal/usecase/post"
	searchuc "github.com/kailas-cloud/postmesh/internal/usecase/search"
)

// Server holds the API handlers.
type Server struct {
	search   *searchuc.Service
	posts    *postuc.Service
	clusters *clusteruc.Catalog
	health   *healthuc.Service
	logger   *zap.Logger
}

// NewServer creates an HTTP API server.
func NewServer(
	search *searchuc.Service,
	posts *postuc.Service,
	clusters *clusteruc.Catalog,
	health *healthuc.Service,
	logger *zap.Logger,
) *Server {
	return &Server{search: search, posts: posts, clusters: clusters, health: health, logger: logger}
}

// Mount registers all API routes on the router.
func (s *Server) Mount(r chi.Router) {
	r.Get("/health", s.handleHealth)
	r.Route("/v1/{scope}", func(r chi.Router) {
		r.Post("/search", s.handleSearch)
		r.Get("/clusters", s.handleListClusters)
		r.Post("/posts", s.handleCreatePost)
		r.Get("/posts/{id}", s.handleGetPost)
		r.Put("/posts/{id}", s.handleUpdatePost)
		r.Delete("/posts/{id}", s.handleDeletePost)
	})
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type searchRequest struct {
	Query string `json:"query"`
	Limit int    `json:"limit,omitempty"`
}

type searchResultItem struct {
	ID      string   `json:"id"`
	Score   float64  `json:"score"`
	Sources []string `json:"sources"`
	Quality float64  `json:"quality,omitempty"`
}

type searchResponse struct {
	Results  []searchResultItem `json:"results"`
	Degraded []string           `json:"degraded,omitempty"`
}

type createPostRequest struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

type updatePostRequest struct {
	Text string `json:"text"`
}

type postResponse struct {
	ID        string `json:"id"`
	Scope     string `json:"scope"`
	Text      string `json:"text"`
	ClusterID string `json:"cluster_id,omitempty"`
	CreatedAt int64  `json:"created_at"`
	UpdatedAt int64  `json:"updated_at"`
}

type clusterItem struct {
	ID          string `json:"id"`
	Label       string `json:"label,omitempty"`
	MemberCount int    `json:"member_count"`
}

type clusterListResponse struct {
	Items []clusterItem `json:"items"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid request body: "+err.Error())
		return
	}

	resp, err := s.search.Query(r.Context(), chi.URLParam(r, "scope"), req.Query, req.Limit)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	out := searchResponse{Results: make([]searchResultItem, 0, len(resp.Results))}
	for i := range resp.Results {
		out.Results = append(out.Results, resultToItem(&resp.Results[i]))
	}
	for _, src := range resp.Degraded {
		out.Degraded = append(out.Degraded, string(src))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreatePost(w http.ResponseWriter, r *http.Request) {
	var req createPostRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid request body: "+err.Error())
		return
	}

	p, created, err := s.posts.Create(r.Context(), chi.URLParam(r, "scope"), req.ID, req.Text)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, postToResponse(&p))
}

func (s *Server) handleGetPost(w http.ResponseWriter, r *http.Request) {
	p, err := s.posts.Get(r.Context(), chi.URLParam(r, "scope"), chi.URLParam(r, "id"))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, postToResponse(&p))
}

func (s *Server) handleUpdatePost(w http.ResponseWriter, r *http.Request) {
	var req updatePostRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid request body: "+err.Error())
		return
	}

	p, err := s.posts.Update(r.Context(), chi.URLParam(r, "scope"), chi.URLParam(r, "id"), req.Text)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, postToResponse(&p))
}

func (s *Server) handleDeletePost(w http.ResponseWriter, r *http.Request) {
	if err := s.posts.Delete(r.Context(), chi.URLParam(r, "scope"), chi.URLParam(r, "id")); err != nil {
		s.writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListClusters(w http.ResponseWriter, r *http.Request) {
	clusters, err := s.clusters.List(r.Context(), chi.URLParam(r, "scope"))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	out := clusterListResponse{Items: make([]clusterItem, 0, len(clusters))}
	for i := range clusters {
		out.Items = append(out.Items, clusterToItem(&clusters[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	status := http.StatusOK
	if report.Status == healthuc.Unhealthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]any{
		"status": report.Status,
		"checks": report.Checks,
	})
}

// writeDomainError maps a domain error onto an HTTP status.
func (s *Server) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
	case errors.Is(err, domain.ErrPostNotFound):
		writeError(w, http.StatusNotFound, "post_not_found", "post not found")
	case errors.Is(err, domain.ErrClusterNotFound):
		writeError(w, http.StatusNotFound, "cluster_not_found", "cluster not found")
	case errors.Is(err, domain.ErrVectorDimMismatch):
		writeError(w, http.StatusBadRequest, "vector_dim_mismatch", err.Error())
	case errors.Is(err, domain.ErrAssignmentConflict):
		writeError(w, http.StatusConflict, "assignment_conflict", "concurrent cluster update, retry")
	case errors.Is(err, domain.ErrEmbeddingProviderError):
		writeError(w, http.StatusBadGateway, "embedding_provider_error", "embedding provider failed")
	case errors.Is(err, domain.ErrDependencyTimeout):
		writeError(w, http.StatusGatewayTimeout, "dependency_timeout", "dependency timed out")
	case errors.Is(err, domain.ErrDependencyUnavailable):
		writeError(w, http.StatusServiceUnavailable, "dependency_unavailable", "dependency unavailable")
	default:
		s.logger.Error("internal error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal_error", "internal error")
	}
}

func resultToItem(r *fused.Result) searchResultItem {
	sources := make([]string, 0, len(r.Sources()))
	for _, src := range r.Sources() {
		sources = append(sources, string(src))
	}
	return searchResultItem{ID: r.DocID(), Score: r.Score(), Sources: sources, Quality: r.Quality()}
}

func postToResponse(p *dompost.Post) postResponse {
	return postResponse{
		ID: p.ID(), Scope: p.Scope(), Text: p.Text(), ClusterID: p.ClusterID(),
		CreatedAt: p.CreatedAt(), UpdatedAt: p.UpdatedAt(),
	}
}

func clusterToItem(c *domcluster.Cluster) clusterItem {
	return clusterItem{ID: c.ID(), Label: c.Label(), MemberCount: c.MemberCount()}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Code: code, Message: message})
}
