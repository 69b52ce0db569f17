package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/goccy/go-json"

	"github.com/rushteam/tourkit/core"
	"github.com/rushteam/tourkit/serving"
)

type recommendResponse struct {
	UserID           string   `json:"user_id"`
	RecommendedTours []string `json:"recommended_tours"`
	Source           string   `json:"source"`
	SnapshotID       string   `json:"snapshot_id"`
}

type rankResponse struct {
	UserID      string   `json:"user_id"`
	RankedTours []string `json:"ranked_tours"`
	Source      string   `json:"source"`
	SnapshotID  string   `json:"snapshot_id"`
}

type searchResponse struct {
	Query         string   `json:"query"`
	SearchResults []string `json:"search_results"`
	Source        string   `json:"source"`
	SnapshotID    string   `json:"snapshot_id"`
}

type similarResponse struct {
	TourID       string   `json:"tour_id"`
	SimilarTours []string `json:"similar_tours"`
	Source       string   `json:"source"`
	SnapshotID   string   `json:"snapshot_id"`
}

type reloadResponse struct {
	SnapshotID string    `json:"snapshot_id"`
	BuiltAt    time.Time `json:"built_at"`
	RankerTag  string    `json:"ranker"`
}

type healthResponse struct {
	Status     string `json:"status"`
	SnapshotID string `json:"snapshot_id,omitempty"`
}

// topNParam 解析可选的 top_n；缺省为 0（交给编排层取默认值）
func topNParam(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("top_n")
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, core.InvalidRequest(core.ModuleServing, "top_n must be a non-negative integer")
	}
	return n, nil
}

func (s *Server) handleRecommend(w http.ResponseWriter, r *http.Request) {
	n, err := topNParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	req := serving.RecommendRequest{UserID: r.URL.Query().Get("user_id"), TopN: n}
	res, err := s.orch.Recommend(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, recommendResponse{
		UserID:           req.UserID,
		RecommendedTours: res.IDs(),
		Source:           res.Source,
		SnapshotID:       res.SnapshotID,
	})
}

func (s *Server) handleRank(w http.ResponseWriter, r *http.Request) {
	var req serving.RankRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, s.maxBody)).Decode(&req); err != nil {
		writeError(w, core.InvalidRequest(core.ModuleServing, "request body must be JSON with user_id and tour_ids"))
		return
	}
	res, err := s.orch.Rank(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rankResponse{
		UserID:      req.UserID,
		RankedTours: res.IDs(),
		Source:      res.Source,
		SnapshotID:  res.SnapshotID,
	})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	n, err := topNParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	q := r.URL.Query()
	req := serving.SearchRequest{Query: q.Get("query"), UserID: q.Get("user_id"), TopN: n}
	res, err := s.orch.Search(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, searchResponse{
		Query:         req.Query,
		SearchResults: res.IDs(),
		Source:        res.Source,
		SnapshotID:    res.SnapshotID,
	})
}

func (s *Server) handleSimilar(w http.ResponseWriter, r *http.Request) {
	n, err := topNParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	req := serving.SimilarRequest{TourID: r.URL.Query().Get("tour_id"), TopN: n}
	res, err := s.orch.Similar(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, similarResponse{
		TourID:       req.TourID,
		SimilarTours: res.IDs(),
		Source:       res.Source,
		SnapshotID:   res.SnapshotID,
	})
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	snap, err := s.orch.Reload(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reloadResponse{SnapshotID: snap.ID, BuiltAt: snap.BuiltAt, RankerTag: snap.Model.Tag()})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	snap := s.orch.Snapshot()
	if snap == nil {
		writeJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "no snapshot"})
		return
	}
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok", SnapshotID: snap.ID})
}
