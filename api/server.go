// Package api exposes a read-only JSON view of governance state. All
// mutations go through the chat front-end; the HTTP surface only lists and
// inspects.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"dao-governance/client"
	"dao-governance/models"
	"dao-governance/service"
)

type Server struct {
	queries *client.Client
	svc     *service.GovernanceService
	addr    string
}

func NewServer(queries *client.Client, svc *service.GovernanceService, addr string) *Server {
	return &Server{
		queries: queries,
		svc:     svc,
		addr:    addr,
	}
}

func (s *Server) Start() error {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/groups", s.handleGetGroups)
	mux.HandleFunc("/api/proposals", s.handleGetProposals)
	mux.HandleFunc("/api/results", s.handleGetResults)
	mux.HandleFunc("/api/account", s.handleGetAccount)
	mux.HandleFunc("/api/stats", s.handleGetStats)

	slog.Info("api server listening", "addr", s.addr)
	return http.ListenAndServe(s.addr, mux)
}

type groupInfo struct {
	GroupID       string `json:"group_id"`
	Name          string `json:"name"`
	Description   string `json:"description"`
	VotingMode    string `json:"voting_mode"`
	MemberCount   int    `json:"member_count"`
	AdminCount    int    `json:"admin_count"`
	ProposalCount int    `json:"proposal_count"`
	CreatedAt     int64  `json:"created_at"`
}

func (s *Server) handleGetGroups(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	groups, itemErrs, err := s.queries.ListGroups(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	infos := make([]groupInfo, 0, len(groups))
	for _, g := range groups {
		infos = append(infos, groupInfo{
			GroupID:       g.GroupID,
			Name:          g.Name,
			Description:   g.Description,
			VotingMode:    g.VotingMode.String(),
			MemberCount:   len(g.Members),
			AdminCount:    len(g.Admins),
			ProposalCount: len(g.Proposals),
			CreatedAt:     g.CreatedAt,
		})
	}

	response := struct {
		Groups     []groupInfo `json:"groups"`
		Count      int         `json:"count"`
		Unreadable int         `json:"unreadable,omitempty"`
	}{
		Groups:     infos,
		Count:      len(infos),
		Unreadable: len(itemErrs),
	}

	writeJSON(w, response)
}

type proposalInfo struct {
	ProposalID  string   `json:"proposal_id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Choices     []string `json:"choices"`
	BallotCount int      `json:"ballot_count"`
	CreatedAt   int64    `json:"created_at"`
	VotingEnd   int64    `json:"voting_end"`
}

func (s *Server) handleGetProposals(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	groupID := r.URL.Query().Get("group_id")
	if groupID == "" {
		http.Error(w, "group_id is required", http.StatusBadRequest)
		return
	}

	proposals, itemErrs, err := s.queries.ListProposals(r.Context(), groupID)
	if errors.Is(err, models.ErrGroupNotFound) {
		http.Error(w, "Group not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	infos := make([]proposalInfo, 0, len(proposals))
	for _, p := range proposals {
		infos = append(infos, proposalInfo{
			ProposalID:  p.ProposalID,
			Title:       p.Title,
			Description: p.Description,
			Choices:     p.Choices,
			BallotCount: len(p.Ballots),
			CreatedAt:   p.CreatedAt,
			VotingEnd:   p.VotingEnd,
		})
	}

	response := struct {
		GroupID    string         `json:"group_id"`
		Proposals  []proposalInfo `json:"proposals"`
		Count      int            `json:"count"`
		Unreadable int            `json:"unreadable,omitempty"`
	}{
		GroupID:    groupID,
		Proposals:  infos,
		Count:      len(infos),
		Unreadable: len(itemErrs),
	}

	writeJSON(w, response)
}

func (s *Server) handleGetResults(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	groupID := r.URL.Query().Get("group_id")
	proposalID := r.URL.Query().Get("proposal_id")
	if groupID == "" || proposalID == "" {
		http.Error(w, "group_id and proposal_id are required", http.StatusBadRequest)
		return
	}

	result, err := s.svc.Tally(r.Context(), groupID, proposalID)
	if errors.Is(err, models.ErrProposalNotFound) || errors.Is(err, models.ErrGroupNotFound) {
		http.Error(w, "Proposal not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, result)
}

func (s *Server) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	externalID := r.URL.Query().Get("external_id")
	if externalID == "" {
		http.Error(w, "external_id is required", http.StatusBadRequest)
		return
	}

	account, err := s.queries.GetAccount(r.Context(), externalID)
	if errors.Is(err, models.ErrAccountNotFound) {
		http.Error(w, "Account not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	response := struct {
		ExternalID  string `json:"external_id"`
		PublicKey   string `json:"public_key"`
		DisplayName string `json:"display_name"`
		CreatedAt   int64  `json:"created_at"`
	}{
		ExternalID:  account.ExternalID,
		PublicKey:   account.PublicKey.String(),
		DisplayName: account.DisplayName,
		CreatedAt:   account.CreatedAt,
	}

	writeJSON(w, response)
}

func (s *Server) handleGetStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	stats, err := s.svc.Statistics(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, stats)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("failed to encode response", "error", err)
	}
}
