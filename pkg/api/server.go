// Package api exposes the hub over HTTP: the message submission endpoint
// plus the read endpoints for spaces, proposals, votes and voters.
package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/pollsterdev/snapshot-hub/pkg/config"
	"github.com/pollsterdev/snapshot-hub/pkg/limiter"
	"github.com/pollsterdev/snapshot-hub/pkg/pipeline"
	"github.com/pollsterdev/snapshot-hub/pkg/spaces"
	"github.com/pollsterdev/snapshot-hub/pkg/store"
)

// Store is the slice of the persistence layer the read endpoints use.
type Store interface {
	ListProposalMessages(ctx context.Context, space string, limit int) ([]store.Message, error)
	CurrentVotes(ctx context.Context, space, proposal string) ([]store.Vote, error)
	Voters(ctx context.Context, from, to int64, spaceIDs []string) ([]store.VoterRow, error)
	ListUnapprovedSpaces(ctx context.Context) ([]store.SpaceRow, error)
	ApproveSpace(ctx context.Context, id string) error
}

// Submitter runs the ingestion pipeline for one raw request body.
type Submitter interface {
	Submit(ctx context.Context, raw []byte) (*pipeline.Receipt, error)
}

// Server is the hub's HTTP surface.
type Server struct {
	cfg      *config.Config
	log      *slog.Logger
	registry *spaces.Registry
	store    Store
	pipeline Submitter
	relayer  string
	limits   limiter.Store
}

// NewServer assembles the HTTP server. relayerAddress is reported on the
// info endpoint so clients can verify countersignatures.
func NewServer(cfg *config.Config, log *slog.Logger, reg *spaces.Registry, st Store, pl Submitter, relayerAddress string, limits limiter.Store) *Server {
	return &Server{
		cfg:      cfg,
		log:      log,
		registry: reg,
		store:    st,
		pipeline: pl,
		relayer:  relayerAddress,
		limits:   limits,
	}
}

// Handler builds the routed handler with middleware applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api", s.handleInfo)
	mux.HandleFunc("GET /api/{$}", s.handleInfo)
	mux.HandleFunc("GET /api/spaces", s.handleSpaces)
	mux.HandleFunc("GET /api/spaces/unapproved", s.handleUnapprovedSpaces)
	mux.HandleFunc("GET /api/spaces/{key}", s.handleSpace)
	mux.HandleFunc("GET /api/spaces/{key}/poke", s.handlePoke)
	mux.HandleFunc("POST /api/spaces/{key}/approve", s.handleApprove)
	mux.HandleFunc("GET /api/admins/{account}", s.handleAdmin)
	mux.HandleFunc("GET /api/voters", s.handleVoters)
	mux.HandleFunc("GET /api/{space}/proposals", s.handleProposals)
	mux.HandleFunc("GET /api/{space}/proposal/{id}", s.handleProposalVotes)
	mux.HandleFunc("POST /api/message", s.handleMessage)

	var h http.Handler = mux
	h = withRateLimit(s.limits, s.log, h)
	h = withRequestID(s.log, h)
	return h
}
