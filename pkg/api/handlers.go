package api

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/pollsterdev/snapshot-hub/pkg/crypto"
	"github.com/pollsterdev/snapshot-hub/pkg/envelope"
	"github.com/pollsterdev/snapshot-hub/pkg/store"
)

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    "snapshot-hub",
		"network": s.cfg.Network,
		"version": s.cfg.ProtocolVersion,
		"tag":     "alpha",
		"relayer": s.relayer,
	})
}

func (s *Server) handleSpaces(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.registry.All())
}

func (s *Server) handleSpace(w http.ResponseWriter, r *http.Request) {
	sp, ok := s.registry.Get(r.PathValue("key"))
	if !ok {
		writeError(w, http.StatusNotFound, "unknown space")
		return
	}
	writeJSON(w, http.StatusOK, sp)
}

func (s *Server) handleUnapprovedSpaces(w http.ResponseWriter, r *http.Request) {
	rows, err := s.store.ListUnapprovedSpaces(r.Context())
	if err != nil {
		s.log.Error("listing unapproved spaces failed", "err", err)
		writeError(w, http.StatusInternalServerError, "problem getting unapproved spaces")
		return
	}
	type unapproved struct {
		ID       string          `json:"id"`
		Settings json.RawMessage `json:"settings"`
		Approved bool            `json:"approved"`
	}
	out := make([]unapproved, 0, len(rows))
	for _, row := range rows {
		out = append(out, unapproved{ID: row.ID, Settings: json.RawMessage(row.Settings), Approved: row.Approved})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handlePoke(w http.ResponseWriter, r *http.Request) {
	sp, ok, err := s.registry.Poke(r.Context(), r.PathValue("key"))
	if err != nil {
		s.log.Error("space poke failed", "space", r.PathValue("key"), "err", err)
		writeError(w, http.StatusInternalServerError, "problem loading space")
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "unknown space")
		return
	}
	writeJSON(w, http.StatusOK, sp)
}

func (s *Server) handleAdmin(w http.ResponseWriter, r *http.Request) {
	account := r.PathValue("account")
	for _, admin := range s.cfg.Admins {
		if strings.EqualFold(admin, account) {
			writeJSON(w, http.StatusOK, true)
			return
		}
	}
	writeJSON(w, http.StatusOK, false)
}

type approveRequest struct {
	Account   string `json:"account"`
	Message   string `json:"message"`
	Signature string `json:"signature"`
}

func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	var req approveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "wrong request body")
		return
	}

	isAdmin := false
	for _, admin := range s.cfg.Admins {
		if strings.EqualFold(admin, req.Account) {
			isAdmin = true
			break
		}
	}
	if !isAdmin {
		writeError(w, http.StatusUnauthorized, "not an admin")
		return
	}
	if !crypto.Verify(req.Account, req.Signature, []byte(req.Message)) {
		writeError(w, http.StatusUnauthorized, "wrong signature")
		return
	}

	spaceID := r.PathValue("key")
	if err := s.store.ApproveSpace(r.Context(), spaceID); err != nil {
		s.log.Error("space approval failed", "space", spaceID, "err", err)
		writeError(w, http.StatusInternalServerError, "problem approving space")
		return
	}
	s.registry.SetApproved(spaceID, true)
	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

// messageView is the public shape of a persisted message.
type messageView struct {
	Address         string          `json:"address"`
	Msg             messageBody     `json:"msg"`
	Sig             string          `json:"sig"`
	AuthorIpfsHash  string          `json:"authorIpfsHash"`
	RelayerIpfsHash string          `json:"relayerIpfsHash,omitempty"`
	Payload         json.RawMessage `json:"-"`
}

type messageBody struct {
	Version   string          `json:"version"`
	Timestamp string          `json:"timestamp"`
	Space     string          `json:"space"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
}

func viewOf(m store.Message) messageView {
	var meta store.MessageMetadata
	_ = json.Unmarshal([]byte(m.Metadata), &meta)
	return messageView{
		Address: m.Address,
		Msg: messageBody{
			Version:   m.Version,
			Timestamp: strconv.FormatInt(m.Timestamp, 10),
			Space:     m.Space,
			Type:      m.Type,
			Payload:   json.RawMessage(m.Payload),
		},
		Sig:             m.Sig,
		AuthorIpfsHash:  m.ID,
		RelayerIpfsHash: meta.RelayerIPFSHash,
	}
}

func (s *Server) handleProposals(w http.ResponseWriter, r *http.Request) {
	space := r.PathValue("space")
	msgs, err := s.store.ListProposalMessages(r.Context(), space, 100)
	if err != nil {
		s.log.Error("listing proposals failed", "space", space, "err", err)
		writeError(w, http.StatusInternalServerError, "problem getting proposals")
		return
	}
	out := make(map[string]messageView, len(msgs))
	for _, m := range msgs {
		out[m.ID] = viewOf(m)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleProposalVotes(w http.ResponseWriter, r *http.Request) {
	space, id := r.PathValue("space"), r.PathValue("id")
	votes, err := s.store.CurrentVotes(r.Context(), space, id)
	if err != nil {
		s.log.Error("listing votes failed", "space", space, "proposal", id, "err", err)
		writeError(w, http.StatusInternalServerError, "problem getting votes")
		return
	}

	type votePayload struct {
		Choice   json.RawMessage `json:"choice"`
		Metadata json.RawMessage `json:"metadata"`
		Proposal string          `json:"proposal"`
	}
	type voteMsg struct {
		Timestamp string      `json:"timestamp"`
		Payload   votePayload `json:"payload"`
	}
	type voteView struct {
		Address        string  `json:"address"`
		Msg            voteMsg `json:"msg"`
		AuthorIpfsHash string  `json:"authorIpfsHash"`
	}

	out := make(map[string]voteView, len(votes))
	for _, v := range votes {
		addr := crypto.ChecksumAddress(v.Voter)
		out[addr] = voteView{
			Address: addr,
			Msg: voteMsg{
				Timestamp: strconv.FormatInt(v.Created, 10),
				Payload: votePayload{
					Choice:   json.RawMessage(v.Choice),
					Metadata: json.RawMessage(v.Metadata),
					Proposal: v.Proposal,
				},
			},
			AuthorIpfsHash: v.ID,
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleVoters(w http.ResponseWriter, r *http.Request) {
	from := int64(0)
	to := int64(1) << 40
	if v := r.URL.Query().Get("from"); v != "" {
		from, _ = strconv.ParseInt(v, 10, 64)
	}
	if v := r.URL.Query().Get("to"); v != "" {
		to, _ = strconv.ParseInt(v, 10, 64)
	}
	var spaceIDs []string
	if v := r.URL.Query().Get("spaces"); v != "" {
		spaceIDs = strings.Split(v, ",")
	} else {
		for id := range s.registry.All() {
			spaceIDs = append(spaceIDs, id)
		}
	}

	voters, err := s.store.Voters(r.Context(), from, to, spaceIDs)
	if err != nil {
		s.log.Error("listing voters failed", "err", err)
		writeError(w, http.StatusInternalServerError, "problem getting voters")
		return
	}
	if voters == nil {
		voters = []store.VoterRow{}
	}
	writeJSON(w, http.StatusOK, voters)
}

func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Maintenance {
		writeError(w, http.StatusServiceUnavailable, "update in progress, try later")
		return
	}

	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 2*envelope.MaxBodyBytes))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "too large message")
		return
	}

	receipt, err := s.pipeline.Submit(r.Context(), raw)
	if err != nil {
		writeRejection(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ipfsHash": receipt.AuthorHash,
		"relayer": map[string]string{
			"address": receipt.RelayerAddress,
			"receipt": receipt.RelayerReceipt,
		},
	})
}
