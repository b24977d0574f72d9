package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// SQL is the relational store. It speaks Postgres in production and SQLite
// in dev mode; both accept the same ON CONFLICT clause, so the only dialect
// difference is the placeholder style.
type SQL struct {
	db     *sql.DB
	rebind func(string) string
}

// NewPostgres wraps an open lib/pq connection.
func NewPostgres(db *sql.DB) *SQL {
	return &SQL{db: db, rebind: func(q string) string { return q }}
}

// NewSQLite wraps an open modernc sqlite connection.
func NewSQLite(db *sql.DB) *SQL {
	return &SQL{db: db, rebind: rebindQuestion}
}

// rebindQuestion rewrites $n placeholders to the ? style sqlite expects.
func rebindQuestion(q string) string {
	var b strings.Builder
	for i := 0; i < len(q); i++ {
		if q[i] == '$' {
			j := i + 1
			for j < len(q) && q[j] >= '0' && q[j] <= '9' {
				j++
			}
			if j > i+1 {
				b.WriteByte('?')
				i = j - 1
				continue
			}
		}
		b.WriteByte(q[i])
	}
	return b.String()
}

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS spaces (
		id TEXT PRIMARY KEY,
		created_at BIGINT NOT NULL,
		updated_at BIGINT NOT NULL,
		settings TEXT,
		approved BOOLEAN NOT NULL DEFAULT FALSE
	)`,
	`CREATE TABLE IF NOT EXISTS messages (
		id TEXT PRIMARY KEY,
		address TEXT NOT NULL,
		version TEXT NOT NULL,
		timestamp BIGINT NOT NULL,
		space TEXT NOT NULL,
		type TEXT NOT NULL,
		payload TEXT NOT NULL,
		sig TEXT NOT NULL,
		metadata TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_messages_space_type ON messages (space, type, timestamp)`,
	`CREATE TABLE IF NOT EXISTS proposals (
		id TEXT PRIMARY KEY,
		author TEXT NOT NULL,
		created BIGINT NOT NULL,
		space TEXT NOT NULL,
		network TEXT NOT NULL,
		type TEXT NOT NULL,
		strategies TEXT NOT NULL,
		plugins TEXT NOT NULL,
		title TEXT,
		body TEXT,
		choices TEXT NOT NULL,
		start_at BIGINT NOT NULL,
		end_at BIGINT NOT NULL,
		snapshot BIGINT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS votes (
		id TEXT PRIMARY KEY,
		voter TEXT NOT NULL,
		created BIGINT NOT NULL,
		space TEXT NOT NULL,
		proposal TEXT NOT NULL,
		choice TEXT NOT NULL,
		metadata TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_votes_proposal ON votes (proposal, voter)`,
}

// Migrate creates the schema if it does not exist yet.
func (s *SQL) Migrate(ctx context.Context) error {
	for _, stmt := range migrations {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// InsertMessage records an accepted message. A duplicate id is a no-op.
func (s *SQL) InsertMessage(ctx context.Context, m *Message) error {
	const q = `INSERT INTO messages (id, address, version, timestamp, space, type, payload, sig, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO NOTHING`
	_, err := s.db.ExecContext(ctx, s.rebind(q),
		m.ID, m.Address, m.Version, m.Timestamp, m.Space, m.Type, m.Payload, m.Sig, m.Metadata)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

// InsertProposal records the proposal projection. A duplicate id is a no-op.
func (s *SQL) InsertProposal(ctx context.Context, p *Proposal) error {
	const q = `INSERT INTO proposals (id, author, created, space, network, type, strategies, plugins, title, body, choices, start_at, end_at, snapshot)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (id) DO NOTHING`
	_, err := s.db.ExecContext(ctx, s.rebind(q),
		p.ID, p.Author, p.Created, p.Space, p.Network, p.Type, p.Strategies, p.Plugins,
		p.Title, p.Body, p.Choices, p.Start, p.End, p.Snapshot)
	if err != nil {
		return fmt.Errorf("insert proposal: %w", err)
	}
	return nil
}

// InsertVote records the vote projection. A duplicate id is a no-op; earlier
// votes by the same voter stay in place and are superseded at query time.
func (s *SQL) InsertVote(ctx context.Context, v *Vote) error {
	const q = `INSERT INTO votes (id, voter, created, space, proposal, choice, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO NOTHING`
	_, err := s.db.ExecContext(ctx, s.rebind(q),
		v.ID, v.Voter, v.Created, v.Space, v.Proposal, v.Choice, v.Metadata)
	if err != nil {
		return fmt.Errorf("insert vote: %w", err)
	}
	return nil
}

// ArchiveProposal retags the proposal's message row and removes its
// proposal and vote projections. All three effects commit atomically; the
// message row itself survives as the audit trail.
func (s *SQL) ArchiveProposal(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("archive proposal: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	steps := []struct {
		query string
		args  []any
	}{
		{`UPDATE messages SET type = 'archive-proposal' WHERE id = $1 AND type = 'propose'`, []any{id}},
		{`DELETE FROM proposals WHERE id = $1`, []any{id}},
		{`DELETE FROM votes WHERE proposal = $1`, []any{id}},
	}
	for _, step := range steps {
		if _, err := tx.ExecContext(ctx, s.rebind(step.query), step.args...); err != nil {
			return fmt.Errorf("archive proposal: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("archive proposal: commit: %w", err)
	}
	return nil
}

// GetProposalMessage fetches the propose message for a space by id. Returns
// ErrNotFound on a miss.
func (s *SQL) GetProposalMessage(ctx context.Context, space, id string) (*Message, error) {
	const q = `SELECT id, address, version, timestamp, space, type, payload, sig, metadata
		FROM messages WHERE space = $1 AND id = $2 AND type = 'propose'`
	var m Message
	err := s.db.QueryRowContext(ctx, s.rebind(q), space, id).Scan(
		&m.ID, &m.Address, &m.Version, &m.Timestamp, &m.Space, &m.Type, &m.Payload, &m.Sig, &m.Metadata)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get proposal message: %w", err)
	}
	return &m, nil
}

// ListProposalMessages returns the latest propose messages for a space.
func (s *SQL) ListProposalMessages(ctx context.Context, space string, limit int) ([]Message, error) {
	const q = `SELECT id, address, version, timestamp, space, type, payload, sig, metadata
		FROM messages WHERE type = 'propose' AND space = $1
		ORDER BY timestamp DESC LIMIT $2`
	rows, err := s.db.QueryContext(ctx, s.rebind(q), space, limit)
	if err != nil {
		return nil, fmt.Errorf("list proposals: %w", err)
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.Address, &m.Version, &m.Timestamp, &m.Space, &m.Type, &m.Payload, &m.Sig, &m.Metadata); err != nil {
			return nil, fmt.Errorf("list proposals: scan: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// CurrentVotes returns the current vote per voter on a proposal. A vote is
// current when no later vote by the same voter exists, later meaning a
// larger (created, id) pair.
func (s *SQL) CurrentVotes(ctx context.Context, space, proposal string) ([]Vote, error) {
	const q = `SELECT v.id, v.voter, v.created, v.space, v.proposal, v.choice, v.metadata
		FROM votes v
		LEFT OUTER JOIN votes v2 ON
			v.voter = v2.voter AND v.proposal = v2.proposal
			AND ((v.created < v2.created) OR (v.created = v2.created AND v.id < v2.id))
		WHERE v2.voter IS NULL AND v.space = $1 AND v.proposal = $2
		ORDER BY v.created ASC`
	rows, err := s.db.QueryContext(ctx, s.rebind(q), space, proposal)
	if err != nil {
		return nil, fmt.Errorf("current votes: %w", err)
	}
	defer rows.Close()

	var out []Vote
	for rows.Next() {
		var v Vote
		if err := rows.Scan(&v.ID, &v.Voter, &v.Created, &v.Space, &v.Proposal, &v.Choice, &v.Metadata); err != nil {
			return nil, fmt.Errorf("current votes: scan: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// Voters returns distinct voter addresses across the given spaces within a
// timestamp range, most recent first.
func (s *SQL) Voters(ctx context.Context, from, to int64, spaceIDs []string) ([]VoterRow, error) {
	if len(spaceIDs) == 0 {
		return nil, nil
	}
	placeholders := make([]string, len(spaceIDs))
	args := []any{from, to}
	for i, id := range spaceIDs {
		placeholders[i] = fmt.Sprintf("$%d", i+3)
		args = append(args, id)
	}
	q := fmt.Sprintf(`SELECT address, MAX(timestamp) AS timestamp, MAX(space) AS space
		FROM messages
		WHERE type = 'vote' AND timestamp >= $1 AND timestamp <= $2 AND space IN (%s)
		GROUP BY address ORDER BY timestamp DESC`, strings.Join(placeholders, ", "))

	rows, err := s.db.QueryContext(ctx, s.rebind(q), args...)
	if err != nil {
		return nil, fmt.Errorf("voters: %w", err)
	}
	defer rows.Close()

	var out []VoterRow
	for rows.Next() {
		var v VoterRow
		if err := rows.Scan(&v.Address, &v.Timestamp, &v.Space); err != nil {
			return nil, fmt.Errorf("voters: scan: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// UpsertSpace inserts a space or refreshes its settings, preserving the
// approved flag on update.
func (s *SQL) UpsertSpace(ctx context.Context, id, settings string) error {
	now := time.Now().Unix()
	const q = `INSERT INTO spaces (id, created_at, updated_at, settings, approved)
		VALUES ($1, $2, $3, $4, FALSE)
		ON CONFLICT (id) DO UPDATE SET updated_at = $5, settings = $6`
	_, err := s.db.ExecContext(ctx, s.rebind(q), id, now, now, settings, now, settings)
	if err != nil {
		return fmt.Errorf("upsert space: %w", err)
	}
	return nil
}

// ApproveSpace flips a space to approved.
func (s *SQL) ApproveSpace(ctx context.Context, id string) error {
	const q = `UPDATE spaces SET approved = TRUE WHERE id = $1`
	if _, err := s.db.ExecContext(ctx, s.rebind(q), id); err != nil {
		return fmt.Errorf("approve space: %w", err)
	}
	return nil
}

// GetSpace fetches one space row. Returns ErrNotFound on a miss.
func (s *SQL) GetSpace(ctx context.Context, id string) (*SpaceRow, error) {
	const q = `SELECT id, created_at, updated_at, settings, approved FROM spaces WHERE id = $1`
	var row SpaceRow
	var settings sql.NullString
	err := s.db.QueryRowContext(ctx, s.rebind(q), id).Scan(
		&row.ID, &row.CreatedAt, &row.UpdatedAt, &settings, &row.Approved)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get space: %w", err)
	}
	row.Settings = settings.String
	return &row, nil
}

// ListSpaces returns every space that has settings, ordered by id.
func (s *SQL) ListSpaces(ctx context.Context) ([]SpaceRow, error) {
	const q = `SELECT id, created_at, updated_at, settings, approved
		FROM spaces WHERE settings IS NOT NULL ORDER BY id ASC`
	return s.querySpaces(ctx, q)
}

// ListUnapprovedSpaces returns spaces still awaiting approval.
func (s *SQL) ListUnapprovedSpaces(ctx context.Context) ([]SpaceRow, error) {
	const q = `SELECT id, created_at, updated_at, settings, approved
		FROM spaces WHERE approved = FALSE ORDER BY id ASC`
	return s.querySpaces(ctx, q)
}

func (s *SQL) querySpaces(ctx context.Context, q string, args ...any) ([]SpaceRow, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(q), args...)
	if err != nil {
		return nil, fmt.Errorf("list spaces: %w", err)
	}
	defer rows.Close()

	var out []SpaceRow
	for rows.Next() {
		var row SpaceRow
		var settings sql.NullString
		if err := rows.Scan(&row.ID, &row.CreatedAt, &row.UpdatedAt, &settings, &row.Approved); err != nil {
			return nil, fmt.Errorf("list spaces: scan: %w", err)
		}
		row.Settings = settings.String
		out = append(out, row)
	}
	return out, rows.Err()
}

// ActiveProposalCounts returns, per space, how many proposals have a voting
// window open at ts.
func (s *SQL) ActiveProposalCounts(ctx context.Context, ts int64) (map[string]int, error) {
	const q = `SELECT space, COUNT(id) FROM proposals
		WHERE start_at < $1 AND end_at > $2 GROUP BY space`
	rows, err := s.db.QueryContext(ctx, s.rebind(q), ts, ts)
	if err != nil {
		return nil, fmt.Errorf("active proposal counts: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var space string
		var count int
		if err := rows.Scan(&space, &count); err != nil {
			return nil, fmt.Errorf("active proposal counts: scan: %w", err)
		}
		out[space] = count
	}
	return out, rows.Err()
}
