package store

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockStore(t *testing.T) (*SQL, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgres(db), mock
}

func TestRebindQuestion(t *testing.T) {
	assert.Equal(t, "SELECT ? FROM t WHERE a = ? AND b = ?",
		rebindQuestion("SELECT $1 FROM t WHERE a = $2 AND b = $13"))
	assert.Equal(t, "no placeholders", rebindQuestion("no placeholders"))
	assert.Equal(t, "cost is $ 5", rebindQuestion("cost is $ 5"))
}

func TestInsertMessage(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec("INSERT INTO messages").
		WithArgs("hash1", "0xabc", "0.1.3", int64(1700000000), "demo.eth", "vote", `{"choice":1}`, "0xsig", `{}`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := s.InsertMessage(context.Background(), &Message{
		ID: "hash1", Address: "0xabc", Version: "0.1.3", Timestamp: 1700000000,
		Space: "demo.eth", Type: "vote", Payload: `{"choice":1}`, Sig: "0xsig", Metadata: `{}`,
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertMessageDuplicateIsNoop(t *testing.T) {
	s, mock := newMockStore(t)

	// ON CONFLICT DO NOTHING reports zero rows affected; that is success.
	mock.ExpectExec("INSERT INTO messages").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := s.InsertMessage(context.Background(), &Message{ID: "hash1"})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestArchiveProposalIsTransactional(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE messages SET type = 'archive-proposal'").
		WithArgs("prop1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM proposals").
		WithArgs("prop1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM votes").
		WithArgs("prop1").WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectCommit()

	require.NoError(t, s.ArchiveProposal(context.Background(), "prop1"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestArchiveProposalRollsBackOnError(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE messages SET type = 'archive-proposal'").
		WithArgs("prop1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM proposals").
		WithArgs("prop1").WillReturnError(sql.ErrConnDone)
	mock.ExpectRollback()

	err := s.ArchiveProposal(context.Background(), "prop1")
	assert.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetProposalMessageNotFound(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery("FROM messages WHERE space = \\$1 AND id = \\$2 AND type = 'propose'").
		WithArgs("demo.eth", "missing").WillReturnError(sql.ErrNoRows)

	_, err := s.GetProposalMessage(context.Background(), "demo.eth", "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCurrentVotesQuery(t *testing.T) {
	s, mock := newMockStore(t)

	rows := sqlmock.NewRows([]string{"id", "voter", "created", "space", "proposal", "choice", "metadata"}).
		AddRow("v1", "0xAAA", int64(100), "demo.eth", "prop1", "1", "{}").
		AddRow("v2", "0xBBB", int64(200), "demo.eth", "prop1", "2", "{}")

	mock.ExpectQuery("LEFT OUTER JOIN votes v2").
		WithArgs("demo.eth", "prop1").WillReturnRows(rows)

	votes, err := s.CurrentVotes(context.Background(), "demo.eth", "prop1")
	require.NoError(t, err)
	require.Len(t, votes, 2)
	assert.Equal(t, "0xAAA", votes[0].Voter)
	assert.Equal(t, "2", votes[1].Choice)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestVotersBuildsPlaceholders(t *testing.T) {
	s, mock := newMockStore(t)

	rows := sqlmock.NewRows([]string{"address", "timestamp", "space"}).
		AddRow("0xAAA", int64(1700000500), "demo.eth")

	mock.ExpectQuery("space IN \\(\\$3, \\$4\\)").
		WithArgs(int64(0), int64(1700001000), "demo.eth", "other.eth").
		WillReturnRows(rows)

	voters, err := s.Voters(context.Background(), 0, 1700001000, []string{"demo.eth", "other.eth"})
	require.NoError(t, err)
	require.Len(t, voters, 1)
	assert.Equal(t, "0xAAA", voters[0].Address)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestVotersEmptySpaceList(t *testing.T) {
	s, _ := newMockStore(t)
	voters, err := s.Voters(context.Background(), 0, 1, nil)
	require.NoError(t, err)
	assert.Nil(t, voters)
}

func TestUpsertSpacePreservesApproved(t *testing.T) {
	s, mock := newMockStore(t)

	// The upsert never touches the approved column on conflict.
	mock.ExpectExec("ON CONFLICT \\(id\\) DO UPDATE SET updated_at = \\$5, settings = \\$6").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, s.UpsertSpace(context.Background(), "demo.eth", `{"name":"Demo"}`))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestActiveProposalCounts(t *testing.T) {
	s, mock := newMockStore(t)

	rows := sqlmock.NewRows([]string{"space", "count"}).
		AddRow("demo.eth", 2).
		AddRow("other.eth", 1)
	mock.ExpectQuery("SELECT space, COUNT\\(id\\) FROM proposals").
		WithArgs(int64(1700000000), int64(1700000000)).WillReturnRows(rows)

	counts, err := s.ActiveProposalCounts(context.Background(), 1700000000)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"demo.eth": 2, "other.eth": 1}, counts)
	require.NoError(t, mock.ExpectationsWereMet())
}
