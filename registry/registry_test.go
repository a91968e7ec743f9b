package registry

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/teranos/factgate/errors"
	qtest "github.com/teranos/factgate/internal/testing"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	return New(qtest.CreateTestDB(t), zaptest.NewLogger(t).Sugar())
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"  ACME  ", "acme"},
		{"Acme", "acme"},
		{"acme", "acme"},
		{"\tJane Doe\n", "jane doe"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Normalize(tt.in), "Normalize(%q)", tt.in)
	}
}

func TestCanonicalID(t *testing.T) {
	t.Run("pure function of normalized inputs", func(t *testing.T) {
		a := CanonicalID("PERSON", "jane doe")
		assert.Equal(t, a, CanonicalID("person", "  Jane Doe "))
		assert.NotEqual(t, a, CanonicalID("ORG", "jane doe"))
		assert.Len(t, a, 36)
	})

	t.Run("uuid version 5", func(t *testing.T) {
		id := CanonicalID("ORG", "acme")
		assert.Equal(t, byte('5'), id[14])
	})
}

func TestGetOrCreateCanonical(t *testing.T) {
	ctx := context.Background()

	t.Run("same inputs yield same id", func(t *testing.T) {
		r := newTestRegistry(t)

		first, err := r.GetOrCreateCanonical(ctx, "PERSON", "jane doe", "Jane Doe")
		require.NoError(t, err)
		second, err := r.GetOrCreateCanonical(ctx, "PERSON", "jane doe", "")
		require.NoError(t, err)
		other, err := r.GetOrCreateCanonical(ctx, "ORG", "jane doe", "")
		require.NoError(t, err)

		assert.Equal(t, first, second)
		assert.NotEqual(t, first, other)
		assert.Equal(t, CanonicalID("PERSON", "jane doe"), first)

		stats, err := r.Stats(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, stats.Entities)
	})

	t.Run("case variants converge", func(t *testing.T) {
		r := newTestRegistry(t)

		ids := map[string]bool{}
		for _, label := range []string{"ACME", "Acme", " acme "} {
			id, err := r.GetOrCreateCanonical(ctx, "org", label, label)
			require.NoError(t, err)
			ids[id] = true
		}
		assert.Len(t, ids, 1)

		aliases, err := r.Aliases(ctx, CanonicalID("ORG", "acme"))
		require.NoError(t, err)
		assert.Equal(t, []string{" acme ", "ACME", "Acme"}, aliases)
	})

	t.Run("existing row wins over computed id", func(t *testing.T) {
		conn := qtest.CreateTestDB(t)
		_, err := conn.Exec("INSERT INTO entities (canonical_id, type, normalized_label) VALUES ('legacy-1', 'ORG', 'acme')")
		require.NoError(t, err)

		id, err := New(conn, nil).GetOrCreateCanonical(ctx, "ORG", "Acme", "")
		require.NoError(t, err)
		assert.Equal(t, "legacy-1", id)
	})

	t.Run("persists across reopen", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "registry.db")
		r, err := Open(path, nil)
		require.NoError(t, err)
		id, err := r.GetOrCreateCanonical(ctx, "ORG", "acme", "ACME")
		require.NoError(t, err)
		require.NoError(t, r.Close())

		r, err = Open(path, nil)
		require.NoError(t, err)
		defer r.Close()
		e, err := r.Lookup(ctx, "org", "ACME")
		require.NoError(t, err)
		assert.Equal(t, id, e.CanonicalID)
		assert.Equal(t, "ACME", e.PrimaryName)
	})
}

func TestAddAlias(t *testing.T) {
	ctx := context.Background()
	r := newTestRegistry(t)
	id, err := r.GetOrCreateCanonical(ctx, "ORG", "acme", "")
	require.NoError(t, err)

	require.NoError(t, r.AddAlias(ctx, id, ""))
	require.NoError(t, r.AddAlias(ctx, id, "Acme Corp"))
	require.NoError(t, r.AddAlias(ctx, id, "Acme Corp"))

	aliases, err := r.Aliases(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, []string{"Acme Corp"}, aliases)
}

func TestAddExternalID(t *testing.T) {
	ctx := context.Background()
	r := newTestRegistry(t)

	a, err := r.GetOrCreateCanonical(ctx, "ORG", "acme", "")
	require.NoError(t, err)
	b, err := r.GetOrCreateCanonical(ctx, "ORG", "acme corp", "")
	require.NoError(t, err)

	claimed, err := r.AddExternalID(ctx, a, "wikidata", "Q1")
	require.NoError(t, err)
	assert.True(t, claimed)

	claimed, err = r.AddExternalID(ctx, b, "wikidata", "Q1")
	require.NoError(t, err)
	assert.False(t, claimed, "second claim must be refused")

	claimed, err = r.AddExternalID(ctx, a, "wikidata", "Q1")
	require.NoError(t, err)
	assert.True(t, claimed, "re-adding own pair is idempotent")

	claimed, err = r.AddExternalID(ctx, b, "wikidata", "")
	require.NoError(t, err)
	assert.False(t, claimed)

	stats, err := r.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.ExternalIDs)

	owner, err := r.OwnerOf(ctx, "wikidata", "Q1")
	require.NoError(t, err)
	assert.Equal(t, a, owner)

	ids, err := r.ExternalIDs(ctx, a)
	require.NoError(t, err)
	assert.Equal(t, []ExternalID{{Source: "wikidata", ID: "Q1"}}, ids)

	ids, err = r.ExternalIDs(ctx, b)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestLookupNotFound(t *testing.T) {
	r := newTestRegistry(t)
	_, err := r.Lookup(context.Background(), "ORG", "nobody")
	require.Error(t, err)
	assert.True(t, errors.IsNotFoundError(err))
}

func TestRegistryIOFailures(t *testing.T) {
	ctx := context.Background()

	t.Run("insert failure is fatal", func(t *testing.T) {
		conn, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer conn.Close()

		mock.ExpectQuery("SELECT canonical_id FROM entities").
			WithArgs("ORG", "acme").
			WillReturnRows(sqlmock.NewRows([]string{"canonical_id"}))
		mock.ExpectExec("INSERT OR IGNORE INTO entities").
			WillReturnError(errors.New("disk I/O error"))

		_, err = New(conn, nil).GetOrCreateCanonical(ctx, "ORG", "Acme", "Acme")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "disk I/O error")
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("memo skips the lookup on repeat", func(t *testing.T) {
		conn, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer conn.Close()

		mock.ExpectQuery("SELECT canonical_id FROM entities").
			WillReturnRows(sqlmock.NewRows([]string{"canonical_id"}).AddRow("cid-1"))

		r := New(conn, nil)
		id, err := r.GetOrCreateCanonical(ctx, "ORG", "acme", "")
		require.NoError(t, err)
		assert.Equal(t, "cid-1", id)

		id, err = r.GetOrCreateCanonical(ctx, "ORG", "ACME", "")
		require.NoError(t, err)
		assert.Equal(t, "cid-1", id)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("constraint violation is a conflict", func(t *testing.T) {
		conn, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer conn.Close()

		mock.ExpectExec("INSERT OR IGNORE INTO aliases").
			WithArgs("no-such-id", "Acme").
			WillReturnError(errors.New("FOREIGN KEY constraint failed"))

		err = New(conn, nil).AddAlias(ctx, "no-such-id", "Acme")
		require.Error(t, err)
		assert.True(t, errors.Is(err, errors.ErrConflict))
		assert.Equal(t, errors.ExitInternal, errors.ExitCode(err))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("external id insert failure", func(t *testing.T) {
		conn, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer conn.Close()

		mock.ExpectExec("INSERT OR IGNORE INTO external_ids").
			WillReturnError(errors.New("database is locked"))

		_, err = New(conn, nil).AddExternalID(ctx, "cid", "uei", "X1")
		require.Error(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("stats on closed database", func(t *testing.T) {
		conn := qtest.CreateTestDB(t)
		r := New(conn, nil)
		conn.Close()

		_, err := r.Stats(ctx)
		require.Error(t, err)
		assert.True(t, errors.Is(err, errors.ErrServiceUnavailable))
	})
}
