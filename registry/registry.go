// Package registry is the canonical identity store.
//
// Every real-world entity is keyed by (TYPE, normalized label) and gets a
// canonical id that is a pure function of that pair, so separate runs and
// separate processes agree on ids without coordination. Aliases and external
// ids accumulate with insert-or-ignore semantics and are never deleted.
package registry

import (
	"context"
	"database/sql"
	"strings"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/teranos/factgate/db"
	"github.com/teranos/factgate/errors"
	"github.com/teranos/factgate/logger"
	"github.com/teranos/factgate/sym"
)

// idNamespace prefixes the UUIDv5 name so ids never collide with other
// URL-namespaced UUIDs.
const idNamespace = "factgate://entity/"

// Entity is one row of the entities table.
type Entity struct {
	CanonicalID     string `json:"canonical_id"`
	Type            string `json:"type"`
	NormalizedLabel string `json:"normalized_label"`
	PrimaryName     string `json:"primary_name,omitempty"`
}

// ExternalID is a cross-reference into an outside identifier space.
type ExternalID struct {
	Source string `json:"source"`
	ID     string `json:"id"`
}

// Stats holds row counts per registry table.
type Stats struct {
	Entities    int `json:"entities"`
	Aliases     int `json:"aliases"`
	ExternalIDs int `json:"external_ids"`
}

// Registry is an explicit handle on the identity store. It is safe for
// sequential use by one pipeline stage; concurrent writers converge through
// the unique indexes.
type Registry struct {
	db     *sql.DB
	ownsDB bool
	logger *zap.SugaredLogger
	// memo of type|label -> canonical id; ids never change once minted
	ids *cache.Cache
}

// Normalize trims surrounding whitespace and lowercases.
func Normalize(label string) string {
	return strings.ToLower(strings.TrimSpace(label))
}

// NormalizeType uppercases and trims an entity type.
func NormalizeType(typ string) string {
	return strings.ToUpper(strings.TrimSpace(typ))
}

// CanonicalID computes the deterministic id for (typ, label).
// It needs no store and is stable across processes.
func CanonicalID(typ, label string) string {
	name := idNamespace + NormalizeType(typ) + "|" + Normalize(label)
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(name)).String()
}

// Open opens (creating if absent) the registry database at path and applies
// migrations. Close must be called to release it.
func Open(path string, log *zap.SugaredLogger) (*Registry, error) {
	conn, err := db.OpenWithMigrations(path, log)
	if err != nil {
		return nil, errors.Wrap(err, "open registry")
	}
	r := New(conn, log)
	r.ownsDB = true
	return r, nil
}

// New wraps an already migrated database handle. The caller keeps
// ownership of conn.
func New(conn *sql.DB, log *zap.SugaredLogger) *Registry {
	return &Registry{
		db:     conn,
		logger: logger.OrNop(log),
		ids:    cache.New(cache.NoExpiration, 0),
	}
}

// Close releases the database if the registry opened it.
func (r *Registry) Close() error {
	r.ids.Flush()
	if !r.ownsDB {
		return nil
	}
	return errors.Wrap(r.db.Close(), "close registry")
}

func memoKey(typ, norm string) string {
	return typ + "|" + norm
}

// GetOrCreateCanonical returns the canonical id for (typ, label), inserting
// the entity when absent. A non-empty primaryName is registered as an alias.
func (r *Registry) GetOrCreateCanonical(ctx context.Context, typ, label, primaryName string) (string, error) {
	typ = NormalizeType(typ)
	norm := Normalize(label)
	key := memoKey(typ, norm)

	if cached, ok := r.ids.Get(key); ok {
		id := cached.(string)
		if err := r.AddAlias(ctx, id, primaryName); err != nil {
			return "", err
		}
		return id, nil
	}

	id, err := r.lookupID(ctx, typ, norm)
	switch {
	case err == nil:
	case errors.IsNotFoundError(err):
		id = CanonicalID(typ, norm)
		var pn interface{}
		if primaryName != "" {
			pn = primaryName
		}
		_, err = r.db.ExecContext(ctx, `
			INSERT OR IGNORE INTO entities (canonical_id, type, normalized_label, primary_name)
			VALUES (?, ?, ?, ?)`,
			id, typ, norm, pn)
		if err != nil {
			return "", writeError(err, "failed to create entity %s|%s", typ, norm)
		}
		r.logger.Debugw("Minted canonical id",
			logger.FieldCanonicalID, id,
			logger.FieldType, typ,
			logger.FieldLabel, norm,
			logger.FieldSymbol, sym.Registry,
		)
	default:
		return "", err
	}

	if err := r.AddAlias(ctx, id, primaryName); err != nil {
		return "", err
	}
	r.ids.Set(key, id, cache.NoExpiration)
	return id, nil
}

func (r *Registry) lookupID(ctx context.Context, typ, norm string) (string, error) {
	var id string
	err := r.db.QueryRowContext(ctx,
		"SELECT canonical_id FROM entities WHERE type = ? AND normalized_label = ?",
		typ, norm).Scan(&id)
	if err == sql.ErrNoRows {
		return "", errors.NewNotFoundError("entity %s|%s", typ, norm)
	}
	if err != nil {
		return "", errors.Wrapf(err, "failed to look up entity %s|%s", typ, norm)
	}
	return id, nil
}

// writeError wraps a failed insert. Constraint violations, such as an alias
// for an unknown canonical id, are marked as conflicts.
func writeError(err error, format string, args ...interface{}) error {
	wrapped := errors.Wrapf(err, format, args...)
	if db.IsConstraintViolation(err) {
		return errors.Mark(wrapped, errors.ErrConflict)
	}
	return wrapped
}

// AddAlias records alias for canonicalID. Empty aliases are ignored.
func (r *Registry) AddAlias(ctx context.Context, canonicalID, alias string) error {
	if alias == "" {
		return nil
	}
	_, err := r.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO aliases (canonical_id, alias) VALUES (?, ?)",
		canonicalID, alias)
	if err != nil {
		return writeError(err, "failed to add alias %q to %s", alias, canonicalID)
	}
	return nil
}

// AddExternalID attaches (source, externalID) to canonicalID. Each pair may
// belong to only one entity; a second claim is refused without error.
// The returned bool reports whether canonicalID owns the pair afterwards.
func (r *Registry) AddExternalID(ctx context.Context, canonicalID, source, externalID string) (bool, error) {
	if externalID == "" {
		return false, nil
	}
	_, err := r.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO external_ids (canonical_id, source, external_id) VALUES (?, ?, ?)",
		canonicalID, source, externalID)
	if err != nil {
		return false, writeError(err, "failed to add external id %s:%s", source, externalID)
	}

	owner, err := r.OwnerOf(ctx, source, externalID)
	if err != nil {
		return false, err
	}
	if owner != canonicalID {
		r.logger.Warnw("External id already claimed",
			logger.FieldSource, source,
			logger.FieldExternalID, externalID,
			logger.FieldCanonicalID, canonicalID,
			"owner", owner,
		)
		return false, nil
	}
	return true, nil
}

// OwnerOf returns the canonical id holding (source, externalID).
func (r *Registry) OwnerOf(ctx context.Context, source, externalID string) (string, error) {
	var owner string
	err := r.db.QueryRowContext(ctx,
		"SELECT canonical_id FROM external_ids WHERE source = ? AND external_id = ?",
		source, externalID).Scan(&owner)
	if err == sql.ErrNoRows {
		return "", errors.NewNotFoundError("external id %s:%s", source, externalID)
	}
	if err != nil {
		return "", errors.Wrapf(err, "failed to look up external id %s:%s", source, externalID)
	}
	return owner, nil
}

// Lookup returns the stored entity for (typ, label) or an ErrNotFound error.
func (r *Registry) Lookup(ctx context.Context, typ, label string) (*Entity, error) {
	e := &Entity{}
	var primary sql.NullString
	err := r.db.QueryRowContext(ctx, `
		SELECT canonical_id, type, normalized_label, primary_name
		FROM entities WHERE type = ? AND normalized_label = ?`,
		NormalizeType(typ), Normalize(label)).Scan(&e.CanonicalID, &e.Type, &e.NormalizedLabel, &primary)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFoundError("entity %s|%s", NormalizeType(typ), Normalize(label))
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to look up entity")
	}
	e.PrimaryName = primary.String
	return e, nil
}

// Aliases returns the aliases of canonicalID in ascending order.
func (r *Registry) Aliases(ctx context.Context, canonicalID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT alias FROM aliases WHERE canonical_id = ? ORDER BY alias", canonicalID)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to list aliases of %s", canonicalID)
	}
	defer rows.Close()

	var aliases []string
	for rows.Next() {
		var a string
		if err := rows.Scan(&a); err != nil {
			return nil, errors.Wrap(err, "failed to scan alias")
		}
		aliases = append(aliases, a)
	}
	return aliases, rows.Err()
}

// ExternalIDs returns the pairs owned by canonicalID sorted by (source, id).
func (r *Registry) ExternalIDs(ctx context.Context, canonicalID string) ([]ExternalID, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT source, external_id FROM external_ids
		WHERE canonical_id = ? ORDER BY source, external_id`, canonicalID)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to list external ids of %s", canonicalID)
	}
	defer rows.Close()

	var out []ExternalID
	for rows.Next() {
		var x ExternalID
		if err := rows.Scan(&x.Source, &x.ID); err != nil {
			return nil, errors.Wrap(err, "failed to scan external id")
		}
		out = append(out, x)
	}
	return out, rows.Err()
}

// Stats counts rows in each registry table.
func (r *Registry) Stats(ctx context.Context) (Stats, error) {
	var s Stats
	counts := []struct {
		table string
		dst   *int
	}{
		{"entities", &s.Entities},
		{"aliases", &s.Aliases},
		{"external_ids", &s.ExternalIDs},
	}
	for _, c := range counts {
		if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+c.table).Scan(c.dst); err != nil {
			if db.IsDatabaseClosed(err) {
				return s, errors.Wrap(db.ErrDatabaseClosed, "registry stats")
			}
			return s, errors.Wrapf(err, "failed to count %s", c.table)
		}
	}
	return s, nil
}
