package storage

import (
	"context"
	"testing"
	"time"

	"entitysvc/core"
	"entitysvc/search"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestSQLiteSession_RoundTrip tests insert, lookup, update and delete through the unit of work
func TestSQLiteSession_RoundTrip(t *testing.T) {
	sqlite := setupTestSQLite(t)
	ctx := context.Background()
	users := userDescriptor()

	pt := newCountry("PT", "Portugal")
	insertEntity(t, sqlite, countryDescriptor(), pt)
	require.False(t, pt.Transient(), "Insert should assign an identifier")

	joined := time.Date(2024, 3, 1, 12, 30, 0, 123456789, time.UTC)
	alice := newUser("alice", 34, pt)
	alice.Set("score", 9.5)
	alice.Set("active", true)
	alice.Set("joined_at", joined)
	insertEntity(t, sqlite, users, alice)

	sess, err := sqlite.Session(ctx)
	require.NoError(t, err)

	loaded, err := sess.FindByID(ctx, users, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, alice.ID, loaded.ID)
	assert.Equal(t, "user:testcenter", loaded.Type)
	assert.Equal(t, map[string]any{
		"name":      "alice",
		"age":       int64(34),
		"score":     9.5,
		"active":    true,
		"joined_at": joined,
		"country":   core.Reference{Type: "country:testcenter", ID: pt.ID},
	}, loaded.Values())

	byName, err := sess.FindByUnique(ctx, users, "name", "alice")
	require.NoError(t, err)
	assert.Equal(t, alice.ID, byName.ID)

	// update
	tx, err := sqlite.Begin(ctx)
	require.NoError(t, err)
	loaded.Set("age", int64(35))
	loaded.Set("country", nil)
	require.NoError(t, tx.Persist(users, loaded))
	require.NoError(t, tx.Flush(ctx))
	require.NoError(t, tx.Commit(ctx))

	updated, err := sess.FindByID(ctx, users, alice.ID)
	require.NoError(t, err)
	age, _ := updated.Get("age")
	assert.Equal(t, int64(35), age)
	country, ok := updated.Get("country")
	assert.True(t, ok)
	assert.Nil(t, country)

	// delete
	tx, err = sqlite.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.Remove(users, updated))
	require.NoError(t, tx.Flush(ctx))
	require.NoError(t, tx.Commit(ctx))

	_, err = sess.FindByID(ctx, users, alice.ID)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestSQLiteSession_FindErrors(t *testing.T) {
	sqlite := setupTestSQLite(t)
	ctx := context.Background()
	sess, err := sqlite.Session(ctx)
	require.NoError(t, err)

	_, err = sess.FindByID(ctx, userDescriptor(), "missing")
	assert.ErrorIs(t, err, core.ErrNotFound)

	_, err = sess.FindByUnique(ctx, userDescriptor(), "age", 3)
	assert.ErrorIs(t, err, core.ErrInvalidParameter, "age is not a unique field")

	_, err = sess.FindByUnique(ctx, userDescriptor(), "nickname", "x")
	assert.ErrorIs(t, err, core.ErrUnknownField)
}

// TestSQLiteSession_ExecuteAndCount tests filtered, sorted and limited queries
func TestSQLiteSession_ExecuteAndCount(t *testing.T) {
	sqlite := setupTestSQLite(t)
	ctx := context.Background()
	users := userDescriptor()

	pt := newCountry("PT", "Portugal")
	es := newCountry("ES", "Spain")
	insertEntity(t, sqlite, countryDescriptor(), pt)
	insertEntity(t, sqlite, countryDescriptor(), es)
	for _, u := range []*core.Entity{
		newUser("ana", 25, pt),
		newUser("bob", 40, es),
		newUser("carl", 40, pt),
		newUser("dora", 31, es),
	} {
		insertEntity(t, sqlite, users, u)
	}

	sess, err := sqlite.Session(ctx)
	require.NoError(t, err)

	pred, err := search.NewCompiler(users).Compile(core.Or(
		core.Compare("age", core.OpGt, 30),
		core.Compare("country", core.OpEq, pt.ID),
	))
	require.NoError(t, err)

	rows, err := sess.Execute(ctx, search.NewQuery(users).Filter(pred).OrderBy(search.ExtractSort("!age;name")))
	require.NoError(t, err)
	assert.Equal(t, []string{"bob", "carl", "dora", "ana"}, names(rows))

	rows, err = sess.Execute(ctx, search.NewQuery(users).OrderBy(search.ExtractSort("name")).SetLimit(2))
	require.NoError(t, err)
	assert.Equal(t, []string{"ana", "bob"}, names(rows))

	n, err := sess.Count(ctx, search.NewQuery(users))
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)

	n, err = sess.Count(ctx, search.NewQuery(users).Filter(pred))
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)

	like, err := search.NewCompiler(users).Compile(core.Compare("name", core.OpLike, "%a"))
	require.NoError(t, err)
	n, err = sess.Count(ctx, search.NewQuery(users).Filter(like))
	require.NoError(t, err)
	assert.Equal(t, int64(2), n, "ana and dora end with a")
}

// TestSQLiteSession_LikeQuoteIsLiteral tests that quotes in a LIKE value cannot break out of the pattern
func TestSQLiteSession_LikeQuoteIsLiteral(t *testing.T) {
	sqlite := setupTestSQLite(t)
	ctx := context.Background()
	users := userDescriptor()

	insertEntity(t, sqlite, users, newUser("O'Brien", 50, nil))
	insertEntity(t, sqlite, users, newUser("Obrien", 51, nil))

	sess, err := sqlite.Session(ctx)
	require.NoError(t, err)

	for pattern, expected := range map[string][]string{
		"O'%":                   {"O'Brien"},
		"O_rien":                {"Obrien"},
		"%' OR '1'='1":          {},
		"x'; DROP TABLE users;": {},
	} {
		pred, err := search.NewCompiler(users).Compile(core.Compare("name", core.OpLike, pattern))
		require.NoError(t, err)
		rows, err := sess.Execute(ctx, search.NewQuery(users).Filter(pred).OrderBy(search.ExtractSort("")))
		require.NoError(t, err, pattern)
		assert.Equal(t, expected, names(rows), pattern)
	}

	n, err := sess.Count(ctx, search.NewQuery(users))
	require.NoError(t, err)
	assert.Equal(t, int64(2), n, "table must survive")
}

func TestSQLiteSession_ReadOnly(t *testing.T) {
	sqlite := setupTestSQLite(t)
	sess, err := sqlite.Session(context.Background())
	require.NoError(t, err)

	e := newCountry("PT", "Portugal")
	assert.ErrorIs(t, sess.Persist(countryDescriptor(), e), ErrReadOnlySession)
	assert.ErrorIs(t, sess.Remove(countryDescriptor(), e), ErrReadOnlySession)
	assert.NoError(t, sess.Flush(context.Background()), "Nothing queued")
}

func names(rows []*core.Entity) []string {
	out := []string{}
	for _, r := range rows {
		v, _ := r.Get("name")
		out = append(out, v.(string))
	}
	return out
}

// TestSQLiteTx_UpdateWritesChangedFieldsOnly verifies an update leaves columns
// it did not assign untouched
func TestSQLiteTx_UpdateWritesChangedFieldsOnly(t *testing.T) {
	sqlite := setupTestSQLite(t)
	ctx := context.Background()
	users := userDescriptor()

	bob := newUser("bob", 20, nil)
	insertEntity(t, sqlite, users, bob)
	assert.Empty(t, bob.Changed(), "Commit marks the entity clean")

	sess, err := sqlite.Session(ctx)
	require.NoError(t, err)
	first, err := sess.FindByID(ctx, users, bob.ID)
	require.NoError(t, err)
	second, err := sess.FindByID(ctx, users, bob.ID)
	require.NoError(t, err)
	assert.Empty(t, first.Changed(), "Loaded entities start clean")

	first.Set("age", int64(21))
	insertEntity(t, sqlite, users, first)

	second.Set("name", "robert")
	insertEntity(t, sqlite, users, second)

	stored, err := sess.FindByID(ctx, users, bob.ID)
	require.NoError(t, err)
	name, _ := stored.Get("name")
	age, _ := stored.Get("age")
	assert.Equal(t, "robert", name)
	assert.Equal(t, int64(21), age, "The stale age on the second copy was not written")
}

// TestSQLiteTx_RollbackKeepsChanges verifies a rolled-back update leaves the
// entity dirty so nothing pretends the row matches it
func TestSQLiteTx_RollbackKeepsChanges(t *testing.T) {
	sqlite := setupTestSQLite(t)
	ctx := context.Background()
	users := userDescriptor()

	bob := newUser("bob", 20, nil)
	insertEntity(t, sqlite, users, bob)

	tx, err := sqlite.Begin(ctx)
	require.NoError(t, err)
	bob.Set("age", int64(30))
	require.NoError(t, tx.Persist(users, bob))
	require.NoError(t, tx.Flush(ctx))
	require.NoError(t, tx.Rollback(ctx))

	assert.Equal(t, []string{"age"}, bob.Changed())
}
