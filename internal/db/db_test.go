package db

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestQueries(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()

	database, err := Open(ctx, Config{File: ":memory:"})
	require.NoError(t, err)
	defer database.Close()
	qry := New(database)

	_, err = qry.GetValue(ctx, "courses")
	require.True(t, errors.Is(err, sql.ErrNoRows))

	require.NoError(t, qry.SetValue(ctx, SetValueParams{Key: "courses", Value: "[]", UpdatedAt: 1}))
	require.NoError(t, qry.SetValue(ctx, SetValueParams{Key: "courses", Value: "[1]", UpdatedAt: 2}))
	require.NoError(t, qry.SetValue(ctx, SetValueParams{Key: "report:123456", Value: "{}", UpdatedAt: 3}))
	require.NoError(t, qry.SetValue(ctx, SetValueParams{Key: "report:MATH1D-1", Value: "{}", UpdatedAt: 4}))

	value, err := qry.GetValue(ctx, "courses")
	require.NoError(t, err)
	require.Equal(t, "[1]", value)

	keys, err := qry.ListKeys(ctx, "report:%")
	require.NoError(t, err)
	require.Equal(t, []ListKeysRow{
		{Key: "report:123456", UpdatedAt: 3},
		{Key: "report:MATH1D-1", UpdatedAt: 4},
	}, keys)

	require.NoError(t, qry.DeleteValue(ctx, "courses"))
	_, err = qry.GetValue(ctx, "courses")
	require.True(t, errors.Is(err, sql.ErrNoRows))
}

func TestMakeTx(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()

	database, err := Open(ctx, Config{File: ":memory:"})
	require.NoError(t, err)
	defer database.Close()
	makeTx := NewMakeTx(database)

	tx, discard, _, err := makeTx(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.SetValue(ctx, SetValueParams{Key: "settings", Value: "{}", UpdatedAt: 1}))
	require.NoError(t, discard())

	_, err = New(database).GetValue(ctx, "settings")
	require.True(t, errors.Is(err, sql.ErrNoRows))

	tx, discard, commit, err := makeTx(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.SetValue(ctx, SetValueParams{Key: "settings", Value: "{}", UpdatedAt: 1}))
	require.NoError(t, commit())
	require.NoError(t, discard())

	value, err := New(database).GetValue(ctx, "settings")
	require.NoError(t, err)
	require.Equal(t, "{}", value)
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := Open(context.Background(), Config{})
	require.Error(t, err)
}
