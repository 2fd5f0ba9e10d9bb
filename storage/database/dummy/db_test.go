package dummydb_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/kinerja/core"
	"github.com/trezcool/kinerja/core/aspect"
	"github.com/trezcool/kinerja/core/organization"
	dummydb "github.com/trezcool/kinerja/storage/database/dummy"
)

func TestTransactor_WithinTx(t *testing.T) {
	db, err := dummydb.Open()
	require.NoError(t, err)
	tx := dummydb.NewTransactor(db)
	repo := dummydb.NewOrganizationRepository(db)
	ctx := context.Background()

	count := func(t *testing.T) int {
		t.Helper()
		orgs, err := repo.QueryOrganizations(ctx, nil, nil)
		require.NoError(t, err)
		return len(orgs)
	}
	create := func(exec core.DBExecutor) error {
		_, err := repo.CreateOrganization(ctx, organization.Organization{Name: "SDN 1", CreatedAt: core.Now()}, exec)
		return err
	}

	t.Run("commit", func(t *testing.T) {
		require.NoError(t, tx.WithinTx(ctx, create))
		assert.Equal(t, 1, count(t))
	})

	t.Run("rollback on error", func(t *testing.T) {
		errBoom := errors.New("boom")
		err := tx.WithinTx(ctx, func(exec core.DBExecutor) error {
			if err := create(exec); err != nil {
				return err
			}
			return errBoom
		})
		assert.Equal(t, errBoom, err)
		assert.Equal(t, 1, count(t))
	})

	t.Run("rollback on panic", func(t *testing.T) {
		assert.Panics(t, func() {
			_ = tx.WithinTx(ctx, func(exec core.DBExecutor) error {
				_ = create(exec)
				panic("boom")
			})
		})
		assert.Equal(t, 1, count(t))
	})

	t.Run("canceled context", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		err := tx.WithinTx(cctx, create)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, count(t))
	})

	t.Run("flush", func(t *testing.T) {
		db.Flush()
		assert.Zero(t, count(t))
	})
}

func TestAspectRepository_softDelete(t *testing.T) {
	db, err := dummydb.Open()
	require.NoError(t, err)
	tx := dummydb.NewTransactor(db)
	repo := dummydb.NewAspectRepository(db)
	ctx := context.Background()

	a, err := repo.CreateAspect(ctx, aspect.Aspect{Name: "Pedagogik", Category: "Kompetensi", MinScore: 1, MaxScore: 4, IsActive: true})
	require.NoError(t, err)

	// a rolled back delete leaves the aspect visible
	errBoom := errors.New("boom")
	err = tx.WithinTx(ctx, func(exec core.DBExecutor) error {
		if err := repo.DeleteAspect(ctx, a.ID, exec); err != nil {
			return err
		}
		return errBoom
	})
	require.Equal(t, errBoom, err)
	_, err = repo.GetAspect(ctx, a.ID)
	require.NoError(t, err)

	require.NoError(t, repo.DeleteAspect(ctx, a.ID))
	_, err = repo.GetAspect(ctx, a.ID)
	assert.Equal(t, aspect.ErrNotFound, err)
	assert.Equal(t, aspect.ErrNotFound, repo.DeleteAspect(ctx, a.ID))
	_, err = repo.UpdateAspect(ctx, a)
	assert.Equal(t, aspect.ErrNotFound, err)

	live, err := repo.QueryAspects(ctx, &aspect.QueryFilter{IDs: []string{a.ID}}, nil)
	require.NoError(t, err)
	assert.Empty(t, live)
	all, err := repo.QueryAspects(ctx, &aspect.QueryFilter{IDs: []string{a.ID}, WithDeleted: true}, nil)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, a.ID, all[0].ID)
}
