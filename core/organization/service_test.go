package organization_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/kinerja/core"
	"github.com/trezcool/kinerja/core/organization"
	"github.com/trezcool/kinerja/core/user"
	testutil "github.com/trezcool/kinerja/tests"
)

func strPtr(s string) *string { return &s }

func TestService(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	svc := env.OrganizationSvc

	head := testutil.CreateUser(t, env.UserRepo, "Kepala", "kepala", "kepala@sekolah.id", "", []string{user.RoleKepalaSekolah}, true)
	guru := testutil.CreateUser(t, env.UserRepo, "Guru", "guru", "guru@sekolah.id", "", []string{user.RoleGuru}, true)

	t.Run("invalid head", func(t *testing.T) {
		tests := []struct {
			name   string
			headID string
		}{
			{name: "unknown user", headID: "4a1e9c55-8f5c-4a3f-b9f1-3c2a7e0d9b21"},
			{name: "not a kepala_sekolah", headID: guru.ID},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, err := svc.Create(ctx, organization.NewOrganization{Name: "SDN 1", HeadID: tt.headID})
				assert.True(t, core.IsValidation(err), "got %v", err)
			})
		}

		// the failed creates were rolled back
		orgs, err := svc.Query(ctx, nil, nil)
		require.NoError(t, err)
		assert.Empty(t, orgs)
	})

	sdn1, err := svc.Create(ctx, organization.NewOrganization{Name: "SDN 1 Bandung", HeadID: head.ID})
	require.NoError(t, err)
	assert.Equal(t, head.ID, sdn1.HeadID)

	t.Run("head moved into organization", func(t *testing.T) {
		got, err := env.UserSvc.GetByID(ctx, head.ID)
		require.NoError(t, err)
		assert.Equal(t, sdn1.ID, got.OrganizationID)
	})

	sdn2, err := svc.Create(ctx, organization.NewOrganization{Name: "SDN 2 Bandung"})
	require.NoError(t, err)
	assert.False(t, sdn2.HasHead())

	t.Run("head of another organization", func(t *testing.T) {
		_, err := svc.Update(ctx, sdn2.ID, organization.UpdateOrganization{HeadID: strPtr(head.ID)})
		assert.True(t, core.IsValidation(err), "got %v", err)
	})

	t.Run("query", func(t *testing.T) {
		orgs, err := svc.Query(ctx, &organization.QueryFilter{Search: "sdn 2"}, nil)
		require.NoError(t, err)
		require.Len(t, orgs, 1)
		assert.Equal(t, sdn2.ID, orgs[0].ID)

		orgs, err = svc.WithHead(ctx)
		require.NoError(t, err)
		require.Len(t, orgs, 1)
		assert.Equal(t, sdn1.ID, orgs[0].ID)
	})

	t.Run("update", func(t *testing.T) {
		org, err := svc.Update(ctx, sdn1.ID, organization.UpdateOrganization{Name: strPtr("SDN 1 Kota Bandung"), HeadID: strPtr("")})
		require.NoError(t, err)
		assert.Equal(t, "SDN 1 Kota Bandung", org.Name)
		assert.False(t, org.HasHead())

		_, err = svc.Update(ctx, "unknown", organization.UpdateOrganization{})
		assert.True(t, core.IsNotFound(err), "got %v", err)
	})

	t.Run("delete", func(t *testing.T) {
		err := svc.Delete(ctx, sdn1.ID)
		assert.True(t, core.IsConflict(err), "got %v", err)

		require.NoError(t, svc.Delete(ctx, sdn2.ID))
		_, err = svc.GetByID(ctx, sdn2.ID)
		assert.True(t, core.IsNotFound(err), "got %v", err)
	})
}
