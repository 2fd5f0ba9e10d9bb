package period_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/kinerja/core"
	"github.com/trezcool/kinerja/core/period"
	"github.com/trezcool/kinerja/core/user"
	testutil "github.com/trezcool/kinerja/tests"
)

func strPtr(s string) *string { return &s }

func TestNewPeriod_Validate(t *testing.T) {
	env := testutil.NewEnv(t)

	valid := func() period.NewPeriod {
		return period.NewPeriod{AcademicYear: " 2024/2025 ", Semester: "Ganjil", StartDate: "2024-07-15", EndDate: "2024-12-20"}
	}

	tests := []struct {
		name    string
		mutate  func(np *period.NewPeriod)
		wantErr bool
	}{
		{name: "valid"},
		{name: "bad academic year", mutate: func(np *period.NewPeriod) { np.AcademicYear = "2024-2025" }, wantErr: true},
		{name: "non consecutive years", mutate: func(np *period.NewPeriod) { np.AcademicYear = "2024/2026" }, wantErr: true},
		{name: "bad semester", mutate: func(np *period.NewPeriod) { np.Semester = "Summer" }, wantErr: true},
		{name: "bad date", mutate: func(np *period.NewPeriod) { np.StartDate = "15/07/2024" }, wantErr: true},
		{name: "end before start", mutate: func(np *period.NewPeriod) { np.EndDate = "2024-07-01" }, wantErr: true},
		{name: "same day", mutate: func(np *period.NewPeriod) { np.EndDate = np.StartDate }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			np := valid()
			if tt.mutate != nil {
				tt.mutate(&np)
			}
			err := np.Validate(env.Validate)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "2024/2025", np.AcademicYear)
		})
	}
}

func TestPeriod_JSON(t *testing.T) {
	p := period.Period{
		ID:           "p1",
		AcademicYear: "2024/2025",
		Semester:     period.SemesterGenap,
		StartDate:    time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC),
		EndDate:      time.Date(2025, 6, 20, 0, 0, 0, 0, time.UTC),
	}
	data, err := json.Marshal(p)
	require.NoError(t, err)

	var raw map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, "2024/2025 - Genap", raw["name"])
	assert.Equal(t, "2025-01-06", raw["start_date"])
	assert.Equal(t, "2025-06-20", raw["end_date"])

	var got period.Period
	require.NoError(t, json.Unmarshal(data, &got))
	assert.True(t, p.StartDate.Equal(got.StartDate))
	assert.Equal(t, p.Name(), got.Name())

	assert.True(t, p.IsCurrent(time.Date(2025, 6, 20, 23, 0, 0, 0, time.UTC)))
	assert.False(t, p.IsCurrent(time.Date(2025, 6, 21, 0, 0, 0, 0, time.UTC)))
}

func TestService(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	svc := env.PeriodSvc

	create := func(t *testing.T, year, semester, start, end string, active bool) period.Period {
		t.Helper()
		np := period.NewPeriod{AcademicYear: year, Semester: semester, StartDate: start, EndDate: end, IsActive: active}
		require.NoError(t, np.Validate(env.Validate))
		p, err := svc.Create(ctx, np)
		require.NoError(t, err)
		return p
	}

	ganjil := create(t, "2024/2025", period.SemesterGanjil, "2024-07-15", "2024-12-20", true)
	genap := create(t, "2024/2025", period.SemesterGenap, "2025-01-06", "2025-06-20", false)

	t.Run("duplicate", func(t *testing.T) {
		np := period.NewPeriod{AcademicYear: "2024/2025", Semester: period.SemesterGanjil, StartDate: "2024-08-01", EndDate: "2024-12-01"}
		_, err := svc.Create(ctx, np)
		assert.True(t, core.IsConflict(err), "got %v", err)

		_, err = svc.Update(ctx, genap.ID, period.UpdatePeriod{Semester: strPtr(period.SemesterGanjil)})
		assert.True(t, core.IsConflict(err), "got %v", err)
	})

	t.Run("update", func(t *testing.T) {
		_, err := svc.Update(ctx, genap.ID, period.UpdatePeriod{EndDate: strPtr("2024-12-31")})
		assert.True(t, core.IsValidation(err), "got %v", err)

		p, err := svc.Update(ctx, genap.ID, period.UpdatePeriod{Description: strPtr(" Semester genap ")})
		require.NoError(t, err)
		assert.Equal(t, "Semester genap", p.Description)

		_, err = svc.Update(ctx, "unknown", period.UpdatePeriod{})
		assert.True(t, core.IsNotFound(err), "got %v", err)
	})

	t.Run("single active period", func(t *testing.T) {
		active, err := svc.GetActive(ctx)
		require.NoError(t, err)
		assert.Equal(t, ganjil.ID, active.ID)

		p, err := svc.Activate(ctx, genap.ID)
		require.NoError(t, err)
		assert.True(t, p.IsActive)

		isActive := true
		periods, err := svc.Query(ctx, &period.QueryFilter{IsActive: &isActive}, nil)
		require.NoError(t, err)
		require.Len(t, periods, 1)
		assert.Equal(t, genap.ID, periods[0].ID)

		// creating an active period takes over
		next := create(t, "2025/2026", period.SemesterGanjil, "2025-07-14", "2025-12-19", true)
		active, err = svc.GetActive(ctx)
		require.NoError(t, err)
		assert.Equal(t, next.ID, active.ID)

		p, err = svc.Deactivate(ctx, next.ID)
		require.NoError(t, err)
		assert.False(t, p.IsActive)
		_, err = svc.GetActive(ctx)
		assert.True(t, core.IsNotFound(err), "got %v", err)

		// deactivating twice is a no-op
		_, err = svc.Deactivate(ctx, next.ID)
		assert.NoError(t, err)
	})

	t.Run("query", func(t *testing.T) {
		periods, err := svc.Query(ctx, &period.QueryFilter{Semester: period.SemesterGenap}, nil)
		require.NoError(t, err)
		require.Len(t, periods, 1)
		assert.Equal(t, genap.ID, periods[0].ID)

		periods, err = svc.Current(ctx, time.Date(2024, 9, 1, 10, 0, 0, 0, time.UTC))
		require.NoError(t, err)
		require.Len(t, periods, 1)
		assert.Equal(t, ganjil.ID, periods[0].ID)

		periods, err = svc.Query(ctx, &period.QueryFilter{AcademicYear: "2024/2025"}, []core.DBOrdering{{Field: "start_date", Ascending: true}})
		require.NoError(t, err)
		require.Len(t, periods, 2)
		assert.Equal(t, ganjil.ID, periods[0].ID)
		assert.Equal(t, genap.ID, periods[1].ID)
	})

	t.Run("delete", func(t *testing.T) {
		testutil.CreateUser(t, env.UserRepo, "Guru", "guru", "guru@sekolah.id", "", []string{user.RoleGuru}, true)
		_, err := env.RPPSvc.GenerateForPeriod(ctx, ganjil.ID)
		require.NoError(t, err)

		err = svc.Delete(ctx, ganjil.ID)
		assert.True(t, core.IsConflict(err), "got %v", err)

		require.NoError(t, svc.Delete(ctx, genap.ID))
		_, err = svc.GetByID(ctx, genap.ID)
		assert.True(t, core.IsNotFound(err), "got %v", err)

		err = svc.Delete(ctx, genap.ID)
		assert.True(t, core.IsNotFound(err), "got %v", err)

		// the slot is free again once deleted
		create(t, "2024/2025", period.SemesterGenap, "2025-01-06", "2025-06-20", false)
	})
}
