package rpp_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/kinerja/core"
	"github.com/trezcool/kinerja/core/period"
	"github.com/trezcool/kinerja/core/rpp"
	"github.com/trezcool/kinerja/core/user"
	"github.com/trezcool/kinerja/tests"
)

type fixture struct {
	env    *testutil.Env
	period period.Period
	admin  user.User
	head   user.User
	guru   user.User
	other  user.User // guru of another school
}

func setUp(t *testing.T) fixture {
	env := testutil.NewEnv(t)
	org := testutil.CreateOrg(t, env.OrganizationRepo, "SDN 1 Bandung")
	otherOrg := testutil.CreateOrg(t, env.OrganizationRepo, "SDN 2 Bandung")

	return fixture{
		env:    env,
		period: testutil.CreatePeriod(t, env.PeriodRepo, "2024/2025", period.SemesterGanjil, "2024-07-15", "2024-12-20", true),
		admin:  testutil.CreateUser(t, env.UserRepo, "Admin", "admin", "admin@test.id", "", []string{user.RoleAdmin}, true),
		head:   testutil.CreateMember(t, env.UserRepo, org.ID, "Bu Kepala", "kepala", user.RoleKepalaSekolah),
		guru:   testutil.CreateMember(t, env.UserRepo, org.ID, "Pak Guru", "guru", user.RoleGuru),
		other:  testutil.CreateMember(t, env.UserRepo, otherOrg.ID, "Bu Guru", "guru2", user.RoleGuru),
	}
}

func uploadAll(t *testing.T, f fixture, teacher user.User) {
	for _, typ := range rpp.RequiredTypes {
		_, err := f.env.RPPSvc.UploadFile(context.Background(), teacher.Identity(), rpp.Upload{
			PeriodID: f.period.ID, Type: typ, FileID: "drive/" + typ + ".pdf",
		})
		require.NoError(t, err)
	}
}

func TestService_CreateSubmission(t *testing.T) {
	f := setUp(t)
	ctx := context.Background()
	svc := f.env.RPPSvc

	d, err := svc.CreateSubmission(ctx, rpp.NewSubmission{TeacherID: f.guru.ID, PeriodID: f.period.ID})
	require.NoError(t, err)
	assert.Equal(t, rpp.StatusDraft, d.Status)
	assert.Equal(t, f.guru.Name, d.TeacherName)
	assert.Equal(t, f.guru.OrganizationID, d.OrganizationID)
	assert.Len(t, d.Items, len(rpp.RequiredTypes))
	assert.Zero(t, d.CompletionPercentage)
	assert.False(t, d.CanBeSubmitted)

	tests := []struct {
		name  string
		data  rpp.NewSubmission
		check func(error) bool
	}{
		{name: "duplicate", data: rpp.NewSubmission{TeacherID: f.guru.ID, PeriodID: f.period.ID}, check: core.IsConflict},
		{name: "not a teacher", data: rpp.NewSubmission{TeacherID: f.admin.ID, PeriodID: f.period.ID}, check: core.IsValidation},
		{name: "unknown teacher", data: rpp.NewSubmission{TeacherID: "nope", PeriodID: f.period.ID}, check: core.IsNotFound},
		{name: "unknown period", data: rpp.NewSubmission{TeacherID: f.head.ID, PeriodID: "nope"}, check: core.IsNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateSubmission(ctx, tt.data)
			assert.True(t, tt.check(err), "got %v", err)
		})
	}
}

func TestService_Workflow(t *testing.T) {
	f := setUp(t)
	ctx := context.Background()
	svc := f.env.RPPSvc

	d, err := svc.CreateSubmission(ctx, rpp.NewSubmission{TeacherID: f.guru.ID, PeriodID: f.period.ID})
	require.NoError(t, err)
	id := d.ID

	t.Run("submit incomplete", func(t *testing.T) {
		_, err := svc.Submit(ctx, f.guru.Identity(), id)
		assert.True(t, core.IsValidation(err), "got %v", err)
	})

	t.Run("upload for someone else", func(t *testing.T) {
		_, err := svc.UploadFile(ctx, f.other.Identity(), rpp.Upload{
			TeacherID: f.guru.ID, PeriodID: f.period.ID, Type: rpp.TypeHarian, FileID: "x",
		})
		assert.True(t, core.IsAuthorization(err), "got %v", err)
	})

	t.Run("upload without submission", func(t *testing.T) {
		_, err := svc.UploadFile(ctx, f.other.Identity(), rpp.Upload{PeriodID: f.period.ID, Type: rpp.TypeHarian, FileID: "x"})
		assert.True(t, core.IsNotFound(err), "got %v", err)
	})

	t.Run("upload all", func(t *testing.T) {
		uploadAll(t, f, f.guru)
		d, err := svc.Detail(ctx, f.guru.Identity(), id)
		require.NoError(t, err)
		assert.Equal(t, 100.0, d.CompletionPercentage)
		assert.True(t, d.CanBeSubmitted)
	})

	t.Run("submit by someone else", func(t *testing.T) {
		_, err := svc.Submit(ctx, f.head.Identity(), id)
		assert.True(t, core.IsAuthorization(err), "got %v", err)
	})

	t.Run("submit", func(t *testing.T) {
		f.env.Mail.Reset()
		d, err := svc.Submit(ctx, f.guru.Identity(), id)
		require.NoError(t, err)
		assert.Equal(t, rpp.StatusPending, d.Status)
		assert.False(t, d.SubmittedAt.IsZero())
		assert.False(t, d.CanBeSubmitted)

		sent := f.env.Mail.Sent()
		if assert.Len(t, sent, 1) {
			assert.Equal(t, f.head.Email, sent[0].To[0].Address)
			assert.Equal(t, "rpp_submitted", sent[0].TemplateName)
		}
	})

	t.Run("upload while pending", func(t *testing.T) {
		_, err := svc.UploadFile(ctx, f.guru.Identity(), rpp.Upload{PeriodID: f.period.ID, Type: rpp.TypeHarian, FileID: "v2"})
		assert.True(t, core.IsConflict(err), "got %v", err)
	})

	t.Run("submit twice", func(t *testing.T) {
		_, err := svc.Submit(ctx, f.guru.Identity(), id)
		assert.True(t, core.IsConflict(err), "got %v", err)
	})

	t.Run("review scope", func(t *testing.T) {
		rv := rpp.Review{Decision: rpp.EventApprove}
		for _, usr := range []user.User{f.admin, f.other, f.guru} {
			_, err := svc.Review(ctx, usr.Identity(), id, rv)
			assert.True(t, core.IsAuthorization(err), "%s: got %v", usr.Username, err)
		}
	})

	t.Run("reject without notes", func(t *testing.T) {
		_, err := svc.Review(ctx, f.head.Identity(), id, rpp.Review{Decision: rpp.EventReject})
		assert.True(t, core.IsValidation(err), "got %v", err)
	})

	t.Run("reject", func(t *testing.T) {
		f.env.Mail.Reset()
		d, err := svc.Review(ctx, f.head.Identity(), id, rpp.Review{Decision: rpp.EventReject, Notes: "Lengkapi tujuan pembelajaran"})
		require.NoError(t, err)
		assert.Equal(t, rpp.StatusRejected, d.Status)
		assert.Equal(t, f.head.ID, d.ReviewerID)
		assert.Equal(t, "Lengkapi tujuan pembelajaran", d.ReviewNotes)
		assert.True(t, d.CanBeSubmitted)

		sent := f.env.Mail.Sent()
		if assert.Len(t, sent, 1) {
			assert.Equal(t, f.guru.Email, sent[0].To[0].Address)
			assert.Equal(t, "rpp_reviewed", sent[0].TemplateName)
		}
	})

	t.Run("fix and resubmit", func(t *testing.T) {
		_, err := svc.UploadFile(ctx, f.guru.Identity(), rpp.Upload{PeriodID: f.period.ID, Type: rpp.TypeHarian, FileID: "v2"})
		require.NoError(t, err)
		d, err := svc.Submit(ctx, f.guru.Identity(), id)
		require.NoError(t, err)
		assert.Equal(t, rpp.StatusPending, d.Status)
		assert.Empty(t, d.ReviewerID)
		assert.Empty(t, d.ReviewNotes)
	})

	t.Run("approve", func(t *testing.T) {
		d, err := svc.Review(ctx, f.head.Identity(), id, rpp.Review{Decision: rpp.EventApprove})
		require.NoError(t, err)
		assert.Equal(t, rpp.StatusApproved, d.Status)
		assert.False(t, d.ReviewedAt.IsZero())
	})

	t.Run("approved is final", func(t *testing.T) {
		_, err := svc.Review(ctx, f.head.Identity(), id, rpp.Review{Decision: rpp.EventRevise, Notes: "again"})
		assert.True(t, core.IsConflict(err), "got %v", err)
		_, err = svc.UploadFile(ctx, f.guru.Identity(), rpp.Upload{PeriodID: f.period.ID, Type: rpp.TypeHarian, FileID: "v3"})
		assert.True(t, core.IsConflict(err), "got %v", err)
	})
}

func TestService_Revise(t *testing.T) {
	f := setUp(t)
	ctx := context.Background()
	svc := f.env.RPPSvc

	d, err := svc.CreateSubmission(ctx, rpp.NewSubmission{TeacherID: f.head.ID, PeriodID: f.period.ID})
	require.NoError(t, err)
	uploadAll(t, f, f.head)
	_, err = svc.Submit(ctx, f.head.Identity(), d.ID)
	require.NoError(t, err)

	// heads are reviewed by admins, not by themselves
	_, err = svc.Review(ctx, f.head.Identity(), d.ID, rpp.Review{Decision: rpp.EventApprove})
	assert.True(t, core.IsAuthorization(err), "got %v", err)

	pending, err := svc.PendingReviews(ctx, f.admin.Identity())
	require.NoError(t, err)
	if assert.Len(t, pending, 1) {
		assert.Equal(t, d.ID, pending[0].ID)
	}

	d, err = svc.Review(ctx, f.admin.Identity(), d.ID, rpp.Review{Decision: rpp.EventRevise, Notes: "revisi RPP harian"})
	require.NoError(t, err)
	assert.Equal(t, rpp.StatusDraft, d.Status)
	assert.Equal(t, f.admin.ID, d.ReviewerID)
}

func TestService_GenerateForPeriod(t *testing.T) {
	f := setUp(t)
	ctx := context.Background()
	svc := f.env.RPPSvc
	testutil.CreateUser(t, f.env.UserRepo, "Inactive", "inactive", "inactive@test.id", "", []string{user.RoleGuru}, false)

	_, err := svc.CreateSubmission(ctx, rpp.NewSubmission{TeacherID: f.guru.ID, PeriodID: f.period.ID})
	require.NoError(t, err)

	res, err := svc.GenerateForPeriod(ctx, f.period.ID)
	require.NoError(t, err)
	assert.Equal(t, rpp.GenerateResult{
		Generated:          2, // head & other
		Skipped:            1,
		Total:              3,
		ItemsPerSubmission: 3,
		ItemsCreated:       6,
		Errors:             []string{},
	}, res)

	// idempotent
	res, err = svc.GenerateForPeriod(ctx, f.period.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Generated)
	assert.Equal(t, 3, res.Skipped)

	_, err = svc.GenerateForPeriod(ctx, "nope")
	assert.True(t, core.IsNotFound(err), "got %v", err)
}

func TestService_QueryAndStats(t *testing.T) {
	f := setUp(t)
	ctx := context.Background()
	svc := f.env.RPPSvc

	_, err := svc.GenerateForPeriod(ctx, f.period.ID)
	require.NoError(t, err)
	subs, err := svc.Query(ctx, f.admin.Identity(), &rpp.QueryFilter{TeacherID: f.guru.ID}, nil)
	require.NoError(t, err)
	require.Len(t, subs, 1)
	uploadAll(t, f, f.guru)
	_, err = svc.Submit(ctx, f.guru.Identity(), subs[0].ID)
	require.NoError(t, err)

	tests := []struct {
		name      string
		id        user.Identity
		wantCount int
		wantStats rpp.Stats
	}{
		{name: "admin sees all", id: f.admin.Identity(), wantCount: 3, wantStats: rpp.Stats{Total: 3, Draft: 2, Pending: 1}},
		{name: "head sees school", id: f.head.Identity(), wantCount: 2, wantStats: rpp.Stats{Total: 2, Draft: 1, Pending: 1}},
		{name: "guru sees own", id: f.guru.Identity(), wantCount: 1, wantStats: rpp.Stats{Total: 1, Pending: 1}},
		{name: "other guru", id: f.other.Identity(), wantCount: 1, wantStats: rpp.Stats{Total: 1, Draft: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			subs, err := svc.Query(ctx, tt.id, nil, nil)
			require.NoError(t, err)
			assert.Len(t, subs, tt.wantCount)

			st, err := svc.Stats(ctx, rpp.Scope(tt.id, nil))
			require.NoError(t, err)
			assert.Equal(t, tt.wantStats, st)
		})
	}

	t.Run("pending reviews", func(t *testing.T) {
		pending, err := svc.PendingReviews(ctx, f.head.Identity())
		require.NoError(t, err)
		assert.Len(t, pending, 1)

		pending, err = svc.PendingReviews(ctx, f.admin.Identity())
		require.NoError(t, err)
		assert.Empty(t, pending)

		pending, err = svc.PendingReviews(ctx, f.guru.Identity())
		require.NoError(t, err)
		assert.Empty(t, pending)
	})

	t.Run("detail scope", func(t *testing.T) {
		_, err := svc.Detail(ctx, f.other.Identity(), subs[0].ID)
		assert.True(t, core.IsAuthorization(err), "got %v", err)
		_, err = svc.Detail(ctx, f.head.Identity(), subs[0].ID)
		assert.NoError(t, err)
	})
}

func TestService_BulkReview(t *testing.T) {
	f := setUp(t)
	ctx := context.Background()
	svc := f.env.RPPSvc

	var ids []string
	for _, teacher := range []user.User{f.guru, f.other} {
		d, err := svc.CreateSubmission(ctx, rpp.NewSubmission{TeacherID: teacher.ID, PeriodID: f.period.ID})
		require.NoError(t, err)
		uploadAll(t, f, teacher)
		_, err = svc.Submit(ctx, teacher.Identity(), d.ID)
		require.NoError(t, err)
		ids = append(ids, d.ID)
	}

	_, err := svc.BulkReview(ctx, f.head.Identity(), rpp.BulkReview{SubmissionIDs: ids, Review: rpp.Review{Decision: rpp.EventReject}})
	assert.True(t, core.IsValidation(err), "got %v", err)

	// the head may only review their own school
	res, err := svc.BulkReview(ctx, f.head.Identity(), rpp.BulkReview{
		SubmissionIDs: append(ids, "nope"),
		Review:        rpp.Review{Decision: rpp.EventReject, Notes: "lengkapi lampiran"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Reviewed)
	assert.Equal(t, 2, res.Failed)
	assert.Len(t, res.Errors, 2)

	d, err := svc.Detail(ctx, f.guru.Identity(), ids[0])
	require.NoError(t, err)
	assert.Equal(t, rpp.StatusRejected, d.Status)
	assert.Equal(t, "lengkapi lampiran", d.ReviewNotes)
	d, err = svc.Detail(ctx, f.other.Identity(), ids[1])
	require.NoError(t, err)
	assert.Equal(t, rpp.StatusPending, d.Status)
}

func TestService_Delete(t *testing.T) {
	f := setUp(t)
	ctx := context.Background()
	svc := f.env.RPPSvc

	d, err := svc.CreateSubmission(ctx, rpp.NewSubmission{TeacherID: f.guru.ID, PeriodID: f.period.ID})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, d.ID))
	_, err = svc.GetByID(ctx, d.ID)
	assert.True(t, core.IsNotFound(err), "got %v", err)
	items, err := svc.Items(ctx, d.ID)
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.True(t, core.IsNotFound(svc.Delete(ctx, d.ID)))

	_, err = svc.UploadFile(ctx, f.guru.Identity(), rpp.Upload{PeriodID: f.period.ID, Type: rpp.TypeHarian, FileID: "f"})
	assert.True(t, core.IsNotFound(err), "got %v", err)

	// generation fills the freed slot
	res, err := svc.GenerateForPeriod(ctx, f.period.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Generated)
}
