package dashboard

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/trezcool/kinerja/core"
	"github.com/trezcool/kinerja/core/evaluation"
	"github.com/trezcool/kinerja/core/period"
	"github.com/trezcool/kinerja/core/rpp"
	"github.com/trezcool/kinerja/core/user"
)

// Scopes
const (
	ScopeAll          = "all"          // admin
	ScopeOrganization = "organization" // kepala_sekolah
	ScopeTeacher      = "teacher"      // guru
)

type Summary struct {
	Scope          string           `json:"scope"`
	OrganizationID string           `json:"organization_id,omitempty"`
	TeacherID      string           `json:"teacher_id,omitempty"`
	Period         *period.Period   `json:"period"` // nil when no period is active
	RPP            rpp.Stats        `json:"rpp"`
	Evaluations    evaluation.Stats `json:"evaluations"`
	PendingReviews int              `json:"pending_reviews"`
	GeneratedAt    time.Time        `json:"generated_at"` // UTC
}

type Service struct {
	rpps    *rpp.Service
	evals   *evaluation.Service
	periods *period.Service
	cache   core.Cache
	ttl     time.Duration
	logger  core.Logger
}

func NewService(
	rpps *rpp.Service,
	evals *evaluation.Service,
	periods *period.Service,
	cache core.Cache,
	conf *core.Config,
	logger core.Logger,
) *Service {
	return &Service{
		rpps:    rpps,
		evals:   evals,
		periods: periods,
		cache:   cache,
		ttl:     conf.Cache.TTL,
		logger:  logger,
	}
}

// scopeOf returns the summary scope of id with its organization and teacher filters.
func scopeOf(id user.Identity) (scope, orgID, teacherID string) {
	switch {
	case id.IsAdmin():
		return ScopeAll, "", ""
	case id.IsKepalaSekolah() && id.OrganizationID != "":
		return ScopeOrganization, id.OrganizationID, ""
	default:
		return ScopeTeacher, "", id.UserID
	}
}

func cacheKey(scope, orgID, userID, periodID string) string {
	return fmt.Sprintf("dashboard:%s:%s:%s:%s", scope, orgID, userID, periodID)
}

// Summary returns the dashboard of id for periodID, or for the active period when periodID is empty.
func (svc *Service) Summary(ctx context.Context, id user.Identity, periodID string) (Summary, error) {
	sum := Summary{}
	sum.Scope, sum.OrganizationID, sum.TeacherID = scopeOf(id)

	if periodID != "" {
		p, err := svc.periods.GetByID(ctx, periodID)
		if err != nil {
			return Summary{}, err
		}
		sum.Period = &p
	} else {
		p, err := svc.periods.GetActive(ctx)
		switch {
		case err == nil:
			sum.Period = &p
			periodID = p.ID
		case errors.Cause(err) != period.ErrNoActive:
			return Summary{}, errors.Wrap(err, "getting active period")
		}
	}

	key := cacheKey(sum.Scope, sum.OrganizationID, id.UserID, periodID)
	if cached, ok := svc.fromCache(ctx, key); ok {
		return cached, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		st, err := svc.rpps.Stats(gctx, &rpp.QueryFilter{
			PeriodID:       periodID,
			OrganizationID: sum.OrganizationID,
			TeacherID:      sum.TeacherID,
		})
		sum.RPP = st
		return err
	})
	g.Go(func() error {
		st, err := svc.evals.Stats(gctx, &evaluation.QueryFilter{
			PeriodID:       periodID,
			OrganizationID: sum.OrganizationID,
			TeacherID:      sum.TeacherID,
		})
		sum.Evaluations = st
		return err
	})
	g.Go(func() error {
		pending, err := svc.rpps.PendingReviews(gctx, id)
		sum.PendingReviews = len(pending)
		return err
	})
	if err := g.Wait(); err != nil {
		return Summary{}, errors.Wrap(err, "building dashboard")
	}
	sum.GeneratedAt = core.Now()

	svc.toCache(ctx, key, sum)
	return sum, nil
}

func (svc *Service) fromCache(ctx context.Context, key string) (Summary, bool) {
	if svc.cache == nil {
		return Summary{}, false
	}
	val, ok, err := svc.cache.Get(ctx, key)
	if err != nil {
		svc.logger.Warn(fmt.Sprintf("dashboard cache get %s: %v", key, err), err)
		return Summary{}, false
	}
	if !ok {
		return Summary{}, false
	}
	var sum Summary
	if err := json.Unmarshal(val, &sum); err != nil {
		svc.logger.Warn(fmt.Sprintf("dashboard cache decode %s: %v", key, err), err)
		return Summary{}, false
	}
	return sum, true
}

func (svc *Service) toCache(ctx context.Context, key string, sum Summary) {
	if svc.cache == nil || svc.ttl <= 0 {
		return
	}
	val, err := json.Marshal(sum)
	if err != nil {
		svc.logger.Warn(fmt.Sprintf("dashboard cache encode %s: %v", key, err), err)
		return
	}
	if err := svc.cache.Set(ctx, key, val, svc.ttl); err != nil {
		svc.logger.Warn(fmt.Sprintf("dashboard cache set %s: %v", key, err), err)
	}
}
