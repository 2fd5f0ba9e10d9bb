package aspect

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Weight report statuses
const (
	WeightsValid   = "valid"
	WeightsWarning = "warning"
	WeightsError   = "error"
)

var fullWeight = decimal.NewFromInt(100)

type WeightReport struct {
	TotalWeight decimal.Decimal `json:"total_weight"`
	ActiveCount int             `json:"active_count"`
	Status      string          `json:"status"`
	Message     string          `json:"message"`
}

func (r WeightReport) IsValid() bool { return r.Status == WeightsValid }

// CheckWeights sums the weights of the active aspects.
// The sum must be exactly 100: above is an error, below a warning.
func CheckWeights(aspects []Aspect) WeightReport {
	report := WeightReport{TotalWeight: decimal.Zero}
	for _, a := range aspects {
		if !a.IsActive {
			continue
		}
		report.TotalWeight = report.TotalWeight.Add(a.Weight)
		report.ActiveCount++
	}

	switch report.TotalWeight.Cmp(fullWeight) {
	case 1:
		report.Status = WeightsError
		report.Message = fmt.Sprintf("total weight %s%% exceeds 100%%", report.TotalWeight.StringFixed(2))
	case -1:
		report.Status = WeightsWarning
		report.Message = fmt.Sprintf("total weight %s%% is below 100%%, %s%% unassigned",
			report.TotalWeight.StringFixed(2), fullWeight.Sub(report.TotalWeight).StringFixed(2))
	default:
		report.Status = WeightsValid
		report.Message = "total weight is 100%"
	}
	return report
}
