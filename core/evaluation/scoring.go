package evaluation

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/trezcool/kinerja/core"
	"github.com/trezcool/kinerja/core/aspect"
)

// Grades
const (
	GradeA = "A"
	GradeB = "B"
	GradeC = "C"
	GradeD = "D"
)

// Grade categories of a performance value
const (
	CategoryExcellent        = "Excellent"
	CategoryGood             = "Good"
	CategorySatisfactory     = "Satisfactory"
	CategoryNeedsImprovement = "Needs Improvement"
)

var (
	AllGrades = []string{GradeA, GradeB, GradeC, GradeD}

	gradeScores = map[string]int{GradeA: 4, GradeB: 3, GradeC: 2, GradeD: 1}

	gradeDescriptions = map[string]string{
		GradeA: CategoryExcellent,
		GradeB: CategoryGood,
		GradeC: CategorySatisfactory,
		GradeD: CategoryNeedsImprovement,
	}

	hundred          = decimal.NewFromInt(100)
	performanceRatio = decimal.NewFromFloat(1.25)

	// LetterBand thresholds on a final grade
	bandA = decimal.NewFromFloat(87.5)
	bandB = decimal.NewFromFloat(62.5)
	bandC = decimal.NewFromFloat(37.5)

	// GradeCategory thresholds on a performance value
	categoryExcellent    = decimal.NewFromInt(90)
	categoryGood         = decimal.NewFromInt(80)
	categorySatisfactory = decimal.NewFromInt(70)
)

func isGrade(g string) bool {
	_, ok := gradeScores[g]
	return ok
}

// ScoreForGrade maps A, B, C, D to 4, 3, 2, 1.
func ScoreForGrade(grade string) (int, error) {
	score, ok := gradeScores[grade]
	if !ok {
		return 0, core.NewValidationError(nil, core.FieldError{Field: "grade", Error: fmt.Sprintf("invalid grade %q", grade)})
	}
	return score, nil
}

// GradeDescription describes an item grade.
func GradeDescription(grade string) string {
	return gradeDescriptions[grade]
}

type Aggregates struct {
	TotalScore   int
	AverageScore decimal.Decimal
	FinalGrade   decimal.Decimal
}

// Aggregate derives the evaluation aggregates from its items. aspects is keyed by ID.
//
// FinalGrade is Σ(weight × score / max_score) / Σweight × 100 over the items' aspects.
// When the weights add up to 0 it falls back to total / Σmax_score × 100.
// AverageScore keeps the full quotient; FinalGrade is rounded to 2 places.
// Items of unknown aspects weigh 0 and use the default max score.
func Aggregate(items []Item, aspects map[string]aspect.Aspect) Aggregates {
	agg := Aggregates{AverageScore: decimal.Zero, FinalGrade: decimal.Zero}
	if len(items) == 0 {
		return agg
	}

	weighted, weights := decimal.Zero, decimal.Zero
	var maxTotal int64
	for _, it := range items {
		agg.TotalScore += it.Score

		weight, maxScore := decimal.Zero, int64(aspect.DefaultMaxScore)
		if a, ok := aspects[it.AspectID]; ok {
			weight = a.Weight
			if a.MaxScore > 0 {
				maxScore = int64(a.MaxScore)
			}
		}
		maxTotal += maxScore
		weights = weights.Add(weight)
		weighted = weighted.Add(weight.Mul(decimal.NewFromInt(int64(it.Score))).Div(decimal.NewFromInt(maxScore)))
	}

	total := decimal.NewFromInt(int64(agg.TotalScore))
	agg.AverageScore = total.Div(decimal.NewFromInt(int64(len(items))))
	if weights.IsZero() {
		agg.FinalGrade = total.Div(decimal.NewFromInt(maxTotal)).Mul(hundred).Round(2)
	} else {
		agg.FinalGrade = weighted.Div(weights).Mul(hundred).Round(2)
	}
	return agg
}

// LetterBand buckets a final grade for the dashboard distribution.
// It is unrelated to the item grades.
func LetterBand(finalGrade decimal.Decimal) string {
	switch {
	case finalGrade.GreaterThanOrEqual(bandA):
		return GradeA
	case finalGrade.GreaterThanOrEqual(bandB):
		return GradeB
	case finalGrade.GreaterThanOrEqual(bandC):
		return GradeC
	default:
		return GradeD
	}
}

// PerformanceValue is the total score × 1.25.
func PerformanceValue(totalScore int) decimal.Decimal {
	return decimal.NewFromInt(int64(totalScore)).Mul(performanceRatio)
}

// GradeCategory buckets a performance value.
func GradeCategory(performanceValue decimal.Decimal) string {
	switch {
	case performanceValue.GreaterThanOrEqual(categoryExcellent):
		return CategoryExcellent
	case performanceValue.GreaterThanOrEqual(categoryGood):
		return CategoryGood
	case performanceValue.GreaterThanOrEqual(categorySatisfactory):
		return CategorySatisfactory
	default:
		return CategoryNeedsImprovement
	}
}

// checkScoreRange verifies score falls within the aspect bounds.
func checkScoreRange(score int, a aspect.Aspect) error {
	if score < a.MinScore || score > a.MaxScore {
		return core.NewValidationError(nil, core.FieldError{
			Field: "grade",
			Error: fmt.Sprintf("score %d is out of the aspect range [%d, %d]", score, a.MinScore, a.MaxScore),
		})
	}
	return nil
}
