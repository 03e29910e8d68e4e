package bidder

import (
	"math"

	"lancebid/bidder-service/internal/model"
)

// ComputeAmount maps a project's budget to a bid amount.
//
// Base amount is round(budgetMax * bidAvgPercent). Fixed-price projects
// whose maximum budget converts to less than minBudget in the reference
// currency are recomputed at half the percent rate and floored at
// minBudget expressed in the project currency. Any amount still under
// budgetMin is raised to max(round(budgetMax*bidAvgPercent/2), budgetMin),
// so the result is never below the client's own minimum.
//
// Callers must not invoke this for projects with missing budget bounds —
// those go to manual review.
func ComputeAmount(budgetMin, budgetMax, exchangeRate float64, projectType string, minBudget, bidAvgPercent float64) float64 {
	amount := math.Round(budgetMax * bidAvgPercent)

	if projectType == model.TypeFixed && budgetMax*exchangeRate < minBudget {
		amount = math.Round(budgetMax * bidAvgPercent / 2)
		if floor := minBudget / exchangeRate; amount < floor {
			amount = floor
		}
	}

	if amount < budgetMin {
		amount = math.Max(math.Round(budgetMax*bidAvgPercent/2), budgetMin)
	}

	return amount
}
