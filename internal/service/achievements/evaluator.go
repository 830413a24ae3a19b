package achievements

import (
	"encoding/json"
	"fmt"

	"github.com/aimd54/forum-progression/internal/models"
)

// parseCriteria decodes an achievement's stored criteria.
func parseCriteria(a *models.Achievement) (*models.AchievementCriteria, error) {
	var criteria models.AchievementCriteria
	if err := json.Unmarshal(a.Criteria, &criteria); err != nil {
		return nil, fmt.Errorf("failed to parse criteria of achievement %q: %w", a.Name, err)
	}
	return &criteria, nil
}

// evaluate compares a cumulative count against criteria using the specified operator.
func evaluate(operator string, threshold, actualValue float64) (bool, error) {
	switch operator {
	case "<":
		return actualValue < threshold, nil
	case "<=":
		return actualValue <= threshold, nil
	case ">":
		return actualValue > threshold, nil
	case ">=":
		return actualValue >= threshold, nil
	case "==":
		return actualValue == threshold, nil
	default:
		return false, fmt.Errorf("unsupported operator: %s", operator)
	}
}

// Qualifies reports whether count satisfies the achievement's criteria.
func Qualifies(a *models.Achievement, count int64) (bool, error) {
	criteria, err := parseCriteria(a)
	if err != nil {
		return false, err
	}
	return evaluate(criteria.Operator, criteria.Value, float64(count))
}
