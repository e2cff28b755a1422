package attendance

import (
	"fmt"
	"strings"
)

// MealType is the meal a present student was served on a given day.
type MealType string

const (
	MealVeg    MealType = "Veg"
	MealNonVeg MealType = "Non-Veg"
)

// ParseMealType accepts the two canonical meal names. An empty value means Veg.
func ParseMealType(raw string) (MealType, error) {
	switch MealType(strings.TrimSpace(raw)) {
	case "", MealVeg:
		return MealVeg, nil
	case MealNonVeg:
		return MealNonVeg, nil
	default:
		return "", fmt.Errorf("invalid meal_type %q", raw)
	}
}
