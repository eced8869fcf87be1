package models

import "time"

// Plan is a nutrition plan as stored in the "nutrition_plans" collection.
// When a plan is suggested in chat, the whole plan is embedded in the message
// as a snapshot, so later edits of the original never change the suggestion.
type Plan struct {
	ID          string    `json:"id"`
	DietitianID string    `json:"dietitianId,omitempty"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Days        []PlanDay `json:"days"`
	IsDefault   bool      `json:"isDefault"`
	CreatedAt   time.Time `json:"createdAt"`
}

type PlanDay struct {
	DayName     string    `json:"dayName"`
	Calories    int       `json:"calories"`
	Protein     int       `json:"protein"`
	Carbs       int       `json:"carbs"`
	Fat         int       `json:"fat"`
	WaterIntake int       `json:"waterIntake"`
	SleepHours  float64   `json:"sleepHours"`
	Workouts    []Workout `json:"workouts"`
}

type Workout struct {
	Name     string `json:"name"`
	Duration int    `json:"duration"`
}
