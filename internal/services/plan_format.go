package services

import (
	"fmt"
	"strings"

	"github.com/saeid-a/DietChatBack/internal/models"
)

// renderPlanSuggestion formats a plan snapshot into the message body shown
// in chat.
func renderPlanSuggestion(plan *models.Plan) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🎯 **Nutrition Plan Suggestion: %s**\n\n", plan.Name)
	fmt.Fprintf(&b, "📋 %s\n\n", plan.Description)
	b.WriteString("📊 **7-Day Overview:**\n")

	for i, day := range plan.Days {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "**%s:**\n", day.DayName)
		fmt.Fprintf(&b, "• %d calories\n", day.Calories)
		fmt.Fprintf(&b, "• %dg protein, %dg carbs, %dg fat\n", day.Protein, day.Carbs, day.Fat)
		fmt.Fprintf(&b, "• %d cups water\n", day.WaterIntake)
		fmt.Fprintf(&b, "• %gh sleep", day.SleepHours)
		if len(day.Workouts) > 0 {
			names := make([]string, 0, len(day.Workouts))
			for _, workout := range day.Workouts {
				names = append(names, fmt.Sprintf("%s (%dmin)", workout.Name, workout.Duration))
			}
			fmt.Fprintf(&b, "\n• Workouts: %s", strings.Join(names, ", "))
		}
	}

	b.WriteString("\n\n💡 This plan is designed to help you achieve your health goals. Would you like me to customize it further for your specific needs?")
	return b.String()
}

func planSummaryText(plan *models.Plan) string {
	return "Suggested nutrition plan: " + plan.Name
}
