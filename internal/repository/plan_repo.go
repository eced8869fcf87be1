package repository

import (
	"context"
	"fmt"

	"github.com/saeid-a/DietChatBack/internal/models"
	"github.com/saeid-a/DietChatBack/internal/store"
)

const plansCollection = "nutrition_plans"

type PlanRepository struct {
	store store.Store
}

func NewPlanRepository(st store.Store) *PlanRepository {
	return &PlanRepository{store: st}
}

func (r *PlanRepository) Get(ctx context.Context, planID string) (*models.Plan, error) {
	doc, err := r.store.GetDocument(ctx, plansCollection+"/"+planID)
	if err != nil {
		return nil, err
	}
	return decodePlan(doc)
}

// ListAvailable returns the plans a dietitian can suggest: their own plans
// followed by the shared defaults, each newest first.
func (r *PlanRepository) ListAvailable(ctx context.Context, dietitianID string) ([]models.Plan, error) {
	own, err := r.store.QueryDocuments(ctx, plansCollection,
		[]store.Filter{{Field: "dietitianId", Op: "==", Value: dietitianID}},
		[]store.Order{{Field: "createdAt", Desc: true}},
	)
	if err != nil {
		return nil, err
	}

	defaults, err := r.store.QueryDocuments(ctx, plansCollection,
		[]store.Filter{{Field: "isDefault", Op: "==", Value: true}},
		[]store.Order{{Field: "createdAt", Desc: true}},
	)
	if err != nil {
		return nil, err
	}

	plans := make([]models.Plan, 0, len(own)+len(defaults))
	seen := make(map[string]struct{}, len(own))
	for _, doc := range own {
		plan, err := decodePlan(doc)
		if err != nil {
			return nil, err
		}
		seen[plan.ID] = struct{}{}
		plans = append(plans, *plan)
	}
	for _, doc := range defaults {
		if _, dup := seen[doc.ID]; dup {
			continue
		}
		plan, err := decodePlan(doc)
		if err != nil {
			return nil, err
		}
		plans = append(plans, *plan)
	}
	return plans, nil
}

func decodePlan(doc store.Document) (*models.Plan, error) {
	var plan models.Plan
	if err := doc.DataTo(&plan); err != nil {
		return nil, fmt.Errorf("decode plan %s: %w", doc.ID, err)
	}
	plan.ID = doc.ID
	return &plan, nil
}
