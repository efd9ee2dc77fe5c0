package item

import (
	"context"

	"github.com/aquamarinepk/cruddemo/internal/platform/seed"
)

const seedApplication = "cruddemo"

var defaultCatalogue = []Input{
	{Name: "Notebook", Description: "A5 dotted notebook, 120 pages", Price: 7.5, Quantity: 40},
	{Name: "Fountain pen", Description: "Steel nib, medium", Price: 24, Quantity: 12},
	{Name: "Ink bottle", Description: "Blue-black, 50 ml", Price: 9.9, Quantity: 25},
	{Name: "Desk lamp", Description: "LED with adjustable arm", Price: 39, Quantity: 6},
}

// Seeds returns the run-once catalogue seeds.
func Seeds(svc *Service) []seed.Seed {
	return []seed.Seed{
		{
			ID:          "2024-01-items-default-catalogue",
			Description: "Default item catalogue",
			Run: func(ctx context.Context) error {
				_, err := svc.CreateMany(ctx, defaultCatalogue)
				return err
			},
		},
	}
}

// ApplySeeds runs the item seeds not yet recorded by tracker.
func ApplySeeds(ctx context.Context, svc *Service, tracker seed.Tracker) error {
	return seed.Apply(ctx, tracker, Seeds(svc), seedApplication)
}
