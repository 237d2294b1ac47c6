package migrations

import (
	"github.com/pocketbase/pocketbase/core"
	m "github.com/pocketbase/pocketbase/migrations"
)

func init() {
	m.Register(func(app core.App) error {
		collection := core.NewBaseCollection("order_claims")

		collection.Fields.Add(
			&core.TextField{Name: "order_id", Required: true, Max: 255},
			&core.TextField{Name: "event_id", Required: true, Max: 255},
			&core.DateField{Name: "claimed_at", Required: true},
		)

		collection.AddIndex("idx_order_claims_order", true, "`order_id`, `event_id`", "")

		return app.Save(collection)
	}, func(app core.App) error {
		collection, err := app.FindCollectionByNameOrId("order_claims")
		if err != nil {
			return err
		}

		return app.Delete(collection)
	})
}
