package migrations

import (
	"github.com/pocketbase/pocketbase/core"
	m "github.com/pocketbase/pocketbase/migrations"
	"github.com/pocketbase/pocketbase/tools/types"
)

func init() {
	m.Register(func(app core.App) error {
		collection := core.NewBaseCollection("tickets")

		collection.Fields.Add(
			&core.TextField{Name: "ticket_id", Required: true, Max: 64},
			&core.TextField{Name: "order_id", Required: true, Max: 255},
			&core.TextField{Name: "event_id", Required: true, Max: 255},
			&core.NumberField{Name: "seq", OnlyInt: true, Min: types.Pointer(1.0)},
			&core.EmailField{Name: "email", Required: true},
			&core.TextField{Name: "name", Max: 255},
			&core.TextField{Name: "ticket_type", Required: true, Max: 255},
			&core.SelectField{
				Name:      "status",
				Required:  true,
				MaxSelect: 1,
				Values:    []string{"unused", "used"},
			},
			&core.TextField{Name: "signature", Required: true},
			&core.DateField{Name: "issued_at", Required: true},
			&core.DateField{Name: "used_at"},
		)

		collection.AddIndex("idx_tickets_ticket_id", true, "`ticket_id`", "")
		collection.AddIndex("idx_tickets_order_seq", true, "`order_id`, `event_id`, `seq`", "")

		return app.Save(collection)
	}, func(app core.App) error {
		collection, err := app.FindCollectionByNameOrId("tickets")
		if err != nil {
			return err
		}

		return app.Delete(collection)
	})
}
