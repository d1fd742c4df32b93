package models

// All lists every persisted model in migration order.
func All() []any {
	return []any{
		&Tenant{},
		&Branch{},
		&User{},
		&Terminal{},
		&TerminalLog{},
		&Category{},
		&Product{},
		&Order{},
		&OrderItem{},
		&Payment{},
		&AuditLog{},
	}
}
