package models

// All returns every table the access engine owns, in migration order.
func All() []any {
	return []any{
		&PermissionGroup{},
		&GroupImplication{},
		&User{},
		&UserGroup{},
		&ModelAccess{},
		&RecordRule{},
		&RecordRuleGroup{},
		&AuditLog{},
	}
}
