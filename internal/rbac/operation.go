package rbac

import (
	"fmt"
	"strings"

	"erp_access/internal/models"
)

// Operation is the closed set of actions a rule can grant.
type Operation string

const (
	Read   Operation = "read"
	Write  Operation = "write"
	Create Operation = "create"
	Delete Operation = "delete"
)

// Operations lists every operation in a stable order.
var Operations = []Operation{Read, Write, Create, Delete}

// ParseOperation accepts the four operation names and "unlink" for delete.
func ParseOperation(s string) (Operation, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "read":
		return Read, nil
	case "write":
		return Write, nil
	case "create":
		return Create, nil
	case "delete", "unlink":
		return Delete, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidOperation, s)
}

func (o Operation) Valid() bool {
	switch o {
	case Read, Write, Create, Delete:
		return true
	}
	return false
}

func (o Operation) String() string { return string(o) }

func (o Operation) grantedBy(a models.ModelAccess) bool {
	switch o {
	case Read:
		return a.PermRead
	case Write:
		return a.PermWrite
	case Create:
		return a.PermCreate
	case Delete:
		return a.PermUnlink
	}
	return false
}

func (o Operation) appliesTo(r models.RecordRule) bool {
	switch o {
	case Read:
		return r.PermRead
	case Write:
		return r.PermWrite
	case Create:
		return r.PermCreate
	case Delete:
		return r.PermUnlink
	}
	return false
}
