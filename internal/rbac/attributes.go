package rbac

import (
	"context"
	"fmt"
)

// userAttributes resolves ":user.<name>" placeholders for one compilation.
// Lookup order: id, group_ids, registered resolvers, then the users row.
type userAttributes struct {
	e      *Engine
	ctx    context.Context
	userID uint64
	groups GroupSet

	row     map[string]any
	loaded  bool
	storage error
}

func (a *userAttributes) resolve(name string) (any, error) {
	switch name {
	case "id":
		return a.userID, nil
	case "group_ids":
		return a.groups.IDs(), nil
	}

	if h, ok := a.e.attributes.Lookup(UsersModel, name); ok {
		v, err := h(a.ctx, a.userID)
		if err != nil {
			if IsStorageErr(err) {
				a.storage = err
			}
			return nil, err
		}
		return v, nil
	}

	row, err := a.userRow()
	if err != nil {
		return nil, err
	}
	v, ok := row[name]
	if !ok {
		return nil, fmt.Errorf("unknown user attribute %q", name)
	}
	return v, nil
}

func (a *userAttributes) userRow() (map[string]any, error) {
	if a.loaded {
		return a.row, nil
	}
	rc := requestCacheFrom(a.ctx)
	if row, ok := rc.getUser(a.userID); ok {
		a.row, a.loaded = row, true
		return row, nil
	}

	row, err := a.e.src.Users.UserAttributes(a.ctx, a.userID)
	switch {
	case err == nil:
	case IsNotFoundErr(err):
		row = map[string]any{}
	default:
		a.storage = a.e.storageFailure("users", "", err)
		return nil, a.storage
	}
	a.row, a.loaded = row, true
	rc.putUser(a.userID, row)
	return row, nil
}
