// Package store persists permission groups, grants and record rules with
// gorm. Reads serve the rbac engine; writes are the administrative upserts
// keyed by identifier, each recorded in the audit log.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"erp_access/internal/models"
	"erp_access/internal/rbac"
)

// Store groups the four stores over one database.
type Store struct {
	Groups *GroupStore
	Users  *UserStore
	Access *AccessStore
	Rules  *RuleStore

	*base
}

type base struct {
	db  *gorm.DB
	log *logrus.Logger

	mu        sync.RWMutex
	listeners []func()
}

func New(db *gorm.DB, log *logrus.Logger) *Store {
	if log == nil {
		log = logrus.New()
	}
	b := &base{db: db, log: log}
	return &Store{
		Groups: &GroupStore{b},
		Users:  &UserStore{b},
		Access: &AccessStore{b},
		Rules:  &RuleStore{b},
		base:   b,
	}
}

// Sources exposes the stores to the engine.
func (s *Store) Sources() rbac.Sources {
	return rbac.Sources{Groups: s.Groups, Access: s.Access, Rules: s.Rules, Users: s.Users}
}

// OnChange registers fn to run after every committed write, typically the
// engine's Invalidate.
func (b *base) OnChange(fn func()) {
	b.mu.Lock()
	b.listeners = append(b.listeners, fn)
	b.mu.Unlock()
}

func (b *base) changed() {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, fn := range b.listeners {
		fn()
	}
}

// write runs fn in a transaction and notifies listeners when it commits.
func (b *base) write(ctx context.Context, op string, fn func(tx *gorm.DB) error) error {
	err := b.db.WithContext(ctx).Transaction(fn)
	if err != nil {
		if rbac.IsNotFoundErr(err) {
			return err
		}
		return rbac.StorageError(op, err)
	}
	b.changed()
	return nil
}

func (b *base) read(ctx context.Context) *gorm.DB { return b.db.WithContext(ctx) }

func audit(tx *gorm.DB, action, resourceType, identifier, module string, meta any) error {
	raw, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("audit metadata: %w", err)
	}
	return tx.Create(&models.AuditLog{
		Action:       action,
		ResourceType: resourceType,
		Identifier:   identifier,
		Module:       module,
		Metadata:     datatypes.JSON(raw),
	}).Error
}

func notFound(kind, key string) error {
	return fmt.Errorf("%w: %s %q", rbac.ErrNotFound, kind, key)
}

func isRecordNotFound(err error) bool { return errors.Is(err, gorm.ErrRecordNotFound) }

// groupIDs maps identifiers to IDs, failing on the first unknown one.
func groupIDs(tx *gorm.DB, identifiers []string) ([]uint64, error) {
	if len(identifiers) == 0 {
		return nil, nil
	}
	var rows []models.PermissionGroup
	if err := tx.Select("id", "identifier").Where("identifier IN ?", identifiers).Find(&rows).Error; err != nil {
		return nil, err
	}
	byIdentifier := make(map[string]uint64, len(rows))
	for _, g := range rows {
		byIdentifier[g.Identifier] = g.ID
	}
	ids := make([]uint64, 0, len(identifiers))
	seen := make(map[uint64]bool, len(identifiers))
	for _, ident := range identifiers {
		id, ok := byIdentifier[ident]
		if !ok {
			return nil, notFound("group", ident)
		}
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	return ids, nil
}
