package schema

import (
	"context"
	"fmt"

	vc "github.com/structcms/versioned-content/pkg/versionedcontent"
)

// Cache is the port the caching decorator works against. Invalidation
// happens synchronously inside the mutating call, never lazily: stale
// schema applied to field storage corrupts content.
type Cache interface {
	Get(key string) (any, bool)
	Set(key string, value any)
	Delete(key string)
	Clear()
}

// cached decorates a schema Service with read-through caching of Defined
// types. Mutations of Defined-status rows invalidate broadly (clear-all)
// since group membership of affected lookups cannot be cheaply known;
// Draft/Modified mutations invalidate only their own keys.
type cached struct {
	Service
	cache Cache
}

// NewCached wraps a schema service with the caching decorator.
func NewCached(inner Service, cache Cache) Service {
	return &cached{Service: inner, cache: cache}
}

func typeKey(id int64, status vc.TypeStatus) string {
	return fmt.Sprintf("type:id:%d:%s", id, status)
}

func identifierKey(identifier string, status vc.TypeStatus) string {
	return fmt.Sprintf("type:identifier:%s:%s", identifier, status)
}

func (c *cached) LoadTypeByID(ctx context.Context, id int64) (*vc.ContentType, error) {
	return c.LoadType(ctx, id, vc.TypeStatusDefined)
}

func (c *cached) LoadType(ctx context.Context, typeID int64, status vc.TypeStatus) (*vc.ContentType, error) {
	// Only Defined types are cached; drafts churn too much to be worth it.
	if status != vc.TypeStatusDefined {
		return c.Service.LoadType(ctx, typeID, status)
	}
	if v, ok := c.cache.Get(typeKey(typeID, status)); ok {
		return v.(*vc.ContentType), nil
	}
	t, err := c.Service.LoadType(ctx, typeID, status)
	if err != nil {
		return nil, err
	}
	c.cache.Set(typeKey(typeID, status), t)
	return t, nil
}

func (c *cached) LoadTypeByIdentifier(ctx context.Context, identifier string, status vc.TypeStatus) (*vc.ContentType, error) {
	if status != vc.TypeStatusDefined {
		return c.Service.LoadTypeByIdentifier(ctx, identifier, status)
	}
	if v, ok := c.cache.Get(identifierKey(identifier, status)); ok {
		return v.(*vc.ContentType), nil
	}
	t, err := c.Service.LoadTypeByIdentifier(ctx, identifier, status)
	if err != nil {
		return nil, err
	}
	c.cache.Set(identifierKey(identifier, status), t)
	return t, nil
}

func (c *cached) UpdateType(ctx context.Context, t *vc.ContentType) error {
	if err := c.Service.UpdateType(ctx, t); err != nil {
		return err
	}
	c.invalidate(t.Status, typeKey(t.ID, t.Status), identifierKey(t.Identifier, t.Status))
	return nil
}

func (c *cached) DeleteType(ctx context.Context, typeID int64, status vc.TypeStatus) error {
	if err := c.Service.DeleteType(ctx, typeID, status); err != nil {
		return err
	}
	c.invalidate(status, typeKey(typeID, status))
	return nil
}

func (c *cached) AddFieldDefinition(ctx context.Context, typeID int64, status vc.TypeStatus, def *vc.FieldDefinition) error {
	if err := c.Service.AddFieldDefinition(ctx, typeID, status, def); err != nil {
		return err
	}
	c.invalidate(status, typeKey(typeID, status))
	return nil
}

func (c *cached) UpdateFieldDefinition(ctx context.Context, typeID int64, status vc.TypeStatus, def vc.FieldDefinition) error {
	if err := c.Service.UpdateFieldDefinition(ctx, typeID, status, def); err != nil {
		return err
	}
	c.invalidate(status, typeKey(typeID, status))
	return nil
}

func (c *cached) RemoveFieldDefinition(ctx context.Context, typeID int64, status vc.TypeStatus, fieldDefinitionID int64) error {
	if err := c.Service.RemoveFieldDefinition(ctx, typeID, status, fieldDefinitionID); err != nil {
		return err
	}
	c.invalidate(status, typeKey(typeID, status))
	return nil
}

func (c *cached) Publish(ctx context.Context, typeID int64) error {
	if err := c.Service.Publish(ctx, typeID); err != nil {
		return err
	}
	// Publishing mutates Defined rows.
	c.invalidate(vc.TypeStatusDefined)
	return nil
}

// invalidate clears the given keys, or the whole cache when the mutation
// touched Defined-status rows. Narrow key-based invalidation is only
// safe for Draft/Modified mutations, whose lookups are never cached
// under other keys.
func (c *cached) invalidate(status vc.TypeStatus, keys ...string) {
	if status == vc.TypeStatusDefined {
		c.cache.Clear()
		return
	}
	for _, key := range keys {
		c.cache.Delete(key)
	}
}
