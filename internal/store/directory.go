package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"india-blood-connect/internal/notify"
)

// ErrConflict the optimistic write kept losing to concurrent writers.
var ErrConflict = errors.New("directory write conflict")

const defaultWriteRetries = 8

// Directory list-per-kind store: each table is one JSON array under its key.
// Writes are read-modify-write guarded by WATCH/MULTI; a write that touched
// nothing does not publish a change signal.
type Directory struct {
	c       *redis.Client
	bus     notify.Publisher
	logger  *zap.Logger
	retries int
}

func NewDirectory(c *redis.Client, bus notify.Publisher, logger *zap.Logger) *Directory {
	if bus == nil {
		bus = notify.Nop{}
	}
	return &Directory{c: c, bus: bus, logger: logger, retries: defaultWriteRetries}
}

// ListAll decodes the array of table into out (a pointer to a slice).
// A missing key or malformed data yields an empty slice.
func (d *Directory) ListAll(ctx context.Context, table string, out any) error {
	items, err := d.read(ctx, d.c, table)
	if err != nil {
		return err
	}
	return decodeItems(items, out)
}

// SelectEq lists records whose JSON field column equals value.
func (d *Directory) SelectEq(ctx context.Context, table, column, value string, out any) error {
	items, err := d.read(ctx, d.c, table)
	if err != nil {
		return err
	}
	matched := make([]json.RawMessage, 0, len(items))
	for _, it := range items {
		if fieldEquals(it, column, value) {
			matched = append(matched, it)
		}
	}
	return decodeItems(matched, out)
}

// Append adds record to the end of table. Duplicates are the caller's concern.
func (d *Directory) Append(ctx context.Context, table string, record any) error {
	raw, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to encode %s record: %w", table, err)
	}
	return d.mutate(ctx, table, func(items []json.RawMessage) ([]json.RawMessage, bool, error) {
		return append(items, raw), true, nil
	})
}

// Remove deletes every record with the given id; an absent id is a no-op.
func (d *Directory) Remove(ctx context.Context, table, id string) error {
	return d.mutate(ctx, table, func(items []json.RawMessage) ([]json.RawMessage, bool, error) {
		kept := items[:0:0]
		for _, it := range items {
			if recordID(it) != id {
				kept = append(kept, it)
			}
		}
		return kept, len(kept) != len(items), nil
	})
}

// UpdateField shallow-merges patch into the record with the given id.
func (d *Directory) UpdateField(ctx context.Context, table, id string, patch map[string]any) error {
	encoded := make(map[string]json.RawMessage, len(patch))
	for k, v := range patch {
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("failed to encode patch field %s: %w", k, err)
		}
		encoded[k] = b
	}
	return d.mutate(ctx, table, func(items []json.RawMessage) ([]json.RawMessage, bool, error) {
		changed := false
		for i, it := range items {
			if recordID(it) != id {
				continue
			}
			var obj map[string]json.RawMessage
			if err := json.Unmarshal(it, &obj); err != nil {
				continue
			}
			for k, v := range encoded {
				obj[k] = v
			}
			merged, err := json.Marshal(obj)
			if err != nil {
				return nil, false, err
			}
			if !bytes.Equal(merged, it) {
				items[i] = merged
				changed = true
			}
		}
		return items, changed, nil
	})
}

// Insert, SelectAll, UpdateByID and DeleteByID give Directory the same shape as
// the hosted table client.
func (d *Directory) Insert(ctx context.Context, table string, record any) error {
	return d.Append(ctx, table, record)
}

func (d *Directory) SelectAll(ctx context.Context, table string, out any) error {
	return d.ListAll(ctx, table, out)
}

func (d *Directory) UpdateByID(ctx context.Context, table, id string, patch map[string]any) error {
	return d.UpdateField(ctx, table, id, patch)
}

func (d *Directory) DeleteByID(ctx context.Context, table, id string) error {
	return d.Remove(ctx, table, id)
}

type cmdable interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func (d *Directory) read(ctx context.Context, c cmdable, table string) ([]json.RawMessage, error) {
	key := KeyFor(table)
	val, err := c.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read %s: %w", key, err)
	}
	var items []json.RawMessage
	if err := json.Unmarshal(val, &items); err != nil {
		d.logger.Warn("malformed directory data, treating as empty",
			zap.String("key", key),
			zap.Error(err),
		)
		return nil, nil
	}
	return items, nil
}

func (d *Directory) mutate(ctx context.Context, table string, fn func([]json.RawMessage) ([]json.RawMessage, bool, error)) error {
	key := KeyFor(table)
	for attempt := 0; attempt < d.retries; attempt++ {
		changed := false
		err := d.c.Watch(ctx, func(tx *redis.Tx) error {
			items, err := d.read(ctx, tx, table)
			if err != nil {
				return err
			}
			next, ch, err := fn(items)
			if err != nil || !ch {
				return err
			}
			if next == nil {
				next = []json.RawMessage{}
			}
			data, err := json.Marshal(next)
			if err != nil {
				return fmt.Errorf("failed to encode %s: %w", key, err)
			}
			_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
				p.Set(ctx, key, data, 0)
				return nil
			})
			if err == nil {
				changed = true
			}
			return err
		}, key)
		if errors.Is(err, redis.TxFailedErr) {
			d.logger.Debug("directory write conflict, retrying", zap.String("key", key), zap.Int("attempt", attempt+1))
			continue
		}
		if err != nil {
			return err
		}
		if changed {
			if perr := d.bus.Publish(ctx, notify.TopicStorage); perr != nil {
				d.logger.Warn("failed to publish storage change", zap.String("key", key), zap.Error(perr))
			}
		}
		return nil
	}
	return fmt.Errorf("%s: %w", key, ErrConflict)
}

func decodeItems(items []json.RawMessage, out any) error {
	if items == nil {
		items = []json.RawMessage{}
	}
	data, err := json.Marshal(items)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, out); err != nil {
		// element shape does not fit the target type
		return json.Unmarshal([]byte("[]"), out)
	}
	return nil
}

func recordID(raw json.RawMessage) string {
	var rec struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(raw, &rec); err != nil {
		return ""
	}
	return rec.ID
}

func fieldEquals(raw json.RawMessage, column, value string) bool {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return false
	}
	v, ok := obj[column]
	if !ok {
		return false
	}
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		return s == value
	}
	return string(v) == value
}
