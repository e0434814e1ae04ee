package kvstore

import (
	"context"
	"sort"
)

// PutAll writes every item to backend, using Add when the key is absent and
// Update otherwise — convenient for test fixtures and bulk loads.
func PutAll(ctx context.Context, backend Backend, items ...Item) error {
	for _, item := range items {
		ok, err := backend.Has(ctx, item.Key)
		if err != nil {
			return err
		}
		if ok {
			if err := backend.Update(ctx, item.Key, item.Value); err != nil {
				return err
			}
		} else if err := backend.Add(ctx, item.Key, item.Value); err != nil {
			return err
		}
	}
	return nil
}

// SortKeys orders keys according to order, emulating native backend
// ordering for backends that advertise no HasOrdering capability.
func SortKeys(keys []string, order Order) {
	switch order {
	case OrderAscending:
		sort.Strings(keys)
	case OrderDescending:
		sort.Sort(sort.Reverse(sort.StringSlice(keys)))
	}
}

// sliceKeyIterator adapts a materialized key slice to KeyIterator, used by
// backends that must emulate ordering or that keep all keys in memory.
type sliceKeyIterator struct {
	keys []string
	pos  int
}

// NewSliceKeyIterator returns a KeyIterator over an already-ordered slice.
func NewSliceKeyIterator(keys []string) KeyIterator {
	return &sliceKeyIterator{keys: keys, pos: -1}
}

func (it *sliceKeyIterator) Next() bool {
	it.pos++
	return it.pos < len(it.keys)
}

func (it *sliceKeyIterator) Key() string {
	if it.pos < 0 || it.pos >= len(it.keys) {
		return ""
	}
	return it.keys[it.pos]
}

func (it *sliceKeyIterator) Err() error   { return nil }
func (it *sliceKeyIterator) Close() error { return nil }

// sliceValueIterator adapts a materialized value slice to ValueIterator.
type sliceValueIterator struct {
	values []Value
	pos    int
}

// NewSliceValueIterator returns a ValueIterator over an already-ordered slice.
func NewSliceValueIterator(values []Value) ValueIterator {
	return &sliceValueIterator{values: values, pos: -1}
}

func (it *sliceValueIterator) Next() bool {
	it.pos++
	return it.pos < len(it.values)
}

func (it *sliceValueIterator) Value() Value {
	if it.pos < 0 || it.pos >= len(it.values) {
		return nil
	}
	return it.values[it.pos]
}

func (it *sliceValueIterator) Err() error   { return nil }
func (it *sliceValueIterator) Close() error { return nil }

// CollectKeys drains a KeyIterator into a slice, closing it afterward.
func CollectKeys(it KeyIterator) ([]string, error) {
	defer it.Close()
	var keys []string
	for it.Next() {
		keys = append(keys, it.Key())
	}
	return keys, it.Err()
}

// CollectValues drains a ValueIterator into a slice, closing it afterward.
func CollectValues(it ValueIterator) ([]Value, error) {
	defer it.Close()
	var values []Value
	for it.Next() {
		values = append(values, it.Value())
	}
	return values, it.Err()
}
