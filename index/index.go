package index

import (
	"context"
)

// Extractor derives the signature(s) a value should be indexed under. Most
// fields use Keyword (single signature) or Keywords (one per word); Paths
// gives hierarchical fields multiple prefix signatures.
type Extractor func(value any) []string

// Index is a named, single-field view over a Storage: it knows how to turn
// a field's raw value into signatures and exposes key lookup in terms of
// that value rather than raw signature strings.
type Index struct {
	Name      string
	storage   *Storage
	extractor Extractor
}

// New returns an Index named name (conventionally "<Class>.<field>"),
// deriving signatures from value via extractor and storing them in storage.
func New(name string, storage *Storage, extractor Extractor) *Index {
	return &Index{Name: name, storage: storage, extractor: extractor}
}

func (i *Index) signaturesFor(value any) []string {
	if value == nil {
		return nil
	}
	return i.extractor(value)
}

// Add indexes key under value's signatures. Use for a key that has never
// been indexed before (see Storage.Add for why this differs from Update).
func (i *Index) Add(ctx context.Context, key string, value any) error {
	return i.storage.Add(ctx, key, i.signaturesFor(value))
}

// Update re-indexes key under value's current signatures, rebucketing only
// what changed since the last Add/Update.
func (i *Index) Update(ctx context.Context, key string, value any) error {
	return i.storage.Update(ctx, key, i.signaturesFor(value))
}

// Remove drops key from every signature it was recorded under.
func (i *Index) Remove(ctx context.Context, key string) error {
	return i.storage.Remove(ctx, key)
}

// Keys returns every key whose value produces signature sig. Callers
// typically pass the same Extractor's output for a query value, e.g.
// idx.Keys(ctx, index.Keyword("hello")).
func (i *Index) Keys(ctx context.Context, sig string) ([]string, error) {
	return i.storage.Keys(ctx, sig)
}

// Lookup runs the Index's own extractor over value and returns every key
// recorded under any of the resulting signatures, deduplicated.
func (i *Index) Lookup(ctx context.Context, value any) ([]string, error) {
	seen := map[string]bool{}
	var out []string
	for _, sig := range i.signaturesFor(value) {
		keys, err := i.storage.Keys(ctx, sig)
		if err != nil {
			return nil, err
		}
		for _, k := range keys {
			if !seen[k] {
				seen[k] = true
				out = append(out, k)
			}
		}
	}
	return out, nil
}

// One returns the key at position at among those recorded for sig, and
// false if at is out of range — mirroring the original Index.one(key,
// index=0)'s "the nth match" contract, not a "bucket has exactly one
// member" check. Pass at=0 for the first (and often only) match.
func (i *Index) One(ctx context.Context, sig string, at int) (string, bool, error) {
	keys, err := i.storage.Keys(ctx, sig)
	if err != nil {
		return "", false, err
	}
	if at < 0 || at >= len(keys) {
		return "", false, nil
	}
	return keys[at], true, nil
}

// Has reports whether any key is recorded under sig.
func (i *Index) Has(ctx context.Context, sig string) (bool, error) {
	keys, err := i.storage.Keys(ctx, sig)
	if err != nil {
		return false, err
	}
	return len(keys) > 0, nil
}

// Count returns how many keys are recorded under sig.
func (i *Index) Count(ctx context.Context, sig string) (int, error) {
	return i.storage.Count(ctx, sig)
}

// Source yields every (key, value) pair the index should contain, used by
// Rebuild — typically backed by object.Storage.List plus the field's typed
// accessor.
type Source func(yield func(key string, value any) bool)

// Rebuild clears the index and re-adds every pair source yields, used when
// Storage.IsCold reports the index has never been built (or is known
// stale), per spec's cold-index detection.
func (i *Index) Rebuild(ctx context.Context, source Source) error {
	if err := i.storage.Clear(ctx); err != nil {
		return err
	}
	var addErr error
	source(func(key string, value any) bool {
		if err := i.Add(ctx, key, value); err != nil {
			addErr = err
			return false
		}
		return true
	})
	return addErr
}

// IsCold reports whether this index has never been built.
func (i *Index) IsCold(ctx context.Context) (bool, error) {
	return i.storage.IsCold(ctx)
}
