package kvstore

import (
	"context"
	"fmt"
	"reflect"
	"sync"

	"github.com/loqor/objectstore/log"
)

// Broker implements Publisher as an in-memory pub/sub bus. Embed it in a
// Backend to add HasPublish support. Callbacks run synchronously on the
// publishing goroutine, one after another, so a slow subscriber delays the
// write that triggered it; a panicking one is recovered and logged.
type Broker struct {
	mu        sync.Mutex
	sinks     []PublishFunc
	perKey    map[string][]PublishFunc
	processed map[string]bool
}

// NewBroker returns a ready-to-use Broker.
func NewBroker() *Broker {
	return &Broker{perKey: map[string][]PublishFunc{}}
}

// OnPublish registers a sink invoked for every (op, key, data) mutation.
func (b *Broker) OnPublish(cb PublishFunc) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sinks = append(b.sinks, cb)
}

// Subscribe registers cb to be invoked only for mutations to key.
func (b *Broker) Subscribe(key string, cb PublishFunc) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.perKey[key] = append(b.perKey[key], cb)
}

// Unsubscribe removes a previously registered per-key subscriber. Callback
// identity is compared by pointer, so the same closure value passed to
// Subscribe must be passed here.
func (b *Broker) Unsubscribe(key string, cb PublishFunc) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs := b.perKey[key]
	for i, s := range subs {
		if funcsEqual(s, cb) {
			b.perKey[key] = append(subs[:i], subs[i+1:]...)
			return
		}
	}
}

// Notify invokes every callback registered for key, recovering and
// discarding any panic so a faulty subscriber cannot break the write that
// triggered it (per spec's propagation policy: subscriber errors are
// logged, never propagated).
func (b *Broker) Notify(key string, op PublishOp, data Value) {
	b.mu.Lock()
	subs := append([]PublishFunc(nil), b.perKey[key]...)
	b.mu.Unlock()
	for _, cb := range subs {
		safeCall(cb, op, key, data)
	}
}

// Publish fans the mutation out to every global sink and every per-key
// subscriber of key.
func (b *Broker) Publish(op PublishOp, key string, data Value) {
	b.mu.Lock()
	sinks := append([]PublishFunc(nil), b.sinks...)
	b.mu.Unlock()
	for _, cb := range sinks {
		safeCall(cb, op, key, data)
	}
	b.Notify(key, op, data)
}

// Process is the glue MultiBackend uses to replay one member's mutation
// onto another. It must not re-publish to avoid infinite recursion across
// members that mirror each other's Process calls — callers apply the
// operation to their own storage directly and then call Publish themselves
// if they want their own subscribers notified of the replay.
func (b *Broker) Process(ctx context.Context, op PublishOp, key string, data Value) error {
	return nil
}

// safeCall recovers a panicking subscriber and logs it rather than letting
// it escape into the write path that triggered the notification, per the
// propagation policy: subscriber errors are logged, never propagated.
func safeCall(cb PublishFunc, op PublishOp, key string, data Value) {
	defer func() {
		if r := recover(); r != nil {
			log.WithComponent("kvstore.broker").Error().
				Str("key", key).
				Str("op", string(op)).
				Msg(fmt.Sprintf("subscriber panicked: %v", r))
		}
	}()
	cb(op, key, data)
}

// funcsEqual compares two PublishFunc values by underlying code pointer,
// since Go does not allow comparing funcs with ==. This matches the common
// case of unsubscribing with the same function value that was passed to
// Subscribe; distinct closures created from the same function literal share
// a code pointer and therefore also compare equal.
func funcsEqual(a, b PublishFunc) bool {
	return reflect.ValueOf(a).Pointer() == reflect.ValueOf(b).Pointer()
}
