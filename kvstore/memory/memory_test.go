package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/loqor/objectstore/kvstore"
	"github.com/loqor/objectstore/kvstore/testsuite"
)

func TestStoreConformance(t *testing.T) {
	testsuite.Run(t, New())
}

func TestPublishNotifiesSubscribers(t *testing.T) {
	s := New()
	ctx := context.Background()

	var got []kvstore.PublishOp
	cb := func(op kvstore.PublishOp, key string, data kvstore.Value) {
		got = append(got, op)
	}
	s.Subscribe("k", cb)

	require.NoError(t, s.Add(ctx, "k", kvstore.Value("v")))
	require.NoError(t, s.Update(ctx, "k", kvstore.Value("v2")))
	require.NoError(t, s.Remove(ctx, "k"))

	require.Equal(t, []kvstore.PublishOp{kvstore.OpAdd, kvstore.OpUpdate, kvstore.OpRemove}, got)

	got = nil
	s.Unsubscribe("k", cb)
	require.NoError(t, s.Add(ctx, "k", kvstore.Value("v3")))
	require.Empty(t, got)
}

func TestProcessDoesNotRePublish(t *testing.T) {
	s := New()
	ctx := context.Background()

	calls := 0
	s.OnPublish(func(op kvstore.PublishOp, key string, data kvstore.Value) {
		calls++
	})

	require.NoError(t, s.Process(ctx, kvstore.OpAdd, "k", kvstore.Value("v")))
	require.Equal(t, 0, calls)

	ok, err := s.Has(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
}
