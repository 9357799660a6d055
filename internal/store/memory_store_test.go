package store

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cdukcom/iot-platform-multitenant/internal/model"
)

func TestMemoryProfileStore_InsertAndGet(t *testing.T) {
	s := NewMemoryProfileStore()
	ctx := context.Background()

	require.NoError(t, s.Insert(ctx, &model.DeviceProfile{
		TenantRef:       "t1",
		Model:           "EM300",
		RemoteProfileID: "p1",
	}))

	got, err := s.GetByTenantModel(ctx, "t1", "EM300")
	require.NoError(t, err)
	assert.Equal(t, "p1", got.RemoteProfileID)
	assert.False(t, got.ID.IsZero())

	_, err = s.GetByTenantModel(ctx, "t1", "EM310")
	assert.Equal(t, ErrNotFound, err)
}

func TestMemoryProfileStore_DuplicateKey(t *testing.T) {
	s := NewMemoryProfileStore()
	ctx := context.Background()

	require.NoError(t, s.Insert(ctx, &model.DeviceProfile{TenantRef: "t1", Model: "EM300"}))

	err := s.Insert(ctx, &model.DeviceProfile{TenantRef: "t1", Model: "EM300"})
	assert.Equal(t, ErrDuplicateKey, err)
}

func TestMemoryProfileStore_ConcurrentInsertsOneWinner(t *testing.T) {
	s := NewMemoryProfileStore()
	ctx := context.Background()

	const workers = 16
	var wg sync.WaitGroup
	errs := make([]error, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = s.Insert(ctx, &model.DeviceProfile{TenantRef: "t1", Model: "EM300"})
		}(i)
	}
	wg.Wait()

	winners := 0
	for _, err := range errs {
		if err == nil {
			winners++
		} else {
			assert.Equal(t, ErrDuplicateKey, err)
		}
	}
	assert.Equal(t, 1, winners)
}

func TestMemoryTemplateCacheStore_PutOverwrites(t *testing.T) {
	s := NewMemoryTemplateCacheStore()
	ctx := context.Background()

	_, err := s.Get(ctx, "tpl")
	assert.Equal(t, ErrNotFound, err)

	require.NoError(t, s.Put(ctx, &model.TemplateCacheEntry{Name: "tpl", Body: []byte(`{"a":1}`)}))
	require.NoError(t, s.Put(ctx, &model.TemplateCacheEntry{Name: "tpl", Body: []byte(`{"a":2}`)}))

	got, err := s.Get(ctx, "tpl")
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":2}`, string(got.Body))
}
