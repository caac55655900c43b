package mongodb

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/taski/internal/storetest"
	"github.com/mesh-intelligence/taski/pkg/types"
)

// envTestURI names a MongoDB server to run against. The suite is skipped
// when it is unset.
const envTestURI = "TASKI_TEST_MONGO_URI"

func setupBackend(t *testing.T) *Backend {
	t.Helper()
	uri := os.Getenv(envTestURI)
	if uri == "" {
		t.Skipf("%s not set", envTestURI)
	}
	config := types.Config{
		Backend: types.BackendMongo,
		Mongo: &types.MongoConfig{
			URI:      uri,
			Database: "taski_test_" + strings.ReplaceAll(uuid.NewString(), "-", ""),
		},
	}
	b, err := Open(config)
	require.NoError(t, err)
	t.Cleanup(func() {
		b.dropDatabase(context.Background())
		b.Detach()
	})
	return b
}

func TestBackendConformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) types.Store { return setupBackend(t) })
}

func TestAttachRequiresURI(t *testing.T) {
	b := NewBackend()
	err := b.Attach(types.Config{Backend: types.BackendMongo, Mongo: &types.MongoConfig{}})
	assert.ErrorIs(t, err, types.ErrMongoURIEmpty)
}

func TestDetachedBackend(t *testing.T) {
	b := NewBackend()
	assert.NoError(t, b.Detach())
	_, err := b.List(context.Background())
	assert.ErrorIs(t, err, types.ErrStoreClosed)
	_, err = b.Create(context.Background(), &types.Task{Title: "nowhere to go"})
	assert.ErrorIs(t, err, types.ErrStoreClosed)
}
