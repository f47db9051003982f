package testing

import (
	"context"
	"testing"
	"time"

	"github.com/sdu-escience/gridgate/pkg/metadata"
	"github.com/stretchr/testify/require"
)

// StoreTestSuite is a comprehensive test suite for metadata.Store
// implementations. It tests the interface contract, not implementation
// details, making it reusable across the memory and badger back ends.
type StoreTestSuite struct {
	// NewStore is a factory function that creates a fresh Store instance
	// for each test. This ensures test isolation.
	NewStore func() metadata.Store
}

// Run executes all tests in the suite.
func (suite *StoreTestSuite) Run(test *testing.T) {
	test.Run("Objects", suite.RunObjectTests)
	test.Run("Access", suite.RunAccessTests)
	test.Run("Users", suite.RunUserTests)
	test.Run("Groups", suite.RunGroupTests)
	test.Run("Tickets", suite.RunTicketTests)
	test.Run("Audit", suite.RunAuditTests)
}

// newStoreWithRoot returns a fresh store holding the collections "/" and
// "/zone".
func (suite *StoreTestSuite) newStoreWithRoot(test *testing.T) metadata.Store {
	test.Helper()
	store := suite.NewStore()
	test.Cleanup(func() { _ = store.Close() })

	ctx := context.Background()
	require.NoError(test, store.CreateObject(ctx, Collection("/", "rods")))
	require.NoError(test, store.CreateObject(ctx, Collection("/zone", "rods")))
	return store
}

// Collection builds a collection record.
func Collection(path, owner string) *metadata.Object {
	now := time.Now().UTC().Truncate(time.Millisecond)
	return &metadata.Object{
		Path:       path,
		Type:       metadata.ObjectTypeCollection,
		Owner:      owner,
		CreatedAt:  now,
		ModifiedAt: now,
	}
}

// DataObject builds a data object record.
func DataObject(path, owner string, size int64) *metadata.Object {
	now := time.Now().UTC().Truncate(time.Millisecond)
	return &metadata.Object{
		Path:       path,
		Type:       metadata.ObjectTypeDataObject,
		Size:       size,
		Owner:      owner,
		ContentID:  "content" + path,
		Checksum:   []byte{0xde, 0xad, 0xbe, 0xef},
		CreatedAt:  now,
		ModifiedAt: now,
	}
}
