package memory

import (
	"testing"

	"github.com/sdu-escience/gridgate/pkg/metadata"
	metadatatesting "github.com/sdu-escience/gridgate/pkg/metadata/testing"
)

// TestMemoryMetadataStore runs the complete metadata.Store test suite
// against the MemoryMetadataStore implementation.
func TestMemoryMetadataStore(t *testing.T) {
	suite := &metadatatesting.StoreTestSuite{
		NewStore: func() metadata.Store {
			return NewMemoryMetadataStore()
		},
	}

	suite.Run(t)
}
