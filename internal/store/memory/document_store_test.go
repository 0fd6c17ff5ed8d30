package memory

import (
	"testing"

	"github.com/wolfeidau/sopdesk/internal/store"
	"github.com/wolfeidau/sopdesk/internal/store/storetest"
)

func TestDocumentStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.DocumentStore {
		return NewDocumentStore()
	})
}
