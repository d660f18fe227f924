package aichatsvc

import (
	"context"

	"github.com/RidhwanAhamed/aqademiq-sync/core"
)

// DummyService echoes a canned reply. Used in tests and when no API key is
// configured.
type DummyService struct {
	Reply string
}

var _ core.ChatCompleter = (*DummyService)(nil)

func NewDummyService() *DummyService {
	return &DummyService{Reply: "I cannot help with that right now."}
}

func (svc *DummyService) Complete(_ context.Context, _ string, _ []core.ChatMessage) (string, error) {
	return svc.Reply, nil
}
