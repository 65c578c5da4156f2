package replay

import (
	"errors"
	"strings"
	"testing"

	"github.com/oxyreplay/pipewarm/internal/hashid"
)

func TestCreationErrorsAggregatesIndependentFailures(t *testing.T) {
	e := &Engine{}

	if err := e.CreationErrors(); err != nil {
		t.Fatalf("CreationErrors on a fresh engine = %v, want nil", err)
	}

	e.recordCreationError(errKindSampler, hashid.Hash(1), errors.New("bad address mode"))
	e.recordCreationError(errKindRenderPass, hashid.Hash(2), errors.New("no attachments"))

	err := e.CreationErrors()
	if err == nil {
		t.Fatal("CreationErrors should report the two recorded failures")
	}
	if !strings.Contains(err.Error(), "bad address mode") || !strings.Contains(err.Error(), "no attachments") {
		t.Errorf("aggregated error %q is missing one of the recorded messages", err)
	}
}
