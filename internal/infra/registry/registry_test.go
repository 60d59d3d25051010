package registry

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/ied-systems/ied/internal/core/domain"
)

func TestNew_EmptyFailsFast(t *testing.T) {
	_, err := New(nil, nil)
	if !errors.Is(err, domain.ErrNoAdaptersConfigured) {
		t.Fatalf("expected ErrNoAdaptersConfigured, got %v", err)
	}
}

func TestNew_DuplicateChainID(t *testing.T) {
	_, err := New([]domain.AdapterDescriptor{
		{Name: "hashnet", ChainID: "1"},
		{Name: "alastria", ChainID: "1"},
	}, nil)
	if err == nil {
		t.Fatal("expected error for duplicate chain id")
	}
}

func TestRegistry_Lookup(t *testing.T) {
	r, err := New([]domain.AdapterDescriptor{
		{Name: "hashnet", ChainID: "1"},
		{Name: "alastria", ChainID: "2"},
	}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if r.Len() != 2 {
		t.Fatalf("expected 2 adapters, got %d", r.Len())
	}

	d, ok := r.ByName("hashnet")
	if !ok || d.ChainID != "1" {
		t.Fatalf("ByName(hashnet) = %v, %v", d, ok)
	}

	if _, ok := r.ByName("nope"); ok {
		t.Fatal("expected lookup miss for unknown adapter")
	}

	chainIDs := r.ChainIDs()
	if len(chainIDs) != 2 || chainIDs[0] != "1" || chainIDs[1] != "2" {
		t.Fatalf("unexpected chain ids: %v", chainIDs)
	}
}

func TestRegistry_CacheKeyFallsBackToName(t *testing.T) {
	r, err := New([]domain.AdapterDescriptor{{Name: "noChainID"}}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if r.ChainIDs()[0] != "noChainID" {
		t.Fatalf("expected cache key to fall back to adapter name")
	}
}

func TestNew_WarnsOnMissingChainID(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, nil))

	if _, err := New([]domain.AdapterDescriptor{{Name: "noChainID"}}, log); err != nil {
		t.Fatalf("New: %v", err)
	}
	if !strings.Contains(buf.String(), "noChainID") {
		t.Fatalf("expected a warning naming the adapter with no chain id, got log output: %q", buf.String())
	}
}
