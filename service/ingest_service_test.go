package service

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"regintel-backend/chunker"
	"regintel-backend/ecfr"
	"regintel-backend/storage"
	"regintel-backend/vectorstore"
)

const ingestTestXML = `<ECFR>
  <DIV8 N="§ 11.1" TYPE="SECTION">
    <HEAD>§ 11.1 Scope.</HEAD>
    <P>The regulations in this part set forth the criteria for electronic records.</P>
  </DIV8>
  <DIV8 N="§ 11.10" TYPE="SECTION">
    <HEAD>§ 11.10 Controls for closed systems.</HEAD>
    <P>Closed systems shall employ procedures to ensure the authenticity of electronic records.</P>
  </DIV8>
</ECFR>`

type fakeFetcher struct {
	payload []byte
	err     error
	calls   int
}

func (f *fakeFetcher) FetchPartXML(ctx context.Context, loc ecfr.Locator) ([]byte, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.payload, nil
}

var testLocator = ecfr.Locator{Title: 21, Part: "11", Date: "2024-02-01"}

func newSQLiteTestStore(t *testing.T) *vectorstore.SQLiteStore {
	t.Helper()
	store, err := vectorstore.NewSQLiteStore(filepath.Join(t.TempDir(), "regs.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestIngestService_Refresh(t *testing.T) {
	store := newSQLiteTestStore(t)
	cache, err := storage.NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalStorage: %v", err)
	}
	svc := NewIngestService(
		IngestWithFetcher(&fakeFetcher{payload: []byte(ingestTestXML)}),
		IngestWithChunker(chunker.New(200, 20)),
		IngestWithEmbedder(&vocabEmbedder{vocab: []string{"records", "closed", "scope"}}),
		IngestWithStore(store),
		IngestWithCache(cache),
	)

	result, err := svc.Refresh(context.Background(), testLocator)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if result.Sections != 2 {
		t.Errorf("sections = %d", result.Sections)
	}
	if result.Chunks == 0 || result.Indexed != result.Chunks {
		t.Errorf("chunks = %d, indexed = %d", result.Chunks, result.Indexed)
	}
	if result.FromCache {
		t.Error("live fetch should not report from_cache")
	}

	// The live fetch should have refreshed the snapshot cache.
	rc, err := cache.Get(context.Background(), "ecfr/title-21-part-11.xml")
	if err != nil {
		t.Fatalf("snapshot not cached: %v", err)
	}
	rc.Close()

	// Indexed chunks must carry their section citation.
	results, err := store.Query(context.Background(), []float64{0, 1, 0}, 1)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(results) != 1 || !strings.HasPrefix(results[0].Section, "§ 11.") {
		t.Errorf("unexpected top chunk: %+v", results)
	}
}

func TestIngestService_RefreshIdempotent(t *testing.T) {
	store := newSQLiteTestStore(t)
	svc := NewIngestService(
		IngestWithFetcher(&fakeFetcher{payload: []byte(ingestTestXML)}),
		IngestWithChunker(chunker.New(200, 20)),
		IngestWithEmbedder(&vocabEmbedder{vocab: []string{"records", "closed"}}),
		IngestWithStore(store),
	)
	ctx := context.Background()

	first, err := svc.Refresh(ctx, testLocator)
	if err != nil {
		t.Fatalf("first Refresh: %v", err)
	}
	second, err := svc.Refresh(ctx, testLocator)
	if err != nil {
		t.Fatalf("second Refresh: %v", err)
	}
	if second.Indexed != first.Indexed {
		t.Errorf("re-ingestion changed index size: %d -> %d", first.Indexed, second.Indexed)
	}
}

func TestIngestService_FallsBackToCachedSnapshot(t *testing.T) {
	store := newSQLiteTestStore(t)
	cache, err := storage.NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalStorage: %v", err)
	}
	if err := cache.Put(context.Background(), "ecfr/title-21-part-11.xml", strings.NewReader(ingestTestXML)); err != nil {
		t.Fatalf("seed cache: %v", err)
	}

	svc := NewIngestService(
		IngestWithFetcher(&fakeFetcher{err: ecfr.ErrSourceUnavailable}),
		IngestWithChunker(chunker.New(200, 20)),
		IngestWithEmbedder(&vocabEmbedder{vocab: []string{"records"}}),
		IngestWithStore(store),
		IngestWithCache(cache),
	)

	result, err := svc.Refresh(context.Background(), testLocator)
	if err != nil {
		t.Fatalf("Refresh with cached snapshot: %v", err)
	}
	if !result.FromCache {
		t.Error("expected from_cache result")
	}
	if result.Chunks == 0 {
		t.Error("expected chunks from cached snapshot")
	}
}

func TestIngestService_SourceDownNoCache(t *testing.T) {
	store := newSQLiteTestStore(t)
	svc := NewIngestService(
		IngestWithFetcher(&fakeFetcher{err: ecfr.ErrSourceUnavailable}),
		IngestWithEmbedder(&vocabEmbedder{vocab: []string{"records"}}),
		IngestWithStore(store),
	)

	_, err := svc.Refresh(context.Background(), testLocator)
	if !errors.Is(err, ecfr.ErrSourceUnavailable) {
		t.Fatalf("expected ErrSourceUnavailable, got %v", err)
	}
}
