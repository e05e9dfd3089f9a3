package service

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"regintel-backend/chunker"
	"regintel-backend/ecfr"
	"regintel-backend/embedding"
	"regintel-backend/storage"
	"regintel-backend/vectorstore"
)

// RegulationFetcher retrieves the raw XML for a regulatory part. Satisfied by
// *ecfr.Client.
type RegulationFetcher interface {
	FetchPartXML(ctx context.Context, loc ecfr.Locator) ([]byte, error)
}

// IngestService runs the offline corpus path: fetch the regulation, extract
// section text, chunk it, embed the chunks, and index them. Ingestion is
// idempotent: the store de-duplicates on content hash, so refreshing an
// unchanged corpus leaves query results unchanged.
type IngestService struct {
	fetcher  RegulationFetcher
	splitter *chunker.Chunker
	embedder embedding.Embedder
	store    vectorstore.Store
	cache    storage.Storage // optional snapshot cache; may be nil
	logger   *zap.Logger
}

// IngestServiceOption is a functional option for IngestService
type IngestServiceOption func(*IngestService)

// IngestWithFetcher sets the regulation fetcher
func IngestWithFetcher(f RegulationFetcher) IngestServiceOption {
	return func(s *IngestService) {
		s.fetcher = f
	}
}

// IngestWithChunker sets the text splitter
func IngestWithChunker(c *chunker.Chunker) IngestServiceOption {
	return func(s *IngestService) {
		s.splitter = c
	}
}

// IngestWithEmbedder sets the document embedder
func IngestWithEmbedder(e embedding.Embedder) IngestServiceOption {
	return func(s *IngestService) {
		s.embedder = e
	}
}

// IngestWithStore sets the vector store
func IngestWithStore(store vectorstore.Store) IngestServiceOption {
	return func(s *IngestService) {
		s.store = store
	}
}

// IngestWithCache sets the corpus snapshot cache
func IngestWithCache(cache storage.Storage) IngestServiceOption {
	return func(s *IngestService) {
		s.cache = cache
	}
}

// IngestWithLogger sets the logger
func IngestWithLogger(logger *zap.Logger) IngestServiceOption {
	return func(s *IngestService) {
		s.logger = logger
	}
}

// NewIngestService creates a new ingestion service
func NewIngestService(opts ...IngestServiceOption) *IngestService {
	s := &IngestService{
		splitter: chunker.New(chunker.DefaultWindowSize, chunker.DefaultOverlap),
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RefreshResult summarizes one ingestion run.
type RefreshResult struct {
	Sections  int  `json:"sections"`
	Chunks    int  `json:"chunks"`
	Indexed   int  `json:"indexed"` // entries in the store after the run
	FromCache bool `json:"from_cache"`
}

// Refresh fetches the located part and (re)populates the vector index. When
// the source is unreachable the last cached snapshot is used instead; fetch
// and parse failures otherwise propagate to the caller unchanged.
func (s *IngestService) Refresh(ctx context.Context, loc ecfr.Locator) (*RefreshResult, error) {
	raw, fromCache, err := s.fetchWithFallback(ctx, loc)
	if err != nil {
		return nil, err
	}

	sections, err := ecfr.ExtractSections(raw)
	if err != nil {
		return nil, err
	}

	var entries []vectorstore.Entry
	var texts []string
	for _, section := range sections {
		for _, chunk := range s.splitter.Chunk(section.Text) {
			chunk.ID = uuid.New()
			chunk.Section = section.Citation
			entries = append(entries, vectorstore.Entry{Chunk: chunk})
			texts = append(texts, chunk.Text)
		}
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: regulation contained no text to index", ecfr.ErrParseFailed)
	}

	vectors, err := s.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(entries) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d chunks", len(vectors), len(entries))
	}
	for i := range entries {
		entries[i].Vector = vectors[i]
	}

	if err := s.store.Add(ctx, entries); err != nil {
		return nil, err
	}

	indexed, err := s.store.Count(ctx)
	if err != nil {
		return nil, err
	}

	s.logger.Info("corpus refreshed",
		zap.String("locator", loc.String()),
		zap.Int("sections", len(sections)),
		zap.Int("chunks", len(entries)),
		zap.Int("indexed", indexed),
		zap.Bool("from_cache", fromCache))

	return &RefreshResult{
		Sections:  len(sections),
		Chunks:    len(entries),
		Indexed:   indexed,
		FromCache: fromCache,
	}, nil
}

// fetchWithFallback retrieves the regulation XML, preferring the live source
// and falling back to the cached snapshot when the source is unavailable. A
// successful live fetch refreshes the snapshot; cache failures there are
// logged, not fatal.
func (s *IngestService) fetchWithFallback(ctx context.Context, loc ecfr.Locator) ([]byte, bool, error) {
	raw, fetchErr := s.fetcher.FetchPartXML(ctx, loc)
	if fetchErr == nil {
		if s.cache != nil {
			if err := s.cache.Put(ctx, snapshotKey(loc), bytes.NewReader(raw)); err != nil {
				s.logger.Warn("failed to cache corpus snapshot", zap.Error(err))
			}
		}
		return raw, false, nil
	}

	if s.cache == nil {
		return nil, false, fetchErr
	}
	rc, err := s.cache.Get(ctx, snapshotKey(loc))
	if err != nil {
		return nil, false, fetchErr
	}
	defer rc.Close()
	cached, err := io.ReadAll(rc)
	if err != nil {
		return nil, false, fetchErr
	}
	s.logger.Warn("source unavailable, using cached corpus snapshot",
		zap.String("locator", loc.String()),
		zap.Error(fetchErr))
	return cached, true, nil
}

func snapshotKey(loc ecfr.Locator) string {
	return fmt.Sprintf("ecfr/title-%d-part-%s.xml", loc.Title, loc.Part)
}
