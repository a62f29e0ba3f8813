package index

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"

	"github.com/54b3r/pressqa-go/internal/rag"
)

// QdrantConfig holds connection parameters for a Qdrant collection.
type QdrantConfig struct {
	// Host is the Qdrant server hostname (default: localhost).
	Host string

	// Port is the Qdrant gRPC port (default: 6334).
	Port int

	// Collection is the Qdrant collection name to use.
	Collection string

	// APIKey is the optional Qdrant API key for authenticated clusters.
	APIKey string

	// UseTLS enables TLS for the gRPC connection.
	UseTLS bool
}

// Payload keys stored with every point.
const (
	payloadContent     = "content"
	payloadTitle       = "title"
	payloadAuthor      = "author"
	payloadPublishDate = "publish_date"
	payloadSourceLink  = "source_link"
)

// Qdrant is an index backed by a Qdrant collection using cosine distance,
// so Qdrant's score is the cosine similarity directly.
type Qdrant struct {
	// client is the underlying Qdrant gRPC client.
	client *qdrant.Client

	// cfg holds the resolved configuration.
	cfg *QdrantConfig

	// meta is the embedding identity; the collection's vector size must
	// equal meta.Dimensions.
	meta Meta
}

// OpenQdrant connects to Qdrant and ensures the collection exists with the
// vector size of meta, creating it (and a keyword index on source_link)
// when missing. An existing collection of another size is rejected.
func OpenQdrant(ctx context.Context, cfg *QdrantConfig, meta Meta) (*Qdrant, error) {
	if err := meta.validate(); err != nil {
		return nil, err
	}
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 6334
	}
	if cfg.Collection == "" {
		cfg.Collection = "press_releases"
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, unavailable("open", fmt.Errorf("qdrant: create client: %w", err))
	}

	q := &Qdrant{client: client, cfg: cfg, meta: meta}
	if err := q.ensureCollection(ctx); err != nil {
		_ = client.Close()
		return nil, err
	}
	return q, nil
}

// ensureCollection creates the collection if it does not already exist and
// verifies its vector size and embedding model if it does. A collection
// created without a recorded model is stamped with the current one.
func (q *Qdrant) ensureCollection(ctx context.Context) error {
	exists, err := q.client.CollectionExists(ctx, q.cfg.Collection)
	if err != nil {
		return unavailable("open", fmt.Errorf("qdrant: check collection: %w", err))
	}
	if exists {
		info, err := q.client.GetCollectionInfo(ctx, q.cfg.Collection)
		if err != nil {
			return unavailable("open", fmt.Errorf("qdrant: collection info: %w", err))
		}
		stored := collectionMeta(info.GetConfig())
		if err := q.meta.check(stored); err != nil {
			return err
		}
		if stored.Model != "" || q.meta.Model == "" {
			return nil
		}
		err = q.client.UpdateCollection(ctx, &qdrant.UpdateCollection{
			CollectionName: q.cfg.Collection,
			Metadata:       q.metadata(),
		})
		if err != nil {
			return unavailable("open", fmt.Errorf("qdrant: record model: %w", err))
		}
		return nil
	}

	err = q.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: q.cfg.Collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(q.meta.Dimensions),
			Distance: qdrant.Distance_Cosine,
		}),
		Metadata: q.metadata(),
	})
	if err != nil {
		return unavailable("create", fmt.Errorf("qdrant: create collection %q: %w", q.cfg.Collection, err))
	}

	_, err = q.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
		CollectionName: q.cfg.Collection,
		FieldName:      payloadSourceLink,
		FieldType:      qdrant.FieldType_FieldTypeKeyword.Enum(),
	})
	if err != nil {
		return unavailable("create", fmt.Errorf("qdrant: index %s: %w", payloadSourceLink, err))
	}
	return nil
}

// metaModelKey is the collection metadata key holding the embedding model.
const metaModelKey = "embedding_model"

func (q *Qdrant) metadata() map[string]*qdrant.Value {
	return qdrant.NewValueMap(map[string]any{metaModelKey: q.meta.Model})
}

// collectionMeta reads the identity recorded on a collection.
func collectionMeta(cfg *qdrant.CollectionConfig) Meta {
	return Meta{
		Model:      cfg.GetMetadata()[metaModelKey].GetStringValue(),
		Dimensions: int(cfg.GetParams().GetVectorsConfig().GetParams().GetSize()),
	}
}

// Insert stores each chunk as a new point with a random UUID, so repeated
// inserts never overwrite existing points.
func (q *Qdrant) Insert(ctx context.Context, chunks []rag.Chunk, embeddings [][]float32) error {
	if err := checkInsert(chunks, embeddings, q.meta.Dimensions); err != nil {
		return err
	}
	if len(chunks) == 0 {
		return nil
	}

	points := make([]*qdrant.PointStruct, 0, len(chunks))
	for i, c := range chunks {
		payload := map[string]any{
			payloadContent:     c.Text,
			payloadTitle:       c.Title,
			payloadPublishDate: c.PublishDate.Format(rag.IsoDate),
			payloadSourceLink:  c.SourceLink,
		}
		if c.Author != nil {
			payload[payloadAuthor] = *c.Author
		}
		points = append(points, &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(uuid.NewString()),
			Vectors: qdrant.NewVectors(embeddings[i]...),
			Payload: qdrant.NewValueMap(payload),
		})
	}

	_, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: q.cfg.Collection,
		Wait:           qdrant.PtrOf(true),
		Points:         points,
	})
	if err != nil {
		return unavailable("insert", fmt.Errorf("qdrant: upsert: %w", err))
	}
	return nil
}

// Search queries the collection with Qdrant's own score threshold.
func (q *Qdrant) Search(ctx context.Context, query []float32, topK int, minSimilarity float64) ([]rag.Hit, error) {
	if err := checkQuery(query, q.meta.Dimensions); err != nil {
		return nil, err
	}

	limit := uint64(topK)
	threshold := float32(minSimilarity)
	points, err := q.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: q.cfg.Collection,
		Query:          qdrant.NewQuery(query...),
		Limit:          &limit,
		ScoreThreshold: &threshold,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, unavailable("search", fmt.Errorf("qdrant: query: %w", err))
	}

	hits := make([]rag.Hit, 0, len(points))
	for _, pt := range points {
		p := pt.GetPayload()
		c := rag.Chunk{
			Text:       p[payloadContent].GetStringValue(),
			Title:      p[payloadTitle].GetStringValue(),
			SourceLink: p[payloadSourceLink].GetStringValue(),
		}
		if v, ok := p[payloadAuthor]; ok && v.GetStringValue() != "" {
			a := v.GetStringValue()
			c.Author = &a
		}
		if d, err := time.Parse(rag.IsoDate, p[payloadPublishDate].GetStringValue()); err == nil {
			c.PublishDate = d
		}
		hits = append(hits, rag.Hit{Chunk: c, Similarity: float64(pt.GetScore())})
	}
	// The float32 threshold can admit scores a hair below minSimilarity.
	return rank(hits, topK, minSimilarity), nil
}

// DeleteSource removes every point whose source_link equals link.
func (q *Qdrant) DeleteSource(ctx context.Context, link string) error {
	_, err := q.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: q.cfg.Collection,
		Wait:           qdrant.PtrOf(true),
		Points: qdrant.NewPointsSelectorFilter(&qdrant.Filter{
			Must: []*qdrant.Condition{qdrant.NewMatch(payloadSourceLink, link)},
		}),
	})
	if err != nil {
		return unavailable("delete", fmt.Errorf("qdrant: delete %s: %w", link, err))
	}
	return nil
}

// Clear drops and recreates the collection.
func (q *Qdrant) Clear(ctx context.Context) error {
	if err := q.client.DeleteCollection(ctx, q.cfg.Collection); err != nil {
		return unavailable("clear", fmt.Errorf("qdrant: drop collection: %w", err))
	}
	return q.ensureCollection(ctx)
}

// Count returns the exact number of points.
func (q *Qdrant) Count(ctx context.Context) (int, error) {
	n, err := q.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: q.cfg.Collection,
		Exact:          qdrant.PtrOf(true),
	})
	if err != nil {
		return 0, unavailable("count", fmt.Errorf("qdrant: count: %w", err))
	}
	return int(n), nil
}

// Ping runs Qdrant's health check.
func (q *Qdrant) Ping(ctx context.Context) error {
	if _, err := q.client.HealthCheck(ctx); err != nil {
		return unavailable("ping", fmt.Errorf("qdrant: health check: %w", err))
	}
	return nil
}

// Close closes the underlying Qdrant gRPC connection.
func (q *Qdrant) Close() error {
	return q.client.Close()
}
