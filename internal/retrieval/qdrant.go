package retrieval

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/cloudwego/eino/components/embedding"
	"github.com/cloudwego/eino/components/retriever"
	"github.com/cloudwego/eino/schema"
	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"

	"diabuddy/internal/config"
)

const (
	contentPayloadKey = "content"
	sourcePayloadKey  = "source"
)

// KnowledgeBase retrieves diabetes-education chunks from a qdrant collection
// by embedding the query and running a nearest-neighbour search. It satisfies
// the eino retriever contract so chains can treat it as a plain component.
type KnowledgeBase struct {
	client     *qdrant.Client
	embedder   embedding.Embedder
	collection string
	topK       int
}

var _ retriever.Retriever = (*KnowledgeBase)(nil)

// NewKnowledgeBase connects to qdrant at cfg.URL and wraps the given
// embedder. The collection is not created here; ingest owns that.
func NewKnowledgeBase(cfg config.QdrantConfig, embedder embedding.Embedder, topK int) (*KnowledgeBase, error) {
	client, err := newQdrantClient(cfg)
	if err != nil {
		return nil, err
	}
	if topK <= 0 {
		topK = 4
	}
	return &KnowledgeBase{
		client:     client,
		embedder:   embedder,
		collection: cfg.Collection,
		topK:       topK,
	}, nil
}

func newQdrantClient(cfg config.QdrantConfig) (*qdrant.Client, error) {
	if cfg.Collection == "" {
		return nil, fmt.Errorf("qdrant collection must be configured")
	}
	host, port, useTLS, err := parseQdrantURL(cfg.URL)
	if err != nil {
		return nil, err
	}
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   host,
		Port:   port,
		APIKey: cfg.APIKey,
		UseTLS: useTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("connect qdrant at %s:%d: %w", host, port, err)
	}
	return client, nil
}

// parseQdrantURL accepts "host:port", "http://host:port" or a bare host and
// resolves the gRPC endpoint. TLS follows the https scheme.
func parseQdrantURL(raw string) (string, int, bool, error) {
	if raw == "" {
		return "localhost", 6334, false, nil
	}
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return "", 0, false, fmt.Errorf("parse qdrant url %q: %w", raw, err)
	}

	port := 6334
	if p := parsed.Port(); p != "" {
		port, err = strconv.Atoi(p)
		if err != nil {
			return "", 0, false, fmt.Errorf("parse qdrant port %q: %w", p, err)
		}
	}
	return parsed.Hostname(), port, parsed.Scheme == "https", nil
}

// Retrieve embeds the query and returns the topK closest chunks as documents.
func (k *KnowledgeBase) Retrieve(ctx context.Context, query string, opts ...retriever.Option) ([]*schema.Document, error) {
	vectors, err := k.embedder.EmbedStrings(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("embedder returned no vector for query")
	}

	vector := make([]float32, len(vectors[0]))
	for i, v := range vectors[0] {
		vector[i] = float32(v)
	}

	limit := uint64(k.topK)
	points, err := k.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: k.collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("query collection %s: %w", k.collection, err)
	}

	docs := make([]*schema.Document, 0, len(points))
	for _, point := range points {
		doc := documentFromPoint(point)
		if doc.Content == "" {
			continue
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func documentFromPoint(point *qdrant.ScoredPoint) *schema.Document {
	doc := &schema.Document{MetaData: map[string]any{}}
	if id := point.GetId(); id != nil {
		doc.ID = id.GetUuid()
	}
	for key, value := range point.GetPayload() {
		switch key {
		case contentPayloadKey:
			doc.Content = value.GetStringValue()
		default:
			doc.MetaData[key] = value.GetStringValue()
		}
	}
	return doc.WithScore(float64(point.GetScore()))
}

// Close releases the underlying gRPC connection.
func (k *KnowledgeBase) Close() error {
	return k.client.Close()
}

// Writer fills a qdrant collection with embedded document chunks. It lives
// beside the retriever so both sides agree on payload layout.
type Writer struct {
	client     *qdrant.Client
	embedder   embedding.Embedder
	collection string
}

func NewWriter(cfg config.QdrantConfig, embedder embedding.Embedder) (*Writer, error) {
	client, err := newQdrantClient(cfg)
	if err != nil {
		return nil, err
	}
	return &Writer{client: client, embedder: embedder, collection: cfg.Collection}, nil
}

// EnsureCollection creates the collection with a cosine-distance vector space
// when it does not exist yet.
func (w *Writer) EnsureCollection(ctx context.Context, dimension int) error {
	exists, err := w.client.CollectionExists(ctx, w.collection)
	if err != nil {
		return fmt.Errorf("check collection %s: %w", w.collection, err)
	}
	if exists {
		return nil
	}
	err = w.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: w.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(dimension),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("create collection %s: %w", w.collection, err)
	}
	return nil
}

// Upsert embeds the chunks and writes them as payload-carrying points.
func (w *Writer) Upsert(ctx context.Context, docs []*schema.Document) (int, error) {
	if len(docs) == 0 {
		return 0, nil
	}

	texts := make([]string, 0, len(docs))
	for _, doc := range docs {
		texts = append(texts, doc.Content)
	}
	vectors, err := w.embedder.EmbedStrings(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("embed chunks: %w", err)
	}
	if len(vectors) != len(docs) {
		return 0, fmt.Errorf("embedder returned %d vectors for %d chunks", len(vectors), len(docs))
	}

	if err := w.EnsureCollection(ctx, len(vectors[0])); err != nil {
		return 0, err
	}

	points := make([]*qdrant.PointStruct, 0, len(docs))
	for i, doc := range docs {
		vector := make([]float32, len(vectors[i]))
		for j, v := range vectors[i] {
			vector[j] = float32(v)
		}
		payload := map[string]any{contentPayloadKey: doc.Content}
		if source, ok := doc.MetaData[sourcePayloadKey].(string); ok && source != "" {
			payload[sourcePayloadKey] = source
		}
		points = append(points, &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(uuid.NewString()),
			Vectors: qdrant.NewVectors(vector...),
			Payload: qdrant.NewValueMap(payload),
		})
	}

	wait := true
	_, err = w.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: w.collection,
		Points:         points,
		Wait:           &wait,
	})
	if err != nil {
		return 0, fmt.Errorf("upsert %d points: %w", len(points), err)
	}
	return len(points), nil
}

func (w *Writer) Close() error {
	return w.client.Close()
}
