package qdrant

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	qdrantclient "github.com/qdrant/go-client/qdrant"

	"github.com/flarexio/ragblade/document"
	"github.com/flarexio/ragblade/vector"
)

const (
	upsertBatchSize = 256

	// tieMargin extra points are fetched per search so equal scores at
	// the cut-off can still be ordered by insertion.
	tieMargin = 16
)

// Store keeps each index in its own Qdrant collection and publishes it
// under an alias named after the location. Replacing an index swaps the
// alias in a single UpdateAliases call, so readers never see a half
// written collection.
type Store struct {
	conn        *grpc.ClientConn
	collections qdrantclient.CollectionsClient
	points      qdrantclient.PointsClient
	distance    qdrantclient.Distance
	exact       bool
	log         *zap.Logger
}

func NewStore(cfg vector.QdrantConfig, metric vector.Metric) (*Store, error) {
	distance, err := toDistance(metric)
	if err != nil {
		return nil, err
	}

	host := cfg.Host
	if host == "" {
		host = "localhost"
	}

	port := cfg.Port
	if port == 0 {
		port = 6334
	}

	addr := fmt.Sprintf("%s:%d", host, port)
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", vector.ErrStorage, err)
	}

	return &Store{
		conn:        conn,
		collections: qdrantclient.NewCollectionsClient(conn),
		points:      qdrantclient.NewPointsClient(conn),
		distance:    distance,
		exact:       cfg.Exact,
		log: zap.L().With(
			zap.String("backend", "qdrant"),
			zap.String("addr", addr),
		),
	}, nil
}

func (s *Store) Close() error {
	return s.conn.Close()
}

func (s *Store) CreateOrReplace(ctx context.Context, location string, records []vector.Record) error {
	dim, err := vector.Dimension(records)
	if err != nil {
		return err
	}

	alias := AliasName(location)
	name := alias + "_" + uuid.New().String()[:8]

	log := s.log.With(
		zap.String("alias", alias),
		zap.String("collection", name),
	)

	_, err = s.collections.Create(ctx, &qdrantclient.CreateCollection{
		CollectionName: name,
		VectorsConfig: &qdrantclient.VectorsConfig{
			Config: &qdrantclient.VectorsConfig_Params{
				Params: &qdrantclient.VectorParams{
					Size:     uint64(dim),
					Distance: s.distance,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("%w: create collection: %w", vector.ErrStorage, err)
	}

	if err := s.upsert(ctx, name, records); err != nil {
		s.drop(name, log)
		return err
	}

	previous, err := s.aliasTarget(ctx, alias)
	if err != nil {
		s.drop(name, log)
		return err
	}

	actions := make([]*qdrantclient.AliasOperations, 0, 2)
	if previous != "" {
		actions = append(actions, &qdrantclient.AliasOperations{
			Action: &qdrantclient.AliasOperations_DeleteAlias{
				DeleteAlias: &qdrantclient.DeleteAlias{AliasName: alias},
			},
		})
	}

	actions = append(actions, &qdrantclient.AliasOperations{
		Action: &qdrantclient.AliasOperations_CreateAlias{
			CreateAlias: &qdrantclient.CreateAlias{
				CollectionName: name,
				AliasName:      alias,
			},
		},
	})

	if _, err := s.collections.UpdateAliases(ctx, &qdrantclient.ChangeAliases{Actions: actions}); err != nil {
		s.drop(name, log)
		return fmt.Errorf("%w: swap alias: %w", vector.ErrStorage, err)
	}

	if previous != "" {
		s.drop(previous, log)
	}

	log.Info("collection published", zap.Int("points", len(records)))
	return nil
}

func (s *Store) upsert(ctx context.Context, collection string, records []vector.Record) error {
	wait := true
	for start := 0; start < len(records); start += upsertBatchSize {
		end := min(start+upsertBatchSize, len(records))

		points := make([]*qdrantclient.PointStruct, 0, end-start)
		for i := start; i < end; i++ {
			points = append(points, ToPoint(records[i], i))
		}

		_, err := s.points.Upsert(ctx, &qdrantclient.UpsertPoints{
			CollectionName: collection,
			Wait:           &wait,
			Points:         points,
		})
		if err != nil {
			return fmt.Errorf("%w: upsert points: %w", vector.ErrStorage, err)
		}
	}

	return nil
}

// drop runs on a fresh context so cleanup still happens after the caller
// has been canceled.
func (s *Store) drop(collection string, log *zap.Logger) {
	_, err := s.collections.Delete(context.Background(), &qdrantclient.DeleteCollection{
		CollectionName: collection,
	})
	if err != nil {
		log.Warn("failed to drop collection",
			zap.String("target", collection),
			zap.Error(err),
		)
	}
}

func (s *Store) aliasTarget(ctx context.Context, alias string) (string, error) {
	resp, err := s.collections.ListAliases(ctx, &qdrantclient.ListAliasesRequest{})
	if err != nil {
		return "", fmt.Errorf("%w: list aliases: %w", vector.ErrStorage, err)
	}

	for _, a := range resp.GetAliases() {
		if a.GetAliasName() == alias {
			return a.GetCollectionName(), nil
		}
	}

	return "", nil
}

func (s *Store) Load(ctx context.Context, location string) (vector.Handle, error) {
	h := &handle{
		store:    s,
		location: location,
	}

	if err := h.resolve(ctx); err != nil {
		return nil, err
	}

	return h, nil
}

// handle reads the concrete collection the alias pointed at when it was
// loaded. Once a replace drops that collection the handle follows the
// alias to its successor.
type handle struct {
	store    *Store
	location string

	mu         sync.RWMutex
	collection string
	dim        int
	distance   qdrantclient.Distance
	count      int
}

func (h *handle) resolve(ctx context.Context) error {
	target, err := h.store.aliasTarget(ctx, AliasName(h.location))
	if err != nil {
		return err
	}

	if target == "" {
		return fmt.Errorf("%w: %s", vector.ErrIndexNotFound, h.location)
	}

	info, err := h.store.collections.Get(ctx, &qdrantclient.GetCollectionInfoRequest{
		CollectionName: target,
	})
	if err != nil {
		return fmt.Errorf("%w: collection info: %w", vector.ErrStorage, err)
	}

	params := info.GetResult().GetConfig().GetParams().GetVectorsConfig().GetParams()
	if params == nil {
		return fmt.Errorf("%w: collection %s has no vector params", vector.ErrStorage, target)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.collection = target
	h.dim = int(params.GetSize())
	h.distance = params.GetDistance()
	h.count = int(info.GetResult().GetPointsCount())
	return nil
}

func (h *handle) Search(ctx context.Context, query []float32, k int) ([]vector.Result, error) {
	if k <= 0 {
		return nil, fmt.Errorf("%w: got %d", vector.ErrInvalidK, k)
	}

	results, err := h.search(ctx, query, k)
	if status.Code(err) != codes.NotFound {
		return results, err
	}

	h.store.log.Info("collection replaced, following alias",
		zap.String("location", h.location),
	)

	if err := h.resolve(ctx); err != nil {
		return nil, err
	}

	return h.search(ctx, query, k)
}

func (h *handle) search(ctx context.Context, query []float32, k int) ([]vector.Result, error) {
	h.mu.RLock()
	collection, dim, distance := h.collection, h.dim, h.distance
	h.mu.RUnlock()

	if len(query) != dim {
		return nil, fmt.Errorf("%w: query has %d dimensions, index has %d", vector.ErrDimensionMismatch, len(query), dim)
	}

	exact := h.store.exact
	resp, err := h.store.points.Search(ctx, &qdrantclient.SearchPoints{
		CollectionName: collection,
		Vector:         query,
		Limit:          uint64(k + tieMargin),
		WithPayload: &qdrantclient.WithPayloadSelector{
			SelectorOptions: &qdrantclient.WithPayloadSelector_Enable{Enable: true},
		},
		WithVectors: &qdrantclient.WithVectorsSelector{
			SelectorOptions: &qdrantclient.WithVectorsSelector_Enable{Enable: true},
		},
		Params: &qdrantclient.SearchParams{Exact: &exact},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: search: %w", vector.ErrStorage, err)
	}

	ranked := make([]vector.Ranked, len(resp.GetResult()))
	for i, point := range resp.GetResult() {
		r, seq := FromPayload(point.GetPayload())
		r.Vector = point.GetVectors().GetVector().GetData()

		ranked[i] = vector.Ranked{
			Result: vector.Result{
				Record:   r,
				Distance: ScoreToDistance(distance, point.GetScore()),
			},
			Seq: seq,
		}
	}

	return vector.SortRanked(ranked, k), nil
}

func (h *handle) Dimension() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.dim
}

func (h *handle) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.count
}

func (h *handle) Close() error {
	return nil
}

var invalidName = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

// AliasName maps an index location onto a valid collection alias.
func AliasName(location string) string {
	name := invalidName.ReplaceAllString(location, "_")
	if name == "" || name == "_" {
		name = "index"
	}

	return "ragblade_" + name
}

func toDistance(metric vector.Metric) (qdrantclient.Distance, error) {
	switch metric {
	case vector.Cosine:
		return qdrantclient.Distance_Cosine, nil
	case vector.L2:
		return qdrantclient.Distance_Euclid, nil
	default:
		return 0, fmt.Errorf("%w: %q", vector.ErrUnsupportedMetric, metric)
	}
}

// ScoreToDistance converts a Qdrant score into a lower-is-closer distance.
func ScoreToDistance(d qdrantclient.Distance, score float32) float64 {
	switch d {
	case qdrantclient.Distance_Cosine:
		return math.Max(0, 1-float64(score))
	default:
		return float64(score)
	}
}

func stringValue(s string) *qdrantclient.Value {
	return &qdrantclient.Value{Kind: &qdrantclient.Value_StringValue{StringValue: s}}
}

func integerValue(i int) *qdrantclient.Value {
	return &qdrantclient.Value{Kind: &qdrantclient.Value_IntegerValue{IntegerValue: int64(i)}}
}

func ToPoint(r vector.Record, seq int) *qdrantclient.PointStruct {
	payload := map[string]*qdrantclient.Value{
		"text":        stringValue(r.Text),
		"source":      stringValue(r.Metadata.Source),
		"chunk_index": integerValue(r.ChunkIndex),
		"seq":         integerValue(seq),
	}

	if r.Metadata.Page > 0 {
		payload["page"] = integerValue(r.Metadata.Page)
	}

	return &qdrantclient.PointStruct{
		Id: &qdrantclient.PointId{
			PointIdOptions: &qdrantclient.PointId_Num{Num: uint64(seq)},
		},
		Vectors: &qdrantclient.Vectors{
			VectorsOptions: &qdrantclient.Vectors_Vector{
				Vector: &qdrantclient.Vector{Data: r.Vector},
			},
		},
		Payload: payload,
	}
}

// FromPayload rebuilds a record (without its vector) and its insertion
// sequence from a point payload.
func FromPayload(payload map[string]*qdrantclient.Value) (vector.Record, int) {
	seq := math.MaxInt
	if v, ok := payload["seq"]; ok {
		seq = int(v.GetIntegerValue())
	}

	meta := map[string]string{
		"source": payload["source"].GetStringValue(),
	}

	if v, ok := payload["page"]; ok {
		meta["page"] = strconv.FormatInt(v.GetIntegerValue(), 10)
	}

	return vector.Record{
		Text:       payload["text"].GetStringValue(),
		Metadata:   document.MetadataFromMap(meta),
		ChunkIndex: int(payload["chunk_index"].GetIntegerValue()),
	}, seq
}
