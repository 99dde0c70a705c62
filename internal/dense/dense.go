// Package dense maintains a vector collection in which every document
// carries three independently queryable vector fields (content, title,
// breadcrumb) and fuses per-field nearest-neighbor rankings by weighted
// score combination.
//
// The backend is an embedded chromem-go database, one collection per
// vector field. chromem performs exact cosine search; the HNSW tuning
// parameters are carried through the config structs for backends that
// honor them.
package dense

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"github.com/google/uuid"
	"github.com/philippgille/chromem-go"

	"github.com/dopemux/codesearch/pkg/types"
)

// Vector field names.
type Field string

const (
	FieldContent    Field = "content"
	FieldTitle      Field = "title"
	FieldBreadcrumb Field = "breadcrumb"
)

var fields = []Field{FieldContent, FieldTitle, FieldBreadcrumb}

// CollectionConfig describes the collection and its index parameters.
type CollectionConfig struct {
	Name        string
	Dimension   int
	M           int // HNSW graph degree
	EfConstruct int // HNSW build-time exploration factor
}

// DefaultCollectionConfig returns the standard collection parameters.
func DefaultCollectionConfig(name string, dimension int) CollectionConfig {
	return CollectionConfig{
		Name:        name,
		Dimension:   dimension,
		M:           16,
		EfConstruct: 200,
	}
}

// Point is one document plus its three field vectors.
type Point struct {
	ID               string // generated when empty
	ContentVector    []float32
	TitleVector      []float32
	BreadcrumbVector []float32
	Document         types.Document
}

// QueryVectors carries the per-field query embeddings for one search.
type QueryVectors struct {
	Content    []float32
	Title      []float32
	Breadcrumb []float32
}

// CollectionInfo is the introspection record for a collection.
type CollectionInfo struct {
	Name         string
	VectorsCount int
	Status       string
}

// Index is the multi-vector dense index. Construct it with NewIndex and
// call CreateCollection before inserting; the client is injected so the
// owner controls its lifecycle.
type Index struct {
	db   *chromem.DB
	cfg  CollectionConfig
	cols map[Field]*chromem.Collection
}

// NewIndex creates an index over the given chromem database.
func NewIndex(db *chromem.DB, cfg CollectionConfig) *Index {
	return &Index{
		db:   db,
		cfg:  cfg,
		cols: make(map[Field]*chromem.Collection, len(fields)),
	}
}

// CreateCollection ensures the per-field collections exist. Idempotent:
// existing collections are reused untouched.
func (ix *Index) CreateCollection(ctx context.Context) error {
	for _, f := range fields {
		col, err := ix.db.GetOrCreateCollection(ix.fieldCollection(f), map[string]string{
			"field":        string(f),
			"dimension":    strconv.Itoa(ix.cfg.Dimension),
			"hnsw_m":       strconv.Itoa(ix.cfg.M),
			"hnsw_ef_cons": strconv.Itoa(ix.cfg.EfConstruct),
		}, nil)
		if err != nil {
			return fmt.Errorf("%w: create collection %s: %v", types.ErrBackendUnavailable, ix.fieldCollection(f), err)
		}
		ix.cols[f] = col
	}
	return nil
}

// InsertPoint inserts or overwrites one document and returns the id used.
// Re-inserting an id replaces the previous payload and vectors; the
// document is searchable as soon as the call returns.
func (ix *Index) InsertPoint(ctx context.Context, p Point) (string, error) {
	ids, err := ix.InsertPointsBatch(ctx, []Point{p})
	if err != nil {
		return "", err
	}
	return ids[0], nil
}

// InsertPointsBatch inserts points as one batch per vector field and
// returns the ids in input order.
func (ix *Index) InsertPointsBatch(ctx context.Context, points []Point) ([]string, error) {
	if len(points) == 0 {
		return nil, nil
	}
	if err := ix.ready(); err != nil {
		return nil, err
	}

	ids := make([]string, len(points))
	perField := map[Field][]chromem.Document{}
	for i, p := range points {
		if p.ID == "" {
			p.ID = uuid.NewString()
		}
		ids[i] = p.ID
		meta := documentToMetadata(p.Document)
		for f, vec := range map[Field][]float32{
			FieldContent:    p.ContentVector,
			FieldTitle:      p.TitleVector,
			FieldBreadcrumb: p.BreadcrumbVector,
		} {
			perField[f] = append(perField[f], chromem.Document{
				ID:        p.ID,
				Metadata:  meta,
				Embedding: vec,
				Content:   p.Document.RawCode,
			})
		}
	}

	for f, docs := range perField {
		if err := ix.cols[f].AddDocuments(ctx, docs, 1); err != nil {
			return nil, fmt.Errorf("%w: insert into %s: %v", types.ErrBackendUnavailable, ix.fieldCollection(f), err)
		}
	}

	return ids, nil
}

// Search runs one nearest-neighbor query per vector field, then fuses the
// three ranked lists by the profile's field weights:
//
//	fused = Wc*score_content + Wt*score_title + Wb*score_breadcrumb
//
// A document absent from one field's top-k contributes 0 for that field.
// Output is deduplicated by id, sorted descending by fused score, and
// truncated to profile.TopK. Searching an empty collection returns an
// empty list.
func (ix *Index) Search(ctx context.Context, q QueryVectors, profile types.SearchProfile, filterBy map[string]string) ([]types.SearchResult, error) {
	if err := ix.ready(); err != nil {
		return nil, err
	}

	fused := map[string]float64{}
	payloads := map[string]types.Document{}

	queries := []struct {
		field  Field
		vector []float32
		weight float64
	}{
		{FieldContent, q.Content, profile.ContentWeight},
		{FieldTitle, q.Title, profile.TitleWeight},
		{FieldBreadcrumb, q.Breadcrumb, profile.BreadcrumbWeight},
	}

	for _, fq := range queries {
		if len(fq.vector) == 0 {
			continue
		}
		hits, err := ix.searchField(ctx, fq.field, fq.vector, profile.TopK, filterBy)
		if err != nil {
			return nil, err
		}
		for id, hit := range hits {
			fused[id] += fq.weight * hit.score
			if _, seen := payloads[id]; !seen {
				payloads[id] = hit.doc
			}
		}
	}

	results := make([]types.SearchResult, 0, len(fused))
	for id, score := range fused {
		results = append(results, types.SearchResult{
			ID:       id,
			Score:    score,
			Source:   types.SourceDense,
			Document: payloads[id],
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > profile.TopK {
		results = results[:profile.TopK]
	}
	return results, nil
}

// DeletePoints removes documents by id from every vector field.
func (ix *Index) DeletePoints(ctx context.Context, ids []string) error {
	if err := ix.ready(); err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}
	for _, f := range fields {
		if err := ix.cols[f].Delete(ctx, nil, nil, ids...); err != nil {
			return fmt.Errorf("%w: delete from %s: %v", types.ErrBackendUnavailable, ix.fieldCollection(f), err)
		}
	}
	return nil
}

// DeleteByFile removes every document indexed from one file within a
// workspace, for incremental re-indexing.
func (ix *Index) DeleteByFile(ctx context.Context, workspaceID, filePath string) error {
	if err := ix.ready(); err != nil {
		return err
	}
	where := map[string]string{
		"workspace_id": workspaceID,
		"file_path":    filePath,
	}
	for _, f := range fields {
		if err := ix.cols[f].Delete(ctx, where, nil); err != nil {
			return fmt.Errorf("%w: delete from %s: %v", types.ErrBackendUnavailable, ix.fieldCollection(f), err)
		}
	}
	return nil
}

// DeleteCollection drops all per-field collections.
func (ix *Index) DeleteCollection() error {
	for _, f := range fields {
		if err := ix.db.DeleteCollection(ix.fieldCollection(f)); err != nil {
			return fmt.Errorf("%w: drop %s: %v", types.ErrBackendUnavailable, ix.fieldCollection(f), err)
		}
		delete(ix.cols, f)
	}
	return nil
}

// Info reports the collection name, document count, and readiness.
func (ix *Index) Info() CollectionInfo {
	info := CollectionInfo{Name: ix.cfg.Name, Status: "green"}
	col, ok := ix.cols[FieldContent]
	if !ok {
		info.Status = "uninitialized"
		return info
	}
	info.VectorsCount = col.Count()
	return info
}

// fieldHit is one per-field nearest-neighbor match.
type fieldHit struct {
	score float64
	doc   types.Document
}

// searchField queries one per-field collection and returns id -> hit.
func (ix *Index) searchField(ctx context.Context, f Field, vector []float32, topK int, filterBy map[string]string) (map[string]fieldHit, error) {
	col := ix.cols[f]

	// chromem rejects result counts above the collection size.
	n := topK
	if count := col.Count(); count < n {
		n = count
	}
	if n == 0 {
		return nil, nil
	}

	res, err := col.QueryEmbedding(ctx, vector, n, filterBy, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: query %s: %v", types.ErrBackendUnavailable, ix.fieldCollection(f), err)
	}

	hits := make(map[string]fieldHit, len(res))
	for _, r := range res {
		hits[r.ID] = fieldHit{
			score: float64(r.Similarity),
			doc:   metadataToDocument(r.ID, r.Content, r.Metadata),
		}
	}
	return hits, nil
}

func (ix *Index) fieldCollection(f Field) string {
	return ix.cfg.Name + "_" + string(f)
}

func (ix *Index) ready() error {
	if len(ix.cols) != len(fields) {
		return fmt.Errorf("%w: collection %s not created", types.ErrBackendUnavailable, ix.cfg.Name)
	}
	return nil
}

// documentToMetadata flattens a Document into chromem's string metadata.
func documentToMetadata(doc types.Document) map[string]string {
	meta := map[string]string{
		"file_path":       doc.FilePath,
		"function_name":   doc.FunctionName,
		"language":        doc.Language,
		"workspace_id":    doc.WorkspaceID,
		"context_snippet": doc.ContextSnippet,
		"start_line":      strconv.Itoa(doc.StartLine),
		"end_line":        strconv.Itoa(doc.EndLine),
	}
	for k, v := range doc.Metadata {
		meta["x_"+k] = v
	}
	return meta
}

// metadataToDocument reverses documentToMetadata.
func metadataToDocument(id, content string, meta map[string]string) types.Document {
	doc := types.Document{
		ID:             id,
		RawCode:        content,
		FilePath:       meta["file_path"],
		FunctionName:   meta["function_name"],
		Language:       meta["language"],
		WorkspaceID:    meta["workspace_id"],
		ContextSnippet: meta["context_snippet"],
	}
	doc.StartLine, _ = strconv.Atoi(meta["start_line"])
	doc.EndLine, _ = strconv.Atoi(meta["end_line"])
	for k, v := range meta {
		if len(k) > 2 && k[:2] == "x_" {
			if doc.Metadata == nil {
				doc.Metadata = map[string]string{}
			}
			doc.Metadata[k[2:]] = v
		}
	}
	return doc
}
