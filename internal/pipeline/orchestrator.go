package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"civicgrid.dev/grievdedup/internal/category"
	"civicgrid.dev/grievdedup/internal/cluster"
	"civicgrid.dev/grievdedup/internal/config"
	"civicgrid.dev/grievdedup/internal/db"
	"civicgrid.dev/grievdedup/internal/dedup"
	"civicgrid.dev/grievdedup/internal/embedclient"
	"civicgrid.dev/grievdedup/internal/grievance"
	"civicgrid.dev/grievdedup/internal/similarity"
	"civicgrid.dev/grievdedup/internal/textnorm"
	"civicgrid.dev/grievdedup/internal/threshold"
)

// Pool is the subset of *db.Pool the orchestrator needs, widened to also
// satisfy the narrower threshold.Pool and cluster.Pool interfaces those
// packages declare for themselves.
type Pool interface {
	threshold.Pool
	cluster.Pool

	InsertBatch(ctx context.Context, source string, submittedByUserID *int64, totalPDFs int, now time.Time) (int64, string, error)
	MarkBatchStarted(ctx context.Context, batchID int64, now time.Time) error
	MarkBatchCompleted(ctx context.Context, batchID int64, counts db.BatchCounts, now time.Time) error
	MarkBatchFailed(ctx context.Context, batchID int64, reason string, now time.Time) error

	InsertGrievance(ctx context.Context, g *db.Grievance, now time.Time) (int64, string, error)
	MarkGrievanceProcessed(ctx context.Context, grievanceID int64, g *db.Grievance, now time.Time) error
	ListHistoricalGrievances(ctx context.Context, limit int) ([]db.Grievance, error)

	UpsertEmbedding(ctx context.Context, grievanceID int64, vec []float32, modelName, modelVersion, endpoint string, latencyMS int, now time.Time) (int64, error)
	ListEmbeddingsByIDs(ctx context.Context, grievanceIDs []int64) (map[int64][]float32, error)

	InsertFeedback(ctx context.Context, f *db.FeedbackLog, now time.Time) (int64, error)
}

// Embedder is the subset of *embedclient.Client the orchestrator needs —
// narrowed so tests can substitute a fake that also reports provenance.
type Embedder interface {
	EmbedWithMeta(ctx context.Context, texts []string) ([][]float32, embedclient.CallMeta, error)
}

// PDFEntry is one PDF submitted as part of a batch (§6's BatchSubmit.pdfs).
type PDFEntry struct {
	PDFID      int64
	Filename   string
	Area       string
	Grievances []PageEntry
}

// PageEntry is one raw page of text within a PDF, possibly containing
// several grievances that C2 will split out.
type PageEntry struct {
	PageNumber int
	Text       string
}

// BatchRequest is the orchestrator's entry point input (§6's BatchSubmit).
type BatchRequest struct {
	Source           string
	SubmittedByUserID *int64
	PDFs             []PDFEntry
}

// Orchestrator is C10 — it drives C1 through C9 for one batch at a time.
type Orchestrator struct {
	pool               Pool
	embedder           Embedder
	log                zerolog.Logger
	thresholds         *threshold.Store
	modelName          string
	modelVersion       string
	historicalPoolSize int
	embeddingWorkers   int
}

func NewOrchestrator(pool Pool, embedder Embedder, log zerolog.Logger, cfg *config.Config) *Orchestrator {
	return &Orchestrator{
		pool:               pool,
		embedder:           embedder,
		log:                log,
		thresholds:         threshold.NewStore(pool, log),
		modelName:          cfg.EmbeddingModelName,
		modelVersion:       cfg.EmbeddingModelVersion,
		historicalPoolSize: cfg.HistoricalPoolSize,
		embeddingWorkers:   cfg.EmbeddingWorkerPool,
	}
}

// Submit inserts a pending batch row and returns its id immediately; the
// actual pipeline runs in its own goroutine, per §5's "BatchSubmit returns a
// batch id immediately (HTTP 202)".
func (o *Orchestrator) Submit(ctx context.Context, req BatchRequest) (int64, error) {
	now := time.Now().UTC()
	source := req.Source
	if source == "" {
		source = "api"
	}
	batchID, _, err := o.pool.InsertBatch(ctx, source, req.SubmittedByUserID, len(req.PDFs), now)
	if err != nil {
		return 0, fmt.Errorf("insert batch: %w", err)
	}

	go o.run(context.WithoutCancel(ctx), batchID, req)

	return batchID, nil
}

type rawEntry struct {
	PDFID      int64
	Filename   string
	Area       string
	PageNumber int
	RawText    string
}

type preparedEntry struct {
	rawEntry
	OriginalText  string
	ProcessedText string
	Tokens        []string
	Category      string
}

func (o *Orchestrator) run(ctx context.Context, batchID int64, req BatchRequest) {
	now := time.Now().UTC()
	if err := o.pool.MarkBatchStarted(ctx, batchID, now); err != nil {
		o.log.Error().Err(err).Int64("batch_id", batchID).Msg("failed to mark batch started")
		return
	}

	prepared, err := o.prepare(req)
	if err != nil {
		o.fail(ctx, batchID, err.Error())
		return
	}
	if len(prepared) == 0 {
		o.fail(ctx, batchID, "no valid grievances found in batch")
		return
	}

	texts := make([]string, len(prepared))
	for i, p := range prepared {
		texts[i] = p.ProcessedText
	}
	vectors, metas, err := o.embedAll(ctx, texts)
	if err != nil {
		o.fail(ctx, batchID, fmt.Sprintf("embedding unavailable: %v", err))
		return
	}

	snap := o.thresholds.Load(ctx)
	weights := similarity.Weights{Cosine: snap.CosineWeight, Jaccard: snap.JaccardWeight, Ngram: snap.NgramWeight, Metadata: snap.MetadataWeight}

	historical, err := o.loadHistorical(ctx)
	if err != nil {
		o.fail(ctx, batchID, fmt.Sprintf("load historical pool: %v", err))
		return
	}

	inputs := make([]dedup.Input, len(prepared))
	for i, p := range prepared {
		inputs[i] = dedup.Input{Index: i, PDFID: p.PDFID, PageNumber: p.PageNumber, Category: p.Category, Area: p.Area, Tokens: p.Tokens, Embedding: vectors[i]}
	}
	outcomes := dedup.Run(inputs, historical, weights, snap)

	outcomes = applyRescue(prepared, vectors, outcomes, snap.NearDuplicate)

	ids, err := o.persistGrievances(ctx, batchID, prepared, now)
	if err != nil {
		o.fail(ctx, batchID, fmt.Sprintf("insert grievance: %v", err))
		return
	}

	counts, memberResults, err := o.finalize(ctx, prepared, ids, vectors, metas, outcomes, now)
	if err != nil {
		o.fail(ctx, batchID, fmt.Sprintf("persist dedup outcome: %v", err))
		return
	}

	cluster.Materialize(ctx, o.pool, o.log, batchID, memberResults, now)

	counts.ProcessedPDFs = len(req.PDFs)
	if err := o.pool.MarkBatchCompleted(ctx, batchID, counts, time.Now().UTC()); err != nil {
		o.log.Error().Err(err).Int64("batch_id", batchID).Msg("failed to mark batch completed")
	}
}

func (o *Orchestrator) fail(ctx context.Context, batchID int64, reason string) {
	o.log.Warn().Int64("batch_id", batchID).Str("reason", reason).Msg("batch failed")
	if err := o.pool.MarkBatchFailed(ctx, batchID, reason, time.Now().UTC()); err != nil {
		o.log.Error().Err(err).Int64("batch_id", batchID).Msg("failed to mark batch failed")
	}
}

// prepare flattens the PDFs into pages, runs C2's split+validate and C1/C3
// over each surviving candidate. InvalidGrievance candidates are silently
// filtered (§7), never surfaced as a batch error.
func (o *Orchestrator) prepare(req BatchRequest) ([]preparedEntry, error) {
	var entries []rawEntry
	for _, pdf := range req.PDFs {
		for _, page := range pdf.Grievances {
			entries = append(entries, rawEntry{PDFID: pdf.PDFID, Filename: pdf.Filename, Area: pdf.Area, PageNumber: page.PageNumber, RawText: page.Text})
		}
	}

	var out []preparedEntry
	for _, e := range entries {
		for _, candidate := range grievance.Split(e.RawText) {
			core, ok := grievance.ExtractCore(candidate)
			if !ok {
				o.log.Debug().Str("pdf_filename", e.Filename).Int("page", e.PageNumber).Msg("filtered invalid grievance candidate")
				continue
			}

			normalized := textnorm.Normalize(core)
			tokens := textnorm.Tokens(normalized)
			catResult := category.Detect(candidate)
			area := e.Area
			if area == "" {
				area = category.ExtractArea(candidate)
			}

			out = append(out, preparedEntry{
				rawEntry:      rawEntry{PDFID: e.PDFID, Filename: e.Filename, Area: area, PageNumber: e.PageNumber, RawText: candidate},
				OriginalText:  candidate,
				ProcessedText: normalized,
				Tokens:        tokens,
				Category:      catResult.Category,
			})
		}
	}
	return out, nil
}

// embedAll fans requests out across a bounded worker pool — a hand-rolled
// sync.WaitGroup/channel pool rather than errgroup, since the teacher never
// imports golang.org/x/sync/errgroup directly (§5).
func (o *Orchestrator) embedAll(ctx context.Context, texts []string) ([][]float32, []embedclient.CallMeta, error) {
	workers := o.embeddingWorkers
	if workers < 1 {
		workers = 1
	}
	chunkSize := (len(texts) + workers - 1) / workers
	if chunkSize < 1 {
		chunkSize = 1
	}

	vectors := make([][]float32, len(texts))
	metas := make([]embedclient.CallMeta, len(texts))

	type job struct {
		start, end int
	}
	jobs := make(chan job)

	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error

	worker := func() {
		defer wg.Done()
		for j := range jobs {
			chunkVectors, meta, err := o.embedder.EmbedWithMeta(ctx, texts[j.start:j.end])
			mu.Lock()
			if err != nil {
				if firstErr == nil {
					firstErr = err
				}
			} else {
				for k := j.start; k < j.end; k++ {
					vectors[k] = chunkVectors[k-j.start]
					metas[k] = meta
				}
			}
			mu.Unlock()
		}
	}

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go worker()
	}

	for start := 0; start < len(texts); start += chunkSize {
		end := start + chunkSize
		if end > len(texts) {
			end = len(texts)
		}
		jobs <- job{start: start, end: end}
	}
	close(jobs)
	wg.Wait()

	if firstErr != nil {
		return nil, nil, firstErr
	}
	return vectors, metas, nil
}

func (o *Orchestrator) loadHistorical(ctx context.Context) ([]dedup.Historical, error) {
	rows, err := o.pool.ListHistoricalGrievances(ctx, o.historicalPoolSize)
	if err != nil {
		return nil, fmt.Errorf("list historical grievances: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	ids := make([]int64, len(rows))
	for i, r := range rows {
		ids[i] = r.GrievanceID
	}
	vectorsByID, err := o.pool.ListEmbeddingsByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("list historical embeddings: %w", err)
	}

	out := make([]dedup.Historical, 0, len(rows))
	for _, r := range rows {
		vec, ok := vectorsByID[r.GrievanceID]
		if !ok {
			continue
		}
		out = append(out, dedup.Historical{
			GrievanceID: r.GrievanceID,
			Category:    r.Category,
			Area:        r.Area,
			Tokens:      textnorm.Tokens(r.ProcessedText),
			Embedding:   vec,
		})
	}
	return out, nil
}

// applyRescue runs C7's DBSCAN over the batch's own embeddings and upgrades
// UNIQUE members of a ≥2-member cluster to NEAR_DUPLICATE, per §4.7.
func applyRescue(prepared []preparedEntry, vectors [][]float32, outcomes []dedup.Outcome, nearDuplicateThreshold float64) []dedup.Outcome {
	matrix := cluster.SimilarityMatrix(vectors)
	eps := 1 - nearDuplicateThreshold
	labels := cluster.DBSCAN(matrix, eps, 2)

	rescueInputs := make([]cluster.RescueInput, len(prepared))
	for i, p := range prepared {
		rescueInputs[i] = cluster.RescueInput{Index: i, PageNumber: p.PageNumber, Status: outcomes[i].Status, Label: labels[i]}
	}
	rescued := cluster.Rescue(rescueInputs)

	for i := range outcomes {
		if rescued[i].Status != outcomes[i].Status {
			outcomes[i].Status = rescued[i].Status
			outcomes[i].Target = dedup.Pending{Index: rescued[i].PrimaryIndex}
		}
	}
	return outcomes
}

// persistGrievances inserts every prepared grievance in batch order,
// returning the surrogate id assigned to each position — this is what lets
// Pending{Index} targets be resolved to real foreign keys afterward.
func (o *Orchestrator) persistGrievances(ctx context.Context, batchID int64, prepared []preparedEntry, now time.Time) ([]int64, error) {
	ids := make([]int64, len(prepared))
	for i, p := range prepared {
		pdfID := p.PDFID
		pageNumber := p.PageNumber
		filename := p.Filename
		g := &db.Grievance{
			BatchID:        &batchID,
			PDFID:          &pdfID,
			SourceFilename: &filename,
			PageNumber:     &pageNumber,
			SubmissionType: "text",
			OriginalText:   p.OriginalText,
			Category:       p.Category,
			Area:           p.Area,
		}
		id, _, err := o.pool.InsertGrievance(ctx, g, now)
		if err != nil {
			return nil, err
		}
		ids[i] = id
	}
	return ids, nil
}

// finalize resolves each outcome's MatchTarget against the assigned ids,
// writes the processed grievance row and its embedding, and builds the
// cluster.MemberResult slice C8 needs.
func (o *Orchestrator) finalize(ctx context.Context, prepared []preparedEntry, ids []int64, vectors [][]float32, metas []embedclient.CallMeta, outcomes []dedup.Outcome, now time.Time) (db.BatchCounts, []cluster.MemberResult, error) {
	var counts db.BatchCounts
	counts.TotalGrievances = len(prepared)
	memberResults := make([]cluster.MemberResult, len(prepared))

	for i, p := range prepared {
		oc := outcomes[i]
		matchedID := resolveTarget(oc.Target, ids)
		localDuplicateOf := resolveTarget(oc.LocalTarget, ids)

		g := &db.Grievance{
			ProcessedText:      p.ProcessedText,
			Status:             oc.Status,
			SimilarityScore:    oc.Score,
			MatchedGrievanceID: matchedID,
			LocalDuplicateOf:   localDuplicateOf,
			CosineScore:        oc.Breakdown.Cosine,
			JaccardScore:       oc.Breakdown.Jaccard,
			NgramScore:         oc.Breakdown.Ngram,
			Category:           p.Category,
			Area:               p.Area,
		}
		if err := o.pool.MarkGrievanceProcessed(ctx, ids[i], g, now); err != nil {
			return db.BatchCounts{}, nil, err
		}

		meta := metas[i]
		if _, err := o.pool.UpsertEmbedding(ctx, ids[i], vectors[i], o.modelName, o.modelVersion, meta.Endpoint, meta.LatencyMS, now); err != nil {
			return db.BatchCounts{}, nil, err
		}

		switch oc.Status {
		case dedup.StatusUnique:
			counts.UniqueCount++
		case dedup.StatusNearDuplicate:
			counts.NearDuplicateCount++
		case dedup.StatusDuplicate:
			counts.DuplicateCount++
		}

		memberResults[i] = cluster.MemberResult{
			GrievanceID:        ids[i],
			HasRealMatch:       matchedID != nil,
			Status:             oc.Status,
			SimilarityScore:    oc.Score,
		}
		if matchedID != nil {
			memberResults[i].MatchedGrievanceID = *matchedID
		}
	}

	return counts, memberResults, nil
}

// resolveTarget translates a dedup.MatchTarget into a real grievance id: a
// Pending target is resolved through the batch's own id assignment; a
// Persisted target is already real. nil (UNIQUE, no match) stays nil.
func resolveTarget(target dedup.MatchTarget, ids []int64) *int64 {
	switch t := target.(type) {
	case dedup.Pending:
		id := ids[t.Index]
		return &id
	case dedup.Persisted:
		id := t.GrievanceID
		return &id
	default:
		return nil
	}
}
