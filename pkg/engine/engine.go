package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/subtexthq/powermap/pkg/algorithms"
	"github.com/subtexthq/powermap/pkg/archive"
	"github.com/subtexthq/powermap/pkg/config"
	"github.com/subtexthq/powermap/pkg/encryption"
	"github.com/subtexthq/powermap/pkg/graph"
	"github.com/subtexthq/powermap/pkg/insight"
	"github.com/subtexthq/powermap/pkg/logging"
	"github.com/subtexthq/powermap/pkg/metrics"
	"github.com/subtexthq/powermap/pkg/model"
	"github.com/subtexthq/powermap/pkg/normalizer"
	"github.com/subtexthq/powermap/pkg/store"
	"github.com/subtexthq/powermap/pkg/tenant"
)

// Engine is the composition root of the power map subsystem. It owns no
// tenant keys and no transport: callers supply keys per call and consume
// plain structs.
type Engine struct {
	cfg        config.Config
	store      store.Store
	tenants    *tenant.Registry
	normalizer *normalizer.Normalizer
	crypto     *encryption.Service
	composer   *insight.Composer
	generator  insight.Generator
	archiver   *archive.Exporter
	logger     logging.Logger
	metrics    *metrics.Registry

	// metrics results are cached per tenant against the snapshot id they
	// were computed from
	mu         sync.Mutex
	lastScores map[string]*algorithms.Result
}

// New wires an engine from configuration.
func New(cfg config.Config, st store.Store, logger logging.Logger, reg *metrics.Registry) *Engine {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	if reg == nil {
		reg = metrics.DefaultRegistry()
	}

	builderCfg := graph.BuilderConfig{
		Retention: cfg.Retention(),
		HalfLife:  cfg.HalfLife(),
		Policy:    graph.MergePolicy(cfg.MergePolicy),
	}

	var gen insight.Generator = insight.NewTemplateGenerator()
	if cfg.Generator == config.GeneratorOpenAI {
		gen = insight.NewOpenAIGenerator(cfg.OpenAI.APIKey, cfg.OpenAI.Model, cfg.OpenAI.BaseURL)
	}

	var archiver *archive.Exporter
	if cfg.Archive.Bucket != "" {
		var err error
		archiver, err = archive.NewExporter(context.Background(), archive.Config{
			Bucket:   cfg.Archive.Bucket,
			Region:   cfg.Archive.Region,
			Endpoint: cfg.Archive.Endpoint,
		}, logger)
		if err != nil {
			// Snapshots stay queryable without the archive; keep going.
			logger.Warn("snapshot archiving disabled", logging.Error(err))
		}
	}

	return &Engine{
		cfg:        cfg,
		store:      st,
		tenants:    tenant.NewRegistry(builderCfg, logger, reg),
		normalizer: normalizer.New(normalizer.Config{Retention: cfg.Retention()}, logger),
		crypto:     encryption.NewService(),
		composer:   insight.NewComposer(cfg.TopK, logger),
		generator:  gen,
		archiver:   archiver,
		logger:     logger,
		metrics:    reg,
		lastScores: make(map[string]*algorithms.Result),
	}
}

// CreatePlayer validates and stores a new player. The tenant runtime comes
// into existence with the tenant's first player.
func (e *Engine) CreatePlayer(ctx context.Context, tenantID string, req *model.PlayerRequest) (*model.Player, error) {
	if err := model.ValidatePlayerRequest(req); err != nil {
		return nil, err
	}
	if _, err := e.tenants.GetOrCreate(tenantID); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	p := &model.Player{
		ID:             req.ID,
		TenantID:       tenantID,
		Name:           req.Name,
		Title:          req.Title,
		InfluenceLevel: req.InfluenceLevel,
		Status:         req.Status,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := e.store.CreatePlayer(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// ListPlayers returns players with notes still as ciphertext tokens. Reading
// plaintext requires the separate DecryptNotes call.
func (e *Engine) ListPlayers(ctx context.Context, tenantID string) ([]model.Player, error) {
	return e.store.ListPlayers(ctx, tenantID)
}

// DeletePlayer removes a player and cascades their relationships.
func (e *Engine) DeletePlayer(ctx context.Context, tenantID, playerID string) error {
	return e.store.DeletePlayer(ctx, tenantID, playerID)
}

// SetPlayerNotes encrypts plaintext under the caller-supplied tenant key and
// attaches the token to the player. Plaintext is never stored.
func (e *Engine) SetPlayerNotes(ctx context.Context, tenantID, playerID string, tenantKey []byte, plaintext string) error {
	p, err := e.store.GetPlayer(ctx, tenantID, playerID)
	if err != nil {
		return err
	}
	field, err := e.crypto.Encrypt(tenantKey, plaintext)
	if err != nil {
		return err
	}
	p.Notes = field
	p.UpdatedAt = time.Now().UTC()
	return e.store.UpdatePlayer(ctx, p)
}

// DecryptNotes is the explicit, separately-authorized read path for notes.
// It returns plaintext per player id for players that have notes; a bad key
// fails closed.
func (e *Engine) DecryptNotes(ctx context.Context, tenantID string, tenantKey []byte) (map[string]string, error) {
	players, err := e.store.ListPlayers(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	notes := make(map[string]string)
	for _, p := range players {
		if p.Notes == nil {
			continue
		}
		plaintext, err := e.crypto.Decrypt(tenantKey, p.Notes)
		if err != nil {
			e.metrics.DecryptFailuresTotal.Inc()
			return nil, fmt.Errorf("player %s: %w", p.ID, err)
		}
		notes[p.ID] = plaintext
	}
	return notes, nil
}

// UpsertRelationship validates an edge and stores it. Formal edges are
// checked against the tenant's existing reporting forest first; a rejected
// edge leaves the stored graph untouched.
func (e *Engine) UpsertRelationship(ctx context.Context, tenantID string, req *model.RelationshipRequest) (*model.Relationship, error) {
	if err := model.ValidateRelationshipRequest(req); err != nil {
		return nil, err
	}
	if _, err := e.tenants.GetOrCreate(tenantID); err != nil {
		return nil, err
	}

	if req.Kind == model.KindFormal {
		existing, err := e.store.ListRelationships(ctx, tenantID)
		if err != nil {
			return nil, err
		}
		forest := graph.NewForest()
		for _, r := range existing {
			if r.Kind != model.KindFormal {
				continue
			}
			if err := forest.Insert(r.FromPlayerID, r.ToPlayerID); err != nil {
				return nil, &graph.BuildError{TenantID: tenantID, Reason: "stored hierarchy is inconsistent: " + err.Error()}
			}
		}
		if err := forest.Insert(req.FromPlayerID, req.ToPlayerID); err != nil {
			return nil, err
		}
	}

	now := time.Now().UTC()
	r := &model.Relationship{
		ID:           uuid.NewString(),
		TenantID:     tenantID,
		FromPlayerID: req.FromPlayerID,
		ToPlayerID:   req.ToPlayerID,
		Kind:         req.Kind,
		Type:         req.Type,
		Strength:     req.Strength,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := e.store.UpsertRelationship(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

// DeleteRelationship removes one edge.
func (e *Engine) DeleteRelationship(ctx context.Context, tenantID, relationshipID string) error {
	return e.store.DeleteRelationship(ctx, tenantID, relationshipID)
}

// Ingest pulls all sources under the configured deadline, persists the
// deduplicated events and reports which sources failed.
func (e *Engine) Ingest(ctx context.Context, tenantID string, sources ...normalizer.Source) (*normalizer.IngestResult, error) {
	result := e.normalizer.Ingest(ctx, e.cfg.IngestTimeout.Std(), time.Now().UTC(), sources...)
	e.metrics.RecordIngest(tenantID, len(result.Events), len(result.Skipped), result.FailedSources)

	if err := e.store.AppendEvents(ctx, tenantID, result.Events); err != nil {
		return nil, err
	}
	return result, nil
}

// Rebuild materializes a fresh snapshot from everything stored for the
// tenant. Concurrent calls for one tenant coalesce; readers keep the previous
// snapshot until the new one is published.
func (e *Engine) Rebuild(ctx context.Context, tenantID string, ingest *normalizer.IngestResult) (*graph.Snapshot, error) {
	rt, err := e.tenants.GetOrCreate(tenantID)
	if err != nil {
		return nil, err
	}

	asOf := time.Now().UTC()
	players, err := e.store.ListPlayers(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	relationships, err := e.store.ListRelationships(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	events, err := e.store.ListEvents(ctx, tenantID, asOf.Add(-e.cfg.Retention()))
	if err != nil {
		return nil, err
	}

	input := graph.BuildInput{
		TenantID:      tenantID,
		Players:       players,
		Relationships: relationships,
		Events:        events,
		AsOf:          asOf,
	}
	if ingest != nil {
		input.Partial = ingest.Partial()
		input.FailedSources = ingest.FailedSources
	}

	snap, err := rt.Rebuild(input)
	if err != nil {
		return nil, err
	}
	if e.archiver != nil {
		if _, err := e.archiver.Export(ctx, snap); err != nil {
			// The published snapshot is authoritative; archiving is best-effort.
			e.logger.Warn("snapshot archive failed", logging.TenantID(tenantID), logging.Error(err))
		}
	}
	return snap, nil
}

// Snapshot returns the tenant's last published snapshot, or nil before the
// first successful build.
func (e *Engine) Snapshot(tenantID string) *graph.Snapshot {
	rt, err := e.tenants.Get(tenantID)
	if err != nil {
		return nil
	}
	return rt.Current()
}

// Scores computes metrics for the current snapshot, cached per snapshot id.
func (e *Engine) Scores(tenantID string) (*algorithms.Result, error) {
	snap := e.Snapshot(tenantID)
	if snap == nil {
		return nil, fmt.Errorf("no snapshot published for tenant %s", tenantID)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if cached, ok := e.lastScores[tenantID]; ok && cached.SnapshotID == snap.ID {
		return cached, nil
	}
	result := algorithms.Compute(snap)
	e.lastScores[tenantID] = result
	return result, nil
}

// Report composes the ranked insight report for the current snapshot.
// decryptedNotes may be nil (the caller skipped the explicit decrypt step);
// the report then omits note-derived context.
func (e *Engine) Report(ctx context.Context, tenantID string, decryptedNotes map[string]string) (*insight.Report, error) {
	snap := e.Snapshot(tenantID)
	if snap == nil {
		return nil, fmt.Errorf("no snapshot published for tenant %s", tenantID)
	}
	result, err := e.Scores(tenantID)
	if err != nil {
		return nil, err
	}
	players, err := e.store.ListPlayers(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	report := e.composer.Compose(snap, result, players, decryptedNotes)
	if err := insight.Narrate(ctx, e.generator, report); err != nil {
		// The structured report stands on its own; narration is best-effort.
		e.logger.Warn("narrative generation failed", logging.TenantID(tenantID), logging.Error(err))
	}
	return report, nil
}

// DeleteTenant ends the tenant's graph lifecycle.
func (e *Engine) DeleteTenant(tenantID string) error {
	e.mu.Lock()
	delete(e.lastScores, tenantID)
	e.mu.Unlock()
	return e.tenants.Delete(tenantID)
}
