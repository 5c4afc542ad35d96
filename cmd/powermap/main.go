package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"

	"github.com/subtexthq/powermap/pkg/config"
	"github.com/subtexthq/powermap/pkg/encryption"
	"github.com/subtexthq/powermap/pkg/engine"
	"github.com/subtexthq/powermap/pkg/insight"
	"github.com/subtexthq/powermap/pkg/logging"
	"github.com/subtexthq/powermap/pkg/metrics"
	"github.com/subtexthq/powermap/pkg/model"
	"github.com/subtexthq/powermap/pkg/normalizer"
	"github.com/subtexthq/powermap/pkg/store"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config (optional)")
	tenantID := flag.String("tenant", "demo-corp", "Tenant to build the demo map for")
	flag.Parse()

	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := logging.DefaultLogger()
	st, err := openStore(cfg)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer st.Close()

	eng := engine.New(cfg, st, logger, metrics.DefaultRegistry())
	ctx := context.Background()

	fmt.Printf("🗺️  Power Map Engine Demo\n")
	fmt.Printf("=========================\n\n")

	if err := seedDemo(ctx, eng, *tenantID); err != nil {
		log.Fatalf("Failed to seed demo data: %v", err)
	}

	// Ingest communication metadata from the demo feeds.
	result, err := eng.Ingest(ctx, *tenantID, demoMessages(), demoCalendar())
	if err != nil {
		log.Fatalf("Ingest failed: %v", err)
	}
	fmt.Printf("Ingested %d events (%d skipped, partial=%v)\n",
		len(result.Events), len(result.Skipped), result.Partial())

	snap, err := eng.Rebuild(ctx, *tenantID, result)
	if err != nil {
		log.Fatalf("Rebuild failed: %v", err)
	}
	fmt.Printf("Snapshot %s: %d players, %d edges\n\n", snap.ID, len(snap.Nodes), len(snap.Edges))

	scores, err := eng.Scores(*tenantID)
	if err != nil {
		log.Fatalf("Metrics failed: %v", err)
	}
	fmt.Printf("%-12s %8s %12s %10s\n", "player", "degree", "betweenness", "constraint")
	for _, s := range scores.Scores {
		constraint := "null"
		if s.Constraint != nil {
			constraint = fmt.Sprintf("%.3f", *s.Constraint)
		}
		fmt.Printf("%-12s %8.3f %12.3f %10s\n", s.PlayerID, s.Degree, s.Betweenness, constraint)
	}

	// Decrypt notes explicitly so the report can carry note hints. The key
	// never leaves this process; the engine holds none.
	notes, err := eng.DecryptNotes(ctx, *tenantID, demoKey)
	if err != nil {
		log.Fatalf("Decrypt failed: %v", err)
	}

	report, err := eng.Report(ctx, *tenantID, notes)
	if err != nil {
		log.Fatalf("Report failed: %v", err)
	}

	fmt.Printf("\n📋 Insight Report\n")
	fmt.Printf("-----------------\n")
	printSection("Brokers", report.Brokers)
	printSection("Opportunities", report.Opportunities)
	printSection("Risks", report.Risks)
	printSection("Underleveraged allies", report.Underleveraged)

	if report.Narrative != "" {
		fmt.Printf("\n%s\n", report.Narrative)
	}
}

// openStore picks Postgres when a database URL is configured, otherwise the
// in-memory store.
func openStore(cfg config.Config) (store.Store, error) {
	if cfg.DatabaseURL != "" {
		return store.NewPostgres(context.Background(), cfg.DatabaseURL)
	}
	return store.NewMemory(), nil
}

// demoKey is a fixed tenant key so the demo is reproducible. Never do this in
// production; keys are caller-held and per tenant.
var demoKey = func() []byte {
	salt := make([]byte, encryption.SaltSize)
	key, err := encryption.DeriveKey("powermap-demo", salt)
	if err != nil {
		panic(err)
	}
	return key
}()

type demoPlayer struct {
	id, name, title string
	influence       int
	status          model.RelationshipStatus
	notes           string
}

func seedDemo(ctx context.Context, eng *engine.Engine, tenantID string) error {
	players := []demoPlayer{
		{"maya", "Maya Chen", "VP Engineering", 9, model.StatusNeutral, "Final say on headcount. Listens to Priya."},
		{"priya", "Priya Natarajan", "Principal Engineer", 7, model.StatusAlly, "Respected across orgs, allergic to politics."},
		{"derek", "Derek Shaw", "Director of Product", 8, model.StatusRival, "Claims credit aggressively. Building a case against platform team."},
		{"sam", "Sam Ortiz", "Staff Engineer", 6, model.StatusAlly, ""},
		{"lena", "Lena Fischer", "Engineering Manager", 5, model.StatusNeutral, ""},
		{"omar", "Omar Haddad", "Data Science Lead", 6, model.StatusAlly, "Wants to collaborate, nobody loops him in."},
	}
	for _, p := range players {
		if _, err := eng.CreatePlayer(ctx, tenantID, &model.PlayerRequest{
			ID: p.id, Name: p.name, Title: p.title, InfluenceLevel: p.influence, Status: p.status,
		}); err != nil {
			return err
		}
		if p.notes != "" {
			if err := eng.SetPlayerNotes(ctx, tenantID, p.id, demoKey, p.notes); err != nil {
				return err
			}
		}
	}

	// Reporting lines.
	formal := [][2]string{{"maya", "priya"}, {"maya", "lena"}, {"lena", "sam"}}
	for _, f := range formal {
		if _, err := eng.UpsertRelationship(ctx, tenantID, &model.RelationshipRequest{
			FromPlayerID: f[0], ToPlayerID: f[1], Kind: model.KindFormal,
		}); err != nil {
			return err
		}
	}

	// Known informal ties.
	if _, err := eng.UpsertRelationship(ctx, tenantID, &model.RelationshipRequest{
		FromPlayerID: "priya", ToPlayerID: "maya", Kind: model.KindInformal, Type: "trusted_advisor", Strength: 8,
	}); err != nil {
		return err
	}
	if _, err := eng.UpsertRelationship(ctx, tenantID, &model.RelationshipRequest{
		FromPlayerID: "derek", ToPlayerID: "maya", Kind: model.KindInformal, Type: "lobbying", Strength: 6,
	}); err != nil {
		return err
	}
	return nil
}

// staticFeed is a canned demo source.
type staticFeed struct {
	name    string
	records []normalizer.RawRecord
}

func (f *staticFeed) Name() string { return f.name }

func (f *staticFeed) Fetch(context.Context) ([]normalizer.RawRecord, error) {
	return f.records, nil
}

func demoMessages() normalizer.Source {
	now := time.Now().UTC()
	msgs := []normalizer.MessageRecord{
		{From: "priya", To: []string{"sam"}, Timestamp: now.Add(-24 * time.Hour)},
		{From: "priya", To: []string{"sam"}, Timestamp: now.Add(-48 * time.Hour)},
		{From: "sam", To: []string{"priya", "lena"}, Timestamp: now.Add(-72 * time.Hour)},
		{From: "derek", To: []string{"maya"}, Timestamp: now.Add(-12 * time.Hour)},
		{From: "derek", To: []string{"maya"}, Timestamp: now.Add(-36 * time.Hour)},
		{From: "maya", To: []string{"priya"}, Timestamp: now.Add(-24 * time.Hour)},
	}
	records := make([]normalizer.RawRecord, len(msgs))
	for i, m := range msgs {
		records[i] = m.Raw()
	}
	return &staticFeed{name: "messages", records: records}
}

func demoCalendar() normalizer.Source {
	now := time.Now().UTC()
	meetings := []normalizer.MeetingRecord{
		{Attendees: []string{"maya", "lena", "derek"}, Start: now.Add(-5 * 24 * time.Hour)},
		{Attendees: []string{"priya", "sam", "lena"}, Start: now.Add(-3 * 24 * time.Hour)},
	}
	records := make([]normalizer.RawRecord, len(meetings))
	for i, m := range meetings {
		records[i] = m.Raw()
	}
	return &staticFeed{name: "calendar", records: records}
}

func printSection(title string, entries []insight.Entry) {
	if len(entries) == 0 {
		return
	}
	fmt.Printf("\n%s:\n", title)
	for _, e := range entries {
		line := fmt.Sprintf("  • %s (%s, %.3f)", e.Label, e.Reason, e.Metric)
		if e.NoteHint != "" {
			line += ": " + e.NoteHint
		}
		fmt.Println(line)
	}
}
