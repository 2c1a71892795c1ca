package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
)

// ── helpers ──────────────────────────────────────────────────────────────────

func newID() string { return uuid.New().String() }

func daysAgo(d int) time.Time {
	return time.Now().UTC().AddDate(0, 0, -d)
}

func randBetween(min, max int) int {
	return min + rand.Intn(max-min+1)
}

func must(err error, msg string) {
	if err != nil {
		log.Fatalf("%s: %v", msg, err)
	}
}

func envOr(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func jsonOf(v any) []byte {
	b, err := json.Marshal(v)
	must(err, "marshal json")
	return b
}

// ── main ─────────────────────────────────────────────────────────────────────

// Seeds one demo tenant end to end: two teams and their agents, the three lead
// sources named in the ingestion spec, a CRM connection with synced people,
// and one completed batch whose canonical leads sit at three match stages
// (matched, in review, unmatched) so the reporting views have something to show.
func main() {
	_ = godotenv.Load()

	dsn := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		envOr("DB_HOST", "localhost"),
		envOr("DB_PORT", "5432"),
		envOr("DB_USER", "leadpipe"),
		envOr("DB_PASSWORD", "leadpipe"),
		envOr("DB_NAME", "leadpipe"),
		envOr("DB_SSL_MODE", "disable"),
	)

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		log.Fatalf("connect: %v", err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		log.Fatalf("ping: %v", err)
	}
	fmt.Println("connected to database")

	tx, err := pool.Begin(ctx)
	if err != nil {
		log.Fatalf("begin tx: %v", err)
	}
	defer tx.Rollback(ctx)

	// ── clean up previous seed data ──────────────────────────────────────
	const seedTenantName = "Haloestate Demo Brokerage"
	_, _ = tx.Exec(ctx, `DELETE FROM tenants WHERE name = $1`, seedTenantName)
	fmt.Println("cleaned previous seed data")

	// ── 1. tenant ────────────────────────────────────────────────────────
	tenantID := newID()
	_, err = tx.Exec(ctx,
		`INSERT INTO tenants (id, name, created_at) VALUES ($1, $2, $3)`,
		tenantID, seedTenantName, daysAgo(120),
	)
	must(err, "create tenant")
	fmt.Printf("created tenant: %s\n", seedTenantName)

	// ── 2. teams ─────────────────────────────────────────────────────────
	type team struct{ id, name string }
	teams := []team{
		{newID(), "Downtown Team"},
		{newID(), "Suburban Team"},
	}
	for _, t := range teams {
		_, err = tx.Exec(ctx,
			`INSERT INTO teams (id, tenant_id, name, created_at) VALUES ($1, $2, $3, $4)`,
			t.id, tenantID, t.name, daysAgo(118),
		)
		must(err, "create team "+t.name)
	}
	fmt.Printf("created %d teams\n", len(teams))

	// ── 3. agents ────────────────────────────────────────────────────────
	type agent struct{ id, teamID, crmUserID, name, email string }
	agents := []agent{
		{newID(), teams[0].id, "crm-usr-101", "Dana Whitfield", "dana.whitfield@haloestate.dev"},
		{newID(), teams[0].id, "crm-usr-102", "Marcus Lee", "marcus.lee@haloestate.dev"},
		{newID(), teams[1].id, "crm-usr-201", "Priya Nair", "priya.nair@haloestate.dev"},
		{newID(), teams[1].id, "crm-usr-202", "Oliver Grant", "oliver.grant@haloestate.dev"},
	}
	for _, a := range agents {
		_, err = tx.Exec(ctx,
			`INSERT INTO agents (id, tenant_id, team_id, crm_user_id, name, email, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $7)`,
			a.id, tenantID, a.teamID, a.crmUserID, a.name, a.email, daysAgo(115),
		)
		must(err, "create agent "+a.name)
	}
	fmt.Printf("created %d agents\n", len(agents))

	// ── 4. lead sources ──────────────────────────────────────────────────
	type leadSource struct {
		id, slug, displayName string
		csvConfig             map[string]any
		fieldMapping          map[string]any
	}
	leadSources := []leadSource{
		{
			newID(), "zillow", "Zillow Premier Agent",
			map[string]any{"delimiter": ",", "has_header": true},
			map[string]any{"email": []string{"Email"}, "phone": []string{"Phone"}, "first_name": []string{"First Name"}, "last_name": []string{"Last Name"}, "address": []string{"Property Address"}},
		},
		{
			newID(), "realtor", "Realtor.com Connections Plus",
			map[string]any{"delimiter": ",", "has_header": true},
			map[string]any{"email": []string{"lead_email"}, "phone": []string{"lead_phone"}, "first_name": []string{"lead_first_name"}, "last_name": []string{"lead_last_name"}, "address": []string{"listing_address"}},
		},
		{
			newID(), "opcity", "OpCity Referral Network",
			map[string]any{"delimiter": "\t", "has_header": true},
			map[string]any{"email": []string{"ContactEmail"}, "phone": []string{"ContactPhone"}, "first_name": []string{"FName"}, "last_name": []string{"LName"}, "address": []string{"PropertyAddr"}},
		},
	}
	for _, ls := range leadSources {
		_, err = tx.Exec(ctx,
			`INSERT INTO lead_sources (id, tenant_id, slug, display_name, csv_config, field_mapping, validation_rules, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)`,
			ls.id, tenantID, ls.slug, ls.displayName, jsonOf(ls.csvConfig), jsonOf(ls.fieldMapping), jsonOf(map[string]any{"require_email_or_phone": true}), daysAgo(110),
		)
		must(err, "create lead source "+ls.slug)
	}
	fmt.Printf("created %d lead sources\n", len(leadSources))

	// ── 5. CRM connection ────────────────────────────────────────────────
	crmConnID := newID()
	_, err = tx.Exec(ctx,
		`INSERT INTO crm_connections (id, tenant_id, base_url, api_key, is_active, last_sync_at, last_sync_status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, true, $5, 'completed', $6, $6)`,
		crmConnID, tenantID, "https://api.followupboss.com/v1", "demo-fub-api-key", daysAgo(1), daysAgo(100),
	)
	must(err, "create crm connection")
	fmt.Println("created crm connection")

	// ── 6. synced CRM leads (one per agent, plus one unassigned) ───
	type crmLead struct {
		id, externalID, firstName, lastName, email, phone, address, assignedUserID, assignedUserName string
	}
	crmLeads := []crmLead{
		{newID(), "fub-3001", "Jordan", "Keane", "jordan.keane@example.com", "512-555-0101", "412 Maple St, Austin, TX", "crm-usr-101", "Dana Whitfield"},
		{newID(), "fub-3002", "Casey", "Oliveira", "casey.oliveira@example.com", "512-555-0142", "88 Birch Ave, Austin, TX", "crm-usr-102", "Marcus Lee"},
		{newID(), "fub-3003", "Riley", "Thompson", "riley.thompson@example.com", "737-555-0177", "205 Cedar Ln, Round Rock, TX", "crm-usr-201", "Priya Nair"},
		{newID(), "fub-3004", "Sam", "Delgado", "sam.delgado@example.com", "737-555-0199", "19 Pine Ct, Round Rock, TX", "crm-usr-202", "Oliver Grant"},
		{newID(), "fub-3005", "Morgan", "Ellis", "morgan.ellis@example.com", "512-555-0188", "3301 Riverside Dr, Austin, TX", "", ""},
	}
	for _, cl := range crmLeads {
		_, err = tx.Exec(ctx,
			`INSERT INTO crm_leads (id, tenant_id, crm_connection_id, external_id, first_name, last_name, email, email_normalized,
			 phone, phone_normalized, address, address_normalized, assigned_user_id, assigned_user_name, stage, source, tags,
			 sync_hash, last_synced_at, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, lower($7), $8, regexp_replace($8, '[^0-9]', '', 'g'), $9, lower($9), $10, $11, 'lead', 'followupboss', '[]'::jsonb, $12, $13, $13, $13)`,
			cl.id, tenantID, crmConnID, cl.externalID, cl.firstName, cl.lastName, cl.email, cl.phone, cl.address,
			cl.assignedUserID, cl.assignedUserName, fmt.Sprintf("seed-hash-%s", cl.externalID), daysAgo(randBetween(5, 90)),
		)
		must(err, "create crm lead "+cl.externalID)
	}
	fmt.Printf("created %d crm leads\n", len(crmLeads))

	// ── 7. a completed batch with canonical leads at three match stages ──
	batchID := newID()
	_, err = tx.Exec(ctx,
		`INSERT INTO batches (id, tenant_id, lead_source_id, file_ref, file_hash, received_at, status,
		 total_rows, parsed_rows, valid_rows, duplicate_rows, error_rows, log, errors, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, 'completed', 4, 4, 4, 0, 0, $7, '[]'::jsonb, $6, $6)`,
		batchID, tenantID, leadSources[0].id, "s3://leadpipe-demo/zillow/2026-07-20.csv", "seed-file-hash-0001",
		daysAgo(10), jsonOf([]string{"staged", "parsed", "transformed"}),
	)
	must(err, "create batch")

	type canonicalLead struct {
		id, firstName, lastName, email, phone, address, matchStatus string
		confidence                                                  *float64
	}
	exactConf := 1.0
	fuzzyConf := 0.82
	canonicalLeads := []canonicalLead{
		{newID(), "Jordan", "Keane", "jordan.keane@example.com", "512-555-0101", "412 Maple St, Austin, TX", "matched", &exactConf},
		{newID(), "Casey", "Oliveira", "casey.oliveira@example.com", "512-555-0142", "88 Birch Ave, Austin, TX", "matched", &exactConf},
		{newID(), "Riley", "Thomson", "riley.thomson@example.com", "737-555-0177", "205 Cedar Lane, Round Rock, TX", "review", &fuzzyConf},
		{newID(), "Taylor", "Vance", "taylor.vance@example.com", "512-555-0222", "901 Oak Blvd, Austin, TX", "unmatched", nil},
	}
	for i, c := range canonicalLeads {
		_, err = tx.Exec(ctx,
			`INSERT INTO canonical_leads (id, tenant_id, lead_source_id, source_record_id, lead_type, first_name, last_name,
			 email, email_normalized, phone, phone_normalized, address, address_normalized, raw_data, source_created_at,
			 match_status, match_confidence, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, 'buyer', $5, $6, $7, lower($7), $8, regexp_replace($8, '[^0-9]', '', 'g'), $9, lower($9),
			 '{}'::jsonb, $10, $11, $12, $10, $10)`,
			c.id, tenantID, leadSources[0].id, fmt.Sprintf("zillow-row-%d", i+1), c.firstName, c.lastName, c.email, c.phone,
			c.address, daysAgo(10), c.matchStatus, c.confidence,
		)
		must(err, "create canonical lead "+c.email)
	}
	fmt.Printf("created %d canonical leads\n", len(canonicalLeads))

	// ── 8. matches for the two exact hits, attributed to their agents ──
	matchDefs := []struct {
		canonicalIdx, crmIdx, agentIdx, teamIdx int
		confidence                              float64
	}{
		{0, 0, 0, 0, 1.00},
		{1, 1, 1, 0, 1.00},
	}
	for _, md := range matchDefs {
		matchID := newID()
		_, err = tx.Exec(ctx,
			`INSERT INTO matches (id, tenant_id, canonical_lead_id, crm_lead_id, match_type, confidence, match_details,
			 matched_by, attributed_team_id, attributed_agent_id, status, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, 'email_exact', $5, $6, 'system', $7, $8, 'active', $9, $9)`,
			matchID, tenantID, canonicalLeads[md.canonicalIdx].id, crmLeads[md.crmIdx].id, md.confidence,
			jsonOf(map[string]any{"email_match": true}), teams[md.teamIdx].id, agents[md.agentIdx].id, daysAgo(9),
		)
		must(err, "create match")
	}
	fmt.Printf("created %d matches\n", len(matchDefs))

	// ── 9. one pending review candidate for the fuzzy address match ────
	candidateID := newID()
	_, err = tx.Exec(ctx,
		`INSERT INTO match_candidates (id, tenant_id, canonical_lead_id, crm_lead_id, match_type, confidence_score,
		 match_reasons, status, expires_at, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, 'address_fuzzy', $5, $6, 'pending', $7, $8, $8)`,
		candidateID, tenantID, canonicalLeads[2].id, crmLeads[2].id, fuzzyConf,
		jsonOf([]string{"address_trigram_similarity=0.82", "name_similarity=0.9"}), time.Now().UTC().Add(48*time.Hour), daysAgo(9),
	)
	must(err, "create match candidate")
	fmt.Println("created 1 pending review candidate")

	// ── 10. lineage entries tracing the matched lead through the pipeline ──
	lineageSteps := []struct {
		sourceTable, targetTable, operation, transformationType string
	}{
		{"batches", "batches", "create", "ingest"},
		{"batches", "canonical_leads", "create", "normalize"},
		{"canonical_leads", "matches", "create", "score"},
	}
	for _, step := range lineageSteps {
		_, err = tx.Exec(ctx,
			`INSERT INTO lineage_entries (id, tenant_id, source_table, source_id, target_table, target_id, operation,
			 transformation_type, performed_by, details, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 'seed_script', '{}'::jsonb, $9)`,
			newID(), tenantID, step.sourceTable, batchID, step.targetTable, canonicalLeads[0].id, step.operation,
			step.transformationType, daysAgo(9),
		)
		must(err, "create lineage entry")
	}
	fmt.Printf("created %d lineage entries\n", len(lineageSteps))

	// ── commit ───────────────────────────────────────────────────────────
	if err := tx.Commit(ctx); err != nil {
		log.Fatalf("commit: %v", err)
	}

	fmt.Println("\nseed completed successfully")
	fmt.Printf("  tenant: %s (%s)\n", seedTenantName, tenantID)
}
