package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/searchlens/visibility-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL
// mode. Foreign keys are enabled so execution logs and child rows cascade
// with their snapshot.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS snapshots (
	id                        INTEGER PRIMARY KEY AUTOINCREMENT,
	query                     TEXT NOT NULL,
	timestamp                 DATETIME NOT NULL,
	country                   TEXT NOT NULL,
	language                  TEXT NOT NULL,
	search_domain             TEXT NOT NULL,
	intent_type               TEXT NOT NULL DEFAULT 'informational',
	intent_confidence         REAL NOT NULL DEFAULT 0.5,
	has_knowledge_graph       INTEGER NOT NULL DEFAULT 0,
	has_answer_box            INTEGER NOT NULL DEFAULT 0,
	has_ai_overview           INTEGER NOT NULL DEFAULT 0,
	has_featured_snippet      INTEGER NOT NULL DEFAULT 0,
	has_related_questions     INTEGER NOT NULL DEFAULT 0,
	brand_mentioned           INTEGER NOT NULL DEFAULT 0,
	ai_overview_text          TEXT,
	total_citations           INTEGER NOT NULL DEFAULT 0,
	brand_citations           INTEGER NOT NULL DEFAULT 0,
	total_organic_results     INTEGER NOT NULL DEFAULT 0,
	brand_organic_positions   INTEGER NOT NULL DEFAULT 0,
	visibility_score          REAL NOT NULL DEFAULT 0,
	intensity_score           REAL NOT NULL DEFAULT 0,
	share_of_voice_percentage REAL NOT NULL DEFAULT 0,
	processing_time_ms        INTEGER NOT NULL DEFAULT 0,
	category                  TEXT NOT NULL DEFAULT '',
	created_at                DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS citations (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	snapshot_id    INTEGER NOT NULL REFERENCES snapshots(id) ON DELETE CASCADE,
	domain         TEXT NOT NULL,
	url            TEXT NOT NULL,
	title          TEXT NOT NULL DEFAULT '',
	source_type    TEXT NOT NULL DEFAULT 'neutral',
	is_brand       INTEGER NOT NULL DEFAULT 0,
	authority_score REAL NOT NULL DEFAULT 0,
	sentiment      TEXT NOT NULL DEFAULT 'neutral',
	ai_reusability TEXT NOT NULL DEFAULT 'Medium',
	citation_index INTEGER NOT NULL,
	UNIQUE(snapshot_id, citation_index)
);

CREATE TABLE IF NOT EXISTS organic_positions (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	snapshot_id INTEGER NOT NULL REFERENCES snapshots(id) ON DELETE CASCADE,
	rank        INTEGER NOT NULL,
	domain      TEXT NOT NULL,
	url         TEXT NOT NULL,
	is_brand    INTEGER NOT NULL DEFAULT 0,
	UNIQUE(snapshot_id, rank)
);

CREATE TABLE IF NOT EXISTS execution_logs (
	id               INTEGER PRIMARY KEY AUTOINCREMENT,
	snapshot_id      INTEGER NOT NULL UNIQUE REFERENCES snapshots(id) ON DELETE CASCADE,
	query            TEXT NOT NULL,
	timestamp        DATETIME NOT NULL,
	search_status    TEXT NOT NULL DEFAULT 'not_run',
	textgen_status   TEXT NOT NULL DEFAULT 'not_run',
	database_status  TEXT NOT NULL DEFAULT 'not_run',
	search_time_ms   INTEGER NOT NULL DEFAULT 0,
	textgen_time_ms  INTEGER NOT NULL DEFAULT 0,
	database_time_ms INTEGER NOT NULL DEFAULT 0,
	total_time_ms    INTEGER NOT NULL DEFAULT 0,
	log_level        TEXT NOT NULL DEFAULT 'INFO',
	error_stage      TEXT,
	error_message    TEXT,
	error_trace      TEXT
);

CREATE TABLE IF NOT EXISTS provider_calls (
	id            TEXT PRIMARY KEY,
	timestamp     DATETIME NOT NULL,
	provider      TEXT NOT NULL,
	model         TEXT NOT NULL DEFAULT '',
	prompt        TEXT NOT NULL,
	response      TEXT,
	latency_ms    INTEGER NOT NULL DEFAULT 0,
	input_tokens  INTEGER NOT NULL DEFAULT 0,
	output_tokens INTEGER NOT NULL DEFAULT 0,
	total_tokens  INTEGER NOT NULL DEFAULT 0,
	estimated     INTEGER NOT NULL DEFAULT 0,
	cost_usd      REAL NOT NULL DEFAULT 0,
	success       INTEGER NOT NULL DEFAULT 0,
	error         TEXT
);

CREATE INDEX IF NOT EXISTS idx_snapshots_query ON snapshots(query);
CREATE INDEX IF NOT EXISTS idx_snapshots_created_at ON snapshots(created_at);
CREATE INDEX IF NOT EXISTS idx_citations_snapshot_id ON citations(snapshot_id);
CREATE INDEX IF NOT EXISTS idx_positions_snapshot_id ON organic_positions(snapshot_id);
CREATE INDEX IF NOT EXISTS idx_provider_calls_provider ON provider_calls(provider, timestamp);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) SaveSnapshot(ctx context.Context, snap *model.Snapshot, citations []model.Citation,
	positions []model.OrganicPosition, log *model.ExecutionLog) (int64, error) {

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin save snapshot")
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO snapshots (
			query, timestamp, country, language, search_domain,
			intent_type, intent_confidence,
			has_knowledge_graph, has_answer_box, has_ai_overview,
			has_featured_snippet, has_related_questions,
			brand_mentioned, ai_overview_text, total_citations, brand_citations,
			total_organic_results, brand_organic_positions,
			visibility_score, intensity_score, share_of_voice_percentage,
			processing_time_ms, category, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		snap.Query, snap.Timestamp, snap.Country, snap.Language, snap.Domain,
		string(snap.IntentType), snap.IntentConfidence,
		snap.HasKnowledgeGraph, snap.HasAnswerBox, snap.HasAIOverview,
		snap.HasFeaturedSnippet, snap.HasRelatedQuestions,
		snap.BrandMentioned, snap.OverviewText, snap.TotalCitations, snap.BrandCitations,
		snap.TotalOrganicResults, snap.BrandOrganicPositions,
		snap.VisibilityScore, snap.IntensityScore, snap.ShareOfVoicePct,
		snap.ProcessingTimeMS, snap.Category, snap.CreatedAt,
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: insert snapshot")
	}
	snapshotID, err := res.LastInsertId()
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: snapshot id")
	}

	for _, c := range citations {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO citations (
				snapshot_id, domain, url, title, source_type, is_brand,
				authority_score, sentiment, ai_reusability, citation_index
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			snapshotID, c.Domain, c.URL, c.Title, string(c.SourceType), c.IsBrand,
			c.Authority, string(c.Sentiment), string(c.Reusable), c.Position,
		)
		if err != nil {
			return 0, eris.Wrap(err, "sqlite: insert citation")
		}
	}

	for _, p := range positions {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO organic_positions (snapshot_id, rank, domain, url, is_brand)
			VALUES (?, ?, ?, ?, ?)`,
			snapshotID, p.Rank, p.Domain, p.URL, p.IsBrand,
		)
		if err != nil {
			return 0, eris.Wrap(err, "sqlite: insert organic position")
		}
	}

	if log != nil {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO execution_logs (
				snapshot_id, query, timestamp,
				search_status, textgen_status, database_status,
				search_time_ms, textgen_time_ms, database_time_ms, total_time_ms,
				log_level, error_stage, error_message, error_trace
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			snapshotID, log.Query, log.Timestamp,
			string(log.SearchStatus), string(log.TextGenStatus), string(log.DatabaseStatus),
			log.SearchTimeMS, log.TextGenTimeMS, log.DatabaseTimeMS, log.TotalTimeMS,
			string(log.Level), log.ErrorStage, log.ErrorMessage, log.ErrorTrace,
		)
		if err != nil {
			return 0, eris.Wrap(err, "sqlite: insert execution log")
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit save snapshot")
	}
	return snapshotID, nil
}

const snapshotColumns = `
	id, query, timestamp, country, language, search_domain,
	intent_type, intent_confidence,
	has_knowledge_graph, has_answer_box, has_ai_overview,
	has_featured_snippet, has_related_questions,
	brand_mentioned, ai_overview_text, total_citations, brand_citations,
	total_organic_results, brand_organic_positions,
	visibility_score, intensity_score, share_of_voice_percentage,
	processing_time_ms, category, created_at`

func (s *SQLiteStore) GetSnapshot(ctx context.Context, id int64) (*SnapshotRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT`+snapshotColumns+` FROM snapshots WHERE id = ?`, id)

	snap, err := scanSnapshot(row)
	if err != nil {
		return nil, err
	}

	record := &SnapshotRecord{Snapshot: *snap}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, snapshot_id, domain, url, title, source_type, is_brand,
		       authority_score, sentiment, ai_reusability, citation_index
		FROM citations WHERE snapshot_id = ? ORDER BY citation_index`, id)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query citations")
	}
	defer rows.Close()
	for rows.Next() {
		var c model.Citation
		if err := rows.Scan(&c.ID, &c.SnapshotID, &c.Domain, &c.URL, &c.Title, &c.SourceType,
			&c.IsBrand, &c.Authority, &c.Sentiment, &c.Reusable, &c.Position); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan citation")
		}
		record.Citations = append(record.Citations, c)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: iterate citations")
	}

	posRows, err := s.db.QueryContext(ctx, `
		SELECT id, snapshot_id, rank, domain, url, is_brand
		FROM organic_positions WHERE snapshot_id = ? ORDER BY rank`, id)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query organic positions")
	}
	defer posRows.Close()
	for posRows.Next() {
		var p model.OrganicPosition
		if err := posRows.Scan(&p.ID, &p.SnapshotID, &p.Rank, &p.Domain, &p.URL, &p.IsBrand); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan organic position")
		}
		record.Positions = append(record.Positions, p)
	}
	if err := posRows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: iterate organic positions")
	}

	logRow := s.db.QueryRowContext(ctx, `
		SELECT id, snapshot_id, query, timestamp,
		       search_status, textgen_status, database_status,
		       search_time_ms, textgen_time_ms, database_time_ms, total_time_ms,
		       log_level, error_stage, error_message, error_trace
		FROM execution_logs WHERE snapshot_id = ?`, id)

	var log model.ExecutionLog
	var errStage, errMessage, errTrace sql.NullString
	err = logRow.Scan(&log.ID, &log.SnapshotID, &log.Query, &log.Timestamp,
		&log.SearchStatus, &log.TextGenStatus, &log.DatabaseStatus,
		&log.SearchTimeMS, &log.TextGenTimeMS, &log.DatabaseTimeMS, &log.TotalTimeMS,
		&log.Level, &errStage, &errMessage, &errTrace)
	switch {
	case err == sql.ErrNoRows:
		// legal: snapshot without a log
	case err != nil:
		return nil, eris.Wrap(err, "sqlite: scan execution log")
	default:
		log.ErrorStage = errStage.String
		log.ErrorMessage = errMessage.String
		log.ErrorTrace = errTrace.String
		record.Log = &log
	}

	return record, nil
}

func (s *SQLiteStore) ListSnapshots(ctx context.Context, filter SnapshotFilter) ([]model.Snapshot, error) {
	query := `SELECT` + snapshotColumns + ` FROM snapshots WHERE 1=1`
	var args []any

	if filter.Query != "" {
		query += ` AND query = ?`
		args = append(args, filter.Query)
	}
	if filter.Days > 0 {
		query += ` AND created_at >= ?`
		args = append(args, time.Now().UTC().AddDate(0, 0, -filter.Days))
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list snapshots")
	}
	defer rows.Close()

	var snaps []model.Snapshot
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		snaps = append(snaps, *snap)
	}
	return snaps, eris.Wrap(rows.Err(), "sqlite: list snapshots iterate")
}

func (s *SQLiteStore) LogProviderCall(ctx context.Context, call model.ProviderCall) error {
	var input, output, total int
	var estimated bool
	if call.Usage != nil {
		input = call.Usage.InputTokens
		output = call.Usage.OutputTokens
		total = call.Usage.TotalTokens
		estimated = call.Usage.Estimated
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO provider_calls (
			id, timestamp, provider, model, prompt, response, latency_ms,
			input_tokens, output_tokens, total_tokens, estimated,
			cost_usd, success, error
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		call.ID, call.Timestamp, call.Provider, call.Model, call.Prompt, call.Response,
		call.LatencyMS, input, output, total, estimated, call.CostUSD, call.Success, call.Error,
	)
	return eris.Wrap(err, "sqlite: insert provider call")
}

func (s *SQLiteStore) ProviderStats(ctx context.Context, provider string, days int) (*model.ProviderStats, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(CASE WHEN success THEN 1 ELSE 0 END), 0),
		       COALESCE(AVG(latency_ms), 0)
		FROM provider_calls
		WHERE provider = ? AND timestamp >= ?`,
		provider, windowStart(days))

	var total, succeeded int
	var avgLatency float64
	if err := row.Scan(&total, &succeeded, &avgLatency); err != nil {
		return nil, eris.Wrap(err, "sqlite: provider stats")
	}
	return buildProviderStats(provider, days, total, succeeded, avgLatency), nil
}

func (s *SQLiteStore) CostAnalysis(ctx context.Context, days int) (*model.CostAnalysis, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT provider, COUNT(*),
		       COALESCE(SUM(total_tokens), 0),
		       COALESCE(SUM(cost_usd), 0),
		       COALESCE(SUM(CASE WHEN estimated THEN 0 ELSE 1 END), 0),
		       COALESCE(SUM(CASE WHEN estimated THEN 1 ELSE 0 END), 0)
		FROM provider_calls
		WHERE timestamp >= ?
		GROUP BY provider`,
		windowStart(days))
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: cost analysis")
	}
	defer rows.Close()

	var aggs []providerAgg
	for rows.Next() {
		var a providerAgg
		if err := rows.Scan(&a.provider, &a.calls, &a.tokens, &a.costUSD, &a.actualCalls, &a.estimatedCalls); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan cost row")
		}
		aggs = append(aggs, a)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: iterate cost rows")
	}
	return buildCostAnalysis(days, aggs), nil
}

// helpers

type scannable interface {
	Scan(dest ...any) error
}

func scanSnapshot(row scannable) (*model.Snapshot, error) {
	var snap model.Snapshot
	var overview sql.NullString

	err := row.Scan(
		&snap.ID, &snap.Query, &snap.Timestamp, &snap.Country, &snap.Language, &snap.Domain,
		&snap.IntentType, &snap.IntentConfidence,
		&snap.HasKnowledgeGraph, &snap.HasAnswerBox, &snap.HasAIOverview,
		&snap.HasFeaturedSnippet, &snap.HasRelatedQuestions,
		&snap.BrandMentioned, &overview, &snap.TotalCitations, &snap.BrandCitations,
		&snap.TotalOrganicResults, &snap.BrandOrganicPositions,
		&snap.VisibilityScore, &snap.IntensityScore, &snap.ShareOfVoicePct,
		&snap.ProcessingTimeMS, &snap.Category, &snap.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, eris.New("snapshot not found")
	}
	if err != nil {
		return nil, eris.Wrap(err, "scan snapshot")
	}
	snap.OverviewText = overview.String
	return &snap, nil
}

func windowStart(days int) time.Time {
	if days <= 0 {
		days = 30
	}
	return time.Now().UTC().AddDate(0, 0, -days)
}
