package store

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/searchlens/visibility-cli/internal/model"
)

// pgxPool is the subset of pgxpool.Pool the store uses. pgxmock satisfies
// it in tests.
type pgxPool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool pgxPool
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS snapshots (
	id                        BIGSERIAL PRIMARY KEY,
	query                     TEXT NOT NULL,
	timestamp                 TIMESTAMPTZ NOT NULL,
	country                   TEXT NOT NULL,
	language                  TEXT NOT NULL,
	search_domain             TEXT NOT NULL,
	intent_type               TEXT NOT NULL DEFAULT 'informational',
	intent_confidence         DOUBLE PRECISION NOT NULL DEFAULT 0.5,
	has_knowledge_graph       BOOLEAN NOT NULL DEFAULT FALSE,
	has_answer_box            BOOLEAN NOT NULL DEFAULT FALSE,
	has_ai_overview           BOOLEAN NOT NULL DEFAULT FALSE,
	has_featured_snippet      BOOLEAN NOT NULL DEFAULT FALSE,
	has_related_questions     BOOLEAN NOT NULL DEFAULT FALSE,
	brand_mentioned           BOOLEAN NOT NULL DEFAULT FALSE,
	ai_overview_text          TEXT,
	total_citations           INTEGER NOT NULL DEFAULT 0,
	brand_citations           INTEGER NOT NULL DEFAULT 0,
	total_organic_results     INTEGER NOT NULL DEFAULT 0,
	brand_organic_positions   INTEGER NOT NULL DEFAULT 0,
	visibility_score          DOUBLE PRECISION NOT NULL DEFAULT 0,
	intensity_score           DOUBLE PRECISION NOT NULL DEFAULT 0,
	share_of_voice_percentage DOUBLE PRECISION NOT NULL DEFAULT 0,
	processing_time_ms        BIGINT NOT NULL DEFAULT 0,
	category                  TEXT NOT NULL DEFAULT '',
	created_at                TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS citations (
	id              BIGSERIAL PRIMARY KEY,
	snapshot_id     BIGINT NOT NULL REFERENCES snapshots(id) ON DELETE CASCADE,
	domain          TEXT NOT NULL,
	url             TEXT NOT NULL,
	title           TEXT NOT NULL DEFAULT '',
	source_type     TEXT NOT NULL DEFAULT 'neutral',
	is_brand        BOOLEAN NOT NULL DEFAULT FALSE,
	authority_score DOUBLE PRECISION NOT NULL DEFAULT 0,
	sentiment       TEXT NOT NULL DEFAULT 'neutral',
	ai_reusability  TEXT NOT NULL DEFAULT 'Medium',
	citation_index  INTEGER NOT NULL,
	UNIQUE(snapshot_id, citation_index)
);

CREATE TABLE IF NOT EXISTS organic_positions (
	id          BIGSERIAL PRIMARY KEY,
	snapshot_id BIGINT NOT NULL REFERENCES snapshots(id) ON DELETE CASCADE,
	rank        INTEGER NOT NULL,
	domain      TEXT NOT NULL,
	url         TEXT NOT NULL,
	is_brand    BOOLEAN NOT NULL DEFAULT FALSE,
	UNIQUE(snapshot_id, rank)
);

CREATE TABLE IF NOT EXISTS execution_logs (
	id               BIGSERIAL PRIMARY KEY,
	snapshot_id      BIGINT NOT NULL UNIQUE REFERENCES snapshots(id) ON DELETE CASCADE,
	query            TEXT NOT NULL,
	timestamp        TIMESTAMPTZ NOT NULL,
	search_status    TEXT NOT NULL DEFAULT 'not_run',
	textgen_status   TEXT NOT NULL DEFAULT 'not_run',
	database_status  TEXT NOT NULL DEFAULT 'not_run',
	search_time_ms   BIGINT NOT NULL DEFAULT 0,
	textgen_time_ms  BIGINT NOT NULL DEFAULT 0,
	database_time_ms BIGINT NOT NULL DEFAULT 0,
	total_time_ms    BIGINT NOT NULL DEFAULT 0,
	log_level        TEXT NOT NULL DEFAULT 'INFO',
	error_stage      TEXT,
	error_message    TEXT,
	error_trace      TEXT
);

CREATE TABLE IF NOT EXISTS provider_calls (
	id            TEXT PRIMARY KEY,
	timestamp     TIMESTAMPTZ NOT NULL,
	provider      TEXT NOT NULL,
	model         TEXT NOT NULL DEFAULT '',
	prompt        TEXT NOT NULL,
	response      TEXT,
	latency_ms    BIGINT NOT NULL DEFAULT 0,
	input_tokens  INTEGER NOT NULL DEFAULT 0,
	output_tokens INTEGER NOT NULL DEFAULT 0,
	total_tokens  INTEGER NOT NULL DEFAULT 0,
	estimated     BOOLEAN NOT NULL DEFAULT FALSE,
	cost_usd      DOUBLE PRECISION NOT NULL DEFAULT 0,
	success       BOOLEAN NOT NULL DEFAULT FALSE,
	error         TEXT
);

CREATE INDEX IF NOT EXISTS idx_snapshots_query ON snapshots(query);
CREATE INDEX IF NOT EXISTS idx_snapshots_created_at ON snapshots(created_at);
CREATE INDEX IF NOT EXISTS idx_citations_snapshot_id ON citations(snapshot_id);
CREATE INDEX IF NOT EXISTS idx_positions_snapshot_id ON organic_positions(snapshot_id);
CREATE INDEX IF NOT EXISTS idx_provider_calls_provider ON provider_calls(provider, timestamp);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) SaveSnapshot(ctx context.Context, snap *model.Snapshot, citations []model.Citation,
	positions []model.OrganicPosition, log *model.ExecutionLog) (int64, error) {

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: begin save snapshot")
	}
	defer tx.Rollback(ctx)

	var snapshotID int64
	err = tx.QueryRow(ctx, `
		INSERT INTO snapshots (
			query, timestamp, country, language, search_domain,
			intent_type, intent_confidence,
			has_knowledge_graph, has_answer_box, has_ai_overview,
			has_featured_snippet, has_related_questions,
			brand_mentioned, ai_overview_text, total_citations, brand_citations,
			total_organic_results, brand_organic_positions,
			visibility_score, intensity_score, share_of_voice_percentage,
			processing_time_ms, category, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12,
			$13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24)
		RETURNING id`,
		snap.Query, snap.Timestamp, snap.Country, snap.Language, snap.Domain,
		string(snap.IntentType), snap.IntentConfidence,
		snap.HasKnowledgeGraph, snap.HasAnswerBox, snap.HasAIOverview,
		snap.HasFeaturedSnippet, snap.HasRelatedQuestions,
		snap.BrandMentioned, snap.OverviewText, snap.TotalCitations, snap.BrandCitations,
		snap.TotalOrganicResults, snap.BrandOrganicPositions,
		snap.VisibilityScore, snap.IntensityScore, snap.ShareOfVoicePct,
		snap.ProcessingTimeMS, snap.Category, snap.CreatedAt,
	).Scan(&snapshotID)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: insert snapshot")
	}

	for _, c := range citations {
		_, err := tx.Exec(ctx, `
			INSERT INTO citations (
				snapshot_id, domain, url, title, source_type, is_brand,
				authority_score, sentiment, ai_reusability, citation_index
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			snapshotID, c.Domain, c.URL, c.Title, string(c.SourceType), c.IsBrand,
			c.Authority, string(c.Sentiment), string(c.Reusable), c.Position,
		)
		if err != nil {
			return 0, eris.Wrap(err, "postgres: insert citation")
		}
	}

	for _, p := range positions {
		_, err := tx.Exec(ctx, `
			INSERT INTO organic_positions (snapshot_id, rank, domain, url, is_brand)
			VALUES ($1, $2, $3, $4, $5)`,
			snapshotID, p.Rank, p.Domain, p.URL, p.IsBrand,
		)
		if err != nil {
			return 0, eris.Wrap(err, "postgres: insert organic position")
		}
	}

	if log != nil {
		_, err := tx.Exec(ctx, `
			INSERT INTO execution_logs (
				snapshot_id, query, timestamp,
				search_status, textgen_status, database_status,
				search_time_ms, textgen_time_ms, database_time_ms, total_time_ms,
				log_level, error_stage, error_message, error_trace
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
			snapshotID, log.Query, log.Timestamp,
			string(log.SearchStatus), string(log.TextGenStatus), string(log.DatabaseStatus),
			log.SearchTimeMS, log.TextGenTimeMS, log.DatabaseTimeMS, log.TotalTimeMS,
			string(log.Level), log.ErrorStage, log.ErrorMessage, log.ErrorTrace,
		)
		if err != nil {
			return 0, eris.Wrap(err, "postgres: insert execution log")
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, eris.Wrap(err, "postgres: commit save snapshot")
	}
	return snapshotID, nil
}

func (s *PostgresStore) GetSnapshot(ctx context.Context, id int64) (*SnapshotRecord, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT`+snapshotColumns+` FROM snapshots WHERE id = $1`, id)

	snap, err := scanPgSnapshot(row)
	if err != nil {
		return nil, err
	}
	record := &SnapshotRecord{Snapshot: *snap}

	rows, err := s.pool.Query(ctx, `
		SELECT id, snapshot_id, domain, url, title, source_type, is_brand,
		       authority_score, sentiment, ai_reusability, citation_index
		FROM citations WHERE snapshot_id = $1 ORDER BY citation_index`, id)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: query citations")
	}
	defer rows.Close()
	for rows.Next() {
		var c model.Citation
		if err := rows.Scan(&c.ID, &c.SnapshotID, &c.Domain, &c.URL, &c.Title, &c.SourceType,
			&c.IsBrand, &c.Authority, &c.Sentiment, &c.Reusable, &c.Position); err != nil {
			return nil, eris.Wrap(err, "postgres: scan citation")
		}
		record.Citations = append(record.Citations, c)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: iterate citations")
	}

	posRows, err := s.pool.Query(ctx, `
		SELECT id, snapshot_id, rank, domain, url, is_brand
		FROM organic_positions WHERE snapshot_id = $1 ORDER BY rank`, id)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: query organic positions")
	}
	defer posRows.Close()
	for posRows.Next() {
		var p model.OrganicPosition
		if err := posRows.Scan(&p.ID, &p.SnapshotID, &p.Rank, &p.Domain, &p.URL, &p.IsBrand); err != nil {
			return nil, eris.Wrap(err, "postgres: scan organic position")
		}
		record.Positions = append(record.Positions, p)
	}
	if err := posRows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: iterate organic positions")
	}

	logRow := s.pool.QueryRow(ctx, `
		SELECT id, snapshot_id, query, timestamp,
		       search_status, textgen_status, database_status,
		       search_time_ms, textgen_time_ms, database_time_ms, total_time_ms,
		       log_level, error_stage, error_message, error_trace
		FROM execution_logs WHERE snapshot_id = $1`, id)

	var log model.ExecutionLog
	var errStage, errMessage, errTrace *string
	err = logRow.Scan(&log.ID, &log.SnapshotID, &log.Query, &log.Timestamp,
		&log.SearchStatus, &log.TextGenStatus, &log.DatabaseStatus,
		&log.SearchTimeMS, &log.TextGenTimeMS, &log.DatabaseTimeMS, &log.TotalTimeMS,
		&log.Level, &errStage, &errMessage, &errTrace)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		// legal: snapshot without a log
	case err != nil:
		return nil, eris.Wrap(err, "postgres: scan execution log")
	default:
		log.ErrorStage = deref(errStage)
		log.ErrorMessage = deref(errMessage)
		log.ErrorTrace = deref(errTrace)
		record.Log = &log
	}

	return record, nil
}

func (s *PostgresStore) ListSnapshots(ctx context.Context, filter SnapshotFilter) ([]model.Snapshot, error) {
	query := `SELECT` + snapshotColumns + ` FROM snapshots WHERE TRUE`
	var args []any

	if filter.Query != "" {
		args = append(args, filter.Query)
		query += ` AND query = $1`
	}
	if filter.Days > 0 {
		args = append(args, time.Now().UTC().AddDate(0, 0, -filter.Days))
		query += ` AND created_at >= ` + placeholder(len(args))
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit)
	query += ` LIMIT ` + placeholder(len(args))

	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += ` OFFSET ` + placeholder(len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list snapshots")
	}
	defer rows.Close()

	var snaps []model.Snapshot
	for rows.Next() {
		snap, err := scanPgSnapshot(rows)
		if err != nil {
			return nil, err
		}
		snaps = append(snaps, *snap)
	}
	return snaps, eris.Wrap(rows.Err(), "postgres: list snapshots iterate")
}

func (s *PostgresStore) LogProviderCall(ctx context.Context, call model.ProviderCall) error {
	var input, output, total int
	var estimated bool
	if call.Usage != nil {
		input = call.Usage.InputTokens
		output = call.Usage.OutputTokens
		total = call.Usage.TotalTokens
		estimated = call.Usage.Estimated
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO provider_calls (
			id, timestamp, provider, model, prompt, response, latency_ms,
			input_tokens, output_tokens, total_tokens, estimated,
			cost_usd, success, error
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		call.ID, call.Timestamp, call.Provider, call.Model, call.Prompt, call.Response,
		call.LatencyMS, input, output, total, estimated, call.CostUSD, call.Success, call.Error,
	)
	return eris.Wrap(err, "postgres: insert provider call")
}

func (s *PostgresStore) ProviderStats(ctx context.Context, provider string, days int) (*model.ProviderStats, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(CASE WHEN success THEN 1 ELSE 0 END), 0),
		       COALESCE(AVG(latency_ms), 0)
		FROM provider_calls
		WHERE provider = $1 AND timestamp >= $2`,
		provider, windowStart(days))

	var total, succeeded int
	var avgLatency float64
	if err := row.Scan(&total, &succeeded, &avgLatency); err != nil {
		return nil, eris.Wrap(err, "postgres: provider stats")
	}
	return buildProviderStats(provider, days, total, succeeded, avgLatency), nil
}

func (s *PostgresStore) CostAnalysis(ctx context.Context, days int) (*model.CostAnalysis, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT provider, COUNT(*),
		       COALESCE(SUM(total_tokens), 0),
		       COALESCE(SUM(cost_usd), 0),
		       COALESCE(SUM(CASE WHEN estimated THEN 0 ELSE 1 END), 0),
		       COALESCE(SUM(CASE WHEN estimated THEN 1 ELSE 0 END), 0)
		FROM provider_calls
		WHERE timestamp >= $1
		GROUP BY provider`,
		windowStart(days))
	if err != nil {
		return nil, eris.Wrap(err, "postgres: cost analysis")
	}
	defer rows.Close()

	var aggs []providerAgg
	for rows.Next() {
		var a providerAgg
		if err := rows.Scan(&a.provider, &a.calls, &a.tokens, &a.costUSD, &a.actualCalls, &a.estimatedCalls); err != nil {
			return nil, eris.Wrap(err, "postgres: scan cost row")
		}
		aggs = append(aggs, a)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: iterate cost rows")
	}
	return buildCostAnalysis(days, aggs), nil
}

func scanPgSnapshot(row pgx.Row) (*model.Snapshot, error) {
	var snap model.Snapshot
	var overview *string

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
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.New("snapshot not found")
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan snapshot")
	}
	snap.OverviewText = deref(overview)
	return &snap, nil
}

func placeholder(n int) string {
	return "$" + strconv.Itoa(n)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
