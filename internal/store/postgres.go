package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/xavierjflanagan/Guardian-sub001/internal/db"
	"github.com/xavierjflanagan/Guardian-sub001/internal/model"
	"github.com/xavierjflanagan/Guardian-sub001/internal/resilience"
	"github.com/xavierjflanagan/Guardian-sub001/internal/translate"
)

// entityCopyChunkSize bounds the rows per COPY so one oversized document
// cannot hold a transaction's memory hostage.
const entityCopyChunkSize = 500

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	retry   resilience.RetryConfig
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the most frequently used store operations.
var preparedStatements = map[string]string{
	"get_session":     `SELECT id, shell_file_id, patient_id, model, vision_enabled, ocr_provider, status, total_entities, clinical_event_count, healthcare_context_count, document_structure_count, overall_confidence, cost_estimate_usd, started_at, completed_at FROM ai_processing_sessions WHERE id = $1`,
	"get_artifact":    `SELECT document_id, patient_id, manifest_path, provider, checksum, page_count, total_bytes, created_at FROM ocr_artifacts WHERE document_id = $1`,
	"upsert_artifact": `INSERT INTO ocr_artifacts (document_id, patient_id, manifest_path, provider, checksum, page_count, total_bytes, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8) ON CONFLICT (document_id) DO UPDATE SET patient_id = EXCLUDED.patient_id, manifest_path = EXCLUDED.manifest_path, provider = EXCLUDED.provider, checksum = EXCLUDED.checksum, page_count = EXCLUDED.page_count, total_bytes = EXCLUDED.total_bytes`,
	"enqueue_retry":   `INSERT INTO job_retry_queue (id, shell_file_id, patient_id, session_id, stage, error, error_type, retry_count, max_retries, next_retry_at, created_at, last_failed_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
	"complete_retry":  `DELETE FROM job_retry_queue WHERE id = $1`,
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

	// Prepare frequently-used statements on each new connection.
	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, retry: resilience.DatabaseRetryConfig(), closeFn: pool.Close}, nil
}

// NewPostgresWithPool wraps an existing pool. Used by tests and by callers
// that manage pool lifecycle themselves.
func NewPostgresWithPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool, retry: resilience.DatabaseRetryConfig()}
}

// readRetry is the backoff profile applied to idempotent reads. Writes run
// once; the durable retry queue owns their replay.
func (s *PostgresStore) readRetry(op string) resilience.RetryConfig {
	cfg := s.retry
	cfg.OnRetry = resilience.RetryLogger("postgres", op)
	return cfg
}

// Pool returns the underlying database pool for subsystems that need direct
// query access (e.g., catalog vector search).
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS shell_files (
	id                 TEXT PRIMARY KEY,
	patient_id         TEXT NOT NULL,
	status             TEXT NOT NULL DEFAULT 'uploaded',
	entity_count       INTEGER NOT NULL DEFAULT 0,
	overall_confidence DOUBLE PRECISION NOT NULL DEFAULT 0,
	processed_at       TIMESTAMPTZ,
	created_at         TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS ai_processing_sessions (
	id                       TEXT PRIMARY KEY,
	shell_file_id            TEXT NOT NULL,
	patient_id               TEXT NOT NULL,
	model                    TEXT NOT NULL,
	vision_enabled           BOOLEAN NOT NULL DEFAULT false,
	ocr_provider             TEXT,
	status                   TEXT NOT NULL DEFAULT 'processing',
	total_entities           INTEGER NOT NULL DEFAULT 0,
	clinical_event_count     INTEGER NOT NULL DEFAULT 0,
	healthcare_context_count INTEGER NOT NULL DEFAULT 0,
	document_structure_count INTEGER NOT NULL DEFAULT 0,
	overall_confidence       DOUBLE PRECISION NOT NULL DEFAULT 0,
	cost_estimate_usd        DOUBLE PRECISION NOT NULL DEFAULT 0,
	error_message            TEXT,
	started_at               TIMESTAMPTZ NOT NULL,
	completed_at             TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS entity_processing_audit (
	id                        TEXT PRIMARY KEY,
	processing_session_id     TEXT NOT NULL REFERENCES ai_processing_sessions(id),
	shell_file_id             TEXT NOT NULL,
	patient_id                TEXT NOT NULL,
	entity_id                 TEXT NOT NULL,
	original_text             TEXT NOT NULL,
	entity_category           TEXT NOT NULL,
	entity_subtype            TEXT NOT NULL,
	requires_schemas          JSONB NOT NULL DEFAULT '[]',
	processing_priority       TEXT NOT NULL,
	enrichment_complexity     TEXT NOT NULL,
	pass2_status              TEXT NOT NULL,
	detection_confidence      DOUBLE PRECISION NOT NULL DEFAULT 0,
	classification_confidence DOUBLE PRECISION NOT NULL DEFAULT 0,
	cross_validation_score    DOUBLE PRECISION NOT NULL DEFAULT 0,
	ocr_text                  TEXT,
	ocr_confidence            DOUBLE PRECISION NOT NULL DEFAULT 0,
	ai_ocr_agreement          DOUBLE PRECISION NOT NULL DEFAULT 0,
	ai_interpretation         TEXT,
	formatting_context        TEXT,
	page_number               INTEGER NOT NULL DEFAULT 1,
	bounding_box              JSONB,
	spatial_source            TEXT,
	manual_review_required    BOOLEAN NOT NULL DEFAULT false,
	compliance_flags          JSONB,
	created_at                TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS profile_classification_audit (
	processing_session_id          TEXT PRIMARY KEY REFERENCES ai_processing_sessions(id),
	shell_file_id                  TEXT NOT NULL,
	patient_id                     TEXT NOT NULL,
	patient_identity_confidence    DOUBLE PRECISION NOT NULL DEFAULT 0,
	age_appropriateness_score      DOUBLE PRECISION NOT NULL DEFAULT 0,
	safety_flags                   JSONB,
	requires_identity_verification BOOLEAN NOT NULL DEFAULT false
);

CREATE TABLE IF NOT EXISTS entity_metrics (
	processing_session_id    TEXT PRIMARY KEY REFERENCES ai_processing_sessions(id),
	shell_file_id            TEXT NOT NULL,
	total_entities           INTEGER NOT NULL DEFAULT 0,
	clinical_event_count     INTEGER NOT NULL DEFAULT 0,
	healthcare_context_count INTEGER NOT NULL DEFAULT 0,
	document_structure_count INTEGER NOT NULL DEFAULT 0,
	avg_confidence           DOUBLE PRECISION NOT NULL DEFAULT 0,
	coverage_percentage      DOUBLE PRECISION NOT NULL DEFAULT 0,
	review_flagged_count     INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS confidence_scores (
	processing_session_id     TEXT NOT NULL REFERENCES ai_processing_sessions(id),
	entity_id                 TEXT NOT NULL,
	detection_confidence      DOUBLE PRECISION NOT NULL DEFAULT 0,
	classification_confidence DOUBLE PRECISION NOT NULL DEFAULT 0,
	cross_validation_score    DOUBLE PRECISION NOT NULL DEFAULT 0,
	ai_ocr_agreement          DOUBLE PRECISION NOT NULL DEFAULT 0,
	PRIMARY KEY (processing_session_id, entity_id)
);

CREATE TABLE IF NOT EXISTS manual_review_queue (
	id                    TEXT PRIMARY KEY,
	processing_session_id TEXT NOT NULL REFERENCES ai_processing_sessions(id),
	shell_file_id         TEXT NOT NULL,
	patient_id            TEXT NOT NULL,
	entity_id             TEXT NOT NULL,
	reason                TEXT NOT NULL,
	priority              TEXT NOT NULL,
	created_at            TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS code_candidates (
	processing_session_id TEXT NOT NULL,
	entity_id             TEXT NOT NULL,
	entity_subtype        TEXT NOT NULL,
	search_text           TEXT NOT NULL,
	candidates            JSONB NOT NULL DEFAULT '[]',
	failure_note          TEXT,
	resolved_at           TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (processing_session_id, entity_id)
);

CREATE TABLE IF NOT EXISTS ocr_artifacts (
	document_id   TEXT PRIMARY KEY,
	patient_id    TEXT NOT NULL,
	manifest_path TEXT NOT NULL,
	provider      TEXT NOT NULL,
	checksum      TEXT NOT NULL,
	page_count    INTEGER NOT NULL DEFAULT 0,
	total_bytes   BIGINT NOT NULL DEFAULT 0,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS job_retry_queue (
	id             TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	shell_file_id  TEXT NOT NULL,
	patient_id     TEXT NOT NULL,
	session_id     TEXT NOT NULL DEFAULT '',
	stage          TEXT NOT NULL,
	error          TEXT NOT NULL,
	error_type     TEXT NOT NULL DEFAULT 'transient',
	retry_count    INTEGER NOT NULL DEFAULT 0,
	max_retries    INTEGER NOT NULL DEFAULT 3,
	next_retry_at  TIMESTAMPTZ NOT NULL,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	last_failed_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS universal_medical_codes (
	code_system    TEXT NOT NULL,
	code_value     TEXT NOT NULL,
	display_name   TEXT NOT NULL,
	entity_type    TEXT,
	active         BOOLEAN NOT NULL DEFAULT true,
	embedding      vector(1536) NOT NULL,
	PRIMARY KEY (code_system, code_value)
);

CREATE TABLE IF NOT EXISTS regional_medical_codes (
	code_system          TEXT NOT NULL,
	code_value           TEXT NOT NULL,
	display_name         TEXT NOT NULL,
	entity_type          TEXT,
	country_code         TEXT NOT NULL,
	grouping_code        TEXT,
	clinical_specificity TEXT,
	active               BOOLEAN NOT NULL DEFAULT true,
	embedding            vector(1536) NOT NULL,
	PRIMARY KEY (code_system, code_value, country_code)
);

CREATE INDEX IF NOT EXISTS idx_sessions_status ON ai_processing_sessions(status);
CREATE INDEX IF NOT EXISTS idx_sessions_patient ON ai_processing_sessions(patient_id);
CREATE INDEX IF NOT EXISTS idx_sessions_shell_file ON ai_processing_sessions(shell_file_id);
CREATE INDEX IF NOT EXISTS idx_entity_audit_session ON entity_processing_audit(processing_session_id);
CREATE INDEX IF NOT EXISTS idx_entity_audit_patient ON entity_processing_audit(patient_id);
CREATE INDEX IF NOT EXISTS idx_review_queue_session ON manual_review_queue(processing_session_id);
CREATE INDEX IF NOT EXISTS idx_retry_queue_next ON job_retry_queue(next_retry_at);
CREATE INDEX IF NOT EXISTS idx_retry_queue_stage ON job_retry_queue(stage);
CREATE INDEX IF NOT EXISTS idx_universal_codes_type ON universal_medical_codes(entity_type);
CREATE INDEX IF NOT EXISTS idx_regional_codes_country ON regional_medical_codes(country_code);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

var entityAuditColumns = []string{
	"id", "processing_session_id", "shell_file_id", "patient_id",
	"entity_id", "original_text", "entity_category", "entity_subtype",
	"requires_schemas", "processing_priority", "enrichment_complexity", "pass2_status",
	"detection_confidence", "classification_confidence", "cross_validation_score",
	"ocr_text", "ocr_confidence", "ai_ocr_agreement",
	"ai_interpretation", "formatting_context",
	"page_number", "bounding_box", "spatial_source",
	"manual_review_required", "compliance_flags", "created_at",
}

func entityAuditRow(rec model.EntityAuditRecord) ([]any, error) {
	schemasJSON, err := json.Marshal(rec.RequiresSchemas)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: marshal schemas for %s", rec.EntityID)
	}
	var bboxJSON []byte
	if rec.BoundingBox != nil {
		bboxJSON, err = json.Marshal(rec.BoundingBox)
		if err != nil {
			return nil, eris.Wrapf(err, "postgres: marshal bounding box for %s", rec.EntityID)
		}
	}
	var flagsJSON []byte
	if len(rec.ComplianceFlags) > 0 {
		flagsJSON, err = json.Marshal(rec.ComplianceFlags)
		if err != nil {
			return nil, eris.Wrapf(err, "postgres: marshal compliance flags for %s", rec.EntityID)
		}
	}
	return []any{
		rec.ID, rec.SessionID, rec.ShellFileID, rec.PatientID,
		rec.EntityID, rec.OriginalText, string(rec.Category), string(rec.Subtype),
		schemasJSON, string(rec.ProcessingPriority), string(rec.Complexity), string(rec.Pass2Status),
		rec.DetectionConfidence, rec.ClassificationConfidence, rec.CrossValidationScore,
		rec.OCRText, rec.OCRConfidence, rec.AIOCRAgreement,
		rec.AIInterpretation, rec.FormattingContext,
		rec.PageNumber, bboxJSON, rec.SpatialSource,
		rec.ManualReviewRequired, flagsJSON, rec.CreatedAt,
	}, nil
}

// SaveResults writes a completed session and all of its derived rows in one
// transaction. Either every payload lands or none do.
func (s *PostgresStore) SaveResults(ctx context.Context, payloads *model.DatabasePayloads) error {
	if payloads == nil {
		return eris.New("postgres: nil payloads")
	}
	sess := payloads.Session

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin save results")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	_, err = tx.Exec(ctx,
		`INSERT INTO ai_processing_sessions (id, shell_file_id, patient_id, model, vision_enabled, ocr_provider, status, total_entities, clinical_event_count, healthcare_context_count, document_structure_count, overall_confidence, cost_estimate_usd, started_at, completed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		sess.ID, sess.ShellFileID, sess.PatientID, sess.Model, sess.VisionEnabled, sess.OCRProvider,
		string(sess.Status), sess.TotalEntities, sess.ClinicalCount, sess.ContextCount, sess.StructureCount,
		sess.OverallConfidence, sess.CostEstimateUSD, sess.StartedAt, sess.CompletedAt,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: insert session %s", sess.ID)
	}

	for _, chunk := range translate.Chunk(payloads.EntityRecords, entityCopyChunkSize) {
		rows := make([][]any, 0, len(chunk))
		for _, rec := range chunk {
			row, err := entityAuditRow(rec)
			if err != nil {
				return err
			}
			rows = append(rows, row)
		}
		_, err = tx.CopyFrom(ctx,
			pgx.Identifier{"entity_processing_audit"},
			entityAuditColumns,
			pgx.CopyFromRows(rows),
		)
		if err != nil {
			return eris.Wrapf(err, "postgres: copy entity audit for session %s", sess.ID)
		}
	}

	upd := payloads.ShellFileUpdate
	_, err = tx.Exec(ctx,
		`UPDATE shell_files SET status = $1, entity_count = $2, overall_confidence = $3, processed_at = $4 WHERE id = $5`,
		string(upd.Status), upd.EntityCount, upd.OverallConfidence, upd.ProcessedAt, upd.ShellFileID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update shell file %s", upd.ShellFileID)
	}

	audit := payloads.ProfileAudit
	safetyJSON, err := json.Marshal(audit.SafetyFlags)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal safety flags")
	}
	_, err = tx.Exec(ctx,
		`INSERT INTO profile_classification_audit (processing_session_id, shell_file_id, patient_id, patient_identity_confidence, age_appropriateness_score, safety_flags, requires_identity_verification)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		audit.SessionID, audit.ShellFileID, audit.PatientID,
		audit.IdentityConfidence, audit.AgeAppropriatenessScore, safetyJSON, audit.RequiresIdentityVerification,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: insert profile audit for session %s", sess.ID)
	}

	m := payloads.Metrics
	_, err = tx.Exec(ctx,
		`INSERT INTO entity_metrics (processing_session_id, shell_file_id, total_entities, clinical_event_count, healthcare_context_count, document_structure_count, avg_confidence, coverage_percentage, review_flagged_count)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		m.SessionID, m.ShellFileID, m.TotalEntities, m.ClinicalCount, m.ContextCount, m.StructureCount,
		m.AvgConfidence, m.CoveragePercentage, m.ReviewFlaggedCount,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: insert metrics for session %s", sess.ID)
	}

	for _, cs := range payloads.ConfidenceScores {
		_, err = tx.Exec(ctx,
			`INSERT INTO confidence_scores (processing_session_id, entity_id, detection_confidence, classification_confidence, cross_validation_score, ai_ocr_agreement)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			cs.SessionID, cs.EntityID, cs.DetectionConfidence, cs.ClassificationConfidence,
			cs.CrossValidationScore, cs.OCRAgreement,
		)
		if err != nil {
			return eris.Wrapf(err, "postgres: insert confidence score %s", cs.EntityID)
		}
	}

	for _, rev := range payloads.ReviewEntries {
		_, err = tx.Exec(ctx,
			`INSERT INTO manual_review_queue (id, processing_session_id, shell_file_id, patient_id, entity_id, reason, priority, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			rev.ID, rev.SessionID, rev.ShellFileID, rev.PatientID, rev.EntityID,
			rev.Reason, string(rev.Priority), rev.CreatedAt,
		)
		if err != nil {
			return eris.Wrapf(err, "postgres: insert review entry %s", rev.ID)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return eris.Wrapf(err, "postgres: commit save results for session %s", sess.ID)
	}
	return nil
}

func (s *PostgresStore) MarkSessionFailed(ctx context.Context, sessionID, reason string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE ai_processing_sessions SET status = $1, error_message = $2, completed_at = $3 WHERE id = $4`,
		string(model.SessionFailed), reason, time.Now().UTC(), sessionID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: mark session failed %s", sessionID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("session not found: %s", sessionID)
	}
	return nil
}

// SaveFailedSession records a terminally failed session. The row is
// inserted if detection never reached SaveResults, or flipped to failed if
// it already exists.
func (s *PostgresStore) SaveFailedSession(ctx context.Context, session model.SessionMetadata, reason string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO ai_processing_sessions (id, shell_file_id, patient_id, model, vision_enabled, ocr_provider, status, error_message, started_at, completed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 ON CONFLICT (id) DO UPDATE SET status = EXCLUDED.status, error_message = EXCLUDED.error_message, completed_at = EXCLUDED.completed_at`,
		session.SessionID, session.ShellFileID, session.PatientID, session.Model,
		session.VisionEnabled, session.OCRProvider, string(model.SessionFailed),
		reason, session.StartedAt, time.Now().UTC(),
	)
	return eris.Wrapf(err, "postgres: save failed session %s", session.SessionID)
}

func scanSession(row pgx.Row) (*model.ProcessingSession, error) {
	var sess model.ProcessingSession
	var status string
	err := row.Scan(
		&sess.ID, &sess.ShellFileID, &sess.PatientID, &sess.Model, &sess.VisionEnabled, &sess.OCRProvider,
		&status, &sess.TotalEntities, &sess.ClinicalCount, &sess.ContextCount, &sess.StructureCount,
		&sess.OverallConfidence, &sess.CostEstimateUSD, &sess.StartedAt, &sess.CompletedAt,
	)
	if err != nil {
		return nil, err
	}
	sess.Status = model.SessionStatus(status)
	return &sess, nil
}

func (s *PostgresStore) GetSession(ctx context.Context, sessionID string) (*model.ProcessingSession, error) {
	return resilience.DoVal(ctx, s.readRetry("get_session"), func(ctx context.Context) (*model.ProcessingSession, error) {
		row := s.pool.QueryRow(ctx,
			`SELECT id, shell_file_id, patient_id, model, vision_enabled, ocr_provider, status, total_entities, clinical_event_count, healthcare_context_count, document_structure_count, overall_confidence, cost_estimate_usd, started_at, completed_at FROM ai_processing_sessions WHERE id = $1`,
			sessionID,
		)
		sess, err := scanSession(row)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, eris.Errorf("session not found: %s", sessionID)
			}
			return nil, eris.Wrapf(err, "postgres: get session %s", sessionID)
		}
		return sess, nil
	})
}

func (s *PostgresStore) ListSessions(ctx context.Context, filter SessionFilter) ([]model.ProcessingSession, error) {
	query := `SELECT id, shell_file_id, patient_id, model, vision_enabled, ocr_provider, status, total_entities, clinical_event_count, healthcare_context_count, document_structure_count, overall_confidence, cost_estimate_usd, started_at, completed_at FROM ai_processing_sessions WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	if filter.PatientID != "" {
		query += fmt.Sprintf(` AND patient_id = $%d`, argIdx)
		args = append(args, filter.PatientID)
		argIdx++
	}
	query += ` ORDER BY started_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list sessions")
	}
	defer rows.Close()

	var sessions []model.ProcessingSession
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan session")
		}
		sessions = append(sessions, *sess)
	}
	return sessions, eris.Wrap(rows.Err(), "postgres: list sessions rows")
}

// PendingEntities returns the session's entity audit rows still awaiting
// downstream enrichment.
func (s *PostgresStore) PendingEntities(ctx context.Context, sessionID string) ([]model.EntityAuditRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, processing_session_id, shell_file_id, patient_id, entity_id, original_text, entity_category, entity_subtype, ocr_text, ai_interpretation, formatting_context, created_at FROM entity_processing_audit WHERE processing_session_id = $1 AND pass2_status = $2 ORDER BY entity_id`,
		sessionID, string(model.Pass2Pending),
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: pending entities for %s", sessionID)
	}
	defer rows.Close()

	var recs []model.EntityAuditRecord
	for rows.Next() {
		var rec model.EntityAuditRecord
		var category, subtype string
		if err := rows.Scan(&rec.ID, &rec.SessionID, &rec.ShellFileID, &rec.PatientID,
			&rec.EntityID, &rec.OriginalText, &category, &subtype,
			&rec.OCRText, &rec.AIInterpretation, &rec.FormattingContext, &rec.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan pending entity")
		}
		rec.Category = model.EntityCategory(category)
		rec.Subtype = model.EntitySubtype(subtype)
		rec.Pass2Status = model.Pass2Pending
		recs = append(recs, rec)
	}
	return recs, eris.Wrap(rows.Err(), "postgres: pending entities rows")
}

// SaveCandidates upserts resolved candidate sets keyed by (session, entity),
// so re-running resolution for a session replaces its prior candidates.
func (s *PostgresStore) SaveCandidates(ctx context.Context, results []model.CandidateResult) error {
	if len(results) == 0 {
		return nil
	}
	rows := make([][]any, 0, len(results))
	for _, r := range results {
		candidatesJSON, err := json.Marshal(r.Candidates)
		if err != nil {
			return eris.Wrapf(err, "postgres: marshal candidates for %s", r.EntityID)
		}
		rows = append(rows, []any{
			r.SessionID, r.EntityID, string(r.Subtype), r.SearchText,
			candidatesJSON, r.FailureNote, r.ResolvedAt,
		})
	}
	_, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "code_candidates",
		Columns:      []string{"processing_session_id", "entity_id", "entity_subtype", "search_text", "candidates", "failure_note", "resolved_at"},
		ConflictKeys: []string{"processing_session_id", "entity_id"},
	}, rows)
	return eris.Wrap(err, "postgres: save candidates")
}

// ImportCatalog bulk-upserts catalog entries, replacing rows that share a
// code key. Every entry must carry a precomputed embedding.
func (s *PostgresStore) ImportCatalog(ctx context.Context, regional bool, entries []model.CatalogEntry) (int64, error) {
	if len(entries) == 0 {
		return 0, nil
	}

	cfg := db.UpsertConfig{
		Table:        "universal_medical_codes",
		Columns:      []string{"code_system", "code_value", "display_name", "entity_type", "active", "embedding"},
		ConflictKeys: []string{"code_system", "code_value"},
	}
	if regional {
		cfg = db.UpsertConfig{
			Table:        "regional_medical_codes",
			Columns:      []string{"code_system", "code_value", "display_name", "entity_type", "country_code", "grouping_code", "clinical_specificity", "active", "embedding"},
			ConflictKeys: []string{"code_system", "code_value", "country_code"},
		}
	}

	rows := make([][]any, 0, len(entries))
	for _, e := range entries {
		if e.CodeSystem == "" || e.CodeValue == "" {
			return 0, eris.New("postgres: catalog entry missing code system or value")
		}
		if len(e.Embedding) == 0 {
			return 0, eris.Errorf("postgres: catalog entry %s/%s has no embedding", e.CodeSystem, e.CodeValue)
		}
		if regional && e.CountryCode == "" {
			return 0, eris.Errorf("postgres: regional entry %s/%s has no country code", e.CodeSystem, e.CodeValue)
		}

		var entityType any
		if e.EntityType != "" {
			entityType = e.EntityType
		}
		row := []any{e.CodeSystem, e.CodeValue, e.DisplayName, entityType}
		if regional {
			var grouping, specificity any
			if e.GroupingCode != "" {
				grouping = e.GroupingCode
			}
			if e.ClinicalSpecificity != "" {
				specificity = e.ClinicalSpecificity
			}
			row = append(row, e.CountryCode, grouping, specificity)
		}
		row = append(row, e.Active, db.VectorLiteral(e.Embedding))
		rows = append(rows, row)
	}

	n, err := db.BulkUpsert(ctx, s.pool, cfg, rows)
	return n, eris.Wrapf(err, "postgres: import catalog into %s", cfg.Table)
}

func (s *PostgresStore) UpsertArtifact(ctx context.Context, row model.ArtifactIndexRow) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO ocr_artifacts (document_id, patient_id, manifest_path, provider, checksum, page_count, total_bytes, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8) ON CONFLICT (document_id) DO UPDATE SET patient_id = EXCLUDED.patient_id, manifest_path = EXCLUDED.manifest_path, provider = EXCLUDED.provider, checksum = EXCLUDED.checksum, page_count = EXCLUDED.page_count, total_bytes = EXCLUDED.total_bytes`,
		row.DocumentID, row.PatientID, row.ManifestPath, row.Provider, row.Checksum,
		row.PageCount, row.TotalBytes, row.CreatedAt,
	)
	return eris.Wrapf(err, "postgres: upsert artifact %s", row.DocumentID)
}

func (s *PostgresStore) GetArtifact(ctx context.Context, documentID string) (*model.ArtifactIndexRow, error) {
	var row model.ArtifactIndexRow
	err := s.pool.QueryRow(ctx,
		`SELECT document_id, patient_id, manifest_path, provider, checksum, page_count, total_bytes, created_at FROM ocr_artifacts WHERE document_id = $1`,
		documentID,
	).Scan(&row.DocumentID, &row.PatientID, &row.ManifestPath, &row.Provider, &row.Checksum,
		&row.PageCount, &row.TotalBytes, &row.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: get artifact %s", documentID)
	}
	return &row, nil
}

func (s *PostgresStore) EnqueueRetry(ctx context.Context, job resilience.RetryJob) error {
	if job.ID == "" {
		job.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	if job.LastFailedAt.IsZero() {
		job.LastFailedAt = now
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO job_retry_queue (id, shell_file_id, patient_id, session_id, stage, error, error_type, retry_count, max_retries, next_retry_at, created_at, last_failed_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		job.ID, job.ShellFileID, job.PatientID, job.SessionID, job.Stage, job.Error, job.ErrorType,
		job.RetryCount, job.MaxRetries, job.NextRetryAt, job.CreatedAt, job.LastFailedAt,
	)
	return eris.Wrapf(err, "postgres: enqueue retry %s", job.ShellFileID)
}

func (s *PostgresStore) DueRetries(ctx context.Context, limit int) ([]resilience.RetryJob, error) {
	if limit <= 0 {
		limit = 50
	}
	return resilience.DoVal(ctx, s.readRetry("due_retries"), func(ctx context.Context) ([]resilience.RetryJob, error) {
		rows, err := s.pool.Query(ctx,
			`SELECT id, shell_file_id, patient_id, session_id, stage, error, error_type, retry_count, max_retries, next_retry_at, created_at, last_failed_at FROM job_retry_queue WHERE next_retry_at <= now() AND retry_count < max_retries ORDER BY next_retry_at ASC LIMIT $1`,
			limit,
		)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: due retries")
		}
		defer rows.Close()

		var jobs []resilience.RetryJob
		for rows.Next() {
			var j resilience.RetryJob
			if err := rows.Scan(&j.ID, &j.ShellFileID, &j.PatientID, &j.SessionID, &j.Stage, &j.Error, &j.ErrorType,
				&j.RetryCount, &j.MaxRetries, &j.NextRetryAt, &j.CreatedAt, &j.LastFailedAt); err != nil {
				return nil, eris.Wrap(err, "postgres: scan retry job")
			}
			jobs = append(jobs, j)
		}
		return jobs, eris.Wrap(rows.Err(), "postgres: due retries rows")
	})
}

func (s *PostgresStore) Status(ctx context.Context) (*StatusSummary, error) {
	return resilience.DoVal(ctx, s.readRetry("status"), s.status)
}

func (s *PostgresStore) status(ctx context.Context) (*StatusSummary, error) {
	summary := &StatusSummary{SessionsByStatus: map[string]int{}}

	rows, err := s.pool.Query(ctx, `SELECT status, count(*) FROM ai_processing_sessions GROUP BY status`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: status sessions")
	}
	defer rows.Close()
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, eris.Wrap(err, "postgres: scan status count")
		}
		summary.SessionsByStatus[status] = count
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: status sessions rows")
	}

	err = s.pool.QueryRow(ctx,
		`SELECT count(*) FROM entity_processing_audit WHERE pass2_status = $1`,
		string(model.Pass2Pending),
	).Scan(&summary.PendingPass2)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: status pending pass2")
	}

	err = s.pool.QueryRow(ctx, `SELECT count(*) FROM manual_review_queue`).Scan(&summary.ReviewQueueDepth)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: status review queue")
	}

	err = s.pool.QueryRow(ctx, `SELECT count(*) FROM job_retry_queue`).Scan(&summary.RetryQueueDepth)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: status retry queue")
	}
	return summary, nil
}

func (s *PostgresStore) CompleteRetry(ctx context.Context, jobID string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM job_retry_queue WHERE id = $1`, jobID)
	if err != nil {
		return eris.Wrapf(err, "postgres: complete retry %s", jobID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("retry job not found: %s", jobID)
	}
	return nil
}

func (s *PostgresStore) RescheduleRetry(ctx context.Context, job resilience.RetryJob) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE job_retry_queue SET error = $1, error_type = $2, retry_count = $3, next_retry_at = $4, last_failed_at = $5 WHERE id = $6`,
		job.Error, job.ErrorType, job.RetryCount, job.NextRetryAt, job.LastFailedAt, job.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: reschedule retry %s", job.ID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("retry job not found: %s", job.ID)
	}
	return nil
}
