package db

import (
	"fmt"

	"gorm.io/gorm"

	types "github.com/pandoapps/videoSoryBoard/internal/domain"
)

func AutoMigrateAll(db *gorm.DB) error {
	return db.AutoMigrate(types.Models()...)
}

// EnsureIndexes adds the Postgres-only partial indexes gorm tags cannot express.
func EnsureIndexes(db *gorm.DB) error {
	if db.Dialector.Name() != "postgres" {
		return nil
	}
	stmts := []struct {
		name string
		sql  string
	}{
		{
			// At most one final video per story.
			name: "idx_video_story_final",
			sql: `CREATE UNIQUE INDEX IF NOT EXISTS idx_video_story_final
				ON video (story_id) WHERE is_final;`,
		},
		{
			name: "idx_video_story_seq",
			sql: `CREATE INDEX IF NOT EXISTS idx_video_story_seq
				ON video (story_id, sequence_number) WHERE NOT is_final;`,
		},
		{
			// Claim scan: runnable jobs ordered by age.
			name: "idx_job_run_claim",
			sql: `CREATE INDEX IF NOT EXISTS idx_job_run_claim
				ON job_run (status, run_after, created_at);`,
		},
		{
			name: "idx_job_run_dedupe",
			sql: `CREATE INDEX IF NOT EXISTS idx_job_run_dedupe
				ON job_run (owner_user_id, job_type, entity_type, entity_id)
				WHERE status IN ('queued','running');`,
		},
		{
			name: "idx_chat_message_story_created",
			sql: `CREATE INDEX IF NOT EXISTS idx_chat_message_story_created
				ON chat_message (story_id, created_at);`,
		},
	}
	for _, st := range stmts {
		if err := db.Exec(st.sql).Error; err != nil {
			return fmt.Errorf("create %s: %w", st.name, err)
		}
	}
	return nil
}

func (s *PostgresService) AutoMigrateAll() error {
	s.log.Info("Auto migrating postgres tables...")
	if err := AutoMigrateAll(s.db); err != nil {
		s.log.Error("Auto migration failed", "error", err)
		return err
	}
	if err := EnsureIndexes(s.db); err != nil {
		s.log.Error("Index migration failed", "error", err)
		return err
	}
	return nil
}
