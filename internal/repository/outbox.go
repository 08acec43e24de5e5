package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/scorekeep/arena/internal/domain"
)

const outboxColumns = 8

type outboxRepo struct{}

// NewOutboxRepository returns a pgx-backed OutboxRepository.
func NewOutboxRepository() OutboxRepository {
	return &outboxRepo{}
}

// Insert writes every draft with one multi-row statement so a mutation and
// all of its events land in the caller's transaction together.
func (r *outboxRepo) Insert(ctx context.Context, db DBTX, drafts ...domain.OutboxDraft) error {
	if len(drafts) == 0 {
		return nil
	}

	var sb strings.Builder
	sb.WriteString(`INSERT INTO event_outbox
	  ("eventId", "aggregateType", "aggregateId", "eventType", "partitionKey", "headers", "payload", "occurredAt")
	VALUES `)
	args := make([]any, 0, len(drafts)*outboxColumns)
	for i, d := range drafts {
		if i > 0 {
			sb.WriteString(", ")
		}
		base := i * outboxColumns
		fmt.Fprintf(&sb, "($%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7, base+8)
		args = append(args, d.EventID, string(d.AggregateType), d.AggregateID, string(d.EventType),
			d.PartitionKey, d.Headers, d.Payload, d.OccurredAt)
	}

	if _, err := db.Exec(ctx, sb.String(), args...); err != nil {
		return fmt.Errorf("insert %d outbox events: %w", len(drafts), err)
	}
	return nil
}

func (r *outboxRepo) Claim(ctx context.Context, db DBTX, limit int) ([]OutboxRow, error) {
	rows, err := db.Query(ctx, `
		SELECT "id", "eventId", "aggregateType", "aggregateId", "eventType",
		       "partitionKey", "headers", "payload", "occurredAt"
		FROM event_outbox
		WHERE "publishedAt" IS NULL
		ORDER BY "id"
		LIMIT $1
		FOR UPDATE SKIP LOCKED`, limit)
	if err != nil {
		return nil, fmt.Errorf("claim outbox batch: %w", err)
	}
	defer rows.Close()

	batch := make([]OutboxRow, 0, limit)
	for rows.Next() {
		var row OutboxRow
		var aggregate, eventType string
		if err := rows.Scan(&row.SeqID, &row.EventID, &aggregate, &row.AggregateID, &eventType,
			&row.PartitionKey, &row.Headers, &row.Payload, &row.OccurredAt); err != nil {
			return nil, fmt.Errorf("scan outbox row: %w", err)
		}
		row.AggregateType = domain.AggregateType(aggregate)
		row.EventType = domain.EventType(eventType)
		batch = append(batch, row)
	}
	return batch, rows.Err()
}

func (r *outboxRepo) MarkPublished(ctx context.Context, db DBTX, seqIDs []int64) error {
	if len(seqIDs) == 0 {
		return nil
	}
	tag, err := db.Exec(ctx, `
		UPDATE event_outbox SET "publishedAt" = now()
		WHERE "id" = ANY($1) AND "publishedAt" IS NULL`, seqIDs)
	if err != nil {
		return fmt.Errorf("mark %d outbox events published: %w", len(seqIDs), err)
	}
	if int(tag.RowsAffected()) != len(seqIDs) {
		return fmt.Errorf("mark outbox events published: %d of %d rows updated", tag.RowsAffected(), len(seqIDs))
	}
	return nil
}

func (r *outboxRepo) Backlog(ctx context.Context, db DBTX) (int64, error) {
	var n int64
	err := db.QueryRow(ctx, `SELECT count(*) FROM event_outbox WHERE "publishedAt" IS NULL`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count outbox backlog: %w", err)
	}
	return n, nil
}

func (r *outboxRepo) PurgePublished(ctx context.Context, db DBTX, before time.Time) (int64, error) {
	tag, err := db.Exec(ctx, `DELETE FROM event_outbox WHERE "publishedAt" IS NOT NULL AND "publishedAt" < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("purge published outbox events: %w", err)
	}
	return tag.RowsAffected(), nil
}
