package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/Degen-Markets/degen-markets-solana/internal/domain"
)

const (
	archivePrefix = "archive/pools/"
	jsonType      = "application/json"
	jsonlType     = "application/x-ndjson"

	// multipartThreshold switches entry logs to multipart upload.
	multipartThreshold = 8 * 1024 * 1024
)

// Archiver implements domain.SettlementArchiver. For each pool it writes
// archive/pools/<pool>/entries.jsonl and then archive/pools/<pool>/summary.json;
// the summary is written last, so its presence marks a complete archive.
type Archiver struct {
	writer domain.BlobWriter
	reader domain.BlobReader
	audit  domain.AuditStore
}

// NewArchiver creates an Archiver. reader and audit may be nil.
func NewArchiver(writer domain.BlobWriter, reader domain.BlobReader, audit domain.AuditStore) *Archiver {
	return &Archiver{writer: writer, reader: reader, audit: audit}
}

// SummaryPath is where the summary of pool is stored.
func (a *Archiver) SummaryPath(pool domain.Address) string {
	return archivePrefix + pool.String() + "/summary.json"
}

// EntriesPath is where the entry log of pool is stored.
func (a *Archiver) EntriesPath(pool domain.Address) string {
	return archivePrefix + pool.String() + "/entries.jsonl"
}

// ArchivePool uploads the entries and the settlement summary of a pool and
// records the archive in the audit log. It returns the summary path.
func (a *Archiver) ArchivePool(ctx context.Context, report domain.SettlementReport, entries []domain.Entry) (string, error) {
	pool := report.Pool.Address

	lines, err := marshalJSONL(entries)
	if err != nil {
		return "", fmt.Errorf("s3blob: archive %s entries: %w", pool, err)
	}
	entriesPath := a.EntriesPath(pool)
	if len(lines) > multipartThreshold {
		err = a.writer.PutMultipart(ctx, entriesPath, bytes.NewReader(lines), 0)
	} else {
		err = a.writer.Put(ctx, entriesPath, bytes.NewReader(lines), jsonlType)
	}
	if err != nil {
		return "", fmt.Errorf("s3blob: archive %s entries: %w", pool, err)
	}

	summary, err := json.MarshalIndent(domain.ArchiveSummary{
		Report:      report,
		EntryCount:  len(entries),
		EntriesPath: entriesPath,
		ArchivedAt:  time.Now().UTC(),
	}, "", "  ")
	if err != nil {
		return "", fmt.Errorf("s3blob: archive %s summary: %w", pool, err)
	}
	summaryPath := a.SummaryPath(pool)
	if err := a.writer.Put(ctx, summaryPath, bytes.NewReader(summary), jsonType); err != nil {
		return "", fmt.Errorf("s3blob: archive %s summary: %w", pool, err)
	}

	if a.audit != nil {
		if err := a.audit.Log(ctx, "archive.pool", map[string]any{
			"pool":    pool.String(),
			"path":    summaryPath,
			"entries": len(entries),
			"total":   report.Total,
			"dust":    report.Dust,
		}); err != nil {
			return summaryPath, fmt.Errorf("s3blob: archive %s audit: %w", pool, err)
		}
	}
	return summaryPath, nil
}

// Archived reports whether a complete archive of pool exists.
func (a *Archiver) Archived(ctx context.Context, pool domain.Address) (bool, error) {
	if a.reader == nil {
		return false, fmt.Errorf("s3blob: archiver has no reader")
	}
	return a.reader.Exists(ctx, a.SummaryPath(pool))
}

// LoadSummary reads back the archived summary of pool.
func (a *Archiver) LoadSummary(ctx context.Context, pool domain.Address) (domain.ArchiveSummary, error) {
	if a.reader == nil {
		return domain.ArchiveSummary{}, fmt.Errorf("s3blob: archiver has no reader")
	}
	body, err := a.reader.Get(ctx, a.SummaryPath(pool))
	if err != nil {
		return domain.ArchiveSummary{}, err
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return domain.ArchiveSummary{}, fmt.Errorf("s3blob: read summary %s: %w", pool, err)
	}
	var s domain.ArchiveSummary
	if err := json.Unmarshal(data, &s); err != nil {
		return domain.ArchiveSummary{}, fmt.Errorf("s3blob: decode summary %s: %w", pool, err)
	}
	return s, nil
}

// marshalJSONL encodes records as one compact JSON object per line.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}

var _ domain.SettlementArchiver = (*Archiver)(nil)
