package export

import (
	"bytes"
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/zhouzirui/aura/backend/internal/model/chat"
)

// SnapshotSource yields a consistent copy of every session.
type SnapshotSource interface {
	Snapshot(ctx context.Context) []chat.Session
}

// Export is a rendered download.
type Export struct {
	Filename    string
	ContentType string
	Body        []byte
}

// Exporter reads the store through the anonymizer for every admin view.
type Exporter struct {
	source SnapshotSource
	now    func() time.Time
	logger *zap.Logger
}

// NewExporter builds an exporter. A nil clock defaults to time.Now in UTC.
func NewExporter(source SnapshotSource, now func() time.Time) *Exporter {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Exporter{
		source: source,
		now:    now,
		logger: zap.L().Named("export"),
	}
}

// Stats aggregates counts over one snapshot.
func (e *Exporter) Stats(ctx context.Context) Stats {
	return ComputeStats(e.source.Snapshot(ctx))
}

// Conversations returns the anonymized view of every session.
func (e *Exporter) Conversations(ctx context.Context) []Conversation {
	return NewView(e.source.Snapshot(ctx))
}

// CSV renders every session as a CSV download.
func (e *Exporter) CSV(ctx context.Context) (Export, error) {
	generatedAt := e.now()
	view := e.Conversations(ctx)

	var buf bytes.Buffer
	if err := EncodeCSV(&buf, view); err != nil {
		return Export{}, err
	}

	e.logger.Info("rendered csv export", zap.Int("conversations", len(view)), zap.Int("bytes", buf.Len()))
	return Export{
		Filename:    Filename(generatedAt, "csv"),
		ContentType: "text/csv; charset=utf-8",
		Body:        buf.Bytes(),
	}, nil
}

// JSON renders every session as a JSON download.
func (e *Exporter) JSON(ctx context.Context) (Export, error) {
	generatedAt := e.now()
	view := e.Conversations(ctx)

	var buf bytes.Buffer
	if err := EncodeJSON(&buf, view, generatedAt); err != nil {
		return Export{}, err
	}

	e.logger.Info("rendered json export", zap.Int("conversations", len(view)), zap.Int("bytes", buf.Len()))
	return Export{
		Filename:    Filename(generatedAt, "json"),
		ContentType: "application/json",
		Body:        buf.Bytes(),
	}, nil
}
