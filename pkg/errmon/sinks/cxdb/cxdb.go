// Package cxdb provides a sink that persists monitor log lines to cxdb as
// SystemMessage items, so alerts and recorded errors can be browsed next to
// the conversation that produced them.
package cxdb

import (
	"context"
	"encoding/json"
	"fmt"

	cxdbclient "github.com/strongdm/ai-cxdb/clients/go"
	cxdtypes "github.com/strongdm/ai-cxdb/clients/go/types"

	"github.com/strongdm/ai-errmon/pkg/errmon"
)

// CXDBClient is the minimal interface for cxdb client operations.
// The real *cxdb.Client satisfies this interface.
type CXDBClient interface {
	CreateContext(ctx context.Context, baseTurnID uint64) (*cxdbclient.ContextHead, error)
	AppendTurn(ctx context.Context, req *cxdbclient.AppendRequest) (*cxdbclient.AppendResult, error)
}

// CXDBSinkOption configures the CXDB sink.
type CXDBSinkOption func(*cxdbSinkConfig)

type cxdbSinkConfig struct {
	orphanLabels []string
	clientTag    string
}

// WithOrphanLabels sets labels for contexts created for unlinked records.
func WithOrphanLabels(labels []string) CXDBSinkOption {
	return func(c *cxdbSinkConfig) {
		c.orphanLabels = labels
	}
}

// WithClientTag sets the client tag for orphan contexts.
func WithClientTag(tag string) CXDBSinkOption {
	return func(c *cxdbSinkConfig) {
		c.clientTag = tag
	}
}

type cxdbSink struct {
	client       CXDBClient
	orphanLabels []string
	clientTag    string
}

// NewCXDBSink creates a sink that writes to cxdb. Records without a
// ContextID are written to a freshly created orphan context.
func NewCXDBSink(client CXDBClient, opts ...CXDBSinkOption) errmon.Sink {
	cfg := &cxdbSinkConfig{
		orphanLabels: []string{"errmon", "unlinked"},
		clientTag:    "errmon",
	}
	for _, opt := range opts {
		opt(cfg)
	}

	return &cxdbSink{
		client:       client,
		orphanLabels: cfg.orphanLabels,
		clientTag:    cfg.clientTag,
	}
}

// Write appends the record as one turn.
func (s *cxdbSink) Write(ctx context.Context, r errmon.Record) error {
	var contextID uint64
	isOrphan := false

	if r.ContextID != nil {
		contextID = *r.ContextID
	} else {
		head, err := s.client.CreateContext(ctx, 0)
		if err != nil {
			return fmt.Errorf("create orphan context: %w", err)
		}
		contextID = head.ContextID
		isOrphan = true
	}

	payload, err := cxdbclient.EncodeMsgpack(s.buildConversationItem(r, isOrphan))
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}

	_, err = s.client.AppendTurn(ctx, &cxdbclient.AppendRequest{
		ContextID:      contextID,
		ParentTurnID:   0,
		TypeID:         cxdtypes.TypeIDConversationItem,
		TypeVersion:    cxdtypes.TypeVersionConversationItem,
		Payload:        payload,
		IdempotencyKey: r.EventID,
	})
	if err != nil {
		return fmt.Errorf("append turn: %w", err)
	}
	return nil
}

const (
	maxTitleMessage = 80
	maxTitle        = 100
)

// buildConversationItem renders the record as a system item. The record
// level is carried in the details.
func (s *cxdbSink) buildConversationItem(r errmon.Record, isOrphan bool) *cxdtypes.ConversationItem {
	title := r.Operation
	if r.Message != "" {
		msg := r.Message
		if len(msg) > maxTitleMessage {
			msg = msg[:maxTitleMessage] + "..."
		}
		title = r.Operation + ": " + msg
	}
	if len(title) > maxTitle {
		title = title[:maxTitle-3] + "..."
	}

	item := &cxdtypes.ConversationItem{
		ItemType:  cxdtypes.ItemTypeSystem,
		Status:    cxdtypes.ItemStatusComplete,
		Timestamp: r.Timestamp.UnixMilli(),
		ID:        r.EventID,
		System: &cxdtypes.SystemMessage{
			Kind:    cxdtypes.SystemKindError,
			Title:   title,
			Content: buildDetails(r),
		},
	}

	// cxdb expects context metadata on the first turn.
	if isOrphan {
		item.ContextMetadata = &cxdtypes.ContextMetadata{
			Labels:    s.orphanLabels,
			ClientTag: s.clientTag,
		}
	}
	return item
}

// buildDetails encodes the record as JSON for SystemMessage.Content.
func buildDetails(r errmon.Record) string {
	details := map[string]any{
		"event_id":    r.EventID,
		"level":       string(r.Level),
		"operation":   r.Operation,
		"message":     r.Message,
		"fingerprint": r.Fingerprint,
		"alert":       errmon.IsAlertOperation(r.Operation),
	}
	if r.Error != "" {
		details["error"] = r.Error
		details["error_type"] = r.ErrorType
	}
	if r.StackTrace != "" {
		details["stack_trace"] = r.StackTrace
	}
	if r.ContextID != nil {
		details["context_id"] = *r.ContextID
	}
	if len(r.Fields) > 0 {
		details["fields"] = r.Fields
	}

	b, err := json.Marshal(details)
	if err != nil {
		return fmt.Sprintf(`{"error":"failed to encode details: %s"}`, err)
	}
	return string(b)
}

// Flush is a no-op for the cxdb sink (writes are synchronous).
func (s *cxdbSink) Flush(ctx context.Context) error {
	return nil
}

// Close is a no-op for the cxdb sink.
func (s *cxdbSink) Close() error {
	return nil
}
