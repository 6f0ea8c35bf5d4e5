// Package events announces ingested bills to downstream consumers.
package events

import (
	"context"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/FACorreiaa/smart-bill-tracker/internal/domain/common"
)

// BillsIngested is emitted once per successful upload.
type BillsIngested struct {
	EventID     uuid.UUID         `json:"event_id"`
	UploadType  common.UploadType `json:"upload_type"`
	SourceFile  string            `json:"source_file,omitempty"`
	BillIDs     []uuid.UUID       `json:"bill_ids"`
	BillCount   int               `json:"bill_count"`
	TotalAmount decimal.Decimal   `json:"total_amount"`
	OccurredAt  time.Time         `json:"occurred_at"`
}

// NewBillsIngested summarizes bills into an event.
func NewBillsIngested(uploadType common.UploadType, sourceFile string, bills []*common.Bill) BillsIngested {
	ev := BillsIngested{
		EventID:     uuid.New(),
		UploadType:  uploadType,
		SourceFile:  sourceFile,
		BillIDs:     make([]uuid.UUID, 0, len(bills)),
		TotalAmount: decimal.Zero,
		OccurredAt:  time.Now().UTC(),
	}
	for _, b := range bills {
		ev.BillIDs = append(ev.BillIDs, b.ID)
		ev.TotalAmount = ev.TotalAmount.Add(b.TotalAmount)
	}
	ev.BillCount = len(ev.BillIDs)
	return ev
}

func (e BillsIngested) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

func BillsIngestedFromJSON(data []byte) (*BillsIngested, error) {
	var ev BillsIngested
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, err
	}
	return &ev, nil
}

// Publisher delivers ingestion events.
type Publisher interface {
	PublishBillsIngested(ctx context.Context, ev BillsIngested) error
	Close() error
}

// NoopPublisher drops every event. It is used when no broker is configured.
type NoopPublisher struct{}

func (NoopPublisher) PublishBillsIngested(context.Context, BillsIngested) error { return nil }

func (NoopPublisher) Close() error { return nil }
