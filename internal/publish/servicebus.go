package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/messaging/azservicebus"
	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"

	"github.com/maplewood-dwh/snapcdc/internal/logging"
	"github.com/maplewood-dwh/snapcdc/pkg/cdc"
)

const (
	// Service Bus SKU message size limits
	standardSKULimit = 256 * 1024  // 256KB
	premiumSKULimit  = 1024 * 1024 // 1MB

	// payloadBufferFactor reserves headroom for AMQP framing and message
	// properties on top of the body.
	payloadBufferFactor = 0.2
)

// Publisher streams change-record batches to an Azure Service Bus queue,
// one message per batch.
type Publisher struct {
	client   *azservicebus.Client
	sender   *azservicebus.Sender
	maxBytes int
	log      hclog.Logger
}

// New creates a Publisher for the given queue. sku selects the payload
// limit; anything other than "premium" gets the Standard SKU limit.
func New(connectionString, queue, sku string) (*Publisher, error) {
	client, err := azservicebus.NewClientFromConnectionString(connectionString, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create Service Bus client: %w", err)
	}
	sender, err := client.NewSender(queue, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create Service Bus sender: %w", err)
	}

	limit := standardSKULimit
	if strings.EqualFold(sku, "premium") {
		limit = premiumSKULimit
	}

	return &Publisher{
		client:   client,
		sender:   sender,
		maxBytes: int(float64(limit) * (1 - payloadBufferFactor)),
		log:      logging.GetLogger(),
	}, nil
}

// MaxBatchBytes returns the largest encoded batch payload this publisher
// accepts.
func (p *Publisher) MaxBatchBytes() int {
	return p.maxBytes
}

// PublishBatch sends one batch as a single JSON message. The caller keeps
// batches within MaxBatchBytes. Message IDs are fresh UUIDs so downstream
// duplicate detection can recognize redelivery.
func (p *Publisher) PublishBatch(ctx context.Context, records []cdc.ChangeRecord) error {
	body, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("failed to encode batch: %w", err)
	}

	messageID := uuid.NewString()
	contentType := "application/json"
	msg := &azservicebus.Message{
		Body:        body,
		MessageID:   &messageID,
		ContentType: &contentType,
	}
	if err := p.sender.SendMessage(ctx, msg, nil); err != nil {
		return fmt.Errorf("failed to publish batch of %d records: %w", len(records), err)
	}

	p.log.Debug("Published batch", "records", len(records), "bytes", len(body), "message_id", messageID)
	return nil
}

// Close releases the sender and client.
func (p *Publisher) Close(ctx context.Context) error {
	if err := p.sender.Close(ctx); err != nil {
		return fmt.Errorf("failed to close Service Bus sender: %w", err)
	}
	return p.client.Close(ctx)
}
