package blobstore

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/hashicorp/go-hclog"

	"github.com/maplewood-dwh/snapcdc/internal/logging"
	"github.com/maplewood-dwh/snapcdc/pkg/cdc"
)

// Store persists baselines, change logs and run summaries as JSON blobs
// in a single container: one baseline object per table, one change-log
// object per (table, run), one summary object per run.
type Store struct {
	client    *azblob.Client
	container string
	log       hclog.Logger
}

// New creates a Store and ensures the container exists.
func New(connectionString, container string) (*Store, error) {
	client, err := azblob.NewClientFromConnectionString(connectionString, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create Azure Blob client: %w", err)
	}
	_, err = client.CreateContainer(context.TODO(), container, nil)
	if err != nil && !strings.Contains(err.Error(), "ContainerAlreadyExists") {
		return nil, fmt.Errorf("failed to create or check container: %w", err)
	}

	return &Store{
		client:    client,
		container: container,
		log:       logging.GetLogger(),
	}, nil
}

// BaselineBlobName returns the blob holding a table's baseline.
func BaselineBlobName(table string) string {
	return table + "_baseline.json"
}

// ChangeLogBlobName returns the blob holding one table-run's change log.
// run_id uniqueness keeps names collision-free across runs.
func ChangeLogBlobName(table, runID string) string {
	return fmt.Sprintf("%s_log_%s.json", table, runID)
}

// SummaryBlobName returns the blob holding one run's summary.
func SummaryBlobName(runID string) string {
	return fmt.Sprintf("cdc_summary_%s.json", runID)
}

// GetBaseline downloads a table's baseline. A table that has never been
// seen returns nil with no error.
func (s *Store) GetBaseline(ctx context.Context, table string) ([]cdc.RowFingerprint, error) {
	name := BaselineBlobName(table)
	resp, err := s.client.DownloadStream(ctx, s.container, name, nil)
	if err != nil {
		if strings.Contains(err.Error(), "BlobNotFound") {
			s.log.Debug("No baseline blob yet", "table", table, "blob", name)
			return nil, nil
		}
		return nil, fmt.Errorf("failed to download baseline %s: %w", name, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read baseline %s: %w", name, err)
	}
	return DecodeBaseline(data)
}

// PutBaseline replaces a table's baseline wholesale.
func (s *Store) PutBaseline(ctx context.Context, table string, fingerprints []cdc.RowFingerprint) error {
	return s.upload(ctx, BaselineBlobName(table), fingerprints)
}

// AppendChangeLog stores all change records for one table's run as a
// single blob write.
func (s *Store) AppendChangeLog(ctx context.Context, table, runID string, records []cdc.ChangeRecord) error {
	return s.upload(ctx, ChangeLogBlobName(table, runID), records)
}

// WriteSummary stores the finished run summary.
func (s *Store) WriteSummary(ctx context.Context, summary *cdc.RunSummary) error {
	return s.upload(ctx, SummaryBlobName(summary.RunID), summary)
}

func (s *Store) upload(ctx context.Context, name string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", name, err)
	}
	if _, err := s.client.UploadBuffer(ctx, s.container, name, data, nil); err != nil {
		return fmt.Errorf("failed to upload %s: %w", name, err)
	}
	s.log.Info("Uploaded blob", "blob", name, "bytes", len(data))
	return nil
}

// DecodeBaseline parses a baseline blob's JSON payload.
func DecodeBaseline(data []byte) ([]cdc.RowFingerprint, error) {
	var fingerprints []cdc.RowFingerprint
	if err := json.Unmarshal(data, &fingerprints); err != nil {
		return nil, fmt.Errorf("failed to decode baseline: %w", err)
	}
	return fingerprints, nil
}
