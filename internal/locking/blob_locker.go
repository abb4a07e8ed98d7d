package locking

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blockblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/lease"
	"github.com/hashicorp/go-hclog"

	"github.com/maplewood-dwh/snapcdc/internal/logging"
)

const (
	// staleLockAge is how long the lock blob may go untouched before the
	// holder is treated as crashed and its lease broken.
	staleLockAge = 2 * time.Minute

	// renewLockInterval is the heartbeat period. It must leave a live
	// holder several renewals inside staleLockAge, so a single missed
	// touch never reads as a crash.
	renewLockInterval = 30 * time.Second
)

// lockIsStale reports whether a held lock last touched at lastModified
// should be treated as abandoned at now.
func lockIsStale(lastModified, now time.Time) bool {
	return now.Sub(lastModified) > staleLockAge
}

// BlobLocker serializes runs against one source server using an Azure
// Blob lease, enforcing the single-writer-per-baseline discipline: at
// most one run may process a server's tables at a time. While held, the
// lock blob is re-touched on a heartbeat so its LastModified time is the
// holder's liveness signal.
type BlobLocker struct {
	containerName string
	lockName      string
	leaseID       string

	azblobClient    *azblob.Client
	blockblobClient *blockblob.Client
	blobLeaseClient *lease.BlobClient
	log             hclog.Logger
}

// RunLockName returns the lock blob path for a source server.
func RunLockName(serverName string) string {
	return strings.ToLower(serverName) + "/run.lock"
}

// NewBlobLocker creates the lock blob (if absent) and a lease client
// for it.
func NewBlobLocker(connectionString, containerName, lockName string) (*BlobLocker, error) {
	azblobClient, err := azblob.NewClientFromConnectionString(connectionString, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create Azure Blob client: %w", err)
	}
	_, err = azblobClient.CreateContainer(context.TODO(), containerName, nil)
	if err != nil && !strings.Contains(err.Error(), "ContainerAlreadyExists") {
		return nil, fmt.Errorf("failed to create or check container: %w", err)
	}

	blockblobClient, err := blockblob.NewClientFromConnectionString(connectionString, containerName, lockName, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create block blob client: %w", err)
	}
	_, err = blockblobClient.UploadBuffer(context.TODO(), []byte{}, nil)
	if err != nil && !strings.Contains(err.Error(), "BlobAlreadyExists") && !strings.Contains(err.Error(), "412 There is currently a lease") {
		return nil, fmt.Errorf("failed to ensure lock blob exists: %w", err)
	}

	blobLeaseClient, err := lease.NewBlobClient(blockblobClient, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create blob lease client: %w", err)
	}

	return &BlobLocker{
		containerName:   containerName,
		lockName:        lockName,
		azblobClient:    azblobClient,
		blockblobClient: blockblobClient,
		blobLeaseClient: blobLeaseClient,
		log:             logging.GetLogger(),
	}, nil
}

// AcquireLock tries to take the run lease. An empty lease ID with a nil
// error means another run holds the lease and its heartbeat is current,
// so this run should skip. Locks whose blob has gone untouched longer
// than staleLockAge are treated as abandoned, broken and re-acquired.
func (bl *BlobLocker) AcquireLock(ctx context.Context) (string, error) {
	bl.log.Debug("Attempting to acquire run lock", "blob", bl.lockName)

	// Infinite lease; liveness is judged from the heartbeat on the blob's
	// last-modified time rather than a lease TTL.
	resp, err := bl.blobLeaseClient.AcquireLease(ctx, -1, nil)
	if err == nil {
		bl.leaseID = *resp.LeaseID
		bl.log.Info("Run lock acquired", "blob", bl.lockName)
		return bl.leaseID, nil
	}
	if !strings.Contains(err.Error(), "There is already a lease present") {
		return "", fmt.Errorf("failed to acquire lock for blob %s: %w", bl.lockName, err)
	}

	blobClient := bl.azblobClient.ServiceClient().NewContainerClient(bl.containerName).NewBlobClient(bl.lockName)
	props, err := blobClient.GetProperties(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to get blob properties for %s: %w", bl.lockName, err)
	}
	if !lockIsStale(*props.LastModified, time.Now()) {
		bl.log.Info("Run lock held by another run, skipping", "blob", bl.lockName, "age", time.Since(*props.LastModified))
		return "", nil
	}

	bl.log.Warn("Breaking stale run lock", "blob", bl.lockName, "age", time.Since(*props.LastModified))
	if _, err := bl.blobLeaseClient.BreakLease(ctx, nil); err != nil {
		return "", fmt.Errorf("failed to break lease for %s: %w", bl.lockName, err)
	}
	time.Sleep(time.Second)

	resp, err = bl.blobLeaseClient.AcquireLease(ctx, -1, nil)
	if err != nil {
		return "", fmt.Errorf("failed to acquire lease after breaking for %s: %w", bl.lockName, err)
	}
	bl.leaseID = *resp.LeaseID
	bl.log.Info("Run lock acquired after breaking stale lease", "blob", bl.lockName)
	return bl.leaseID, nil
}

// RenewLock touches the lock blob under the held lease so its
// LastModified time advances. This is the heartbeat AcquireLock's
// staleness check observes.
func (bl *BlobLocker) RenewLock(ctx context.Context) error {
	opts := &blockblob.UploadBufferOptions{
		AccessConditions: &blob.AccessConditions{
			LeaseAccessConditions: &blob.LeaseAccessConditions{LeaseID: &bl.leaseID},
		},
	}
	if _, err := bl.blockblobClient.UploadBuffer(ctx, []byte{}, opts); err != nil {
		return fmt.Errorf("failed to renew lock for blob %s: %w", bl.lockName, err)
	}
	bl.log.Debug("Run lock renewed", "blob", bl.lockName)
	return nil
}

// StartLockRenewal renews the held lock every renewLockInterval until
// the context is cancelled. Call it once, right after AcquireLock
// succeeds; without the heartbeat a long run starts to look abandoned
// after staleLockAge.
func (bl *BlobLocker) StartLockRenewal(ctx context.Context) {
	bl.log.Debug("Starting run lock renewal", "blob", bl.lockName, "interval", renewLockInterval)
	go func() {
		ticker := time.NewTicker(renewLockInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if err := bl.RenewLock(ctx); err != nil {
					bl.log.Warn("Failed to renew run lock", "blob", bl.lockName, "error", err)
				}
			case <-ctx.Done():
				bl.log.Debug("Stopping run lock renewal", "blob", bl.lockName)
				return
			}
		}
	}()
}

// ReleaseLock releases the run lease.
func (bl *BlobLocker) ReleaseLock(ctx context.Context) error {
	if _, err := bl.blobLeaseClient.ReleaseLease(ctx, &lease.BlobReleaseOptions{}); err != nil {
		return fmt.Errorf("failed to release lock for blob %s: %w", bl.lockName, err)
	}
	bl.log.Info("Run lock released", "blob", bl.lockName)
	return nil
}
