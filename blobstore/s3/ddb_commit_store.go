package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/hupe1980/graphd/blobstore"
)

// PointerName is the reserved blob name that resolves to the most
// recently committed snapshot. Reading it returns the snapshot's name;
// writing it advances the pointer.
const PointerName = "LATEST"

// ErrSnapshotRace is returned when two writers try to advance the
// snapshot pointer at the same time. The loser should re-read LATEST
// and retry on top of the winner's snapshot.
var ErrSnapshotRace = errors.New("snapshot pointer advanced concurrently")

// DDBClient is the slice of the DynamoDB API the commit log needs.
type DDBClient interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// DDBCommitStore layers a DynamoDB commit log over an S3-backed Store.
//
// S3 has no compare-and-swap, so concurrent writers publishing snapshots
// to the same prefix could silently clobber each other's LATEST pointer.
// The commit log fixes that: snapshot data still goes to S3, but the
// pointer to the newest snapshot lives in a DynamoDB table and advances
// only through conditional writes. A writer that loses the race gets
// ErrSnapshotRace instead of overwriting a snapshot it never saw.
//
// Table schema, partition key "store_uri" (S) and sort key "seq" (N):
//
//	aws dynamodb create-table \
//	  --table-name graphd-snapshots \
//	  --attribute-definitions AttributeName=store_uri,AttributeType=S AttributeName=seq,AttributeType=N \
//	  --key-schema AttributeName=store_uri,KeyType=HASH AttributeName=seq,KeyType=RANGE \
//	  --billing-mode PAY_PER_REQUEST
type DDBCommitStore struct {
	blobs *Store
	ddb   DDBClient
	table string

	// storeURI partitions the commit log, e.g. "s3://bucket/prefix".
	// Stores with different URIs never see each other's pointers.
	storeURI string
}

// NewDDBCommitStore wraps blobs with a commit log kept in the given
// DynamoDB table.
func NewDDBCommitStore(blobs *Store, ddb DDBClient, table, storeURI string) *DDBCommitStore {
	return &DDBCommitStore{
		blobs:    blobs,
		ddb:      ddb,
		table:    table,
		storeURI: storeURI,
	}
}

// Open reads a blob. Opening PointerName resolves the commit log instead
// of S3 and returns a blob whose content is the latest snapshot name.
func (s *DDBCommitStore) Open(ctx context.Context, name string) (blobstore.Blob, error) {
	if name != PointerName {
		return s.blobs.Open(ctx, name)
	}

	seq, snapshot, err := s.latest(ctx)
	if err != nil {
		return nil, err
	}
	if seq == 0 {
		return nil, blobstore.ErrNotFound
	}
	return &pointerBlob{content: []byte(snapshot)}, nil
}

// Put writes a blob. Writing PointerName commits data as the new latest
// snapshot name; any other name passes through to S3.
func (s *DDBCommitStore) Put(ctx context.Context, name string, data []byte) error {
	if name == PointerName {
		return s.advance(ctx, string(data))
	}
	return s.blobs.Put(ctx, name, data)
}

func (s *DDBCommitStore) Create(ctx context.Context, name string) (blobstore.WritableBlob, error) {
	return s.blobs.Create(ctx, name)
}

func (s *DDBCommitStore) Delete(ctx context.Context, name string) error {
	return s.blobs.Delete(ctx, name)
}

func (s *DDBCommitStore) List(ctx context.Context, prefix string) ([]string, error) {
	return s.blobs.List(ctx, prefix)
}

// latest returns the highest committed sequence number and its snapshot
// name, or (0, "", nil) when nothing has been committed yet.
func (s *DDBCommitStore) latest(ctx context.Context) (uint64, string, error) {
	out, err := s.ddb.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.table),
		KeyConditionExpression: aws.String("store_uri = :uri"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":uri": &types.AttributeValueMemberS{Value: s.storeURI},
		},
		ScanIndexForward: aws.Bool(false), // highest seq first
		Limit:            aws.Int32(1),
	})
	if err != nil {
		return 0, "", fmt.Errorf("query commit log: %w", err)
	}
	if len(out.Items) == 0 {
		return 0, "", nil
	}

	seqAttr, ok := out.Items[0]["seq"].(*types.AttributeValueMemberN)
	if !ok {
		return 0, "", errors.New("commit log item missing seq")
	}
	snapAttr, ok := out.Items[0]["snapshot"].(*types.AttributeValueMemberS)
	if !ok {
		return 0, "", errors.New("commit log item missing snapshot")
	}

	seq, err := strconv.ParseUint(seqAttr.Value, 10, 64)
	if err != nil {
		return 0, "", fmt.Errorf("parse seq %q: %w", seqAttr.Value, err)
	}
	return seq, snapAttr.Value, nil
}

// advance commits snapshot under seq latest+1. The conditional write is
// the linearization point: if another writer claimed that seq first, the
// put fails and the caller gets ErrSnapshotRace.
func (s *DDBCommitStore) advance(ctx context.Context, snapshot string) error {
	seq, _, err := s.latest(ctx)
	if err != nil {
		return err
	}

	_, err = s.ddb.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.table),
		Item: map[string]types.AttributeValue{
			"store_uri": &types.AttributeValueMemberS{Value: s.storeURI},
			"seq":       &types.AttributeValueMemberN{Value: strconv.FormatUint(seq+1, 10)},
			"snapshot":  &types.AttributeValueMemberS{Value: snapshot},
		},
		ConditionExpression: aws.String("attribute_not_exists(seq)"),
	})
	if err != nil {
		var cond *types.ConditionalCheckFailedException
		if errors.As(err, &cond) {
			return ErrSnapshotRace
		}
		return fmt.Errorf("commit snapshot pointer: %w", err)
	}
	return nil
}

// pointerBlob serves the resolved snapshot name as a tiny in-memory blob.
type pointerBlob struct {
	content []byte
}

func (b *pointerBlob) Size() int64  { return int64(len(b.content)) }
func (b *pointerBlob) Close() error { return nil }

func (b *pointerBlob) ReadAt(ctx context.Context, p []byte, off int64) (int, error) {
	if off >= int64(len(b.content)) {
		return 0, nil
	}
	return copy(p, b.content[off:]), nil
}

func (b *pointerBlob) ReadRange(ctx context.Context, off, length int64) (blobstore.ReadCloser, error) {
	if off >= int64(len(b.content)) {
		return blobstore.NopReadCloser(bytes.NewReader(nil)), nil
	}
	end := off + length
	if end > int64(len(b.content)) {
		end = int64(len(b.content))
	}
	return blobstore.NopReadCloser(bytes.NewReader(b.content[off:end])), nil
}
