package kvs

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudfrontkeyvaluestore"
	cfkvstypes "github.com/aws/aws-sdk-go-v2/service/cloudfrontkeyvaluestore/types"
	log "github.com/sirupsen/logrus"
)

// KVSClient abstracts the CloudFront KeyValueStore API.
type KVSClient interface {
	DescribeKeyValueStore(ctx context.Context, params *cloudfrontkeyvaluestore.DescribeKeyValueStoreInput, optFns ...func(*cloudfrontkeyvaluestore.Options)) (*cloudfrontkeyvaluestore.DescribeKeyValueStoreOutput, error)
	ListKeys(ctx context.Context, params *cloudfrontkeyvaluestore.ListKeysInput, optFns ...func(*cloudfrontkeyvaluestore.Options)) (*cloudfrontkeyvaluestore.ListKeysOutput, error)
	UpdateKeys(ctx context.Context, params *cloudfrontkeyvaluestore.UpdateKeysInput, optFns ...func(*cloudfrontkeyvaluestore.Options)) (*cloudfrontkeyvaluestore.UpdateKeysOutput, error)
}

// maxKeysPerBatch is the CloudFront limit on operations per UpdateKeys call.
const maxKeysPerBatch = 50

// FetchExistingKeys retrieves all current keys and values from a KVS along
// with the ETag they were read at.
func FetchExistingKeys(ctx context.Context, client KVSClient, kvsARN string) (map[string]string, string, error) {
	desc, err := client.DescribeKeyValueStore(ctx, &cloudfrontkeyvaluestore.DescribeKeyValueStoreInput{
		KvsARN: aws.String(kvsARN),
	})
	if err != nil {
		return nil, "", fmt.Errorf("describing KVS: %w", err)
	}
	etag := aws.ToString(desc.ETag)
	if etag == "" {
		return nil, "", fmt.Errorf("describing KVS: response has no ETag")
	}

	existing := make(map[string]string)
	var nextToken *string
	for {
		resp, err := client.ListKeys(ctx, &cloudfrontkeyvaluestore.ListKeysInput{
			KvsARN:    aws.String(kvsARN),
			NextToken: nextToken,
		})
		if err != nil {
			return nil, "", fmt.Errorf("listing KVS keys: %w", err)
		}
		for _, item := range resp.Items {
			existing[aws.ToString(item.Key)] = aws.ToString(item.Value)
		}
		nextToken = resp.NextToken
		if aws.ToString(nextToken) == "" {
			break
		}
	}

	return existing, etag, nil
}

// Sync applies plan to the KVS, one UpdateKeys call per batch. Each call
// is guarded by the ETag returned from the previous one.
func Sync(ctx context.Context, client KVSClient, kvsARN string, etag string, plan *SyncPlan) error {
	batches := plan.batches(maxKeysPerBatch)
	current := etag
	for i, b := range batches {
		in := &cloudfrontkeyvaluestore.UpdateKeysInput{
			KvsARN:  aws.String(kvsARN),
			IfMatch: aws.String(current),
		}
		for _, e := range b.puts {
			in.Puts = append(in.Puts, cfkvstypes.PutKeyRequestListItem{
				Key:   aws.String(e.Key),
				Value: aws.String(e.Value),
			})
		}
		for _, k := range b.deletes {
			in.Deletes = append(in.Deletes, cfkvstypes.DeleteKeyRequestListItem{
				Key: aws.String(k),
			})
		}

		resp, err := client.UpdateKeys(ctx, in)
		if err != nil {
			return fmt.Errorf("updating KVS keys (batch %d/%d: %d puts, %d deletes): %w",
				i+1, len(batches), len(b.puts), len(b.deletes), err)
		}
		log.WithFields(log.Fields{
			"batch":   i + 1,
			"puts":    len(b.puts),
			"deletes": len(b.deletes),
		}).Debug("Updated KVS keys")
		if resp.ETag != nil {
			current = *resp.ETag
		}
	}
	return nil
}
