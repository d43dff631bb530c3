package functions

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudfront"
	cftypes "github.com/aws/aws-sdk-go-v2/service/cloudfront/types"
)

// FunctionDescriber abstracts CloudFront Function lookup.
type FunctionDescriber interface {
	DescribeFunction(ctx context.Context, params *cloudfront.DescribeFunctionInput, optFns ...func(*cloudfront.Options)) (*cloudfront.DescribeFunctionOutput, error)
}

// KVSARNResolver abstracts CloudFront KVS ARN resolution.
type KVSARNResolver interface {
	ListKeyValueStores(ctx context.Context, params *cloudfront.ListKeyValueStoresInput, optFns ...func(*cloudfront.Options)) (*cloudfront.ListKeyValueStoresOutput, error)
}

// ResolveFunctionARN returns the ARN of the published (LIVE) stage of the
// named CloudFront Function. Only published functions can be associated with
// a cache behavior.
func ResolveFunctionARN(ctx context.Context, client FunctionDescriber, name string) (string, error) {
	resp, err := client.DescribeFunction(ctx, &cloudfront.DescribeFunctionInput{
		Name:  aws.String(name),
		Stage: cftypes.FunctionStageLive,
	})
	var notFound *cftypes.NoSuchFunctionExists
	if errors.As(err, &notFound) {
		return "", fmt.Errorf("function %s has no LIVE stage; publish it first", name)
	}
	if err != nil {
		return "", fmt.Errorf("describing function %s: %w", name, err)
	}
	if resp.FunctionSummary == nil || resp.FunctionSummary.FunctionMetadata == nil {
		return "", fmt.Errorf("describing function %s: response has no metadata", name)
	}
	arn := aws.ToString(resp.FunctionSummary.FunctionMetadata.FunctionARN)
	if arn == "" {
		return "", fmt.Errorf("describing function %s: response has no ARN", name)
	}
	return arn, nil
}

// ResolveKVSARN resolves a KVS name to its ARN by listing all KVS and matching by name.
func ResolveKVSARN(ctx context.Context, client KVSARNResolver, kvsName string) (string, error) {
	var marker *string
	for {
		resp, err := client.ListKeyValueStores(ctx, &cloudfront.ListKeyValueStoresInput{
			Marker: marker,
		})
		if err != nil {
			return "", fmt.Errorf("listing key value stores: %w", err)
		}
		if resp.KeyValueStoreList == nil {
			break
		}
		for _, item := range resp.KeyValueStoreList.Items {
			if aws.ToString(item.Name) == kvsName && item.ARN != nil {
				return *item.ARN, nil
			}
		}
		marker = resp.KeyValueStoreList.NextMarker
		if aws.ToString(marker) == "" {
			break
		}
	}
	return "", fmt.Errorf("key value store not found: %s", kvsName)
}
