package kvs

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudfrontkeyvaluestore"
	cfkvstypes "github.com/aws/aws-sdk-go-v2/service/cloudfrontkeyvaluestore/types"
)

type fakeKVS struct {
	etag    string
	pages   [][]cfkvstypes.ListKeysResponseListItem
	failAt  int // 1-based UpdateKeys call to fail, 0 for never
	updates []*cloudfrontkeyvaluestore.UpdateKeysInput
}

func (f *fakeKVS) DescribeKeyValueStore(_ context.Context, _ *cloudfrontkeyvaluestore.DescribeKeyValueStoreInput, _ ...func(*cloudfrontkeyvaluestore.Options)) (*cloudfrontkeyvaluestore.DescribeKeyValueStoreOutput, error) {
	return &cloudfrontkeyvaluestore.DescribeKeyValueStoreOutput{ETag: aws.String(f.etag)}, nil
}

func (f *fakeKVS) ListKeys(_ context.Context, params *cloudfrontkeyvaluestore.ListKeysInput, _ ...func(*cloudfrontkeyvaluestore.Options)) (*cloudfrontkeyvaluestore.ListKeysOutput, error) {
	page := 0
	if params.NextToken != nil {
		fmt.Sscanf(*params.NextToken, "page-%d", &page)
	}
	out := &cloudfrontkeyvaluestore.ListKeysOutput{}
	if page < len(f.pages) {
		out.Items = f.pages[page]
	}
	if page+1 < len(f.pages) {
		out.NextToken = aws.String(fmt.Sprintf("page-%d", page+1))
	}
	return out, nil
}

func (f *fakeKVS) UpdateKeys(_ context.Context, params *cloudfrontkeyvaluestore.UpdateKeysInput, _ ...func(*cloudfrontkeyvaluestore.Options)) (*cloudfrontkeyvaluestore.UpdateKeysOutput, error) {
	f.updates = append(f.updates, params)
	if f.failAt == len(f.updates) {
		return nil, errors.New("conflict")
	}
	return &cloudfrontkeyvaluestore.UpdateKeysOutput{ETag: aws.String(fmt.Sprintf("etag-%d", len(f.updates)))}, nil
}

func item(k, v string) cfkvstypes.ListKeysResponseListItem {
	return cfkvstypes.ListKeysResponseListItem{Key: aws.String(k), Value: aws.String(v)}
}

func TestComputeSyncPlan_NewKeys(t *testing.T) {
	desired := &Data{
		Entries: []Entry{
			{Key: "*", Value: "https://bucket"},
			{Key: "/api/*", Value: "https://api/prod"},
		},
	}

	plan := ComputeSyncPlan(desired, map[string]string{})
	if len(plan.Puts) != 2 {
		t.Errorf("expected 2 puts, got %d", len(plan.Puts))
	}
	if len(plan.Deletes) != 0 {
		t.Errorf("expected 0 deletes, got %d", len(plan.Deletes))
	}
}

func TestComputeSyncPlan_Mixed(t *testing.T) {
	desired := &Data{
		Entries: []Entry{
			{Key: "*", Value: "https://bucket"},        // unchanged
			{Key: "/api/*", Value: "https://api/prod"}, // value changed
			{Key: "/v2/*", Value: "https://v2"},        // new key
		},
	}
	existing := map[string]string{
		"*":         "https://bucket",
		"/api/*":    "https://api/staging",
		"/legacy/*": "https://old",
		"/beta/*":   "https://beta",
	}

	plan := ComputeSyncPlan(desired, existing)

	if len(plan.Puts) != 2 || plan.Puts[0].Key != "/api/*" || plan.Puts[1].Key != "/v2/*" {
		t.Errorf("expected puts for /api/* and /v2/*, got %v", plan.Puts)
	}
	if len(plan.Deletes) != 2 || plan.Deletes[0] != "/beta/*" || plan.Deletes[1] != "/legacy/*" {
		t.Errorf("expected sorted deletes [/beta/* /legacy/*], got %v", plan.Deletes)
	}
}

func TestComputeSyncPlan_NoChanges(t *testing.T) {
	desired := &Data{Entries: []Entry{{Key: "*", Value: "https://bucket"}}}
	plan := ComputeSyncPlan(desired, map[string]string{"*": "https://bucket"})
	if !plan.Empty() {
		t.Errorf("expected empty plan, got %+v", plan)
	}
}

func TestBatches(t *testing.T) {
	plan := &SyncPlan{}
	for i := 0; i < 70; i++ {
		plan.Puts = append(plan.Puts, Entry{Key: fmt.Sprintf("/p%d/*", i), Value: "v"})
	}
	for i := 0; i < 35; i++ {
		plan.Deletes = append(plan.Deletes, fmt.Sprintf("/d%d/*", i))
	}

	batches := plan.batches(50)
	if len(batches) != 3 {
		t.Fatalf("expected 3 batches, got %d", len(batches))
	}
	sizes := []int{50, 50, 5}
	for i, b := range batches {
		if n := len(b.puts) + len(b.deletes); n != sizes[i] {
			t.Errorf("batch %d: expected %d ops, got %d", i, sizes[i], n)
		}
	}
	if len(batches[1].puts) != 20 || len(batches[1].deletes) != 30 {
		t.Errorf("batch 1: expected 20 puts + 30 deletes, got %d + %d", len(batches[1].puts), len(batches[1].deletes))
	}
	if got := (&SyncPlan{}).batches(50); len(got) != 0 {
		t.Errorf("expected no batches for empty plan, got %d", len(got))
	}
}

func TestFetchExistingKeys_Paginates(t *testing.T) {
	client := &fakeKVS{
		etag: "etag-0",
		pages: [][]cfkvstypes.ListKeysResponseListItem{
			{item("*", "https://bucket")},
			{item("/api/*", "https://api/prod")},
		},
	}

	existing, etag, err := FetchExistingKeys(context.Background(), client, "arn:kvs")
	if err != nil {
		t.Fatal(err)
	}
	if etag != "etag-0" {
		t.Errorf("expected etag-0, got %s", etag)
	}
	if len(existing) != 2 || existing["/api/*"] != "https://api/prod" {
		t.Errorf("unexpected keys: %v", existing)
	}
}

func TestSync_ChainsETags(t *testing.T) {
	client := &fakeKVS{}
	plan := &SyncPlan{}
	for i := 0; i < 60; i++ {
		plan.Puts = append(plan.Puts, Entry{Key: fmt.Sprintf("/p%d/*", i), Value: "v"})
	}

	if err := Sync(context.Background(), client, "arn:kvs", "etag-0", plan); err != nil {
		t.Fatal(err)
	}
	if len(client.updates) != 2 {
		t.Fatalf("expected 2 UpdateKeys calls, got %d", len(client.updates))
	}
	if got := aws.ToString(client.updates[0].IfMatch); got != "etag-0" {
		t.Errorf("first batch: expected IfMatch etag-0, got %s", got)
	}
	if got := aws.ToString(client.updates[1].IfMatch); got != "etag-1" {
		t.Errorf("second batch: expected IfMatch etag-1, got %s", got)
	}
}

func TestSync_EmptyPlan(t *testing.T) {
	client := &fakeKVS{}
	if err := Sync(context.Background(), client, "arn:kvs", "etag-0", &SyncPlan{}); err != nil {
		t.Fatal(err)
	}
	if len(client.updates) != 0 {
		t.Errorf("expected no UpdateKeys calls, got %d", len(client.updates))
	}
}

func TestSync_StopsOnError(t *testing.T) {
	client := &fakeKVS{failAt: 1}
	plan := &SyncPlan{}
	for i := 0; i < 60; i++ {
		plan.Deletes = append(plan.Deletes, fmt.Sprintf("/d%d/*", i))
	}

	if err := Sync(context.Background(), client, "arn:kvs", "etag-0", plan); err == nil {
		t.Fatal("expected error")
	}
	if len(client.updates) != 1 {
		t.Errorf("expected sync to stop after the failed batch, got %d calls", len(client.updates))
	}
}
