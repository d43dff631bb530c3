package distribution

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudfront"
	cftypes "github.com/aws/aws-sdk-go-v2/service/cloudfront/types"
	json "github.com/goccy/go-json"
	log "github.com/sirupsen/logrus"
)

// Client abstracts the CloudFront distribution config API.
type Client interface {
	GetDistributionConfig(ctx context.Context, params *cloudfront.GetDistributionConfigInput, optFns ...func(*cloudfront.Options)) (*cloudfront.GetDistributionConfigOutput, error)
	UpdateDistribution(ctx context.Context, params *cloudfront.UpdateDistributionInput, optFns ...func(*cloudfront.Options)) (*cloudfront.UpdateDistributionOutput, error)
}

// Snapshot is a distribution config together with the ETag it was read at.
type Snapshot struct {
	ID     string
	ETag   string
	Config *cftypes.DistributionConfig
}

// Result summarizes an accepted update.
type Result struct {
	ID         string
	ETag       string
	Status     string
	DomainName string
}

// Fetch reads the current config and ETag of distribution id.
func Fetch(ctx context.Context, client Client, id string) (*Snapshot, error) {
	resp, err := client.GetDistributionConfig(ctx, &cloudfront.GetDistributionConfigInput{
		Id: aws.String(id),
	})
	if err != nil {
		return nil, Err(ErrFetch, err, "distribution %s: %s", id, describe(err))
	}
	if resp.DistributionConfig == nil {
		return nil, Err(ErrFetch, errors.New("response has no distribution config"), "distribution %s", id)
	}
	if aws.ToString(resp.ETag) == "" {
		return nil, Err(ErrFetch, errors.New("response has no ETag"), "distribution %s", id)
	}
	return &Snapshot{
		ID:     id,
		ETag:   aws.ToString(resp.ETag),
		Config: resp.DistributionConfig,
	}, nil
}

// Stage writes cfg as indented JSON to path, replacing any previous content.
func Stage(path string, cfg *cftypes.DistributionConfig) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return Err(ErrStage, err, "encoding config")
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return Err(ErrStage, err, "creating %s", dir)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return Err(ErrStage, err, "writing %s", path)
	}
	log.WithField("path", path).Debugf("Staged %d bytes", len(data))
	return nil
}

// LoadStaged reads a config previously written by Stage.
func LoadStaged(path string) (*cftypes.DistributionConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, Err(ErrStage, err, "reading %s", path)
	}
	var cfg cftypes.DistributionConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, Err(ErrStage, err, "decoding %s", path)
	}
	return &cfg, nil
}

// Submit stages cfg at scratchPath and updates the distribution with the
// staged document, guarded by the snapshot's ETag. A changed distribution is
// reported as ErrStaleETag; nothing is retried.
func Submit(ctx context.Context, client Client, snap *Snapshot, cfg *cftypes.DistributionConfig, scratchPath string) (*Result, error) {
	if err := Stage(scratchPath, cfg); err != nil {
		return nil, err
	}
	staged, err := LoadStaged(scratchPath)
	if err != nil {
		return nil, err
	}

	resp, err := client.UpdateDistribution(ctx, &cloudfront.UpdateDistributionInput{
		Id:                 aws.String(snap.ID),
		DistributionConfig: staged,
		IfMatch:            aws.String(snap.ETag),
	})
	if err != nil {
		var stale *cftypes.PreconditionFailed
		if errors.As(err, &stale) {
			return nil, Err(ErrStaleETag, err, "distribution %s was modified after ETag %s was read", snap.ID, snap.ETag)
		}
		return nil, Err(ErrSubmit, err, "distribution %s: %s", snap.ID, describe(err))
	}

	res := &Result{ID: snap.ID, ETag: aws.ToString(resp.ETag)}
	if d := resp.Distribution; d != nil {
		res.Status = aws.ToString(d.Status)
		res.DomainName = aws.ToString(d.DomainName)
	}
	return res, nil
}

// Change is one JSON patch operation between two configs.
type Change struct {
	Op    string
	Path  string
	Value any
}

func (c Change) String() string {
	if c.Op == "remove" {
		return fmt.Sprintf("%s %s", c.Op, c.Path)
	}
	v, _ := json.Marshal(c.Value)
	return fmt.Sprintf("%s %s %s", c.Op, c.Path, v)
}
