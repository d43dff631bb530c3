package distribution

import (
	cftypes "github.com/aws/aws-sdk-go-v2/service/cloudfront/types"
	json "github.com/goccy/go-json"
	"github.com/wI2L/jsondiff"
)

// Diff returns the JSON patch that turns before into after.
func Diff(before, after *cftypes.DistributionConfig) ([]Change, error) {
	src, err := json.Marshal(before)
	if err != nil {
		return nil, err
	}
	dst, err := json.Marshal(after)
	if err != nil {
		return nil, err
	}
	patch, err := jsondiff.CompareJSON(src, dst)
	if err != nil {
		return nil, err
	}

	changes := make([]Change, 0, len(patch))
	for _, op := range patch {
		changes = append(changes, Change{
			Op:    op.Type,
			Path:  string(op.Path),
			Value: op.Value,
		})
	}
	return changes, nil
}

// Clone deep-copies cfg through its JSON form.
func Clone(cfg *cftypes.DistributionConfig) (*cftypes.DistributionConfig, error) {
	data, err := json.Marshal(cfg)
	if err != nil {
		return nil, err
	}
	var out cftypes.DistributionConfig
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
