package route

import (
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	cftypes "github.com/aws/aws-sdk-go-v2/service/cloudfront/types"
)

// ValidationError describes a single structural problem in a distribution
// config.
type ValidationError struct {
	Key     string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Key, e.Message)
}

// Validate checks the structure a merged config must have before it is
// submitted. It does not judge whether origins or policies are sensible.
func Validate(cfg *cftypes.DistributionConfig) []ValidationError {
	var errs []ValidationError

	if cfg.Origins == nil || len(cfg.Origins.Items) == 0 {
		return append(errs, ValidationError{Key: "(origins)", Message: "distribution has no origins"})
	}
	if q := aws.ToInt32(cfg.Origins.Quantity); int(q) != len(cfg.Origins.Items) {
		errs = append(errs, ValidationError{
			Key:     "(origins)",
			Message: fmt.Sprintf("quantity %d does not match %d items", q, len(cfg.Origins.Items)),
		})
	}

	// Behaviors may target an origin or an origin group.
	targets := make(map[string]bool, len(cfg.Origins.Items))
	for _, o := range cfg.Origins.Items {
		id := aws.ToString(o.Id)
		if id == "" {
			errs = append(errs, ValidationError{Key: "(origins)", Message: "origin without id"})
			continue
		}
		if targets[id] {
			errs = append(errs, ValidationError{Key: id, Message: "duplicate origin id"})
		}
		targets[id] = true
	}
	if cfg.OriginGroups != nil {
		for _, g := range cfg.OriginGroups.Items {
			if id := aws.ToString(g.Id); id != "" {
				targets[id] = true
			}
		}
	}

	if cfg.DefaultCacheBehavior != nil {
		target := aws.ToString(cfg.DefaultCacheBehavior.TargetOriginId)
		if !targets[target] {
			errs = append(errs, ValidationError{
				Key:     "*",
				Message: fmt.Sprintf("default behavior targets unknown origin %q", target),
			})
		}
	}

	if cfg.CacheBehaviors == nil {
		return errs
	}
	if q := aws.ToInt32(cfg.CacheBehaviors.Quantity); int(q) != len(cfg.CacheBehaviors.Items) {
		errs = append(errs, ValidationError{
			Key:     "(behaviors)",
			Message: fmt.Sprintf("quantity %d does not match %d items", q, len(cfg.CacheBehaviors.Items)),
		})
	}
	patterns := make(map[string]bool, len(cfg.CacheBehaviors.Items))
	for _, b := range cfg.CacheBehaviors.Items {
		pattern := aws.ToString(b.PathPattern)
		if patterns[pattern] {
			errs = append(errs, ValidationError{Key: pattern, Message: "duplicate path pattern"})
		}
		patterns[pattern] = true

		target := aws.ToString(b.TargetOriginId)
		if !targets[target] {
			errs = append(errs, ValidationError{
				Key:     pattern,
				Message: fmt.Sprintf("targets unknown origin %q", target),
			})
		}
	}

	return errs
}
