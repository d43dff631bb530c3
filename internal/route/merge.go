package route

import (
	"github.com/aws/aws-sdk-go-v2/aws"
	cftypes "github.com/aws/aws-sdk-go-v2/service/cloudfront/types"
)

// Action records what a merge did to a collection.
type Action int

const (
	Appended Action = iota
	Replaced
)

func (a Action) String() string {
	if a == Replaced {
		return "replaced"
	}
	return "appended"
}

// MergeOrigin puts origin into cfg.Origins. An origin with the same Id is
// overwritten in place; otherwise origin is appended and Quantity is set to
// the new length.
func MergeOrigin(cfg *cftypes.DistributionConfig, origin cftypes.Origin) Action {
	if cfg.Origins == nil {
		cfg.Origins = &cftypes.Origins{}
	}
	id := aws.ToString(origin.Id)
	for i := range cfg.Origins.Items {
		if aws.ToString(cfg.Origins.Items[i].Id) == id {
			cfg.Origins.Items[i] = origin
			return Replaced
		}
	}
	cfg.Origins.Items = append(cfg.Origins.Items, origin)
	cfg.Origins.Quantity = aws.Int32(int32(len(cfg.Origins.Items)))
	return Appended
}

// MergeBehavior puts behavior into cfg.CacheBehaviors, keyed on PathPattern.
// Appended behaviors land after every existing behavior, so an earlier,
// broader pattern keeps precedence over them.
func MergeBehavior(cfg *cftypes.DistributionConfig, behavior cftypes.CacheBehavior) Action {
	if cfg.CacheBehaviors == nil {
		cfg.CacheBehaviors = &cftypes.CacheBehaviors{}
	}
	if cfg.CacheBehaviors.Items == nil {
		cfg.CacheBehaviors.Items = []cftypes.CacheBehavior{}
	}
	pattern := aws.ToString(behavior.PathPattern)
	for i := range cfg.CacheBehaviors.Items {
		if aws.ToString(cfg.CacheBehaviors.Items[i].PathPattern) == pattern {
			cfg.CacheBehaviors.Items[i] = behavior
			return Replaced
		}
	}
	cfg.CacheBehaviors.Items = append(cfg.CacheBehaviors.Items, behavior)
	cfg.CacheBehaviors.Quantity = aws.Int32(int32(len(cfg.CacheBehaviors.Items)))
	return Appended
}

// Shadowing returns the path patterns listed before pattern in cfg that
// would also match requests meant for it.
func Shadowing(cfg *cftypes.DistributionConfig, pattern string) []string {
	if cfg.CacheBehaviors == nil {
		return nil
	}
	sample := samplePath(pattern)
	var shadows []string
	for _, b := range cfg.CacheBehaviors.Items {
		p := aws.ToString(b.PathPattern)
		if p == pattern {
			break
		}
		if globMatch(p, sample) {
			shadows = append(shadows, p)
		}
	}
	return shadows
}

// samplePath turns a pattern into a concrete path it matches.
func samplePath(pattern string) string {
	out := make([]byte, 0, len(pattern))
	for i := 0; i < len(pattern); i++ {
		switch pattern[i] {
		case '*':
		case '?':
			out = append(out, 'x')
		default:
			out = append(out, pattern[i])
		}
	}
	return string(out)
}

// globMatch implements CloudFront path pattern matching: * matches any run
// of characters including /, ? matches exactly one.
func globMatch(pattern, name string) bool {
	px, nx := 0, 0
	nextPx, nextNx := 0, 0
	for px < len(pattern) || nx < len(name) {
		if px < len(pattern) {
			switch c := pattern[px]; c {
			case '*':
				nextPx, nextNx = px, nx+1
				px++
				continue
			case '?':
				if nx < len(name) {
					px++
					nx++
					continue
				}
			default:
				if nx < len(name) && name[nx] == c {
					px++
					nx++
					continue
				}
			}
		}
		if 0 < nextNx && nextNx <= len(name) {
			px, nx = nextPx, nextNx
			continue
		}
		return false
	}
	return true
}
