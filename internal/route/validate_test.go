package route

import (
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	cftypes "github.com/aws/aws-sdk-go-v2/service/cloudfront/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func messages(errs []ValidationError) string {
	var parts []string
	for _, e := range errs {
		parts = append(parts, e.Error())
	}
	return strings.Join(parts, "\n")
}

func TestValidate_Valid(t *testing.T) {
	cfg := distConfig(origin("S3-origin", "b"), origin("API-Gateway-prod", "a"))
	cfg.CacheBehaviors = &cftypes.CacheBehaviors{
		Quantity: aws.Int32(1),
		Items:    []cftypes.CacheBehavior{behavior("/api/*", "API-Gateway-prod")},
	}
	assert.Empty(t, Validate(cfg))
}

func TestValidate_NoOrigins(t *testing.T) {
	errs := Validate(&cftypes.DistributionConfig{})
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Message, "no origins")
}

func TestValidate_DuplicateOrigin(t *testing.T) {
	cfg := distConfig(origin("S3-origin", "b"), origin("S3-origin", "c"))
	assert.Contains(t, messages(Validate(cfg)), "S3-origin: duplicate origin id")
}

func TestValidate_QuantityMismatch(t *testing.T) {
	cfg := distConfig(origin("S3-origin", "b"))
	cfg.Origins.Quantity = aws.Int32(3)
	cfg.CacheBehaviors = &cftypes.CacheBehaviors{Quantity: aws.Int32(1)}

	msg := messages(Validate(cfg))
	assert.Contains(t, msg, "(origins): quantity 3 does not match 1 items")
	assert.Contains(t, msg, "(behaviors): quantity 1 does not match 0 items")
}

func TestValidate_BehaviorProblems(t *testing.T) {
	cfg := distConfig(origin("S3-origin", "b"))
	cfg.CacheBehaviors = &cftypes.CacheBehaviors{
		Quantity: aws.Int32(2),
		Items: []cftypes.CacheBehavior{
			behavior("/api/*", "S3-origin"),
			behavior("/api/*", "API-Gateway-prod"),
		},
	}

	msg := messages(Validate(cfg))
	assert.Contains(t, msg, "/api/*: duplicate path pattern")
	assert.Contains(t, msg, `/api/*: targets unknown origin "API-Gateway-prod"`)
}

func TestValidate_DefaultBehaviorTarget(t *testing.T) {
	cfg := distConfig(origin("API-Gateway-prod", "a"))
	msg := messages(Validate(cfg))
	assert.Contains(t, msg, `default behavior targets unknown origin "S3-origin"`)
}

func originGroup(id string, members ...string) cftypes.OriginGroup {
	g := cftypes.OriginGroup{
		Id:      aws.String(id),
		Members: &cftypes.OriginGroupMembers{Quantity: aws.Int32(int32(len(members)))},
	}
	for _, m := range members {
		g.Members.Items = append(g.Members.Items, cftypes.OriginGroupMember{OriginId: aws.String(m)})
	}
	return g
}

func TestValidate_OriginGroupTargets(t *testing.T) {
	cfg := distConfig(origin("S3-primary", "b"), origin("S3-failover", "c"))
	cfg.OriginGroups = &cftypes.OriginGroups{
		Quantity: aws.Int32(1),
		Items:    []cftypes.OriginGroup{originGroup("site-group", "S3-primary", "S3-failover")},
	}
	cfg.DefaultCacheBehavior.TargetOriginId = aws.String("site-group")
	cfg.CacheBehaviors = &cftypes.CacheBehaviors{
		Quantity: aws.Int32(1),
		Items:    []cftypes.CacheBehavior{behavior("/assets/*", "site-group")},
	}

	assert.Empty(t, Validate(cfg))
}

func TestValidate_UnknownGroupTarget(t *testing.T) {
	cfg := distConfig(origin("S3-origin", "b"))
	cfg.OriginGroups = &cftypes.OriginGroups{Quantity: aws.Int32(0)}
	cfg.CacheBehaviors = &cftypes.CacheBehaviors{
		Quantity: aws.Int32(1),
		Items:    []cftypes.CacheBehavior{behavior("/assets/*", "site-group")},
	}

	assert.Contains(t, messages(Validate(cfg)), `/assets/*: targets unknown origin "site-group"`)
}
