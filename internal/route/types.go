package route

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	cftypes "github.com/aws/aws-sdk-go-v2/service/cloudfront/types"
	"github.com/micahrl/cfroute/internal/config"
)

var ErrInvalidRecord = errors.New("invalid record")

// Origin is a custom (non-S3) origin identified by ID.
type Origin struct {
	ID                    string
	DomainName            string
	Path                  string
	ProtocolPolicy        cftypes.OriginProtocolPolicy
	HTTPPort              int32
	HTTPSPort             int32
	SSLProtocols          []cftypes.SslProtocol
	ReadTimeout           int32
	KeepaliveTimeout      int32
	ConnectionAttempts    int32
	ConnectionTimeout     int32
	OriginAccessControlID string
}

// Behavior is a cache behavior identified by its path pattern.
type Behavior struct {
	PathPattern           string
	TargetOriginID        string
	ViewerProtocolPolicy  cftypes.ViewerProtocolPolicy
	AllowedMethods        []cftypes.Method
	CachedMethods         []cftypes.Method
	CachePolicyID         string
	OriginRequestPolicyID string
	Compress              bool
	FunctionARN           string // viewer-request function, optional
}

// CloudFront only accepts these method sets.
var (
	allowedMethodSets = [][]cftypes.Method{
		{cftypes.MethodGet, cftypes.MethodHead},
		{cftypes.MethodGet, cftypes.MethodHead, cftypes.MethodOptions},
		{cftypes.MethodGet, cftypes.MethodHead, cftypes.MethodOptions, cftypes.MethodPut, cftypes.MethodPost, cftypes.MethodPatch, cftypes.MethodDelete},
	}
	cachedMethodSets = [][]cftypes.Method{
		{cftypes.MethodGet, cftypes.MethodHead},
		{cftypes.MethodGet, cftypes.MethodHead, cftypes.MethodOptions},
	}
)

// NewOrigin builds an Origin targeting domain from the configured connection
// settings.
func NewOrigin(domain string, c config.OriginConfig) (*Origin, error) {
	o := &Origin{
		ID:                    strings.TrimSpace(c.ID),
		DomainName:            strings.TrimSpace(domain),
		Path:                  c.Path,
		ProtocolPolicy:        cftypes.OriginProtocolPolicy(c.ProtocolPolicy),
		HTTPPort:              c.HTTPPort,
		HTTPSPort:             c.HTTPSPort,
		ReadTimeout:           c.ReadTimeout,
		KeepaliveTimeout:      c.KeepaliveTimeout,
		ConnectionAttempts:    c.ConnectionAttempts,
		ConnectionTimeout:     c.ConnectionTimeout,
		OriginAccessControlID: c.OriginAccessControlID,
	}
	for _, p := range c.SSLProtocols {
		o.SSLProtocols = append(o.SSLProtocols, cftypes.SslProtocol(p))
	}
	if err := o.validate(); err != nil {
		return nil, err
	}
	return o, nil
}

func (o *Origin) validate() error {
	var problems []string
	if o.ID == "" {
		problems = append(problems, "id is empty")
	}
	if o.DomainName == "" {
		problems = append(problems, "domain name is empty")
	} else if strings.Contains(o.DomainName, "://") || strings.ContainsAny(o.DomainName, "/ ") {
		problems = append(problems, fmt.Sprintf("domain name %q must be a bare host name", o.DomainName))
	}
	if o.Path != "" && (!strings.HasPrefix(o.Path, "/") || strings.HasSuffix(o.Path, "/")) {
		problems = append(problems, fmt.Sprintf("origin path %q must start with / and not end with /", o.Path))
	}
	if !slices.Contains(o.ProtocolPolicy.Values(), o.ProtocolPolicy) {
		problems = append(problems, fmt.Sprintf("unknown protocol policy %q", o.ProtocolPolicy))
	}
	if !validPort(o.HTTPPort) || !validPort(o.HTTPSPort) {
		problems = append(problems, fmt.Sprintf("ports out of range (http %d, https %d)", o.HTTPPort, o.HTTPSPort))
	}
	if len(o.SSLProtocols) == 0 {
		problems = append(problems, "no SSL protocols")
	}
	for _, p := range o.SSLProtocols {
		if !slices.Contains(p.Values(), p) {
			problems = append(problems, fmt.Sprintf("unknown SSL protocol %q", p))
		}
	}
	if o.ReadTimeout < 1 || o.KeepaliveTimeout < 1 {
		problems = append(problems, "read and keepalive timeouts must be positive")
	}
	if o.ConnectionAttempts < 1 || o.ConnectionAttempts > 3 {
		problems = append(problems, fmt.Sprintf("connection attempts %d not in 1..3", o.ConnectionAttempts))
	}
	if o.ConnectionTimeout < 1 || o.ConnectionTimeout > 10 {
		problems = append(problems, fmt.Sprintf("connection timeout %d not in 1..10", o.ConnectionTimeout))
	}
	return recordError("origin", o.ID, problems)
}

// SDK returns the complete CloudFront record for o. Every optional container
// is populated so the record replaces any existing one wholesale.
func (o *Origin) SDK() cftypes.Origin {
	return cftypes.Origin{
		Id:         aws.String(o.ID),
		DomainName: aws.String(o.DomainName),
		OriginPath: aws.String(o.Path),
		CustomHeaders: &cftypes.CustomHeaders{
			Quantity: aws.Int32(0),
		},
		CustomOriginConfig: &cftypes.CustomOriginConfig{
			HTTPPort:             aws.Int32(o.HTTPPort),
			HTTPSPort:            aws.Int32(o.HTTPSPort),
			OriginProtocolPolicy: o.ProtocolPolicy,
			OriginSslProtocols: &cftypes.OriginSslProtocols{
				Quantity: aws.Int32(int32(len(o.SSLProtocols))),
				Items:    slices.Clone(o.SSLProtocols),
			},
			OriginReadTimeout:      aws.Int32(o.ReadTimeout),
			OriginKeepaliveTimeout: aws.Int32(o.KeepaliveTimeout),
		},
		ConnectionAttempts:    aws.Int32(o.ConnectionAttempts),
		ConnectionTimeout:     aws.Int32(o.ConnectionTimeout),
		OriginShield:          &cftypes.OriginShield{Enabled: aws.Bool(false)},
		OriginAccessControlId: aws.String(o.OriginAccessControlID),
	}
}

// NewBehavior builds a Behavior routing to targetOriginID. functionARN may be
// empty.
func NewBehavior(targetOriginID string, c config.BehaviorConfig, functionARN string) (*Behavior, error) {
	b := &Behavior{
		PathPattern:           strings.TrimSpace(c.PathPattern),
		TargetOriginID:        targetOriginID,
		ViewerProtocolPolicy:  cftypes.ViewerProtocolPolicy(c.ViewerProtocolPolicy),
		AllowedMethods:        toMethods(c.AllowedMethods),
		CachedMethods:         toMethods(c.CachedMethods),
		CachePolicyID:         c.CachePolicyID,
		OriginRequestPolicyID: c.OriginRequestPolicyID,
		Compress:              c.Compress,
		FunctionARN:           functionARN,
	}
	if err := b.validate(); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *Behavior) validate() error {
	var problems []string
	switch {
	case b.PathPattern == "":
		problems = append(problems, "path pattern is empty")
	case b.PathPattern == "*":
		problems = append(problems, "path pattern * is reserved for the default behavior")
	case len(b.PathPattern) > 255:
		problems = append(problems, "path pattern exceeds 255 characters")
	}
	if b.TargetOriginID == "" {
		problems = append(problems, "target origin id is empty")
	}
	if !slices.Contains(b.ViewerProtocolPolicy.Values(), b.ViewerProtocolPolicy) {
		problems = append(problems, fmt.Sprintf("unknown viewer protocol policy %q", b.ViewerProtocolPolicy))
	}
	if !oneOfSets(b.AllowedMethods, allowedMethodSets) {
		problems = append(problems, fmt.Sprintf("unsupported allowed methods %v", b.AllowedMethods))
	}
	if !oneOfSets(b.CachedMethods, cachedMethodSets) {
		problems = append(problems, fmt.Sprintf("unsupported cached methods %v", b.CachedMethods))
	} else {
		for _, m := range b.CachedMethods {
			if !slices.Contains(b.AllowedMethods, m) {
				problems = append(problems, fmt.Sprintf("cached method %s is not allowed", m))
			}
		}
	}
	if b.CachePolicyID == "" {
		problems = append(problems, "cache policy id is empty")
	}
	return recordError("behavior", b.PathPattern, problems)
}

// SDK returns the complete CloudFront cache behavior for b.
func (b *Behavior) SDK() cftypes.CacheBehavior {
	functions := &cftypes.FunctionAssociations{Quantity: aws.Int32(0)}
	if b.FunctionARN != "" {
		functions = &cftypes.FunctionAssociations{
			Quantity: aws.Int32(1),
			Items: []cftypes.FunctionAssociation{
				{EventType: cftypes.EventTypeViewerRequest, FunctionARN: aws.String(b.FunctionARN)},
			},
		}
	}
	cb := cftypes.CacheBehavior{
		PathPattern:    aws.String(b.PathPattern),
		TargetOriginId: aws.String(b.TargetOriginID),
		TrustedSigners: &cftypes.TrustedSigners{
			Enabled:  aws.Bool(false),
			Quantity: aws.Int32(0),
		},
		TrustedKeyGroups: &cftypes.TrustedKeyGroups{
			Enabled:  aws.Bool(false),
			Quantity: aws.Int32(0),
		},
		ViewerProtocolPolicy: b.ViewerProtocolPolicy,
		AllowedMethods: &cftypes.AllowedMethods{
			Quantity: aws.Int32(int32(len(b.AllowedMethods))),
			Items:    slices.Clone(b.AllowedMethods),
			CachedMethods: &cftypes.CachedMethods{
				Quantity: aws.Int32(int32(len(b.CachedMethods))),
				Items:    slices.Clone(b.CachedMethods),
			},
		},
		SmoothStreaming:            aws.Bool(false),
		Compress:                   aws.Bool(b.Compress),
		LambdaFunctionAssociations: &cftypes.LambdaFunctionAssociations{Quantity: aws.Int32(0)},
		FunctionAssociations:       functions,
		FieldLevelEncryptionId:     aws.String(""),
		CachePolicyId:              aws.String(b.CachePolicyID),
	}
	if b.OriginRequestPolicyID != "" {
		cb.OriginRequestPolicyId = aws.String(b.OriginRequestPolicyID)
	}
	return cb
}

func toMethods(names []string) []cftypes.Method {
	methods := make([]cftypes.Method, 0, len(names))
	for _, n := range names {
		methods = append(methods, cftypes.Method(strings.ToUpper(strings.TrimSpace(n))))
	}
	return methods
}

// oneOfSets reports whether methods equals one of sets, ignoring order.
func oneOfSets(methods []cftypes.Method, sets [][]cftypes.Method) bool {
	for _, set := range sets {
		if len(set) != len(methods) {
			continue
		}
		match := true
		for _, m := range set {
			if !slices.Contains(methods, m) {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}

func validPort(p int32) bool { return p >= 1 && p <= 65535 }

func recordError(kind, key string, problems []string) error {
	if len(problems) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %s %q: %s", ErrInvalidRecord, kind, key, strings.Join(problems, "; "))
}
