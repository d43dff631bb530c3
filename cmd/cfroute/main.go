package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/cloudfront"
	"github.com/aws/aws-sdk-go-v2/service/cloudfrontkeyvaluestore"
	"github.com/micahrl/cfroute/internal/config"
	"github.com/micahrl/cfroute/internal/provision"
	log "github.com/sirupsen/logrus"
)

var version = "dev"

// connectFunc builds the remote clients for a validated config.
type connectFunc func(ctx context.Context, cfg config.Config) (provision.Clients, error)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr, newClients))
}

// run executes one invocation and returns the process exit code. Results go
// to stdout, progress and errors to stderr.
func run(args []string, stdout, stderr io.Writer, connect connectFunc) int {
	log.SetOutput(stderr)
	log.SetFormatter(&log.TextFormatter{DisableTimestamp: true})
	log.SetLevel(log.InfoLevel)

	// With no subcommand, apply.
	cmd := "apply"
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		cmd, args = args[0], args[1:]
	}

	switch cmd {
	case "apply":
		return runApply(args, false, stdout, stderr, connect)
	case "plan":
		return runApply(args, true, stdout, stderr, connect)
	case "version":
		fmt.Fprintln(stdout, version)
		return 0
	case "help":
		usage(stderr)
		return 0
	default:
		usage(stderr)
		return 1
	}
}

func usage(w io.Writer) {
	fmt.Fprintf(w, `Usage: cfroute [command] [flags]

Commands:
  apply    Route a path pattern of a CloudFront distribution to a backend origin (default)
  plan     Show the changes apply would make, without writing anything
  version  Print version

Run 'cfroute apply --help' for flags.
`)
}

func fatal(w io.Writer, format string, args ...any) int {
	fmt.Fprintf(w, "error: "+format+"\n", args...)
	return 1
}

func runApply(args []string, planOnly bool, stdout, stderr io.Writer, connect connectFunc) int {
	fs := flag.NewFlagSet("apply", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "cfroute.toml", "path to config file")
	envFile := fs.String("env-file", os.Getenv("ENV_FILE"), "dotenv file to load (default .env)")
	distributionID := fs.String("distribution-id", "", "CloudFront distribution id")
	backendDomain := fs.String("backend-domain", "", "backend origin domain name")
	originID := fs.String("origin-id", "", "origin id to add or update")
	pathPattern := fs.String("path-pattern", "", "cache behavior path pattern routed to the origin")
	functionName := fs.String("function-name", "", "CloudFront Function to associate as viewer-request")
	registryKVS := fs.String("registry-kvs-name", "", "CloudFront KVS that receives the routing table")
	scratchFile := fs.String("scratch-file", "", "where the merged config is staged before submission")
	region := fs.String("region", "", "AWS region override")
	endpoint := fs.String("endpoint", "", "CloudFront API endpoint override")
	dryRun := fs.Bool("dry-run", false, "same as the plan command")
	verbose := fs.Bool("verbose", false, "debug logging")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	if *verbose {
		log.SetLevel(log.DebugLevel)
	}

	// Config file, then environment, then flags
	if err := config.LoadEnvFile(*envFile); err != nil {
		return fatal(stderr, "%v", err)
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		return fatal(stderr, "%v", err)
	}
	cfg.ApplyEnv(os.LookupEnv)

	if *distributionID != "" {
		cfg.DistributionID = *distributionID
	}
	if *backendDomain != "" {
		cfg.BackendDomain = *backendDomain
	}
	if *originID != "" {
		cfg.Origin.ID = *originID
	}
	if *pathPattern != "" {
		cfg.Behavior.PathPattern = *pathPattern
	}
	if *functionName != "" {
		cfg.Behavior.FunctionName = *functionName
	}
	if *registryKVS != "" {
		cfg.Registry.KVSName = *registryKVS
	}
	if *scratchFile != "" {
		cfg.ScratchFile = *scratchFile
	}
	if *region != "" {
		cfg.Region = *region
	}
	if *endpoint != "" {
		cfg.Endpoint = *endpoint
	}
	if err := cfg.Validate(); err != nil {
		return fatal(stderr, "%v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	clients, err := connect(ctx, cfg)
	if err != nil {
		return fatal(stderr, "loading AWS config: %v", err)
	}

	planOnly = planOnly || *dryRun
	report, err := provision.Run(ctx, cfg, clients, planOnly)
	if err != nil {
		if report != nil && report.Result != nil {
			printSummary(stdout, report, cfg)
		}
		return fatal(stderr, "%v", err)
	}

	if planOnly {
		printPlan(stdout, report)
		fmt.Fprintf(stderr, "\nDry run complete. No changes made.\n")
		return 0
	}
	printSummary(stdout, report, cfg)
	return 0
}
// newClients builds the CloudFront clients. An endpoint override targets a
// local emulator, which takes static test credentials.
func newClients(ctx context.Context, cfg config.Config) (provision.Clients, error) {
	var awsOpts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		awsOpts = append(awsOpts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.Endpoint != "" {
		awsOpts = append(awsOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider("test", "test", "")))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsOpts...)
	if err != nil {
		return provision.Clients{}, err
	}

	cfClient := cloudfront.NewFromConfig(awsCfg, func(o *cloudfront.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			if o.Region == "" {
				o.Region = "us-east-1"
			}
		}
	})
	kvsClient := cloudfrontkeyvaluestore.NewFromConfig(awsCfg, func(o *cloudfrontkeyvaluestore.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			if o.Region == "" {
				o.Region = "us-east-1"
			}
		}
	})

	return provision.Clients{
		Distributions: cfClient,
		Functions:     cfClient,
		Stores:        cfClient,
		KVS:           kvsClient,
	}, nil
}

func printPlan(w io.Writer, r *provision.Report) {
	fmt.Fprintf(w, "Distribution %s (ETag %s)\n", r.DistributionID, r.ETag)
	fmt.Fprintf(w, "  origin   %-20s %s\n", r.OriginID, r.OriginAction)
	fmt.Fprintf(w, "  behavior %-20s %s\n", r.PathPattern, r.BehaviorAction)
	for _, p := range r.Shadowed {
		fmt.Fprintf(w, "  warning: %s is evaluated before %s\n", p, r.PathPattern)
	}
	fmt.Fprintln(w, "\n=== Changes ===")
	if len(r.Changes) == 0 {
		fmt.Fprintln(w, "(none)")
	}
	for _, c := range r.Changes {
		fmt.Fprintln(w, c)
	}
}

func printSummary(w io.Writer, r *provision.Report, cfg config.Config) {
	res := r.Result
	fmt.Fprintf(w, "\nCloudFront distribution %s updated successfully.\n", res.ID)
	fmt.Fprintf(w, "  origin   %s (%s)\n", r.OriginID, r.OriginAction)
	fmt.Fprintf(w, "  behavior %s (%s)\n", r.PathPattern, r.BehaviorAction)
	fmt.Fprintf(w, "  new ETag %s, status %s\n", res.ETag, res.Status)
	if r.RegistryPlan != nil {
		fmt.Fprintf(w, "  route registry %s: %d puts, %d deletes\n",
			cfg.Registry.KVSName, len(r.RegistryPlan.Puts), len(r.RegistryPlan.Deletes))
	}
	fmt.Fprintln(w, "\nNext steps:")
	fmt.Fprintln(w, "1. Wait 5-10 minutes for CloudFront to deploy changes")
	host := res.DomainName
	if host == "" {
		host = "<distribution domain>"
	}
	fmt.Fprintf(w, "2. Point clients at https://%s%s instead of %s\n",
		host, strings.TrimSuffix(r.PathPattern, "*"), cfg.BackendDomain)
	fmt.Fprintln(w, "3. Test the application")
}
