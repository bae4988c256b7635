package dynamo

import (
	"context"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"

	"github.com/cuemby/collstore/pkg/collstore"
)

func init() {
	collstore.Register("dynamodb", connect)
}

// connect implements collstore.Factory for
// dynamodb://[region][/tablePrefix]?endpoint=...&provision=...&provision_<table>=...
// connection URLs. A non-empty host is treated as the AWS region; an
// explicit "endpoint" query parameter overrides the resolved endpoint
// (DynamoDB Local, a VPC endpoint).
func connect(ctx context.Context, u *url.URL, opts collstore.ConnectOptions) (collstore.Database, error) {
	q := u.Query()

	var loadOpts []func(*awsconfig.LoadOptions) error
	if u.Host != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(u.Host))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, &collstore.ConfigRejectedError{Reason: "dynamo: " + err.Error()}
	}

	client := dynamodb.NewFromConfig(cfg, func(o *dynamodb.Options) {
		if endpoint := q.Get("endpoint"); endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
		// Every call already goes through withRetry (§4.3.4), which
		// classifies transient errors, records metrics, and backs off
		// with jitter. Leaving the SDK's own standard retryer in place
		// would retry the same call again underneath that loop, so it's
		// replaced with a retryer that always defers to the caller.
		o.Retryer = aws.NopRetryer{}
	})

	prefix := strings.Trim(u.Path, "/")
	if prefix != "" {
		prefix += "_"
	}

	provFor := resolveProvision(q, opts.ProvisionResolver)
	return newDatabase(client, prefix, provFor), nil
}
