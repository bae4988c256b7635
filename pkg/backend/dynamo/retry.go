package dynamo

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"time"

	smithyhttp "github.com/aws/smithy-go/transport/http"

	"github.com/cuemby/collstore/internal/log"
	"github.com/cuemby/collstore/internal/metrics"
)

// transientReasons are the DynamoDB error-type suffixes §4.3.4 names as
// retryable, beyond a bare HTTP 5xx.
var transientReasons = []string{
	"LimitExceededException",
	"ProvisionedThroughputExceededException",
	"RequestLimitExceeded",
	"ThrottlingException",
}

func isTransient(err error) (string, bool) {
	var re *smithyhttp.ResponseError
	if errors.As(err, &re) && re.Response != nil && re.Response.StatusCode >= 500 {
		return "http5xx", true
	}
	msg := err.Error()
	for _, r := range transientReasons {
		if strings.Contains(msg, r) {
			return r, true
		}
	}
	return "", false
}

// withRetry runs op, retrying transient failures with exponential backoff
// and jitter until ctx is done. Retries share ctx's deadline (§5), so a
// caller-supplied timeout bounds the whole retry loop, not each attempt.
func withRetry(ctx context.Context, op func(ctx context.Context) error) error {
	backoff := 50 * time.Millisecond
	const maxBackoff = 5 * time.Second
	for {
		err := op(ctx)
		if err == nil {
			return nil
		}
		reason, retryable := isTransient(err)
		if !retryable {
			return err
		}
		metrics.RetryAttempts.WithLabelValues(reason).Inc()
		log.WithBackend("dynamo").Debug().Str("reason", reason).Dur("backoff", backoff).Msg("retrying transient dynamo error")

		jittered := backoff/2 + time.Duration(rand.Int63n(int64(backoff/2+1)))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(jittered):
		}
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}
