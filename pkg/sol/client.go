package sol

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Options configures a Client.
type Options struct {
	Endpoint     string
	JitoEndpoint string
	// RPS caps requests per second sent to Endpoint.
	RPS          int
	MaxRetries   uint
	RetryBackoff time.Duration
	Logger       *zap.Logger
}

// Client is a rate-limited Solana RPC client with optional Jito bundle
// submission.
type Client struct {
	rpcClient  *rpc.Client
	jitoClient *JitoClient
	limiter    *rate.Limiter
	log        *zap.Logger

	maxRetries   uint
	retryBackoff time.Duration
}

// NewClient creates a client for opts.Endpoint. A Jito endpoint that cannot be
// reached is logged and left disabled.
func NewClient(ctx context.Context, opts Options) (*Client, error) {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.RPS <= 0 {
		opts.RPS = 10
	}
	if opts.MaxRetries == 0 {
		opts.MaxRetries = 1
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = 200 * time.Millisecond
	}
	c := &Client{
		rpcClient:    rpc.New(opts.Endpoint),
		limiter:      rate.NewLimiter(rate.Limit(opts.RPS), opts.RPS),
		log:          opts.Logger,
		maxRetries:   opts.MaxRetries,
		retryBackoff: opts.RetryBackoff,
	}

	if opts.JitoEndpoint != "" {
		jitoClient, err := NewJitoClient(ctx, opts.JitoEndpoint, opts.Logger)
		if err != nil {
			c.log.Warn("jito disabled", zap.String("endpoint", opts.JitoEndpoint), zap.Error(err))
		} else {
			c.jitoClient = jitoClient
		}
	}
	return c, nil
}

// retry runs op with exponential backoff. Errors wrapped with
// backoff.Permanent stop immediately.
func retry[T any](ctx context.Context, c *Client, call string, op func() (T, error)) (T, error) {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.retryBackoff
	policy.MaxInterval = c.retryBackoff * 10

	return backoff.Retry(ctx, op,
		backoff.WithBackOff(policy),
		backoff.WithMaxTries(c.maxRetries),
		backoff.WithNotify(func(err error, d time.Duration) {
			c.log.Warn("rpc retry", zap.String("call", call), zap.Error(err), zap.Duration("backoff", d))
		}))
}
