// Package ocr talks to the OCR engine sidecar over gRPC.
//
// The wire contract is a single unary method taking the PNG bytes of a
// region crop (google.protobuf.BytesValue) and returning the recognised
// text (google.protobuf.StringValue). The language travels in metadata.
package ocr

import (
	"context"
	"time"

	apperrors "github.com/resultcap/platform/internal/errors"
	"github.com/resultcap/platform/internal/resilience"
	"github.com/resultcap/platform/internal/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// Config holds client settings.
type Config struct {
	Addr             string
	CallTimeout      time.Duration
	KeepaliveTime    time.Duration
	KeepaliveTimeout time.Duration
}

// DefaultConfig returns production defaults for addr.
func DefaultConfig(addr string) Config {
	return Config{
		Addr:             addr,
		CallTimeout:      DefaultCallTimeout,
		KeepaliveTime:    DefaultKeepaliveTime,
		KeepaliveTimeout: DefaultKeepaliveTimeout,
	}
}

// Client recognises text in image crops via the OCR sidecar.
type Client struct {
	conn    *grpc.ClientConn
	breaker *resilience.Breaker
	retry   resilience.RetryConfig
	timeout time.Duration
}

// New connects lazily to the sidecar; the first call establishes the channel.
func New(cfg Config, opts ...grpc.DialOption) (*Client, error) {
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = DefaultCallTimeout
	}
	dialOpts := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithChainUnaryInterceptor(trace.UnaryClientInterceptor()),
	}
	if cfg.KeepaliveTime > 0 {
		dialOpts = append(dialOpts, grpc.WithKeepaliveParams(keepalive.ClientParameters{
			Time:                cfg.KeepaliveTime,
			Timeout:             cfg.KeepaliveTimeout,
			PermitWithoutStream: true,
		}))
	}
	conn, err := grpc.NewClient(cfg.Addr, append(dialOpts, opts...)...)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeConfigInvalid, "ocr client").
			WithMetadata("addr", cfg.Addr)
	}
	return &Client{
		conn:    conn,
		breaker: resilience.New(resilience.OCRConfig()),
		retry:   resilience.OCRRetryConfig(),
		timeout: cfg.CallTimeout,
	}, nil
}

// Close closes the gRPC connection
func (c *Client) Close() error {
	return c.conn.Close()
}

// Breaker exposes the circuit breaker guarding the sidecar.
func (c *Client) Breaker() *resilience.Breaker {
	return c.breaker
}

// Recognize returns the text found in a PNG-encoded image.
func (c *Client) Recognize(ctx context.Context, image []byte, lang string) (string, error) {
	if lang == "" {
		lang = DefaultLanguage
	}
	ctx = metadata.AppendToOutgoingContext(ctx, LanguageKey, lang)

	var text string
	err := resilience.Retry(ctx, c.retry, func() error {
		return c.breaker.Execute(func() error {
			callCtx, cancel := context.WithTimeout(ctx, c.timeout)
			defer cancel()
			out := new(wrapperspb.StringValue)
			if err := c.conn.Invoke(callCtx, RecognizeMethod, wrapperspb.Bytes(image), out); err != nil {
				return apperrors.FromGRPCError(err, apperrors.CodeOCRFailed)
			}
			text = out.GetValue()
			return nil
		})
	})
	if err != nil {
		if err == resilience.ErrOpen {
			return "", apperrors.Wrap(err, apperrors.CodeOCRFailed, "ocr engine unavailable")
		}
		return "", apperrors.FromGRPCError(err, apperrors.CodeOCRFailed)
	}
	return text, nil
}

var _ Recognizer = (*Client)(nil)
