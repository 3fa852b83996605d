// Package upload sends classified screens to the result backend and reads
// back the structured play data.
package upload

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	apperrors "github.com/resultcap/platform/internal/errors"
	"github.com/resultcap/platform/internal/geometry"
	"github.com/resultcap/platform/internal/resilience"
	"github.com/resultcap/platform/internal/trace"
)

// Client defaults
const (
	DefaultTimeout       = 30 * time.Second
	DefaultEnrichTimeout = 5 * time.Second
	ImageContentType     = "image/png"
	maxErrorBody         = 512
)

// Config holds client settings.
type Config struct {
	BaseURL       string
	Timeout       time.Duration
	EnrichTimeout time.Duration
}

// Client uploads screens to the result backend.
type Client struct {
	base          string
	http          *http.Client
	breaker       *resilience.Breaker
	enrichRetry   resilience.RetryConfig
	timeout       time.Duration
	enrichTimeout time.Duration
}

// New creates a client for cfg.BaseURL.
func New(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.EnrichTimeout <= 0 {
		cfg.EnrichTimeout = DefaultEnrichTimeout
	}
	return &Client{
		base:          strings.TrimRight(cfg.BaseURL, "/"),
		http:          &http.Client{Transport: &trace.Transport{}},
		breaker:       resilience.New(resilience.UploadConfig()),
		enrichRetry:   resilience.EnrichRetryConfig(),
		timeout:       cfg.Timeout,
		enrichTimeout: cfg.EnrichTimeout,
	}
}

// Upload posts image as the given screen type. A response the backend
// could not verify is returned as an Outcome with Unverified set, not as an
// error. Network failures, timeouts and non-2xx responses are errors.
func (c *Client) Upload(ctx context.Context, image []byte, game geometry.Game, st geometry.ScreenType, auth Auth) (Outcome, error) {
	ctx, span := trace.StartSpan(ctx, trace.SpanUpload, game)
	span.SetScreenType(st)

	pd, err := resilience.ExecuteWithResult(c.breaker, func() (*PlayData, error) {
		return c.post(ctx, image, game, st, auth)
	})
	if err != nil {
		if stderrors.Is(err, resilience.ErrOpen) {
			err = apperrors.Wrap(err, apperrors.CodeUploadFailed, "result backend unavailable")
		}
		span.Finish(ctx, err)
		return Outcome{}, err
	}

	if pd == nil || !(pd.IsVerified || pd.Kind() == geometry.Versus || pd.Kind() == geometry.Collection) {
		span.SetAttr("verified", false)
		span.Finish(ctx, nil)
		return Outcome{Unverified: true}, nil
	}

	out := Outcome{PlayData: pd}
	if pd.Comparable() {
		best, err := c.PreviousBest(ctx, game, pd, auth)
		if err != nil {
			trace.Logger(ctx).Debug("previous best unavailable", "song_id", pd.SongID, "error", err)
		}
		out.Previous = best
	}
	span.SetAttr("verified", true)
	span.Finish(ctx, nil)
	return out, nil
}

func (c *Client) post(ctx context.Context, image []byte, game geometry.Game, st geometry.ScreenType, auth Auth) (*PlayData, error) {
	body, contentType, err := encodeForm(image, st)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternal, "build upload form")
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(game, "upload"), body)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeConfigInvalid, "build upload request")
	}
	req.Header.Set("Content-Type", contentType)
	if h := auth.Header(); h != "" {
		req.Header.Set("Authorization", h)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, transportError(err, apperrors.CodeUploadFailed, "upload request")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, statusError(resp, apperrors.CodeUploadFailed, "upload rejected")
	}

	var out uploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeUploadFailed, "decode upload response")
	}
	return out.PlayData, nil
}

// PreviousBest looks up the user's best on the same chart. A missing record
// is (nil, nil). Transient failures are retried briefly.
func (c *Client) PreviousBest(ctx context.Context, game geometry.Game, pd *PlayData, auth Auth) (*Best, error) {
	q := url.Values{}
	q.Set("songId", strconv.Itoa(pd.SongID))
	q.Set("button", strconv.Itoa(pd.Button))
	q.Set("pattern", pd.Pattern)
	endpoint := c.endpoint(game, "best") + "?" + q.Encode()

	var best *Best
	err := resilience.Retry(ctx, c.enrichRetry, func() error {
		b, err := c.getBest(ctx, endpoint, auth)
		best = b
		return err
	})
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeEnrichmentFailed, "previous best lookup").
			WithMetadata("song_id", strconv.Itoa(pd.SongID))
	}
	return best, nil
}

func (c *Client) getBest(ctx context.Context, endpoint string, auth Auth) (*Best, error) {
	ctx, cancel := context.WithTimeout(ctx, c.enrichTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeConfigInvalid, "build lookup request")
	}
	if h := auth.Header(); h != "" {
		req.Header.Set("Authorization", h)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, transportError(err, apperrors.CodeUnavailable, "lookup request")
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, nil
	case resilience.IsRetryableStatus(resp.StatusCode):
		return nil, statusError(resp, apperrors.CodeUnavailable, "lookup failed")
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, statusError(resp, apperrors.CodeInvalidArgument, "lookup rejected")
	}

	var out bestResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInvalidArgument, "decode lookup response")
	}
	return out.Best, nil
}

func (c *Client) endpoint(game geometry.Game, action string) string {
	return fmt.Sprintf("%s/v1/play/%s/%s", c.base, url.PathEscape(string(game)), action)
}

// encodeForm builds the multipart body: a "file" part holding the PNG and a
// "where" field naming the screen type.
func encodeForm(image []byte, st geometry.ScreenType) (io.Reader, string, error) {
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s.png"`, uuid.NewString()))
	h.Set("Content-Type", ImageContentType)
	part, err := w.CreatePart(h)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(image); err != nil {
		return nil, "", err
	}
	if err := w.WriteField("where", st.Tag()); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return body, w.FormDataContentType(), nil
}

func transportError(err error, code apperrors.Code, msg string) error {
	var netErr net.Error
	if stderrors.Is(err, context.DeadlineExceeded) || (stderrors.As(err, &netErr) && netErr.Timeout()) {
		return apperrors.Wrap(err, apperrors.CodeTimeout, msg+" timed out")
	}
	if stderrors.Is(err, context.Canceled) {
		return apperrors.Wrap(err, apperrors.CodeCancelled, msg+" cancelled")
	}
	return apperrors.Wrap(err, code, msg)
}

func statusError(resp *http.Response, code apperrors.Code, msg string) error {
	detail, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return apperrors.Newf(code, "%s: status %d", msg, resp.StatusCode).
		WithMetadata("status", strconv.Itoa(resp.StatusCode)).
		WithMetadata("body", strings.TrimSpace(string(detail)))
}
