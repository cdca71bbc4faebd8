// Package gateway implements the Gateway Client: an HTTPS façade, secured
// with mutual TLS, over the Availability Gateway API (spec §4.5/§6).
//
//	GET  /availability_gateway/get_batch_data?batch_id=<int>
//	GET  /availability_gateway/get_last_batch_id
//	POST /availability_gateway/approve_new_roots
//
// Grounded on das/network.go's typed-façade style (config struct + typed
// response structs + sentinel errors + New(config)) and
// p2p/req_resp.go's retry/backoff manager, adapted from a P2P
// request-response protocol to an HTTPS client. The mTLS transport setup
// (crypto/tls.Config, client cert/key, pinned server cert) has no analog
// in the teacher's P2P-only stack and is written directly against the
// standard library; see DESIGN.md.
package gateway

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"golang.org/x/time/rate"

	"github.com/starkware-libs/starkex-data-availability-committee/log"
	"github.com/starkware-libs/starkex-data-availability-committee/metrics"
)

// Gateway client errors.
var (
	// ErrNotYetAvailable is returned by GetBatchData when the requested
	// batch_id has no descriptor yet (the gateway hasn't produced it).
	ErrNotYetAvailable = errors.New("gateway: batch not yet available")
	// ErrStructural is returned for 4xx responses -- a client-side
	// request error that a retry cannot fix.
	ErrStructural = errors.New("gateway: structural request error")
	// ErrMaxRetries is returned once the retry budget is exhausted for a
	// retryable (network or 5xx) failure class.
	ErrMaxRetries = errors.New("gateway: max retries exceeded")
)

// Config configures the gateway client's endpoint, TLS material, and
// retry/rate-limit behavior.
type Config struct {
	// Endpoint is the availability gateway's base URL, e.g.
	// "https://gateway.example.com".
	Endpoint string
	// CertificatesPath is a directory containing user.crt, user.key (the
	// client certificate/key pair) and server.crt (the pinned server
	// certificate to trust, instead of the system root pool).
	CertificatesPath string
	// RequestTimeout bounds a single HTTP round trip.
	RequestTimeout time.Duration
	// Retry configures the backoff schedule for network/5xx failures.
	Retry RetryConfig
	// RequestsPerSecond throttles outbound request rate; zero disables
	// throttling.
	RequestsPerSecond float64
}

// DefaultConfig returns sane defaults: a 10s per-request timeout and the
// package's default retry schedule.
func DefaultConfig() Config {
	return Config{
		RequestTimeout:    10 * time.Second,
		Retry:             DefaultRetryConfig(),
		RequestsPerSecond: 10,
	}
}

// BatchDescriptor is the wire representation of a gateway batch
// descriptor, decoded from get_batch_data's JSON response. The primary
// tree's fields and the update_entries array-of-arrays shape are:
//
//	{batch_id, reference_batch_id, prev_batch_root, next_batch_root,
//	 update_entries: [[index, leaf_fields…], …]}
//
// Auxiliary trees travel in the auxiliary_prev_roots, auxiliary_next_roots
// and auxiliary_update_entries maps keyed by tree name; there is no
// separate order_root field.
type BatchDescriptor struct {
	BatchID          int64        `json:"batch_id"`
	ReferenceBatchID int64        `json:"reference_batch_id"`
	PrevRoot         string       `json:"prev_batch_root"`
	NextRoot         string       `json:"next_batch_root"`
	UpdateEntries    []DeltaEntry `json:"update_entries"`
	// AuxiliaryPrevRoots/AuxiliaryNextRoots/AuxiliaryUpdateEntries carry
	// the same (prev_batch_root, next_batch_root, update_entries) triple
	// as the primary tree for every auxiliary tree the active profile
	// declares (e.g. "order" for the perpetual profile, spec §6's
	// optional order_root), keyed by tree name.
	AuxiliaryPrevRoots     map[string]string       `json:"auxiliary_prev_roots,omitempty"`
	AuxiliaryNextRoots     map[string]string       `json:"auxiliary_next_roots,omitempty"`
	AuxiliaryUpdateEntries map[string][]DeltaEntry `json:"auxiliary_update_entries,omitempty"`
}

// DeltaEntry is a single update_entries element: `[index, leaf_fields…]`,
// an index followed by one or more hex-encoded field elements composing
// that leaf's canonical value (spec §3/§6). Each entry carries exactly the
// tree's LeafFieldCount fields (four for stark_ex's vault tree).
type DeltaEntry struct {
	Index      uint64
	LeafFields []string
}

// MarshalJSON encodes a DeltaEntry as the wire's `[index, leaf_fields…]`
// heterogeneous array.
func (e DeltaEntry) MarshalJSON() ([]byte, error) {
	arr := make([]interface{}, 0, len(e.LeafFields)+1)
	arr = append(arr, e.Index)
	for _, f := range e.LeafFields {
		arr = append(arr, f)
	}
	return json.Marshal(arr)
}

// UnmarshalJSON decodes the wire's `[index, leaf_fields…]` array into a
// DeltaEntry.
func (e *DeltaEntry) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("gateway: decoding update_entries element: %w", err)
	}
	if len(raw) < 1 {
		return fmt.Errorf("gateway: update_entries element has no index")
	}
	if err := json.Unmarshal(raw[0], &e.Index); err != nil {
		return fmt.Errorf("gateway: decoding update_entries index: %w", err)
	}
	e.LeafFields = make([]string, 0, len(raw)-1)
	for _, r := range raw[1:] {
		var s string
		if err := json.Unmarshal(r, &s); err != nil {
			return fmt.Errorf("gateway: decoding update_entries leaf field: %w", err)
		}
		e.LeafFields = append(e.LeafFields, s)
	}
	return nil
}

// ApproveNewRootsRequest is the payload for send_signature/
// approve_new_roots.
type ApproveNewRootsRequest struct {
	BatchID   int64  `json:"batch_id"`
	ClaimHash string `json:"claim_hash"` // hex-encoded
	Signature string `json:"signature"`  // hex-encoded
	SignerID  string `json:"signer_id"`
}

// ApproveNewRootsResponse is the gateway's acknowledgement.
type ApproveNewRootsResponse struct {
	Accepted bool `json:"accepted"`
}

// Client is a stateless façade over the Availability Gateway's HTTPS
// API. It is safe for concurrent use.
type Client struct {
	cfg        Config
	httpClient *http.Client
	limiter    *rate.Limiter
	log        *log.Logger
}

// New constructs a Client, loading the client certificate/key and pinned
// server certificate from cfg.CertificatesPath.
func New(cfg Config, logger *log.Logger) (*Client, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("gateway: endpoint must not be empty")
	}
	if logger == nil {
		logger = log.Default()
	}

	tlsConfig, err := loadTLSConfig(cfg.CertificatesPath)
	if err != nil {
		return nil, fmt.Errorf("gateway: loading TLS material: %w", err)
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}

	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: cfg.RequestTimeout,
			Transport: &http.Transport{
				TLSClientConfig: tlsConfig,
			},
		},
		limiter: limiter,
		log:     logger.Module("gateway"),
	}, nil
}

// loadTLSConfig builds a mutual-TLS client configuration from
// certificatesPath/{user.crt,user.key,server.crt}.
func loadTLSConfig(certificatesPath string) (*tls.Config, error) {
	cert, err := tls.LoadX509KeyPair(
		certificatesPath+"/user.crt",
		certificatesPath+"/user.key",
	)
	if err != nil {
		return nil, fmt.Errorf("loading client keypair: %w", err)
	}

	serverCertPEM, err := os.ReadFile(certificatesPath + "/server.crt")
	if err != nil {
		return nil, fmt.Errorf("reading pinned server cert: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(serverCertPEM) {
		return nil, fmt.Errorf("pinned server cert is not valid PEM")
	}

	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		RootCAs:      pool,
		MinVersion:   tls.VersionTLS12,
	}, nil
}

// GetBatchData fetches the batch descriptor for batchID. Per spec §6,
// the gateway signals "no descriptor for this id yet" as HTTP 200 with
// a JSON body of `null`, not a distinct status code; GetBatchData
// returns ErrNotYetAvailable in that case.
func (c *Client) GetBatchData(ctx context.Context, batchID int64) (*BatchDescriptor, error) {
	path := fmt.Sprintf("/availability_gateway/get_batch_data?batch_id=%d", batchID)

	var desc BatchDescriptor
	isNull, err := c.doWithRetry(ctx, http.MethodGet, path, nil, &desc)
	if err != nil {
		return nil, err
	}
	if isNull {
		return nil, ErrNotYetAvailable
	}
	return &desc, nil
}

// GetLastBatchID returns the gateway's view of the latest batch id. Not
// guaranteed monotone: it may decrease after the operator observes a
// reorg.
func (c *Client) GetLastBatchID(ctx context.Context) (int64, error) {
	var resp struct {
		BatchID int64 `json:"batch_id"`
	}
	if _, err := c.doWithRetry(ctx, http.MethodGet, "/availability_gateway/get_last_batch_id", nil, &resp); err != nil {
		return 0, err
	}
	return resp.BatchID, nil
}

// ApproveNewRoots submits a signed attestation for batchID.
func (c *Client) ApproveNewRoots(ctx context.Context, req ApproveNewRootsRequest) (*ApproveNewRootsResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("gateway: encoding approve_new_roots request: %w", err)
	}

	var resp ApproveNewRootsResponse
	if _, err := c.doWithRetry(ctx, http.MethodPost, "/availability_gateway/approve_new_roots", body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// doWithRetry issues a single logical request, retrying network errors
// and 5xx responses with capped exponential backoff. 4xx responses are
// returned immediately as ErrStructural without retry. isNull reports
// whether the response body was the literal JSON `null` (out is left
// untouched in that case).
func (c *Client) doWithRetry(ctx context.Context, method, path string, body []byte, out interface{}) (isNull bool, err error) {
	var lastErr error
	for attempt := 1; attempt <= c.cfg.Retry.MaxRetries+1; attempt++ {
		if attempt > 1 {
			backoff := c.cfg.Retry.backoffDuration(attempt - 1)
			select {
			case <-ctx.Done():
				return false, ctx.Err()
			case <-time.After(backoff):
			}
		}

		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return false, err
			}
		}

		isNull, retryable, err := c.doOnce(ctx, method, path, body, out)
		if err == nil {
			return isNull, nil
		}
		if !retryable {
			return false, err
		}
		lastErr = err
		c.log.With("attempt", attempt, "path", path).Warn("gateway request failed, retrying", "error", err)
	}
	metrics.GatewayErrors.Inc()
	return false, fmt.Errorf("%w: %v", ErrMaxRetries, lastErr)
}

// doOnce issues the request once. retryable reports whether the caller
// should retry on failure (network error or 5xx); structural 4xx errors
// are never retryable. isNull reports a 200 response whose body is the
// literal JSON `null` (spec §6's "batch not yet available" sentinel).
func (c *Client) doOnce(ctx context.Context, method, path string, body []byte, out interface{}) (isNull bool, retryable bool, err error) {
	url := c.cfg.Endpoint + path

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return false, false, fmt.Errorf("gateway: building request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	metrics.GatewayRequests.Inc()
	metrics.GatewayLatencyMillis.Observe(float64(time.Since(start).Milliseconds()))
	if err != nil {
		return false, true, fmt.Errorf("gateway: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return false, true, fmt.Errorf("%s %s: server error %d", method, path, resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		return false, false, fmt.Errorf("%w: %s %s: %d", ErrStructural, method, path, resp.StatusCode)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return false, false, fmt.Errorf("gateway: reading response: %w", err)
	}
	if isJSONNull(raw) {
		return true, false, nil
	}

	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return false, false, fmt.Errorf("gateway: decoding response: %w", err)
		}
	}
	return false, false, nil
}

// isJSONNull reports whether body is the literal JSON null token,
// ignoring surrounding whitespace.
func isJSONNull(body []byte) bool {
	return string(bytes.TrimSpace(body)) == "null"
}
