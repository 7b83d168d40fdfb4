// ABOUTME: PostgREST-style HTTP implementation of Remote.
// ABOUTME: Maps HTTP status and Postgres error codes onto the remote error taxonomy.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/harperreed/periodize/internal/models"
)

// maxResponseSize limits response body reads to prevent memory exhaustion.
const maxResponseSize = 10 * 1024 * 1024 // 10MB

// pgForeignKeyViolation is the Postgres SQLSTATE PostgREST reports for a missing parent.
const pgForeignKeyViolation = "23503"

// RESTClient is the HTTP Remote. Each table needs a server_seq column the
// database stamps on every insert and update; the client never sends it.
// On Postgres:
//
//	CREATE SEQUENCE periodize_server_seq;
//	CREATE FUNCTION periodize_stamp_seq() RETURNS trigger AS $$
//	BEGIN
//	  PERFORM pg_advisory_xact_lock(hashtext(NEW.user_id));
//	  NEW.server_seq := nextval('periodize_server_seq');
//	  RETURN NEW;
//	END $$ LANGUAGE plpgsql;
//	CREATE TRIGGER sets_server_seq BEFORE INSERT OR UPDATE ON sets
//	  FOR EACH ROW EXECUTE FUNCTION periodize_stamp_seq();
//
// The per-user lock is held to commit, so one user's sequence values
// become visible in order and a reader never skips past an open write.
type RESTClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// Compile-time check that RESTClient implements Remote.
var _ Remote = (*RESTClient)(nil)

// NewRESTClient creates a client for the REST endpoint at baseURL.
// The API key is sent both as apikey and as a Bearer token.
func NewRESTClient(baseURL, apiKey string) *RESTClient {
	return &RESTClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: CallTimeout,
		},
	}
}

// APIError is the error body PostgREST returns.
type APIError struct {
	StatusCode int    `json:"-"`
	Code       string `json:"code"`
	Message    string `json:"message"`
	Details    string `json:"details"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("remote error (status %d, code %s): %s", e.StatusCode, e.Code, e.Message)
}

func (c *RESTClient) tableURL(kind models.Kind, q url.Values) string {
	u := c.baseURL + "/rest/v1/" + kind.Table()
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	return u
}

// Upsert posts the full row with merge-duplicates resolution.
func (c *RESTClient) Upsert(ctx context.Context, rec models.Record) error {
	row, err := ToRow(rec)
	if err != nil {
		return err
	}
	q := url.Values{"on_conflict": {"id"}}
	err = c.do(ctx, http.MethodPost, c.tableURL(rec.Kind(), q), []Row{row}, nil,
		"resolution=merge-duplicates,return=minimal")
	return c.classify(err, rec)
}

// FetchSince returns rows written after seq, tombstones included.
func (c *RESTClient) FetchSince(ctx context.Context, kind models.Kind, userID string, seq int64) ([]Change, error) {
	q := url.Values{
		"select":  {"*"},
		"user_id": {"eq." + userID},
		SeqColumn: {"gt." + strconv.FormatInt(seq, 10)},
		"order":   {SeqColumn + ".asc,id.asc"},
	}
	rows, err := c.rows(ctx, kind, q)
	if err != nil {
		return nil, err
	}
	out := make([]Change, 0, len(rows))
	for _, row := range rows {
		n, err := rowSeq(row)
		if err != nil {
			return nil, fmt.Errorf("decode %s row: %w", kind.Table(), err)
		}
		rec, err := FromRow(kind, row)
		if err != nil {
			return nil, err
		}
		out = append(out, Change{Record: rec, Seq: n})
	}
	return out, nil
}

// ListLive returns the user's live rows.
func (c *RESTClient) ListLive(ctx context.Context, kind models.Kind, userID string) ([]models.Record, error) {
	order := liveOrder(kind)
	for i := range order {
		order[i] += ".asc"
	}
	q := url.Values{
		"select":     {"*"},
		"user_id":    {"eq." + userID},
		"deleted_at": {"is.null"},
		"order":      {strings.Join(order, ",")},
	}
	rows, err := c.rows(ctx, kind, q)
	if err != nil {
		return nil, err
	}
	out := make([]models.Record, 0, len(rows))
	for _, row := range rows {
		rec, err := FromRow(kind, row)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func (c *RESTClient) rows(ctx context.Context, kind models.Kind, q url.Values) ([]Row, error) {
	var rows []Row
	if err := c.do(ctx, http.MethodGet, c.tableURL(kind, q), nil, &rows, ""); err != nil {
		return nil, c.classify(err, nil)
	}
	return rows, nil
}

// SoftDelete patches deleted_at and updated_at on the user's row.
func (c *RESTClient) SoftDelete(ctx context.Context, rec models.Record) error {
	m := rec.Base()
	if m.DeletedAt == nil {
		return fmt.Errorf("soft delete %s %s: record is not tombstoned", rec.Kind(), m.ID)
	}
	q := url.Values{
		"id":      {"eq." + m.ID},
		"user_id": {"eq." + m.UserID},
	}
	body := Row{
		"deleted_at": models.FormatTime(*m.DeletedAt),
		"updated_at": models.FormatTime(m.UpdatedAt),
	}
	err := c.do(ctx, http.MethodPatch, c.tableURL(rec.Kind(), q), body, nil, "return=minimal")
	return c.classify(err, rec)
}

// Ping checks that the endpoint answers and accepts the key.
func (c *RESTClient) Ping(ctx context.Context) error {
	err := c.do(ctx, http.MethodGet, c.baseURL+"/rest/v1/", nil, nil, "")
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
		return nil
	}
	return c.classify(err, nil)
}

// do sends a request and decodes the JSON response into out when non-nil.
func (c *RESTClient) do(ctx context.Context, method, target string, reqBody, out any, prefer string) error {
	var body io.Reader
	if reqBody != nil {
		b, err := json.Marshal(reqBody)
		if err != nil {
			return fmt.Errorf("marshaling request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if prefer != "" {
		req.Header.Set("Prefer", prefer)
	}
	if c.apiKey != "" {
		req.Header.Set("apikey", c.apiKey)
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return unavailable(method+" "+req.URL.Path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize+1))
	if err != nil {
		return unavailable("reading response", err)
	}
	if len(respBody) > maxResponseSize {
		return fmt.Errorf("response too large (exceeds %d bytes)", maxResponseSize)
	}

	if resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		if err := json.Unmarshal(respBody, apiErr); err != nil || apiErr.Message == "" {
			apiErr.Message = strings.TrimSpace(string(respBody))
		}
		return apiErr
	}

	if out != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}
	return nil
}

// classify maps an APIError onto the remote taxonomy. rec names the record
// for conflicts; reads pass nil.
func (c *RESTClient) classify(err error, rec models.Record) error {
	var apiErr *APIError
	if err == nil || !errors.As(err, &apiErr) {
		return err
	}
	switch {
	case apiErr.StatusCode >= 500,
		apiErr.StatusCode == http.StatusRequestTimeout,
		apiErr.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %v", ErrUnavailable, apiErr)
	case apiErr.StatusCode == http.StatusUnauthorized, apiErr.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: %v", ErrUnauthorized, apiErr)
	}
	conflict := &ConflictError{
		Code:          apiErr.Code,
		Message:       apiErr.Message,
		ParentMissing: apiErr.Code == pgForeignKeyViolation,
	}
	if rec != nil {
		conflict.Kind = rec.Kind()
		conflict.ID = rec.Base().ID
	}
	return conflict
}
