// Package client is the caller-facing side of the formula lifecycle: an HTTP
// repository speaking the {code, msg, data} envelope, and a controller that
// keeps a per-task cached list reconciled with the service.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/qiwenmao/coatlab-backend/internal/bizcode"
	"github.com/qiwenmao/coatlab-backend/internal/logger"
	"github.com/qiwenmao/coatlab-backend/internal/types"
)

// FormulaAPI is the formula repository over the persistence service contract.
// It never retries: every failure, business or transport, is surfaced to the
// caller exactly once.
type FormulaAPI struct {
	baseURL string
	httpc   *http.Client
	log     *logger.Logger
}

func NewFormulaAPI(baseURL string, httpc *http.Client, baseLog *logger.Logger) *FormulaAPI {
	if httpc == nil {
		httpc = &http.Client{Timeout: 30 * time.Second}
	}
	return &FormulaAPI{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpc:   httpc,
		log:     baseLog.With("client", "FormulaAPI"),
	}
}

type envelope struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

func (a *FormulaAPI) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.httpc.Do(req)
	if err != nil {
		return &TransportError{Op: method + " " + path, Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &TransportError{Op: method + " " + path, Status: resp.StatusCode}
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return &TransportError{Op: method + " " + path, Err: err}
	}
	if env.Code != bizcode.OK {
		return &bizcode.Error{Code: env.Code, Msg: env.Msg}
	}
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return &TransportError{Op: method + " " + path, Err: err}
		}
	}
	return nil
}

func (a *FormulaAPI) List(ctx context.Context, designTaskIndex string) ([]*types.FormulaRecord, error) {
	if strings.TrimSpace(designTaskIndex) == "" {
		return nil, bizcode.New(bizcode.MissingParameter)
	}
	var records []*types.FormulaRecord
	if err := a.do(ctx, http.MethodGet, "/formula/list/"+designTaskIndex, nil, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// Create submits a new formula. The record index is generated here, before
// the call, when the caller has not already assigned one; the service assigns
// the version label.
func (a *FormulaAPI) Create(ctx context.Context, designTaskIndex string, record *types.FormulaRecord) (*types.FormulaRecord, error) {
	if strings.TrimSpace(designTaskIndex) == "" || record == nil {
		return nil, bizcode.New(bizcode.MissingParameter)
	}
	payload := record.Clone()
	if strings.TrimSpace(payload.Index) == "" {
		payload.Index = uuid.NewString()
	}
	payload.BaseMaterials = datatypes.NewJSONSlice(types.NormalizeBaseMaterials(payload.BaseMaterials))
	var created types.FormulaRecord
	if err := a.do(ctx, http.MethodPost, "/formula/create/"+designTaskIndex, payload, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

func (a *FormulaAPI) Update(ctx context.Context, index string, record *types.FormulaRecord) (*types.FormulaRecord, error) {
	if strings.TrimSpace(index) == "" || record == nil {
		return nil, bizcode.New(bizcode.MissingParameter)
	}
	payload := record.Clone()
	payload.BaseMaterials = datatypes.NewJSONSlice(types.NormalizeBaseMaterials(payload.BaseMaterials))
	var updated types.FormulaRecord
	if err := a.do(ctx, http.MethodPut, "/formula/update/"+index, payload, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

func (a *FormulaAPI) Delete(ctx context.Context, index string) error {
	if strings.TrimSpace(index) == "" {
		return bizcode.New(bizcode.MissingParameter)
	}
	return a.do(ctx, http.MethodDelete, "/formula/delete/"+index, nil, nil)
}

type transitionRequest struct {
	Index  string `json:"index"`
	Reason string `json:"reason,omitempty"`
}

func (a *FormulaAPI) MarkPending(ctx context.Context, index string) (*types.FormulaRecord, error) {
	return a.transition(ctx, "/formula/pending", transitionRequest{Index: index})
}

func (a *FormulaAPI) MarkQualified(ctx context.Context, index string) (*types.FormulaRecord, error) {
	return a.transition(ctx, "/formula/qualified", transitionRequest{Index: index})
}

// MarkUnqualified rejects an empty reason locally, before any network call.
func (a *FormulaAPI) MarkUnqualified(ctx context.Context, index, reason string) (*types.FormulaRecord, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, bizcode.Newf(bizcode.MissingParameter, "unqualified reason is required")
	}
	return a.transition(ctx, "/formula/unqualified", transitionRequest{Index: index, Reason: reason})
}

func (a *FormulaAPI) MarkProduction(ctx context.Context, index string) (*types.FormulaRecord, error) {
	return a.transition(ctx, "/formula/production", transitionRequest{Index: index})
}

func (a *FormulaAPI) transition(ctx context.Context, path string, req transitionRequest) (*types.FormulaRecord, error) {
	if strings.TrimSpace(req.Index) == "" {
		return nil, bizcode.New(bizcode.MissingParameter)
	}
	var record types.FormulaRecord
	if err := a.do(ctx, http.MethodPost, path, req, &record); err != nil {
		return nil, err
	}
	return &record, nil
}
