package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/lumen-stack/lumen-node/eth"
)

// Client speaks the subset of the Engine API the derivation driver needs:
// forkchoice updates (optionally kicking off payload building),
// retrieving a built payload, and submitting a payload for execution.
// It authenticates every request with a freshly minted JWT, per the
// Engine API auth spec, and selects the V2/V3 method variant by
// whether Ecotone (blob-carrying payloads) is active at the relevant
// timestamp, matching op-node's EngineAPI client version dispatch.
type Client struct {
	url    string
	secret [32]byte
	http   *http.Client
}

func NewClient(url string, secret [32]byte) *Client {
	return &Client{url: url, secret: secret, http: &http.Client{Timeout: 10 * time.Second}}
}

type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
	ID      string        `json:"id"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string { return fmt.Sprintf("engine rpc error %d: %s", e.Code, e.Message) }

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

func (c *Client) call(ctx context.Context, method string, result interface{}, params ...interface{}) error {
	token, err := newAuthToken(c.secret)
	if err != nil {
		return fmt.Errorf("minting engine auth token: %w", err)
	}

	body, err := json.Marshal(rpcRequest{JSONRPC: "2.0", Method: method, Params: params, ID: uuid.NewString()})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("calling %s: %w", method, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading %s response: %w", method, err)
	}
	var rpcResp rpcResponse
	if err := json.Unmarshal(raw, &rpcResp); err != nil {
		return fmt.Errorf("decoding %s response: %w", method, err)
	}
	if rpcResp.Error != nil {
		return rpcResp.Error
	}
	if result == nil {
		return nil
	}
	return json.Unmarshal(rpcResp.Result, result)
}

// ForkchoiceUpdated updates the engine's head/safe/finalized pointers and,
// if attrs is non-nil, starts building a new payload on top of the head.
// The method version is selected by whether attrs (when present) targets
// an Ecotone timestamp.
func (c *Client) ForkchoiceUpdated(ctx context.Context, state eth.ForkchoiceState, attrs *eth.PayloadAttributes, ecotone bool) (*eth.ForkchoiceUpdatedResult, error) {
	method := "engine_forkchoiceUpdatedV2"
	if ecotone {
		method = "engine_forkchoiceUpdatedV3"
	}
	var result eth.ForkchoiceUpdatedResult
	var err error
	if attrs != nil {
		err = c.call(ctx, method, &result, state, attrs)
	} else {
		err = c.call(ctx, method, &result, state, nil)
	}
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// GetPayload retrieves a previously started payload build job.
func (c *Client) GetPayload(ctx context.Context, id eth.PayloadID, ecotone bool) (*eth.ExecutionPayloadEnvelope, error) {
	method := "engine_getPayloadV2"
	if ecotone {
		method = "engine_getPayloadV3"
	}
	var raw struct {
		ExecutionPayload      *eth.ExecutionPayload `json:"executionPayload"`
		ParentBeaconBlockRoot *eth.Bytes32          `json:"parentBeaconBlockRoot,omitempty"`
	}
	if err := c.call(ctx, method, &raw, id); err != nil {
		return nil, err
	}
	if raw.ExecutionPayload == nil {
		return nil, fmt.Errorf("%s returned no execution payload", method)
	}
	envelope := &eth.ExecutionPayloadEnvelope{ExecutionPayload: raw.ExecutionPayload}
	if raw.ParentBeaconBlockRoot != nil {
		root := common.Hash(*raw.ParentBeaconBlockRoot)
		envelope.ParentBeaconBlockRoot = &root
	}
	return envelope, nil
}

// NewPayload submits a built or externally received payload for
// execution and validation.
func (c *Client) NewPayload(ctx context.Context, envelope *eth.ExecutionPayloadEnvelope, ecotone bool) (*eth.PayloadStatusV1, error) {
	method := "engine_newPayloadV2"
	var result eth.PayloadStatusV1
	var err error
	if ecotone {
		method = "engine_newPayloadV3"
		// Derived payloads carry no blob sidecar of their own; the Ecotone
		// blob versioned hashes are embedded in the transactions already.
		versionedHashes := []common.Hash{}
		var parentBeaconRoot interface{}
		if envelope.ParentBeaconBlockRoot != nil {
			parentBeaconRoot = envelope.ParentBeaconBlockRoot
		}
		err = c.call(ctx, method, &result, envelope.ExecutionPayload, versionedHashes, parentBeaconRoot)
	} else {
		err = c.call(ctx, method, &result, envelope.ExecutionPayload)
	}
	if err != nil {
		return nil, err
	}
	return &result, nil
}
