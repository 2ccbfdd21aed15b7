package l1

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
)

// BlobSidecar is one blob sidecar as returned by the beacon node's
// /eth/v1/beacon/blob_sidecars/{slot} endpoint. KZG commitment and proof
// are not used; the derivation pipeline only needs the raw blob bytes
// (magi l1/blob_fetcher.rs BlobSidecar).
type BlobSidecar struct {
	Index uint64
	Blob  []byte
}

type rawBlobSidecar struct {
	Index string `json:"index"`
	Blob  string `json:"blob"`
}

// BeaconClient fetches blob sidecars from an L1 consensus layer node's
// standard REST API, the source of batcher data posted as EIP-4844 blobs
// instead of calldata.
type BeaconClient struct {
	baseURL string
	client  *http.Client

	genesisTimestamp atomic.Uint64
	secondsPerSlot   atomic.Uint64
}

func NewBeaconClient(baseURL string) *BeaconClient {
	return &BeaconClient{baseURL: strings.TrimRight(baseURL, "/"), client: http.DefaultClient}
}

// SlotFromTime converts an L1 block timestamp into the consensus layer
// slot it was included in, caching the genesis timestamp and slot
// duration fetched from the beacon spec on first use.
func (b *BeaconClient) SlotFromTime(ctx context.Context, timestamp uint64) (uint64, error) {
	genesis := b.genesisTimestamp.Load()
	secondsPerSlot := b.secondsPerSlot.Load()

	if genesis == 0 {
		var err error
		genesis, err = b.fetchGenesisTimestamp(ctx)
		if err != nil {
			return 0, err
		}
		secondsPerSlot, err = b.fetchSecondsPerSlot(ctx)
		if err != nil {
			return 0, err
		}
		if secondsPerSlot == 0 {
			return 0, fmt.Errorf("beacon spec reports SECONDS_PER_SLOT of 0")
		}
		b.genesisTimestamp.Store(genesis)
		b.secondsPerSlot.Store(secondsPerSlot)
	}

	if timestamp < genesis {
		return 0, fmt.Errorf("timestamp %d predates beacon genesis %d", timestamp, genesis)
	}
	return (timestamp - genesis) / secondsPerSlot, nil
}

// BlobSidecars fetches every blob sidecar included at slot.
func (b *BeaconClient) BlobSidecars(ctx context.Context, slot uint64) ([]BlobSidecar, error) {
	var raw []rawBlobSidecar
	if err := b.getData(ctx, fmt.Sprintf("/eth/v1/beacon/blob_sidecars/%d", slot), &raw); err != nil {
		return nil, fmt.Errorf("fetching blob sidecars for slot %d: %w", slot, err)
	}
	out := make([]BlobSidecar, len(raw))
	for i, r := range raw {
		index, err := strconv.ParseUint(r.Index, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid blob sidecar index %q: %w", r.Index, err)
		}
		blob, err := hex.DecodeString(strings.TrimPrefix(r.Blob, "0x"))
		if err != nil {
			return nil, fmt.Errorf("invalid blob sidecar data: %w", err)
		}
		out[i] = BlobSidecar{Index: index, Blob: blob}
	}
	return out, nil
}

func (b *BeaconClient) fetchGenesisTimestamp(ctx context.Context) (uint64, error) {
	var data struct {
		GenesisTime string `json:"genesis_time"`
	}
	if err := b.getData(ctx, "/eth/v1/beacon/genesis", &data); err != nil {
		return 0, fmt.Errorf("fetching beacon genesis: %w", err)
	}
	return strconv.ParseUint(data.GenesisTime, 10, 64)
}

func (b *BeaconClient) fetchSecondsPerSlot(ctx context.Context) (uint64, error) {
	var data map[string]interface{}
	if err := b.getData(ctx, "/eth/v1/config/spec", &data); err != nil {
		return 0, fmt.Errorf("fetching beacon spec: %w", err)
	}
	raw, ok := data["SECONDS_PER_SLOT"].(string)
	if !ok {
		return 0, fmt.Errorf("beacon spec missing SECONDS_PER_SLOT")
	}
	return strconv.ParseUint(raw, 10, 64)
}

// getData issues a GET request and unmarshals the response's top-level
// "data" field into out, the envelope every standard beacon API response
// shares.
func (b *BeaconClient) getData(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.baseURL+path, nil)
	if err != nil {
		return err
	}
	resp, err := b.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("beacon API returned status %d", resp.StatusCode)
	}
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("decoding beacon response: %w", err)
	}
	return json.Unmarshal(envelope.Data, out)
}
