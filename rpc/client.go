package rpc

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"patreonix/crypto"
)

// Client calls a node's JSON-RPC endpoint.
type Client struct {
	Endpoint string
	HTTP     *http.Client
	// Token is sent as a bearer token for operator methods.
	Token string

	nextID atomic.Int64
}

// NewClient returns a client for endpoint with a bounded request timeout.
func NewClient(endpoint string) *Client {
	return &Client{
		Endpoint: strings.TrimSpace(endpoint),
		HTTP:     &http.Client{Timeout: 30 * time.Second},
	}
}

// Call invokes method with params and decodes the result into out. Errors
// returned by the node surface as *RPCError.
func (c *Client) Call(ctx context.Context, method string, params []interface{}, out interface{}) error {
	if params == nil {
		params = []interface{}{}
	}
	body, err := json.Marshal(struct {
		JSONRPC string        `json:"jsonrpc"`
		Method  string        `json:"method"`
		Params  []interface{} `json:"params"`
		ID      int64         `json:"id"`
	}{jsonRPCVersion, method, params, c.nextID.Add(1)})
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	httpClient := c.HTTP
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("rpc %s: %w", method, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxRequestBytes*8))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	var decoded struct {
		Result json.RawMessage `json:"result"`
		Error  *RPCError       `json:"error"`
	}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return fmt.Errorf("decode response (HTTP %d): %w", resp.StatusCode, err)
	}
	if decoded.Error != nil {
		decoded.Error.status = resp.StatusCode
		return decoded.Error
	}
	if out == nil || len(decoded.Result) == 0 {
		return nil
	}
	return json.Unmarshal(decoded.Result, out)
}

// SignPayload encodes payload with the signer, a fresh nonce and the issue
// time filled in and signs it for method. The returned params are ready for Call.
func SignPayload(key *crypto.PrivateKey, method string, payload interface{}) ([]interface{}, error) {
	fields := map[string]interface{}{}
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		dec := json.NewDecoder(bytes.NewReader(encoded))
		dec.UseNumber()
		if err := dec.Decode(&fields); err != nil {
			return nil, fmt.Errorf("payload must encode to a JSON object: %w", err)
		}
	}
	fields["signer"] = key.PubKey().Address().String()
	if _, ok := fields["nonce"]; !ok {
		fields["nonce"] = uuid.NewString()
	}
	if _, ok := fields["issuedAt"]; !ok {
		fields["issuedAt"] = time.Now().Unix()
	}
	raw, err := json.Marshal(fields)
	if err != nil {
		return nil, err
	}
	sig := key.Sign(SigningMessage(method, raw))
	return []interface{}{json.RawMessage(raw), hex.EncodeToString(sig)}, nil
}

// CallSigned signs payload with key and invokes method.
func (c *Client) CallSigned(ctx context.Context, key *crypto.PrivateKey, method string, payload interface{}, out interface{}) error {
	params, err := SignPayload(key, method, payload)
	if err != nil {
		return err
	}
	return c.Call(ctx, method, params, out)
}
