package chain

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/cantina-forks/dal-node/dal"
)

var errNotFound = errors.New("chain: resource not found")

// HTTPClient implements Client over the host chain's JSON RPC.
type HTTPClient struct {
	base string
	cli  *http.Client
}

var _ Client = (*HTTPClient)(nil)

func NewHTTPClient(baseURL string) *HTTPClient {
	return &HTTPClient{base: baseURL, cli: &http.Client{}}
}

func (c *HTTPClient) ProtocolsAtHead(ctx context.Context) (Protocols, error) {
	var out Protocols
	err := c.getJSON(ctx, "/protocols/head", &out)
	return out, err
}

func (c *HTTPClient) ProtoOfLevel(ctx context.Context, level int64) (int, error) {
	var out struct {
		Proto int `json:"proto"`
	}
	err := c.getJSON(ctx, fmt.Sprintf("/levels/%d/proto", level), &out)
	return out.Proto, err
}

func (c *HTTPClient) ProtocolInfo(ctx context.Context, protoLevel int) (ProtocolInfo, error) {
	var out ProtocolInfo
	err := c.getJSON(ctx, fmt.Sprintf("/protocols/%d/info", protoLevel), &out)
	if errors.Is(err, errNotFound) {
		return out, fmt.Errorf("%w: %d", ErrUnknownProtocol, protoLevel)
	}
	return out, err
}

func (c *HTTPClient) CommitteeForLevel(ctx context.Context, level int64) (dal.Committee, error) {
	var out dal.Committee
	err := c.getJSON(ctx, fmt.Sprintf("/levels/%d/committee", level), &out)
	return out, err
}

// BlockStream consumes the chain's finalized block monitor, a long-lived
// response of JSON lines. The returned channel closes when the underlying
// response terminates.
func (c *HTTPClient) BlockStream(ctx context.Context) (<-chan BlockInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/monitor/blocks", nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.cli.Do(req)
	if err != nil {
		return nil, fmt.Errorf("chain: subscribing to block monitor: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("chain: block monitor returned status %d", resp.StatusCode)
	}

	stream := make(chan BlockInfo)
	go func() {
		defer close(stream)
		defer resp.Body.Close()

		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			var block BlockInfo
			if err := json.Unmarshal(scanner.Bytes(), &block); err != nil {
				log.Errorw("decoding block notification", "err", err)
				return
			}
			select {
			case stream <- block:
			case <-ctx.Done():
				return
			}
		}
	}()
	return stream, nil
}

func (c *HTTPClient) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+path, nil)
	if err != nil {
		return err
	}
	resp, err := c.cli.Do(req)
	if err != nil {
		return fmt.Errorf("chain: querying %s: %w", path, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", errNotFound, path)
	default:
		return fmt.Errorf("chain: %s returned status %d", path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("chain: decoding %s: %w", path, err)
	}
	return nil
}
