package ipfs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/trc8004/m2m-go/pkg/errdefs"
	"github.com/trc8004/m2m-go/pkg/retry"
)

// Load fetches the content behind uri, dispatching on scheme:
//
//   - file://  — read from the local filesystem; a missing file is fatal
//     and is neither retried nor gateway-substituted.
//   - ipfs://  — try each gateway in order, each attempt wrapped by the
//     retry policy; the first success wins.
//   - http://, https:// — fetched directly once the URI already names a
//     single authoritative source (still retry-wrapped).
//   - anything else — returned unchanged, the caller passed inline data.
func (c *Client) Load(ctx context.Context, uri string) ([]byte, error) {
	switch {
	case strings.HasPrefix(uri, "file://"):
		return c.loadFile(uri)
	case strings.HasPrefix(uri, URIPrefix):
		return c.loadFromGateways(ctx, ExtractCID(uri))
	case strings.HasPrefix(uri, "http://"), strings.HasPrefix(uri, "https://"):
		return retry.Do(ctx, c.policy, c.logger, "http_fetch", func(ctx context.Context) ([]byte, error) {
			return c.fetch(ctx, uri)
		})
	default:
		return []byte(uri), nil
	}
}

func (c *Client) loadFile(uri string) ([]byte, error) {
	path := strings.TrimPrefix(uri, "file://")
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, errdefs.NewStorage(fmt.Sprintf("file not found: %s", path), err)
		}
		return nil, errdefs.NewStorage(fmt.Sprintf("failed to read %s", path), err)
	}
	return data, nil
}

func (c *Client) loadFromGateways(ctx context.Context, cid string) ([]byte, error) {
	var lastErr error
	for _, gateway := range c.gateways {
		url := strings.TrimRight(gateway, "/") + "/" + cid

		data, err := retry.Do(ctx, c.policy, c.logger, "ipfs_fetch", func(ctx context.Context) ([]byte, error) {
			return c.fetch(ctx, url)
		})
		if err == nil {
			return data, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		lastErr = err
		c.logger.Warn("gateway failed",
			zap.String("gateway", gateway),
			zap.String("cid", cid),
			zap.Error(err))
	}

	return nil, errdefs.NewStorage("all IPFS gateways failed", lastErr)
}

func (c *Client) fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create fetch request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errdefs.NewNetwork(fmt.Sprintf("fetch from %s failed", url), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errdefs.NewNetwork(
			fmt.Sprintf("fetch from %s failed with status %d", url, resp.StatusCode), nil)
	}

	return io.ReadAll(resp.Body)
}
