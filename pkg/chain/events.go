package chain

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/url"
	"strconv"

	"go.uber.org/zap"

	"github.com/trc8004/m2m-go/pkg/errdefs"
)

// Event is a confirmed contract event row from the TronGrid event API.
type Event struct {
	BlockNumber     int64          `json:"block_number"`
	BlockTimestamp  int64          `json:"block_timestamp"`
	ContractAddress string         `json:"contract_address"`
	EventName       string         `json:"event_name"`
	TransactionID   string         `json:"transaction_id"`
	Result          map[string]any `json:"result"`
}

// EventFilter narrows a FetchEvents query. Block bounds are inclusive;
// nil means unbounded on that side.
type EventFilter struct {
	EventName string
	FromBlock *int64
	ToBlock   *int64
	PageSize  int
}

// eventsPage is one page of the TronGrid event API response.
type eventsPage struct {
	Data []Event `json:"data"`
	Meta struct {
		Fingerprint string `json:"fingerprint"`
	} `json:"meta"`
}

// FetchEvents retrieves confirmed events for a contract, following
// fingerprint pagination until exhausted. Block range filtering happens
// client-side since the event API pages by fingerprint only.
func (c *Client) FetchEvents(ctx context.Context, contract ContractName, filter EventFilter) ([]Event, error) {
	address, err := c.contractAddress(contract)
	if err != nil {
		return nil, err
	}

	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 200 {
		pageSize = 200
	}

	query := url.Values{}
	query.Set("only_confirmed", "true")
	query.Set("limit", strconv.Itoa(pageSize))
	if filter.EventName != "" {
		query.Set("event_name", filter.EventName)
	}

	endpoint := fmt.Sprintf("%s/v1/contracts/%s/events", c.baseURL, address)

	var events []Event
	for {
		page, err := c.fetchEventPage(ctx, endpoint, query)
		if err != nil {
			return nil, err
		}

		for _, ev := range page.Data {
			if filter.FromBlock != nil && ev.BlockNumber < *filter.FromBlock {
				continue
			}
			if filter.ToBlock != nil && ev.BlockNumber > *filter.ToBlock {
				continue
			}
			events = append(events, ev)
		}

		if page.Meta.Fingerprint == "" {
			break
		}
		query.Set("fingerprint", page.Meta.Fingerprint)
	}

	c.logger.Debug("fetched contract events",
		zap.String("contract", string(contract)),
		zap.String("event", filter.EventName),
		zap.Int("count", len(events)))

	return events, nil
}

func (c *Client) fetchEventPage(ctx context.Context, endpoint string, query url.Values) (eventsPage, error) {
	var page eventsPage

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+query.Encode(), nil)
	if err != nil {
		return page, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return page, errdefs.NewNetwork("event query failed", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return page, errdefs.NewNetwork("failed to read event response", err)
	}
	if resp.StatusCode != http.StatusOK {
		return page, errdefs.NewNetwork(
			fmt.Sprintf("event query failed with status %d: %s", resp.StatusCode, string(data)), nil)
	}

	if err := json.Unmarshal(data, &page); err != nil {
		return page, errdefs.NewNetwork("malformed event response", err)
	}
	return page, nil
}

// TransactionInfo is the node's receipt for a confirmed transaction.
type TransactionInfo struct {
	ID             string `json:"id"`
	BlockNumber    int64  `json:"blockNumber"`
	BlockTimestamp int64  `json:"blockTimeStamp"`
	Result         string `json:"result"`
	Log            []struct {
		Address string   `json:"address"`
		Topics  []string `json:"topics"`
		Data    string   `json:"data"`
	} `json:"log"`
}

// GetTransactionInfo fetches a transaction receipt by ID. The node
// returns an empty object until the transaction is confirmed.
func (c *Client) GetTransactionInfo(ctx context.Context, txID string) (*TransactionInfo, error) {
	raw, err := c.post(ctx, "/wallet/gettransactioninfobyid", map[string]any{"value": txID})
	if err != nil {
		return nil, err
	}

	var info TransactionInfo
	if err := json.Unmarshal(raw, &info); err != nil {
		return nil, errdefs.NewNetwork("malformed transaction info response", err)
	}
	if info.ID == "" {
		return nil, errdefs.NewContract(fmt.Sprintf("transaction %s not yet confirmed", txID), nil)
	}
	return &info, nil
}

// ParseAgentRegisteredEvent extracts the minted agent ID from a
// registration receipt. The AgentRegistered event indexes the agent ID
// as its first topic after the signature:
//
//	AgentRegistered(uint256 indexed agentId, address indexed owner, string tokenURI)
//
// Returns zero and false when the receipt carries no such event.
func ParseAgentRegisteredEvent(info *TransactionInfo, logger *zap.Logger) (uint64, bool) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if info == nil {
		return 0, false
	}

	for _, entry := range info.Log {
		if len(entry.Topics) < 2 {
			continue
		}
		id, ok := new(big.Int).SetString(entry.Topics[1], 16)
		if !ok {
			continue
		}
		return id.Uint64(), true
	}

	logger.Warn("AgentRegistered event not found in transaction receipt",
		zap.String("txid", info.ID))
	return 0, false
}
