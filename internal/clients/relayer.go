package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// RelayerClient is the HTTP client for the bridge relayer service. It
// converts the service's polled status into the ProgressUpdate stream the
// orchestrator consumes.
type RelayerClient struct {
	baseURL      string
	httpClient   *http.Client
	pollInterval time.Duration
	logger       *zap.Logger
}

// NewRelayerClient creates a relayer client. pollInterval <= 0 defaults to
// two seconds.
func NewRelayerClient(logger *zap.Logger, baseURL string, pollInterval time.Duration) *RelayerClient {
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}
	return &RelayerClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		pollInterval: pollInterval,
		logger:       logger.With(zap.String("component", "RelayerClient")),
	}
}

type bridgeDispatchRequest struct {
	SourceChain uint16 `json:"sourceChain"`
	TargetChain uint16 `json:"targetChain"`
	SourceVault string `json:"sourceVault"`
	Token       string `json:"token"`
	Recipient   string `json:"recipient"`
	Amount      string `json:"amount"`
}

type bridgeDispatchResponse struct {
	ID         string `json:"id"`
	TotalSteps int    `json:"totalSteps"`
	Error      string `json:"error,omitempty"`
}

type bridgeStatusResponse struct {
	Step       int    `json:"step"`
	TotalSteps int    `json:"totalSteps"`
	Message    string `json:"message"`
	Status     string `json:"status"` // "pending", "completed", "failed"
	TxHash     string `json:"txHash,omitempty"`
	Sequence   uint64 `json:"sequence,omitempty"`
	Error      string `json:"error,omitempty"`
}

// DispatchBridge submits a cross-chain transfer and returns a channel of
// progress updates. The channel delivers updates in the order the relayer
// reports them and is closed after the terminal update. Once dispatched,
// bridge steps cannot be unsent: cancelling ctx stops polling but the
// relayer keeps relaying.
func (c *RelayerClient) DispatchBridge(ctx context.Context, transfer BridgeTransfer) (<-chan ProgressUpdate, error) {
	reqBody := bridgeDispatchRequest{
		SourceChain: uint16(transfer.SourceWormholeID),
		TargetChain: uint16(transfer.TargetWormholeID),
		SourceVault: transfer.SourceVault,
		Token:       transfer.Token,
		Recipient:   transfer.Recipient,
		Amount:      transfer.Amount.String(),
	}

	var dispatched bridgeDispatchResponse
	if err := c.post(ctx, "/v1/bridge", reqBody, &dispatched); err != nil {
		return nil, fmt.Errorf("failed to dispatch bridge: %v", err)
	}
	if dispatched.Error != "" {
		return nil, fmt.Errorf("relayer rejected bridge: %s", dispatched.Error)
	}

	c.logger.Info("Bridge dispatched",
		zap.String("relayerId", dispatched.ID),
		zap.Int("totalSteps", dispatched.TotalSteps))

	updates := make(chan ProgressUpdate, 8)
	go c.pollBridge(ctx, dispatched.ID, updates)
	return updates, nil
}

// pollBridge polls the relayer until the bridge resolves and forwards each
// status change as a ProgressUpdate.
func (c *RelayerClient) pollBridge(ctx context.Context, id string, updates chan<- ProgressUpdate) {
	defer close(updates)

	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	lastStep := 0
	for {
		select {
		case <-ctx.Done():
			updates <- ProgressUpdate{
				Step:     lastStep,
				Terminal: true,
				Err:      fmt.Errorf("bridge polling cancelled: %v", ctx.Err()),
			}
			return
		case <-ticker.C:
		}

		var status bridgeStatusResponse
		if err := c.get(ctx, "/v1/bridge/"+id, &status); err != nil {
			c.logger.Warn("Bridge status poll failed, retrying", zap.Error(err))
			continue
		}

		switch status.Status {
		case "completed":
			updates <- ProgressUpdate{
				Step:       status.TotalSteps,
				TotalSteps: status.TotalSteps,
				Message:    status.Message,
				Terminal:   true,
				Receipt:    &TxReceipt{TxHash: status.TxHash, Sequence: status.Sequence},
			}
			return
		case "failed":
			updates <- ProgressUpdate{
				Step:       status.Step,
				TotalSteps: status.TotalSteps,
				Message:    status.Message,
				Terminal:   true,
				Err:        fmt.Errorf("bridge failed: %s", status.Error),
			}
			return
		default:
			if status.Step > lastStep {
				lastStep = status.Step
				updates <- ProgressUpdate{
					Step:       status.Step,
					TotalSteps: status.TotalSteps,
					Message:    status.Message,
				}
			}
		}
	}
}

// SponsorTransfer asks the relayer to submit a same-chain transfer with the
// fee sponsored. Its availability is what enables the gasless signing path.
func (c *RelayerClient) SponsorTransfer(ctx context.Context, transfer Transfer) (TxReceipt, error) {
	reqBody := map[string]string{
		"chainId":   fmt.Sprintf("%d", transfer.ChainID),
		"vault":     transfer.Vault,
		"token":     transfer.Token,
		"recipient": transfer.Recipient,
		"amount":    transfer.Amount.String(),
	}

	var result struct {
		TxHash   string `json:"txHash"`
		Sequence uint64 `json:"sequence"`
		Error    string `json:"error,omitempty"`
	}
	if err := c.post(ctx, "/v1/sponsor-transfer", reqBody, &result); err != nil {
		return TxReceipt{}, fmt.Errorf("failed to sponsor transfer: %v", err)
	}
	if result.Error != "" {
		return TxReceipt{}, fmt.Errorf("relayer rejected transfer: %s", result.Error)
	}
	return TxReceipt{TxHash: result.TxHash, Sequence: result.Sequence}, nil
}

// CheckHealth verifies the relayer service is reachable.
func (c *RelayerClient) CheckHealth(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("failed to create health check request: %v", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("relayer unhealthy: status %d", resp.StatusCode)
	}
	return nil
}

func (c *RelayerClient) post(ctx context.Context, path string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req, out)
}

func (c *RelayerClient) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %v", err)
	}
	return c.do(req, out)
}

func (c *RelayerClient) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to parse response: %v (body: %s)", err, string(body))
	}
	return nil
}
