package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/honeynil/GymLedgerService/internal/models"
)

// HookDeliverer posts {telegram_id, message} to an external automation hook.
type HookDeliverer struct {
	url    string
	client *http.Client
}

func NewHookDeliverer(url string) *HookDeliverer {
	return &HookDeliverer{url: url, client: &http.Client{Timeout: 10 * time.Second}}
}

func (d *HookDeliverer) Channel() string { return "hook" }

func (d *HookDeliverer) Deliver(ctx context.Context, n models.Notification) error {
	body, err := json.Marshal(map[string]any{
		"telegram_id": n.TelegramID,
		"message":     n.Message,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build hook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call hook: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("hook responded with status %d", resp.StatusCode)
	}
	return nil
}
