package tinkoff

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/honeynil/GymLedgerService/internal/models"
	pkgerrors "github.com/honeynil/GymLedgerService/pkg/errors"
	"github.com/shopspring/decimal"
)

const DefaultAPIURL = "https://securepay.tinkoff.ru/v2"

type Config struct {
	TerminalKey     string
	Password        string
	NotificationURL string
	APIURL          string
}

// Client covers the payment initiation call only.
type Client struct {
	cfg  Config
	http *http.Client
}

func NewClient(cfg Config) *Client {
	if cfg.APIURL == "" {
		cfg.APIURL = DefaultAPIURL
	}
	cfg.APIURL = strings.TrimRight(cfg.APIURL, "/")
	return &Client{cfg: cfg, http: &http.Client{Timeout: 15 * time.Second}}
}

type initRequest struct {
	TerminalKey     string            `json:"TerminalKey"`
	Amount          int64             `json:"Amount"`
	OrderID         string            `json:"OrderId"`
	NotificationURL string            `json:"NotificationURL,omitempty"`
	CustomerKey     string            `json:"CustomerKey,omitempty"`
	Data            map[string]string `json:"DATA,omitempty"`
	Token           string            `json:"Token"`
}

// Init opens a payment session for the order. Amount is sent in kopecks.
func (c *Client) Init(ctx context.Context, p models.PaymentInit) (*models.PaymentSession, error) {
	req := initRequest{
		TerminalKey:     c.cfg.TerminalKey,
		Amount:          Kopecks(p.Amount),
		OrderID:         strconv.FormatInt(p.OrderNumber, 10),
		NotificationURL: c.cfg.NotificationURL,
		CustomerKey:     p.CustomerKey,
		Data:            map[string]string{"telegram_id": strconv.FormatInt(p.TelegramID, 10)},
	}
	req.Token = Sign(map[string]string{
		"TerminalKey":     req.TerminalKey,
		"Amount":          strconv.FormatInt(req.Amount, 10),
		"OrderId":         req.OrderID,
		"NotificationURL": req.NotificationURL,
		"CustomerKey":     req.CustomerKey,
	}, c.cfg.Password)

	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.APIURL+"/Init", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		slog.Error("payment init request failed", "order_number", p.OrderNumber, "error", err)
		return nil, fmt.Errorf("%w: %v", pkgerrors.ErrPaymentGateway, err)
	}
	defer resp.Body.Close()

	var session models.PaymentSession
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		return nil, fmt.Errorf("%w: failed to decode response: %v", pkgerrors.ErrPaymentGateway, err)
	}
	if resp.StatusCode != http.StatusOK || !session.Success {
		slog.Error("payment init rejected", "order_number", p.OrderNumber, "status", resp.StatusCode,
			"error_code", session.ErrorCode, "message", session.Message)
		return nil, fmt.Errorf("%w: code %s: %s", pkgerrors.ErrPaymentGateway, session.ErrorCode, session.Message)
	}

	slog.Info("payment initialized", "order_number", p.OrderNumber, "payment_id", session.PaymentID)
	return &session, nil
}

// Sign builds the request token: root-level values plus the password, sorted
// by key, concatenated and hashed with SHA-256. Empty values are skipped.
func Sign(params map[string]string, password string) string {
	values := make(map[string]string, len(params)+1)
	for k, v := range params {
		if v != "" {
			values[k] = v
		}
	}
	values["Password"] = password

	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	for _, k := range keys {
		sb.WriteString(values[k])
	}
	sum := sha256.Sum256([]byte(sb.String()))
	return hex.EncodeToString(sum[:])
}

func Kopecks(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}
