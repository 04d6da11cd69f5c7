package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"tableside/internal/config"
	"tableside/internal/domain"
	"tableside/internal/engine"
)

const (
	defaultWebhookInterval = 2 * time.Second
	defaultWebhookTimeout  = 5 * time.Second
	defaultWebhookBatch    = 100
)

// webhookDispatcher pushes each archived order to the configured targets,
// typically a POS or accounting integration. Delivery is best effort and
// ordered per hook via a seq cursor.
type webhookDispatcher struct {
	engine   *engine.Engine
	webhooks []config.Webhook
	client   *http.Client
	mu       sync.Mutex
	cursors  map[int]int64
}

// StartWebhookDispatcher begins background delivery if any hooks are set.
func StartWebhookDispatcher(e *engine.Engine) {
	if e.Config == nil || len(e.Config.Webhooks) == 0 {
		return
	}
	d := &webhookDispatcher{
		engine:   e,
		webhooks: e.Config.Webhooks,
		client:   &http.Client{Timeout: defaultWebhookTimeout},
		cursors:  make(map[int]int64),
	}
	go d.run()
}

func (d *webhookDispatcher) run() {
	ticker := time.NewTicker(defaultWebhookInterval)
	defer ticker.Stop()
	for {
		d.dispatchAll()
		<-ticker.C
	}
}

func (d *webhookDispatcher) dispatchAll() {
	for i, hook := range d.webhooks {
		if hook.Disabled {
			continue
		}
		if strings.TrimSpace(hook.URL) == "" {
			continue
		}
		d.dispatchWebhook(i, hook)
	}
}

func (d *webhookDispatcher) dispatchWebhook(idx int, hook config.Webhook) {
	ctx := context.Background()
	cursor := d.cursorFor(idx)
	records, err := d.engine.Repo.HistoryAfter(ctx, cursor, defaultWebhookBatch)
	if err != nil {
		d.engine.Log.WithError(err).Warn("webhook: fetch history failed")
		return
	}
	for _, rec := range records {
		if err := d.postRecord(ctx, hook, rec); err != nil {
			d.engine.Log.WithError(err).WithField("url", hook.URL).Warn("webhook: delivery failed")
			return
		}
		d.setCursor(idx, rec.Seq)
	}
}

// cursorFor starts a fresh hook at the current end of the archive; only
// orders closed after startup are pushed.
func (d *webhookDispatcher) cursorFor(idx int) int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	if cur, ok := d.cursors[idx]; ok {
		return cur
	}
	cur, err := d.engine.Repo.LatestHistorySeq(context.Background())
	if err != nil {
		d.engine.Log.WithError(err).Warn("webhook: init cursor failed")
		cur = 0
	}
	d.cursors[idx] = cur
	return cur
}

func (d *webhookDispatcher) setCursor(idx int, value int64) {
	d.mu.Lock()
	d.cursors[idx] = value
	d.mu.Unlock()
}

type webhookRecord struct {
	Seq      int64             `json:"seq"`
	ID       string            `json:"id"`
	OrderID  int64             `json:"order_id"`
	TableID  int               `json:"table_id"`
	Lines    []domain.DishLine `json:"lines"`
	ClosedAt string            `json:"closed_at"`
}

func (d *webhookDispatcher) postRecord(ctx context.Context, hook config.Webhook, rec domain.HistoryRecord) error {
	data, err := json.Marshal(webhookRecord{
		Seq:      rec.Seq,
		ID:       rec.ID,
		OrderID:  rec.OrderID,
		TableID:  rec.TableID,
		Lines:    rec.Lines,
		ClosedAt: rec.ClosedAt,
	})
	if err != nil {
		return err
	}
	timeout := defaultWebhookTimeout
	if hook.TimeoutSeconds > 0 {
		timeout = time.Duration(hook.TimeoutSeconds) * time.Second
	}
	client := d.client
	if timeout != d.client.Timeout {
		client = &http.Client{Timeout: timeout}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, hook.URL, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Tableside-Event", "order.closed")
	req.Header.Set("X-Tableside-Delivery", fmt.Sprintf("%d", rec.Seq))
	if strings.TrimSpace(hook.Secret) != "" {
		req.Header.Set("X-Tableside-Secret", hook.Secret)
	}
	res, err := client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return fmt.Errorf("status %d: %s", res.StatusCode, strings.TrimSpace(string(bodyBytes)))
	}
	return nil
}
