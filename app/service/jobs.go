package service

import (
	"context"
	"fmt"
)

// RunWebhookRetryBatch processes due events inline so the job works with
// either queue driver.
func (s *WebhookService) RunWebhookRetryBatch(ctx context.Context) error {
	now := s.now()
	items, err := s.events.ListDue(ctx, now, now.Add(-s.cfg.StaleProcessing), s.batchSize())
	if err != nil {
		return err
	}

	var firstErr error
	for _, item := range items {
		if item == nil {
			continue
		}
		if err := s.Process(ctx, item.EventID); err != nil {
			firstErr = keepFirstErr(firstErr, fmt.Errorf("retry %s: %w", item.EventID, err))
		}
	}
	return firstErr
}

func (s *WebhookService) RunWebhookPruneBatch(ctx context.Context) error {
	cutoff := s.now().Add(-s.cfg.Retention)
	deleted, err := s.events.DeleteTerminalBefore(ctx, cutoff, s.batchSize())
	if err != nil {
		return err
	}
	if deleted > 0 {
		s.logger.WithField("deleted", deleted).Info("Pruned webhook events")
	}
	return nil
}
