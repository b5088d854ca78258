package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/vbonduro/lootbot/internal/detect"
	"github.com/vbonduro/lootbot/internal/domain"
	"github.com/vbonduro/lootbot/internal/inventory"
	"github.com/vbonduro/lootbot/internal/metrics"
	"github.com/vbonduro/lootbot/internal/response"
	"github.com/vbonduro/lootbot/internal/scratch"
)

const (
	inventoryHeader  = "Detected inventory:"
	inventoryMissing = "Couldn't detect anything in the image. Try again?"
)

// attachmentStore is the subset of scratch.Store that LootService requires.
type attachmentStore interface {
	Save(ctx context.Context, att domain.Attachment) (string, error)
	Remove(path string)
}

// replyComposer is the subset of response.Selector that LootService requires.
type replyComposer interface {
	Compose(user string, counts inventory.Counts) response.Reply
}

// recorder is the subset of metrics.Metrics that LootService requires.
type recorder interface {
	ImageProcessed(outcome string)
	ItemsDetected(item string, count int)
	ReplySent(category string)
	ObserveDetection(d time.Duration)
}

type LootService struct {
	scratch  attachmentStore
	detector detect.Detector
	vocab    *inventory.Vocabulary
	replies  replyComposer
	metrics  recorder
	logger   *slog.Logger
}

func NewLootService(
	scratch attachmentStore,
	detector detect.Detector,
	vocab *inventory.Vocabulary,
	replies replyComposer,
	metrics recorder,
	logger *slog.Logger,
) *LootService {
	return &LootService{
		scratch:  scratch,
		detector: detector,
		vocab:    vocab,
		replies:  replies,
		metrics:  metrics,
		logger:   logger,
	}
}

// BragReply counts the loot in att and composes a randomized reply for user.
func (s *LootService) BragReply(ctx context.Context, user string, att domain.Attachment) (string, error) {
	counts, err := s.count(ctx, att)
	if err != nil {
		return "", err
	}

	reply := s.replies.Compose(user, counts)
	s.metrics.ReplySent(string(reply.Category))
	s.logger.Info("brag reply composed",
		"user", user,
		"attachment", att.Filename,
		"category", reply.Category,
		"roll", reply.Roll,
		"items", counts.Total(),
	)
	return reply.Text, nil
}

// InventoryReport counts the loot in att and lists it, most plentiful first.
func (s *LootService) InventoryReport(ctx context.Context, att domain.Attachment) (string, error) {
	counts, err := s.count(ctx, att)
	if err != nil {
		return "", err
	}
	s.logger.Info("inventory report composed", "attachment", att.Filename, "items", counts.Total())
	return FormatInventory(counts), nil
}

// FormatInventory renders counts as one "item: count" line per item.
func FormatInventory(counts inventory.Counts) string {
	if len(counts) == 0 {
		return inventoryMissing
	}
	var b strings.Builder
	b.WriteString(inventoryHeader)
	for _, ic := range counts.Sorted() {
		fmt.Fprintf(&b, "\n%s: %d", ic.Name, ic.Count)
	}
	return b.String()
}

// count runs one attachment through scratch storage, the detector and the
// aggregator. The scratch file never outlives the call.
func (s *LootService) count(ctx context.Context, att domain.Attachment) (counts inventory.Counts, err error) {
	defer func() { s.metrics.ImageProcessed(outcome(err)) }()

	path, err := s.scratch.Save(ctx, att)
	if err != nil {
		return nil, fmt.Errorf("failed to save attachment: %w", err)
	}
	defer s.scratch.Remove(path)

	start := time.Now()
	result, err := s.detector.Detect(ctx, path)
	elapsed := time.Since(start)
	s.metrics.ObserveDetection(elapsed)
	if err != nil {
		return nil, fmt.Errorf("failed to detect items: %w", err)
	}
	s.logger.Debug("detection complete", "attachment", att.Filename, "rows", len(result.Rows), "elapsed", elapsed)

	counts, err = inventory.Aggregate(result, s.vocab, s.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate detections: %w", err)
	}
	for name, n := range counts {
		s.metrics.ItemsDetected(name, n)
	}
	return counts, nil
}

// IsInputError reports whether err was caused by the submitted image rather
// than by the bot.
func IsInputError(err error) bool {
	return errors.Is(err, detect.ErrUnreadableImage) || errors.Is(err, scratch.ErrDownload)
}

func outcome(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeOK
	case IsInputError(err):
		return metrics.OutcomeBadInput
	default:
		return metrics.OutcomeFailed
	}
}
