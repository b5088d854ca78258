// Package claude detects loot with an Anthropic vision model instead of a
// local YOLO export. It is slower and costs money per image, but needs no
// trained weights.
package claude

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/liushuangls/go-anthropic/v2"

	"github.com/vbonduro/lootbot/internal/detect"
)

// maxImageBytes is the Messages API limit for a single base64 image.
const maxImageBytes = 5 * 1024 * 1024

// ErrNoDetectionList is returned when the model reply has no JSON array.
var ErrNoDetectionList = errors.New("reply contains no detection list")

const promptTemplate = `You are counting items in a screenshot of a survival game inventory.
Only report items whose label is one of: %s.
Report every individual stack you can see as its own entry.
Respond with a JSON array and nothing else. Each element must be:
{"label": "<one of the labels>", "box": [x1, y1, x2, y2], "confidence": <0..1>}
Box coordinates are pixels. Respond with [] if none of the items are visible.`

type Detector struct {
	client *anthropic.Client
	model  string
	prompt string
	names  detect.ClassNames
	ids    map[string]int
	logger *slog.Logger
}

// NewDetector builds a detector that asks the model for the given labels.
// The class id of a label is its index in labels.
func NewDetector(apiKey, model string, labels []string, logger *slog.Logger, opts ...anthropic.ClientOption) *Detector {
	names := make(detect.ClassNames, len(labels))
	ids := make(map[string]int, len(labels))
	for i, l := range labels {
		names[i] = l
		ids[l] = i
	}
	return &Detector{
		client: anthropic.NewClient(apiKey, opts...),
		model:  model,
		prompt: fmt.Sprintf(promptTemplate, strings.Join(labels, ", ")),
		names:  names,
		ids:    ids,
		logger: logger,
	}
}

func (d *Detector) Detect(ctx context.Context, imagePath string) (*detect.Result, error) {
	data, err := os.ReadFile(imagePath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", detect.ErrUnreadableImage, err)
	}
	mimeType, ok := imageMIME(data)
	if !ok {
		return nil, fmt.Errorf("%w: unsupported image format", detect.ErrUnreadableImage)
	}
	if len(data) > maxImageBytes {
		return nil, fmt.Errorf("%w: image exceeds %d bytes", detect.ErrUnreadableImage, maxImageBytes)
	}

	resp, err := d.client.CreateMessages(ctx, anthropic.MessagesRequest{
		Model: anthropic.Model(d.model),
		// A crowded inventory screen is ~40 stacks at ~30 tokens each.
		MaxTokens: 2048,
		Messages: []anthropic.Message{{
			Role: anthropic.RoleUser,
			Content: []anthropic.MessageContent{
				anthropic.NewImageMessageContent(anthropic.NewMessageContentSource(
					anthropic.MessagesContentSourceTypeBase64,
					mimeType,
					base64.StdEncoding.EncodeToString(data),
				)),
				anthropic.NewTextMessageContent(d.prompt),
			},
		}},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to call claude: %w", err)
	}

	var text string
	for _, c := range resp.Content {
		if c.Type == anthropic.MessagesContentTypeText {
			text = c.GetText()
			break
		}
	}

	rows, err := d.parseReply(text)
	if err != nil {
		d.logger.Error("unexpected claude reply", "image", imagePath, "reply", text)
		return nil, err
	}
	d.logger.Debug("claude detection complete", "image", imagePath, "detections", len(rows))
	return &detect.Result{Rows: rows, Names: d.names}, nil
}

type reportedItem struct {
	Label      string    `json:"label"`
	Box        []float32 `json:"box"`
	Confidence float32   `json:"confidence"`
}

// parseReply extracts the JSON array from the model's reply. Labels the
// model invented get class id -1; a box without four coordinates yields a
// row of the wrong arity. Both are left for the aggregator to skip.
func (d *Detector) parseReply(text string) ([]detect.Row, error) {
	start := strings.Index(text, "[")
	end := strings.LastIndex(text, "]")
	if start < 0 || end < start {
		return nil, ErrNoDetectionList
	}

	var items []reportedItem
	if err := json.Unmarshal([]byte(text[start:end+1]), &items); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoDetectionList, err)
	}

	rows := make([]detect.Row, 0, len(items))
	for _, it := range items {
		id, ok := d.ids[it.Label]
		if !ok {
			id = -1
		}
		row := make(detect.Row, 0, len(it.Box)+2)
		row = append(row, it.Box...)
		row = append(row, it.Confidence, float32(id))
		rows = append(rows, row)
	}
	return rows, nil
}

// imageMIME sniffs the formats the Messages API accepts.
func imageMIME(data []byte) (string, bool) {
	// WebP is a RIFF container with "WEBP" at offset 8; the stdlib sniffer
	// does not know it.
	if len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WEBP" {
		return "image/webp", true
	}
	switch mime := http.DetectContentType(data); mime {
	case "image/jpeg", "image/png", "image/gif":
		return mime, true
	}
	return "", false
}
