package collaborator

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/custodia-platform/custodia-backend/internal/domain/values"
)

// Logging stand-ins used until a deployment wires real providers, and
// by tests.

// LogNotifier logs the message instead of delivering it.
type LogNotifier struct {
	Logger *zap.Logger
}

func (n *LogNotifier) Send(ctx context.Context, recipient Contact, message string) error {
	n.Logger.Info("notification dispatched",
		zap.String("email", recipient.Email),
		zap.Int("message_len", len(message)))
	return nil
}

// NullContentStore accepts all content and returns no reference.
type NullContentStore struct{}

func (NullContentStore) Publish(ctx context.Context, data []byte) (string, error) {
	return "", nil
}

// NullAnchor returns no transaction reference.
type NullAnchor struct{}

func (NullAnchor) Anchor(ctx context.Context, evidenceID uuid.UUID, hash values.HashValue, caseID uuid.UUID) (string, error) {
	return "", nil
}

// ExtensionClassifier derives a coarse category from the file
// extension and MIME type.
type ExtensionClassifier struct{}

func (ExtensionClassifier) Classify(ctx context.Context, filename, mimeType string) (string, error) {
	switch {
	case strings.HasPrefix(mimeType, "image/"):
		return "image", nil
	case strings.HasPrefix(mimeType, "video/"):
		return "video", nil
	case strings.HasPrefix(mimeType, "audio/"):
		return "audio", nil
	}

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf", ".doc", ".docx", ".txt":
		return "document", nil
	case ".pcap", ".pcapng":
		return "network_capture", nil
	case ".img", ".dd", ".e01":
		return "disk_image", nil
	default:
		return "other", nil
	}
}
