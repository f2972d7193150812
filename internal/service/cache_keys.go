package service

import (
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"github.com/s9b/memenem-backend/internal/models"
)

// TemplatesKey addresses a cached template list by source and limit.
func TemplatesKey(source models.SourceName, limit int) string {
	return fmt.Sprintf("%s:%d", source, limit)
}

// CaptionsKey addresses cached variations for one template and request shape.
func CaptionsKey(topic string, style models.HumorStyle, templateID string, variations int) string {
	sum := md5.Sum([]byte(fmt.Sprintf("%s:%s:%s:%d", strings.ToLower(strings.TrimSpace(topic)), style, templateID, variations)))
	return hex.EncodeToString(sum[:])
}

// RequestFingerprint identifies a request by topic, style, variation count
// and the set of templates it resolved to. Template order does not matter.
func RequestFingerprint(req models.GenerationRequest, templates []models.Template) string {
	ids := make([]string, len(templates))
	for i, t := range templates {
		ids[i] = t.TemplateID
	}
	sort.Strings(ids)

	h := sha256.New()
	fmt.Fprintf(h, "%s|%s|%d|%s",
		strings.ToLower(strings.TrimSpace(req.Topic)),
		req.Style,
		req.VariationsPerTemplate,
		strings.Join(ids, ","),
	)
	return "fp:" + hex.EncodeToString(h.Sum(nil))
}

// JobSnapshotKey addresses the cached copy of a completed job.
func JobSnapshotKey(jobID string) string {
	return "job:" + jobID
}
