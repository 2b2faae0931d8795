// Package attachments records generated attachments for parties.
package attachments

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"signflow/internal/domain"
	"signflow/internal/repo"
)

const recordTypeSubmitter = "Submitter"

// StampGenerator builds stamp attachments for parties. Rendering the image is left
// to the document pipeline; the row carries what it needs.
type StampGenerator struct {
	Repo repo.Repo
	Now  func() time.Time
}

// NewStamp builds the attachment row for a party's stamp without storing it.
func (g StampGenerator) NewStamp(sub domain.Submitter, withLogo bool) domain.Attachment {
	now := time.Now
	if g.Now != nil {
		now = g.Now
	}
	return domain.Attachment{
		UUID:       uuid.NewString(),
		RecordType: recordTypeSubmitter,
		RecordID:   sub.ID,
		Name:       "stamp.png",
		Metadata: map[string]any{
			"kind":      "stamp",
			"with_logo": withLogo,
			"name":      sub.Name,
			"email":     sub.Email,
		},
		CreatedAt: now().UTC().Format(time.RFC3339),
	}
}

// SaveStamp stores a stamp built by NewStamp on q, usually the completing tx.
func (g StampGenerator) SaveStamp(ctx context.Context, q repo.DBTX, a domain.Attachment) error {
	if err := g.Repo.InsertAttachment(ctx, q, a); err != nil {
		return fmt.Errorf("insert stamp attachment: %w", err)
	}
	return nil
}
