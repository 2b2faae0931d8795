package jobs

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"signflow/internal/domain"
	"signflow/internal/engine/values"
	"signflow/internal/repo"
)

// SearchReindexer flattens parties and submissions into search_entries rows.
type SearchReindexer struct {
	Repo repo.Repo
}

func (s SearchReindexer) Handle(ctx context.Context, payload map[string]any) error {
	recordType, _ := payload["record_type"].(string)
	recordID, _ := payload["record_id"].(string)
	if recordType == "" || recordID == "" {
		return fmt.Errorf("%s: record_type and record_id are required", JobSearchReindex)
	}
	var body string
	switch recordType {
	case "Submitter":
		sub, err := s.Repo.GetSubmitter(ctx, s.Repo.DB, recordID)
		if err != nil {
			return err
		}
		body = submitterBody(sub)
	case "Submission":
		submission, err := s.Repo.GetSubmission(ctx, s.Repo.DB, recordID)
		if err != nil {
			return err
		}
		parts := make([]string, 0, len(submission.Submitters))
		for _, sub := range submission.Submitters {
			parts = append(parts, submitterBody(sub))
		}
		body = strings.Join(parts, "\n")
	default:
		return fmt.Errorf("%s: unsupported record type %q", JobSearchReindex, recordType)
	}
	return s.Repo.UpsertSearchEntry(ctx, recordType, recordID, body)
}

// submitterBody is the party's contact details followed by its non-blank values in
// field uuid order.
func submitterBody(sub domain.Submitter) string {
	parts := []string{}
	for _, v := range []string{sub.Name, sub.Email, sub.Phone} {
		if strings.TrimSpace(v) != "" {
			parts = append(parts, v)
		}
	}
	keys := make([]string, 0, len(sub.Values))
	for k := range sub.Values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v := sub.Values[k]
		if domain.IsBlank(v) {
			continue
		}
		if list, ok := v.([]any); ok {
			for _, item := range list {
				if s := values.String(item); s != "" {
					parts = append(parts, s)
				}
			}
			continue
		}
		parts = append(parts, values.String(v))
	}
	return strings.Join(parts, " ")
}
