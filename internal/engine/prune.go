package engine

import (
	"signflow/internal/domain"
	"signflow/internal/engine/conditions"
)

// nonEditableTypes never count as required.
var nonEditableTypes = map[string]bool{
	domain.FieldStamp:         true,
	domain.FieldHeading:       true,
	domain.FieldStrikethrough: true,
}

func requiredEditable(f domain.Field) bool {
	return f.Required && !f.Readonly && !nonEditableTypes[f.Type]
}

// orderedSet keeps insertion order so the first missing field is deterministic.
type orderedSet struct {
	items []string
	index map[string]int
}

func newOrderedSet() *orderedSet {
	return &orderedSet{index: map[string]int{}}
}

func (s *orderedSet) add(v string) {
	if _, ok := s.index[v]; ok {
		return
	}
	s.index[v] = len(s.items)
	s.items = append(s.items, v)
}

func (s *orderedSet) remove(v string) {
	i, ok := s.index[v]
	if !ok {
		return
	}
	s.items = append(s.items[:i], s.items[i+1:]...)
	delete(s.index, v)
	for j := i; j < len(s.items); j++ {
		s.index[s.items[j]] = j
	}
}

func (s *orderedSet) list() []string {
	return append([]string(nil), s.items...)
}

// ownedFields returns the party's fields in template order.
func ownedFields(submission domain.Submission, partyUUID string) []domain.Field {
	var out []domain.Field
	for _, f := range submission.TemplateFields {
		if f.SubmitterUUID == partyUUID {
			out = append(out, f)
		}
	}
	return out
}

// mergeParties overlays every other party's values, then the given party's values.
func mergeParties(submission domain.Submission, party domain.Submitter, own map[string]any) map[string]any {
	maps := make([]map[string]any, 0, len(submission.Submitters)+1)
	for _, other := range submission.Submitters {
		if other.ID == party.ID {
			continue
		}
		maps = append(maps, other.Values)
	}
	maps = append(maps, own)
	return domain.MergeValues(maps...)
}

func hasDocumentConditions(submission domain.Submission) bool {
	for _, doc := range submission.TemplateSchema {
		if len(doc.Conditions) > 0 {
			return true
		}
	}
	return false
}

// FilteredSchema returns the documents whose conditions hold for the merged values.
func FilteredSchema(ev conditions.Evaluator, submission domain.Submission, merged map[string]any) []domain.SchemaDocument {
	index := submission.FieldIndex()
	var out []domain.SchemaDocument
	for _, doc := range submission.TemplateSchema {
		if ev.Holds(doc.Conditions, merged, index) {
			out = append(out, doc)
		}
	}
	return out
}

func anchored(f domain.Field, docs map[string]bool) bool {
	if len(f.Areas) == 0 {
		return true
	}
	for _, a := range f.Areas {
		if docs[a.AttachmentUUID] {
			return true
		}
	}
	return false
}

// Prune drops the values of the party's fields whose conditions no longer hold, or
// whose areas sit on a document excluded by document conditions. It returns the pruned
// values and the required, editable fields that are still active, in field order.
// Pruning repeats until nothing more is removed, so pruning a pruned set is a no-op.
func (e Engine) Prune(submission domain.Submission, party domain.Submitter, s Settings) (map[string]any, []string) {
	values := domain.CloneValues(party.Values)
	for {
		required, removed := e.prunePass(submission, party, values, s)
		if !removed {
			return values, required
		}
	}
}

func (e Engine) prunePass(submission domain.Submission, party domain.Submitter, values map[string]any, s Settings) ([]string, bool) {
	ev := e.evaluator(s)
	index := submission.FieldIndex()
	hasOthers := len(submission.TemplateSubmitters) > 1
	required := newOrderedSet()
	removed := false
	drop := func(uuid string) {
		if _, ok := values[uuid]; ok {
			delete(values, uuid)
			removed = true
		}
		required.remove(uuid)
	}

	var docs map[string]bool
	if hasDocumentConditions(submission) {
		docs = map[string]bool{}
		for _, doc := range FilteredSchema(ev, submission, mergeParties(submission, party, values)) {
			docs[doc.AttachmentUUID] = true
		}
	}

	var merged map[string]any
	for _, field := range ownedFields(submission, party.UUID) {
		if requiredEditable(field) {
			required.add(field.UUID)
		}
		if docs != nil && !anchored(field, docs) {
			drop(field.UUID)
		}
		if hasOthers && merged == nil && conditions.ReferencesOtherParty(field, party.UUID, index) {
			merged = mergeParties(submission, party, values)
		}
		scope := values
		if merged != nil {
			scope = merged
		}
		if !ev.Evaluate(field, scope, index) {
			drop(field.UUID)
		}
	}
	return required.list(), removed
}
