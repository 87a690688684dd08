package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"cx-go/internal/cx"
)

// document is the persisted layout. Field order is the serialized order.
type document struct {
	Projects      []*cx.Project       `json:"projects"`
	CodebaseRules []*cx.CodebaseRules `json:"codebaseRules"`
}

func newDocument() *document {
	return &document{
		Projects:      []*cx.Project{},
		CodebaseRules: []*cx.CodebaseRules{},
	}
}

func encodeDocument(doc *document) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

var (
	projectFields = []string{"id", "name", "codebasePath", "exportPath", "exportFileName", "createdAt", "updatedAt"}
	rulesFields   = []string{"id", "projectId", "rootFolder", "ignoredFolders", "ignoredFiles", "ignoredFileTypes", "createdAt", "updatedAt"}
)

// decodeDocument parses data leniently. A collection that is missing or not
// an array becomes empty. Fields of the wrong type are reset and unknown
// fields are dropped; records without their identifying fields are dropped,
// as are rules whose project did not survive. Duplicate ids keep the first
// record. The returned notes describe every repair. An error is returned
// only when data is not a JSON object at all.
func decodeDocument(data []byte) (*document, []string, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		return nil, nil, err
	}
	if top == nil {
		return nil, nil, errors.New("document is null")
	}

	doc := newDocument()
	var notes []string

	projects, ok := rawArray(top["projects"])
	if !ok {
		notes = append(notes, "projects collection missing or invalid")
	}
	seenProjects := make(map[string]bool)
	for i, raw := range projects {
		r, ok := newRecordReader(raw, fmt.Sprintf("project at index %d", i))
		if !ok {
			notes = append(notes, fmt.Sprintf("dropped invalid project at index %d", i))
			continue
		}
		p := decodeProject(r)
		notes = append(notes, r.notes...)
		if p.ID == "" {
			notes = append(notes, fmt.Sprintf("dropped project without id at index %d", i))
			continue
		}
		if seenProjects[p.ID] {
			notes = append(notes, fmt.Sprintf("dropped duplicate project %s", p.ID))
			continue
		}
		seenProjects[p.ID] = true
		doc.Projects = append(doc.Projects, p)
	}

	rules, ok := rawArray(top["codebaseRules"])
	if !ok {
		notes = append(notes, "codebaseRules collection missing or invalid")
	}
	seenRules := make(map[string]bool)
	for i, raw := range rules {
		r, ok := newRecordReader(raw, fmt.Sprintf("rules at index %d", i))
		if !ok {
			notes = append(notes, fmt.Sprintf("dropped invalid rules at index %d", i))
			continue
		}
		cr := decodeRules(r)
		notes = append(notes, r.notes...)
		if cr.ID == "" || cr.ProjectID == "" {
			notes = append(notes, fmt.Sprintf("dropped rules without id or projectId at index %d", i))
			continue
		}
		if !seenProjects[cr.ProjectID] {
			notes = append(notes, fmt.Sprintf("dropped rules %s of missing project %s", cr.ID, cr.ProjectID))
			continue
		}
		if seenRules[cr.ProjectID] {
			notes = append(notes, fmt.Sprintf("dropped duplicate rules for project %s", cr.ProjectID))
			continue
		}
		seenRules[cr.ProjectID] = true
		doc.CodebaseRules = append(doc.CodebaseRules, cr)
	}

	return doc, notes, nil
}

func decodeProject(r *recordReader) *cx.Project {
	r.dropUnknown(projectFields)
	p := &cx.Project{
		ID:             r.str("id"),
		Name:           r.str("name"),
		CodebasePath:   r.str("codebasePath"),
		ExportPath:     r.str("exportPath"),
		ExportFileName: r.str("exportFileName"),
	}
	p.CreatedAt, p.UpdatedAt = r.timestamps()
	return p
}

func decodeRules(r *recordReader) *cx.CodebaseRules {
	r.dropUnknown(rulesFields)
	cr := &cx.CodebaseRules{
		ID:               r.str("id"),
		ProjectID:        r.str("projectId"),
		RootFolder:       r.str("rootFolder"),
		IgnoredFolders:   r.strs("ignoredFolders"),
		IgnoredFiles:     r.strs("ignoredFiles"),
		IgnoredFileTypes: r.strs("ignoredFileTypes"),
	}
	cr.CreatedAt, cr.UpdatedAt = r.timestamps()
	return cr
}

// recordReader reads the fields of one stored record, resetting values of
// the wrong type and noting each repair.
type recordReader struct {
	fields map[string]json.RawMessage
	label  string
	notes  []string
}

func newRecordReader(raw json.RawMessage, label string) (*recordReader, bool) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return nil, false
	}
	return &recordReader{fields: fields, label: label}, true
}

func (r *recordReader) note(format string, args ...any) {
	r.notes = append(r.notes, r.label+": "+fmt.Sprintf(format, args...))
}

func (r *recordReader) value(key string) (json.RawMessage, bool) {
	raw, ok := r.fields[key]
	if !ok || isNull(raw) {
		return nil, false
	}
	return raw, true
}

func (r *recordReader) str(key string) string {
	raw, ok := r.value(key)
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		r.note("reset non-string %s", key)
		return ""
	}
	return s
}

// strs always returns a non-nil slice so lists serialize as [].
func (r *recordReader) strs(key string) []string {
	out := []string{}
	raw, ok := r.value(key)
	if !ok {
		return out
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		r.note("reset non-array %s", key)
		return out
	}
	for _, item := range items {
		var s string
		if err := json.Unmarshal(item, &s); err != nil {
			r.note("dropped non-string entry from %s", key)
			continue
		}
		out = append(out, s)
	}
	return out
}

// timestamps reads createdAt and updatedAt. An unusable createdAt becomes
// the zero time; an unusable or earlier updatedAt becomes createdAt.
func (r *recordReader) timestamps() (time.Time, time.Time) {
	created, _ := r.timestamp("createdAt")
	updated, ok := r.timestamp("updatedAt")
	if !ok {
		updated = created
	}
	if updated.Before(created) {
		r.note("raised updatedAt to createdAt")
		updated = created
	}
	return created, updated
}

func (r *recordReader) timestamp(key string) (time.Time, bool) {
	raw, ok := r.value(key)
	if !ok {
		r.note("missing %s", key)
		return time.Time{}, false
	}
	var ms float64
	if err := json.Unmarshal(raw, &ms); err == nil {
		return time.UnixMilli(int64(ms)).UTC(), true
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		r.note("reset non-string %s", key)
		return time.Time{}, false
	}
	t, ok := parseTimestamp(s)
	if !ok {
		r.note("reset unparseable %s %q", key, s)
		return time.Time{}, false
	}
	return t, true
}

func (r *recordReader) dropUnknown(known []string) {
	var unknown []string
	for k := range r.fields {
		if !slices.Contains(known, k) {
			unknown = append(unknown, k)
		}
	}
	if len(unknown) > 0 {
		slices.Sort(unknown)
		r.note("dropped unknown fields %s", strings.Join(unknown, ", "))
	}
}

// timestampLayouts are the ISO-8601 forms accepted on load, most specific
// first. Forms without a zone are read as UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999Z0700",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04Z07:00",
	"2006-01-02T15:04",
	"2006-01-02",
	"2006-01",
	"2006",
}

func parseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

func rawArray(raw json.RawMessage) ([]json.RawMessage, bool) {
	if len(raw) == 0 || isNull(raw) {
		return nil, false
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, false
	}
	return items, true
}

// normalizeRules replaces nil lists with empty ones so they serialize as [].
func normalizeRules(r *cx.CodebaseRules) {
	if r.IgnoredFolders == nil {
		r.IgnoredFolders = []string{}
	}
	if r.IgnoredFiles == nil {
		r.IgnoredFiles = []string{}
	}
	if r.IgnoredFileTypes == nil {
		r.IgnoredFileTypes = []string{}
	}
}

// load reads the document at s.path, creating or repairing it first when
// needed. Callers must hold the store lock.
func (s *JSONStore) load() (*document, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		doc := newDocument()
		if err := s.save(doc); err != nil {
			return nil, err
		}
		s.logger.Info("store created", "path", s.path)
		return doc, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: reading store: %v", cx.ErrPersistence, err)
	}

	doc, notes, err := decodeDocument(data)
	if err != nil {
		if qerr := s.quarantine(); qerr != nil {
			return nil, qerr
		}
		doc = newDocument()
		if err := s.save(doc); err != nil {
			return nil, err
		}
		return doc, nil
	}

	if len(notes) > 0 {
		for _, note := range notes {
			s.logger.Warn("store repaired", "path", s.path, "detail", note)
		}
		if err := s.save(doc); err != nil {
			return nil, err
		}
	}
	return doc, nil
}

// quarantine moves an unparseable store file aside so it can be inspected.
func (s *JSONStore) quarantine() error {
	dest := s.path + ".corrupt-" + cx.TimestampToken(s.clock.Now())
	if err := os.Rename(s.path, dest); err != nil {
		return fmt.Errorf("%w: quarantining corrupt store: %v", cx.ErrPersistence, err)
	}
	s.logger.Warn("store unparseable, replaced with empty document", "path", s.path, "quarantined", dest)
	return nil
}

func (s *JSONStore) save(doc *document) error {
	data, err := encodeDocument(doc)
	if err != nil {
		return fmt.Errorf("%w: encoding store: %v", cx.ErrPersistence, err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("%w: creating store directory: %v", cx.ErrPersistence, err)
	}
	if err := atomicWrite(s.path, data); err != nil {
		return fmt.Errorf("%w: %v", cx.ErrPersistence, err)
	}
	return nil
}
