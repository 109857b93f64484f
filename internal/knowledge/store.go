// Package knowledge persists what the agent has learned about specific sites:
// step-by-step workflows with confidence scores, approaches known to fail,
// and contact handles. Everything lives in one JSON document loaded at
// startup and flushed at task boundaries.
package knowledge

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const documentVersion = "1.0"

// Confidence arithmetic. Scores answer "how much should a stored workflow be
// trusted over fresh reasoning"; they move slowly on success and drop faster
// on failure.
const (
	NewWorkflowConfidence = 0.7
	successBoost          = 0.05
	failurePenalty        = 0.10
	minConfidence         = 0.1
	maxConfidence         = 1.0

	newFailureConfidence = 0.8
	repeatFailureBoost   = 0.1
)

// Step is one primitive action inside a stored workflow. Only the fields
// relevant to its action are set.
type Step struct {
	Action    string `json:"action"`
	Target    string `json:"target,omitempty"`
	Text      string `json:"text,omitempty"`
	Field     string `json:"field,omitempty"`
	URL       string `json:"url,omitempty"`
	Key       string `json:"key,omitempty"`
	Seconds   int    `json:"seconds,omitempty"`
	Direction string `json:"direction,omitempty"`
	Amount    int    `json:"amount,omitempty"`
	Note      string `json:"note,omitempty"`
}

// Workflow is a learned recipe for one task on one site.
type Workflow struct {
	Steps            []Step    `json:"steps"`
	Confidence       float64   `json:"confidence"`
	LearnedFrom      string    `json:"learned_from,omitempty"`
	SuccessCount     int       `json:"success_count"`
	FailCount        int       `json:"fail_count"`
	SuccessIndicator string    `json:"success_indicator,omitempty"`
	LastSuccess      time.Time `json:"last_success,omitempty"`
	LastFailure      time.Time `json:"last_failure,omitempty"`
}

// UserHint is a free-text instruction a user gave when the agent was stuck.
type UserHint struct {
	Task        string    `json:"task"`
	Instruction string    `json:"instruction"`
	LearnedAt   time.Time `json:"learned_at"`
}

// Site groups everything known about one domain. AltDomains lists aliases
// that should resolve to this entry (e.g. x.com for twitter.com).
type Site struct {
	AltDomains []string             `json:"alt_domains,omitempty"`
	Workflows  map[string]*Workflow `json:"workflows"`
	UserHints  []UserHint           `json:"user_hints,omitempty"`
}

// FailureRecord captures an approach that did not work, so it is never
// suggested again. Records are deduplicated on (site, task, wrong approach).
type FailureRecord struct {
	Site            string    `json:"site"`
	Task            string    `json:"task"`
	WrongApproach   string    `json:"wrong_approach"`
	WhyFailed       string    `json:"why_failed,omitempty"`
	CorrectApproach string    `json:"correct_approach,omitempty"`
	Confidence      float64   `json:"confidence"`
	LearnedAt       time.Time `json:"learned_at"`
	LastSeen        time.Time `json:"last_seen,omitempty"`
}

// Document is the on-disk shape of the knowledge file.
type Document struct {
	Version   string                       `json:"version"`
	CreatedAt time.Time                    `json:"created_at"`
	UpdatedAt time.Time                    `json:"last_updated"`
	Sites     map[string]*Site             `json:"sites"`
	Contacts  map[string]map[string]string `json:"contacts"`
	Failures  []*FailureRecord             `json:"learned_failures"`
}

// Store owns the knowledge document. Mutations mark it dirty; Save writes it
// back only when something changed.
type Store struct {
	path   string
	logger *zap.Logger
	now    func() time.Time

	mu    sync.Mutex
	doc   *Document
	dirty bool
}

// Open loads the knowledge document at path, creating a fresh one (and its
// parent directory) when none exists. A corrupt file is replaced with a
// default document rather than aborting.
func Open(path string, logger *zap.Logger) (*Store, error) {
	s := &Store{
		path:   path,
		logger: logger.Named("knowledge"),
		now:    time.Now,
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating knowledge directory: %w", err)
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		var doc Document
		if uerr := json.Unmarshal(data, &doc); uerr != nil {
			s.logger.Warn("Knowledge file is corrupt, starting fresh",
				zap.String("path", path), zap.Error(uerr))
			s.doc = s.defaultDocument()
			s.dirty = true
		} else {
			s.doc = &doc
			s.normalizeLocked()
			s.logger.Info("Loaded knowledge", zap.String("path", path),
				zap.Int("sites", len(doc.Sites)), zap.Int("failures", len(doc.Failures)))
		}
	case os.IsNotExist(err):
		s.logger.Info("No knowledge file, creating default", zap.String("path", path))
		s.doc = s.defaultDocument()
		s.dirty = true
		if ferr := s.Flush(); ferr != nil {
			return nil, ferr
		}
	default:
		return nil, fmt.Errorf("reading knowledge file: %w", err)
	}

	return s, nil
}

func (s *Store) defaultDocument() *Document {
	now := s.now()
	return &Document{
		Version:   documentVersion,
		CreatedAt: now,
		UpdatedAt: now,
		Sites:     make(map[string]*Site),
		Contacts:  make(map[string]map[string]string),
	}
}

// normalizeLocked fills nil maps a hand-edited or older file may carry.
func (s *Store) normalizeLocked() {
	if s.doc.Sites == nil {
		s.doc.Sites = make(map[string]*Site)
	}
	if s.doc.Contacts == nil {
		s.doc.Contacts = make(map[string]map[string]string)
	}
	for _, site := range s.doc.Sites {
		if site.Workflows == nil {
			site.Workflows = make(map[string]*Workflow)
		}
	}
}

// Path returns the backing file location.
func (s *Store) Path() string { return s.path }

// normalizeSite strips "www." so lookups and records agree on domain keys.
func normalizeSite(site string) string {
	return strings.TrimPrefix(strings.ToLower(strings.TrimSpace(site)), "www.")
}

// siteEntryLocked resolves a domain to its site entry, following alt-domain
// aliases. Caller holds mu.
func (s *Store) siteEntryLocked(site string) (*Site, bool) {
	site = normalizeSite(site)
	if entry, ok := s.doc.Sites[site]; ok {
		return entry, true
	}
	for _, entry := range s.doc.Sites {
		for _, alt := range entry.AltDomains {
			if normalizeSite(alt) == site {
				return entry, true
			}
		}
	}
	return nil, false
}

// Workflow returns the stored workflow for a task on a site, following
// alt-domain aliases. The returned value is a copy.
func (s *Store) Workflow(site, task string) (Workflow, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.siteEntryLocked(site)
	if !ok {
		return Workflow{}, false
	}
	wf, ok := entry.Workflows[task]
	if !ok {
		return Workflow{}, false
	}
	return *wf, true
}

// RecordSuccess notes that a task completed. An existing workflow gains
// confidence and keeps its steps; a previously unknown task becomes a new
// workflow learned from the executed steps. Creating a workflow with no steps
// is refused: an empty recipe teaches nothing.
func (s *Store) RecordSuccess(site, task string, steps []Step) error {
	site = normalizeSite(site)
	if site == "" || task == "" {
		return fmt.Errorf("knowledge: success needs a site and task")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.siteEntryLocked(site)
	if !ok {
		entry = &Site{Workflows: make(map[string]*Workflow)}
		s.doc.Sites[site] = entry
	}

	if wf, ok := entry.Workflows[task]; ok {
		wf.Confidence = clamp(wf.Confidence + successBoost)
		wf.SuccessCount++
		wf.LastSuccess = s.now()
		s.dirty = true
		return nil
	}

	if len(steps) == 0 {
		return fmt.Errorf("knowledge: refusing to learn empty workflow for %s on %s", task, site)
	}

	entry.Workflows[task] = &Workflow{
		Steps:        steps,
		Confidence:   NewWorkflowConfidence,
		LearnedFrom:  "success",
		SuccessCount: 1,
		LastSuccess:  s.now(),
	}
	s.dirty = true
	s.logger.Info("Learned new workflow", zap.String("site", site), zap.String("task", task),
		zap.Int("steps", len(steps)))
	return nil
}

// RecordWorkflowFailure drops a stored workflow's confidence after an attempt
// that used it did not reach the goal. Unknown workflows are a no-op.
func (s *Store) RecordWorkflowFailure(site, task string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.siteEntryLocked(site)
	if !ok {
		return
	}
	wf, ok := entry.Workflows[task]
	if !ok {
		return
	}
	wf.Confidence = clamp(wf.Confidence - failurePenalty)
	wf.FailCount++
	wf.LastFailure = s.now()
	s.dirty = true
}

// PutWorkflow stores a workflow wholesale, replacing any existing steps for
// the task. This is the explicit re-teaching path; automatic success
// recording never overwrites steps.
func (s *Store) PutWorkflow(site, task string, wf Workflow) error {
	site = normalizeSite(site)
	if site == "" || task == "" {
		return fmt.Errorf("knowledge: workflow needs a site and task")
	}
	if len(wf.Steps) == 0 {
		return fmt.Errorf("knowledge: refusing to store empty workflow for %s on %s", task, site)
	}
	if wf.Confidence == 0 {
		wf.Confidence = NewWorkflowConfidence
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.siteEntryLocked(site)
	if !ok {
		entry = &Site{Workflows: make(map[string]*Workflow)}
		s.doc.Sites[site] = entry
	}
	stored := wf
	entry.Workflows[task] = &stored
	s.dirty = true
	return nil
}

// RecordFailure stores an approach that should not be repeated. A repeat
// observation of a known record raises its confidence instead of duplicating.
func (s *Store) RecordFailure(site, task, wrongApproach, whyFailed, correctApproach string) {
	site = normalizeSite(site)
	if wrongApproach == "" {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, f := range s.doc.Failures {
		if f.Site == site && f.Task == task && f.WrongApproach == wrongApproach {
			f.Confidence = clampMax(f.Confidence + repeatFailureBoost)
			f.LastSeen = s.now()
			s.dirty = true
			return
		}
	}

	s.doc.Failures = append(s.doc.Failures, &FailureRecord{
		Site:            site,
		Task:            task,
		WrongApproach:   wrongApproach,
		WhyFailed:       whyFailed,
		CorrectApproach: correctApproach,
		Confidence:      newFailureConfidence,
		LearnedAt:       s.now(),
	})
	s.dirty = true
	s.logger.Info("Learned failure", zap.String("site", site), zap.String("avoid", wrongApproach))
}

// Failures returns all failure records for a site.
func (s *Store) Failures(site string) []FailureRecord {
	site = normalizeSite(site)
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []FailureRecord
	for _, f := range s.doc.Failures {
		if f.Site == site {
			out = append(out, *f)
		}
	}
	return out
}

// FailuresFor returns failure records scoped to one task on a site.
func (s *Store) FailuresFor(site, task string) []FailureRecord {
	site = normalizeSite(site)
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []FailureRecord
	for _, f := range s.doc.Failures {
		if f.Site == site && f.Task == task {
			out = append(out, *f)
		}
	}
	return out
}

// Contact looks up a contact by name, case-insensitively. The stored
// canonical name is returned alongside the platform handles.
func (s *Store) Contact(name string) (string, map[string]string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	lower := strings.ToLower(name)
	for stored, handles := range s.doc.Contacts {
		if strings.ToLower(stored) == lower {
			copied := make(map[string]string, len(handles))
			for k, v := range handles {
				copied[k] = v
			}
			return stored, copied, true
		}
	}
	return "", nil, false
}

// SetContact records a platform handle for a contact, merging into an
// existing entry regardless of name casing.
func (s *Store) SetContact(name, platform, value string) {
	if name == "" || platform == "" {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	lower := strings.ToLower(name)
	for stored, handles := range s.doc.Contacts {
		if strings.ToLower(stored) == lower {
			handles[platform] = value
			s.dirty = true
			return
		}
	}
	s.doc.Contacts[lower] = map[string]string{platform: value}
	s.dirty = true
}

// AddUserHint keeps a free-text instruction from the user next to the site it
// applies to.
func (s *Store) AddUserHint(site, task, instruction string) {
	site = normalizeSite(site)
	if site == "" || instruction == "" {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.siteEntryLocked(site)
	if !ok {
		entry = &Site{Workflows: make(map[string]*Workflow)}
		s.doc.Sites[site] = entry
	}
	entry.UserHints = append(entry.UserHints, UserHint{
		Task:        task,
		Instruction: instruction,
		LearnedAt:   s.now(),
	})
	s.dirty = true
}

// Hints returns the user-taught instructions for a site, optionally filtered
// to one task. Hints recorded without a task apply to every task.
func (s *Store) Hints(site, task string) []UserHint {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.siteEntryLocked(site)
	if !ok {
		return nil
	}
	hints := make([]UserHint, 0, len(entry.UserHints))
	for _, h := range entry.UserHints {
		if task == "" || h.Task == "" || h.Task == task {
			hints = append(hints, h)
		}
	}
	return hints
}

// Save writes the document if anything changed since the last write.
func (s *Store) Save() error {
	s.mu.Lock()
	dirty := s.dirty
	s.mu.Unlock()
	if !dirty {
		return nil
	}
	return s.Flush()
}

// Flush writes the document unconditionally.
func (s *Store) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.doc.UpdatedAt = s.now()
	data, err := json.MarshalIndent(s.doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding knowledge: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("writing knowledge file: %w", err)
	}
	s.dirty = false
	s.logger.Debug("Saved knowledge", zap.String("path", s.path))
	return nil
}

func clamp(v float64) float64 {
	if v < minConfidence {
		return minConfidence
	}
	return clampMax(v)
}

func clampMax(v float64) float64 {
	if v > maxConfidence {
		return maxConfidence
	}
	return v
}
