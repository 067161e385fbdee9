package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/example/agenda/internal/record"
	"github.com/example/agenda/internal/scheduler"
	"github.com/example/agenda/internal/store"
)

// RecordStore captures the record store operations needed by the service.
type RecordStore interface {
	Records() []record.Record
	Record(id string) (record.Record, bool)
	AddRecord(rec record.Record) error
	UpdateRecord(id string, patch record.Patch) (record.Record, error)
	UpdateRecords(patches map[string]record.Patch) ([]record.Record, error)
	DeleteRecord(id string) (record.Record, error)
	Undo() bool
	Redo() bool
	CanUndo() bool
	CanRedo() bool
	Config() record.Config
	SetConfig(cfg record.Config)
	Subscribe(fn func(store.Change)) func()
}

// FreeTimeEngine captures the free-time engine operations needed by the service.
type FreeTimeEngine interface {
	Generate(rangeStart, rangeEnd time.Time, minGapMinutes int) []record.Record
	InvalidateAll()
	InvalidateDay(date time.Time)
}

// AgendaService orchestrates conflict detection, record mutations and free
// time queries over a single agenda.
type AgendaService struct {
	records     RecordStore
	freeTime    FreeTimeEngine
	detector    *scheduler.Detector
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger

	// mu serializes mutations that read the agenda before writing to it.
	mu sync.Mutex

	defaultMinGap int
	unsubscribe   func()
}

// NewAgendaService wires dependencies for agenda operations.
func NewAgendaService(records RecordStore, freeTime FreeTimeEngine, idGenerator func() string, now func() time.Time) *AgendaService {
	return NewAgendaServiceWithLogger(records, freeTime, idGenerator, now, nil)
}

// NewAgendaServiceWithLogger wires dependencies and a base logger. The
// service subscribes to store changes so cached free time is invalidated
// for every day a mutation touches.
func NewAgendaServiceWithLogger(records RecordStore, freeTime FreeTimeEngine, idGenerator func() string, now func() time.Time, logger *slog.Logger) *AgendaService {
	if now == nil {
		now = time.Now
	}
	if idGenerator == nil {
		idGenerator = NewULIDGenerator(now)
	}
	s := &AgendaService{
		records:     records,
		freeTime:    freeTime,
		detector:    scheduler.NewDetector(now),
		idGenerator: idGenerator,
		now:         now,
		logger:      defaultLogger(logger),
	}
	if records != nil && freeTime != nil {
		s.unsubscribe = records.Subscribe(s.invalidateFreeTime)
	}
	return s
}

// SetDefaultMinGap sets the minimum gap used when FreeTime callers pass a
// non-positive value.
func (s *AgendaService) SetDefaultMinGap(minutes int) {
	s.defaultMinGap = minutes
}

// Close detaches the service from store change events.
func (s *AgendaService) Close() {
	if s != nil && s.unsubscribe != nil {
		s.unsubscribe()
		s.unsubscribe = nil
	}
}

func (s *AgendaService) loggerFor(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "AgendaService", operation, attrs...)
}

// CreateRecord validates input, checks it against the agenda and stores it.
// A record whose conflicts block it starts under review.
func (s *AgendaService) CreateRecord(ctx context.Context, input RecordInput) (CreateResult, error) {
	if s == nil || s.records == nil {
		return CreateResult{}, fmt.Errorf("AgendaService is not configured")
	}
	logger := s.loggerFor(ctx, "CreateRecord", "owner_id", input.OwnerID)

	s.mu.Lock()
	defer s.mu.Unlock()

	vErr := &ValidationError{}
	s.validateInput(input, vErr)
	if input.ID != "" {
		if _, exists := s.records.Record(input.ID); exists {
			vErr.add("id", "already exists")
		}
	}
	if vErr.HasErrors() {
		logger.WarnContext(ctx, "record rejected", "error", vErr, "error_kind", ErrorKind(vErr))
		return CreateResult{}, vErr
	}

	id := input.ID
	if id == "" {
		id = s.idGenerator()
	}
	rec := s.buildRecord(input, id)
	result := s.detector.Detect(rec, s.records.Records())
	if !result.CanProceed {
		rec.Status = record.StatusUnderReview
		for i := range result.Conflicts {
			result.Conflicts[i].Records[0] = rec.Clone()
		}
	}

	if err := s.records.AddRecord(rec); err != nil {
		if errors.Is(err, store.ErrDuplicateRecord) {
			vErr.add("id", "already exists")
			return CreateResult{}, vErr
		}
		logger.ErrorContext(ctx, "failed to add record", "error", err, "error_kind", ErrorKind(err))
		return CreateResult{}, err
	}
	logger.InfoContext(ctx, "record created",
		"record_id", rec.ID,
		"status", rec.Status,
		"conflicts", len(result.Conflicts),
	)
	return CreateResult{Record: rec, Conflicts: result}, nil
}

// CheckConflicts runs conflict detection for input without storing anything.
// When input.ID names a stored record, that record is excluded from the
// comparison.
func (s *AgendaService) CheckConflicts(ctx context.Context, input RecordInput) (scheduler.Result, error) {
	if s == nil || s.records == nil {
		return scheduler.Result{}, fmt.Errorf("AgendaService is not configured")
	}

	vErr := &ValidationError{}
	s.validateInput(input, vErr)
	if vErr.HasErrors() {
		return scheduler.Result{}, vErr
	}

	candidate := s.buildRecord(input, input.ID)
	result := s.detector.Detect(candidate, s.records.Records())
	s.loggerFor(ctx, "CheckConflicts").DebugContext(ctx, "conflicts checked", "conflicts", len(result.Conflicts))
	return result, nil
}

// UpdateRecord applies patch to the record and reports the conflicts the
// updated record now has.
func (s *AgendaService) UpdateRecord(ctx context.Context, id string, patch record.Patch) (UpdateResult, error) {
	if s == nil || s.records == nil {
		return UpdateResult{}, fmt.Errorf("AgendaService is not configured")
	}
	logger := s.loggerFor(ctx, "UpdateRecord", "record_id", id)

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.records.Record(id)
	if !ok {
		return UpdateResult{}, ErrNotFound
	}

	vErr := &ValidationError{}
	s.validateRecord(patch.Apply(existing, s.now()), vErr)
	s.validateTaxonomy(deref(patch.AreaID), deref(patch.ContextID), deref(patch.TypeID), vErr)
	if vErr.HasErrors() {
		logger.WarnContext(ctx, "update rejected", "error", vErr, "error_kind", ErrorKind(vErr))
		return UpdateResult{}, vErr
	}

	updated, err := s.records.UpdateRecord(id, patch)
	if err != nil {
		err = mapStoreError(err)
		logger.ErrorContext(ctx, "failed to update record", "error", err, "error_kind", ErrorKind(err))
		return UpdateResult{}, err
	}

	result := s.detector.Detect(updated, s.records.Records())
	logger.InfoContext(ctx, "record updated", "conflicts", len(result.Conflicts))
	return UpdateResult{Record: updated, Conflicts: result}, nil
}

// DeleteRecord removes the record.
func (s *AgendaService) DeleteRecord(ctx context.Context, id string) error {
	if s == nil || s.records == nil {
		return fmt.Errorf("AgendaService is not configured")
	}
	logger := s.loggerFor(ctx, "DeleteRecord", "record_id", id)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.records.DeleteRecord(id); err != nil {
		err = mapStoreError(err)
		if !errors.Is(err, ErrNotFound) {
			logger.ErrorContext(ctx, "failed to delete record", "error", err, "error_kind", ErrorKind(err))
		}
		return err
	}
	logger.InfoContext(ctx, "record deleted")
	return nil
}

// GetRecord returns the record with the given ID.
func (s *AgendaService) GetRecord(ctx context.Context, id string) (record.Record, error) {
	if s == nil || s.records == nil {
		return record.Record{}, fmt.Errorf("AgendaService is not configured")
	}
	rec, ok := s.records.Record(id)
	if !ok {
		return record.Record{}, ErrNotFound
	}
	return rec, nil
}

// ListRecords returns the records matching filter ordered by start time.
// Untimed records sort last.
func (s *AgendaService) ListRecords(ctx context.Context, filter RecordFilter) ([]record.Record, error) {
	if s == nil || s.records == nil {
		return nil, fmt.Errorf("AgendaService is not configured")
	}
	if filter.From != nil && filter.To != nil && filter.To.Before(*filter.From) {
		vErr := &ValidationError{}
		vErr.add("to", "must not be before from")
		return nil, vErr
	}

	out := make([]record.Record, 0)
	for _, rec := range s.records.Records() {
		if matchesFilter(rec, filter) {
			out = append(out, rec)
		}
	}
	sortRecords(out)
	return out, nil
}

// ApplyResolution carries out one of the resolutions suggested for the
// conflict between candidateID and existingID.
func (s *AgendaService) ApplyResolution(ctx context.Context, candidateID, existingID string, action scheduler.ResolutionAction) (ResolutionOutcome, error) {
	if s == nil || s.records == nil {
		return ResolutionOutcome{}, fmt.Errorf("AgendaService is not configured")
	}
	logger := s.loggerFor(ctx, "ApplyResolution",
		"candidate_id", candidateID,
		"existing_id", existingID,
		"action", action,
	)

	s.mu.Lock()
	defer s.mu.Unlock()

	candidate, ok := s.records.Record(candidateID)
	if !ok {
		return ResolutionOutcome{}, ErrNotFound
	}
	existing, ok := s.records.Record(existingID)
	if !ok {
		return ResolutionOutcome{}, ErrNotFound
	}

	result := s.detector.Detect(candidate, []record.Record{existing})
	if !result.HasConflicts {
		return ResolutionOutcome{}, fmt.Errorf("%w: records do not conflict", ErrInvalidResolution)
	}
	offered := slices.ContainsFunc(result.Conflicts[0].Resolutions, func(opt scheduler.ResolutionOption) bool {
		return opt.Action == action
	})
	if !offered {
		return ResolutionOutcome{}, fmt.Errorf("%w: %s not offered", ErrInvalidResolution, action)
	}

	review := record.StatusUnderReview
	patches := make(map[string]record.Patch, 2)
	switch action {
	case scheduler.ActionPostponeNew:
		patches[candidateID] = record.Patch{Status: &review}
	case scheduler.ActionMoveExisting:
		patches[existingID] = moveAfter(existing, *candidate.EndTime)
	case scheduler.ActionReviewBoth:
		patches[candidateID] = record.Patch{Status: &review}
		patches[existingID] = record.Patch{Status: &review}
	}

	updated, err := s.records.UpdateRecords(patches)
	if err != nil {
		err = mapStoreError(err)
		logger.ErrorContext(ctx, "failed to apply resolution", "error", err, "error_kind", ErrorKind(err))
		return ResolutionOutcome{}, err
	}
	logger.InfoContext(ctx, "resolution applied", "records", len(updated))
	return ResolutionOutcome{Action: action, Records: updated}, nil
}

// moveAfter shifts rec to start at start while keeping its duration.
func moveAfter(rec record.Record, start time.Time) record.Patch {
	patch := record.Patch{StartTime: record.TimePtr(start)}
	if rec.EndTime != nil {
		patch.EndTime = record.TimePtr(start.Add(rec.EndTime.Sub(*rec.StartTime)))
	}
	return patch
}

// FreeTime returns the free blocks in [start, end].
func (s *AgendaService) FreeTime(ctx context.Context, start, end time.Time, minGapMinutes int) ([]record.Record, error) {
	if s == nil || s.freeTime == nil {
		return nil, fmt.Errorf("AgendaService is not configured")
	}
	if minGapMinutes <= 0 {
		minGapMinutes = s.defaultMinGap
	}
	blocks := s.freeTime.Generate(start, end, minGapMinutes)
	s.loggerFor(ctx, "FreeTime").DebugContext(ctx, "free time computed", "blocks", len(blocks))
	if blocks == nil {
		blocks = []record.Record{}
	}
	return blocks, nil
}

// Undo reverts the most recent record mutation. It reports whether anything
// changed.
func (s *AgendaService) Undo(ctx context.Context) (HistoryState, bool) {
	changed := s.records.Undo()
	s.loggerFor(ctx, "Undo").InfoContext(ctx, "undo requested", "changed", changed)
	return s.History(ctx), changed
}

// Redo reapplies the most recently undone mutation. It reports whether
// anything changed.
func (s *AgendaService) Redo(ctx context.Context) (HistoryState, bool) {
	changed := s.records.Redo()
	s.loggerFor(ctx, "Redo").InfoContext(ctx, "redo requested", "changed", changed)
	return s.History(ctx), changed
}

// History reports undo/redo availability.
func (s *AgendaService) History(context.Context) HistoryState {
	return HistoryState{CanUndo: s.records.CanUndo(), CanRedo: s.records.CanRedo()}
}

// Config returns the agenda taxonomy.
func (s *AgendaService) Config(context.Context) record.Config {
	return s.records.Config()
}

// UpdateConfig validates and replaces the agenda taxonomy.
func (s *AgendaService) UpdateConfig(ctx context.Context, cfg record.Config) (record.Config, error) {
	vErr := &ValidationError{}
	validateEntries(vErr, "areas", len(cfg.Areas), func(i int) (string, string) { return cfg.Areas[i].ID, cfg.Areas[i].Name })
	validateEntries(vErr, "contexts", len(cfg.Contexts), func(i int) (string, string) { return cfg.Contexts[i].ID, cfg.Contexts[i].Name })
	validateEntries(vErr, "types", len(cfg.Types), func(i int) (string, string) { return cfg.Types[i].ID, cfg.Types[i].Name })
	if vErr.HasErrors() {
		return record.Config{}, vErr
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.records.SetConfig(cfg)
	s.loggerFor(ctx, "UpdateConfig").InfoContext(ctx, "config updated",
		"areas", len(cfg.Areas),
		"contexts", len(cfg.Contexts),
		"types", len(cfg.Types),
	)
	return s.records.Config(), nil
}

func validateEntries(vErr *ValidationError, field string, n int, entry func(int) (id, name string)) {
	seen := make(map[string]struct{}, n)
	for i := 0; i < n; i++ {
		id, name := entry(i)
		key := fmt.Sprintf("%s[%d]", field, i)
		switch {
		case strings.TrimSpace(id) == "":
			vErr.add(key+".id", "is required")
		case strings.TrimSpace(name) == "":
			vErr.add(key+".name", "is required")
		}
		if _, dup := seen[id]; dup && id != "" {
			vErr.add(key+".id", "duplicates an earlier entry")
		}
		seen[id] = struct{}{}
	}
}

// invalidateFreeTime drops cached free time for every day a change touches.
func (s *AgendaService) invalidateFreeTime(change store.Change) {
	if change.Kind == store.ChangeConfig {
		return
	}
	if change.Resets() {
		s.freeTime.InvalidateAll()
		return
	}
	for _, rec := range change.Records {
		if rec.StartTime != nil {
			s.freeTime.InvalidateDay(*rec.StartTime)
		}
	}
}

func (s *AgendaService) buildRecord(input RecordInput, id string) record.Record {
	status := input.Status
	if status == "" {
		status = record.StatusConfirmed
	}
	priority := input.Priority
	if priority == "" {
		priority = record.PrioritySoft
	}

	createdAt := s.now()
	rec := record.Record{
		ID:              id,
		OwnerID:         strings.TrimSpace(input.OwnerID),
		Name:            strings.TrimSpace(input.Name),
		AreaID:          input.AreaID,
		ContextID:       input.ContextID,
		TypeID:          input.TypeID,
		Status:          status,
		Priority:        priority,
		StartTime:       input.StartTime,
		EndTime:         input.EndTime,
		DurationMinutes: input.DurationMinutes,
		IsAllDay:        input.IsAllDay,
		BufferBefore:    input.BufferBefore,
		BufferAfter:     input.BufferAfter,
		Checklist:       input.Checklist,
		Artifacts:       input.Artifacts,
		CreatedAt:       createdAt,
		UpdatedAt:       createdAt,
	}
	return rec.Clone()
}

func (s *AgendaService) validateInput(input RecordInput, vErr *ValidationError) {
	rec := record.Record{
		OwnerID:         input.OwnerID,
		Name:            input.Name,
		AreaID:          input.AreaID,
		ContextID:       input.ContextID,
		TypeID:          input.TypeID,
		Status:          input.Status,
		Priority:        input.Priority,
		StartTime:       input.StartTime,
		EndTime:         input.EndTime,
		DurationMinutes: input.DurationMinutes,
		BufferBefore:    input.BufferBefore,
		BufferAfter:     input.BufferAfter,
		Checklist:       input.Checklist,
	}
	if rec.Status == "" {
		rec.Status = record.StatusConfirmed
	}
	if rec.Priority == "" {
		rec.Priority = record.PrioritySoft
	}
	s.validateRecord(rec, vErr)
	s.validateTaxonomy(input.AreaID, input.ContextID, input.TypeID, vErr)
}

func (s *AgendaService) validateRecord(rec record.Record, vErr *ValidationError) {
	if strings.TrimSpace(rec.Name) == "" {
		vErr.add("name", "is required")
	}
	if strings.TrimSpace(rec.OwnerID) == "" {
		vErr.add("ownerId", "is required")
	}
	if !rec.Status.Valid() {
		vErr.add("status", "is not a known status")
	}
	if !rec.Priority.Valid() {
		vErr.add("priority", "must be hard or soft")
	}
	if rec.StartTime != nil && rec.EndTime != nil && rec.StartTime.After(*rec.EndTime) {
		vErr.add("startTime", "must not be after endTime")
	}
	if rec.EndTime != nil && rec.StartTime == nil {
		vErr.add("startTime", "is required when endTime is set")
	}
	if rec.DurationMinutes != nil && *rec.DurationMinutes < 0 {
		vErr.add("durationMinutes", "must not be negative")
	}
	if rec.BufferBefore != nil && rec.BufferBefore.Minutes < 0 {
		vErr.add("bufferBefore.minutes", "must not be negative")
	}
	if rec.BufferAfter != nil && rec.BufferAfter.Minutes < 0 {
		vErr.add("bufferAfter.minutes", "must not be negative")
	}
	for i, item := range rec.Checklist {
		if strings.TrimSpace(item.Name) == "" {
			vErr.add(fmt.Sprintf("checklist[%d].name", i), "is required")
		}
	}
}

// validateTaxonomy checks that non-empty classification IDs exist in the
// agenda configuration.
func (s *AgendaService) validateTaxonomy(areaID, contextID, typeID string, vErr *ValidationError) {
	cfg := s.records.Config()
	if areaID != "" && !cfg.HasArea(areaID) {
		vErr.add("areaId", "is not configured")
	}
	if contextID != "" && !cfg.HasContext(contextID) {
		vErr.add("contextId", "is not configured")
	}
	if typeID != "" && !cfg.HasType(typeID) {
		vErr.add("typeId", "is not configured")
	}
}

func matchesFilter(rec record.Record, filter RecordFilter) bool {
	if filter.OwnerID != "" && rec.OwnerID != filter.OwnerID {
		return false
	}
	if filter.AreaID != "" && rec.AreaID != filter.AreaID {
		return false
	}
	if filter.ContextID != "" && rec.ContextID != filter.ContextID {
		return false
	}
	if filter.TypeID != "" && rec.TypeID != filter.TypeID {
		return false
	}
	if len(filter.Statuses) > 0 && !slices.Contains(filter.Statuses, rec.Status) {
		return false
	}
	if filter.From == nil && filter.To == nil {
		return true
	}

	if rec.StartTime == nil {
		return false
	}
	start := *rec.StartTime
	end := start
	if _, e, ok := rec.Interval(); ok {
		end = e
	}
	if filter.To != nil && !start.Before(*filter.To) {
		return false
	}
	if filter.From != nil {
		if end.After(start) {
			return end.After(*filter.From)
		}
		return !start.Before(*filter.From)
	}
	return true
}

func sortRecords(records []record.Record) {
	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i], records[j]
		switch {
		case a.StartTime == nil && b.StartTime != nil:
			return false
		case a.StartTime != nil && b.StartTime == nil:
			return true
		case a.StartTime != nil && b.StartTime != nil && !a.StartTime.Equal(*b.StartTime):
			return a.StartTime.Before(*b.StartTime)
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func mapStoreError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, store.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
