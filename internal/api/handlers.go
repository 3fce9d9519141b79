package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/Nomadcxx/jellyrename/internal/catalog"
	"github.com/Nomadcxx/jellyrename/internal/executor"
	"github.com/Nomadcxx/jellyrename/internal/logging"
	"github.com/Nomadcxx/jellyrename/internal/matcher"
	"github.com/Nomadcxx/jellyrename/internal/planner"
	"github.com/Nomadcxx/jellyrename/internal/scanner"
	"github.com/Nomadcxx/jellyrename/internal/session"
	"github.com/Nomadcxx/jellyrename/internal/undo"
)

const defaultHistoryLimit = 20

// EntryView is the wire form of a session entry.
type EntryView struct {
	ID         int                `json:"id"`
	Source     string             `json:"source"`
	Path       string             `json:"path"`
	Status     session.Status     `json:"status"`
	Show       *catalog.Show      `json:"show,omitempty"`
	Confidence matcher.Confidence `json:"confidence"`
	Reason     string             `json:"reason,omitempty"`
	Target     string             `json:"target,omitempty"`
	Error      string             `json:"error,omitempty"`
}

func viewEntry(e session.Entry) EntryView {
	v := EntryView{
		ID:         e.ID,
		Source:     e.Source,
		Path:       e.Path,
		Status:     e.Status,
		Show:       e.Show(),
		Confidence: e.Confidence(),
		Target:     e.Target,
		Error:      e.Error,
	}
	if e.Match != nil {
		v.Reason = e.Match.Reason
	}
	return v
}

func viewEntries(entries []session.Entry) []EntryView {
	out := make([]EntryView, len(entries))
	for i, e := range entries {
		out[i] = viewEntry(e)
	}
	return out
}

type BatchState struct {
	Entries  []EntryView       `json:"entries"`
	Requests []session.Request `json:"requests"`
	Executed bool              `json:"executed"`
	CanUndo  bool              `json:"can_undo"`
	// UndoBatch is the batch an undo would revert, 0 when there is none.
	UndoBatch int64         `json:"undo_batch,omitempty"`
	Catalog   catalog.Stats `json:"catalog"`
}

// state must be called with mu held.
func (s *Server) state() BatchState {
	reqs := s.sess.Pending()
	if reqs == nil {
		reqs = []session.Request{}
	}
	st := BatchState{
		Entries:  viewEntries(s.sess.Entries()),
		Requests: reqs,
		Executed: s.sess.Executed(),
		CanUndo:  s.sess.CanUndo(),
		Catalog:  s.sess.CatalogStats(),
	}
	if rec := s.sess.UndoRecord(); rec != nil {
		st.UndoBatch = rec.BatchID
	}
	return st
}

type AddFilesRequest struct {
	Paths     []string `json:"paths"`
	Recursive *bool    `json:"recursive,omitempty"`
}

type AddFilesResponse struct {
	Added   []EntryView `json:"added"`
	Skipped int         `json:"skipped"`
	Errors  []string    `json:"errors,omitempty"`
	BatchState
}

// AddFiles expands files and directories into the batch.
func (s *Server) AddFiles(w http.ResponseWriter, r *http.Request) {
	var req AddFilesRequest
	if err := parseJSONBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}
	if len(req.Paths) == 0 {
		writeError(w, http.StatusBadRequest, "invalid_body", "paths must not be empty")
		return
	}

	opts := s.scan
	if req.Recursive != nil {
		opts.Recursive = *req.Recursive
	}
	found := scanner.Collect(req.Paths, opts)

	s.mu.Lock()
	defer s.mu.Unlock()

	added := s.sess.Add(found.Files...)
	resp := AddFilesResponse{
		Added:      viewEntries(added),
		Skipped:    found.Skipped,
		BatchState: s.state(),
	}
	for _, err := range found.Errors {
		resp.Errors = append(resp.Errors, err.Error())
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetEntries returns the current batch.
func (s *Server) GetEntries(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	writeJSON(w, http.StatusOK, s.state())
}

// RemoveEntry drops one entry from a batch that has not been executed.
func (s *Server) RemoveEntry(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_id", "entry id must be an integer")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sess.Executed() {
		writeError(w, http.StatusConflict, "batch_done", session.ErrBatchDone.Error())
		return
	}
	if !s.sess.Remove(id) {
		writeError(w, http.StatusNotFound, "no_entry", "no entry with id "+strconv.Itoa(id))
		return
	}
	writeJSON(w, http.StatusOK, s.state())
}

// Resolve matches pending entries and returns the open show choices.
func (s *Server) Resolve(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sess.Executed() {
		writeError(w, http.StatusConflict, "batch_done", session.ErrBatchDone.Error())
		return
	}
	s.sess.Resolve(r.Context())
	writeJSON(w, http.StatusOK, s.state())
}

type ChooseRequest struct {
	Query  string `json:"query"`
	ShowID int    `json:"show_id"`
}

// Choose applies a show selection to every entry waiting on a query.
func (s *Server) Choose(w http.ResponseWriter, r *http.Request) {
	var req ChooseRequest
	if err := parseJSONBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.sess.Choose(r.Context(), req.Query, req.ShowID)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, s.state())
	case errors.Is(err, session.ErrNoRequest):
		writeError(w, http.StatusNotFound, "no_request", err.Error())
	case errors.Is(err, matcher.ErrUnknownCandidate):
		writeError(w, http.StatusBadRequest, "unknown_candidate", err.Error())
	case errors.Is(err, session.ErrBatchDone):
		writeError(w, http.StatusConflict, "batch_done", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "choose_failed", err.Error())
	}
}

type PlanResponse struct {
	Plan    *planner.Plan `json:"plan"`
	Summary PlanSummary   `json:"summary"`
	BatchState
}

type PlanSummary struct {
	Renames   int `json:"renames"`
	Unchanged int `json:"unchanged"`
	Unmatched int `json:"unmatched"`
	Rejected  int `json:"rejected"`
	Deferred  int `json:"deferred"`
}

func summarize(p *planner.Plan) PlanSummary {
	return PlanSummary{
		Renames:   len(p.Renames),
		Unchanged: len(p.Unchanged),
		Unmatched: len(p.Unmatched),
		Rejected:  len(p.Rejected),
		Deferred:  len(p.Deferred),
	}
}

// BuildPlan plans the batch. The optional body overrides naming options for
// this session.
func (s *Server) BuildPlan(w http.ResponseWriter, r *http.Request) {
	var overrides planner.Overrides
	if err := parseJSONBody(r, &overrides); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !overrides.Empty() {
		opts, err := overrides.Apply(s.sess.Options())
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_options", err.Error())
			return
		}
		s.sess.SetOptions(opts)
	}

	unlock := s.lockBatch()
	plan, err := s.sess.Plan()
	unlock()
	if err != nil {
		var perr *planner.PlanningError
		switch {
		case errors.As(err, &perr):
			writeJSON(w, http.StatusUnprocessableEntity, map[string]interface{}{
				"code":    "planning_failed",
				"message": perr.Error(),
				"path":    perr.Path,
				"entries": perr.Entries,
			})
		case errors.Is(err, session.ErrBatchDone):
			writeError(w, http.StatusConflict, "batch_done", err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "plan_failed", err.Error())
		}
		return
	}

	writeJSON(w, http.StatusOK, PlanResponse{
		Plan:       plan,
		Summary:    summarize(plan),
		BatchState: s.state(),
	})
}

// GetPlan returns the plan built by the last POST /plan.
func (s *Server) GetPlan(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	plan := s.sess.CurrentPlan()
	if plan == nil {
		writeError(w, http.StatusNotFound, "no_plan", session.ErrNoPlan.Error())
		return
	}
	writeJSON(w, http.StatusOK, PlanResponse{
		Plan:       plan,
		Summary:    summarize(plan),
		BatchState: s.state(),
	})
}

type ExecuteResponse struct {
	BatchID int64              `json:"batch_id"`
	Applied []executor.Move    `json:"applied"`
	Failed  []executor.Failure `json:"failed,omitempty"`
	Partial bool               `json:"partial"`
	Error   string             `json:"error,omitempty"`
	BatchState
}

// Execute applies the current plan. A client disconnect does not cancel a
// running batch.
func (s *Server) Execute(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.lockBatch()()

	res, err := s.sess.Execute(context.WithoutCancel(r.Context()))
	if res == nil {
		switch {
		case errors.Is(err, session.ErrNoPlan), errors.Is(err, session.ErrBatchDone):
			writeError(w, http.StatusConflict, "not_executable", err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "execute_failed", err.Error())
		}
		return
	}
	s.metrics.ObserveBatch(res)

	resp := ExecuteResponse{
		BatchID:    res.Record.BatchID,
		Applied:    res.Applied,
		Failed:     res.Failed,
		BatchState: s.state(),
	}
	if resp.Applied == nil {
		resp.Applied = []executor.Move{}
	}
	if err != nil {
		resp.Partial = errors.Is(err, executor.ErrPartial)
		resp.Error = err.Error()
		s.logger.Warn("api", "batch finished with errors",
			logging.F("batch", resp.BatchID), logging.F("failed", len(res.Failed)))
	}
	writeJSON(w, http.StatusOK, resp)
}

type UndoResponse struct {
	*undo.Result
	Partial bool   `json:"partial"`
	Error   string `json:"error,omitempty"`
}

// Undo reverses the last executed batch.
func (s *Server) Undo(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.lockBatch()()

	res, err := s.sess.Undo(context.WithoutCancel(r.Context()))
	if res == nil {
		if errors.Is(err, undo.ErrNoUndoAvailable) {
			writeError(w, http.StatusConflict, "no_undo", err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "undo_failed", err.Error())
		return
	}
	s.metrics.ObserveUndo(res)

	resp := UndoResponse{Result: res}
	if err != nil {
		resp.Partial = errors.Is(err, undo.ErrPartialUndo)
		resp.Error = err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

// ResetBatch drops the current batch. The undo record is kept.
func (s *Server) ResetBatch(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sess.Reset()
	w.WriteHeader(http.StatusNoContent)
}

// GetHistory lists recent batches from the history store.
func (s *Server) GetHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(w, http.StatusNotFound, "history_disabled", "history is not enabled")
		return
	}

	limit := defaultHistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "invalid_limit", "limit must be a positive integer")
			return
		}
		limit = n
	}

	batches, err := s.history.RecentBatches(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "history_failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"batches": batches})
}

// parseJSONBody decodes the request body. An empty body leaves v untouched.
func parseJSONBody(r *http.Request, v interface{}) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]string{
		"code":    code,
		"message": message,
	})
}
