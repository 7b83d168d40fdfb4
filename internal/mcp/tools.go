// ABOUTME: MCP tool implementations for periodizations, sessions, exercises and sets.
// ABOUTME: Create/list per level, session completion, deletion, progression and manual sync.
package mcp

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/harperreed/periodize/internal/models"
	"github.com/harperreed/periodize/internal/stats"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

func (s *Server) registerTools() {
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "create_periodization",
		Description: "Create a training block (periodization)",
	}, s.handleCreatePeriodization)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "list_periodizations",
		Description: "List training blocks, newest first",
	}, s.handleListPeriodizations)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "create_session",
		Description: "Schedule a training session within a periodization",
	}, s.handleCreateSession)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "list_sessions",
		Description: "List sessions of a periodization",
	}, s.handleListSessions)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "complete_session",
		Description: "Mark a session completed",
	}, s.handleCompleteSession)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "add_exercise",
		Description: "Add an exercise to a session",
	}, s.handleAddExercise)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "list_exercises",
		Description: "List exercises of a session in order",
	}, s.handleListExercises)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "add_set",
		Description: "Log a set for an exercise",
	}, s.handleAddSet)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "list_sets",
		Description: "List sets of an exercise in order",
	}, s.handleListSets)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "delete_record",
		Description: "Delete a periodization, session, exercise or set and everything below it",
	}, s.handleDeleteRecord)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "get_progression",
		Description: "Per-session top weight, volume and estimated 1RM for an exercise",
	}, s.handleGetProgression)

	if s.syncer != nil {
		mcp.AddTool(s.mcpServer, &mcp.Tool{
			Name:        "sync_now",
			Description: "Push local changes to the remote and pull remote changes",
		}, s.handleSyncNow)
	}
}

// Tool input/output types

type createPeriodizationInput struct {
	Name        string `json:"name" jsonschema:"description=Name of the training block,required"`
	Description string `json:"description,omitempty" jsonschema:"description=Optional description"`
	StartDate   string `json:"start_date,omitempty" jsonschema:"description=Start date (YYYY-MM-DD or ISO 8601), defaults to today"`
	EndDate     string `json:"end_date,omitempty" jsonschema:"description=Optional end date"`
}

type createdOutput struct {
	ID      string `json:"id"`
	Message string `json:"message"`
}

type simpleOutput struct {
	Message string `json:"message"`
}

type emptyInput struct{}

type createSessionInput struct {
	PeriodizationID string `json:"periodization_id" jsonschema:"description=Periodization ID or prefix,required"`
	Name            string `json:"name" jsonschema:"description=Session name,required"`
	ScheduledAt     string `json:"scheduled_at,omitempty" jsonschema:"description=When the session is planned, defaults to now"`
	Notes           string `json:"notes,omitempty" jsonschema:"description=Optional notes"`
}

type parentInput struct {
	ID string `json:"id" jsonschema:"description=Parent ID or prefix,required"`
}

type completeSessionInput struct {
	ID          string `json:"id" jsonschema:"description=Session ID or prefix,required"`
	CompletedAt string `json:"completed_at,omitempty" jsonschema:"description=Completion time, defaults to now"`
}

type addExerciseInput struct {
	SessionID   string `json:"session_id" jsonschema:"description=Session ID or prefix,required"`
	Name        string `json:"name" jsonschema:"description=Exercise name,required"`
	MuscleGroup string `json:"muscle_group,omitempty" jsonschema:"description=Primary muscle group"`
	Equipment   string `json:"equipment,omitempty" jsonschema:"description=Equipment used"`
	OrderIndex  *int   `json:"order_index,omitempty" jsonschema:"description=Position in the session, defaults to last"`
}

type addSetInput struct {
	ExerciseID  string   `json:"exercise_id" jsonschema:"description=Exercise ID or prefix,required"`
	Repetitions int      `json:"repetitions" jsonschema:"description=Reps performed,required"`
	Weight      float64  `json:"weight" jsonschema:"description=Load,required"`
	RPE         *float64 `json:"rpe,omitempty" jsonschema:"description=Rating of perceived exertion (0-10)"`
	RIR         *int     `json:"rir,omitempty" jsonschema:"description=Reps in reserve"`
	Technique   string   `json:"technique,omitempty" jsonschema:"description=drop_set, rest_pause or cluster"`
	Completed   bool     `json:"completed,omitempty" jsonschema:"description=Mark the set as performed now"`
}

type deleteRecordInput struct {
	Kind string `json:"kind" jsonschema:"description=periodization, session, exercise or set,required"`
	ID   string `json:"id" jsonschema:"description=Record ID or prefix,required"`
}

type progressionInput struct {
	Exercise string `json:"exercise" jsonschema:"description=Exercise name (case-insensitive),required"`
}

// parseTimeInput accepts RFC3339, "2006-01-02 15:04" or "2006-01-02".
func parseTimeInput(s string, def time.Time) (time.Time, error) {
	if strings.TrimSpace(s) == "" {
		return def, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised time %q", s)
}

func short(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// Tool handlers

func (s *Server) handleCreatePeriodization(ctx context.Context, req *mcp.CallToolRequest, input createPeriodizationInput) (*mcp.CallToolResult, createdOutput, error) {
	start, err := parseTimeInput(input.StartDate, s.now())
	if err != nil {
		return nil, createdOutput{}, err
	}
	p := models.NewPeriodization(s.userID, input.Name, start)
	if input.Description != "" {
		p.WithDescription(input.Description)
	}
	if input.EndDate != "" {
		end, err := parseTimeInput(input.EndDate, time.Time{})
		if err != nil {
			return nil, createdOutput{}, err
		}
		p.WithEndDate(end)
	}
	if err := s.store.CreatePeriodization(p); err != nil {
		return nil, createdOutput{}, fmt.Errorf("failed to create periodization: %w", err)
	}
	return nil, createdOutput{
		ID:      p.ID,
		Message: fmt.Sprintf("Created periodization %q (ID: %s)", p.Name, short(p.ID)),
	}, nil
}

func (s *Server) handleListPeriodizations(ctx context.Context, req *mcp.CallToolRequest, input emptyInput) (*mcp.CallToolResult, any, error) {
	plans, err := s.store.ListPeriodizations(s.userID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list periodizations: %w", err)
	}
	if len(plans) == 0 {
		return nil, map[string]any{"message": "No periodizations found."}, nil
	}
	return nil, map[string]any{"periodizations": plans}, nil
}

func (s *Server) handleCreateSession(ctx context.Context, req *mcp.CallToolRequest, input createSessionInput) (*mcp.CallToolResult, createdOutput, error) {
	planID, err := s.store.ResolveID(models.KindPeriodization, input.PeriodizationID)
	if err != nil {
		return nil, createdOutput{}, fmt.Errorf("periodization not found: %s", input.PeriodizationID)
	}
	at, err := parseTimeInput(input.ScheduledAt, s.now())
	if err != nil {
		return nil, createdOutput{}, err
	}
	sess := models.NewSession(s.userID, planID, input.Name, at)
	if input.Notes != "" {
		sess.Notes = &input.Notes
	}
	if err := s.store.CreateSession(sess); err != nil {
		return nil, createdOutput{}, fmt.Errorf("failed to create session: %w", err)
	}
	return nil, createdOutput{
		ID:      sess.ID,
		Message: fmt.Sprintf("Scheduled %q for %s (ID: %s)", sess.Name, at.Format("2006-01-02"), short(sess.ID)),
	}, nil
}

func (s *Server) handleListSessions(ctx context.Context, req *mcp.CallToolRequest, input parentInput) (*mcp.CallToolResult, any, error) {
	planID, err := s.store.ResolveID(models.KindPeriodization, input.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("periodization not found: %s", input.ID)
	}
	sessions, err := s.store.ListSessions(planID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	return nil, map[string]any{"sessions": sessions}, nil
}

func (s *Server) handleCompleteSession(ctx context.Context, req *mcp.CallToolRequest, input completeSessionInput) (*mcp.CallToolResult, simpleOutput, error) {
	id, err := s.store.ResolveID(models.KindSession, input.ID)
	if err != nil {
		return nil, simpleOutput{}, fmt.Errorf("session not found: %s", input.ID)
	}
	at, err := parseTimeInput(input.CompletedAt, s.now())
	if err != nil {
		return nil, simpleOutput{}, err
	}
	if err := s.store.UpdateSession(id, func(sess *models.Session) { sess.Complete(at) }); err != nil {
		return nil, simpleOutput{}, fmt.Errorf("failed to complete session: %w", err)
	}
	return nil, simpleOutput{Message: fmt.Sprintf("Completed session %s", short(id))}, nil
}

func (s *Server) handleAddExercise(ctx context.Context, req *mcp.CallToolRequest, input addExerciseInput) (*mcp.CallToolResult, createdOutput, error) {
	sessionID, err := s.store.ResolveID(models.KindSession, input.SessionID)
	if err != nil {
		return nil, createdOutput{}, fmt.Errorf("session not found: %s", input.SessionID)
	}
	order := 0
	if input.OrderIndex != nil {
		order = *input.OrderIndex
	} else {
		existing, err := s.store.ListExercises(sessionID)
		if err != nil {
			return nil, createdOutput{}, fmt.Errorf("failed to list exercises: %w", err)
		}
		order = len(existing)
	}
	ex := models.NewExercise(s.userID, sessionID, input.Name, order)
	if input.MuscleGroup != "" {
		ex.WithMuscleGroup(input.MuscleGroup)
	}
	if input.Equipment != "" {
		ex.WithEquipment(input.Equipment)
	}
	if err := s.store.CreateExercise(ex); err != nil {
		return nil, createdOutput{}, fmt.Errorf("failed to add exercise: %w", err)
	}
	return nil, createdOutput{
		ID:      ex.ID,
		Message: fmt.Sprintf("Added %s at position %d (ID: %s)", ex.Name, order, short(ex.ID)),
	}, nil
}

func (s *Server) handleListExercises(ctx context.Context, req *mcp.CallToolRequest, input parentInput) (*mcp.CallToolResult, any, error) {
	sessionID, err := s.store.ResolveID(models.KindSession, input.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("session not found: %s", input.ID)
	}
	exercises, err := s.store.ListExercises(sessionID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list exercises: %w", err)
	}
	return nil, map[string]any{"exercises": exercises}, nil
}

func (s *Server) handleAddSet(ctx context.Context, req *mcp.CallToolRequest, input addSetInput) (*mcp.CallToolResult, createdOutput, error) {
	exerciseID, err := s.store.ResolveID(models.KindExercise, input.ExerciseID)
	if err != nil {
		return nil, createdOutput{}, fmt.Errorf("exercise not found: %s", input.ExerciseID)
	}
	existing, err := s.store.ListSets(exerciseID)
	if err != nil {
		return nil, createdOutput{}, fmt.Errorf("failed to list sets: %w", err)
	}
	set := models.NewSet(s.userID, exerciseID, len(existing), input.Repetitions, input.Weight)
	if input.RPE != nil {
		set.WithRPE(*input.RPE)
	}
	if input.RIR != nil {
		set.WithRIR(*input.RIR)
	}
	if input.Technique != "" {
		set.Technique = &input.Technique
	}
	if input.Completed {
		now := s.now()
		set.CompletedAt = &now
	}
	if err := s.store.CreateSet(set); err != nil {
		return nil, createdOutput{}, fmt.Errorf("failed to add set: %w", err)
	}
	return nil, createdOutput{
		ID:      set.ID,
		Message: fmt.Sprintf("Logged set %d: %d x %.1f (ID: %s)", set.OrderIndex+1, set.Repetitions, set.Weight, short(set.ID)),
	}, nil
}

func (s *Server) handleListSets(ctx context.Context, req *mcp.CallToolRequest, input parentInput) (*mcp.CallToolResult, any, error) {
	exerciseID, err := s.store.ResolveID(models.KindExercise, input.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("exercise not found: %s", input.ID)
	}
	sets, err := s.store.ListSets(exerciseID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list sets: %w", err)
	}
	return nil, map[string]any{"sets": sets}, nil
}

func (s *Server) handleDeleteRecord(ctx context.Context, req *mcp.CallToolRequest, input deleteRecordInput) (*mcp.CallToolResult, simpleOutput, error) {
	kind, err := models.ParseKind(input.Kind)
	if err != nil {
		return nil, simpleOutput{}, err
	}
	id, err := s.store.ResolveID(kind, input.ID)
	if err != nil {
		return nil, simpleOutput{}, fmt.Errorf("%s not found: %s", kind, input.ID)
	}

	switch kind {
	case models.KindPeriodization:
		err = s.store.DeletePeriodization(id)
	case models.KindSession:
		err = s.store.DeleteSession(id)
	case models.KindExercise:
		err = s.store.DeleteExercise(id)
	case models.KindSet:
		err = s.store.DeleteSet(id)
	}
	if err != nil {
		return nil, simpleOutput{}, fmt.Errorf("failed to delete %s: %w", kind, err)
	}
	return nil, simpleOutput{Message: fmt.Sprintf("Deleted %s: %s", kind, short(id))}, nil
}

func (s *Server) handleGetProgression(ctx context.Context, req *mcp.CallToolRequest, input progressionInput) (*mcp.CallToolResult, any, error) {
	points, err := stats.Progression(s.store, s.userID, input.Exercise)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to compute progression: %w", err)
	}
	if len(points) == 0 {
		return nil, map[string]any{"message": fmt.Sprintf("No sets logged for %s.", input.Exercise)}, nil
	}
	return nil, map[string]any{"exercise": input.Exercise, "points": points}, nil
}

type syncOutput struct {
	Message  string   `json:"message"`
	Pushed   int      `json:"pushed"`
	Pulled   int      `json:"pulled"`
	Failures []string `json:"failures,omitempty"`
}

func (s *Server) handleSyncNow(ctx context.Context, req *mcp.CallToolRequest, input emptyInput) (*mcp.CallToolResult, syncOutput, error) {
	rep, err := s.syncer.Sync(ctx)
	if err != nil {
		return nil, syncOutput{}, fmt.Errorf("sync failed: %w", err)
	}
	if !rep.Ran() {
		return nil, syncOutput{Message: "Sync skipped: " + rep.Skipped}, nil
	}
	out := syncOutput{
		Pushed: rep.Pushed + rep.Deleted,
		Pulled: rep.Inserted + rep.Updated,
	}
	for _, f := range rep.Failures {
		out.Failures = append(out.Failures, f.Error())
	}
	out.Message = fmt.Sprintf("Synced: %d pushed, %d pulled, %d failed", out.Pushed, out.Pulled, len(out.Failures))
	return nil, out, nil
}
