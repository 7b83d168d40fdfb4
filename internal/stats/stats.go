// ABOUTME: Aggregation layer: read-only rollups computed by walking the local store.
// ABOUTME: Dashboard counters, per-exercise progression series and personal records.
package stats

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/harperreed/periodize/internal/models"
)

// Reader is the slice of the local store the rollups traverse.
type Reader interface {
	ListPeriodizations(userID string) ([]*models.Periodization, error)
	ListSessions(periodizationID string) ([]*models.Session, error)
	ListExercises(sessionID string) ([]*models.Exercise, error)
	ListSets(exerciseID string) ([]*models.Set, error)
}

// Dashboard holds headline counters for one user.
type Dashboard struct {
	Periodizations       int                          `json:"periodizations"`
	ActivePeriodizations int                          `json:"active_periodizations"`
	Sessions             map[models.SessionStatus]int `json:"sessions"`
	Exercises            int                          `json:"exercises"`
	Sets                 int                          `json:"sets"`
	CompletedSets        int                          `json:"completed_sets"`
	TotalVolume          float64                      `json:"total_volume"`
	LastCompleted        *time.Time                   `json:"last_completed,omitempty"`
}

// TotalSessions sums sessions across statuses.
func (d *Dashboard) TotalSessions() int {
	n := 0
	for _, c := range d.Sessions {
		n += c
	}
	return n
}

// entry is one live set with its ancestry, produced by walk.
type entry struct {
	session  *models.Session
	exercise *models.Exercise
	set      *models.Set
}

type walkFuncs struct {
	plan     func(*models.Periodization)
	session  func(*models.Session)
	exercise func(*models.Exercise)
	set      func(entry)
}

func walk(r Reader, userID string, fn walkFuncs) error {
	plans, err := r.ListPeriodizations(userID)
	if err != nil {
		return fmt.Errorf("list periodizations: %w", err)
	}
	for _, p := range plans {
		if fn.plan != nil {
			fn.plan(p)
		}
		sessions, err := r.ListSessions(p.ID)
		if err != nil {
			return fmt.Errorf("list sessions of %s: %w", p.ID, err)
		}
		for _, s := range sessions {
			if fn.session != nil {
				fn.session(s)
			}
			exercises, err := r.ListExercises(s.ID)
			if err != nil {
				return fmt.Errorf("list exercises of %s: %w", s.ID, err)
			}
			for _, e := range exercises {
				if fn.exercise != nil {
					fn.exercise(e)
				}
				sets, err := r.ListSets(e.ID)
				if err != nil {
					return fmt.Errorf("list sets of %s: %w", e.ID, err)
				}
				for _, set := range sets {
					if fn.set != nil {
						fn.set(entry{session: s, exercise: e, set: set})
					}
				}
			}
		}
	}
	return nil
}

// BuildDashboard counts the user's live records. A periodization is active
// when now falls between its start and end dates (open-ended if no end).
func BuildDashboard(r Reader, userID string, now time.Time) (*Dashboard, error) {
	d := &Dashboard{Sessions: map[models.SessionStatus]int{}}
	err := walk(r, userID, walkFuncs{
		plan: func(p *models.Periodization) {
			d.Periodizations++
			if !now.Before(p.StartDate) && (p.EndDate == nil || !now.After(*p.EndDate)) {
				d.ActivePeriodizations++
			}
		},
		session: func(s *models.Session) {
			d.Sessions[s.Status]++
			if s.CompletedAt != nil && (d.LastCompleted == nil || s.CompletedAt.After(*d.LastCompleted)) {
				t := *s.CompletedAt
				d.LastCompleted = &t
			}
		},
		exercise: func(*models.Exercise) { d.Exercises++ },
		set: func(e entry) {
			d.Sets++
			d.TotalVolume += e.set.Volume()
			if e.set.CompletedAt != nil {
				d.CompletedSets++
			}
		},
	})
	if err != nil {
		return nil, err
	}
	return d, nil
}

// EstimatedOneRM is the Epley estimate weight * (1 + reps/30). A single
// rep returns the weight itself; zero reps estimate nothing.
func EstimatedOneRM(weight float64, reps int) float64 {
	switch {
	case reps <= 0 || weight <= 0:
		return 0
	case reps == 1:
		return weight
	}
	return weight * (1 + float64(reps)/30)
}

// Point is one session's aggregate for an exercise.
type Point struct {
	SessionID string    `json:"session_id"`
	Date      time.Time `json:"date"`
	TopWeight float64   `json:"top_weight"`
	Volume    float64   `json:"volume"`
	EstOneRM  float64   `json:"estimated_1rm"`
	Sets      int       `json:"sets"`
}

// Progression returns one point per session containing the named exercise,
// oldest first. Names match case-insensitively.
func Progression(r Reader, userID, exercise string) ([]Point, error) {
	bySession := map[string]*Point{}
	err := walk(r, userID, walkFuncs{
		set: func(e entry) {
			if !sameExercise(e.exercise.Name, exercise) {
				return
			}
			p, ok := bySession[e.session.ID]
			if !ok {
				date := e.session.ScheduledAt
				if e.session.CompletedAt != nil {
					date = *e.session.CompletedAt
				}
				p = &Point{SessionID: e.session.ID, Date: date}
				bySession[e.session.ID] = p
			}
			p.Sets++
			p.Volume += e.set.Volume()
			p.TopWeight = max(p.TopWeight, e.set.Weight)
			p.EstOneRM = max(p.EstOneRM, EstimatedOneRM(e.set.Weight, e.set.Repetitions))
		},
	})
	if err != nil {
		return nil, err
	}
	out := make([]Point, 0, len(bySession))
	for _, p := range bySession {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date.Equal(out[j].Date) {
			return out[i].SessionID < out[j].SessionID
		}
		return out[i].Date.Before(out[j].Date)
	})
	return out, nil
}

// Record is the best performance logged for an exercise name.
type Record struct {
	Exercise   string    `json:"exercise"`
	MaxWeight  float64   `json:"max_weight"`
	RepsAtMax  int       `json:"reps_at_max"`
	BestOneRM  float64   `json:"best_estimated_1rm"`
	BestVolume float64   `json:"best_set_volume"`
	SetID      string    `json:"set_id"`
	Date       time.Time `json:"date"`
}

// PersonalRecords returns the best set per exercise name, sorted by name.
// Ties on weight prefer more reps, then the earlier session.
func PersonalRecords(r Reader, userID string) ([]Record, error) {
	best := map[string]*Record{}
	err := walk(r, userID, walkFuncs{
		set: func(e entry) {
			key := strings.ToLower(strings.TrimSpace(e.exercise.Name))
			date := e.session.ScheduledAt
			if e.session.CompletedAt != nil {
				date = *e.session.CompletedAt
			}
			rec, ok := best[key]
			if !ok {
				rec = &Record{Exercise: e.exercise.Name}
				best[key] = rec
			}
			s := e.set
			better := s.Weight > rec.MaxWeight ||
				(s.Weight == rec.MaxWeight && s.Repetitions > rec.RepsAtMax) ||
				(s.Weight == rec.MaxWeight && s.Repetitions == rec.RepsAtMax && rec.SetID != "" && date.Before(rec.Date))
			if !ok || better {
				rec.MaxWeight = s.Weight
				rec.RepsAtMax = s.Repetitions
				rec.SetID = s.ID
				rec.Date = date
			}
			rec.BestOneRM = max(rec.BestOneRM, EstimatedOneRM(s.Weight, s.Repetitions))
			rec.BestVolume = max(rec.BestVolume, s.Volume())
		},
	})
	if err != nil {
		return nil, err
	}
	out := make([]Record, 0, len(best))
	for _, r := range best {
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool {
		return strings.ToLower(out[i].Exercise) < strings.ToLower(out[j].Exercise)
	})
	return out, nil
}

func sameExercise(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
