package telemetry

import (
	"time"

	"github.com/asdine/storm/v3"

	"github.com/scribblebotics/goscribble/robot"
)

// PoseSample is one row of the telemetry log: where the robot believed it was
// and what it was doing at that instant.
type PoseSample struct {
	ID      int       `storm:"increment"`
	At      time.Time `storm:"index"`
	X       float64
	Y       float64
	Heading float64
	State   string
	Busy    bool
}

// Store persists pose samples in a storm bucket. The log is capped by Prune
// so the flash-backed database file does not grow without bound.
type Store struct {
	db *storm.DB
}

func NewStore(db *storm.DB) (s *Store, err error) {
	if err = db.Init(&PoseSample{}); err != nil {
		return
	}
	return &Store{db: db}, nil
}

// Record appends one sample.
func (s *Store) Record(pose robot.Pose, state robot.State, busy bool) error {
	sample := &PoseSample{
		At:      time.Now().UTC(),
		X:       pose.X,
		Y:       pose.Y,
		Heading: pose.Heading,
		State:   state.String(),
		Busy:    busy,
	}
	return s.db.Save(sample)
}

// Recent returns up to n samples, newest first.
func (s *Store) Recent(n int) (samples []PoseSample, err error) {
	err = s.db.AllByIndex("At", &samples, storm.Limit(n), storm.Reverse())
	if err == storm.ErrNotFound {
		err = nil
	}
	return
}

// Prune deletes the oldest samples until at most keep remain.
func (s *Store) Prune(keep int) (deleted int, err error) {
	total, err := s.db.Count(&PoseSample{})
	if err != nil {
		return
	}
	excess := total - keep
	if excess <= 0 {
		return 0, nil
	}

	var oldest []PoseSample
	if err = s.db.AllByIndex("At", &oldest, storm.Limit(excess)); err != nil {
		return
	}
	for i := range oldest {
		if err = s.db.DeleteStruct(&oldest[i]); err != nil {
			return
		}
		deleted++
	}
	return
}
