package telemetry

import (
	"path/filepath"
	"testing"

	"github.com/asdine/storm/v3"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/scribblebotics/goscribble/robot"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := storm.Open(filepath.Join(t.TempDir(), "telemetry.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })

	s, err := NewStore(db)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestStore(t *testing.T) {
	Convey("with an empty log", t, func() {
		s := openTestStore(t)

		Convey("recent returns nothing rather than an error", func() {
			samples, err := s.Recent(10)
			So(err, ShouldBeNil)
			So(samples, ShouldBeEmpty)
		})

		Convey("recorded samples come back newest first", func() {
			for i := 0; i < 5; i++ {
				err := s.Record(robot.Pose{X: float64(i)}, robot.StateMoving, true)
				So(err, ShouldBeNil)
			}

			samples, err := s.Recent(3)
			So(err, ShouldBeNil)
			So(samples, ShouldHaveLength, 3)
			So(samples[0].X, ShouldEqual, 4)
			So(samples[2].X, ShouldEqual, 2)
			So(samples[0].State, ShouldEqual, "moving")
			So(samples[0].Busy, ShouldBeTrue)
		})
	})
}

func TestPrune(t *testing.T) {
	Convey("with 20 recorded samples", t, func() {
		s := openTestStore(t)
		for i := 0; i < 20; i++ {
			So(s.Record(robot.Pose{X: float64(i)}, robot.StateIdle, false), ShouldBeNil)
		}

		Convey("pruning drops the oldest rows down to the cap", func() {
			deleted, err := s.Prune(5)
			So(err, ShouldBeNil)
			So(deleted, ShouldEqual, 15)

			samples, err := s.Recent(100)
			So(err, ShouldBeNil)
			So(samples, ShouldHaveLength, 5)
			So(samples[len(samples)-1].X, ShouldEqual, 15) // oldest survivor
		})

		Convey("pruning under the cap is a no-op", func() {
			deleted, err := s.Prune(100)
			So(err, ShouldBeNil)
			So(deleted, ShouldEqual, 0)
		})
	})
}
