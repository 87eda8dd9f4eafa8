package changes

import (
	"testing"
	"time"

	"github.com/okian/aidfeed/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

var day0 = time.Date(2026, 10, 15, 8, 0, 0, 0, time.UTC)

func build(name string, deadlineInDays int, amount float64) model.Listing {
	l := model.Listing{
		Name:           name,
		Provider:       "Board",
		Amount:         model.Float(amount),
		ApplicationURL: "https://example.org/" + name,
	}
	if deadlineInDays != 0 {
		d := model.Date(day0).AddDate(0, 0, deadlineInDays)
		l.Deadline = &d
	}
	l.Normalize()
	return l
}

func kinds(events []model.ChangeEvent) []model.EventKind {
	out := make([]model.EventKind, len(events))
	for i, e := range events {
		out[i] = e.Kind
	}
	return out
}

func TestDetector_Baseline(t *testing.T) {
	Convey("Given a fresh detector", t, func() {
		d := New()
		key := model.Key{}

		Convey("When detecting the first snapshot", func() {
			events := d.Detect(key, []model.Listing{build("A", 30, 100)}, day0)

			Convey("Then it records a baseline without new or updated events", func() {
				So(events, ShouldBeEmpty)
				So(d.Primed(key), ShouldBeTrue)
				So(d.Len(key), ShouldEqual, 1)
			})
		})
	})
}

func TestDetector_Classification(t *testing.T) {
	Convey("Given a primed detector", t, func() {
		d := New()
		key := model.NewKey("ohio", "")
		a := build("A", 30, 100)
		b := build("B", 60, 200)
		c := build("C", 2, 300)
		d.Detect(key, []model.Listing{a, b, c}, day0)

		Convey("When a new listing appears and one changes", func() {
			b2 := b.Clone()
			b2.Amount = model.Float(999)
			events := d.Detect(key, []model.Listing{a, b2, c, build("D", 40, 1)}, day0)

			Convey("Then new comes before updated", func() {
				So(kinds(events), ShouldResemble, []model.EventKind{model.EventNew, model.EventUpdated})
				So(events[0].Listing.Name, ShouldEqual, "D")
				So(events[1].Listing.Name, ShouldEqual, "B")
				So(events[1].DetectedAt.Equal(day0), ShouldBeTrue)
			})
		})

		Convey("When only freshness fields change", func() {
			a2 := a.Clone()
			a2.LastUpdated = day0.Add(time.Minute)
			a2.IsLive = false
			events := d.Detect(key, []model.Listing{a2, b, c}, day0)

			Convey("Then nothing is reported", func() {
				So(events, ShouldBeEmpty)
			})
		})

		Convey("When a deadline passes", func() {
			events := d.Detect(key, []model.Listing{a, b, c}, day0.AddDate(0, 0, 3))

			Convey("Then the listing is reported expired and kept in the snapshot", func() {
				So(kinds(events), ShouldResemble, []model.EventKind{model.EventExpired})
				So(events[0].Listing.Name, ShouldEqual, "C")
				So(d.Len(key), ShouldEqual, 3)
			})

			Convey("And it is not reported again on the next cycle", func() {
				again := d.Detect(key, []model.Listing{a, b, c}, day0.AddDate(0, 0, 4))
				So(again, ShouldBeEmpty)
			})
		})

		Convey("When other keys are detected", func() {
			other := d.Detect(model.Key{}, []model.Listing{a}, day0)

			Convey("Then they keep separate baselines", func() {
				So(other, ShouldBeEmpty)
				So(d.Len(key), ShouldEqual, 3)
			})
		})
	})
}

func TestDetector_DeadlineEdge(t *testing.T) {
	Convey("Given a listing nine days from its deadline", t, func() {
		d := New()
		key := model.Key{}
		l := build("Edge", 9, 50)
		So(d.Detect(key, []model.Listing{l}, day0), ShouldBeEmpty)

		Convey("When days left moves from 9 to 6 and stays inside the window", func() {
			first := d.Detect(key, []model.Listing{l}, day0.AddDate(0, 0, 3))
			second := d.Detect(key, []model.Listing{l}, day0.AddDate(0, 0, 4))
			third := d.Detect(key, []model.Listing{l}, day0.AddDate(0, 0, 5))

			Convey("Then exactly one deadline_approaching event is emitted", func() {
				So(kinds(first), ShouldResemble, []model.EventKind{model.EventDeadlineApproaching})
				So(second, ShouldBeEmpty)
				So(third, ShouldBeEmpty)
			})
		})

		Convey("When the deadline is extended and later approaches again", func() {
			d.Detect(key, []model.Listing{l}, day0.AddDate(0, 0, 3))
			extended := l.Clone()
			ext := extended.Deadline.AddDate(0, 0, 30)
			extended.Deadline = &ext
			out := d.Detect(key, []model.Listing{extended}, day0.AddDate(0, 0, 4))
			back := d.Detect(key, []model.Listing{extended}, day0.AddDate(0, 0, 33))

			Convey("Then the extension is an update and the new crossing alerts again", func() {
				So(kinds(out), ShouldResemble, []model.EventKind{model.EventUpdated})
				So(kinds(back), ShouldResemble, []model.EventKind{model.EventDeadlineApproaching})
			})
		})
	})
}

func TestDetector_Forget(t *testing.T) {
	Convey("Given a primed key", t, func() {
		d := New(WithAlertDays(3))
		d.Detect(model.Key{}, nil, day0)

		Convey("When forgetting it", func() {
			d.Forget(model.Key{})

			Convey("Then the next detection is a baseline again", func() {
				So(d.Primed(model.Key{}), ShouldBeFalse)
				So(d.Detect(model.Key{}, []model.Listing{build("X", 10, 1)}, day0), ShouldBeEmpty)
				So(d.Primed(model.Key{}), ShouldBeTrue)
			})
		})
	})
}

func TestDetector_FirstSight(t *testing.T) {
	Convey("Given a primed detector", t, func() {
		d := New()
		key := model.Key{}
		d.Detect(key, []model.Listing{build("A", 30, 100)}, day0)

		Convey("When a listing first appears already past its deadline", func() {
			late := build("Late", -14, 100)
			events := d.Detect(key, []model.Listing{build("A", 30, 100), late}, day0)

			Convey("Then it is new and expired, and kept in the snapshot", func() {
				So(kinds(events), ShouldResemble, []model.EventKind{model.EventNew, model.EventExpired})
				So(events[1].Listing.Name, ShouldEqual, "Late")
				So(d.Len(key), ShouldEqual, 2)
			})

			Convey("And it is not reported again", func() {
				again := d.Detect(key, []model.Listing{build("A", 30, 100), late}, day0.AddDate(0, 0, 1))
				So(again, ShouldBeEmpty)
			})
		})

		Convey("When a listing first appears three days from its deadline", func() {
			soon := build("Soon", 3, 100)
			events := d.Detect(key, []model.Listing{build("A", 30, 100), soon}, day0)

			Convey("Then it is new and approaching", func() {
				So(kinds(events), ShouldResemble, []model.EventKind{model.EventNew, model.EventDeadlineApproaching})
				So(events[1].Listing.Name, ShouldEqual, "Soon")
			})

			Convey("And later cycles inside the window stay quiet", func() {
				again := d.Detect(key, []model.Listing{build("A", 30, 100), soon}, day0.AddDate(0, 0, 1))
				So(again, ShouldBeEmpty)
			})
		})
	})

	Convey("Given a fresh detector", t, func() {
		d := New()
		key := model.Key{}
		old := build("Old", -14, 100)
		soon := build("Soon", 3, 100)
		far := build("Far", 30, 100)

		Convey("When the baseline holds an expired and an approaching listing", func() {
			events := d.Detect(key, []model.Listing{old, soon, far}, day0)
			later := d.Detect(key, []model.Listing{old, soon, far}, day0.AddDate(0, 0, 1))

			Convey("Then only their deadline edges are reported, once", func() {
				So(kinds(events), ShouldResemble, []model.EventKind{model.EventDeadlineApproaching, model.EventExpired})
				So(events[0].Listing.Name, ShouldEqual, "Soon")
				So(events[1].Listing.Name, ShouldEqual, "Old")
				So(later, ShouldBeEmpty)
			})
		})
	})
}
