package service_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/oraculus/internal/adapters/repository"
	service "github.com/okian/oraculus/internal/app"
	"github.com/okian/oraculus/internal/domain/badge"
	"github.com/okian/oraculus/internal/domain/dataset"
	"github.com/okian/oraculus/internal/domain/leaderboard"
	"github.com/okian/oraculus/internal/domain/model"
	"github.com/okian/oraculus/internal/domain/parse"
	"github.com/okian/oraculus/internal/domain/scoring"
	"github.com/okian/oraculus/pkg/logger"
)

const masterCSV = `id,label,split
1,1,public
2,0,public
3,1,private
4,0,private
`

var testGain = scoring.Matrix{TP: 100, TN: 10, FP: -50, FN: -100}

var testThresholds = []scoring.Threshold{
	{MinScore: 100, Category: "excellent"},
	{MinScore: 50, Category: "good"},
	{MinScore: -1_000_000, Category: "keep_trying"},
}

func testMaster(t *testing.T) *dataset.Master {
	t.Helper()
	m, err := dataset.Load(strings.NewReader(masterCSV))
	if err != nil {
		t.Fatalf("load master fixture: %v", err)
	}
	return m
}

func newTestService(t *testing.T, opts ...service.Option) *service.Service {
	t.Helper()
	if err := logger.Init(); err != nil {
		t.Fatalf("init logger: %v", err)
	}
	base := []service.Option{
		service.WithStore(repository.NewMemoryStore(context.Background())),
		service.WithMaster(testMaster(t)),
		service.WithGain(testGain),
		service.WithThresholds(testThresholds),
		service.WithDeadline(time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)),
	}
	svc := service.New(append(base, opts...)...)
	if err := svc.Start(context.Background()); err != nil {
		t.Fatalf("start service: %v", err)
	}
	return svc
}

func submitAs(svc *service.Service, userID string, raw string) (service.SubmitResult, error) {
	return svc.Submit(context.Background(), service.SubmitRequest{
		UserID:   userID,
		UserName: "name-" + userID,
		Role:     model.RoleStudent,
		Name:     "pred.csv",
		Raw:      []byte(raw),
	})
}

func TestSubmitScoring(t *testing.T) {
	Convey("Given a competition over a four-record master split", t, func() {
		svc := newTestService(t)
		ctx := context.Background()

		Convey("Predicting only record 1 positive scores 110 public and -90 private", func() {
			res, err := submitAs(svc, "u1", "1\n")
			So(err, ShouldBeNil)
			So(res.PublicScore, ShouldEqual, 110)
			So(res.PrivateScore, ShouldEqual, -90)
			So(res.PublicCounts, ShouldResemble, model.Counts{TP: 1, TN: 1})
			So(res.PrivateCounts, ShouldResemble, model.Counts{FN: 1, TN: 1})
			So(res.Category.Category, ShouldEqual, "excellent")
		})

		Convey("Resubmitting identical content returns the identical scores", func() {
			first, err := submitAs(svc, "u1", "1\n3\n")
			So(err, ShouldBeNil)
			second, err := submitAs(svc, "u1", "3\n1\n1\n")
			So(err, ShouldBeNil)
			So(second.PublicScore, ShouldEqual, first.PublicScore)
			So(second.PrivateScore, ShouldEqual, first.PrivateScore)
		})

		Convey("A malformed file is rejected with no state change", func() {
			before := svc.Version()
			_, err := submitAs(svc, "u1", "not-a-number\n")
			So(errors.Is(err, parse.ErrMalformedInput), ShouldBeTrue)
			So(svc.Version(), ShouldEqual, before)

			subs, err := svc.ListSubmissions(ctx, "u1")
			So(err, ShouldBeNil)
			So(subs, ShouldBeEmpty)
		})

		Convey("An unknown id is rejected by default", func() {
			_, err := submitAs(svc, "u1", "1\n999\n")
			So(errors.Is(err, scoring.ErrInvalidIdentifier), ShouldBeTrue)
		})
	})

	Convey("Given a competition configured to drop unknown ids", t, func() {
		svc := newTestService(t, service.WithDropUnknownIDs(true))

		Convey("Unknown ids are ignored and the rest scored", func() {
			res, err := submitAs(svc, "u1", "1\n999\n")
			So(err, ShouldBeNil)
			So(res.Positives, ShouldEqual, 1)
			So(res.PublicScore, ShouldEqual, 110)
		})
	})
}

func TestSubmitDeadline(t *testing.T) {
	Convey("Given a competition whose deadline has passed", t, func() {
		deadline := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
		now := deadline.Add(time.Hour)
		svc := newTestService(t,
			service.WithDeadline(deadline),
			service.WithClock(func() time.Time { return now }),
		)
		ctx := context.Background()

		Convey("A student submission is rejected", func() {
			_, err := submitAs(svc, "u1", "1\n")
			So(errors.Is(err, service.ErrDeadlinePassed), ShouldBeTrue)
		})

		Convey("A teacher submission passes with bypass enabled", func() {
			_, err := svc.Submit(ctx, service.SubmitRequest{
				UserID: "t1", UserName: "Prof", Role: model.RoleTeacher,
				Name: "check.csv", Raw: []byte("1\n"),
			})
			So(err, ShouldBeNil)
		})

		Convey("A teacher submission is rejected with bypass disabled", func() {
			noBypass := newTestService(t,
				service.WithDeadline(deadline),
				service.WithClock(func() time.Time { return now }),
				service.WithTeacherBypass(false),
			)
			_, err := noBypass.Submit(ctx, service.SubmitRequest{
				UserID: "t1", UserName: "Prof", Role: model.RoleTeacher,
				Name: "check.csv", Raw: []byte("1\n"),
			})
			So(errors.Is(err, service.ErrDeadlinePassed), ShouldBeTrue)
		})
	})

	Convey("An unknown role is rejected before any other check", t, func() {
		svc := newTestService(t)
		_, err := svc.Submit(context.Background(), service.SubmitRequest{
			UserID: "u1", Role: model.Role("admin"), Raw: []byte("1\n"),
		})
		So(errors.Is(err, service.ErrInvalidRole), ShouldBeTrue)
	})
}

func TestDuplicateDetection(t *testing.T) {
	Convey("Given two users submitting", t, func() {
		svc := newTestService(t)
		ctx := context.Background()

		first, err := submitAs(svc, "u1", "1\n2\n")
		So(err, ShouldBeNil)
		So(first.Duplicate, ShouldBeFalse)

		Convey("The same user resubmitting identical ids is flagged, not rejected", func() {
			dup, err := submitAs(svc, "u1", "2\n1\n")
			So(err, ShouldBeNil)
			So(dup.Duplicate, ShouldBeTrue)
			So(dup.OriginalID, ShouldEqual, first.SubmissionID)
			So(dup.PublicScore, ShouldEqual, first.PublicScore)
		})

		Convey("Another user with the same ids is not flagged but shows in the report", func() {
			other, err := submitAs(svc, "u2", "1\n2\n")
			So(err, ShouldBeNil)
			So(other.Duplicate, ShouldBeFalse)

			groups := svc.Duplicates(ctx)
			So(groups, ShouldHaveLength, 1)
			So(groups[0].Users, ShouldResemble, []string{"u1", "u2"})
		})

		Convey("Distinct id sets never collide", func() {
			other, err := submitAs(svc, "u1", "1\n")
			So(err, ShouldBeNil)
			So(other.Duplicate, ShouldBeFalse)
			So(svc.Duplicates(ctx), ShouldBeEmpty)
		})
	})

	Convey("The duplicate index survives a restart over the same store", t, func() {
		store := repository.NewMemoryStore(context.Background())
		svc := newTestService(t, service.WithStore(store))

		first, err := submitAs(svc, "u1", "1\n2\n")
		So(err, ShouldBeNil)
		svc.Stop()

		reborn := newTestService(t, service.WithStore(store))
		dup, err := submitAs(reborn, "u1", "1\n2\n")
		So(err, ShouldBeNil)
		So(dup.Duplicate, ShouldBeTrue)
		So(dup.OriginalID, ShouldEqual, first.SubmissionID)
	})
}

func TestBadges(t *testing.T) {
	Convey("Given a fresh competition", t, func() {
		svc := newTestService(t)
		ctx := context.Background()

		Convey("The first submission earns first_submission once", func() {
			res, err := submitAs(svc, "u1", "1\n")
			So(err, ShouldBeNil)

			kinds := badgeKinds(res.NewBadges)
			So(kinds, ShouldContain, string(badge.FirstSubmission))

			again, err := submitAs(svc, "u1", "2\n")
			So(err, ShouldBeNil)
			So(badgeKinds(again.NewBadges), ShouldNotContain, string(badge.FirstSubmission))
		})

		Convey("Reaching the second-highest threshold earns high_threshold_first only once", func() {
			res, err := submitAs(svc, "u1", "1\n") // public 110, above the 50 bar
			So(err, ShouldBeNil)
			So(badgeKinds(res.NewBadges), ShouldContain, string(badge.HighThresholdFirst))

			again, err := submitAs(svc, "u1", "1\n3\n")
			So(err, ShouldBeNil)
			So(badgeKinds(again.NewBadges), ShouldNotContain, string(badge.HighThresholdFirst))
		})

		Convey("The tenth submission earns submissions_10 exactly then", func() {
			var last service.SubmitResult
			for i := 1; i <= 10; i++ {
				raw := subsetCSV(i) // ten distinct non-empty subsets of the master ids
				res, err := submitAs(svc, "u1", raw)
				So(err, ShouldBeNil)
				if i < 10 {
					So(badgeKinds(res.NewBadges), ShouldNotContain, string(badge.Submissions10))
				}
				last = res
			}
			So(badgeKinds(last.NewBadges), ShouldContain, string(badge.Submissions10))
		})

		Convey("Selecting a submission earns first_model_selection once", func() {
			res, err := submitAs(svc, "u1", "1\n")
			So(err, ShouldBeNil)

			earned, err := svc.Select(ctx, "u1", res.SubmissionID)
			So(err, ShouldBeNil)
			So(badgeKinds(earned), ShouldContain, string(badge.FirstSelection))

			earned, err = svc.Select(ctx, "u1", res.SubmissionID)
			So(err, ShouldBeNil)
			So(earned, ShouldBeEmpty)
		})

		Convey("BadgesFor lists what was earned", func() {
			_, err := submitAs(svc, "u1", "1\n")
			So(err, ShouldBeNil)

			owned, err := svc.BadgesFor(ctx, "u1")
			So(err, ShouldBeNil)
			So(badgeKinds(owned), ShouldContain, string(badge.FirstSubmission))
		})
	})

	Convey("Given configured badge display metadata", t, func() {
		svc := newTestService(t, service.WithBadgeInfo(map[string]badge.Info{
			string(badge.FirstSubmission): {Name: "First Submission", Emoji: "🎯"},
		}))

		Convey("Awarded badges carry the configured name and emoji", func() {
			res, err := submitAs(svc, "u1", "1\n")
			So(err, ShouldBeNil)

			var first, high *service.AwardedBadge
			for i := range res.NewBadges {
				switch res.NewBadges[i].Kind {
				case string(badge.FirstSubmission):
					first = &res.NewBadges[i]
				case string(badge.HighThresholdFirst):
					high = &res.NewBadges[i]
				}
			}
			So(first, ShouldNotBeNil)
			So(first.Name, ShouldEqual, "First Submission")
			So(first.Emoji, ShouldEqual, "🎯")

			// Kinds without configured metadata fall back to the kind name.
			So(high, ShouldNotBeNil)
			So(high.Name, ShouldEqual, string(badge.HighThresholdFirst))
			So(high.Emoji, ShouldBeEmpty)
		})

		Convey("Listed badges carry the same metadata", func() {
			_, err := submitAs(svc, "u1", "1\n")
			So(err, ShouldBeNil)

			owned, err := svc.BadgesFor(context.Background(), "u1")
			So(err, ShouldBeNil)
			names := make(map[string]string, len(owned))
			for _, b := range owned {
				names[b.Kind] = b.Name
			}
			So(names[string(badge.FirstSubmission)], ShouldEqual, "First Submission")
		})
	})
}

func TestConcurrentSubmissions(t *testing.T) {
	Convey("Given ten simultaneous uploads from one user", t, func() {
		svc := newTestService(t)
		ctx := context.Background()

		const workers = 10
		results := make([]service.SubmitResult, workers)
		errs := make([]error, workers)

		var wg sync.WaitGroup
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				results[i], errs[i] = svc.Submit(ctx, service.SubmitRequest{
					UserID:   "u1",
					UserName: "name-u1",
					Role:     model.RoleStudent,
					Name:     fmt.Sprintf("pred-%d.csv", i),
					Raw:      []byte(subsetCSV(i + 1)),
				})
			}(i)
		}
		wg.Wait()

		Convey("Every upload commits and no badge kind is awarded twice", func() {
			ids := make(map[int64]struct{}, workers)
			awarded := make(map[string]int)
			for i := range results {
				So(errs[i], ShouldBeNil)
				ids[results[i].SubmissionID] = struct{}{}
				for _, k := range badgeKinds(results[i].NewBadges) {
					awarded[k]++
				}
			}
			So(ids, ShouldHaveLength, workers)
			So(awarded[string(badge.FirstSubmission)], ShouldEqual, 1)
			So(awarded[string(badge.Submissions10)], ShouldEqual, 1)
			for _, n := range awarded {
				So(n, ShouldEqual, 1)
			}

			owned, err := svc.BadgesFor(ctx, "u1")
			So(err, ShouldBeNil)
			seen := make(map[string]int, len(owned))
			for _, b := range owned {
				seen[b.Kind]++
			}
			for _, n := range seen {
				So(n, ShouldEqual, 1)
			}
			So(seen[string(badge.FirstSubmission)], ShouldEqual, 1)
		})
	})
}

func TestSelection(t *testing.T) {
	Convey("Given a user with two submissions", t, func() {
		svc := newTestService(t)
		ctx := context.Background()

		best, err := submitAs(svc, "u1", "1\n") // public 110
		So(err, ShouldBeNil)
		weak, err := submitAs(svc, "u1", "2\n") // public -40
		So(err, ShouldBeNil)

		Convey("The leaderboard defaults to the best score", func() {
			entries, err := svc.Leaderboard(ctx, leaderboard.Public)
			So(err, ShouldBeNil)
			So(entries, ShouldHaveLength, 1)
			So(entries[0].Score, ShouldEqual, best.PublicScore)
			So(entries[0].SubmissionID, ShouldEqual, best.SubmissionID)
		})

		Convey("Selecting the weaker submission overrides the best", func() {
			_, err := svc.Select(ctx, "u1", weak.SubmissionID)
			So(err, ShouldBeNil)

			entries, err := svc.Leaderboard(ctx, leaderboard.Public)
			So(err, ShouldBeNil)
			So(entries[0].Score, ShouldEqual, weak.PublicScore)
			So(entries[0].SubmissionID, ShouldEqual, weak.SubmissionID)

			subs, err := svc.ListSubmissions(ctx, "u1")
			So(err, ShouldBeNil)
			So(subs[0].ID, ShouldEqual, weak.SubmissionID) // newest first
			So(subs[0].Selected, ShouldBeTrue)
		})

		Convey("Selecting someone else's submission is rejected", func() {
			_, err := submitAs(svc, "u2", "3\n")
			So(err, ShouldBeNil)

			err2 := func() error {
				_, e := svc.Select(ctx, "u2", best.SubmissionID)
				return e
			}()
			So(errors.Is(err2, repository.ErrInvalidSelection), ShouldBeTrue)
		})

		Convey("Selecting an unknown submission is rejected", func() {
			_, err := svc.Select(ctx, "u1", 9999)
			So(errors.Is(err, repository.ErrInvalidSelection), ShouldBeTrue)
		})
	})
}

func TestFakeEntries(t *testing.T) {
	Convey("Given a competition with one real participant", t, func() {
		svc := newTestService(t)
		ctx := context.Background()

		_, err := submitAs(svc, "u1", "1\n") // public 110, private -90
		So(err, ShouldBeNil)

		So(svc.FakeAdd(ctx, "Baseline", 40), ShouldBeNil)

		Convey("Fakes appear on the private view only", func() {
			private, err := svc.Leaderboard(ctx, leaderboard.Private)
			So(err, ShouldBeNil)
			So(private, ShouldHaveLength, 2)
			So(private[0].Fake, ShouldBeTrue)
			So(private[0].DisplayName, ShouldEqual, "Baseline")

			public, err := svc.Leaderboard(ctx, leaderboard.Public)
			So(err, ShouldBeNil)
			So(public, ShouldHaveLength, 1)
			So(public[0].Fake, ShouldBeFalse)
		})

		Convey("Removing a fake drops it from the private view", func() {
			So(svc.FakeRemove(ctx, "Baseline"), ShouldBeNil)
			private, err := svc.Leaderboard(ctx, leaderboard.Private)
			So(err, ShouldBeNil)
			So(private, ShouldHaveLength, 1)
		})

		Convey("Removing an unknown fake reports not found", func() {
			err := svc.FakeRemove(ctx, "Ghost")
			So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
		})

		Convey("Fakes never block the top-rank badge", func() {
			for i := 0; i < 6; i++ {
				So(svc.FakeAdd(ctx, fmt.Sprintf("Bot %d", i), 1000), ShouldBeNil)
			}
			res, err := submitAs(svc, "u2", "1\n3\n")
			So(err, ShouldBeNil)
			So(badgeKinds(res.NewBadges), ShouldContain, string(badge.Top5Public))
		})
	})

	Convey("Given a competition showing fakes on the public view", t, func() {
		svc := newTestService(t, service.WithFakesOnPublic(true))
		ctx := context.Background()

		_, err := submitAs(svc, "u1", "1\n")
		So(err, ShouldBeNil)
		So(svc.FakeAdd(ctx, "Baseline", 40), ShouldBeNil)

		public, err := svc.Leaderboard(ctx, leaderboard.Public)
		So(err, ShouldBeNil)
		So(public, ShouldHaveLength, 2)
	})
}

func TestServiceLifecycle(t *testing.T) {
	Convey("Start fails without its required collaborators", t, func() {
		So(logger.Init(), ShouldBeNil)
		svc := service.New(service.WithStore(repository.NewMemoryStore(context.Background())))
		err := svc.Start(context.Background())
		So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
	})

	Convey("Submit before Start is refused", t, func() {
		svc := service.New()
		_, err := svc.Submit(context.Background(), service.SubmitRequest{
			UserID: "u1", Role: model.RoleStudent, Raw: []byte("1\n"),
		})
		So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
	})

	Convey("Accepted mutations bump the version counter", t, func() {
		svc := newTestService(t)
		So(svc.Version(), ShouldEqual, 0)

		_, err := submitAs(svc, "u1", "1\n")
		So(err, ShouldBeNil)
		So(svc.Version(), ShouldEqual, 1)

		So(svc.FakeAdd(context.Background(), "Baseline", 40), ShouldBeNil)
		So(svc.Version(), ShouldEqual, 2)
	})

	Convey("GetStats reflects the stored state", t, func() {
		svc := newTestService(t)
		_, err := submitAs(svc, "u1", "1\n")
		So(err, ShouldBeNil)
		_, err = submitAs(svc, "u2", "2\n")
		So(err, ShouldBeNil)

		stats := svc.GetStats()
		So(stats["submissions"], ShouldEqual, 2)
		So(stats["users"], ShouldEqual, 2)
		So(stats["master_records"], ShouldEqual, 4)
	})
}

func TestSnapshotRoundTrip(t *testing.T) {
	Convey("Exported state restores into a fresh service", t, func() {
		svc := newTestService(t)
		ctx := context.Background()

		first, err := submitAs(svc, "u1", "1\n2\n")
		So(err, ShouldBeNil)
		So(svc.FakeAdd(ctx, "Baseline", 40), ShouldBeNil)

		var buf strings.Builder
		So(svc.Export(ctx, &buf), ShouldBeNil)

		restored := service.New(
			service.WithStore(repository.NewMemoryStore(ctx)),
			service.WithMaster(testMaster(t)),
			service.WithGain(testGain),
			service.WithThresholds(testThresholds),
			service.WithDeadline(time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)),
		)
		So(restored.Import(ctx, strings.NewReader(buf.String())), ShouldBeNil)
		So(restored.Start(ctx), ShouldBeNil)

		dup, err := submitAs(restored, "u1", "1\n2\n")
		So(err, ShouldBeNil)
		So(dup.Duplicate, ShouldBeTrue)
		So(dup.OriginalID, ShouldEqual, first.SubmissionID)

		private, err := restored.Leaderboard(ctx, leaderboard.Private)
		So(err, ShouldBeNil)
		So(len(private), ShouldEqual, 2)
	})
}

func badgeKinds(badges []service.AwardedBadge) []string {
	out := make([]string, 0, len(badges))
	for _, b := range badges {
		out = append(out, b.Kind)
	}
	return out
}

// subsetCSV renders the non-empty subset of master ids {1,2,3,4} encoded by
// mask as a prediction file. Distinct masks yield distinct checksums.
func subsetCSV(mask int) string {
	var sb strings.Builder
	for bit := 0; bit < 4; bit++ {
		if mask&(1<<bit) != 0 {
			fmt.Fprintf(&sb, "%d\n", bit+1)
		}
	}
	return sb.String()
}
