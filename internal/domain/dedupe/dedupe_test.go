package dedupe_test

import (
	"context"
	"testing"

	"github.com/okian/oraculus/internal/domain/dedupe"

	. "github.com/smartystreets/goconvey/convey"
)

func TestChecksum(t *testing.T) {
	Convey("Checksums are normalization-invariant", t, func() {
		So(dedupe.Checksum([]int64{1, 2, 3}), ShouldEqual, dedupe.Checksum([]int64{3, 2, 1}))
		So(dedupe.Checksum([]int64{1, 2, 3}), ShouldEqual, dedupe.Checksum([]int64{1, 1, 2, 3, 3}))
	})

	Convey("Different id sets produce different checksums", t, func() {
		So(dedupe.Checksum([]int64{1, 2}), ShouldNotEqual, dedupe.Checksum([]int64{1, 3}))
		So(dedupe.Checksum([]int64{12}), ShouldNotEqual, dedupe.Checksum([]int64{1, 2}))
	})

	Convey("The empty set has a stable checksum", t, func() {
		So(dedupe.Checksum(nil), ShouldEqual, dedupe.Checksum([]int64{}))
	})
}

func TestIndexRegister(t *testing.T) {
	Convey("Given an empty index", t, func() {
		ctx := context.Background()
		idx := dedupe.NewIndex()
		sum := dedupe.Checksum([]int64{1, 2})

		Convey("The first registration is not a duplicate", func() {
			dup, orig := idx.Register(ctx, sum, dedupe.Ref{SubmissionID: 1, UserID: "u1"})
			So(dup, ShouldBeFalse)
			So(orig, ShouldEqual, 0)

			Convey("The same user registering again is flagged with the original id", func() {
				dup, orig := idx.Register(ctx, sum, dedupe.Ref{SubmissionID: 2, UserID: "u1"})
				So(dup, ShouldBeTrue)
				So(orig, ShouldEqual, 1)
			})

			Convey("A different user with the same checksum is not flagged", func() {
				dup, _ := idx.Register(ctx, sum, dedupe.Ref{SubmissionID: 3, UserID: "u2"})
				So(dup, ShouldBeFalse)
			})

			Convey("Lookup peeks without recording", func() {
				dup, orig := idx.Lookup(ctx, "u1", sum)
				So(dup, ShouldBeTrue)
				So(orig, ShouldEqual, 1)

				dup, _ = idx.Lookup(ctx, "u2", sum)
				So(dup, ShouldBeFalse)
				So(idx.Size(), ShouldEqual, 1)
			})
		})
	})
}

func TestIndexGroups(t *testing.T) {
	Convey("Given registrations from several users", t, func() {
		ctx := context.Background()
		idx := dedupe.NewIndex()
		shared := dedupe.Checksum([]int64{1, 2})
		solo := dedupe.Checksum([]int64{9})

		idx.Register(ctx, shared, dedupe.Ref{SubmissionID: 1, UserID: "u1", UserName: "Ada"})
		idx.Register(ctx, shared, dedupe.Ref{SubmissionID: 2, UserID: "u2", UserName: "Bob"})
		idx.Register(ctx, shared, dedupe.Ref{SubmissionID: 3, UserID: "u1", UserName: "Ada"})
		idx.Register(ctx, solo, dedupe.Ref{SubmissionID: 4, UserID: "u3", UserName: "Cyd"})

		Convey("Only checksums shared across distinct users form groups", func() {
			groups := idx.Groups(ctx)
			So(groups, ShouldHaveLength, 1)
			So(groups[0].Checksum, ShouldEqual, shared)
			So(groups[0].Users, ShouldResemble, []string{"u1", "u2"})
			So(groups[0].Submissions, ShouldHaveLength, 3)
		})

		Convey("A user's self-duplicates alone never form a group", func() {
			idx.Register(ctx, solo, dedupe.Ref{SubmissionID: 5, UserID: "u3"})
			groups := idx.Groups(ctx)
			So(groups, ShouldHaveLength, 1)
		})

		Convey("Group order follows first registration order", func() {
			later := dedupe.Checksum([]int64{7, 8})
			idx.Register(ctx, later, dedupe.Ref{SubmissionID: 6, UserID: "u1"})
			idx.Register(ctx, later, dedupe.Ref{SubmissionID: 7, UserID: "u2"})

			groups := idx.Groups(ctx)
			So(groups, ShouldHaveLength, 2)
			So(groups[0].Checksum, ShouldEqual, shared)
			So(groups[1].Checksum, ShouldEqual, later)
		})
	})
}
