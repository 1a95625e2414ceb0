package config_test

import (
	"context"
	"testing"

	"github.com/okian/oraculus/internal/config"
	. "github.com/smartystreets/goconvey/convey"
)

func TestNewDefaults(t *testing.T) {
	Convey("Given a default Config", t, func() {
		cfg := config.New(context.Background())

		Convey("Then it should carry sane defaults", func() {
			So(cfg.Addr, ShouldEqual, ":9080")
			So(cfg.LogLevel, ShouldEqual, "info")
			So(cfg.MasterDataPath, ShouldEqual, "master_data.csv")
			So(cfg.MaxLeaderboardLimit, ShouldEqual, 100)
			So(cfg.FakesOnPublic, ShouldBeFalse)
			So(cfg.DropUnknownIDs, ShouldBeFalse)
		})

		Convey("Then the gain matrix matches the classroom default", func() {
			So(cfg.Gain.TP, ShouldEqual, 100)
			So(cfg.Gain.TN, ShouldEqual, 10)
			So(cfg.Gain.FP, ShouldEqual, -50)
			So(cfg.Gain.FN, ShouldEqual, -100)
		})

		Convey("Then every badge kind has display metadata", func() {
			for _, kind := range []string{
				"first_submission", "first_model_selection",
				"submissions_10", "submissions_50", "submissions_100",
				"top_5_public", "high_threshold_first",
			} {
				info, ok := cfg.Badges[kind]
				So(ok, ShouldBeTrue)
				So(info.Name, ShouldNotBeEmpty)
			}
		})

		Convey("Then the default deadline parses", func() {
			_, err := cfg.DeadlineAt()
			So(err, ShouldBeNil)
		})
	})
}

func TestDeadlineAt(t *testing.T) {
	Convey("Given a Config with a deadline", t, func() {
		cfg := config.New(context.Background())

		Convey("When the deadline is RFC3339", func() {
			cfg.Competition.Deadline = "2026-06-30T23:59:59Z"
			at, err := cfg.DeadlineAt()

			Convey("Then it parses", func() {
				So(err, ShouldBeNil)
				So(at.Year(), ShouldEqual, 2026)
			})
		})

		Convey("When the deadline omits the zone", func() {
			cfg.Competition.Deadline = "2026-06-30T23:59:59"
			_, err := cfg.DeadlineAt()

			Convey("Then local time is assumed", func() {
				So(err, ShouldBeNil)
			})
		})

		Convey("When the deadline is garbage", func() {
			cfg.Competition.Deadline = "next friday"
			_, err := cfg.DeadlineAt()

			Convey("Then it fails with the config sentinel", func() {
				So(err, ShouldEqual, config.ErrInvalidConfig)
			})
		})
	})
}

func TestLoad(t *testing.T) {
	Convey("Given environment overrides", t, func() {
		t.Setenv("ORACULUS_ADDR", ":7070")
		t.Setenv("ORACULUS_LOG_LEVEL", "debug")

		cfg, err := config.Load(context.Background())

		Convey("Then env vars take precedence over defaults", func() {
			So(err, ShouldBeNil)
			So(cfg.Addr, ShouldEqual, ":7070")
			So(cfg.LogLevel, ShouldEqual, "debug")
		})
	})
}
