package dataset_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/okian/oraculus/internal/domain/dataset"

	. "github.com/smartystreets/goconvey/convey"
)

func TestLoad(t *testing.T) {
	Convey("Given a valid master CSV", t, func() {
		m, err := dataset.Load(strings.NewReader(`id,label,split
1,1,public
2,0,public
3,1,private
4,0,private
`))
		So(err, ShouldBeNil)

		Convey("All records are indexed", func() {
			So(m.Len(), ShouldEqual, 4)
			So(m.Contains(1), ShouldBeTrue)
			So(m.Contains(4), ShouldBeTrue)
			So(m.Contains(5), ShouldBeFalse)
		})

		Convey("Records are partitioned by split", func() {
			So(m.Records(dataset.SplitPublic), ShouldHaveLength, 2)
			So(m.Records(dataset.SplitPrivate), ShouldHaveLength, 2)
		})

		Convey("Positives counts label-1 records across both splits", func() {
			So(m.Positives(), ShouldEqual, 2)
		})
	})

	Convey("Whitespace around fields is tolerated", t, func() {
		m, err := dataset.Load(strings.NewReader("id,label,split\n 1 , 1 , public \n"))
		So(err, ShouldBeNil)
		So(m.Contains(1), ShouldBeTrue)
	})

	Convey("Given invalid master CSVs", t, func() {
		Convey("A wrong header is rejected", func() {
			_, err := dataset.Load(strings.NewReader("identifier,label,split\n1,1,public\n"))
			So(errors.Is(err, dataset.ErrBadHeader), ShouldBeTrue)
		})

		Convey("A non-numeric id is rejected", func() {
			_, err := dataset.Load(strings.NewReader("id,label,split\nx,1,public\n"))
			So(errors.Is(err, dataset.ErrBadRow), ShouldBeTrue)
		})

		Convey("A label outside 0/1 is rejected", func() {
			_, err := dataset.Load(strings.NewReader("id,label,split\n1,2,public\n"))
			So(errors.Is(err, dataset.ErrBadRow), ShouldBeTrue)
		})

		Convey("An unknown split is rejected", func() {
			_, err := dataset.Load(strings.NewReader("id,label,split\n1,1,secret\n"))
			So(errors.Is(err, dataset.ErrBadRow), ShouldBeTrue)
		})

		Convey("Duplicate ids are rejected", func() {
			_, err := dataset.Load(strings.NewReader("id,label,split\n1,1,public\n1,0,private\n"))
			So(errors.Is(err, dataset.ErrDuplicateID), ShouldBeTrue)
		})

		Convey("A header-only file is rejected as empty", func() {
			_, err := dataset.Load(strings.NewReader("id,label,split\n"))
			So(errors.Is(err, dataset.ErrEmpty), ShouldBeTrue)
		})
	})
}
