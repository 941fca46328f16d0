package dataset_test

import (
	"errors"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/okian/clinic/internal/adapters/dataset"
	. "github.com/smartystreets/goconvey/convey"
)

func TestLoadDiabetes(t *testing.T) {
	Convey("Given the bundled table", t, func() {
		tbl, err := dataset.LoadDiabetes()
		So(err, ShouldBeNil)

		Convey("It has 442 samples with ten features each", func() {
			So(tbl.Len(), ShouldEqual, 442)
			So(tbl.Rows, ShouldHaveLength, 442)
			for _, row := range tbl.Rows {
				So(len(row), ShouldEqual, 10)
			}
			r, c := tbl.Matrix().Dims()
			So(r, ShouldEqual, 442)
			So(c, ShouldEqual, 10)
		})

		Convey("Targets are progression scores", func() {
			for _, y := range tbl.Target {
				So(y, ShouldBeBetweenOrEqual, 25, 346)
			}
		})
	})
}

func TestFingerprint(t *testing.T) {
	Convey("Given the bundled table", t, func() {
		tbl, err := dataset.LoadDiabetes()
		So(err, ShouldBeNil)

		// Pinned so replacing data/diabetes.csv is a deliberate, visible change.
		Convey("Its first record and target total are pinned", func() {
			So(tbl.Rows[0][0], ShouldAlmostEqual, -0.06679815, 1e-9)
			So(tbl.Rows[0][9], ShouldAlmostEqual, 0.02199334, 1e-9)
			So(tbl.Target[0], ShouldEqual, 148)
			So(tbl.TargetSum(), ShouldEqual, 68003)
		})

		Convey("It is reported as the synthetic stand-in", func() {
			So(tbl.Canonical(), ShouldBeFalse)
		})
	})

	Convey("Given a table carrying the published fingerprint", t, func() {
		first := []float64{
			0.03807591, 0.05068012, 0.06169621, 0.02187235, -0.0442235,
			-0.03482076, -0.04340085, -0.00259226, 0.01990842, -0.01764613,
		}
		tbl := &dataset.Table{
			Rows:   make([][]float64, dataset.CanonicalSamples),
			Target: make([]float64, dataset.CanonicalSamples),
		}
		tbl.Rows[0], tbl.Target[0] = first, 151
		rest := float64(dataset.CanonicalTargetSum-151) / float64(dataset.CanonicalSamples-1)
		for i := 1; i < dataset.CanonicalSamples; i++ {
			tbl.Rows[i] = make([]float64, 10)
			tbl.Target[i] = rest
		}

		Convey("It is recognised as the published data", func() {
			So(tbl.Canonical(), ShouldBeTrue)
		})

		Convey("A different first target breaks the match", func() {
			tbl.Target[0] = 150
			tbl.Target[1] += 1
			So(tbl.Canonical(), ShouldBeFalse)
		})

		Convey("A truncated table does not match", func() {
			tbl.Rows, tbl.Target = tbl.Rows[:100], tbl.Target[:100]
			So(tbl.Canonical(), ShouldBeFalse)
		})
	})
}

func TestSplit(t *testing.T) {
	Convey("Given the bundled table", t, func() {
		tbl, err := dataset.LoadDiabetes()
		So(err, ShouldBeNil)

		Convey("An 80/20 split holds out ceil(0.2*n) rows", func() {
			train, test, err := tbl.Split(0.2, rand.New(rand.NewSource(42)))
			So(err, ShouldBeNil)
			So(test.Len(), ShouldEqual, 89)
			So(train.Len(), ShouldEqual, 353)
		})

		Convey("The same seed gives the same partition", func() {
			_, a, _ := tbl.Split(0.2, rand.New(rand.NewSource(42)))
			_, b, _ := tbl.Split(0.2, rand.New(rand.NewSource(42)))
			So(a.Target, ShouldResemble, b.Target)
			So(a.Rows, ShouldResemble, b.Rows)
		})

		Convey("Invalid test sizes are rejected", func() {
			_, _, err := tbl.Split(0, rand.New(rand.NewSource(1)))
			So(errors.Is(err, dataset.ErrTestSize), ShouldBeTrue)
			_, _, err = tbl.Split(1, rand.New(rand.NewSource(1)))
			So(errors.Is(err, dataset.ErrTestSize), ShouldBeTrue)
		})
	})
}

func TestParse(t *testing.T) {
	header := "age,sex,bmi,bp,s1,s2,s3,s4,s5,s6,target\n"

	Convey("Given CSV input", t, func() {
		Convey("A well-formed file parses", func() {
			tbl, err := dataset.Parse(strings.NewReader(header + "1,2,3,4,5,6,7,8,9,10,151\n"))
			So(err, ShouldBeNil)
			So(tbl.Rows[0], ShouldResemble, []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10})
			So(tbl.Target, ShouldResemble, []float64{151})
		})

		Convey("A wrong header is rejected", func() {
			_, err := dataset.Parse(strings.NewReader("a,b,c,d,e,f,g,h,i,j,k\n"))
			So(errors.Is(err, dataset.ErrHeader), ShouldBeTrue)
		})

		Convey("A non-numeric cell is rejected", func() {
			_, err := dataset.Parse(strings.NewReader(header + "1,2,3,4,5,6,7,8,9,x,151\n"))
			So(errors.Is(err, dataset.ErrRecord), ShouldBeTrue)
		})

		Convey("A header without rows is empty", func() {
			_, err := dataset.Parse(strings.NewReader(header))
			So(errors.Is(err, dataset.ErrEmpty), ShouldBeTrue)
		})

		Convey("Files on disk load through LoadCSV", func() {
			path := filepath.Join(t.TempDir(), "d.csv")
			So(os.WriteFile(path, []byte(header+"1,2,3,4,5,6,7,8,9,10,99\n"), 0o600), ShouldBeNil)
			tbl, err := dataset.LoadCSV(path)
			So(err, ShouldBeNil)
			So(tbl.Len(), ShouldEqual, 1)
		})
	})
}
