package lazypdf

import (
	"context"
	"image"
	"os"
	"path/filepath"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func writeFixtureFile(t *testing.T) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "fixture.pdf")
	if err := os.WriteFile(path, fixturePDF("", "", ""), 0o644); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}
	return path
}

func TestNewRasterizer(t *testing.T) {
	Convey("NewRasterizer()", t, func() {
		r := NewRasterizer("foo.pdf", 10)

		Convey("returns a properly configured struct", func() {
			So(r.Filename, ShouldEqual, "foo.pdf")
			So(r.RequestChan, ShouldNotBeNil)
			So(cap(r.RequestChan), ShouldEqual, 10)
		})

		Convey("does not serve requests before Run", func() {
			_, err := r.GeneratePageImage(context.Background(), 1, 0, 0)
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "has not been started")
		})
	})
}

func TestRasterizerRun(t *testing.T) {
	Convey("Run()", t, func() {
		file := writeFixtureFile(t)

		Convey("opens the document and counts pages", func() {
			r := NewRasterizer(file, 10)
			So(r.Run(), ShouldBeNil)
			So(r.GetPageCount(), ShouldEqual, 1)
			r.Stop()
		})

		Convey("fails on a missing file", func() {
			r := NewRasterizer(filepath.Join(t.TempDir(), "nope.pdf"), 10)
			err := r.Run()
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "Unable to open document")
		})

		Convey("cannot be recycled", func() {
			r := NewRasterizer(file, 10)
			So(r.Run(), ShouldBeNil)
			err := r.Run()
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "cannot be recycled")
			r.Stop()
		})
	})
}

func TestRasterizerGenerate(t *testing.T) {
	Convey("Generating pages", t, func() {
		file := writeFixtureFile(t)
		r := NewRasterizer(file, 10)
		So(r.Run(), ShouldBeNil)
		defer r.Stop()

		Convey("returns an image with the scaled page size", func() {
			img, err := r.GeneratePageImage(context.Background(), 1, 0, 1.0)
			So(err, ShouldBeNil)
			So(img, ShouldNotBeNil)
			So(img.Bounds(), ShouldResemble, image.Rect(0, 0, 612, 792))
		})

		Convey("honors the width override", func() {
			img, err := r.GeneratePageImage(context.Background(), 1, 306, 0)
			So(err, ShouldBeNil)
			So(img.Bounds().Dx(), ShouldEqual, 306)
		})

		Convey("returns HTML for the markup raster type", func() {
			html, err := r.GeneratePageHTML(context.Background(), 1, 0, 1.0)
			So(err, ShouldBeNil)
			So(string(html), ShouldContainSubstring, "Hello World")
		})

		Convey("rejects out of range pages", func() {
			_, err := r.GeneratePageImage(context.Background(), 3, 0, 0)
			So(err, ShouldEqual, ErrBadPage)
		})
	})
}

func TestRasterizerStop(t *testing.T) {
	Convey("Stop()", t, func() {
		file := writeFixtureFile(t)
		r := NewRasterizer(file, 10)
		r.stopCompleted = make(chan struct{})
		So(r.Run(), ShouldBeNil)

		Convey("shuts the event loop down and refuses new work", func() {
			r.Stop()
			<-r.stopCompleted

			_, err := r.GeneratePageImage(context.Background(), 1, 0, 0)
			So(err, ShouldNotBeNil)
		})
	})
}
