package config

import (
	"os"
	"path/filepath"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
	"traindispatch/internal/hw/track"
)

const sampleYaml = `
kind: traindispatch
def:
  track: TrackB
  trains:
    - id: 58
    - id: 63
      calibration: heavy
  dashboard:
    addr: ":8080"
`

func TestFromYaml(t *testing.T) {
	Convey("Given a config file on disk", t, func() {
		dir := t.TempDir()
		path := filepath.Join(dir, "config.yaml")
		err := os.WriteFile(path, []byte(sampleYaml), 0o644)
		So(err, ShouldBeNil)

		Convey("FromYaml decodes the inner def section", func() {
			cfg, err := FromYaml(path)
			So(err, ShouldBeNil)
			So(cfg.Track, ShouldEqual, "TrackB")
			So(cfg.TrackName(), ShouldEqual, track.TrackB)
			So(len(cfg.Trains), ShouldEqual, 2)
			So(cfg.Trains[1].Calibration, ShouldEqual, "heavy")
			So(cfg.Dashboard.Addr, ShouldEqual, ":8080")
		})
	})
}

func TestTrackNameDefaultsToA(t *testing.T) {
	Convey("Given an empty config", t, func() {
		cfg := &Config{}
		Convey("TrackName defaults to TrackA", func() {
			So(cfg.TrackName(), ShouldEqual, track.TrackA)
		})
	})
}
