package feedsim

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/smartystreets/goconvey/convey"
)

func writeRoster(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "roster.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write roster: %v", err)
	}
	return path
}

func TestLoadRoster(t *testing.T) {
	convey.Convey("Given roster fixtures", t, func() {
		convey.Convey("A valid roster loads", func() {
			path := writeRoster(t, `
problems: 5
teams:
  - name: Alpha
    teamId: "101"
  - name: Bravo
`)
			r, err := LoadRoster(path)
			convey.So(err, convey.ShouldBeNil)
			convey.So(r.Problems, convey.ShouldEqual, 5)
			convey.So(r.Teams, convey.ShouldResemble, []RosterEntry{
				{Name: "Alpha", TeamID: "101"},
				{Name: "Bravo"},
			})
		})

		convey.Convey("A roster with one team is rejected", func() {
			_, err := LoadRoster(writeRoster(t, "teams:\n  - name: Solo\n"))
			convey.So(errors.Is(err, ErrInvalidConfig), convey.ShouldBeTrue)
		})

		convey.Convey("Duplicate names are rejected", func() {
			_, err := LoadRoster(writeRoster(t, "teams:\n  - name: A\n  - name: A\n"))
			convey.So(errors.Is(err, ErrInvalidConfig), convey.ShouldBeTrue)
		})

		convey.Convey("Malformed YAML is an error", func() {
			_, err := LoadRoster(writeRoster(t, "teams: [\n"))
			convey.So(err, convey.ShouldNotBeNil)
		})

		convey.Convey("A missing file is an error", func() {
			_, err := LoadRoster(filepath.Join(t.TempDir(), "missing.yaml"))
			convey.So(err, convey.ShouldNotBeNil)
		})
	})

	convey.Convey("Generated rosters are numbered", t, func() {
		r := GenerateRoster(3, 4)
		convey.So(r.Problems, convey.ShouldEqual, 4)
		convey.So(r.Teams[2].Name, convey.ShouldEqual, "Team 03")
	})
}

func TestConfigValidate(t *testing.T) {
	convey.Convey("Given the default config", t, func() {
		cfg := DefaultConfig()
		convey.So(cfg.Validate(), convey.ShouldBeNil)

		convey.Convey("Invalid fields are reported", func() {
			for _, mutate := range []func(*Config){
				func(c *Config) { c.BaseURL = "" },
				func(c *Config) { c.Interval = 0 },
				func(c *Config) { c.Iterations = -1 },
				func(c *Config) { c.Teams = 1 },
				func(c *Config) { c.Problems = 0 },
			} {
				c := DefaultConfig()
				mutate(&c)
				convey.So(errors.Is(c.Validate(), ErrInvalidConfig), convey.ShouldBeTrue)
			}
		})
	})
}
