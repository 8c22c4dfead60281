package config_test

import (
	"errors"
	"testing"

	"github.com/Aygren/balendip-sub000/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with default options", t, func() {
		cfg := config.New()

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
			convey.So(cfg.Backend, convey.ShouldEqual, config.BackendMemory)
			convey.So(cfg.PageSize, convey.ShouldEqual, 20)
			convey.So(cfg.MaxPageSize, convey.ShouldEqual, 100)
			convey.So(cfg.ListStaleMS, convey.ShouldEqual, 30_000)
			convey.So(cfg.SphereEvictMS, convey.ShouldEqual, 1_800_000)
			convey.So(cfg.RetryMax, convey.ShouldEqual, 3)
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})
	})
}

func TestConfig_Validate(t *testing.T) {
	convey.Convey("Given invalid settings", t, func() {
		cases := []struct {
			name   string
			mutate func(c *config.Config)
		}{
			{"empty addr", func(c *config.Config) { c.Addr = "" }},
			{"unknown backend", func(c *config.Config) { c.Backend = "mongo" }},
			{"rest without url", func(c *config.Config) { c.Backend = config.BackendREST }},
			{"sqlite without path", func(c *config.Config) { c.Backend = config.BackendSQLite; c.SQLitePath = "" }},
			{"no identity", func(c *config.Config) { c.DevUserID = "" }},
			{"page above max", func(c *config.Config) { c.PageSize = 101 }},
			{"zero page", func(c *config.Config) { c.PageSize = 0 }},
			{"list stale past evict", func(c *config.Config) { c.ListStaleMS = c.ListEvictMS + 1 }},
			{"sphere stale past evict", func(c *config.Config) { c.SphereStaleMS = c.SphereEvictMS + 1 }},
			{"inverted retry delays", func(c *config.Config) { c.RetryMaxDelayMS = c.RetryBaseDelayMS - 1 }},
			{"zero queue", func(c *config.Config) { c.RefreshQueueSize = 0 }},
			{"zero collect cap", func(c *config.Config) { c.MaxCollectEvents = 0 }},
		}
		for _, tc := range cases {
			convey.Convey("Then "+tc.name+" is rejected", func() {
				cfg := config.New()
				tc.mutate(cfg)
				err := cfg.Validate()
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		}
	})

	convey.Convey("Given a rest backend with a url", t, func() {
		cfg := config.New()
		cfg.Backend = config.BackendREST
		cfg.RESTURL = "https://example.supabase.co/rest/v1"
		cfg.JWTSecret = "s"
		cfg.DevUserID = ""
		convey.So(cfg.Validate(), convey.ShouldBeNil)
	})

	convey.Convey("Given an unknown backend", t, func() {
		cfg := config.New()
		cfg.Backend = "mongo"

		convey.Convey("Then the error names the setting and the value", func() {
			err := cfg.Validate()
			convey.So(err.Error(), convey.ShouldEqual, `invalid balendip config: unknown backend "mongo"`)
		})
	})
}
