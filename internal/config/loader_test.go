package config_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/Aygren/balendip-sub000/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()
		clearConfigEnvVars()
		defer clearConfigEnvVars()

		convey.Convey("When loading config with defaults only", func() {
			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldResemble, config.New())
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			_ = os.Setenv("BALENDIP_ADDR", ":9090")
			_ = os.Setenv("BALENDIP_BACKEND", "SQLite")
			_ = os.Setenv("BALENDIP_SQLITE_PATH", "/tmp/b.db")
			_ = os.Setenv("BALENDIP_LIST_STALE_MS", "1000")
			_ = os.Setenv("BALENDIP_REFRESH_WORKERS", "8")
			_ = os.Setenv("BALENDIP_JWT_SECRET", "shh")

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should override defaults with env vars", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9090")
				convey.So(cfg.Backend, convey.ShouldEqual, config.BackendSQLite)
				convey.So(cfg.SQLitePath, convey.ShouldEqual, "/tmp/b.db")
				convey.So(cfg.ListStaleMS, convey.ShouldEqual, 1000)
				convey.So(cfg.RefreshWorkers, convey.ShouldEqual, 8)
				convey.So(cfg.JWTSecret, convey.ShouldEqual, "shh")
				convey.So(cfg.PageSize, convey.ShouldEqual, 20)
			})
		})

		convey.Convey("When loading config with YAML file", func() {
			path := writeConfigFile(t, `
# rest deployment
addr: ":7070"
backend: rest
rest_url: "https://example.supabase.co/rest/v1"
rest_api_key: anon
page_size: 50
retry_max: 5
`)
			_ = os.Setenv("BALENDIP_CONFIG", path)

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load from YAML file", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":7070")
				convey.So(cfg.Backend, convey.ShouldEqual, config.BackendREST)
				convey.So(cfg.RESTURL, convey.ShouldEqual, "https://example.supabase.co/rest/v1")
				convey.So(cfg.RESTAPIKey, convey.ShouldEqual, "anon")
				convey.So(cfg.PageSize, convey.ShouldEqual, 50)
				convey.So(cfg.RetryMax, convey.ShouldEqual, 5)
				convey.So(cfg.MaxPageSize, convey.ShouldEqual, 100)
			})

			convey.Convey("And env vars should take precedence over the file", func() {
				_ = os.Setenv("BALENDIP_PAGE_SIZE", "10")
				cfg, err := config.Load(ctx)
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.PageSize, convey.ShouldEqual, 10)
				convey.So(cfg.Addr, convey.ShouldEqual, ":7070")
			})
		})

		convey.Convey("When loading config with invalid YAML file", func() {
			_ = os.Setenv("BALENDIP_CONFIG", writeConfigFile(t, "addr: [unclosed"))
			_, err := config.Load(ctx)

			convey.Convey("Then it should return a load error", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When loading config with non-existent file", func() {
			_ = os.Setenv("BALENDIP_CONFIG", filepath.Join(t.TempDir(), "missing.yaml"))
			_, err := config.Load(ctx)

			convey.Convey("Then it should return a load error", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When loading config with invalid numeric environment variables", func() {
			_ = os.Setenv("BALENDIP_PAGE_SIZE", "twenty")
			_, err := config.Load(ctx)

			convey.Convey("Then it should fail to unmarshal", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When the loaded values do not validate", func() {
			_ = os.Setenv("BALENDIP_BACKEND", "rest")
			_, err := config.Load(ctx)

			convey.Convey("Then it should return an invalid config error", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		})
	})
}

// Helper functions.

var configEnvVars = []string{
	"BALENDIP_CONFIG",
	"BALENDIP_ADDR",
	"BALENDIP_BACKEND",
	"BALENDIP_SQLITE_PATH",
	"BALENDIP_LIST_STALE_MS",
	"BALENDIP_REFRESH_WORKERS",
	"BALENDIP_JWT_SECRET",
	"BALENDIP_PAGE_SIZE",
}

func clearConfigEnvVars() {
	for _, envVar := range configEnvVars {
		_ = os.Unsetenv(envVar)
	}
}

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "balendip.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}
