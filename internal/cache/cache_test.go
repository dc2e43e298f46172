package cache_test

import (
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/farmsight/farmsight-data/internal/cache"
)

func TestCache(t *testing.T) {
	Convey("Given an enabled cache", t, func() {
		c := cache.New(true)

		Convey("Set then Get round-trips data and etag", func() {
			etag := c.Set("rankings:2026:all:100", []byte(`{"ranked":[]}`), time.Minute)
			data, got, ok := c.Get("rankings:2026:all:100")
			So(ok, ShouldBeTrue)
			So(string(data), ShouldEqual, `{"ranked":[]}`)
			So(got, ShouldEqual, etag)
		})

		Convey("Expired entries miss", func() {
			c.Set("metrics:1:2026", []byte("x"), -time.Second)
			_, _, ok := c.Get("metrics:1:2026")
			So(ok, ShouldBeFalse)
		})

		Convey("Missing keys miss", func() {
			_, _, ok := c.Get("rankings:nope")
			So(ok, ShouldBeFalse)
		})

		Convey("InvalidatePrefix removes only matching keys", func() {
			c.Set("rankings:2026:all:100", []byte("a"), time.Minute)
			c.Set("rankings:2026:batting:50", []byte("b"), time.Minute)
			c.Set("cohorts:contact_rate:AA:2026", []byte("c"), time.Minute)

			removed := c.InvalidatePrefix(cache.PrefixRankings)
			So(removed, ShouldEqual, 2)

			_, _, ok := c.Get("cohorts:contact_rate:AA:2026")
			So(ok, ShouldBeTrue)
		})

		Convey("A snapshot publish clears every cohort-derived family", func() {
			c.Set("rankings:2026:all:100", []byte("a"), time.Minute)
			c.Set("cohorts:contact_rate:AA:2026", []byte("b"), time.Minute)
			c.Set("metrics:1:2026", []byte("c"), time.Minute)

			removed := c.InvalidateOnPublish()
			So(removed, ShouldEqual, 3)
			So(c.Stats()["active_keys"], ShouldEqual, 0)
		})
	})

	Convey("Given a disabled cache", t, func() {
		c := cache.New(false)

		Convey("Set is a no-op but still returns a usable etag", func() {
			etag := c.Set("rankings:2026:all:100", []byte("a"), time.Minute)
			So(etag, ShouldNotBeEmpty)
			_, _, ok := c.Get("rankings:2026:all:100")
			So(ok, ShouldBeFalse)
		})
	})
}

func TestETag(t *testing.T) {
	Convey("ETags are deterministic per payload", t, func() {
		a := cache.ComputeETag([]byte("payload"))
		b := cache.ComputeETag([]byte("payload"))
		So(a, ShouldEqual, b)
		So(a, ShouldStartWith, `W/"`)
		So(cache.ComputeETag([]byte("other")), ShouldNotEqual, a)
	})

	Convey("If-None-Match handling", t, func() {
		etag := cache.ComputeETag([]byte("payload"))
		So(cache.CheckETagMatch(etag, etag), ShouldBeTrue)
		So(cache.CheckETagMatch("*", etag), ShouldBeTrue)
		So(cache.CheckETagMatch("", etag), ShouldBeFalse)
		So(cache.CheckETagMatch(`W/"beef"`, etag), ShouldBeFalse)
	})
}
