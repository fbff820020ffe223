package cache

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRedis(t *testing.T) {
	t.Helper()
	require.NoError(t, InitRedis(""))
	t.Cleanup(func() { Close() })
}

func TestWithoutRedis(t *testing.T) {
	_, err := Get("x")
	assert.ErrorIs(t, err, errNotInitialized)
	_, err = Incr("x", time.Minute)
	assert.ErrorIs(t, err, errNotInitialized)

	calls := 0
	var dest int
	fn := func() (int, error) { calls++; return 7, nil }
	require.NoError(t, GetOrSet("k", &dest, time.Minute, fn))
	require.NoError(t, GetOrSet("k", &dest, time.Minute, fn))
	assert.Equal(t, 7, dest)
	assert.Equal(t, 2, calls)

	InvalidateAdminStats()
}

func TestGetOrSetCaches(t *testing.T) {
	setupRedis(t)
	assert.True(t, IsEmbedded())

	type stats struct {
		Users int `json:"users"`
	}
	calls := 0
	fn := func() (stats, error) {
		calls++
		return stats{Users: calls}, nil
	}

	var dest stats
	require.NoError(t, GetOrSet(KeyAdminStats, &dest, time.Minute, fn))
	require.NoError(t, GetOrSet(KeyAdminStats, &dest, time.Minute, fn))
	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, dest.Users)

	InvalidateAdminStats()
	require.NoError(t, GetOrSet(KeyAdminStats, &dest, time.Minute, fn))
	assert.Equal(t, 2, dest.Users)

	hits, misses := HitRatio()
	assert.GreaterOrEqual(t, hits, int64(1))
	assert.GreaterOrEqual(t, misses, int64(2))

	failing := func() (stats, error) { return stats{}, errors.New("boom") }
	InvalidateAdminStats()
	assert.Error(t, GetOrSet(KeyAdminStats, &dest, time.Minute, failing))
}

func TestGetMiss(t *testing.T) {
	setupRedis(t)
	_, err := Get("absent")
	assert.ErrorIs(t, err, ErrMiss)

	require.NoError(t, Set("present", "v", time.Minute))
	v, err := Get("present")
	require.NoError(t, err)
	assert.Equal(t, "v", v)
	require.NoError(t, Delete("present"))
	_, err = Get("present")
	assert.ErrorIs(t, err, ErrMiss)
}

func TestIncrSetsWindow(t *testing.T) {
	setupRedis(t)
	key := KeyRateLimitPrefix + "test"

	for i := int64(1); i <= 3; i++ {
		n, err := Incr(key, time.Minute)
		require.NoError(t, err)
		assert.Equal(t, i, n)
	}
	assert.Equal(t, time.Minute, miniRedis.TTL(key))

	miniRedis.FastForward(time.Minute + time.Second)
	n, err := Incr(key, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestRedisStoreRoundTrip(t *testing.T) {
	setupRedis(t)
	gin.SetMode(gin.TestMode)

	store := NewRedisStore(GetClient(), []byte("0123456789abcdef0123456789abcdef"))
	engine := gin.New()
	engine.Use(sessions.Sessions("test", store))
	engine.GET("/set", func(c *gin.Context) {
		s := sessions.Default(c)
		s.Set("name", "alice")
		require.NoError(t, s.Save())
	})
	engine.GET("/get", func(c *gin.Context) {
		v, _ := sessions.Default(c).Get("name").(string)
		c.String(http.StatusOK, v)
	})
	engine.GET("/clear", func(c *gin.Context) {
		s := sessions.Default(c)
		s.Clear()
		s.Options(sessions.Options{MaxAge: -1})
		require.NoError(t, s.Save())
	})

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/set", nil))
	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Len(t, miniRedis.Keys(), 1)

	get := func(c *http.Cookie) string {
		req := httptest.NewRequest(http.MethodGet, "/get", nil)
		req.AddCookie(c)
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, req)
		return w.Body.String()
	}
	assert.Equal(t, "alice", get(cookies[0]))

	forged := *cookies[0]
	forged.Value = "tampered"
	assert.Empty(t, get(&forged))

	req := httptest.NewRequest(http.MethodGet, "/clear", nil)
	req.AddCookie(cookies[0])
	engine.ServeHTTP(httptest.NewRecorder(), req)
	assert.Empty(t, miniRedis.Keys())
	assert.Empty(t, get(cookies[0]))
}
