package attribution

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"gitlab.com/timkado/api/affiliate-lead-service/internal/apperrors"
	"gitlab.com/timkado/api/affiliate-lead-service/internal/model"
	"gitlab.com/timkado/api/affiliate-lead-service/internal/requestctx"
	storagemock "gitlab.com/timkado/api/affiliate-lead-service/internal/storage/mock"
)

type middlewareFixture struct {
	router *gin.Engine
	repo   *storagemock.AffiliateRepoMock
	store  *CookieStore
	seen   *string
}

func newMiddlewareFixture(t *testing.T) *middlewareFixture {
	gin.SetMode(gin.TestMode)
	repo := &storagemock.AffiliateRepoMock{}
	store := newTestStore(t, "")
	log := zaptest.NewLogger(t)

	var seen string
	r := gin.New()
	r.Use(Middleware(NewResolver(repo, log), store, log))
	r.GET("/properties", func(c *gin.Context) {
		seen, _ = requestctx.AffiliateIDFrom(c.Request.Context())
		c.Status(http.StatusOK)
	})
	return &middlewareFixture{router: r, repo: repo, store: store, seen: &seen}
}

func (f *middlewareFixture) do(url string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, url, nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func cookieNamed(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestMiddleware_ValidRefAttachesCookie(t *testing.T) {
	f := newMiddlewareFixture(t)
	aff := model.NewAffiliate()
	f.repo.On("FindActiveByCode", mock.Anything, "AFF123").Return(aff, nil).Once()

	rec := f.do("/properties?ref=aff123")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, aff.ID, *f.seen)
	cookie := cookieNamed(rec, DefaultCookieName)
	require.NotNil(t, cookie)
	got, ok := f.store.Read(requestWith(cookie))
	assert.True(t, ok)
	assert.Equal(t, aff.ID, got)
}

func TestMiddleware_NewRefOverwritesExistingCookie(t *testing.T) {
	f := newMiddlewareFixture(t)
	first := model.NewAffiliate()
	second := model.NewAffiliate()
	f.repo.On("FindActiveByCode", mock.Anything, "SECOND").Return(second, nil).Once()

	rec := f.do("/properties?ref=SECOND", attachCookie(t, f.store, first.ID))

	assert.Equal(t, second.ID, *f.seen)
	cookie := cookieNamed(rec, DefaultCookieName)
	require.NotNil(t, cookie)
	got, _ := f.store.Read(requestWith(cookie))
	assert.Equal(t, second.ID, got)
	f.repo.AssertNotCalled(t, "FindByID", mock.Anything, mock.Anything)
}

func TestMiddleware_InvalidRefFallsBackToCookie(t *testing.T) {
	f := newMiddlewareFixture(t)
	aff := model.NewAffiliate()
	f.repo.On("FindActiveByCode", mock.Anything, "BOGUS1").Return(nil, apperrors.ErrNotFound).Once()
	f.repo.On("FindByID", mock.Anything, aff.ID).Return(aff, nil).Once()

	rec := f.do("/properties?ref=BOGUS1", attachCookie(t, f.store, aff.ID))

	assert.Equal(t, aff.ID, *f.seen)
	assert.Nil(t, cookieNamed(rec, DefaultCookieName))
}

func TestMiddleware_CookieForBlockedAffiliateIsCleared(t *testing.T) {
	f := newMiddlewareFixture(t)
	aff := model.NewAffiliate(&model.Affiliate{Status: model.AffiliateBlocked})
	f.repo.On("FindByID", mock.Anything, aff.ID).Return(aff, nil).Once()

	rec := f.do("/properties", attachCookie(t, f.store, aff.ID))

	assert.Empty(t, *f.seen)
	cleared := cookieNamed(rec, DefaultCookieName)
	require.NotNil(t, cleared)
	assert.Equal(t, -1, cleared.MaxAge)
}

func TestMiddleware_LookupErrorKeepsCookie(t *testing.T) {
	f := newMiddlewareFixture(t)
	aff := model.NewAffiliate()
	f.repo.On("FindByID", mock.Anything, aff.ID).Return(nil, errors.New("connection refused")).Once()

	rec := f.do("/properties", attachCookie(t, f.store, aff.ID))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, *f.seen)
	assert.Nil(t, cookieNamed(rec, DefaultCookieName), "cookie must not be rewritten or cleared")
	f.repo.AssertExpectations(t)
}

func TestMiddleware_NoRefNoCookie(t *testing.T) {
	f := newMiddlewareFixture(t)

	rec := f.do("/properties")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, *f.seen)
	assert.Nil(t, cookieNamed(rec, DefaultCookieName))
	f.repo.AssertExpectations(t)
}
