package visit

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"gitlab.com/timkado/api/affiliate-lead-service/internal/config"
	"gitlab.com/timkado/api/affiliate-lead-service/internal/model"
	storagemock "gitlab.com/timkado/api/affiliate-lead-service/internal/storage/mock"
)

const desktopUA = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

func newTestRecorder(t *testing.T, repo *storagemock.VisitRepoMock, log *zap.Logger, poolSize int) *Recorder {
	t.Helper()
	rec, err := NewRecorder(repo, config.WorkerPoolConfig{PoolSize: poolSize}, log)
	require.NoError(t, err)
	t.Cleanup(rec.Stop)
	return rec
}

func TestRecorder_RecordsCatalogVisit(t *testing.T) {
	repo := &storagemock.VisitRepoMock{}
	affiliateID := "aff-1"
	repo.On("Save", mock.Anything, mock.MatchedBy(func(v *model.Visit) bool {
		return v.AffiliateID != nil && *v.AffiliateID == "aff-1" &&
			v.PropertyID == nil &&
			v.IPAddress == "10.0.0.1" &&
			v.DeviceClass == model.DeviceDesktop &&
			v.URL == "/properties?ref=AFF123" &&
			!v.VisitedAt.IsZero()
	})).Return(nil).Once()

	rec := newTestRecorder(t, repo, zap.NewNop(), 2)
	rec.Record(context.Background(), Input{
		AffiliateID: &affiliateID,
		IP:          "10.0.0.1",
		UserAgent:   desktopUA,
		URL:         "/properties?ref=AFF123",
	})
	rec.Wait()

	repo.AssertExpectations(t)
}

func TestRecorder_CopiesAffiliateByValue(t *testing.T) {
	repo := &storagemock.VisitRepoMock{}
	var saved *model.Visit
	repo.On("Save", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		saved = args.Get(1).(*model.Visit)
	}).Return(nil).Once()

	affiliateID := "aff-1"
	propertyID := "prop-1"
	rec := newTestRecorder(t, repo, zap.NewNop(), 1)
	rec.Record(context.Background(), Input{
		AffiliateID: &affiliateID,
		PropertyID:  &propertyID,
		URL:         "/properties/villa",
	})
	affiliateID = "changed"
	rec.Wait()

	if assert.NotNil(t, saved) {
		assert.Equal(t, "aff-1", *saved.AffiliateID)
		assert.Equal(t, "prop-1", *saved.PropertyID)
		assert.Equal(t, model.DeviceUnknown, saved.DeviceClass)
	}
}

func TestRecorder_SwallowsStoreErrors(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	repo := &storagemock.VisitRepoMock{}
	repo.On("Save", mock.Anything, mock.Anything).Return(errors.New("disk full")).Once()

	rec := newTestRecorder(t, repo, zap.New(core), 1)
	assert.NotPanics(t, func() {
		rec.Record(context.Background(), Input{URL: "/properties"})
	})
	rec.Wait()
	assert.Equal(t, 1, logs.FilterMessage("Failed to record visit").Len())
}

func TestRecorder_TruncatesLongURL(t *testing.T) {
	repo := &storagemock.VisitRepoMock{}
	repo.On("Save", mock.Anything, mock.MatchedBy(func(v *model.Visit) bool {
		return len(v.URL) == maxURLLength
	})).Return(nil).Once()

	rec := newTestRecorder(t, repo, zap.NewNop(), 1)
	rec.Record(context.Background(), Input{
		URL: "/properties?q=" + strings.Repeat("x", 3000),
	})
	rec.Wait()

	repo.AssertExpectations(t)
}

func TestRecorder_DoesNotWaitForSlowStore(t *testing.T) {
	release := make(chan struct{})
	repo := &storagemock.VisitRepoMock{}
	repo.On("Save", mock.Anything, mock.Anything).Run(func(mock.Arguments) {
		<-release
	}).Return(nil).Once()

	rec := newTestRecorder(t, repo, zap.NewNop(), 1)
	start := time.Now()
	rec.Record(context.Background(), Input{URL: "/properties"})
	assert.Less(t, time.Since(start), 100*time.Millisecond)

	close(release)
	rec.Wait()
	repo.AssertExpectations(t)
}

func TestRecorder_DropsWhenSaturated(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	release := make(chan struct{})
	repo := &storagemock.VisitRepoMock{}
	repo.On("Save", mock.Anything, mock.Anything).Run(func(mock.Arguments) {
		<-release
	}).Return(nil).Once()

	rec := newTestRecorder(t, repo, zap.New(core), 1)
	rec.Record(context.Background(), Input{URL: "/properties/a"})
	rec.Record(context.Background(), Input{URL: "/properties/b"})

	assert.Equal(t, 1, logs.FilterMessage("Visit dropped").Len())
	close(release)
	rec.Wait()
	repo.AssertNumberOfCalls(t, "Save", 1)
}

func TestRecorder_SaveOutlivesRequestContext(t *testing.T) {
	repo := &storagemock.VisitRepoMock{}
	repo.On("Save", mock.MatchedBy(func(ctx context.Context) bool {
		_, hasDeadline := ctx.Deadline()
		return ctx.Err() == nil && hasDeadline
	}), mock.Anything).Return(nil).Once()

	ctx, cancel := context.WithCancel(context.Background())
	rec := newTestRecorder(t, repo, zap.NewNop(), 1)
	rec.Record(ctx, Input{URL: "/properties"})
	cancel()
	rec.Wait()

	repo.AssertExpectations(t)
}
