package scoring

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/notedrop/gamify/gamify/database/models"
	"github.com/notedrop/gamify/gamify/database/repositories"
)

var errStorage = errors.New("storage unavailable")

// fakeAnalytics models the analytics tables with in-memory atomic increments.
type fakeAnalytics struct {
	mu        sync.Mutex
	records   map[string]*models.AnalyticsRecord
	days      map[string]*models.ActivityDay
	snapshots map[string]*models.ActivitySnapshot
	referrers map[string]int64
	growth    map[string]*models.GrowthDay
	failAll   bool
}

func newFakeAnalytics() *fakeAnalytics {
	return &fakeAnalytics{
		records:   make(map[string]*models.AnalyticsRecord),
		days:      make(map[string]*models.ActivityDay),
		snapshots: make(map[string]*models.ActivitySnapshot),
		referrers: make(map[string]int64),
		growth:    make(map[string]*models.GrowthDay),
	}
}

func dayKey(userID string, day time.Time) string {
	return fmt.Sprintf("%s|%s", userID, day.Format("2006-01-02"))
}

func (f *fakeAnalytics) GetByUserID(_ context.Context, userID string) (*models.AnalyticsRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.records[userID]
	if !ok {
		return nil, errors.New("no rows")
	}
	cp := *rec
	return &cp, nil
}

func (f *fakeAnalytics) IncrementUpload(_ context.Context, userID string, fileType models.FileType, status models.FileStatus) error {
	if f.failAll {
		return errStorage
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.records[userID]
	if !ok {
		rec = &models.AnalyticsRecord{UserID: userID}
		f.records[userID] = rec
	}
	rec.TotalUploads++
	switch status {
	case models.FileStatusPending:
		rec.FilesPending++
	case models.FileStatusApproved:
		rec.FilesApproved++
	case models.FileStatusRejected:
		rec.FilesRejected++
	}
	switch fileType {
	case models.FileTypeImage:
		rec.FilesImage++
	case models.FileTypeRaw:
		rec.FilesRaw++
	}
	return nil
}

func (f *fakeAnalytics) IncrementAITask(_ context.Context, userID string) error {
	if f.failAll {
		return errStorage
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.records[userID]
	if !ok {
		rec = &models.AnalyticsRecord{UserID: userID}
		f.records[userID] = rec
	}
	rec.TotalAITasks++
	return nil
}

func (f *fakeAnalytics) IncrementReferral(_ context.Context, userID string) error {
	if f.failAll {
		return errStorage
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.records[userID]
	if !ok {
		rec = &models.AnalyticsRecord{UserID: userID}
		f.records[userID] = rec
	}
	rec.TotalReferrals++
	return nil
}

func (f *fakeAnalytics) IncrementDay(_ context.Context, userID string, day time.Time, uploads, aiTasks, referrals int64) error {
	if f.failAll {
		return errStorage
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	key := dayKey(userID, day)
	entry, ok := f.days[key]
	if !ok {
		entry = &models.ActivityDay{UserID: userID, Day: day}
		f.days[key] = entry
	}
	entry.Uploads += uploads
	entry.AITasks += aiTasks
	entry.Referrals += referrals
	return nil
}

func (f *fakeAnalytics) GetActivityDays(_ context.Context, userID string) ([]*models.ActivityDay, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var days []*models.ActivityDay
	for _, d := range f.days {
		if d.UserID == userID {
			cp := *d
			days = append(days, &cp)
		}
	}
	return days, nil
}

func (f *fakeAnalytics) IncrementSnapshot(_ context.Context, userID string, uploads, aiTasks int64) error {
	if f.failAll {
		return errStorage
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	snap, ok := f.snapshots[userID]
	if !ok {
		snap = &models.ActivitySnapshot{UserID: userID}
		f.snapshots[userID] = snap
	}
	snap.Uploads += uploads
	snap.AITasks += aiTasks
	return nil
}

func (f *fakeAnalytics) IncrementReferrerStat(_ context.Context, userID string) error {
	if f.failAll {
		return errStorage
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.referrers[userID]++
	return nil
}

func (f *fakeAnalytics) IncrementGrowth(_ context.Context, day time.Time, newUsers, newReferrals int64) error {
	if f.failAll {
		return errStorage
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	key := day.Format("2006-01-02")
	entry, ok := f.growth[key]
	if !ok {
		entry = &models.GrowthDay{Day: day}
		f.growth[key] = entry
	}
	entry.NewUsers += newUsers
	entry.NewReferrals += newReferrals
	return nil
}

func (f *fakeAnalytics) GetTopReferrers(context.Context, int) ([]*models.ReferrerStat, error) {
	return nil, nil
}

func (f *fakeAnalytics) GetGrowthRange(context.Context, time.Time, time.Time) ([]*models.GrowthDay, error) {
	return nil, nil
}

func (f *fakeAnalytics) GetTopByActivity(context.Context, int) ([]*models.ActivitySnapshot, error) {
	return nil, nil
}

// fakeScores models score_records rows with document-level atomicity.
type fakeScores struct {
	mu      sync.Mutex
	records map[string]*models.ScoreRecord
	failAll bool
}

func newFakeScores() *fakeScores {
	return &fakeScores{records: make(map[string]*models.ScoreRecord)}
}

func (f *fakeScores) getOrCreateLocked(userID string) *models.ScoreRecord {
	rec, ok := f.records[userID]
	if !ok {
		rec = &models.ScoreRecord{
			UserID:    userID,
			Badge:     models.BadgeNone,
			Active:    true,
			CreatedAt: time.Now(),
		}
		f.records[userID] = rec
	}
	return rec
}

func (f *fakeScores) GetByUserID(_ context.Context, userID string) (*models.ScoreRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.records[userID]
	if !ok {
		return nil, errors.New("no rows")
	}
	cp := *rec
	return &cp, nil
}

func (f *fakeScores) ApplyUploadDelta(_ context.Context, userID string, points int64) (*models.ScoreRecord, error) {
	if f.failAll {
		return nil, errStorage
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	rec := f.getOrCreateLocked(userID)
	rec.Points += points
	rec.UploadCount++
	rec.LastActivityAt = time.Now()
	cp := *rec
	return &cp, nil
}

func (f *fakeScores) ApplyReferralDelta(_ context.Context, userID string, points int64) (*models.ScoreRecord, error) {
	if f.failAll {
		return nil, errStorage
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	rec := f.getOrCreateLocked(userID)
	rec.Points += points
	rec.ReferralCount++
	rec.LastActivityAt = time.Now()
	cp := *rec
	return &cp, nil
}

func (f *fakeScores) TouchActivity(_ context.Context, userID string) error {
	if f.failAll {
		return errStorage
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getOrCreateLocked(userID).LastActivityAt = time.Now()
	return nil
}

func (f *fakeScores) SetBadge(_ context.Context, userID string, badge models.Badge) error {
	if f.failAll {
		return errStorage
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getOrCreateLocked(userID).Badge = badge
	return nil
}

func (f *fakeScores) OverwriteCounts(_ context.Context, userID string, counts repositories.SourceCounts) (*models.ScoreRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec := f.getOrCreateLocked(userID)
	rec.UploadCount = counts.ApprovedFiles
	rec.ReferralCount = counts.Referrals
	rec.TotalDownloads = counts.TotalDownloads
	rec.TotalViews = counts.TotalViews
	cp := *rec
	return &cp, nil
}

func (f *fakeScores) GetActiveOrdered(context.Context) ([]*models.ScoreRecord, error) {
	return nil, nil
}

func (f *fakeScores) UpdateRanks(context.Context, []repositories.RankAssignment) error {
	return nil
}

func (f *fakeScores) GetPage(context.Context, int, int) ([]*models.ScoreRecord, error) {
	return nil, nil
}

func (f *fakeScores) GetTopN(context.Context, int) ([]*models.ScoreRecord, error) {
	return nil, nil
}

func (f *fakeScores) GetActiveUserIDs(context.Context) ([]string, error) {
	return nil, nil
}

func (f *fakeScores) Deactivate(context.Context, string) error {
	return nil
}

func TestAggregatorApprovedUploadCreatesRecords(t *testing.T) {
	analytics := newFakeAnalytics()
	scores := newFakeScores()
	agg := NewAggregator(analytics, scores)

	err := agg.Apply(context.Background(), UploadRecorded{
		UserID:   "u1",
		FileType: models.FileTypeRaw,
		Status:   models.FileStatusApproved,
	})
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}

	rec := analytics.records["u1"]
	if rec == nil {
		t.Fatal("analytics record not created")
	}
	if rec.TotalUploads != 1 || rec.FilesApproved != 1 || rec.FilesRaw != 1 {
		t.Errorf("analytics = uploads:%d approved:%d raw:%d, want 1/1/1",
			rec.TotalUploads, rec.FilesApproved, rec.FilesRaw)
	}

	day := analytics.days[dayKey("u1", today())]
	if day == nil || day.Uploads != 1 {
		t.Errorf("today's ledger entry = %+v, want uploads:1", day)
	}

	score := scores.records["u1"]
	if score == nil {
		t.Fatal("score record not created")
	}
	if score.UploadCount != 1 {
		t.Errorf("upload count = %d, want 1", score.UploadCount)
	}
	if score.Points != PointsPerUpload {
		t.Errorf("points = %d, want %d", score.Points, PointsPerUpload)
	}
	if score.Badge != models.BadgeNone {
		t.Errorf("badge = %v, want none below bronze threshold", score.Badge)
	}
}

func TestAggregatorNonApprovedUploadDoesNotScore(t *testing.T) {
	tests := []struct {
		name   string
		status models.FileStatus
	}{
		{name: "pending", status: models.FileStatusPending},
		{name: "rejected", status: models.FileStatusRejected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			analytics := newFakeAnalytics()
			scores := newFakeScores()
			agg := NewAggregator(analytics, scores)

			err := agg.Apply(context.Background(), UploadRecorded{
				UserID:   "u1",
				FileType: models.FileTypeImage,
				Status:   tt.status,
			})
			if err != nil {
				t.Fatalf("Apply() error = %v", err)
			}

			if analytics.records["u1"].TotalUploads != 1 {
				t.Error("analytics upload total not incremented")
			}
			if len(scores.records) != 0 {
				t.Errorf("score record created for %s upload", tt.status)
			}
		})
	}
}

func TestAggregatorAITask(t *testing.T) {
	analytics := newFakeAnalytics()
	scores := newFakeScores()
	agg := NewAggregator(analytics, scores)

	if err := agg.Apply(context.Background(), AITaskRecorded{UserID: "u1"}); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}

	if analytics.records["u1"].TotalAITasks != 1 {
		t.Error("ai task total not incremented")
	}
	day := analytics.days[dayKey("u1", today())]
	if day == nil || day.AITasks != 1 {
		t.Errorf("today's ledger entry = %+v, want ai_tasks:1", day)
	}
	if analytics.snapshots["u1"].AITasks != 1 {
		t.Error("snapshot ai task count not incremented")
	}

	score := scores.records["u1"]
	if score == nil {
		t.Fatal("ai task must touch the score record's activity")
	}
	if score.Points != 0 || score.Badge != models.BadgeNone {
		t.Errorf("score = points:%d badge:%v, ai tasks must not award points", score.Points, score.Badge)
	}
	if score.LastActivityAt.IsZero() {
		t.Error("last activity not touched")
	}
}

func TestAggregatorReferral(t *testing.T) {
	analytics := newFakeAnalytics()
	scores := newFakeScores()
	agg := NewAggregator(analytics, scores)

	err := agg.Apply(context.Background(), ReferralRecorded{
		ReferrerID:     "u1",
		ReferredUserID: "u2",
	})
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}

	if analytics.records["u1"].TotalReferrals != 1 {
		t.Error("referral total not incremented")
	}
	if analytics.referrers["u1"] != 1 {
		t.Error("referrer stat not incremented")
	}
	growth := analytics.growth[today().Format("2006-01-02")]
	if growth == nil || growth.NewUsers != 1 || growth.NewReferrals != 1 {
		t.Errorf("growth ledger = %+v, want new_users:1 new_referrals:1", growth)
	}

	score := scores.records["u1"]
	if score == nil || score.ReferralCount != 1 {
		t.Fatalf("score record = %+v, want referral count 1", score)
	}
	if score.Points != PointsPerReferral {
		t.Errorf("points = %d, want %d", score.Points, PointsPerReferral)
	}
}

func TestAggregatorBadgePromotion(t *testing.T) {
	analytics := newFakeAnalytics()
	scores := newFakeScores()
	scores.records["u1"] = &models.ScoreRecord{
		UserID: "u1",
		Points: BronzeThreshold - PointsPerUpload,
		Badge:  models.BadgeNone,
		Active: true,
	}
	agg := NewAggregator(analytics, scores)

	err := agg.Apply(context.Background(), UploadRecorded{
		UserID:   "u1",
		FileType: models.FileTypeRaw,
		Status:   models.FileStatusApproved,
	})
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}

	if got := scores.records["u1"].Badge; got != models.BadgeBronze {
		t.Errorf("badge = %v, want bronze after crossing threshold", got)
	}
}

func TestAggregatorConcurrentUploads(t *testing.T) {
	const n = 50

	analytics := newFakeAnalytics()
	scores := newFakeScores()
	agg := NewAggregator(analytics, scores)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := agg.Apply(context.Background(), UploadRecorded{
				UserID:   "u1",
				FileType: models.FileTypeRaw,
				Status:   models.FileStatusApproved,
			})
			if err != nil {
				t.Errorf("Apply() error = %v", err)
			}
		}()
	}
	wg.Wait()

	if got := scores.records["u1"].UploadCount; got != n {
		t.Errorf("upload count after %d concurrent events = %d, want %d (lost updates)", n, got, n)
	}
	if got := analytics.records["u1"].TotalUploads; got != n {
		t.Errorf("analytics upload total = %d, want %d", got, n)
	}
	if got := analytics.days[dayKey("u1", today())].Uploads; got != n {
		t.Errorf("daily ledger uploads = %d, want %d", got, n)
	}
}

func TestAggregatorRejectsMalformedEvents(t *testing.T) {
	analytics := newFakeAnalytics()
	scores := newFakeScores()
	agg := NewAggregator(analytics, scores)

	tests := []struct {
		name  string
		event Event
	}{
		{name: "nil event", event: nil},
		{name: "missing user", event: UploadRecorded{FileType: models.FileTypeRaw, Status: models.FileStatusApproved}},
		{name: "self referral", event: ReferralRecorded{ReferrerID: "u1", ReferredUserID: "u1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := agg.Apply(context.Background(), tt.event)
			if !errors.Is(err, ErrInvalidEvent) {
				t.Errorf("Apply() error = %v, want ErrInvalidEvent", err)
			}
		})
	}

	if len(analytics.records) != 0 || len(scores.records) != 0 {
		t.Error("malformed events must not write anything")
	}
}

func TestAggregatorScoreFailureLeavesAnalyticsIntact(t *testing.T) {
	analytics := newFakeAnalytics()
	scores := newFakeScores()
	scores.failAll = true
	agg := NewAggregator(analytics, scores)

	err := agg.Apply(context.Background(), UploadRecorded{
		UserID:   "u1",
		FileType: models.FileTypeRaw,
		Status:   models.FileStatusApproved,
	})
	if !errors.Is(err, errStorage) {
		t.Fatalf("Apply() error = %v, want surfaced storage failure", err)
	}

	// The analytics side already committed; reconciliation bounds the drift.
	if analytics.records["u1"] == nil || analytics.records["u1"].TotalUploads != 1 {
		t.Error("analytics increments should stand when the score write fails")
	}
	if len(scores.records) != 0 {
		t.Error("score record must not be half-written")
	}
}
