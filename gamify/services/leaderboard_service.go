package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"github.com/notedrop/gamify/gamify/database/models"
	"github.com/notedrop/gamify/gamify/database/repositories"
	"github.com/sahilm/fuzzy"
)

const (
	pageCacheSize   = 128
	defaultPageSize = 25
	maxPageSize     = 100
	searchPoolSize  = 500
)

// LeaderboardService serves the ranked read paths. Pages are cached with a
// short TTL; rank only moves on scheduled passes, so slightly stale pages are
// within the consistency contract.
type LeaderboardService struct {
	scores      repositories.ScoreRepository
	users       repositories.UserRepository
	cache       *lru.Cache
	cacheExpiry time.Duration
}

type cachedPage struct {
	records   []*models.ScoreRecord
	timestamp time.Time
}

// LeaderboardEntry is a score record joined with its display name.
type LeaderboardEntry struct {
	*models.ScoreRecord
	Username string
}

func NewLeaderboardService(scores repositories.ScoreRepository, users repositories.UserRepository, cacheExpiry time.Duration) *LeaderboardService {
	cache, _ := lru.New(pageCacheSize)
	return &LeaderboardService{
		scores:      scores,
		users:       users,
		cache:       cache,
		cacheExpiry: cacheExpiry,
	}
}

func (s *LeaderboardService) GetUserScore(ctx context.Context, userID string) (*models.ScoreRecord, error) {
	return s.scores.GetByUserID(ctx, userID)
}

// GetLeaderboardPage returns active ranked records ordered by current rank.
func (s *LeaderboardService) GetLeaderboardPage(ctx context.Context, offset, limit int) ([]*models.ScoreRecord, error) {
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}

	key := fmt.Sprintf("page:%d:%d", offset, limit)
	if cached, ok := s.cache.Get(key); ok {
		entry := cached.(cachedPage)
		if time.Since(entry.timestamp) < s.cacheExpiry {
			return entry.records, nil
		}
		s.cache.Remove(key)
	}

	records, err := s.scores.GetPage(ctx, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load leaderboard page: %w", err)
	}

	s.cache.Add(key, cachedPage{records: records, timestamp: time.Now()})
	return records, nil
}

// GetTopN returns the top n ranked records. n shares the page size cap of
// GetLeaderboardPage; anything larger is clamped to that limit.
func (s *LeaderboardService) GetTopN(ctx context.Context, n int) ([]*models.ScoreRecord, error) {
	return s.GetLeaderboardPage(ctx, 0, n)
}

// Invalidate drops all cached pages. Called after each rank pass.
func (s *LeaderboardService) Invalidate() {
	s.cache.Purge()
}

// leaderboardNames implements fuzzy.Source over display names.
type leaderboardNames []LeaderboardEntry

func (l leaderboardNames) String(i int) string { return l[i].Username }
func (l leaderboardNames) Len() int            { return len(l) }

// SearchLeaderboard fuzzy-matches usernames among the top ranked users and
// returns matches in match-quality order.
func (s *LeaderboardService) SearchLeaderboard(ctx context.Context, query string) ([]LeaderboardEntry, error) {
	query = strings.TrimSpace(strings.ToLower(query))
	if query == "" {
		return nil, nil
	}

	records, err := s.scores.GetPage(ctx, 0, searchPoolSize)
	if err != nil {
		return nil, fmt.Errorf("failed to load search pool: %w", err)
	}
	ids := make([]string, len(records))
	for i, rec := range records {
		ids[i] = rec.UserID
	}
	names, err := s.users.GetUsernames(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve usernames: %w", err)
	}

	pool := make(leaderboardNames, len(records))
	for i, rec := range records {
		pool[i] = LeaderboardEntry{ScoreRecord: rec, Username: names[rec.UserID]}
	}

	matches := fuzzy.FindFrom(query, pool)
	results := make([]LeaderboardEntry, len(matches))
	for i, m := range matches {
		results[i] = pool[m.Index]
	}
	return results, nil
}
