package file

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"file-hub/internal/config"
	"file-hub/internal/utils/platformerrors"
)

// fakeRepo is an in-memory Repository with the same ownership semantics as
// the SQL implementation: one owner per content hash, duplicates promoted
// oldest first when their owner is deleted.
type fakeRepo struct {
	records map[string]*FileRecord
	seq     int64

	failCreate error
	// createHook runs before each Create, letting tests interleave a
	// concurrent writer between hash lookup and insert.
	createHook func()
	// getHook runs after a GetByID read is taken, letting tests
	// interleave a concurrent mutation between a record load and the
	// delete transaction that follows it.
	getHook func()
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{records: map[string]*FileRecord{}}
}

func (r *fakeRepo) GetByID(ctx context.Context, id string) (*FileRecord, error) {
	rec, ok := r.records[id]
	if !ok {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerRepository,
			platformerrors.ErrorTypeNotFound, "file not found", nil, "file-get-notfound-001")
	}
	copied := *rec
	if r.getHook != nil {
		hook := r.getHook
		r.getHook = nil
		hook()
	}
	return &copied, nil
}

func (r *fakeRepo) FindOwnerByHash(ctx context.Context, hash string) (*FileRecord, error) {
	for _, rec := range r.records {
		if rec.ContentHash == hash && !rec.IsDuplicate {
			copied := *rec
			return &copied, nil
		}
	}
	return nil, nil
}

func (r *fakeRepo) Create(ctx context.Context, record *FileRecord) error {
	if r.createHook != nil {
		hook := r.createHook
		r.createHook = nil
		hook()
	}
	if r.failCreate != nil {
		return r.failCreate
	}
	if !record.IsDuplicate {
		for _, rec := range r.records {
			if rec.ContentHash == record.ContentHash && !rec.IsDuplicate {
				return platformerrors.NewError(ctx, platformerrors.LayerRepository,
					platformerrors.ErrorTypeConflict, "content hash already owned", nil,
					"file-create-conflict-001")
			}
		}
	}
	r.seq++
	record.CreatedAt = time.Unix(r.seq, 0).UTC()
	copied := *record
	r.records[record.ID] = &copied
	return nil
}

func (r *fakeRepo) DeleteWithPromotion(ctx context.Context, target *FileRecord) (int64, error) {
	stored, ok := r.records[target.ID]
	if !ok {
		return 0, platformerrors.NewError(ctx, platformerrors.LayerRepository,
			platformerrors.ErrorTypeNotFound, "file not found", nil, "file-delete-notfound-001")
	}
	delete(r.records, target.ID)

	if !stored.IsDuplicate {
		var successor *FileRecord
		for _, rec := range r.records {
			if rec.OwnerRef == nil || *rec.OwnerRef != stored.ID {
				continue
			}
			if successor == nil ||
				rec.CreatedAt.Before(successor.CreatedAt) ||
				(rec.CreatedAt.Equal(successor.CreatedAt) && rec.ID < successor.ID) {
				successor = rec
			}
		}
		if successor != nil {
			for _, rec := range r.records {
				if rec.ID != successor.ID && rec.OwnerRef != nil && *rec.OwnerRef == stored.ID {
					ref := successor.ID
					rec.OwnerRef = &ref
				}
			}
			successor.IsDuplicate = false
			successor.OwnerRef = nil
		}
	}

	var remaining int64
	for _, rec := range r.records {
		if rec.ContentHash == stored.ContentHash {
			remaining++
		}
	}
	return remaining, nil
}

func (r *fakeRepo) List(ctx context.Context, filter ListFilter, page, pageSize int, ordering string) (*RecordPage, error) {
	records := make([]FileRecord, 0, len(r.records))
	for _, rec := range r.records {
		records = append(records, *rec)
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})
	return &RecordPage{
		Records:  records,
		Total:    int64(len(records)),
		Page:     page,
		PageSize: pageSize,
	}, nil
}

func (r *fakeRepo) ListDuplicateOwners(ctx context.Context) ([]FileRecord, error) {
	owners := map[string]struct{}{}
	for _, rec := range r.records {
		if rec.OwnerRef != nil {
			owners[*rec.OwnerRef] = struct{}{}
		}
	}
	result := make([]FileRecord, 0, len(owners))
	for id := range owners {
		if rec, ok := r.records[id]; ok {
			result = append(result, *rec)
		}
	}
	return result, nil
}

func (r *fakeRepo) Aggregate(ctx context.Context, topN int) (*RawStats, error) {
	raw := &RawStats{DuplicateGroups: map[string]int64{}}
	for _, rec := range r.records {
		raw.TotalFiles++
		raw.TotalBytes += rec.Size
		if rec.IsDuplicate {
			raw.DuplicateFiles++
			raw.DuplicateGroups[*rec.OwnerRef]++
		} else {
			raw.OwnerBytes += rec.Size
		}
	}
	for ownerID, count := range raw.DuplicateGroups {
		if owner, ok := r.records[ownerID]; ok {
			raw.TopDuplicated = append(raw.TopDuplicated, OwnerDuplicates{
				Record:         *owner,
				DuplicateCount: count,
			})
		}
	}
	sort.Slice(raw.TopDuplicated, func(i, j int) bool {
		a, b := raw.TopDuplicated[i], raw.TopDuplicated[j]
		if a.DuplicateCount != b.DuplicateCount {
			return a.DuplicateCount > b.DuplicateCount
		}
		return a.Record.ID < b.Record.ID
	})
	if len(raw.TopDuplicated) > topN {
		raw.TopDuplicated = raw.TopDuplicated[:topN]
	}
	return raw, nil
}

// fakeBlobs stores payloads in memory keyed by content hash.
type fakeBlobs struct {
	payloads map[string][]byte
	puts     int
	failGet  bool
}

func newFakeBlobs() *fakeBlobs {
	return &fakeBlobs{payloads: map[string][]byte{}}
}

func (b *fakeBlobs) Put(ctx context.Context, hash string, body io.Reader, size int64, mediaType string) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	b.payloads[hash] = data
	b.puts++
	return nil
}

func (b *fakeBlobs) Get(ctx context.Context, hash string) (io.ReadCloser, string, error) {
	if b.failGet {
		return nil, "", errors.New("backend unavailable")
	}
	data, ok := b.payloads[hash]
	if !ok {
		return nil, "", errors.New("payload not found")
	}
	return io.NopCloser(bytes.NewReader(data)), "application/octet-stream", nil
}

func (b *fakeBlobs) Delete(ctx context.Context, hash string) error {
	delete(b.payloads, hash)
	return nil
}

// fakeCache is a map-backed CacheClient with optional failure injection.
type fakeCache struct {
	values      map[string]string
	failing     bool
	sets        int
	gets        int
	invalidates int
}

func newFakeCache() *fakeCache {
	return &fakeCache{values: map[string]string{}}
}

func (c *fakeCache) Get(ctx context.Context, key string) (string, error) {
	c.gets++
	if c.failing {
		return "", errors.New("cache unavailable")
	}
	value, ok := c.values[key]
	if !ok {
		return "", ErrCacheMiss
	}
	return value, nil
}

func (c *fakeCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	c.sets++
	if c.failing {
		return errors.New("cache unavailable")
	}
	c.values[key] = value
	return nil
}

func (c *fakeCache) DeletePattern(ctx context.Context, pattern string) error {
	c.invalidates++
	if c.failing {
		return errors.New("cache unavailable")
	}
	prefix := strings.TrimSuffix(pattern, "*")
	for key := range c.values {
		if strings.HasPrefix(key, prefix) {
			delete(c.values, key)
		}
	}
	return nil
}

func testConfig() *config.Config {
	return &config.Config{
		MaxFileBytes:       1 << 20,
		DefaultPageSize:    20,
		MaxPageSize:        100,
		ListCacheTTL:       5 * time.Minute,
		StatsCacheTTL:      time.Minute,
		StatsTopDuplicated: 10,
	}
}

type testEnv struct {
	service *Service
	repo    *fakeRepo
	blobs   *fakeBlobs
	cache   *fakeCache
}

func newTestEnv() *testEnv {
	repo := newFakeRepo()
	blobs := newFakeBlobs()
	cache := newFakeCache()
	service := NewService(testConfig(), repo, blobs, cache, zerolog.Nop())
	return &testEnv{service: service, repo: repo, blobs: blobs, cache: cache}
}

func TestUploadNewContentBecomesOwner(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	record, duplicated, err := env.service.Upload(ctx, []byte("hello world"), "greeting.txt", "text/plain")
	require.NoError(t, err)
	assert.False(t, duplicated)
	assert.False(t, record.IsDuplicate)
	assert.Nil(t, record.OwnerRef)
	assert.Equal(t, HashContent([]byte("hello world")), record.ContentHash)
	assert.Equal(t, int64(11), record.Size)

	assert.Contains(t, env.blobs.payloads, record.ContentHash)
}

func TestUploadSameContentIsDeduplicated(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	content := []byte("shared payload")

	owner, _, err := env.service.Upload(ctx, content, "first.bin", "application/pdf")
	require.NoError(t, err)

	dup, duplicated, err := env.service.Upload(ctx, content, "second.bin", "application/pdf")
	require.NoError(t, err)
	assert.True(t, duplicated)
	assert.True(t, dup.IsDuplicate)
	require.NotNil(t, dup.OwnerRef)
	assert.Equal(t, owner.ID, *dup.OwnerRef)
	assert.Equal(t, owner.ContentHash, dup.ContentHash)

	// Identical metadata on the second upload must not bypass dedup, and
	// only one payload may exist for the group.
	assert.Equal(t, 1, env.blobs.puts)
	assert.Len(t, env.blobs.payloads, 1)
}

func TestUploadDifferentContentSameNameNotDeduplicated(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	first, _, err := env.service.Upload(ctx, []byte("version one"), "report.txt", "text/plain")
	require.NoError(t, err)
	second, duplicated, err := env.service.Upload(ctx, []byte("version two"), "report.txt", "text/plain")
	require.NoError(t, err)

	assert.False(t, duplicated)
	assert.False(t, second.IsDuplicate)
	assert.NotEqual(t, first.ContentHash, second.ContentHash)
	assert.Len(t, env.blobs.payloads, 2)
}

func TestUploadRejectsEmptyAndOversized(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	_, _, err := env.service.Upload(ctx, nil, "empty.txt", "text/plain")
	assert.True(t, platformerrors.IsType(err, platformerrors.ErrorTypeValidation))

	huge := bytes.Repeat([]byte("x"), int(env.service.cfg.MaxFileBytes)+1)
	_, _, err = env.service.Upload(ctx, huge, "huge.bin", "application/octet-stream")
	assert.True(t, platformerrors.IsType(err, platformerrors.ErrorTypeValidation))

	assert.Empty(t, env.repo.records)
	assert.Empty(t, env.blobs.payloads)
}

func TestUploadDetectsMediaTypeWhenMissing(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	record, _, err := env.service.Upload(ctx, []byte("%PDF-1.4 fake document"), "doc.pdf", "")
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", record.MediaType)
}

func TestUploadConflictRetriesAsDuplicate(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	content := []byte("raced payload")
	hash := HashContent(content)

	// A concurrent request inserts the owner between this request's hash
	// lookup and its own insert; the conflict must resolve to a duplicate
	// of the winner, not an error.
	var winnerID string
	env.repo.createHook = func() {
		winner := &FileRecord{
			ID:          "file_winner",
			ContentHash: hash,
			Size:        int64(len(content)),
		}
		require.NoError(t, env.repo.Create(ctx, winner))
		winnerID = winner.ID
	}

	record, duplicated, err := env.service.Upload(ctx, content, "raced.txt", "text/plain")
	require.NoError(t, err)
	assert.True(t, duplicated)
	require.NotNil(t, record.OwnerRef)
	assert.Equal(t, winnerID, *record.OwnerRef)
}

func TestDeleteOwnerPromotesOldestDuplicate(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	content := []byte("promoted payload")

	owner, _, err := env.service.Upload(ctx, content, "owner.txt", "text/plain")
	require.NoError(t, err)
	first, _, err := env.service.Upload(ctx, content, "dup-first.txt", "text/plain")
	require.NoError(t, err)
	second, _, err := env.service.Upload(ctx, content, "dup-second.txt", "text/plain")
	require.NoError(t, err)

	require.NoError(t, env.service.Delete(ctx, owner.ID))

	promoted := env.repo.records[first.ID]
	require.NotNil(t, promoted)
	assert.False(t, promoted.IsDuplicate)
	assert.Nil(t, promoted.OwnerRef)

	remaining := env.repo.records[second.ID]
	require.NotNil(t, remaining)
	assert.True(t, remaining.IsDuplicate)
	require.NotNil(t, remaining.OwnerRef)
	assert.Equal(t, first.ID, *remaining.OwnerRef)

	// Payload survives: the group is not empty.
	assert.Contains(t, env.blobs.payloads, owner.ContentHash)
}

func TestDeletePromotedRecordStillTransfersOwnership(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	content := []byte("contended payload")

	owner, _, err := env.service.Upload(ctx, content, "owner.txt", "text/plain")
	require.NoError(t, err)
	first, _, err := env.service.Upload(ctx, content, "dup-first.txt", "text/plain")
	require.NoError(t, err)
	second, _, err := env.service.Upload(ctx, content, "dup-second.txt", "text/plain")
	require.NoError(t, err)

	// A concurrent request deletes the owner after this request has
	// loaded the first duplicate but before its delete transaction
	// starts. That promotes the loaded record, so its duplicate flag in
	// this request's snapshot is stale; the delete must still transfer
	// ownership based on the row's current state.
	env.repo.getHook = func() {
		require.NoError(t, env.service.Delete(ctx, owner.ID))
	}

	require.NoError(t, env.service.Delete(ctx, first.ID))

	promoted := env.repo.records[second.ID]
	require.NotNil(t, promoted)
	assert.False(t, promoted.IsDuplicate)
	assert.Nil(t, promoted.OwnerRef)

	owners := 0
	for _, rec := range env.repo.records {
		require.False(t, rec.OwnerRef != nil && *rec.OwnerRef == first.ID,
			"owner_ref must not dangle at a deleted record")
		if rec.ContentHash == owner.ContentHash && !rec.IsDuplicate {
			owners++
		}
	}
	assert.Equal(t, 1, owners, "group must keep exactly one owner")
	assert.Contains(t, env.blobs.payloads, owner.ContentHash)
}

func TestDeleteLastMemberReleasesPayload(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	record, _, err := env.service.Upload(ctx, []byte("solo payload"), "solo.txt", "text/plain")
	require.NoError(t, err)
	require.NoError(t, env.service.Delete(ctx, record.ID))

	assert.Empty(t, env.repo.records)
	assert.NotContains(t, env.blobs.payloads, record.ContentHash)

	err = env.service.Delete(ctx, record.ID)
	assert.True(t, platformerrors.IsType(err, platformerrors.ErrorTypeNotFound))
}

func TestDeleteDuplicateKeepsPayloadAndOwner(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	content := []byte("kept payload")

	owner, _, err := env.service.Upload(ctx, content, "owner.txt", "text/plain")
	require.NoError(t, err)
	dup, _, err := env.service.Upload(ctx, content, "dup.txt", "text/plain")
	require.NoError(t, err)

	require.NoError(t, env.service.Delete(ctx, dup.ID))

	kept := env.repo.records[owner.ID]
	require.NotNil(t, kept)
	assert.False(t, kept.IsDuplicate)
	assert.Contains(t, env.blobs.payloads, owner.ContentHash)
}

func TestDownloadDuplicateServesOwnerPayload(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	content := []byte("downloadable payload")

	_, _, err := env.service.Upload(ctx, content, "owner.txt", "text/plain")
	require.NoError(t, err)
	dup, _, err := env.service.Upload(ctx, content, "dup.txt", "text/plain")
	require.NoError(t, err)

	reader, record, err := env.service.Download(ctx, dup.ID)
	require.NoError(t, err)
	defer reader.Close()

	data, err := io.ReadAll(reader)
	require.NoError(t, err)
	assert.Equal(t, content, data)
	assert.Equal(t, "dup.txt", record.OriginalFilename)
}

func TestDownloadMissingBlobIsNotFound(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	record, _, err := env.service.Upload(ctx, []byte("vanishing payload"), "gone.txt", "text/plain")
	require.NoError(t, err)
	env.blobs.failGet = true

	_, _, err = env.service.Download(ctx, record.ID)
	assert.True(t, platformerrors.IsType(err, platformerrors.ErrorTypeNotFound))
}

func TestListServesSecondIdenticalQueryFromCache(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	_, _, err := env.service.Upload(ctx, []byte("list payload"), "listed.txt", "text/plain")
	require.NoError(t, err)

	page, cached, err := env.service.List(ctx, ListFilter{}, 1, 20, DefaultOrdering)
	require.NoError(t, err)
	assert.False(t, cached)
	assert.Equal(t, int64(1), page.Total)

	again, cached, err := env.service.List(ctx, ListFilter{}, 1, 20, DefaultOrdering)
	require.NoError(t, err)
	assert.True(t, cached)
	assert.Equal(t, page.Total, again.Total)
	assert.Equal(t, page.Records[0].ID, again.Records[0].ID)
}

func TestListCacheInvalidatedByUploadAndDelete(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	first, _, err := env.service.Upload(ctx, []byte("first payload"), "one.txt", "text/plain")
	require.NoError(t, err)

	page, _, err := env.service.List(ctx, ListFilter{}, 1, 20, DefaultOrdering)
	require.NoError(t, err)
	assert.Equal(t, int64(1), page.Total)

	_, _, err = env.service.Upload(ctx, []byte("second payload"), "two.txt", "text/plain")
	require.NoError(t, err)

	page, cached, err := env.service.List(ctx, ListFilter{}, 1, 20, DefaultOrdering)
	require.NoError(t, err)
	assert.False(t, cached, "upload must invalidate cached listings")
	assert.Equal(t, int64(2), page.Total)

	require.NoError(t, env.service.Delete(ctx, first.ID))

	page, cached, err = env.service.List(ctx, ListFilter{}, 1, 20, DefaultOrdering)
	require.NoError(t, err)
	assert.False(t, cached, "delete must invalidate cached listings")
	assert.Equal(t, int64(1), page.Total)
}

func TestListNormalizesPagination(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	page, _, err := env.service.List(ctx, ListFilter{}, 0, 0, "nonsense")
	require.NoError(t, err)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, 20, page.PageSize)

	page, _, err = env.service.List(ctx, ListFilter{}, 1, 10_000, DefaultOrdering)
	require.NoError(t, err)
	assert.Equal(t, 100, page.PageSize)
}

func TestServiceSurvivesCacheOutage(t *testing.T) {
	env := newTestEnv()
	env.cache.failing = true
	ctx := context.Background()

	record, _, err := env.service.Upload(ctx, []byte("resilient payload"), "up.txt", "text/plain")
	require.NoError(t, err)

	page, cached, err := env.service.List(ctx, ListFilter{}, 1, 20, DefaultOrdering)
	require.NoError(t, err)
	assert.False(t, cached)
	assert.Equal(t, int64(1), page.Total)

	_, cached, err = env.service.Stats(ctx)
	require.NoError(t, err)
	assert.False(t, cached)

	require.NoError(t, env.service.Delete(ctx, record.ID))
}

func TestStatsCachedAndNotInvalidatedByWrites(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	_, _, err := env.service.Upload(ctx, []byte("stats payload"), "one.txt", "text/plain")
	require.NoError(t, err)

	stats, cached, err := env.service.Stats(ctx)
	require.NoError(t, err)
	assert.False(t, cached)
	assert.Equal(t, int64(1), stats.TotalFiles)

	_, _, err = env.service.Upload(ctx, []byte("another payload"), "two.txt", "text/plain")
	require.NoError(t, err)

	// The stats key has its own TTL and is served stale until expiry.
	stale, cached, err := env.service.Stats(ctx)
	require.NoError(t, err)
	assert.True(t, cached)
	assert.Equal(t, int64(1), stale.TotalFiles)
}

func TestListDuplicateOwners(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	content := []byte("owned payload")

	owner, _, err := env.service.Upload(ctx, content, "owner.txt", "text/plain")
	require.NoError(t, err)
	_, _, err = env.service.Upload(ctx, content, "dup.txt", "text/plain")
	require.NoError(t, err)
	_, _, err = env.service.Upload(ctx, []byte("lonely payload"), "solo.txt", "text/plain")
	require.NoError(t, err)

	owners, err := env.service.ListDuplicateOwners(ctx)
	require.NoError(t, err)
	require.Len(t, owners, 1)
	assert.Equal(t, owner.ID, owners[0].ID)
}

func TestHashContentIsStable(t *testing.T) {
	data := []byte("stable input")
	first := HashContent(data)
	second := HashContent(data)
	assert.Equal(t, first, second)
	assert.Len(t, first, 64)
	assert.NotEqual(t, first, HashContent([]byte("other input")))
}

func TestUploadManyDistinctPayloads(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	for i := 0; i < 25; i++ {
		_, duplicated, err := env.service.Upload(ctx,
			[]byte(fmt.Sprintf("payload %d", i)), fmt.Sprintf("f%d.txt", i), "text/plain")
		require.NoError(t, err)
		assert.False(t, duplicated)
	}
	assert.Len(t, env.repo.records, 25)
	assert.Len(t, env.blobs.payloads, 25)
}
