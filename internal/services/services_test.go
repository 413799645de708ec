package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"contesthub/internal/config"
	"contesthub/internal/models"
	"contesthub/internal/store/memory"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	userA uint = 1
	userB uint = 2
	subS1 uint = 100
	subS2 uint = 200
)

var testLimits = config.LimitsConfig{DefaultPageSize: 10, MaxPageSize: 50, MaxContentLength: 20}

func newMemory(t *testing.T) *memory.Store {
	t.Helper()
	m := memory.New()
	m.AddSubmission(models.Submission{ID: subS1, CompetitionID: 1, UserID: 9, Title: "S1"})
	m.AddSubmission(models.Submission{ID: subS2, CompetitionID: 1, UserID: 9, Title: "S2"})
	return m
}

func newComments(t *testing.T, m *memory.Store, cache *PageCache) *CommentStore {
	t.Helper()
	return NewCommentStore(m, m, testLimits, cache, nil)
}

// failingRepo 所有方法都返回 err，用来验证存储错误被映射成 ErrInternal。
type failingRepo struct{ err error }

func (f failingRepo) SubmissionExists(context.Context, uint) (bool, error) { return false, f.err }
func (f failingRepo) CreateVote(context.Context, *models.Vote) error       { return f.err }
func (f failingRepo) DeleteVote(context.Context, uint, uint) error         { return f.err }
func (f failingRepo) CountVotes(context.Context, uint) (int64, error)      { return 0, f.err }
func (f failingRepo) HasVoted(context.Context, uint, uint) (bool, error)   { return false, f.err }

// ---------- VoteLedger ----------

func TestVoteLedger_CastCancelScenario(t *testing.T) {
	ctx := context.Background()
	m := newMemory(t)
	l := NewVoteLedger(m, m, nil)

	sum, err := l.Cast(ctx, subS1, userA)
	require.NoError(t, err)
	assert.Equal(t, models.VoteSummary{Voted: true, Count: 1}, sum)

	n, err := l.Count(ctx, subS1)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	voted, err := l.Status(ctx, subS1, userA)
	require.NoError(t, err)
	assert.True(t, voted)

	_, err = l.Cast(ctx, subS1, userA)
	require.ErrorIs(t, err, ErrConflict)

	n, err = l.Count(ctx, subS1)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n, "repeat cast must not change the count")

	sum, err = l.Cancel(ctx, subS1, userA)
	require.NoError(t, err)
	assert.Equal(t, models.VoteSummary{Voted: false, Count: 0}, sum)

	voted, err = l.Status(ctx, subS1, userA)
	require.NoError(t, err)
	assert.False(t, voted)

	_, err = l.Cancel(ctx, subS1, userA)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestVoteLedger_CountsAreIndependentPerSubmission(t *testing.T) {
	ctx := context.Background()
	m := newMemory(t)
	l := NewVoteLedger(m, m, nil)

	_, err := l.Cast(ctx, subS1, userA)
	require.NoError(t, err)
	sum, err := l.Cast(ctx, subS1, userB)
	require.NoError(t, err)
	assert.EqualValues(t, 2, sum.Count)

	n, err := l.Count(ctx, subS2)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestVoteLedger_ConcurrentCastYieldsOneVote(t *testing.T) {
	ctx := context.Background()
	m := newMemory(t)
	l := NewVoteLedger(m, m, nil)

	const workers = 20
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		ok        int
		conflicts int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := l.Cast(ctx, subS1, userA)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, ErrConflict):
				conflicts++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, ok)
	assert.Equal(t, workers-1, conflicts)
	n, err := l.Count(ctx, subS1)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestVoteLedger_UnknownSubmission(t *testing.T) {
	ctx := context.Background()
	m := newMemory(t)
	l := NewVoteLedger(m, m, nil)

	_, err := l.Count(ctx, 999)
	require.ErrorIs(t, err, ErrNotFound)
	_, err = l.Status(ctx, 999, userA)
	require.ErrorIs(t, err, ErrNotFound)
	_, err = l.Cast(ctx, 999, userA)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestVoteLedger_Validation(t *testing.T) {
	ctx := context.Background()
	m := newMemory(t)
	l := NewVoteLedger(m, m, nil)

	_, err := l.Cast(ctx, 0, userA)
	require.ErrorIs(t, err, ErrValidation)
	_, err = l.Cancel(ctx, subS1, 0)
	require.ErrorIs(t, err, ErrValidation)
	_, err = l.Count(ctx, 0)
	require.ErrorIs(t, err, ErrValidation)
}

func TestVoteLedger_StorageErrorsAreInternal(t *testing.T) {
	ctx := context.Background()
	repo := failingRepo{err: errors.New("connection reset")}
	l := NewVoteLedger(repo, repo, nil)

	_, err := l.Cast(ctx, subS1, userA)
	require.ErrorIs(t, err, ErrInternal)
	assert.NotContains(t, err.Error(), "connection reset")

	_, err = l.Cancel(ctx, subS1, userA)
	require.ErrorIs(t, err, ErrInternal)

	_, err = l.Count(ctx, subS1)
	require.ErrorIs(t, err, ErrInternal)
}

// ---------- CommentStore ----------

func TestCommentStore_ReplyAndOwnership(t *testing.T) {
	ctx := context.Background()
	m := newMemory(t)
	s := newComments(t, m, nil)

	c1, err := s.Create(ctx, CreateInput{SubmissionID: subS1, AuthorID: userA, Content: "Great work"})
	require.NoError(t, err)
	assert.False(t, c1.IsReply())

	reply, err := s.Create(ctx, CreateInput{SubmissionID: subS1, AuthorID: userB, Content: "Agreed", ParentID: &c1.ID})
	require.NoError(t, err)
	require.True(t, reply.IsReply())
	assert.Equal(t, c1.ID, *reply.ParentID)

	page, err := s.List(ctx, ListInput{SubmissionID: subS1, Page: 1, PageSize: 5})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, c1.ID, page.Items[0].ID)
	require.Len(t, page.Items[0].Replies, 1)
	assert.Equal(t, "Agreed", page.Items[0].Replies[0].Content)
	assert.Equal(t, 1, page.Pages)

	err = s.Delete(ctx, c1.ID, userB)
	require.ErrorIs(t, err, ErrForbidden)

	_, err = s.Update(ctx, c1.ID, userB, "hijack")
	require.ErrorIs(t, err, ErrForbidden)

	page, err = s.List(ctx, ListInput{SubmissionID: subS1, Page: 1, PageSize: 5})
	require.NoError(t, err)
	require.Len(t, page.Items, 1, "forbidden delete must not remove the comment")
}

func TestCommentStore_Pagination(t *testing.T) {
	ctx := context.Background()
	m := newMemory(t)
	s := newComments(t, m, nil)

	for i := 0; i < 12; i++ {
		_, err := s.Create(ctx, CreateInput{SubmissionID: subS1, AuthorID: userA, Content: fmt.Sprintf("comment %d", i)})
		require.NoError(t, err)
	}

	page1, err := s.List(ctx, ListInput{SubmissionID: subS1, Page: 1, PageSize: 5})
	require.NoError(t, err)
	assert.Len(t, page1.Items, 5)
	assert.Equal(t, 3, page1.Pages)
	assert.EqualValues(t, 12, page1.Total)

	page3, err := s.List(ctx, ListInput{SubmissionID: subS1, Page: 3, PageSize: 5})
	require.NoError(t, err)
	assert.Len(t, page3.Items, 2)

	page4, err := s.List(ctx, ListInput{SubmissionID: subS1, Page: 4, PageSize: 5})
	require.NoError(t, err)
	assert.Empty(t, page4.Items)
	assert.NotNil(t, page4.Items)
	assert.Equal(t, 3, page4.Pages)

	seen := map[uint]bool{}
	for p := 1; p <= 3; p++ {
		page, err := s.List(ctx, ListInput{SubmissionID: subS1, Page: p, PageSize: 5, Order: OrderAsc})
		require.NoError(t, err)
		for _, it := range page.Items {
			assert.False(t, seen[it.ID], "comment %d returned twice", it.ID)
			seen[it.ID] = true
		}
	}
	assert.Len(t, seen, 12)
}

func TestCommentStore_PageSizeDefaultsAndClamp(t *testing.T) {
	ctx := context.Background()
	m := newMemory(t)
	s := newComments(t, m, nil)

	page, err := s.List(ctx, ListInput{SubmissionID: subS1, Page: 1})
	require.NoError(t, err)
	assert.Equal(t, testLimits.DefaultPageSize, page.PageSize)

	page, err = s.List(ctx, ListInput{SubmissionID: subS1, Page: 1, PageSize: 1000})
	require.NoError(t, err)
	assert.Equal(t, testLimits.MaxPageSize, page.PageSize)
	assert.Zero(t, page.Pages)
}

func TestCommentStore_ListValidation(t *testing.T) {
	ctx := context.Background()
	m := newMemory(t)
	s := newComments(t, m, nil)

	tests := []struct {
		name string
		in   ListInput
		want error
	}{
		{"page zero", ListInput{SubmissionID: subS1, Page: 0}, ErrValidation},
		{"negative size", ListInput{SubmissionID: subS1, Page: 1, PageSize: -1}, ErrValidation},
		{"unknown sort", ListInput{SubmissionID: subS1, Page: 1, SortBy: "votes"}, ErrValidation},
		{"unknown order", ListInput{SubmissionID: subS1, Page: 1, Order: "sideways"}, ErrValidation},
		{"unknown submission", ListInput{SubmissionID: 999, Page: 1}, ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.List(ctx, tt.in)
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestCommentStore_ContentValidation(t *testing.T) {
	ctx := context.Background()
	m := newMemory(t)
	s := newComments(t, m, nil)

	for _, content := range []string{"", "   ", "<b></b>", "this comment is far too long"} {
		_, err := s.Create(ctx, CreateInput{SubmissionID: subS1, AuthorID: userA, Content: content})
		require.ErrorIs(t, err, ErrValidation, "%q", content)
	}

	c, err := s.Create(ctx, CreateInput{SubmissionID: subS1, AuthorID: userA, Content: "  <i>nice</i>  "})
	require.NoError(t, err)
	assert.Equal(t, "nice", c.Content)

	_, err = s.Update(ctx, c.ID, userA, " ")
	require.ErrorIs(t, err, ErrValidation)

	updated, err := s.Update(ctx, c.ID, userA, "nicer")
	require.NoError(t, err)
	assert.Equal(t, "nicer", updated.Content)
}

func TestCommentStore_NotFound(t *testing.T) {
	ctx := context.Background()
	m := newMemory(t)
	s := newComments(t, m, nil)

	_, err := s.Create(ctx, CreateInput{SubmissionID: 999, AuthorID: userA, Content: "hi"})
	require.ErrorIs(t, err, ErrNotFound)

	missing := uint(4242)
	_, err = s.Create(ctx, CreateInput{SubmissionID: subS1, AuthorID: userA, Content: "hi", ParentID: &missing})
	require.ErrorIs(t, err, ErrNotFound)

	other, err := s.Create(ctx, CreateInput{SubmissionID: subS2, AuthorID: userA, Content: "elsewhere"})
	require.NoError(t, err)
	_, err = s.Create(ctx, CreateInput{SubmissionID: subS1, AuthorID: userA, Content: "hi", ParentID: &other.ID})
	require.ErrorIs(t, err, ErrNotFound)

	_, err = s.Update(ctx, missing, userA, "x")
	require.ErrorIs(t, err, ErrNotFound)
	require.ErrorIs(t, s.Delete(ctx, missing, userA), ErrNotFound)
}

func TestCommentStore_DeleteCascadesToReplies(t *testing.T) {
	ctx := context.Background()
	m := newMemory(t)
	s := newComments(t, m, nil)

	top, err := s.Create(ctx, CreateInput{SubmissionID: subS1, AuthorID: userA, Content: "top"})
	require.NoError(t, err)
	_, err = s.Create(ctx, CreateInput{SubmissionID: subS1, AuthorID: userB, Content: "reply", ParentID: &top.ID})
	require.NoError(t, err)

	require.NoError(t, s.Delete(ctx, top.ID, userA))

	page, err := s.List(ctx, ListInput{SubmissionID: subS1, Page: 1})
	require.NoError(t, err)
	assert.Empty(t, page.Items)
	assert.Zero(t, page.Total)
}

func TestCommentStore_MutationInvalidatesCachedPages(t *testing.T) {
	ctx := context.Background()
	m := newMemory(t)
	cache, err := NewPageCache(16, time.Minute, nil, nil)
	require.NoError(t, err)
	s := newComments(t, m, cache)

	first, err := s.Create(ctx, CreateInput{SubmissionID: subS1, AuthorID: userA, Content: "first"})
	require.NoError(t, err)

	page, err := s.List(ctx, ListInput{SubmissionID: subS1, Page: 1})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)

	gen, ok := cache.Generation(ctx, subS1)
	require.True(t, ok)
	_, ok = cache.Get(subS1, gen, 1, testLimits.DefaultPageSize, true)
	require.True(t, ok, "page 1 should be cached after List")

	_, err = s.Create(ctx, CreateInput{SubmissionID: subS1, AuthorID: userB, Content: "second"})
	require.NoError(t, err)
	next, _ := cache.Generation(ctx, subS1)
	assert.Equal(t, gen+1, next)

	page, err = s.List(ctx, ListInput{SubmissionID: subS1, Page: 1})
	require.NoError(t, err)
	assert.Len(t, page.Items, 2, "stale page must not be served after create")

	_, err = s.Update(ctx, first.ID, userA, "edited")
	require.NoError(t, err)
	page, err = s.List(ctx, ListInput{SubmissionID: subS1, Page: 1, Order: OrderAsc})
	require.NoError(t, err)
	assert.Equal(t, "edited", page.Items[0].Content)

	require.NoError(t, s.Delete(ctx, first.ID, userA))
	page, err = s.List(ctx, ListInput{SubmissionID: subS1, Page: 1})
	require.NoError(t, err)
	assert.Len(t, page.Items, 1)

	// 其他作品的缓存不受影响
	other, _ := cache.Generation(ctx, subS2)
	assert.Zero(t, other)
}

func TestPageCache_DisabledIsNil(t *testing.T) {
	c, err := NewPageCache(0, time.Minute, nil, nil)
	require.NoError(t, err)
	assert.Nil(t, c)

	assert.NotPanics(t, func() {
		_, ok := c.Generation(context.Background(), subS1)
		assert.False(t, ok)
		c.Invalidate(context.Background(), subS1)
		c.Set(subS1, 0, 1, 10, true, models.CommentPage{})
		_, ok = c.Get(subS1, 0, 1, 10, true)
		assert.False(t, ok)
	})
}

// 两个实例共用一份存储，各自有进程内的页缓存，代数放在 Redis 里共享。
func TestCommentStore_SharedGenerationsAcrossInstances(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	m := newMemory(t)
	newInstance := func() *CommentStore {
		cache, err := NewPageCache(16, time.Minute, NewRedisGenerations(client, time.Hour), nil)
		require.NoError(t, err)
		return newComments(t, m, cache)
	}
	a, b := newInstance(), newInstance()

	page, err := b.List(ctx, ListInput{SubmissionID: subS1, Page: 1})
	require.NoError(t, err)
	require.Empty(t, page.Items)

	_, err = a.Create(ctx, CreateInput{SubmissionID: subS1, AuthorID: userA, Content: "from a"})
	require.NoError(t, err)

	page, err = b.List(ctx, ListInput{SubmissionID: subS1, Page: 1})
	require.NoError(t, err)
	require.Len(t, page.Items, 1, "instance b must not serve its stale page 1")
	assert.EqualValues(t, 1, page.Total)

	raw, err := mr.Get("comments:gen:100")
	require.NoError(t, err)
	assert.Equal(t, "1", raw)
	assert.True(t, mr.TTL("comments:gen:100") > 0)
}

func TestCommentStore_LocalGenerationsShared(t *testing.T) {
	ctx := context.Background()
	m := newMemory(t)
	gens := NewLocalGenerations()
	newInstance := func() *CommentStore {
		cache, err := NewPageCache(16, time.Minute, gens, nil)
		require.NoError(t, err)
		return newComments(t, m, cache)
	}
	a, b := newInstance(), newInstance()

	_, err := b.List(ctx, ListInput{SubmissionID: subS1, Page: 1})
	require.NoError(t, err)
	_, err = a.Create(ctx, CreateInput{SubmissionID: subS1, AuthorID: userA, Content: "from a"})
	require.NoError(t, err)

	page, err := b.List(ctx, ListInput{SubmissionID: subS1, Page: 1})
	require.NoError(t, err)
	assert.Len(t, page.Items, 1)
}

// brokenGenerations 模拟 Redis 不可用：读不到代数时绕过缓存，直接查存储。
type brokenGenerations struct{}

func (brokenGenerations) Current(context.Context, uint) (uint64, error) {
	return 0, errors.New("redis down")
}
func (brokenGenerations) Bump(context.Context, uint) error { return errors.New("redis down") }

func TestPageCache_BypassedWhenGenerationsFail(t *testing.T) {
	ctx := context.Background()
	m := newMemory(t)
	cache, err := NewPageCache(16, time.Minute, brokenGenerations{}, nil)
	require.NoError(t, err)
	s := newComments(t, m, cache)

	_, err = s.List(ctx, ListInput{SubmissionID: subS1, Page: 1})
	require.NoError(t, err)
	_, err = s.Create(ctx, CreateInput{SubmissionID: subS1, AuthorID: userA, Content: "still works"})
	require.NoError(t, err)

	page, err := s.List(ctx, ListInput{SubmissionID: subS1, Page: 1})
	require.NoError(t, err)
	assert.Len(t, page.Items, 1)
	_, ok := cache.Get(subS1, 0, 1, testLimits.DefaultPageSize, true)
	assert.False(t, ok, "nothing is cached without a generation")
}

func TestCommentStore_UpdateChecksOwnershipFirst(t *testing.T) {
	ctx := context.Background()
	m := newMemory(t)
	s := newComments(t, m, nil)

	c, err := s.Create(ctx, CreateInput{SubmissionID: subS1, AuthorID: userA, Content: "mine"})
	require.NoError(t, err)

	for _, content := range []string{"", "   ", "this comment is far too long", "fine"} {
		_, err = s.Update(ctx, c.ID, userB, content)
		require.ErrorIs(t, err, ErrForbidden, "%q", content)
	}

	_, err = s.Update(ctx, 4242, userB, "")
	require.ErrorIs(t, err, ErrNotFound)

	stored, err := m.CommentByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "mine", stored.Content)
}
