package queue

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/maheshrc27/postflow/internal/jobs"
	applog "github.com/maheshrc27/postflow/internal/log"
	"github.com/maheshrc27/postflow/internal/models"
	"github.com/maheshrc27/postflow/internal/platform"
	"github.com/maheshrc27/postflow/internal/repository/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captured struct {
	task *asynq.Task
	opts map[asynq.OptionType]any
}

type fakeEnqueuer struct {
	tasks []captured
	err   error
}

func (f *fakeEnqueuer) EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	c := captured{task: task, opts: map[asynq.OptionType]any{}}
	for _, o := range opts {
		c.opts[o.Type()] = o.Value()
	}
	f.tasks = append(f.tasks, c)
	return &asynq.TaskInfo{ID: "t1", Queue: "q"}, nil
}

func TestEnqueuePublish(t *testing.T) {
	enq := &fakeEnqueuer{}
	c := NewClient(enq, applog.Nop())

	require.NoError(t, c.EnqueuePublish(context.Background(), 42, 5*time.Minute))
	require.Len(t, enq.tasks, 1)

	got := enq.tasks[0]
	assert.Equal(t, TaskTypePublishPost, got.task.Type())
	assert.JSONEq(t, `{"post_id":42}`, string(got.task.Payload()))
	assert.Equal(t, QueuePublish, got.opts[asynq.QueueOpt])
	assert.Equal(t, 0, got.opts[asynq.MaxRetryOpt])
	assert.Equal(t, 34*time.Minute, got.opts[asynq.TimeoutOpt])
	assert.Equal(t, 5*time.Minute, got.opts[asynq.ProcessInOpt])
}

func TestEnqueueMetricsAndAnalytics(t *testing.T) {
	enq := &fakeEnqueuer{}
	c := NewClient(enq, applog.Nop())
	ctx := context.Background()

	require.NoError(t, c.EnqueueMetrics(ctx, 7, time.Hour))
	require.NoError(t, c.EnqueueAnalytics(ctx, 3))
	require.Len(t, enq.tasks, 2)

	assert.Equal(t, TaskTypeCollectMetrics, enq.tasks[0].task.Type())
	assert.Equal(t, QueueMetrics, enq.tasks[0].opts[asynq.QueueOpt])
	assert.Equal(t, time.Hour, enq.tasks[0].opts[asynq.ProcessInOpt])

	assert.Equal(t, TaskTypeAccountAnalytics, enq.tasks[1].task.Type())
	assert.JSONEq(t, `{"account_id":3}`, string(enq.tasks[1].task.Payload()))
	assert.Equal(t, 0, enq.tasks[1].opts[asynq.MaxRetryOpt])
}

func TestSweepsAreUnique(t *testing.T) {
	enq := &fakeEnqueuer{}
	c := NewClient(enq, applog.Nop())

	require.NoError(t, c.EnqueueTokenRefreshSweep(context.Background()))
	require.NoError(t, c.EnqueueAnalyticsSweep(context.Background()))

	for _, task := range enq.tasks {
		assert.Equal(t, QueueMaintenance, task.opts[asynq.QueueOpt])
		assert.Contains(t, task.opts, asynq.UniqueOpt)
	}

	enq.err = asynq.ErrDuplicateTask
	assert.NoError(t, c.EnqueueTokenRefreshSweep(context.Background()))

	enq.err = errors.New("redis down")
	assert.Error(t, c.EnqueueTokenRefreshSweep(context.Background()))
}

type stubAdapter struct{ calls int }

func (s *stubAdapter) Platform() models.Platform { return models.PlatformYoutube }
func (s *stubAdapter) Publish(ctx context.Context, acc *models.SocialAccount, post *models.Post) (*platform.PublishResult, error) {
	s.calls++
	return &platform.PublishResult{PlatformPostID: "yt-1", VideoURL: "https://youtu.be/yt-1"}, nil
}
func (s *stubAdapter) GetPostMetrics(ctx context.Context, acc *models.SocialAccount, id string) (platform.Stats, error) {
	return platform.Stats{platform.StatViews: int64(10), platform.StatLikes: int64(1)}, nil
}
func (s *stubAdapter) GetAccountAnalytics(ctx context.Context, acc *models.SocialAccount, start, end time.Time) (platform.Stats, error) {
	return platform.Stats{}, nil
}
func (s *stubAdapter) GetAudienceInsights(ctx context.Context, acc *models.SocialAccount) (models.Demographics, error) {
	return nil, platform.NotSupported(models.PlatformYoutube, "audience insights")
}
func (s *stubAdapter) RefreshAccessToken(ctx context.Context, acc *models.SocialAccount) (*models.AccountToken, error) {
	return &models.AccountToken{AccessToken: "new"}, nil
}

func newTestQueue(t *testing.T) (*Queue, *memory.Database, *fakeEnqueuer) {
	t.Helper()
	reg, err := platform.NewRegistry(&stubAdapter{})
	require.NoError(t, err)

	db := memory.NewDatabase()
	enq := &fakeEnqueuer{}
	deps := jobs.Deps{
		Posts:     db.Posts(),
		Accounts:  db.Accounts(),
		Metrics:   db.MetricStore(),
		Attempts:  db.AttemptStore(),
		Adapters:  reg,
		Scheduler: NewClient(enq, applog.Nop()),
		Logger:    applog.Nop(),
	}
	q := NewQueue(
		jobs.NewPublishJob(deps),
		jobs.NewMetricsJob(deps),
		jobs.NewAnalyticsJob(deps),
		jobs.NewTokenRefreshJob(deps, jobs.DefaultExcluded),
		applog.Nop(),
	)
	return q, db, enq
}

func task(t *testing.T, typ string, payload any) *asynq.Task {
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	return asynq.NewTask(typ, body)
}

func TestHandlePublishTask(t *testing.T) {
	q, db, enq := newTestQueue(t)
	accID := db.PutAccount(models.SocialAccount{Platform: models.PlatformYoutube})
	postID := db.PutPost(models.Post{AccountID: accID, Status: models.PostStatusScheduled})

	require.NoError(t, q.HandlePublishTask(context.Background(), task(t, TaskTypePublishPost, PostPayload{PostID: postID})))

	p, _ := db.Post(postID)
	assert.Equal(t, models.PostStatusPublished, p.Status)
	assert.Equal(t, "yt-1", p.PlatformPostID)

	require.Len(t, enq.tasks, len(jobs.DefaultFollowUps))
	for _, followUp := range enq.tasks {
		assert.Equal(t, TaskTypeCollectMetrics, followUp.task.Type())
	}
}

func TestHandleMetricsTask(t *testing.T) {
	q, db, _ := newTestQueue(t)
	now := time.Now()
	accID := db.PutAccount(models.SocialAccount{Platform: models.PlatformYoutube})
	postID := db.PutPost(models.Post{AccountID: accID, Status: models.PostStatusPublished, PlatformPostID: "yt-1", PublishedAt: &now})

	require.NoError(t, q.HandleMetricsTask(context.Background(), task(t, TaskTypeCollectMetrics, PostPayload{PostID: postID})))

	rows := db.Metrics()
	require.Len(t, rows, 1)
	assert.Equal(t, 10.0, rows[0].EngagementRate.InexactFloat64())
}

func TestHandleAnalyticsSweepTask(t *testing.T) {
	q, db, enq := newTestQueue(t)
	db.PutAccount(models.SocialAccount{Platform: models.PlatformYoutube})
	db.PutAccount(models.SocialAccount{Platform: models.PlatformYoutube})

	require.NoError(t, q.HandleAnalyticsSweepTask(context.Background(), asynq.NewTask(TaskTypeAnalyticsSweep, nil)))
	assert.Len(t, enq.tasks, 2)

	require.NoError(t, q.HandleAnalyticsTask(context.Background(), task(t, TaskTypeAccountAnalytics, AccountPayload{AccountID: 1})))
	assert.Len(t, db.Metrics(), 1)
}

func TestHandleRefreshTokensTask(t *testing.T) {
	q, db, _ := newTestQueue(t)
	soon := time.Now().Add(time.Hour)
	id := db.PutAccount(models.SocialAccount{Platform: models.PlatformYoutube, AccessToken: "old", TokenExpiresAt: &soon})

	require.NoError(t, q.HandleRefreshTokensTask(context.Background(), asynq.NewTask(TaskTypeRefreshTokens, nil)))

	acc, _ := db.Account(id)
	assert.Equal(t, "new", acc.AccessToken)
}

func TestMalformedPayloadSkipsRetry(t *testing.T) {
	q, _, _ := newTestQueue(t)
	err := q.HandlePublishTask(context.Background(), asynq.NewTask(TaskTypePublishPost, []byte("{")))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

func TestRegister(t *testing.T) {
	q, _, _ := newTestQueue(t)
	mux := asynq.NewServeMux()
	q.Register(mux)

	for _, typ := range []string{TaskTypePublishPost, TaskTypeCollectMetrics, TaskTypeAccountAnalytics, TaskTypeAnalyticsSweep, TaskTypeRefreshTokens} {
		_, pattern := mux.Handler(asynq.NewTask(typ, nil))
		assert.Equal(t, typ, pattern)
	}
}
