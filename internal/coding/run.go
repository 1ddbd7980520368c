package coding

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/KaramelBytes/tabloom-cli/internal/metrics"
)

// Coder assigns codebook codes to open-ended answers. The result maps a
// 0-based answer index to its codes.
type Coder interface {
	Code(ctx context.Context, job Job) (map[int][]string, error)
}

// CodebookEntry is one code the model may assign.
type CodebookEntry struct {
	Code        string `json:"code" yaml:"code"`
	Description string `json:"description" yaml:"description"`
}

// Job codes the answers of one open-ended question.
type Job struct {
	ID           string          `json:"id"`
	QuestionCode string          `json:"question_code"`
	Prompt       string          `json:"prompt"`
	Answers      []string        `json:"answers"`
	Codebook     []CodebookEntry `json:"codebook"`
}

// Messages renders the job as a system and a user message.
func (j Job) Messages() []Message {
	var sys strings.Builder
	sys.WriteString("You code open-ended survey answers. Use only these codes:\n")
	for _, e := range j.Codebook {
		fmt.Fprintf(&sys, "- %s: %s\n", e.Code, e.Description)
	}
	sys.WriteString(`Reply with JSON only: {"assignments": [{"answer": <number>, "codes": ["<code>"]}]}`)

	var user strings.Builder
	if j.Prompt != "" {
		user.WriteString(j.Prompt)
		user.WriteString("\n\n")
	}
	fmt.Fprintf(&user, "Question %s answers:\n", j.QuestionCode)
	for i, a := range j.Answers {
		fmt.Fprintf(&user, "%d. %s\n", i+1, a)
	}
	return []Message{{Role: "system", Content: sys.String()}, {Role: "user", Content: user.String()}}
}

// Result is the outcome of one job. Err is set when the job failed or timed out.
type Result struct {
	JobID        string           `json:"job_id"`
	QuestionCode string           `json:"question_code"`
	Codes        map[int][]string `json:"codes,omitempty"`
	Duration     time.Duration    `json:"duration"`
	Err          error            `json:"-"`
}

// RunOptions bound the fan-out.
type RunOptions struct {
	Concurrency int
	BaseTimeout time.Duration
	PerAnswer   time.Duration
	Logger      *zap.Logger
}

func DefaultRunOptions() RunOptions {
	return RunOptions{Concurrency: 4, BaseTimeout: 30 * time.Second, PerAnswer: 200 * time.Millisecond}
}

// Timeout is the deadline for a job with n answers.
func (o RunOptions) Timeout(n int) time.Duration {
	return o.BaseTimeout + time.Duration(n)*o.PerAnswer
}

// Run codes every job concurrently, at most Concurrency at a time. A failed
// job is reported in its Result and never cancels the others. Results follow
// the order of jobs. Only cancellation of ctx itself is returned as an error.
func Run(ctx context.Context, coder Coder, jobs []Job, opt RunOptions) ([]Result, error) {
	log := opt.Logger
	if log == nil {
		log = zap.NewNop()
	}
	if opt.Concurrency <= 0 {
		opt.Concurrency = 1
	}
	results := make([]Result, len(jobs))
	var g errgroup.Group
	g.SetLimit(opt.Concurrency)
	for i := range jobs {
		i := i
		job := jobs[i]
		if job.ID == "" {
			job.ID = uuid.NewString()
		}
		g.Go(func() error {
			results[i] = runJob(ctx, coder, job, opt, log)
			return nil
		})
	}
	_ = g.Wait()
	return results, ctx.Err()
}

func runJob(ctx context.Context, coder Coder, job Job, opt RunOptions, log *zap.Logger) (res Result) {
	res = Result{JobID: job.ID, QuestionCode: job.QuestionCode}
	start := time.Now()
	jctx := ctx
	if d := opt.Timeout(len(job.Answers)); d > 0 {
		var cancel context.CancelFunc
		jctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}
	defer func() {
		if r := recover(); r != nil {
			res.Err = fmt.Errorf("coding %s panicked: %v", job.QuestionCode, r)
		}
		res.Duration = time.Since(start)
		status := "ok"
		switch {
		case errors.Is(res.Err, context.DeadlineExceeded):
			status = "timeout"
		case res.Err != nil:
			status = "error"
		}
		metrics.CodingJobs.WithLabelValues(status).Inc()
		if res.Err != nil {
			log.Warn("coding job failed",
				zap.String("job", job.ID),
				zap.String("question", job.QuestionCode),
				zap.Error(res.Err))
			return
		}
		log.Debug("coding job done",
			zap.String("job", job.ID),
			zap.String("question", job.QuestionCode),
			zap.Duration("duration", res.Duration))
	}()
	if err := ctx.Err(); err != nil {
		res.Err = err
		return res
	}
	codes, err := coder.Code(jctx, job)
	if err != nil {
		res.Err = fmt.Errorf("coding %s: %w", job.QuestionCode, err)
		return res
	}
	res.Codes = codes
	return res
}
