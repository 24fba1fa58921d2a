package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cwbudde/pipesizer/internal/config"
	"github.com/cwbudde/pipesizer/internal/metrics"
	"github.com/cwbudde/pipesizer/internal/search"
	"github.com/cwbudde/pipesizer/internal/solver"
	"github.com/cwbudde/pipesizer/internal/store"
)

// runJob executes a sizing job. With a non-nil store the result, report
// and trial trace are persisted under the job ID; reg may be nil.
func runJob(ctx context.Context, jm *JobManager, st *store.FSStore, reg *metrics.Registry, jobID string) error {
	job, exists := jm.GetJob(jobID)
	if !exists {
		return fmt.Errorf("job not found: %s", jobID)
	}

	if err := ctx.Err(); err != nil {
		markJobCancelled(jm, jobID)
		return err
	}

	if reg != nil {
		reg.JobsInFlight.Inc()
		defer reg.JobsInFlight.Dec()
	}

	problem, opts, err := prepareJob(job.Config)
	if err != nil {
		markJobFailed(jm, jobID, err)
		return err
	}
	opts.RunID = jobID
	opts.Metrics = reg

	if err := jm.UpdateJob(jobID, func(j *Job) {
		j.State = StateRunning
		j.Problem = problem.Name
		j.Algorithm = opts.Search.Algorithm
	}); err != nil {
		return err
	}
	if running, ok := jm.GetJob(jobID); ok {
		jm.broadcaster.Broadcast(jobEvent(running))
	}

	slog.Info("Starting job", "job_id", jobID, "problem", job.Config.ProblemPath, "algorithm", opts.Search.Algorithm)

	var trace *store.TraceWriter
	if st != nil {
		trace, err = store.NewTraceWriter(st.BaseDir(), jobID, false)
		if err != nil {
			slog.Warn("Trace disabled", "job_id", jobID, "error", err)
		} else {
			defer func() {
				if trace == nil {
					return
				}
				if err := trace.Close(); err != nil {
					slog.Warn("Failed to close trace", "job_id", jobID, "error", err)
				}
			}()
		}
	}

	opts.Search.OnTrial = func(r search.TrialReport) {
		jm.UpdateJob(jobID, func(j *Job) {
			j.Trials = r.Trial
			j.Found = r.Found
			j.BestCost = r.BestCost
		})
		if trace != nil {
			trace.Observe(r)
		}
		jm.broadcaster.Broadcast(trialEvent(jobID, r))
	}

	start := time.Now()
	result, err := solver.SolveProblem(ctx, problem, opts)
	if ctx.Err() != nil || err != nil {
		if trace != nil {
			trace.Close()
			trace = nil
			discardRun(st, jobID)
		}
		if ctx.Err() != nil {
			markJobCancelled(jm, jobID)
			return ctx.Err()
		}
		markJobFailed(jm, jobID, err)
		return err
	}

	if st != nil {
		persistResult(st, job.Config.ProblemPath, result)
	}

	endTime := time.Now()
	err = jm.UpdateJob(jobID, func(j *Job) {
		j.State = StateCompleted
		j.Result = result
		j.Found = result.Found
		j.BestCost = result.Cost
		j.Trials = result.Trials
		j.EndTime = &endTime
	})
	if err != nil {
		return err
	}

	slog.Info("Job completed",
		"job_id", jobID,
		"elapsed", time.Since(start),
		"found", result.Found,
		"cost", result.Cost,
	)

	if done, ok := jm.GetJob(jobID); ok {
		jm.broadcaster.Broadcast(jobEvent(done))
	}
	return nil
}

// discardRun removes the directory the trace created for a run that produced
// no result
func discardRun(st *store.FSStore, runID string) {
	if err := st.DeleteRun(runID); err != nil && !errors.Is(err, store.ErrNotFound) {
		slog.Warn("Failed to remove partial run", "run_id", runID, "error", err)
	}
}

// prepareJob loads the problem and applies the request overrides
func prepareJob(cfg JobConfig) (*config.Problem, solver.Options, error) {
	problem, err := config.LoadProblem(cfg.ProblemPath)
	if err != nil {
		return nil, solver.Options{}, err
	}
	if err := cfg.Overrides.Apply(problem); err != nil {
		return nil, solver.Options{}, err
	}
	opts, err := solver.OptionsFromProblem(problem)
	if err != nil {
		return nil, solver.Options{}, err
	}
	return problem, opts, nil
}

// persistResult saves the record and report. Failures are logged; the
// in-memory job still holds the result.
func persistResult(st *store.FSStore, problemPath string, result *solver.Result) {
	if err := st.SaveRun(store.NewRecord(problemPath, result)); err != nil {
		slog.Error("Failed to save run", "run_id", result.RunID, "error", err)
		return
	}
	if err := st.SaveReport(result); err != nil {
		slog.Warn("Failed to save report", "run_id", result.RunID, "error", err)
	}
}

// markJobFailed marks a job as failed with an error message
func markJobFailed(jm *JobManager, jobID string, err error) {
	finishJob(jm, jobID, func(j *Job) {
		j.State = StateFailed
		j.Error = err.Error()
	})
	slog.Error("Job failed", "job_id", jobID, "error", err)
}

// markJobCancelled marks a job as cancelled
func markJobCancelled(jm *JobManager, jobID string) {
	finishJob(jm, jobID, func(j *Job) {
		j.State = StateCancelled
	})
	slog.Info("Job cancelled", "job_id", jobID)
}

func finishJob(jm *JobManager, jobID string, fn func(*Job)) {
	endTime := time.Now()
	jm.UpdateJob(jobID, func(j *Job) {
		fn(j)
		j.EndTime = &endTime
	})
	if job, ok := jm.GetJob(jobID); ok {
		jm.broadcaster.Broadcast(jobEvent(job))
	}
}
