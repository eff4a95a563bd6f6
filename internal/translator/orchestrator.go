package translator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"pdf-translator/internal/logger"
	"pdf-translator/internal/types"
)

// PageState is a step of the per-page pipeline.
type PageState string

const (
	StateIdle        PageState = "idle"
	StateProtecting  PageState = "protecting"
	StateChunking    PageState = "chunking"
	StateTranslating PageState = "translating"
	StateRejoining   PageState = "rejoining"
	StateRestoring   PageState = "restoring"
	StateVerifying   PageState = "verifying"
	StateDone        PageState = "done"
	StateFailed      PageState = "failed"
)

// PageOutcome summarizes how a page ended.
type PageOutcome string

const (
	OutcomeTranslated PageOutcome = "translated"
	OutcomePartial    PageOutcome = "partial"
	OutcomeCancelled  PageOutcome = "cancelled"
	OutcomeFailed     PageOutcome = "failed"
)

const (
	DefaultConcurrency   = 3
	DefaultMaxRetries    = 3
	DefaultRetryDelay    = 2 * time.Second
	DefaultMaxRetryDelay = 30 * time.Second
	DefaultCallTimeout   = 2 * time.Minute
)

// PageRequest is one page to translate. Index is zero based.
type PageRequest struct {
	Index      int
	Text       string
	SourceLang string
	TargetLang string
	Terms      []string
}

// PageResult is the outcome of translating one page. TranslatedText is
// never empty for a non-empty page: untranslated parts keep the source text.
type PageResult struct {
	Index          int            `json:"index"`
	OriginalText   string         `json:"original_text"`
	TranslatedText string         `json:"translated_text"`
	State          PageState      `json:"state"`
	History        []PageState    `json:"history"`
	Chunks         int            `json:"chunks"`
	FailedChunks   int            `json:"failed_chunks"`
	SkippedChunks  int            `json:"skipped_chunks"`
	Cancelled      bool           `json:"cancelled"`
	Verdict        QualityVerdict `json:"verdict"`
	Unresolved     []string       `json:"unresolved,omitempty"`
	MissingTerms   []string       `json:"missing_terms,omitempty"`
	Err            error          `json:"-"`
}

// Outcome classifies the result for reporting.
func (r PageResult) Outcome() PageOutcome {
	switch {
	case r.State == StateFailed && !r.Cancelled:
		return OutcomeFailed
	case r.Cancelled:
		return OutcomeCancelled
	case r.FailedChunks > 0:
		return OutcomePartial
	default:
		return OutcomeTranslated
	}
}

func (r *PageResult) transition(s PageState) {
	r.State = s
	r.History = append(r.History, s)
}

// RunResult collects the page results of a run in page order.
type RunResult struct {
	Pages           []PageResult
	PartialFailures int
	FailedPages     int
	Cancelled       bool
}

// TranslatedTexts returns the translated text of every page in order.
func (r *RunResult) TranslatedTexts() []string {
	out := make([]string, len(r.Pages))
	for i, p := range r.Pages {
		out[i] = p.TranslatedText
	}
	return out
}

// Partial reports whether any page did not translate cleanly.
func (r *RunResult) Partial() bool {
	return r.Cancelled || r.PartialFailures > 0 || r.FailedPages > 0
}

// OrchestratorConfig configures an Orchestrator.
type OrchestratorConfig struct {
	Provider TranslationProvider
	Throttle *Throttle
	// Cache answers repeated chunks without taking a throttle slot.
	Cache          *TranslationCache
	Quality        QualityConfig
	MaxChunkLength int
	Concurrency    int
	MaxRetries     int
	RetryDelay     time.Duration
	MaxRetryDelay  time.Duration
	CallTimeout    time.Duration
	// OnPageDone is called after each page finishes, from the worker
	// goroutine.
	OnPageDone func(PageResult)
}

// Orchestrator drives pages through protect, chunk, translate, rejoin,
// restore and verify.
type Orchestrator struct {
	provider  TranslationProvider
	throttle  *Throttle
	cache     *TranslationCache
	protector *TermProtector
	chunker   *TextChunker
	guard     *QualityGuard
	config    OrchestratorConfig

	protectFunc func(text string, terms []string) (string, MarkerMap)
}

// NewOrchestrator creates an Orchestrator, filling zero config fields with
// defaults.
func NewOrchestrator(config OrchestratorConfig) *Orchestrator {
	if config.MaxChunkLength <= 0 {
		config.MaxChunkLength = DefaultMaxChunkLength
	}
	if config.Concurrency <= 0 {
		config.Concurrency = DefaultConcurrency
	}
	if config.MaxRetries <= 0 {
		config.MaxRetries = DefaultMaxRetries
	}
	if config.RetryDelay <= 0 {
		config.RetryDelay = DefaultRetryDelay
	}
	if config.MaxRetryDelay <= 0 {
		config.MaxRetryDelay = DefaultMaxRetryDelay
	}
	if config.CallTimeout <= 0 {
		config.CallTimeout = DefaultCallTimeout
	}
	o := &Orchestrator{
		provider:  config.Provider,
		throttle:  config.Throttle,
		cache:     config.Cache,
		protector: NewTermProtector(),
		chunker:   NewTextChunker(),
		guard:     NewQualityGuard(config.Quality),
		config:    config,
	}
	o.protectFunc = o.protector.Protect
	return o
}

// TranslatePages translates pages concurrently and returns the results in
// page order. Once ctx is cancelled no new provider calls are started;
// calls already in flight finish, and pages that did not complete keep
// their source text and are marked cancelled.
func (o *Orchestrator) TranslatePages(ctx context.Context, pages []string, sourceLang, targetLang string, terms []string) *RunResult {
	results := make([]PageResult, len(pages))
	sem := make(chan struct{}, o.config.Concurrency)
	var wg sync.WaitGroup

	for i, text := range pages {
		wg.Add(1)
		go func(i int, text string) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				results[i] = cancelledPage(i, text)
				o.pageDone(results[i])
				return
			}

			results[i] = o.TranslatePage(ctx, PageRequest{
				Index:      i,
				Text:       text,
				SourceLang: sourceLang,
				TargetLang: targetLang,
				Terms:      terms,
			})
			o.pageDone(results[i])
		}(i, text)
	}
	wg.Wait()

	run := &RunResult{Pages: results}
	for _, r := range results {
		run.PartialFailures += r.FailedChunks
		if r.Outcome() == OutcomeFailed {
			run.FailedPages++
		}
		if r.Cancelled {
			run.Cancelled = true
		}
	}

	logger.Info("run finished",
		logger.Int("pages", len(pages)),
		logger.Int("partialFailures", run.PartialFailures),
		logger.Int("failedPages", run.FailedPages),
		logger.Bool("cancelled", run.Cancelled))
	return run
}

func (o *Orchestrator) pageDone(r PageResult) {
	if o.config.OnPageDone != nil {
		o.config.OnPageDone(r)
	}
}

func cancelledPage(index int, text string) PageResult {
	r := PageResult{Index: index, OriginalText: text, TranslatedText: text, Cancelled: true}
	r.transition(StateFailed)
	r.Err = types.NewAppErrorWithPage(types.ErrCancelled, "translation cancelled", index+1, context.Canceled)
	return r
}

// TranslatePage runs one page through the pipeline. It never returns an
// empty translation for a non-empty page and never fails the run: failures
// are recorded on the result.
func (o *Orchestrator) TranslatePage(ctx context.Context, req PageRequest) PageResult {
	res := PageResult{Index: req.Index, OriginalText: req.Text}
	res.transition(StateIdle)
	log := logger.With(logger.Int("page", req.Index+1))

	if strings.TrimSpace(req.Text) == "" {
		res.TranslatedText = req.Text
		res.transition(StateDone)
		return res
	}
	if ctx.Err() != nil {
		return cancelledPage(req.Index, req.Text)
	}

	res.transition(StateProtecting)
	protected, markers, err := o.protect(req.Text, req.Terms)
	if err != nil {
		// Sending unprotected text would risk translating the terms
		log.Error("term protection failed", err)
		res.TranslatedText = req.Text
		res.Err = types.NewAppErrorWithPage(types.ErrInternal, "term protection failed", req.Index+1, err)
		res.transition(StateFailed)
		return res
	}

	res.transition(StateChunking)
	chunks := o.chunker.Split(protected, o.config.MaxChunkLength)
	res.Chunks = len(chunks)

	res.transition(StateTranslating)
	translated := make([]Chunk, len(chunks))
	for i, c := range chunks {
		translated[i] = c
		if strings.TrimSpace(c.Text) == "" {
			continue
		}
		if ctx.Err() != nil {
			res.Cancelled = true
			res.SkippedChunks++
			continue
		}

		out, err := o.translateChunk(ctx, c.Text, req.SourceLang, req.TargetLang)
		switch {
		case err != nil && stopped(ctx, err):
			res.Cancelled = true
			res.SkippedChunks++
		case err != nil:
			res.FailedChunks++
			log.Warn("chunk translation failed, keeping source text",
				logger.Int("chunk", i+1),
				logger.Int("chunks", len(chunks)),
				logger.Err(err))
			if res.Err == nil {
				res.Err = types.NewAppErrorWithPage(types.ErrProvider, fmt.Sprintf("chunk %d translation failed", i+1), req.Index+1, err)
			}
		case strings.TrimSpace(out) == "":
			res.FailedChunks++
			log.Warn("provider returned empty translation, keeping source text", logger.Int("chunk", i+1))
		default:
			translated[i].Text = out
		}
	}

	res.transition(StateRejoining)
	joined := o.chunker.Join(translated)

	res.transition(StateRestoring)
	restored := o.protector.Restore(joined, markers)
	res.Unresolved = restored.Unresolved
	res.MissingTerms = restored.MissingTerms
	if len(restored.Recovered) > 0 {
		log.Debug("recovered altered markers", logger.Strings("tokens", restored.Recovered))
	}
	if len(restored.Unresolved) > 0 {
		log.Warn("unresolved marker tokens left in translation", logger.Strings("tokens", restored.Unresolved))
	}

	res.transition(StateVerifying)
	res.TranslatedText, res.Verdict = o.verify(restored.Text, req.Text, restored.MissingTerms, restored.Unresolved)
	if !res.Verdict.Clean() {
		log.Info("quality issues", logger.Float64("score", res.Verdict.Score), logger.Int("issues", len(res.Verdict.Issues)))
	}

	res.transition(StateDone)
	return res
}

// protect runs the protector, converting a panic into an error.
func (o *Orchestrator) protect(text string, terms []string) (protected string, markers MarkerMap, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic during protection: %v", r)
		}
	}()
	protected, markers = o.protectFunc(text, terms)
	return protected, markers, nil
}

// verify picks the best candidate, repairs it and scores the result.
// Unresolved marker tokens are kept verbatim through the repair. Missing
// protected terms are added to the verdict.
func (o *Orchestrator) verify(restored, original string, missingTerms, unresolved []string) (string, QualityVerdict) {
	masked, unmask := maskTokens(restored, unresolved)
	best, _ := o.guard.SelectBest([]string{masked}, original)
	repaired := o.guard.Repair(best, original)
	if strings.TrimSpace(repaired) == "" {
		repaired = best
	}
	verdict := o.guard.Evaluate(repaired, original)
	for _, term := range missingTerms {
		verdict.add(IssueMissingTerm, o.guard.config.MissingTermWeight, term)
	}
	return unmask(repaired), verdict
}

// maskTokens swaps each token for a private use rune and returns the
// function that puts the tokens back.
func maskTokens(text string, tokens []string) (string, func(string) string) {
	const privateUse, privateUseEnd = 0xE000, 0xF8FF
	var mask, unmask []string
	for i, tok := range tokens {
		if tok == "" {
			continue
		}
		if privateUse+i > privateUseEnd {
			break
		}
		m := string(rune(privateUse + i))
		mask = append(mask, tok, m)
		unmask = append(unmask, m, tok)
	}
	if len(mask) == 0 {
		return text, func(s string) string { return s }
	}
	return strings.NewReplacer(mask...).Replace(text), strings.NewReplacer(unmask...).Replace
}

// translateChunk calls the provider with retries. Only retryable provider
// errors are retried, with exponential backoff.
func (o *Orchestrator) translateChunk(ctx context.Context, text, sourceLang, targetLang string) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= o.config.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		out, err := o.call(ctx, text, sourceLang, targetLang)
		if err == nil {
			return out, nil
		}
		lastErr = err
		if stopped(ctx, err) {
			return "", err
		}

		if !IsRetryable(err) || attempt == o.config.MaxRetries {
			break
		}

		delay := o.backoff(attempt)
		logger.Debug("retrying provider call",
			logger.Int("attempt", attempt),
			logger.Int64("delayMs", delay.Milliseconds()),
			logger.Err(err))

		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return "", ctx.Err()
		}
	}
	return "", lastErr
}

// call issues one provider request unless the cache already has the
// answer. The request runs on a context that is not cancelled with ctx so
// an accepted call is allowed to finish.
func (o *Orchestrator) call(ctx context.Context, text, sourceLang, targetLang string) (string, error) {
	if o.cache != nil {
		if out, ok := o.cache.Get(sourceLang, targetLang, text); ok {
			logger.Debug("translation cache hit", logger.Int("length", len(text)))
			return out, nil
		}
	}

	var out string
	err := o.throttle.Do(ctx, func() error {
		callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.config.CallTimeout)
		defer cancel()
		var err error
		out, err = o.provider.Translate(callCtx, text, sourceLang, targetLang)
		return err
	})
	if err == nil && o.cache != nil {
		o.cache.Set(sourceLang, targetLang, text, out)
	}
	return out, err
}

// stopped reports whether err means the chunk was not sent because ctx
// ended, or would end before the throttle let the call through.
func stopped(ctx context.Context, err error) bool {
	if errors.Is(err, ErrThrottleDeadline) {
		return true
	}
	return ctx.Err() != nil && errors.Is(err, ctx.Err())
}

// backoff returns RetryDelay * 2^(attempt-1), capped at MaxRetryDelay.
func (o *Orchestrator) backoff(attempt int) time.Duration {
	delay := o.config.RetryDelay * time.Duration(1<<uint(attempt-1))
	if delay > o.config.MaxRetryDelay || delay <= 0 {
		delay = o.config.MaxRetryDelay
	}
	return delay
}
