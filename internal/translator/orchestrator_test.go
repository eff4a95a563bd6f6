package translator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pdf-translator/internal/types"
)

// recordingProvider counts calls and remembers every text it was sent.
type recordingProvider struct {
	mu     sync.Mutex
	inputs []string
	fn     func(ctx context.Context, call int, text string) (string, error)
}

func (p *recordingProvider) Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error) {
	p.mu.Lock()
	p.inputs = append(p.inputs, text)
	call := len(p.inputs)
	p.mu.Unlock()
	return p.fn(ctx, call, text)
}

func (p *recordingProvider) calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.inputs)
}

func newTestOrchestrator(p TranslationProvider, maxChunk int) *Orchestrator {
	return NewOrchestrator(OrchestratorConfig{
		Provider:       p,
		MaxChunkLength: maxChunk,
		RetryDelay:     time.Millisecond,
		MaxRetryDelay:  5 * time.Millisecond,
	})
}

func TestTranslatePage_ProtectsTermsEndToEnd(t *testing.T) {
	dict := strings.NewReplacer(
		"is a cloud platform", "是一個雲端平台",
		"offers", "提供",
		"compatible caching", "相容的快取",
		".", "。",
	)
	provider := &recordingProvider{fn: func(_ context.Context, _ int, text string) (string, error) {
		return dict.Replace(text), nil
	}}
	o := newTestOrchestrator(provider, 0)

	res := o.TranslatePage(context.Background(), PageRequest{
		Text:       "Amazon Web Services (AWS) is a cloud platform. AWS offers Redis OSS compatible caching.",
		SourceLang: "en",
		TargetLang: "zh-TW",
		Terms:      ParseProtectedTerms("Amazon Web Services, AWS, Redis OSS"),
	})

	assert.Equal(t, "Amazon Web Services (AWS) 是一個雲端平台。 AWS 提供 Redis OSS 相容的快取。", res.TranslatedText)
	assert.Equal(t, OutcomeTranslated, res.Outcome())
	assert.True(t, res.Verdict.Clean(), "%+v", res.Verdict)
	assert.Equal(t, []PageState{StateIdle, StateProtecting, StateChunking, StateTranslating,
		StateRejoining, StateRestoring, StateVerifying, StateDone}, res.History)

	require.Equal(t, 1, provider.calls())
	for _, term := range []string{"Amazon", "AWS", "Redis"} {
		assert.NotContains(t, provider.inputs[0], term, "protected term sent to provider")
	}
}

func TestTranslatePage_PartialChunkFailure(t *testing.T) {
	provider := &recordingProvider{fn: func(_ context.Context, _ int, text string) (string, error) {
		if strings.HasPrefix(text, "second") {
			return "", NewProviderError("fake", 400, errors.New("bad request"))
		}
		return "T:" + text, nil
	}}
	o := newTestOrchestrator(provider, 20)

	res := o.TranslatePage(context.Background(), PageRequest{
		Index:      1,
		Text:       "first line here\nsecond line here\nthird line here",
		SourceLang: "en",
		TargetLang: "ja",
	})

	assert.Equal(t, 3, res.Chunks)
	assert.Equal(t, 1, res.FailedChunks)
	assert.Equal(t, OutcomePartial, res.Outcome())
	assert.Equal(t, "T:first line here\nsecond line here\nT:third line here", res.TranslatedText)
	assert.Equal(t, 3, provider.calls(), "non-retryable errors must not be retried")
	assert.True(t, types.IsCode(res.Err, types.ErrProvider))
}

func TestTranslatePage_RetriesTransientErrors(t *testing.T) {
	provider := &recordingProvider{fn: func(_ context.Context, call int, text string) (string, error) {
		if call < 3 {
			return "", NewProviderError("fake", 503, errors.New("unavailable"))
		}
		return "翻譯", nil
	}}
	o := newTestOrchestrator(provider, 0)

	res := o.TranslatePage(context.Background(), PageRequest{Text: "translate me", SourceLang: "en", TargetLang: "zh"})

	assert.Equal(t, 3, provider.calls())
	assert.Equal(t, "翻譯", res.TranslatedText)
	assert.Equal(t, OutcomeTranslated, res.Outcome())
}

func TestTranslatePage_RetriesExhausted(t *testing.T) {
	provider := &recordingProvider{fn: func(_ context.Context, _ int, _ string) (string, error) {
		return "", NewProviderError("fake", 429, errors.New("throttled"))
	}}
	o := newTestOrchestrator(provider, 0)

	res := o.TranslatePage(context.Background(), PageRequest{Text: "keep me", SourceLang: "en", TargetLang: "zh"})

	assert.Equal(t, DefaultMaxRetries, provider.calls())
	assert.Equal(t, "keep me", res.TranslatedText)
	assert.Equal(t, OutcomePartial, res.Outcome())
}

func TestTranslatePage_RecoversAlteredMarkers(t *testing.T) {
	provider := ProviderFunc(func(_ context.Context, text, _, _ string) (string, error) {
		return strings.ReplaceAll(text, "XPT0001X", "xpt 0001 x") + "。", nil
	})
	o := newTestOrchestrator(provider, 0)

	res := o.TranslatePage(context.Background(), PageRequest{Text: "Valkey", Terms: []string{"Valkey"}})

	assert.Equal(t, "Valkey。", res.TranslatedText)
	assert.Empty(t, res.Unresolved)
	assert.Empty(t, res.MissingTerms)
	assert.NotRegexp(t, `(?i)xpt`, res.TranslatedText)
}

func TestTranslatePage_UnresolvedMarkerStaysVerbatim(t *testing.T) {
	tests := []struct {
		name     string
		injected string
	}{
		{"plain", "XPT1111X"},
		{"spaced", "xpt  2222 x"},
		{"full width", "ＸＰＴ３３３３Ｘ"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := ProviderFunc(func(_ context.Context, text, _, _ string) (string, error) {
				return strings.ReplaceAll(text, "XPT0001X", "XPT0001X "+tt.injected), nil
			})
			o := newTestOrchestrator(provider, 0)

			res := o.TranslatePage(context.Background(), PageRequest{Text: "Use AWS now", Terms: []string{"AWS"}})

			assert.Equal(t, []string{tt.injected}, res.Unresolved)
			assert.Equal(t, "Use AWS "+tt.injected+" now", res.TranslatedText)
			assert.False(t, res.Verdict.Has(IssueSuspiciousYear), "%+v", res.Verdict)
		})
	}
}

func TestMaskTokens(t *testing.T) {
	masked, unmask := maskTokens("a XPT1111X b XPT1111X c", []string{"XPT1111X", ""})
	assert.NotContains(t, masked, "1111")
	assert.Equal(t, "a XPT1111X b XPT1111X c", unmask(masked))

	text, identity := maskTokens("plain", nil)
	assert.Equal(t, "plain", text)
	assert.Equal(t, "x", identity("x"))
}

func TestTranslatePage_DroppedMarkerIsReported(t *testing.T) {
	provider := ProviderFunc(func(_ context.Context, text, _, _ string) (string, error) {
		return "使用它", nil
	})
	o := newTestOrchestrator(provider, 0)

	res := o.TranslatePage(context.Background(), PageRequest{Text: "Use Redis", Terms: []string{"Redis"}})

	assert.Equal(t, []string{"Redis"}, res.MissingTerms)
	assert.True(t, res.Verdict.Has(IssueMissingTerm))
	assert.Equal(t, StateDone, res.State)
}

func TestTranslatePage_EmptyTranslationKeepsSource(t *testing.T) {
	provider := ProviderFunc(func(_ context.Context, _, _, _ string) (string, error) {
		return "  \n", nil
	})
	o := newTestOrchestrator(provider, 0)

	res := o.TranslatePage(context.Background(), PageRequest{Text: "Source text"})

	assert.Equal(t, "Source text", res.TranslatedText)
	assert.Equal(t, 1, res.FailedChunks)
}

func TestTranslatePage_ProtectionPanicFailsClosed(t *testing.T) {
	provider := &recordingProvider{fn: func(_ context.Context, _ int, text string) (string, error) {
		return text, nil
	}}
	o := newTestOrchestrator(provider, 0)
	o.protectFunc = func(string, []string) (string, MarkerMap) { panic("boom") }

	res := o.TranslatePage(context.Background(), PageRequest{Index: 4, Text: "AWS secret sauce", Terms: []string{"AWS"}})

	assert.Equal(t, StateFailed, res.State)
	assert.Equal(t, OutcomeFailed, res.Outcome())
	assert.Equal(t, "AWS secret sauce", res.TranslatedText)
	assert.Zero(t, provider.calls(), "unprotected text must never reach the provider")
	assert.True(t, types.IsCode(res.Err, types.ErrInternal))
}

func TestTranslatePage_BlankPage(t *testing.T) {
	provider := &recordingProvider{fn: func(context.Context, int, string) (string, error) { return "x", nil }}
	o := newTestOrchestrator(provider, 0)

	res := o.TranslatePage(context.Background(), PageRequest{Text: "  \n "})

	assert.Equal(t, "  \n ", res.TranslatedText)
	assert.Equal(t, StateDone, res.State)
	assert.Zero(t, provider.calls())
}

func TestTranslatePage_FabricatedYearRepaired(t *testing.T) {
	provider := ProviderFunc(func(_ context.Context, _, _, _ string) (string, error) {
		return "AWS 很久以前成立，成立於九九九九年。", nil
	})
	o := newTestOrchestrator(provider, 0)

	res := o.TranslatePage(context.Background(), PageRequest{Text: "AWS was founded long ago.", Terms: []string{"AWS"}})

	assert.NotContains(t, res.TranslatedText, "九九九九")
	assert.False(t, res.Verdict.Has(IssueSuspiciousYear))
}

func TestTranslatePages_OrderAndConcurrency(t *testing.T) {
	var inFlight, peak int32
	provider := ProviderFunc(func(_ context.Context, text, _, _ string) (string, error) {
		n := atomic.AddInt32(&inFlight, 1)
		defer atomic.AddInt32(&inFlight, -1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(time.Duration(len(text)%4) * time.Millisecond)
		return "T:" + text, nil
	})

	var done int32
	o := NewOrchestrator(OrchestratorConfig{
		Provider:    provider,
		Concurrency: 3,
		OnPageDone:  func(PageResult) { atomic.AddInt32(&done, 1) },
	})

	pages := make([]string, 10)
	for i := range pages {
		pages[i] = fmt.Sprintf("page %d%s", i, strings.Repeat("x", i))
	}

	run := o.TranslatePages(context.Background(), pages, "en", "ja", nil)

	require.Len(t, run.Pages, len(pages))
	for i, p := range run.Pages {
		assert.Equal(t, i, p.Index)
		assert.Equal(t, "T:"+pages[i], p.TranslatedText)
	}
	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(3))
	assert.Equal(t, int32(10), atomic.LoadInt32(&done))
	assert.False(t, run.Partial())
	assert.Equal(t, pages[3], run.TranslatedTexts()[3][2:])
}

func TestTranslatePages_CancelledBeforeStart(t *testing.T) {
	provider := &recordingProvider{fn: func(context.Context, int, string) (string, error) { return "x", nil }}
	o := newTestOrchestrator(provider, 0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	run := o.TranslatePages(ctx, []string{"one", "two"}, "en", "ja", nil)

	assert.Zero(t, provider.calls())
	assert.True(t, run.Cancelled)
	assert.True(t, run.Partial())
	for i, p := range run.Pages {
		assert.Equal(t, OutcomeCancelled, p.Outcome())
		assert.Equal(t, []string{"one", "two"}[i], p.TranslatedText)
		assert.True(t, types.IsCode(p.Err, types.ErrCancelled))
	}
}

func TestTranslatePages_CancelMidRun(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var inFlightCtxErr error
	provider := &recordingProvider{fn: func(callCtx context.Context, call int, text string) (string, error) {
		cancel()
		inFlightCtxErr = callCtx.Err()
		return "T:" + text, nil
	}}
	o := NewOrchestrator(OrchestratorConfig{Provider: provider, Concurrency: 1, MaxChunkLength: 12})

	pages := []string{"alpha line\nbeta line", "gamma line\ndelta line", "epsilon ln\nzeta line"}
	run := o.TranslatePages(ctx, pages, "en", "ja", nil)

	assert.Equal(t, 1, provider.calls(), "no provider calls may start after cancellation")
	assert.NoError(t, inFlightCtxErr, "the in-flight call must not see the cancellation")
	assert.True(t, run.Cancelled)

	translated := 0
	for i, p := range run.Pages {
		assert.Equal(t, OutcomeCancelled, p.Outcome(), "page %d", i)
		if strings.Contains(p.TranslatedText, "T:") {
			translated++
		}
	}
	assert.Equal(t, 1, translated, "the accepted call's result is kept")
}

func TestTranslatePage_ThrottleDeadlineSkipsChunk(t *testing.T) {
	provider := &recordingProvider{fn: func(_ context.Context, _ int, text string) (string, error) {
		return "譯文", nil
	}}
	throttle := NewThrottle(1, 0.01)
	require.NoError(t, throttle.Do(context.Background(), func() error { return nil }))

	o := NewOrchestrator(OrchestratorConfig{
		Provider:   provider,
		Throttle:   throttle,
		RetryDelay: time.Millisecond,
	})
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	res := o.TranslatePage(ctx, PageRequest{Index: 0, Text: "Hello world"})

	assert.Equal(t, 0, provider.calls())
	assert.Equal(t, 0, res.FailedChunks)
	assert.Equal(t, 1, res.SkippedChunks)
	assert.True(t, res.Cancelled)
	assert.Equal(t, "Hello world", res.TranslatedText)
}

func TestTranslatePage_CacheHitSkipsThrottle(t *testing.T) {
	provider := &recordingProvider{fn: func(_ context.Context, _ int, text string) (string, error) {
		return "你好世界", nil
	}}
	cache := NewTranslationCache("")
	cache.Set("en", "zh", "Hello world", "你好世界")

	// an exhausted throttle with a closed context would reject any call
	throttle := NewThrottle(1, 0.01)
	require.NoError(t, throttle.Do(context.Background(), func() error { return nil }))
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	o := NewOrchestrator(OrchestratorConfig{Provider: provider, Throttle: throttle, Cache: cache})
	res := o.TranslatePage(ctx, PageRequest{Text: "Hello world", SourceLang: "en", TargetLang: "zh"})

	assert.Equal(t, 0, provider.calls())
	assert.Equal(t, "你好世界", res.TranslatedText)
	assert.Equal(t, OutcomeTranslated, res.Outcome())
}

func TestTranslatePage_BlankReplyIsNotCached(t *testing.T) {
	provider := &recordingProvider{fn: func(_ context.Context, call int, text string) (string, error) {
		if call == 1 {
			return "  ", nil
		}
		return "你好世界", nil
	}}
	cache := NewTranslationCache("")
	o := NewOrchestrator(OrchestratorConfig{Provider: provider, Cache: cache})
	req := PageRequest{Text: "Hello world", SourceLang: "en", TargetLang: "zh"}

	first := o.TranslatePage(context.Background(), req)
	assert.Equal(t, 1, first.FailedChunks)
	assert.Equal(t, 0, cache.Size())

	second := o.TranslatePage(context.Background(), req)
	assert.Equal(t, 0, second.FailedChunks)
	assert.Equal(t, "你好世界", second.TranslatedText)
	assert.Equal(t, 2, provider.calls())

	third := o.TranslatePage(context.Background(), req)
	assert.Equal(t, "你好世界", third.TranslatedText)
	assert.Equal(t, 2, provider.calls(), "successful translation should come from the cache")
}

func TestBackoff(t *testing.T) {
	o := NewOrchestrator(OrchestratorConfig{})
	want := []time.Duration{2 * time.Second, 4 * time.Second, 8 * time.Second, 16 * time.Second, 30 * time.Second, 30 * time.Second}
	for i, w := range want {
		assert.Equal(t, w, o.backoff(i+1), "attempt %d", i+1)
	}
}

func TestPageResultOutcome(t *testing.T) {
	tests := []struct {
		name string
		r    PageResult
		want PageOutcome
	}{
		{"translated", PageResult{State: StateDone}, OutcomeTranslated},
		{"partial", PageResult{State: StateDone, FailedChunks: 2}, OutcomePartial},
		{"cancelled mid page", PageResult{State: StateDone, Cancelled: true, FailedChunks: 1}, OutcomeCancelled},
		{"cancelled before start", PageResult{State: StateFailed, Cancelled: true}, OutcomeCancelled},
		{"failed", PageResult{State: StateFailed}, OutcomeFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.r.Outcome())
		})
	}
}
