package pdf

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"pdf-translator/internal/config"
	runs "pdf-translator/internal/errors"
	"pdf-translator/internal/filter"
	"pdf-translator/internal/logger"
	"pdf-translator/internal/translator"
	"pdf-translator/internal/types"
)

// PDFTranslator 是 PDF 翻译功能的主控制器
type PDFTranslator struct {
	config    *types.Config
	extractor PageTextExtractor
	renderer  DocumentRenderer
	backends  BackendFactory
	cache     *translator.TranslationCache
	journal   *runs.RunJournal

	mu       sync.RWMutex
	status   types.Status
	onStatus func(types.Status)
}

// PDFTranslatorConfig holds the collaborators of a PDFTranslator. Nil
// fields get the production implementation; Cache and Journal stay
// disabled when nil.
type PDFTranslatorConfig struct {
	Config    *types.Config
	Extractor PageTextExtractor
	Renderer  DocumentRenderer
	Backends  BackendFactory
	Cache     *translator.TranslationCache
	Journal   *runs.RunJournal
	// OnStatus receives every status change.
	OnStatus func(types.Status)
}

// NewPDFTranslator creates a new PDFTranslator with the given configuration
func NewPDFTranslator(cfg PDFTranslatorConfig) *PDFTranslator {
	c := cfg.Config
	if c == nil {
		c = &types.Config{}
	}
	p := &PDFTranslator{
		config:    c,
		extractor: cfg.Extractor,
		renderer:  cfg.Renderer,
		backends:  cfg.Backends,
		cache:     cfg.Cache,
		journal:   cfg.Journal,
		status:    types.Status{Phase: types.PhaseIdle},
		onStatus:  cfg.OnStatus,
	}
	if p.extractor == nil {
		p.extractor = NewPDFParser()
	}
	if p.renderer == nil {
		p.renderer = NewOverlayRenderer(c.WorkDirectory, c.FontPath)
	}
	if p.backends == nil {
		p.backends = NewBackendFactory(c)
	}
	return p
}

// GetStatus 获取当前处理状态
func (p *PDFTranslator) GetStatus() types.Status {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.status
}

func (p *PDFTranslator) setStatus(update func(*types.Status)) {
	p.mu.Lock()
	update(&p.status)
	s := p.status
	p.mu.Unlock()

	if p.onStatus != nil {
		p.onStatus(s)
	}
}

func (p *PDFTranslator) setPhase(phase types.ProcessPhase, progress int, message string) {
	p.setStatus(func(s *types.Status) {
		s.Phase = phase
		s.Progress = progress
		s.Message = message
	})
}

// RunID returns the journal key of a request. Repeated runs of the same
// source and target share it.
func RunID(req Request) string {
	sum := sha256.Sum256([]byte(req.SourcePath + "\x00" + req.TargetPath))
	return hex.EncodeToString(sum[:6])
}

// TranslateDocument extracts, filters, translates and renders one document.
// It returns an error only when no page could be extracted or no artifact
// could be written; per page problems are reported in the Result.
func (p *PDFTranslator) TranslateDocument(ctx context.Context, req Request) (*Result, error) {
	req, err := p.normalizeRequest(req)
	if err != nil {
		return nil, err
	}
	runID := RunID(req)
	log := logger.With(logger.String("run", runID))

	log.Info("starting document translation",
		logger.String("source", req.SourcePath),
		logger.String("target", req.TargetPath),
		logger.String("from", req.SourceLang),
		logger.String("to", req.TargetLang),
		logger.String("region", req.Region))

	// 1. 提取文本
	p.setPhase(types.PhaseExtracting, 0, "extracting page text")
	rawPages, err := p.extractor.Extract(ctx, req.SourcePath)
	if err != nil {
		return nil, p.fail(req, runID, runs.StageExtraction, err)
	}
	if len(rawPages) == 0 {
		return nil, p.fail(req, runID, runs.StageExtraction,
			types.NewAppErrorWithDetails(types.ErrExtraction, "no pages extracted", req.SourcePath, nil))
	}

	throttle := translator.NewThrottle(p.config.MaxInFlight, p.config.RequestsPerSecond)
	backends, err := p.backends(ctx, req.Region, throttle)
	if err != nil {
		return nil, p.fail(req, runID, runs.StageTranslation, err)
	}
	if backends.Filter == nil {
		backends.Filter = filter.NewRegexFilter()
	}

	// 2. 过滤版权声明等无关内容
	p.setPhase(types.PhaseFiltering, 10, "filtering boilerplate")
	pageNumbers, texts := filterPages(ctx, backends.Filter, rawPages)
	if len(texts) == 0 {
		return nil, p.fail(req, runID, runs.StageFiltering,
			types.NewAppErrorWithDetails(types.ErrExtraction, "no translatable text found", req.SourcePath, nil))
	}
	log.Info("pages ready for translation",
		logger.Int("sourcePages", len(rawPages)),
		logger.Int("translatablePages", len(texts)))

	// 3. 翻译
	p.setStatus(func(s *types.Status) {
		s.Phase = types.PhaseTranslating
		s.Progress = 20
		s.Message = "translating pages"
		s.TotalPages = len(texts)
		s.CompletedPages = 0
	})

	if p.cache != nil {
		if err := p.cache.Load(); err != nil {
			log.Warn("translation cache not loaded", logger.Err(err))
		}
	}

	orch := translator.NewOrchestrator(translator.OrchestratorConfig{
		Provider:       backends.Provider,
		Throttle:       throttle,
		Cache:          p.cache,
		MaxChunkLength: p.config.MaxChunkLength,
		Concurrency:    p.config.Concurrency,
		MaxRetries:     p.config.MaxRetries,
		OnPageDone: func(translator.PageResult) {
			p.setStatus(func(s *types.Status) {
				s.CompletedPages++
				s.Progress = 20 + 70*s.CompletedPages/s.TotalPages
			})
		},
	})
	terms := translator.ParseProtectedTerms(req.ProtectedTerms)
	run := orch.TranslatePages(ctx, texts, req.SourceLang, req.TargetLang, terms)

	if p.cache != nil {
		if err := p.cache.Save(); err != nil {
			log.Warn("translation cache not saved", logger.Err(err))
		}
	}

	result := &Result{
		RunID:           runID,
		SourcePages:     len(rawPages),
		PageNumbers:     pageNumbers,
		OriginalPages:   texts,
		TranslatedPages: run.TranslatedTexts(),
		Provider:        backends.Name,
		PartialFailures: run.PartialFailures,
		FailedPages:     run.FailedPages,
		Cancelled:       run.Cancelled,
	}
	renderPages := make([]RenderPage, len(run.Pages))
	for i, page := range run.Pages {
		renderPages[i] = RenderPage{
			Number:     pageNumbers[i],
			Original:   page.OriginalText,
			Translated: page.TranslatedText,
		}
		result.Pages = append(result.Pages, PageReport{
			Number:       pageNumbers[i],
			Outcome:      page.Outcome(),
			Chunks:       page.Chunks,
			FailedChunks: page.FailedChunks,
			Score:        page.Verdict.Score,
			Unresolved:   page.Unresolved,
			MissingTerms: page.MissingTerms,
		})
	}

	// 4. 生成输出；取消的运行也要写出已完成的部分
	p.setPhase(types.PhaseRendering, 90, "writing output")
	if err := p.writeArtifact(context.WithoutCancel(ctx), req, renderPages, result); err != nil {
		return nil, p.fail(req, runID, runs.StageArtifact, err)
	}

	result.Report = BuildStatusReport(result)
	p.journalOutcome(req, runID, result)

	phase := types.PhaseComplete
	if result.Partial() {
		phase = types.PhasePartial
	}
	p.setPhase(phase, 100, "done")

	log.Info("document translation finished",
		logger.String("artifact", result.ArtifactPath),
		logger.Bool("renderedPDF", result.RenderedPDF),
		logger.Int("partialFailures", result.PartialFailures),
		logger.Bool("cancelled", result.Cancelled))
	return result, nil
}

func (p *PDFTranslator) normalizeRequest(req Request) (Request, error) {
	if strings.TrimSpace(req.SourcePath) == "" {
		return req, types.NewAppError(types.ErrInvalidInput, "source path is required", nil)
	}
	if req.TargetPath == "" {
		ext := filepath.Ext(req.SourcePath)
		req.TargetPath = strings.TrimSuffix(req.SourcePath, ext) + "_translated.pdf"
	}

	if req.SourceLang == "" {
		req.SourceLang = p.config.SourceLang
	}
	if req.TargetLang == "" {
		req.TargetLang = p.config.TargetLang
	}
	if req.SourceLang == "" {
		req.SourceLang = config.DefaultSourceLang
	}
	if req.TargetLang == "" {
		req.TargetLang = config.DefaultTargetLang
	}
	var err error
	if req.SourceLang, err = types.NormalizeLanguage(req.SourceLang); err != nil {
		return req, err
	}
	if req.TargetLang, err = types.NormalizeLanguage(req.TargetLang); err != nil {
		return req, err
	}

	if req.Region == "" {
		req.Region = p.config.Region
	}
	if req.Region == "" {
		req.Region = config.DefaultRegion
	}
	if err := types.ValidateRegion(req.Region); err != nil {
		return req, err
	}
	return req, nil
}

// filterPages cleans every page and drops the ones left empty. The returned
// page numbers are 1-based positions in the source document.
func filterPages(ctx context.Context, f filter.ContentFilter, raw []string) ([]int, []string) {
	var numbers []int
	var texts []string
	for i, text := range raw {
		if strings.TrimSpace(text) == "" {
			continue
		}
		cleaned := strings.TrimSpace(f.Clean(ctx, text))
		if cleaned == "" {
			logger.Debug("page empty after filtering", logger.Int("page", i+1))
			continue
		}
		numbers = append(numbers, i+1)
		texts = append(texts, cleaned)
	}
	return numbers, texts
}

// writeArtifact renders the translated PDF, falling back to the text report.
func (p *PDFTranslator) writeArtifact(ctx context.Context, req Request, pages []RenderPage, result *Result) error {
	if strings.EqualFold(filepath.Ext(req.TargetPath), ".pdf") {
		err := p.renderer.Render(ctx, req.SourcePath, pages, req.TargetPath)
		if err == nil {
			result.ArtifactPath = req.TargetPath
			result.RenderedPDF = true
			return nil
		}
		logger.Warn("PDF rendering failed, writing text report instead", logger.Err(err))
	}

	reportPath := TextReportPath(req.TargetPath)
	if err := WriteTextReport(reportPath, pages, req.TargetLang); err != nil {
		return err
	}
	result.ArtifactPath = reportPath
	return nil
}

func (p *PDFTranslator) journalOutcome(req Request, runID string, result *Result) {
	if p.journal == nil {
		return
	}

	if !result.Partial() {
		if err := p.journal.Remove(runID); err != nil {
			logger.Warn("run journal not updated", logger.Err(err))
		}
		return
	}

	outcome := runs.OutcomePartial
	if result.Cancelled {
		outcome = runs.OutcomeCancelled
	}
	rec := journalRecord(req, runID, runs.StageTranslation, outcome,
		fmt.Sprintf("%d chunk(s) and %d page(s) left untranslated", result.PartialFailures, result.FailedPages))
	rec.Pages = len(result.TranslatedPages)
	rec.PartialFailures = result.PartialFailures
	rec.FailedPages = result.FailedPages
	if err := p.journal.Record(rec); err != nil {
		logger.Warn("run journal not updated", logger.Err(err))
	}
}

func (p *PDFTranslator) fail(req Request, runID string, stage runs.RunStage, err error) error {
	logger.Error("document translation failed", err,
		logger.String("run", runID),
		logger.String("stage", string(stage)))
	p.setStatus(func(s *types.Status) {
		s.Phase = types.PhaseError
		s.Message = "failed during " + runs.GetStageDisplayName(stage)
		s.Error = err.Error()
	})

	outcome := runs.OutcomeFailed
	if types.IsCode(err, types.ErrCancelled) {
		outcome = runs.OutcomeCancelled
	}
	if p.journal != nil {
		if jerr := p.journal.Record(journalRecord(req, runID, stage, outcome, err.Error())); jerr != nil {
			logger.Warn("run journal not updated", logger.Err(jerr))
		}
	}
	return err
}

func journalRecord(req Request, runID string, stage runs.RunStage, outcome runs.RunOutcome, msg string) runs.RunRecord {
	return runs.RunRecord{
		ID:         runID,
		SourcePath: req.SourcePath,
		TargetPath: req.TargetPath,
		SourceLang: req.SourceLang,
		TargetLang: req.TargetLang,
		Stage:      stage,
		Outcome:    outcome,
		ErrorMsg:   msg,
	}
}
