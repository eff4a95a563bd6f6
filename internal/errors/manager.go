// Package errors keeps a journal of document runs that failed, finished
// partially or were cancelled, so they can be listed and retried.
package errors

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

const journalFileName = "runs.json"

// RunStage 出错阶段枚举
type RunStage string

const (
	StageExtraction  RunStage = "extraction"  // 文本提取阶段
	StageFiltering   RunStage = "filtering"   // 内容过滤阶段
	StageTranslation RunStage = "translation" // 翻译阶段
	StageRendering   RunStage = "rendering"   // PDF 渲染阶段
	StageArtifact    RunStage = "artifact"    // 输出文件写入阶段
)

// RunOutcome 运行结果
type RunOutcome string

const (
	OutcomeFailed    RunOutcome = "failed"
	OutcomePartial   RunOutcome = "partial"
	OutcomeCancelled RunOutcome = "cancelled"
)

// RunRecord 运行记录
type RunRecord struct {
	ID              string     `json:"id"`
	SourcePath      string     `json:"source_path"`
	TargetPath      string     `json:"target_path"`
	SourceLang      string     `json:"source_lang"`
	TargetLang      string     `json:"target_lang"`
	Stage           RunStage   `json:"stage"`
	Outcome         RunOutcome `json:"outcome"`
	ErrorMsg        string     `json:"error_msg,omitempty"`
	Pages           int        `json:"pages"`
	PartialFailures int        `json:"partial_failures"`
	FailedPages     int        `json:"failed_pages"`
	Timestamp       time.Time  `json:"timestamp"`
	RetryCount      int        `json:"retry_count"`
	LastRetry       time.Time  `json:"last_retry,omitempty"`
}

// RunJournal 运行日志管理器
type RunJournal struct {
	baseDir string
	mu      sync.RWMutex
	runs    map[string]*RunRecord // key: ID
}

// NewRunJournal opens the journal stored in baseDir, creating the directory
// if needed.
func NewRunJournal(baseDir string) (*RunJournal, error) {
	if baseDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		baseDir = filepath.Join(homeDir, ".config", "pdf-translator", "runs")
	}

	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create runs directory: %w", err)
	}

	j := &RunJournal{
		baseDir: baseDir,
		runs:    make(map[string]*RunRecord),
	}
	if err := j.load(); err != nil {
		return nil, err
	}
	return j, nil
}

// Record stores rec, keeping the retry count of an earlier record with the
// same ID. A zero Timestamp is set to now.
func (j *RunJournal) Record(rec RunRecord) error {
	if rec.ID == "" {
		return fmt.Errorf("run record has no ID")
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}
	// 同一文档再次失败时保留重试次数
	if existing, ok := j.runs[rec.ID]; ok {
		rec.RetryCount = existing.RetryCount + 1
		rec.LastRetry = rec.Timestamp
	}
	j.runs[rec.ID] = &rec
	return j.save()
}

// Remove 移除运行记录（重新翻译成功后）
func (j *RunJournal) Remove(id string) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if _, ok := j.runs[id]; !ok {
		return nil
	}
	delete(j.runs, id)
	return j.save()
}

// List returns copies of all records, newest first.
func (j *RunJournal) List() []RunRecord {
	j.mu.RLock()
	defer j.mu.RUnlock()

	records := make([]RunRecord, 0, len(j.runs))
	for _, rec := range j.runs {
		records = append(records, *rec)
	}
	sort.Slice(records, func(a, b int) bool {
		if records[a].Timestamp.Equal(records[b].Timestamp) {
			return records[a].ID < records[b].ID
		}
		return records[a].Timestamp.After(records[b].Timestamp)
	})
	return records
}

// Get 获取特定运行记录
func (j *RunJournal) Get(id string) (RunRecord, bool) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	rec, ok := j.runs[id]
	if !ok {
		return RunRecord{}, false
	}
	return *rec, true
}

// ClearAll 清除所有运行记录
func (j *RunJournal) ClearAll() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.runs = make(map[string]*RunRecord)
	return j.save()
}

// Path returns the journal file path.
func (j *RunJournal) Path() string {
	return filepath.Join(j.baseDir, journalFileName)
}

func (j *RunJournal) load() error {
	data, err := os.ReadFile(j.Path())
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read runs file: %w", err)
	}

	var records []*RunRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return fmt.Errorf("failed to unmarshal runs: %w", err)
	}
	for _, rec := range records {
		j.runs[rec.ID] = rec
	}
	return nil
}

func (j *RunJournal) save() error {
	records := make([]*RunRecord, 0, len(j.runs))
	for _, rec := range j.runs {
		records = append(records, rec)
	}
	sort.Slice(records, func(a, b int) bool { return records[a].ID < records[b].ID })

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal runs: %w", err)
	}
	if err := os.WriteFile(j.Path(), data, 0644); err != nil {
		return fmt.Errorf("failed to write runs file: %w", err)
	}
	return nil
}

// GetStageDisplayName 获取阶段的显示名称
func GetStageDisplayName(stage RunStage) string {
	switch stage {
	case StageExtraction:
		return "text extraction"
	case StageFiltering:
		return "content filtering"
	case StageTranslation:
		return "translation"
	case StageRendering:
		return "PDF rendering"
	case StageArtifact:
		return "writing output"
	default:
		return string(stage)
	}
}
