package translator

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"pdf-translator/internal/logger"
	"pdf-translator/internal/types"
)

const cacheFileVersion = "2.0"

// CacheEntry 单条缓存记录
type CacheEntry struct {
	Hash        string    `json:"hash"`
	SourceLang  string    `json:"source_lang"`
	TargetLang  string    `json:"target_lang"`
	Original    string    `json:"original"`
	Translation string    `json:"translation"`
	CreatedAt   time.Time `json:"created_at"`
}

// CacheFile 缓存文件格式
type CacheFile struct {
	Version string       `json:"version"`
	Entries []CacheEntry `json:"entries"`
}

// TranslationCache 负责缓存翻译结果
type TranslationCache struct {
	cachePath string
	cache     map[string]CacheEntry // hash -> CacheEntry
	mu        sync.RWMutex
}

// NewTranslationCache 创建新的翻译缓存实例
func NewTranslationCache(cachePath string) *TranslationCache {
	return &TranslationCache{
		cachePath: cachePath,
		cache:     make(map[string]CacheEntry),
	}
}

// ComputeHash 计算缓存键（语言对 + 文本的 SHA256）
func (c *TranslationCache) ComputeHash(sourceLang, targetLang, text string) string {
	hash := sha256.Sum256([]byte(sourceLang + "\x00" + targetLang + "\x00" + text))
	return hex.EncodeToString(hash[:])
}

// Get 获取缓存的翻译
func (c *TranslationCache) Get(sourceLang, targetLang, text string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.cache[c.ComputeHash(sourceLang, targetLang, text)]
	if !ok {
		return "", false
	}
	return entry.Translation, true
}

// Set 设置翻译缓存。空白译文不缓存
func (c *TranslationCache) Set(sourceLang, targetLang, text, translation string) {
	if strings.TrimSpace(translation) == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	hash := c.ComputeHash(sourceLang, targetLang, text)
	c.cache[hash] = CacheEntry{
		Hash:        hash,
		SourceLang:  sourceLang,
		TargetLang:  targetLang,
		Original:    text,
		Translation: translation,
		CreatedAt:   time.Now(),
	}
}

// Load 从文件加载缓存
func (c *TranslationCache) Load() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cachePath == "" {
		return nil
	}

	data, err := os.ReadFile(c.cachePath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return types.NewAppError(types.ErrCache, "failed to read cache file", err)
	}

	var cacheFile CacheFile
	if err := json.Unmarshal(data, &cacheFile); err != nil {
		return types.NewAppError(types.ErrCache, "failed to parse cache file", err)
	}
	if cacheFile.Version != cacheFileVersion {
		logger.Warn("discarding cache with old format",
			logger.String("path", c.cachePath),
			logger.String("version", cacheFile.Version))
		c.cache = make(map[string]CacheEntry)
		return nil
	}

	c.cache = make(map[string]CacheEntry, len(cacheFile.Entries))
	for _, entry := range cacheFile.Entries {
		if strings.TrimSpace(entry.Translation) == "" {
			continue
		}
		c.cache[entry.Hash] = entry
	}
	return nil
}

// Save 保存缓存到文件
func (c *TranslationCache) Save() error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.cachePath == "" {
		return nil
	}

	entries := make([]CacheEntry, 0, len(c.cache))
	for _, entry := range c.cache {
		entries = append(entries, entry)
	}

	data, err := json.MarshalIndent(CacheFile{Version: cacheFileVersion, Entries: entries}, "", "  ")
	if err != nil {
		return types.NewAppError(types.ErrCache, "failed to marshal cache", err)
	}

	if err := os.MkdirAll(filepath.Dir(c.cachePath), 0755); err != nil {
		return types.NewAppError(types.ErrCache, "failed to create cache directory", err)
	}
	if err := os.WriteFile(c.cachePath, data, 0644); err != nil {
		return types.NewAppError(types.ErrCache, "failed to write cache file", err)
	}
	return nil
}

// Size 返回缓存中的条目数量
func (c *TranslationCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.cache)
}

// Clear 清空缓存
func (c *TranslationCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache = make(map[string]CacheEntry)
}

// GetCachePath 返回缓存文件路径
func (c *TranslationCache) GetCachePath() string {
	return c.cachePath
}
